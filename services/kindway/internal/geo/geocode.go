// Package geo resolves free-text locations to coordinates and filters
// candidates by great-circle distance.
package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jredh-dev/kindway/services/kindway/internal/apperr"
	"github.com/jredh-dev/kindway/services/kindway/pkg/identity"
	"github.com/jredh-dev/kindway/services/kindway/pkg/models"
)

// Lookup resolves a location to a coordinate on a best-effort basis.
type Lookup interface {
	Resolve(ctx context.Context, location string) (models.Coordinate, bool)
}

// Searcher queries a geocoding backend. found is false when the backend
// answered but had no match; err is set when it could not answer.
type Searcher interface {
	Search(ctx context.Context, query string) (c models.Coordinate, found bool, err error)
}

// Nominatim queries an OpenStreetMap Nominatim-compatible search API.
type Nominatim struct {
	baseURL   string
	userAgent string
	client    *http.Client
}

// NewNominatim creates a Nominatim client whose requests give up after
// timeout. A non-positive timeout means 5s.
func NewNominatim(baseURL, userAgent string, timeout time.Duration) *Nominatim {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Nominatim{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		client:    &http.Client{Timeout: timeout},
	}
}

type nominatimPlace struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Search implements Searcher.
func (n *Nominatim) Search(ctx context.Context, query string) (models.Coordinate, bool, error) {
	u := n.baseURL + "/search?" + url.Values{
		"q":      {query},
		"format": {"json"},
		"limit":  {"1"},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return models.Coordinate{}, false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", n.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return models.Coordinate{}, false, fmt.Errorf("%w: %v", apperr.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.Coordinate{}, false, fmt.Errorf("%w: nominatim returned %d", apperr.ErrUpstreamUnavailable, resp.StatusCode)
	}

	var places []nominatimPlace
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return models.Coordinate{}, false, fmt.Errorf("%w: decode response: %v", apperr.ErrUpstreamUnavailable, err)
	}
	if len(places) == 0 {
		return models.Coordinate{}, false, nil
	}

	lat, errLat := strconv.ParseFloat(places[0].Lat, 64)
	lng, errLng := strconv.ParseFloat(places[0].Lon, 64)
	if errLat != nil || errLng != nil {
		return models.Coordinate{}, false, fmt.Errorf("%w: bad coordinate %q,%q", apperr.ErrUpstreamUnavailable, places[0].Lat, places[0].Lon)
	}
	return models.Coordinate{Lat: lat, Lng: lng}, true, nil
}

// Resolver is the application's Lookup: a Searcher bounded by a timeout
// and fronted by an optional cache. Failures are logged and reported as
// "no coordinate".
type Resolver struct {
	searcher Searcher
	cache    Cache
	timeout  time.Duration
	ttl      time.Duration
	missTTL  time.Duration
}

// ResolverConfig configures a Resolver. A nil Searcher disables lookups.
type ResolverConfig struct {
	Searcher Searcher
	Cache    Cache
	Timeout  time.Duration
	CacheTTL time.Duration
	MissTTL  time.Duration
}

// NewResolver creates a Resolver.
func NewResolver(cfg ResolverConfig) *Resolver {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 30 * 24 * time.Hour
	}
	if cfg.MissTTL <= 0 {
		cfg.MissTTL = time.Hour
	}
	return &Resolver{
		searcher: cfg.Searcher,
		cache:    cfg.Cache,
		timeout:  cfg.Timeout,
		ttl:      cfg.CacheTTL,
		missTTL:  cfg.MissTTL,
	}
}

// Resolve implements Lookup.
func (r *Resolver) Resolve(ctx context.Context, location string) (models.Coordinate, bool) {
	location = strings.TrimSpace(location)
	if location == "" || r == nil || r.searcher == nil {
		return models.Coordinate{}, false
	}

	key := CacheKey(location)
	if r.cache != nil {
		entry, hit, err := r.cache.Get(ctx, key)
		if err != nil {
			log.Printf("geo: cache get %q: %v", key, err)
		} else if hit {
			return entry.Coordinate, entry.Found
		}
	}

	lookupCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	c, found, err := r.searcher.Search(lookupCtx, location)
	if err != nil {
		if errors.Is(lookupCtx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%w: timed out after %s", apperr.ErrUpstreamUnavailable, r.timeout)
		}
		log.Printf("geo: resolve %q: %v", location, err)
		return models.Coordinate{}, false
	}

	if r.cache != nil {
		ttl := r.ttl
		if !found {
			ttl = r.missTTL
		}
		if err := r.cache.Set(ctx, key, CacheEntry{Coordinate: c, Found: found}, ttl); err != nil {
			log.Printf("geo: cache set %q: %v", key, err)
		}
	}
	return c, found
}

// PincodeQuery turns a postal code into a search query scoped to country.
func PincodeQuery(pincode, country string) string {
	pincode = identity.NormalizePincode(pincode)
	if pincode == "" {
		return ""
	}
	if country == "" {
		return pincode
	}
	return pincode + ", " + country
}

// CacheKey returns the cache key of a location query.
func CacheKey(location string) string {
	return "geo:v1:" + identity.NormalizeName(location)
}
