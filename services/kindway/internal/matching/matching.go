// Package matching finds NGOs and needs near a donor or a searched place.
//
// All three queries share geo.FindWithinRadius: with a known origin they
// return nearby results nearest first, without one they fall back to an
// alphabetical listing with no distances.
package matching

import (
	"context"
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/jredh-dev/kindway/services/kindway/internal/apperr"
	"github.com/jredh-dev/kindway/services/kindway/internal/database"
	"github.com/jredh-dev/kindway/services/kindway/internal/geo"
	"github.com/jredh-dev/kindway/services/kindway/pkg/identity"
	"github.com/jredh-dev/kindway/services/kindway/pkg/models"
)

// Config holds the search radii and the country used for pincode lookups.
type Config struct {
	MatchRadiusKm  float64
	SearchRadiusKm float64
	Country        string
}

// Service answers matching queries.
type Service struct {
	db  *database.DB
	geo geo.Lookup
	cfg Config
}

// NewService creates a matching service. Non-positive radii fall back to
// 50 km for donor matching and 25 km for search.
func NewService(db *database.DB, lookup geo.Lookup, cfg Config) *Service {
	if cfg.MatchRadiusKm <= 0 {
		cfg.MatchRadiusKm = 50
	}
	if cfg.SearchRadiusKm <= 0 {
		cfg.SearchRadiusKm = 25
	}
	return &Service{db: db, geo: lookup, cfg: cfg}
}

// NGOMatch is an NGO with its distance from the origin, when known.
type NGOMatch struct {
	NGO        models.NGO `json:"ngo"`
	DistanceKm *float64   `json:"distance_km,omitempty"`
}

// NeedMatch is an active need with its NGO's distance from the origin.
type NeedMatch struct {
	Need       models.Need `json:"need"`
	DistanceKm *float64    `json:"distance_km,omitempty"`
}

// SearchResult is the answer to a public NGO search. Degraded is set when
// the location could not be resolved and every verified NGO is listed.
type SearchResult struct {
	Location string     `json:"location"`
	RadiusKm float64    `json:"radius_km"`
	Degraded bool       `json:"degraded"`
	NGOs     []NGOMatch `json:"ngos"`
}

// MatchNGOs returns the verified NGOs accepting categoryID within the match
// radius of the donor. A donor without a stored location gets every such
// NGO, alphabetically.
func (s *Service) MatchNGOs(ctx context.Context, donor *models.User, categoryID string) ([]NGOMatch, error) {
	if !donor.IsDonor() {
		return nil, fmt.Errorf("only donors are matched: %w", apperr.ErrForbidden)
	}
	if categoryID == "" {
		return nil, fmt.Errorf("category is required: %w", apperr.ErrInvalidInput)
	}
	category, err := s.db.GetCategory(categoryID)
	if err != nil {
		return nil, fmt.Errorf("get category: %w", err)
	}
	if category == nil {
		return nil, fmt.Errorf("category %s: %w", categoryID, apperr.ErrNotFound)
	}

	origin, err := s.donorOrigin(donor)
	if err != nil {
		return nil, err
	}
	ngos, err := s.db.ListVerifiedNGOs(categoryID)
	if err != nil {
		return nil, fmt.Errorf("list ngos: %w", err)
	}
	return ngoMatches(origin, ngos, s.cfg.MatchRadiusKm), nil
}

// SearchNGOs resolves location and returns verified NGOs within radiusKm of
// it. A bare pincode is searched within the configured country; other text
// is searched verbatim. A non-positive radius means the default; a
// non-finite one is rejected.
func (s *Service) SearchNGOs(ctx context.Context, location string, radiusKm float64) (*SearchResult, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, fmt.Errorf("location is required: %w", apperr.ErrInvalidInput)
	}
	if math.IsNaN(radiusKm) || math.IsInf(radiusKm, 0) {
		return nil, fmt.Errorf("radius must be finite: %w", apperr.ErrInvalidInput)
	}
	if radiusKm <= 0 {
		radiusKm = s.cfg.SearchRadiusKm
	}

	ngos, err := s.db.ListVerifiedNGOs("")
	if err != nil {
		return nil, fmt.Errorf("list ngos: %w", err)
	}

	res := &SearchResult{Location: location, RadiusKm: radiusKm}
	var origin *models.Coordinate
	if c, ok := s.geo.Resolve(ctx, s.query(location)); ok {
		origin = &c
	} else {
		res.Degraded = true
	}
	res.NGOs = ngoMatches(origin, ngos, radiusKm)
	return res, nil
}

// NearbyNeeds returns the active needs whose NGO lies within the match
// radius of the donor, or all active needs by title when the donor has no
// location.
func (s *Service) NearbyNeeds(ctx context.Context, donor *models.User) ([]NeedMatch, error) {
	if !donor.IsDonor() {
		return nil, fmt.Errorf("only donors browse nearby needs: %w", apperr.ErrForbidden)
	}
	origin, err := s.donorOrigin(donor)
	if err != nil {
		return nil, err
	}

	needs, err := s.db.ListActiveNeeds()
	if err != nil {
		return nil, fmt.Errorf("list needs: %w", err)
	}
	locations, err := s.ngoLocations()
	if err != nil {
		return nil, err
	}

	candidates := make([]geo.Candidate[models.Need], 0, len(needs))
	for _, n := range needs {
		candidates = append(candidates, geo.Candidate[models.Need]{
			Item:     n,
			Name:     n.Title,
			Location: locations[n.NGOID],
		})
	}

	found := geo.FindWithinRadius(origin, candidates, s.cfg.MatchRadiusKm)
	out := make([]NeedMatch, 0, len(found))
	for _, m := range found {
		out = append(out, NeedMatch{Need: m.Item, DistanceKm: rounded(m.DistanceKm)})
	}
	return out, nil
}

func (s *Service) donorOrigin(donor *models.User) (*models.Coordinate, error) {
	p, err := s.db.GetDonorProfile(donor.ID)
	if err != nil {
		return nil, fmt.Errorf("get donor profile: %w", err)
	}
	if p == nil {
		return nil, nil
	}
	return p.Location, nil
}

func (s *Service) ngoLocations() (map[string]*models.Coordinate, error) {
	ngos, err := s.db.ListVerifiedNGOs("")
	if err != nil {
		return nil, fmt.Errorf("list ngos: %w", err)
	}
	locs := make(map[string]*models.Coordinate, len(ngos))
	for _, n := range ngos {
		locs[n.Profile.UserID] = n.Profile.Location
	}
	return locs, nil
}

func (s *Service) query(location string) string {
	if pin := identity.NormalizePincode(location); isDigits(pin) {
		return geo.PincodeQuery(pin, s.cfg.Country)
	}
	return location
}

func ngoMatches(origin *models.Coordinate, ngos []models.NGO, radiusKm float64) []NGOMatch {
	candidates := make([]geo.Candidate[models.NGO], 0, len(ngos))
	for _, n := range ngos {
		candidates = append(candidates, geo.Candidate[models.NGO]{
			Item:     n,
			Name:     n.Profile.Name,
			Location: n.Profile.Location,
		})
	}

	found := geo.FindWithinRadius(origin, candidates, radiusKm)
	out := make([]NGOMatch, 0, len(found))
	for _, m := range found {
		out = append(out, NGOMatch{NGO: m.Item, DistanceKm: rounded(m.DistanceKm)})
	}
	return out
}

func rounded(km *float64) *float64 {
	if km == nil {
		return nil
	}
	r := geo.RoundKm(*km)
	return &r
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
