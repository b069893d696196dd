package geo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jredh-dev/kindway/services/kindway/internal/apperr"
	"github.com/jredh-dev/kindway/services/kindway/pkg/models"
)

func TestNominatim_Search(t *testing.T) {
	var gotQuery, gotAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("path = %q, want /search", r.URL.Path)
		}
		gotQuery = r.URL.Query().Get("q")
		gotAgent = r.Header.Get("User-Agent")
		if r.URL.Query().Get("format") != "json" || r.URL.Query().Get("limit") != "1" {
			t.Errorf("query = %q, want format=json&limit=1", r.URL.RawQuery)
		}
		switch gotQuery {
		case "560001, India":
			w.Write([]byte(`[{"lat":"12.9716","lon":"77.5946","display_name":"Bengaluru"}]`))
		case "nowhere":
			w.Write([]byte(`[]`))
		default:
			http.Error(w, "boom", http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	n := NewNominatim(srv.URL+"/", "kindway-test", time.Second)

	c, found, err := n.Search(context.Background(), "560001, India")
	if err != nil || !found {
		t.Fatalf("Search = %v, %v, %v", c, found, err)
	}
	if c.Lat != 12.9716 || c.Lng != 77.5946 {
		t.Errorf("coordinate = %+v", c)
	}
	if gotAgent != "kindway-test" {
		t.Errorf("User-Agent = %q", gotAgent)
	}

	_, found, err = n.Search(context.Background(), "nowhere")
	if err != nil || found {
		t.Errorf("no match: found = %v, err = %v; want false, nil", found, err)
	}

	_, _, err = n.Search(context.Background(), "explode")
	if !errors.Is(err, apperr.ErrUpstreamUnavailable) {
		t.Errorf("server error: err = %v, want ErrUpstreamUnavailable", err)
	}
}

func TestNominatim_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()
	defer close(release)

	n := NewNominatim(srv.URL, "kindway-test", 50*time.Millisecond)
	start := time.Now()
	_, found, err := n.Search(context.Background(), "slow")
	if !errors.Is(err, apperr.ErrUpstreamUnavailable) || found {
		t.Errorf("slow upstream: found = %v, err = %v; want ErrUpstreamUnavailable", found, err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Search took %v, want it bounded by the client timeout", elapsed)
	}

	if d := NewNominatim(srv.URL, "kindway-test", 0).client.Timeout; d != 5*time.Second {
		t.Errorf("default timeout = %v, want 5s", d)
	}
}

type fakeSearcher struct {
	mu    sync.Mutex
	calls int
	delay time.Duration
	c     models.Coordinate
	found bool
	err   error
}

func (f *fakeSearcher) Search(ctx context.Context, query string) (models.Coordinate, bool, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return models.Coordinate{}, false, ctx.Err()
		}
	}
	return f.c, f.found, f.err
}

type memCache struct {
	entries map[string]CacheEntry
	ttls    map[string]time.Duration
	getErr  error
}

func newMemCache() *memCache {
	return &memCache{entries: map[string]CacheEntry{}, ttls: map[string]time.Duration{}}
}

func (m *memCache) Get(_ context.Context, key string) (CacheEntry, bool, error) {
	if m.getErr != nil {
		return CacheEntry{}, false, m.getErr
	}
	e, ok := m.entries[key]
	return e, ok, nil
}

func (m *memCache) Set(_ context.Context, key string, e CacheEntry, ttl time.Duration) error {
	m.entries[key] = e
	m.ttls[key] = ttl
	return nil
}

func TestResolver_EmptyInputSkipsLookup(t *testing.T) {
	s := &fakeSearcher{found: true}
	r := NewResolver(ResolverConfig{Searcher: s})

	if _, ok := r.Resolve(context.Background(), "   "); ok {
		t.Error("empty location should resolve to nothing")
	}
	if s.calls != 0 {
		t.Errorf("searcher calls = %d, want 0", s.calls)
	}
}

func TestResolver_Disabled(t *testing.T) {
	r := NewResolver(ResolverConfig{})
	if _, ok := r.Resolve(context.Background(), "110001, India"); ok {
		t.Error("resolver without a searcher should resolve to nothing")
	}
}

func TestResolver_CachesHitsAndMisses(t *testing.T) {
	s := &fakeSearcher{c: models.Coordinate{Lat: 28.6, Lng: 77.2}, found: true}
	cache := newMemCache()
	r := NewResolver(ResolverConfig{Searcher: s, Cache: cache, CacheTTL: 48 * time.Hour, MissTTL: time.Minute})

	for i := 0; i < 3; i++ {
		c, ok := r.Resolve(context.Background(), "110001, India")
		if !ok || c.Lat != 28.6 {
			t.Fatalf("Resolve = %+v, %v", c, ok)
		}
	}
	if s.calls != 1 {
		t.Errorf("searcher calls = %d, want 1", s.calls)
	}
	if ttl := cache.ttls[CacheKey("110001, India")]; ttl != 48*time.Hour {
		t.Errorf("hit ttl = %v, want 48h", ttl)
	}

	s.found = false
	if _, ok := r.Resolve(context.Background(), "999999, India"); ok {
		t.Error("miss should resolve to nothing")
	}
	if _, ok := r.Resolve(context.Background(), "999999,  india"); ok {
		t.Error("cached miss should resolve to nothing")
	}
	if s.calls != 2 {
		t.Errorf("searcher calls = %d, want 2", s.calls)
	}
	if ttl := cache.ttls[CacheKey("999999, India")]; ttl != time.Minute {
		t.Errorf("miss ttl = %v, want 1m", ttl)
	}
}

func TestResolver_FailureIsNotCached(t *testing.T) {
	s := &fakeSearcher{err: apperr.ErrUpstreamUnavailable}
	cache := newMemCache()
	r := NewResolver(ResolverConfig{Searcher: s, Cache: cache})

	if _, ok := r.Resolve(context.Background(), "Some address"); ok {
		t.Error("failed lookup should resolve to nothing")
	}
	if len(cache.entries) != 0 {
		t.Errorf("cache entries = %d, want 0", len(cache.entries))
	}
}

func TestResolver_CacheErrorFallsThrough(t *testing.T) {
	s := &fakeSearcher{c: models.Coordinate{Lat: 1, Lng: 2}, found: true}
	cache := newMemCache()
	cache.getErr = errors.New("redis down")
	r := NewResolver(ResolverConfig{Searcher: s, Cache: cache})

	if _, ok := r.Resolve(context.Background(), "Pune"); !ok {
		t.Error("cache errors should not prevent a lookup")
	}
	if s.calls != 1 {
		t.Errorf("searcher calls = %d, want 1", s.calls)
	}
}

func TestResolver_Timeout(t *testing.T) {
	s := &fakeSearcher{delay: time.Second, found: true}
	r := NewResolver(ResolverConfig{Searcher: s, Timeout: 20 * time.Millisecond})

	start := time.Now()
	if _, ok := r.Resolve(context.Background(), "slow"); ok {
		t.Error("timed out lookup should resolve to nothing")
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Resolve took %v, want bounded by the timeout", elapsed)
	}
}

func TestPincodeQuery(t *testing.T) {
	tests := []struct {
		pincode, country, want string
	}{
		{"560001", "India", "560001, India"},
		{" 560 001 ", "India", "560001, India"},
		{"560001", "", "560001"},
		{"  ", "India", ""},
	}
	for _, tt := range tests {
		if got := PincodeQuery(tt.pincode, tt.country); got != tt.want {
			t.Errorf("PincodeQuery(%q, %q) = %q, want %q", tt.pincode, tt.country, got, tt.want)
		}
	}
}

func TestCacheKey(t *testing.T) {
	if CacheKey("560001, India") != CacheKey("  560001,   INDIA ") {
		t.Error("equivalent queries should share a cache key")
	}
	if got := CacheKey("Pune"); got != "geo:v1:pune" {
		t.Errorf("CacheKey = %q", got)
	}
}
