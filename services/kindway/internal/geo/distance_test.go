package geo

import (
	"math"
	"testing"

	"github.com/jredh-dev/kindway/services/kindway/pkg/models"
)

func coord(lat, lng float64) *models.Coordinate {
	return &models.Coordinate{Lat: lat, Lng: lng}
}

func TestDistanceKm(t *testing.T) {
	tests := []struct {
		name     string
		a, b     models.Coordinate
		min, max float64
	}{
		{"same point", models.Coordinate{Lat: 12.9, Lng: 77.6}, models.Coordinate{Lat: 12.9, Lng: 77.6}, 0, 0},
		{"bangalore short hop", models.Coordinate{Lat: 12.9, Lng: 77.6}, models.Coordinate{Lat: 12.95, Lng: 77.62}, 5.9, 6.1},
		{"bangalore to coast", models.Coordinate{Lat: 12.9, Lng: 77.6}, models.Coordinate{Lat: 13.5, Lng: 80.0}, 260, 290},
		{"delhi to mumbai", models.Coordinate{Lat: 28.6, Lng: 77.2}, models.Coordinate{Lat: 19.0, Lng: 72.8}, 1100, 1200},
		{"antipodes", models.Coordinate{Lat: 0, Lng: 0}, models.Coordinate{Lat: 0, Lng: 180}, 20015, 20016},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DistanceKm(tt.a, tt.b)
			if got < tt.min || got > tt.max {
				t.Errorf("DistanceKm = %.3f, want in [%v, %v]", got, tt.min, tt.max)
			}
			if back := DistanceKm(tt.b, tt.a); math.Abs(back-got) > 1e-9 {
				t.Errorf("distance not symmetric: %v vs %v", got, back)
			}
		})
	}
}

func TestFindWithinRadius_KnownOrigin(t *testing.T) {
	candidates := []Candidate[string]{
		{Item: "B", Name: "Mumbai Trust", Location: coord(19.0, 72.8)},
		{Item: "A", Name: "Delhi Seva", Location: coord(28.7, 77.1)},
		{Item: "C", Name: "No Address"},
	}

	got := FindWithinRadius(coord(28.6, 77.2), candidates, 50)
	if len(got) != 1 || got[0].Item != "A" {
		t.Fatalf("matches = %+v, want only A", got)
	}
	if got[0].DistanceKm == nil {
		t.Fatal("DistanceKm should be set for a known origin")
	}
}

func TestFindWithinRadius_BangaloreScenario(t *testing.T) {
	candidates := []Candidate[string]{
		{Item: "ngo2", Name: "NGO2", Location: coord(13.5, 80.0)},
		{Item: "ngo1", Name: "NGO1", Location: coord(12.95, 77.62)},
	}

	got := FindWithinRadius(coord(12.9, 77.6), candidates, 50)
	if len(got) != 1 || got[0].Item != "ngo1" {
		t.Fatalf("matches = %+v, want only ngo1", got)
	}
	if d := RoundKm(*got[0].DistanceKm); d != 6.0 {
		t.Errorf("rounded distance = %v, want 6.0", d)
	}
}

func TestFindWithinRadius_SortsNearestFirstStable(t *testing.T) {
	candidates := []Candidate[string]{
		{Item: "far", Name: "far", Location: coord(12.99, 77.6)},
		{Item: "tie1", Name: "tie1", Location: coord(12.91, 77.6)},
		{Item: "tie2", Name: "tie2", Location: coord(12.91, 77.6)},
		{Item: "edge", Name: "edge", Location: coord(12.9, 77.6)},
	}

	got := FindWithinRadius(coord(12.9, 77.6), candidates, 50)
	want := []string{"edge", "tie1", "tie2", "far"}
	if len(got) != len(want) {
		t.Fatalf("got %d matches, want %d", len(got), len(want))
	}
	for i, w := range want {
		if got[i].Item != w {
			t.Errorf("match[%d] = %q, want %q", i, got[i].Item, w)
		}
	}
}

func TestFindWithinRadius_InclusiveRadius(t *testing.T) {
	origin := coord(0, 0)
	target := coord(0, 1)
	r := DistanceKm(*origin, *target)

	got := FindWithinRadius(origin, []Candidate[int]{{Item: 1, Location: target}}, r)
	if len(got) != 1 {
		t.Errorf("candidate exactly at the radius should be kept")
	}
}

func TestFindWithinRadius_NonFiniteRadius(t *testing.T) {
	candidates := []Candidate[string]{
		{Item: "A", Location: coord(28.7, 77.1)},
		{Item: "B", Location: coord(19.0, 72.8)},
	}

	if got := FindWithinRadius(coord(28.6, 77.2), candidates, math.NaN()); len(got) != 0 {
		t.Errorf("NaN radius kept %d candidates, want 0", len(got))
	}
	if got := FindWithinRadius(coord(28.6, 77.2), candidates, math.Inf(-1)); len(got) != 0 {
		t.Errorf("-Inf radius kept %d candidates, want 0", len(got))
	}
}

func TestFindWithinRadius_UnknownOrigin(t *testing.T) {
	candidates := []Candidate[string]{
		{Item: "z", Name: "zeta", Location: coord(1, 1)},
		{Item: "a", Name: "Alpha"},
		{Item: "b", Name: "beta", Location: coord(80, 80)},
	}

	got := FindWithinRadius(nil, candidates, 1)
	want := []string{"a", "b", "z"}
	if len(got) != len(want) {
		t.Fatalf("got %d matches, want all %d", len(got), len(want))
	}
	for i, w := range want {
		if got[i].Item != w {
			t.Errorf("match[%d] = %q, want %q", i, got[i].Item, w)
		}
		if got[i].DistanceKm != nil {
			t.Errorf("match[%d] has a distance with an unknown origin", i)
		}
	}
}

func TestFindWithinRadius_Empty(t *testing.T) {
	for _, origin := range []*models.Coordinate{nil, coord(1, 1)} {
		got := FindWithinRadius[string](origin, nil, 10)
		if got == nil {
			t.Error("result should be non-nil")
		}
		if len(got) != 0 {
			t.Errorf("got %d matches, want 0", len(got))
		}
	}
}

func TestRoundKm(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{5.97, 6.0},
		{5.94, 5.9},
		{0.04, 0},
		{123.456, 123.5},
	}
	for _, tt := range tests {
		if got := RoundKm(tt.in); got != tt.want {
			t.Errorf("RoundKm(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
