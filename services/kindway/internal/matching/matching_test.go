package matching

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/jredh-dev/kindway/services/kindway/internal/apperr"
	"github.com/jredh-dev/kindway/services/kindway/internal/database"
	"github.com/jredh-dev/kindway/services/kindway/internal/database/dbtest"
	"github.com/jredh-dev/kindway/services/kindway/pkg/models"
)

type fakeLookup map[string]models.Coordinate

func (f fakeLookup) Resolve(_ context.Context, location string) (models.Coordinate, bool) {
	c, ok := f[location]
	return c, ok
}

type fixture struct {
	db    *database.DB
	svc   *Service
	food  string
	near  *models.User
	far   *models.User
	donor *models.User
}

// Bangalore: the donor sits about 6 km from Near Trust and roughly 280 km
// from Far Trust.
func setup(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.Open(t)
	f := &fixture{db: db}
	f.food = dbtest.Category(t, db, "Food")
	books := dbtest.Category(t, db, "Books")

	f.near = dbtest.NGO(t, db, "near@ngo.org", "Near Trust", models.VerificationVerified, dbtest.Coord(12.95, 77.62), f.food)
	f.far = dbtest.NGO(t, db, "far@ngo.org", "Far Trust", models.VerificationVerified, dbtest.Coord(13.5, 80.0), f.food)
	dbtest.NGO(t, db, "books@ngo.org", "Book Bank", models.VerificationVerified, dbtest.Coord(12.91, 77.6), books)
	dbtest.NGO(t, db, "pending@ngo.org", "Awaiting", models.VerificationPending, dbtest.Coord(12.9, 77.6), f.food)
	f.donor = dbtest.Donor(t, db, "donor@example.com", dbtest.Coord(12.9, 77.6))

	f.svc = NewService(db, fakeLookup{
		"560001, India": {Lat: 12.9, Lng: 77.6},
		"Indiranagar":   {Lat: 12.97, Lng: 77.64},
	}, Config{Country: "India"})
	return f
}

func TestMatchNGOs_Bangalore(t *testing.T) {
	f := setup(t)

	got, err := f.svc.MatchNGOs(context.Background(), f.donor, f.food)
	if err != nil {
		t.Fatalf("MatchNGOs: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("matches = %d, want 1: %+v", len(got), got)
	}
	if got[0].NGO.Profile.UserID != f.near.ID {
		t.Errorf("match = %s, want Near Trust", got[0].NGO.Profile.Name)
	}
	if got[0].DistanceKm == nil || *got[0].DistanceKm != 6.0 {
		t.Errorf("distance = %v, want 6.0", got[0].DistanceKm)
	}
}

func TestMatchNGOs_UnknownOrigin(t *testing.T) {
	f := setup(t)
	nowhere := dbtest.Donor(t, f.db, "nowhere@example.com", nil)

	got, err := f.svc.MatchNGOs(context.Background(), nowhere, f.food)
	if err != nil {
		t.Fatalf("MatchNGOs: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("matches = %d, want both verified food NGOs", len(got))
	}
	if got[0].NGO.Profile.Name != "Far Trust" || got[1].NGO.Profile.Name != "Near Trust" {
		t.Errorf("order = %s, %s; want alphabetical", got[0].NGO.Profile.Name, got[1].NGO.Profile.Name)
	}
	for _, m := range got {
		if m.DistanceKm != nil {
			t.Errorf("%s has distance %v, want none", m.NGO.Profile.Name, *m.DistanceKm)
		}
	}
}

func TestMatchNGOs_Errors(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		actor    *models.User
		category string
		want     error
	}{
		{"ngo actor", f.near, f.food, apperr.ErrForbidden},
		{"no category", f.donor, "", apperr.ErrInvalidInput},
		{"unknown category", f.donor, "nope", apperr.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.MatchNGOs(ctx, tt.actor, tt.category); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSearchNGOs(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	res, err := f.svc.SearchNGOs(ctx, " 560 001 ", 0)
	if err != nil {
		t.Fatalf("SearchNGOs: %v", err)
	}
	if res.Degraded || res.RadiusKm != 25 {
		t.Errorf("result = %+v, want default radius, not degraded", res)
	}
	if len(res.NGOs) != 2 || res.NGOs[0].NGO.Profile.Name != "Book Bank" {
		t.Errorf("ngos = %+v, want Book Bank then Near Trust", res.NGOs)
	}

	res, _ = f.svc.SearchNGOs(ctx, "Indiranagar", 1000)
	if len(res.NGOs) != 3 {
		t.Errorf("wide search = %d ngos, want 3 verified", len(res.NGOs))
	}

	res, err = f.svc.SearchNGOs(ctx, "Atlantis", 10)
	if err != nil {
		t.Fatalf("SearchNGOs degraded: %v", err)
	}
	if !res.Degraded || len(res.NGOs) != 3 {
		t.Errorf("degraded result = %+v, want all verified NGOs", res)
	}
	if res.NGOs[0].NGO.Profile.Name != "Book Bank" || res.NGOs[0].DistanceKm != nil {
		t.Errorf("degraded listing should be alphabetical without distances: %+v", res.NGOs[0])
	}

	if _, err := f.svc.SearchNGOs(ctx, "  ", 10); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("blank location err = %v, want ErrInvalidInput", err)
	}
	for _, r := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		if _, err := f.svc.SearchNGOs(ctx, "560001", r); !errors.Is(err, apperr.ErrInvalidInput) {
			t.Errorf("radius %v err = %v, want ErrInvalidInput", r, err)
		}
	}
}

func TestNearbyNeeds(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	post := func(ngo *models.User, title string) {
		t.Helper()
		n := &models.Need{
			ID:         uuid.New().String(),
			NGOID:      ngo.ID,
			CategoryID: f.food,
			Title:      title,
			Active:     true,
			CreatedAt:  time.Now().UTC(),
		}
		if err := f.db.CreateNeed(n); err != nil {
			t.Fatalf("create need: %v", err)
		}
	}
	post(f.near, "Rice")
	post(f.far, "Blankets")

	got, err := f.svc.NearbyNeeds(ctx, f.donor)
	if err != nil {
		t.Fatalf("NearbyNeeds: %v", err)
	}
	if len(got) != 1 || got[0].Need.Title != "Rice" {
		t.Errorf("nearby = %+v, want only Rice", got)
	}

	nowhere := dbtest.Donor(t, f.db, "nowhere@example.com", nil)
	got, _ = f.svc.NearbyNeeds(ctx, nowhere)
	if len(got) != 2 || got[0].Need.Title != "Blankets" {
		t.Errorf("unknown origin = %+v, want all needs by title", got)
	}

	if _, err := f.svc.NearbyNeeds(ctx, f.near); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("ngo err = %v, want ErrForbidden", err)
	}
}
