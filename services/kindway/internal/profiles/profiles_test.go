package profiles

import (
	"context"
	"errors"
	"testing"

	"github.com/jredh-dev/kindway/services/kindway/internal/apperr"
	"github.com/jredh-dev/kindway/services/kindway/internal/database/dbtest"
	"github.com/jredh-dev/kindway/services/kindway/pkg/models"
)

// fakeLookup resolves from a fixed table and records its queries.
type fakeLookup struct {
	places  map[string]models.Coordinate
	queries []string
}

func (f *fakeLookup) Resolve(_ context.Context, location string) (models.Coordinate, bool) {
	f.queries = append(f.queries, location)
	c, ok := f.places[location]
	return c, ok
}

func newLookup() *fakeLookup {
	return &fakeLookup{places: map[string]models.Coordinate{
		"560001, India":         {Lat: 12.97, Lng: 77.59},
		"110001, India":         {Lat: 28.63, Lng: 77.22},
		"12 MG Road, Bengaluru": {Lat: 12.975, Lng: 77.606},
	}}
}

func TestUpdateDonor_Geocoding(t *testing.T) {
	db := dbtest.Open(t)
	lookup := newLookup()
	svc := NewService(db, lookup, "India")
	ctx := context.Background()
	donor := dbtest.User(t, db, "donor@example.com", models.RoleDonor)

	p, err := svc.UpdateDonor(ctx, donor, DonorInput{FullName: " Asha ", PhoneNumber: "98765 43210", Pincode: "560 001"})
	if err != nil {
		t.Fatalf("UpdateDonor: %v", err)
	}
	if p.FullName != "Asha" || p.PhoneNumber != "919876543210" || p.Pincode != "560001" {
		t.Errorf("profile = %+v", p)
	}
	if p.Location == nil || p.Location.Lat != 12.97 {
		t.Fatalf("Location = %+v, want Bengaluru", p.Location)
	}

	// Same pincode: no new lookup.
	if _, err := svc.UpdateDonor(ctx, donor, DonorInput{FullName: "Asha R", Pincode: "560001"}); err != nil {
		t.Fatalf("UpdateDonor: %v", err)
	}
	if len(lookup.queries) != 1 {
		t.Errorf("lookups = %v, want 1", lookup.queries)
	}

	// Changed pincode: coordinate replaced.
	p, _ = svc.UpdateDonor(ctx, donor, DonorInput{Pincode: "110001"})
	if p.Location == nil || p.Location.Lat != 28.63 {
		t.Errorf("Location = %+v, want Delhi", p.Location)
	}

	// Unresolvable pincode: coordinate cleared, save still succeeds.
	p, err = svc.UpdateDonor(ctx, donor, DonorInput{Pincode: "999999"})
	if err != nil {
		t.Fatalf("UpdateDonor with unknown pincode: %v", err)
	}
	if p.Location != nil {
		t.Errorf("Location = %+v, want nil", p.Location)
	}
	stored, _ := db.GetDonorProfile(donor.ID)
	if stored.Location != nil || stored.Pincode != "999999" {
		t.Errorf("stored = %+v", stored)
	}
}

func TestUpdateDonor_WrongRole(t *testing.T) {
	db := dbtest.Open(t)
	svc := NewService(db, newLookup(), "India")
	ngo := dbtest.NGO(t, db, "ngo@example.org", "Annapurna", models.VerificationVerified, nil)

	if _, err := svc.UpdateDonor(context.Background(), ngo, DonorInput{Pincode: "560001"}); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("err = %v, want ErrForbidden", err)
	}
}

func TestUpdateNGO(t *testing.T) {
	db := dbtest.Open(t)
	lookup := newLookup()
	svc := NewService(db, lookup, "India")
	ctx := context.Background()
	food := dbtest.Category(t, db, "Food")
	books := dbtest.Category(t, db, "Books")
	u := dbtest.NGO(t, db, "ngo@example.org", "Annapurna", models.VerificationVerified, nil)

	n, err := svc.UpdateNGO(ctx, u, NGOInput{
		Name:        "Annapurna Trust",
		Address:     "12 MG Road, Bengaluru",
		CategoryIDs: []string{food, books, food},
	})
	if err != nil {
		t.Fatalf("UpdateNGO: %v", err)
	}
	if n.Profile.Name != "Annapurna Trust" {
		t.Errorf("Name = %q", n.Profile.Name)
	}
	if n.Profile.Location == nil || n.Profile.Location.Lat != 12.975 {
		t.Errorf("Location = %+v", n.Profile.Location)
	}
	if len(n.Profile.CategoryIDs) != 2 {
		t.Errorf("CategoryIDs = %v, want 2", n.Profile.CategoryIDs)
	}
	if n.Profile.VerificationStatus != models.VerificationVerified {
		t.Errorf("VerificationStatus = %q, editing must not change it", n.Profile.VerificationStatus)
	}

	// Nil categories keep the current set.
	n, _ = svc.UpdateNGO(ctx, u, NGOInput{Name: "Annapurna Trust", Address: "12 MG Road, Bengaluru"})
	if len(n.Profile.CategoryIDs) != 2 {
		t.Errorf("CategoryIDs = %v, want unchanged", n.Profile.CategoryIDs)
	}

	// Unknown category rejected and nothing changes.
	if _, err := svc.UpdateNGO(ctx, u, NGOInput{Name: "X", CategoryIDs: []string{"nope"}}); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("unknown category err = %v, want ErrInvalidInput", err)
	}
	if _, err := svc.UpdateNGO(ctx, u, NGOInput{Name: " "}); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("blank name err = %v, want ErrInvalidInput", err)
	}
	n, _ = svc.NGO(ctx, u)
	if n.Profile.Name != "Annapurna Trust" {
		t.Errorf("Name after rejected edits = %q", n.Profile.Name)
	}

	// New address that cannot be resolved clears the old coordinate.
	n, _ = svc.UpdateNGO(ctx, u, NGOInput{Name: "Annapurna Trust", Address: "Unknown lane"})
	if n.Profile.Location != nil {
		t.Errorf("Location = %+v, want nil", n.Profile.Location)
	}
}

func TestChooseRole(t *testing.T) {
	db := dbtest.Open(t)
	svc := NewService(db, newLookup(), "India")
	ctx := context.Background()

	social := dbtest.User(t, db, "social@example.com", models.RoleNone)
	if _, err := svc.ChooseRole(ctx, social, "ADMIN"); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("invalid role err = %v, want ErrInvalidInput", err)
	}

	u, err := svc.ChooseRole(ctx, social, models.RoleNGO)
	if err != nil {
		t.Fatalf("ChooseRole: %v", err)
	}
	if u.Role != models.RoleNGO {
		t.Errorf("Role = %q", u.Role)
	}
	n, err := svc.NGO(ctx, u)
	if err != nil {
		t.Fatalf("NGO: %v", err)
	}
	if n.Profile.VerificationStatus != models.VerificationPending {
		t.Errorf("VerificationStatus = %q, want PENDING", n.Profile.VerificationStatus)
	}

	if _, err := svc.ChooseRole(ctx, u, models.RoleDonor); !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Errorf("second ChooseRole err = %v, want ErrInvalidTransition", err)
	}

	other := dbtest.User(t, db, "other@example.com", models.RoleNone)
	d, err := svc.ChooseRole(ctx, other, models.RoleDonor)
	if err != nil {
		t.Fatalf("ChooseRole donor: %v", err)
	}
	if p, err := svc.Donor(ctx, d); err != nil || p.UserID != other.ID {
		t.Errorf("Donor = %+v, %v", p, err)
	}
}
