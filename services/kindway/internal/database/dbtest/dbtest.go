// Package dbtest provides throwaway databases and fixtures for tests.
package dbtest

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/jredh-dev/kindway/services/kindway/internal/database"
	"github.com/jredh-dev/kindway/services/kindway/pkg/identity"
	"github.com/jredh-dev/kindway/services/kindway/pkg/models"
)

// Open returns a fresh database in a temporary directory.
func Open(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(t.TempDir() + "/test.db")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// User inserts a user with the given role.
func User(t *testing.T, db *database.DB, email string, role models.Role) *models.User {
	t.Helper()
	now := time.Now().UTC()
	u := &models.User{
		ID:          uuid.New().String(),
		Email:       email,
		EmailHash:   identity.EmailHash(email),
		Name:        email,
		Role:        role,
		CreatedAt:   now,
		UpdatedAt:   now,
		LastLoginAt: now,
	}
	if err := db.CreateUser(u); err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return u
}

// Donor inserts a donor with a profile located at loc (may be nil).
func Donor(t *testing.T, db *database.DB, email string, loc *models.Coordinate) *models.User {
	t.Helper()
	u := User(t, db, email, models.RoleDonor)
	p := &models.DonorProfile{UserID: u.ID, FullName: email, Location: loc, UpdatedAt: time.Now().UTC()}
	if err := db.SaveDonorProfile(p); err != nil {
		t.Fatalf("save donor profile: %v", err)
	}
	return u
}

// NGO inserts an NGO account and profile accepting the given categories.
func NGO(t *testing.T, db *database.DB, email, name string, status models.VerificationStatus, loc *models.Coordinate, categoryIDs ...string) *models.User {
	t.Helper()
	u := User(t, db, email, models.RoleNGO)
	now := time.Now().UTC()
	p := &models.NGOProfile{
		UserID:             u.ID,
		Name:               name,
		Address:            name + " address",
		VerificationStatus: status,
		Location:           loc,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := db.CreateNGOProfile(p); err != nil {
		t.Fatalf("create ngo profile: %v", err)
	}
	if len(categoryIDs) > 0 {
		if err := db.ReplaceNGOCategories(u.ID, categoryIDs); err != nil {
			t.Fatalf("set ngo categories: %v", err)
		}
	}
	return u
}

// Category returns the id of a seeded category.
func Category(t *testing.T, db *database.DB, name string) string {
	t.Helper()
	c, err := db.GetCategoryByName(name)
	if err != nil || c == nil {
		t.Fatalf("category %q: %v", name, err)
	}
	return c.ID
}

// Offer inserts a pending MATCHED offer from donor to ngo.
func Offer(t *testing.T, db *database.DB, donor, ngo *models.User, categoryID string) *models.Offer {
	t.Helper()
	now := time.Now().UTC()
	o := &models.Offer{
		ID:         uuid.New().String(),
		DonorID:    donor.ID,
		NGOID:      ngo.ID,
		CategoryID: categoryID,
		Title:      "Winter coats",
		Delivery:   models.DeliveryPickup,
		Status:     models.OfferPending,
		Flow:       models.FlowMatched,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := db.CreateOffer(o); err != nil {
		t.Fatalf("create offer: %v", err)
	}
	return o
}

// Coord is shorthand for a coordinate pointer.
func Coord(lat, lng float64) *models.Coordinate {
	return &models.Coordinate{Lat: lat, Lng: lng}
}
