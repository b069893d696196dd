// Package profiles manages donor and NGO profile details, including the
// best-effort geocoding of pincodes and addresses.
package profiles

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jredh-dev/kindway/services/kindway/internal/apperr"
	"github.com/jredh-dev/kindway/services/kindway/internal/database"
	"github.com/jredh-dev/kindway/services/kindway/internal/geo"
	"github.com/jredh-dev/kindway/services/kindway/pkg/identity"
	"github.com/jredh-dev/kindway/services/kindway/pkg/models"
)

// Service edits profiles.
type Service struct {
	db      *database.DB
	geo     geo.Lookup
	country string
	now     func() time.Time
}

// NewService creates a profile service. country scopes donor pincode
// lookups, e.g. "India".
func NewService(db *database.DB, lookup geo.Lookup, country string) *Service {
	return &Service{
		db:      db,
		geo:     lookup,
		country: country,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// ChooseRole assigns a role to a user who signed in without one and
// creates the matching empty profile. A role can be chosen only once.
func (s *Service) ChooseRole(ctx context.Context, user *models.User, role models.Role) (*models.User, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("role must be DONOR or NGO: %w", apperr.ErrInvalidInput)
	}
	ok, err := s.db.SetUserRole(user.ID, role)
	if err != nil {
		return nil, fmt.Errorf("set role: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("role already chosen: %w", apperr.ErrInvalidTransition)
	}

	now := s.now()
	switch role {
	case models.RoleDonor:
		err = s.db.SaveDonorProfile(&models.DonorProfile{UserID: user.ID, FullName: user.Name, UpdatedAt: now})
	case models.RoleNGO:
		err = s.db.CreateNGOProfile(&models.NGOProfile{
			UserID:             user.ID,
			Name:               user.Name,
			VerificationStatus: models.VerificationPending,
			CreatedAt:          now,
			UpdatedAt:          now,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("create profile: %w", err)
	}

	updated := *user
	updated.Role = role
	return &updated, nil
}

// DonorInput holds editable donor fields.
type DonorInput struct {
	FullName    string `json:"full_name"`
	PhoneNumber string `json:"phone_number"`
	Pincode     string `json:"pincode"`
}

// Donor returns the donor's profile, empty if never saved.
func (s *Service) Donor(ctx context.Context, user *models.User) (*models.DonorProfile, error) {
	if !user.IsDonor() {
		return nil, fmt.Errorf("not a donor: %w", apperr.ErrForbidden)
	}
	p, err := s.db.GetDonorProfile(user.ID)
	if err != nil {
		return nil, fmt.Errorf("get donor profile: %w", err)
	}
	if p == nil {
		p = &models.DonorProfile{UserID: user.ID}
	}
	return p, nil
}

// UpdateDonor saves the donor's details. A changed pincode drops the old
// coordinate and looks up a new one; if the lookup fails the profile is
// saved without a location.
func (s *Service) UpdateDonor(ctx context.Context, user *models.User, in DonorInput) (*models.DonorProfile, error) {
	p, err := s.Donor(ctx, user)
	if err != nil {
		return nil, err
	}

	pincode := identity.NormalizePincode(in.Pincode)
	if pincode != p.Pincode {
		p.Location = nil
	}
	p.FullName = strings.TrimSpace(in.FullName)
	p.PhoneNumber = identity.NormalizePhone(in.PhoneNumber)
	p.Pincode = pincode
	p.UpdatedAt = s.now()

	if p.Location == nil && p.Pincode != "" {
		if c, ok := s.geo.Resolve(ctx, geo.PincodeQuery(p.Pincode, s.country)); ok {
			p.Location = &c
		}
	}

	if err := s.db.SaveDonorProfile(p); err != nil {
		return nil, fmt.Errorf("save donor profile: %w", err)
	}
	return p, nil
}

// NGOInput holds editable NGO fields. A nil CategoryIDs leaves the
// accepted categories unchanged.
type NGOInput struct {
	Name             string   `json:"ngo_name"`
	Address          string   `json:"address"`
	MissionStatement string   `json:"mission_statement"`
	DocumentRef      string   `json:"document_ref"`
	CategoryIDs      []string `json:"accepted_category_ids"`
}

// NGO returns the NGO's account and profile.
func (s *Service) NGO(ctx context.Context, user *models.User) (*models.NGO, error) {
	if !user.IsNGO() {
		return nil, fmt.Errorf("not an ngo: %w", apperr.ErrForbidden)
	}
	n, err := s.db.GetNGO(user.ID)
	if err != nil {
		return nil, fmt.Errorf("get ngo: %w", err)
	}
	if n == nil {
		return nil, fmt.Errorf("ngo profile %s: %w", user.ID, apperr.ErrNotFound)
	}
	return n, nil
}

// UpdateNGO saves the NGO's details, creating a PENDING profile when none
// exists. A changed address is geocoded again. Verification state is never
// changed here.
func (s *Service) UpdateNGO(ctx context.Context, user *models.User, in NGOInput) (*models.NGO, error) {
	if !user.IsNGO() {
		return nil, fmt.Errorf("not an ngo: %w", apperr.ErrForbidden)
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("ngo name is required: %w", apperr.ErrInvalidInput)
	}

	var categories []string
	if in.CategoryIDs != nil {
		categories = dedupe(in.CategoryIDs)
		ok, err := s.db.CategoriesExist(categories)
		if err != nil {
			return nil, fmt.Errorf("check categories: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("unknown category: %w", apperr.ErrInvalidInput)
		}
	}

	existing, err := s.db.GetNGO(user.ID)
	if err != nil {
		return nil, fmt.Errorf("get ngo: %w", err)
	}

	now := s.now()
	var p models.NGOProfile
	if existing != nil {
		p = existing.Profile
	} else {
		p = models.NGOProfile{UserID: user.ID, VerificationStatus: models.VerificationPending, CreatedAt: now}
	}

	address := strings.TrimSpace(in.Address)
	if address != p.Address {
		p.Location = nil
	}
	p.Name = name
	p.Address = address
	p.MissionStatement = strings.TrimSpace(in.MissionStatement)
	p.DocumentRef = strings.TrimSpace(in.DocumentRef)
	p.UpdatedAt = now

	if p.Location == nil && p.Address != "" {
		if c, ok := s.geo.Resolve(ctx, p.Address); ok {
			p.Location = &c
		}
	}

	if existing != nil {
		err = s.db.UpdateNGOProfile(&p)
	} else {
		err = s.db.CreateNGOProfile(&p)
	}
	if err != nil {
		return nil, fmt.Errorf("save ngo profile: %w", err)
	}

	if in.CategoryIDs != nil {
		if err := s.db.ReplaceNGOCategories(user.ID, categories); err != nil {
			return nil, fmt.Errorf("save categories: %w", err)
		}
	}
	return s.NGO(ctx, user)
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
