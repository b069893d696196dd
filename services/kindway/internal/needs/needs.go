// Package needs lets verified NGOs publish requests for goods.
package needs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jredh-dev/kindway/services/kindway/internal/apperr"
	"github.com/jredh-dev/kindway/services/kindway/internal/database"
	"github.com/jredh-dev/kindway/services/kindway/pkg/models"
)

// Service manages needs.
type Service struct {
	db *database.DB
}

// NewService creates a needs service.
func NewService(db *database.DB) *Service {
	return &Service{db: db}
}

// CreateInput describes a new need.
type CreateInput struct {
	CategoryID  string `json:"category_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Create publishes an active need for a verified NGO.
func (s *Service) Create(ctx context.Context, ngo *models.User, in CreateInput) (*models.Need, error) {
	profile, err := s.verifiedNGO(ngo)
	if err != nil {
		return nil, err
	}

	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return nil, fmt.Errorf("title is required: %w", apperr.ErrInvalidInput)
	}
	if in.CategoryID == "" {
		return nil, fmt.Errorf("category is required: %w", apperr.ErrInvalidInput)
	}
	category, err := s.db.GetCategory(in.CategoryID)
	if err != nil {
		return nil, fmt.Errorf("get category: %w", err)
	}
	if category == nil {
		return nil, fmt.Errorf("category %s: %w", in.CategoryID, apperr.ErrNotFound)
	}

	n := &models.Need{
		ID:          uuid.New().String(),
		NGOID:       ngo.ID,
		NGOName:     profile.Name,
		CategoryID:  in.CategoryID,
		Title:       in.Title,
		Description: strings.TrimSpace(in.Description),
		Active:      true,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.db.CreateNeed(n); err != nil {
		return nil, fmt.Errorf("create need: %w", err)
	}
	return n, nil
}

// Deactivate closes a need. Only its NGO may do so; closing twice is fine.
func (s *Service) Deactivate(ctx context.Context, ngo *models.User, needID string) (*models.Need, error) {
	n, err := s.db.GetNeed(needID)
	if err != nil {
		return nil, fmt.Errorf("get need: %w", err)
	}
	if n == nil {
		return nil, fmt.Errorf("need %s: %w", needID, apperr.ErrNotFound)
	}
	if ngo == nil || n.NGOID != ngo.ID {
		return nil, fmt.Errorf("need %s belongs to another ngo: %w", needID, apperr.ErrForbidden)
	}
	if n.Active {
		if err := s.db.DeactivateNeed(needID); err != nil {
			return nil, fmt.Errorf("deactivate need: %w", err)
		}
		n.Active = false
	}
	return n, nil
}

// Get returns a need by id.
func (s *Service) Get(ctx context.Context, needID string) (*models.Need, error) {
	n, err := s.db.GetNeed(needID)
	if err != nil {
		return nil, fmt.Errorf("get need: %w", err)
	}
	if n == nil {
		return nil, fmt.Errorf("need %s: %w", needID, apperr.ErrNotFound)
	}
	return n, nil
}

// ListActive returns the open needs of verified NGOs, newest first.
func (s *Service) ListActive(ctx context.Context) ([]models.Need, error) {
	needs, err := s.db.ListActiveNeeds()
	if err != nil {
		return nil, fmt.Errorf("list needs: %w", err)
	}
	return needs, nil
}

// ListByNGO returns every need the NGO posted, closed ones included.
func (s *Service) ListByNGO(ctx context.Context, ngo *models.User) ([]models.Need, error) {
	if !ngo.IsNGO() {
		return nil, fmt.Errorf("only ngos post needs: %w", apperr.ErrForbidden)
	}
	needs, err := s.db.ListNeedsByNGO(ngo.ID)
	if err != nil {
		return nil, fmt.Errorf("list needs: %w", err)
	}
	return needs, nil
}

func (s *Service) verifiedNGO(u *models.User) (*models.NGOProfile, error) {
	if !u.IsNGO() {
		return nil, fmt.Errorf("only ngos post needs: %w", apperr.ErrForbidden)
	}
	ngo, err := s.db.GetNGO(u.ID)
	if err != nil {
		return nil, fmt.Errorf("get ngo: %w", err)
	}
	if ngo == nil || !ngo.Profile.Verified() {
		return nil, fmt.Errorf("ngo %s is not verified: %w", u.ID, apperr.ErrForbidden)
	}
	return &ngo.Profile, nil
}
