// Package verification records admin review of NGOs and sends the
// one-time "you are verified" notice.
package verification

import (
	"context"
	"fmt"
	"log"

	"github.com/jredh-dev/kindway/internal/mail"
	"github.com/jredh-dev/kindway/services/kindway/internal/apperr"
	"github.com/jredh-dev/kindway/services/kindway/internal/database"
	"github.com/jredh-dev/kindway/services/kindway/pkg/models"
)

// Service changes verification status and notifies NGOs.
type Service struct {
	db        *database.DB
	publisher mail.Publisher
}

// NewService creates a verification service.
func NewService(db *database.DB, publisher mail.Publisher) *Service {
	return &Service{db: db, publisher: publisher}
}

// List returns NGOs newest first, optionally filtered by status.
func (s *Service) List(ctx context.Context, status models.VerificationStatus) ([]models.NGO, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("unknown status %q: %w", status, apperr.ErrInvalidInput)
	}
	ngos, err := s.db.ListNGOs(status)
	if err != nil {
		return nil, fmt.Errorf("list ngos: %w", err)
	}
	return ngos, nil
}

// SetStatus stores an NGO's review outcome. Reaching VERIFIED triggers the
// notice if it was never sent; a failed send does not fail the update.
func (s *Service) SetStatus(ctx context.Context, ngoID string, status models.VerificationStatus) (*models.NGO, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("unknown status %q: %w", status, apperr.ErrInvalidInput)
	}
	found, err := s.db.SetVerificationStatus(ngoID, status)
	if err != nil {
		return nil, fmt.Errorf("set verification status: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("ngo %s: %w", ngoID, apperr.ErrNotFound)
	}

	if status == models.VerificationVerified {
		if _, err := s.Notify(ctx, ngoID); err != nil {
			log.Printf("verification: notify %s: %v", ngoID, err)
		}
	}

	ngo, err := s.db.GetNGO(ngoID)
	if err != nil {
		return nil, fmt.Errorf("get ngo: %w", err)
	}
	if ngo == nil {
		return nil, fmt.Errorf("ngo %s: %w", ngoID, apperr.ErrNotFound)
	}
	return ngo, nil
}

// Notify sends the verified notice unless it was already sent. The flag is
// claimed before publishing so concurrent callers send at most once, and
// released again if publishing fails so a later retry can send it.
func (s *Service) Notify(ctx context.Context, ngoID string) (sent bool, err error) {
	claimed, err := s.db.ClaimVerificationNotice(ngoID)
	if err != nil {
		return false, fmt.Errorf("claim notice: %w", err)
	}
	if !claimed {
		return false, nil
	}

	ngo, err := s.db.GetNGO(ngoID)
	if err == nil && ngo == nil {
		err = fmt.Errorf("ngo %s: %w", ngoID, apperr.ErrNotFound)
	}
	var email mail.OutboundEmail
	if err == nil {
		email, err = mail.VerifiedEmail(ngo.Email, ngo.Profile.Name)
	}
	if err == nil {
		err = s.publisher.Publish(ctx, email)
	}
	if err != nil {
		if rerr := s.db.ReleaseVerificationNotice(ngoID); rerr != nil {
			log.Printf("verification: release notice %s: %v", ngoID, rerr)
		}
		log.Printf("verification: notice for %s not sent: %v", ngoID, err)
		return false, nil
	}

	log.Printf("verification: notice queued for %s id=%s", ngoID, email.ID)
	return true, nil
}

// RetryPending re-sends the notice to every verified NGO that has not
// received it. It returns how many were sent.
func (s *Service) RetryPending(ctx context.Context) (int, error) {
	ngos, err := s.db.ListUnnotifiedNGOs()
	if err != nil {
		return 0, fmt.Errorf("list unnotified ngos: %w", err)
	}
	sent := 0
	for _, n := range ngos {
		if ctx.Err() != nil {
			return sent, ctx.Err()
		}
		ok, err := s.Notify(ctx, n.Profile.UserID)
		if err != nil {
			return sent, err
		}
		if ok {
			sent++
		}
	}
	return sent, nil
}
