// Package contact forwards public contact form submissions to the site
// inbox. Submissions are stored first, so a failed send is retried by the
// outbox relay instead of failing the visitor's request.
package contact

import (
	"context"
	"fmt"
	"log"
	netmail "net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/jredh-dev/kindway/internal/mail"
	"github.com/jredh-dev/kindway/services/kindway/internal/apperr"
	"github.com/jredh-dev/kindway/services/kindway/internal/database"
	"github.com/jredh-dev/kindway/services/kindway/pkg/models"
)

// Field limits, in characters.
const (
	MaxNameLength    = 100
	MaxMessageLength = 4000
)

// Service accepts and forwards contact messages.
type Service struct {
	db        *database.DB
	publisher mail.Publisher
	inbox     string
	now       func() time.Time
}

// NewService creates a contact service delivering to inbox.
func NewService(db *database.DB, publisher mail.Publisher, inbox string) *Service {
	return &Service{
		db:        db,
		publisher: publisher,
		inbox:     inbox,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Input is a contact form submission.
type Input struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

// Submit validates and stores a submission, then tries to forward it. A
// failed send is logged and left for RetryPending.
func (s *Service) Submit(ctx context.Context, in Input) (*models.ContactMessage, error) {
	m := &models.ContactMessage{
		ID:          uuid.New().String(),
		Name:        strings.TrimSpace(in.Name),
		Email:       strings.TrimSpace(in.Email),
		Message:     strings.TrimSpace(in.Message),
		SubmittedAt: s.now(),
	}
	switch {
	case m.Name == "" || m.Email == "" || m.Message == "":
		return nil, fmt.Errorf("name, email and message are required: %w", apperr.ErrInvalidInput)
	case utf8.RuneCountInString(m.Name) > MaxNameLength:
		return nil, fmt.Errorf("name exceeds %d characters: %w", MaxNameLength, apperr.ErrInvalidInput)
	case utf8.RuneCountInString(m.Message) > MaxMessageLength:
		return nil, fmt.Errorf("message exceeds %d characters: %w", MaxMessageLength, apperr.ErrInvalidInput)
	}
	if addr, err := netmail.ParseAddress(m.Email); err != nil || addr.Address != m.Email {
		return nil, fmt.Errorf("invalid email address: %w", apperr.ErrInvalidInput)
	}

	// Stored as claimed so the relay leaves it alone while we send.
	m.Sent = true
	if err := s.db.CreateContactMessage(m); err != nil {
		return nil, fmt.Errorf("store contact message: %w", err)
	}
	if err := s.forward(ctx, m); err != nil {
		m.Sent = false
		if rerr := s.db.ReleaseContactMessage(m.ID); rerr != nil {
			log.Printf("contact: release %s: %v", m.ID, rerr)
		}
		log.Printf("contact: message %s not sent: %v", m.ID, err)
	}
	return m, nil
}

// RetryPending forwards every stored message that was never sent and
// reports how many went out.
func (s *Service) RetryPending(ctx context.Context) (int, error) {
	msgs, err := s.db.ListUnsentContactMessages()
	if err != nil {
		return 0, fmt.Errorf("list unsent contact messages: %w", err)
	}
	sent := 0
	for i := range msgs {
		if ctx.Err() != nil {
			return sent, ctx.Err()
		}
		m := &msgs[i]
		claimed, err := s.db.ClaimContactMessage(m.ID)
		if err != nil {
			return sent, fmt.Errorf("claim contact message: %w", err)
		}
		if !claimed {
			continue
		}
		if err := s.forward(ctx, m); err != nil {
			if rerr := s.db.ReleaseContactMessage(m.ID); rerr != nil {
				log.Printf("contact: release %s: %v", m.ID, rerr)
			}
			log.Printf("contact: message %s not sent: %v", m.ID, err)
			continue
		}
		sent++
	}
	return sent, nil
}

func (s *Service) forward(ctx context.Context, m *models.ContactMessage) error {
	email, err := mail.ContactEmail(s.inbox, m.Name, m.Email, m.Message)
	if err != nil {
		return err
	}
	if err := s.publisher.Publish(ctx, email); err != nil {
		return err
	}
	log.Printf("contact: message %s queued id=%s", m.ID, email.ID)
	return nil
}
