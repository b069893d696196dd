// Package auth handles accounts and sessions: password registration and
// login, Firebase (Google) sign-in, session validation and the staff
// account seed.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	fbauth "firebase.google.com/go/v4/auth"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/jredh-dev/kindway/services/kindway/internal/database"
	"github.com/jredh-dev/kindway/services/kindway/pkg/identity"
	"github.com/jredh-dev/kindway/services/kindway/pkg/models"
)

const (
	bcryptCost        = 12
	minPasswordLength = 8
)

// IDTokenVerifier checks Firebase ID tokens. *fbauth.Client satisfies it.
type IDTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*fbauth.Token, error)
}

// Service handles authentication operations.
type Service struct {
	db       *database.DB
	maxAge   time.Duration
	cost     int
	verifier IDTokenVerifier
	now      func() time.Time
}

// New creates an auth service. sessionMaxAge is in seconds. verifier may
// be nil, which disables Firebase sign-in.
func New(db *database.DB, sessionMaxAge int, verifier IDTokenVerifier) *Service {
	return &Service{
		db:       db,
		maxAge:   time.Duration(sessionMaxAge) * time.Second,
		cost:     bcryptCost,
		verifier: verifier,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// HashPassword hashes a plaintext password with bcrypt.
func (s *Service) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword compares a plaintext password against a bcrypt hash.
func CheckPassword(password, hash string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// Register creates a password account without a role. Emails are unique
// after normalization, so "a.b+x@gmail.com" collides with "ab@gmail.com".
func (s *Service) Register(ctx context.Context, email, password, name string) (*models.User, error) {
	email, err := cleanEmail(email)
	if err != nil {
		return nil, err
	}
	if len(password) < minPasswordLength {
		return nil, ErrWeakPassword
	}
	hash, err := s.HashPassword(password)
	if err != nil {
		return nil, err
	}
	return s.createUser(email, strings.TrimSpace(name), hash)
}

// Login verifies credentials and opens a session.
func (s *Service) Login(ctx context.Context, email, password, ipAddress, userAgent string) (*models.Session, *models.User, error) {
	user, err := s.db.GetUserByEmailHash(identity.EmailHash(email))
	if err != nil {
		return nil, nil, fmt.Errorf("lookup user: %w", err)
	}
	if user == nil || user.PasswordHash == "" {
		return nil, nil, ErrInvalidCredentials
	}
	if err := CheckPassword(password, user.PasswordHash); err != nil {
		return nil, nil, ErrInvalidCredentials
	}

	session, err := s.openSession(user, ipAddress, userAgent)
	if err != nil {
		return nil, nil, err
	}
	return session, user, nil
}

// SignInWithFirebase verifies a Firebase ID token and opens a session,
// creating a role-less account on first sign-in. created reports whether
// the account is new.
func (s *Service) SignInWithFirebase(ctx context.Context, idToken, ipAddress, userAgent string) (session *models.Session, user *models.User, created bool, err error) {
	if s.verifier == nil {
		return nil, nil, false, ErrFirebaseDisabled
	}
	tok, err := s.verifier.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, nil, false, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	email, _ := tok.Claims["email"].(string)
	if verified, _ := tok.Claims["email_verified"].(bool); !verified || email == "" {
		return nil, nil, false, fmt.Errorf("%w: email not verified by provider", ErrUnauthorized)
	}
	name, _ := tok.Claims["name"].(string)

	user, err = s.db.GetUserByEmailHash(identity.EmailHash(email))
	if err != nil {
		return nil, nil, false, fmt.Errorf("lookup user: %w", err)
	}
	if user == nil {
		email, err = cleanEmail(email)
		if err != nil {
			return nil, nil, false, err
		}
		user, err = s.createUser(email, strings.TrimSpace(name), "")
		if err != nil {
			return nil, nil, false, err
		}
		created = true
	}

	session, err = s.openSession(user, ipAddress, userAgent)
	if err != nil {
		return nil, nil, false, err
	}
	return session, user, created, nil
}

// ValidateSession looks up a session by ID and returns the associated user.
// Returns (nil, nil, nil) if the session does not exist or has expired.
func (s *Service) ValidateSession(sessionID string) (*models.User, *models.Session, error) {
	session, err := s.db.GetSession(sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("get session: %w", err)
	}
	if session == nil {
		return nil, nil, nil
	}

	user, err := s.db.GetUserByID(session.UserID)
	if err != nil {
		return nil, nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		_ = s.db.DeleteSession(sessionID)
		return nil, nil, nil
	}
	return user, session, nil
}

// Logout deletes a session.
func (s *Service) Logout(sessionID string) error {
	return s.db.DeleteSession(sessionID)
}

// CleanExpiredSessions removes all expired sessions.
func (s *Service) CleanExpiredSessions() error {
	return s.db.DeleteExpiredSessions()
}

// EnsureStaff makes sure a staff account exists for email. A new account
// gets password, or a random one when password is empty; an existing
// account keeps its password and is granted staff.
func (s *Service) EnsureStaff(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.db.GetUserByEmailHash(identity.EmailHash(email))
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if user == nil {
		if password == "" {
			if password, err = randomPassword(); err != nil {
				return nil, err
			}
		}
		if user, err = s.Register(ctx, email, password, "Kindway staff"); err != nil {
			return nil, err
		}
	}
	if !user.IsStaff {
		if err := s.db.SetStaff(user.ID, true); err != nil {
			return nil, fmt.Errorf("grant staff: %w", err)
		}
		user.IsStaff = true
	}
	return user, nil
}

func (s *Service) createUser(email, name, passwordHash string) (*models.User, error) {
	existing, err := s.db.GetUserByEmailHash(identity.EmailHash(email))
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	now := s.now()
	user := &models.User{
		ID:           uuid.New().String(),
		Email:        email,
		EmailHash:    identity.EmailHash(email),
		Name:         name,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
		LastLoginAt:  now,
	}
	if err := s.db.CreateUser(user); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

func (s *Service) openSession(user *models.User, ipAddress, userAgent string) (*models.Session, error) {
	now := s.now()
	session := &models.Session{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		ExpiresAt: now.Add(s.maxAge),
		CreatedAt: now,
		IPAddress: ipAddress,
		UserAgent: userAgent,
	}
	if err := s.db.CreateSession(session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	if err := s.db.UpdateLastLogin(user.ID, now); err != nil {
		return nil, fmt.Errorf("update last login: %w", err)
	}
	return session, nil
}

func cleanEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}

func randomPassword() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("random password: %w", err)
	}
	return hex.EncodeToString(b), nil
}
