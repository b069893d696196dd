package auth

import (
	"context"
	"errors"
	"testing"

	fbauth "firebase.google.com/go/v4/auth"
	"golang.org/x/crypto/bcrypt"

	"github.com/jredh-dev/kindway/services/kindway/internal/database/dbtest"
	"github.com/jredh-dev/kindway/services/kindway/pkg/models"
)

func newService(t *testing.T, v IDTokenVerifier) *Service {
	t.Helper()
	s := New(dbtest.Open(t), 3600, v)
	s.cost = bcrypt.MinCost
	return s
}

type fakeVerifier map[string]*fbauth.Token

func (f fakeVerifier) VerifyIDToken(_ context.Context, idToken string) (*fbauth.Token, error) {
	tok, ok := f[idToken]
	if !ok {
		return nil, errors.New("token expired")
	}
	return tok, nil
}

func TestRegisterAndLogin(t *testing.T) {
	s := newService(t, nil)
	ctx := context.Background()

	u, err := s.Register(ctx, " Asha.R@Gmail.com ", "correct horse", "Asha")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if u.Role != models.RoleNone || u.Email != "asha.r@gmail.com" {
		t.Errorf("user = %+v", u)
	}

	if _, err := s.Register(ctx, "asha.r+kindway@gmail.com", "another pass", "Dup"); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("normalized duplicate err = %v, want ErrEmailTaken", err)
	}

	session, got, err := s.Login(ctx, "ashar@googlemail.com", "correct horse", "127.0.0.1", "test")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if got.ID != u.ID || session.UserID != u.ID {
		t.Errorf("login user = %s, session user = %s, want %s", got.ID, session.UserID, u.ID)
	}

	vu, vs, err := s.ValidateSession(session.ID)
	if err != nil || vu == nil || vs == nil || vu.ID != u.ID {
		t.Fatalf("ValidateSession = %v, %v, %v", vu, vs, err)
	}

	if err := s.Logout(session.ID); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if vu, _, _ := s.ValidateSession(session.ID); vu != nil {
		t.Error("session should be gone after logout")
	}
}

func TestRegister_Validation(t *testing.T) {
	s := newService(t, nil)
	ctx := context.Background()

	tests := []struct {
		name     string
		email    string
		password string
		want     error
	}{
		{"bad email", "not-an-email", "long enough", ErrInvalidEmail},
		{"display name form", "Asha <a@b.co>", "long enough", ErrInvalidEmail},
		{"short password", "a@b.co", "short", ErrWeakPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.Register(ctx, tt.email, tt.password, ""); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLogin_Failures(t *testing.T) {
	s := newService(t, nil)
	ctx := context.Background()
	if _, err := s.Register(ctx, "a@b.co", "correct horse", ""); err != nil {
		t.Fatal(err)
	}

	if _, _, err := s.Login(ctx, "a@b.co", "wrong horse", "", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password err = %v", err)
	}
	if _, _, err := s.Login(ctx, "nobody@b.co", "correct horse", "", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown user err = %v", err)
	}
}

func TestSignInWithFirebase(t *testing.T) {
	v := fakeVerifier{
		"good": {UID: "g1", Claims: map[string]interface{}{
			"email": "Ravi@Example.com", "email_verified": true, "name": "Ravi",
		}},
		"unverified": {UID: "g2", Claims: map[string]interface{}{
			"email": "x@example.com", "email_verified": false,
		}},
	}
	s := newService(t, v)
	ctx := context.Background()

	_, u, created, err := s.SignInWithFirebase(ctx, "good", "", "")
	if err != nil {
		t.Fatalf("SignInWithFirebase: %v", err)
	}
	if !created || u.Role != models.RoleNone || u.Name != "Ravi" {
		t.Errorf("first sign-in: created=%v user=%+v", created, u)
	}

	_, again, created, err := s.SignInWithFirebase(ctx, "good", "", "")
	if err != nil || created || again.ID != u.ID {
		t.Errorf("second sign-in: created=%v id=%s err=%v", created, again.ID, err)
	}

	// Social accounts have no password.
	if _, _, err := s.Login(ctx, "ravi@example.com", "", "", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("password login on social account err = %v", err)
	}

	if _, _, _, err := s.SignInWithFirebase(ctx, "unverified", "", ""); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("unverified email err = %v, want ErrUnauthorized", err)
	}
	if _, _, _, err := s.SignInWithFirebase(ctx, "forged", "", ""); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("bad token err = %v, want ErrUnauthorized", err)
	}

	disabled := newService(t, nil)
	if _, _, _, err := disabled.SignInWithFirebase(ctx, "good", "", ""); !errors.Is(err, ErrFirebaseDisabled) {
		t.Errorf("disabled err = %v, want ErrFirebaseDisabled", err)
	}
}

func TestEnsureStaff(t *testing.T) {
	s := newService(t, nil)
	ctx := context.Background()

	u, err := s.EnsureStaff(ctx, "admin@kindway.org", "admin password")
	if err != nil {
		t.Fatalf("EnsureStaff: %v", err)
	}
	if !u.IsStaff {
		t.Error("seeded account should be staff")
	}

	again, err := s.EnsureStaff(ctx, "admin@kindway.org", "")
	if err != nil || again.ID != u.ID || !again.IsStaff {
		t.Errorf("EnsureStaff again = %+v, %v", again, err)
	}
	if _, _, err := s.Login(ctx, "admin@kindway.org", "admin password", "", ""); err != nil {
		t.Errorf("original password should still work: %v", err)
	}
}
