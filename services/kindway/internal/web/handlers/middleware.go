package handlers

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/jredh-dev/kindway/services/kindway/pkg/models"
)

type contextKey string

// UserContextKey stores the authenticated user in request context.
const UserContextKey contextKey = "user"

const sessionCookie = "session"

// Authenticate attaches the caller to the request context when it presents
// a bearer token or a live session cookie. Anonymous requests pass through;
// RequireUser rejects them where needed. A presented but invalid bearer
// token is rejected outright.
func (h *Handler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if raw, ok := bearerToken(r); ok {
			user, ok := h.userFromToken(raw)
			if !ok {
				jsonError(w, "invalid token", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, withUser(r, user))
			return
		}

		cookie, err := r.Cookie(sessionCookie)
		if err != nil || cookie.Value == "" {
			next.ServeHTTP(w, r)
			return
		}
		user, _, err := h.svc.Auth.ValidateSession(cookie.Value)
		if err != nil {
			log.Printf("Session validation error: %v", err)
		}
		if user == nil {
			clearSessionCookie(w)
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, withUser(r, user))
	})
}

func (h *Handler) userFromToken(raw string) (*models.User, bool) {
	if h.svc.Tokens == nil {
		return nil, false
	}
	claims, err := h.svc.Tokens.Validate(raw)
	if err != nil {
		return nil, false
	}
	user, err := h.db.GetUserByID(claims.UserID)
	if err != nil {
		log.Printf("Token user lookup error: %v", err)
		return nil, false
	}
	return user, user != nil
}

// RequireUser rejects anonymous requests with 401.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetUserFromContext(r.Context()); !ok {
			jsonError(w, "authentication required", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireStaff rejects non-staff users with 403. Must run after RequireUser.
func RequireStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := GetUserFromContext(r.Context())
		if !ok || !user.IsStaff {
			jsonError(w, "staff only", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetUserFromContext extracts the authenticated user from request context.
func GetUserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(UserContextKey).(*models.User)
	return user, ok && user != nil
}

func currentUser(r *http.Request) *models.User {
	user, _ := GetUserFromContext(r.Context())
	return user
}

func withUser(r *http.Request, user *models.User) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), UserContextKey, user))
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return "", false
	}
	tok := strings.TrimSpace(h[7:])
	return tok, tok != ""
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, s *models.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    s.ID,
		Path:     "/",
		Expires:  s.ExpiresAt,
		MaxAge:   h.opts.SessionMaxAge,
		HttpOnly: true,
		Secure:   h.opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:   sessionCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
}
