package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/jredh-dev/kindway/services/kindway/internal/apperr"
	"github.com/jredh-dev/kindway/services/kindway/internal/profiles"
	"github.com/jredh-dev/kindway/services/kindway/pkg/models"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type donorRegistration struct {
	credentials
	profiles.DonorInput
}

type ngoRegistration struct {
	credentials
	profiles.NGOInput
}

// authResponse is returned by every endpoint that opens a session.
type authResponse struct {
	User    *models.User `json:"user"`
	Profile interface{}  `json:"profile,omitempty"`
	Created bool         `json:"created,omitempty"`
}

// RegisterDonor creates a donor account with its profile and signs it in.
func (h *Handler) RegisterDonor(w http.ResponseWriter, r *http.Request) {
	var in donorRegistration
	if !decode(w, r, &in) {
		return
	}
	ctx := r.Context()

	user, err := h.svc.Auth.Register(ctx, in.Email, in.Password, strings.TrimSpace(in.FullName))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if user, err = h.svc.Profiles.ChooseRole(ctx, user, models.RoleDonor); err != nil {
		writeError(w, r, err)
		return
	}
	profile, err := h.svc.Profiles.UpdateDonor(ctx, user, in.DonorInput)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !h.signIn(w, r, in.credentials) {
		return
	}
	jsonOK(w, http.StatusCreated, authResponse{User: user, Profile: profile})
}

// RegisterNGO creates an NGO account awaiting verification and signs it in.
// Profile fields are checked before the account is created so a rejected
// registration leaves nothing behind.
func (h *Handler) RegisterNGO(w http.ResponseWriter, r *http.Request) {
	var in ngoRegistration
	if !decode(w, r, &in) {
		return
	}
	ctx := r.Context()

	if strings.TrimSpace(in.Name) == "" {
		writeError(w, r, fmt.Errorf("ngo name is required: %w", apperr.ErrInvalidInput))
		return
	}
	if len(in.CategoryIDs) > 0 {
		ok, err := h.db.CategoriesExist(in.CategoryIDs)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if !ok {
			writeError(w, r, fmt.Errorf("unknown category: %w", apperr.ErrInvalidInput))
			return
		}
	}

	user, err := h.svc.Auth.Register(ctx, in.Email, in.Password, strings.TrimSpace(in.Name))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if user, err = h.svc.Profiles.ChooseRole(ctx, user, models.RoleNGO); err != nil {
		writeError(w, r, err)
		return
	}
	ngo, err := h.svc.Profiles.UpdateNGO(ctx, user, in.NGOInput)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !h.signIn(w, r, in.credentials) {
		return
	}
	jsonOK(w, http.StatusCreated, authResponse{User: user, Profile: ngo})
}

func (h *Handler) signIn(w http.ResponseWriter, r *http.Request, c credentials) bool {
	session, _, err := h.svc.Auth.Login(r.Context(), c.Email, c.Password, r.RemoteAddr, r.UserAgent())
	if err != nil {
		writeError(w, r, err)
		return false
	}
	h.setSessionCookie(w, session)
	return true
}

// Login opens a session for email and password.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if !decode(w, r, &in) {
		return
	}
	session, user, err := h.svc.Auth.Login(r.Context(), in.Email, in.Password, r.RemoteAddr, r.UserAgent())
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.setSessionCookie(w, session)
	jsonOK(w, http.StatusOK, authResponse{User: user})
}

// Logout ends the current session, if any.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookie); err == nil && cookie.Value != "" {
		if err := h.svc.Auth.Logout(cookie.Value); err != nil {
			writeError(w, r, err)
			return
		}
	}
	clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// FirebaseSignIn exchanges a Firebase ID token for a session. New accounts
// have no role until they call POST /api/me/role.
func (h *Handler) FirebaseSignIn(w http.ResponseWriter, r *http.Request) {
	var in struct {
		IDToken string `json:"id_token"`
	}
	if !decode(w, r, &in) {
		return
	}
	if in.IDToken == "" {
		writeError(w, r, fmt.Errorf("id_token is required: %w", apperr.ErrInvalidInput))
		return
	}
	session, user, created, err := h.svc.Auth.SignInWithFirebase(r.Context(), in.IDToken, r.RemoteAddr, r.UserAgent())
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.setSessionCookie(w, session)
	jsonOK(w, http.StatusOK, authResponse{User: user, Created: created})
}

// Me returns the caller with their role's profile.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	resp := authResponse{User: user}

	var err error
	switch user.Role {
	case models.RoleDonor:
		resp.Profile, err = h.svc.Profiles.Donor(r.Context(), user)
	case models.RoleNGO:
		resp.Profile, err = h.svc.Profiles.NGO(r.Context(), user)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonOK(w, http.StatusOK, resp)
}

// ChooseRole sets the role of an account created through social sign-in.
func (h *Handler) ChooseRole(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Role models.Role `json:"role"`
	}
	if !decode(w, r, &in) {
		return
	}
	user, err := h.svc.Profiles.ChooseRole(r.Context(), currentUser(r), in.Role)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonOK(w, http.StatusOK, authResponse{User: user})
}

// IssueToken returns a bearer token for the caller.
func (h *Handler) IssueToken(w http.ResponseWriter, r *http.Request) {
	if h.svc.Tokens == nil {
		jsonError(w, "bearer tokens are disabled", http.StatusNotImplemented)
		return
	}
	tok, expires, err := h.svc.Tokens.Generate(currentUser(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonOK(w, http.StatusOK, map[string]interface{}{
		"token":      tok,
		"token_type": "Bearer",
		"expires_at": expires,
	})
}

// UpdateDonorProfile saves the caller's donor details.
func (h *Handler) UpdateDonorProfile(w http.ResponseWriter, r *http.Request) {
	var in profiles.DonorInput
	if !decode(w, r, &in) {
		return
	}
	p, err := h.svc.Profiles.UpdateDonor(r.Context(), currentUser(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonOK(w, http.StatusOK, p)
}

// UpdateNGOProfile saves the caller's NGO details.
func (h *Handler) UpdateNGOProfile(w http.ResponseWriter, r *http.Request) {
	var in profiles.NGOInput
	if !decode(w, r, &in) {
		return
	}
	n, err := h.svc.Profiles.UpdateNGO(r.Context(), currentUser(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonOK(w, http.StatusOK, n)
}
