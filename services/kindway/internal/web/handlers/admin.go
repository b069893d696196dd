package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/jredh-dev/kindway/services/kindway/internal/apperr"
	"github.com/jredh-dev/kindway/services/kindway/pkg/models"
)

// AdminStats returns the platform statistics shown on the staff dashboard.
func (h *Handler) AdminStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.db.Stats(h.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonOK(w, http.StatusOK, stats)
}

// AdminListNGOs lists NGOs, optionally filtered by ?status=.
func (h *Handler) AdminListNGOs(w http.ResponseWriter, r *http.Request) {
	status := models.VerificationStatus(strings.ToUpper(r.URL.Query().Get("status")))
	ngos, err := h.svc.Verification.List(r.Context(), status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonOK(w, http.StatusOK, ngos)
}

// AdminSetVerification records a verification decision. Verifying an NGO
// sends its congratulation email once.
func (h *Handler) AdminSetVerification(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Status models.VerificationStatus `json:"status"`
	}
	if !decode(w, r, &in) {
		return
	}
	ngo, err := h.svc.Verification.SetStatus(r.Context(), chi.URLParam(r, "id"), in.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonOK(w, http.StatusOK, ngo)
}

// AdminCreateCategory adds a donation category.
func (h *Handler) AdminCreateCategory(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name string `json:"name"`
	}
	if !decode(w, r, &in) {
		return
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		writeError(w, r, fmt.Errorf("category name is required: %w", apperr.ErrInvalidInput))
		return
	}
	c := &models.Category{ID: uuid.New().String(), Name: name, CreatedAt: h.now()}
	if err := h.db.CreateCategory(c); err != nil {
		writeError(w, r, fmt.Errorf("category %q: %w", name, err))
		return
	}
	jsonOK(w, http.StatusCreated, c)
}

// AdminFeatureStory shows or hides a story publicly.
func (h *Handler) AdminFeatureStory(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Featured bool `json:"featured"`
	}
	if !decode(w, r, &in) {
		return
	}
	st, err := h.svc.Community.FeatureStory(r.Context(), chi.URLParam(r, "id"), in.Featured)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonOK(w, http.StatusOK, st)
}
