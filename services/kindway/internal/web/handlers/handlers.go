// Package handlers implements the JSON API.
package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jredh-dev/kindway/services/kindway/internal/apperr"
	"github.com/jredh-dev/kindway/services/kindway/internal/auth"
	"github.com/jredh-dev/kindway/services/kindway/internal/community"
	"github.com/jredh-dev/kindway/services/kindway/internal/contact"
	"github.com/jredh-dev/kindway/services/kindway/internal/database"
	"github.com/jredh-dev/kindway/services/kindway/internal/matching"
	"github.com/jredh-dev/kindway/services/kindway/internal/messaging"
	"github.com/jredh-dev/kindway/services/kindway/internal/needs"
	"github.com/jredh-dev/kindway/services/kindway/internal/offers"
	"github.com/jredh-dev/kindway/services/kindway/internal/profiles"
	"github.com/jredh-dev/kindway/services/kindway/internal/token"
	"github.com/jredh-dev/kindway/services/kindway/internal/verification"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// Services bundles the domain services the API exposes.
type Services struct {
	Auth         *auth.Service
	Tokens       *token.Service
	Profiles     *profiles.Service
	Matching     *matching.Service
	Offers       *offers.Service
	Needs        *needs.Service
	Messaging    *messaging.Service
	Community    *community.Service
	Contact      *contact.Service
	Verification *verification.Service
}

// Options tunes cookie and calendar output.
type Options struct {
	SecureCookies  bool
	SessionMaxAge  int    // seconds
	CalendarDomain string // UID suffix in iCalendar feeds
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	db   *database.DB
	svc  Services
	opts Options
	now  func() time.Time
}

// New creates a handler.
func New(db *database.DB, svc Services, opts Options) *Handler {
	if opts.CalendarDomain == "" {
		opts.CalendarDomain = "kindway.org"
	}
	return &Handler{
		db:   db,
		svc:  svc,
		opts: opts,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Routes registers the API on r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Use(h.Authenticate)

		// Public.
		r.Post("/auth/register/donor", h.RegisterDonor)
		r.Post("/auth/register/ngo", h.RegisterNGO)
		r.Post("/auth/login", h.Login)
		r.Post("/auth/logout", h.Logout)
		r.Post("/auth/firebase", h.FirebaseSignIn)
		r.Get("/home", h.Home)
		r.Post("/contact", h.Contact)
		r.Get("/categories", h.ListCategories)
		r.Get("/ngos/search", h.SearchNGOs)
		r.Get("/ngos/{id}/calendar.ics", h.NGOCalendar)
		r.Get("/events", h.ListEvents)
		r.Get("/events/calendar.ics", h.EventsCalendar)
		r.Get("/stories", h.ListStories)
		r.Post("/stories", h.SubmitStory)

		// Signed in.
		r.Group(func(r chi.Router) {
			r.Use(RequireUser)

			r.Get("/me", h.Me)
			r.Post("/me/role", h.ChooseRole)
			r.Post("/me/token", h.IssueToken)
			r.Put("/me/donor-profile", h.UpdateDonorProfile)
			r.Put("/me/ngo-profile", h.UpdateNGOProfile)
			r.Get("/dashboard", h.Dashboard)

			r.Get("/matches", h.Matches)
			r.Post("/offers", h.CreateOffer)
			r.Get("/offers/sent", h.SentOffers)
			r.Get("/offers/received", h.ReceivedOffers)
			r.Get("/offers/{id}", h.GetOffer)
			r.Post("/offers/{id}/accept", h.AcceptOffer)
			r.Post("/offers/{id}/reject", h.RejectOffer)

			r.Get("/needs", h.ListNeeds)
			r.Post("/needs", h.CreateNeed)
			r.Post("/needs/{id}/deactivate", h.DeactivateNeed)
			r.Post("/needs/{id}/offers", h.OfferForNeed)

			r.Post("/events", h.CreateEvent)
			r.Post("/events/{id}/volunteer", h.Volunteer)

			r.Get("/conversations", h.ListConversations)
			r.Get("/conversations/{id}", h.OpenConversation)
			r.Get("/conversations/{id}/messages", h.ListMessages)
			r.Post("/conversations/{id}/messages", h.SendMessage)
			r.Get("/messages/unread", h.UnreadCount)
		})

		// Staff.
		r.Route("/admin", func(r chi.Router) {
			r.Use(RequireUser)
			r.Use(RequireStaff)

			r.Get("/stats", h.AdminStats)
			r.Get("/ngos", h.AdminListNGOs)
			r.Post("/ngos/{id}/verification", h.AdminSetVerification)
			r.Post("/categories", h.AdminCreateCategory)
			r.Post("/stories/{id}/feature", h.AdminFeatureStory)
		})
	})
}

func jsonOK(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("handlers: encode response: %v", err)
	}
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	jsonOK(w, status, map[string]string{"error": msg})
}

// decode reads a JSON body into v, rejecting unknown shapes with 400.
func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return false
	}
	return true
}

// writeError maps domain errors onto status codes. Unexpected errors are
// logged and reported as 500 without detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, apperr.ErrInvalidInput),
		errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, auth.ErrInvalidEmail):
		status = http.StatusBadRequest
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, apperr.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, apperr.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperr.ErrInvalidTransition),
		errors.Is(err, auth.ErrEmailTaken),
		errors.Is(err, database.ErrDuplicate):
		status = http.StatusConflict
	case errors.Is(err, auth.ErrFirebaseDisabled):
		status = http.StatusNotImplemented
	case errors.Is(err, apperr.ErrUpstreamUnavailable):
		status = http.StatusBadGateway
	}

	if status == http.StatusInternalServerError {
		log.Printf("handlers: %s %s: %v", r.Method, r.URL.Path, err)
		jsonError(w, "internal error", status)
		return
	}
	jsonError(w, err.Error(), status)
}
