package handlers

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jredh-dev/kindway/services/kindway/internal/community"
	"github.com/jredh-dev/kindway/services/kindway/internal/contact"
	"github.com/jredh-dev/kindway/services/kindway/internal/ical"
	"github.com/jredh-dev/kindway/services/kindway/pkg/models"
)

// Home serves the public landing page summary.
func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.Community.Home(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonOK(w, http.StatusOK, summary)
}

// Contact accepts a contact form submission. Delivery to the inbox
// happens in the background when the mail queue is down.
func (h *Handler) Contact(w http.ResponseWriter, r *http.Request) {
	var in contact.Input
	if !decode(w, r, &in) {
		return
	}
	m, err := h.svc.Contact.Submit(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonOK(w, http.StatusAccepted, map[string]string{"id": m.ID})
}

// ListEvents returns upcoming and past events by date.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.svc.Community.ListEvents(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonOK(w, http.StatusOK, events)
}

// CreateEvent publishes an event for the caller's verified NGO.
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var in community.EventInput
	if !decode(w, r, &in) {
		return
	}
	e, err := h.svc.Community.CreateEvent(r.Context(), currentUser(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonOK(w, http.StatusCreated, e)
}

// Volunteer signs the caller up for an event.
func (h *Handler) Volunteer(w http.ResponseWriter, r *http.Request) {
	e, err := h.svc.Community.Volunteer(r.Context(), currentUser(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonOK(w, http.StatusOK, e)
}

// EventsCalendar serves every event as an iCalendar feed.
func (h *Handler) EventsCalendar(w http.ResponseWriter, r *http.Request) {
	events, err := h.svc.Community.ListEvents(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.writeCalendar(w, ical.Feed{
		Name:        "Kindway events",
		Description: "Volunteering events hosted by verified NGOs",
	}, events)
}

// NGOCalendar serves one NGO's events as an iCalendar feed.
func (h *Handler) NGOCalendar(w http.ResponseWriter, r *http.Request) {
	ngo, events, err := h.svc.Community.ListNGOEvents(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.writeCalendar(w, ical.Feed{
		Name:        ngo.Profile.Name,
		Description: fmt.Sprintf("Events hosted by %s on Kindway", ngo.Profile.Name),
	}, events)
}

func (h *Handler) writeCalendar(w http.ResponseWriter, feed ical.Feed, events []models.Event) {
	feed.Domain = h.opts.CalendarDomain
	w.Header().Set("Content-Type", ical.ContentType)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(ical.Render(feed, events, h.now()))) //nolint:errcheck
}

// ListStories returns featured stories.
func (h *Handler) ListStories(w http.ResponseWriter, r *http.Request) {
	stories, err := h.svc.Community.ListStories(r.Context(), true)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonOK(w, http.StatusOK, stories)
}

// SubmitStory accepts a public story for staff review.
func (h *Handler) SubmitStory(w http.ResponseWriter, r *http.Request) {
	var in community.StoryInput
	if !decode(w, r, &in) {
		return
	}
	st, err := h.svc.Community.SubmitStory(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonOK(w, http.StatusCreated, st)
}
