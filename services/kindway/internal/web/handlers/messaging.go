package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jredh-dev/kindway/services/kindway/internal/apperr"
)

// ListConversations returns the caller's conversations.
func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	convs, err := h.svc.Messaging.ListConversations(r.Context(), currentUser(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonOK(w, http.StatusOK, convs)
}

// OpenConversation returns a conversation with its history and marks it read.
func (h *Handler) OpenConversation(w http.ResponseWriter, r *http.Request) {
	thread, err := h.svc.Messaging.Open(r.Context(), chi.URLParam(r, "id"), currentUser(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonOK(w, http.StatusOK, thread)
}

// ListMessages serves polling clients: ?since= is an RFC 3339 timestamp and
// only newer messages are returned.
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	var since time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			writeError(w, r, fmt.Errorf("since must be RFC 3339: %w", apperr.ErrInvalidInput))
			return
		}
		since = t
	}
	msgs, err := h.svc.Messaging.Messages(r.Context(), chi.URLParam(r, "id"), currentUser(r), since)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonOK(w, http.StatusOK, msgs)
}

// SendMessage posts a message to a conversation.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Content string `json:"content"`
	}
	if !decode(w, r, &in) {
		return
	}
	m, err := h.svc.Messaging.Send(r.Context(), chi.URLParam(r, "id"), currentUser(r), in.Content)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonOK(w, http.StatusCreated, m)
}

// UnreadCount returns how many messages await the caller.
func (h *Handler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.Messaging.UnreadCount(r.Context(), currentUser(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonOK(w, http.StatusOK, map[string]int{"unread_count": n})
}
