package handlers

import (
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/jredh-dev/kindway/services/kindway/internal/apperr"
	"github.com/jredh-dev/kindway/services/kindway/internal/needs"
	"github.com/jredh-dev/kindway/services/kindway/internal/offers"
	"github.com/jredh-dev/kindway/services/kindway/pkg/models"
)

// ListCategories returns every donation category by name.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.db.ListCategories()
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonOK(w, http.StatusOK, cats)
}

// SearchNGOs finds verified NGOs near ?location= within ?radius= km.
func (h *Handler) SearchNGOs(w http.ResponseWriter, r *http.Request) {
	var radius float64
	if raw := r.URL.Query().Get("radius"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			writeError(w, r, fmt.Errorf("radius must be a positive number: %w", apperr.ErrInvalidInput))
			return
		}
		radius = v
	}
	res, err := h.svc.Matching.SearchNGOs(r.Context(), r.URL.Query().Get("location"), radius)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonOK(w, http.StatusOK, res)
}

// Matches returns the verified NGOs near the donor that accept
// ?category_id=.
func (h *Handler) Matches(w http.ResponseWriter, r *http.Request) {
	found, err := h.svc.Matching.MatchNGOs(r.Context(), currentUser(r), r.URL.Query().Get("category_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonOK(w, http.StatusOK, found)
}

// offerResponse pairs an offer with its conversation once accepted.
type offerResponse struct {
	*models.Offer
	ConversationID string `json:"conversation_id,omitempty"`
}

func (h *Handler) withConversation(o *models.Offer) (offerResponse, error) {
	resp := offerResponse{Offer: o}
	if o.Status != models.OfferAccepted {
		return resp, nil
	}
	conv, err := h.db.GetConversationByOffer(o.ID)
	if err != nil {
		return resp, err
	}
	if conv != nil {
		resp.ConversationID = conv.ID
	}
	return resp, nil
}

// CreateOffer records a donor's offer to an NGO.
func (h *Handler) CreateOffer(w http.ResponseWriter, r *http.Request) {
	var in offers.CreateInput
	if !decode(w, r, &in) {
		return
	}
	o, err := h.svc.Offers.Create(r.Context(), currentUser(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonOK(w, http.StatusCreated, o)
}

// OfferForNeed answers the need in the URL with an offer.
func (h *Handler) OfferForNeed(w http.ResponseWriter, r *http.Request) {
	var in offers.CreateInput
	if !decode(w, r, &in) {
		return
	}
	in.NeedID = chi.URLParam(r, "id")
	in.Flow = models.FlowNeed
	o, err := h.svc.Offers.Create(r.Context(), currentUser(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonOK(w, http.StatusCreated, o)
}

// SentOffers lists the donor's offers.
func (h *Handler) SentOffers(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Offers.ListSent(r.Context(), currentUser(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonOK(w, http.StatusOK, list)
}

// ReceivedOffers lists the offers made to the NGO.
func (h *Handler) ReceivedOffers(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Offers.ListReceived(r.Context(), currentUser(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonOK(w, http.StatusOK, list)
}

// GetOffer returns one offer to its donor or NGO.
func (h *Handler) GetOffer(w http.ResponseWriter, r *http.Request) {
	o, err := h.svc.Offers.Get(r.Context(), chi.URLParam(r, "id"), currentUser(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.writeOffer(w, r, o)
}

// AcceptOffer accepts an offer and returns it with its conversation.
func (h *Handler) AcceptOffer(w http.ResponseWriter, r *http.Request) {
	o, err := h.svc.Offers.Accept(r.Context(), chi.URLParam(r, "id"), currentUser(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.writeOffer(w, r, o)
}

// RejectOffer rejects an offer.
func (h *Handler) RejectOffer(w http.ResponseWriter, r *http.Request) {
	o, err := h.svc.Offers.Reject(r.Context(), chi.URLParam(r, "id"), currentUser(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.writeOffer(w, r, o)
}

func (h *Handler) writeOffer(w http.ResponseWriter, r *http.Request, o *models.Offer) {
	resp, err := h.withConversation(o)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonOK(w, http.StatusOK, resp)
}

// ListNeeds returns needs near a donor, every open need for anyone else,
// or with ?mine=true the NGO's own needs.
func (h *Handler) ListNeeds(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	ctx := r.Context()

	switch {
	case r.URL.Query().Get("mine") == "true":
		list, err := h.svc.Needs.ListByNGO(ctx, user)
		if err != nil {
			writeError(w, r, err)
			return
		}
		jsonOK(w, http.StatusOK, list)
	case user.IsDonor():
		list, err := h.svc.Matching.NearbyNeeds(ctx, user)
		if err != nil {
			writeError(w, r, err)
			return
		}
		jsonOK(w, http.StatusOK, list)
	default:
		list, err := h.svc.Needs.ListActive(ctx)
		if err != nil {
			writeError(w, r, err)
			return
		}
		jsonOK(w, http.StatusOK, list)
	}
}

// CreateNeed publishes a need for the caller's NGO.
func (h *Handler) CreateNeed(w http.ResponseWriter, r *http.Request) {
	var in needs.CreateInput
	if !decode(w, r, &in) {
		return
	}
	n, err := h.svc.Needs.Create(r.Context(), currentUser(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonOK(w, http.StatusCreated, n)
}

// DeactivateNeed closes a need.
func (h *Handler) DeactivateNeed(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.Needs.Deactivate(r.Context(), currentUser(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonOK(w, http.StatusOK, n)
}

// Dashboard summarises the caller's activity for their role.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	ctx := r.Context()

	unread, err := h.svc.Messaging.UnreadCount(ctx, user)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := map[string]interface{}{
		"user":         user,
		"unread_count": unread,
	}

	switch user.Role {
	case models.RoleDonor:
		profile, err := h.svc.Profiles.Donor(ctx, user)
		if err != nil {
			writeError(w, r, err)
			return
		}
		sent, err := h.svc.Offers.ListSent(ctx, user)
		if err != nil {
			writeError(w, r, err)
			return
		}
		nearby, err := h.svc.Matching.NearbyNeeds(ctx, user)
		if err != nil {
			writeError(w, r, err)
			return
		}
		out["profile"] = profile
		out["offers"] = sent
		out["nearby_needs"] = nearby
	case models.RoleNGO:
		ngo, err := h.svc.Profiles.NGO(ctx, user)
		if err != nil {
			writeError(w, r, err)
			return
		}
		out["profile"] = ngo
		if ngo.Profile.Verified() {
			received, err := h.svc.Offers.ListReceived(ctx, user)
			if err != nil {
				writeError(w, r, err)
				return
			}
			own, err := h.svc.Needs.ListByNGO(ctx, user)
			if err != nil {
				writeError(w, r, err)
				return
			}
			out["offers"] = received
			out["needs"] = own
		}
	}
	jsonOK(w, http.StatusOK, out)
}
