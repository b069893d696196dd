// Package offers implements the offer lifecycle: a donor proposes goods to
// one NGO, and the NGO accepts or rejects the proposal exactly once.
//
//	PENDING ──accept──▶ ACCEPTED   (opens the offer's conversation)
//	   │
//	   └────reject──▶ REJECTED
//
// Repeating the action that already happened is a no-op. Attempting the
// opposite action on a settled offer fails with apperr.ErrInvalidTransition.
package offers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jredh-dev/kindway/services/kindway/internal/apperr"
	"github.com/jredh-dev/kindway/services/kindway/internal/database"
	"github.com/jredh-dev/kindway/services/kindway/pkg/models"
)

// Trigger reacts to an offer entering ACCEPTED. It runs inside the
// accepting transaction; an error rolls the acceptance back.
type Trigger interface {
	OnAcceptedTx(ctx context.Context, tx *database.Tx, offer *models.Offer) (*models.Conversation, bool, error)
}

// Service manages offers.
type Service struct {
	db      *database.DB
	trigger Trigger
	now     func() time.Time
}

// NewService creates an offer service. trigger runs synchronously with
// every accept, retries included.
func NewService(db *database.DB, trigger Trigger) *Service {
	return &Service{
		db:      db,
		trigger: trigger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// CreateInput describes a new offer. For FlowNeed, NeedID selects the need
// and NGOID and CategoryID default to the need's.
type CreateInput struct {
	NGOID       string              `json:"ngo_id"`
	NeedID      string              `json:"need_id,omitempty"`
	CategoryID  string              `json:"category_id"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Delivery    models.DeliveryMode `json:"delivery_type"`
	Flow        models.OfferFlow    `json:"flow"`
}

// Create records a PENDING offer from donor.
//
// Only offers made through matching (FlowMatched) are checked against the
// NGO's accepted categories. Direct offers and offers answering a Need
// skip that check.
func (s *Service) Create(ctx context.Context, donor *models.User, in CreateInput) (*models.Offer, error) {
	if !donor.IsDonor() {
		return nil, fmt.Errorf("only donors can make offers: %w", apperr.ErrForbidden)
	}

	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	if in.Flow == "" {
		in.Flow = models.FlowMatched
	}
	switch in.Flow {
	case models.FlowMatched, models.FlowDirect, models.FlowNeed:
	default:
		return nil, fmt.Errorf("unknown flow %q: %w", in.Flow, apperr.ErrInvalidInput)
	}
	if in.Title == "" {
		return nil, fmt.Errorf("title is required: %w", apperr.ErrInvalidInput)
	}
	if !in.Delivery.Valid() {
		return nil, fmt.Errorf("delivery type must be PICKUP or DROP_OFF: %w", apperr.ErrInvalidInput)
	}

	if in.Flow == models.FlowNeed {
		if err := s.applyNeed(&in); err != nil {
			return nil, err
		}
	} else {
		in.NeedID = ""
	}

	if in.CategoryID == "" {
		return nil, fmt.Errorf("category is required: %w", apperr.ErrInvalidInput)
	}
	category, err := s.db.GetCategory(in.CategoryID)
	if err != nil {
		return nil, fmt.Errorf("get category: %w", err)
	}
	if category == nil {
		return nil, fmt.Errorf("category %s: %w", in.CategoryID, apperr.ErrNotFound)
	}

	if in.NGOID == "" {
		return nil, fmt.Errorf("ngo is required: %w", apperr.ErrInvalidInput)
	}
	ngo, err := s.db.GetNGO(in.NGOID)
	if err != nil {
		return nil, fmt.Errorf("get ngo: %w", err)
	}
	if ngo == nil {
		return nil, fmt.Errorf("ngo %s: %w", in.NGOID, apperr.ErrNotFound)
	}
	if !ngo.Profile.Verified() {
		return nil, fmt.Errorf("ngo %s is not verified: %w", in.NGOID, apperr.ErrForbidden)
	}
	if in.Flow == models.FlowMatched && !ngo.Profile.Accepts(in.CategoryID) {
		return nil, fmt.Errorf("ngo %s does not accept %s: %w", in.NGOID, category.Name, apperr.ErrForbidden)
	}

	now := s.now()
	o := &models.Offer{
		ID:          uuid.New().String(),
		DonorID:     donor.ID,
		NGOID:       in.NGOID,
		NeedID:      in.NeedID,
		CategoryID:  in.CategoryID,
		Title:       in.Title,
		Description: in.Description,
		Delivery:    in.Delivery,
		Status:      models.OfferPending,
		Flow:        in.Flow,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.db.CreateOffer(o); err != nil {
		return nil, fmt.Errorf("create offer: %w", err)
	}
	return o, nil
}

// applyNeed resolves the need an offer answers and fills in its NGO and
// default category.
func (s *Service) applyNeed(in *CreateInput) error {
	if in.NeedID == "" {
		return fmt.Errorf("need is required: %w", apperr.ErrInvalidInput)
	}
	need, err := s.db.GetNeed(in.NeedID)
	if err != nil {
		return fmt.Errorf("get need: %w", err)
	}
	if need == nil {
		return fmt.Errorf("need %s: %w", in.NeedID, apperr.ErrNotFound)
	}
	if !need.Active {
		return fmt.Errorf("need %s is closed: %w", in.NeedID, apperr.ErrForbidden)
	}
	if in.NGOID != "" && in.NGOID != need.NGOID {
		return fmt.Errorf("need %s belongs to another ngo: %w", in.NeedID, apperr.ErrInvalidInput)
	}
	in.NGOID = need.NGOID
	if in.CategoryID == "" {
		in.CategoryID = need.CategoryID
	}
	return nil
}

// Accept moves the offer to ACCEPTED and opens its conversation. Both
// happen in one transaction: an accepted offer always has its thread.
func (s *Service) Accept(ctx context.Context, offerID string, actor *models.User) (*models.Offer, error) {
	var onSettled func(*database.Tx, *models.Offer) error
	if s.trigger != nil {
		onSettled = func(tx *database.Tx, o *models.Offer) error {
			_, _, err := s.trigger.OnAcceptedTx(ctx, tx, o)
			return err
		}
	}
	return s.transition(offerID, actor, models.OfferAccepted, onSettled)
}

// Reject moves the offer to REJECTED.
func (s *Service) Reject(ctx context.Context, offerID string, actor *models.User) (*models.Offer, error) {
	return s.transition(offerID, actor, models.OfferRejected, nil)
}

func (s *Service) transition(offerID string, actor *models.User, to models.OfferStatus, onSettled func(*database.Tx, *models.Offer) error) (*models.Offer, error) {
	o, err := s.db.GetOffer(offerID)
	if err != nil {
		return nil, fmt.Errorf("get offer: %w", err)
	}
	if o == nil {
		return nil, fmt.Errorf("offer %s: %w", offerID, apperr.ErrNotFound)
	}
	if actor == nil || o.NGOID != actor.ID {
		return nil, fmt.Errorf("offer %s belongs to another ngo: %w", offerID, apperr.ErrForbidden)
	}

	// The returned state shows whether our update landed or someone
	// settled the offer first.
	o, err = s.db.SettleOffer(offerID, to, onSettled)
	if err != nil {
		return nil, fmt.Errorf("settle offer %s: %w", offerID, err)
	}
	if o == nil {
		return nil, fmt.Errorf("offer %s: %w", offerID, apperr.ErrNotFound)
	}
	if o.Status != to {
		return nil, fmt.Errorf("offer %s is %s, cannot move to %s: %w", offerID, o.Status, to, apperr.ErrInvalidTransition)
	}
	return o, nil
}

// Get returns an offer visible to actor: its donor or its NGO.
func (s *Service) Get(ctx context.Context, offerID string, actor *models.User) (*models.Offer, error) {
	o, err := s.db.GetOffer(offerID)
	if err != nil {
		return nil, fmt.Errorf("get offer: %w", err)
	}
	if o == nil || actor == nil || (o.DonorID != actor.ID && o.NGOID != actor.ID) {
		return nil, fmt.Errorf("offer %s: %w", offerID, apperr.ErrNotFound)
	}
	return o, nil
}

// ListSent returns the donor's offers, newest first.
func (s *Service) ListSent(ctx context.Context, donor *models.User) ([]models.Offer, error) {
	if !donor.IsDonor() {
		return nil, fmt.Errorf("only donors send offers: %w", apperr.ErrForbidden)
	}
	offers, err := s.db.ListOffersByDonor(donor.ID)
	if err != nil {
		return nil, fmt.Errorf("list sent offers: %w", err)
	}
	return offers, nil
}

// ListReceived returns the offers made to a verified NGO, newest first.
func (s *Service) ListReceived(ctx context.Context, ngo *models.User) ([]models.Offer, error) {
	if !ngo.IsNGO() {
		return nil, fmt.Errorf("only ngos receive offers: %w", apperr.ErrForbidden)
	}
	profile, err := s.db.GetNGO(ngo.ID)
	if err != nil {
		return nil, fmt.Errorf("get ngo: %w", err)
	}
	if profile == nil || !profile.Profile.Verified() {
		return nil, fmt.Errorf("ngo %s is not verified: %w", ngo.ID, apperr.ErrForbidden)
	}
	offers, err := s.db.ListOffersByNGO(ngo.ID)
	if err != nil {
		return nil, fmt.Errorf("list received offers: %w", err)
	}
	return offers, nil
}
