// Package messaging owns donor/NGO conversations: it opens exactly one
// thread per accepted offer and serves the polling chat API.
package messaging

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/jredh-dev/kindway/services/kindway/internal/apperr"
	"github.com/jredh-dev/kindway/services/kindway/internal/database"
	"github.com/jredh-dev/kindway/services/kindway/pkg/models"
)

// MaxMessageLength bounds a single message, in characters.
const MaxMessageLength = 4000

// Service handles conversations and messages.
type Service struct {
	db  *database.DB
	now func() time.Time
}

// NewService creates a messaging service.
func NewService(db *database.DB) *Service {
	return &Service{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// OnAccepted finds or creates the conversation of an accepted offer, with
// the donor and the NGO as its only participants. It may be called any
// number of times, concurrently included; created is true only for the
// call that inserted the thread.
func (s *Service) OnAccepted(ctx context.Context, offer *models.Offer) (conv *models.Conversation, created bool, err error) {
	if err := checkAccepted(offer); err != nil {
		return nil, false, err
	}
	conv, created, err = s.db.FindOrCreateConversation(uuid.New().String(), offer, s.now())
	if err != nil {
		return nil, false, fmt.Errorf("open conversation: %w", err)
	}
	return conv, created, nil
}

// OnAcceptedTx is OnAccepted inside the transaction that accepted the
// offer, so the status change and the thread commit together.
func (s *Service) OnAcceptedTx(ctx context.Context, tx *database.Tx, offer *models.Offer) (conv *models.Conversation, created bool, err error) {
	if err := checkAccepted(offer); err != nil {
		return nil, false, err
	}
	conv, created, err = tx.FindOrCreateConversation(uuid.New().String(), offer, s.now())
	if err != nil {
		return nil, false, fmt.Errorf("open conversation: %w", err)
	}
	return conv, created, nil
}

func checkAccepted(offer *models.Offer) error {
	if offer == nil {
		return fmt.Errorf("open conversation: %w", apperr.ErrNotFound)
	}
	if offer.Status != models.OfferAccepted {
		return fmt.Errorf("open conversation for %s offer: %w", offer.Status, apperr.ErrInvalidTransition)
	}
	return nil
}

// ListConversations returns the user's conversations, most recently
// active first, with per-conversation unread counts.
func (s *Service) ListConversations(ctx context.Context, user *models.User) ([]models.Conversation, error) {
	convs, err := s.db.ListConversations(user.ID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return convs, nil
}

// Thread is a conversation together with its messages.
type Thread struct {
	Conversation *models.Conversation `json:"conversation"`
	Messages     []models.Message     `json:"messages"`
}

// Open returns a conversation with its full history and marks the other
// participants' messages as read.
func (s *Service) Open(ctx context.Context, conversationID string, user *models.User) (*Thread, error) {
	if _, err := s.participantConversation(conversationID, user); err != nil {
		return nil, err
	}
	if _, err := s.db.MarkRead(conversationID, user.ID); err != nil {
		return nil, fmt.Errorf("mark read: %w", err)
	}

	conv, err := s.db.GetConversation(conversationID, user.ID)
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	msgs, err := s.db.ListMessages(conversationID, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return &Thread{Conversation: conv, Messages: msgs}, nil
}

// Messages returns messages newer than since, for polling clients. A zero
// since returns the whole history.
func (s *Service) Messages(ctx context.Context, conversationID string, user *models.User, since time.Time) ([]models.Message, error) {
	if _, err := s.participantConversation(conversationID, user); err != nil {
		return nil, err
	}
	msgs, err := s.db.ListMessages(conversationID, since)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

// Send appends a message from user to the conversation.
func (s *Service) Send(ctx context.Context, conversationID string, user *models.User, content string) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("message content is required: %w", apperr.ErrInvalidInput)
	}
	if utf8.RuneCountInString(content) > MaxMessageLength {
		return nil, fmt.Errorf("message longer than %d characters: %w", MaxMessageLength, apperr.ErrInvalidInput)
	}
	if _, err := s.participantConversation(conversationID, user); err != nil {
		return nil, err
	}

	m := &models.Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		SenderID:       user.ID,
		Content:        content,
		CreatedAt:      s.now(),
	}
	if err := s.db.CreateMessage(m); err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}
	return m, nil
}

// UnreadCount counts messages addressed to the user that are still unread.
func (s *Service) UnreadCount(ctx context.Context, user *models.User) (int, error) {
	n, err := s.db.UnreadCount(user.ID)
	if err != nil {
		return 0, fmt.Errorf("unread count: %w", err)
	}
	return n, nil
}

// participantConversation loads a conversation the user takes part in.
// Strangers get ErrNotFound so they cannot probe for thread ids.
func (s *Service) participantConversation(conversationID string, user *models.User) (*models.Conversation, error) {
	conv, err := s.db.GetConversation(conversationID, user.ID)
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	if conv == nil || !conv.HasParticipant(user.ID) {
		return nil, fmt.Errorf("conversation %s: %w", conversationID, apperr.ErrNotFound)
	}
	return conv, nil
}
