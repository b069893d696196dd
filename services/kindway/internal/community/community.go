// Package community covers the volunteering side of Kindway: NGO events,
// volunteer sign-ups and public success stories.
package community

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

// homeItems is how many needs and events the landing page shows.
const homeItems = 3

// Story field limits, in characters.
const (
	maxStoryName = 100
	maxStoryCity = 50
)

// Service manages events and stories.
type Service struct {
	db  *database.DB
	now func() time.Time
}

// NewService creates a community service.
func NewService(db *database.DB) *Service {
	return &Service{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// EventInput describes a new event. Date is RFC 3339.
type EventInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Location    string `json:"location"`
	Date        string `json:"event_date"`
}

// CreateEvent publishes an event hosted by a verified NGO.
func (s *Service) CreateEvent(ctx context.Context, ngo *models.User, in EventInput) (*models.Event, error) {
	if !ngo.IsNGO() {
		return nil, fmt.Errorf("only ngos host events: %w", apperr.ErrForbidden)
	}
	n, err := s.db.GetNGO(ngo.ID)
	if err != nil {
		return nil, fmt.Errorf("get ngo: %w", err)
	}
	if n == nil || !n.Profile.Verified() {
		return nil, fmt.Errorf("ngo %s is not verified: %w", ngo.ID, apperr.ErrForbidden)
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("title is required: %w", apperr.ErrInvalidInput)
	}
	date, err := time.Parse(time.RFC3339, strings.TrimSpace(in.Date))
	if err != nil {
		return nil, fmt.Errorf("event_date must be RFC 3339: %w", apperr.ErrInvalidInput)
	}

	now := s.now()
	e := &models.Event{
		ID:          uuid.New().String(),
		NGOID:       ngo.ID,
		NGOName:     n.Profile.Name,
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Location:    strings.TrimSpace(in.Location),
		Date:        date.UTC(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.db.CreateEvent(e); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	return e, nil
}

// Home returns the public landing page: the newest open needs, the next
// upcoming events and the platform counters.
func (s *Service) Home(ctx context.Context) (*database.HomeSummary, error) {
	h, err := s.db.Home(s.now(), homeItems)
	if err != nil {
		return nil, fmt.Errorf("home summary: %w", err)
	}
	return h, nil
}

// ListEvents returns every event, soonest first.
func (s *Service) ListEvents(ctx context.Context) ([]models.Event, error) {
	events, err := s.db.ListEvents()
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

// ListNGOEvents returns one NGO's events, soonest first.
func (s *Service) ListNGOEvents(ctx context.Context, ngoID string) (*models.NGO, []models.Event, error) {
	n, err := s.db.GetNGO(ngoID)
	if err != nil {
		return nil, nil, fmt.Errorf("get ngo: %w", err)
	}
	if n == nil {
		return nil, nil, fmt.Errorf("ngo %s: %w", ngoID, apperr.ErrNotFound)
	}
	events, err := s.db.ListEventsByNGO(ngoID)
	if err != nil {
		return nil, nil, fmt.Errorf("list events: %w", err)
	}
	return n, events, nil
}

// Volunteer signs the user up for an event. Signing up twice is a no-op.
func (s *Service) Volunteer(ctx context.Context, user *models.User, eventID string) (*models.Event, error) {
	e, err := s.db.GetEvent(eventID)
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	if e == nil {
		return nil, fmt.Errorf("event %s: %w", eventID, apperr.ErrNotFound)
	}
	if err := s.db.AddVolunteer(eventID, user.ID); err != nil {
		return nil, fmt.Errorf("add volunteer: %w", err)
	}
	e, err = s.db.GetEvent(eventID)
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

// StoryInput is a public story submission.
type StoryInput struct {
	Name    string `json:"name"`
	City    string `json:"city"`
	Content string `json:"story_content"`
}

// SubmitStory stores a story for staff review. Stories start unfeatured.
func (s *Service) SubmitStory(ctx context.Context, in StoryInput) (*models.Story, error) {
	st := &models.Story{
		ID:          uuid.New().String(),
		Name:        strings.TrimSpace(in.Name),
		City:        strings.TrimSpace(in.City),
		Content:     strings.TrimSpace(in.Content),
		SubmittedAt: s.now(),
	}
	switch {
	case st.Name == "" || st.City == "" || st.Content == "":
		return nil, fmt.Errorf("name, city and story are required: %w", apperr.ErrInvalidInput)
	case utf8.RuneCountInString(st.Name) > maxStoryName:
		return nil, fmt.Errorf("name exceeds %d characters: %w", maxStoryName, apperr.ErrInvalidInput)
	case utf8.RuneCountInString(st.City) > maxStoryCity:
		return nil, fmt.Errorf("city exceeds %d characters: %w", maxStoryCity, apperr.ErrInvalidInput)
	}
	if err := s.db.CreateStory(st); err != nil {
		return nil, fmt.Errorf("create story: %w", err)
	}
	return st, nil
}

// ListStories returns stories newest first. The public sees featured
// stories only.
func (s *Service) ListStories(ctx context.Context, featuredOnly bool) ([]models.Story, error) {
	stories, err := s.db.ListStories(featuredOnly)
	if err != nil {
		return nil, fmt.Errorf("list stories: %w", err)
	}
	return stories, nil
}

// FeatureStory sets whether a story appears publicly.
func (s *Service) FeatureStory(ctx context.Context, storyID string, featured bool) (*models.Story, error) {
	ok, err := s.db.SetStoryFeatured(storyID, featured)
	if err != nil {
		return nil, fmt.Errorf("feature story: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("story %s: %w", storyID, apperr.ErrNotFound)
	}
	st, err := s.db.GetStory(storyID)
	if err != nil {
		return nil, fmt.Errorf("get story: %w", err)
	}
	return st, nil
}
