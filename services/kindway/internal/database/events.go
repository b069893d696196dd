package database

import (
	"database/sql"

	"github.com/jredh-dev/kindway/services/kindway/pkg/models"
)

const eventSelect = `SELECT e.id, e.ngo_id, COALESCE(p.name, ''), e.title, e.description, e.location, e.event_date,
	(SELECT COUNT(*) FROM event_volunteers v WHERE v.event_id = e.id),
	e.created_at, e.updated_at
	FROM events e LEFT JOIN ngo_profiles p ON p.user_id = e.ngo_id`

func scanEvent(row scanner) (*models.Event, error) {
	e := &models.Event{}
	err := row.Scan(&e.ID, &e.NGOID, &e.NGOName, &e.Title, &e.Description, &e.Location, &e.Date,
		&e.Volunteers, &e.CreatedAt, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// CreateEvent inserts a new event.
func (db *DB) CreateEvent(e *models.Event) error {
	_, err := db.conn.Exec(
		`INSERT INTO events (id, ngo_id, title, description, location, event_date, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.NGOID, e.Title, e.Description, e.Location, e.Date.UTC(), e.CreatedAt, e.UpdatedAt,
	)
	return err
}

// GetEvent returns a single event, or nil if absent.
func (db *DB) GetEvent(id string) (*models.Event, error) {
	return scanEvent(db.conn.QueryRow(eventSelect+` WHERE e.id = ?`, id))
}

// ListEvents returns all events ordered by event date.
func (db *DB) ListEvents() ([]models.Event, error) {
	return db.queryEvents(eventSelect + ` ORDER BY e.event_date ASC`)
}

// ListEventsByNGO returns one NGO's events ordered by event date.
func (db *DB) ListEventsByNGO(ngoID string) ([]models.Event, error) {
	return db.queryEvents(eventSelect+` WHERE e.ngo_id = ? ORDER BY e.event_date ASC`, ngoID)
}

// AddVolunteer registers userID for an event. Registering twice is a no-op.
func (db *DB) AddVolunteer(eventID, userID string) error {
	_, err := db.conn.Exec(
		`INSERT INTO event_volunteers (event_id, user_id, created_at) VALUES (?, ?, ?) ON CONFLICT DO NOTHING`,
		eventID, userID, now(),
	)
	return err
}

func (db *DB) queryEvents(query string, args ...interface{}) ([]models.Event, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []models.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

// --- Success stories ---

const storyColumns = `id, name, city, content, is_featured, submitted_at`

func scanStory(row scanner) (*models.Story, error) {
	s := &models.Story{}
	err := row.Scan(&s.ID, &s.Name, &s.City, &s.Content, &s.Featured, &s.SubmittedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// CreateStory inserts a submitted story.
func (db *DB) CreateStory(s *models.Story) error {
	_, err := db.conn.Exec(
		`INSERT INTO stories (`+storyColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		s.ID, s.Name, s.City, s.Content, s.Featured, s.SubmittedAt,
	)
	return err
}

// GetStory returns a story by ID, or nil if absent.
func (db *DB) GetStory(id string) (*models.Story, error) {
	return scanStory(db.conn.QueryRow(`SELECT `+storyColumns+` FROM stories WHERE id = ?`, id))
}

// ListStories returns stories newest first; featuredOnly limits the list
// to featured ones.
func (db *DB) ListStories(featuredOnly bool) ([]models.Story, error) {
	q := `SELECT ` + storyColumns + ` FROM stories ORDER BY submitted_at DESC`
	if featuredOnly {
		q = `SELECT ` + storyColumns + ` FROM stories WHERE is_featured = 1 ORDER BY submitted_at DESC`
	}
	rows, err := db.conn.Query(q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stories := []models.Story{}
	for rows.Next() {
		s, err := scanStory(rows)
		if err != nil {
			return nil, err
		}
		stories = append(stories, *s)
	}
	return stories, rows.Err()
}

// SetStoryFeatured sets the featured flag. It reports false for an unknown story.
func (db *DB) SetStoryFeatured(id string, featured bool) (bool, error) {
	res, err := db.conn.Exec(`UPDATE stories SET is_featured = ? WHERE id = ?`, featured, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}
