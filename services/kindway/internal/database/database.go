package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jredh-dev/kindway/services/kindway/pkg/models"

	_ "modernc.org/sqlite"
)

// ErrDuplicate is returned when an insert violates a uniqueness rule that
// callers are expected to handle (category names, user emails).
var ErrDuplicate = errors.New("duplicate record")

// DB wraps a SQLite connection.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database, runs migrations and seeds
// the default categories.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_time_format=sqlite")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Single writer, many readers.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.SeedCategories(DefaultCategories); err != nil {
		conn.Close()
		return nil, fmt.Errorf("seed categories: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func migrate(conn *sql.DB) error {
	const ddl = `
	CREATE TABLE IF NOT EXISTS users (
		id            TEXT PRIMARY KEY,
		email         TEXT UNIQUE NOT NULL,
		email_hash    TEXT NOT NULL DEFAULT '',
		name          TEXT NOT NULL DEFAULT '',
		role          TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL DEFAULT '',
		created_at    DATETIME NOT NULL,
		updated_at    DATETIME NOT NULL,
		last_login_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_users_email_hash ON users(email_hash);
	CREATE INDEX IF NOT EXISTS idx_users_created_at ON users(created_at);

	CREATE TABLE IF NOT EXISTS sessions (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		expires_at DATETIME NOT NULL,
		created_at DATETIME NOT NULL,
		ip_address TEXT NOT NULL DEFAULT '',
		user_agent TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_user_id ON sessions(user_id);
	CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);

	CREATE TABLE IF NOT EXISTS categories (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		name_key   TEXT UNIQUE NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS donor_profiles (
		user_id      TEXT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
		full_name    TEXT NOT NULL DEFAULT '',
		phone_number TEXT NOT NULL DEFAULT '',
		pincode      TEXT NOT NULL DEFAULT '',
		lat          REAL,
		lng          REAL,
		updated_at   DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS ngo_profiles (
		user_id                 TEXT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
		name                    TEXT NOT NULL DEFAULT '',
		address                 TEXT NOT NULL DEFAULT '',
		mission_statement       TEXT NOT NULL DEFAULT '',
		document_ref            TEXT NOT NULL DEFAULT '',
		verification_status     TEXT NOT NULL DEFAULT 'PENDING',
		verification_email_sent INTEGER NOT NULL DEFAULT 0,
		lat                     REAL,
		lng                     REAL,
		created_at              DATETIME NOT NULL,
		updated_at              DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_ngo_profiles_status ON ngo_profiles(verification_status);

	CREATE TABLE IF NOT EXISTS ngo_categories (
		ngo_id      TEXT NOT NULL REFERENCES ngo_profiles(user_id) ON DELETE CASCADE,
		category_id TEXT NOT NULL REFERENCES categories(id) ON DELETE CASCADE,
		PRIMARY KEY (ngo_id, category_id)
	);

	CREATE TABLE IF NOT EXISTS needs (
		id          TEXT PRIMARY KEY,
		ngo_id      TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		category_id TEXT NOT NULL REFERENCES categories(id),
		title       TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		active      INTEGER NOT NULL DEFAULT 1,
		created_at  DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_needs_ngo_id ON needs(ngo_id);
	CREATE INDEX IF NOT EXISTS idx_needs_active ON needs(active);

	CREATE TABLE IF NOT EXISTS offers (
		id          TEXT PRIMARY KEY,
		donor_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		ngo_id      TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		need_id     TEXT NOT NULL DEFAULT '',
		category_id TEXT NOT NULL REFERENCES categories(id),
		title       TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		delivery    TEXT NOT NULL,
		status      TEXT NOT NULL DEFAULT 'PENDING',
		flow        TEXT NOT NULL DEFAULT 'MATCHED',
		created_at  DATETIME NOT NULL,
		updated_at  DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_offers_donor_id ON offers(donor_id);
	CREATE INDEX IF NOT EXISTS idx_offers_ngo_id ON offers(ngo_id);
	CREATE INDEX IF NOT EXISTS idx_offers_status ON offers(status);

	CREATE TABLE IF NOT EXISTS conversations (
		id         TEXT PRIMARY KEY,
		offer_id   TEXT UNIQUE NOT NULL REFERENCES offers(id) ON DELETE CASCADE,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS conversation_participants (
		conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
		user_id         TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		PRIMARY KEY (conversation_id, user_id)
	);

	CREATE INDEX IF NOT EXISTS idx_participants_user_id ON conversation_participants(user_id);

	CREATE TABLE IF NOT EXISTS messages (
		id              TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
		sender_id       TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		content         TEXT NOT NULL,
		is_read         INTEGER NOT NULL DEFAULT 0,
		created_at      DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at);

	CREATE TABLE IF NOT EXISTS events (
		id          TEXT PRIMARY KEY,
		ngo_id      TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		title       TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		location    TEXT NOT NULL DEFAULT '',
		event_date  DATETIME NOT NULL,
		created_at  DATETIME NOT NULL,
		updated_at  DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_ngo_id ON events(ngo_id);
	CREATE INDEX IF NOT EXISTS idx_events_date ON events(event_date);

	CREATE TABLE IF NOT EXISTS event_volunteers (
		event_id   TEXT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
		user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		created_at DATETIME NOT NULL,
		PRIMARY KEY (event_id, user_id)
	);

	CREATE TABLE IF NOT EXISTS stories (
		id           TEXT PRIMARY KEY,
		name         TEXT NOT NULL,
		city         TEXT NOT NULL DEFAULT '',
		content      TEXT NOT NULL,
		is_featured  INTEGER NOT NULL DEFAULT 0,
		submitted_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS contact_messages (
		id           TEXT PRIMARY KEY,
		name         TEXT NOT NULL,
		email        TEXT NOT NULL,
		message      TEXT NOT NULL,
		sent         INTEGER NOT NULL DEFAULT 0,
		submitted_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_contact_messages_sent ON contact_messages(sent);
	`
	if _, err := conn.Exec(ddl); err != nil {
		return err
	}

	// Staff flag arrived after the first deployments.
	if err := addColumnIfNotExists(conn, "users", "is_staff", "INTEGER NOT NULL DEFAULT 0"); err != nil {
		return err
	}

	return nil
}

// addColumnIfNotExists adds a column to a table if it does not already exist.
// SQLite doesn't support IF NOT EXISTS for ALTER TABLE ADD COLUMN, so we
// check the schema first.
func addColumnIfNotExists(conn *sql.DB, table, column, colDef string) error {
	rows, err := conn.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return err
	}

	found := false
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull int
		var dfltValue sql.NullString
		var pk int
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			rows.Close()
			return err
		}
		if name == column {
			found = true
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	if found {
		return nil
	}
	_, err = conn.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, colDef))
	return err
}

// withTx runs fn inside a transaction, committing on success.
func (db *DB) withTx(fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

type scanner interface{ Scan(...interface{}) error }

// coordinate converts a nullable lat/lng pair into a Coordinate.
func coordinate(lat, lng sql.NullFloat64) *models.Coordinate {
	if !lat.Valid || !lng.Valid {
		return nil
	}
	return &models.Coordinate{Lat: lat.Float64, Lng: lng.Float64}
}

// nullCoordinate splits a Coordinate into nullable columns.
func nullCoordinate(c *models.Coordinate) (sql.NullFloat64, sql.NullFloat64) {
	if c == nil {
		return sql.NullFloat64{}, sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: c.Lat, Valid: true}, sql.NullFloat64{Float64: c.Lng, Valid: true}
}

func now() time.Time {
	return time.Now().UTC()
}

// --- User operations ---

const userColumns = `id, email, email_hash, name, role, is_staff, password_hash, created_at, updated_at, last_login_at`

func scanUser(row scanner) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(
		&u.ID, &u.Email, &u.EmailHash, &u.Name, &u.Role, &u.IsStaff,
		&u.PasswordHash, &u.CreatedAt, &u.UpdatedAt, &u.LastLoginAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// CreateUser inserts a new user. A taken email yields ErrDuplicate.
func (db *DB) CreateUser(u *models.User) error {
	const q = `INSERT INTO users (id, email, email_hash, name, role, is_staff, password_hash, created_at, updated_at, last_login_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	           ON CONFLICT(email) DO NOTHING`
	res, err := db.conn.Exec(q,
		u.ID, u.Email, u.EmailHash, u.Name, string(u.Role), u.IsStaff,
		u.PasswordHash, u.CreatedAt, u.UpdatedAt, u.LastLoginAt,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrDuplicate
	}
	return nil
}

// GetUserByID looks up a user by ID.
func (db *DB) GetUserByID(id string) (*models.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	return scanUser(db.conn.QueryRow(q, id))
}

// GetUserByEmail looks up a user by exact email.
func (db *DB) GetUserByEmail(email string) (*models.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE email = ?`
	return scanUser(db.conn.QueryRow(q, email))
}

// GetUserByEmailHash looks up a user by normalized email hash.
func (db *DB) GetUserByEmailHash(hash string) (*models.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE email_hash = ? LIMIT 1`
	return scanUser(db.conn.QueryRow(q, hash))
}

// UpdateLastLogin sets the last_login_at timestamp.
func (db *DB) UpdateLastLogin(userID string, t time.Time) error {
	const q = `UPDATE users SET last_login_at = ?, updated_at = ? WHERE id = ?`
	_, err := db.conn.Exec(q, t, t, userID)
	return err
}

// SetUserRole assigns a role to a user whose role is still unset. It
// reports false when the user already had a role.
func (db *DB) SetUserRole(userID string, role models.Role) (bool, error) {
	const q = `UPDATE users SET role = ?, updated_at = ? WHERE id = ? AND role = ''`
	res, err := db.conn.Exec(q, string(role), now(), userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// SetStaff grants or revokes the staff flag.
func (db *DB) SetStaff(userID string, staff bool) error {
	const q = `UPDATE users SET is_staff = ?, updated_at = ? WHERE id = ?`
	_, err := db.conn.Exec(q, staff, now(), userID)
	return err
}

// --- Session operations ---

// CreateSession inserts a new session.
func (db *DB) CreateSession(s *models.Session) error {
	const q = `INSERT INTO sessions (id, user_id, expires_at, created_at, ip_address, user_agent)
	           VALUES (?, ?, ?, ?, ?, ?)`
	_, err := db.conn.Exec(q, s.ID, s.UserID, s.ExpiresAt, s.CreatedAt, s.IPAddress, s.UserAgent)
	return err
}

// GetSession looks up a session by ID and ensures it has not expired.
func (db *DB) GetSession(id string) (*models.Session, error) {
	const q = `SELECT id, user_id, expires_at, created_at, ip_address, user_agent
	           FROM sessions WHERE id = ? AND expires_at > ?`
	s := &models.Session{}
	err := db.conn.QueryRow(q, id, now()).Scan(&s.ID, &s.UserID, &s.ExpiresAt, &s.CreatedAt, &s.IPAddress, &s.UserAgent)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// DeleteSession removes a session by ID.
func (db *DB) DeleteSession(id string) error {
	_, err := db.conn.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	return err
}

// DeleteExpiredSessions cleans up sessions that have passed their expiry.
func (db *DB) DeleteExpiredSessions() error {
	_, err := db.conn.Exec(`DELETE FROM sessions WHERE expires_at <= ?`, now())
	return err
}
