package database

import (
	"database/sql"

	"github.com/jredh-dev/kindway/services/kindway/pkg/models"
)

const contactColumns = `id, name, email, message, sent, submitted_at`

func scanContact(row scanner) (*models.ContactMessage, error) {
	m := &models.ContactMessage{}
	err := row.Scan(&m.ID, &m.Name, &m.Email, &m.Message, &m.Sent, &m.SubmittedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// CreateContactMessage stores a contact form submission.
func (db *DB) CreateContactMessage(m *models.ContactMessage) error {
	_, err := db.conn.Exec(
		`INSERT INTO contact_messages (`+contactColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.Name, m.Email, m.Message, m.Sent, m.SubmittedAt,
	)
	return err
}

// GetContactMessage returns a submission by ID, or nil if absent.
func (db *DB) GetContactMessage(id string) (*models.ContactMessage, error) {
	return scanContact(db.conn.QueryRow(`SELECT `+contactColumns+` FROM contact_messages WHERE id = ?`, id))
}

// ClaimContactMessage sets the sent flag if it is still unset. Only one
// caller can win the claim.
func (db *DB) ClaimContactMessage(id string) (bool, error) {
	res, err := db.conn.Exec(`UPDATE contact_messages SET sent = 1 WHERE id = ? AND sent = 0`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// ReleaseContactMessage clears the sent flag after a failed send.
func (db *DB) ReleaseContactMessage(id string) error {
	_, err := db.conn.Exec(`UPDATE contact_messages SET sent = 0 WHERE id = ?`, id)
	return err
}

// ListUnsentContactMessages returns submissions not yet forwarded, oldest
// first.
func (db *DB) ListUnsentContactMessages() ([]models.ContactMessage, error) {
	rows, err := db.conn.Query(`SELECT ` + contactColumns + ` FROM contact_messages WHERE sent = 0 ORDER BY submitted_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	msgs := []models.ContactMessage{}
	for rows.Next() {
		m, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, *m)
	}
	return msgs, rows.Err()
}
