package database

import (
	"database/sql"
	"sort"
	"strings"
	"time"

	"github.com/jredh-dev/kindway/services/kindway/pkg/models"
)

// conversationSelect takes one argument, the viewer whose unread count is
// computed.
const conversationSelect = `SELECT c.id, c.offer_id, o.title, c.created_at, c.updated_at,
	COALESCE((SELECT group_concat(cp.user_id) FROM conversation_participants cp WHERE cp.conversation_id = c.id), ''),
	(SELECT COUNT(*) FROM messages m WHERE m.conversation_id = c.id AND m.sender_id != ? AND m.is_read = 0)
	FROM conversations c JOIN offers o ON o.id = c.offer_id`

func scanConversation(row scanner) (*models.Conversation, error) {
	c := &models.Conversation{}
	var participants string
	err := row.Scan(&c.ID, &c.OfferID, &c.OfferTitle, &c.CreatedAt, &c.UpdatedAt, &participants, &c.Unread)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.Participants = []string{}
	if participants != "" {
		c.Participants = strings.Split(participants, ",")
		sort.Strings(c.Participants)
	}
	return c, nil
}

// Tx lets callers extend a transaction opened by the database layer.
type Tx struct {
	tx *sql.Tx
}

// FindOrCreateConversation returns the conversation of an offer, creating
// it with the donor and NGO as participants when none exists yet. created
// reports whether this call inserted the row. Concurrent callers converge
// on the same row through the unique offer_id.
func (db *DB) FindOrCreateConversation(id string, offer *models.Offer, at time.Time) (conv *models.Conversation, created bool, err error) {
	err = db.withTx(func(tx *sql.Tx) error {
		conv, created, err = (&Tx{tx: tx}).FindOrCreateConversation(id, offer, at)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return conv, created, nil
}

// FindOrCreateConversation is DB.FindOrCreateConversation inside t.
func (t *Tx) FindOrCreateConversation(id string, offer *models.Offer, at time.Time) (conv *models.Conversation, created bool, err error) {
	res, err := t.tx.Exec(
		`INSERT INTO conversations (id, offer_id, created_at, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(offer_id) DO NOTHING`,
		id, offer.ID, at, at,
	)
	if err != nil {
		return nil, false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, err
	}
	if n == 1 {
		created = true
		for _, userID := range []string{offer.DonorID, offer.NGOID} {
			if _, err := t.tx.Exec(
				`INSERT INTO conversation_participants (conversation_id, user_id) VALUES (?, ?) ON CONFLICT DO NOTHING`,
				id, userID,
			); err != nil {
				return nil, false, err
			}
		}
	}

	conv, err = scanConversation(t.tx.QueryRow(conversationSelect+` WHERE c.offer_id = ?`, "", offer.ID))
	if err != nil {
		return nil, false, err
	}
	return conv, created, nil
}

// GetConversation returns a conversation with viewerID's unread count, or
// nil if absent.
func (db *DB) GetConversation(id, viewerID string) (*models.Conversation, error) {
	return scanConversation(db.conn.QueryRow(conversationSelect+` WHERE c.id = ?`, viewerID, id))
}

// GetConversationByOffer returns the conversation opened for an offer.
func (db *DB) GetConversationByOffer(offerID string) (*models.Conversation, error) {
	return scanConversation(db.conn.QueryRow(conversationSelect+` WHERE c.offer_id = ?`, "", offerID))
}

// ListConversations returns userID's conversations, most recently updated first.
func (db *DB) ListConversations(userID string) ([]models.Conversation, error) {
	q := conversationSelect + `
	     WHERE c.id IN (SELECT conversation_id FROM conversation_participants WHERE user_id = ?)
	     ORDER BY c.updated_at DESC`
	rows, err := db.conn.Query(q, userID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	convs := []models.Conversation{}
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		convs = append(convs, *c)
	}
	return convs, rows.Err()
}

// --- Messages ---

const messageColumns = `id, conversation_id, sender_id, content, is_read, created_at`

// CreateMessage appends a message and bumps the conversation's updated_at.
func (db *DB) CreateMessage(m *models.Message) error {
	return db.withTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(
			`INSERT INTO messages (`+messageColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
			m.ID, m.ConversationID, m.SenderID, m.Content, m.Read, m.CreatedAt,
		); err != nil {
			return err
		}
		_, err := tx.Exec(`UPDATE conversations SET updated_at = ? WHERE id = ?`, m.CreatedAt, m.ConversationID)
		return err
	})
}

// ListMessages returns a conversation's messages in chronological order.
// With a non-zero since only messages strictly after it are returned.
func (db *DB) ListMessages(conversationID string, since time.Time) ([]models.Message, error) {
	var rows *sql.Rows
	var err error
	if since.IsZero() {
		rows, err = db.conn.Query(
			`SELECT `+messageColumns+` FROM messages WHERE conversation_id = ? ORDER BY created_at, rowid`,
			conversationID,
		)
	} else {
		rows, err = db.conn.Query(
			`SELECT `+messageColumns+` FROM messages WHERE conversation_id = ? AND created_at > ? ORDER BY created_at, rowid`,
			conversationID, since.UTC(),
		)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	msgs := []models.Message{}
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Content, &m.Read, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// MarkRead flags as read every message in the conversation not sent by
// readerID. Read messages are never flagged unread again.
func (db *DB) MarkRead(conversationID, readerID string) (int64, error) {
	res, err := db.conn.Exec(
		`UPDATE messages SET is_read = 1 WHERE conversation_id = ? AND sender_id != ? AND is_read = 0`,
		conversationID, readerID,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// UnreadCount counts unread messages addressed to userID across all of
// their conversations.
func (db *DB) UnreadCount(userID string) (int, error) {
	const q = `SELECT COUNT(*) FROM messages m
	           JOIN conversation_participants cp ON cp.conversation_id = m.conversation_id AND cp.user_id = ?
	           WHERE m.sender_id != ? AND m.is_read = 0`
	var n int
	err := db.conn.QueryRow(q, userID, userID).Scan(&n)
	return n, err
}
