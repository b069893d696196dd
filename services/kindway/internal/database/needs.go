package database

import (
	"database/sql"

	"github.com/jredh-dev/kindway/services/kindway/pkg/models"
)

const needColumns = `n.id, n.ngo_id, COALESCE(p.name, ''), n.category_id, n.title, n.description, n.active, n.created_at`

const needFrom = ` FROM needs n LEFT JOIN ngo_profiles p ON p.user_id = n.ngo_id`

func scanNeed(row scanner) (*models.Need, error) {
	n := &models.Need{}
	err := row.Scan(&n.ID, &n.NGOID, &n.NGOName, &n.CategoryID, &n.Title, &n.Description, &n.Active, &n.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return n, nil
}

// CreateNeed inserts a new need.
func (db *DB) CreateNeed(n *models.Need) error {
	const q = `INSERT INTO needs (id, ngo_id, category_id, title, description, active, created_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := db.conn.Exec(q, n.ID, n.NGOID, n.CategoryID, n.Title, n.Description, n.Active, n.CreatedAt)
	return err
}

// GetNeed returns a need by ID, or nil if absent.
func (db *DB) GetNeed(id string) (*models.Need, error) {
	q := `SELECT ` + needColumns + needFrom + ` WHERE n.id = ?`
	return scanNeed(db.conn.QueryRow(q, id))
}

// DeactivateNeed clears the active flag. Needs are never deleted.
func (db *DB) DeactivateNeed(id string) error {
	_, err := db.conn.Exec(`UPDATE needs SET active = 0 WHERE id = ?`, id)
	return err
}

// ListActiveNeeds returns active needs of verified NGOs, newest first.
func (db *DB) ListActiveNeeds() ([]models.Need, error) {
	q := `SELECT ` + needColumns + needFrom + `
	      WHERE n.active = 1 AND p.verification_status = 'VERIFIED'
	      ORDER BY n.created_at DESC`
	return db.queryNeeds(q)
}

// ListNeedsByNGO returns all needs posted by an NGO, newest first.
func (db *DB) ListNeedsByNGO(ngoID string) ([]models.Need, error) {
	q := `SELECT ` + needColumns + needFrom + ` WHERE n.ngo_id = ? ORDER BY n.created_at DESC`
	return db.queryNeeds(q, ngoID)
}

func (db *DB) queryNeeds(query string, args ...interface{}) ([]models.Need, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	needs := []models.Need{}
	for rows.Next() {
		n, err := scanNeed(rows)
		if err != nil {
			return nil, err
		}
		needs = append(needs, *n)
	}
	return needs, rows.Err()
}
