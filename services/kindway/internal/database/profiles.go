package database

import (
	"database/sql"
	"strings"

	"github.com/jredh-dev/kindway/services/kindway/pkg/models"
)

// --- Donor profiles ---

// SaveDonorProfile inserts or replaces a donor profile.
func (db *DB) SaveDonorProfile(p *models.DonorProfile) error {
	lat, lng := nullCoordinate(p.Location)
	const q = `INSERT INTO donor_profiles (user_id, full_name, phone_number, pincode, lat, lng, updated_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?)
	           ON CONFLICT(user_id) DO UPDATE SET
	             full_name = excluded.full_name,
	             phone_number = excluded.phone_number,
	             pincode = excluded.pincode,
	             lat = excluded.lat,
	             lng = excluded.lng,
	             updated_at = excluded.updated_at`
	_, err := db.conn.Exec(q, p.UserID, p.FullName, p.PhoneNumber, p.Pincode, lat, lng, p.UpdatedAt)
	return err
}

// GetDonorProfile returns a donor's profile, or nil if none exists.
func (db *DB) GetDonorProfile(userID string) (*models.DonorProfile, error) {
	const q = `SELECT user_id, full_name, phone_number, pincode, lat, lng, updated_at
	           FROM donor_profiles WHERE user_id = ?`
	p := &models.DonorProfile{}
	var lat, lng sql.NullFloat64
	err := db.conn.QueryRow(q, userID).Scan(&p.UserID, &p.FullName, &p.PhoneNumber, &p.Pincode, &lat, &lng, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.Location = coordinate(lat, lng)
	return p, nil
}

// --- NGO profiles ---

const ngoColumns = `p.user_id, u.email, p.name, p.address, p.mission_statement, p.document_ref,
	p.verification_status, p.verification_email_sent, p.lat, p.lng, p.created_at, p.updated_at`

const ngoFrom = ` FROM ngo_profiles p JOIN users u ON u.id = p.user_id AND u.role = 'NGO'`

func scanNGO(row scanner) (*models.NGO, error) {
	n := &models.NGO{}
	p := &n.Profile
	var lat, lng sql.NullFloat64
	err := row.Scan(
		&p.UserID, &n.Email, &p.Name, &p.Address, &p.MissionStatement, &p.DocumentRef,
		&p.VerificationStatus, &p.VerificationEmailSent, &lat, &lng, &p.CreatedAt, &p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.Location = coordinate(lat, lng)
	p.CategoryIDs = []string{}
	return n, nil
}

// CreateNGOProfile inserts a new NGO profile in its initial state.
func (db *DB) CreateNGOProfile(p *models.NGOProfile) error {
	lat, lng := nullCoordinate(p.Location)
	status := p.VerificationStatus
	if status == "" {
		status = models.VerificationPending
	}
	const q = `INSERT INTO ngo_profiles (user_id, name, address, mission_statement, document_ref,
	             verification_status, verification_email_sent, lat, lng, created_at, updated_at)
	           VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?, ?, ?)`
	_, err := db.conn.Exec(q, p.UserID, p.Name, p.Address, p.MissionStatement, p.DocumentRef,
		string(status), lat, lng, p.CreatedAt, p.UpdatedAt)
	return err
}

// UpdateNGOProfile writes the editable NGO fields. Verification state is
// never touched here.
func (db *DB) UpdateNGOProfile(p *models.NGOProfile) error {
	lat, lng := nullCoordinate(p.Location)
	const q = `UPDATE ngo_profiles SET name = ?, address = ?, mission_statement = ?, document_ref = ?,
	             lat = ?, lng = ?, updated_at = ?
	           WHERE user_id = ?`
	_, err := db.conn.Exec(q, p.Name, p.Address, p.MissionStatement, p.DocumentRef, lat, lng, p.UpdatedAt, p.UserID)
	return err
}

// ReplaceNGOCategories swaps the NGO's accepted categories in one transaction.
func (db *DB) ReplaceNGOCategories(ngoID string, categoryIDs []string) error {
	return db.withTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM ngo_categories WHERE ngo_id = ?`, ngoID); err != nil {
			return err
		}
		for _, id := range categoryIDs {
			if _, err := tx.Exec(
				`INSERT INTO ngo_categories (ngo_id, category_id) VALUES (?, ?) ON CONFLICT DO NOTHING`,
				ngoID, id,
			); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetNGO returns an NGO account with its profile and accepted categories,
// or nil when the user does not exist or is not an NGO.
func (db *DB) GetNGO(userID string) (*models.NGO, error) {
	q := `SELECT ` + ngoColumns + ngoFrom + ` WHERE p.user_id = ?`
	n, err := scanNGO(db.conn.QueryRow(q, userID))
	if err != nil || n == nil {
		return n, err
	}
	ngos := []models.NGO{*n}
	if err := db.attachCategories(ngos); err != nil {
		return nil, err
	}
	return &ngos[0], nil
}

// ListNGOs returns NGOs newest first, filtered by status when given.
func (db *DB) ListNGOs(status models.VerificationStatus) ([]models.NGO, error) {
	if status != "" {
		q := `SELECT ` + ngoColumns + ngoFrom + ` WHERE p.verification_status = ? ORDER BY p.created_at DESC`
		return db.queryNGOs(q, string(status))
	}
	q := `SELECT ` + ngoColumns + ngoFrom + ` ORDER BY p.created_at DESC`
	return db.queryNGOs(q)
}

// ListVerifiedNGOs returns verified NGOs, optionally only those accepting
// categoryID, ordered by name.
func (db *DB) ListVerifiedNGOs(categoryID string) ([]models.NGO, error) {
	if categoryID != "" {
		q := `SELECT ` + ngoColumns + ngoFrom + `
		      JOIN ngo_categories c ON c.ngo_id = p.user_id AND c.category_id = ?
		      WHERE p.verification_status = 'VERIFIED' ORDER BY p.name COLLATE NOCASE`
		return db.queryNGOs(q, categoryID)
	}
	q := `SELECT ` + ngoColumns + ngoFrom + ` WHERE p.verification_status = 'VERIFIED' ORDER BY p.name COLLATE NOCASE`
	return db.queryNGOs(q)
}

// SetVerificationStatus changes an NGO's status. It reports false when no
// NGO profile exists for ngoID.
func (db *DB) SetVerificationStatus(ngoID string, status models.VerificationStatus) (bool, error) {
	const q = `UPDATE ngo_profiles SET verification_status = ?, updated_at = ? WHERE user_id = ?`
	res, err := db.conn.Exec(q, string(status), now(), ngoID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// ClaimVerificationNotice sets the notified flag of a verified NGO if it
// is still unset. Only one caller can win the claim.
func (db *DB) ClaimVerificationNotice(ngoID string) (bool, error) {
	const q = `UPDATE ngo_profiles SET verification_email_sent = 1
	           WHERE user_id = ? AND verification_status = 'VERIFIED' AND verification_email_sent = 0`
	res, err := db.conn.Exec(q, ngoID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// ReleaseVerificationNotice clears the notified flag after a failed send.
func (db *DB) ReleaseVerificationNotice(ngoID string) error {
	_, err := db.conn.Exec(`UPDATE ngo_profiles SET verification_email_sent = 0 WHERE user_id = ?`, ngoID)
	return err
}

// ListUnnotifiedNGOs returns verified NGOs whose notice was never sent.
func (db *DB) ListUnnotifiedNGOs() ([]models.NGO, error) {
	q := `SELECT ` + ngoColumns + ngoFrom + `
	      WHERE p.verification_status = 'VERIFIED' AND p.verification_email_sent = 0
	      ORDER BY p.updated_at`
	return db.queryNGOs(q)
}

func (db *DB) queryNGOs(query string, args ...interface{}) ([]models.NGO, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}

	ngos := []models.NGO{}
	for rows.Next() {
		n, err := scanNGO(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		ngos = append(ngos, *n)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if err := db.attachCategories(ngos); err != nil {
		return nil, err
	}
	return ngos, nil
}

// attachCategories fills Profile.CategoryIDs. Must run after the NGO rows
// are closed: the pool holds a single connection.
func (db *DB) attachCategories(ngos []models.NGO) error {
	if len(ngos) == 0 {
		return nil
	}
	index := make(map[string]int, len(ngos))
	args := make([]interface{}, len(ngos))
	for i := range ngos {
		index[ngos[i].Profile.UserID] = i
		args[i] = ngos[i].Profile.UserID
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ngos)), ",")

	rows, err := db.conn.Query(
		`SELECT ngo_id, category_id FROM ngo_categories WHERE ngo_id IN (`+placeholders+`) ORDER BY category_id`,
		args...,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var ngoID, categoryID string
		if err := rows.Scan(&ngoID, &categoryID); err != nil {
			return err
		}
		if i, ok := index[ngoID]; ok {
			ngos[i].Profile.CategoryIDs = append(ngos[i].Profile.CategoryIDs, categoryID)
		}
	}
	return rows.Err()
}
