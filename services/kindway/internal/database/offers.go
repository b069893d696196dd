package database

import (
	"database/sql"

	"github.com/jredh-dev/kindway/services/kindway/pkg/models"
)

const offerColumns = `id, donor_id, ngo_id, need_id, category_id, title, description, delivery, status, flow, created_at, updated_at`

func scanOffer(row scanner) (*models.Offer, error) {
	o := &models.Offer{}
	err := row.Scan(
		&o.ID, &o.DonorID, &o.NGOID, &o.NeedID, &o.CategoryID, &o.Title, &o.Description,
		&o.Delivery, &o.Status, &o.Flow, &o.CreatedAt, &o.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}

// CreateOffer inserts a new offer.
func (db *DB) CreateOffer(o *models.Offer) error {
	const q = `INSERT INTO offers (id, donor_id, ngo_id, need_id, category_id, title, description, delivery, status, flow, created_at, updated_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := db.conn.Exec(q,
		o.ID, o.DonorID, o.NGOID, o.NeedID, o.CategoryID, o.Title, o.Description,
		string(o.Delivery), string(o.Status), string(o.Flow), o.CreatedAt, o.UpdatedAt,
	)
	return err
}

// GetOffer returns an offer by ID, or nil if absent.
func (db *DB) GetOffer(id string) (*models.Offer, error) {
	q := `SELECT ` + offerColumns + ` FROM offers WHERE id = ?`
	return scanOffer(db.conn.QueryRow(q, id))
}

// ListOffersByDonor returns offers made by a donor, newest first.
func (db *DB) ListOffersByDonor(donorID string) ([]models.Offer, error) {
	q := `SELECT ` + offerColumns + ` FROM offers WHERE donor_id = ? ORDER BY created_at DESC`
	return db.queryOffers(q, donorID)
}

// ListOffersByNGO returns offers made to an NGO, newest first.
func (db *DB) ListOffersByNGO(ngoID string) ([]models.Offer, error) {
	q := `SELECT ` + offerColumns + ` FROM offers WHERE ngo_id = ? ORDER BY created_at DESC`
	return db.queryOffers(q, ngoID)
}

// SettleOffer moves a PENDING offer to status and, when the offer ends up
// in status, runs onSettled in the same transaction. An onSettled error
// rolls the transition back. onSettled also runs when an earlier call
// already settled the offer in status. The returned offer is the state
// after the update, or nil when the offer does not exist.
func (db *DB) SettleOffer(id string, status models.OfferStatus, onSettled func(tx *Tx, o *models.Offer) error) (*models.Offer, error) {
	var o *models.Offer
	err := db.withTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(
			`UPDATE offers SET status = ?, updated_at = ? WHERE id = ? AND status = 'PENDING'`,
			string(status), now(), id,
		); err != nil {
			return err
		}
		var err error
		o, err = scanOffer(tx.QueryRow(`SELECT `+offerColumns+` FROM offers WHERE id = ?`, id))
		if err != nil || o == nil || o.Status != status || onSettled == nil {
			return err
		}
		return onSettled(&Tx{tx: tx}, o)
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (db *DB) queryOffers(query string, args ...interface{}) ([]models.Offer, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	offers := []models.Offer{}
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		offers = append(offers, *o)
	}
	return offers, rows.Err()
}
