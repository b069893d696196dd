package database

import (
	"database/sql"

	"github.com/google/uuid"

	"github.com/jredh-dev/kindway/services/kindway/pkg/identity"
	"github.com/jredh-dev/kindway/services/kindway/pkg/models"
)

// DefaultCategories are seeded on every start; existing names are kept.
var DefaultCategories = []string{
	"Food", "Clothes", "Blood", "Books", "Toys", "Saplings", "Electronics", "Furniture",
}

// SeedCategories inserts each name unless a category with the same
// normalized name already exists.
func (db *DB) SeedCategories(names []string) error {
	const q = `INSERT INTO categories (id, name, name_key, created_at) VALUES (?, ?, ?, ?)
	           ON CONFLICT(name_key) DO NOTHING`
	return db.withTx(func(tx *sql.Tx) error {
		for _, name := range names {
			if _, err := tx.Exec(q, uuid.New().String(), name, identity.NormalizeName(name), now()); err != nil {
				return err
			}
		}
		return nil
	})
}

// CreateCategory inserts a category. Names that collide after
// normalization yield ErrDuplicate.
func (db *DB) CreateCategory(c *models.Category) error {
	const q = `INSERT INTO categories (id, name, name_key, created_at) VALUES (?, ?, ?, ?)
	           ON CONFLICT(name_key) DO NOTHING`
	res, err := db.conn.Exec(q, c.ID, c.Name, identity.NormalizeName(c.Name), c.CreatedAt)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrDuplicate
	}
	return nil
}

// GetCategory returns a category by ID, or nil if absent.
func (db *DB) GetCategory(id string) (*models.Category, error) {
	c := &models.Category{}
	err := db.conn.QueryRow(`SELECT id, name, created_at FROM categories WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// GetCategoryByName finds a category by its normalized name.
func (db *DB) GetCategoryByName(name string) (*models.Category, error) {
	c := &models.Category{}
	err := db.conn.QueryRow(`SELECT id, name, created_at FROM categories WHERE name_key = ?`, identity.NormalizeName(name)).
		Scan(&c.ID, &c.Name, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ListCategories returns all categories ordered by name.
func (db *DB) ListCategories() ([]models.Category, error) {
	rows, err := db.conn.Query(`SELECT id, name, created_at FROM categories ORDER BY name_key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := []models.Category{}
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// CategoriesExist reports whether every id names a known category.
func (db *DB) CategoriesExist(ids []string) (bool, error) {
	for _, id := range ids {
		c, err := db.GetCategory(id)
		if err != nil {
			return false, err
		}
		if c == nil {
			return false, nil
		}
	}
	return true, nil
}
