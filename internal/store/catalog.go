package store

import (
	"database/sql"
	"fmt"

	"github.com/veomenu/veomenu/internal/model"
)

// CatalogStore serves the read-only dietary tag and allergen
// reference data seeded at migration time.
type CatalogStore struct {
	db *sql.DB
}

func NewCatalogStore(db *sql.DB) *CatalogStore {
	return &CatalogStore{db: db}
}

func (s *CatalogStore) ListTags() ([]model.MenuTag, error) {
	rows, err := s.db.Query(
		`SELECT id, name, icon, color, category, is_active, position FROM menu_tags WHERE is_active = 1 ORDER BY position ASC, id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list menu tags: %w", err)
	}
	defer rows.Close()

	var tags []model.MenuTag
	for rows.Next() {
		var t model.MenuTag
		var name string
		err := rows.Scan(&t.ID, &name, &t.Icon, &t.Color, &t.Category, &t.IsActive, &t.Position)
		if err != nil {
			return nil, fmt.Errorf("scan menu tag: %w", err)
		}
		t.Name, err = decodeLangMap(name)
		if err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

func (s *CatalogStore) ListAllergens() ([]model.MenuAllergen, error) {
	rows, err := s.db.Query(
		`SELECT id, name, color, is_active, position FROM menu_allergens WHERE is_active = 1 ORDER BY position ASC, id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list menu allergens: %w", err)
	}
	defer rows.Close()

	var allergens []model.MenuAllergen
	for rows.Next() {
		var a model.MenuAllergen
		var name string
		err := rows.Scan(&a.ID, &name, &a.Color, &a.IsActive, &a.Position)
		if err != nil {
			return nil, fmt.Errorf("scan menu allergen: %w", err)
		}
		a.Name, err = decodeLangMap(name)
		if err != nil {
			return nil, err
		}
		allergens = append(allergens, a)
	}
	return allergens, rows.Err()
}
