package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/veomenu/veomenu/internal/model"
)

type MenuItemStore struct {
	db *sql.DB
}

func NewMenuItemStore(db *sql.DB) *MenuItemStore {
	return &MenuItemStore{db: db}
}

func scanMenuItem(scanner interface{ Scan(...any) error }) (*model.MenuItem, error) {
	var item model.MenuItem
	var name, description, allergens, tags string
	var calories sql.NullInt64

	err := scanner.Scan(
		&item.ID, &item.SectionID, &name, &description, &item.Price, &item.Currency,
		&item.SpicyLevel, &allergens, &tags, &calories, &item.Position,
		&item.IsActive, &item.IsAvailable, &item.IsFeatured, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	item.Name, err = decodeLangMap(name)
	if err != nil {
		return nil, err
	}
	item.Description, err = decodeLangMap(description)
	if err != nil {
		return nil, err
	}
	item.Allergens, err = decodeStringList(allergens)
	if err != nil {
		return nil, err
	}
	item.Tags, err = decodeStringList(tags)
	if err != nil {
		return nil, err
	}
	if calories.Valid {
		c := int(calories.Int64)
		item.Calories = &c
	}
	return &item, nil
}

const menuItemCols = `id, section_id, name, description, price, currency, spicy_level, allergens, tags, calories, position, is_active, is_available, is_featured, created_at, updated_at`

func (s *MenuItemStore) Create(item *model.MenuItem) (*model.MenuItem, error) {
	name, description, allergens, tags, calories, err := encodeMenuItemColumns(item)
	if err != nil {
		return nil, err
	}
	id := uuid.NewString()

	_, err = s.db.Exec(
		`INSERT INTO menu_items (id, section_id, name, description, price, currency, spicy_level, allergens, tags, calories, position, is_active, is_available, is_featured)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, item.SectionID, name, description, item.Price, item.Currency,
		item.SpicyLevel, allergens, tags, calories, item.Position,
		item.IsActive, item.IsAvailable, item.IsFeatured,
	)
	if err != nil {
		return nil, fmt.Errorf("insert menu item: %w", err)
	}
	return s.GetByID(id)
}

func (s *MenuItemStore) GetByID(id string) (*model.MenuItem, error) {
	row := s.db.QueryRow(`SELECT `+menuItemCols+` FROM menu_items WHERE id = ?`, id)
	item, err := scanMenuItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get menu item: %w", err)
	}
	return item, nil
}

func (s *MenuItemStore) ListBySection(sectionID string) ([]model.MenuItem, error) {
	rows, err := s.db.Query(
		`SELECT `+menuItemCols+` FROM menu_items WHERE section_id = ? ORDER BY position ASC, created_at ASC`,
		sectionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list menu items: %w", err)
	}
	defer rows.Close()

	var items []model.MenuItem
	for rows.Next() {
		item, err := scanMenuItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan menu item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func (s *MenuItemStore) Update(item *model.MenuItem) (*model.MenuItem, error) {
	name, description, allergens, tags, calories, err := encodeMenuItemColumns(item)
	if err != nil {
		return nil, err
	}

	_, err = s.db.Exec(
		`UPDATE menu_items SET name = ?, description = ?, price = ?, currency = ?, spicy_level = ?, allergens = ?, tags = ?, calories = ?, position = ?, is_active = ?, is_available = ?, is_featured = ?, updated_at = datetime('now')
		 WHERE id = ?`,
		name, description, item.Price, item.Currency, item.SpicyLevel,
		allergens, tags, calories, item.Position,
		item.IsActive, item.IsAvailable, item.IsFeatured, item.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update menu item: %w", err)
	}
	return s.GetByID(item.ID)
}

// ToggleAvailability flips the item's availability flag and returns the
// updated row.
func (s *MenuItemStore) ToggleAvailability(id string) (*model.MenuItem, error) {
	_, err := s.db.Exec(
		`UPDATE menu_items SET is_available = NOT is_available, updated_at = datetime('now') WHERE id = ?`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("toggle menu item availability: %w", err)
	}
	return s.GetByID(id)
}

func (s *MenuItemStore) Delete(id string) error {
	_, err := s.db.Exec(`DELETE FROM menu_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete menu item: %w", err)
	}
	return nil
}

func encodeMenuItemColumns(item *model.MenuItem) (string, string, string, string, sql.NullInt64, error) {
	var calories sql.NullInt64

	name, err := encodeJSON(item.Name)
	if err != nil {
		return "", "", "", "", calories, err
	}
	description, err := encodeJSON(item.Description)
	if err != nil {
		return "", "", "", "", calories, err
	}
	allergens, err := encodeJSON(item.Allergens)
	if err != nil {
		return "", "", "", "", calories, err
	}
	tags, err := encodeJSON(item.Tags)
	if err != nil {
		return "", "", "", "", calories, err
	}
	if item.Calories != nil {
		calories = sql.NullInt64{Int64: int64(*item.Calories), Valid: true}
	}
	return name, description, allergens, tags, calories, nil
}
