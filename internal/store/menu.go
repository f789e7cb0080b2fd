package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/veomenu/veomenu/internal/model"
)

type MenuStore struct {
	db *sql.DB
}

func NewMenuStore(db *sql.DB) *MenuStore {
	return &MenuStore{db: db}
}

func scanMenu(scanner interface{ Scan(...any) error }) (*model.Menu, error) {
	var m model.Menu
	var languages string
	var lastViewed sql.NullTime

	err := scanner.Scan(
		&m.ID, &m.InstanceID, &m.Name, &m.Description, &m.Icon, &m.DefaultLanguage,
		&languages, &m.IsActive, &m.ViewCount, &lastViewed, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	m.AvailableLanguages, err = decodeStringList(languages)
	if err != nil {
		return nil, err
	}
	if lastViewed.Valid {
		m.LastViewedAt = &lastViewed.Time
	}
	return &m, nil
}

const menuCols = `id, instance_id, name, description, icon, default_language, available_languages, is_active, view_count, last_viewed_at, created_at, updated_at`

func (s *MenuStore) Create(m *model.Menu) (*model.Menu, error) {
	languages, err := encodeJSON(m.AvailableLanguages)
	if err != nil {
		return nil, err
	}
	id := uuid.NewString()

	_, err = s.db.Exec(
		`INSERT INTO menus (id, instance_id, name, description, icon, default_language, available_languages, is_active)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, m.InstanceID, m.Name, m.Description, m.Icon, m.DefaultLanguage, languages, m.IsActive,
	)
	if err != nil {
		return nil, fmt.Errorf("insert menu: %w", err)
	}
	return s.GetByID(id)
}

func (s *MenuStore) GetByID(id string) (*model.Menu, error) {
	row := s.db.QueryRow(`SELECT `+menuCols+` FROM menus WHERE id = ?`, id)
	m, err := scanMenu(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get menu: %w", err)
	}
	return m, nil
}

// GetFull returns the menu with its sections and items. With activeOnly
// set, inactive sections and items are filtered out, as on the public
// menu page.
func (s *MenuStore) GetFull(id string, activeOnly bool) (*model.Menu, error) {
	m, err := s.GetByID(id)
	if err != nil || m == nil {
		return m, err
	}

	sectionQuery := `SELECT ` + menuSectionCols + ` FROM menu_sections WHERE menu_id = ? ORDER BY position ASC, created_at ASC`
	if activeOnly {
		sectionQuery = `SELECT ` + menuSectionCols + ` FROM menu_sections WHERE menu_id = ? AND is_active = 1 ORDER BY position ASC, created_at ASC`
	}
	rows, err := s.db.Query(sectionQuery, id)
	if err != nil {
		return nil, fmt.Errorf("list menu sections: %w", err)
	}
	defer rows.Close()

	var sections []model.MenuSection
	for rows.Next() {
		sec, err := scanMenuSection(rows)
		if err != nil {
			return nil, fmt.Errorf("scan menu section: %w", err)
		}
		sections = append(sections, *sec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	itemQuery := `SELECT ` + menuItemCols + ` FROM menu_items WHERE section_id = ? ORDER BY position ASC, created_at ASC`
	if activeOnly {
		itemQuery = `SELECT ` + menuItemCols + ` FROM menu_items WHERE section_id = ? AND is_active = 1 ORDER BY position ASC, created_at ASC`
	}
	for i := range sections {
		itemRows, err := s.db.Query(itemQuery, sections[i].ID)
		if err != nil {
			return nil, fmt.Errorf("list menu items: %w", err)
		}
		for itemRows.Next() {
			item, err := scanMenuItem(itemRows)
			if err != nil {
				itemRows.Close()
				return nil, fmt.Errorf("scan menu item: %w", err)
			}
			sections[i].Items = append(sections[i].Items, *item)
		}
		if err := itemRows.Err(); err != nil {
			itemRows.Close()
			return nil, err
		}
		itemRows.Close()
	}

	m.Sections = sections
	return m, nil
}

func (s *MenuStore) ListByInstance(instanceID string) ([]model.Menu, error) {
	rows, err := s.db.Query(
		`SELECT `+menuCols+` FROM menus WHERE instance_id = ? ORDER BY created_at ASC`,
		instanceID,
	)
	if err != nil {
		return nil, fmt.Errorf("list menus: %w", err)
	}
	defer rows.Close()

	var menus []model.Menu
	for rows.Next() {
		m, err := scanMenu(rows)
		if err != nil {
			return nil, fmt.Errorf("scan menu: %w", err)
		}
		menus = append(menus, *m)
	}
	return menus, rows.Err()
}

func (s *MenuStore) Update(m *model.Menu) (*model.Menu, error) {
	languages, err := encodeJSON(m.AvailableLanguages)
	if err != nil {
		return nil, err
	}

	_, err = s.db.Exec(
		`UPDATE menus SET name = ?, description = ?, icon = ?, default_language = ?, available_languages = ?, is_active = ?, updated_at = datetime('now')
		 WHERE id = ?`,
		m.Name, m.Description, m.Icon, m.DefaultLanguage, languages, m.IsActive, m.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update menu: %w", err)
	}
	return s.GetByID(m.ID)
}

func (s *MenuStore) Delete(id string) error {
	_, err := s.db.Exec(`DELETE FROM menus WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete menu: %w", err)
	}
	return nil
}

// Duplicate deep-copies the menu with every section and item. The copy
// starts inactive with a fresh view counter and a " (Copy)" name suffix.
func (s *MenuStore) Duplicate(id string) (*model.Menu, error) {
	src, err := s.GetFull(id, false)
	if err != nil {
		return nil, err
	}
	if src == nil {
		return nil, nil
	}

	languages, err := encodeJSON(src.AvailableLanguages)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	newID := uuid.NewString()
	_, err = tx.Exec(
		`INSERT INTO menus (id, instance_id, name, description, icon, default_language, available_languages, is_active)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 0)`,
		newID, src.InstanceID, src.Name+" (Copy)", src.Description, src.Icon, src.DefaultLanguage, languages,
	)
	if err != nil {
		return nil, fmt.Errorf("insert menu copy: %w", err)
	}

	for _, sec := range src.Sections {
		secName, err := encodeJSON(sec.Name)
		if err != nil {
			return nil, err
		}
		secDesc, err := encodeJSON(sec.Description)
		if err != nil {
			return nil, err
		}
		newSectionID := uuid.NewString()
		_, err = tx.Exec(
			`INSERT INTO menu_sections (id, menu_id, name, description, icon, position, is_active)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			newSectionID, newID, secName, secDesc, sec.Icon, sec.Position, sec.IsActive,
		)
		if err != nil {
			return nil, fmt.Errorf("insert section copy: %w", err)
		}

		for _, item := range sec.Items {
			itemName, err := encodeJSON(item.Name)
			if err != nil {
				return nil, err
			}
			itemDesc, err := encodeJSON(item.Description)
			if err != nil {
				return nil, err
			}
			allergens, err := encodeJSON(item.Allergens)
			if err != nil {
				return nil, err
			}
			tags, err := encodeJSON(item.Tags)
			if err != nil {
				return nil, err
			}
			var calories sql.NullInt64
			if item.Calories != nil {
				calories = sql.NullInt64{Int64: int64(*item.Calories), Valid: true}
			}
			_, err = tx.Exec(
				`INSERT INTO menu_items (id, section_id, name, description, price, currency, spicy_level, allergens, tags, calories, position, is_active, is_available, is_featured)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				uuid.NewString(), newSectionID, itemName, itemDesc, item.Price, item.Currency,
				item.SpicyLevel, allergens, tags, calories, item.Position,
				item.IsActive, item.IsAvailable, item.IsFeatured,
			)
			if err != nil {
				return nil, fmt.Errorf("insert item copy: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetByID(newID)
}
