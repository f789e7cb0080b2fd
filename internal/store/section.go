package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/veomenu/veomenu/internal/model"
)

type MenuSectionStore struct {
	db *sql.DB
}

func NewMenuSectionStore(db *sql.DB) *MenuSectionStore {
	return &MenuSectionStore{db: db}
}

func scanMenuSection(scanner interface{ Scan(...any) error }) (*model.MenuSection, error) {
	var sec model.MenuSection
	var name, description string

	err := scanner.Scan(
		&sec.ID, &sec.MenuID, &name, &description, &sec.Icon, &sec.Position,
		&sec.IsActive, &sec.CreatedAt, &sec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	sec.Name, err = decodeLangMap(name)
	if err != nil {
		return nil, err
	}
	sec.Description, err = decodeLangMap(description)
	if err != nil {
		return nil, err
	}
	return &sec, nil
}

const menuSectionCols = `id, menu_id, name, description, icon, position, is_active, created_at, updated_at`

func (s *MenuSectionStore) Create(sec *model.MenuSection) (*model.MenuSection, error) {
	name, err := encodeJSON(sec.Name)
	if err != nil {
		return nil, err
	}
	description, err := encodeJSON(sec.Description)
	if err != nil {
		return nil, err
	}
	id := uuid.NewString()

	_, err = s.db.Exec(
		`INSERT INTO menu_sections (id, menu_id, name, description, icon, position, is_active)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, sec.MenuID, name, description, sec.Icon, sec.Position, sec.IsActive,
	)
	if err != nil {
		return nil, fmt.Errorf("insert menu section: %w", err)
	}
	return s.GetByID(id)
}

func (s *MenuSectionStore) GetByID(id string) (*model.MenuSection, error) {
	row := s.db.QueryRow(`SELECT `+menuSectionCols+` FROM menu_sections WHERE id = ?`, id)
	sec, err := scanMenuSection(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get menu section: %w", err)
	}
	return sec, nil
}

func (s *MenuSectionStore) ListByMenu(menuID string) ([]model.MenuSection, error) {
	rows, err := s.db.Query(
		`SELECT `+menuSectionCols+` FROM menu_sections WHERE menu_id = ? ORDER BY position ASC, created_at ASC`,
		menuID,
	)
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
	return sections, rows.Err()
}

func (s *MenuSectionStore) Update(sec *model.MenuSection) (*model.MenuSection, error) {
	name, err := encodeJSON(sec.Name)
	if err != nil {
		return nil, err
	}
	description, err := encodeJSON(sec.Description)
	if err != nil {
		return nil, err
	}

	_, err = s.db.Exec(
		`UPDATE menu_sections SET name = ?, description = ?, icon = ?, position = ?, is_active = ?, updated_at = datetime('now')
		 WHERE id = ?`,
		name, description, sec.Icon, sec.Position, sec.IsActive, sec.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update menu section: %w", err)
	}
	return s.GetByID(sec.ID)
}

func (s *MenuSectionStore) Delete(id string) error {
	_, err := s.db.Exec(`DELETE FROM menu_sections WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete menu section: %w", err)
	}
	return nil
}
