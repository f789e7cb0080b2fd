package store

import (
	"database/sql"
	"fmt"

	"github.com/veomenu/veomenu/internal/model"
)

type InstanceMemberStore struct {
	db *sql.DB
}

func NewInstanceMemberStore(db *sql.DB) *InstanceMemberStore {
	return &InstanceMemberStore{db: db}
}

func scanMember(scanner interface{ Scan(...any) error }) (*model.InstanceMember, error) {
	var m model.InstanceMember
	err := scanner.Scan(
		&m.ID, &m.InstanceID, &m.UserID, &m.Role, &m.IsActive, &m.JoinedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

const memberCols = `id, instance_id, user_id, role, is_active, joined_at, updated_at`

// GetRole returns the user's active role on the instance, or "" for
// non-members.
func (s *InstanceMemberStore) GetRole(instanceID string, userID int64) (string, error) {
	var role string
	err := s.db.QueryRow(
		`SELECT role FROM instance_members WHERE instance_id = ? AND user_id = ? AND is_active = 1`,
		instanceID, userID,
	).Scan(&role)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get member role: %w", err)
	}
	return role, nil
}

// Get returns the membership row regardless of its active flag, or nil.
func (s *InstanceMemberStore) Get(instanceID string, userID int64) (*model.InstanceMember, error) {
	row := s.db.QueryRow(
		`SELECT `+memberCols+` FROM instance_members WHERE instance_id = ? AND user_id = ?`,
		instanceID, userID,
	)
	m, err := scanMember(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

func (s *InstanceMemberStore) GetByID(id int64) (*model.InstanceMember, error) {
	row := s.db.QueryRow(`SELECT `+memberCols+` FROM instance_members WHERE id = ?`, id)
	m, err := scanMember(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get member by id: %w", err)
	}
	return m, nil
}

// List returns active members with their user details, owner first by
// join date.
func (s *InstanceMemberStore) List(instanceID string) ([]model.InstanceMember, error) {
	rows, err := s.db.Query(
		`SELECT m.id, m.instance_id, m.user_id, m.role, m.is_active, m.joined_at, m.updated_at, u.email, u.name
		 FROM instance_members m
		 JOIN users u ON u.id = m.user_id
		 WHERE m.instance_id = ? AND m.is_active = 1
		 ORDER BY m.joined_at ASC`,
		instanceID,
	)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []model.InstanceMember
	for rows.Next() {
		var m model.InstanceMember
		err := rows.Scan(
			&m.ID, &m.InstanceID, &m.UserID, &m.Role, &m.IsActive, &m.JoinedAt, &m.UpdatedAt,
			&m.UserEmail, &m.UserName,
		)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (s *InstanceMemberStore) Add(instanceID string, userID int64, role string) (*model.InstanceMember, error) {
	result, err := s.db.Exec(
		`INSERT INTO instance_members (instance_id, user_id, role) VALUES (?, ?, ?)`,
		instanceID, userID, role,
	)
	if err != nil {
		return nil, fmt.Errorf("insert member: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

// Reactivate restores a removed membership under a new role.
func (s *InstanceMemberStore) Reactivate(id int64, role string) (*model.InstanceMember, error) {
	_, err := s.db.Exec(
		`UPDATE instance_members SET role = ?, is_active = 1, updated_at = datetime('now') WHERE id = ?`,
		role, id,
	)
	if err != nil {
		return nil, fmt.Errorf("reactivate member: %w", err)
	}
	return s.GetByID(id)
}

// Remove deactivates the membership. Returns false when the user had no
// active membership.
func (s *InstanceMemberStore) Remove(instanceID string, userID int64) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE instance_members SET is_active = 0, updated_at = datetime('now')
		 WHERE instance_id = ? AND user_id = ? AND is_active = 1`,
		instanceID, userID,
	)
	if err != nil {
		return false, fmt.Errorf("remove member: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return count > 0, nil
}

// ListMembershipsByUser returns the instance id, name and role for each
// of the user's active memberships.
func (s *InstanceMemberStore) ListMembershipsByUser(userID int64) ([]model.UserInstance, error) {
	rows, err := s.db.Query(
		`SELECT i.id, i.name, m.role
		 FROM instance_members m
		 JOIN instances i ON i.id = m.instance_id
		 WHERE m.user_id = ? AND m.is_active = 1 AND i.is_active = 1
		 ORDER BY m.joined_at ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	defer rows.Close()

	var memberships []model.UserInstance
	for rows.Next() {
		var ui model.UserInstance
		if err := rows.Scan(&ui.ID, &ui.Name, &ui.Role); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		memberships = append(memberships, ui)
	}
	return memberships, rows.Err()
}
