package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/veomenu/veomenu/internal/model"
)

// ErrEmailTaken reports an insert against an email another account already holds.
var ErrEmailTaken = errors.New("email already registered")

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	var passwordHash sql.NullString
	var lastLogin sql.NullTime

	err := scanner.Scan(
		&u.ID, &u.Email, &u.Name, &passwordHash, &u.Phone, &u.IsPhoneVerified,
		&u.Language, &u.IsActive, &u.IsStaff, &u.CreatedAt, &lastLogin,
	)
	if err != nil {
		return nil, err
	}

	u.PasswordHash = passwordHash.String
	if lastLogin.Valid {
		u.LastLoginAt = &lastLogin.Time
	}
	return &u, nil
}

const userCols = `id, email, name, password_hash, phone, is_phone_verified, language, is_active, is_staff, created_at, last_login_at`

func (s *UserStore) Create(email, name, passwordHash, phone, language string) (*model.User, error) {
	result, err := s.db.Exec(
		`INSERT INTO users (email, name, password_hash, phone, language) VALUES (?, ?, ?, ?, ?)`,
		email, name, passwordHash, phone, language,
	)
	if isUniqueViolation(err) {
		return nil, ErrEmailTaken
	}
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *UserStore) GetByID(id int64) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByEmail(email string) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE email = ?`, email)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// GetByPhone returns the user whose verified phone matches, or nil.
func (s *UserStore) GetByPhone(phone string) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE phone = ? AND phone != ''`, phone)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by phone: %w", err)
	}
	return u, nil
}

func (s *UserStore) UpdateProfile(id int64, name, phone, language string) (*model.User, error) {
	_, err := s.db.Exec(
		`UPDATE users SET name = ?, phone = ?, language = ? WHERE id = ?`,
		name, phone, language, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update user profile: %w", err)
	}
	return s.GetByID(id)
}

// SetPhoneVerified stores a confirmed phone number on the user record.
func (s *UserStore) SetPhoneVerified(id int64, phone string) error {
	_, err := s.db.Exec(
		`UPDATE users SET phone = ?, is_phone_verified = 1 WHERE id = ?`,
		phone, id,
	)
	if err != nil {
		return fmt.Errorf("set phone verified: %w", err)
	}
	return nil
}

func (s *UserStore) TouchLastLogin(id int64) error {
	_, err := s.db.Exec(
		`UPDATE users SET last_login_at = datetime('now') WHERE id = ?`,
		id,
	)
	if err != nil {
		return fmt.Errorf("touch last login: %w", err)
	}
	return nil
}

// Delete removes the account together with every instance the user owns.
// Foreign keys cascade from both parents: sessions, magic links, phone
// verifications, memberships, menus, tickets, and push subscriptions go
// with them. Ticket messages on other instances keep their content with
// a null author.
func (s *UserStore) Delete(id int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`DELETE FROM instances WHERE id IN (
			SELECT instance_id FROM instance_members WHERE user_id = ? AND role = ?
		)`,
		id, model.RoleOwner,
	)
	if err != nil {
		return fmt.Errorf("delete owned instances: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM users WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return tx.Commit()
}
