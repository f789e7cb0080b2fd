package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/veomenu/veomenu/internal/model"
)

type SessionStore struct {
	db *sql.DB
}

func NewSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{db: db}
}

func scanSession(scanner interface{ Scan(...any) error }) (*model.Session, error) {
	var sess model.Session
	err := scanner.Scan(
		&sess.ID, &sess.UserID, &sess.Token, &sess.RefreshToken,
		&sess.IPAddress, &sess.UserAgent, &sess.DeviceType, &sess.IsActive,
		&sess.CreatedAt, &sess.LastActivity, &sess.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

const sessionCols = `id, user_id, token, refresh_token, ip_address, user_agent, device_type, is_active, created_at, last_activity, expires_at`

// Create records a login session bound to the issued token pair.
func (s *SessionStore) Create(userID int64, token, refreshToken, ip, userAgent, deviceType string, ttl time.Duration) (*model.Session, error) {
	expiresAt := time.Now().UTC().Add(ttl)

	result, err := s.db.Exec(
		`INSERT INTO sessions (user_id, token, refresh_token, ip_address, user_agent, device_type, expires_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		userID, token, refreshToken, ip, userAgent, deviceType, expiresAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *SessionStore) GetByID(id int64) (*model.Session, error) {
	row := s.db.QueryRow(`SELECT `+sessionCols+` FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

// GetByToken returns the active, unexpired session bound to an access
// token, or nil.
func (s *SessionStore) GetByToken(token string) (*model.Session, error) {
	row := s.db.QueryRow(
		`SELECT `+sessionCols+` FROM sessions WHERE token = ? AND is_active = 1 AND expires_at > datetime('now')`,
		token,
	)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session by token: %w", err)
	}
	return sess, nil
}

// GetByRefreshToken returns the active, unexpired session bound to a
// refresh token, or nil.
func (s *SessionStore) GetByRefreshToken(refreshToken string) (*model.Session, error) {
	row := s.db.QueryRow(
		`SELECT `+sessionCols+` FROM sessions WHERE refresh_token = ? AND is_active = 1 AND expires_at > datetime('now')`,
		refreshToken,
	)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session by refresh token: %w", err)
	}
	return sess, nil
}

// UpdateAccessToken rebinds the session to a freshly issued access token
// so logout and revocation keep working after a refresh.
func (s *SessionStore) UpdateAccessToken(id int64, token string) error {
	_, err := s.db.Exec(
		`UPDATE sessions SET token = ?, last_activity = datetime('now') WHERE id = ?`,
		token, id,
	)
	if err != nil {
		return fmt.Errorf("update session token: %w", err)
	}
	return nil
}

func (s *SessionStore) TouchActivity(id int64) error {
	_, err := s.db.Exec(
		`UPDATE sessions SET last_activity = datetime('now') WHERE id = ?`,
		id,
	)
	if err != nil {
		return fmt.Errorf("touch session activity: %w", err)
	}
	return nil
}

// Deactivate ends a session. Returns false when no active session had
// the given id.
func (s *SessionStore) Deactivate(id int64) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE sessions SET is_active = 0 WHERE id = ? AND is_active = 1`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("deactivate session: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return count > 0, nil
}

// DeactivateForUser revokes one of the user's own sessions. Returns
// false when the session does not exist, belongs to someone else or is
// already inactive.
func (s *SessionStore) DeactivateForUser(userID, sessionID int64) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE sessions SET is_active = 0 WHERE id = ? AND user_id = ? AND is_active = 1`,
		sessionID, userID,
	)
	if err != nil {
		return false, fmt.Errorf("deactivate session for user: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return count > 0, nil
}

// ListActiveByUser returns the user's active sessions, most recently
// used first.
func (s *SessionStore) ListActiveByUser(userID int64) ([]model.Session, error) {
	rows, err := s.db.Query(
		`SELECT `+sessionCols+` FROM sessions WHERE user_id = ? AND is_active = 1 AND expires_at > datetime('now') ORDER BY last_activity DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []model.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, *sess)
	}
	return sessions, rows.Err()
}

func (s *SessionStore) DeleteExpired() (int64, error) {
	result, err := s.db.Exec(`DELETE FROM sessions WHERE expires_at <= datetime('now')`)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}
