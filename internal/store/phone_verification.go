package store

import (
	"crypto/rand"
	"database/sql"
	"fmt"
	"math/big"
	"time"

	"github.com/veomenu/veomenu/internal/model"
)

// Phone verification constants
const (
	PhoneCodeLifetime = 10 * time.Minute
	PhoneCodeCooldown = 10 * time.Minute
	PhoneMaxAttempts  = 3
)

type PhoneVerificationStore struct {
	db *sql.DB
}

func NewPhoneVerificationStore(db *sql.DB) *PhoneVerificationStore {
	return &PhoneVerificationStore{db: db}
}

func scanPhoneVerification(scanner interface{ Scan(...any) error }) (*model.PhoneVerification, error) {
	var pv model.PhoneVerification
	var verifiedAt sql.NullTime

	err := scanner.Scan(
		&pv.ID, &pv.UserID, &pv.PhoneNumber, &pv.Code, &pv.IsVerified, &verifiedAt,
		&pv.Attempts, &pv.MaxAttempts, &pv.CreatedAt, &pv.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}

	if verifiedAt.Valid {
		pv.VerifiedAt = &verifiedAt.Time
	}
	return &pv, nil
}

const phoneVerificationCols = `id, user_id, phone_number, code, is_verified, verified_at, attempts, max_attempts, created_at, expires_at`

// generatePhoneCode returns a 6-digit numeric code. Leading zeros are
// allowed, so the value space is 000000 through 999999.
func generatePhoneCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("generate phone code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// GetByUserID returns the user's single verification row, or nil.
func (s *PhoneVerificationStore) GetByUserID(userID int64) (*model.PhoneVerification, error) {
	row := s.db.QueryRow(`SELECT `+phoneVerificationCols+` FROM phone_verifications WHERE user_id = ?`, userID)
	pv, err := scanPhoneVerification(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get phone verification: %w", err)
	}
	return pv, nil
}

// Upsert issues a fresh code for the user, replacing any previous row.
// Each user holds at most one verification at a time.
func (s *PhoneVerificationStore) Upsert(userID int64, phone string) (*model.PhoneVerification, error) {
	code, err := generatePhoneCode()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	expiresAt := now.Add(PhoneCodeLifetime)

	_, err = s.db.Exec(
		`INSERT INTO phone_verifications (user_id, phone_number, code, expires_at, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   phone_number = excluded.phone_number,
		   code = excluded.code,
		   is_verified = 0,
		   verified_at = NULL,
		   attempts = 0,
		   created_at = excluded.created_at,
		   expires_at = excluded.expires_at`,
		userID, phone, code, expiresAt, now,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert phone verification: %w", err)
	}
	return s.GetByUserID(userID)
}

// IncrementAttempts bumps the failed attempt count and returns the new value.
func (s *PhoneVerificationStore) IncrementAttempts(id int64) (int, error) {
	_, err := s.db.Exec(
		`UPDATE phone_verifications SET attempts = attempts + 1 WHERE id = ?`,
		id,
	)
	if err != nil {
		return 0, fmt.Errorf("increment attempts: %w", err)
	}

	var attempts int
	err = s.db.QueryRow(`SELECT attempts FROM phone_verifications WHERE id = ?`, id).Scan(&attempts)
	if err != nil {
		return 0, fmt.Errorf("read attempts: %w", err)
	}
	return attempts, nil
}

func (s *PhoneVerificationStore) MarkVerified(id int64) error {
	_, err := s.db.Exec(
		`UPDATE phone_verifications SET is_verified = 1, verified_at = datetime('now') WHERE id = ?`,
		id,
	)
	if err != nil {
		return fmt.Errorf("mark phone verification verified: %w", err)
	}
	return nil
}
