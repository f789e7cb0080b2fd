package model

import "time"

type PhoneVerification struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"user_id"`
	PhoneNumber string     `json:"phone_number"`
	Code        string     `json:"-"`
	IsVerified  bool       `json:"is_verified"`
	VerifiedAt  *time.Time `json:"verified_at"`
	Attempts    int        `json:"attempts"`
	MaxAttempts int        `json:"max_attempts"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   time.Time  `json:"expires_at"`
}
