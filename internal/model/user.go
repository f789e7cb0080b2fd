package model

import "time"

type User struct {
	ID              int64      `json:"id"`
	Email           string     `json:"email"`
	Name            string     `json:"name"`
	PasswordHash    string     `json:"-"`
	Phone           string     `json:"phone"`
	IsPhoneVerified bool       `json:"is_phone_verified"`
	Language        string     `json:"language"`
	IsActive        bool       `json:"is_active"`
	IsStaff         bool       `json:"is_staff"`
	CreatedAt       time.Time  `json:"date_joined"`
	LastLoginAt     *time.Time `json:"last_login"`
}

// UserInstance is one membership row as embedded in profile responses.
type UserInstance struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

// UserProfile is the user payload returned by auth and profile endpoints.
type UserProfile struct {
	User
	HasInstances bool           `json:"has_instances"`
	Instances    []UserInstance `json:"instances"`
}
