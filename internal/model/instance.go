package model

import "time"

// Member role constants
const (
	RoleOwner   = "owner"
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleStaff   = "staff"
)

// Subscription status constants
const (
	SubscriptionTrial     = "trial"
	SubscriptionActive    = "active"
	SubscriptionPastDue   = "past_due"
	SubscriptionCancelled = "cancelled"
)

type Instance struct {
	ID                     string    `json:"id"`
	Name                   string    `json:"name"`
	Slug                   string    `json:"slug"`
	Country                string    `json:"country"`
	City                   string    `json:"city"`
	Address                string    `json:"address"`
	Phone                  string    `json:"phone"`
	Email                  string    `json:"email"`
	Website                string    `json:"website"`
	Whatsapp               string    `json:"whatsapp"`
	Description            string    `json:"description"`
	CuisineType            string    `json:"cuisine_type"`
	WifiName               string    `json:"wifi_name"`
	WifiPassword           string    `json:"wifi_password"`
	ShowWifiOnMenu         bool      `json:"show_wifi_on_menu"`
	ShowHoursOnMenu        bool      `json:"show_hours_on_menu"`
	GoogleBusinessURL      string    `json:"google_business_url"`
	ShowGoogleRating       bool      `json:"show_google_rating"`
	SubscriptionStatus     string    `json:"subscription_status"`
	QRForegroundColor      string    `json:"qr_foreground_color"`
	QRSize                 int       `json:"qr_size"`
	QRMargin               int       `json:"qr_margin"`
	QRErrorCorrectionLevel string    `json:"qr_error_correction_level"`
	QRSelectedMenuID       *string   `json:"qr_selected_menu_id"`
	IsActive               bool      `json:"is_active"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

type InstanceMember struct {
	ID         int64     `json:"id"`
	InstanceID string    `json:"instance_id"`
	UserID     int64     `json:"user_id"`
	Role       string    `json:"role"`
	IsActive   bool      `json:"is_active"`
	JoinedAt   time.Time `json:"joined_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	// Joined from users, populated on reads.
	UserEmail string `json:"user_email,omitempty"`
	UserName  string `json:"user_name,omitempty"`
}

// BusinessHour is one weekday's opening window. DayOfWeek runs 0 (Monday)
// through 6 (Sunday).
type BusinessHour struct {
	ID          int64  `json:"id"`
	InstanceID  string `json:"instance_id"`
	DayOfWeek   int    `json:"day_of_week"`
	OpeningTime string `json:"opening_time"`
	ClosingTime string `json:"closing_time"`
	IsClosed    bool   `json:"is_closed"`
}
