package model

import "time"

type QRCode struct {
	ID            string     `json:"id"`
	MenuID        string     `json:"menu_id"`
	Name          string     `json:"name"`
	URL           string     `json:"url"`
	ScanCount     int64      `json:"scan_count"`
	LastScannedAt *time.Time `json:"last_scanned_at"`
	IsActive      bool       `json:"is_active"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}
