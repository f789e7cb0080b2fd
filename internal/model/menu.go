package model

import "time"

type Menu struct {
	ID                 string     `json:"id"`
	InstanceID         string     `json:"instance_id"`
	Name               string     `json:"name"`
	Description        string     `json:"description"`
	Icon               string     `json:"icon"`
	DefaultLanguage    string     `json:"default_language"`
	AvailableLanguages []string   `json:"available_languages"`
	IsActive           bool       `json:"is_active"`
	ViewCount          int64      `json:"view_count"`
	LastViewedAt       *time.Time `json:"last_viewed_at"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`

	// Populated on full reads.
	Sections []MenuSection `json:"sections,omitempty"`
}

// MenuSection groups items under a multilingual heading. Name and
// Description map language codes to text.
type MenuSection struct {
	ID          string            `json:"id"`
	MenuID      string            `json:"menu_id"`
	Name        map[string]string `json:"name"`
	Description map[string]string `json:"description"`
	Icon        string            `json:"icon"`
	Position    int               `json:"position"`
	IsActive    bool              `json:"is_active"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`

	Items []MenuItem `json:"items,omitempty"`
}

type MenuItem struct {
	ID          string            `json:"id"`
	SectionID   string            `json:"section_id"`
	Name        map[string]string `json:"name"`
	Description map[string]string `json:"description"`
	Price       float64           `json:"price"`
	Currency    string            `json:"currency"`
	SpicyLevel  int               `json:"spicy_level"`
	Allergens   []string          `json:"allergens"`
	Tags        []string          `json:"tags"`
	Calories    *int              `json:"calories"`
	Position    int               `json:"position"`
	IsActive    bool              `json:"is_active"`
	IsAvailable bool              `json:"is_available"`
	IsFeatured  bool              `json:"is_featured"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}
