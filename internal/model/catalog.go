package model

type MenuTag struct {
	ID       string            `json:"id"`
	Name     map[string]string `json:"name"`
	Icon     string            `json:"icon"`
	Color    string            `json:"color"`
	Category string            `json:"category"`
	IsActive bool              `json:"is_active"`
	Position int               `json:"position"`
}

type MenuAllergen struct {
	ID       string            `json:"id"`
	Name     map[string]string `json:"name"`
	Color    string            `json:"color"`
	IsActive bool              `json:"is_active"`
	Position int               `json:"position"`
}
