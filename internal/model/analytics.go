package model

import "time"

type MenuView struct {
	ID         int64     `json:"id"`
	MenuID     string    `json:"menu_id"`
	Language   string    `json:"language"`
	DeviceType string    `json:"device_type"`
	ViewedAt   time.Time `json:"viewed_at"`
}

type DayViews struct {
	Date  string `json:"date"`
	Views int64  `json:"views"`
}

// MenuAnalytics summarizes view activity over a trailing window of days.
type MenuAnalytics struct {
	MenuID            string           `json:"menu_id"`
	MenuName          string           `json:"menu_name"`
	PeriodDays        int              `json:"period_days"`
	TotalViews        int64            `json:"total_views"`
	LanguageBreakdown map[string]int64 `json:"language_breakdown"`
	DeviceBreakdown   map[string]int64 `json:"device_breakdown"`
	ViewsByDay        []DayViews       `json:"views_by_day"`
}
