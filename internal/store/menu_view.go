package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/veomenu/veomenu/internal/model"
)

type MenuViewStore struct {
	db *sql.DB
}

func NewMenuViewStore(db *sql.DB) *MenuViewStore {
	return &MenuViewStore{db: db}
}

// Record logs a public menu view and bumps the menu's view counter in
// one transaction.
func (s *MenuViewStore) Record(menuID, language, deviceType string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO menu_views (menu_id, language, device_type) VALUES (?, ?, ?)`,
		menuID, language, deviceType,
	)
	if err != nil {
		return fmt.Errorf("insert menu view: %w", err)
	}

	_, err = tx.Exec(
		`UPDATE menus SET view_count = view_count + 1, last_viewed_at = datetime('now') WHERE id = ?`,
		menuID,
	)
	if err != nil {
		return fmt.Errorf("bump menu view count: %w", err)
	}
	return tx.Commit()
}

// Analytics aggregates views over the trailing window. Days with no
// views appear with a zero count so charts stay continuous.
func (s *MenuViewStore) Analytics(menu *model.Menu, days int) (*model.MenuAnalytics, error) {
	cutoff := fmt.Sprintf("-%d days", days)

	var total int64
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM menu_views WHERE menu_id = ? AND viewed_at >= datetime('now', ?)`,
		menu.ID, cutoff,
	).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count menu views: %w", err)
	}

	languages, err := s.breakdown(
		`SELECT language, COUNT(*) FROM menu_views WHERE menu_id = ? AND viewed_at >= datetime('now', ?) GROUP BY language`,
		menu.ID, cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("language breakdown: %w", err)
	}

	devices, err := s.breakdown(
		`SELECT device_type, COUNT(*) FROM menu_views WHERE menu_id = ? AND viewed_at >= datetime('now', ?) GROUP BY device_type`,
		menu.ID, cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("device breakdown: %w", err)
	}

	byDate, err := s.breakdown(
		`SELECT date(viewed_at), COUNT(*) FROM menu_views WHERE menu_id = ? AND viewed_at >= datetime('now', ?) GROUP BY date(viewed_at)`,
		menu.ID, cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("daily breakdown: %w", err)
	}

	viewsByDay := make([]model.DayViews, 0, days)
	today := time.Now().UTC()
	for i := days - 1; i >= 0; i-- {
		date := today.AddDate(0, 0, -i).Format("2006-01-02")
		viewsByDay = append(viewsByDay, model.DayViews{Date: date, Views: byDate[date]})
	}

	return &model.MenuAnalytics{
		MenuID:            menu.ID,
		MenuName:          menu.Name,
		PeriodDays:        days,
		TotalViews:        total,
		LanguageBreakdown: languages,
		DeviceBreakdown:   devices,
		ViewsByDay:        viewsByDay,
	}, nil
}

func (s *MenuViewStore) breakdown(query string, args ...any) (map[string]int64, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var key string
		var count int64
		if err := rows.Scan(&key, &count); err != nil {
			return nil, err
		}
		counts[key] = count
	}
	return counts, rows.Err()
}
