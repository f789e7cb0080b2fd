package store

import (
	"database/sql"
	"fmt"

	"github.com/veomenu/veomenu/internal/model"
)

type BusinessHourStore struct {
	db *sql.DB
}

func NewBusinessHourStore(db *sql.DB) *BusinessHourStore {
	return &BusinessHourStore{db: db}
}

const businessHourCols = `id, instance_id, day_of_week, opening_time, closing_time, is_closed`

// ListByInstance returns the week's hours ordered Monday (0) through
// Sunday (6).
func (s *BusinessHourStore) ListByInstance(instanceID string) ([]model.BusinessHour, error) {
	rows, err := s.db.Query(
		`SELECT `+businessHourCols+` FROM business_hours WHERE instance_id = ? ORDER BY day_of_week ASC`,
		instanceID,
	)
	if err != nil {
		return nil, fmt.Errorf("list business hours: %w", err)
	}
	defer rows.Close()

	var hours []model.BusinessHour
	for rows.Next() {
		var h model.BusinessHour
		err := rows.Scan(&h.ID, &h.InstanceID, &h.DayOfWeek, &h.OpeningTime, &h.ClosingTime, &h.IsClosed)
		if err != nil {
			return nil, fmt.Errorf("scan business hour: %w", err)
		}
		hours = append(hours, h)
	}
	return hours, rows.Err()
}

// ReplaceAll swaps the instance's full weekly schedule in one
// transaction.
func (s *BusinessHourStore) ReplaceAll(instanceID string, hours []model.BusinessHour) ([]model.BusinessHour, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM business_hours WHERE instance_id = ?`, instanceID); err != nil {
		return nil, fmt.Errorf("clear business hours: %w", err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO business_hours (instance_id, day_of_week, opening_time, closing_time, is_closed) VALUES (?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return nil, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, h := range hours {
		if _, err := stmt.Exec(instanceID, h.DayOfWeek, h.OpeningTime, h.ClosingTime, h.IsClosed); err != nil {
			return nil, fmt.Errorf("insert business hour for day %d: %w", h.DayOfWeek, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.ListByInstance(instanceID)
}
