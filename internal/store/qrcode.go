package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/veomenu/veomenu/internal/model"
)

type QRCodeStore struct {
	db *sql.DB
}

func NewQRCodeStore(db *sql.DB) *QRCodeStore {
	return &QRCodeStore{db: db}
}

func scanQRCode(scanner interface{ Scan(...any) error }) (*model.QRCode, error) {
	var qr model.QRCode
	var lastScanned sql.NullTime

	err := scanner.Scan(
		&qr.ID, &qr.MenuID, &qr.Name, &qr.URL, &qr.ScanCount, &lastScanned,
		&qr.IsActive, &qr.CreatedAt, &qr.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if lastScanned.Valid {
		qr.LastScannedAt = &lastScanned.Time
	}
	return &qr, nil
}

const qrCodeCols = `id, menu_id, name, url, scan_count, last_scanned_at, is_active, created_at, updated_at`

func (s *QRCodeStore) Create(menuID, name, url string) (*model.QRCode, error) {
	id := uuid.NewString()

	_, err := s.db.Exec(
		`INSERT INTO qr_codes (id, menu_id, name, url) VALUES (?, ?, ?, ?)`,
		id, menuID, name, url,
	)
	if err != nil {
		return nil, fmt.Errorf("insert qr code: %w", err)
	}
	return s.GetByID(id)
}

func (s *QRCodeStore) GetByID(id string) (*model.QRCode, error) {
	row := s.db.QueryRow(`SELECT `+qrCodeCols+` FROM qr_codes WHERE id = ?`, id)
	qr, err := scanQRCode(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get qr code: %w", err)
	}
	return qr, nil
}

func (s *QRCodeStore) ListByMenu(menuID string) ([]model.QRCode, error) {
	rows, err := s.db.Query(
		`SELECT `+qrCodeCols+` FROM qr_codes WHERE menu_id = ? ORDER BY created_at ASC`,
		menuID,
	)
	if err != nil {
		return nil, fmt.Errorf("list qr codes: %w", err)
	}
	defer rows.Close()

	var codes []model.QRCode
	for rows.Next() {
		qr, err := scanQRCode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan qr code: %w", err)
		}
		codes = append(codes, *qr)
	}
	return codes, rows.Err()
}

// RecordScan bumps the scan counter and stamps the scan time.
func (s *QRCodeStore) RecordScan(id string) error {
	_, err := s.db.Exec(
		`UPDATE qr_codes SET scan_count = scan_count + 1, last_scanned_at = datetime('now'), updated_at = datetime('now') WHERE id = ?`,
		id,
	)
	if err != nil {
		return fmt.Errorf("record qr scan: %w", err)
	}
	return nil
}

func (s *QRCodeStore) Delete(id string) error {
	_, err := s.db.Exec(`DELETE FROM qr_codes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete qr code: %w", err)
	}
	return nil
}
