package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/veomenu/veomenu/internal/model"
	"github.com/veomenu/veomenu/internal/slug"
)

type InstanceStore struct {
	db *sql.DB
}

func NewInstanceStore(db *sql.DB) *InstanceStore {
	return &InstanceStore{db: db}
}

func scanInstance(scanner interface{ Scan(...any) error }) (*model.Instance, error) {
	var inst model.Instance
	var qrMenuID sql.NullString

	err := scanner.Scan(
		&inst.ID, &inst.Name, &inst.Slug, &inst.Country, &inst.City, &inst.Address,
		&inst.Phone, &inst.Email, &inst.Website, &inst.Whatsapp, &inst.Description,
		&inst.CuisineType, &inst.WifiName, &inst.WifiPassword, &inst.ShowWifiOnMenu,
		&inst.ShowHoursOnMenu, &inst.GoogleBusinessURL, &inst.ShowGoogleRating,
		&inst.SubscriptionStatus, &inst.QRForegroundColor, &inst.QRSize, &inst.QRMargin,
		&inst.QRErrorCorrectionLevel, &qrMenuID, &inst.IsActive,
		&inst.CreatedAt, &inst.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if qrMenuID.Valid {
		inst.QRSelectedMenuID = &qrMenuID.String
	}
	return &inst, nil
}

const instanceCols = `id, name, slug, country, city, address, phone, email, website, whatsapp, description, cuisine_type, wifi_name, wifi_password, show_wifi_on_menu, show_hours_on_menu, google_business_url, show_google_rating, subscription_status, qr_foreground_color, qr_size, qr_margin, qr_error_correction_level, qr_selected_menu_id, is_active, created_at, updated_at`

// Create inserts the instance and its owner membership in one
// transaction. Slug collisions retry with a numeric suffix; the UNIQUE
// constraint on slug makes concurrent creates safe.
func (s *InstanceStore) Create(ownerID int64, inst *model.Instance) (*model.Instance, error) {
	base := slug.Make(inst.Name)
	if base == "" {
		base = "instance"
	}
	id := uuid.NewString()

	attempt := 0
	backoff := retry.WithMaxRetries(20, retry.NewConstant(time.Millisecond))
	err := retry.Do(context.Background(), backoff, func(ctx context.Context) error {
		err := s.insertWithOwner(id, slug.WithSuffix(base, attempt), ownerID, inst)
		if isUniqueViolation(err) {
			attempt++
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create instance: %w", err)
	}
	return s.GetByID(id)
}

func (s *InstanceStore) insertWithOwner(id, slugVal string, ownerID int64, inst *model.Instance) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO instances (id, name, slug, country, city, address, phone, email, website, whatsapp, description, cuisine_type)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, inst.Name, slugVal, inst.Country, inst.City, inst.Address,
		inst.Phone, inst.Email, inst.Website, inst.Whatsapp, inst.Description,
		inst.CuisineType,
	)
	if err != nil {
		return fmt.Errorf("insert instance: %w", err)
	}

	_, err = tx.Exec(
		`INSERT INTO instance_members (instance_id, user_id, role) VALUES (?, ?, ?)`,
		id, ownerID, model.RoleOwner,
	)
	if err != nil {
		return fmt.Errorf("insert owner membership: %w", err)
	}
	return tx.Commit()
}

func (s *InstanceStore) GetByID(id string) (*model.Instance, error) {
	row := s.db.QueryRow(`SELECT `+instanceCols+` FROM instances WHERE id = ?`, id)
	inst, err := scanInstance(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get instance: %w", err)
	}
	return inst, nil
}

func (s *InstanceStore) GetBySlug(slugVal string) (*model.Instance, error) {
	row := s.db.QueryRow(`SELECT `+instanceCols+` FROM instances WHERE slug = ?`, slugVal)
	inst, err := scanInstance(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get instance by slug: %w", err)
	}
	return inst, nil
}

// ListByUser returns the instances where the user holds an active
// membership, newest first.
func (s *InstanceStore) ListByUser(userID int64) ([]model.Instance, error) {
	rows, err := s.db.Query(
		`SELECT `+prefixedInstanceCols+` FROM instances i
		 JOIN instance_members m ON m.instance_id = i.id
		 WHERE m.user_id = ? AND m.is_active = 1 AND i.is_active = 1
		 ORDER BY i.created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list instances: %w", err)
	}
	defer rows.Close()

	var instances []model.Instance
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan instance: %w", err)
		}
		instances = append(instances, *inst)
	}
	return instances, rows.Err()
}

// Update persists the instance's editable fields.
func (s *InstanceStore) Update(inst *model.Instance) (*model.Instance, error) {
	var qrMenuID sql.NullString
	if inst.QRSelectedMenuID != nil {
		qrMenuID = sql.NullString{String: *inst.QRSelectedMenuID, Valid: true}
	}

	_, err := s.db.Exec(
		`UPDATE instances SET
		   name = ?, country = ?, city = ?, address = ?, phone = ?, email = ?,
		   website = ?, whatsapp = ?, description = ?, cuisine_type = ?,
		   wifi_name = ?, wifi_password = ?, show_wifi_on_menu = ?, show_hours_on_menu = ?,
		   google_business_url = ?, show_google_rating = ?,
		   qr_foreground_color = ?, qr_size = ?, qr_margin = ?, qr_error_correction_level = ?,
		   qr_selected_menu_id = ?, updated_at = datetime('now')
		 WHERE id = ?`,
		inst.Name, inst.Country, inst.City, inst.Address, inst.Phone, inst.Email,
		inst.Website, inst.Whatsapp, inst.Description, inst.CuisineType,
		inst.WifiName, inst.WifiPassword, inst.ShowWifiOnMenu, inst.ShowHoursOnMenu,
		inst.GoogleBusinessURL, inst.ShowGoogleRating,
		inst.QRForegroundColor, inst.QRSize, inst.QRMargin, inst.QRErrorCorrectionLevel,
		qrMenuID, inst.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update instance: %w", err)
	}
	return s.GetByID(inst.ID)
}

// SetQRSelectedMenu records the default menu for QR codes, but only
// when none is selected yet.
func (s *InstanceStore) SetQRSelectedMenu(instanceID, menuID string) error {
	_, err := s.db.Exec(
		`UPDATE instances SET qr_selected_menu_id = ?, updated_at = datetime('now')
		 WHERE id = ? AND qr_selected_menu_id IS NULL`,
		menuID, instanceID,
	)
	if err != nil {
		return fmt.Errorf("set qr selected menu: %w", err)
	}
	return nil
}

func (s *InstanceStore) Delete(id string) error {
	_, err := s.db.Exec(`DELETE FROM instances WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete instance: %w", err)
	}
	return nil
}

// prefixedInstanceCols qualifies every column for joined queries.
const prefixedInstanceCols = `i.id, i.name, i.slug, i.country, i.city, i.address, i.phone, i.email, i.website, i.whatsapp, i.description, i.cuisine_type, i.wifi_name, i.wifi_password, i.show_wifi_on_menu, i.show_hours_on_menu, i.google_business_url, i.show_google_rating, i.subscription_status, i.qr_foreground_color, i.qr_size, i.qr_margin, i.qr_error_correction_level, i.qr_selected_menu_id, i.is_active, i.created_at, i.updated_at`
