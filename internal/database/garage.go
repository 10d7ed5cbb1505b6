package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"pitstop/internal/model"
)

// CreateGarage inserts a garage and sets its ID.
func (s *Store) CreateGarage(ctx context.Context, g *model.Garage) error {
	now := time.Now()
	res, err := s.ExecContext(ctx, `
		INSERT INTO garages (name, description, accepts_bookings, quota_allotted, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		g.Name, g.Description, g.AcceptsBookings, g.QuotaAllotted, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert garage: %w", err)
	}
	g.ID, err = res.LastInsertId()
	if err != nil {
		return err
	}
	g.CreatedAt, g.UpdatedAt = now, now
	return nil
}

// GarageByID returns the garage or model.ErrNotFound.
func (s *Store) GarageByID(ctx context.Context, id int64) (*model.Garage, error) {
	var g model.Garage
	var description sql.NullString
	err := s.QueryRowContext(ctx, `
		SELECT id, name, description, accepts_bookings, quota_allotted, created_at, updated_at
		FROM garages WHERE id = ?`, id,
	).Scan(&g.ID, &g.Name, &description, &g.AcceptsBookings, &g.QuotaAllotted, &g.CreatedAt, &g.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("garage %d: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get garage: %w", err)
	}
	g.Description = description.String
	return &g, nil
}

// ListGarages returns all garages ordered by name.
func (s *Store) ListGarages(ctx context.Context) ([]model.Garage, error) {
	rows, err := s.QueryContext(ctx, `
		SELECT id, name, description, accepts_bookings, quota_allotted, created_at, updated_at
		FROM garages ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list garages: %w", err)
	}
	defer rows.Close()

	var garages []model.Garage
	for rows.Next() {
		var g model.Garage
		var description sql.NullString
		if err := rows.Scan(&g.ID, &g.Name, &description, &g.AcceptsBookings, &g.QuotaAllotted, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, err
		}
		g.Description = description.String
		garages = append(garages, g)
	}
	return garages, rows.Err()
}

// UpdateGarageFlags sets the external approval flag and quota ceiling. Owned
// by the onboarding workflow; the booking core only reads them.
func (s *Store) UpdateGarageFlags(ctx context.Context, id int64, acceptsBookings bool, quotaAllotted int) error {
	res, err := s.ExecContext(ctx, `
		UPDATE garages SET accepts_bookings = ?, quota_allotted = ?, updated_at = ?
		WHERE id = ?`,
		acceptsBookings, quotaAllotted, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("update garage: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("garage %d: %w", id, model.ErrNotFound)
	}
	return nil
}
