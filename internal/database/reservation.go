package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"pitstop/internal/model"
)

const activeStatusSet = "('pending', 'confirmed', 'in_progress')"

// CreateReservation inserts a reservation inside one immediate transaction:
// it re-verifies that no active reservation holds the same (garage, date,
// slot) triple, then inserts. The partial unique index remains the final
// arbiter; its violation surfaces as model.ErrConflict.
func (s *Store) CreateReservation(ctx context.Context, r *model.Reservation) error {
	tx, err := s.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", model.ErrInternal, err)
	}
	defer tx.Rollback()

	var occupied int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM reservations
		WHERE garage_id = ? AND date = ? AND slot = ? AND status IN `+activeStatusSet,
		r.GarageID, r.Date, r.Slot,
	).Scan(&occupied)
	if err != nil {
		return fmt.Errorf("%w: recheck slot: %v", model.ErrInternal, err)
	}
	if occupied > 0 {
		return fmt.Errorf("slot %s on %s: %w", r.Slot, r.Date, model.ErrConflict)
	}

	now := time.Now()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO reservations (reference, garage_id, requester_id, vehicle_id, date, slot, status, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Reference, r.GarageID, r.RequesterID, r.VehicleID, r.Date, r.Slot, string(r.Status), r.Notes, now, now,
	)
	if err != nil {
		return mapInsertError(err, r)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", model.ErrInternal, err)
	}

	r.ID, _ = res.LastInsertId()
	r.CreatedAt, r.UpdatedAt = now, now
	return nil
}

// mapInsertError turns storage constraint violations into domain errors. A
// unique violation on the active-slot index means a second writer committed
// between the re-check and the insert; one on the reference column means an
// allocation race.
func mapInsertError(err error, r *model.Reservation) error {
	var sqlErr sqlite3.Error
	if errors.As(err, &sqlErr) && sqlErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		if strings.Contains(sqlErr.Error(), "reservations.reference") {
			return fmt.Errorf("%w: reference %s already allocated", model.ErrInternal, r.Reference)
		}
		return fmt.Errorf("slot %s on %s: %w", r.Slot, r.Date, model.ErrConflict)
	}
	return fmt.Errorf("%w: insert reservation: %v", model.ErrInternal, err)
}

// UpdateReservationStatus moves a reservation from one status to another.
// The condition on the current status makes the update a compare-and-swap:
// a concurrent transition loses and observes model.ErrConflict.
func (s *Store) UpdateReservationStatus(ctx context.Context, id int64, from, to model.Status, note string) error {
	res, err := s.ExecContext(ctx, `
		UPDATE reservations SET status = ?, cancel_note = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(to), note, time.Now(), id, string(from),
	)
	if err != nil {
		return fmt.Errorf("%w: update status: %v", model.ErrInternal, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		if _, err := s.Reservation(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("reservation %d is no longer %s: %w", id, from, model.ErrConflict)
	}
	return nil
}

// Reservation returns one reservation by internal ID or model.ErrNotFound.
func (s *Store) Reservation(ctx context.Context, id int64) (*model.Reservation, error) {
	return s.scanOne(s.QueryRowContext(ctx, selectReservation+" WHERE id = ?", id), fmt.Sprintf("reservation %d", id))
}

// ReservationByReference returns one reservation by external reference or
// model.ErrNotFound.
func (s *Store) ReservationByReference(ctx context.Context, ref string) (*model.Reservation, error) {
	return s.scanOne(s.QueryRowContext(ctx, selectReservation+" WHERE reference = ?", ref), fmt.Sprintf("reservation %s", ref))
}

// ReferenceExists reports whether ref is already taken.
func (s *Store) ReferenceExists(ctx context.Context, ref string) (bool, error) {
	var count int
	err := s.QueryRowContext(ctx, "SELECT COUNT(*) FROM reservations WHERE reference = ?", ref).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check reference: %w", err)
	}
	return count > 0, nil
}

// ActiveSlots returns the slot labels held by active reservations for
// (garage, date).
func (s *Store) ActiveSlots(ctx context.Context, garageID int64, date string) ([]string, error) {
	rows, err := s.QueryContext(ctx, `
		SELECT slot FROM reservations
		WHERE garage_id = ? AND date = ? AND status IN `+activeStatusSet+`
		ORDER BY slot`,
		garageID, date,
	)
	if err != nil {
		return nil, fmt.Errorf("list active slots: %w", err)
	}
	defer rows.Close()

	var slots []string
	for rows.Next() {
		var slot string
		if err := rows.Scan(&slot); err != nil {
			return nil, err
		}
		slots = append(slots, slot)
	}
	return slots, rows.Err()
}

// CountActiveReservations counts active reservations for a garage across all
// dates. Feeds the quota gate.
func (s *Store) CountActiveReservations(ctx context.Context, garageID int64) (int, error) {
	var count int
	err := s.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM reservations WHERE garage_id = ? AND status IN "+activeStatusSet,
		garageID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count active reservations: %w", err)
	}
	return count, nil
}

// ListGarageReservations returns all reservations for (garage, date) in slot
// order.
func (s *Store) ListGarageReservations(ctx context.Context, garageID int64, date string) ([]model.Reservation, error) {
	rows, err := s.QueryContext(ctx, selectReservation+`
		WHERE garage_id = ? AND date = ? ORDER BY slot`,
		garageID, date,
	)
	if err != nil {
		return nil, fmt.Errorf("list garage reservations: %w", err)
	}
	return s.scanMany(rows)
}

// ListReservationsRange returns a garage's reservations with date in
// [from, to], ordered by date then slot. Feeds the report exporter.
func (s *Store) ListReservationsRange(ctx context.Context, garageID int64, from, to string) ([]model.Reservation, error) {
	rows, err := s.QueryContext(ctx, selectReservation+`
		WHERE garage_id = ? AND date >= ? AND date <= ? ORDER BY date, slot`,
		garageID, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("list reservations range: %w", err)
	}
	return s.scanMany(rows)
}

// ListRequesterReservations returns all reservations made by one requester,
// newest first.
func (s *Store) ListRequesterReservations(ctx context.Context, requesterID int64) ([]model.Reservation, error) {
	rows, err := s.QueryContext(ctx, selectReservation+`
		WHERE requester_id = ? ORDER BY date DESC, slot DESC`,
		requesterID,
	)
	if err != nil {
		return nil, fmt.Errorf("list requester reservations: %w", err)
	}
	return s.scanMany(rows)
}

// ListOverdueConfirmed returns confirmed reservations whose slot started
// before the given instant. Feeds the no-show sweeper.
func (s *Store) ListOverdueConfirmed(ctx context.Context, before time.Time) ([]model.Reservation, error) {
	rows, err := s.QueryContext(ctx, selectReservation+`
		WHERE status = 'confirmed' AND datetime(date || ' ' || slot) < datetime(?)
		ORDER BY date, slot`,
		before.Format("2006-01-02 15:04:05"),
	)
	if err != nil {
		return nil, fmt.Errorf("list overdue confirmed: %w", err)
	}
	return s.scanMany(rows)
}

const selectReservation = `
	SELECT id, reference, garage_id, requester_id, vehicle_id, date, slot, status, notes, cancel_note, created_at, updated_at
	FROM reservations`

func (s *Store) scanOne(row *sql.Row, what string) (*model.Reservation, error) {
	var r model.Reservation
	var status string
	var notes, cancelNote sql.NullString
	err := row.Scan(&r.ID, &r.Reference, &r.GarageID, &r.RequesterID, &r.VehicleID,
		&r.Date, &r.Slot, &status, &notes, &cancelNote, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%s: %w", what, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", what, err)
	}
	r.Status = model.Status(status)
	r.Notes = notes.String
	r.CancelNote = cancelNote.String
	return &r, nil
}

func (s *Store) scanMany(rows *sql.Rows) ([]model.Reservation, error) {
	defer rows.Close()

	var reservations []model.Reservation
	for rows.Next() {
		var r model.Reservation
		var status string
		var notes, cancelNote sql.NullString
		if err := rows.Scan(&r.ID, &r.Reference, &r.GarageID, &r.RequesterID, &r.VehicleID,
			&r.Date, &r.Slot, &status, &notes, &cancelNote, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		r.Status = model.Status(status)
		r.Notes = notes.String
		r.CancelNote = cancelNote.String
		reservations = append(reservations, r)
	}
	return reservations, rows.Err()
}
