package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"pitstop/internal/model"
)

// UpsertWeeklyEntry creates or replaces the weekly entry for the entry's
// (garage, weekday) pair.
func (s *Store) UpsertWeeklyEntry(ctx context.Context, e *model.WeeklyScheduleEntry) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("weekly entry: %w", err)
	}

	now := time.Now()
	_, err := s.ExecContext(ctx, `
		INSERT INTO weekly_schedules (garage_id, weekday, is_open, open_time, close_time, slot_duration, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(garage_id, weekday) DO UPDATE SET
			is_open = excluded.is_open,
			open_time = excluded.open_time,
			close_time = excluded.close_time,
			slot_duration = excluded.slot_duration,
			updated_at = excluded.updated_at`,
		e.GarageID, int(e.Weekday), e.IsOpen, e.OpenTime, e.CloseTime, e.Duration(), now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert weekly entry: %w", err)
	}
	return nil
}

// WeeklyEntry returns the entry for (garage, weekday), or nil when none
// exists.
func (s *Store) WeeklyEntry(ctx context.Context, garageID int64, weekday time.Weekday) (*model.WeeklyScheduleEntry, error) {
	var e model.WeeklyScheduleEntry
	var openTime, closeTime sql.NullString
	var wd int
	err := s.QueryRowContext(ctx, `
		SELECT id, garage_id, weekday, is_open, open_time, close_time, slot_duration, created_at, updated_at
		FROM weekly_schedules WHERE garage_id = ? AND weekday = ?`,
		garageID, int(weekday),
	).Scan(&e.ID, &e.GarageID, &wd, &e.IsOpen, &openTime, &closeTime, &e.SlotDurationMinutes, &e.CreatedAt, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get weekly entry: %w", err)
	}
	e.Weekday = time.Weekday(wd)
	e.OpenTime = openTime.String
	e.CloseTime = closeTime.String
	return &e, nil
}

// UpsertException creates or replaces the exception for the exception's
// (garage, date) pair.
func (s *Store) UpsertException(ctx context.Context, x *model.ScheduleException) error {
	if err := x.Validate(); err != nil {
		return fmt.Errorf("exception: %w", err)
	}

	now := time.Now()
	_, err := s.ExecContext(ctx, `
		INSERT INTO schedule_exceptions (garage_id, date, is_closed, open_time, close_time, reason, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(garage_id, date) DO UPDATE SET
			is_closed = excluded.is_closed,
			open_time = excluded.open_time,
			close_time = excluded.close_time,
			reason = excluded.reason,
			updated_at = excluded.updated_at`,
		x.GarageID, x.Date, x.IsClosed, x.OpenTime, x.CloseTime, x.Reason, now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert exception: %w", err)
	}
	return nil
}

// Exception returns the exception for (garage, date), or nil when none
// exists.
func (s *Store) Exception(ctx context.Context, garageID int64, date string) (*model.ScheduleException, error) {
	var x model.ScheduleException
	var openTime, closeTime, reason sql.NullString
	err := s.QueryRowContext(ctx, `
		SELECT id, garage_id, date, is_closed, open_time, close_time, reason, created_at, updated_at
		FROM schedule_exceptions WHERE garage_id = ? AND date = ?`,
		garageID, date,
	).Scan(&x.ID, &x.GarageID, &x.Date, &x.IsClosed, &openTime, &closeTime, &reason, &x.CreatedAt, &x.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get exception: %w", err)
	}
	x.OpenTime = openTime.String
	x.CloseTime = closeTime.String
	x.Reason = reason.String
	return &x, nil
}

// DeleteException removes the exception for (garage, date).
func (s *Store) DeleteException(ctx context.Context, garageID int64, date string) error {
	_, err := s.ExecContext(ctx,
		"DELETE FROM schedule_exceptions WHERE garage_id = ? AND date = ?",
		garageID, date,
	)
	return err
}

// SetDayOff marks a specific date as closed.
func (s *Store) SetDayOff(ctx context.Context, garageID int64, date, reason string) error {
	return s.UpsertException(ctx, &model.ScheduleException{
		GarageID: garageID,
		Date:     date,
		IsClosed: true,
		Reason:   reason,
	})
}

// SetSpecialHours overrides the working hours for a specific date.
func (s *Store) SetSpecialHours(ctx context.Context, garageID int64, date, openTime, closeTime string) error {
	return s.UpsertException(ctx, &model.ScheduleException{
		GarageID:  garageID,
		Date:      date,
		OpenTime:  openTime,
		CloseTime: closeTime,
	})
}

// AddBlock records an administrator-imposed exclusion of one slot.
func (s *Store) AddBlock(ctx context.Context, b *model.SlotBlock) error {
	if err := b.Validate(); err != nil {
		return fmt.Errorf("block: %w", err)
	}

	_, err := s.ExecContext(ctx, `
		INSERT INTO slot_blocks (garage_id, date, slot, reason, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(garage_id, date, slot) DO UPDATE SET reason = excluded.reason`,
		b.GarageID, b.Date, b.Slot, b.Reason, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("insert block: %w", err)
	}
	return nil
}

// RemoveBlock deletes the block for (garage, date, slot).
func (s *Store) RemoveBlock(ctx context.Context, garageID int64, date, slot string) error {
	_, err := s.ExecContext(ctx,
		"DELETE FROM slot_blocks WHERE garage_id = ? AND date = ? AND slot = ?",
		garageID, date, slot,
	)
	return err
}

// BlockedSlots returns the blocked slot labels for (garage, date).
func (s *Store) BlockedSlots(ctx context.Context, garageID int64, date string) ([]string, error) {
	rows, err := s.QueryContext(ctx,
		"SELECT slot FROM slot_blocks WHERE garage_id = ? AND date = ? ORDER BY slot",
		garageID, date,
	)
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
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
