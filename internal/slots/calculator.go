// Package slots derives bookable time windows for a garage and date by
// composing the weekly template, date exceptions, administrative blocks and
// already-committed reservations.
package slots

import (
	"context"
	"fmt"
	"time"

	"pitstop/internal/model"
)

// ScheduleSource provides the recurring template and date exceptions.
type ScheduleSource interface {
	WeeklyEntry(ctx context.Context, garageID int64, weekday time.Weekday) (*model.WeeklyScheduleEntry, error)
	Exception(ctx context.Context, garageID int64, date string) (*model.ScheduleException, error)
}

// BlockSource provides administrator-imposed slot exclusions.
type BlockSource interface {
	BlockedSlots(ctx context.Context, garageID int64, date string) ([]string, error)
}

// ReservationSource provides the slots held by active reservations.
type ReservationSource interface {
	ActiveSlots(ctx context.Context, garageID int64, date string) ([]string, error)
}

// GarageSource resolves garage existence.
type GarageSource interface {
	GarageByID(ctx context.Context, id int64) (*model.Garage, error)
}

// Calculator computes the ordered list of bookable slot labels for a
// (garage, date) pair. It holds no mutable state; every call recomputes from
// the sources.
type Calculator struct {
	garages      GarageSource
	schedules    ScheduleSource
	blocks       BlockSource
	reservations ReservationSource
}

// NewCalculator creates a calculator over the given sources.
func NewCalculator(garages GarageSource, schedules ScheduleSource, blocks BlockSource, reservations ReservationSource) *Calculator {
	return &Calculator{
		garages:      garages,
		schedules:    schedules,
		blocks:       blocks,
		reservations: reservations,
	}
}

// AvailableSlots returns the bookable slot labels for garageID on date, in
// ascending chronological order. An empty result is a valid "nothing
// bookable" outcome, not an error.
//
// When requested is non-empty the result collapses to a singleton containing
// it if and only if it survived every filter, so "is this one slot free?"
// runs through the same path as a full listing.
func (c *Calculator) AvailableSlots(ctx context.Context, garageID int64, date string, now time.Time, requested string) ([]string, error) {
	day, err := time.ParseInLocation(model.DateLayout, date, now.Location())
	if err != nil {
		return nil, fmt.Errorf("%w: parse date %q: %v", model.ErrInvalidSlot, date, err)
	}

	if _, err := c.garages.GarageByID(ctx, garageID); err != nil {
		return nil, err
	}

	entry, err := c.schedules.WeeklyEntry(ctx, garageID, day.Weekday())
	if err != nil {
		return nil, fmt.Errorf("load weekly entry: %w", err)
	}
	if entry == nil || !entry.IsOpen {
		// Closed by default schedule.
		return nil, nil
	}

	openTime, closeTime := entry.OpenTime, entry.CloseTime
	exception, err := c.schedules.Exception(ctx, garageID, date)
	if err != nil {
		return nil, fmt.Errorf("load exception: %w", err)
	}
	if exception != nil {
		if exception.IsClosed {
			// Explicitly closed; the weekly template is irrelevant.
			return nil, nil
		}
		// Override hours, keep the weekly slot duration.
		openTime, closeTime = exception.OpenTime, exception.CloseTime
	}

	open, err := model.ParseClock(openTime)
	if err != nil {
		return nil, fmt.Errorf("open time: %w", err)
	}
	closeAt, err := model.ParseClock(closeTime)
	if err != nil {
		return nil, fmt.Errorf("close time: %w", err)
	}
	duration := entry.Duration()

	blocked, err := asSet(c.blocks.BlockedSlots(ctx, garageID, date))
	if err != nil {
		return nil, fmt.Errorf("load blocks: %w", err)
	}
	booked, err := asSet(c.reservations.ActiveSlots(ctx, garageID, date))
	if err != nil {
		return nil, fmt.Errorf("load reservations: %w", err)
	}

	sameDay := day.Year() == now.Year() && day.YearDay() == now.YearDay()

	var available []string
	// The last slot must fully fit before closing.
	for start := open; start+duration <= closeAt; start += duration {
		label := model.FormatClock(start)

		// Time-of-day filtering applies to today only; future dates are
		// never trimmed by wall clock.
		if sameDay && day.Add(time.Duration(start)*time.Minute).Before(now) {
			continue
		}
		if blocked[label] || booked[label] {
			continue
		}
		available = append(available, label)
	}

	if requested == "" {
		return available, nil
	}
	for _, label := range available {
		if label == requested {
			return []string{requested}, nil
		}
	}
	return nil, nil
}

func asSet(labels []string, err error) (map[string]bool, error) {
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(labels))
	for _, label := range labels {
		set[label] = true
	}
	return set, nil
}
