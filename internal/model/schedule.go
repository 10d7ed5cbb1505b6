package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the civil date format used throughout the engine.
const DateLayout = "2006-01-02"

// DefaultSlotDuration is the single authoritative slot length applied when a
// weekly entry does not carry its own duration.
const DefaultSlotDuration = 30 // minutes

// WeeklyScheduleEntry defines opening hours for one weekday of a garage.
// At most one entry per (garage, weekday).
type WeeklyScheduleEntry struct {
	ID                  int64        `json:"id"`
	GarageID            int64        `json:"garage_id"`
	Weekday             time.Weekday `json:"weekday"` // 0-6, Sunday = 0
	IsOpen              bool         `json:"is_open"`
	OpenTime            string       `json:"open_time"`  // "09:00"
	CloseTime           string       `json:"close_time"` // "18:00"
	SlotDurationMinutes int          `json:"slot_duration_minutes"`
	CreatedAt           time.Time    `json:"created_at"`
	UpdatedAt           time.Time    `json:"updated_at"`
}

// Validate checks the entry invariants. Open/close are ignored when the
// entry marks the day closed.
func (e *WeeklyScheduleEntry) Validate() error {
	if e.Weekday < time.Sunday || e.Weekday > time.Saturday {
		return fmt.Errorf("weekday out of range: %d", e.Weekday)
	}
	if !e.IsOpen {
		return nil
	}
	open, err := ParseClock(e.OpenTime)
	if err != nil {
		return fmt.Errorf("open_time: %w", err)
	}
	closeAt, err := ParseClock(e.CloseTime)
	if err != nil {
		return fmt.Errorf("close_time: %w", err)
	}
	if closeAt <= open {
		return fmt.Errorf("close_time %s must be after open_time %s", e.CloseTime, e.OpenTime)
	}
	if e.SlotDurationMinutes < 0 {
		return fmt.Errorf("slot duration must be positive, got %d", e.SlotDurationMinutes)
	}
	return nil
}

// Duration returns the entry's slot length, falling back to
// DefaultSlotDuration when unset.
func (e *WeeklyScheduleEntry) Duration() int {
	if e.SlotDurationMinutes <= 0 {
		return DefaultSlotDuration
	}
	return e.SlotDurationMinutes
}

// ScheduleException overrides the weekly entry for a single date. A closed
// exception yields no slots regardless of the weekly template; an open one
// replaces open/close hours but keeps the weekly slot duration.
// At most one exception per (garage, date).
type ScheduleException struct {
	ID        int64     `json:"id"`
	GarageID  int64     `json:"garage_id"`
	Date      string    `json:"date"` // "2006-01-02"
	IsClosed  bool      `json:"is_closed"`
	OpenTime  string    `json:"open_time,omitempty"`
	CloseTime string    `json:"close_time,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the exception invariants.
func (x *ScheduleException) Validate() error {
	if _, err := time.Parse(DateLayout, x.Date); err != nil {
		return fmt.Errorf("date: %w", err)
	}
	if x.IsClosed {
		return nil
	}
	open, err := ParseClock(x.OpenTime)
	if err != nil {
		return fmt.Errorf("open_time: %w", err)
	}
	closeAt, err := ParseClock(x.CloseTime)
	if err != nil {
		return fmt.Errorf("close_time: %w", err)
	}
	if closeAt <= open {
		return fmt.Errorf("close_time %s must be after open_time %s", x.CloseTime, x.OpenTime)
	}
	return nil
}

// SlotBlock is an administrator-imposed exclusion of one slot on one date,
// independent of booking state.
type SlotBlock struct {
	ID        int64     `json:"id"`
	GarageID  int64     `json:"garage_id"`
	Date      string    `json:"date"` // "2006-01-02"
	Slot      string    `json:"slot"` // "14:30"
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks the block invariants.
func (b *SlotBlock) Validate() error {
	if _, err := time.Parse(DateLayout, b.Date); err != nil {
		return fmt.Errorf("date: %w", err)
	}
	if _, err := ParseClock(b.Slot); err != nil {
		return fmt.Errorf("slot: %w", err)
	}
	return nil
}

// ParseClock parses a zero-padded 24-hour "HH:MM" label into minutes since
// midnight.
func ParseClock(s string) (int, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("invalid time format: %q", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("time out of range: %q", s)
	}
	return hour*60 + minute, nil
}

// FormatClock renders minutes since midnight as a zero-padded "HH:MM" label.
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
