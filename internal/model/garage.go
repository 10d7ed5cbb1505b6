package model

import "time"

// Garage represents a bookable service provider owning one calendar.
type Garage struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description,omitempty"`
	AcceptsBookings bool      `json:"accepts_bookings"`
	QuotaAllotted   int       `json:"quota_allotted"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
