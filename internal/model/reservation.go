package model

import "time"

// Status is the lifecycle state of a reservation.
type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusNoShow     Status = "no_show"
)

// ActiveStatuses are the statuses that occupy a slot.
var ActiveStatuses = []Status{StatusPending, StatusConfirmed, StatusInProgress}

// statusTransitions is the legal transition table. Completed, cancelled and
// no_show are terminal.
var statusTransitions = map[Status][]Status{
	StatusPending:    {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusInProgress, StatusCancelled, StatusNoShow},
	StatusInProgress: {StatusCompleted},
}

// CanTransitionTo reports whether moving from s to next is legal.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Active reports whether the status occupies its slot.
func (s Status) Active() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusInProgress:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are permitted.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// Reservation pins one requester's vehicle to exactly one
// (garage, date, slot) triple.
type Reservation struct {
	ID          int64     `json:"id"`
	Reference   string    `json:"reference"` // short unique external reference
	GarageID    int64     `json:"garage_id"`
	RequesterID int64     `json:"requester_id"`
	VehicleID   int64     `json:"vehicle_id"`
	Date        string    `json:"date"` // "2006-01-02"
	Slot        string    `json:"slot"` // "HH:MM" start label
	Status      Status    `json:"status"`
	Notes       string    `json:"notes,omitempty"`
	CancelNote  string    `json:"cancel_note,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// StartsAt combines the reservation's date and slot label into a wall-clock
// instant in loc.
func (r *Reservation) StartsAt(loc *time.Location) (time.Time, error) {
	day, err := time.ParseInLocation(DateLayout, r.Date, loc)
	if err != nil {
		return time.Time{}, err
	}
	minutes, err := ParseClock(r.Slot)
	if err != nil {
		return time.Time{}, err
	}
	return day.Add(time.Duration(minutes) * time.Minute), nil
}
