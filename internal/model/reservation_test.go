package model

import (
	"testing"
	"time"
)

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		name        string
		from        Status
		to          Status
		shouldAllow bool
	}{
		{"pending to confirmed", StatusPending, StatusConfirmed, true},
		{"pending to cancelled", StatusPending, StatusCancelled, true},
		{"confirmed to in_progress", StatusConfirmed, StatusInProgress, true},
		{"confirmed to cancelled", StatusConfirmed, StatusCancelled, true},
		{"confirmed to no_show", StatusConfirmed, StatusNoShow, true},
		{"in_progress to completed", StatusInProgress, StatusCompleted, true},
		// Illegal moves
		{"pending to in_progress", StatusPending, StatusInProgress, false},
		{"pending to no_show", StatusPending, StatusNoShow, false},
		{"in_progress to cancelled", StatusInProgress, StatusCancelled, false},
		{"completed is terminal", StatusCompleted, StatusConfirmed, false},
		{"cancelled is terminal", StatusCancelled, StatusPending, false},
		{"no_show is terminal", StatusNoShow, StatusConfirmed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			allowed := tt.from.CanTransitionTo(tt.to)
			if allowed != tt.shouldAllow {
				t.Errorf("transition %s -> %s: expected allowed=%v, got %v",
					tt.from, tt.to, tt.shouldAllow, allowed)
			}
		})
	}
}

func TestStatusActiveAndTerminal(t *testing.T) {
	active := map[Status]bool{
		StatusPending:    true,
		StatusConfirmed:  true,
		StatusInProgress: true,
		StatusCompleted:  false,
		StatusCancelled:  false,
		StatusNoShow:     false,
	}
	for status, want := range active {
		if got := status.Active(); got != want {
			t.Errorf("%s.Active(): expected %v, got %v", status, want, got)
		}
		if got := status.Terminal(); got == want {
			t.Errorf("%s.Terminal(): expected %v, got %v", status, !want, got)
		}
	}
}

func TestReservationStartsAt(t *testing.T) {
	r := Reservation{Date: "2026-03-17", Slot: "14:30"}

	at, err := r.StartsAt(time.UTC)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2026, 3, 17, 14, 30, 0, 0, time.UTC)
	if !at.Equal(want) {
		t.Errorf("expected %v, got %v", want, at)
	}

	r.Slot = "25:00"
	if _, err := r.StartsAt(time.UTC); err == nil {
		t.Error("expected error for out-of-range slot label")
	}
}
