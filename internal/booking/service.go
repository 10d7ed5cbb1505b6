// Package booking implements the reservation commit service: the sole
// writer of reservations and the only place slot conflicts are judged with
// finality.
package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"pitstop/internal/events"
	"pitstop/internal/metrics"
	"pitstop/internal/model"
)

// MaxRangeDays caps the date span of range availability queries.
const MaxRangeDays = 90

// GarageStore provides garage reads.
type GarageStore interface {
	GarageByID(ctx context.Context, id int64) (*model.Garage, error)
	ListGarages(ctx context.Context) ([]model.Garage, error)
}

// ReservationStore provides reservation persistence. CreateReservation must
// enforce the single-active-reservation-per-slot invariant and surface its
// violation as model.ErrConflict.
type ReservationStore interface {
	CreateReservation(ctx context.Context, r *model.Reservation) error
	Reservation(ctx context.Context, id int64) (*model.Reservation, error)
	ReservationByReference(ctx context.Context, ref string) (*model.Reservation, error)
	UpdateReservationStatus(ctx context.Context, id int64, from, to model.Status, note string) error
	CountActiveReservations(ctx context.Context, garageID int64) (int, error)
	ReferenceExists(ctx context.Context, ref string) (bool, error)
	ListOverdueConfirmed(ctx context.Context, before time.Time) ([]model.Reservation, error)
}

// AvailabilityChecker computes bookable slots; see the slots package.
type AvailabilityChecker interface {
	AvailableSlots(ctx context.Context, garageID int64, date string, now time.Time, requested string) ([]string, error)
}

// EventPublisher emits domain events. Publication is fire-and-forget.
type EventPublisher interface {
	Publish(eventType string, payload any)
}

// Config tunes the commit service.
type Config struct {
	// CommitTimeout bounds one reservation commit. Zero means 5s.
	CommitTimeout time.Duration
	// NoShowGrace is how long after its slot a confirmed reservation may
	// linger before the sweeper marks it no-show. Zero means 2h.
	NoShowGrace time.Duration
	// MaxAdvanceDays is how far ahead reservations may be placed.
	// Zero means 90.
	MaxAdvanceDays int
}

func (c *Config) applyDefaults() {
	if c.CommitTimeout <= 0 {
		c.CommitTimeout = 5 * time.Second
	}
	if c.NoShowGrace <= 0 {
		c.NoShowGrace = 2 * time.Hour
	}
	if c.MaxAdvanceDays <= 0 {
		c.MaxAdvanceDays = MaxRangeDays
	}
}

// Service orchestrates reservation commits, cancellations and lifecycle
// transitions.
type Service struct {
	garages      GarageStore
	reservations ReservationStore
	availability AvailabilityChecker
	refs         *ReferenceGenerator
	bus          EventPublisher
	cfg          Config
	logger       *zerolog.Logger
	now          func() time.Time
}

// NewService wires the commit service.
func NewService(garages GarageStore, reservations ReservationStore, availability AvailabilityChecker, bus EventPublisher, cfg Config, logger *zerolog.Logger) *Service {
	cfg.applyDefaults()
	return &Service{
		garages:      garages,
		reservations: reservations,
		availability: availability,
		refs:         NewReferenceGenerator(reservations),
		bus:          bus,
		cfg:          cfg,
		logger:       logger,
		now:          time.Now,
	}
}

// SetClock overrides the wall clock. Intended for tests.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// ReserveInput carries one reservation request.
type ReserveInput struct {
	GarageID    int64
	RequesterID int64
	VehicleID   int64
	Date        string // "2006-01-02"
	Slot        string // "HH:MM"
	Notes       string
}

// ReservationCreatedEvent is the payload published after a successful
// commit, denormalized for the notification collaborator.
type ReservationCreatedEvent struct {
	ReservationID int64  `json:"reservation_id"`
	Reference     string `json:"reference"`
	GarageID      int64  `json:"garage_id"`
	GarageName    string `json:"garage_name"`
	RequesterID   int64  `json:"requester_id"`
	VehicleID     int64  `json:"vehicle_id"`
	Date          string `json:"date"`
	Slot          string `json:"slot"`
}

// ReservationCancelledEvent is the payload published after a cancellation.
type ReservationCancelledEvent struct {
	ReservationID int64  `json:"reservation_id"`
	Reference     string `json:"reference"`
	GarageID      int64  `json:"garage_id"`
	RequesterID   int64  `json:"requester_id"`
	Date          string `json:"date"`
	Slot          string `json:"slot"`
	Reason        string `json:"reason,omitempty"`
}

// Reserve commits a reservation against current availability. Every
// precondition is re-checked here at commit time; the gap between a caller
// viewing availability and submitting is the race this method defends
// against.
func (s *Service) Reserve(ctx context.Context, in ReserveInput) (*model.Reservation, error) {
	now := s.now()

	garage, err := s.garages.GarageByID(ctx, in.GarageID)
	if err != nil {
		return nil, err
	}
	if !garage.AcceptsBookings {
		return nil, fmt.Errorf("%w: garage not bookable", model.ErrInvalidSlot)
	}
	active, err := s.reservations.CountActiveReservations(ctx, garage.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: count active: %v", model.ErrInternal, err)
	}
	if active >= garage.QuotaAllotted {
		return nil, fmt.Errorf("%w: booking quota exhausted", model.ErrInvalidSlot)
	}

	startsAt, err := (&model.Reservation{Date: in.Date, Slot: in.Slot}).StartsAt(now.Location())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidSlot, err)
	}
	if startsAt.Before(now) {
		return nil, fmt.Errorf("%w: slot is in the past", model.ErrInvalidSlot)
	}
	if startsAt.After(now.AddDate(0, 0, s.cfg.MaxAdvanceDays)) {
		return nil, fmt.Errorf("%w: slot is more than %d days ahead", model.ErrInvalidSlot, s.cfg.MaxAdvanceDays)
	}

	// Authoritative availability re-check, mandatory even if the caller
	// just saw the slot free.
	free, err := s.availability.AvailableSlots(ctx, in.GarageID, in.Date, now, in.Slot)
	if err != nil {
		return nil, err
	}
	if len(free) == 0 {
		metrics.IncReservationConflict()
		return nil, fmt.Errorf("%w: slot unavailable", model.ErrConflict)
	}

	ref, err := s.refs.Allocate(ctx)
	if err != nil {
		return nil, err
	}

	reservation := &model.Reservation{
		Reference:   ref,
		GarageID:    in.GarageID,
		RequesterID: in.RequesterID,
		VehicleID:   in.VehicleID,
		Date:        in.Date,
		Slot:        in.Slot,
		Status:      model.StatusPending,
		Notes:       in.Notes,
	}

	commitCtx, cancel := context.WithTimeout(ctx, s.cfg.CommitTimeout)
	defer cancel()
	if err := s.reservations.CreateReservation(commitCtx, reservation); err != nil {
		if errors.Is(err, model.ErrConflict) {
			metrics.IncReservationConflict()
		}
		return nil, err
	}

	metrics.IncReservationCreated(string(reservation.Status))
	s.logger.Info().
		Str("reference", reservation.Reference).
		Int64("garage_id", reservation.GarageID).
		Str("date", reservation.Date).
		Str("slot", reservation.Slot).
		Msg("reservation created")

	s.bus.Publish(events.TypeReservationCreated, ReservationCreatedEvent{
		ReservationID: reservation.ID,
		Reference:     reservation.Reference,
		GarageID:      garage.ID,
		GarageName:    garage.Name,
		RequesterID:   reservation.RequesterID,
		VehicleID:     reservation.VehicleID,
		Date:          reservation.Date,
		Slot:          reservation.Slot,
	})

	return reservation, nil
}

// Cancel terminates a pending or confirmed reservation and frees its slot.
func (s *Service) Cancel(ctx context.Context, reservationID int64, reason string) (*model.Reservation, error) {
	r, err := s.reservations.Reservation(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if !r.Status.CanTransitionTo(model.StatusCancelled) {
		return nil, fmt.Errorf("%w: cannot cancel a %s reservation", model.ErrInvalidSlot, r.Status)
	}

	if err := s.reservations.UpdateReservationStatus(ctx, r.ID, r.Status, model.StatusCancelled, reason); err != nil {
		return nil, err
	}
	r.Status = model.StatusCancelled
	r.CancelNote = reason

	metrics.IncReservationCancelled()
	s.logger.Info().
		Str("reference", r.Reference).
		Str("reason", reason).
		Msg("reservation cancelled")

	s.bus.Publish(events.TypeReservationCancelled, ReservationCancelledEvent{
		ReservationID: r.ID,
		Reference:     r.Reference,
		GarageID:      r.GarageID,
		RequesterID:   r.RequesterID,
		Date:          r.Date,
		Slot:          r.Slot,
		Reason:        reason,
	})

	return r, nil
}

// Confirm moves a pending reservation to confirmed.
func (s *Service) Confirm(ctx context.Context, reservationID int64) (*model.Reservation, error) {
	return s.transition(ctx, reservationID, model.StatusConfirmed)
}

// Start moves a confirmed reservation to in-progress.
func (s *Service) Start(ctx context.Context, reservationID int64) (*model.Reservation, error) {
	return s.transition(ctx, reservationID, model.StatusInProgress)
}

// Complete moves an in-progress reservation to completed.
func (s *Service) Complete(ctx context.Context, reservationID int64) (*model.Reservation, error) {
	return s.transition(ctx, reservationID, model.StatusCompleted)
}

// MarkNoShow marks a confirmed reservation whose customer never arrived.
func (s *Service) MarkNoShow(ctx context.Context, reservationID int64) (*model.Reservation, error) {
	r, err := s.transition(ctx, reservationID, model.StatusNoShow)
	if err != nil {
		return nil, err
	}
	metrics.AddNoShowsSwept(1)
	return r, nil
}

func (s *Service) transition(ctx context.Context, reservationID int64, to model.Status) (*model.Reservation, error) {
	r, err := s.reservations.Reservation(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if !r.Status.CanTransitionTo(to) {
		return nil, fmt.Errorf("%w: cannot move a %s reservation to %s", model.ErrInvalidSlot, r.Status, to)
	}
	if err := s.reservations.UpdateReservationStatus(ctx, r.ID, r.Status, to, ""); err != nil {
		return nil, err
	}
	r.Status = to
	return r, nil
}

// IsBookable implements the quota/visibility gate: a garage takes new
// reservations only while approved and under its quota ceiling.
func (s *Service) IsBookable(ctx context.Context, garage *model.Garage) (bool, error) {
	if !garage.AcceptsBookings {
		return false, nil
	}
	active, err := s.reservations.CountActiveReservations(ctx, garage.ID)
	if err != nil {
		return false, fmt.Errorf("%w: count active: %v", model.ErrInternal, err)
	}
	return active < garage.QuotaAllotted, nil
}

// ListBookableGarages returns the garages currently visible for booking.
// Listing tolerates staleness; Reserve re-checks the gate with finality.
func (s *Service) ListBookableGarages(ctx context.Context) ([]model.Garage, error) {
	garages, err := s.garages.ListGarages(ctx)
	if err != nil {
		return nil, err
	}

	visible := make([]model.Garage, 0, len(garages))
	for i := range garages {
		ok, err := s.IsBookable(ctx, &garages[i])
		if err != nil {
			return nil, err
		}
		if ok {
			visible = append(visible, garages[i])
		}
	}
	return visible, nil
}

// DateAvailability is coarse per-day availability for listings.
type DateAvailability struct {
	Date      string `json:"date"`
	Available bool   `json:"available"`
}

// RangeAvailability reports, for each date in [from, to], whether the garage
// has at least one bookable slot. The span is capped at MaxRangeDays.
func (s *Service) RangeAvailability(ctx context.Context, garageID int64, from, to string) ([]DateAvailability, error) {
	now := s.now()
	start, err := time.ParseInLocation(model.DateLayout, from, now.Location())
	if err != nil {
		return nil, fmt.Errorf("%w: parse from %q", model.ErrInvalidSlot, from)
	}
	end, err := time.ParseInLocation(model.DateLayout, to, now.Location())
	if err != nil {
		return nil, fmt.Errorf("%w: parse to %q", model.ErrInvalidSlot, to)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: to precedes from", model.ErrInvalidSlot)
	}
	if end.Sub(start) > MaxRangeDays*24*time.Hour {
		return nil, fmt.Errorf("%w: range exceeds %d days", model.ErrInvalidSlot, MaxRangeDays)
	}

	var result []DateAvailability
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		date := d.Format(model.DateLayout)
		slots, err := s.availability.AvailableSlots(ctx, garageID, date, now, "")
		if err != nil {
			return nil, err
		}
		result = append(result, DateAvailability{Date: date, Available: len(slots) > 0})
	}
	return result, nil
}

// MarkOverdueNoShows marks confirmed reservations whose slot passed more
// than the grace period ago as no-show. Returns how many were swept.
func (s *Service) MarkOverdueNoShows(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.cfg.NoShowGrace)
	overdue, err := s.reservations.ListOverdueConfirmed(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	swept := 0
	for i := range overdue {
		r := &overdue[i]
		err := s.reservations.UpdateReservationStatus(ctx, r.ID, model.StatusConfirmed, model.StatusNoShow, "")
		if err != nil {
			// A concurrent transition won; skip it.
			if errors.Is(err, model.ErrConflict) {
				continue
			}
			return swept, err
		}
		swept++
		s.logger.Info().
			Str("reference", r.Reference).
			Str("date", r.Date).
			Str("slot", r.Slot).
			Msg("reservation marked no-show")
	}
	if swept > 0 {
		metrics.AddNoShowsSwept(swept)
	}
	return swept, nil
}
