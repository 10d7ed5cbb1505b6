package booking

import (
	"context"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pitstop/internal/database"
	"pitstop/internal/model"
	"pitstop/internal/slots"
)

// recordingBus captures published events without delivering them anywhere.
type recordingBus struct {
	mu     sync.Mutex
	events []publishedEvent
}

type publishedEvent struct {
	Type    string
	Payload any
}

func (b *recordingBus) Publish(eventType string, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, publishedEvent{Type: eventType, Payload: payload})
}

func (b *recordingBus) count(eventType string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, e := range b.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

type fixture struct {
	store   *database.Store
	service *Service
	bus     *recordingBus
	garage  *model.Garage
}

// newFixture builds a service over a real store with one bookable garage
// open Tuesdays 09:00-12:00 in 60-minute slots. The clock is pinned to the
// Monday before, so nothing is past-filtered.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zerolog.New(io.Discard)

	store, err := database.Open(filepath.Join(t.TempDir(), "booking_test.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	garage := &model.Garage{Name: "Crankshaft & Sons", AcceptsBookings: true, QuotaAllotted: 10}
	require.NoError(t, store.CreateGarage(ctx, garage))
	require.NoError(t, store.UpsertWeeklyEntry(ctx, &model.WeeklyScheduleEntry{
		GarageID: garage.ID, Weekday: time.Tuesday, IsOpen: true,
		OpenTime: "09:00", CloseTime: "12:00", SlotDurationMinutes: 60,
	}))

	bus := &recordingBus{}
	calc := slots.NewCalculator(store, store, store, store)
	service := NewService(store, store, calc, bus, Config{}, &logger)
	service.now = func() time.Time {
		return time.Date(2030, 4, 1, 10, 0, 0, 0, time.Local)
	}

	return &fixture{store: store, service: service, bus: bus, garage: garage}
}

// tuesday is the day after the pinned clock.
const tuesday = "2030-04-02"

func (f *fixture) reserve(ctx context.Context, slot string) (*model.Reservation, error) {
	return f.service.Reserve(ctx, ReserveInput{
		GarageID:    f.garage.ID,
		RequesterID: 100,
		VehicleID:   200,
		Date:        tuesday,
		Slot:        slot,
	})
}

func TestReserve(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r, err := f.reserve(ctx, "10:00")
	require.NoError(t, err)
	assert.NotZero(t, r.ID)
	assert.Len(t, r.Reference, 8)
	assert.Equal(t, model.StatusPending, r.Status)
	assert.Equal(t, 1, f.bus.count("reservation.created"))

	created, ok := f.bus.events[0].Payload.(ReservationCreatedEvent)
	require.True(t, ok)
	assert.Equal(t, r.Reference, created.Reference)
	assert.Equal(t, "Crankshaft & Sons", created.GarageName)

	// The committed slot disappears from availability.
	free, err := f.service.availability.AvailableSlots(ctx, f.garage.ID, tuesday, f.service.now(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00", "11:00"}, free)
}

func TestReserveRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("unknown garage", func(t *testing.T) {
		_, err := f.service.Reserve(ctx, ReserveInput{GarageID: 9999, Date: tuesday, Slot: "09:00"})
		assert.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("slot outside schedule", func(t *testing.T) {
		_, err := f.reserve(ctx, "13:00")
		assert.ErrorIs(t, err, model.ErrConflict)
	})

	t.Run("malformed slot", func(t *testing.T) {
		_, err := f.reserve(ctx, "9:00")
		assert.ErrorIs(t, err, model.ErrInvalidSlot)
	})

	t.Run("past slot", func(t *testing.T) {
		_, err := f.service.Reserve(ctx, ReserveInput{
			GarageID: f.garage.ID, Date: "2030-03-26", Slot: "09:00",
		})
		assert.ErrorIs(t, err, model.ErrInvalidSlot)
	})

	t.Run("too far ahead", func(t *testing.T) {
		_, err := f.service.Reserve(ctx, ReserveInput{
			GarageID: f.garage.ID, Date: "2031-04-01", Slot: "09:00",
		})
		assert.ErrorIs(t, err, model.ErrInvalidSlot)
	})

	t.Run("garage paused", func(t *testing.T) {
		require.NoError(t, f.store.UpdateGarageFlags(ctx, f.garage.ID, false, 10))
		_, err := f.reserve(ctx, "09:00")
		assert.ErrorIs(t, err, model.ErrInvalidSlot)
		require.NoError(t, f.store.UpdateGarageFlags(ctx, f.garage.ID, true, 10))
	})
}

func TestReserveDoubleBooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.reserve(ctx, "10:00")
	require.NoError(t, err)

	_, err = f.reserve(ctx, "10:00")
	assert.ErrorIs(t, err, model.ErrConflict)
}

func TestReserveConcurrent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const workers = 8
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.reserve(ctx, "11:00")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	won, conflicts := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			won++
		default:
			assert.ErrorIs(t, err, model.ErrConflict)
			conflicts++
		}
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, workers-1, conflicts)
	assert.Equal(t, 1, f.bus.count("reservation.created"))
}

func TestCancelFreesSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.reserve(ctx, "09:00")
	require.NoError(t, err)

	_, err = f.reserve(ctx, "09:00")
	require.ErrorIs(t, err, model.ErrConflict)

	cancelled, err := f.service.Cancel(ctx, first.ID, "customer called it off")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, cancelled.Status)
	assert.Equal(t, "customer called it off", cancelled.CancelNote)
	assert.Equal(t, 1, f.bus.count("reservation.cancelled"))

	second, err := f.reserve(ctx, "09:00")
	require.NoError(t, err)
	assert.NotEqual(t, first.Reference, second.Reference)
}

func TestCancelTerminal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r, err := f.reserve(ctx, "09:00")
	require.NoError(t, err)
	_, err = f.service.Cancel(ctx, r.ID, "")
	require.NoError(t, err)

	// Cancelling twice is rejected, not idempotent.
	_, err = f.service.Cancel(ctx, r.ID, "")
	assert.ErrorIs(t, err, model.ErrInvalidSlot)

	_, err = f.service.Cancel(ctx, 9999, "")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestLifecycleTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r, err := f.reserve(ctx, "09:00")
	require.NoError(t, err)

	// Skipping confirmed is not allowed.
	_, err = f.service.Start(ctx, r.ID)
	assert.ErrorIs(t, err, model.ErrInvalidSlot)

	r, err = f.service.Confirm(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, r.Status)

	r, err = f.service.Start(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInProgress, r.Status)

	_, err = f.service.Cancel(ctx, r.ID, "")
	assert.ErrorIs(t, err, model.ErrInvalidSlot)

	r, err = f.service.Complete(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, r.Status)

	_, err = f.service.Confirm(ctx, r.ID)
	assert.ErrorIs(t, err, model.ErrInvalidSlot)
}

func TestMarkNoShow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r, err := f.reserve(ctx, "09:00")
	require.NoError(t, err)

	// Only confirmed reservations can be no-shows.
	_, err = f.service.MarkNoShow(ctx, r.ID)
	assert.ErrorIs(t, err, model.ErrInvalidSlot)

	_, err = f.service.Confirm(ctx, r.ID)
	require.NoError(t, err)

	r, err = f.service.MarkNoShow(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusNoShow, r.Status)

	// A no-show frees the slot.
	_, err = f.reserve(ctx, "09:00")
	require.NoError(t, err)
}

func TestQuotaGate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.UpdateGarageFlags(ctx, f.garage.ID, true, 2))
	f.garage.QuotaAllotted = 2

	first, err := f.reserve(ctx, "09:00")
	require.NoError(t, err)
	_, err = f.reserve(ctx, "10:00")
	require.NoError(t, err)

	// At the ceiling the garage takes no more bookings and drops out of
	// the bookable listing.
	_, err = f.reserve(ctx, "11:00")
	assert.ErrorIs(t, err, model.ErrInvalidSlot)

	ok, err := f.service.IsBookable(ctx, f.garage)
	require.NoError(t, err)
	assert.False(t, ok)

	visible, err := f.service.ListBookableGarages(ctx)
	require.NoError(t, err)
	assert.Empty(t, visible)

	// Cancelling one frees capacity again.
	_, err = f.service.Cancel(ctx, first.ID, "")
	require.NoError(t, err)

	_, err = f.reserve(ctx, "11:00")
	require.NoError(t, err)
}

func TestRangeAvailability(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	days, err := f.service.RangeAvailability(ctx, f.garage.ID, "2030-04-01", "2030-04-07")
	require.NoError(t, err)
	require.Len(t, days, 7)
	for _, d := range days {
		assert.Equal(t, d.Date == tuesday, d.Available, d.Date)
	}

	_, err = f.service.RangeAvailability(ctx, f.garage.ID, "2030-04-07", "2030-04-01")
	assert.ErrorIs(t, err, model.ErrInvalidSlot)

	_, err = f.service.RangeAvailability(ctx, f.garage.ID, "2030-04-01", "2030-08-01")
	assert.ErrorIs(t, err, model.ErrInvalidSlot)
}

func TestMarkOverdueNoShows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	confirmed, err := f.reserve(ctx, "09:00")
	require.NoError(t, err)
	_, err = f.service.Confirm(ctx, confirmed.ID)
	require.NoError(t, err)

	// Still pending; the sweeper must leave it alone.
	pending, err := f.reserve(ctx, "10:00")
	require.NoError(t, err)

	// Jump the clock well past the slot plus grace.
	f.service.now = func() time.Time {
		return time.Date(2030, 4, 2, 15, 0, 0, 0, time.Local)
	}

	swept, err := f.service.MarkOverdueNoShows(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	loaded, err := f.store.Reservation(ctx, confirmed.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusNoShow, loaded.Status)

	loaded, err = f.store.Reservation(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, loaded.Status)

	// Second sweep finds nothing.
	swept, err = f.service.MarkOverdueNoShows(ctx)
	require.NoError(t, err)
	assert.Zero(t, swept)
}
