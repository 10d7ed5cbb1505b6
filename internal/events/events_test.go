package events

import (
	"errors"
	"io"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
)

func TestPublishReachesSubscribers(t *testing.T) {
	logger := zerolog.New(io.Discard)
	bus := NewBus(&logger)

	var created, cancelled int64
	bus.Subscribe(TypeReservationCreated, func(e Event) error {
		atomic.AddInt64(&created, 1)
		return nil
	})
	bus.Subscribe(TypeReservationCreated, func(e Event) error {
		atomic.AddInt64(&created, 1)
		return nil
	})
	bus.Subscribe(TypeReservationCancelled, func(e Event) error {
		atomic.AddInt64(&cancelled, 1)
		return nil
	})

	bus.Publish(TypeReservationCreated, "payload")
	bus.Wait()

	if got := atomic.LoadInt64(&created); got != 2 {
		t.Errorf("expected 2 created deliveries, got %d", got)
	}
	if got := atomic.LoadInt64(&cancelled); got != 0 {
		t.Errorf("expected 0 cancelled deliveries, got %d", got)
	}
}

func TestHandlerFailureIsContained(t *testing.T) {
	logger := zerolog.New(io.Discard)
	bus := NewBus(&logger)

	var delivered int64
	bus.Subscribe(TypeReservationCreated, func(e Event) error {
		return errors.New("delivery failed")
	})
	bus.Subscribe(TypeReservationCreated, func(e Event) error {
		panic("boom")
	})
	bus.Subscribe(TypeReservationCreated, func(e Event) error {
		atomic.AddInt64(&delivered, 1)
		return nil
	})

	// Must not panic the publisher.
	bus.Publish(TypeReservationCreated, nil)
	bus.Wait()

	if got := atomic.LoadInt64(&delivered); got != 1 {
		t.Errorf("healthy handler should still run, got %d deliveries", got)
	}
}

func TestEventCarriesIdentity(t *testing.T) {
	logger := zerolog.New(io.Discard)
	bus := NewBus(&logger)

	got := make(chan Event, 1)
	bus.Subscribe(TypeReservationCreated, func(e Event) error {
		got <- e
		return nil
	})

	bus.Publish(TypeReservationCreated, 42)
	bus.Wait()

	e := <-got
	if e.ID == "" {
		t.Error("event ID must be set")
	}
	if e.Type != TypeReservationCreated {
		t.Errorf("unexpected type %s", e.Type)
	}
	if e.Payload != 42 {
		t.Errorf("unexpected payload %v", e.Payload)
	}
	if e.CreatedAt.IsZero() {
		t.Error("created_at must be set")
	}
}
