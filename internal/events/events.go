// Package events provides in-process pub/sub for domain events.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Event types published by the reservation engine.
const (
	TypeReservationCreated   = "reservation.created"
	TypeReservationCancelled = "reservation.cancelled"
)

// Event represents a lightweight domain event.
type Event struct {
	ID        string
	Type      string
	Payload   any
	CreatedAt time.Time
}

// Handler reacts to an event. Handler failures are logged and discarded;
// they can never affect the publisher's outcome.
type Handler func(event Event) error

// Bus is an in-process pub/sub dispatcher. Dispatch is asynchronous: Publish
// returns before handlers run.
type Bus struct {
	subscribers map[string][]Handler
	mu          sync.RWMutex
	wg          sync.WaitGroup
	logger      *zerolog.Logger
}

// NewBus constructs an empty bus.
func NewBus(logger *zerolog.Logger) *Bus {
	return &Bus{
		subscribers: make(map[string][]Handler),
		logger:      logger,
	}
}

// Subscribe registers a handler for a given event type.
func (b *Bus) Subscribe(eventType string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish dispatches the event to all subscribers of its type, each on its
// own goroutine behind a panic/error boundary.
func (b *Bus) Publish(eventType string, payload any) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.subscribers[eventType]...)
	b.mu.RUnlock()

	event := Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Payload:   payload,
		CreatedAt: time.Now(),
	}

	for _, handler := range handlers {
		b.wg.Add(1)
		go b.dispatch(event, handler)
	}
}

func (b *Bus) dispatch(event Event, handler Handler) {
	defer b.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().
				Str("event_id", event.ID).
				Str("event_type", event.Type).
				Interface("panic", r).
				Msg("event handler panicked")
		}
	}()

	if err := handler(event); err != nil {
		b.logger.Error().
			Err(err).
			Str("event_id", event.ID).
			Str("event_type", event.Type).
			Msg("event handler failed")
	}
}

// Wait blocks until all in-flight dispatches finish. Used in shutdown and
// tests.
func (b *Bus) Wait() {
	b.wg.Wait()
}
