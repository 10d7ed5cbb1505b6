package notify

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pitstop/internal/booking"
	"pitstop/internal/events"
)

type captureSender struct {
	mu       sync.Mutex
	messages []string
	fail     bool
}

func (s *captureSender) Send(_ context.Context, _ int64, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("channel down")
	}
	s.messages = append(s.messages, message)
	return nil
}

func (s *captureSender) all() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.messages...)
}

func TestNotifierOnCreated(t *testing.T) {
	logger := zerolog.New(io.Discard)
	bus := events.NewBus(&logger)
	sender := &captureSender{}
	New(sender, &logger).Subscribe(bus)

	bus.Publish(events.TypeReservationCreated, booking.ReservationCreatedEvent{
		Reference:   "ABCD2345",
		GarageName:  "Crankshaft & Sons",
		RequesterID: 42,
		Date:        "2030-04-02",
		Slot:        "10:00",
	})
	bus.Wait()

	messages := sender.all()
	require.Len(t, messages, 1)
	assert.Contains(t, messages[0], "Crankshaft & Sons")
	assert.Contains(t, messages[0], "2030-04-02")
	assert.Contains(t, messages[0], "ABCD2345")
}

func TestNotifierOnCancelled(t *testing.T) {
	logger := zerolog.New(io.Discard)
	bus := events.NewBus(&logger)
	sender := &captureSender{}
	New(sender, &logger).Subscribe(bus)

	bus.Publish(events.TypeReservationCancelled, booking.ReservationCancelledEvent{
		Reference:   "WXYZ6789",
		RequesterID: 42,
		Date:        "2030-04-02",
		Slot:        "10:00",
		Reason:      "customer request",
	})
	bus.Wait()

	messages := sender.all()
	require.Len(t, messages, 1)
	assert.Contains(t, messages[0], "cancelled")
	assert.Contains(t, messages[0], "WXYZ6789")
}

func TestNotifierSendFailureIsContained(t *testing.T) {
	logger := zerolog.New(io.Discard)
	bus := events.NewBus(&logger)
	sender := &captureSender{fail: true}
	New(sender, &logger).Subscribe(bus)

	// Must not panic or block; the failure stays inside the handler.
	bus.Publish(events.TypeReservationCreated, booking.ReservationCreatedEvent{RequesterID: 42})
	bus.Wait()

	assert.Empty(t, sender.all())
}
