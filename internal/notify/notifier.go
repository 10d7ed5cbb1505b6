// Package notify delivers reservation notifications off the event bus.
// Delivery failures never reach the booking path; a reservation stands
// whether or not its notification went out.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"pitstop/internal/booking"
	"pitstop/internal/events"
)

// Sender ships one rendered notification to its destination channel.
type Sender interface {
	Send(ctx context.Context, recipientID int64, message string) error
}

// LogSender writes notifications to the log. It stands in when no external
// channel is configured.
type LogSender struct {
	Logger *zerolog.Logger
}

func (s *LogSender) Send(_ context.Context, recipientID int64, message string) error {
	s.Logger.Info().Int64("recipient_id", recipientID).Str("message", message).Msg("notification delivered")
	return nil
}

// Notifier renders and sends reservation notifications.
type Notifier struct {
	sender  Sender
	logger  *zerolog.Logger
	timeout time.Duration
}

// New creates a notifier over the given sender.
func New(sender Sender, logger *zerolog.Logger) *Notifier {
	return &Notifier{sender: sender, logger: logger, timeout: 10 * time.Second}
}

// Subscribe attaches the notifier to the reservation event stream.
func (n *Notifier) Subscribe(bus *events.Bus) {
	bus.Subscribe(events.TypeReservationCreated, n.onCreated)
	bus.Subscribe(events.TypeReservationCancelled, n.onCancelled)
}

func (n *Notifier) onCreated(e events.Event) error {
	var payload booking.ReservationCreatedEvent
	if err := decodePayload(e.Payload, &payload); err != nil {
		return fmt.Errorf("decode created event: %w", err)
	}

	message := fmt.Sprintf(
		"Your appointment at %s is booked for %s at %s. Reference: %s.",
		payload.GarageName, payload.Date, payload.Slot, payload.Reference,
	)
	return n.deliver(payload.RequesterID, message)
}

func (n *Notifier) onCancelled(e events.Event) error {
	var payload booking.ReservationCancelledEvent
	if err := decodePayload(e.Payload, &payload); err != nil {
		return fmt.Errorf("decode cancelled event: %w", err)
	}

	message := fmt.Sprintf(
		"Your appointment on %s at %s was cancelled. Reference: %s.",
		payload.Date, payload.Slot, payload.Reference,
	)
	return n.deliver(payload.RequesterID, message)
}

func (n *Notifier) deliver(recipientID int64, message string) error {
	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()

	if err := n.sender.Send(ctx, recipientID, message); err != nil {
		n.logger.Error().Err(err).Int64("recipient_id", recipientID).Msg("notification send failed")
		return err
	}
	return nil
}

// decodePayload tolerates both typed payloads (in-process publish) and
// generic maps (payloads that crossed a serialization boundary).
func decodePayload(payload any, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
