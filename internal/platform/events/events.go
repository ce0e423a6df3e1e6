package events

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// Alert event types.
const (
	AlertRaised       = "alert.raised"
	AlertTransitioned = "alert.transitioned"
)

var ErrPublisherClosed = errors.New("events: publisher closed")

// Event is the envelope handed to every sink. Key is used for partitioning
// and is normally the patient id.
type Event struct {
	Type       string      `json:"type"`
	Key        string      `json:"key"`
	OccurredAt time.Time   `json:"occurred_at"`
	Payload    interface{} `json:"payload"`
}

// Publisher delivers events after the owning transaction has committed.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// LogPublisher writes events to the structured log. It is the default sink.
type LogPublisher struct {
	logger zerolog.Logger
}

func NewLogPublisher(logger zerolog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger.With().Str("component", "events").Logger()}
}

func (p *LogPublisher) Publish(_ context.Context, ev Event) error {
	p.logger.Info().
		Str("type", ev.Type).
		Str("key", ev.Key).
		Time("occurred_at", ev.OccurredAt).
		Interface("payload", ev.Payload).
		Msg("event")
	return nil
}

func (p *LogPublisher) Close() error { return nil }

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }
