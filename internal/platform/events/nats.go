package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSPublisher publishes each event on "<prefix>.<type>".
type NATSPublisher struct {
	nc     *nats.Conn
	prefix string
}

func NewNATSPublisher(url, prefix string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("medicai-alert-events"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &NATSPublisher{nc: nc, prefix: prefix}, nil
}

func (p *NATSPublisher) subject(eventType string) string {
	if p.prefix == "" {
		return eventType
	}
	return p.prefix + "." + eventType
}

func (p *NATSPublisher) Publish(ctx context.Context, ev Event) error {
	if p.nc.IsClosed() {
		return ErrPublisherClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := nats.NewMsg(p.subject(ev.Type))
	msg.Data = data
	msg.Header.Set("Event-Key", ev.Key)
	if err := p.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish nats message: %w", err)
	}
	return nil
}

func (p *NATSPublisher) Close() error {
	if p.nc.IsClosed() {
		return nil
	}
	return p.nc.Drain()
}
