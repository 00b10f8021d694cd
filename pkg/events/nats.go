package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSQueue publishes envelopes as JSON on core NATS subjects.
type NATSQueue struct {
	nc *nats.Conn
}

// NewNATSQueue connects to the NATS server at url.
func NewNATSQueue(url string) (*NATSQueue, error) {
	nc, err := nats.Connect(url,
		nats.Name("portfolio-assistant"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return &NATSQueue{nc: nc}, nil
}

// Publish sends env to subject. The context bounds nothing on core NATS but
// is checked before publishing.
func (q *NATSQueue) Publish(ctx context.Context, subject string, env Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	if err := q.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("publish to subject %s: %w", subject, err)
	}
	return nil
}

// Close drains pending messages and closes the connection.
func (q *NATSQueue) Close() error {
	if q.nc == nil {
		return nil
	}
	return q.nc.Drain()
}
