package webhook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kavishka-codxlab/portfolio-assistant/pkg/events"
)

// EndpointSource lists the active endpoints subscribed to an event type.
type EndpointSource interface {
	ListByEventType(ctx context.Context, et events.EventType) ([]Endpoint, error)
}

// StaticEndpoints is an EndpointSource fixed at startup from configuration.
type StaticEndpoints []Endpoint

// NewStaticEndpoints builds endpoints for the given URLs sharing one secret,
// subscribed to the given event types.
func NewStaticEndpoints(urls []string, secret string, types ...events.EventType) StaticEndpoints {
	out := make(StaticEndpoints, 0, len(urls))
	for i, u := range urls {
		wh := Endpoint{
			Name:       fmt.Sprintf("config-%d", i),
			URL:        u,
			Secret:     secret,
			EventTypes: EventTypesJSON(types),
			IsActive:   true,
		}
		wh.ID = wh.Name
		out = append(out, wh)
	}
	return out
}

// ListByEventType implements EndpointSource.
func (s StaticEndpoints) ListByEventType(_ context.Context, et events.EventType) ([]Endpoint, error) {
	var out []Endpoint
	for _, wh := range s {
		if wh.Subscribed(et) {
			out = append(out, wh)
		}
	}
	return out, nil
}

// Subscriber routes event envelopes to matching webhooks.
type Subscriber struct {
	Sources   []EndpointSource
	Deliverer *Deliverer
	Pool      Pool
}

// Run consumes envelopes until ctx is cancelled or the channel closes.
func (ws *Subscriber) Run(ctx context.Context, envelopes <-chan events.Envelope) {
	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-envelopes:
			if !ok {
				return
			}
			if err := ws.Handle(ctx, env); err != nil {
				slog.ErrorContext(ctx, "webhook subscriber: handle envelope",
					slog.String("event_id", env.ID),
					slog.String("error", err.Error()))
			}
		}
	}
}

// Handle fans one envelope out to every subscribed endpoint.
func (ws *Subscriber) Handle(ctx context.Context, env events.Envelope) error {
	for _, src := range ws.Sources {
		webhooks, err := src.ListByEventType(ctx, env.Type)
		if err != nil {
			return fmt.Errorf("list webhooks: %w", err)
		}
		for _, wh := range webhooks {
			if ws.Pool != nil {
				if err := ws.Pool.Submit(func() {
					ws.Deliverer.Deliver(ctx, wh, env)
				}); err != nil {
					slog.WarnContext(ctx, "webhook pool full", slog.String("webhook_id", wh.ID))
				}
			} else {
				go ws.Deliverer.Deliver(ctx, wh, env)
			}
		}
	}
	return nil
}
