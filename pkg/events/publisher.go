package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/xid"
)

// Queue is the outbound transport behind a Publisher.
type Queue interface {
	Publish(ctx context.Context, subject string, env Envelope) error
}

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher)

// WithPublisherLogger sets the logger used for dropped-event warnings.
func WithPublisherLogger(l *slog.Logger) PublisherOption {
	return func(p *Publisher) { p.logger = l }
}

type subscription struct {
	ch    chan Envelope
	types []EventType
}

func (s *subscription) wants(et EventType) bool {
	return len(s.types) == 0 || slices.Contains(s.types, et)
}

// Publisher stamps events into envelopes, hands them to local subscribers
// without blocking, and forwards them to an optional queue.
type Publisher struct {
	queue         Queue
	source        string
	subjectPrefix string
	logger        *slog.Logger
	dropped       atomic.Uint64

	mu   sync.RWMutex
	subs map[string]*subscription
}

// NewPublisher creates a publisher. Queue subjects are
// "<subjectPrefix>.<event type>". A nil queue keeps events in-process.
func NewPublisher(queue Queue, source, subjectPrefix string, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		queue:         queue,
		source:        source,
		subjectPrefix: subjectPrefix,
		logger:        slog.Default(),
		subs:          make(map[string]*subscription),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Subject returns the queue subject for et.
func (p *Publisher) Subject(et EventType) string {
	return p.subjectPrefix + "." + string(et)
}

// Emit wraps data in an envelope and publishes it. Local subscribers whose
// buffers are full miss the event; only queue errors are returned.
func (p *Publisher) Emit(ctx context.Context, et EventType, sessionID string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", et, err)
	}
	env := Envelope{
		ID:        xid.New().String(),
		Type:      et,
		Source:    p.source,
		SessionID: sessionID,
		Timestamp: time.Now().UTC(),
		Data:      raw,
	}

	p.mu.RLock()
	for id, s := range p.subs {
		if !s.wants(et) {
			continue
		}
		select {
		case s.ch <- env:
		default:
			p.dropped.Add(1)
			p.logger.Warn("event dropped: subscriber buffer full",
				slog.String("subscriber", id),
				slog.String("event_type", string(et)))
		}
	}
	p.mu.RUnlock()

	if p.queue == nil {
		return nil
	}
	return p.queue.Publish(ctx, p.Subject(et), env)
}

// Subscribe registers a buffered local subscriber. With no types it
// receives every event. Re-using an id replaces and closes the old channel.
func (p *Publisher) Subscribe(id string, bufSize int, types ...EventType) <-chan Envelope {
	if bufSize <= 0 {
		bufSize = 64
	}
	s := &subscription{ch: make(chan Envelope, bufSize), types: types}
	p.mu.Lock()
	if old, ok := p.subs[id]; ok {
		close(old.ch)
	}
	p.subs[id] = s
	p.mu.Unlock()
	return s.ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (p *Publisher) Unsubscribe(id string) {
	p.mu.Lock()
	if s, ok := p.subs[id]; ok {
		close(s.ch)
		delete(p.subs, id)
	}
	p.mu.Unlock()
}

// Dropped counts events lost to full subscriber buffers.
func (p *Publisher) Dropped() uint64 {
	return p.dropped.Load()
}
