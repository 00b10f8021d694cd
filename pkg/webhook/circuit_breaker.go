package webhook

import (
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

const maxBreakers = 10000

// BreakerConfig holds the per-endpoint circuit breaker parameters.
type BreakerConfig struct {
	FailureThreshold uint32
	ResetTimeout     time.Duration
}

// deliveryResult is what one HTTP attempt produced.
type deliveryResult struct {
	code int
	body string
}

// breakerSet lazily creates one circuit breaker per webhook endpoint.
type breakerSet struct {
	cfg BreakerConfig

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[deliveryResult]
}

func newBreakerSet(cfg BreakerConfig) *breakerSet {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = time.Minute
	}
	return &breakerSet{
		cfg:      cfg,
		breakers: make(map[string]*gobreaker.CircuitBreaker[deliveryResult]),
	}
}

func (s *breakerSet) get(webhookID string) *gobreaker.CircuitBreaker[deliveryResult] {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cb, ok := s.breakers[webhookID]; ok {
		return cb
	}

	// Evict an arbitrary entry if at capacity.
	if len(s.breakers) >= maxBreakers {
		for k := range s.breakers {
			delete(s.breakers, k)
			break
		}
	}

	threshold := s.cfg.FailureThreshold
	cb := gobreaker.NewCircuitBreaker[deliveryResult](gobreaker.Settings{
		Name:        webhookID,
		MaxRequests: 1,
		Timeout:     s.cfg.ResetTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("webhook circuit state changed",
				slog.String("webhook_id", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	})
	s.breakers[webhookID] = cb
	return cb
}

// state reports the breaker state for an endpoint, "closed" when unknown.
func (s *breakerSet) state(webhookID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cb, ok := s.breakers[webhookID]; ok {
		return cb.State().String()
	}
	return gobreaker.StateClosed.String()
}
