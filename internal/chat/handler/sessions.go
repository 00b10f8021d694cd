package handler

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/kavishka-codxlab/portfolio-assistant/pkg/conversation"
)

// Session end reasons reported to the onEnd callback.
const (
	EndReasonExpired = "expired"
	EndReasonClosed  = "closed"
)

// chatSession owns one engine. mu serialises turns; the engine itself is
// not safe for concurrent use.
type chatSession struct {
	id        string
	startedAt time.Time

	mu     sync.Mutex
	engine *conversation.Engine
	closed bool
}

// SessionStore holds live chat sessions with an idle TTL.
type SessionStore struct {
	cache *cache.Cache
}

// NewSessionStore creates a store whose sessions expire after ttl without
// activity. onEnd is called once per session when it expires or is closed.
func NewSessionStore(ttl time.Duration, onEnd func(id, reason string)) *SessionStore {
	cleanup := ttl / 2
	if cleanup < time.Second {
		cleanup = time.Second
	}
	c := cache.New(ttl, cleanup)
	c.OnEvicted(func(id string, v any) {
		s, ok := v.(*chatSession)
		if !ok || onEnd == nil {
			return
		}
		s.mu.Lock()
		reason := EndReasonExpired
		if s.closed {
			reason = EndReasonClosed
		}
		s.mu.Unlock()
		onEnd(id, reason)
	})
	return &SessionStore{cache: c}
}

func (st *SessionStore) put(s *chatSession) {
	st.cache.Set(s.id, s, cache.DefaultExpiration)
}

// get returns a live session and refreshes its TTL.
func (st *SessionStore) get(id string) (*chatSession, bool) {
	v, found := st.cache.Get(id)
	if !found {
		return nil, false
	}
	s := v.(*chatSession)
	st.cache.Set(id, s, cache.DefaultExpiration)
	return s, true
}

// close removes a session, reporting whether it existed.
func (st *SessionStore) close(id string) bool {
	v, found := st.cache.Get(id)
	if !found {
		return false
	}
	s := v.(*chatSession)
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	st.cache.Delete(id)
	return true
}

// Count returns the number of live sessions.
func (st *SessionStore) Count() int {
	return st.cache.ItemCount()
}

// Sweep removes expired sessions now instead of waiting for the janitor.
func (st *SessionStore) Sweep() {
	st.cache.DeleteExpired()
}
