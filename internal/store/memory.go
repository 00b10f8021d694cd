package store

import (
	"context"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/kavishka-codxlab/portfolio-assistant/pkg/contact"
)

// MemoryStore keeps messages in process memory.
type MemoryStore struct {
	now func() time.Time

	mu       sync.RWMutex
	messages []contact.Message // newest first
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

func (s *MemoryStore) Add(_ context.Context, msg contact.NewMessage) (contact.Message, error) {
	if err := validate(msg); err != nil {
		return contact.Message{}, err
	}
	m := contact.Message{
		ID:        xid.New().String(),
		Name:      msg.Name,
		Email:     msg.Email,
		Message:   msg.Message,
		Timestamp: s.now().UTC(),
	}
	s.mu.Lock()
	s.messages = append([]contact.Message{m}, s.messages...)
	s.mu.Unlock()
	return m, nil
}

func (s *MemoryStore) List(context.Context) ([]contact.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]contact.Message, len(s.messages))
	copy(out, s.messages)
	return out, nil
}

func (s *MemoryStore) MarkRead(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.messages {
		if s.messages[i].ID == id {
			s.messages[i].IsRead = true
			return nil
		}
	}
	return ErrNotFound
}
