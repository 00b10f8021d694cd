package store

import (
	"context"
	"errors"

	"github.com/kavishka-codxlab/portfolio-assistant/pkg/contact"
)

// HTTPStore forwards messages to an existing portfolio backend.
type HTTPStore struct {
	client *contact.Client
}

// NewHTTPStore wraps a contact API client.
func NewHTTPStore(client *contact.Client) *HTTPStore {
	return &HTTPStore{client: client}
}

func (s *HTTPStore) Add(ctx context.Context, msg contact.NewMessage) (contact.Message, error) {
	if err := validate(msg); err != nil {
		return contact.Message{}, err
	}
	m, err := s.client.Create(ctx, msg)
	if err != nil {
		return contact.Message{}, err
	}
	return *m, nil
}

func (s *HTTPStore) List(ctx context.Context) ([]contact.Message, error) {
	return s.client.List(ctx)
}

func (s *HTTPStore) MarkRead(ctx context.Context, id string) error {
	err := s.client.MarkRead(ctx, id)
	if errors.Is(err, contact.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
