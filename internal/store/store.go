// Package store persists contact messages produced by confirmed chat
// submissions. Every backend lists messages newest first.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kavishka-codxlab/portfolio-assistant/pkg/contact"
)

var (
	// ErrNotFound is returned when no message has the given id.
	ErrNotFound = errors.New("message not found")
	// ErrInvalid is returned when a message is missing a required field.
	ErrInvalid = errors.New("invalid message")
)

// Store is a contact message inbox.
type Store interface {
	Add(ctx context.Context, msg contact.NewMessage) (contact.Message, error)
	List(ctx context.Context) ([]contact.Message, error)
	MarkRead(ctx context.Context, id string) error
}

func validate(msg contact.NewMessage) error {
	var missing []string
	if strings.TrimSpace(msg.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(msg.Email) == "" {
		missing = append(missing, "email")
	}
	if strings.TrimSpace(msg.Message) == "" {
		missing = append(missing, "message")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s required", ErrInvalid, strings.Join(missing, ", "))
	}
	return nil
}
