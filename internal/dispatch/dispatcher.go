// Package dispatch turns confirmed conversation submissions into stored
// contact messages.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kavishka-codxlab/portfolio-assistant/internal/store"
	"github.com/kavishka-codxlab/portfolio-assistant/pkg/contact"
	"github.com/kavishka-codxlab/portfolio-assistant/pkg/conversation"
	"github.com/kavishka-codxlab/portfolio-assistant/pkg/events"
)

// Dispatcher is the production submission sink.
type Dispatcher struct {
	store     store.Store
	publisher *events.Publisher
	logger    *slog.Logger
}

// New creates a dispatcher. publisher may be nil.
func New(s store.Store, publisher *events.Publisher, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{store: s, publisher: publisher, logger: logger}
}

// ToContactMessage shapes a submission the way the contact form stores it:
// the submission type as a heading followed by the formatted body.
func ToContactMessage(sub conversation.Submission) contact.NewMessage {
	return contact.NewMessage{
		Name:    sub.Name,
		Email:   sub.Email,
		Message: sub.Type + "\n\n" + sub.Message,
	}
}

// SubmitFor returns a sink bound to one chat session, so delivery events
// carry its id.
func (d *Dispatcher) SubmitFor(sessionID string) conversation.SubmitFunc {
	return func(ctx context.Context, sub conversation.Submission) error {
		return d.submit(ctx, sessionID, sub)
	}
}

// Submit stores a submission that is not tied to a session.
func (d *Dispatcher) Submit(ctx context.Context, sub conversation.Submission) error {
	return d.submit(ctx, "", sub)
}

func (d *Dispatcher) submit(ctx context.Context, sessionID string, sub conversation.Submission) error {
	data := &events.SubmissionData{
		Intent:    sub.Intent,
		Type:      sub.Type,
		Name:      sub.Name,
		Email:     sub.Email,
		Message:   sub.Message,
		Timestamp: sub.Timestamp,
	}

	msg, err := d.store.Add(ctx, ToContactMessage(sub))
	if err != nil {
		d.logger.ErrorContext(ctx, "store submission failed",
			slog.String("session_id", sessionID),
			slog.String("intent", sub.Intent),
			slog.String("error", err.Error()))
		data.Error = err.Error()
		d.emit(ctx, events.SubmissionFailed, sessionID, data)
		return fmt.Errorf("store submission: %w", err)
	}

	d.logger.InfoContext(ctx, "submission stored",
		slog.String("session_id", sessionID),
		slog.String("intent", sub.Intent),
		slog.String("message_id", msg.ID))
	data.MessageID = msg.ID
	d.emit(ctx, events.SubmissionDelivered, sessionID, data)
	return nil
}

func (d *Dispatcher) emit(ctx context.Context, et events.EventType, sessionID string, data any) {
	if d.publisher == nil {
		return
	}
	if err := d.publisher.Emit(ctx, et, sessionID, data); err != nil {
		d.logger.WarnContext(ctx, "emit event failed",
			slog.String("event_type", string(et)),
			slog.String("error", err.Error()))
	}
}
