package events

import (
	"encoding/json"
	"slices"
	"time"
)

// EventType identifies the kind of event flowing through the system.
type EventType string

const (
	SessionStarted      EventType = "session.started"
	SessionEnded        EventType = "session.ended"
	IntentRecognized    EventType = "intent.recognized"
	SlotCollected       EventType = "slot.collected"
	SlotRejected        EventType = "slot.rejected"
	SubmissionConfirmed EventType = "submission.confirmed"
	SubmissionDeclined  EventType = "submission.declined"
	SubmissionDelivered EventType = "submission.delivered"
	SubmissionFailed    EventType = "submission.failed"
	ConversationReset   EventType = "conversation.reset"
	WebhookTest         EventType = "webhook.test"
)

var knownTypes = []EventType{
	SessionStarted, SessionEnded,
	IntentRecognized, SlotCollected, SlotRejected,
	SubmissionConfirmed, SubmissionDeclined,
	SubmissionDelivered, SubmissionFailed,
	ConversationReset, WebhookTest,
}

// Valid reports whether et is one of the event types this service emits.
func (et EventType) Valid() bool {
	return slices.Contains(knownTypes, et)
}

// Envelope is the standard event wrapper published to the event bus.
type Envelope struct {
	ID        string            `json:"id"`
	Type      EventType         `json:"type"`
	Source    string            `json:"source"`
	SessionID string            `json:"session_id"`
	Timestamp time.Time         `json:"timestamp"`
	Data      json.RawMessage   `json:"data"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// SessionData is the payload for session.started and session.ended events.
type SessionData struct {
	Reason string `json:"reason,omitempty"`
}

// IntentRecognizedData is the payload for intent.recognized events.
type IntentRecognizedData struct {
	Intent  string `json:"intent"`
	Message string `json:"message"`
}

// SlotData is the payload for slot.collected and slot.rejected events.
type SlotData struct {
	Intent   string `json:"intent"`
	Slot     string `json:"slot"`
	SlotType string `json:"slot_type"`
	Attempt  int    `json:"attempt,omitempty"`
}

// SubmissionData is the payload for submission.* events.
type SubmissionData struct {
	Intent    string            `json:"intent"`
	Type      string            `json:"type"`
	Name      string            `json:"name"`
	Email     string            `json:"email"`
	Message   string            `json:"message"`
	Slots     map[string]string `json:"slots,omitempty"`
	MessageID string            `json:"message_id,omitempty"`
	Error     string            `json:"error,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// WebhookTestData is the payload for webhook.test events.
type WebhookTestData struct {
	WebhookID string `json:"webhook_id"`
	Message   string `json:"message"`
}
