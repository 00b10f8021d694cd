package api

import (
	"net/url"
	"strconv"
	"time"

	"github.com/kavishka-codxlab/portfolio-assistant/pkg/events"
	"github.com/kavishka-codxlab/portfolio-assistant/pkg/webhook"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// CreateWebhookRequest registers an endpoint. EventTypes defaults to
// submission.confirmed.
type CreateWebhookRequest struct {
	Name        string             `json:"name"`
	URL         string             `json:"url"`
	EventTypes  []events.EventType `json:"event_types"`
	Description string             `json:"description,omitempty"`
}

// WebhookResponse describes an endpoint. Secret is only set in the
// response to Create.
type WebhookResponse struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	URL          string             `json:"url"`
	Secret       string             `json:"secret,omitempty"`
	EventTypes   []events.EventType `json:"event_types"`
	IsActive     bool               `json:"is_active"`
	Description  string             `json:"description,omitempty"`
	CircuitState string             `json:"circuit_state"`
	CreatedAt    time.Time          `json:"created_at"`
}

func newWebhookResponse(wh *webhook.Endpoint, circuit string) WebhookResponse {
	return WebhookResponse{
		ID:           wh.ID,
		Name:         wh.Name,
		URL:          wh.URL,
		EventTypes:   []events.EventType(wh.EventTypes),
		IsActive:     wh.IsActive,
		Description:  wh.Description,
		CircuitState: circuit,
		CreatedAt:    wh.CreatedAt.UTC(),
	}
}

// DeliveryResponse is one recorded delivery attempt.
type DeliveryResponse struct {
	ID            string    `json:"id"`
	EventID       string    `json:"event_id"`
	EventType     string    `json:"event_type"`
	ResponseCode  int       `json:"response_code"`
	AttemptNumber int       `json:"attempt_number"`
	Status        string    `json:"status"`
	Error         string    `json:"error,omitempty"`
	DurationMs    int64     `json:"duration_ms"`
	CreatedAt     time.Time `json:"created_at"`
}

func newDeliveryResponse(a webhook.DeliveryAttempt) DeliveryResponse {
	return DeliveryResponse{
		ID:            a.ID,
		EventID:       a.EventID,
		EventType:     a.EventType,
		ResponseCode:  a.ResponseCode,
		AttemptNumber: a.AttemptNumber,
		Status:        a.Status,
		Error:         a.Error,
		DurationMs:    a.DurationMs,
		CreatedAt:     a.CreatedAt.UTC(),
	}
}

// DeadLetterResponse is an event that ran out of delivery attempts.
type DeadLetterResponse struct {
	ID        string    `json:"id"`
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	LastError string    `json:"last_error"`
	Attempts  int       `json:"attempts"`
	CreatedAt time.Time `json:"created_at"`
}

func newDeadLetterResponse(dl webhook.DeadLetter) DeadLetterResponse {
	return DeadLetterResponse{
		ID:        dl.ID,
		EventID:   dl.EventID,
		EventType: dl.EventType,
		LastError: dl.LastError,
		Attempts:  dl.Attempts,
		CreatedAt: dl.CreatedAt.UTC(),
	}
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// page reads limit and offset query parameters. Bad values fall back to
// the defaults and limit is capped.
func page(q url.Values) (limit, offset int) {
	limit = defaultPageSize
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 {
		limit = min(n, maxPageSize)
	}
	if n, err := strconv.Atoi(q.Get("offset")); err == nil && n > 0 {
		offset = n
	}
	return limit, offset
}
