package webhook

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/rs/xid"
	"gorm.io/gorm"

	"github.com/kavishka-codxlab/portfolio-assistant/pkg/events"
)

// BaseModel carries the identifier and timestamps shared by all webhook tables.
type BaseModel struct {
	ID        string         `gorm:"type:varchar(50);primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate assigns an xid when the caller has not set one.
func (m *BaseModel) BeforeCreate(*gorm.DB) error {
	if m.ID == "" {
		m.ID = xid.New().String()
	}
	return nil
}

// Endpoint is a webhook subscription: a URL that receives signed event
// envelopes of the listed types.
type Endpoint struct {
	BaseModel

	Name        string         `gorm:"type:varchar(255);not null"  json:"name"`
	URL         string         `gorm:"type:varchar(2048);not null" json:"url"`
	Secret      string         `gorm:"type:varchar(512);not null"  json:"-"`
	EventTypes  EventTypesJSON `gorm:"type:jsonb;default:'[]'"     json:"event_types"`
	IsActive    bool           `gorm:"default:true"                json:"is_active"`
	Description string         `gorm:"type:text"                   json:"description,omitempty"`
}

func (Endpoint) TableName() string { return "webhook_endpoints" }

// Subscribed reports whether the endpoint wants events of type et. An empty
// type list subscribes to confirmed submissions only.
func (e Endpoint) Subscribed(et events.EventType) bool {
	if !e.IsActive {
		return false
	}
	if len(e.EventTypes) == 0 {
		return et == events.SubmissionConfirmed
	}
	return e.EventTypes.Contains(et)
}

// EventTypesJSON is a custom GORM type for JSONB storage of event types.
type EventTypesJSON []events.EventType

func (e EventTypesJSON) Value() (driver.Value, error) {
	if e == nil {
		return "[]", nil
	}
	b, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (e *EventTypesJSON) Scan(src any) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, e)
	case string:
		return json.Unmarshal([]byte(v), e)
	default:
		*e = EventTypesJSON{}
		return nil
	}
}

// Contains checks whether the list includes the given event type.
func (e EventTypesJSON) Contains(et events.EventType) bool {
	for _, t := range e {
		if t == et {
			return true
		}
	}
	return false
}

// Delivery statuses.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// DeliveryAttempt records one attempt to deliver an event to a webhook.
type DeliveryAttempt struct {
	BaseModel

	WebhookID     string `gorm:"type:varchar(50);not null;index:idx_da_webhook" json:"webhook_id"`
	EventID       string `gorm:"type:varchar(50);not null"                       json:"event_id"`
	EventType     string `gorm:"type:varchar(100);not null"                      json:"event_type"`
	RequestBody   string `gorm:"type:text"                                       json:"-"`
	ResponseCode  int    `gorm:"default:0"                                       json:"response_code"`
	ResponseBody  string `gorm:"type:text"                                       json:"-"`
	AttemptNumber int    `gorm:"default:1"                                       json:"attempt_number"`
	Status        string `gorm:"type:varchar(20);not null;index:idx_da_status"   json:"status"`
	Error         string `gorm:"type:text"                                       json:"error,omitempty"`
	DurationMs    int64  `gorm:"default:0"                                       json:"duration_ms"`
}

func (DeliveryAttempt) TableName() string { return "webhook_delivery_attempts" }

// DeadLetter holds events that exhausted all delivery retries.
type DeadLetter struct {
	BaseModel

	WebhookID  string `gorm:"type:varchar(50);not null;index:idx_dl_webhook" json:"webhook_id"`
	EventID    string `gorm:"type:varchar(50);not null"                       json:"event_id"`
	EventType  string `gorm:"type:varchar(100);not null"                      json:"event_type"`
	Payload    string `gorm:"type:text;not null"                              json:"payload"`
	LastError  string `gorm:"type:text"                                       json:"last_error"`
	Attempts   int    `gorm:"default:0"                                       json:"attempts"`
	Replayable bool   `gorm:"default:true"                                    json:"replayable"`
}

func (DeadLetter) TableName() string { return "webhook_dead_letters" }
