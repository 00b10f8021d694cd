package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/kavishka-codxlab/portfolio-assistant/pkg/events"
)

// ErrNotFound is returned when a webhook record does not exist.
var ErrNotFound = errors.New("webhook record not found")

// Repository stores endpoints, delivery attempts and dead letters in
// PostgreSQL.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Migrate creates or updates the webhook tables.
func (r *Repository) Migrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&Endpoint{}, &DeliveryAttempt{}, &DeadLetter{})
}

func byWebhook(id string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB { return db.Where("webhook_id = ?", id) }
}

func newestFirst(db *gorm.DB) *gorm.DB { return db.Order("created_at DESC") }

func paginate(limit, offset int) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if limit > 0 {
			db = db.Limit(limit)
		}
		if offset > 0 {
			db = db.Offset(offset)
		}
		return db
	}
}

// subscribedTo matches active endpoints whose jsonb event list contains et.
func subscribedTo(et events.EventType) (func(*gorm.DB) *gorm.DB, error) {
	needle, err := json.Marshal([]events.EventType{et})
	if err != nil {
		return nil, fmt.Errorf("encode event type: %w", err)
	}
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("is_active = ?", true).Where("event_types @> ?", string(needle))
	}, nil
}

func (r *Repository) CreateEndpoint(ctx context.Context, wh *Endpoint) error {
	return r.db.WithContext(ctx).Create(wh).Error
}

func (r *Repository) GetByID(ctx context.Context, id string) (*Endpoint, error) {
	var wh Endpoint
	err := r.db.WithContext(ctx).First(&wh, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &wh, nil
}

// ListByEventType implements EndpointSource.
func (r *Repository) ListByEventType(ctx context.Context, et events.EventType) ([]Endpoint, error) {
	scope, err := subscribedTo(et)
	if err != nil {
		return nil, err
	}
	var out []Endpoint
	err = r.db.WithContext(ctx).Scopes(scope).Find(&out).Error
	return out, err
}

// ListAll returns every endpoint, newest first.
func (r *Repository) ListAll(ctx context.Context) ([]Endpoint, error) {
	var out []Endpoint
	err := r.db.WithContext(ctx).Scopes(newestFirst).Find(&out).Error
	return out, err
}

// Delete soft-deletes an endpoint. Deleting an unknown or already deleted
// endpoint returns ErrNotFound.
func (r *Repository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&Endpoint{}, "id = ?", id)
	switch {
	case res.Error != nil:
		return res.Error
	case res.RowsAffected == 0:
		return ErrNotFound
	}
	return nil
}

// RecordDelivery implements Recorder.
func (r *Repository) RecordDelivery(ctx context.Context, da *DeliveryAttempt) error {
	return r.db.WithContext(ctx).Create(da).Error
}

func (r *Repository) ListDeliveries(ctx context.Context, webhookID string, limit, offset int) ([]DeliveryAttempt, error) {
	var out []DeliveryAttempt
	err := r.db.WithContext(ctx).
		Scopes(byWebhook(webhookID), newestFirst, paginate(limit, offset)).
		Find(&out).Error
	return out, err
}

// CreateDeadLetter implements Recorder.
func (r *Repository) CreateDeadLetter(ctx context.Context, dl *DeadLetter) error {
	return r.db.WithContext(ctx).Create(dl).Error
}

// ListDeadLetters returns the dead letters of a webhook that can still be
// replayed.
func (r *Repository) ListDeadLetters(ctx context.Context, webhookID string) ([]DeadLetter, error) {
	var out []DeadLetter
	err := r.db.WithContext(ctx).
		Scopes(byWebhook(webhookID), newestFirst).
		Where("replayable = ?", true).
		Find(&out).Error
	return out, err
}

func (r *Repository) MarkDeadLetterReplayed(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Model(&DeadLetter{}).Where("id = ?", id).Update("replayable", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
