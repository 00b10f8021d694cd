package store

import (
	"context"
	"time"

	"github.com/rs/xid"
	"gorm.io/gorm"

	"github.com/kavishka-codxlab/portfolio-assistant/pkg/contact"
)

// messageRecord is the contact_messages row.
type messageRecord struct {
	ID        string    `gorm:"type:varchar(50);primaryKey"`
	Name      string    `gorm:"type:varchar(255);not null"`
	Email     string    `gorm:"type:varchar(320);not null"`
	Message   string    `gorm:"type:text;not null"`
	IsRead    bool      `gorm:"not null;default:false;index"`
	CreatedAt time.Time `gorm:"not null;index"`
}

func (messageRecord) TableName() string { return "contact_messages" }

func (r messageRecord) toMessage() contact.Message {
	return contact.Message{
		ID:        r.ID,
		Name:      r.Name,
		Email:     r.Email,
		Message:   r.Message,
		Timestamp: r.CreatedAt.UTC(),
		IsRead:    r.IsRead,
	}
}

// DatabaseStore keeps messages in a relational database through gorm.
type DatabaseStore struct {
	db *gorm.DB
}

// NewDatabaseStore wraps an open gorm connection.
func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	return &DatabaseStore{db: db}
}

// Migrate creates or updates the contact_messages table.
func (s *DatabaseStore) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&messageRecord{})
}

func (s *DatabaseStore) Add(ctx context.Context, msg contact.NewMessage) (contact.Message, error) {
	if err := validate(msg); err != nil {
		return contact.Message{}, err
	}
	rec := messageRecord{
		ID:        xid.New().String(),
		Name:      msg.Name,
		Email:     msg.Email,
		Message:   msg.Message,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return contact.Message{}, err
	}
	return rec.toMessage(), nil
}

func (s *DatabaseStore) List(ctx context.Context) ([]contact.Message, error) {
	var rows []messageRecord
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]contact.Message, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toMessage())
	}
	return out, nil
}

func (s *DatabaseStore) MarkRead(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Model(&messageRecord{}).Where("id = ?", id).Update("is_read", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// Already-read rows still exist; only a missing row is an error.
		var n int64
		if err := s.db.WithContext(ctx).Model(&messageRecord{}).Where("id = ?", id).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
	}
	return nil
}
