package repository

import (
	"mailpilot-backend/internal/triage/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MessageRepository persists fetched messages so the UI layer can re-read a
// run's inputs without another provider round trip.
type MessageRepository interface {
	// UpsertBatch saves messages idempotently, keyed by provider ID
	UpsertBatch(messages []*domain.Message) error
	// GetByIDs retrieves stored messages for the given IDs
	GetByIDs(userID string, ids []string) ([]*domain.Message, error)
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new instance of messageRepository
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) UpsertBatch(messages []*domain.Message) error {
	if len(messages) == 0 {
		return nil
	}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"subject", "snippet", "body", "labels", "updated_at"}),
	}).Create(&messages).Error
}

func (r *messageRepository) GetByIDs(userID string, ids []string) ([]*domain.Message, error) {
	if len(ids) == 0 {
		return []*domain.Message{}, nil
	}
	var messages []*domain.Message
	err := r.db.Where("user_id = ? AND id IN ?", userID, ids).Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}
