package repository

import (
	"time"

	"mailpilot-backend/internal/triage/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EmbeddingRepository persists cached embedding vectors so subsequent runs
// skip recomputation.
type EmbeddingRepository interface {
	// Get retrieves a cached vector, nil if absent
	Get(userID, messageID string) (*domain.Embedding, error)
	// Upsert saves or overwrites the vector for a message
	Upsert(userID, messageID string, vector []float64) error
	// DeleteForUser drops every cached vector for a user
	DeleteForUser(userID string) error
}

type embeddingRepository struct {
	db *gorm.DB
}

// NewEmbeddingRepository creates a new instance of embeddingRepository
func NewEmbeddingRepository(db *gorm.DB) EmbeddingRepository {
	return &embeddingRepository{db: db}
}

func (r *embeddingRepository) Get(userID, messageID string) (*domain.Embedding, error) {
	var emb domain.Embedding
	err := r.db.Where("user_id = ? AND message_id = ?", userID, messageID).First(&emb).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &emb, nil
}

func (r *embeddingRepository) Upsert(userID, messageID string, vector []float64) error {
	emb := domain.Embedding{
		ID:        uuid.New().String(),
		UserID:    userID,
		MessageID: messageID,
		Vector:    vector,
		UpdatedAt: time.Now(),
	}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "message_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"vector", "updated_at"}),
	}).Create(&emb).Error
}

func (r *embeddingRepository) DeleteForUser(userID string) error {
	return r.db.Where("user_id = ?", userID).Delete(&domain.Embedding{}).Error
}
