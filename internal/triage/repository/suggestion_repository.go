package repository

import (
	"mailpilot-backend/internal/triage/domain"

	"gorm.io/gorm"
)

// SuggestionRepository persists the synthesized suggestions of a run.
type SuggestionRepository interface {
	// SaveBatch stores a run's suggestions in insertion order
	SaveBatch(suggestions []*domain.Suggestion) error
	// GetByRun retrieves a run's suggestions in insertion order
	GetByRun(userID, runID string) ([]*domain.Suggestion, error)
}

type suggestionRepository struct {
	db *gorm.DB
}

// NewSuggestionRepository creates a new instance of suggestionRepository
func NewSuggestionRepository(db *gorm.DB) SuggestionRepository {
	return &suggestionRepository{db: db}
}

func (r *suggestionRepository) SaveBatch(suggestions []*domain.Suggestion) error {
	if len(suggestions) == 0 {
		return nil
	}
	return r.db.Create(&suggestions).Error
}

func (r *suggestionRepository) GetByRun(userID, runID string) ([]*domain.Suggestion, error) {
	var suggestions []*domain.Suggestion
	err := r.db.Where("user_id = ? AND run_id = ?", userID, runID).
		Order("created_at asc").Find(&suggestions).Error
	if err != nil {
		return nil, err
	}
	return suggestions, nil
}
