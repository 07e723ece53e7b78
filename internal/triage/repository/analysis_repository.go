package repository

import (
	"mailpilot-backend/internal/triage/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AnalysisRepository persists per-message analyses. A later run's analysis
// for the same message supersedes the earlier one.
type AnalysisRepository interface {
	// Upsert saves an analysis keyed by (user, message)
	Upsert(analysis *domain.Analysis) error
	// GetByRun retrieves every analysis produced by one run
	GetByRun(userID, runID string) ([]*domain.Analysis, error)
}

type analysisRepository struct {
	db *gorm.DB
}

// NewAnalysisRepository creates a new instance of analysisRepository
func NewAnalysisRepository(db *gorm.DB) AnalysisRepository {
	return &analysisRepository{db: db}
}

func (r *analysisRepository) Upsert(analysis *domain.Analysis) error {
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "message_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"run_id", "summary", "answer", "actions", "entities",
			"relevance", "urgent", "itinerary", "reply_draft",
		}),
	}).Create(analysis).Error
}

func (r *analysisRepository) GetByRun(userID, runID string) ([]*domain.Analysis, error) {
	var analyses []*domain.Analysis
	err := r.db.Where("user_id = ? AND run_id = ?", userID, runID).Find(&analyses).Error
	if err != nil {
		return nil, err
	}
	return analyses, nil
}
