package repository

import (
	"time"

	"mailpilot-backend/internal/triage/domain"

	"gorm.io/gorm"
)

// RunRepository persists pipeline run metadata and provenance.
type RunRepository interface {
	// Create records a freshly started run
	Create(run *domain.Run) error
	// Update overwrites the run record
	Update(run *domain.Run) error
	// GetByID retrieves one run, nil if absent
	GetByID(userID, runID string) (*domain.Run, error)
	// LastCompleted retrieves the user's most recent completed run, nil if none
	LastCompleted(userID string) (*domain.Run, error)
	// MarkFailed sets the run failed with the causing error serialized
	MarkFailed(runID string, cause error) error
}

type runRepository struct {
	db *gorm.DB
}

// NewRunRepository creates a new instance of runRepository
func NewRunRepository(db *gorm.DB) RunRepository {
	return &runRepository{db: db}
}

func (r *runRepository) Create(run *domain.Run) error {
	return r.db.Create(run).Error
}

func (r *runRepository) Update(run *domain.Run) error {
	return r.db.Save(run).Error
}

func (r *runRepository) GetByID(userID, runID string) (*domain.Run, error) {
	var run domain.Run
	err := r.db.Where("user_id = ? AND id = ?", userID, runID).First(&run).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &run, nil
}

func (r *runRepository) LastCompleted(userID string) (*domain.Run, error) {
	var run domain.Run
	err := r.db.Where("user_id = ? AND status = ?", userID, domain.RunCompleted).
		Order("completed_at DESC").
		First(&run).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &run, nil
}

func (r *runRepository) MarkFailed(runID string, cause error) error {
	now := time.Now()
	updates := map[string]interface{}{
		"status":       domain.RunFailed,
		"completed_at": &now,
	}
	if cause != nil {
		updates["error"] = cause.Error()
	}
	return r.db.Model(&domain.Run{}).Where("id = ?", runID).Updates(updates).Error
}
