package repository

import (
	"time"

	"mailpilot-backend/internal/prefs/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PreferencesRepository stores the per-user tuning data the ranking engine
// consumes (VIP senders, extra urgent keywords).
type PreferencesRepository interface {
	// Get retrieves a user's preferences, nil if none saved
	Get(userID string) (*domain.Preferences, error)
	// Upsert saves or replaces a user's preferences
	Upsert(prefs *domain.Preferences) error
}

type preferencesRepository struct {
	db *gorm.DB
}

// NewPreferencesRepository creates a new instance of preferencesRepository
func NewPreferencesRepository(db *gorm.DB) PreferencesRepository {
	return &preferencesRepository{db: db}
}

func (r *preferencesRepository) Get(userID string) (*domain.Preferences, error) {
	var prefs domain.Preferences
	err := r.db.Where("user_id = ?", userID).First(&prefs).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &prefs, nil
}

func (r *preferencesRepository) Upsert(prefs *domain.Preferences) error {
	if prefs.ID == "" {
		prefs.ID = uuid.New().String()
	}
	prefs.UpdatedAt = time.Now()
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"vip_senders", "urgent_keywords", "updated_at"}),
	}).Create(prefs).Error
}
