package usecase

import (
	"github.com/google/uuid"

	"mailpilot-backend/internal/prefs/domain"
	"mailpilot-backend/internal/prefs/repository"
)

type PreferencesUsecase interface {
	Get(userID string) (*domain.Preferences, error)
	Update(userID string, vipSenders, urgentKeywords []string) (*domain.Preferences, error)
}

type preferencesUsecase struct {
	prefsRepo repository.PreferencesRepository
}

func NewPreferencesUsecase(prefsRepo repository.PreferencesRepository) PreferencesUsecase {
	return &preferencesUsecase{prefsRepo: prefsRepo}
}

// Get returns stored preferences, or empty defaults for a user who never
// saved any.
func (u *preferencesUsecase) Get(userID string) (*domain.Preferences, error) {
	prefs, err := u.prefsRepo.Get(userID)
	if err != nil {
		return nil, err
	}
	if prefs == nil {
		return &domain.Preferences{
			UserID:         userID,
			VIPSenders:     []string{},
			UrgentKeywords: []string{},
		}, nil
	}
	return prefs, nil
}

func (u *preferencesUsecase) Update(userID string, vipSenders, urgentKeywords []string) (*domain.Preferences, error) {
	prefs := &domain.Preferences{
		ID:             uuid.New().String(),
		UserID:         userID,
		VIPSenders:     vipSenders,
		UrgentKeywords: urgentKeywords,
	}
	if err := u.prefsRepo.Upsert(prefs); err != nil {
		return nil, err
	}
	return prefs, nil
}
