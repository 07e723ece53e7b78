package domain

import (
	triagedomain "mailpilot-backend/internal/triage/domain"
	"time"
)

// Preferences holds per-user tuning data consumed by the ranking engine.
type Preferences struct {
	ID             string                   `json:"id" gorm:"primaryKey"`
	UserID         string                   `json:"user_id" gorm:"uniqueIndex;not null"`
	VIPSenders     triagedomain.StringArray `json:"vip_senders" gorm:"type:text"`
	UrgentKeywords triagedomain.StringArray `json:"urgent_keywords" gorm:"type:text"`
	CreatedAt      time.Time                `json:"created_at"`
	UpdatedAt      time.Time                `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Preferences) TableName() string {
	return "user_preferences"
}
