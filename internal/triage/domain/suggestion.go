package domain

import "time"

// SuggestionType classifies a suggestion for the consuming UI.
type SuggestionType string

const (
	SuggestionTask  SuggestionType = "task"
	SuggestionReply SuggestionType = "reply"
	SuggestionInfo  SuggestionType = "info"
)

// Suggestion is an actionable recommendation derived from Analyses. Never
// mutated after creation, only superseded by a later run.
type Suggestion struct {
	ID        string         `json:"id" gorm:"primaryKey"`
	UserID    string         `json:"user_id" gorm:"index;not null"`
	RunID     string         `json:"run_id" gorm:"index"`
	Type      SuggestionType `json:"type"`
	Title     string         `json:"title"`
	Details   string         `json:"details" gorm:"type:text"`
	MessageID string         `json:"message_id,omitempty" gorm:"index"`
	Priority  string         `json:"priority"`
	CreatedAt time.Time      `json:"created_at"`
}

// TableName specifies the table name for GORM
func (Suggestion) TableName() string {
	return "suggestions"
}
