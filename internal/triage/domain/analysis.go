package domain

import "time"

// Action is a single actionable item extracted from a message.
type Action struct {
	Description string     `json:"description"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Priority    string     `json:"priority,omitempty"`
}

// ItineraryLeg is a travel segment extracted from booking/confirmation
// emails. Present only when the message carries structured travel facts.
type ItineraryLeg struct {
	Carrier   string `json:"carrier,omitempty"`
	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`
	Departure string `json:"departure,omitempty"`
	Arrival   string `json:"arrival,omitempty"`
	Reference string `json:"reference,omitempty"`
}

// Analysis is the per-message derived object produced by the deep analysis
// step. Created once per message per run; a later run's Analysis for the
// same message supersedes it.
type Analysis struct {
	ID         string         `json:"id" gorm:"primaryKey"`
	UserID     string         `json:"user_id" gorm:"uniqueIndex:idx_analysis_user_msg;not null"`
	MessageID  string         `json:"message_id" gorm:"uniqueIndex:idx_analysis_user_msg;not null"`
	RunID      string         `json:"run_id" gorm:"index"`
	Summary    string         `json:"summary" gorm:"type:text"`
	Answer     string         `json:"answer,omitempty" gorm:"type:text"`
	Actions    []Action       `json:"actions" gorm:"serializer:json;type:text"`
	Entities   StringArray    `json:"entities" gorm:"type:text"`
	Relevance  float64        `json:"relevance"`
	Urgent     bool           `json:"urgent"`
	Itinerary  []ItineraryLeg `json:"itinerary,omitempty" gorm:"serializer:json;type:text"`
	ReplyDraft string         `json:"reply_draft,omitempty" gorm:"type:text"`
	CreatedAt  time.Time      `json:"created_at"`
}

// TableName specifies the table name for GORM
func (Analysis) TableName() string {
	return "analyses"
}
