package domain

import "time"

// RunStatus tracks the lifecycle of one pipeline run.
type RunStatus string

const (
	RunStarted   RunStatus = "started"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// IntentKind classifies what the user is trying to do in this run.
type IntentKind string

const (
	IntentSearch  IntentKind = "search"
	IntentReply   IntentKind = "reply"
	IntentProcess IntentKind = "process"
)

// Run is the persisted record of one pipeline execution, including the
// provenance a caller needs to render results without re-deriving them.
type Run struct {
	ID            string      `json:"id" gorm:"primaryKey"`
	UserID        string      `json:"user_id" gorm:"index;not null"`
	Intent        string      `json:"intent" gorm:"type:text"`
	IntentKind    IntentKind  `json:"intent_kind"`
	Status        RunStatus   `json:"status" gorm:"index"`
	Error         string      `json:"error,omitempty" gorm:"type:text"`
	Queries       StringArray `json:"queries" gorm:"type:text"`
	ReviewOutcome string      `json:"review_outcome"`
	Attempts      int         `json:"attempts"`
	StartedAt     time.Time   `json:"started_at"`
	CompletedAt   *time.Time  `json:"completed_at,omitempty"`
}

// TableName specifies the table name for GORM
func (Run) TableName() string {
	return "runs"
}

// Embedding is a durably cached embedding vector for one message. Reused
// across runs unless the caller demands a refresh because the active intent
// changed.
type Embedding struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	UserID    string    `json:"user_id" gorm:"uniqueIndex:idx_embedding_user_msg;not null"`
	MessageID string    `json:"message_id" gorm:"uniqueIndex:idx_embedding_user_msg;not null"`
	Vector    []float64 `json:"vector" gorm:"serializer:json;type:text"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Embedding) TableName() string {
	return "embeddings"
}
