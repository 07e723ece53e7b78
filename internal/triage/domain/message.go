package domain

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// StringArray is a custom type to handle JSON arrays in GORM text columns
type StringArray []string

// Value implements driver.Valuer
func (a StringArray) Value() (driver.Value, error) {
	if len(a) == 0 {
		return "[]", nil
	}
	return json.Marshal(a)
}

// Scan implements sql.Scanner
func (a *StringArray) Scan(value interface{}) error {
	if value == nil {
		*a = []string{}
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return nil
	}
	if len(bytes) == 0 {
		*a = []string{}
		return nil
	}
	return json.Unmarshal(bytes, a)
}

// MessageStub is the lightweight search result returned by the mailbox
// provider before the full message is fetched.
type MessageStub struct {
	ID       string `json:"id"`
	ThreadID string `json:"thread_id"`
}

// Message is a mailbox message, immutable once fetched. The provider-assigned
// ID is the only stable identity; every derived structure keys off it or off
// the thread ID.
type Message struct {
	ID         string      `json:"id" gorm:"primaryKey"`
	UserID     string      `json:"user_id" gorm:"index;not null"`
	ThreadID   string      `json:"thread_id" gorm:"index"`
	From       string      `json:"from"`
	FromName   string      `json:"from_name"`
	Subject    string      `json:"subject"`
	Snippet    string      `json:"snippet" gorm:"type:text"`
	Body       string      `json:"body" gorm:"type:text"`
	ReceivedAt time.Time   `json:"received_at" gorm:"index"`
	Labels     StringArray `json:"labels" gorm:"type:text"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Message) TableName() string {
	return "messages"
}

// HasLabel reports whether the message carries the given provider label.
func (m *Message) HasLabel(label string) bool {
	for _, l := range m.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// Tier is the coarse priority bucket derived from a numeric score.
type Tier string

const (
	TierHigh   Tier = "high"
	TierMedium Tier = "medium"
	TierLow    Tier = "low"
)

// Weight maps a tier to the base weight used in the combined-score pass.
func (t Tier) Weight() float64 {
	switch t {
	case TierHigh:
		return 3
	case TierMedium:
		return 2
	default:
		return 1
	}
}

// ScoredMessage is a Message plus its relevance score and priority tier.
// The score is derived and recomputable, never persisted as ground truth.
type ScoredMessage struct {
	Message  *Message `json:"message"`
	Score    float64  `json:"score"`
	Tier     Tier     `json:"tier"`
	Combined float64  `json:"combined_score,omitempty"`
}
