package domain

import "context"

// Mailbox is the mailbox search/fetch capability consumed by the pipeline.
// Query expression syntax is provider-specific and opaque here; the pipeline
// only composes expressions.
type Mailbox interface {
	Search(ctx context.Context, query string, maxResults int64) ([]MessageStub, error)
	Fetch(ctx context.Context, id string) (*Message, error)
}

// Goal is a prior context signal: something the user is known to care about,
// with a confidence weight attached.
type Goal struct {
	Name       string   `json:"name"`
	Keywords   []string `json:"keywords"`
	Confidence float64  `json:"confidence"`
}

// Signals carries optional prior context consumed by the scorer.
type Signals struct {
	Goals []Goal `json:"goals,omitempty"`
	// ReplyRate maps a sender address to the fraction of their messages the
	// user has replied to.
	ReplyRate map[string]float64 `json:"reply_rate,omitempty"`
}
