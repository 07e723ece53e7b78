package usecase

import (
	"context"

	"golang.org/x/oauth2"

	"mailpilot-backend/internal/triage/domain"
)

// MailboxFactory builds a per-user mailbox capability from stored OAuth
// credentials. onRefresh fires when the token source rotates the token so
// the caller can persist the new one.
type MailboxFactory interface {
	ForUser(userID, accessToken, refreshToken string, onRefresh func(*oauth2.Token) error) domain.Mailbox
}

// RunInput is everything one pipeline execution needs from the caller.
type RunInput struct {
	UserID string

	// Intent is the free-text goal. Empty for passive background runs.
	Intent     string
	MustHave   []string
	NiceToHave []string

	// Limit caps the ranked output for active searches. Zero means the
	// passive budget applies.
	Limit int

	// FullScan lifts the first-run time window. ForceRefresh recomputes
	// embeddings instead of trusting the caches.
	FullScan     bool
	ForceRefresh bool

	// Signals is optional prior context (user goals, sender engagement).
	Signals *domain.Signals

	AccessToken    string
	RefreshToken   string
	OnTokenRefresh func(*oauth2.Token) error
}

// RunResult is the produced surface: ranked messages, analyses, suggestions,
// and enough provenance for the caller to render everything without
// re-deriving it.
type RunResult struct {
	RunID         string                 `json:"run_id"`
	IntentKind    domain.IntentKind      `json:"intent_kind"`
	Queries       []string               `json:"queries"`
	ReviewOutcome string                 `json:"review_outcome"`
	Attempts      int                    `json:"attempts"`
	Prioritized   []domain.ScoredMessage `json:"prioritized"`
	Analyses      []domain.Analysis      `json:"analyses"`
	Suggestions   []domain.Suggestion    `json:"suggestions"`
}

// TriageUsecase drives the full retrieval-to-suggestion pipeline and exposes
// the stored results of past runs.
type TriageUsecase interface {
	Run(ctx context.Context, input RunInput) (*RunResult, error)
	GetRun(ctx context.Context, userID, runID string) (*domain.Run, error)
	GetAnalyses(ctx context.Context, userID, runID string) ([]*domain.Analysis, error)
	GetSuggestions(ctx context.Context, userID, runID string) ([]*domain.Suggestion, error)
}
