package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	prefsdomain "mailpilot-backend/internal/prefs/domain"
	"mailpilot-backend/internal/triage/cache"
	"mailpilot-backend/internal/triage/domain"
	"mailpilot-backend/pkg/config"
	"mailpilot-backend/pkg/llm"
)

// ---- in-memory fakes ----

type memMailbox struct {
	stubs    []domain.MessageStub
	messages map[string]*domain.Message
	err      error
}

func (m *memMailbox) Search(ctx context.Context, query string, maxResults int64) ([]domain.MessageStub, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.stubs, nil
}

func (m *memMailbox) Fetch(ctx context.Context, id string) (*domain.Message, error) {
	if msg, ok := m.messages[id]; ok {
		return msg, nil
	}
	return nil, errors.New("not found")
}

type memFactory struct{ mailbox *memMailbox }

func (f memFactory) ForUser(userID, accessToken, refreshToken string, onRefresh func(*oauth2.Token) error) domain.Mailbox {
	return f.mailbox
}

// pipelineClient answers each prompt family with a fixed, well-formed
// payload so a whole run can execute offline.
type pipelineClient struct{}

func (c *pipelineClient) Complete(ctx context.Context, req llm.Request) (string, error) {
	switch {
	case strings.Contains(req.System, "Classify"):
		return `{"kind": "search"}`, nil
	case strings.Contains(req.System, "search query"):
		return "subject:(project deadline)", nil
	case strings.Contains(req.System, "select which emails"):
		return `{"ids": ["m1", "m2", "m3"]}`, nil
	case strings.Contains(req.System, "review a prioritized"):
		return `{"verdict": "pass", "critique": ""}`, nil
	case strings.Contains(req.System, "analyze one email"):
		return `{"summary": "deadline moved to friday", "urgent": true, "relevance": 0.9,
			"actions": [{"description": "confirm new deadline", "priority": "high"}]}`, nil
	}
	return "", errors.New("unexpected prompt")
}

func (c *pipelineClient) Embed(ctx context.Context, text string) ([]float64, error) {
	return []float64{1, 0}, nil
}

type memRunRepo struct {
	runs map[string]*domain.Run
}

func (r *memRunRepo) Create(run *domain.Run) error {
	clone := *run
	r.runs[run.ID] = &clone
	return nil
}

func (r *memRunRepo) Update(run *domain.Run) error {
	clone := *run
	r.runs[run.ID] = &clone
	return nil
}

func (r *memRunRepo) GetByID(userID, runID string) (*domain.Run, error) {
	run, ok := r.runs[runID]
	if !ok || run.UserID != userID {
		return nil, nil
	}
	return run, nil
}

func (r *memRunRepo) LastCompleted(userID string) (*domain.Run, error) {
	var latest *domain.Run
	for _, run := range r.runs {
		if run.UserID != userID || run.Status != domain.RunCompleted {
			continue
		}
		if latest == nil || (run.CompletedAt != nil && latest.CompletedAt != nil && run.CompletedAt.After(*latest.CompletedAt)) {
			latest = run
		}
	}
	return latest, nil
}

func (r *memRunRepo) MarkFailed(runID string, cause error) error {
	if run, ok := r.runs[runID]; ok {
		run.Status = domain.RunFailed
		run.Error = cause.Error()
	}
	return nil
}

type memMessageRepo struct{ saved []*domain.Message }

func (r *memMessageRepo) UpsertBatch(messages []*domain.Message) error {
	r.saved = append(r.saved, messages...)
	return nil
}

func (r *memMessageRepo) GetByIDs(userID string, ids []string) ([]*domain.Message, error) {
	return nil, nil
}

type memAnalysisRepo struct{ saved []*domain.Analysis }

func (r *memAnalysisRepo) Upsert(analysis *domain.Analysis) error {
	r.saved = append(r.saved, analysis)
	return nil
}

func (r *memAnalysisRepo) GetByRun(userID, runID string) ([]*domain.Analysis, error) {
	return r.saved, nil
}

type memSuggestionRepo struct{ saved []*domain.Suggestion }

func (r *memSuggestionRepo) SaveBatch(suggestions []*domain.Suggestion) error {
	r.saved = append(r.saved, suggestions...)
	return nil
}

func (r *memSuggestionRepo) GetByRun(userID, runID string) ([]*domain.Suggestion, error) {
	return r.saved, nil
}

type memEmbeddingStore struct{ rows map[string][]float64 }

func (s *memEmbeddingStore) Get(userID, messageID string) (*domain.Embedding, error) {
	vec, ok := s.rows[userID+"/"+messageID]
	if !ok {
		return nil, nil
	}
	return &domain.Embedding{UserID: userID, MessageID: messageID, Vector: vec}, nil
}

func (s *memEmbeddingStore) Upsert(userID, messageID string, vector []float64) error {
	s.rows[userID+"/"+messageID] = vector
	return nil
}

func (s *memEmbeddingStore) DeleteForUser(userID string) error {
	for key := range s.rows {
		if strings.HasPrefix(key, userID+"/") {
			delete(s.rows, key)
		}
	}
	return nil
}

type memPrefsRepo struct{ prefs *prefsdomain.Preferences }

func (r *memPrefsRepo) Get(userID string) (*prefsdomain.Preferences, error) { return r.prefs, nil }

func (r *memPrefsRepo) Upsert(prefs *prefsdomain.Preferences) error {
	r.prefs = prefs
	return nil
}

// ---- tests ----

func testConfig() *config.Config {
	return &config.Config{
		GeminiModel:       "test-model",
		MaxReviewAttempts: 2,
		PassiveBudget:     12,
		ResponseCacheTTL:  time.Hour,
		ResponseCacheCap:  100,
	}
}

func testMailbox() *memMailbox {
	now := time.Now()
	return &memMailbox{
		stubs: []domain.MessageStub{{ID: "m1"}, {ID: "m2"}, {ID: "m3"}},
		messages: map[string]*domain.Message{
			"m1": {ID: "m1", From: "boss@example.com", Subject: "URGENT: project deadline", ReceivedAt: now.Add(-1 * time.Hour)},
			"m2": {ID: "m2", From: "peer@example.com", Subject: "project notes", ReceivedAt: now.Add(-2 * time.Hour)},
			"m3": {ID: "m3", From: "news@example.com", Subject: "weekly digest", ReceivedAt: now.Add(-3 * time.Hour)},
		},
	}
}

func newTestUsecase(mailbox *memMailbox, embeddings *cache.EmbeddingCache) (TriageUsecase, *memRunRepo, *memMessageRepo, *memSuggestionRepo) {
	runRepo := &memRunRepo{runs: make(map[string]*domain.Run)}
	messageRepo := &memMessageRepo{}
	analysisRepo := &memAnalysisRepo{}
	suggestionRepo := &memSuggestionRepo{}

	u := NewTriageUsecase(
		testConfig(),
		memFactory{mailbox: mailbox},
		&pipelineClient{},
		embeddings,
		messageRepo,
		analysisRepo,
		suggestionRepo,
		runRepo,
		&memPrefsRepo{},
	)
	return u, runRepo, messageRepo, suggestionRepo
}

func TestRunEndToEnd(t *testing.T) {
	u, runRepo, messageRepo, suggestionRepo := newTestUsecase(testMailbox(), cache.NewEmbeddingCache(nil))

	result, err := u.Run(context.Background(), RunInput{
		UserID:      "u1",
		Intent:      "what is the project deadline",
		AccessToken: "at",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.IntentSearch, result.IntentKind)
	assert.NotEmpty(t, result.Queries)
	assert.Equal(t, "pass", result.ReviewOutcome)
	assert.Equal(t, 0, result.Attempts)
	assert.Len(t, result.Prioritized, 3)
	assert.Len(t, result.Analyses, 3)
	assert.NotEmpty(t, result.Suggestions)

	// Run provenance is persisted as completed.
	run := runRepo.runs[result.RunID]
	require.NotNil(t, run)
	assert.Equal(t, domain.RunCompleted, run.Status)
	assert.NotNil(t, run.CompletedAt)
	assert.Equal(t, domain.StringArray(result.Queries), run.Queries)

	// Retrieved messages and suggestions are stored.
	assert.Len(t, messageRepo.saved, 3)
	assert.Len(t, suggestionRepo.saved, len(result.Suggestions))
	for _, msg := range messageRepo.saved {
		assert.Equal(t, "u1", msg.UserID)
	}
}

func TestRunUnreachableMailboxIsFatal(t *testing.T) {
	mailbox := testMailbox()
	mailbox.err = errors.New("mailbox unreachable")
	u, runRepo, _, _ := newTestUsecase(mailbox, cache.NewEmbeddingCache(nil))

	_, err := u.Run(context.Background(), RunInput{UserID: "u1", Intent: "anything relevant"})
	require.Error(t, err)

	// The run record carries the failure.
	require.Len(t, runRepo.runs, 1)
	for _, run := range runRepo.runs {
		assert.Equal(t, domain.RunFailed, run.Status)
		assert.Contains(t, run.Error, "mailbox unreachable")
	}
}

func TestRunIntentChangeInvalidatesEmbeddings(t *testing.T) {
	store := &memEmbeddingStore{rows: map[string][]float64{
		"u1/stale": {0.5, 0.5},
		"u2/kept":  {0.1, 0.9},
	}}
	u, runRepo, _, _ := newTestUsecase(testMailbox(), cache.NewEmbeddingCache(store))

	done := time.Now().Add(-time.Hour)
	runRepo.runs["prev"] = &domain.Run{
		ID:          "prev",
		UserID:      "u1",
		Intent:      "find my flight confirmation",
		Status:      domain.RunCompleted,
		CompletedAt: &done,
	}

	_, err := u.Run(context.Background(), RunInput{
		UserID:      "u1",
		Intent:      "what is the project deadline",
		AccessToken: "at",
	})
	require.NoError(t, err)

	// Vectors computed under the previous intent are dropped, other users'
	// vectors survive.
	_, stale := store.rows["u1/stale"]
	assert.False(t, stale)
	_, kept := store.rows["u2/kept"]
	assert.True(t, kept)
}

func TestRunSameIntentKeepsEmbeddings(t *testing.T) {
	store := &memEmbeddingStore{rows: map[string][]float64{
		"u1/warm": {0.5, 0.5},
	}}
	u, runRepo, _, _ := newTestUsecase(testMailbox(), cache.NewEmbeddingCache(store))

	done := time.Now().Add(-time.Hour)
	runRepo.runs["prev"] = &domain.Run{
		ID:          "prev",
		UserID:      "u1",
		Intent:      "what is the project deadline",
		Status:      domain.RunCompleted,
		CompletedAt: &done,
	}

	_, err := u.Run(context.Background(), RunInput{
		UserID:      "u1",
		Intent:      "what is the project deadline",
		AccessToken: "at",
	})
	require.NoError(t, err)

	_, warm := store.rows["u1/warm"]
	assert.True(t, warm)
}

func TestKeywordIntentKind(t *testing.T) {
	tests := []struct {
		intent string
		want   domain.IntentKind
	}{
		{"reply to the landlord", domain.IntentReply},
		{"draft an answer for legal", domain.IntentReply},
		{"find my flight confirmation", domain.IntentSearch},
		{"when is rent due", domain.IntentSearch},
		{"clean up my inbox", domain.IntentProcess},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, keywordIntentKind(tt.intent), tt.intent)
	}
}
