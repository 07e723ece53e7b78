package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	prefsrepo "mailpilot-backend/internal/prefs/repository"
	"mailpilot-backend/internal/triage/analyze"
	"mailpilot-backend/internal/triage/cache"
	"mailpilot-backend/internal/triage/domain"
	"mailpilot-backend/internal/triage/ranking"
	"mailpilot-backend/internal/triage/repository"
	"mailpilot-backend/internal/triage/retrieval"
	"mailpilot-backend/internal/triage/review"
	"mailpilot-backend/internal/triage/suggest"
	"mailpilot-backend/pkg/config"
	"mailpilot-backend/pkg/llm"
	"mailpilot-backend/pkg/log"
)

const classifySystemPrompt = `Classify the user's mailbox request as one of: search, reply, process.
"search" looks for specific emails or information. "reply" wants help answering an email.
"process" is a general triage sweep. Respond with JSON: {"kind": "search" | "reply" | "process"}`

type triageUsecase struct {
	cfg *config.Config

	mailboxes MailboxFactory
	client    llm.Client

	embeddings *cache.EmbeddingCache

	messageRepo    repository.MessageRepository
	analysisRepo   repository.AnalysisRepository
	suggestionRepo repository.SuggestionRepository
	runRepo        repository.RunRepository
	prefsRepo      prefsrepo.PreferencesRepository
}

func NewTriageUsecase(
	cfg *config.Config,
	mailboxes MailboxFactory,
	client llm.Client,
	embeddings *cache.EmbeddingCache,
	messageRepo repository.MessageRepository,
	analysisRepo repository.AnalysisRepository,
	suggestionRepo repository.SuggestionRepository,
	runRepo repository.RunRepository,
	prefsRepo prefsrepo.PreferencesRepository,
) TriageUsecase {
	return &triageUsecase{
		cfg:            cfg,
		mailboxes:      mailboxes,
		client:         client,
		embeddings:     embeddings,
		messageRepo:    messageRepo,
		analysisRepo:   analysisRepo,
		suggestionRepo: suggestionRepo,
		runRepo:        runRepo,
		prefsRepo:      prefsRepo,
	}
}

// Run executes the whole pipeline for one user: retrieve, score, rank,
// deduplicate, review, analyze, suggest. Per-message failures degrade the
// output; only a mailbox that cannot be reached at all fails the run.
func (u *triageUsecase) Run(ctx context.Context, input RunInput) (*RunResult, error) {
	logger := log.FromCtx(ctx)
	started := time.Now()

	kind := u.classifyIntent(ctx, input.Intent)

	run := &domain.Run{
		ID:         uuid.New().String(),
		UserID:     input.UserID,
		Intent:     input.Intent,
		IntentKind: kind,
		Status:     domain.RunStarted,
		StartedAt:  started,
	}
	if err := u.runRepo.Create(run); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}

	mailbox := u.mailboxes.ForUser(input.UserID, input.AccessToken, input.RefreshToken, input.OnTokenRefresh)

	firstRun := false
	lastRun, err := u.runRepo.LastCompleted(input.UserID)
	if err != nil {
		logger.Warn().Err(err).Msg("last-run lookup failed, assuming prior runs exist")
	} else {
		firstRun = lastRun == nil
	}

	// Cached vectors are only trustworthy for the intent they were computed
	// under; a changed intent drops them so ranking recomputes.
	if lastRun != nil && input.Intent != lastRun.Intent {
		logger.Info().Str("previous_intent", lastRun.Intent).Msg("intent changed, invalidating cached embeddings")
		u.embeddings.Invalidate(ctx, input.UserID)
	}

	active := strings.TrimSpace(input.Intent) != ""
	cascade := retrieval.NewCascade(mailbox, u.client, u.cfg.GeminiModel)
	messages, queries, err := cascade.Run(ctx, retrieval.Options{
		Intent:     input.Intent,
		MustHave:   input.MustHave,
		NiceToHave: input.NiceToHave,
		FirstRun:   firstRun,
		FullScan:   input.FullScan,
		Active:     active,
	})
	run.Queries = queries
	if err != nil {
		if markErr := u.runRepo.MarkFailed(run.ID, err); markErr != nil {
			logger.Error().Err(markErr).Str("run_id", run.ID).Msg("failed to persist run failure")
		}
		return nil, fmt.Errorf("mailbox retrieval: %w", err)
	}

	u.persistMessages(ctx, input.UserID, messages)

	prefs, err := u.prefsRepo.Get(input.UserID)
	if err != nil {
		logger.Warn().Err(err).Msg("preferences unavailable, scoring without them")
	}

	limit := u.cfg.PassiveBudget
	if active && input.Limit > 0 {
		limit = input.Limit
	}

	scorer := ranking.NewScorer(prefs, input.Signals)
	scored := scorer.ScoreAll(messages, input.Intent)

	ranker := ranking.NewRanker(u.client, u.embeddings)
	ranked := ranker.Rank(ctx, input.UserID, scored, input.Intent, input.ForceRefresh, limit)

	deduped := ranking.DeduplicateThreads(ranked)

	loop := review.NewLoop(u.client, u.cfg.GeminiModel, u.cfg.MaxReviewAttempts)
	outcome := loop.Run(ctx, input.Intent, deduped, limit)

	analyzer := analyze.NewAnalyzer(u.client, u.cfg.GeminiModel)
	analyses := analyzer.AnalyzeAll(ctx, input.UserID, run.ID, input.Intent, outcome.Proposed)
	u.persistAnalyses(ctx, analyses)

	suggestions := suggest.Synthesize(input.UserID, run.ID, kind, analyses)
	u.persistSuggestions(ctx, suggestions)

	now := time.Now()
	run.Status = domain.RunCompleted
	run.ReviewOutcome = string(outcome.State)
	run.Attempts = outcome.Attempts
	run.CompletedAt = &now
	if err := u.runRepo.Update(run); err != nil {
		logger.Error().Err(err).Str("run_id", run.ID).Msg("failed to persist run completion")
	}

	logger.Info().
		Str("run_id", run.ID).
		Str("intent_kind", string(kind)).
		Int("retrieved", len(messages)).
		Int("prioritized", len(outcome.Proposed)).
		Int("suggestions", len(suggestions)).
		Dur("elapsed", time.Since(started)).
		Msg("triage run completed")

	return &RunResult{
		RunID:         run.ID,
		IntentKind:    kind,
		Queries:       queries,
		ReviewOutcome: string(outcome.State),
		Attempts:      outcome.Attempts,
		Prioritized:   outcome.Proposed,
		Analyses:      analyses,
		Suggestions:   suggestions,
	}, nil
}

func (u *triageUsecase) GetRun(ctx context.Context, userID, runID string) (*domain.Run, error) {
	return u.runRepo.GetByID(userID, runID)
}

func (u *triageUsecase) GetAnalyses(ctx context.Context, userID, runID string) ([]*domain.Analysis, error) {
	return u.analysisRepo.GetByRun(userID, runID)
}

func (u *triageUsecase) GetSuggestions(ctx context.Context, userID, runID string) ([]*domain.Suggestion, error) {
	return u.suggestionRepo.GetByRun(userID, runID)
}

// classifyIntent maps the free-text intent to search/reply/process. The
// model is asked first; keyword rules cover the unavailable case.
func (u *triageUsecase) classifyIntent(ctx context.Context, intent string) domain.IntentKind {
	trimmed := strings.TrimSpace(intent)
	if trimmed == "" {
		return domain.IntentProcess
	}

	out, err := u.client.Complete(ctx, llm.Request{
		System:   classifySystemPrompt,
		Prompt:   trimmed,
		Model:    u.cfg.GeminiModel,
		JSONMode: true,
	})
	if err == nil {
		switch gjson.Get(out, "kind").String() {
		case "search":
			return domain.IntentSearch
		case "reply":
			return domain.IntentReply
		case "process":
			return domain.IntentProcess
		}
	} else {
		log.FromCtx(ctx).Warn().Err(err).Msg("intent classification unavailable, using keyword rules")
	}

	return keywordIntentKind(trimmed)
}

func keywordIntentKind(intent string) domain.IntentKind {
	lower := strings.ToLower(intent)
	for _, kw := range []string{"reply", "respond", "answer", "draft", "write back"} {
		if strings.Contains(lower, kw) {
			return domain.IntentReply
		}
	}
	for _, kw := range []string{"find", "search", "look for", "show me", "when", "what", "where", "who"} {
		if strings.Contains(lower, kw) {
			return domain.IntentSearch
		}
	}
	return domain.IntentProcess
}

func (u *triageUsecase) persistMessages(ctx context.Context, userID string, messages []domain.Message) {
	if len(messages) == 0 {
		return
	}
	batch := make([]*domain.Message, 0, len(messages))
	for i := range messages {
		messages[i].UserID = userID
		batch = append(batch, &messages[i])
	}
	if err := u.messageRepo.UpsertBatch(batch); err != nil {
		log.FromCtx(ctx).Warn().Err(err).Int("count", len(batch)).Msg("message persistence failed")
	}
}

func (u *triageUsecase) persistAnalyses(ctx context.Context, analyses []domain.Analysis) {
	for i := range analyses {
		if err := u.analysisRepo.Upsert(&analyses[i]); err != nil {
			log.FromCtx(ctx).Warn().Err(err).Str("message_id", analyses[i].MessageID).Msg("analysis persistence failed")
		}
	}
}

func (u *triageUsecase) persistSuggestions(ctx context.Context, suggestions []domain.Suggestion) {
	if len(suggestions) == 0 {
		return
	}
	batch := make([]*domain.Suggestion, 0, len(suggestions))
	for i := range suggestions {
		batch = append(batch, &suggestions[i])
	}
	if err := u.suggestionRepo.SaveBatch(batch); err != nil {
		log.FromCtx(ctx).Warn().Err(err).Int("count", len(batch)).Msg("suggestion persistence failed")
	}
}
