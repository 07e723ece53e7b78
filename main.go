package main

import (
	"context"
	"os"

	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"

	api "mailpilot-backend/cmd/api"
	prefsdomain "mailpilot-backend/internal/prefs/domain"
	prefsRepo "mailpilot-backend/internal/prefs/repository"
	prefsUsecase "mailpilot-backend/internal/prefs/usecase"
	"mailpilot-backend/internal/triage/cache"
	triagedomain "mailpilot-backend/internal/triage/domain"
	triageRepo "mailpilot-backend/internal/triage/repository"
	triageUsecase "mailpilot-backend/internal/triage/usecase"
	"mailpilot-backend/pkg/config"
	"mailpilot-backend/pkg/database"
	"mailpilot-backend/pkg/gmail"
	"mailpilot-backend/pkg/llm"
	"mailpilot-backend/pkg/log"
	"mailpilot-backend/pkg/retry"
)

// gmailMailboxFactory adapts the Gmail service to the mailbox factory the
// pipeline consumes.
type gmailMailboxFactory struct {
	svc *gmail.Service
}

func (f gmailMailboxFactory) ForUser(userID, accessToken, refreshToken string, onRefresh func(*oauth2.Token) error) triagedomain.Mailbox {
	return f.svc.ForUser(userID, accessToken, refreshToken, gmail.TokenUpdateFunc(onRefresh))
}

func main() {
	cfg := config.Load()
	ctx := log.Setup(context.Background(), os.Getenv("DEBUG") != "")
	logger := log.FromCtx(ctx)

	db, err := database.NewPostgresConnection(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	if err := db.AutoMigrate(
		&triagedomain.Message{},
		&triagedomain.Analysis{},
		&triagedomain.Suggestion{},
		&triagedomain.Run{},
		&triagedomain.Embedding{},
		&prefsdomain.Preferences{},
	); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	// Repositories
	messageRepo := triageRepo.NewMessageRepository(db)
	analysisRepo := triageRepo.NewAnalysisRepository(db)
	suggestionRepo := triageRepo.NewSuggestionRepository(db)
	runRepo := triageRepo.NewRunRepository(db)
	embeddingRepo := triageRepo.NewEmbeddingRepository(db)
	preferencesRepo := prefsRepo.NewPreferencesRepository(db)

	// Capabilities
	policy := retry.DefaultPolicy(cfg.CapabilityTimeout)
	gmailService := gmail.NewService(cfg.GoogleClientID, cfg.GoogleClientSecret, policy)

	responses := cache.NewResponseCache(cfg.ResponseCacheTTL, cfg.ResponseCacheCap)
	client := cache.NewCachingClient(llm.NewClient(cfg), responses)
	embeddings := cache.NewEmbeddingCache(embeddingRepo)

	// Use cases
	triage := triageUsecase.NewTriageUsecase(
		cfg,
		gmailMailboxFactory{svc: gmailService},
		client,
		embeddings,
		messageRepo,
		analysisRepo,
		suggestionRepo,
		runRepo,
		preferencesRepo,
	)
	prefs := prefsUsecase.NewPreferencesUsecase(preferencesRepo)

	r := gin.Default()
	api.SetupRoutes(r, triage, prefs)

	logger.Info().Str("port", cfg.Port).Msg("server starting")
	if err := r.Run(":" + cfg.Port); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}
