package llm

import (
	"context"

	"mailpilot-backend/pkg/log"
)

// FallbackClient routes calls across providers:
// - Completions: Gemini first (better quality), fallback to Ollama on
//   quota exhaustion or connection failure.
// - Embeddings: Gemini first for dimensional consistency, Ollama only when
//   Gemini is unreachable.
type FallbackClient struct {
	primary   Client
	secondary Client
}

func NewFallbackClient(primary, secondary Client) *FallbackClient {
	return &FallbackClient{primary: primary, secondary: secondary}
}

func (f *FallbackClient) Complete(ctx context.Context, req Request) (string, error) {
	logger := log.FromCtx(ctx)

	if f.primary != nil {
		result, err := f.primary.Complete(ctx, req)
		if err == nil {
			return result, nil
		}
		if isQuotaError(err) {
			logger.Warn().Err(err).Msg("primary provider quota exhausted, falling back")
		} else {
			logger.Warn().Err(err).Msg("primary provider failed, falling back")
		}
	}

	if f.secondary != nil {
		result, err := f.secondary.Complete(ctx, req)
		if err == nil {
			return result, nil
		}
		// A connection failure on the local provider may be transient while
		// the primary only hit a rate limit; give the primary one more shot.
		if isConnectionError(err) && f.primary != nil {
			logger.Warn().Err(err).Msg("fallback provider unreachable, retrying primary")
			return f.primary.Complete(ctx, req)
		}
		return "", err
	}

	return "", ErrUnavailable
}

func (f *FallbackClient) Embed(ctx context.Context, text string) ([]float64, error) {
	logger := log.FromCtx(ctx)

	if f.primary != nil {
		vector, err := f.primary.Embed(ctx, text)
		if err == nil {
			return vector, nil
		}
		logger.Warn().Err(err).Msg("primary embedding failed, falling back")
	}

	if f.secondary != nil {
		return f.secondary.Embed(ctx, text)
	}

	return nil, ErrUnavailable
}
