package cache

import (
	"context"

	"mailpilot-backend/pkg/llm"
)

// CachingClient wraps an llm.Client and serves repeated completions from the
// response cache. Embeddings go through untouched; they have their own cache.
type CachingClient struct {
	inner     llm.Client
	responses *ResponseCache
}

func NewCachingClient(inner llm.Client, responses *ResponseCache) *CachingClient {
	return &CachingClient{inner: inner, responses: responses}
}

func (c *CachingClient) Complete(ctx context.Context, req llm.Request) (string, error) {
	key := Key(req.Model, req.System, req.Prompt)
	if value, ok := c.responses.Get(key); ok {
		return value, nil
	}

	value, err := c.inner.Complete(ctx, req)
	if err != nil {
		return "", err
	}
	c.responses.Put(key, value)
	return value, nil
}

func (c *CachingClient) Embed(ctx context.Context, text string) ([]float64, error) {
	return c.inner.Embed(ctx, text)
}
