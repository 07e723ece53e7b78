package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailpilot-backend/pkg/llm"
)

type countingClient struct {
	completions int
	err         error
}

func (c *countingClient) Complete(ctx context.Context, req llm.Request) (string, error) {
	c.completions++
	if c.err != nil {
		return "", c.err
	}
	return "completion", nil
}

func (c *countingClient) Embed(ctx context.Context, text string) ([]float64, error) {
	return []float64{1}, nil
}

func TestCachingClientServesRepeatsFromCache(t *testing.T) {
	inner := &countingClient{}
	client := NewCachingClient(inner, NewResponseCache(time.Hour, 10))
	req := llm.Request{Model: "m", System: "s", Prompt: "p"}

	first, err := client.Complete(context.Background(), req)
	require.NoError(t, err)
	second, err := client.Complete(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.completions)

	// A different prompt misses.
	_, err = client.Complete(context.Background(), llm.Request{Model: "m", System: "s", Prompt: "other"})
	require.NoError(t, err)
	assert.Equal(t, 2, inner.completions)
}

func TestCachingClientDoesNotCacheFailures(t *testing.T) {
	inner := &countingClient{err: errors.New("down")}
	client := NewCachingClient(inner, NewResponseCache(time.Hour, 10))
	req := llm.Request{Model: "m", System: "s", Prompt: "p"}

	_, err := client.Complete(context.Background(), req)
	require.Error(t, err)

	inner.err = nil
	out, err := client.Complete(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "completion", out)
	assert.Equal(t, 2, inner.completions)
}
