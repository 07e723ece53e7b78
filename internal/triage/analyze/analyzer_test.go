package analyze

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailpilot-backend/internal/triage/domain"
	"mailpilot-backend/pkg/llm"
)

type analysisClient struct {
	failOn string
	calls  int
}

func (c *analysisClient) Complete(ctx context.Context, req llm.Request) (string, error) {
	c.calls++
	if c.failOn != "" && strings.Contains(req.Prompt, c.failOn) {
		return "", errors.New("capability timeout")
	}
	return `{"summary": "analyzed", "urgent": false}`, nil
}

func (c *analysisClient) Embed(ctx context.Context, text string) ([]float64, error) {
	return nil, errors.New("not used")
}

func TestAnalyzeAllIsolatesPerMessageFailure(t *testing.T) {
	client := &analysisClient{failOn: "poison"}
	analyzer := NewAnalyzer(client, "m")

	proposal := []domain.ScoredMessage{
		{Message: &domain.Message{ID: "good-1", Subject: "quarterly numbers"}},
		{Message: &domain.Message{ID: "bad", Subject: "poison subject"}},
		{Message: &domain.Message{ID: "good-2", Subject: "team offsite"}},
	}

	analyses := analyzer.AnalyzeAll(context.Background(), "u1", "r1", "status", proposal)

	require.Len(t, analyses, 2)
	assert.Equal(t, "good-1", analyses[0].MessageID)
	assert.Equal(t, "good-2", analyses[1].MessageID)
	assert.Equal(t, 3, client.calls)

	for _, a := range analyses {
		assert.NotEmpty(t, a.ID)
		assert.Equal(t, "u1", a.UserID)
		assert.Equal(t, "r1", a.RunID)
		assert.Equal(t, "analyzed", a.Summary)
	}
}

func TestAnalyzeAllEmptyProposal(t *testing.T) {
	analyzer := NewAnalyzer(&analysisClient{}, "m")
	analyses := analyzer.AnalyzeAll(context.Background(), "u1", "r1", "", nil)
	assert.Empty(t, analyses)
}
