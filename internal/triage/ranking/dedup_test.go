package ranking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailpilot-backend/internal/triage/domain"
)

func TestDeduplicateKeepsMostRecentPerThread(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	scored := []domain.ScoredMessage{
		// Higher-ranked but older message in the thread.
		{Message: &domain.Message{ID: "t1-old", ThreadID: "t1", ReceivedAt: now.Add(-2 * time.Hour)}, Score: 9},
		{Message: &domain.Message{ID: "solo", ReceivedAt: now.Add(-1 * time.Hour)}, Score: 5},
		// Lower-ranked but more recent; this one must survive.
		{Message: &domain.Message{ID: "t1-new", ThreadID: "t1", ReceivedAt: now}, Score: 1},
	}

	out := DeduplicateThreads(scored)

	require.Len(t, out, 2)
	assert.Equal(t, "t1-new", out[0].Message.ID)
	assert.Equal(t, "solo", out[1].Message.ID)
}

func TestDeduplicateIdempotent(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	scored := []domain.ScoredMessage{
		{Message: &domain.Message{ID: "a1", ThreadID: "a", ReceivedAt: now}, Score: 3},
		{Message: &domain.Message{ID: "b1", ThreadID: "b", ReceivedAt: now.Add(-1 * time.Hour)}, Score: 2},
		{Message: &domain.Message{ID: "a2", ThreadID: "a", ReceivedAt: now.Add(-2 * time.Hour)}, Score: 1},
		{Message: &domain.Message{ID: "solo", ReceivedAt: now}, Score: 1},
	}

	once := DeduplicateThreads(scored)
	twice := DeduplicateThreads(once)

	assert.Equal(t, once, twice)
}

func TestDeduplicateTieKeepsFirstRanked(t *testing.T) {
	at := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	scored := []domain.ScoredMessage{
		{Message: &domain.Message{ID: "first", ThreadID: "t", ReceivedAt: at}, Score: 9},
		{Message: &domain.Message{ID: "second", ThreadID: "t", ReceivedAt: at}, Score: 1},
	}

	out := DeduplicateThreads(scored)
	require.Len(t, out, 1)
	assert.Equal(t, "first", out[0].Message.ID)
}

func TestDeduplicatePassesThroughMissingThreadID(t *testing.T) {
	at := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	scored := []domain.ScoredMessage{
		{Message: &domain.Message{ID: "a", ReceivedAt: at}},
		{Message: &domain.Message{ID: "b", ReceivedAt: at}},
	}

	out := DeduplicateThreads(scored)
	assert.Len(t, out, 2)
}
