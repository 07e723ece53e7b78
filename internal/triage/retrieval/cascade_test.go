package retrieval

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailpilot-backend/internal/triage/domain"
	"mailpilot-backend/pkg/llm"
)

// fakeMailbox routes queries to canned results by substring.
type fakeMailbox struct {
	mu       sync.Mutex
	routes   []route
	fetched  map[string]*domain.Message
	searched []string
}

type route struct {
	contains string
	stubs    []domain.MessageStub
	err      error
}

func (m *fakeMailbox) Search(ctx context.Context, query string, maxResults int64) ([]domain.MessageStub, error) {
	m.mu.Lock()
	m.searched = append(m.searched, query)
	m.mu.Unlock()

	for _, r := range m.routes {
		if strings.Contains(query, r.contains) {
			return r.stubs, r.err
		}
	}
	return nil, nil
}

func (m *fakeMailbox) Fetch(ctx context.Context, id string) (*domain.Message, error) {
	if msg, ok := m.fetched[id]; ok {
		return msg, nil
	}
	return nil, errors.New("not found")
}

func stubs(ids ...string) []domain.MessageStub {
	out := make([]domain.MessageStub, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.MessageStub{ID: id})
	}
	return out
}

func messagesAt(at time.Time, ids ...string) map[string]*domain.Message {
	out := make(map[string]*domain.Message, len(ids))
	for _, id := range ids {
		out[id] = &domain.Message{ID: id, ReceivedAt: at}
	}
	return out
}

func TestCascadeUnionSurvivesBranchFailure(t *testing.T) {
	// The refined branch fails outright; legacy and sweep each contribute
	// two distinct ids. The union holds all four, legacy before sweep.
	at := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	mailbox := &fakeMailbox{
		routes: []route{
			{contains: "from:billing", err: errors.New("auth expired")},
			{contains: "invoice AND overdue", stubs: stubs("l1", "l2")},
			{contains: " OR ", stubs: stubs("s1", "s2")},
		},
		fetched: messagesAt(at, "l1", "l2", "s1", "s2"),
	}

	c := NewCascade(mailbox, &scriptedClient{completion: "from:billing overdue"}, "m")
	messages, queries, err := c.Run(context.Background(), Options{
		Intent:   "overdue vendor invoices",
		MustHave: []string{"invoice", "overdue"},
		Active:   true,
	})

	require.NoError(t, err)
	assert.Len(t, queries, 3)

	var ids []string
	for _, msg := range messages {
		ids = append(ids, msg.ID)
	}
	assert.Equal(t, []string{"l1", "l2", "s1", "s2"}, ids)
}

// slowClient delays completions so the refined derivation finishes after
// the branches that need no model call.
type slowClient struct {
	scriptedClient
	delay time.Duration
}

func (c *slowClient) Complete(ctx context.Context, req llm.Request) (string, error) {
	time.Sleep(c.delay)
	return c.scriptedClient.Complete(ctx, req)
}

func TestBuildQueriesPriorityOrderWithSlowRefinement(t *testing.T) {
	client := &slowClient{
		scriptedClient: scriptedClient{completion: "from:billing overdue"},
		delay:          20 * time.Millisecond,
	}
	c := NewCascade(&fakeMailbox{}, client, "m")

	queries := c.buildQueries(context.Background(), Options{
		Intent:   "overdue vendor invoices",
		MustHave: []string{"invoice", "overdue"},
		Active:   true,
	})

	// Branches derive in parallel but land in fixed slots, so the refined
	// query stays first even when it resolves last.
	require.Len(t, queries, 3)
	assert.Equal(t, "from:billing overdue", queries[0])
	assert.Equal(t, "invoice AND overdue", queries[1])
	assert.Contains(t, queries[2], " OR ")
}

func TestUnionStubsDeterministicByBranchPriority(t *testing.T) {
	branches := [][]domain.MessageStub{
		stubs("a", "b"),
		stubs("b", "c"),
		stubs("c", "d", "a"),
	}

	first := unionStubs(branches)
	second := unionStubs(branches)

	var ids []string
	for _, s := range first {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids)
	assert.Equal(t, first, second)
}

func TestCascadeFailsafeOnEmptyUnion(t *testing.T) {
	// Every token of the intent is a stop word, so no branch produces a
	// query and the raw-token failsafe is the only thing that can match.
	at := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	mailbox := &fakeMailbox{
		routes: []route{
			{contains: "find OR the OR mail", stubs: stubs("f1")},
		},
		fetched: messagesAt(at, "f1"),
	}

	c := NewCascade(mailbox, &scriptedClient{err: errors.New("model down")}, "m")
	messages, queries, err := c.Run(context.Background(), Options{
		Intent: "find the mail",
		Active: true,
	})

	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "f1", messages[0].ID)
	// The failsafe query is recorded in provenance.
	assert.Equal(t, "find OR the OR mail", queries[len(queries)-1])
}

func TestCascadeAllBranchesFailingIsFatal(t *testing.T) {
	mailbox := &fakeMailbox{
		routes: []route{
			{contains: "", err: errors.New("mailbox unreachable")},
		},
	}

	c := NewCascade(mailbox, &scriptedClient{err: errors.New("model down")}, "m")
	_, _, err := c.Run(context.Background(), Options{Intent: "anything important", Active: true})
	assert.Error(t, err)
}

func TestCascadeSortsByReceivedDescending(t *testing.T) {
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	mailbox := &fakeMailbox{
		routes: []route{
			{contains: " OR ", stubs: stubs("old", "new", "mid")},
		},
		fetched: map[string]*domain.Message{
			"old": {ID: "old", ReceivedAt: base.Add(-3 * time.Hour)},
			"new": {ID: "new", ReceivedAt: base},
			"mid": {ID: "mid", ReceivedAt: base.Add(-1 * time.Hour)},
		},
	}

	c := NewCascade(mailbox, &scriptedClient{err: errors.New("model down")}, "m")
	messages, _, err := c.Run(context.Background(), Options{
		Intent: "quarterly planning review",
		Active: true,
	})

	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Equal(t, "new", messages[0].ID)
	assert.Equal(t, "mid", messages[1].ID)
	assert.Equal(t, "old", messages[2].ID)
}

func TestCascadeFirstRunWindowsPassiveQueries(t *testing.T) {
	mailbox := &fakeMailbox{
		routes: []route{
			{contains: "newer_than:7d", stubs: stubs("r1")},
		},
		fetched: messagesAt(time.Now(), "r1"),
	}

	c := NewCascade(mailbox, &scriptedClient{err: errors.New("model down")}, "m")
	_, queries, err := c.Run(context.Background(), Options{FirstRun: true})

	require.NoError(t, err)
	require.NotEmpty(t, queries)
	for _, q := range queries {
		assert.Contains(t, q, "newer_than:7d")
	}
}
