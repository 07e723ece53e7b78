package retrieval

import (
	"context"
	"sort"
	"sync"

	"mailpilot-backend/internal/triage/domain"
	"mailpilot-backend/pkg/llm"
	"mailpilot-backend/pkg/log"
)

const (
	activeResultsPerQuery  = 25
	passiveResultsPerQuery = 10

	// recentWindow bounds the first passive sweep for a user so we do not
	// trawl years of mail before any run has completed.
	recentWindow = "newer_than:7d"
)

// Options shape one cascade execution.
type Options struct {
	Intent     string
	MustHave   []string
	NiceToHave []string

	// FirstRun narrows passive sweeps to a recent window. FullScan lifts
	// the window again for explicit re-index requests.
	FirstRun bool
	FullScan bool

	// Active searches carry an explicit intent and get the larger
	// per-query result bound.
	Active bool
}

// Cascade fans one intent out into several search expressions, runs them
// concurrently, and unions the results in declared branch order.
type Cascade struct {
	mailbox domain.Mailbox
	client  llm.Client
	model   string
}

func NewCascade(mailbox domain.Mailbox, client llm.Client, model string) *Cascade {
	return &Cascade{mailbox: mailbox, client: client, model: model}
}

// Run returns fetched messages sorted by received time descending, plus the
// literal query strings used. A branch that fails is logged and contributes
// nothing; only a completely unreachable mailbox is fatal to the run.
func (c *Cascade) Run(ctx context.Context, opts Options) ([]domain.Message, []string, error) {
	queries := c.buildQueries(ctx, opts)
	if len(queries) == 0 {
		// Nothing to refine or sweep: plain recent-items query, or the
		// whole inbox when a full scan was asked for.
		if opts.FullScan {
			queries = []string{"in:inbox"}
		} else {
			queries = []string{recentWindow}
		}
	}

	limit := int64(passiveResultsPerQuery)
	if opts.Active {
		limit = activeResultsPerQuery
	}

	// Each branch writes only its own slot; union order is decided by
	// branch priority after the join, never by completion order.
	results := make([][]domain.MessageStub, len(queries))
	errs := make([]error, len(queries))

	var wg sync.WaitGroup
	for i, query := range queries {
		wg.Add(1)
		go func(slot int, q string) {
			defer wg.Done()
			stubs, err := c.mailbox.Search(ctx, q, limit)
			if err != nil {
				errs[slot] = err
				return
			}
			results[slot] = stubs
		}(i, query)
	}
	wg.Wait()

	failed := 0
	for i, err := range errs {
		if err != nil {
			failed++
			log.FromCtx(ctx).Warn().Err(err).Str("query", queries[i]).Msg("search branch failed")
		}
	}
	if failed == len(queries) {
		return nil, queries, errs[0]
	}

	stubs := unionStubs(results)

	if len(stubs) == 0 {
		failsafe := c.windowed(FailsafeQuery(opts.Intent, append(opts.MustHave, opts.NiceToHave...)), opts)
		queries = append(queries, failsafe)
		extra, err := c.mailbox.Search(ctx, failsafe, limit)
		if err != nil {
			log.FromCtx(ctx).Warn().Err(err).Str("query", failsafe).Msg("failsafe search failed")
		}
		stubs = extra
	}

	messages := c.fetchAll(ctx, stubs)
	sortByReceivedDesc(messages)
	return messages, queries, nil
}

// buildQueries derives the three branch expressions concurrently, then
// dedupes and windows them in priority order.
func (c *Cascade) buildQueries(ctx context.Context, opts Options) []string {
	candidates := make([]string, 3)

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		candidates[0] = RefinedQuery(ctx, c.client, c.model, opts.Intent)
	}()
	go func() {
		defer wg.Done()
		candidates[1] = LegacyQuery(opts.MustHave, opts.NiceToHave)
	}()
	go func() {
		defer wg.Done()
		candidates[2] = SweepQuery(opts.Intent, append(opts.MustHave, opts.NiceToHave...))
	}()
	wg.Wait()

	seen := make(map[string]struct{}, len(candidates))
	var queries []string
	for _, q := range candidates {
		if q == "" {
			continue
		}
		if _, ok := seen[q]; ok {
			continue
		}
		seen[q] = struct{}{}
		queries = append(queries, c.windowed(q, opts))
	}
	return queries
}

// windowed narrows a query to the recent window for a user's first passive
// run. Explicit full scans and active searches are never narrowed.
func (c *Cascade) windowed(query string, opts Options) string {
	if opts.FullScan || opts.Active || !opts.FirstRun {
		return query
	}
	if query == "" {
		return recentWindow
	}
	return "(" + query + ") " + recentWindow
}

// unionStubs merges branch results by message id. First occurrence wins,
// walking branches in priority order, so the union is deterministic no
// matter which goroutine finished first.
func unionStubs(results [][]domain.MessageStub) []domain.MessageStub {
	seen := make(map[string]struct{})
	var union []domain.MessageStub
	for _, branch := range results {
		for _, stub := range branch {
			if _, ok := seen[stub.ID]; ok {
				continue
			}
			seen[stub.ID] = struct{}{}
			union = append(union, stub)
		}
	}
	return union
}

func (c *Cascade) fetchAll(ctx context.Context, stubs []domain.MessageStub) []domain.Message {
	messages := make([]domain.Message, 0, len(stubs))
	for _, stub := range stubs {
		msg, err := c.mailbox.Fetch(ctx, stub.ID)
		if err != nil {
			log.FromCtx(ctx).Warn().Err(err).Str("message_id", stub.ID).Msg("fetch failed, skipping message")
			continue
		}
		if msg == nil {
			continue
		}
		if msg.ThreadID == "" {
			msg.ThreadID = stub.ThreadID
		}
		messages = append(messages, *msg)
	}
	return messages
}

func sortByReceivedDesc(messages []domain.Message) {
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].ReceivedAt.After(messages[j].ReceivedAt)
	})
}
