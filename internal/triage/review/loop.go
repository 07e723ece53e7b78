package review

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"mailpilot-backend/internal/triage/domain"
	"mailpilot-backend/internal/triage/ranking"
	"mailpilot-backend/pkg/llm"
	"mailpilot-backend/pkg/log"
)

// State is one step of the propose-critique loop.
type State string

const (
	StateProposing    State = "proposing"
	StateReviewing    State = "reviewing"
	StatePass         State = "pass"
	StateFailRetry    State = "fail_retry"
	StateFailAccepted State = "fail_accepted"
)

// Terminal reports whether the loop stops in this state.
func (s State) Terminal() bool {
	return s == StatePass || s == StateFailAccepted
}

// minProposalSize is the point below which a model proposal is considered
// under-filled and merged with the heuristic re-score.
const minProposalSize = 3

const proposeSystemPrompt = `You select which emails deserve the user's attention right now.
Given an intent and a candidate list, pick the message ids that matter most.
Respond with JSON: {"ids": ["id1", "id2", ...]}`

const critiqueSystemPrompt = `You review a prioritized email selection against the user's intent.
Fail the selection only for a clear problem: irrelevant picks, an obviously
relevant candidate left out, or the wrong kind of email for the intent.
Respond with JSON: {"verdict": "pass" | "fail", "critique": "..."}`

// Outcome is the loop's terminal result plus provenance for the run record.
type Outcome struct {
	State     State
	Attempts  int
	Proposed  []domain.ScoredMessage
	Critiques []string
}

// Loop is the bounded propose-critique state machine. Each failed critique
// feeds back into the next proposal; exceeding maxAttempts accepts the
// current proposal rather than stalling the pipeline.
type Loop struct {
	client      llm.Client
	model       string
	maxAttempts int
}

func NewLoop(client llm.Client, model string, maxAttempts int) *Loop {
	return &Loop{client: client, model: model, maxAttempts: maxAttempts}
}

// Run drives the state machine to a terminal state. Candidates arrive
// ranked; the proposal narrows them to at most limit messages.
func (l *Loop) Run(ctx context.Context, intent string, candidates []domain.ScoredMessage, limit int) Outcome {
	logger := log.FromCtx(ctx)

	attempts := 0
	var critiques []string
	var proposal []domain.ScoredMessage

	state := StateProposing
	for !state.Terminal() {
		switch state {
		case StateProposing:
			proposal = l.propose(ctx, intent, candidates, critiques, limit)
			state = StateReviewing

		case StateReviewing:
			verdict, critique := l.critique(ctx, intent, proposal)
			if verdict {
				state = StatePass
				break
			}
			attempts++
			critiques = append(critiques, critique)
			if attempts > l.maxAttempts {
				logger.Warn().Int("attempts", attempts).Msg("review attempts exhausted, accepting current proposal")
				state = StateFailAccepted
				break
			}
			state = StateFailRetry

		case StateFailRetry:
			state = StateProposing
		}
	}

	logger.Info().
		Str("outcome", string(state)).
		Int("attempts", attempts).
		Int("proposed", len(proposal)).
		Msg("review loop finished")

	return Outcome{State: state, Attempts: attempts, Proposed: proposal, Critiques: critiques}
}

// propose asks the model for a prioritized subset. Under-filled or failed
// model output is merged with a heuristic re-score over all candidates,
// model-selected ids first.
func (l *Loop) propose(ctx context.Context, intent string, candidates []domain.ScoredMessage, critiques []string, limit int) []domain.ScoredMessage {
	ids := l.modelSelection(ctx, intent, candidates, critiques)

	if len(ids) < minProposalSize {
		merged := append([]string{}, ids...)
		seen := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			seen[id] = struct{}{}
		}
		for _, id := range ranking.HeuristicRescore(candidates, intent) {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			merged = append(merged, id)
		}
		ids = merged
	}

	byID := make(map[string]domain.ScoredMessage, len(candidates))
	for _, sm := range candidates {
		byID[sm.Message.ID] = sm
	}

	proposal := make([]domain.ScoredMessage, 0, len(ids))
	for _, id := range ids {
		if sm, ok := byID[id]; ok {
			proposal = append(proposal, sm)
		}
		if limit > 0 && len(proposal) == limit {
			break
		}
	}
	return proposal
}

func (l *Loop) modelSelection(ctx context.Context, intent string, candidates []domain.ScoredMessage, critiques []string) []string {
	var sb strings.Builder
	if intent != "" {
		fmt.Fprintf(&sb, "Intent: %s\n\n", intent)
	} else {
		sb.WriteString("Intent: none (general triage)\n\n")
	}
	if len(critiques) > 0 {
		fmt.Fprintf(&sb, "Previous selection was rejected: %s\nFix that problem this time.\n\n", critiques[len(critiques)-1])
	}
	sb.WriteString("Candidates:\n")
	for _, sm := range candidates {
		fmt.Fprintf(&sb, "- id=%s from=%s subject=%q tier=%s\n", sm.Message.ID, sm.Message.From, sm.Message.Subject, sm.Tier)
	}

	out, err := l.client.Complete(ctx, llm.Request{
		System:   proposeSystemPrompt,
		Prompt:   sb.String(),
		Model:    l.model,
		JSONMode: true,
	})
	if err != nil {
		log.FromCtx(ctx).Warn().Err(err).Msg("proposal capability unavailable, using heuristic selection")
		return nil
	}

	var ids []string
	gjson.Get(out, "ids").ForEach(func(_, value gjson.Result) bool {
		if id := value.String(); id != "" {
			ids = append(ids, id)
		}
		return true
	})
	return ids
}

// critique judges the proposal. An unavailable capability counts as a pass;
// blocking the pipeline on a reviewer outage would invert the priority here.
func (l *Loop) critique(ctx context.Context, intent string, proposal []domain.ScoredMessage) (bool, string) {
	var sb strings.Builder
	if intent != "" {
		fmt.Fprintf(&sb, "Intent: %s\n\n", intent)
	} else {
		sb.WriteString("Intent: none (general triage)\n\n")
	}
	sb.WriteString("Proposed selection:\n")
	for _, sm := range proposal {
		fmt.Fprintf(&sb, "- id=%s from=%s subject=%q\n", sm.Message.ID, sm.Message.From, sm.Message.Subject)
	}

	out, err := l.client.Complete(ctx, llm.Request{
		System:   critiqueSystemPrompt,
		Prompt:   sb.String(),
		Model:    l.model,
		JSONMode: true,
	})
	if err != nil {
		log.FromCtx(ctx).Warn().Err(err).Msg("critique capability unavailable, accepting proposal")
		return true, ""
	}

	verdict := strings.ToLower(gjson.Get(out, "verdict").String())
	critique := gjson.Get(out, "critique").String()
	if verdict != "fail" {
		return true, ""
	}
	if critique == "" {
		critique = "selection rejected without detail"
	}
	return false, critique
}
