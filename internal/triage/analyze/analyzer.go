package analyze

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"mailpilot-backend/internal/triage/domain"
	"mailpilot-backend/pkg/llm"
	"mailpilot-backend/pkg/log"
)

const analysisSystemPrompt = `You analyze one email for an inbox assistant.
Respond with JSON only:
{
  "summary": "one or two sentences",
  "answer": "direct answer to the user's question, if one was asked, else empty",
  "actions": [{"description": "...", "due_date": "2006-01-02", "priority": "high|medium|low"}],
  "entities": ["people, companies, places mentioned"],
  "relevance": 0.0,
  "urgent": false,
  "itinerary": [{"carrier": "...", "from": "...", "to": "...", "departure": "...", "arrival": "...", "reference": "..."}],
  "reply_draft": "short reply draft when one is requested, else empty"
}
Include "itinerary" only for travel bookings or confirmations.
"relevance" scores how well this email matches the user's intent, 0 to 1.`

// Analyzer runs the deep per-message analysis step.
type Analyzer struct {
	client llm.Client
	model  string
}

func NewAnalyzer(client llm.Client, model string) *Analyzer {
	return &Analyzer{client: client, model: model}
}

// AnalyzeAll processes messages one at a time. Sequential on purpose: it
// keeps capability rate limits predictable, and a failing message is left
// out of the result instead of aborting the batch.
func (a *Analyzer) AnalyzeAll(ctx context.Context, userID, runID, intent string, proposal []domain.ScoredMessage) []domain.Analysis {
	analyses := make([]domain.Analysis, 0, len(proposal))
	for _, sm := range proposal {
		analysis, err := a.analyzeOne(ctx, intent, sm.Message)
		if err != nil {
			log.FromCtx(ctx).Warn().Err(err).Str("message_id", sm.Message.ID).Msg("analysis failed, skipping message")
			continue
		}
		analysis.ID = uuid.New().String()
		analysis.UserID = userID
		analysis.MessageID = sm.Message.ID
		analysis.RunID = runID
		analyses = append(analyses, analysis)
	}
	return analyses
}

func (a *Analyzer) analyzeOne(ctx context.Context, intent string, msg *domain.Message) (domain.Analysis, error) {
	body := msg.Body
	if body == "" {
		body = msg.Snippet
	}

	prompt := fmt.Sprintf("User intent: %s\n\nFrom: %s <%s>\nSubject: %s\nReceived: %s\n\n%s",
		orNone(intent), msg.FromName, msg.From, msg.Subject, msg.ReceivedAt.Format("2006-01-02 15:04"), body)

	out, err := a.client.Complete(ctx, llm.Request{
		System:   analysisSystemPrompt,
		Prompt:   prompt,
		Model:    a.model,
		JSONMode: true,
	})
	if err != nil {
		return domain.Analysis{}, err
	}

	result := DecodeAnalysis(out)
	if !result.OK {
		log.FromCtx(ctx).Warn().Str("message_id", msg.ID).Msg("malformed analysis payload, recovering with defaults")
	}
	return Recover(result, msg), nil
}

func orNone(intent string) string {
	if intent == "" {
		return "(none, general triage)"
	}
	return intent
}
