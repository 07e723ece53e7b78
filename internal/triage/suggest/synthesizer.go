package suggest

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"mailpilot-backend/internal/triage/domain"
)

const (
	infoDetailCap    = 200
	nextStepsTopN    = 3
	excerptRuneLimit = 120
)

// Synthesize turns per-message Analyses into typed suggestions. Rules are
// additive: every applicable rule fires for every Analysis, then at most one
// aggregate card is appended for search runs. Output keeps insertion order.
func Synthesize(userID, runID string, kind domain.IntentKind, analyses []domain.Analysis) []domain.Suggestion {
	var suggestions []domain.Suggestion

	add := func(t domain.SuggestionType, title, details, messageID, priority string) {
		suggestions = append(suggestions, domain.Suggestion{
			ID:        uuid.New().String(),
			UserID:    userID,
			RunID:     runID,
			Type:      t,
			Title:     title,
			Details:   details,
			MessageID: messageID,
			Priority:  priority,
		})
	}

	for _, analysis := range analyses {
		for _, action := range analysis.Actions {
			priority := action.Priority
			if priority == "" {
				if analysis.Urgent {
					priority = "high"
				} else {
					priority = "medium"
				}
			}
			details := action.Description
			if action.DueDate != nil {
				details += " (due " + action.DueDate.Format("Jan 2") + ")"
			}
			add(domain.SuggestionTask, action.Description, details, analysis.MessageID, priority)
		}

		if analysis.Urgent && len(analysis.Actions) == 0 {
			add(domain.SuggestionTask, "Review urgent email", capLen(analysis.Summary, infoDetailCap), analysis.MessageID, "high")
		}

		if kind != domain.IntentSearch && len(analysis.Actions) == 0 {
			add(domain.SuggestionInfo, "Worth a look", capLen(analysis.Summary, infoDetailCap), analysis.MessageID, "low")
		}

		if kind == domain.IntentReply && analysis.ReplyDraft != "" {
			add(domain.SuggestionReply, "Suggested reply", analysis.ReplyDraft, analysis.MessageID, "medium")
		}
	}

	if kind == domain.IntentSearch && len(analyses) > 0 {
		if card, ok := itineraryCard(analyses); ok {
			add(domain.SuggestionInfo, card.title, card.details, card.messageID, "medium")
		} else if card, ok := nextStepsCard(analyses); ok {
			add(domain.SuggestionInfo, card.title, card.details, "", "medium")
		}
	}

	return suggestions
}

type aggregateCard struct {
	title     string
	details   string
	messageID string
}

// itineraryCard builds the travel summary card from the single best-ranked
// Analysis carrying structured itinerary facts. At most one card is built
// even when several messages carry itineraries.
func itineraryCard(analyses []domain.Analysis) (aggregateCard, bool) {
	best := -1
	for i, analysis := range analyses {
		if len(analysis.Itinerary) == 0 {
			continue
		}
		if best < 0 || analysis.Relevance > analyses[best].Relevance {
			best = i
		}
	}
	if best < 0 {
		return aggregateCard{}, false
	}

	analysis := analyses[best]
	var sb strings.Builder
	for _, leg := range analysis.Itinerary {
		if leg.Carrier != "" {
			sb.WriteString(leg.Carrier + ": ")
		}
		fmt.Fprintf(&sb, "%s to %s", leg.From, leg.To)
		if leg.Departure != "" {
			sb.WriteString(", departs " + leg.Departure)
		}
		if leg.Reference != "" {
			sb.WriteString(" (ref " + leg.Reference + ")")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\nNext: confirm seats, check in online, add the dates to your calendar.")

	return aggregateCard{
		title:     "Your trip at a glance",
		details:   sb.String(),
		messageID: analysis.MessageID,
	}, true
}

// nextStepsCard aggregates the top Analyses by relevance into one generic
// next-steps suggestion. Only used when no structured facts exist.
func nextStepsCard(analyses []domain.Analysis) (aggregateCard, bool) {
	ranked := make([]domain.Analysis, len(analyses))
	copy(ranked, analyses)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Relevance > ranked[j].Relevance })

	top := ranked
	if len(top) > nextStepsTopN {
		top = top[:nextStepsTopN]
	}

	var sb strings.Builder
	for _, analysis := range top {
		summary := capLen(analysis.Summary, excerptRuneLimit)
		if summary == "" {
			continue
		}
		sb.WriteString("- " + summary + "\n")
	}
	if sb.Len() == 0 {
		return aggregateCard{}, false
	}
	sb.WriteString("\nNext: open the matches above, reply where needed, archive the rest.")

	return aggregateCard{title: "Next steps", details: sb.String()}, true
}

func capLen(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}
