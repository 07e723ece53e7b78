package analyze

import (
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"mailpilot-backend/internal/triage/domain"
)

// DecodeResult is the typed outcome of parsing a model analysis response:
// either a parsed Analysis or the raw text that failed to parse. Downstream
// code never branches on absence; Recover always yields a valid Analysis.
type DecodeResult struct {
	OK       bool
	Analysis domain.Analysis
	Raw      string
}

// DecodeAnalysis parses the model's JSON analysis payload. Models sometimes
// wrap JSON in markdown fences or prepend prose, so the parser locates the
// outermost object before decoding.
func DecodeAnalysis(raw string) DecodeResult {
	payload := extractJSON(raw)
	if payload == "" || !gjson.Valid(payload) {
		return DecodeResult{OK: false, Raw: raw}
	}

	root := gjson.Parse(payload)
	if !root.IsObject() {
		return DecodeResult{OK: false, Raw: raw}
	}

	analysis := domain.Analysis{
		Summary:    root.Get("summary").String(),
		Answer:     root.Get("answer").String(),
		Relevance:  root.Get("relevance").Float(),
		Urgent:     root.Get("urgent").Bool(),
		ReplyDraft: root.Get("reply_draft").String(),
	}

	root.Get("actions").ForEach(func(_, value gjson.Result) bool {
		action := domain.Action{
			Description: value.Get("description").String(),
			Priority:    value.Get("priority").String(),
		}
		if due := value.Get("due_date").String(); due != "" {
			if t, err := time.Parse(time.RFC3339, due); err == nil {
				action.DueDate = &t
			} else if t, err := time.Parse("2006-01-02", due); err == nil {
				action.DueDate = &t
			}
		}
		if action.Description != "" {
			analysis.Actions = append(analysis.Actions, action)
		}
		return true
	})

	root.Get("entities").ForEach(func(_, value gjson.Result) bool {
		if e := value.String(); e != "" {
			analysis.Entities = append(analysis.Entities, e)
		}
		return true
	})

	root.Get("itinerary").ForEach(func(_, value gjson.Result) bool {
		leg := domain.ItineraryLeg{
			Carrier:   value.Get("carrier").String(),
			From:      value.Get("from").String(),
			To:        value.Get("to").String(),
			Departure: value.Get("departure").String(),
			Arrival:   value.Get("arrival").String(),
			Reference: value.Get("reference").String(),
		}
		if leg != (domain.ItineraryLeg{}) {
			analysis.Itinerary = append(analysis.Itinerary, leg)
		}
		return true
	})

	return DecodeResult{OK: true, Analysis: analysis}
}

// Recover turns a malformed decode into a structurally valid Analysis using
// message fields, so downstream stages work with defaults instead of nil.
// Pure: same inputs, same output.
func Recover(result DecodeResult, msg *domain.Message) domain.Analysis {
	if result.OK {
		return result.Analysis
	}

	summary := strings.TrimSpace(result.Raw)
	if summary == "" {
		summary = msg.Snippet
	}
	if runes := []rune(summary); len(runes) > 280 {
		summary = string(runes[:280])
	}

	return domain.Analysis{
		Summary:  summary,
		Actions:  []domain.Action{},
		Entities: domain.StringArray{},
	}
}

// extractJSON strips markdown fences and surrounding prose, returning the
// outermost {...} block, or "" when none exists.
func extractJSON(raw string) string {
	text := strings.TrimSpace(raw)

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}
