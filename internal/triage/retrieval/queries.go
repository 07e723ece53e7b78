package retrieval

import (
	"context"
	"fmt"
	"strings"

	"mailpilot-backend/pkg/fuzzy"
	"mailpilot-backend/pkg/llm"
	"mailpilot-backend/pkg/log"
)

const maxSweepTokens = 10

const refineSystemPrompt = `You turn a user's mailbox request into a Gmail search query.
Use boolean operators (AND, OR), quoted phrases, and from:/subject:/newer_than: filters where they help.
Return ONLY the query string, nothing else.`

// RefinedQuery asks the model to compile the intent into a provider search
// expression. When the capability is unavailable or returns nothing the
// deterministic keyword fallback takes over.
func RefinedQuery(ctx context.Context, client llm.Client, model, intent string) string {
	if strings.TrimSpace(intent) == "" {
		return ""
	}

	out, err := client.Complete(ctx, llm.Request{
		System: refineSystemPrompt,
		Prompt: intent,
		Model:  model,
	})
	if err != nil {
		log.FromCtx(ctx).Warn().Err(err).Msg("query refinement unavailable, using keyword fallback")
		return keywordFallback(intent)
	}

	query := strings.TrimSpace(strings.Trim(strings.TrimSpace(out), "`\""))
	if query == "" {
		return keywordFallback(intent)
	}
	return query
}

func keywordFallback(intent string) string {
	tokens := fuzzy.Tokenize(intent, maxSweepTokens)
	if len(tokens) == 0 {
		return ""
	}
	return strings.Join(tokens, " OR ")
}

// LegacyQuery builds a boolean expression from explicit keyword lists. Few
// must-haves are strict (AND); a long list would over-constrain the search,
// so four or more fall back to OR. Nice-to-haves only ever widen the net.
func LegacyQuery(mustHave, niceToHave []string) string {
	must := cleanKeywords(mustHave)
	nice := cleanKeywords(niceToHave)

	if len(must) == 0 && len(nice) == 0 {
		return ""
	}
	if len(must) == 0 {
		return "(" + strings.Join(append(must, nice...), " OR ") + ")"
	}

	var core string
	if len(must) <= 3 {
		core = strings.Join(must, " AND ")
	} else {
		core = strings.Join(must, " OR ")
	}

	if len(nice) == 0 {
		return core
	}
	return fmt.Sprintf("(%s) OR (%s)", core, strings.Join(nice, " OR "))
}

// SweepQuery tokenizes the intent and keyword lists into one broad OR query.
func SweepQuery(intent string, keywords []string) string {
	source := intent
	if len(keywords) > 0 {
		source += " " + strings.Join(keywords, " ")
	}
	tokens := fuzzy.Tokenize(source, maxSweepTokens)
	if len(tokens) == 0 {
		return ""
	}
	return strings.Join(tokens, " OR ")
}

// FailsafeQuery is the last resort when the union came back empty: the raw
// token bag OR'd, or a trivial recent-items query when even that is empty.
func FailsafeQuery(intent string, keywords []string) string {
	source := intent
	if len(keywords) > 0 {
		source += " " + strings.Join(keywords, " ")
	}
	fields := strings.Fields(strings.ToLower(source))
	seen := make(map[string]struct{}, len(fields))
	var tokens []string
	for _, field := range fields {
		if _, ok := seen[field]; ok {
			continue
		}
		seen[field] = struct{}{}
		tokens = append(tokens, field)
		if len(tokens) == maxSweepTokens {
			break
		}
	}
	if len(tokens) == 0 {
		return "newer_than:3d"
	}
	return strings.Join(tokens, " OR ")
}

func cleanKeywords(keywords []string) []string {
	var out []string
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		if strings.ContainsAny(kw, " \t") {
			kw = `"` + kw + `"`
		}
		out = append(out, kw)
	}
	return out
}
