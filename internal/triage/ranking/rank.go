package ranking

import (
	"context"
	"math"
	"sort"

	"github.com/pkoukk/tiktoken-go"

	"mailpilot-backend/internal/triage/cache"
	"mailpilot-backend/internal/triage/domain"
	"mailpilot-backend/pkg/fuzzy"
	"mailpilot-backend/pkg/llm"
	"mailpilot-backend/pkg/log"
)

const (
	// similarityWeight makes semantic closeness dominate the tier weight
	// (tier contributes at most 3).
	similarityWeight = 6.0

	excerptTokenBudget = 256
	encodingName       = "cl100k_base"
)

// Ranker runs the combined-score pass: heuristic tier weight plus semantic
// similarity between each message and the run's intent.
type Ranker struct {
	client     llm.Client
	embeddings *cache.EmbeddingCache
}

func NewRanker(client llm.Client, embeddings *cache.EmbeddingCache) *Ranker {
	return &Ranker{client: client, embeddings: embeddings}
}

// Rank orders scored messages for output. Without an intent the heuristic
// score alone decides; with one, a combined score folds in cosine similarity
// against the intent embedding. The result is truncated to limit.
func (r *Ranker) Rank(ctx context.Context, userID string, scored []domain.ScoredMessage, intent string, forceRefresh bool, limit int) []domain.ScoredMessage {
	if intent == "" {
		out := make([]domain.ScoredMessage, len(scored))
		copy(out, scored)
		sort.SliceStable(out, func(i, j int) bool {
			if out[i].Score != out[j].Score {
				return out[i].Score > out[j].Score
			}
			return out[i].Message.ReceivedAt.After(out[j].Message.ReceivedAt)
		})
		return truncate(out, limit)
	}

	intentVec, err := r.client.Embed(ctx, intent)
	if err != nil {
		log.FromCtx(ctx).Warn().Err(err).Msg("intent embedding failed, ranking on heuristics only")
		intentVec = nil
	}

	out := make([]domain.ScoredMessage, len(scored))
	copy(out, scored)
	for i := range out {
		similarity := 0.0
		if intentVec != nil {
			if vec := r.messageVector(ctx, userID, out[i].Message, forceRefresh); vec != nil {
				similarity = CosineSimilarity(vec, intentVec)
			}
		}
		out[i].Combined = out[i].Tier.Weight() + similarityWeight*similarity
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Combined != out[j].Combined {
			return out[i].Combined > out[j].Combined
		}
		return out[i].Message.ReceivedAt.After(out[j].Message.ReceivedAt)
	})
	return truncate(out, limit)
}

// messageVector returns the message embedding, recomputing and writing back
// on a cache miss. A failure yields nil so the message contributes zero
// similarity without failing the batch.
func (r *Ranker) messageVector(ctx context.Context, userID string, msg *domain.Message, forceRefresh bool) []float64 {
	if vec, ok := r.embeddings.Get(ctx, userID, msg.ID, forceRefresh); ok {
		return vec
	}

	vec, err := r.client.Embed(ctx, Excerpt(msg))
	if err != nil {
		log.FromCtx(ctx).Warn().Err(err).Str("message_id", msg.ID).Msg("message embedding failed")
		return nil
	}
	r.embeddings.Put(ctx, userID, msg.ID, vec)
	return vec
}

// Excerpt builds the information-dense slice of a message used for
// embedding: subject and sender first, then leading body text, bounded by
// a token budget so long newsletters do not dominate the vector.
func Excerpt(msg *domain.Message) string {
	body := msg.Body
	if body == "" {
		body = msg.Snippet
	}

	text := "Subject: " + msg.Subject + "\nFrom: " + msg.From + "\n" + body

	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		// Encoding data unavailable; fall back to a crude rune bound.
		if len(text) > excerptTokenBudget*4 {
			return text[:excerptTokenBudget*4]
		}
		return text
	}

	tokens := enc.Encode(text, nil, nil)
	if len(tokens) <= excerptTokenBudget {
		return text
	}
	return enc.Decode(tokens[:excerptTokenBudget])
}

// CosineSimilarity is 0 when either vector has zero norm or the lengths
// differ, otherwise the standard dot product over the norm product.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func truncate(scored []domain.ScoredMessage, limit int) []domain.ScoredMessage {
	if limit > 0 && len(scored) > limit {
		return scored[:limit]
	}
	return scored
}

// HeuristicRescore is the fallback selection used when the model proposes
// too few prioritized messages: weighted keyword relevance over subject and
// sender plus the heuristic priority score, highest first. Without an
// intent the heuristic score alone decides (input order already encodes
// recency for equal scores).
func HeuristicRescore(scored []domain.ScoredMessage, intent string) []string {
	type rescored struct {
		id    string
		score float64
	}

	tokens := fuzzy.Tokenize(intent, 0)

	items := make([]rescored, 0, len(scored))
	for _, sm := range scored {
		score := sm.Score * 10
		if len(tokens) > 0 {
			score += fuzzy.RelevanceScore(tokens, sm.Message.Subject, sm.Message.From, sm.Message.FromName)
		}
		items = append(items, rescored{id: sm.Message.ID, score: score})
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].score > items[j].score })

	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.id)
	}
	return ids
}
