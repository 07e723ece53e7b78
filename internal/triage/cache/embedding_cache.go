package cache

import (
	"context"
	"sync"

	"mailpilot-backend/internal/triage/repository"
	"mailpilot-backend/pkg/log"
)

// EmbeddingCache is an in-process map over the durable embedding store.
// Vectors never expire; callers that change the active intent pass
// forceRefresh to bypass both layers and recompute.
type EmbeddingCache struct {
	mu   sync.RWMutex
	mem  map[string][]float64
	repo repository.EmbeddingRepository
}

func NewEmbeddingCache(repo repository.EmbeddingRepository) *EmbeddingCache {
	return &EmbeddingCache{
		mem:  make(map[string][]float64),
		repo: repo,
	}
}

func cacheKey(userID, messageID string) string {
	return userID + "/" + messageID
}

// Get returns the cached vector for a message. With forceRefresh the cache
// reports a miss regardless of contents.
func (c *EmbeddingCache) Get(ctx context.Context, userID, messageID string, forceRefresh bool) ([]float64, bool) {
	if forceRefresh {
		return nil, false
	}

	key := cacheKey(userID, messageID)

	c.mu.RLock()
	vector, ok := c.mem[key]
	c.mu.RUnlock()
	if ok {
		return vector, true
	}

	if c.repo == nil {
		return nil, false
	}
	emb, err := c.repo.Get(userID, messageID)
	if err != nil {
		log.FromCtx(ctx).Warn().Err(err).Str("message_id", messageID).Msg("embedding store read failed")
		return nil, false
	}
	if emb == nil || len(emb.Vector) == 0 {
		return nil, false
	}

	c.mu.Lock()
	c.mem[key] = emb.Vector
	c.mu.Unlock()
	return emb.Vector, true
}

// Put stores the vector in memory and writes through to the durable store.
// Overwriting is idempotent, so concurrent recomputation is safe.
func (c *EmbeddingCache) Put(ctx context.Context, userID, messageID string, vector []float64) {
	c.mu.Lock()
	c.mem[cacheKey(userID, messageID)] = vector
	c.mu.Unlock()

	if c.repo == nil {
		return
	}
	if err := c.repo.Upsert(userID, messageID, vector); err != nil {
		log.FromCtx(ctx).Warn().Err(err).Str("message_id", messageID).Msg("embedding store write failed")
	}
}

// Invalidate drops a user's vectors from both layers. Used when a new intent
// makes the cached embeddings stale for that user.
func (c *EmbeddingCache) Invalidate(ctx context.Context, userID string) {
	prefix := userID + "/"

	c.mu.Lock()
	for key := range c.mem {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			delete(c.mem, key)
		}
	}
	c.mu.Unlock()

	if c.repo == nil {
		return
	}
	if err := c.repo.DeleteForUser(userID); err != nil {
		log.FromCtx(ctx).Warn().Err(err).Str("user_id", userID).Msg("embedding store invalidation failed")
	}
}
