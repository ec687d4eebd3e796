package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"sync"
	"time"

	"ragqa/internal/domain"
	"ragqa/internal/port"
)

// QueryCache is a bounded LRU of retrieval results with a TTL. Entries are
// tagged with their session's generation; bumping the generation makes every
// entry of that session stale.
type QueryCache struct {
	mu          sync.RWMutex
	entries     map[string]*cacheEntry
	order       []string
	maxSize     int
	ttl         time.Duration
	generations map[string]uint64
	now         func() time.Time
}

type cacheEntry struct {
	results   []domain.ScoredChunk
	timestamp time.Time
	sessionID string
	gen       uint64
}

func NewQueryCache(maxSize int, ttl time.Duration) *QueryCache {
	if maxSize <= 0 {
		maxSize = 100
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &QueryCache{
		entries:     make(map[string]*cacheEntry),
		order:       make([]string, 0, maxSize),
		maxSize:     maxSize,
		ttl:         ttl,
		generations: make(map[string]uint64),
		now:         time.Now,
	}
}

func cacheKey(sessionID, question string, topK int, filter port.QueryFilter) string {
	h := sha256.New()
	for _, part := range []string{sessionID, question, strconv.Itoa(topK), filter.Source} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil)[:16])
}

func (c *QueryCache) Get(sessionID, question string, topK int, filter port.QueryFilter) ([]domain.ScoredChunk, bool) {
	key := cacheKey(sessionID, question, topK, filter)

	c.mu.RLock()
	entry, exists := c.entries[key]
	currentGen := c.generations[sessionID]
	c.mu.RUnlock()

	if !exists {
		return nil, false
	}

	if c.now().Sub(entry.timestamp) > c.ttl || entry.gen != currentGen {
		c.mu.Lock()
		delete(c.entries, key)
		c.removeFromOrder(key)
		c.mu.Unlock()
		return nil, false
	}

	c.mu.Lock()
	c.moveToEnd(key)
	c.mu.Unlock()

	return entry.results, true
}

// Generation returns the current invalidation generation of sessionID.
func (c *QueryCache) Generation(sessionID string) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generations[sessionID]
}

func (c *QueryCache) Put(sessionID, question string, topK int, filter port.QueryFilter, results []domain.ScoredChunk) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.put(sessionID, question, topK, filter, results, c.generations[sessionID])
}

// PutAt stores results computed while sessionID was at generation gen. It
// stores nothing and returns false if the session was invalidated since.
func (c *QueryCache) PutAt(gen uint64, sessionID, question string, topK int, filter port.QueryFilter, results []domain.ScoredChunk) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generations[sessionID] != gen {
		return false
	}
	c.put(sessionID, question, topK, filter, results, gen)
	return true
}

func (c *QueryCache) put(sessionID, question string, topK int, filter port.QueryFilter, results []domain.ScoredChunk, gen uint64) {
	key := cacheKey(sessionID, question, topK, filter)
	entry := &cacheEntry{
		results:   results,
		timestamp: c.now(),
		sessionID: sessionID,
		gen:       gen,
	}

	if _, exists := c.entries[key]; exists {
		c.entries[key] = entry
		c.moveToEnd(key)
		return
	}

	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	c.entries[key] = entry
	c.order = append(c.order, key)
}

// Invalidate discards every cached result for sessionID.
func (c *QueryCache) Invalidate(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generations[sessionID]++
	for key, e := range c.entries {
		if e.sessionID == sessionID {
			delete(c.entries, key)
			c.removeFromOrder(key)
		}
	}
}

func (c *QueryCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *QueryCache) evictOldest() {
	if len(c.order) == 0 {
		return
	}
	oldest := c.order[0]
	c.order = c.order[1:]
	delete(c.entries, oldest)
}

func (c *QueryCache) moveToEnd(key string) {
	c.removeFromOrder(key)
	c.order = append(c.order, key)
}

func (c *QueryCache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

var (
	_ port.Retriever        = (*CachedRetriever)(nil)
	_ port.CacheInvalidator = (*CachedRetriever)(nil)
)

// CachedRetriever serves repeated questions from a QueryCache. Empty results
// are not cached so a session that gains documents is seen immediately.
type CachedRetriever struct {
	retriever port.Retriever
	cache     *QueryCache
}

func NewCachedRetriever(retriever port.Retriever, cache *QueryCache) *CachedRetriever {
	return &CachedRetriever{
		retriever: retriever,
		cache:     cache,
	}
}

func (r *CachedRetriever) Retrieve(ctx context.Context, sessionID, question string, k int, filter port.QueryFilter) ([]domain.ScoredChunk, error) {
	if results, hit := r.cache.Get(sessionID, question, k, filter); hit {
		return results, nil
	}

	gen := r.cache.Generation(sessionID)
	results, err := r.retriever.Retrieve(ctx, sessionID, question, k, filter)
	if err != nil {
		return nil, err
	}

	if len(results) > 0 {
		r.cache.PutAt(gen, sessionID, question, k, filter, results)
	}

	return results, nil
}

func (r *CachedRetriever) Invalidate(sessionID string) {
	r.cache.Invalidate(sessionID)
}
