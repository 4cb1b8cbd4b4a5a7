package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"vsearch/internal/adapter/metrics"
	"vsearch/internal/domain"
	"vsearch/internal/port"
)

// QueryCache is an LRU of ranked results keyed by query text and topN.
// Entries expire after ttl and are dropped whenever the index generation
// moves on.
type QueryCache struct {
	mu       sync.RWMutex
	entries  map[string]*cacheEntry
	order    []string
	maxSize  int
	ttl      time.Duration
	indexGen uint64
	now      func() time.Time
}

type cacheEntry struct {
	results   []domain.ScoredDocument
	timestamp time.Time
	indexGen  uint64
}

func NewQueryCache(maxSize int, ttl time.Duration) *QueryCache {
	if maxSize <= 0 {
		maxSize = 256
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &QueryCache{
		entries: make(map[string]*cacheEntry),
		order:   make([]string, 0, maxSize),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

func cacheKey(query string, topN int) string {
	data := []byte(query)
	data = append(data, 0)
	data = strconv.AppendInt(data, int64(topN), 10)
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:16])
}

// Get returns a copy of the cached results so callers cannot corrupt the
// entry.
func (c *QueryCache) Get(query string, topN int) ([]domain.ScoredDocument, bool) {
	key := cacheKey(query, topN)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.entries[key]
	if !exists {
		return nil, false
	}

	if c.now().Sub(entry.timestamp) > c.ttl || entry.indexGen != c.indexGen {
		delete(c.entries, key)
		c.removeFromOrder(key)
		return nil, false
	}

	c.moveToEnd(key)
	return cloneResults(entry.results), true
}

func (c *QueryCache) Put(query string, topN int, results []domain.ScoredDocument) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.put(query, topN, results)
}

// Generation returns the current index generation. Pair it with
// PutIfGeneration to cache a result computed while a rebuild may publish.
func (c *QueryCache) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.indexGen
}

// PutIfGeneration stores results only if no Invalidate happened since gen
// was read. It reports whether the entry was stored.
func (c *QueryCache) PutIfGeneration(gen uint64, query string, topN int, results []domain.ScoredDocument) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.indexGen {
		return false
	}
	c.put(query, topN, results)
	return true
}

func (c *QueryCache) put(query string, topN int, results []domain.ScoredDocument) {
	key := cacheKey(query, topN)
	entry := &cacheEntry{
		results:   cloneResults(results),
		timestamp: c.now(),
		indexGen:  c.indexGen,
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

// Invalidate drops every entry. Called after a new corpus is published.
func (c *QueryCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*cacheEntry)
	c.order = c.order[:0]
	c.indexGen++
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

func cloneResults(results []domain.ScoredDocument) []domain.ScoredDocument {
	out := make([]domain.ScoredDocument, len(results))
	copy(out, results)
	return out
}

// CachedRetriever serves repeated queries from a QueryCache. Concurrent
// misses for the same key share one underlying search.
type CachedRetriever struct {
	retriever port.Retriever
	cache     *QueryCache
	metrics   *metrics.Metrics
	group     singleflight.Group
}

func NewCachedRetriever(retriever port.Retriever, cache *QueryCache, m *metrics.Metrics) *CachedRetriever {
	return &CachedRetriever{
		retriever: retriever,
		cache:     cache,
		metrics:   m,
	}
}

func (r *CachedRetriever) Search(query string, topN int) ([]domain.ScoredDocument, error) {
	if results, hit := r.cache.Get(query, topN); hit {
		r.metrics.CacheHit()
		return results, nil
	}
	r.metrics.CacheMiss()

	gen := r.cache.Generation()
	v, err, _ := r.group.Do(groupKey(gen, query, topN), func() (any, error) {
		results, err := r.retriever.Search(query, topN)
		if err != nil {
			return nil, err
		}
		// a publish during the search makes these results stale
		r.cache.PutIfGeneration(gen, query, topN, results)
		return results, nil
	})
	if err != nil {
		return nil, err
	}

	return cloneResults(v.([]domain.ScoredDocument)), nil
}

// groupKey keeps misses from different generations out of one flight.
func groupKey(gen uint64, query string, topN int) string {
	return strconv.FormatUint(gen, 10) + ":" + cacheKey(query, topN)
}

// Invalidate drops cached results; see QueryCache.Invalidate.
func (r *CachedRetriever) Invalidate() {
	r.cache.Invalidate()
}
