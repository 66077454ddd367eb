package inference

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"copilot-salud-backend/internal/model"
)

const (
	cacheSize = 100
	cacheTTL  = 5 * time.Minute
	hourStamp = "2006010215"
)

// ResultCache memoizes parsed analysis results per role, query and
// hour bucket. Entries fall out after five minutes or when the LRU
// reaches capacity.
type ResultCache struct {
	lru    *expirable.LRU[string, model.AnalysisResult]
	clock  func() time.Time
	hits   atomic.Int64
	misses atomic.Int64
}

// CacheOption configures a ResultCache.
type CacheOption func(*ResultCache)

// WithCacheClock overrides the time source used for hour bucketing.
func WithCacheClock(clock func() time.Time) CacheOption {
	return func(c *ResultCache) { c.clock = clock }
}

// NewResultCache builds the shared answer cache.
func NewResultCache(opts ...CacheOption) *ResultCache {
	c := &ResultCache{
		lru:   expirable.NewLRU[string, model.AnalysisResult](cacheSize, nil, cacheTTL),
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NormalizeQuery lowercases a query and collapses runs of whitespace
// so trivially different phrasings share a cache entry.
func NormalizeQuery(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

// Key derives the cache key for a role and query at the current hour.
func (c *ResultCache) Key(roleKey, query string) string {
	sum := sha256.Sum256([]byte(roleKey + "\n" + NormalizeQuery(query) + "\n" + c.clock().Format(hourStamp)))
	return hex.EncodeToString(sum[:])
}

// Get looks up a cached result.
func (c *ResultCache) Get(key string) (model.AnalysisResult, bool) {
	result, ok := c.lru.Get(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return result, ok
}

// Put stores a result under the given key.
func (c *ResultCache) Put(key string, result model.AnalysisResult) {
	c.lru.Add(key, result)
}

// Stats reports hit and miss counts plus current occupancy.
func (c *ResultCache) Stats() (hits, misses int64, entries int) {
	return c.hits.Load(), c.misses.Load(), c.lru.Len()
}
