// Package cache stores final answers keyed by a normalized form of the
// question. Entries expire after a TTL and the least recently used entry is
// evicted once the cache is full, whichever comes first.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/ada-assist/ada/internal/llm/configuration"
)

// entry keeps the normalized question next to the value so near-duplicate
// lookups can compare against it.
type entry[V any] struct {
	question string
	value    V
}

// Cache is a TTL and size bounded answer cache. The zero value is not
// usable; construct with New.
type Cache[V any] struct {
	store *expirable.LRU[string, entry[V]]

	enabled   bool
	maxSize   int
	ttl       time.Duration
	threshold float64

	hits   atomic.Int64
	misses atomic.Int64

	logger *slog.Logger
}

// Stats reports cache configuration and effectiveness.
type Stats struct {
	Enabled    bool    `json:"enabled"`
	Size       int     `json:"size"`
	MaxSize    int     `json:"max_size"`
	TTLSeconds int64   `json:"ttl_seconds"`
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	HitRate    float64 `json:"hit_rate"`
}

// New creates a cache from cfg. When cfg.Enabled is false every operation
// is a no-op and lookups always miss.
func New[V any](cfg configuration.CacheConfig) *Cache[V] {
	c := &Cache[V]{
		enabled:   cfg.Enabled,
		maxSize:   cfg.MaxSize,
		ttl:       cfg.TTL,
		threshold: cfg.SimilarityThreshold,
		logger:    slog.Default().With("component", "cache"),
	}
	if !c.enabled {
		c.logger.Info("response cache disabled")
		return c
	}

	c.store = expirable.NewLRU[string, entry[V]](cfg.MaxSize, nil, cfg.TTL)
	c.logger.Info("response cache initialized", "max_size", cfg.MaxSize, "ttl", cfg.TTL)
	return c
}

// Normalize lowercases question, collapses whitespace runs to one space and
// trims the ends.
func Normalize(question string) string {
	return strings.Join(strings.Fields(strings.ToLower(question)), " ")
}

// Key returns the hex SHA-256 of the normalized question.
func Key(question string) string {
	sum := sha256.Sum256([]byte(Normalize(question)))
	return hex.EncodeToString(sum[:])
}

// Enabled reports whether the cache stores anything.
func (c *Cache[V]) Enabled() bool {
	return c.enabled
}

// Get returns the value stored for question.
func (c *Cache[V]) Get(question string) (V, bool) {
	var zero V
	if !c.enabled {
		return zero, false
	}

	e, ok := c.store.Get(Key(question))
	if !ok {
		c.misses.Add(1)
		return zero, false
	}
	c.hits.Add(1)
	return e.value, true
}

// Set stores value for question, replacing any previous entry. Callers must
// not cache error results.
func (c *Cache[V]) Set(question string, value V) {
	if !c.enabled {
		return
	}
	normalized := Normalize(question)
	if evicted := c.store.Add(Key(question), entry[V]{question: normalized, value: value}); evicted {
		c.logger.Debug("cache full, evicted least recently used entry")
	}
}

// FindSimilar returns the cached value whose question is most similar to
// question, if that similarity reaches the configured threshold. It is a
// pure read: recency and contents are untouched. A zero threshold disables
// near-duplicate matching.
func (c *Cache[V]) FindSimilar(question string) (V, float64, bool) {
	var zero V
	if !c.enabled || c.threshold <= 0 {
		return zero, 0, false
	}

	normalized := Normalize(question)
	var (
		best      V
		bestScore float64
		found     bool
	)
	for _, key := range c.store.Keys() {
		e, ok := c.store.Peek(key)
		if !ok {
			continue
		}
		score := similarity(normalized, e.question)
		if score >= c.threshold && score > bestScore {
			best, bestScore, found = e.value, score, true
		}
	}
	return best, bestScore, found
}

// Delete removes the entry for question.
func (c *Cache[V]) Delete(question string) bool {
	if !c.enabled {
		return false
	}
	return c.store.Remove(Key(question))
}

// Clear removes every entry. Hit and miss counters are kept.
func (c *Cache[V]) Clear() {
	if !c.enabled {
		return
	}
	c.store.Purge()
	c.logger.Info("response cache cleared")
}

// Len returns the number of live entries.
func (c *Cache[V]) Len() int {
	if !c.enabled {
		return 0
	}
	return c.store.Len()
}

// Stats returns a snapshot of the cache's configuration and counters.
func (c *Cache[V]) Stats() Stats {
	hits, misses := c.hits.Load(), c.misses.Load()
	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}
	return Stats{
		Enabled:    c.enabled,
		Size:       c.Len(),
		MaxSize:    c.maxSize,
		TTLSeconds: int64(c.ttl.Seconds()),
		Hits:       hits,
		Misses:     misses,
		HitRate:    hitRate,
	}
}
