package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rampart-ai/rampart/internal/normalize"
)

// Optimizer caches detector results keyed on normalized input so repeated
// or near-identical requests skip the regex scans entirely.
type Optimizer interface {
	// CachedDetect runs the detector, serving from cache when possible.
	CachedDetect(ctx context.Context, d Detector, in *normalize.Input) (*DetectionResult, error)

	// OptimizeCache evicts expired entries and trims the cache back under
	// its size bound. Called periodically by a background task.
	OptimizeCache()

	// ClearCache drops all entries.
	ClearCache()

	// Metrics reports hit/miss counters since startup.
	Metrics() CacheMetrics
}

// CacheMetrics is a point-in-time snapshot of cache effectiveness.
type CacheMetrics struct {
	Hits    uint64
	Misses  uint64
	Entries int
}

// ResultCache is a TTL-based in-memory Optimizer. Uses sync.Map for
// lock-free reads on the hot path; detection results are immutable once
// produced so cached values can be shared across requests.
type ResultCache struct {
	store      sync.Map // map[string]*resultEntry
	ttl        time.Duration
	maxEntries int
	hits       atomic.Uint64
	misses     atomic.Uint64
}

type resultEntry struct {
	result    *DetectionResult
	expiresAt time.Time
}

// NewResultCache creates a cache holding at most maxEntries results for
// ttl each. maxEntries <= 0 disables the size bound.
func NewResultCache(maxEntries int, ttl time.Duration) *ResultCache {
	return &ResultCache{ttl: ttl, maxEntries: maxEntries}
}

// CachedDetect returns a cached result when a fresh entry exists for the
// same detector and normalized text, otherwise runs the detector and
// stores its result. Errors are never cached.
func (c *ResultCache) CachedDetect(ctx context.Context, d Detector, in *normalize.Input) (*DetectionResult, error) {
	key := cacheKey(d.Name(), in.NormalizedText)

	if val, ok := c.store.Load(key); ok {
		entry := val.(*resultEntry)
		if time.Now().Before(entry.expiresAt) {
			c.hits.Add(1)
			return entry.result, nil
		}
		c.store.Delete(key)
	}
	c.misses.Add(1)

	result, err := d.Detect(ctx, in)
	if err != nil {
		return nil, err
	}
	c.store.Store(key, &resultEntry{
		result:    result,
		expiresAt: time.Now().Add(c.ttl),
	})
	return result, nil
}

// OptimizeCache removes expired entries, then evicts the soonest-expiring
// entries until the cache fits under maxEntries again.
func (c *ResultCache) OptimizeCache() {
	now := time.Now()
	count := 0
	c.store.Range(func(key, val any) bool {
		if now.After(val.(*resultEntry).expiresAt) {
			c.store.Delete(key)
			return true
		}
		count++
		return true
	})

	if c.maxEntries <= 0 || count <= c.maxEntries {
		return
	}
	excess := count - c.maxEntries
	c.store.Range(func(key, _ any) bool {
		c.store.Delete(key)
		excess--
		return excess > 0
	})
}

// ClearCache drops every entry.
func (c *ResultCache) ClearCache() {
	c.store.Range(func(key, _ any) bool {
		c.store.Delete(key)
		return true
	})
}

// Metrics returns hit/miss counters and the current entry count.
func (c *ResultCache) Metrics() CacheMetrics {
	m := CacheMetrics{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
	}
	c.store.Range(func(_, _ any) bool {
		m.Entries++
		return true
	})
	return m
}

// Run evicts on the given interval until ctx is cancelled.
func (c *ResultCache) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.OptimizeCache()
		}
	}
}

func cacheKey(detector, normalizedText string) string {
	sum := sha256.Sum256([]byte(normalizedText))
	return detector + ":" + hex.EncodeToString(sum[:])
}
