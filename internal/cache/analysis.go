package cache

// analysis.go — reuse gate for expensive probability estimates.
//
// An estimator call is worth reusing while the market price hasn't moved
// materially and the estimate isn't too old. On a miss the caller recomputes
// and overwrites the entry.

import (
	"math"
	"sync"
	"time"

	"github.com/alejandrodnm/edgebot/internal/domain"
)

const (
	// DefaultAnalysisTTL is the max age of a reusable estimate.
	DefaultAnalysisTTL = 30 * time.Minute
	// DefaultMaxPriceDeltaPct invalidates an entry when the price moved more
	// than this percentage since it was cached.
	DefaultMaxPriceDeltaPct = 5.0
)

// AnalysisEntry is a cached estimator result plus the price it was computed at.
type AnalysisEntry struct {
	MarketID string
	Price    float64
	At       time.Time
	Estimate domain.Estimate
}

// AnalysisCache is a key→entry map with last-writer-wins overwrite semantics.
type AnalysisCache struct {
	ttl         time.Duration
	maxDeltaPct float64

	mu      sync.RWMutex
	entries map[string]AnalysisEntry
}

// NewAnalysisCache creates a cache. Zero values take the defaults.
func NewAnalysisCache(ttl time.Duration, maxDeltaPct float64) *AnalysisCache {
	if ttl <= 0 {
		ttl = DefaultAnalysisTTL
	}
	if maxDeltaPct <= 0 {
		maxDeltaPct = DefaultMaxPriceDeltaPct
	}
	return &AnalysisCache{
		ttl:         ttl,
		maxDeltaPct: maxDeltaPct,
		entries:     make(map[string]AnalysisEntry),
	}
}

// Get returns the cached estimate if it is still valid for the current price:
// price delta within threshold AND age within TTL. A cached price of zero can
// never validate (division guard).
func (c *AnalysisCache) Get(id string, priceNow float64, now time.Time) (domain.Estimate, bool) {
	c.mu.RLock()
	e, ok := c.entries[id]
	c.mu.RUnlock()
	if !ok {
		return domain.Estimate{}, false
	}
	if now.Sub(e.At) > c.ttl {
		return domain.Estimate{}, false
	}
	if e.Price == 0 {
		return domain.Estimate{}, false
	}
	deltaPct := math.Abs(priceNow-e.Price) / e.Price * 100
	if deltaPct > c.maxDeltaPct {
		return domain.Estimate{}, false
	}
	return e.Estimate, true
}

// Put overwrites the entry for the market with the new price and estimate.
func (c *AnalysisCache) Put(id string, price float64, est domain.Estimate, now time.Time) {
	c.mu.Lock()
	c.entries[id] = AnalysisEntry{MarketID: id, Price: price, At: now, Estimate: est}
	c.mu.Unlock()
}

// Len returns the number of cached entries.
func (c *AnalysisCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
