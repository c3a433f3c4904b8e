package cache

// price.go — near-real-time quote cache over the CLOB books endpoint.
//
// A background poller refreshes quotes for all watched markets on a fixed
// interval. Failures leave the previous quote in place: the next tick is the
// retry. Callers that find a stale quote fall back to the slower price they
// already have (the snapshot price).

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alejandrodnm/edgebot/internal/domain"
	"github.com/alejandrodnm/edgebot/internal/ports"
)

const (
	// DefaultPollInterval is how often the poller refreshes all watched books.
	DefaultPollInterval = 4 * time.Second
	// DefaultFreshness is the max quote age before callers must fall back.
	DefaultFreshness = 12 * time.Second

	// pollBatch is how many market ids go into one provider call.
	pollBatch = 50
	// pollTimeout bounds a full poll tick.
	pollTimeout = 10 * time.Second
)

// PriceCache keeps the latest order-book quote per watched market.
// Entries are overwritten on every poll tick, last writer wins.
type PriceCache struct {
	books    ports.BookProvider
	interval time.Duration
	maxAge   time.Duration

	mu      sync.RWMutex
	watched []string
	quotes  map[string]domain.CachedQuote
	raw     map[string]domain.OrderBook
}

// NewPriceCache creates a cache polling via the given provider.
// Zero durations take the defaults.
func NewPriceCache(books ports.BookProvider, interval, maxAge time.Duration) *PriceCache {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if maxAge <= 0 {
		maxAge = DefaultFreshness
	}
	return &PriceCache{
		books:    books,
		interval: interval,
		maxAge:   maxAge,
		quotes:   make(map[string]domain.CachedQuote),
		raw:      make(map[string]domain.OrderBook),
	}
}

// StartPolling begins the fixed-interval refresh loop for the given ids.
// It returns immediately; the loop stops when ctx is cancelled, closing the
// returned channel so the owner can relaunch it with a live context.
func (c *PriceCache) StartPolling(ctx context.Context, ids []string) <-chan struct{} {
	c.SetWatched(ids)

	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		c.pollOnce(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.pollOnce(ctx)
			}
		}
	}()
	return done
}

// SetWatched replaces the set of market ids the poller refreshes.
// Called each cycle with the current candidate universe.
func (c *PriceCache) SetWatched(ids []string) {
	c.mu.Lock()
	c.watched = append([]string(nil), ids...)
	c.mu.Unlock()
}

// Price returns the cached mid if fresh, else the caller's fallback.
func (c *PriceCache) Price(id string, fallback float64) float64 {
	c.mu.RLock()
	q, ok := c.quotes[id]
	c.mu.RUnlock()
	if !ok || !q.Fresh(time.Now(), c.maxAge) {
		return fallback
	}
	return q.Mid
}

// Quote returns the cached quote and whether it is fresh.
func (c *PriceCache) Quote(id string) (domain.CachedQuote, bool) {
	c.mu.RLock()
	q, ok := c.quotes[id]
	c.mu.RUnlock()
	if !ok {
		return domain.CachedQuote{}, false
	}
	return q, q.Fresh(time.Now(), c.maxAge)
}

// Book returns the raw cached order book, or nil if never fetched.
// Staleness is the caller's problem here: a stale book still beats no book
// for spread estimation.
func (c *PriceCache) Book(id string) *domain.OrderBook {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if ob, ok := c.raw[id]; ok {
		cp := ob
		return &cp
	}
	return nil
}

// pollOnce refreshes all watched books, batching concurrently.
// Batch failures are logged and swallowed: stale entries stay as they are
// and no retry happens within the tick.
func (c *PriceCache) pollOnce(ctx context.Context) {
	c.mu.RLock()
	ids := append([]string(nil), c.watched...)
	c.mu.RUnlock()
	if len(ids) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, pollTimeout)
	defer cancel()

	var wg sync.WaitGroup
	for start := 0; start < len(ids); start += pollBatch {
		end := min(start+pollBatch, len(ids))
		batch := ids[start:end]

		wg.Add(1)
		go func() {
			defer wg.Done()
			books, err := c.books.FetchOrderBooks(ctx, batch)
			if err != nil {
				slog.Debug("price poll batch failed", "markets", len(batch), "err", err)
				return
			}
			c.store(books)
		}()
	}
	wg.Wait()
}

// store overwrites quotes and raw books for the fetched markets.
func (c *PriceCache) store(books map[string]domain.OrderBook) {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, ob := range books {
		c.raw[id] = ob
		c.quotes[id] = domain.QuoteFromBook(ob, now)
	}
}
