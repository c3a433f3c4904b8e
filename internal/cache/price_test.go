package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/edgebot/internal/domain"
)

// stubBooks implementa ports.BookProvider devolviendo books fijos.
type stubBooks struct {
	mu    sync.Mutex
	books map[string]domain.OrderBook
	calls int
	err   error
}

func (s *stubBooks) FetchOrderBooks(_ context.Context, ids []string) (map[string]domain.OrderBook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := make(map[string]domain.OrderBook, len(ids))
	for _, id := range ids {
		if ob, ok := s.books[id]; ok {
			out[id] = ob
		}
	}
	return out, nil
}

func bookFor(id string, bid, ask float64) domain.OrderBook {
	return domain.OrderBook{
		MarketID: id,
		Bids:     []domain.BookEntry{{Price: bid, Size: 100}},
		Asks:     []domain.BookEntry{{Price: ask, Size: 100}},
	}
}

func TestPriceCache_FreshQuote(t *testing.T) {
	provider := &stubBooks{books: map[string]domain.OrderBook{
		"m1": bookFor("m1", 0.59, 0.61),
	}}
	c := NewPriceCache(provider, time.Hour, 12*time.Second)
	c.SetWatched([]string{"m1"})
	c.pollOnce(context.Background())

	assert.InDelta(t, 0.60, c.Price("m1", 0.99), 1e-9)

	q, fresh := c.Quote("m1")
	require.True(t, fresh)
	assert.InDelta(t, 0.02, q.Spread, 1e-9)
}

func TestPriceCache_FallbackWhenUnknown(t *testing.T) {
	c := NewPriceCache(&stubBooks{}, time.Hour, 12*time.Second)
	assert.Equal(t, 0.42, c.Price("never-seen", 0.42))
}

func TestPriceCache_FallbackWhenStale(t *testing.T) {
	provider := &stubBooks{books: map[string]domain.OrderBook{
		"m1": bookFor("m1", 0.59, 0.61),
	}}
	// maxAge minúsculo: la quote caduca de inmediato
	c := NewPriceCache(provider, time.Hour, time.Nanosecond)
	c.SetWatched([]string{"m1"})
	c.pollOnce(context.Background())
	time.Sleep(time.Millisecond)

	assert.Equal(t, 0.42, c.Price("m1", 0.42))
}

func TestPriceCache_ErrorKeepsPreviousQuote(t *testing.T) {
	provider := &stubBooks{books: map[string]domain.OrderBook{
		"m1": bookFor("m1", 0.59, 0.61),
	}}
	c := NewPriceCache(provider, time.Hour, time.Minute)
	c.SetWatched([]string{"m1"})
	c.pollOnce(context.Background())

	// El provider empieza a fallar; la quote anterior sobrevive
	provider.mu.Lock()
	provider.err = assert.AnError
	provider.mu.Unlock()
	c.pollOnce(context.Background())

	assert.InDelta(t, 0.60, c.Price("m1", 0.99), 1e-9)
}

func TestPriceCache_Book(t *testing.T) {
	provider := &stubBooks{books: map[string]domain.OrderBook{
		"m1": bookFor("m1", 0.59, 0.61),
	}}
	c := NewPriceCache(provider, time.Hour, time.Minute)
	c.SetWatched([]string{"m1"})
	c.pollOnce(context.Background())

	ob := c.Book("m1")
	require.NotNil(t, ob)
	assert.Equal(t, 0.59, ob.BestBid())

	assert.Nil(t, c.Book("never-seen"))
}

func TestPriceCache_SetWatchedReplaces(t *testing.T) {
	provider := &stubBooks{books: map[string]domain.OrderBook{
		"m1": bookFor("m1", 0.59, 0.61),
		"m2": bookFor("m2", 0.30, 0.32),
	}}
	c := NewPriceCache(provider, time.Hour, time.Minute)

	c.SetWatched([]string{"m1"})
	c.pollOnce(context.Background())
	c.SetWatched([]string{"m2"})
	c.pollOnce(context.Background())

	// m1 sigue cacheado (stale-ok), m2 fue añadido
	assert.NotNil(t, c.Book("m1"))
	assert.NotNil(t, c.Book("m2"))
}

func TestPriceCache_StartPollingSignalsExit(t *testing.T) {
	provider := &stubBooks{books: map[string]domain.OrderBook{
		"m1": bookFor("m1", 0.59, 0.61),
	}}
	c := NewPriceCache(provider, time.Hour, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := c.StartPolling(ctx, []string{"m1"})
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("el poller no terminó tras cancelar el contexto")
	}
}
