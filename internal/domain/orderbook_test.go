package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testBook() OrderBook {
	return OrderBook{
		MarketID: "m1",
		Bids:     []BookEntry{{Price: 0.59, Size: 100}, {Price: 0.55, Size: 500}},
		Asks:     []BookEntry{{Price: 0.61, Size: 120}, {Price: 0.70, Size: 300}},
	}
}

func TestOrderBook_BestPrices(t *testing.T) {
	ob := testBook()
	assert.Equal(t, 0.59, ob.BestBid())
	assert.Equal(t, 0.61, ob.BestAsk())
	assert.InDelta(t, 0.60, ob.Midpoint(), 1e-9)
	assert.InDelta(t, 0.02, ob.Spread(), 1e-9)
}

func TestOrderBook_Empty(t *testing.T) {
	var ob OrderBook
	assert.Equal(t, 0.0, ob.BestBid())
	assert.Equal(t, 0.0, ob.Midpoint())
	assert.Equal(t, 0.0, ob.Spread())
	assert.Equal(t, 0.0, ob.DepthUSDC(0.05))
}

func TestOrderBook_DepthUSDC(t *testing.T) {
	ob := testBook()
	// mid=0.60, maxSpread=0.05: entra 0.59 (bid), 0.61 (ask); 0.55 y 0.70 fuera
	want := 100*0.59 + 120*0.61
	assert.InDelta(t, want, ob.DepthUSDC(0.05), 1e-9)
}

func TestCachedQuote_Fresh(t *testing.T) {
	now := time.Now()
	q := QuoteFromBook(testBook(), now.Add(-5*time.Second))

	assert.True(t, q.Fresh(now, 12*time.Second))
	assert.False(t, q.Fresh(now, 3*time.Second))

	// book vacío → mid 0 → nunca fresca
	empty := QuoteFromBook(OrderBook{}, now)
	assert.False(t, empty.Fresh(now, time.Minute))
}

func TestParsePrice(t *testing.T) {
	assert.Equal(t, 0.65, ParsePrice("0.65"))
	assert.Equal(t, 0.0, ParsePrice("garbage"))
}
