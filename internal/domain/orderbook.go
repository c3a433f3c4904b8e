package domain

import (
	"strconv"
	"time"
)

// OrderBook representa el libro de órdenes del token YES de un mercado.
type OrderBook struct {
	MarketID string
	Bids     []BookEntry // ordenados mayor a menor precio
	Asks     []BookEntry // ordenados menor a mayor precio
}

// BookEntry es un nivel de precio en el orderbook.
type BookEntry struct {
	Price float64
	Size  float64
}

// BestBid devuelve el mejor precio de compra (mayor bid).
// Devuelve 0 si el book está vacío.
func (ob OrderBook) BestBid() float64 {
	if len(ob.Bids) == 0 {
		return 0
	}
	return ob.Bids[0].Price
}

// BestAsk devuelve el mejor precio de venta (menor ask).
// Devuelve 0 si el book está vacío.
func (ob OrderBook) BestAsk() float64 {
	if len(ob.Asks) == 0 {
		return 0
	}
	return ob.Asks[0].Price
}

// Midpoint devuelve el punto medio entre best bid y best ask.
func (ob OrderBook) Midpoint() float64 {
	bid := ob.BestBid()
	ask := ob.BestAsk()
	if bid == 0 || ask == 0 {
		return 0
	}
	return (bid + ask) / 2
}

// Spread devuelve el spread del book (ask - bid).
func (ob OrderBook) Spread() float64 {
	bid := ob.BestBid()
	ask := ob.BestAsk()
	if bid == 0 || ask == 0 {
		return 0
	}
	return ask - bid
}

// DepthUSDC devuelve el valor en USDC (size × price) de todas las órdenes
// dentro de maxSpread respecto al midpoint. Es la profundidad ejecutable real.
func (ob OrderBook) DepthUSDC(maxSpread float64) float64 {
	mid := ob.Midpoint()
	if mid == 0 {
		return 0
	}
	var total float64
	for _, b := range ob.Bids {
		if mid-b.Price <= maxSpread {
			total += b.Size * b.Price
		}
	}
	for _, a := range ob.Asks {
		if a.Price-mid <= maxSpread {
			total += a.Size * a.Price
		}
	}
	return total
}

// CachedQuote es la cotización derivada de un orderbook, guardada por el
// PriceCache y sobrescrita en cada tick de polling.
type CachedQuote struct {
	MarketID string
	Bid      float64
	Ask      float64
	Mid      float64
	Spread   float64
	Depth    float64 // USDC dentro de ±0.05 del mid
	At       time.Time
}

// QuoteFromBook construye la CachedQuote a partir de un orderbook.
func QuoteFromBook(book OrderBook, at time.Time) CachedQuote {
	return CachedQuote{
		MarketID: book.MarketID,
		Bid:      book.BestBid(),
		Ask:      book.BestAsk(),
		Mid:      book.Midpoint(),
		Spread:   book.Spread(),
		Depth:    book.DepthUSDC(0.05),
		At:       at,
	}
}

// Fresh devuelve true si la cotización tiene menos de maxAge.
// Cotizaciones viejas obligan al caller a usar su fallback.
func (q CachedQuote) Fresh(now time.Time, maxAge time.Duration) bool {
	return q.Mid > 0 && now.Sub(q.At) < maxAge
}

// ParsePrice convierte un string de precio a float64.
// Usado en el mapping de la API.
func ParsePrice(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
