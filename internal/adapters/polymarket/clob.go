package polymarket

// clob.go — CLOB /books adapter, implementa ports.BookProvider.
//
// FetchOrderBooks dispara múltiples batch requests en paralelo. El rate
// limiter (token bucket) en doWithRetry controla el ritmo automáticamente,
// sin semáforo explícito.

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alejandrodnm/edgebot/internal/domain"
)

const (
	booksPath = "/books"
	batchSize = 20 // máx token_ids por request a /books
)

// FetchOrderBooks obtiene los orderbooks YES para los market ids dados.
// Mercados sin token conocido se omiten del resultado sin error: el caller
// trata la ausencia como book no disponible.
func (c *Client) FetchOrderBooks(ctx context.Context, marketIDs []string) (map[string]domain.OrderBook, error) {
	if len(marketIDs) == 0 {
		return map[string]domain.OrderBook{}, nil
	}

	tokenToMarket := make(map[string]string, len(marketIDs))
	tokenIDs := make([]string, 0, len(marketIDs))
	for _, mid := range marketIDs {
		if tid, ok := c.yesTokenFor(mid); ok {
			tokenToMarket[tid] = mid
			tokenIDs = append(tokenIDs, tid)
		}
	}
	if len(tokenIDs) == 0 {
		return map[string]domain.OrderBook{}, nil
	}

	batches := splitBatches(tokenIDs, batchSize)

	type batchResult struct {
		books map[string]domain.OrderBook
		err   error
		idx   int
	}

	resultCh := make(chan batchResult, len(batches))
	var wg sync.WaitGroup

	for i, batch := range batches {
		wg.Add(1)
		go func() {
			defer wg.Done()
			books, err := c.fetchBooksBatch(ctx, batch, tokenToMarket)
			resultCh <- batchResult{books: books, err: err, idx: i}
		}()
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	result := make(map[string]domain.OrderBook, len(marketIDs))
	var firstErr error
	failed := 0

	for r := range resultCh {
		if r.err != nil {
			failed++
			if firstErr == nil {
				firstErr = fmt.Errorf("clob.FetchOrderBooks batch %d: %w", r.idx, r.err)
			}
			slog.Warn("books batch failed", "batch", r.idx, "err", r.err)
			continue
		}
		for k, v := range r.books {
			result[k] = v
		}
	}

	// Un batch fallido no tira los demás: los books ausentes caen al
	// fallback del caller. Solo el fallo total es error.
	if failed == len(batches) {
		return nil, firstErr
	}

	slog.Debug("order books fetched", "markets", len(marketIDs), "books", len(result))
	return result, nil
}

// splitBatches divide tokenIDs en slices de tamaño máximo size.
func splitBatches(tokenIDs []string, size int) [][]string {
	if size <= 0 {
		size = batchSize
	}
	batches := make([][]string, 0, (len(tokenIDs)+size-1)/size)
	for i := 0; i < len(tokenIDs); i += size {
		end := i + size
		if end > len(tokenIDs) {
			end = len(tokenIDs)
		}
		batches = append(batches, tokenIDs[i:end])
	}
	return batches
}

// fetchBooksBatch hace un POST /books para un batch de token_ids y reindexa
// el resultado por market id.
func (c *Client) fetchBooksBatch(ctx context.Context, tokenIDs []string, tokenToMarket map[string]string) (map[string]domain.OrderBook, error) {
	body := make([]orderBookRequest, len(tokenIDs))
	for i, id := range tokenIDs {
		body[i] = orderBookRequest{TokenID: id}
	}

	var resp []orderBookResponse
	url := c.clobBase + booksPath
	if err := c.post(ctx, c.booksLimiter, url, body, &resp); err != nil {
		return nil, fmt.Errorf("POST /books: %w", err)
	}

	return mapOrderBooks(resp, tokenToMarket), nil
}
