package ports

import (
	"context"

	"github.com/alejandrodnm/edgebot/internal/domain"
)

// BookProvider obtiene orderbooks del CLOB usando el endpoint batch.
type BookProvider interface {
	// FetchOrderBooks devuelve los orderbooks YES para los market ids dados.
	// Internamente agrupa los IDs en batches para minimizar requests.
	FetchOrderBooks(ctx context.Context, marketIDs []string) (map[string]domain.OrderBook, error)
}
