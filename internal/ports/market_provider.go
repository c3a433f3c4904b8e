package ports

import (
	"context"

	"github.com/alejandrodnm/edgebot/internal/domain"
)

// MarketDataProvider obtiene los snapshots crudos del universo de mercados.
type MarketDataProvider interface {
	// FetchSnapshots devuelve los mercados binarios activos con precio,
	// liquidez, volumen y fechas. Pagina automáticamente hasta obtener
	// todos los resultados.
	FetchSnapshots(ctx context.Context) ([]domain.MarketSnapshot, error)
}
