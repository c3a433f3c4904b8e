package ports

import (
	"context"

	"github.com/alejandrodnm/edgebot/internal/domain"
)

// EstimateRequest es el contexto que recibe el estimador: el mercado y el
// orderbook cacheado si existe. El estimador es una caja negra — cómo razona
// no es asunto del core.
type EstimateRequest struct {
	Snapshot domain.MarketSnapshot
	Book     *domain.OrderBook // nil si el cache no lo tiene
}

// ProbabilityEstimator devuelve una probabilidad calibrada para un mercado.
// Puede fallar o agotar el timeout: el core cae al estimate estructural y
// marca la señal como fallback.
type ProbabilityEstimator interface {
	Estimate(ctx context.Context, req EstimateRequest) (domain.Estimate, error)
}
