package engine

// fallback.go — estimate resolution: analysis cache, then the external
// estimator behind the circuit breaker, then the structural fallback.

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/alejandrodnm/edgebot/internal/domain"
	"github.com/alejandrodnm/edgebot/internal/ports"
	"github.com/alejandrodnm/edgebot/internal/resilience"
)

// fallbackConfidence es la confianza asignada al estimate estructural.
// Baja a propósito: nunca supera los suelos de convicción del sizing.
const fallbackConfidence = 25

// estimate resuelve el estimate para un candidato. El cache evita llamadas
// redundantes cuando el precio no se movió; el breaker corta al estimador
// tras fallos consecutivos; el fallback estructural nunca falla.
func (e *Engine) estimate(ctx context.Context, snap domain.MarketSnapshot, price float64, now time.Time) domain.Estimate {
	if est, ok := e.analyses.Get(snap.ID, price, now); ok {
		return est
	}

	var est domain.Estimate
	err := e.breaker.Do(ctx, e.cfg.EstimatorTimeout, func(ctx context.Context) error {
		var callErr error
		est, callErr = e.estimator.Estimate(ctx, ports.EstimateRequest{
			Snapshot: snap,
			Book:     e.prices.Book(snap.ID),
		})
		if callErr != nil {
			return callErr
		}
		if !est.Valid() {
			return domain.ErrEstimator
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, resilience.ErrOpen) {
			slog.Debug("estimator short-circuited", "market", snap.ID)
		} else {
			slog.Debug("estimator failed, using structural fallback",
				"market", snap.ID, "err", err)
		}
		// El fallback no se cachea: en cuanto el estimador se recupere
		// (el cooldown del breaker es más corto que el TTL del cache),
		// el siguiente ciclo vuelve a consultarlo.
		return e.structuralEstimate(snap, price, now)
	}

	e.analyses.Put(snap.ID, price, est, now)
	return est
}

// structuralEstimate deriva una probabilidad conservadora sin estimador:
// el prior calibrado con un tilt por el momentum reciente del precio.
func (e *Engine) structuralEstimate(snap domain.MarketSnapshot, price float64, now time.Time) domain.Estimate {
	p := e.synth.CalibratedPrior(snap, price, now)

	// Momentum tilt: media distancia del drift de 30 min, acotado.
	drift := snap.Drift(now, 30*time.Minute)
	p += math.Max(math.Min(drift*0.5, 0.05), -0.05)

	return domain.Estimate{
		Probability: domain.ClampProbability(p),
		Confidence:  fallbackConfidence,
		Narrative:   "structural fallback: calibrated prior + momentum",
		Fallback:    true,
	}
}
