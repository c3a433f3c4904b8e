package engine

// sizing.go — converts a calibrated probability into edge, direction,
// exposure and trade tier.

import (
	"math"
	"time"

	"github.com/alejandrodnm/edgebot/internal/domain"
)

// SizingConfig contiene los parámetros del motor de edge y sizing.
type SizingConfig struct {
	// Slippage fijo estimado por ejecución, sumado a medio spread.
	Slippage float64
	// KellyBuffer: p debe superar price + buffer para que Kelly apueste.
	KellyBuffer float64
}

// DefaultSizingConfig devuelve la configuración por defecto de sizing.
func DefaultSizingConfig() SizingConfig {
	return SizingConfig{
		Slippage:    0.005,
		KellyBuffer: domain.KellyEntryBuffer,
	}
}

// Sizer implementa el EdgeAndSizingEngine.
type Sizer struct {
	cfg SizingConfig
}

// NewSizer crea un Sizer.
func NewSizer(cfg SizingConfig) *Sizer {
	return &Sizer{cfg: cfg}
}

// Size produce la señal completa para un candidato analizado. El dampening
// por cluster y las vetos finales se aplican después, sobre el conjunto.
func (sz *Sizer) Size(r analysis, now time.Time) domain.Signal {
	p := r.probability
	price := r.price

	rawEdge := p - price

	direction := r.forced
	if direction == domain.NoTrade {
		if rawEdge > 0 {
			direction = domain.BuyYes
		} else if rawEdge < 0 {
			direction = domain.BuyNo
		}
	}

	cost := domain.ExecutionCost(r.spread, sz.cfg.Slippage)
	netEdge := math.Abs(rawEdge) - cost
	if netEdge < 0 {
		netEdge = 0
	}
	// El forecast pierde fiabilidad con la distancia a la resolución.
	netEdge *= domain.HorizonDiscount(r.snap.DaysToResolution(now))

	exposure := sz.exposure(direction, p, price, netEdge, r)

	return domain.Signal{
		MarketID:    r.snap.ID,
		Question:    r.snap.Question,
		Category:    r.snap.Category,
		Cluster:     domain.ClusterFor(r.snap.Category),
		Direction:   direction,
		Probability: p,
		MarketPrice: price,
		RawEdge:     rawEdge,
		NetEdge:     netEdge,
		Confidence:  r.estimate.Confidence,
		Liquidity:   r.snap.Liquidity,
		Exposure:    exposure,
		Tier:        domain.TierFor(exposure),
		Fallback:    r.estimate.Fallback,
		CreatedAt:   now,
	}
}

// exposure calcula la fracción Kelly en la dirección de la señal, escalada
// por tier de liquidez, con suelo por convicción y cap duro por trade.
func (sz *Sizer) exposure(dir domain.Direction, p, price, netEdge float64, r analysis) float64 {
	var kelly float64
	switch dir {
	case domain.BuyYes:
		kelly = domain.KellyFraction(p, price, sz.cfg.KellyBuffer)
	case domain.BuyNo:
		kelly = domain.KellyFraction(1-p, 1-price, sz.cfg.KellyBuffer)
	default:
		return 0
	}

	mult := domain.LiquidityMultiplier(r.snap.Liquidity)
	if mult == 0 {
		// Sin liquidez no hay suelo que valga: la posición no se llenaría.
		return 0
	}

	f := kelly * mult
	if floor := domain.ConfidenceFloor(r.estimate.Confidence, netEdge); floor > f {
		f = floor
	}
	return domain.ClampExposure(f)
}
