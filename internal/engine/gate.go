package engine

// gate.go — final veto rules and trade-tier bucketing. Ordered checks,
// first match wins; a global exposure cap rescales executables afterwards.

import (
	"math"

	"github.com/alejandrodnm/edgebot/internal/domain"
)

// Motivos de rechazo. Strings estables: se persisten y se muestran.
const (
	RejectTailMarket    = "tail market skipped"
	RejectLowLiquidity  = "liquidity below floor"
	RejectUltraHighOdds = "ultra-high odds, edge too small"
	RejectLowNetEdge    = "net edge below floor"
)

// GateConfig contiene los umbrales del pipeline de rechazo.
type GateConfig struct {
	TailLow           float64 // odds de mercado por debajo ⇒ tail
	TailHigh          float64 // odds de mercado por encima ⇒ tail
	TailMinConfidence float64 // confianza mínima para operar un tail market
	MinLiquidity      float64 // suelo de liquidez en USDC
	UltraHighOdds     float64 // YES price por encima ⇒ guard de odds extremas
	UltraMinAbsEdge   float64 // edge absoluto mínimo en odds extremas
	MinNetEdge        float64 // suelo de net edge
	MinExposure       float64 // exposición mínima para ser ejecutable
	MinConfidence     float64 // confianza mínima para ser ejecutable
	ExposureCeiling   float64 // techo global de exposición ejecutable sumada
}

// DefaultGateConfig devuelve los umbrales por defecto.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		TailLow:           0.03,
		TailHigh:          0.97,
		TailMinConfidence: 90,
		MinLiquidity:      10_000,
		UltraHighOdds:     0.95,
		UltraMinAbsEdge:   0.02,
		MinNetEdge:        0.05,
		MinExposure:       0.005,
		MinConfidence:     60,
		ExposureCeiling:   1.0,
	}
}

// Gate implementa el RejectionPipeline y el clasificador de tiers.
type Gate struct {
	cfg GateConfig
}

// NewGate crea un Gate.
func NewGate(cfg GateConfig) *Gate {
	return &Gate{cfg: cfg}
}

// Classify separa las señales en ejecutables, outlook y rechazadas, y aplica
// el techo global de exposición sobre las ejecutables.
func (g *Gate) Classify(signals []domain.Signal) domain.SignalSet {
	var set domain.SignalSet
	for _, s := range signals {
		if reason := g.veto(s); reason != "" {
			s.Reject = reason
			set.Rejected = append(set.Rejected, s)
			continue
		}
		if s.Exposure >= g.cfg.MinExposure && s.Confidence >= g.cfg.MinConfidence {
			set.Executable = append(set.Executable, s)
		} else {
			set.Outlook = append(set.Outlook, s)
		}
	}
	g.applyCeiling(&set)
	return set
}

// veto aplica las vetos en orden; devuelve el primer motivo que aplica.
func (g *Gate) veto(s domain.Signal) string {
	if (s.MarketPrice < g.cfg.TailLow || s.MarketPrice > g.cfg.TailHigh) &&
		s.Confidence < g.cfg.TailMinConfidence {
		return RejectTailMarket
	}
	if s.Liquidity < g.cfg.MinLiquidity {
		return RejectLowLiquidity
	}
	if s.MarketPrice > g.cfg.UltraHighOdds && math.Abs(s.RawEdge) < g.cfg.UltraMinAbsEdge {
		return RejectUltraHighOdds
	}
	if s.NetEdge < g.cfg.MinNetEdge {
		return RejectLowNetEdge
	}
	return ""
}

// applyCeiling reescala linealmente todas las exposiciones ejecutables si su
// suma supera el techo del bankroll. Preserva el ranking relativo.
func (g *Gate) applyCeiling(set *domain.SignalSet) {
	sum := set.ExecutableExposure()
	if g.cfg.ExposureCeiling <= 0 || sum <= g.cfg.ExposureCeiling {
		return
	}
	scale := g.cfg.ExposureCeiling / sum
	for i := range set.Executable {
		set.Executable[i].Exposure *= scale
		set.Executable[i].Tier = domain.TierFor(set.Executable[i].Exposure)
	}
}
