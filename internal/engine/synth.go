package engine

// synth.go — blends market price, category prior and the external estimate
// into one calibrated probability per candidate.
//
// Policy is market-anchored with bounded override: the estimator is the
// primary signal, but it is dampened when it diverges wildly from the price
// (hallucination guard) and bounded around the calibrated prior. The
// calibrated prior alone is also the basis of the structural fallback when
// the estimator is unavailable.

import (
	"math"
	"sort"
	"time"

	"github.com/alejandrodnm/edgebot/internal/domain"
)

// SynthConfig contiene los parámetros del sintetizador de probabilidad.
type SynthConfig struct {
	// DivergenceDampen: si |estimador - precio| supera esto, el estimate se
	// arrastra 50% hacia el precio antes de usarse.
	DivergenceDampen float64
	// OverrideBand limita cuánto puede alejarse el estimate del prior calibrado.
	OverrideBand float64
	// MaxTimeDecay es la penalización máxima por vida transcurrida.
	MaxTimeDecay float64
	// NearCertainDecayCap limita la penalización en mercados ya casi
	// resueltos (>90% el lado dominante) para evitar flips tardíos.
	NearCertainDecayCap float64
}

// DefaultSynthConfig devuelve la configuración por defecto del sintetizador.
func DefaultSynthConfig() SynthConfig {
	return SynthConfig{
		DivergenceDampen:    0.40,
		OverrideBand:        0.25,
		MaxTimeDecay:        0.15,
		NearCertainDecayCap: 0.03,
	}
}

// Synthesizer produce la probabilidad calibrada P_final por candidato.
type Synthesizer struct {
	cfg   SynthConfig
	prior *domain.AdaptivePrior
}

// NewSynthesizer crea un Synthesizer sobre el prior adaptativo compartido.
func NewSynthesizer(cfg SynthConfig, prior *domain.AdaptivePrior) *Synthesizer {
	return &Synthesizer{cfg: cfg, prior: prior}
}

// CalibratedPrior devuelve el prior calibrado para un mercado: bucket +
// EMA de categoría, mezclado hacia el precio vivo por vida transcurrida,
// con guardrail de bucket.
func (sy *Synthesizer) CalibratedPrior(snap domain.MarketSnapshot, price float64, now time.Time) float64 {
	base := sy.prior.Base(snap.Category, price)
	blended := domain.BlendTowardPrice(base, price, snap.LifetimeElapsed(now))
	return domain.Guardrail(blended, price)
}

// Blend integra el estimate externo con el precio y el prior calibrado.
// Devuelve la probabilidad pre-normalización y pre-decay.
func (sy *Synthesizer) Blend(snap domain.MarketSnapshot, price float64, est domain.Estimate, now time.Time) float64 {
	calPrior := sy.CalibratedPrior(snap, price, now)

	p := est.Probability
	// Hallucination guard: divergencias enormes respecto al precio se
	// arrastran a medio camino antes de usarse.
	if math.Abs(p-price) > sy.cfg.DivergenceDampen {
		p += (price - p) * 0.5
	}
	// Bounded override: el estimador manda, pero dentro de una banda
	// alrededor del prior calibrado.
	lo, hi := calPrior-sy.cfg.OverrideBand, calPrior+sy.cfg.OverrideBand
	p = math.Min(math.Max(p, lo), hi)

	return domain.ClampProbability(p)
}

// Decay aplica la penalización temporal: arrastra la probabilidad hacia el
// precio según la fracción de vida transcurrida, con cap global y cap extra
// para mercados casi resueltos. Nunca cruza el precio (no invierte el edge).
func (sy *Synthesizer) Decay(p, price float64, snap domain.MarketSnapshot, now time.Time) float64 {
	elapsed := snap.LifetimeElapsed(now)
	pen := math.Min(sy.cfg.MaxTimeDecay, sy.cfg.MaxTimeDecay*elapsed*elapsed)

	dominant := math.Max(price, 1-price)
	if dominant > 0.90 {
		pen = math.Min(pen, sy.cfg.NearCertainDecayCap)
	}

	gap := p - price
	shift := math.Min(pen, math.Abs(gap))
	if gap > 0 {
		p -= shift
	} else {
		p += shift
	}
	return domain.ClampProbability(p)
}

// exclusiveMember es un candidato dentro de un grupo mutuamente excluyente.
type exclusiveMember struct {
	MarketID    string
	Probability float64
	Forced      domain.Direction
}

// NormalizeExclusive reescala las probabilidades de un grupo donde
// exactamente un resultado resuelve YES, de modo que sumen 1 (solo si la
// suma cruda es positiva). El miembro top queda forzado a BUY_YES y el
// resto a BUY_NO.
func NormalizeExclusive(members []exclusiveMember) []exclusiveMember {
	if len(members) < 2 {
		return members
	}
	var sum float64
	for _, m := range members {
		sum += m.Probability
	}
	if sum <= 0 {
		return members
	}

	out := make([]exclusiveMember, len(members))
	topIdx, topP := 0, -1.0
	for i, m := range members {
		m.Probability = m.Probability / sum
		out[i] = m
		if m.Probability > topP {
			topIdx, topP = i, m.Probability
		}
	}
	for i := range out {
		if i == topIdx {
			out[i].Forced = domain.BuyYes
		} else {
			out[i].Forced = domain.BuyNo
		}
	}
	return out
}

// normalizeGroups agrupa los análisis exclusivos por evento y aplica la
// normalización, escribiendo de vuelta probabilidades y direcciones forzadas.
// El orden de proceso de los grupos es determinista (por EventID).
func normalizeGroups(results []analysis) {
	groups := make(map[string][]int)
	for i, r := range results {
		if r.snap.Exclusive && r.snap.EventID != "" {
			groups[r.snap.EventID] = append(groups[r.snap.EventID], i)
		}
	}

	eventIDs := make([]string, 0, len(groups))
	for id := range groups {
		eventIDs = append(eventIDs, id)
	}
	sort.Strings(eventIDs)

	for _, id := range eventIDs {
		idxs := groups[id]
		if len(idxs) < 2 {
			continue
		}
		members := make([]exclusiveMember, len(idxs))
		for j, i := range idxs {
			members[j] = exclusiveMember{
				MarketID:    results[i].snap.ID,
				Probability: results[i].probability,
			}
		}
		members = NormalizeExclusive(members)
		for j, i := range idxs {
			results[i].probability = members[j].Probability
			results[i].forced = members[j].Forced
		}
	}
}
