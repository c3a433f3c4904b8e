package engine

// selector.go — narrows the market universe to a bounded candidate set.
//
// Seven independent heuristic filters run in parallel, each capped to a
// fixed top-N. Their union is deduplicated, gated, diversified and ranked
// (diversity.go). Given identical input the output is identical: ties break
// by the market's original index in the fetched universe.

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/alejandrodnm/edgebot/internal/domain"
)

// SelectorConfig contiene los parámetros del AlphaSelector.
type SelectorConfig struct {
	TopNPerFilter        int     // cap por filtro heurístico
	TopK                 int     // tamaño final del set de candidatos
	MinDaysToResolution  float64 // descartar mercados que resuelven antes
	MaxDaysToResolution  float64 // descartar mercados que resuelven después
	DriftThreshold       float64 // drift absoluto mínimo (filtro 2)
	VelocityMultiple     float64 // múltiplo de la baseline de volumen (filtro 3)
	NewMarketMaxAgeHours float64 // edad máxima para "recién listado" (filtro 5)
	MaxCategoryShare     float64 // cuota máxima de una categoría en el top K
	PriorityCategories   []domain.Category
}

// DefaultSelectorConfig devuelve la configuración por defecto del selector.
func DefaultSelectorConfig() SelectorConfig {
	return SelectorConfig{
		TopNPerFilter:        20,
		TopK:                 15,
		MinDaysToResolution:  7,
		MaxDaysToResolution:  365,
		DriftThreshold:       0.05,
		VelocityMultiple:     3.0,
		NewMarketMaxAgeHours: 24,
		MaxCategoryShare:     0.5,
		PriorityCategories:   []domain.Category{domain.CategoryPolitics, domain.CategoryCrypto},
	}
}

// categoryGate define el suelo de edge y liquidez por categoría. Categorías
// ruidosas (CELEBRITY, POLITICS) exigen más divergencia antes de entrar.
type categoryGate struct {
	minDivergence float64
	minLiquidity  float64
}

var categoryGates = map[domain.Category]categoryGate{
	domain.CategoryPolitics:  {minDivergence: 0.06, minLiquidity: 20_000},
	domain.CategoryCelebrity: {minDivergence: 0.08, minLiquidity: 25_000},
	domain.CategorySports:    {minDivergence: 0.05, minLiquidity: 15_000},
	domain.CategoryCrypto:    {minDivergence: 0.04, minLiquidity: 10_000},
	domain.CategoryEconomy:   {minDivergence: 0.04, minLiquidity: 10_000},
	domain.CategoryScience:   {minDivergence: 0.05, minLiquidity: 10_000},
	domain.CategoryOther:     {minDivergence: 0.05, minLiquidity: 10_000},
}

func gateFor(cat domain.Category) categoryGate {
	if g, ok := categoryGates[cat]; ok {
		return g
	}
	return categoryGates[domain.CategoryOther]
}

// candidate es un mercado seleccionado con su score compuesto y el índice
// original en el universo (para desempates deterministas).
type candidate struct {
	snap  domain.MarketSnapshot
	index int
	edge  float64 // divergencia precio vs prior
	score float64
}

// Selector implementa la selección de candidatos sobre el universo.
type Selector struct {
	cfg   SelectorConfig
	prior *domain.AdaptivePrior
}

// NewSelector crea un Selector. El prior se comparte con el sintetizador.
func NewSelector(cfg SelectorConfig, prior *domain.AdaptivePrior) *Selector {
	return &Selector{cfg: cfg, prior: prior}
}

// Select reduce el universo a los top K candidatos.
func (s *Selector) Select(snaps []domain.MarketSnapshot, now time.Time) []domain.MarketSnapshot {
	filters := []func([]domain.MarketSnapshot, time.Time) []int{
		s.filterMispricing,
		s.filterDrift,
		s.filterVelocity,
		s.filterBookDelta,
		s.filterNewlyListed,
		s.filterDiscovery,
		s.filterTrend,
	}

	// Filtros independientes en paralelo; cada uno devuelve índices al universo.
	results := make([][]int, len(filters))
	var wg sync.WaitGroup
	for i, f := range filters {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = f(snaps, now)
		}()
	}
	wg.Wait()

	union := s.dedupe(snaps, results)
	gated := s.postFilter(union, now)
	scored := s.scoreAll(gated, now)
	return s.rank(scored, snaps)
}

// filterMispricing: divergencia estática vs el suelo de edge y liquidez de
// la categoría.
func (s *Selector) filterMispricing(snaps []domain.MarketSnapshot, _ time.Time) []int {
	type scored struct {
		idx   int
		value float64
	}
	var hits []scored
	for i, m := range snaps {
		g := gateFor(m.Category)
		div := math.Abs(m.YesPrice - s.prior.Base(m.Category, m.YesPrice))
		if div >= g.minDivergence && m.Liquidity >= g.minLiquidity {
			hits = append(hits, scored{i, div})
		}
	}
	return topN(hits, s.cfg.TopNPerFilter, func(a scored) (int, float64) { return a.idx, a.value })
}

// filterDrift: drift absoluto de precio sobre la ventana completa.
func (s *Selector) filterDrift(snaps []domain.MarketSnapshot, now time.Time) []int {
	type scored struct {
		idx   int
		value float64
	}
	var hits []scored
	for i, m := range snaps {
		d := math.Abs(m.Drift(now, domain.HistoryWindow))
		if d >= s.cfg.DriftThreshold {
			hits = append(hits, scored{i, d})
		}
	}
	return topN(hits, s.cfg.TopNPerFilter, func(a scored) (int, float64) { return a.idx, a.value })
}

// filterVelocity: ritmo de volumen muy por encima de su baseline.
func (s *Selector) filterVelocity(snaps []domain.MarketSnapshot, now time.Time) []int {
	type scored struct {
		idx   int
		value float64
	}
	var hits []scored
	for i, m := range snaps {
		v := m.VolumeVelocity(now)
		if v >= s.cfg.VelocityMultiple {
			hits = append(hits, scored{i, v})
		}
	}
	return topN(hits, s.cfg.TopNPerFilter, func(a scored) (int, float64) { return a.idx, a.value })
}

// filterBookDelta: delta de precio a 5 minutos escalado por tier de liquidez.
// Un movimiento brusco en un mercado líquido vale más que el mismo movimiento
// en uno fino.
func (s *Selector) filterBookDelta(snaps []domain.MarketSnapshot, now time.Time) []int {
	type scored struct {
		idx   int
		value float64
	}
	var hits []scored
	for i, m := range snaps {
		d := math.Abs(m.Drift(now, 5*time.Minute)) * domain.LiquidityMultiplier(m.Liquidity)
		if d >= 0.01 {
			hits = append(hits, scored{i, d})
		}
	}
	return topN(hits, s.cfg.TopNPerFilter, func(a scored) (int, float64) { return a.idx, a.value })
}

// filterNewlyListed: mercados recién listados, los más jóvenes primero.
func (s *Selector) filterNewlyListed(snaps []domain.MarketSnapshot, now time.Time) []int {
	type scored struct {
		idx   int
		value float64
	}
	var hits []scored
	for i, m := range snaps {
		age := m.AgeHours(now)
		if m.StartDate.IsZero() || age > s.cfg.NewMarketMaxAgeHours {
			continue
		}
		hits = append(hits, scored{i, s.cfg.NewMarketMaxAgeHours - age})
	}
	return topN(hits, s.cfg.TopNPerFilter, func(a scored) (int, float64) { return a.idx, a.value })
}

// filterDiscovery: ranking de volumen normalizado por edad. Detecta mercados
// que acumulan volumen desproporcionado para lo jóvenes que son.
func (s *Selector) filterDiscovery(snaps []domain.MarketSnapshot, now time.Time) []int {
	type scored struct {
		idx   int
		value float64
	}
	var hits []scored
	for i, m := range snaps {
		if m.Volume24h <= 0 {
			continue
		}
		age := math.Max(m.AgeHours(now), 1)
		hits = append(hits, scored{i, m.Volume24h / age})
	}
	return topN(hits, s.cfg.TopNPerFilter, func(a scored) (int, float64) { return a.idx, a.value })
}

// filterTrend: magnitud de tendencia multi-punto consistente.
func (s *Selector) filterTrend(snaps []domain.MarketSnapshot, _ time.Time) []int {
	type scored struct {
		idx   int
		value float64
	}
	var hits []scored
	for i, m := range snaps {
		if t := m.TrendMagnitude(); t > 0 {
			hits = append(hits, scored{i, t})
		}
	}
	return topN(hits, s.cfg.TopNPerFilter, func(a scored) (int, float64) { return a.idx, a.value })
}

// topN ordena por valor descendente (empate: índice menor) y devuelve los
// primeros n índices.
func topN[T any](hits []T, n int, get func(T) (int, float64)) []int {
	sort.SliceStable(hits, func(a, b int) bool {
		ia, va := get(hits[a])
		ib, vb := get(hits[b])
		if va != vb {
			return va > vb
		}
		return ia < ib
	})
	if len(hits) > n {
		hits = hits[:n]
	}
	out := make([]int, len(hits))
	for i, h := range hits {
		out[i], _ = get(h)
	}
	return out
}
