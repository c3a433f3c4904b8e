package engine

// diversity.go — dedupe, post-filters and diversity-aware ranking for the
// candidate set produced by the heuristic filters.

import (
	"math"
	"sort"
	"time"

	"github.com/alejandrodnm/edgebot/internal/domain"
)

// dedupe une los resultados de todos los filtros, primero por ID y luego por
// clave normalizada pregunta+fecha (el mismo mercado bajo IDs distintos).
// Preserva el índice original de cada mercado en el universo.
func (s *Selector) dedupe(snaps []domain.MarketSnapshot, results [][]int) []candidate {
	seenIdx := make(map[int]bool)
	seenKey := make(map[string]bool)

	var ordered []int
	for _, idxs := range results {
		for _, i := range idxs {
			if !seenIdx[i] {
				seenIdx[i] = true
				ordered = append(ordered, i)
			}
		}
	}
	// Orden estable por índice original antes del dedupe por clave: decide
	// determinísticamente cuál duplicado sobrevive.
	sort.Ints(ordered)

	out := make([]candidate, 0, len(ordered))
	for _, i := range ordered {
		key := snaps[i].DedupeKey()
		if seenKey[key] {
			continue
		}
		seenKey[key] = true
		out = append(out, candidate{snap: snaps[i], index: i})
	}
	return out
}

// postFilter descarta mercados fuera de la ventana de resolución y aplica la
// gate de divergencia mínima por categoría (a medio umbral: los candidatos
// entrados por drift/velocity no necesitan el edge completo del filtro de
// mispricing, pero tampoco entran gratis).
func (s *Selector) postFilter(cands []candidate, now time.Time) []candidate {
	out := make([]candidate, 0, len(cands))
	for _, c := range cands {
		days := c.snap.DaysToResolution(now)
		if days < s.cfg.MinDaysToResolution || days > s.cfg.MaxDaysToResolution {
			continue
		}
		g := gateFor(c.snap.Category)
		div := math.Abs(c.snap.YesPrice - s.prior.Base(c.snap.Category, c.snap.YesPrice))
		if div < g.minDivergence/2 {
			continue
		}
		c.edge = div
		out = append(out, c)
	}
	return out
}

// scoreAll calcula el score compuesto por candidato:
// edge × (1 + liquidityBoost + trendBoost) − volatilityPenalty.
func (s *Selector) scoreAll(cands []candidate, _ time.Time) []candidate {
	for i, c := range cands {
		liqBoost := math.Min(c.snap.Liquidity/500_000, 0.5)
		trendBoost := math.Min(c.snap.TrendMagnitude()*5, 0.3)
		volPenalty := priceVolatility(c.snap.History) * 0.5
		cands[i].score = c.edge*(1+liqBoost+trendBoost) - volPenalty
	}
	return cands
}

// priceVolatility es la desviación estándar de los precios de la ventana.
func priceVolatility(pts []domain.PricePoint) float64 {
	if len(pts) < 2 {
		return 0
	}
	var sum float64
	for _, p := range pts {
		sum += p.YesPrice
	}
	mean := sum / float64(len(pts))
	var ss float64
	for _, p := range pts {
		d := p.YesPrice - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(pts)))
}

// rank ordena por score descendente (empate: índice original menor), aplica
// la cuota máxima por categoría y la garantía de categorías prioritarias, y
// devuelve los top K snapshots.
func (s *Selector) rank(cands []candidate, _ []domain.MarketSnapshot) []domain.MarketSnapshot {
	sort.SliceStable(cands, func(a, b int) bool {
		if cands[a].score != cands[b].score {
			return cands[a].score > cands[b].score
		}
		return cands[a].index < cands[b].index
	})

	top := s.enforceDiversity(cands)
	top = s.ensurePriority(top, cands)

	out := make([]domain.MarketSnapshot, len(top))
	for i, c := range top {
		out[i] = c.snap
	}
	return out
}

// enforceDiversity construye el top K respetando la cuota máxima por
// categoría: los miembros de menor edge de una categoría saturada se demotan
// y se rellena desde el resto del universo filtrado.
func (s *Selector) enforceDiversity(ranked []candidate) []candidate {
	k := s.cfg.TopK
	if k <= 0 || len(ranked) < k {
		k = len(ranked)
	}
	maxPerCat := int(math.Ceil(s.cfg.MaxCategoryShare * float64(s.cfg.TopK)))
	if maxPerCat < 1 {
		maxPerCat = 1
	}

	counts := make(map[domain.Category]int)
	var top, overflow []candidate
	for _, c := range ranked {
		if len(top) == k {
			break
		}
		if counts[c.snap.Category] >= maxPerCat {
			overflow = append(overflow, c)
			continue
		}
		counts[c.snap.Category]++
		top = append(top, c)
	}
	// Backfill: si la cuota dejó huecos, rellenar con los demotados.
	for _, c := range overflow {
		if len(top) == k {
			break
		}
		top = append(top, c)
	}
	return top
}

// ensurePriority garantiza al menos un miembro de cada categoría prioritaria,
// sustituyendo al miembro no-prioritario más débil si la categoría falta y
// existe algún candidato de ella en el pool.
func (s *Selector) ensurePriority(top, pool []candidate) []candidate {
	for _, prio := range s.cfg.PriorityCategories {
		if hasCategory(top, prio) {
			continue
		}
		best, ok := bestOfCategory(pool, prio)
		if !ok {
			continue
		}
		if i := weakestNonPriority(top, s.cfg.PriorityCategories); i >= 0 {
			top[i] = best
		}
	}
	return top
}

func hasCategory(cands []candidate, cat domain.Category) bool {
	for _, c := range cands {
		if c.snap.Category == cat {
			return true
		}
	}
	return false
}

func bestOfCategory(cands []candidate, cat domain.Category) (candidate, bool) {
	for _, c := range cands { // cands ya viene ordenado por score
		if c.snap.Category == cat {
			return c, true
		}
	}
	return candidate{}, false
}

// weakestNonPriority devuelve el índice del miembro no prioritario con menor
// score, o -1 si todos son prioritarios.
func weakestNonPriority(top []candidate, prios []domain.Category) int {
	isPrio := make(map[domain.Category]bool, len(prios))
	for _, p := range prios {
		isPrio[p] = true
	}
	idx := -1
	for i, c := range top {
		if isPrio[c.snap.Category] {
			continue
		}
		if idx == -1 || c.score < top[idx].score {
			idx = i
		}
	}
	return idx
}
