package engine

// dampen.go — correlation-aware exposure dampening.
//
// Signals in the same correlation cluster within one cycle are mostly the
// same bet. Processing order is fixed (descending net edge, ties by market
// id) so the strongest signal in each cluster keeps full weight and the
// result is deterministic. Implemented as a pure fold: input untouched, new
// slice out.

import (
	"sort"

	"github.com/alejandrodnm/edgebot/internal/domain"
)

// Dampen devuelve una nueva lista con el descuento por cluster aplicado a
// exposición y edges, ordenada por net edge descendente.
func Dampen(signals []domain.Signal) []domain.Signal {
	out := append([]domain.Signal(nil), signals...)
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].NetEdge != out[b].NetEdge {
			return out[a].NetEdge > out[b].NetEdge
		}
		return out[a].MarketID < out[b].MarketID
	})

	counts := make(map[domain.Cluster]int)
	for i, s := range out {
		f := domain.DampenFactor(counts[s.Cluster])
		counts[s.Cluster]++
		if f == 1.0 {
			continue
		}
		s.Exposure *= f
		s.RawEdge *= f
		s.NetEdge *= f
		s.Tier = domain.TierFor(s.Exposure)
		out[i] = s
	}
	return out
}
