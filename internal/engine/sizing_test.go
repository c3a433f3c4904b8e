package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/edgebot/internal/domain"
)

func TestSizer_Size_BuyYes(t *testing.T) {
	now := time.Now()
	snap := testSnap("m1", 0.60, now)
	snap.EndDate = now // resolución inmediata: sin descuento de horizonte

	sz := NewSizer(DefaultSizingConfig())
	sig := sz.Size(analysis{
		snap:        snap,
		price:       0.60,
		spread:      0.01,
		probability: 0.72,
		estimate:    domain.Estimate{Probability: 0.72, Confidence: 80},
	}, now)

	assert.Equal(t, domain.BuyYes, sig.Direction)
	assert.InDelta(t, 0.12, sig.RawEdge, 1e-9)
	// coste = spread/2 + slippage = 0.005 + 0.005 = 0.01 → net = 0.11
	assert.InDelta(t, 0.11, sig.NetEdge, 1e-9)
	// Kelly(0.72, 0.60) ≈ 0.30, liquidez 50k → ×1.0, cap duro en 5%
	assert.Equal(t, domain.MaxPositionSize, sig.Exposure)
	assert.Equal(t, domain.TierStrong, sig.Tier)
}

func TestSizer_Size_BuyNoMirror(t *testing.T) {
	now := time.Now()
	snap := testSnap("m1", 0.60, now)
	snap.EndDate = now

	sz := NewSizer(DefaultSizingConfig())
	sig := sz.Size(analysis{
		snap:        snap,
		price:       0.60,
		spread:      0.01,
		probability: 0.48,
		estimate:    domain.Estimate{Probability: 0.48, Confidence: 80},
	}, now)

	assert.Equal(t, domain.BuyNo, sig.Direction)
	assert.InDelta(t, -0.12, sig.RawEdge, 1e-9)
	assert.InDelta(t, 0.11, sig.NetEdge, 1e-9, "el net edge usa la magnitud, no el signo")
	assert.Greater(t, sig.Exposure, 0.0)
}

func TestSizer_Size_HorizonDiscount(t *testing.T) {
	now := time.Now()
	near := testSnap("m1", 0.60, now)
	near.EndDate = now.Add(7 * 24 * time.Hour)
	far := testSnap("m2", 0.60, now)
	far.EndDate = now.Add(300 * 24 * time.Hour)

	sz := NewSizer(DefaultSizingConfig())
	r := analysis{price: 0.60, spread: 0.01, probability: 0.72,
		estimate: domain.Estimate{Confidence: 80}}

	rNear, rFar := r, r
	rNear.snap, rFar.snap = near, far

	sigNear := sz.Size(rNear, now)
	sigFar := sz.Size(rFar, now)
	assert.Greater(t, sigNear.NetEdge, sigFar.NetEdge,
		"mismo edge bruto, resolución más lejana → net edge menor")
}

func TestSizer_Size_IlliquidNoPosition(t *testing.T) {
	now := time.Now()
	snap := testSnap("m1", 0.60, now)
	snap.Liquidity = 5_000 // por debajo del suelo de liquidez

	sz := NewSizer(DefaultSizingConfig())
	sig := sz.Size(analysis{
		snap:        snap,
		price:       0.60,
		probability: 0.72,
		estimate:    domain.Estimate{Confidence: 95},
	}, now)

	// Ni siquiera el suelo de convicción aplica sin liquidez
	assert.Equal(t, 0.0, sig.Exposure)
	assert.Equal(t, domain.TierNoTrade, sig.Tier)
}

func TestSizer_Size_ConfidenceFloor(t *testing.T) {
	now := time.Now()
	snap := testSnap("m1", 0.60, now)
	snap.EndDate = now.Add(7 * 24 * time.Hour)

	sz := NewSizer(DefaultSizingConfig())
	// Edge pequeño: Kelly dentro del buffer → 0, pero confianza 95 y
	// net edge > 0.005 activan el suelo de 2%
	sig := sz.Size(analysis{
		snap:        snap,
		price:       0.60,
		spread:      0.002,
		probability: 0.615,
		estimate:    domain.Estimate{Confidence: 95},
	}, now)

	require.Equal(t, domain.BuyYes, sig.Direction)
	assert.Equal(t, 0.02, sig.Exposure)
}

func TestSizer_Size_NoEdgeNoTrade(t *testing.T) {
	now := time.Now()
	snap := testSnap("m1", 0.60, now)

	sz := NewSizer(DefaultSizingConfig())
	sig := sz.Size(analysis{
		snap:        snap,
		price:       0.60,
		probability: 0.60,
		estimate:    domain.Estimate{Confidence: 50},
	}, now)

	assert.Equal(t, domain.NoTrade, sig.Direction)
	assert.Equal(t, 0.0, sig.Exposure)
}

func TestSizer_Size_ForcedDirectionWins(t *testing.T) {
	now := time.Now()
	snap := testSnap("m1", 0.60, now)

	sz := NewSizer(DefaultSizingConfig())
	// Normalización de grupo forzó BUY_NO aunque p > precio
	sig := sz.Size(analysis{
		snap:        snap,
		price:       0.60,
		probability: 0.65,
		forced:      domain.BuyNo,
		estimate:    domain.Estimate{Confidence: 80},
	}, now)

	assert.Equal(t, domain.BuyNo, sig.Direction)
}
