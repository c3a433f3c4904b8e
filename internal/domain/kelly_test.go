package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKellyFraction_PositiveEdge(t *testing.T) {
	// p=0.72, price=0.60 → b=0.667, f* = (0.72*0.667 - 0.28) / 0.667 ≈ 0.30
	f := KellyFraction(0.72, 0.60, KellyEntryBuffer)
	assert.InDelta(t, 0.30, f, 0.01)
}

func TestKellyFraction_InsideBuffer(t *testing.T) {
	// p apenas por encima del precio pero dentro del buffer → sin apuesta
	assert.Equal(t, 0.0, KellyFraction(0.61, 0.60, KellyEntryBuffer))
	assert.Equal(t, 0.0, KellyFraction(0.62, 0.60, KellyEntryBuffer))
}

func TestKellyFraction_NoEdge(t *testing.T) {
	assert.Equal(t, 0.0, KellyFraction(0.50, 0.60, KellyEntryBuffer))
	assert.Equal(t, 0.0, KellyFraction(0.60, 0.60, KellyEntryBuffer))
}

func TestKellyFraction_DegeneratePrices(t *testing.T) {
	assert.Equal(t, 0.0, KellyFraction(0.72, 0, KellyEntryBuffer))
	assert.Equal(t, 0.0, KellyFraction(0.72, 1, KellyEntryBuffer))
	assert.Equal(t, 0.0, KellyFraction(0.72, 1.2, KellyEntryBuffer))
}

func TestExecutionCost(t *testing.T) {
	// spread 1% + slippage 0.5% → 0.5% + 0.5% = 1%
	assert.InDelta(t, 0.010, ExecutionCost(0.01, 0.005), 1e-9)

	// sin book: usa DefaultSpread 2%
	assert.InDelta(t, 0.015, ExecutionCost(0, 0.005), 1e-9)
}

func TestHorizonDiscount(t *testing.T) {
	assert.Equal(t, 1.0, HorizonDiscount(0))
	assert.InDelta(t, 0.5, HorizonDiscount(180), 1e-9)
	// monótono decreciente
	assert.Greater(t, HorizonDiscount(30), HorizonDiscount(90))
	assert.Greater(t, HorizonDiscount(90), HorizonDiscount(365))
}

func TestLiquidityMultiplier_Tiers(t *testing.T) {
	assert.Equal(t, 0.0, LiquidityMultiplier(5_000))
	assert.Equal(t, 0.5, LiquidityMultiplier(15_000))
	assert.Equal(t, 1.0, LiquidityMultiplier(100_000))
	assert.Equal(t, 1.25, LiquidityMultiplier(500_000))
}

func TestConfidenceFloor(t *testing.T) {
	assert.Equal(t, 0.02, ConfidenceFloor(95, 0.006))
	assert.Equal(t, 0.01, ConfidenceFloor(85, 0.015))
	// edge demasiado pequeño aunque la confianza sea alta
	assert.Equal(t, 0.0, ConfidenceFloor(95, 0.001))
	assert.Equal(t, 0.0, ConfidenceFloor(70, 0.05))
}

func TestClampExposure(t *testing.T) {
	assert.Equal(t, 0.0, ClampExposure(-0.1))
	assert.Equal(t, 0.03, ClampExposure(0.03))
	assert.Equal(t, MaxPositionSize, ClampExposure(0.20))
}

func TestClampProbability_NeverZeroOrOne(t *testing.T) {
	assert.Equal(t, ProbFloor, ClampProbability(0))
	assert.Equal(t, ProbFloor, ClampProbability(-5))
	assert.Equal(t, 1-ProbFloor, ClampProbability(1))
	assert.Equal(t, 1-ProbFloor, ClampProbability(2))
	assert.Equal(t, 0.5, ClampProbability(0.5))
}
