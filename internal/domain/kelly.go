package domain

import "math"

// Parámetros de sizing. Los umbrales de liquidez y confianza son los
// mismos contra los que se validan los tiers de señal.
const (
	// KellyEntryBuffer: p debe superar price + buffer para apostar algo.
	KellyEntryBuffer = 0.02
	// DefaultSpread se asume cuando no hay orderbook disponible.
	DefaultSpread = 0.02
	// HorizonHalfLifeDays controla cuánto decae el edge con la distancia
	// a la resolución: a 180 días el descuento es 50%.
	HorizonHalfLifeDays = 180.0
)

// KellyFraction calcula la fracción óptima de bankroll para una apuesta
// binaria al precio dado.
//
// Fórmula: f* = (p·b - q) / b, con b = (1-price)/price, q = 1-p.
// Devuelve 0 si p no supera price + buffer (sin edge suficiente no hay bet).
func KellyFraction(p, price, buffer float64) float64 {
	if price <= 0 || price >= 1 {
		return 0
	}
	if p <= price+buffer {
		return 0
	}
	b := (1 - price) / price
	q := 1 - p
	f := (p*b - q) / b
	if f < 0 {
		return 0
	}
	return f
}

// ExecutionCost devuelve el coste de ejecución estimado: medio spread
// observado más el slippage fijo. Con spread 0 (book no disponible) usa
// DefaultSpread.
func ExecutionCost(spread, slippage float64) float64 {
	if spread <= 0 {
		spread = DefaultSpread
	}
	return spread/2 + slippage
}

// HorizonDiscount devuelve el factor [0,1] que descuenta el edge según los
// días hasta resolución. La fiabilidad del forecast degrada con la distancia.
func HorizonDiscount(daysToResolution float64) float64 {
	if daysToResolution <= 0 {
		return 1
	}
	return 1 / (1 + daysToResolution/HorizonHalfLifeDays)
}

// LiquidityMultiplier devuelve el multiplicador de exposición por tier de
// liquidez: mercados ilíquidos no se tocan, los muy líquidos se potencian.
func LiquidityMultiplier(liquidity float64) float64 {
	switch {
	case liquidity < 10_000:
		return 0
	case liquidity < 25_000:
		return 0.5
	case liquidity < 250_000:
		return 1.0
	default:
		return 1.25
	}
}

// ConfidenceFloor devuelve la exposición mínima para señales de alta
// convicción, evitando que un edge pequeño con confianza alta se redondee
// a cero. Devuelve 0 si no aplica ningún suelo.
func ConfidenceFloor(confidence, netEdge float64) float64 {
	switch {
	case confidence >= 90 && netEdge >= 0.005:
		return 0.02
	case confidence >= 80 && netEdge >= 0.01:
		return 0.01
	default:
		return 0
	}
}

// ClampExposure limita la exposición al rango [0, MaxPositionSize].
func ClampExposure(f float64) float64 {
	return math.Min(math.Max(f, 0), MaxPositionSize)
}

// ClampProbability limita una probabilidad al rango abierto
// (ProbFloor, 1-ProbFloor). Nunca devuelve exactamente 0 ni 1.
func ClampProbability(p float64) float64 {
	return math.Min(math.Max(p, ProbFloor), 1-ProbFloor)
}
