package domain

import "math"

// Parámetros del prior calibrado.
const (
	// bucketWidth es el ancho de los buckets de probabilidad (0-10%, 10-20%, ...).
	bucketWidth = 0.10
	// guardrailBand es la banda expandida alrededor del midpoint del bucket
	// dentro de la cual se fuerza el prior (±1 bucket completo).
	guardrailBand = 0.10
	// emaWeight es el peso del EMA adaptativo de la categoría frente al
	// midpoint estático del bucket.
	emaWeight = 0.30
	// priceWeightMin/Max: peso del precio vivo en el blend, escalado por la
	// fracción de vida del mercado ya transcurrida.
	priceWeightMin = 0.40
	priceWeightMax = 0.90
	// emaAlpha es el factor base de suavizado del EMA por categoría.
	emaAlpha = 0.15
	// emaLiquidityScale normaliza el peso de liquidez de cada muestra.
	emaLiquidityScale = 50_000.0
)

// BucketMid devuelve el midpoint del bucket de probabilidad al que pertenece
// el precio (0.05, 0.15, ... 0.95).
func BucketMid(price float64) float64 {
	if price <= 0 {
		return bucketWidth / 2
	}
	if price >= 1 {
		return 1 - bucketWidth/2
	}
	return math.Floor(price/bucketWidth)*bucketWidth + bucketWidth/2
}

// AdaptivePrior mantiene un EMA de precios realizados por categoría,
// ponderado por liquidez. Es el único estado del prior entre ciclos; el
// single-flight del scheduler garantiza que no hay escrituras concurrentes.
type AdaptivePrior struct {
	ema map[Category]float64
}

// NewAdaptivePrior crea un AdaptivePrior vacío.
func NewAdaptivePrior() *AdaptivePrior {
	return &AdaptivePrior{ema: make(map[Category]float64)}
}

// Observe incorpora un precio realizado al EMA de su categoría.
// Muestras de mercados más líquidos pesan más.
func (a *AdaptivePrior) Observe(cat Category, price, liquidity float64) {
	if price <= 0 || price >= 1 {
		return
	}
	w := liquidity / (liquidity + emaLiquidityScale)
	alpha := emaAlpha * w
	prev, ok := a.ema[cat]
	if !ok {
		a.ema[cat] = price
		return
	}
	a.ema[cat] = alpha*price + (1-alpha)*prev
}

// Base devuelve el prior base para un mercado: midpoint del bucket del
// precio, mezclado con el EMA de la categoría si existe.
func (a *AdaptivePrior) Base(cat Category, price float64) float64 {
	mid := BucketMid(price)
	ema, ok := a.ema[cat]
	if !ok {
		return mid
	}
	return (1-emaWeight)*mid + emaWeight*ema
}

// BlendTowardPrice mezcla el prior base hacia el precio vivo del mercado.
// Cuanta más vida transcurrida, más peso lleva el precio actual: el mercado
// ya incorporó la mayoría de la información.
func BlendTowardPrice(base, price, lifetimeElapsed float64) float64 {
	w := priceWeightMin + (priceWeightMax-priceWeightMin)*clamp01(lifetimeElapsed)
	return (1-w)*base + w*price
}

// Guardrail arrastra el prior hacia el midpoint de su bucket con un damping
// que crece con la magnitud de la desviación, y lo fuerza dentro de la banda
// expandida. Evita extrapolaciones desbocadas con datos finos.
func Guardrail(prior, price float64) float64 {
	mid := BucketMid(price)
	dev := prior - mid
	shrink := 1 / (1 + 4*math.Abs(dev))
	adjusted := mid + dev*shrink

	lo, hi := mid-guardrailBand, mid+guardrailBand
	return math.Min(math.Max(adjusted, lo), hi)
}
