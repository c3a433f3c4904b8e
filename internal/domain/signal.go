package domain

import "time"

// ProbFloor es el límite duro de probabilidad: ninguna señal sale con
// probabilidad exactamente 0 ó 1.
const ProbFloor = 0.01

// MaxPositionSize es la fracción máxima del bankroll por trade.
const MaxPositionSize = 0.05

// Direction es la dirección de una señal. Conjunto cerrado: sin strings
// libres tipo "BUY YES" que inviten a typos.
type Direction int

const (
	NoTrade Direction = iota
	BuyYes
	BuyNo
)

// String devuelve la representación textual de la dirección.
func (d Direction) String() string {
	switch d {
	case BuyYes:
		return "BUY_YES"
	case BuyNo:
		return "BUY_NO"
	default:
		return "NO_TRADE"
	}
}

// TradeTier clasifica una señal por tamaño de exposición.
type TradeTier int

const (
	TierNoTrade TradeTier = iota
	TierProbe
	TierSmall
	TierMedium
	TierStrong
)

// String devuelve la representación textual del tier.
func (t TradeTier) String() string {
	switch t {
	case TierProbe:
		return "PROBE"
	case TierSmall:
		return "SMALL_TRADE"
	case TierMedium:
		return "MEDIUM_TRADE"
	case TierStrong:
		return "STRONG_TRADE"
	default:
		return "NO_TRADE"
	}
}

// TierFor devuelve el TradeTier según la fracción de exposición.
func TierFor(exposure float64) TradeTier {
	switch {
	case exposure >= 0.04:
		return TierStrong
	case exposure >= 0.025:
		return TierMedium
	case exposure >= 0.01:
		return TierSmall
	case exposure > 0:
		return TierProbe
	default:
		return TierNoTrade
	}
}

// Signal es el resultado final del pipeline para un mercado.
// Invariantes: Probability ∈ (ProbFloor, 1-ProbFloor);
// Exposure ∈ [0, MaxPositionSize].
type Signal struct {
	MarketID    string
	Question    string
	Category    Category
	Cluster     Cluster
	Direction   Direction
	Probability float64 // P_final sintetizada
	MarketPrice float64 // precio YES al momento del análisis
	RawEdge     float64 // Probability - MarketPrice, con signo
	NetEdge     float64 // |RawEdge| - costes de ejecución, post descuentos
	Confidence  float64 // 0-100
	Liquidity   float64 // USDC, arrastrada del snapshot para las vetos
	Exposure    float64 // fracción del bankroll
	Tier        TradeTier
	Fallback    bool   // true si el estimador falló y se usó el fallback estructural
	Reject      string // motivo de rechazo, vacío si la señal sobrevivió
	CreatedAt   time.Time
}

// SignalSet son los buckets de salida de un ciclo.
type SignalSet struct {
	Executable []Signal
	Outlook    []Signal
	Rejected   []Signal
}

// Total devuelve el número total de señales en los tres buckets.
func (s SignalSet) Total() int {
	return len(s.Executable) + len(s.Outlook) + len(s.Rejected)
}

// ExecutableExposure devuelve la suma de exposiciones ejecutables.
func (s SignalSet) ExecutableExposure() float64 {
	var sum float64
	for _, sig := range s.Executable {
		sum += sig.Exposure
	}
	return sum
}

// CycleRecord es el resumen de un ciclo, apendizado al ring buffer de
// historial (el más nuevo primero, recortado al cap configurado).
type CycleRecord struct {
	ID        string // uuid
	StartedAt time.Time
	Duration  time.Duration
	Fetched   int
	Eligible  int
	Signals   int
	Rejected  int
}

// Estimate es la salida del estimador de probabilidad externo.
type Estimate struct {
	Probability float64 // ∈ (0,1)
	Confidence  float64 // ∈ [0,100]
	Narrative   string
	Citations   []string
	Fallback    bool // true si vino del fallback estructural, no del estimador
}

// Valid devuelve true si el estimate tiene valores en rango.
func (e Estimate) Valid() bool {
	return e.Probability > 0 && e.Probability < 1 &&
		e.Confidence >= 0 && e.Confidence <= 100
}
