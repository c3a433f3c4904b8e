package domain

import (
	"math"
	"strings"
	"time"
)

// HistoryWindow es la ventana deslizante de historial de precios que se
// retiene entre ciclos. Todo lo anterior se descarta en TrimHistory.
const HistoryWindow = 60 * time.Minute

// Category clasifica un mercado por temática. Es un conjunto cerrado:
// todo lo no reconocido cae en CategoryOther.
type Category string

const (
	CategoryPolitics  Category = "POLITICS"
	CategorySports    Category = "SPORTS"
	CategoryCrypto    Category = "CRYPTO"
	CategoryEconomy   Category = "ECONOMY"
	CategoryCelebrity Category = "CELEBRITY"
	CategoryScience   Category = "SCIENCE"
	CategoryOther     Category = "OTHER"
)

// ParseCategory normaliza un string arbitrario de la API a una Category.
func ParseCategory(s string) Category {
	c := Category(strings.ToUpper(strings.TrimSpace(s)))
	switch c {
	case CategoryPolitics, CategorySports, CategoryCrypto,
		CategoryEconomy, CategoryCelebrity, CategoryScience:
		return c
	}
	return CategoryOther
}

// PricePoint es una muestra puntual del historial de un mercado.
type PricePoint struct {
	At       time.Time
	YesPrice float64
	Volume   float64
}

// MarketSnapshot es el estado de un mercado binario en un instante del ciclo.
// Se crea en cada ciclo desde el fetch externo y se fusiona con el historial
// retenido del ciclo anterior.
type MarketSnapshot struct {
	ID        string
	Question  string
	Slug      string
	YesPrice  float64
	NoPrice   float64
	Liquidity float64 // USDC
	Volume24h float64 // USDC
	Category  Category
	EventID   string // agrupación de mercados del mismo evento
	Exclusive bool   // true si exactamente un mercado del evento resuelve YES
	StartDate time.Time
	EndDate   time.Time
	History   []PricePoint // ventana deslizante, más antiguo primero
}

// SumDeviation devuelve |yesPrice + noPrice - 1|.
// Una desviación grande indica datos inconsistentes: se marca, no se corrige.
func (m MarketSnapshot) SumDeviation() float64 {
	return math.Abs(m.YesPrice + m.NoPrice - 1.0)
}

// Valid devuelve true si el snapshot tiene los campos mínimos para analizarse.
func (m MarketSnapshot) Valid() bool {
	return m.ID != "" &&
		m.YesPrice > 0 && m.YesPrice < 1 &&
		!m.EndDate.IsZero()
}

// AgeHours devuelve las horas desde que el mercado empezó a cotizar.
func (m MarketSnapshot) AgeHours(now time.Time) float64 {
	if m.StartDate.IsZero() {
		return 0
	}
	h := now.Sub(m.StartDate).Hours()
	if h < 0 {
		return 0
	}
	return h
}

// DaysToResolution devuelve los días hasta que el mercado se resuelve.
// Devuelve 0 si EndDate ya pasó.
func (m MarketSnapshot) DaysToResolution(now time.Time) float64 {
	d := m.EndDate.Sub(now).Hours() / 24
	if d < 0 {
		return 0
	}
	return d
}

// LifetimeElapsed devuelve la fracción [0,1] de la vida del mercado ya
// transcurrida. Sin StartDate o EndDate devuelve 0.
func (m MarketSnapshot) LifetimeElapsed(now time.Time) float64 {
	if m.StartDate.IsZero() || m.EndDate.IsZero() || !m.EndDate.After(m.StartDate) {
		return 0
	}
	f := now.Sub(m.StartDate).Seconds() / m.EndDate.Sub(m.StartDate).Seconds()
	return clamp01(f)
}

// MergeHistory fusiona el historial retenido del ciclo anterior con el
// snapshot actual y recorta la ventana. El punto actual siempre se añade.
func (m *MarketSnapshot) MergeHistory(prev []PricePoint, now time.Time) {
	pts := append([]PricePoint(nil), prev...)
	pts = append(pts, PricePoint{At: now, YesPrice: m.YesPrice, Volume: m.Volume24h})
	m.History = TrimHistory(pts, now)
}

// TrimHistory descarta los puntos fuera de la ventana de retención.
func TrimHistory(pts []PricePoint, now time.Time) []PricePoint {
	cutoff := now.Add(-HistoryWindow)
	i := 0
	for i < len(pts) && pts[i].At.Before(cutoff) {
		i++
	}
	return pts[i:]
}

// PricePointAt devuelve el punto más cercano anterior a (now - lookback),
// o el primero disponible si no hay muestra tan antigua.
func (m MarketSnapshot) PricePointAt(now time.Time, lookback time.Duration) PricePoint {
	if len(m.History) == 0 {
		return PricePoint{At: now, YesPrice: m.YesPrice, Volume: m.Volume24h}
	}
	target := now.Add(-lookback)
	best := m.History[0]
	for _, p := range m.History {
		if p.At.After(target) {
			break
		}
		best = p
	}
	return best
}

// Drift devuelve el cambio de precio (con signo) sobre el lookback dado.
// Con historial vacío devuelve 0.
func (m MarketSnapshot) Drift(now time.Time, lookback time.Duration) float64 {
	return m.YesPrice - m.PricePointAt(now, lookback).YesPrice
}

// VolumeVelocity devuelve el ratio entre el ritmo de volumen reciente
// (últimos 10 min) y el ritmo promedio de la ventana completa.
// Devuelve 1 si no hay datos suficientes para una baseline.
func (m MarketSnapshot) VolumeVelocity(now time.Time) float64 {
	if len(m.History) < 3 {
		return 1
	}
	first, last := m.History[0], m.History[len(m.History)-1]
	span := last.At.Sub(first.At).Minutes()
	if span <= 0 {
		return 1
	}
	baseline := (last.Volume - first.Volume) / span
	if baseline <= 0 {
		return 1
	}

	recentStart := m.PricePointAt(now, 10*time.Minute)
	recentSpan := last.At.Sub(recentStart.At).Minutes()
	if recentSpan <= 0 {
		return 1
	}
	recent := (last.Volume - recentStart.Volume) / recentSpan
	return recent / baseline
}

// TrendMagnitude devuelve la magnitud del movimiento de precio solo si es
// consistente en dirección entre inicio, medio y fin de la ventana.
// Movimientos en zigzag devuelven 0.
func (m MarketSnapshot) TrendMagnitude() float64 {
	if len(m.History) < 3 {
		return 0
	}
	first := m.History[0].YesPrice
	mid := m.History[len(m.History)/2].YesPrice
	last := m.History[len(m.History)-1].YesPrice

	up := last > mid && mid > first
	down := last < mid && mid < first
	if !up && !down {
		return 0
	}
	return math.Abs(last - first)
}

// DedupeKey devuelve la clave de deduplicación por texto normalizado + fecha
// de resolución. Atrapa el mismo mercado listado bajo IDs distintos.
func (m MarketSnapshot) DedupeKey() string {
	q := strings.ToLower(m.Question)
	q = strings.Join(strings.Fields(q), " ")
	return q + "|" + m.EndDate.UTC().Format("2006-01-02")
}

// TruncateQuestion devuelve la pregunta truncada a maxLen caracteres.
// Con pregunta vacía usa el prefijo del ID como fallback.
func TruncateQuestion(question, id string, maxLen int) string {
	q := question
	if q == "" {
		if len(id) > 20 {
			q = id[:20] + "..."
		} else {
			q = id
		}
	}
	if len(q) > maxLen {
		q = q[:maxLen-3] + "..."
	}
	return q
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
