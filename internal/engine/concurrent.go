package engine

// concurrent.go — worker pool para el análisis paralelo de candidatos.
//
// La consulta al estimador es la parte cara del ciclo (una llamada externa
// por candidato); hacerlas en paralelo reduce el ciclo de decenas de
// segundos a unos pocos. Los resultados se escriben por índice para que el
// orden de salida sea idéntico al de entrada.

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/alejandrodnm/edgebot/internal/domain"
)

// analysis es el estado por candidato que fluye por el pipeline del ciclo.
type analysis struct {
	snap        domain.MarketSnapshot
	price       float64 // mid del cache si fresco, si no el precio del snapshot
	spread      float64 // spread observado, 0 si no hay book
	estimate    domain.Estimate
	probability float64 // P en evolución: blend → normalización → decay
	forced      domain.Direction
}

// analyzeConcurrent ejecuta price lookup + estimate + blend para cada
// candidato usando un worker pool. workers <= 0 usa NumCPU × 2.
func (e *Engine) analyzeConcurrent(ctx context.Context, candidates []domain.MarketSnapshot, now time.Time, workers int) []analysis {
	if workers <= 0 {
		workers = runtime.NumCPU() * 2
	}
	if workers > len(candidates) && len(candidates) > 0 {
		workers = len(candidates)
	}

	results := make([]analysis, len(candidates))
	workCh := make(chan int, len(candidates))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range workCh {
				results[idx] = e.analyzeOne(ctx, candidates[idx], now)
			}
		}()
	}

	for i := range candidates {
		workCh <- i
	}
	close(workCh)
	wg.Wait()

	return results
}

// analyzeOne resuelve precio, spread y estimate para un candidato y calcula
// la probabilidad pre-normalización.
func (e *Engine) analyzeOne(ctx context.Context, snap domain.MarketSnapshot, now time.Time) analysis {
	r := analysis{snap: snap}

	r.price = e.prices.Price(snap.ID, snap.YesPrice)
	if book := e.prices.Book(snap.ID); book != nil {
		r.spread = book.Spread()
	}

	r.estimate = e.estimate(ctx, snap, r.price, now)
	r.probability = e.synth.Blend(snap, r.price, r.estimate, now)
	return r
}
