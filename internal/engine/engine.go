package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/edgebot/internal/cache"
	"github.com/alejandrodnm/edgebot/internal/domain"
	"github.com/alejandrodnm/edgebot/internal/ports"
	"github.com/alejandrodnm/edgebot/internal/resilience"
)

// noSignalThreshold: ciclos consecutivos sin candidatos antes de levantar el
// flag de observabilidad. No detiene el scheduler.
const noSignalThreshold = 5

// Config contiene la configuración del engine.
type Config struct {
	Interval         time.Duration // intervalo entre ciclos
	Workers          int           // goroutines de análisis (0 = NumCPU*2)
	EstimatorTimeout time.Duration
	BreakerThreshold int
	BreakerCooldown  time.Duration
	HistoryCap       int // cap del ring buffer de ciclos
	DryRun           bool

	Selector SelectorConfig
	Synth    SynthConfig
	Sizing   SizingConfig
	Gate     GateConfig

	PollInterval   time.Duration // polling de books del PriceCache
	QuoteFreshness time.Duration
	AnalysisTTL    time.Duration
	MaxPriceDelta  float64 // % de movimiento de precio que invalida el cache de análisis
}

// DefaultConfig devuelve una configuración completa con defaults sensatos.
func DefaultConfig() Config {
	return Config{
		Interval:         2 * time.Minute,
		EstimatorTimeout: 25 * time.Second,
		BreakerThreshold: 3,
		BreakerCooldown:  2 * time.Minute,
		HistoryCap:       200,
		Selector:         DefaultSelectorConfig(),
		Synth:            DefaultSynthConfig(),
		Sizing:           DefaultSizingConfig(),
		Gate:             DefaultGateConfig(),
		PollInterval:     cache.DefaultPollInterval,
		QuoteFreshness:   cache.DefaultFreshness,
		AnalysisTTL:      cache.DefaultAnalysisTTL,
		MaxPriceDelta:    cache.DefaultMaxPriceDeltaPct,
	}
}

// Engine orquesta el pipeline completo de un ciclo:
// selector → synthesizer → sizing → dampener → gate → sink/storage.
// Es el contexto explícito que comparten las etapas: caches, prior
// adaptativo e historial viven aquí, no en globals.
type Engine struct {
	cfg       Config
	markets   ports.MarketDataProvider
	estimator ports.ProbabilityEstimator
	sink      ports.SignalSink
	storage   ports.Storage // puede ser nil (dry-run)

	prices   *cache.PriceCache
	analyses *cache.AnalysisCache
	breaker  *resilience.Breaker
	prior    *domain.AdaptivePrior
	selector *Selector
	synth    *Synthesizer
	sizer    *Sizer
	gate     *Gate
	sched    *Scheduler

	// Estado entre ciclos. Solo lo toca el ciclo en curso: el single-flight
	// del scheduler elimina las carreras intra-proceso.
	histories   map[string][]domain.PricePoint
	cycleLog    []domain.CycleRecord // el más nuevo primero
	emptyCycles int
	noSignal    bool
	lastSet     domain.SignalSet
	seenExec    map[string]bool // para alertar solo señales ejecutables nuevas
	pollDone    <-chan struct{} // cerrado cuando el poller de precios muere
}

// New crea un Engine con todas las dependencias inyectadas.
func New(
	cfg Config,
	markets ports.MarketDataProvider,
	books ports.BookProvider,
	estimator ports.ProbabilityEstimator,
	sink ports.SignalSink,
	storage ports.Storage,
) *Engine {
	prior := domain.NewAdaptivePrior()
	e := &Engine{
		cfg:       cfg,
		markets:   markets,
		estimator: estimator,
		sink:      sink,
		storage:   storage,
		prices:    cache.NewPriceCache(books, cfg.PollInterval, cfg.QuoteFreshness),
		analyses:  cache.NewAnalysisCache(cfg.AnalysisTTL, cfg.MaxPriceDelta),
		breaker:   resilience.NewBreaker(cfg.BreakerThreshold, cfg.BreakerCooldown),
		prior:     prior,
		selector:  NewSelector(cfg.Selector, prior),
		synth:     NewSynthesizer(cfg.Synth, prior),
		sizer:     NewSizer(cfg.Sizing),
		gate:      NewGate(cfg.Gate),
		histories: make(map[string][]domain.PricePoint),
		seenExec:  make(map[string]bool),
	}
	e.sched = NewScheduler(e.runCycle)
	return e
}

// Run ejecuta el loop de ciclos hasta que el contexto se cancele.
// Con DryRun ejecuta exactamente un ciclo.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("engine starting",
		"interval", e.cfg.Interval,
		"dry_run", e.cfg.DryRun,
		"workers", e.cfg.Workers,
	)

	if err := e.sched.TriggerAndWait(ctx); err != nil {
		slog.Error("cycle failed", "err", err)
		if e.cfg.DryRun {
			return err
		}
	}
	if e.cfg.DryRun {
		return nil
	}

	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("engine stopped")
			return nil
		case <-ticker.C:
			if err := e.sched.TriggerAndWait(ctx); err != nil {
				slog.Error("cycle failed", "err", err)
			}
		}
	}
}

// Trigger encola un ciclo fuera del ticker (p. ej. bajo demanda).
func (e *Engine) Trigger(ctx context.Context) <-chan error {
	return e.sched.Trigger(ctx)
}

// RunOnce ejecuta exactamente un ciclo vía el scheduler y devuelve el set.
// El single-flight del scheduler hace segura la lectura de lastSet.
func (e *Engine) RunOnce(ctx context.Context) (domain.SignalSet, error) {
	if err := e.sched.TriggerAndWait(ctx); err != nil {
		return domain.SignalSet{}, err
	}
	return e.lastSet, nil
}

// NoSignal devuelve el flag de observabilidad de ciclos vacíos.
func (e *Engine) NoSignal() bool {
	return e.noSignal
}

// History devuelve una copia del ring buffer de ciclos, el más nuevo primero.
func (e *Engine) History() []domain.CycleRecord {
	return append([]domain.CycleRecord(nil), e.cycleLog...)
}

// runCycle es la CycleFunc del scheduler: ejecuta el ciclo y notifica/persiste.
func (e *Engine) runCycle(ctx context.Context) error {
	set, err := e.cycle(ctx)
	if err == nil {
		e.lastSet = set
	}
	return err
}

// cycle ejecuta el pipeline completo:
// fetch → merge history → select → analyze → normalize → decay → size →
// dampen → gate → emit/persist.
func (e *Engine) cycle(ctx context.Context) (domain.SignalSet, error) {
	start := time.Now()
	now := start

	snaps, err := e.markets.FetchSnapshots(ctx)
	if err != nil {
		return domain.SignalSet{}, fmt.Errorf("engine.cycle: fetch snapshots: %w", err)
	}

	eligible := e.prepare(snaps, now)
	candidates := e.selector.Select(eligible, now)
	e.trackEmpty(len(candidates))

	e.watchCandidates(ctx, candidates)

	results := e.analyzeConcurrent(ctx, candidates, now, e.cfg.Workers)
	normalizeGroups(results)

	signals := make([]domain.Signal, len(results))
	for i, r := range results {
		r.probability = e.synth.Decay(r.probability, r.price, r.snap, now)
		signals[i] = e.sizer.Size(r, now)
	}

	dampened := Dampen(signals)
	set := e.gate.Classify(dampened)

	rec := domain.CycleRecord{
		ID:        uuid.NewString(),
		StartedAt: start,
		Duration:  time.Since(start),
		Fetched:   len(snaps),
		Eligible:  len(candidates),
		Signals:   len(set.Executable) + len(set.Outlook),
		Rejected:  len(set.Rejected),
	}
	e.appendCycle(rec)
	e.alertNewExecutables(set.Executable)

	if err := e.sink.Emit(ctx, rec, set); err != nil {
		slog.Warn("sink error", "err", err)
	}
	if e.storage != nil {
		if err := e.storage.SaveCycle(ctx, rec, set); err != nil {
			slog.Warn("storage error", "err", err)
		}
	}

	slog.Info("cycle complete",
		"fetched", rec.Fetched,
		"eligible", rec.Eligible,
		"executable", len(set.Executable),
		"outlook", len(set.Outlook),
		"rejected", rec.Rejected,
		"duration", rec.Duration.Round(time.Millisecond),
	)
	return set, nil
}

// prepare valida snapshots, fusiona el historial retenido y alimenta el
// prior adaptativo. Los snapshots malformados se descartan (data quality);
// una desviación yes+no se marca, no se corrige.
func (e *Engine) prepare(snaps []domain.MarketSnapshot, now time.Time) []domain.MarketSnapshot {
	eligible := make([]domain.MarketSnapshot, 0, len(snaps))
	kept := make(map[string][]domain.PricePoint, len(snaps))

	for _, m := range snaps {
		if !m.Valid() {
			slog.Debug("snapshot dropped", "market", m.ID, "err", domain.ErrDataQuality)
			continue
		}
		if dev := m.SumDeviation(); dev > 0.02 {
			slog.Warn("price pair deviates from 1", "market", m.ID, "deviation", dev)
		}
		m.MergeHistory(e.histories[m.ID], now)
		kept[m.ID] = m.History
		e.prior.Observe(m.Category, m.YesPrice, m.Liquidity)
		eligible = append(eligible, m)
	}

	// Mercados desaparecidos del universo sueltan su historial.
	e.histories = kept
	return eligible
}

// watchCandidates apunta el PriceCache a los candidatos del ciclo. Arranca el
// polling la primera vez y lo relanza si el loop anterior murió con su
// contexto; un poller muerto dejaría todos los precios cayendo al fallback.
func (e *Engine) watchCandidates(ctx context.Context, candidates []domain.MarketSnapshot) {
	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID
	}
	if e.pollDone == nil {
		e.pollDone = e.prices.StartPolling(ctx, ids)
		return
	}
	select {
	case <-e.pollDone:
		e.pollDone = e.prices.StartPolling(ctx, ids)
	default:
		e.prices.SetWatched(ids)
	}
}

// trackEmpty mantiene el flag de no-signal: cinco o más ciclos seguidos sin
// candidatos lo levantan; cualquier ciclo con candidatos lo baja.
func (e *Engine) trackEmpty(candidates int) {
	if candidates > 0 {
		e.emptyCycles = 0
		e.noSignal = false
		return
	}
	e.emptyCycles++
	if e.emptyCycles >= noSignalThreshold && !e.noSignal {
		e.noSignal = true
		slog.Warn("no-signal flag raised", "empty_cycles", e.emptyCycles)
	}
}

// appendCycle apendiza al ring buffer (el más nuevo primero) y recorta al cap.
func (e *Engine) appendCycle(rec domain.CycleRecord) {
	e.cycleLog = append([]domain.CycleRecord{rec}, e.cycleLog...)
	if e.cfg.HistoryCap > 0 && len(e.cycleLog) > e.cfg.HistoryCap {
		e.cycleLog = e.cycleLog[:e.cfg.HistoryCap]
	}
}

// alertNewExecutables registra alertas para señales ejecutables no vistas en
// el ciclo anterior.
func (e *Engine) alertNewExecutables(execs []domain.Signal) {
	seen := make(map[string]bool, len(execs))
	for _, s := range execs {
		seen[s.MarketID] = true
		if e.seenExec[s.MarketID] {
			continue
		}
		slog.Warn("NEW EXECUTABLE SIGNAL",
			"market", domain.TruncateQuestion(s.Question, s.MarketID, 60),
			"direction", s.Direction.String(),
			"probability", fmt.Sprintf("%.3f", s.Probability),
			"price", fmt.Sprintf("%.3f", s.MarketPrice),
			"net_edge", fmt.Sprintf("%.2f%%", s.NetEdge*100),
			"exposure", fmt.Sprintf("%.2f%%", s.Exposure*100),
			"tier", s.Tier.String(),
		)
	}
	e.seenExec = seen
}
