package engine_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/edgebot/internal/domain"
	"github.com/alejandrodnm/edgebot/internal/engine"
	"github.com/alejandrodnm/edgebot/internal/ports"
)

// --- mocks ---

type mockMarkets struct {
	snaps []domain.MarketSnapshot
	err   error
}

func (m *mockMarkets) FetchSnapshots(_ context.Context) ([]domain.MarketSnapshot, error) {
	return m.snaps, m.err
}

type mockBooks struct {
	books map[string]domain.OrderBook

	mu    sync.Mutex
	calls int
}

func (m *mockBooks) FetchOrderBooks(_ context.Context, ids []string) (map[string]domain.OrderBook, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	out := make(map[string]domain.OrderBook)
	for _, id := range ids {
		if ob, ok := m.books[id]; ok {
			out[id] = ob
		}
	}
	return out, nil
}

func (m *mockBooks) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockEstimator struct {
	estimates map[string]domain.Estimate
	err       error
	failFirst bool // solo la primera llamada falla

	mu    sync.Mutex
	calls int
}

func (m *mockEstimator) Estimate(_ context.Context, req ports.EstimateRequest) (domain.Estimate, error) {
	m.mu.Lock()
	m.calls++
	n := m.calls
	m.mu.Unlock()
	if m.failFirst && n == 1 {
		return domain.Estimate{}, errors.New("estimator down")
	}
	if m.err != nil {
		return domain.Estimate{}, m.err
	}
	if est, ok := m.estimates[req.Snapshot.ID]; ok {
		return est, nil
	}
	return domain.Estimate{Probability: 0.5, Confidence: 50}, nil
}

func (m *mockEstimator) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockSink struct {
	rec domain.CycleRecord
	set domain.SignalSet
}

func (m *mockSink) Emit(_ context.Context, rec domain.CycleRecord, set domain.SignalSet) error {
	m.rec = rec
	m.set = set
	return nil
}

type mockStorage struct {
	recs []domain.CycleRecord
}

func (m *mockStorage) SaveCycle(_ context.Context, rec domain.CycleRecord, _ domain.SignalSet) error {
	m.recs = append(m.recs, rec)
	return nil
}

func (m *mockStorage) RecentCycles(_ context.Context, _ int) ([]domain.CycleRecord, error) {
	return m.recs, nil
}

func (m *mockStorage) Close() error { return nil }

// --- helpers ---

// executableMarket construye un mercado que atraviesa el pipeline completo:
// mispriced para el selector, líquido, ventana de resolución válida.
func executableMarket(id string, now time.Time) domain.MarketSnapshot {
	return domain.MarketSnapshot{
		ID:        id,
		Question:  "Will " + id + " resolve yes?",
		YesPrice:  0.60, // bucket mid 0.65 → divergencia 0.05
		NoPrice:   0.40,
		Liquidity: 50_000,
		Volume24h: 100_000,
		Category:  domain.CategoryCrypto,
		StartDate: now.Add(-30 * 24 * time.Hour),
		EndDate:   now.Add(30 * 24 * time.Hour),
	}
}

func bookAround(id string, mid float64) domain.OrderBook {
	return domain.OrderBook{
		MarketID: id,
		Bids:     []domain.BookEntry{{Price: mid - 0.01, Size: 200}},
		Asks:     []domain.BookEntry{{Price: mid + 0.01, Size: 200}},
	}
}

func newTestEngine(markets *mockMarkets, books *mockBooks, est *mockEstimator, sink *mockSink, store *mockStorage) *engine.Engine {
	cfg := engine.DefaultConfig()
	cfg.EstimatorTimeout = time.Second
	return engine.New(cfg, markets, books, est, sink, store)
}

// --- tests ---

func TestEngine_RunOnce_FullPipeline(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	now := time.Now()

	markets := &mockMarkets{snaps: []domain.MarketSnapshot{executableMarket("m1", now)}}
	books := &mockBooks{books: map[string]domain.OrderBook{"m1": bookAround("m1", 0.60)}}
	est := &mockEstimator{estimates: map[string]domain.Estimate{
		"m1": {Probability: 0.72, Confidence: 80},
	}}
	sink := &mockSink{}
	store := &mockStorage{}

	eng := newTestEngine(markets, books, est, sink, store)
	set, err := eng.RunOnce(ctx)
	require.NoError(t, err)

	require.Len(t, set.Executable, 1)
	sig := set.Executable[0]
	assert.Equal(t, "m1", sig.MarketID)
	assert.Equal(t, domain.BuyYes, sig.Direction)
	assert.False(t, sig.Fallback)
	assert.Greater(t, sig.NetEdge, 0.05)
	assert.Equal(t, domain.ClusterCrypto, sig.Cluster)

	// El sink y el storage recibieron el mismo ciclo
	assert.Equal(t, 1, sink.rec.Fetched)
	assert.Equal(t, 1, sink.rec.Eligible)
	require.Len(t, store.recs, 1)
	assert.Equal(t, sink.rec.ID, store.recs[0].ID)
	assert.NotEmpty(t, sink.rec.ID)

	// Historial en memoria
	require.Len(t, eng.History(), 1)
}

func TestEngine_RunOnce_Invariants(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	now := time.Now()

	var snaps []domain.MarketSnapshot
	estimates := make(map[string]domain.Estimate)
	probs := []float64{0.15, 0.45, 0.72, 0.88, 0.99}
	for i, p := range probs {
		id := string(rune('a' + i))
		snaps = append(snaps, executableMarket(id, now))
		estimates[id] = domain.Estimate{Probability: p, Confidence: 85}
	}

	eng := newTestEngine(
		&mockMarkets{snaps: snaps},
		&mockBooks{},
		&mockEstimator{estimates: estimates},
		&mockSink{}, &mockStorage{},
	)
	set, err := eng.RunOnce(ctx)
	require.NoError(t, err)

	all := append(append([]domain.Signal{}, set.Executable...), set.Outlook...)
	all = append(all, set.Rejected...)
	require.NotEmpty(t, all)
	for _, s := range all {
		assert.Greater(t, s.Probability, 0.0, "market %s", s.MarketID)
		assert.Less(t, s.Probability, 1.0, "market %s", s.MarketID)
		assert.GreaterOrEqual(t, s.Exposure, 0.0, "market %s", s.MarketID)
		assert.LessOrEqual(t, s.Exposure, domain.MaxPositionSize+1e-9, "market %s", s.MarketID)
	}
	assert.LessOrEqual(t, set.ExecutableExposure(), 1.0+1e-9)
}

func TestEngine_RunOnce_EstimatorFailureFallsBack(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	now := time.Now()

	eng := newTestEngine(
		&mockMarkets{snaps: []domain.MarketSnapshot{executableMarket("m1", now)}},
		&mockBooks{},
		&mockEstimator{err: errors.New("estimator down")},
		&mockSink{}, &mockStorage{},
	)
	set, err := eng.RunOnce(ctx)
	require.NoError(t, err, "el fallo del estimador nunca tumba el ciclo")

	require.Equal(t, 1, set.Total())
	var sig domain.Signal
	switch {
	case len(set.Rejected) == 1:
		sig = set.Rejected[0]
	case len(set.Outlook) == 1:
		sig = set.Outlook[0]
	default:
		sig = set.Executable[0]
	}
	assert.True(t, sig.Fallback, "la señal viene del fallback estructural")
	assert.Empty(t, set.Executable, "confianza de fallback nunca alcanza el umbral ejecutable")
}

func TestEngine_RunOnce_FetchErrorPropagates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eng := newTestEngine(
		&mockMarkets{err: errors.New("gamma 500")},
		&mockBooks{}, &mockEstimator{}, &mockSink{}, &mockStorage{},
	)
	_, err := eng.RunOnce(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gamma 500")
}

func TestEngine_RunOnce_DropsInvalidSnapshots(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	now := time.Now()

	bad := executableMarket("bad", now)
	bad.YesPrice = 0 // malformado

	sink := &mockSink{}
	eng := newTestEngine(
		&mockMarkets{snaps: []domain.MarketSnapshot{bad}},
		&mockBooks{}, &mockEstimator{}, sink, &mockStorage{},
	)
	set, err := eng.RunOnce(ctx)
	require.NoError(t, err)

	assert.Equal(t, 0, set.Total())
	assert.Equal(t, 1, sink.rec.Fetched)
	assert.Equal(t, 0, sink.rec.Eligible)
}

func TestEngine_NoSignalFlag(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eng := newTestEngine(
		&mockMarkets{}, // universo vacío
		&mockBooks{}, &mockEstimator{}, &mockSink{}, &mockStorage{},
	)

	for i := 0; i < 4; i++ {
		_, err := eng.RunOnce(ctx)
		require.NoError(t, err)
		assert.False(t, eng.NoSignal())
	}
	_, err := eng.RunOnce(ctx)
	require.NoError(t, err)
	assert.True(t, eng.NoSignal(), "cinco ciclos vacíos seguidos levantan el flag")
}

func TestEngine_NilStorageIsFine(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	now := time.Now()

	cfg := engine.DefaultConfig()
	cfg.EstimatorTimeout = time.Second
	eng := engine.New(cfg,
		&mockMarkets{snaps: []domain.MarketSnapshot{executableMarket("m1", now)}},
		&mockBooks{},
		&mockEstimator{estimates: map[string]domain.Estimate{
			"m1": {Probability: 0.72, Confidence: 80},
		}},
		&mockSink{},
		nil,
	)

	_, err := eng.RunOnce(ctx)
	require.NoError(t, err)
}

func TestEngine_EstimatorRecoveryRequeriedNextCycle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	now := time.Now()

	est := &mockEstimator{
		estimates: map[string]domain.Estimate{
			"m1": {Probability: 0.72, Confidence: 80},
		},
		failFirst: true,
	}
	eng := newTestEngine(
		&mockMarkets{snaps: []domain.MarketSnapshot{executableMarket("m1", now)}},
		&mockBooks{books: map[string]domain.OrderBook{"m1": bookAround("m1", 0.60)}},
		est, &mockSink{}, &mockStorage{},
	)

	// Primer ciclo: el estimador falla, la señal sale del fallback estructural.
	set, err := eng.RunOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, set.Total())
	assert.Empty(t, set.Executable)
	assert.Equal(t, 1, est.callCount())

	// Segundo ciclo: el estimador recuperado se reconsulta; el fallback del
	// ciclo anterior no quedó cacheado.
	set, err = eng.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, est.callCount(), "el estimador recuperado se vuelve a llamar")
	require.Len(t, set.Executable, 1)
	assert.False(t, set.Executable[0].Fallback)
	assert.InDelta(t, 0.72, set.Executable[0].Probability, 0.05)
}

func TestEngine_RepeatedCycleReusesAnalysis(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	now := time.Now()

	est := &mockEstimator{estimates: map[string]domain.Estimate{
		"m1": {Probability: 0.72, Confidence: 80},
	}}
	eng := newTestEngine(
		&mockMarkets{snaps: []domain.MarketSnapshot{executableMarket("m1", now)}},
		&mockBooks{books: map[string]domain.OrderBook{"m1": bookAround("m1", 0.60)}},
		est, &mockSink{}, &mockStorage{},
	)

	first, err := eng.RunOnce(ctx)
	require.NoError(t, err)
	require.Len(t, first.Executable, 1)
	require.Equal(t, 1, est.callCount())

	// Mismo snapshot, precio sin mover, dentro del TTL: el cache responde.
	second, err := eng.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, est.callCount(), "sin nueva llamada al estimador")

	require.Len(t, second.Executable, 1)
	a, b := first.Executable[0], second.Executable[0]
	assert.Equal(t, a.Direction, b.Direction)
	assert.Equal(t, a.Tier, b.Tier)
	assert.InDelta(t, a.Probability, b.Probability, 1e-6)
	assert.InDelta(t, a.NetEdge, b.NetEdge, 1e-6)
	assert.InDelta(t, a.Exposure, b.Exposure, 1e-6)
}

func TestEngine_PricePollerRestartsAfterContextEnd(t *testing.T) {
	now := time.Now()

	books := &mockBooks{books: map[string]domain.OrderBook{"m1": bookAround("m1", 0.60)}}
	eng := newTestEngine(
		&mockMarkets{snaps: []domain.MarketSnapshot{executableMarket("m1", now)}},
		books,
		&mockEstimator{estimates: map[string]domain.Estimate{
			"m1": {Probability: 0.72, Confidence: 80},
		}},
		&mockSink{}, &mockStorage{},
	)

	ctx1, cancel1 := context.WithCancel(context.Background())
	_, err := eng.RunOnce(ctx1)
	require.NoError(t, err)
	cancel1()
	time.Sleep(50 * time.Millisecond) // deja morir al poller del primer ciclo
	polled := books.callCount()

	ctx2, cancel2 := context.WithCancel(context.Background())
	defer cancel2()
	_, err = eng.RunOnce(ctx2)
	require.NoError(t, err)

	// El poller relanzado refresca books de inmediato (el intervalo del
	// ticker es demasiado largo para explicar la llamada).
	assert.Eventually(t, func() bool { return books.callCount() > polled },
		time.Second, 10*time.Millisecond, "el polling no se relanzó tras morir su contexto")
}
