package storage

// sqlite.go — almacenamiento eficiente y sin ruido.
//
// Estrategia:
//   - `cycles`: resumen ligero por ciclo (fetched, eligible, signals, rejected).
//     Siempre 1 fila.
//   - `signals`: UNA fila por mercado (UPSERT). Solo ejecutables y outlook.
//     Los rechazos no se persisten — no aportan señal útil como histórico.
//   - Cache en memoria: evita writes si el estado no cambió (> 5% en net edge,
//     o cambio de tier/dirección). En un ciclo normal la mayoría de señales
//     no cambia → reducción fuerte de escrituras a disco.
//   - Prune automático al arrancar: cycles > 30d, signals no vistas en 14d.

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/alejandrodnm/edgebot/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
-- Resumen ligero por ciclo
CREATE TABLE IF NOT EXISTS cycles (
    id          TEXT PRIMARY KEY,
    started_at  DATETIME NOT NULL,
    duration_ms INTEGER  NOT NULL DEFAULT 0,
    fetched     INTEGER  NOT NULL DEFAULT 0,
    eligible    INTEGER  NOT NULL DEFAULT 0,
    signals     INTEGER  NOT NULL DEFAULT 0,
    rejected    INTEGER  NOT NULL DEFAULT 0
);

-- Una fila por mercado con señal viva, sin duplicados
CREATE TABLE IF NOT EXISTS signals (
    market_id    TEXT PRIMARY KEY,
    question     TEXT,
    category     TEXT    NOT NULL,
    cluster      TEXT    NOT NULL,
    direction    TEXT    NOT NULL,
    probability  REAL    NOT NULL DEFAULT 0,
    market_price REAL    NOT NULL DEFAULT 0,
    raw_edge     REAL    NOT NULL DEFAULT 0,
    net_edge     REAL    NOT NULL DEFAULT 0,
    confidence   REAL    NOT NULL DEFAULT 0,
    liquidity    REAL    NOT NULL DEFAULT 0,
    exposure     REAL    NOT NULL DEFAULT 0,
    tier         TEXT    NOT NULL,
    fallback     INTEGER NOT NULL DEFAULT 0,
    executable   INTEGER NOT NULL DEFAULT 0,
    first_seen   DATETIME NOT NULL,
    last_seen    DATETIME NOT NULL,
    peak_edge    REAL    NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_cycles_at   ON cycles(started_at DESC);
CREATE INDEX IF NOT EXISTS idx_sig_cluster ON signals(cluster);
CREATE INDEX IF NOT EXISTS idx_sig_last    ON signals(last_seen DESC);
CREATE INDEX IF NOT EXISTS idx_sig_edge    ON signals(net_edge DESC);
`

const (
	retentionCycles  = 30 * 24 * time.Hour // ciclos: 30 días
	retentionSignals = 14 * 24 * time.Hour // señales: 14 días (la mayoría se resuelven antes)
	edgeChangePct    = 0.05                // 5% de cambio en net edge → reescribir
)

// cachedState es el snapshot del último estado guardado de una señal.
type cachedState struct {
	tier      domain.TradeTier
	direction domain.Direction
	netEdge   float64
}

// SQLiteStorage implementa ports.Storage usando SQLite (pure Go, sin CGo).
type SQLiteStorage struct {
	db    *sql.DB
	cache map[string]cachedState // marketID → estado guardado
	mu    sync.Mutex
}

// NewSQLiteStorage abre (o crea) la base de datos en la ruta dada.
// Aplica el schema, limpia datos antiguos y precarga la cache.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}

	s := &SQLiteStorage{
		db:    db,
		cache: make(map[string]cachedState),
	}
	s.pruneOld(context.Background())
	s.warmCache(context.Background())
	return s, nil
}

// SaveCycle persiste el resumen del ciclo y hace upsert de las señales
// ejecutables y outlook que cambiaron respecto al ciclo anterior.
func (s *SQLiteStorage) SaveCycle(ctx context.Context, rec domain.CycleRecord, set domain.SignalSet) error {
	now := time.Now().UTC()

	// 1. Resumen del ciclo — siempre una fila, pesa ~60 bytes
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO cycles (id, started_at, duration_ms, fetched, eligible, signals, rejected)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.StartedAt.UTC(), rec.Duration.Milliseconds(),
		rec.Fetched, rec.Eligible, rec.Signals, rec.Rejected,
	); err != nil {
		return fmt.Errorf("storage.SaveCycle: insert cycle: %w", err)
	}

	// 2. Upsert de señales que cambiaron
	toWrite := s.filterChanged(set)
	if len(toWrite) == 0 {
		return nil // nada nuevo — la gran mayoría de ciclos terminan aquí
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SaveCycle: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO signals
			(market_id, question, category, cluster, direction, probability,
			 market_price, raw_edge, net_edge, confidence, liquidity, exposure,
			 tier, fallback, executable, first_seen, last_seen, peak_edge)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(market_id) DO UPDATE SET
			question     = excluded.question,
			category     = excluded.category,
			cluster      = excluded.cluster,
			direction    = excluded.direction,
			probability  = excluded.probability,
			market_price = excluded.market_price,
			raw_edge     = excluded.raw_edge,
			net_edge     = excluded.net_edge,
			confidence   = excluded.confidence,
			liquidity    = excluded.liquidity,
			exposure     = excluded.exposure,
			tier         = excluded.tier,
			fallback     = excluded.fallback,
			executable   = excluded.executable,
			last_seen    = excluded.last_seen,
			peak_edge    = MAX(peak_edge, excluded.net_edge)
	`)
	if err != nil {
		return fmt.Errorf("storage.SaveCycle: prepare: %w", err)
	}
	defer stmt.Close()

	for _, w := range toWrite {
		fallback := 0
		if w.sig.Fallback {
			fallback = 1
		}
		executable := 0
		if w.executable {
			executable = 1
		}

		if _, err := stmt.ExecContext(ctx,
			w.sig.MarketID,
			w.sig.Question,
			string(w.sig.Category),
			string(w.sig.Cluster),
			w.sig.Direction.String(),
			w.sig.Probability,
			w.sig.MarketPrice,
			w.sig.RawEdge,
			w.sig.NetEdge,
			w.sig.Confidence,
			w.sig.Liquidity,
			w.sig.Exposure,
			w.sig.Tier.String(),
			fallback,
			executable,
			now, // first_seen: ignorado en ON CONFLICT (no se sobreescribe)
			now, // last_seen
			w.sig.NetEdge,
		); err != nil {
			return fmt.Errorf("storage.SaveCycle: upsert %s: %w", w.sig.MarketID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SaveCycle: commit: %w", err)
	}
	return nil
}

// RecentCycles devuelve los últimos n registros de ciclo, el más nuevo primero.
func (s *SQLiteStorage) RecentCycles(ctx context.Context, n int) ([]domain.CycleRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, duration_ms, fetched, eligible, signals, rejected
		FROM cycles
		ORDER BY started_at DESC
		LIMIT ?
	`, n)
	if err != nil {
		return nil, fmt.Errorf("storage.RecentCycles: query: %w", err)
	}
	defer rows.Close()

	var recs []domain.CycleRecord
	for rows.Next() {
		var rec domain.CycleRecord
		var startedAt any
		var durationMs int64

		if err := rows.Scan(
			&rec.ID,
			&startedAt,
			&durationMs,
			&rec.Fetched,
			&rec.Eligible,
			&rec.Signals,
			&rec.Rejected,
		); err != nil {
			return nil, fmt.Errorf("storage.RecentCycles: scan row: %w", err)
		}

		rec.StartedAt = parseDBTime(startedAt)
		rec.Duration = time.Duration(durationMs) * time.Millisecond
		recs = append(recs, rec)
	}

	return recs, rows.Err()
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// --- helpers internos ---

type pendingWrite struct {
	sig        domain.Signal
	executable bool
}

// filterChanged devuelve las señales ejecutables/outlook que cambiaron respecto
// al estado en caché, y actualiza la caché con el nuevo estado.
func (s *SQLiteStorage) filterChanged(set domain.SignalSet) []pendingWrite {
	s.mu.Lock()
	defer s.mu.Unlock()

	var toWrite []pendingWrite
	add := func(sig domain.Signal, executable bool) {
		if prev, ok := s.cache[sig.MarketID]; ok {
			// Saltar si no cambió nada significativo
			unchanged := prev.tier == sig.Tier &&
				prev.direction == sig.Direction &&
				relChange(prev.netEdge, sig.NetEdge) < edgeChangePct
			if unchanged {
				return
			}
		}

		toWrite = append(toWrite, pendingWrite{sig: sig, executable: executable})
		s.cache[sig.MarketID] = cachedState{
			tier:      sig.Tier,
			direction: sig.Direction,
			netEdge:   sig.NetEdge,
		}
	}

	for _, sig := range set.Executable {
		add(sig, true)
	}
	for _, sig := range set.Outlook {
		add(sig, false)
	}
	return toWrite
}

// pruneOld elimina datos antiguos para mantener la DB ligera.
func (s *SQLiteStorage) pruneOld(ctx context.Context) {
	cutoffCycles := time.Now().UTC().Add(-retentionCycles)
	cutoffSignals := time.Now().UTC().Add(-retentionSignals)
	s.db.ExecContext(ctx, `DELETE FROM cycles WHERE started_at < ?`, cutoffCycles)
	s.db.ExecContext(ctx, `DELETE FROM signals WHERE last_seen < ?`, cutoffSignals)
}

// warmCache precarga la caché desde la DB al arrancar, evitando escrituras
// redundantes en el primer ciclo tras un reinicio.
func (s *SQLiteStorage) warmCache(ctx context.Context) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT market_id, tier, direction, net_edge FROM signals`,
	)
	if err != nil {
		return
	}
	defer rows.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	for rows.Next() {
		var id, tier, dir string
		var netEdge float64
		if rows.Scan(&id, &tier, &dir, &netEdge) == nil {
			s.cache[id] = cachedState{
				tier:      parseTier(tier),
				direction: parseDirection(dir),
				netEdge:   netEdge,
			}
		}
	}
}

// parseTier deshace TradeTier.String.
func parseTier(s string) domain.TradeTier {
	switch s {
	case "PROBE":
		return domain.TierProbe
	case "SMALL_TRADE":
		return domain.TierSmall
	case "MEDIUM_TRADE":
		return domain.TierMedium
	case "STRONG_TRADE":
		return domain.TierStrong
	default:
		return domain.TierNoTrade
	}
}

// parseDirection deshace Direction.String.
func parseDirection(s string) domain.Direction {
	switch s {
	case "BUY_YES":
		return domain.BuyYes
	case "BUY_NO":
		return domain.BuyNo
	default:
		return domain.NoTrade
	}
}

// parseDBTime normaliza el valor DATETIME que devuelva el driver.
func parseDBTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		for _, layout := range []string{
			time.RFC3339Nano,
			"2006-01-02 15:04:05.999999999-07:00",
			"2006-01-02 15:04:05",
		} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed
			}
		}
	case []byte:
		return parseDBTime(string(t))
	}
	return time.Time{}
}

// relChange devuelve el cambio relativo entre dos valores (0.0 – ∞).
func relChange(old, new float64) float64 {
	if old == 0 {
		return 1.0 // forzar escritura si antes era 0
	}
	return math.Abs(new-old) / math.Abs(old)
}
