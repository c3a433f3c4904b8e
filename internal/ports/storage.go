package ports

import (
	"context"

	"github.com/alejandrodnm/edgebot/internal/domain"
)

// Storage persiste el resumen de cada ciclo y las señales generadas.
type Storage interface {
	// SaveCycle persiste el registro del ciclo y hace upsert de las señales.
	SaveCycle(ctx context.Context, rec domain.CycleRecord, set domain.SignalSet) error

	// RecentCycles devuelve los últimos n registros de ciclo, el más nuevo primero.
	RecentCycles(ctx context.Context, n int) ([]domain.CycleRecord, error)

	// Close cierra la conexión a la base de datos limpiamente.
	Close() error
}
