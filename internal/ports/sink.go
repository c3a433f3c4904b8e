package ports

import (
	"context"

	"github.com/alejandrodnm/edgebot/internal/domain"
)

// SignalSink recibe los buckets de señales de cada ciclo para consola,
// dashboards o posting. El core solo emite registros inmutables.
type SignalSink interface {
	Emit(ctx context.Context, rec domain.CycleRecord, set domain.SignalSet) error
}
