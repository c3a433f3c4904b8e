package engine

// scheduler.go — serializes cycle execution. A trigger enqueues a request;
// a drain goroutine pops and runs cycles one at a time until the queue
// empties. A panic inside a cycle is logged and answered as an error — it
// never wedges the in-flight flag or kills the scheduler.

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// CycleFunc ejecuta un ciclo completo.
type CycleFunc func(ctx context.Context) error

// Scheduler garantiza que nunca corren dos ciclos a la vez.
type Scheduler struct {
	run CycleFunc

	mu      sync.Mutex
	queue   []schedRequest
	running bool
}

type schedRequest struct {
	ctx  context.Context
	done chan error
}

// NewScheduler crea un Scheduler sobre la función de ciclo dada.
func NewScheduler(run CycleFunc) *Scheduler {
	return &Scheduler{run: run}
}

// Trigger encola una petición de ciclo y devuelve el canal de completado.
// Si no hay drain loop corriendo, arranca uno.
func (s *Scheduler) Trigger(ctx context.Context) <-chan error {
	done := make(chan error, 1)

	s.mu.Lock()
	s.queue = append(s.queue, schedRequest{ctx: ctx, done: done})
	start := !s.running
	if start {
		s.running = true
	}
	s.mu.Unlock()

	if start {
		go s.drain()
	}
	return done
}

// TriggerAndWait encola y bloquea hasta que ese ciclo termine.
func (s *Scheduler) TriggerAndWait(ctx context.Context) error {
	select {
	case err := <-s.Trigger(ctx):
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// drain ejecuta ciclos secuencialmente hasta vaciar la cola.
func (s *Scheduler) drain() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.running = false
			s.mu.Unlock()
			return
		}
		req := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		req.done <- s.safeRun(req.ctx)
	}
}

// safeRun ejecuta el ciclo convirtiendo pánicos en errores.
func (s *Scheduler) safeRun(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("cycle panicked", "panic", r)
			err = fmt.Errorf("engine: cycle panic: %v", r)
		}
	}()
	return s.run(ctx)
}

// Pending devuelve el número de peticiones encoladas sin ejecutar.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}
