package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shiftbrew/dispatch/internal/domain"
)

// MetricHooks carries the metric callback functions injected by main.
// Using a struct keeps the pool constructor signature clean.
type MetricHooks struct {
	OnDelivered func(kind domain.Kind, latency time.Duration)
	OnFailed    func(kind domain.Kind, state domain.State)
	OnRetry     func(kind domain.Kind)
}

// Pool manages the lifecycle of all delivery workers.
// All workers share the same wake queue and claim jobs through the
// repository's conditional update, so adding workers never produces
// duplicate deliveries.
type Pool struct {
	workers []*Worker
	wg      sync.WaitGroup
}

// NewPool creates n identical workers sharing deps.
func NewPool(n int, deps Deps, logger *zap.Logger) *Pool {
	if n < 1 {
		n = 1
	}
	workers := make([]*Worker, n)
	for i := range workers {
		workers[i] = NewWorker(i, deps, logger.With(zap.Int("worker_id", i)))
	}
	return &Pool{workers: workers}
}

// Start launches all workers as goroutines.
// The provided ctx is forwarded to every worker; cancelling it
// triggers a graceful shutdown of the entire pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *Worker) {
			defer p.wg.Done()
			w.Run(ctx)
		}(w)
	}
}

// Wait blocks until every worker has returned after ctx is cancelled.
// Call this after cancelling the context to ensure in-flight attempts finish.
func (p *Pool) Wait() {
	p.wg.Wait()
}
