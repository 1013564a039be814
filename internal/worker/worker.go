package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/shiftbrew/dispatch/internal/cache"
	"github.com/shiftbrew/dispatch/internal/domain"
	"github.com/shiftbrew/dispatch/internal/queue"
	"github.com/shiftbrew/dispatch/internal/ratelimiter"
	"github.com/shiftbrew/dispatch/internal/render"
	"github.com/shiftbrew/dispatch/internal/repository"
	"github.com/shiftbrew/dispatch/internal/transport"
)

// errStoreUnreachable makes a worker stop instead of spinning when state
// writes keep failing. Stopped workers leave their job in_flight; the
// sweeper returns it to pending once the database is back.
var errStoreUnreachable = errors.New("job store unreachable")

// Deps bundles the collaborators shared by every worker in the pool.
// Using a struct keeps the constructor signatures clean.
type Deps struct {
	Queue     *queue.JobQueue
	Repo      repository.JobRepository
	Renderer  *render.Registry
	Transport transport.Transport
	Limiter   *ratelimiter.SendLimiter
	Receipts  cache.ReceiptCache

	Backoff        Backoff
	AttemptTimeout time.Duration

	// State writes are retried this many times, spaced by StoreRetryDelay,
	// before the worker gives up and stops.
	StoreRetryAttempts int
	StoreRetryDelay    time.Duration

	Hooks MetricHooks
}

// Worker is a single goroutine that continuously pulls job ids from the
// wake queue, claims each job with a conditional update, renders and
// delivers it, and persists the resulting state transition before taking
// the next job.
type Worker struct {
	id     int
	deps   Deps
	logger *zap.Logger

	// Hooks for metrics — injected by the pool so the worker stays metrics-agnostic.
	onDelivered func(kind domain.Kind, latency time.Duration)
	onFailed    func(kind domain.Kind, state domain.State)
	onRetry     func(kind domain.Kind)
}

// NewWorker constructs a worker. Nil hooks are replaced with no-ops.
func NewWorker(id int, deps Deps, logger *zap.Logger) *Worker {
	h := deps.Hooks
	if h.OnDelivered == nil {
		h.OnDelivered = func(domain.Kind, time.Duration) {}
	}
	if h.OnFailed == nil {
		h.OnFailed = func(domain.Kind, domain.State) {}
	}
	if h.OnRetry == nil {
		h.OnRetry = func(domain.Kind) {}
	}
	if deps.Receipts == nil {
		deps.Receipts = cache.Noop{}
	}
	if deps.AttemptTimeout <= 0 {
		deps.AttemptTimeout = 10 * time.Second
	}
	if deps.StoreRetryAttempts < 1 {
		deps.StoreRetryAttempts = 1
	}
	if deps.StoreRetryDelay <= 0 {
		deps.StoreRetryDelay = 100 * time.Millisecond
	}
	return &Worker{
		id:          id,
		deps:        deps,
		logger:      logger,
		onDelivered: h.OnDelivered,
		onFailed:    h.OnFailed,
		onRetry:     h.OnRetry,
	}
}

// Run blocks until ctx is cancelled, processing one queue item per iteration.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("worker started", zap.Int("id", w.id))
	for {
		item, ok := w.deps.Queue.Dequeue(ctx)
		if !ok {
			w.logger.Info("worker stopping", zap.Int("id", w.id))
			return
		}
		if err := w.process(ctx, item); errors.Is(err, errStoreUnreachable) {
			w.logger.Error("worker stopping: job store unreachable",
				zap.Int("id", w.id), zap.Error(err))
			return
		}
	}
}

func (w *Worker) process(ctx context.Context, item queue.Item) error {
	log := w.logger.With(
		zap.String("job_id", item.JobID),
		zap.String("kind", string(item.Kind)),
	)

	j, claimed, err := w.deps.Repo.Claim(ctx, item.JobID)
	if err != nil {
		log.Error("claim failed", zap.Error(err))
		return nil
	}
	// Not claimable: another worker won the race, the job already reached
	// a terminal state, or its retry is not due yet. Wakes are hints, the
	// row is the truth.
	if !claimed {
		log.Debug("job not claimable, skipping")
		return nil
	}

	start := time.Now()
	log = log.With(zap.Int("attempt", j.AttemptCount))

	text, err := w.deps.Renderer.Render(j.Kind, j.Payload)
	if err != nil {
		// A job that cannot render will never render; no retry helps.
		log.Warn("render failed", zap.Error(err))
		w.onFailed(j.Kind, domain.StateFailed)
		return w.persist(ctx, log, "mark failed", func(c context.Context) error {
			return w.deps.Repo.MarkFailed(c, j.ID, fmt.Sprintf("render: %v", err))
		})
	}

	// Block here until the shared rate limiter grants a token.
	if err := w.deps.Limiter.Wait(ctx); err != nil {
		// ctx cancelled while waiting — worker is shutting down. The job
		// stays in_flight; the sweeper re-pends it after the liveness window.
		return nil
	}

	attemptCtx, cancel := context.WithTimeout(ctx, w.deps.AttemptTimeout)
	msgID, sendErr := w.deps.Transport.Send(attemptCtx, j.Recipient, text)
	cancel()
	elapsed := time.Since(start)

	if sendErr != nil {
		log.Warn("send failed", zap.Error(sendErr))
		return w.handleFailure(ctx, log, j, sendErr)
	}

	now := time.Now().UTC()
	if err := w.persist(ctx, log, "mark delivered", func(c context.Context) error {
		return w.deps.Repo.MarkDelivered(c, j.ID, msgID, now)
	}); err != nil {
		return err
	}

	// Best effort: a receipt cache failure never fails the delivery.
	if err := w.deps.Receipts.StoreDelivered(ctx, j.ID, msgID, now); err != nil {
		log.Warn("receipt cache write failed", zap.Error(err))
	}

	w.onDelivered(j.Kind, elapsed)
	log.Info("job delivered",
		zap.String("transport_msg_id", msgID),
		zap.Duration("latency", elapsed),
	)
	return nil
}

// handleFailure routes a send error to its terminal or retry transition:
// permanent errors fail the job on the spot, retryable errors schedule
// the next attempt with exponential backoff until attempts run out.
func (w *Worker) handleFailure(ctx context.Context, log *zap.Logger, j *domain.Job, sendErr error) error {
	if transport.IsPermanent(sendErr) {
		w.onFailed(j.Kind, domain.StateFailed)
		return w.persist(ctx, log, "mark failed", func(c context.Context) error {
			return w.deps.Repo.MarkFailed(c, j.ID, sendErr.Error())
		})
	}

	if !j.RetriesRemaining() {
		log.Warn("attempts exhausted", zap.Int("max_attempts", j.MaxAttempts))
		w.onFailed(j.Kind, domain.StateExhausted)
		return w.persist(ctx, log, "mark exhausted", func(c context.Context) error {
			return w.deps.Repo.MarkExhausted(c, j.ID, sendErr.Error())
		})
	}

	hint, _ := transport.RetryDelayHint(sendErr)
	next := time.Now().UTC().Add(w.deps.Backoff.Delay(j.AttemptCount, hint))

	if err := w.persist(ctx, log, "schedule retry", func(c context.Context) error {
		return w.deps.Repo.ScheduleRetry(c, j.ID, next, sendErr.Error())
	}); err != nil {
		return err
	}
	w.onRetry(j.Kind)
	log.Info("retry scheduled", zap.Time("next_attempt_at", next))
	return nil
}

// persist runs a state write, retrying a bounded number of times so a
// transient database blip does not strand the job. Gives up quietly on
// shutdown; reports errStoreUnreachable when retries run out.
func (w *Worker) persist(ctx context.Context, log *zap.Logger, op string, write func(context.Context) error) error {
	var err error
	for i := 0; i < w.deps.StoreRetryAttempts; i++ {
		if err = write(ctx); err == nil {
			return nil
		}
		log.Warn("state write failed, retrying",
			zap.String("op", op), zap.Int("try", i+1), zap.Error(err))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(w.deps.StoreRetryDelay):
		}
	}
	return fmt.Errorf("%s: %w: %w", op, errStoreUnreachable, err)
}
