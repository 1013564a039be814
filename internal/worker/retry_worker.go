package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/shiftbrew/dispatch/internal/queue"
	"github.com/shiftbrew/dispatch/internal/repository"
)

// RetryPoller polls the database for jobs whose next_attempt_at has
// passed and wakes the queue for each one.
//
// This DB-backed approach means retries survive server restarts:
// scheduled retry times are persisted, not held in memory. The poller
// never changes job state — the claim's own due-time check decides
// eligibility, so duplicate or premature wakes are harmless.
type RetryPoller struct {
	repo     repository.JobRepository
	q        *queue.JobQueue
	interval time.Duration
	logger   *zap.Logger
}

func NewRetryPoller(
	repo repository.JobRepository,
	q *queue.JobQueue,
	interval time.Duration,
	logger *zap.Logger,
) *RetryPoller {
	return &RetryPoller{repo: repo, q: q, interval: interval, logger: logger}
}

// Run ticks every interval and wakes the queue for any due retries.
// Stops cleanly when ctx is cancelled.
func (rp *RetryPoller) Run(ctx context.Context) {
	ticker := time.NewTicker(rp.interval)
	defer ticker.Stop()

	rp.logger.Info("retry poller started", zap.Duration("interval", rp.interval))

	for {
		select {
		case <-ctx.Done():
			rp.logger.Info("retry poller stopping")
			return
		case <-ticker.C:
			rp.poll(ctx)
		}
	}
}

func (rp *RetryPoller) poll(ctx context.Context) {
	jobs, err := rp.repo.FindDueRetries(ctx)
	if err != nil {
		rp.logger.Error("retry poll error", zap.Error(err))
		return
	}

	for _, j := range jobs {
		if err := rp.q.Enqueue(queue.Item{
			JobID:     j.ID,
			Kind:      j.Kind,
			Recipient: j.Recipient,
		}); err != nil {
			// Queue saturated; the job stays retry_scheduled and the
			// next tick picks it up again.
			rp.logger.Warn("could not wake due retry",
				zap.String("id", j.ID), zap.Error(err))
			continue
		}
	}

	if len(jobs) > 0 {
		rp.logger.Info("woke due retries", zap.Int("count", len(jobs)))
	}
}
