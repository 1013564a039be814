package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/shiftbrew/dispatch/internal/queue"
	"github.com/shiftbrew/dispatch/internal/repository"
)

// SchedulerPoller releases jobs whose deliver_at has passed and wakes
// the queue for each one.
//
// Jobs created with a future deliver_at are stored with state=scheduled
// and bypass the queue until their time arrives; the release flips them
// to pending in the same statement that returns them.
type SchedulerPoller struct {
	repo     repository.JobRepository
	q        *queue.JobQueue
	interval time.Duration
	logger   *zap.Logger
}

func NewSchedulerPoller(
	repo repository.JobRepository,
	q *queue.JobQueue,
	interval time.Duration,
	logger *zap.Logger,
) *SchedulerPoller {
	return &SchedulerPoller{repo: repo, q: q, interval: interval, logger: logger}
}

// Run ticks every interval and releases any jobs that are now due.
// Stops cleanly when ctx is cancelled.
func (sp *SchedulerPoller) Run(ctx context.Context) {
	ticker := time.NewTicker(sp.interval)
	defer ticker.Stop()

	sp.logger.Info("scheduler poller started", zap.Duration("interval", sp.interval))

	for {
		select {
		case <-ctx.Done():
			sp.logger.Info("scheduler poller stopping")
			return
		case <-ticker.C:
			sp.poll(ctx)
		}
	}
}

func (sp *SchedulerPoller) poll(ctx context.Context) {
	jobs, err := sp.repo.ReleaseDueScheduled(ctx)
	if err != nil {
		sp.logger.Error("scheduler poll error", zap.Error(err))
		return
	}

	for _, j := range jobs {
		if err := sp.q.Enqueue(queue.Item{
			JobID:     j.ID,
			Kind:      j.Kind,
			Recipient: j.Recipient,
		}); err != nil {
			// Already pending in the store; the sweeper re-wakes it.
			sp.logger.Warn("could not wake released job",
				zap.String("id", j.ID), zap.Error(err))
			continue
		}
	}

	if len(jobs) > 0 {
		sp.logger.Info("released due scheduled jobs", zap.Int("count", len(jobs)))
	}
}
