package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/shiftbrew/dispatch/internal/queue"
	"github.com/shiftbrew/dispatch/internal/repository"
)

// Sweeper is the pipeline's safety net. Every interval it
//
//   - returns in_flight jobs older than the liveness timeout to pending
//     (the owning worker crashed or was shut down mid-attempt), and
//   - re-wakes pending jobs that have sat past stalePendingAfter
//     (their wake was lost to a full queue or a crash between the
//     producer's insert and enqueue).
//
// Recovery never touches attempt_count: an attempt that died before its
// transition was recorded is not charged against the job.
type Sweeper struct {
	repo              repository.JobRepository
	q                 *queue.JobQueue
	interval          time.Duration
	livenessTimeout   time.Duration
	stalePendingAfter time.Duration
	logger            *zap.Logger

	onRecovered func()
}

// NewSweeper constructs a sweeper. onRecovered is called once per
// recovered in_flight job; nil means no-op.
func NewSweeper(
	repo repository.JobRepository,
	q *queue.JobQueue,
	interval, livenessTimeout, stalePendingAfter time.Duration,
	logger *zap.Logger,
	onRecovered func(),
) *Sweeper {
	if onRecovered == nil {
		onRecovered = func() {}
	}
	return &Sweeper{
		repo:              repo,
		q:                 q,
		interval:          interval,
		livenessTimeout:   livenessTimeout,
		stalePendingAfter: stalePendingAfter,
		logger:            logger,
		onRecovered:       onRecovered,
	}
}

// Run ticks every interval. Stops cleanly when ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("sweeper started",
		zap.Duration("interval", s.interval),
		zap.Duration("liveness_timeout", s.livenessTimeout),
		zap.Duration("stale_pending_after", s.stalePendingAfter),
	)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopping")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	now := time.Now().UTC()

	recovered, err := s.repo.RecoverStuck(ctx, now.Add(-s.livenessTimeout))
	if err != nil {
		s.logger.Error("stuck recovery error", zap.Error(err))
	} else {
		for _, j := range recovered {
			s.onRecovered()
			s.wake(queue.Item{JobID: j.ID, Kind: j.Kind, Recipient: j.Recipient})
		}
		if len(recovered) > 0 {
			s.logger.Warn("recovered stuck in-flight jobs", zap.Int("count", len(recovered)))
		}
	}

	stale, err := s.repo.FindStalePending(ctx, now.Add(-s.stalePendingAfter))
	if err != nil {
		s.logger.Error("stale pending scan error", zap.Error(err))
		return
	}
	for _, j := range stale {
		s.wake(queue.Item{JobID: j.ID, Kind: j.Kind, Recipient: j.Recipient})
	}
	if len(stale) > 0 {
		s.logger.Info("re-woke stale pending jobs", zap.Int("count", len(stale)))
	}
}

func (s *Sweeper) wake(item queue.Item) {
	if err := s.q.Enqueue(item); err != nil {
		s.logger.Warn("could not re-wake job", zap.String("id", item.JobID), zap.Error(err))
	}
}
