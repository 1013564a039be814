package service

import (
	"context"

	"github.com/shiftbrew/dispatch/internal/domain"
	"github.com/shiftbrew/dispatch/internal/queue"
	"github.com/shiftbrew/dispatch/internal/repository"
)

// allStates fixes the order and completeness of state reporting.
var allStates = []domain.State{
	domain.StateScheduled,
	domain.StatePending,
	domain.StateInFlight,
	domain.StateDelivered,
	domain.StateRetryScheduled,
	domain.StateFailed,
	domain.StateExhausted,
}

// Monitor is the read side of the pipeline: state counts, job lookups,
// filtered listings, queue depth. It never mutates anything.
type Monitor struct {
	repo repository.JobRepository
	q    *queue.JobQueue
}

func NewMonitor(repo repository.JobRepository, q *queue.JobQueue) *Monitor {
	return &Monitor{repo: repo, q: q}
}

// CountsByState returns a count for every state, zero-filled, so two
// calls on an unchanged store return identical maps.
func (m *Monitor) CountsByState(ctx context.Context) (map[domain.State]int, error) {
	counts, err := m.repo.CountsByState(ctx)
	if err != nil {
		return nil, err
	}
	full := make(map[domain.State]int, len(allStates))
	for _, s := range allStates {
		full[s] = counts[s]
	}
	return full, nil
}

// JobDetail returns one job including its attempt history fields
// (attempt_count, next_attempt_at, last_error).
func (m *Monitor) JobDetail(ctx context.Context, id string) (*domain.Job, error) {
	return m.repo.GetByID(ctx, id)
}

// List returns a filtered page of jobs plus the total match count.
// Page and limit are normalized here so callers can pass zero values.
func (m *Monitor) List(ctx context.Context, filter domain.ListFilter) ([]*domain.Job, int, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 20
	}
	if filter.Limit > 100 {
		filter.Limit = 100
	}
	return m.repo.List(ctx, filter)
}

// QueueDepth reports how many wakes are currently buffered.
func (m *Monitor) QueueDepth() int {
	return m.q.Depth()
}
