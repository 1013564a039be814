package repository

import (
	"context"
	"time"

	"github.com/shiftbrew/dispatch/internal/domain"
)

// JobRepository defines all persistence operations for notification jobs.
// The pgx implementation is in pg_job_repo.go.
// Tests use a hand-written mock (mock_job_repo.go).
//
// Every mutation is a single-statement conditional UPDATE, so coordination
// between workers needs no lock manager: a job can only enter in_flight
// through Claim, and Claim succeeds for at most one caller.
type JobRepository interface {
	Create(ctx context.Context, j *domain.Job) error
	// CreateMany inserts all jobs in one transaction (operator broadcast).
	CreateMany(ctx context.Context, jobs []*domain.Job) error
	GetByID(ctx context.Context, id string) (*domain.Job, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.Job, error)
	List(ctx context.Context, filter domain.ListFilter) ([]*domain.Job, int, error)

	// Claim atomically moves a job to in_flight and increments its attempt
	// count, but only if the job is pending, or retry_scheduled with a due
	// next_attempt_at. Returns (nil, false, nil) when the job was not
	// claimable — already taken, terminal, or not yet due.
	Claim(ctx context.Context, id string) (*domain.Job, bool, error)

	// Transition writes. Each applies only while the job is in_flight, so a
	// worker that lost its claim to the sweeper cannot clobber newer state.
	MarkDelivered(ctx context.Context, id, transportMsgID string, at time.Time) error
	MarkFailed(ctx context.Context, id, reason string) error
	MarkExhausted(ctx context.Context, id, reason string) error
	ScheduleRetry(ctx context.Context, id string, nextAttempt time.Time, reason string) error

	// FindDueRetries returns retry_scheduled jobs whose next_attempt_at has
	// passed. No state flip happens here; Claim accepts due retries directly.
	FindDueRetries(ctx context.Context) ([]*domain.Job, error)
	// ReleaseDueScheduled flips due scheduled jobs to pending and returns them.
	ReleaseDueScheduled(ctx context.Context) ([]*domain.Job, error)
	// FindStalePending returns pending jobs untouched since the cutoff, so a
	// lost wake signal can never strand a job.
	FindStalePending(ctx context.Context, cutoff time.Time) ([]*domain.Job, error)
	// RecoverStuck returns in_flight jobs untouched since the cutoff to
	// pending and reports them. Attempt counts are left as the interrupted
	// attempt recorded them.
	RecoverStuck(ctx context.Context, cutoff time.Time) ([]*domain.Job, error)

	CountsByState(ctx context.Context) (map[domain.State]int, error)
}
