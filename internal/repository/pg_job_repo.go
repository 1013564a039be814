package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shiftbrew/dispatch/internal/domain"
)

// pollBatchLimit caps how many rows a single poller pass may touch.
const pollBatchLimit = 500

const jobColumns = `id, kind, recipient, payload, state,
	       attempt_count, max_attempts, next_attempt_at, deliver_at,
	       delivered_at, transport_msg_id, last_error, idempotency_key,
	       created_at, last_transition_at`

type pgJobRepository struct {
	pool *pgxpool.Pool
}

// NewPgJobRepository returns a JobRepository backed by PostgreSQL.
func NewPgJobRepository(pool *pgxpool.Pool) JobRepository {
	return &pgJobRepository{pool: pool}
}

func (r *pgJobRepository) Create(ctx context.Context, j *domain.Job) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO jobs
			(id, kind, recipient, payload, state, attempt_count, max_attempts,
			 deliver_at, idempotency_key, created_at, last_transition_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		j.ID, j.Kind, j.Recipient, j.Payload, j.State, j.AttemptCount, j.MaxAttempts,
		j.DeliverAt, j.IdempotencyKey, j.CreatedAt, j.LastTransitionAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "idempotency_key") {
			return domain.ErrConflict
		}
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (r *pgJobRepository) CreateMany(ctx context.Context, jobs []*domain.Job) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, j := range jobs {
		_, err = tx.Exec(ctx, `
			INSERT INTO jobs
				(id, kind, recipient, payload, state, attempt_count, max_attempts,
				 deliver_at, idempotency_key, created_at, last_transition_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
			j.ID, j.Kind, j.Recipient, j.Payload, j.State, j.AttemptCount, j.MaxAttempts,
			j.DeliverAt, j.IdempotencyKey, j.CreatedAt, j.LastTransitionAt,
		)
		if err != nil {
			return fmt.Errorf("insert broadcast job: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit broadcast: %w", err)
	}
	return nil
}

func (r *pgJobRepository) GetByID(ctx context.Context, id string) (*domain.Job, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+jobColumns+`
		FROM jobs WHERE id = $1`, id)

	j, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return j, err
}

func (r *pgJobRepository) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Job, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+jobColumns+`
		FROM jobs WHERE idempotency_key = $1`, key)

	j, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return j, err
}

func (r *pgJobRepository) List(ctx context.Context, f domain.ListFilter) ([]*domain.Job, int, error) {
	where, args := buildListWhere(f)
	offset := (f.Page - 1) * f.Limit

	// Count total matching rows for pagination metadata.
	var total int
	countQuery := "SELECT COUNT(*) FROM jobs" + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count jobs: %w", err)
	}

	// Append pagination args after the WHERE args.
	args = append(args, f.Limit, offset)
	limitPlaceholder := fmt.Sprintf("$%d", len(args)-1)
	offsetPlaceholder := fmt.Sprintf("$%d", len(args))

	query := fmt.Sprintf(`
		SELECT `+jobColumns+`
		FROM jobs%s
		ORDER BY created_at DESC, id DESC
		LIMIT %s OFFSET %s`, where, limitPlaceholder, offsetPlaceholder)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*domain.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, 0, err
		}
		jobs = append(jobs, j)
	}
	return jobs, total, rows.Err()
}

// Claim is the single mutual-exclusion point of the pipeline: the conditional
// UPDATE matches at most once per eligible state, so two workers racing on
// the same id see exactly one success.
func (r *pgJobRepository) Claim(ctx context.Context, id string) (*domain.Job, bool, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE jobs
		SET state = 'in_flight',
		    attempt_count = attempt_count + 1,
		    last_transition_at = NOW()
		WHERE id = $1
		  AND (state = 'pending'
		       OR (state = 'retry_scheduled' AND next_attempt_at <= NOW()))
		RETURNING `+jobColumns, id)

	j, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("claim job: %w", err)
	}
	return j, true, nil
}

func (r *pgJobRepository) MarkDelivered(ctx context.Context, id, transportMsgID string, at time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE jobs
		SET state = 'delivered', transport_msg_id = $1, delivered_at = $2,
		    last_error = NULL, next_attempt_at = NULL, last_transition_at = NOW()
		WHERE id = $3 AND state = 'in_flight'`, transportMsgID, at, id)
	return err
}

func (r *pgJobRepository) MarkFailed(ctx context.Context, id, reason string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE jobs
		SET state = 'failed', last_error = $1, next_attempt_at = NULL,
		    last_transition_at = NOW()
		WHERE id = $2 AND state = 'in_flight'`, reason, id)
	return err
}

func (r *pgJobRepository) MarkExhausted(ctx context.Context, id, reason string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE jobs
		SET state = 'exhausted', last_error = $1, next_attempt_at = NULL,
		    last_transition_at = NOW()
		WHERE id = $2 AND state = 'in_flight'`, reason, id)
	return err
}

func (r *pgJobRepository) ScheduleRetry(ctx context.Context, id string, nextAttempt time.Time, reason string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE jobs
		SET state = 'retry_scheduled', next_attempt_at = $1, last_error = $2,
		    last_transition_at = NOW()
		WHERE id = $3 AND state = 'in_flight'`, nextAttempt, reason, id)
	return err
}

func (r *pgJobRepository) FindDueRetries(ctx context.Context) ([]*domain.Job, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+jobColumns+`
		FROM jobs
		WHERE state = 'retry_scheduled'
		  AND next_attempt_at <= NOW()
		ORDER BY next_attempt_at ASC, created_at ASC, id ASC
		LIMIT $1`, pollBatchLimit)
	if err != nil {
		return nil, fmt.Errorf("find due retries: %w", err)
	}
	defer rows.Close()
	return scanJobs(rows)
}

func (r *pgJobRepository) ReleaseDueScheduled(ctx context.Context) ([]*domain.Job, error) {
	rows, err := r.pool.Query(ctx, `
		UPDATE jobs
		SET state = 'pending', last_transition_at = NOW()
		WHERE id IN (
			SELECT id FROM jobs
			WHERE state = 'scheduled' AND deliver_at <= NOW()
			ORDER BY deliver_at ASC, created_at ASC, id ASC
			LIMIT $1
		)
		RETURNING `+jobColumns, pollBatchLimit)
	if err != nil {
		return nil, fmt.Errorf("release due scheduled: %w", err)
	}
	defer rows.Close()
	return scanJobs(rows)
}

func (r *pgJobRepository) FindStalePending(ctx context.Context, cutoff time.Time) ([]*domain.Job, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+jobColumns+`
		FROM jobs
		WHERE state = 'pending' AND last_transition_at <= $1
		ORDER BY created_at ASC, id ASC
		LIMIT $2`, cutoff, pollBatchLimit)
	if err != nil {
		return nil, fmt.Errorf("find stale pending: %w", err)
	}
	defer rows.Close()
	return scanJobs(rows)
}

func (r *pgJobRepository) RecoverStuck(ctx context.Context, cutoff time.Time) ([]*domain.Job, error) {
	rows, err := r.pool.Query(ctx, `
		UPDATE jobs
		SET state = 'pending', last_transition_at = NOW()
		WHERE id IN (
			SELECT id FROM jobs
			WHERE state = 'in_flight' AND last_transition_at <= $1
			ORDER BY last_transition_at ASC, id ASC
			LIMIT $2
		)
		RETURNING `+jobColumns, cutoff, pollBatchLimit)
	if err != nil {
		return nil, fmt.Errorf("recover stuck jobs: %w", err)
	}
	defer rows.Close()
	return scanJobs(rows)
}

func (r *pgJobRepository) CountsByState(ctx context.Context) (map[domain.State]int, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT state, COUNT(*) FROM jobs GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("count jobs by state: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.State]int)
	for rows.Next() {
		var state domain.State
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			return nil, err
		}
		counts[state] = n
	}
	return counts, rows.Err()
}

// ---- helpers ----

// scanJob reads a single job row from any pgx row type.
func scanJob(row pgx.Row) (*domain.Job, error) {
	var j domain.Job
	err := row.Scan(
		&j.ID, &j.Kind, &j.Recipient, &j.Payload, &j.State,
		&j.AttemptCount, &j.MaxAttempts, &j.NextAttemptAt, &j.DeliverAt,
		&j.DeliveredAt, &j.TransportMsgID, &j.LastError, &j.IdempotencyKey,
		&j.CreatedAt, &j.LastTransitionAt,
	)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func scanJobs(rows pgx.Rows) ([]*domain.Job, error) {
	var result []*domain.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, j)
	}
	return result, rows.Err()
}

// buildListWhere builds a parameterised WHERE clause from a ListFilter.
func buildListWhere(f domain.ListFilter) (string, []any) {
	var conditions []string
	var args []any

	add := func(condition string, val any) {
		args = append(args, val)
		conditions = append(conditions, fmt.Sprintf(condition, len(args)))
	}

	if f.State != nil {
		add("state = $%d", *f.State)
	}
	if f.Kind != nil {
		add("kind = $%d", *f.Kind)
	}
	if f.Recipient != nil {
		add("recipient = $%d", *f.Recipient)
	}
	if f.From != nil {
		add("created_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("created_at <= $%d", *f.To)
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}
