package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shiftbrew/dispatch/internal/domain"
	"github.com/shiftbrew/dispatch/internal/queue"
	"github.com/shiftbrew/dispatch/internal/render"
	"github.com/shiftbrew/dispatch/internal/repository"
	"github.com/shiftbrew/dispatch/internal/whitelist"
)

// Producer is the write side of the pipeline: it validates submissions,
// persists them, and wakes the queue. All submission rules (payload
// validation, operator gating, idempotency, deferred delivery) live here.
// HTTP handlers and workers depend on this service, not on each other.
type Producer struct {
	repo        repository.JobRepository
	q           *queue.JobQueue
	renderer    *render.Registry
	wl          whitelist.Whitelist
	maxAttempts int
	logger      *zap.Logger
}

func NewProducer(
	repo repository.JobRepository,
	q *queue.JobQueue,
	renderer *render.Registry,
	wl whitelist.Whitelist,
	maxAttempts int,
	logger *zap.Logger,
) *Producer {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Producer{
		repo:        repo,
		q:           q,
		renderer:    renderer,
		wl:          wl,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// Submit validates, persists, and wakes a single notification job.
// Nothing is persisted unless the request passes every check.
//
// Idempotency: if an X-Idempotency-Key header was supplied and a job
// with that key already exists, the existing record is returned as-is.
// The caller distinguishes a repeat by the bool (and answers 200 instead
// of 201).
func (p *Producer) Submit(
	ctx context.Context,
	req domain.SubmitRequest,
	idempotencyKey string,
) (*domain.Job, bool, error) {
	if err := req.Validate(); err != nil {
		return nil, false, err
	}

	// Render dry-run: catches missing payload fields and oversize content
	// at submit time, where the caller can still fix them.
	if _, err := p.renderer.Render(req.Kind, req.Payload); err != nil {
		return nil, false, err
	}

	if req.Kind.OperatorOnly() {
		ok, err := p.wl.IsOperator(ctx, req.Recipient)
		if err != nil {
			return nil, false, fmt.Errorf("whitelist check: %w", err)
		}
		if !ok {
			return nil, false, domain.ErrRecipientNotOperator
		}
	}

	// --- idempotency check ---
	if idempotencyKey != "" {
		existing, err := p.repo.GetByIdempotencyKey(ctx, idempotencyKey)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, false, fmt.Errorf("idempotency lookup: %w", err)
		}
		if existing != nil {
			return existing, true, nil // true = was a duplicate
		}
	}

	j := p.buildJob(req, idempotencyKey)

	if err := p.repo.Create(ctx, j); err != nil {
		return nil, false, fmt.Errorf("persist job: %w", err)
	}

	p.wake(j)
	return j, false, nil
}

// Broadcast fans one payload out to every whitelisted operator, all
// persisted in a single transaction. Only operator-gated kinds may be
// broadcast.
func (p *Producer) Broadcast(ctx context.Context, req domain.BroadcastRequest) ([]*domain.Job, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, err := p.renderer.Render(req.Kind, req.Payload); err != nil {
		return nil, err
	}

	operators, err := p.wl.ListOperators(ctx)
	if err != nil {
		return nil, fmt.Errorf("list operators: %w", err)
	}
	if len(operators) == 0 {
		return nil, domain.ErrNoOperators
	}

	jobs := make([]*domain.Job, len(operators))
	for i, op := range operators {
		jobs[i] = p.buildJob(domain.SubmitRequest{
			Kind:      req.Kind,
			Recipient: op,
			Payload:   req.Payload,
		}, "")
	}

	if err := p.repo.CreateMany(ctx, jobs); err != nil {
		return nil, fmt.Errorf("persist broadcast: %w", err)
	}

	for _, j := range jobs {
		p.wake(j)
	}
	return jobs, nil
}

// ---- private helpers ----

func (p *Producer) buildJob(req domain.SubmitRequest, idempotencyKey string) *domain.Job {
	now := time.Now().UTC()
	state := domain.StatePending

	var deliverAt *time.Time
	// A deliver_at in the past means "send now"; only future times defer.
	if req.DeliverAt != nil && req.DeliverAt.After(now) {
		state = domain.StateScheduled
		t := req.DeliverAt.UTC()
		deliverAt = &t
	}

	j := &domain.Job{
		ID:               uuid.New().String(),
		Kind:             req.Kind,
		Recipient:        req.Recipient,
		Payload:          req.Payload,
		State:            state,
		MaxAttempts:      p.maxAttempts,
		DeliverAt:        deliverAt,
		CreatedAt:        now,
		LastTransitionAt: now,
	}

	if idempotencyKey != "" {
		j.IdempotencyKey = &idempotencyKey
	}

	return j
}

// wake signals the queue that a pending job exists. If the queue is
// saturated the job simply stays pending in the store; the sweeper
// re-wakes stale pending jobs, so a dropped wake costs latency, not
// delivery.
func (p *Producer) wake(j *domain.Job) {
	if j.State != domain.StatePending {
		return // scheduler poller releases these when deliver_at passes
	}

	if err := p.q.Enqueue(queue.Item{
		JobID:     j.ID,
		Kind:      j.Kind,
		Recipient: j.Recipient,
	}); err != nil {
		p.logger.Warn("queue full: job stays pending until swept",
			zap.String("id", j.ID), zap.Error(err))
	}
}
