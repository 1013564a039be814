package service_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"go.uber.org/zap"

	"github.com/shiftbrew/dispatch/internal/domain"
	"github.com/shiftbrew/dispatch/internal/queue"
	"github.com/shiftbrew/dispatch/internal/render"
	"github.com/shiftbrew/dispatch/internal/repository"
	"github.com/shiftbrew/dispatch/internal/service"
	"github.com/shiftbrew/dispatch/internal/whitelist"
)

func newMonitor() (*service.Monitor, *service.Producer, *queue.JobQueue) {
	repo := repository.NewMockJobRepository()
	q := queue.New(16)
	p := service.NewProducer(repo, q, render.NewRegistry(), whitelist.NewStatic(nil), 5, zap.NewNop())
	return service.NewMonitor(repo, q), p, q
}

func TestMonitor_CountsByState(t *testing.T) {
	m, p, _ := newMonitor()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, _, err := p.Submit(ctx, validReq, ""); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}

	counts, err := m.CountsByState(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if counts[domain.StatePending] != 3 {
		t.Fatalf("expected 3 pending, got %d", counts[domain.StatePending])
	}
	// Every state is present even at zero.
	for _, s := range []domain.State{
		domain.StateScheduled, domain.StateInFlight, domain.StateDelivered,
		domain.StateRetryScheduled, domain.StateFailed, domain.StateExhausted,
	} {
		if v, ok := counts[s]; !ok || v != 0 {
			t.Fatalf("expected %s present with 0, got %d (present=%v)", s, v, ok)
		}
	}

	// Reading is side-effect free: a second call returns the same map.
	again, err := m.CountsByState(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(counts, again) {
		t.Fatalf("expected identical counts on repeat, got %v then %v", counts, again)
	}
}

func TestMonitor_JobDetail(t *testing.T) {
	m, p, _ := newMonitor()
	ctx := context.Background()

	j, _, _ := p.Submit(ctx, validReq, "")

	got, err := m.JobDetail(ctx, j.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != j.ID {
		t.Fatalf("expected id=%s, got %s", j.ID, got.ID)
	}

	_, err = m.JobDetail(ctx, "does-not-exist")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMonitor_List_FiltersAndPaginates(t *testing.T) {
	m, p, _ := newMonitor()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, _, err := p.Submit(ctx, validReq, ""); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}

	pending := domain.StatePending
	jobs, total, err := m.List(ctx, domain.ListFilter{State: &pending, Page: 1, Limit: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 5 {
		t.Fatalf("expected total=5, got %d", total)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected page of 2, got %d", len(jobs))
	}

	// Zero values are normalized, not rejected.
	jobs, _, err = m.List(ctx, domain.ListFilter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(jobs) != 5 {
		t.Fatalf("expected all 5 on default page, got %d", len(jobs))
	}

	delivered := domain.StateDelivered
	jobs, total, err = m.List(ctx, domain.ListFilter{State: &delivered})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 0 || len(jobs) != 0 {
		t.Fatalf("expected no delivered jobs, got total=%d len=%d", total, len(jobs))
	}
}

func TestMonitor_QueueDepth(t *testing.T) {
	m, p, q := newMonitor()
	ctx := context.Background()

	if m.QueueDepth() != 0 {
		t.Fatalf("expected empty queue, depth=%d", m.QueueDepth())
	}
	if _, _, err := p.Submit(ctx, validReq, ""); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if m.QueueDepth() != 1 {
		t.Fatalf("expected depth=1 after submit, got %d", m.QueueDepth())
	}

	if _, ok := q.Dequeue(ctx); !ok {
		t.Fatal("expected a queued wake")
	}
	if m.QueueDepth() != 0 {
		t.Fatalf("expected depth=0 after dequeue, got %d", m.QueueDepth())
	}
}
