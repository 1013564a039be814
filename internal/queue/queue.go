package queue

import (
	"context"

	"github.com/shiftbrew/dispatch/internal/domain"
)

// DefaultCapacity bounds how many wake signals can be outstanding at once.
// A full queue is not a lost job: the row stays pending in the store and the
// sweeper re-wakes it on its next pass.
const DefaultCapacity = 4096

// JobQueue is the in-memory wake channel between producers and workers.
//
// It deliberately carries only IDs, never state: PostgreSQL is the single
// authority on who owns a job (the conditional claim), so a duplicate wake
// signal is harmless — the second claim simply finds nothing to take. Items
// are delivered in FIFO order, which preserves best-effort
// dispatch-by-creation ordering among pending jobs.
type JobQueue struct {
	items chan Item
}

// New creates a queue with the given capacity; capacity <= 0 selects
// DefaultCapacity.
func New(capacity int) *JobQueue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &JobQueue{items: make(chan Item, capacity)}
}

// Enqueue places a wake signal on the queue.
// It is non-blocking: if the channel is full, ErrQueueFull is returned
// immediately rather than blocking the caller (the HTTP handler or a poller).
// Callers may ignore the error when the job is already persisted — the
// sweeper guarantees a stranded pending job is eventually re-woken.
func (q *JobQueue) Enqueue(item Item) error {
	select {
	case q.items <- item:
		return nil
	default:
		return domain.ErrQueueFull
	}
}

// Dequeue blocks until an item is available or ctx is cancelled.
// Returns (Item{}, false) when ctx is cancelled (graceful shutdown signal).
// The blocking receive is the workers' suspension point: an idle worker
// sleeps here instead of polling the store.
func (q *JobQueue) Dequeue(ctx context.Context) (Item, bool) {
	select {
	case item := <-q.items:
		return item, true
	case <-ctx.Done():
		return Item{}, false
	}
}

// Depth returns the current number of outstanding wake signals.
// Used by the monitoring facade and the queue-depth gauge.
func (q *JobQueue) Depth() int {
	return len(q.items)
}
