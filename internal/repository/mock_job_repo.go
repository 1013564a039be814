package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shiftbrew/dispatch/internal/domain"
)

// MockJobRepository is a hand-written, in-memory implementation of
// JobRepository used in unit tests. No mock-generation library needed.
// Claim and the transition methods reproduce the conditional-update
// semantics of the PostgreSQL implementation so concurrency tests are
// meaningful.
type MockJobRepository struct {
	mu   sync.RWMutex
	jobs map[string]*domain.Job

	// Now is the clock used for due-time checks; override in tests.
	Now func() time.Time

	// Optional error overrides — set in tests to simulate failure paths.
	CreateErr              error
	GetByIDErr             error
	GetByIdempotencyKeyErr error
	ClaimErr               error
	MarkDeliveredErr       error
	MarkFailedErr          error
	MarkExhaustedErr       error
	ScheduleRetryErr       error
}

func NewMockJobRepository() *MockJobRepository {
	return &MockJobRepository{
		jobs: make(map[string]*domain.Job),
		Now:  time.Now,
	}
}

func (m *MockJobRepository) Create(_ context.Context, j *domain.Job) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if j.IdempotencyKey != nil {
		for _, existing := range m.jobs {
			if existing.IdempotencyKey != nil && *existing.IdempotencyKey == *j.IdempotencyKey {
				return domain.ErrConflict
			}
		}
	}
	clone := *j
	m.jobs[j.ID] = &clone
	return nil
}

func (m *MockJobRepository) CreateMany(_ context.Context, jobs []*domain.Job) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, j := range jobs {
		clone := *j
		m.jobs[j.ID] = &clone
	}
	return nil
}

func (m *MockJobRepository) GetByID(_ context.Context, id string) (*domain.Job, error) {
	if m.GetByIDErr != nil {
		return nil, m.GetByIDErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *j
	return &clone, nil
}

func (m *MockJobRepository) GetByIdempotencyKey(_ context.Context, key string) (*domain.Job, error) {
	if m.GetByIdempotencyKeyErr != nil {
		return nil, m.GetByIdempotencyKeyErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, j := range m.jobs {
		if j.IdempotencyKey != nil && *j.IdempotencyKey == key {
			clone := *j
			return &clone, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockJobRepository) List(_ context.Context, f domain.ListFilter) ([]*domain.Job, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var matched []*domain.Job
	for _, j := range m.jobs {
		if f.State != nil && j.State != *f.State {
			continue
		}
		if f.Kind != nil && j.Kind != *f.Kind {
			continue
		}
		if f.Recipient != nil && j.Recipient != *f.Recipient {
			continue
		}
		if f.From != nil && j.CreatedAt.Before(*f.From) {
			continue
		}
		if f.To != nil && j.CreatedAt.After(*f.To) {
			continue
		}
		clone := *j
		matched = append(matched, &clone)
	}
	sort.Slice(matched, func(i, k int) bool {
		return matched[i].CreatedAt.After(matched[k].CreatedAt)
	})
	total := len(matched)
	if f.Limit > 0 {
		start := (f.Page - 1) * f.Limit
		if start < 0 {
			start = 0
		}
		if start > total {
			start = total
		}
		end := start + f.Limit
		if end > total {
			end = total
		}
		matched = matched[start:end]
	}
	return matched, total, nil
}

func (m *MockJobRepository) Claim(_ context.Context, id string) (*domain.Job, bool, error) {
	if m.ClaimErr != nil {
		return nil, false, m.ClaimErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, false, nil
	}
	now := m.Now()
	claimable := j.State == domain.StatePending ||
		(j.State == domain.StateRetryScheduled && j.NextAttemptAt != nil && !j.NextAttemptAt.After(now))
	if !claimable {
		return nil, false, nil
	}
	j.State = domain.StateInFlight
	j.AttemptCount++
	j.LastTransitionAt = now
	clone := *j
	return &clone, true, nil
}

func (m *MockJobRepository) MarkDelivered(_ context.Context, id, transportMsgID string, at time.Time) error {
	if m.MarkDeliveredErr != nil {
		return m.MarkDeliveredErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[id]; ok && j.State == domain.StateInFlight {
		j.State = domain.StateDelivered
		j.TransportMsgID = &transportMsgID
		j.DeliveredAt = &at
		j.LastError = nil
		j.NextAttemptAt = nil
		j.LastTransitionAt = m.Now()
	}
	return nil
}

func (m *MockJobRepository) MarkFailed(_ context.Context, id, reason string) error {
	if m.MarkFailedErr != nil {
		return m.MarkFailedErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[id]; ok && j.State == domain.StateInFlight {
		j.State = domain.StateFailed
		j.LastError = &reason
		j.NextAttemptAt = nil
		j.LastTransitionAt = m.Now()
	}
	return nil
}

func (m *MockJobRepository) MarkExhausted(_ context.Context, id, reason string) error {
	if m.MarkExhaustedErr != nil {
		return m.MarkExhaustedErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[id]; ok && j.State == domain.StateInFlight {
		j.State = domain.StateExhausted
		j.LastError = &reason
		j.NextAttemptAt = nil
		j.LastTransitionAt = m.Now()
	}
	return nil
}

func (m *MockJobRepository) ScheduleRetry(_ context.Context, id string, nextAttempt time.Time, reason string) error {
	if m.ScheduleRetryErr != nil {
		return m.ScheduleRetryErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[id]; ok && j.State == domain.StateInFlight {
		j.State = domain.StateRetryScheduled
		j.NextAttemptAt = &nextAttempt
		j.LastError = &reason
		j.LastTransitionAt = m.Now()
	}
	return nil
}

func (m *MockJobRepository) FindDueRetries(_ context.Context) ([]*domain.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	now := m.Now()
	var due []*domain.Job
	for _, j := range m.jobs {
		if j.State == domain.StateRetryScheduled && j.NextAttemptAt != nil && !j.NextAttemptAt.After(now) {
			clone := *j
			due = append(due, &clone)
		}
	}
	sortByCreated(due)
	return due, nil
}

func (m *MockJobRepository) ReleaseDueScheduled(_ context.Context) ([]*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.Now()
	var released []*domain.Job
	for _, j := range m.jobs {
		if j.State == domain.StateScheduled && j.DeliverAt != nil && !j.DeliverAt.After(now) {
			j.State = domain.StatePending
			j.LastTransitionAt = now
			clone := *j
			released = append(released, &clone)
		}
	}
	sortByCreated(released)
	return released, nil
}

func (m *MockJobRepository) FindStalePending(_ context.Context, cutoff time.Time) ([]*domain.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var stale []*domain.Job
	for _, j := range m.jobs {
		if j.State == domain.StatePending && !j.LastTransitionAt.After(cutoff) {
			clone := *j
			stale = append(stale, &clone)
		}
	}
	sortByCreated(stale)
	return stale, nil
}

func (m *MockJobRepository) RecoverStuck(_ context.Context, cutoff time.Time) ([]*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var recovered []*domain.Job
	for _, j := range m.jobs {
		if j.State == domain.StateInFlight && !j.LastTransitionAt.After(cutoff) {
			j.State = domain.StatePending
			j.LastTransitionAt = m.Now()
			clone := *j
			recovered = append(recovered, &clone)
		}
	}
	sortByCreated(recovered)
	return recovered, nil
}

func (m *MockJobRepository) CountsByState(_ context.Context) (map[domain.State]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[domain.State]int)
	for _, j := range m.jobs {
		counts[j.State]++
	}
	return counts, nil
}

func sortByCreated(jobs []*domain.Job) {
	sort.Slice(jobs, func(i, k int) bool {
		if jobs[i].CreatedAt.Equal(jobs[k].CreatedAt) {
			return jobs[i].ID < jobs[k].ID
		}
		return jobs[i].CreatedAt.Before(jobs[k].CreatedAt)
	})
}
