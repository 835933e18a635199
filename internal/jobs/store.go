package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/zialiel/agora/internal/identity"
)

// Store persists job records. Create assigns dense sequential ids
// starting at 1. Settled jobs are never removed; Discard exists only to
// reverse a creation whose escrow funding failed in the same call.
type Store interface {
	Create(ctx context.Context, job *Job) (int64, error)
	Discard(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (*Job, error)
	Update(ctx context.Context, job *Job) error
	ListByRequester(ctx context.Context, requester identity.DID, limit int) ([]*Job, error)
	ListByAgent(ctx context.Context, agentID int64, limit int) ([]*Job, error)
	Count(ctx context.Context) (int64, error)
}

// MemoryStore is a thread-safe in-memory implementation
type MemoryStore struct {
	mu     sync.RWMutex
	jobs   map[int64]*Job
	nextID int64
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:   make(map[int64]*Job),
		nextID: 1,
	}
}

// Compile-time interface check
var _ Store = (*MemoryStore)(nil)

func (m *MemoryStore) Create(_ context.Context, job *Job) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job.ID = m.nextID
	m.nextID++
	job.CreatedAt = time.Now()

	stored := *job
	m.jobs[job.ID] = &stored

	return job.ID, nil
}

func (m *MemoryStore) Discard(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.jobs[id]; !exists {
		return ErrJobNotFound
	}
	delete(m.jobs, id)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id int64) (*Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, exists := m.jobs[id]
	if !exists {
		return nil, ErrJobNotFound
	}

	copy := *job
	return &copy, nil
}

func (m *MemoryStore) Update(_ context.Context, job *Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.jobs[job.ID]; !exists {
		return ErrJobNotFound
	}

	stored := *job
	m.jobs[job.ID] = &stored
	return nil
}

func (m *MemoryStore) ListByRequester(_ context.Context, requester identity.DID, limit int) ([]*Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.collect(limit, func(j *Job) bool { return j.Requester == requester }), nil
}

func (m *MemoryStore) ListByAgent(_ context.Context, agentID int64, limit int) ([]*Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.collect(limit, func(j *Job) bool { return j.AgentID == agentID }), nil
}

// collect returns matching jobs in ascending id order. Caller holds the
// read lock.
func (m *MemoryStore) collect(limit int, match func(*Job) bool) []*Job {
	var results []*Job
	for id := int64(1); id < m.nextID && len(results) < limit; id++ {
		job, exists := m.jobs[id]
		if !exists || !match(job) {
			continue
		}
		copy := *job
		results = append(results, &copy)
	}
	return results
}

func (m *MemoryStore) Count(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.jobs)), nil
}
