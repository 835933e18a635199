package registry

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/zialiel/agora/internal/identity"
)

// -----------------------------------------------------------------------------
// Store Interface (swap implementations later)
// -----------------------------------------------------------------------------

// Store defines the persistence interface for the registry.
// Create assigns dense sequential ids starting at 1; records are never
// deleted, so ids are stable forever.
type Store interface {
	Create(ctx context.Context, agent *Agent) (int64, error)
	Get(ctx context.Context, id int64) (*Agent, error)
	GetByIdentifier(ctx context.Context, did identity.DID) (*Agent, error)
	// Mutate applies fn to the record under the store's write lock.
	Mutate(ctx context.Context, id int64, fn func(*Agent) error) (*Agent, error)
	// ListActive returns active agents in ascending id order.
	ListActive(ctx context.Context) ([]*Agent, error)
	Count(ctx context.Context) (int64, error)
}

// -----------------------------------------------------------------------------
// In-Memory Store
// -----------------------------------------------------------------------------

// MemoryStore is a thread-safe in-memory implementation
type MemoryStore struct {
	mu     sync.RWMutex
	agents map[int64]*Agent
	byDID  map[identity.DID]int64
	nextID int64
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		agents: make(map[int64]*Agent),
		byDID:  make(map[identity.DID]int64),
		nextID: 1,
	}
}

// Compile-time interface check
var _ Store = (*MemoryStore)(nil)

func (m *MemoryStore) Create(_ context.Context, agent *Agent) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byDID[agent.Identifier]; exists {
		return 0, ErrAlreadyRegistered
	}

	agent.ID = m.nextID
	m.nextID++
	agent.RegisteredAt = time.Now()

	stored := *agent
	m.agents[agent.ID] = &stored
	m.byDID[agent.Identifier] = agent.ID

	return agent.ID, nil
}

func (m *MemoryStore) Get(_ context.Context, id int64) (*Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	agent, exists := m.agents[id]
	if !exists {
		return nil, ErrAgentNotFound
	}

	// Return a copy to prevent mutation
	copy := *agent
	return &copy, nil
}

func (m *MemoryStore) GetByIdentifier(_ context.Context, did identity.DID) (*Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, exists := m.byDID[did]
	if !exists {
		return nil, ErrAgentNotFound
	}
	copy := *m.agents[id]
	return &copy, nil
}

func (m *MemoryStore) Mutate(_ context.Context, id int64, fn func(*Agent) error) (*Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	agent, exists := m.agents[id]
	if !exists {
		return nil, ErrAgentNotFound
	}
	if err := fn(agent); err != nil {
		return nil, err
	}
	copy := *agent
	return &copy, nil
}

func (m *MemoryStore) ListActive(_ context.Context) ([]*Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var results []*Agent
	for _, agent := range m.agents {
		if !agent.Active {
			continue
		}
		copy := *agent
		results = append(results, &copy)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].ID < results[j].ID
	})

	return results, nil
}

func (m *MemoryStore) Count(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.agents)), nil
}
