package ledger

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a thread-safe in-memory Store. Default when no
// DATABASE_URL is configured; also used heavily in tests.
type MemoryStore struct {
	mu          sync.RWMutex
	balances    map[string]int64
	locks       map[string]int64
	pools       Pools
	events      []*Event
	nextEventID int64
}

// NewMemoryStore creates an empty in-memory ledger store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		balances:    make(map[string]int64),
		locks:       make(map[string]int64),
		nextEventID: 1,
	}
}

func (s *MemoryStore) append(typ, account string, amount int64, reference string) {
	s.events = append(s.events, &Event{
		ID:        s.nextEventID,
		Type:      typ,
		Account:   account,
		Amount:    amount,
		Reference: reference,
		CreatedAt: time.Now(),
	})
	s.nextEventID++
}

func (s *MemoryStore) CollectFee(_ context.Context, from string, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pools.Treasury += amount
	s.append(EventFee, "", amount, from)
	return nil
}

func (s *MemoryStore) RefundFee(_ context.Context, to string, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pools.Treasury -= amount
	s.balances[to] += amount
	s.append(EventFeeRefund, to, amount, "")
	return nil
}

func (s *MemoryStore) EscrowLock(_ context.Context, reference string, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.locks[reference]; exists {
		return ErrDuplicateReference
	}
	s.locks[reference] = amount
	s.pools.Escrowed += amount
	s.append(EventEscrowLock, "", amount, reference)
	return nil
}

func (s *MemoryStore) EscrowRelease(_ context.Context, reference, payoutAddr string, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	locked, exists := s.locks[reference]
	if !exists {
		return ErrUnknownReference
	}
	if amount > locked {
		return ErrEscrowUnderflow
	}
	delete(s.locks, reference)
	s.pools.Escrowed -= amount
	s.balances[payoutAddr] += amount
	s.append(EventEscrowRelease, payoutAddr, amount, reference)
	if excess := locked - amount; excess > 0 {
		s.pools.Escrowed -= excess
		s.pools.Treasury += excess
		s.append(EventEscrowTip, "", excess, reference)
	}
	return nil
}

func (s *MemoryStore) EscrowForfeit(_ context.Context, reference string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	locked, exists := s.locks[reference]
	if !exists {
		return 0, ErrUnknownReference
	}
	delete(s.locks, reference)
	s.pools.Escrowed -= locked
	s.pools.Treasury += locked
	s.append(EventEscrowForfeit, "", locked, reference)
	return locked, nil
}

func (s *MemoryStore) EscrowRefund(_ context.Context, reference, payoutAddr string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	locked, exists := s.locks[reference]
	if !exists {
		return 0, ErrUnknownReference
	}
	delete(s.locks, reference)
	s.pools.Escrowed -= locked
	s.balances[payoutAddr] += locked
	s.append(EventEscrowRefund, payoutAddr, locked, reference)
	return locked, nil
}

func (s *MemoryStore) Gratuity(_ context.Context, from, payoutAddr string, amount, excess int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[payoutAddr] += amount
	s.append(EventGratuity, payoutAddr, amount, from)
	if excess > 0 {
		s.pools.Treasury += excess
		s.append(EventGratuityTip, "", excess, from)
	}
	return nil
}

func (s *MemoryStore) Balance(_ context.Context, payoutAddr string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balances[payoutAddr], nil
}

func (s *MemoryStore) Pools(_ context.Context) (Pools, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pools, nil
}

func (s *MemoryStore) Locked(_ context.Context, reference string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	locked, exists := s.locks[reference]
	if !exists {
		return 0, ErrUnknownReference
	}
	return locked, nil
}

func (s *MemoryStore) History(_ context.Context, limit int) ([]*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start := len(s.events) - limit
	if start < 0 {
		start = 0
	}
	// newest first
	out := make([]*Event, 0, len(s.events)-start)
	for i := len(s.events) - 1; i >= start; i-- {
		out = append(out, s.events[i])
	}
	return out, nil
}

func (s *MemoryStore) HistoryFor(_ context.Context, account string, limit int) ([]*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Event, 0, limit)
	for i := len(s.events) - 1; i >= 0 && len(out) < limit; i-- {
		if s.events[i].Account == account {
			out = append(out, s.events[i])
		}
	}
	return out, nil
}

// AllEvents returns the full history oldest-first, for replay checks.
func (s *MemoryStore) AllEvents() []*Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Event, len(s.events))
	copy(out, s.events)
	return out
}
