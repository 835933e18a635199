package reputation

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"github.com/zialiel/agora/internal/identity"
)

// MemoryRequesterStore is a thread-safe in-memory requester score store.
type MemoryRequesterStore struct {
	mu     sync.RWMutex
	scores map[identity.DID]int
}

// NewMemoryRequesterStore creates an empty requester score store.
func NewMemoryRequesterStore() *MemoryRequesterStore {
	return &MemoryRequesterStore{scores: make(map[identity.DID]int)}
}

var _ RequesterStore = (*MemoryRequesterStore)(nil)

func (m *MemoryRequesterStore) Score(_ context.Context, did identity.DID) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.scores[did], nil
}

func (m *MemoryRequesterStore) SetScore(_ context.Context, did identity.DID, score int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scores[did] = score
	return nil
}

// PostgresRequesterStore implements RequesterStore with PostgreSQL
type PostgresRequesterStore struct {
	db *sql.DB
}

// NewPostgresRequesterStore creates a new PostgreSQL-backed requester store
func NewPostgresRequesterStore(db *sql.DB) *PostgresRequesterStore {
	return &PostgresRequesterStore{db: db}
}

var _ RequesterStore = (*PostgresRequesterStore)(nil)

func (p *PostgresRequesterStore) Score(ctx context.Context, did identity.DID) (int, error) {
	var score int
	err := p.db.QueryRowContext(ctx, `
		SELECT score FROM requester_reputation WHERE identifier = $1
	`, did).Scan(&score)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return score, err
}

func (p *PostgresRequesterStore) SetScore(ctx context.Context, did identity.DID, score int) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO requester_reputation (identifier, score, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (identifier) DO UPDATE SET
			score      = $2,
			updated_at = NOW()
	`, did, score)
	return err
}
