package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"time"
)

// MemoryStore is a thread-safe in-memory event store.
type MemoryStore struct {
	mu     sync.RWMutex
	events []*Event
	nextID int64
}

// NewMemoryStore creates an empty in-memory event store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1}
}

var _ Store = (*MemoryStore)(nil)

func (m *MemoryStore) Append(_ context.Context, e *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = m.nextID
	m.nextID++
	m.events = append(m.events, e)
	return nil
}

func (m *MemoryStore) Recent(_ context.Context, limit int) ([]*Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Event, 0, limit)
	for i := len(m.events) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.events[i])
	}
	return out, nil
}

// PostgresStore implements Store with PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed event store
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

var _ Store = (*PostgresStore)(nil)

func (p *PostgresStore) Append(ctx context.Context, e *Event) error {
	payload, err := json.Marshal(e.Fields)
	if err != nil {
		return err
	}
	return p.db.QueryRowContext(ctx, `
		INSERT INTO audit_events (type, payload, created_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`, e.Type, payload, e.CreatedAt).Scan(&e.ID)
}

func (p *PostgresStore) Recent(ctx context.Context, limit int) ([]*Event, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, type, payload, created_at
		FROM audit_events
		ORDER BY id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		e := &Event{}
		var payload []byte
		var createdAt time.Time
		if err := rows.Scan(&e.ID, &e.Type, &payload, &createdAt); err != nil {
			return nil, err
		}
		e.CreatedAt = createdAt
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &e.Fields); err != nil {
				return nil, err
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
