package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/zialiel/agora/internal/identity"
)

// PostgresStore implements Store with PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed registry store
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

var _ Store = (*PostgresStore)(nil)

const agentColumns = `id, identifier, payout_address, specialty, description, rate,
	reputation, jobs_completed, gratitude_received, active, registered_at`

func scanAgent(row interface{ Scan(...any) error }) (*Agent, error) {
	a := &Agent{}
	err := row.Scan(&a.ID, &a.Identifier, &a.PayoutAddress, &a.Specialty, &a.Description,
		&a.Rate, &a.Reputation, &a.JobsCompleted, &a.GratitudeReceived, &a.Active, &a.RegisteredAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (p *PostgresStore) Create(ctx context.Context, agent *Agent) (int64, error) {
	err := p.db.QueryRowContext(ctx, `
		INSERT INTO agents (identifier, payout_address, specialty, description, rate,
			reputation, jobs_completed, gratitude_received, active, registered_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0, 0, $7, NOW())
		RETURNING id, registered_at
	`, agent.Identifier, agent.PayoutAddress, agent.Specialty, agent.Description,
		agent.Rate, agent.Reputation, agent.Active).Scan(&agent.ID, &agent.RegisteredAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return 0, ErrAlreadyRegistered
		}
		return 0, fmt.Errorf("failed to create agent: %w", err)
	}
	return agent.ID, nil
}

func (p *PostgresStore) Get(ctx context.Context, id int64) (*Agent, error) {
	agent, err := scanAgent(p.db.QueryRowContext(ctx, `
		SELECT `+agentColumns+` FROM agents WHERE id = $1
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAgentNotFound
	}
	return agent, err
}

func (p *PostgresStore) GetByIdentifier(ctx context.Context, did identity.DID) (*Agent, error) {
	agent, err := scanAgent(p.db.QueryRowContext(ctx, `
		SELECT `+agentColumns+` FROM agents WHERE identifier = $1
	`, did))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAgentNotFound
	}
	return agent, err
}

func (p *PostgresStore) Mutate(ctx context.Context, id int64, fn func(*Agent) error) (*Agent, error) {
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	agent, err := scanAgent(tx.QueryRowContext(ctx, `
		SELECT `+agentColumns+` FROM agents WHERE id = $1 FOR UPDATE
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAgentNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := fn(agent); err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE agents SET
			specialty          = $2,
			description        = $3,
			rate               = $4,
			reputation         = $5,
			jobs_completed     = $6,
			gratitude_received = $7,
			active             = $8
		WHERE id = $1
	`, agent.ID, agent.Specialty, agent.Description, agent.Rate,
		agent.Reputation, agent.JobsCompleted, agent.GratitudeReceived, agent.Active)
	if err != nil {
		return nil, fmt.Errorf("failed to update agent: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return agent, nil
}

func (p *PostgresStore) ListActive(ctx context.Context) ([]*Agent, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+agentColumns+` FROM agents WHERE active ORDER BY id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var agents []*Agent
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, agent)
	}
	return agents, rows.Err()
}

func (p *PostgresStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM agents`).Scan(&count)
	return count, err
}
