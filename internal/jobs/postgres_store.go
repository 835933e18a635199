package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/zialiel/agora/internal/identity"
)

// PostgresStore implements Store with PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed job store
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

var _ Store = (*PostgresStore)(nil)

const jobColumns = `id, agent_id, requester, description, budget, escrowed,
	result_ref, outcome, created_at, completed_at, requester_reputation, agent_reputation`

func scanJob(row interface{ Scan(...any) error }) (*Job, error) {
	j := &Job{}
	var outcome sql.NullString
	err := row.Scan(&j.ID, &j.AgentID, &j.Requester, &j.Description, &j.Budget, &j.Escrowed,
		&j.ResultRef, &outcome, &j.CreatedAt, &j.CompletedAt, &j.RequesterReputation, &j.AgentReputation)
	if err != nil {
		return nil, err
	}
	j.Outcome = Outcome(outcome.String)
	return j, nil
}

func (p *PostgresStore) Create(ctx context.Context, job *Job) (int64, error) {
	err := p.db.QueryRowContext(ctx, `
		INSERT INTO jobs (agent_id, requester, description, budget, escrowed,
			result_ref, outcome, created_at, completed_at, requester_reputation, agent_reputation)
		VALUES ($1, $2, $3, $4, $5, '', NULL, NOW(), 0, $6, $7)
		RETURNING id, created_at
	`, job.AgentID, job.Requester, job.Description, job.Budget, job.Escrowed,
		job.RequesterReputation, job.AgentReputation).Scan(&job.ID, &job.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to create job: %w", err)
	}
	return job.ID, nil
}

func (p *PostgresStore) Discard(ctx context.Context, id int64) error {
	result, err := p.db.ExecContext(ctx, `
		DELETE FROM jobs WHERE id = $1 AND completed_at = 0
	`, id)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrJobNotFound
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, id int64) (*Job, error) {
	job, err := scanJob(p.db.QueryRowContext(ctx, `
		SELECT `+jobColumns+` FROM jobs WHERE id = $1
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	return job, err
}

func (p *PostgresStore) Update(ctx context.Context, job *Job) error {
	var outcome any
	if job.Outcome != "" {
		outcome = string(job.Outcome)
	}
	result, err := p.db.ExecContext(ctx, `
		UPDATE jobs SET
			result_ref   = $2,
			outcome      = $3,
			completed_at = $4
		WHERE id = $1
	`, job.ID, job.ResultRef, outcome, job.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrJobNotFound
	}
	return nil
}

func (p *PostgresStore) ListByRequester(ctx context.Context, requester identity.DID, limit int) ([]*Job, error) {
	return p.queryJobs(ctx, `
		SELECT `+jobColumns+` FROM jobs WHERE requester = $1 ORDER BY id ASC LIMIT $2
	`, requester, limit)
}

func (p *PostgresStore) ListByAgent(ctx context.Context, agentID int64, limit int) ([]*Job, error) {
	return p.queryJobs(ctx, `
		SELECT `+jobColumns+` FROM jobs WHERE agent_id = $1 ORDER BY id ASC LIMIT $2
	`, agentID, limit)
}

func (p *PostgresStore) queryJobs(ctx context.Context, query string, args ...any) ([]*Job, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (p *PostgresStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobs`).Scan(&count)
	return count, err
}
