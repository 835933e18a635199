package ledger

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresStore implements Store with PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed ledger store
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) begin(ctx context.Context) (*sql.Tx, error) {
	return p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
}

func appendEvent(ctx context.Context, tx *sql.Tx, typ, account string, amount int64, reference string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO ledger_events (type, account, amount, reference, created_at)
		VALUES ($1, $2, $3, $4, NOW())
	`, typ, account, amount, reference)
	if err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}
	return nil
}

func creditBalance(ctx context.Context, tx *sql.Tx, payoutAddr string, amount int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO ledger_balances (address, balance, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (address) DO UPDATE SET
			balance    = ledger_balances.balance + $2,
			updated_at = NOW()
	`, payoutAddr, amount)
	if err != nil {
		return fmt.Errorf("failed to credit balance: %w", err)
	}
	return nil
}

func movePools(ctx context.Context, tx *sql.Tx, escrowDelta, treasuryDelta int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE ledger_pools SET
			escrowed   = escrowed + $1,
			treasury   = treasury + $2,
			updated_at = NOW()
		WHERE id = 1
	`, escrowDelta, treasuryDelta)
	if err != nil {
		return fmt.Errorf("failed to move pools: %w", err)
	}
	return nil
}

// takeLock removes and returns the escrow lock for reference, holding a
// row lock for the rest of the transaction.
func takeLock(ctx context.Context, tx *sql.Tx, reference string) (int64, error) {
	var locked int64
	err := tx.QueryRowContext(ctx, `
		DELETE FROM ledger_locks WHERE reference = $1 RETURNING amount
	`, reference).Scan(&locked)
	if err == sql.ErrNoRows {
		return 0, ErrUnknownReference
	}
	if err != nil {
		return 0, err
	}
	return locked, nil
}

func (p *PostgresStore) CollectFee(ctx context.Context, from string, amount int64) error {
	tx, err := p.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := movePools(ctx, tx, 0, amount); err != nil {
		return err
	}
	if err := appendEvent(ctx, tx, EventFee, "", amount, from); err != nil {
		return err
	}
	return tx.Commit()
}

func (p *PostgresStore) RefundFee(ctx context.Context, to string, amount int64) error {
	tx, err := p.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := movePools(ctx, tx, 0, -amount); err != nil {
		return err
	}
	if err := creditBalance(ctx, tx, to, amount); err != nil {
		return err
	}
	if err := appendEvent(ctx, tx, EventFeeRefund, to, amount, ""); err != nil {
		return err
	}
	return tx.Commit()
}

func (p *PostgresStore) EscrowLock(ctx context.Context, reference string, amount int64) error {
	tx, err := p.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO ledger_locks (reference, amount, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (reference) DO NOTHING
	`, reference, amount)
	if err != nil {
		return fmt.Errorf("failed to lock escrow: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrDuplicateReference
	}

	if err := movePools(ctx, tx, amount, 0); err != nil {
		return err
	}
	if err := appendEvent(ctx, tx, EventEscrowLock, "", amount, reference); err != nil {
		return err
	}
	return tx.Commit()
}

func (p *PostgresStore) EscrowRelease(ctx context.Context, reference, payoutAddr string, amount int64) error {
	tx, err := p.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	locked, err := takeLock(ctx, tx, reference)
	if err != nil {
		return err
	}
	if amount > locked {
		return ErrEscrowUnderflow
	}

	if err := creditBalance(ctx, tx, payoutAddr, amount); err != nil {
		return err
	}
	excess := locked - amount
	if err := movePools(ctx, tx, -locked, excess); err != nil {
		return err
	}
	if err := appendEvent(ctx, tx, EventEscrowRelease, payoutAddr, amount, reference); err != nil {
		return err
	}
	if excess > 0 {
		if err := appendEvent(ctx, tx, EventEscrowTip, "", excess, reference); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (p *PostgresStore) EscrowForfeit(ctx context.Context, reference string) (int64, error) {
	tx, err := p.begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	locked, err := takeLock(ctx, tx, reference)
	if err != nil {
		return 0, err
	}
	if err := movePools(ctx, tx, -locked, locked); err != nil {
		return 0, err
	}
	if err := appendEvent(ctx, tx, EventEscrowForfeit, "", locked, reference); err != nil {
		return 0, err
	}
	return locked, tx.Commit()
}

func (p *PostgresStore) EscrowRefund(ctx context.Context, reference, payoutAddr string) (int64, error) {
	tx, err := p.begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	locked, err := takeLock(ctx, tx, reference)
	if err != nil {
		return 0, err
	}
	if err := creditBalance(ctx, tx, payoutAddr, locked); err != nil {
		return 0, err
	}
	if err := movePools(ctx, tx, -locked, 0); err != nil {
		return 0, err
	}
	if err := appendEvent(ctx, tx, EventEscrowRefund, payoutAddr, locked, reference); err != nil {
		return 0, err
	}
	return locked, tx.Commit()
}

func (p *PostgresStore) Gratuity(ctx context.Context, from, payoutAddr string, amount, excess int64) error {
	tx, err := p.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := creditBalance(ctx, tx, payoutAddr, amount); err != nil {
		return err
	}
	if err := appendEvent(ctx, tx, EventGratuity, payoutAddr, amount, from); err != nil {
		return err
	}
	if excess > 0 {
		if err := movePools(ctx, tx, 0, excess); err != nil {
			return err
		}
		if err := appendEvent(ctx, tx, EventGratuityTip, "", excess, from); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (p *PostgresStore) Balance(ctx context.Context, payoutAddr string) (int64, error) {
	var bal int64
	err := p.db.QueryRowContext(ctx, `
		SELECT balance FROM ledger_balances WHERE address = $1
	`, payoutAddr).Scan(&bal)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return bal, err
}

func (p *PostgresStore) Pools(ctx context.Context) (Pools, error) {
	var pools Pools
	err := p.db.QueryRowContext(ctx, `
		SELECT escrowed, treasury FROM ledger_pools WHERE id = 1
	`).Scan(&pools.Escrowed, &pools.Treasury)
	return pools, err
}

func (p *PostgresStore) Locked(ctx context.Context, reference string) (int64, error) {
	var locked int64
	err := p.db.QueryRowContext(ctx, `
		SELECT amount FROM ledger_locks WHERE reference = $1
	`, reference).Scan(&locked)
	if err == sql.ErrNoRows {
		return 0, ErrUnknownReference
	}
	return locked, err
}

func (p *PostgresStore) History(ctx context.Context, limit int) ([]*Event, error) {
	return p.queryEvents(ctx, `
		SELECT id, type, COALESCE(account, ''), amount, COALESCE(reference, ''), created_at
		FROM ledger_events
		ORDER BY id DESC
		LIMIT $1
	`, limit)
}

func (p *PostgresStore) HistoryFor(ctx context.Context, account string, limit int) ([]*Event, error) {
	return p.queryEvents(ctx, `
		SELECT id, type, COALESCE(account, ''), amount, COALESCE(reference, ''), created_at
		FROM ledger_events
		WHERE account = $1
		ORDER BY id DESC
		LIMIT $2
	`, account, limit)
}

func (p *PostgresStore) queryEvents(ctx context.Context, query string, args ...any) ([]*Event, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		e := &Event{}
		if err := rows.Scan(&e.ID, &e.Type, &e.Account, &e.Amount, &e.Reference, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
