// Package ledger is the custody layer of the marketplace.
//
// All funds move through it:
//  1. Registration fees accrue to the treasury pool
//  2. Job payments are locked in the escrow pool under a per-job reference
//  3. Settlement releases the budget to the agent's payout balance;
//     anything above the budget is retained by the treasury
//  4. Failed jobs forfeit escrow to the treasury, or refund the
//     requester, depending on policy
//  5. Gratitude transfers credit the agent's payout balance directly
//
// Every movement appends an immutable Event; pools can be rebuilt from
// the event history alone.
package ledger

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrEscrowUnderflow    = errors.New("release exceeds escrowed amount")
	ErrUnknownReference   = errors.New("unknown escrow reference")
	ErrDuplicateReference = errors.New("escrow reference already locked")
)

// Event types. The replay rules in RebuildPools depend on these.
const (
	EventFee           = "fee"            // treasury += amount
	EventFeeRefund     = "fee_refund"     // treasury -= amount, account += amount
	EventEscrowLock    = "escrow_lock"    // escrow += amount
	EventEscrowRelease = "escrow_release" // escrow -= amount, account += amount
	EventEscrowTip     = "escrow_tip"     // escrow -= amount, treasury += amount
	EventEscrowForfeit = "escrow_forfeit" // escrow -= amount, treasury += amount
	EventEscrowRefund  = "escrow_refund"  // escrow -= amount, account += amount
	EventGratuity      = "gratuity"       // account += amount
	EventGratuityTip   = "gratuity_tip"   // treasury += amount
)

// Event is one immutable ledger movement.
type Event struct {
	ID        int64     `json:"id"`
	Type      string    `json:"type"`
	Account   string    `json:"account,omitempty"` // payout address credited, if any
	Amount    int64     `json:"amount"`
	Reference string    `json:"reference,omitempty"` // job reference, registrant, or sender
	CreatedAt time.Time `json:"createdAt"`
}

// Pools holds the two system pools.
type Pools struct {
	Escrowed int64 `json:"escrowed"`
	Treasury int64 `json:"treasury"`
}

// Store persists balances, pools, locks, and events. Every mutating
// method must apply its movement and append its events atomically.
type Store interface {
	CollectFee(ctx context.Context, from string, amount int64) error
	RefundFee(ctx context.Context, to string, amount int64) error
	EscrowLock(ctx context.Context, reference string, amount int64) error
	EscrowRelease(ctx context.Context, reference, payoutAddr string, amount int64) error
	EscrowForfeit(ctx context.Context, reference string) (int64, error)
	EscrowRefund(ctx context.Context, reference, payoutAddr string) (int64, error)
	Gratuity(ctx context.Context, from, payoutAddr string, amount, excess int64) error
	Balance(ctx context.Context, payoutAddr string) (int64, error)
	Pools(ctx context.Context) (Pools, error)
	Locked(ctx context.Context, reference string) (int64, error)
	History(ctx context.Context, limit int) ([]*Event, error)
	HistoryFor(ctx context.Context, account string, limit int) ([]*Event, error)
}

// Ledger manages marketplace custody.
type Ledger struct {
	store Store
}

// New creates a new ledger over the given store.
func New(store Store) *Ledger {
	return &Ledger{store: store}
}

// CollectFee accrues a registration fee to the treasury.
func (l *Ledger) CollectFee(ctx context.Context, from string, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	defer observeOp("fee")()
	if err := l.store.CollectFee(ctx, strings.ToLower(from), amount); err != nil {
		return err
	}
	l.refreshPoolGauges(ctx)
	return nil
}

// RefundFee reverses a just-collected fee when registration cannot
// complete, crediting the registrant's payout balance.
func (l *Ledger) RefundFee(ctx context.Context, to string, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	defer observeOp("fee_refund")()
	if err := l.store.RefundFee(ctx, strings.ToLower(to), amount); err != nil {
		return err
	}
	l.refreshPoolGauges(ctx)
	return nil
}

// EscrowLock locks a job payment in the escrow pool under reference.
func (l *Ledger) EscrowLock(ctx context.Context, reference string, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	defer observeOp("escrow_lock")()
	if err := l.store.EscrowLock(ctx, reference, amount); err != nil {
		return err
	}
	l.refreshPoolGauges(ctx)
	return nil
}

// Settle releases a completed job's escrow: budget to the agent's
// payout balance, anything locked above the budget to the treasury.
func (l *Ledger) Settle(ctx context.Context, reference, payoutAddr string, budget int64) error {
	if budget <= 0 {
		return ErrInvalidAmount
	}
	defer observeOp("escrow_release")()
	if err := l.store.EscrowRelease(ctx, reference, strings.ToLower(payoutAddr), budget); err != nil {
		return err
	}
	l.refreshPoolGauges(ctx)
	return nil
}

// Forfeit routes a failed job's entire escrow to the treasury.
// Returns the forfeited amount.
func (l *Ledger) Forfeit(ctx context.Context, reference string) (int64, error) {
	defer observeOp("escrow_forfeit")()
	amount, err := l.store.EscrowForfeit(ctx, reference)
	if err != nil {
		return 0, err
	}
	l.refreshPoolGauges(ctx)
	return amount, nil
}

// Refund returns a failed job's entire escrow to the requester's
// payout balance. Returns the refunded amount.
func (l *Ledger) Refund(ctx context.Context, reference, payoutAddr string) (int64, error) {
	defer observeOp("escrow_refund")()
	amount, err := l.store.EscrowRefund(ctx, reference, strings.ToLower(payoutAddr))
	if err != nil {
		return 0, err
	}
	l.refreshPoolGauges(ctx)
	return amount, nil
}

// Gratuity forwards amount to the agent's payout balance; any excess
// the sender attached above the amount is retained by the treasury.
func (l *Ledger) Gratuity(ctx context.Context, from, payoutAddr string, amount, excess int64) error {
	if amount <= 0 || excess < 0 {
		return ErrInvalidAmount
	}
	defer observeOp("gratuity")()
	if err := l.store.Gratuity(ctx, strings.ToLower(from), strings.ToLower(payoutAddr), amount, excess); err != nil {
		return err
	}
	l.refreshPoolGauges(ctx)
	return nil
}

// Balance returns the payout balance accrued for an address.
func (l *Ledger) Balance(ctx context.Context, payoutAddr string) (int64, error) {
	return l.store.Balance(ctx, strings.ToLower(payoutAddr))
}

// Pools returns the current escrow and treasury pools.
func (l *Ledger) Pools(ctx context.Context) (Pools, error) {
	return l.store.Pools(ctx)
}

// Locked returns the amount currently escrowed under reference.
func (l *Ledger) Locked(ctx context.Context, reference string) (int64, error) {
	return l.store.Locked(ctx, reference)
}

// History returns the most recent ledger events.
func (l *Ledger) History(ctx context.Context, limit int) ([]*Event, error) {
	if limit <= 0 {
		limit = 50
	}
	return l.store.History(ctx, limit)
}

// HistoryFor returns the most recent events crediting a payout address.
func (l *Ledger) HistoryFor(ctx context.Context, account string, limit int) ([]*Event, error) {
	if limit <= 0 {
		limit = 50
	}
	return l.store.HistoryFor(ctx, strings.ToLower(account), limit)
}

func (l *Ledger) refreshPoolGauges(ctx context.Context) {
	if p, err := l.store.Pools(ctx); err == nil {
		setPoolGauges(p)
	}
}
