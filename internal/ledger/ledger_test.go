package ledger

import (
	"context"
	"errors"
	"testing"
)

func newTestLedger() (*Ledger, *MemoryStore) {
	store := NewMemoryStore()
	return New(store), store
}

func TestCollectFee(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger()

	if err := l.CollectFee(ctx, "0xAAA", 10); err != nil {
		t.Fatalf("CollectFee failed: %v", err)
	}

	pools, _ := l.Pools(ctx)
	if pools.Treasury != 10 {
		t.Errorf("expected treasury 10, got %d", pools.Treasury)
	}
	if pools.Escrowed != 0 {
		t.Errorf("expected escrow 0, got %d", pools.Escrowed)
	}
}

func TestCollectFee_InvalidAmount(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger()

	for _, amount := range []int64{0, -5} {
		if err := l.CollectFee(ctx, "0xAAA", amount); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("CollectFee(%d): expected ErrInvalidAmount, got %v", amount, err)
		}
	}
}

func TestSettle_BudgetToAgentExcessToTreasury(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger()

	// payment 120 locked, budget (rate) is 100
	if err := l.EscrowLock(ctx, "job_1", 120); err != nil {
		t.Fatalf("EscrowLock failed: %v", err)
	}

	pools, _ := l.Pools(ctx)
	if pools.Escrowed != 120 {
		t.Fatalf("expected 120 escrowed, got %d", pools.Escrowed)
	}

	if err := l.Settle(ctx, "job_1", "0xAgent", 100); err != nil {
		t.Fatalf("Settle failed: %v", err)
	}

	bal, _ := l.Balance(ctx, "0xAgent")
	if bal != 100 {
		t.Errorf("expected agent balance 100, got %d", bal)
	}
	pools, _ = l.Pools(ctx)
	if pools.Escrowed != 0 {
		t.Errorf("expected empty escrow after settlement, got %d", pools.Escrowed)
	}
	if pools.Treasury != 20 {
		t.Errorf("expected excess 20 in treasury, got %d", pools.Treasury)
	}
}

func TestSettle_UnknownReference(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger()

	if err := l.Settle(ctx, "job_404", "0xAgent", 100); !errors.Is(err, ErrUnknownReference) {
		t.Errorf("expected ErrUnknownReference, got %v", err)
	}
}

func TestSettle_Underflow(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger()

	if err := l.EscrowLock(ctx, "job_1", 50); err != nil {
		t.Fatalf("EscrowLock failed: %v", err)
	}
	if err := l.Settle(ctx, "job_1", "0xAgent", 100); !errors.Is(err, ErrEscrowUnderflow) {
		t.Errorf("expected ErrEscrowUnderflow, got %v", err)
	}

	// nothing moved
	bal, _ := l.Balance(ctx, "0xAgent")
	if bal != 0 {
		t.Errorf("expected untouched balance, got %d", bal)
	}
	locked, err := l.Locked(ctx, "job_1")
	if err != nil || locked != 50 {
		t.Errorf("expected lock intact at 50, got %d (%v)", locked, err)
	}
}

func TestEscrowLock_DuplicateReference(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger()

	if err := l.EscrowLock(ctx, "job_1", 50); err != nil {
		t.Fatalf("EscrowLock failed: %v", err)
	}
	if err := l.EscrowLock(ctx, "job_1", 50); !errors.Is(err, ErrDuplicateReference) {
		t.Errorf("expected ErrDuplicateReference, got %v", err)
	}
}

func TestForfeit(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger()

	if err := l.EscrowLock(ctx, "job_1", 80); err != nil {
		t.Fatalf("EscrowLock failed: %v", err)
	}
	amount, err := l.Forfeit(ctx, "job_1")
	if err != nil {
		t.Fatalf("Forfeit failed: %v", err)
	}
	if amount != 80 {
		t.Errorf("expected 80 forfeited, got %d", amount)
	}

	pools, _ := l.Pools(ctx)
	if pools.Escrowed != 0 || pools.Treasury != 80 {
		t.Errorf("expected escrow 0 / treasury 80, got %d / %d", pools.Escrowed, pools.Treasury)
	}
}

func TestRefund(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger()

	if err := l.EscrowLock(ctx, "job_1", 80); err != nil {
		t.Fatalf("EscrowLock failed: %v", err)
	}
	amount, err := l.Refund(ctx, "job_1", "0xRequester")
	if err != nil {
		t.Fatalf("Refund failed: %v", err)
	}
	if amount != 80 {
		t.Errorf("expected 80 refunded, got %d", amount)
	}

	bal, _ := l.Balance(ctx, "0xrequester")
	if bal != 80 {
		t.Errorf("expected requester balance 80, got %d", bal)
	}
	pools, _ := l.Pools(ctx)
	if pools.Escrowed != 0 || pools.Treasury != 0 {
		t.Errorf("expected empty pools, got %+v", pools)
	}
}

func TestGratuity(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger()

	// sender attached 15 for a 10 token gratuity
	if err := l.Gratuity(ctx, "0xSender", "0xAgent", 10, 5); err != nil {
		t.Fatalf("Gratuity failed: %v", err)
	}

	bal, _ := l.Balance(ctx, "0xAgent")
	if bal != 10 {
		t.Errorf("expected agent balance 10, got %d", bal)
	}
	pools, _ := l.Pools(ctx)
	if pools.Treasury != 5 {
		t.Errorf("expected excess 5 in treasury, got %d", pools.Treasury)
	}
}

func TestRebuildPools_MatchesStoredPools(t *testing.T) {
	ctx := context.Background()
	l, store := newTestLedger()

	_ = l.CollectFee(ctx, "0xAAA", 10)
	_ = l.EscrowLock(ctx, "job_1", 120)
	_ = l.Settle(ctx, "job_1", "0xAgent", 100)
	_ = l.EscrowLock(ctx, "job_2", 60)
	if _, err := l.Forfeit(ctx, "job_2"); err != nil {
		t.Fatalf("Forfeit failed: %v", err)
	}
	_ = l.EscrowLock(ctx, "job_3", 40)
	if _, err := l.Refund(ctx, "job_3", "0xRequester"); err != nil {
		t.Fatalf("Refund failed: %v", err)
	}
	_ = l.Gratuity(ctx, "0xSender", "0xAgent", 10, 5)

	stored, _ := l.Pools(ctx)
	rebuilt, err := RebuildPools(store.AllEvents())
	if err != nil {
		t.Fatalf("RebuildPools failed: %v", err)
	}
	if rebuilt != stored {
		t.Errorf("replay mismatch: rebuilt %+v, stored %+v", rebuilt, stored)
	}
}

func TestRebuildBalance(t *testing.T) {
	ctx := context.Background()
	l, store := newTestLedger()

	_ = l.EscrowLock(ctx, "job_1", 100)
	_ = l.Settle(ctx, "job_1", "0xagent", 100)
	_ = l.Gratuity(ctx, "0xsender", "0xagent", 25, 0)

	bal, _ := l.Balance(ctx, "0xagent")
	if got := RebuildBalance(store.AllEvents(), "0xagent"); got != bal {
		t.Errorf("replayed balance %d, stored %d", got, bal)
	}
}

func TestHistory_NewestFirst(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger()

	_ = l.CollectFee(ctx, "0xAAA", 10)
	_ = l.EscrowLock(ctx, "job_1", 50)

	events, err := l.History(ctx, 10)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Type != EventEscrowLock || events[1].Type != EventFee {
		t.Errorf("expected newest first, got %s then %s", events[0].Type, events[1].Type)
	}
}
