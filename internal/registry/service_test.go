package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/zialiel/agora/internal/identity"
)

type fakeTreasury struct {
	collected int64
	refunded  int64
	failNext  bool
}

func (f *fakeTreasury) CollectFee(_ context.Context, _ string, amount int64) error {
	if f.failNext {
		f.failNext = false
		return errors.New("treasury down")
	}
	f.collected += amount
	return nil
}

func (f *fakeTreasury) RefundFee(_ context.Context, _ string, amount int64) error {
	f.refunded += amount
	return nil
}

const (
	addrA = "0x1111111111111111111111111111111111111111"
	addrB = "0x2222222222222222222222222222222222222222"
	addrC = "0x3333333333333333333333333333333333333333"
)

func newTestService() (*Service, *fakeTreasury) {
	fees := &fakeTreasury{}
	return NewService(NewMemoryStore(), fees, nil, 10), fees
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	svc, fees := newTestService()

	agent, err := svc.Register(ctx, addrA, "translation", "fast translations", 100, 10)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if agent.ID != 1 {
		t.Errorf("expected first id 1, got %d", agent.ID)
	}
	if agent.Reputation != InitialReputation {
		t.Errorf("expected initial reputation %d, got %d", InitialReputation, agent.Reputation)
	}
	if !agent.Active {
		t.Error("new agent should be active")
	}
	if !agent.Identifier.Valid() {
		t.Errorf("expected valid identifier, got %s", agent.Identifier)
	}
	if fees.collected != 10 {
		t.Errorf("expected fee 10 collected, got %d", fees.collected)
	}
}

func TestRegister_SequentialIDs(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	for i, addr := range []string{addrA, addrB, addrC} {
		agent, err := svc.Register(ctx, addr, "code", "", 50, 10)
		if err != nil {
			t.Fatalf("Register(%s) failed: %v", addr, err)
		}
		if agent.ID != int64(i+1) {
			t.Errorf("expected id %d, got %d", i+1, agent.ID)
		}
	}
}

func TestRegister_InsufficientFee(t *testing.T) {
	ctx := context.Background()
	svc, fees := newTestService()

	_, err := svc.Register(ctx, addrA, "code", "", 50, 9)
	if !errors.Is(err, ErrInsufficientPayment) {
		t.Fatalf("expected ErrInsufficientPayment, got %v", err)
	}

	count, _ := svc.Count(ctx)
	if count != 0 {
		t.Errorf("failed registration must not create a record, count=%d", count)
	}
	if fees.collected != 0 {
		t.Errorf("failed registration must not collect the fee, collected=%d", fees.collected)
	}
}

func TestRegister_ExcessFeeRetained(t *testing.T) {
	ctx := context.Background()
	svc, fees := newTestService()

	if _, err := svc.Register(ctx, addrA, "code", "", 50, 25); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if fees.collected != 25 {
		t.Errorf("full payment accrues to treasury, got %d", fees.collected)
	}
}

func TestRegister_InvalidRate(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	for _, rate := range []int64{0, -10} {
		if _, err := svc.Register(ctx, addrA, "code", "", rate, 10); !errors.Is(err, ErrInvalidRate) {
			t.Errorf("rate %d: expected ErrInvalidRate, got %v", rate, err)
		}
	}
}

func TestRegister_InvalidCredential(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	_, err := svc.Register(ctx, "not-an-address", "code", "", 50, 10)
	if !errors.Is(err, identity.ErrInvalidCredential) {
		t.Errorf("expected identity.ErrInvalidCredential, got %v", err)
	}
}

func TestRegister_DuplicateRefundsFee(t *testing.T) {
	ctx := context.Background()
	svc, fees := newTestService()

	if _, err := svc.Register(ctx, addrA, "code", "", 50, 10); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}

	_, err := svc.Register(ctx, addrA, "translation", "", 75, 10)
	if !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("expected ErrAlreadyRegistered, got %v", err)
	}

	// the second fee was taken and must be given back
	if fees.refunded != 10 {
		t.Errorf("expected duplicate fee refunded, refunded=%d", fees.refunded)
	}

	count, _ := svc.Count(ctx)
	if count != 1 {
		t.Errorf("expected a single record, count=%d", count)
	}
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	if _, err := svc.Register(ctx, addrA, "code", "", 50, 10); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	inactive := false
	newRate := int64(80)
	agent, err := svc.Update(ctx, addrA, &inactive, &newRate)
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if agent.Active {
		t.Error("expected agent deactivated")
	}
	if agent.Rate != 80 {
		t.Errorf("expected rate 80, got %d", agent.Rate)
	}

	// partial update: only reactivate, rate untouched
	active := true
	agent, err = svc.Update(ctx, addrA, &active, nil)
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if !agent.Active || agent.Rate != 80 {
		t.Errorf("partial update wrong: active=%v rate=%d", agent.Active, agent.Rate)
	}
}

func TestUpdate_NotRegistered(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	active := false
	if _, err := svc.Update(ctx, addrA, &active, nil); !errors.Is(err, ErrNotRegistered) {
		t.Errorf("expected ErrNotRegistered, got %v", err)
	}
}

func TestListActive_AscendingAndFiltered(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	for _, addr := range []string{addrA, addrB, addrC} {
		if _, err := svc.Register(ctx, addr, "code", "", 50, 10); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
	}
	inactive := false
	if _, err := svc.Update(ctx, addrB, &inactive, nil); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	agents, err := svc.ListActive(ctx)
	if err != nil {
		t.Fatalf("ListActive failed: %v", err)
	}
	if len(agents) != 2 {
		t.Fatalf("expected 2 active agents, got %d", len(agents))
	}
	if agents[0].ID != 1 || agents[1].ID != 3 {
		t.Errorf("expected ids [1 3], got [%d %d]", agents[0].ID, agents[1].ID)
	}
}

func TestCounters(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	agent, err := svc.Register(ctx, addrA, "code", "", 50, 10)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if err := svc.RecordCompletion(ctx, agent.ID); err != nil {
		t.Fatalf("RecordCompletion failed: %v", err)
	}
	if err := svc.RecordGratitude(ctx, agent.ID); err != nil {
		t.Fatalf("RecordGratitude failed: %v", err)
	}
	if err := svc.SetReputation(ctx, agent.ID, 51); err != nil {
		t.Fatalf("SetReputation failed: %v", err)
	}

	got, _ := svc.Get(ctx, agent.ID)
	if got.JobsCompleted != 1 || got.GratitudeReceived != 1 || got.Reputation != 51 {
		t.Errorf("counters wrong: %+v", got)
	}
}
