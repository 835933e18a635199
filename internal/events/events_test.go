package events

import (
	"context"
	"errors"
	"testing"
)

type captureHub struct {
	got []any
}

func (h *captureHub) Broadcast(v any) { h.got = append(h.got, v) }

func TestEmit_AppendsAndBroadcasts(t *testing.T) {
	ctx := context.Background()
	hub := &captureHub{}
	r := NewRecorder(NewMemoryStore(), hub)

	r.Emit(ctx, TypeJobCreated, map[string]any{"jobId": int64(1)})
	r.Emit(ctx, TypeJobCompleted, map[string]any{"jobId": int64(1), "success": true})

	recent, err := r.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 events, got %d", len(recent))
	}
	// newest first
	if recent[0].Type != TypeJobCompleted {
		t.Errorf("expected newest first, got %s", recent[0].Type)
	}
	if recent[0].ID <= recent[1].ID {
		t.Errorf("expected increasing ids, got %d then %d", recent[1].ID, recent[0].ID)
	}
	if len(hub.got) != 2 {
		t.Errorf("expected 2 broadcasts, got %d", len(hub.got))
	}
}

type failingStore struct{}

func (failingStore) Append(context.Context, *Event) error { return errors.New("store down") }
func (failingStore) Recent(context.Context, int) ([]*Event, error) {
	return nil, errors.New("store down")
}

func TestEmit_FireAndForget(t *testing.T) {
	hub := &captureHub{}
	r := NewRecorder(failingStore{}, hub)

	// must not panic or propagate the store error
	r.Emit(context.Background(), TypeAgentRegistered, nil)

	if len(hub.got) != 0 {
		t.Error("failed append must not be broadcast")
	}
}

func TestRecent_Limit(t *testing.T) {
	ctx := context.Background()
	r := NewRecorder(NewMemoryStore(), nil)
	for i := 0; i < 5; i++ {
		r.Emit(ctx, TypeAgentUpdated, nil)
	}

	recent, err := r.Recent(ctx, 3)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(recent) != 3 {
		t.Errorf("expected 3 events, got %d", len(recent))
	}
}
