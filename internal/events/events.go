// Package events records the marketplace audit trail.
//
// Every state-changing operation emits one typed event. Emission is
// fire-and-forget: a failed append or broadcast never fails the
// operation that produced it.
package events

import (
	"context"
	"time"

	"github.com/zialiel/agora/internal/logging"
)

// Event types.
const (
	TypeAgentRegistered   = "agent.registered"
	TypeAgentUpdated      = "agent.updated"
	TypeJobCreated        = "job.created"
	TypeJobCompleted      = "job.completed" // carries success=true|false
	TypeGratitudeSent     = "gratitude.sent"
	TypeReputationUpdated = "reputation.updated"
)

// Event is one audit record.
type Event struct {
	ID        int64          `json:"id"`
	Type      string         `json:"type"`
	Fields    map[string]any `json:"fields,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// Store persists the append-only audit trail.
type Store interface {
	Append(ctx context.Context, e *Event) error
	Recent(ctx context.Context, limit int) ([]*Event, error)
}

// Broadcaster pushes events to live subscribers.
type Broadcaster interface {
	Broadcast(v any)
}

// Recorder appends audit events and fans them out to subscribers.
type Recorder struct {
	store Store
	hub   Broadcaster // optional
}

// NewRecorder creates a recorder. hub may be nil.
func NewRecorder(store Store, hub Broadcaster) *Recorder {
	return &Recorder{store: store, hub: hub}
}

// Emit records an audit event. Best-effort: errors are logged, never
// returned.
func (r *Recorder) Emit(ctx context.Context, typ string, fields map[string]any) {
	e := &Event{
		Type:      typ,
		Fields:    fields,
		CreatedAt: time.Now(),
	}
	if err := r.store.Append(ctx, e); err != nil {
		logging.L(ctx).Error("failed to append audit event", "type", typ, "error", err)
		return
	}
	if r.hub != nil {
		r.hub.Broadcast(e)
	}
}

// Recent returns the newest events, newest first.
func (r *Recorder) Recent(ctx context.Context, limit int) ([]*Event, error) {
	if limit <= 0 {
		limit = 50
	}
	return r.store.Recent(ctx, limit)
}
