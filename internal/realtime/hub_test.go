package realtime

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/zialiel/agora/internal/events"
)

func testHub() *Hub {
	return NewHub(slog.Default())
}

// ---------------------------------------------------------------------------
// shouldSend tests
// ---------------------------------------------------------------------------

func TestShouldSend_AllEvents(t *testing.T) {
	h := testHub()
	client := &Client{sub: Subscription{AllEvents: true}}

	event := &events.Event{Type: events.TypeJobCreated, CreatedAt: time.Now()}
	if !h.shouldSend(client, event) {
		t.Error("AllEvents client should receive all events")
	}
}

func TestShouldSend_EventTypeFilter(t *testing.T) {
	h := testHub()

	client := &Client{sub: Subscription{
		EventTypes: []string{events.TypeJobCreated, events.TypeJobCompleted},
	}}

	created := &events.Event{Type: events.TypeJobCreated}
	completed := &events.Event{Type: events.TypeJobCompleted}
	gratitude := &events.Event{Type: events.TypeGratitudeSent}

	if !h.shouldSend(client, created) {
		t.Error("Should receive job.created events")
	}
	if !h.shouldSend(client, completed) {
		t.Error("Should receive job.completed events")
	}
	if h.shouldSend(client, gratitude) {
		t.Error("Should NOT receive gratitude.sent events")
	}
}

func TestShouldSend_AgentFilter(t *testing.T) {
	h := testHub()

	client := &Client{sub: Subscription{
		AgentIDs: []int64{7},
	}}

	matching := &events.Event{
		Type:   events.TypeJobCreated,
		Fields: map[string]any{"agentId": int64(7)},
	}
	notMatching := &events.Event{
		Type:   events.TypeJobCreated,
		Fields: map[string]any{"agentId": int64(3)},
	}
	// agentId decoded from JSON arrives as float64
	matchingFloat := &events.Event{
		Type:   events.TypeJobCompleted,
		Fields: map[string]any{"agentId": float64(7)},
	}

	if !h.shouldSend(client, matching) {
		t.Error("Should match on agentId")
	}
	if h.shouldSend(client, notMatching) {
		t.Error("Should NOT match other agents")
	}
	if !h.shouldSend(client, matchingFloat) {
		t.Error("Should match float64 agentId")
	}
}

func TestShouldSend_RequesterFilter(t *testing.T) {
	h := testHub()

	did := "did:zia:0x2222222222222222222222222222222222222222"
	client := &Client{sub: Subscription{
		Requesters: []string{did},
	}}

	matching := &events.Event{
		Type:   events.TypeJobCreated,
		Fields: map[string]any{"requester": did},
	}
	matchingFrom := &events.Event{
		Type:   events.TypeGratitudeSent,
		Fields: map[string]any{"from": did},
	}
	notMatching := &events.Event{
		Type:   events.TypeJobCreated,
		Fields: map[string]any{"requester": "did:zia:0x1111111111111111111111111111111111111111"},
	}

	if !h.shouldSend(client, matching) {
		t.Error("Should match on requester")
	}
	if !h.shouldSend(client, matchingFrom) {
		t.Error("Should match on from")
	}
	if h.shouldSend(client, notMatching) {
		t.Error("Should NOT match other requesters")
	}
}

func TestShouldSend_EmptySubscription(t *testing.T) {
	h := testHub()

	// No filters, not AllEvents
	client := &Client{sub: Subscription{}}

	event := &events.Event{Type: events.TypeJobCreated}
	if !h.shouldSend(client, event) {
		t.Error("Empty subscription (no filters) should receive events")
	}
}

func TestShouldSend_MissingField(t *testing.T) {
	h := testHub()

	client := &Client{sub: Subscription{
		AgentIDs: []int64{7},
	}}

	// Events without an agentId pass through; the filter can't apply.
	event := &events.Event{
		Type:   events.TypeReputationUpdated,
		Fields: map[string]any{"party": "requester"},
	}
	if !h.shouldSend(client, event) {
		t.Error("Events without agentId should pass through the agent filter")
	}
}

// ---------------------------------------------------------------------------
// Hub lifecycle tests
// ---------------------------------------------------------------------------

func TestHub_Stats_Initial(t *testing.T) {
	h := testHub()

	stats := h.Stats()
	if stats["connectedClients"].(int) != 0 {
		t.Errorf("Expected 0 connected clients, got %v", stats["connectedClients"])
	}
	if stats["totalEvents"].(int64) != 0 {
		t.Errorf("Expected 0 total events, got %v", stats["totalEvents"])
	}
}

func TestHub_BroadcastAndStats(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	h.Broadcast(&events.Event{Type: events.TypeJobCreated, CreatedAt: time.Now()})
	time.Sleep(50 * time.Millisecond)

	stats := h.Stats()
	if stats["totalEvents"].(int64) != 1 {
		t.Errorf("Expected 1 total event, got %v", stats["totalEvents"])
	}
}

func TestHub_RegisterUnregister(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	client := &Client{
		hub:  h,
		send: make(chan []byte, 256),
		sub:  Subscription{AllEvents: true},
	}

	h.register <- client
	time.Sleep(50 * time.Millisecond)

	stats := h.Stats()
	if stats["connectedClients"].(int) != 1 {
		t.Errorf("Expected 1 connected client, got %v", stats["connectedClients"])
	}
	if stats["peakClients"].(int64) != 1 {
		t.Errorf("Expected peak 1, got %v", stats["peakClients"])
	}

	h.unregister <- client
	time.Sleep(50 * time.Millisecond)

	stats = h.Stats()
	if stats["connectedClients"].(int) != 0 {
		t.Errorf("Expected 0 connected clients after unregister, got %v", stats["connectedClients"])
	}
	// Peak should still be 1
	if stats["peakClients"].(int64) != 1 {
		t.Errorf("Expected peak still 1, got %v", stats["peakClients"])
	}
}

func TestHub_BroadcastToClient(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	client := &Client{
		hub:  h,
		send: make(chan []byte, 256),
		sub:  Subscription{AllEvents: true},
	}

	h.register <- client
	time.Sleep(50 * time.Millisecond)

	h.Broadcast(&events.Event{
		Type:      events.TypeJobCompleted,
		CreatedAt: time.Now(),
		Fields:    map[string]any{"jobId": int64(1), "success": true},
	})

	select {
	case msg := <-client.send:
		if len(msg) == 0 {
			t.Error("Expected non-empty message")
		}
	case <-time.After(time.Second):
		t.Error("Timeout waiting for broadcast")
	}
}

func TestHub_IgnoresNonEvents(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	// Should not panic or count
	h.Broadcast("not an event")
	time.Sleep(50 * time.Millisecond)

	stats := h.Stats()
	if stats["totalEvents"].(int64) != 0 {
		t.Errorf("Expected 0 total events, got %v", stats["totalEvents"])
	}
}

func TestHub_ContextCancellation(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
		// Hub stopped
	case <-time.After(2 * time.Second):
		t.Error("Hub did not stop after context cancellation")
	}
}

func TestHub_FilteredBroadcast(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	// Client only wants reputation changes
	client := &Client{
		hub:  h,
		send: make(chan []byte, 256),
		sub:  Subscription{EventTypes: []string{events.TypeReputationUpdated}},
	}

	h.register <- client
	time.Sleep(50 * time.Millisecond)

	// Send a job event (should be filtered out)
	h.Broadcast(&events.Event{Type: events.TypeJobCreated, CreatedAt: time.Now()})
	time.Sleep(100 * time.Millisecond)

	select {
	case <-client.send:
		t.Error("Client should NOT receive job.created event")
	default:
		// Good - filtered out
	}

	// Send a reputation event (should be received)
	h.Broadcast(&events.Event{Type: events.TypeReputationUpdated, CreatedAt: time.Now()})

	select {
	case msg := <-client.send:
		if len(msg) == 0 {
			t.Error("Expected non-empty message")
		}
	case <-time.After(time.Second):
		t.Error("Client should receive reputation.updated event")
	}
}
