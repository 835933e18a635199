// Package reputation scores marketplace behavior for both sides of a
// job. Scores live in [Floor, Ceiling]; updates are asymmetric: failure
// costs more than success earns, and the requester moves further than
// the agent in both directions.
package reputation

import (
	"context"
	"errors"
	"fmt"

	"github.com/zialiel/agora/internal/identity"
)

const (
	Floor   = 0
	Ceiling = 100

	// Per-outcome deltas.
	SuccessRequesterDelta = 2
	SuccessAgentDelta     = 1
	FailureRequesterDelta = -5
	FailureAgentDelta     = -3
)

// ErrOutOfRange reports a stored score outside [Floor, Ceiling]. It
// indicates corruption; no update is applied.
var ErrOutOfRange = errors.New("reputation: stored score out of range")

// RequesterStore persists requester scores. Unknown requesters score 0.
type RequesterStore interface {
	Score(ctx context.Context, did identity.DID) (int, error)
	SetScore(ctx context.Context, did identity.DID, score int) error
}

// AgentScores reads and writes agent reputation. Implemented by the
// registry service.
type AgentScores interface {
	Reputation(ctx context.Context, agentID int64) (int, error)
	SetReputation(ctx context.Context, agentID int64, score int) error
}

// Update describes one applied reputation change.
type Update struct {
	Requester       identity.DID `json:"requester"`
	AgentID         int64        `json:"agentId"`
	Success         bool         `json:"success"`
	RequesterBefore int          `json:"requesterBefore"`
	RequesterAfter  int          `json:"requesterAfter"`
	AgentBefore     int          `json:"agentBefore"`
	AgentAfter      int          `json:"agentAfter"`
}

// Engine applies outcome-based reputation updates.
type Engine struct {
	requesters RequesterStore
	agents     AgentScores
}

// NewEngine creates a reputation engine.
func NewEngine(requesters RequesterStore, agents AgentScores) *Engine {
	return &Engine{requesters: requesters, agents: agents}
}

func clamp(score int) int {
	if score < Floor {
		return Floor
	}
	if score > Ceiling {
		return Ceiling
	}
	return score
}

// Next returns the clamped score after applying delta.
func Next(current, delta int) int {
	return clamp(current + delta)
}

// Scores returns the current requester and agent scores.
func (e *Engine) Scores(ctx context.Context, requester identity.DID, agentID int64) (requesterScore, agentScore int, err error) {
	requesterScore, err = e.requesters.Score(ctx, requester)
	if err != nil {
		return 0, 0, err
	}
	agentScore, err = e.agents.Reputation(ctx, agentID)
	if err != nil {
		return 0, 0, err
	}
	return requesterScore, agentScore, nil
}

// Apply moves both parties' scores for a job outcome and returns the
// before/after values.
func (e *Engine) Apply(ctx context.Context, requester identity.DID, agentID int64, success bool) (*Update, error) {
	requesterBefore, agentBefore, err := e.Scores(ctx, requester, agentID)
	if err != nil {
		return nil, err
	}
	if requesterBefore < Floor || requesterBefore > Ceiling {
		return nil, fmt.Errorf("%w: requester %s at %d", ErrOutOfRange, requester, requesterBefore)
	}
	if agentBefore < Floor || agentBefore > Ceiling {
		return nil, fmt.Errorf("%w: agent %d at %d", ErrOutOfRange, agentID, agentBefore)
	}

	requesterDelta, agentDelta := FailureRequesterDelta, FailureAgentDelta
	if success {
		requesterDelta, agentDelta = SuccessRequesterDelta, SuccessAgentDelta
	}

	u := &Update{
		Requester:       requester,
		AgentID:         agentID,
		Success:         success,
		RequesterBefore: requesterBefore,
		RequesterAfter:  Next(requesterBefore, requesterDelta),
		AgentBefore:     agentBefore,
		AgentAfter:      Next(agentBefore, agentDelta),
	}

	if err := e.agents.SetReputation(ctx, agentID, u.AgentAfter); err != nil {
		return nil, fmt.Errorf("store agent score: %w", err)
	}
	if err := e.requesters.SetScore(ctx, requester, u.RequesterAfter); err != nil {
		return nil, fmt.Errorf("store requester score: %w", err)
	}

	return u, nil
}
