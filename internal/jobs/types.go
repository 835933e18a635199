// Package jobs implements the job ledger: the lifecycle of paid work
// between a requester and an agent. A job opens with its payment locked
// in escrow and reaches exactly one terminal outcome; settlement,
// reputation, and audit events all hang off that single transition.
package jobs

import (
	"errors"
	"time"

	"github.com/zialiel/agora/internal/identity"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	ErrJobNotFound         = errors.New("jobs: job not found")
	ErrAlreadyTerminal     = errors.New("jobs: job already settled")
	ErrNotYourJob          = errors.New("jobs: caller is not the assigned agent")
	ErrNotAuthorized       = errors.New("jobs: caller is not a party to this job")
	ErrAgentInactive       = errors.New("jobs: agent is not accepting work")
	ErrInsufficientPayment = errors.New("jobs: payment below the agent's rate")
	ErrInvalidAmount       = errors.New("jobs: amount must be positive")
)

// -----------------------------------------------------------------------------
// Core Types
// -----------------------------------------------------------------------------

// Outcome is a job's terminal result.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Policy selects where a failed job's escrow goes.
type Policy string

const (
	PolicyTreasury Policy = "treasury"
	PolicyRefund   Policy = "refund"
)

// Job is one unit of paid work.
type Job struct {
	ID          int64        `json:"id"`
	AgentID     int64        `json:"agentId"`
	Requester   identity.DID `json:"requester"`
	Description string       `json:"description"`
	Budget      int64        `json:"budget"`   // agent's rate at creation; paid out on success
	Escrowed    int64        `json:"escrowed"` // full payment locked at creation
	ResultRef   string       `json:"resultRef,omitempty"`
	Outcome     Outcome      `json:"outcome,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	// CompletedAt is unix seconds of the terminal transition; 0 while open.
	CompletedAt int64 `json:"completedAt"`

	// Reputation snapshots taken at creation.
	RequesterReputation int `json:"requesterReputation"`
	AgentReputation     int `json:"agentReputation"`
}

// Terminal reports whether the job has settled.
func (j *Job) Terminal() bool { return j.CompletedAt != 0 }

func nowUnix() int64 { return time.Now().Unix() }

// -----------------------------------------------------------------------------
// Request Types
// -----------------------------------------------------------------------------

// CreateRequest is the payload for opening a job.
type CreateRequest struct {
	CallerAddress string `json:"callerAddress" binding:"required"`
	AgentID       int64  `json:"agentId" binding:"required"`
	Description   string `json:"description"`
	Payment       int64  `json:"payment" binding:"required"`
}

// CompleteRequest is the payload for settling a job successfully.
type CompleteRequest struct {
	CallerAddress string `json:"callerAddress" binding:"required"`
	ResultRef     string `json:"resultRef"`
}

// FailRequest is the payload for reporting a failed job.
type FailRequest struct {
	CallerAddress string `json:"callerAddress" binding:"required"`
}

// GratitudeRequest is the payload for a gratitude transfer.
type GratitudeRequest struct {
	CallerAddress string `json:"callerAddress" binding:"required"`
	AgentID       int64  `json:"agentId" binding:"required"`
	Amount        int64  `json:"amount" binding:"required"`
	Reason        string `json:"reason"`
	Payment       int64  `json:"payment" binding:"required"`
}
