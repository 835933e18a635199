// Package registry implements agent registration and discovery.
// Agent records are the supply side of the marketplace: everything the
// matcher and the job ledger know about a provider lives here.
package registry

import (
	"errors"
	"time"

	"github.com/zialiel/agora/internal/identity"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	ErrAgentNotFound       = errors.New("registry: agent not found")
	ErrAlreadyRegistered   = errors.New("registry: identifier already registered")
	ErrNotRegistered       = errors.New("registry: caller has no agent record")
	ErrInsufficientPayment = errors.New("registry: registration fee not covered")
	ErrInvalidRate         = errors.New("registry: rate must be a positive amount")
)

// InitialReputation is the score every agent starts with.
const InitialReputation = 50

// -----------------------------------------------------------------------------
// Core Types
// -----------------------------------------------------------------------------

// Agent is a registered service provider.
type Agent struct {
	ID                int64        `json:"id"`
	Identifier        identity.DID `json:"identifier"`
	PayoutAddress     string       `json:"payoutAddress"`
	Specialty         string       `json:"specialty"`
	Description       string       `json:"description"`
	Rate              int64        `json:"rate"` // minimum job payment, whole tokens
	Reputation        int          `json:"reputation"`
	JobsCompleted     int64        `json:"jobsCompleted"`
	GratitudeReceived int64        `json:"gratitudeReceived"`
	Active            bool         `json:"active"`
	RegisteredAt      time.Time    `json:"registeredAt"`
}

// -----------------------------------------------------------------------------
// Request Types
// -----------------------------------------------------------------------------

// RegisterRequest is the payload for agent registration.
type RegisterRequest struct {
	CallerAddress string `json:"callerAddress" binding:"required"`
	Specialty     string `json:"specialty" binding:"required"`
	Description   string `json:"description"`
	Rate          int64  `json:"rate" binding:"required"`
	FeePaid       int64  `json:"feePaid"`
}

// UpdateRequest is the payload for updating an agent record. Nil fields
// are left unchanged.
type UpdateRequest struct {
	CallerAddress string `json:"callerAddress" binding:"required"`
	Active        *bool  `json:"active,omitempty"`
	Rate          *int64 `json:"rate,omitempty"`
}
