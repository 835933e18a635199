package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/zialiel/agora/internal/events"
	"github.com/zialiel/agora/internal/identity"
	"github.com/zialiel/agora/internal/logging"
	"github.com/zialiel/agora/internal/metrics"
)

// Treasury collects and, when registration cannot complete, reverses
// registration fees.
type Treasury interface {
	CollectFee(ctx context.Context, from string, amount int64) error
	RefundFee(ctx context.Context, to string, amount int64) error
}

// Emitter records audit events.
type Emitter interface {
	Emit(ctx context.Context, typ string, fields map[string]any)
}

// Service wraps a Store with the marketplace's registration rules.
type Service struct {
	store Store
	fees  Treasury
	emit  Emitter
	fee   int64
}

// NewService creates a registry service. fee is the registration fee in
// whole tokens.
func NewService(store Store, fees Treasury, emit Emitter, fee int64) *Service {
	return &Service{store: store, fees: fees, emit: emit, fee: fee}
}

// RegistrationFee returns the configured fee.
func (s *Service) RegistrationFee() int64 { return s.fee }

// Register creates an agent record for the caller. The full attached
// payment accrues to the treasury, even above the required fee.
func (s *Service) Register(ctx context.Context, callerAddress, specialty, description string, rate, feePaid int64) (*Agent, error) {
	did, err := identity.FromCredential(callerAddress)
	if err != nil {
		return nil, err
	}
	if rate <= 0 {
		return nil, ErrInvalidRate
	}
	if feePaid < s.fee {
		return nil, ErrInsufficientPayment
	}

	payout, err := did.Address()
	if err != nil {
		return nil, err
	}
	payoutAddr := payout.Hex()

	// Collect the fee first; reverse it if the record cannot be created.
	if err := s.fees.CollectFee(ctx, payoutAddr, feePaid); err != nil {
		return nil, fmt.Errorf("collect registration fee: %w", err)
	}

	agent := &Agent{
		Identifier:    did,
		PayoutAddress: payoutAddr,
		Specialty:     specialty,
		Description:   description,
		Rate:          rate,
		Reputation:    InitialReputation,
		Active:        true,
	}

	if _, err := s.store.Create(ctx, agent); err != nil {
		if refundErr := s.fees.RefundFee(ctx, payoutAddr, feePaid); refundErr != nil {
			logging.L(ctx).Error("CRITICAL: fee collected but registration failed and refund failed",
				"identifier", did, "amount", feePaid, "error", refundErr)
		}
		return nil, err
	}

	metrics.AgentsRegisteredTotal.Inc()
	if s.emit != nil {
		s.emit.Emit(ctx, events.TypeAgentRegistered, map[string]any{
			"agentId":    agent.ID,
			"identifier": did.String(),
			"specialty":  specialty,
			"rate":       rate,
		})
	}
	logging.L(ctx).Info("agent registered", "agent_id", agent.ID, "identifier", did, "rate", rate)

	return agent, nil
}

// Update changes the caller's own record. Nil fields are left unchanged.
func (s *Service) Update(ctx context.Context, callerAddress string, active *bool, rate *int64) (*Agent, error) {
	did, err := identity.FromCredential(callerAddress)
	if err != nil {
		return nil, err
	}
	if rate != nil && *rate <= 0 {
		return nil, ErrInvalidRate
	}

	existing, err := s.store.GetByIdentifier(ctx, did)
	if err != nil {
		if errors.Is(err, ErrAgentNotFound) {
			return nil, ErrNotRegistered
		}
		return nil, err
	}

	updated, err := s.store.Mutate(ctx, existing.ID, func(a *Agent) error {
		if active != nil {
			a.Active = *active
		}
		if rate != nil {
			a.Rate = *rate
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.emit != nil {
		s.emit.Emit(ctx, events.TypeAgentUpdated, map[string]any{
			"agentId": updated.ID,
			"active":  updated.Active,
			"rate":    updated.Rate,
		})
	}

	return updated, nil
}

// Get returns the agent with the given id.
func (s *Service) Get(ctx context.Context, id int64) (*Agent, error) {
	return s.store.Get(ctx, id)
}

// ListActive returns active agents in ascending id order.
func (s *Service) ListActive(ctx context.Context) ([]*Agent, error) {
	return s.store.ListActive(ctx)
}

// Count returns the total number of records, active or not.
func (s *Service) Count(ctx context.Context) (int64, error) {
	return s.store.Count(ctx)
}

// Reputation returns an agent's current score.
func (s *Service) Reputation(ctx context.Context, id int64) (int, error) {
	agent, err := s.store.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	return agent.Reputation, nil
}

// SetReputation stores an agent's new score.
func (s *Service) SetReputation(ctx context.Context, id int64, score int) error {
	_, err := s.store.Mutate(ctx, id, func(a *Agent) error {
		a.Reputation = score
		return nil
	})
	return err
}

// RecordCompletion bumps the agent's completed-jobs counter.
func (s *Service) RecordCompletion(ctx context.Context, id int64) error {
	_, err := s.store.Mutate(ctx, id, func(a *Agent) error {
		a.JobsCompleted++
		return nil
	})
	return err
}

// RecordGratitude bumps the agent's gratitude counter.
func (s *Service) RecordGratitude(ctx context.Context, id int64) error {
	_, err := s.store.Mutate(ctx, id, func(a *Agent) error {
		a.GratitudeReceived++
		return nil
	})
	return err
}
