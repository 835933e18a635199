package jobs

import (
	"context"
	"fmt"

	"github.com/zialiel/agora/internal/events"
	"github.com/zialiel/agora/internal/identity"
	"github.com/zialiel/agora/internal/logging"
	"github.com/zialiel/agora/internal/metrics"
	"github.com/zialiel/agora/internal/registry"
	"github.com/zialiel/agora/internal/reputation"
	"github.com/zialiel/agora/internal/syncutil"
	"github.com/zialiel/agora/internal/traces"
)

// Settlement is the slice of the custody ledger the job ledger drives.
type Settlement interface {
	EscrowLock(ctx context.Context, reference string, amount int64) error
	Settle(ctx context.Context, reference, payoutAddr string, budget int64) error
	Forfeit(ctx context.Context, reference string) (int64, error)
	Refund(ctx context.Context, reference, payoutAddr string) (int64, error)
	Gratuity(ctx context.Context, from, payoutAddr string, amount, excess int64) error
}

// Directory is the slice of the registry the job ledger needs.
type Directory interface {
	Get(ctx context.Context, id int64) (*registry.Agent, error)
	RecordCompletion(ctx context.Context, id int64) error
	RecordGratitude(ctx context.Context, id int64) error
}

// Reputation applies outcome-based score updates.
type Reputation interface {
	Scores(ctx context.Context, requester identity.DID, agentID int64) (int, int, error)
	Apply(ctx context.Context, requester identity.DID, agentID int64, success bool) (*reputation.Update, error)
}

// Emitter records audit events.
type Emitter interface {
	Emit(ctx context.Context, typ string, fields map[string]any)
}

// Service runs the job lifecycle.
type Service struct {
	store  Store
	agents Directory
	settle Settlement
	rep    Reputation
	emit   Emitter
	policy Policy
	locks  syncutil.ShardedMutex
}

// NewService creates a job service. policy selects where failed-job
// escrow goes.
func NewService(store Store, agents Directory, settle Settlement, rep Reputation, emit Emitter, policy Policy) *Service {
	return &Service{
		store:  store,
		agents: agents,
		settle: settle,
		rep:    rep,
		emit:   emit,
		policy: policy,
	}
}

func jobRef(id int64) string {
	return fmt.Sprintf("job_%d", id)
}

// Create opens a job against an active agent and locks the full payment
// in escrow.
func (s *Service) Create(ctx context.Context, callerAddress string, agentID int64, description string, payment int64) (*Job, error) {
	requester, err := identity.FromCredential(callerAddress)
	if err != nil {
		return nil, err
	}

	agent, err := s.agents.Get(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if !agent.Active {
		return nil, ErrAgentInactive
	}
	if payment < agent.Rate {
		return nil, ErrInsufficientPayment
	}

	requesterScore, agentScore, err := s.rep.Scores(ctx, requester, agentID)
	if err != nil {
		return nil, fmt.Errorf("snapshot reputation: %w", err)
	}

	job := &Job{
		AgentID:             agentID,
		Requester:           requester,
		Description:         description,
		Budget:              agent.Rate,
		Escrowed:            payment,
		RequesterReputation: requesterScore,
		AgentReputation:     agentScore,
	}

	id, err := s.store.Create(ctx, job)
	if err != nil {
		return nil, err
	}

	if err := s.settle.EscrowLock(ctx, jobRef(id), payment); err != nil {
		// The record never became visible to settlement; take it back.
		if discardErr := s.store.Discard(ctx, id); discardErr != nil {
			logging.L(ctx).Error("CRITICAL: unfunded job record could not be discarded",
				"job_id", id, "error", discardErr)
		}
		return nil, fmt.Errorf("escrow payment: %w", err)
	}

	metrics.JobsTotal.WithLabelValues("created").Inc()
	if s.emit != nil {
		s.emit.Emit(ctx, events.TypeJobCreated, map[string]any{
			"jobId":     id,
			"agentId":   agentID,
			"requester": requester.String(),
			"budget":    job.Budget,
			"escrowed":  payment,
		})
	}
	logging.L(ctx).Info("job created",
		"job_id", id, "agent_id", agentID, "requester", requester, "escrowed", payment)

	return job, nil
}

// Complete settles a job successfully. Only the assigned agent may call
// it, exactly once: the budget is released to the agent, counters and
// reputation move, and the job becomes terminal.
func (s *Service) Complete(ctx context.Context, id int64, callerAddress, resultRef string) (*Job, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	job, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	// Terminal wins over ownership: a retry against a settled job
	// reports the settled state no matter who calls.
	if job.Terminal() {
		return nil, ErrAlreadyTerminal
	}

	caller, err := identity.FromCredential(callerAddress)
	if err != nil {
		return nil, err
	}
	agent, err := s.agents.Get(ctx, job.AgentID)
	if err != nil {
		return nil, err
	}
	if caller != agent.Identifier {
		return nil, ErrNotYourJob
	}

	ctx, span := traces.StartSpan(ctx, "jobs.settle",
		traces.JobID(id), traces.AgentID(job.AgentID), traces.Amount(job.Budget))
	defer span.End()

	// Move funds before the state write; a failed transfer leaves the
	// job open and retryable.
	if err := s.settle.Settle(ctx, jobRef(id), agent.PayoutAddress, job.Budget); err != nil {
		return nil, fmt.Errorf("release escrow: %w", err)
	}

	job.ResultRef = resultRef
	job.Outcome = OutcomeSuccess
	job.CompletedAt = nowUnix()

	if err := s.writeTerminal(ctx, job); err != nil {
		return nil, err
	}

	if err := s.agents.RecordCompletion(ctx, job.AgentID); err != nil {
		logging.L(ctx).Error("failed to bump completion counter", "agent_id", job.AgentID, "error", err)
	}
	s.applyReputation(ctx, job, true)

	metrics.JobsTotal.WithLabelValues("completed").Inc()
	if s.emit != nil {
		s.emit.Emit(ctx, events.TypeJobCompleted, map[string]any{
			"jobId":     id,
			"agentId":   job.AgentID,
			"requester": job.Requester.String(),
			"success":   true,
			"paid":      job.Budget,
			"resultRef": resultRef,
		})
	}
	logging.L(ctx).Info("job completed", "job_id", id, "agent_id", job.AgentID, "paid", job.Budget)

	return job, nil
}

// ReportFailed settles a job as failed. Either party may report it,
// exactly once: escrow moves per policy and both reputations drop.
func (s *Service) ReportFailed(ctx context.Context, id int64, callerAddress string) (*Job, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	job, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Terminal() {
		return nil, ErrAlreadyTerminal
	}

	caller, err := identity.FromCredential(callerAddress)
	if err != nil {
		return nil, err
	}
	agent, err := s.agents.Get(ctx, job.AgentID)
	if err != nil {
		return nil, err
	}
	if caller != job.Requester && caller != agent.Identifier {
		return nil, ErrNotAuthorized
	}

	ctx, span := traces.StartSpan(ctx, "jobs.forfeit",
		traces.JobID(id), traces.AgentID(job.AgentID), traces.Amount(job.Escrowed))
	defer span.End()

	switch s.policy {
	case PolicyRefund:
		payout, addrErr := job.Requester.Address()
		if addrErr != nil {
			return nil, addrErr
		}
		if _, err := s.settle.Refund(ctx, jobRef(id), payout.Hex()); err != nil {
			return nil, fmt.Errorf("refund escrow: %w", err)
		}
	default:
		if _, err := s.settle.Forfeit(ctx, jobRef(id)); err != nil {
			return nil, fmt.Errorf("forfeit escrow: %w", err)
		}
	}

	job.Outcome = OutcomeFailure
	job.CompletedAt = nowUnix()

	if err := s.writeTerminal(ctx, job); err != nil {
		return nil, err
	}

	s.applyReputation(ctx, job, false)

	metrics.JobsTotal.WithLabelValues("failed").Inc()
	if s.emit != nil {
		s.emit.Emit(ctx, events.TypeJobCompleted, map[string]any{
			"jobId":     id,
			"agentId":   job.AgentID,
			"requester": job.Requester.String(),
			"success":   false,
			"policy":    string(s.policy),
			"escrowed":  job.Escrowed,
		})
	}
	logging.L(ctx).Info("job failed", "job_id", id, "agent_id", job.AgentID, "policy", s.policy)

	return job, nil
}

// writeTerminal persists a terminal transition after funds have moved.
// One retry, then a CRITICAL log: at that point money and state
// disagree and need manual resolution.
func (s *Service) writeTerminal(ctx context.Context, job *Job) error {
	err := s.store.Update(ctx, job)
	if err == nil {
		return nil
	}
	logging.L(ctx).Warn("terminal state write failed, retrying", "job_id", job.ID, "error", err)
	if err = s.store.Update(ctx, job); err != nil {
		logging.L(ctx).Error("CRITICAL: escrow settled but job state not persisted",
			"job_id", job.ID, "outcome", job.Outcome, "error", err)
		return fmt.Errorf("persist terminal state: %w", err)
	}
	return nil
}

func (s *Service) applyReputation(ctx context.Context, job *Job, success bool) {
	u, err := s.rep.Apply(ctx, job.Requester, job.AgentID, success)
	if err != nil {
		logging.L(ctx).Error("reputation update failed",
			"job_id", job.ID, "agent_id", job.AgentID, "error", err)
		return
	}
	if s.emit == nil {
		return
	}
	s.emit.Emit(ctx, events.TypeReputationUpdated, map[string]any{
		"party":  "requester",
		"id":     u.Requester.String(),
		"before": u.RequesterBefore,
		"after":  u.RequesterAfter,
		"jobId":  job.ID,
	})
	s.emit.Emit(ctx, events.TypeReputationUpdated, map[string]any{
		"party":  "agent",
		"id":     u.AgentID,
		"before": u.AgentBefore,
		"after":  u.AgentAfter,
		"jobId":  job.ID,
	})
}

// SendGratitude forwards a voluntary transfer to an agent, outside any
// job. No reputation effect; the agent's gratitude counter moves.
func (s *Service) SendGratitude(ctx context.Context, callerAddress string, agentID, amount int64, reason string, payment int64) error {
	sender, err := identity.FromCredential(callerAddress)
	if err != nil {
		return err
	}
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if payment < amount {
		return ErrInsufficientPayment
	}

	agent, err := s.agents.Get(ctx, agentID)
	if err != nil {
		return err
	}

	senderAddr, err := sender.Address()
	if err != nil {
		return err
	}
	if err := s.settle.Gratuity(ctx, senderAddr.Hex(), agent.PayoutAddress, amount, payment-amount); err != nil {
		return fmt.Errorf("forward gratuity: %w", err)
	}

	if err := s.agents.RecordGratitude(ctx, agentID); err != nil {
		logging.L(ctx).Error("failed to bump gratitude counter", "agent_id", agentID, "error", err)
	}

	metrics.GratitudeSentTotal.Inc()
	if s.emit != nil {
		s.emit.Emit(ctx, events.TypeGratitudeSent, map[string]any{
			"from":    sender.String(),
			"agentId": agentID,
			"amount":  amount,
			"reason":  reason,
		})
	}
	logging.L(ctx).Info("gratitude sent", "from", sender, "agent_id", agentID, "amount", amount)

	return nil
}

// Get returns a job by id.
func (s *Service) Get(ctx context.Context, id int64) (*Job, error) {
	return s.store.Get(ctx, id)
}

// Count returns the total number of jobs, open or settled.
func (s *Service) Count(ctx context.Context) (int64, error) {
	return s.store.Count(ctx)
}

// ListByRequester returns a requester's jobs in ascending id order.
func (s *Service) ListByRequester(ctx context.Context, callerAddress string, limit int) ([]*Job, error) {
	requester, err := identity.FromCredential(callerAddress)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}
	return s.store.ListByRequester(ctx, requester, limit)
}

// ListByAgent returns an agent's jobs in ascending id order.
func (s *Service) ListByAgent(ctx context.Context, agentID int64, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.store.ListByAgent(ctx, agentID, limit)
}
