// Package matching picks the best active agent for a job description.
//
// The scan is deterministic: agents are visited in ascending id order,
// scored as reputation plus a bonus when the job description contains
// the agent's specialty verbatim, and a candidate only displaces the
// current best on a strictly greater score. Ties therefore go to the
// lowest id.
package matching

import (
	"context"
	"strings"

	"github.com/zialiel/agora/internal/metrics"
	"github.com/zialiel/agora/internal/registry"
)

// DefaultSpecialtyBonus is the score bonus for a specialty mention.
const DefaultSpecialtyBonus = 20

// Directory lists candidate agents in ascending id order.
type Directory interface {
	ListActive(ctx context.Context) ([]*registry.Agent, error)
}

// Match is a scored winner.
type Match struct {
	AgentID int64 `json:"agentId"`
	Score   int   `json:"score"`
}

// Service scores and selects agents.
type Service struct {
	agents Directory
	bonus  int
}

// NewService creates a matching service with the given specialty bonus.
func NewService(agents Directory, bonus int) *Service {
	return &Service{agents: agents, bonus: bonus}
}

// Score computes an agent's score for a description. The specialty
// match is a contiguous, case-sensitive substring check; an empty
// specialty never earns the bonus.
func (s *Service) Score(agent *registry.Agent, description string) int {
	score := agent.Reputation
	if agent.Specialty != "" && strings.Contains(description, agent.Specialty) {
		score += s.bonus
	}
	return score
}

// FindBestAgent returns the winning agent id and score, or (0, 0) when
// no active agent scores above zero.
func (s *Service) FindBestAgent(ctx context.Context, description string) (Match, error) {
	agents, err := s.agents.ListActive(ctx)
	if err != nil {
		return Match{}, err
	}

	// best starts at (0, 0); only a strictly greater score displaces
	// it, so a pool where nobody scores above 0 yields no match.
	var best Match
	for _, agent := range agents {
		score := s.Score(agent, description)
		if score > best.Score {
			best = Match{AgentID: agent.ID, Score: score}
		}
	}

	if best.AgentID == 0 {
		metrics.MatchRequestsTotal.WithLabelValues("no_match").Inc()
	} else {
		metrics.MatchRequestsTotal.WithLabelValues("matched").Inc()
	}
	return best, nil
}
