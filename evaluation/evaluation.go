package evaluation

import (
	"errors"
	"fmt"
	"sort"

	"github.com/hupe1980/trademesh/core"
	"github.com/hupe1980/trademesh/game"
	"github.com/hupe1980/trademesh/logging"
)

// Outcome is one agent's final position at the end of a run.
type Outcome struct {
	Holdings core.Holdings      `json:"holdings"`
	Params   core.UtilityParams `json:"params"`
}

// AgentResult carries one agent's evaluation numbers. EquilibriumScore and
// Efficiency are populated only when the evaluator knows the game setup.
type AgentResult struct {
	AgentID          string  `json:"agent_id"`
	Score            float64 `json:"score"`
	EquilibriumScore float64 `json:"equilibrium_score,omitempty"`
	Efficiency       float64 `json:"efficiency,omitempty"`
}

// Result ranks all agents of a run.
type Result struct {
	// Agents is sorted by descending score; ties break on agent id.
	Agents []AgentResult `json:"agents"`
	// Winner is the top-ranked agent id.
	Winner string `json:"winner"`
}

// Evaluator scores the final outcomes of a run.
type Evaluator interface {
	Evaluate(outcomes map[string]Outcome) (*Result, error)
}

// Options configures a ScoreEvaluator.
type Options struct {
	// Setup, when given, enables the competitive-equilibrium benchmark:
	// each agent's score is compared to what it would have earned in the
	// theoretical optimum, yielding an efficiency ratio.
	Setup *game.Setup

	// Logger provides structured logging. Defaults to NoOp if nil.
	Logger logging.Logger
}

// ScoreEvaluator scores outcomes with the shifted logarithmic utility plus
// the money balance, the same measure the game is played for.
type ScoreEvaluator struct {
	setup  *game.Setup
	logger logging.Logger
}

var _ Evaluator = (*ScoreEvaluator)(nil)

// NewScoreEvaluator creates a ScoreEvaluator.
func NewScoreEvaluator(optFns ...func(o *Options)) *ScoreEvaluator {
	opts := Options{
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &ScoreEvaluator{
		setup:  opts.Setup,
		logger: opts.Logger,
	}
}

// Evaluate implements Evaluator.
func (e *ScoreEvaluator) Evaluate(outcomes map[string]Outcome) (*Result, error) {
	if len(outcomes) == 0 {
		return nil, errors.New("no outcomes to evaluate")
	}

	var equilibrium *game.Equilibrium
	if e.setup != nil {
		equilibrium = game.ComputeEquilibrium(e.setup)
	}

	agents := make([]AgentResult, 0, len(outcomes))
	for agentID, outcome := range outcomes {
		ar := AgentResult{
			AgentID: agentID,
			Score:   core.Score(outcome.Params, outcome.Holdings),
		}
		if equilibrium != nil {
			eqScore, ok := equilibrium.Scores[agentID]
			if !ok {
				return nil, fmt.Errorf("agent %s is not part of the game setup", agentID)
			}
			ar.EquilibriumScore = eqScore
			if eqScore > 0 {
				ar.Efficiency = ar.Score / eqScore
			}
		}
		agents = append(agents, ar)
	}

	sort.Slice(agents, func(i, j int) bool {
		if agents[i].Score != agents[j].Score {
			return agents[i].Score > agents[j].Score
		}
		return agents[i].AgentID < agents[j].AgentID
	})

	result := &Result{Agents: agents, Winner: agents[0].AgentID}

	e.logger.Info("run evaluated",
		"agents", len(agents),
		"winner", result.Winner,
		"top_score", agents[0].Score,
	)

	return result, nil
}

// OutcomesFromSnapshot pairs a final holdings snapshot with the private
// utility parameters of the setup, ready for Evaluate. Agents missing from
// the snapshot keep their initial endowment.
func OutcomesFromSnapshot(setup *game.Setup, snapshot map[string]core.Holdings) map[string]Outcome {
	outcomes := make(map[string]Outcome, len(setup.AgentIDs))
	for _, agentID := range setup.AgentIDs {
		h, ok := snapshot[agentID]
		if !ok {
			h = setup.Holdings[agentID]
		}
		outcomes[agentID] = Outcome{
			Holdings: h.Clone(),
			Params:   setup.Params[agentID].Clone(),
		}
	}
	return outcomes
}
