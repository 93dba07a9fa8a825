package catengine

import (
	"time"

	"github.com/yourusername/cat-engine/internal/domain/entity"
)

// StopDecision is the outcome of a stopping check
type StopDecision struct {
	Stop   bool
	Reason string
}

// StoppingEvaluator decides whether a session is finished
type StoppingEvaluator struct{}

// NewStoppingEvaluator creates a stopping evaluator
func NewStoppingEvaluator() *StoppingEvaluator {
	return &StoppingEvaluator{}
}

// Evaluate checks, in order: the question cap, the question floor, the SEM
// target, the reliability target and the time limit. A MinReliability of 0
// or less and a TimeLimit of 0 disable their checks.
func (e *StoppingEvaluator) Evaluate(administered int, sem, reliability float64, elapsed time.Duration, c entity.StoppingCriteria) StopDecision {
	if administered >= c.MaxQuestions {
		return StopDecision{Stop: true, Reason: entity.ReasonMaxQuestions}
	}
	if administered < c.MinQuestions {
		return StopDecision{}
	}
	if sem <= c.MaxSEM {
		return StopDecision{Stop: true, Reason: entity.ReasonTargetSEM}
	}
	if c.MinReliability > 0 && reliability >= c.MinReliability {
		return StopDecision{Stop: true, Reason: entity.ReasonTargetReliability}
	}
	if c.TimeLimit > 0 && elapsed >= c.TimeLimit {
		return StopDecision{Stop: true, Reason: entity.ReasonTimeLimit}
	}
	return StopDecision{}
}
