package catengine

import (
	"math"

	"github.com/yourusername/cat-engine/internal/domain/entity"
	"github.com/yourusername/cat-engine/internal/irt"
	"github.com/yourusername/cat-engine/internal/pkg/logger"
)

// AbilityEstimator computes ability estimates from response patterns.
// It holds no per-session state.
type AbilityEstimator struct {
	logger *logger.Logger
}

// NewAbilityEstimator creates an estimator
func NewAbilityEstimator(log *logger.Logger) *AbilityEstimator {
	if log == nil {
		log = logger.Nop()
	}
	return &AbilityEstimator{logger: log.Component("AbilityEstimator")}
}

// Estimate dispatches to the configured method. current is the starting
// point for MLE and WLE and the fallback for EAP.
func (e *AbilityEstimator) Estimate(method entity.EstimationMethod, model entity.IRTModel, current float64, obs []Observation) float64 {
	switch method {
	case entity.EstimationWLE:
		return e.WLE(obs, model, current)
	case entity.EstimationEAP:
		return e.EAP(obs, model, current)
	case entity.EstimationMAP:
		return e.MAP(obs, model)
	default:
		return e.MLE(obs, model, current)
	}
}

// MLE runs Newton-Raphson on the log-likelihood starting from start.
// Terms where the probability is exactly 0 or 1 are skipped.
func (e *AbilityEstimator) MLE(obs []Observation, model entity.IRTModel, start float64) float64 {
	theta := start
	for iter := 0; iter < MLEMaxIterations; iter++ {
		first, second := 0.0, 0.0
		for _, o := range obs {
			p := irt.Probability(o.Params, theta, model)
			dp := irt.ProbabilityDerivative(o.Params, theta, model)
			if o.IsCorrect {
				if p > 0 {
					first += dp / p
				}
			} else if p < 1 {
				first -= dp / (1 - p)
			}
			second -= irt.Information(o.Params, theta, model)
		}

		if math.Abs(first) < MLETolerance {
			break
		}
		if second == 0 || math.IsNaN(first) || math.IsNaN(second) {
			e.logger.Debug("MLE stopped on degenerate derivative", "theta", theta, "iteration", iter)
			break
		}
		theta = irt.ClampAbility(theta - first/second)
	}
	return theta
}

// WLE shrinks the MLE towards zero by sqrt(I)/(sqrt(I)+1), with I the test
// information at the MLE.
func (e *AbilityEstimator) WLE(obs []Observation, model entity.IRTModel, start float64) float64 {
	mle := e.MLE(obs, model, start)
	info := 0.0
	for _, o := range obs {
		info += irt.Information(o.Params, mle, model)
	}
	root := math.Sqrt(info)
	return mle * root / (root + 1)
}

// EAP is the posterior mean over evenly spaced nodes on [-6, 6] with a
// standard normal prior. When the posterior mass vanishes, fallback is
// returned.
func (e *AbilityEstimator) EAP(obs []Observation, model entity.IRTModel, fallback float64) float64 {
	num, den := 0.0, 0.0
	for _, theta := range grid(EAPQuadraturePoints) {
		w := Likelihood(obs, theta, model) * irt.StandardNormalPDF(theta)
		num += theta * w
		den += w
	}
	if den == 0 || math.IsNaN(den) {
		e.logger.Debug("EAP posterior mass is zero, keeping current ability", "ability", fallback)
		return fallback
	}
	return num / den
}

// MAP returns the grid node maximizing likelihood times the standard normal
// prior. Ties keep the first node.
func (e *AbilityEstimator) MAP(obs []Observation, model entity.IRTModel) float64 {
	nodes := grid(MAPGridPoints)
	best := nodes[0]
	bestPost := math.Inf(-1)
	for _, theta := range nodes {
		post := Likelihood(obs, theta, model) * irt.StandardNormalPDF(theta)
		if post > bestPost {
			bestPost = post
			best = theta
		}
	}
	return best
}

// Likelihood is the product of P or 1-P over the observations
func Likelihood(obs []Observation, theta float64, model entity.IRTModel) float64 {
	l := 1.0
	for _, o := range obs {
		p := irt.Probability(o.Params, theta, model)
		if o.IsCorrect {
			l *= p
		} else {
			l *= 1 - p
		}
	}
	return l
}

// grid returns n evenly spaced nodes from MinAbility to MaxAbility
func grid(n int) []float64 {
	nodes := make([]float64, n)
	step := (irt.MaxAbility - irt.MinAbility) / float64(n-1)
	for i := range nodes {
		nodes[i] = irt.MinAbility + float64(i)*step
	}
	return nodes
}
