package catengine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yourusername/cat-engine/internal/domain/entity"
	"github.com/yourusername/cat-engine/internal/irt"
)

func params(a, b, c float64) *entity.ItemParameters {
	return &entity.ItemParameters{ItemID: "i", Discrimination: a, Difficulty: b, Guessing: c}
}

func mixedPattern() []Observation {
	return []Observation{
		{Params: params(1.2, -1, 0), IsCorrect: true},
		{Params: params(1.0, 0, 0), IsCorrect: true},
		{Params: params(1.4, 0.5, 0), IsCorrect: false},
		{Params: params(0.9, 1, 0), IsCorrect: false},
		{Params: params(1.1, -0.5, 0), IsCorrect: true},
	}
}

func TestMLE_SingleCorrectResponseRaisesAbility(t *testing.T) {
	e := NewAbilityEstimator(nil)
	theta := e.MLE([]Observation{{Params: params(1, 0, 0), IsCorrect: true}}, entity.Model2PL, 0)
	assert.Greater(t, theta, 0.0)
	assert.LessOrEqual(t, theta, irt.MaxAbility)
}

func TestMLE_AllIncorrectStaysInBounds(t *testing.T) {
	e := NewAbilityEstimator(nil)
	obs := []Observation{
		{Params: params(1, -1, 0), IsCorrect: false},
		{Params: params(1, 0, 0), IsCorrect: false},
	}
	theta := e.MLE(obs, entity.Model2PL, 0)
	assert.Less(t, theta, 0.0)
	assert.GreaterOrEqual(t, theta, irt.MinAbility)
}

func TestMLE_MixedPatternSolvesScoreEquation(t *testing.T) {
	e := NewAbilityEstimator(nil)
	obs := mixedPattern()
	theta := e.MLE(obs, entity.Model2PL, 0)

	score := 0.0
	for _, o := range obs {
		p := irt.Probability(o.Params, theta, entity.Model2PL)
		dp := irt.ProbabilityDerivative(o.Params, theta, entity.Model2PL)
		if o.IsCorrect {
			score += dp / p
		} else {
			score -= dp / (1 - p)
		}
	}
	assert.InDelta(t, 0, score, 0.01)
}

func TestMLE_EmptyPatternKeepsStart(t *testing.T) {
	e := NewAbilityEstimator(nil)
	assert.Equal(t, 0.7, e.MLE(nil, entity.Model2PL, 0.7))
}

func TestWLE_ShrinksTowardsZero(t *testing.T) {
	e := NewAbilityEstimator(nil)
	obs := mixedPattern()

	mle := e.MLE(obs, entity.Model2PL, 0)
	wle := e.WLE(obs, entity.Model2PL, 0)

	info := 0.0
	for _, o := range obs {
		info += irt.Information(o.Params, mle, entity.Model2PL)
	}
	want := mle * math.Sqrt(info) / (math.Sqrt(info) + 1)
	assert.InDelta(t, want, wle, 1e-12)
	assert.LessOrEqual(t, math.Abs(wle), math.Abs(mle))
}

func TestEAP_NoResponsesIsPriorMean(t *testing.T) {
	e := NewAbilityEstimator(nil)
	assert.InDelta(t, 0, e.EAP(nil, entity.Model2PL, 1.5), 1e-9)
}

func TestEAP_FollowsResponses(t *testing.T) {
	e := NewAbilityEstimator(nil)
	right := []Observation{
		{Params: params(1, 0, 0), IsCorrect: true},
		{Params: params(1, 0.5, 0), IsCorrect: true},
	}
	wrong := []Observation{
		{Params: params(1, 0, 0), IsCorrect: false},
		{Params: params(1, 0.5, 0), IsCorrect: false},
	}
	assert.Greater(t, e.EAP(right, entity.Model2PL, 0), 0.0)
	assert.Less(t, e.EAP(wrong, entity.Model2PL, 0), 0.0)
}

func TestEAP_ZeroPosteriorFallsBack(t *testing.T) {
	e := NewAbilityEstimator(nil)
	// a 4PL item with d=c makes every node's likelihood of a wrong answer 0
	d := 1.0
	p := params(1, 0, 1)
	p.Guessing = 1
	p.UpperAsymptote = &d
	obs := []Observation{{Params: p, IsCorrect: false}}
	assert.Equal(t, 0.42, e.EAP(obs, entity.Model4PL, 0.42))
}

func TestMAP_ReturnsGridNode(t *testing.T) {
	e := NewAbilityEstimator(nil)
	theta := e.MAP(mixedPattern(), entity.Model2PL)

	step := 12.0 / 60
	idx := (theta - irt.MinAbility) / step
	assert.InDelta(t, math.Round(idx), idx, 1e-9, "MAP must land on the 61-point grid")
	assert.Greater(t, theta, -3.0)
	assert.Less(t, theta, 3.0)
}

func TestMAP_NoResponsesIsPriorMode(t *testing.T) {
	e := NewAbilityEstimator(nil)
	assert.InDelta(t, 0, e.MAP(nil, entity.Model2PL), 1e-9)
}

func TestEstimate_Dispatch(t *testing.T) {
	e := NewAbilityEstimator(nil)
	obs := mixedPattern()

	assert.Equal(t, e.MLE(obs, entity.Model2PL, 0), e.Estimate(entity.EstimationMLE, entity.Model2PL, 0, obs))
	assert.Equal(t, e.WLE(obs, entity.Model2PL, 0), e.Estimate(entity.EstimationWLE, entity.Model2PL, 0, obs))
	assert.Equal(t, e.EAP(obs, entity.Model2PL, 0), e.Estimate(entity.EstimationEAP, entity.Model2PL, 0, obs))
	assert.Equal(t, e.MAP(obs, entity.Model2PL), e.Estimate(entity.EstimationMAP, entity.Model2PL, 0, obs))
}

func TestLikelihood(t *testing.T) {
	obs := []Observation{
		{Params: params(1, 0, 0), IsCorrect: true},
		{Params: params(1, 0, 0), IsCorrect: false},
	}
	assert.InDelta(t, 0.25, Likelihood(obs, 0, entity.Model2PL), 1e-12)
	assert.Equal(t, 1.0, Likelihood(nil, 0, entity.Model2PL))
}

func TestGrid(t *testing.T) {
	nodes := grid(EAPQuadraturePoints)
	assert.Len(t, nodes, 41)
	assert.Equal(t, -6.0, nodes[0])
	assert.InDelta(t, 6.0, nodes[40], 1e-12)
	assert.InDelta(t, 0.3, nodes[1]-nodes[0], 1e-12)
}
