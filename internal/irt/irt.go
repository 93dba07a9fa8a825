// Package irt implements item response functions: the probability of a
// correct response, its derivative with respect to ability, and Fisher
// information, for the dichotomous model families used by the engine.
//
// GPCM and GRM are not modelled per category; they are evaluated with the
// 2PL curve.
package irt

import (
	"math"

	"github.com/yourusername/cat-engine/internal/domain/entity"
)

// Ability bounds used by the estimators
const (
	MinAbility = -6.0
	MaxAbility = 6.0
)

// Logistic returns 1/(1+e^-x).
func Logistic(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

// ClampAbility limits theta to [MinAbility, MaxAbility].
func ClampAbility(theta float64) float64 {
	return math.Max(MinAbility, math.Min(MaxAbility, theta))
}

// StandardNormalPDF is the N(0,1) density, used as the ability prior.
func StandardNormalPDF(x float64) float64 {
	return math.Exp(-0.5*x*x) / math.Sqrt(2*math.Pi)
}

// Probability returns P(correct | theta) for the item under the given model.
func Probability(p *entity.ItemParameters, theta float64, model entity.IRTModel) float64 {
	switch model {
	case entity.Model1PL:
		return Logistic(theta - p.Difficulty)
	case entity.Model3PL:
		return p.Guessing + (1-p.Guessing)*Logistic(p.Discrimination*(theta-p.Difficulty))
	case entity.Model4PL:
		return p.Guessing + (p.Upper()-p.Guessing)*Logistic(p.Discrimination*(theta-p.Difficulty))
	default: // 2PL, GPCM, GRM
		return Logistic(p.Discrimination * (theta - p.Difficulty))
	}
}

// Information returns the Fisher information of the item at theta.
func Information(p *entity.ItemParameters, theta float64, model entity.IRTModel) float64 {
	prob := Probability(p, theta, model)
	switch model {
	case entity.Model1PL:
		return prob * (1 - prob)
	case entity.Model3PL:
		if prob == 0 {
			return 0
		}
		c := p.Guessing
		a := p.Discrimination
		return a * a * (prob - c) * (prob - c) * (1 - prob) / (prob * (1 - c) * (1 - c))
	case entity.Model4PL:
		if prob == 0 || prob == 1 {
			return 0
		}
		c, d, a := p.Guessing, p.Upper(), p.Discrimination
		num := a * a * (prob - c) * (prob - c) * (d - prob) * (d - prob)
		return num / ((d - c) * (d - c) * prob * (1 - prob))
	default:
		a := p.Discrimination
		return a * a * prob * (1 - prob)
	}
}

// ProbabilityDerivative returns dP/dtheta, used by Newton-Raphson.
func ProbabilityDerivative(p *entity.ItemParameters, theta float64, model entity.IRTModel) float64 {
	prob := Probability(p, theta, model)
	switch model {
	case entity.Model1PL:
		return prob * (1 - prob)
	case entity.Model3PL:
		c := p.Guessing
		denom := 1 - c*(1-prob)
		if denom == 0 {
			return 0
		}
		return p.Discrimination * (1 - c) * prob * (1 - prob) / denom
	case entity.Model4PL:
		l := Logistic(p.Discrimination * (theta - p.Difficulty))
		return p.Discrimination * (p.Upper() - p.Guessing) * l * (1 - l)
	default:
		return p.Discrimination * prob * (1 - prob)
	}
}

// TotalInformation sums the information of all items at theta.
func TotalInformation(items []*entity.ItemParameters, theta float64, model entity.IRTModel) float64 {
	total := 0.0
	for _, it := range items {
		total += Information(it, theta, model)
	}
	return total
}

// StandardError returns 1/sqrt(totalInfo), or 1 when there is no information.
func StandardError(totalInfo float64) float64 {
	if totalInfo <= 0 {
		return 1
	}
	return 1 / math.Sqrt(totalInfo)
}

// Reliability returns 1 - sem^2. The value is not clamped and goes negative
// when sem > 1.
func Reliability(sem float64) float64 {
	return 1 - sem*sem
}
