package catengine

import (
	"math/rand/v2"

	"github.com/yourusername/cat-engine/internal/domain/entity"
)

// Numeric settings of the estimators
const (
	MLEMaxIterations = 10
	MLETolerance     = 0.001

	EAPQuadraturePoints = 41
	MAPGridPoints       = 61
)

// RandomSource returns uniform values in [0,1). Implementations must be safe
// for concurrent use.
type RandomSource func() float64

// DefaultRandomSource draws from the global math/rand/v2 generator
func DefaultRandomSource() float64 {
	return rand.Float64()
}

// Observation is a response paired with the parameters of its item
type Observation struct {
	Params    *entity.ItemParameters
	IsCorrect bool
}

// SelectionInput is what the selector needs to know about a session
type SelectionInput struct {
	Ability        float64
	Candidates     []string          // remaining pool, in registration order
	Categories     map[string]string // itemID -> content category
	CategoryCounts map[string]int    // administered items per category
	Config         entity.CATConfig
}
