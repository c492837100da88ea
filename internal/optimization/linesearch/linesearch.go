// Package linesearch selects step lengths along descent directions.
package linesearch

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/copyleftdev/descent/internal/optimization"
)

// ErrLineSearchFailed is returned when no acceptable step was found within
// the search budget.
var ErrLineSearchFailed = errors.New("line search failed")

// ErrNotDescent is returned when the direction does not decrease the
// objective to first order.
var ErrNotDescent = errors.New("direction is not a descent direction")

// Searcher picks a step length α > 0 along dir starting from state.
// step0 is the first trial step.
type Searcher interface {
	Search(obj optimization.Objective, state optimization.State, dir []float64, step0 float64) (float64, error)
}

func fail(err error, op string) error {
	return optimization.WrapError(err, "").WithOperation(op).WithComponent("linesearch")
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// trialPoint stores x + α·d in dst.
func trialPoint(dst, x []float64, alpha float64, d []float64) {
	floats.AddScaledTo(dst, x, alpha, d)
}
