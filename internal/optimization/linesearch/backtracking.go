package linesearch

import (
	"gonum.org/v1/gonum/floats"

	"github.com/copyleftdev/descent/internal/optimization"
)

const (
	defaultC1      = 1e-4
	defaultTau     = 0.5
	defaultMinStep = 1e-20
)

// Backtracking shrinks the step geometrically until the Armijo sufficient
// decrease condition holds.
//
// With Project set, every trial point is projected and the decrease is
// measured against g·(P(x+αd) − x), which keeps the search valid on a box.
type Backtracking struct {
	// C1 is the sufficient decrease constant, default 1e-4.
	C1 float64
	// Tau is the shrink factor in (0, 1), default 0.5.
	Tau float64
	// MinStep is the step below which the search fails, default 1e-20.
	MinStep float64
	// Project, if set, maps a point onto the feasible set in place.
	Project func(x []float64)
}

func (b *Backtracking) params() (c1, tau, minStep float64) {
	c1, tau, minStep = b.C1, b.Tau, b.MinStep
	if c1 <= 0 || c1 >= 1 {
		c1 = defaultC1
	}
	if tau <= 0 || tau >= 1 {
		tau = defaultTau
	}
	if minStep <= 0 {
		minStep = defaultMinStep
	}
	return c1, tau, minStep
}

// Search implements Searcher.
func (b *Backtracking) Search(obj optimization.Objective, state optimization.State, dir []float64, step0 float64) (float64, error) {
	const op = "Backtracking.Search"
	c1, tau, minStep := b.params()

	x, g := state.X(), state.Gradient()
	f0 := state.Value()
	if b.Project == nil && floats.Dot(g, dir) >= 0 {
		return 0, fail(ErrNotDescent, op)
	}

	if step0 <= 0 || !finite(step0) {
		step0 = 1
	}
	trial := make([]float64, len(x))
	move := make([]float64, len(x))
	for alpha := step0; alpha >= minStep; alpha *= tau {
		trialPoint(trial, x, alpha, dir)
		if b.Project != nil {
			b.Project(trial)
		}
		floats.SubTo(move, trial, x)
		slope := floats.Dot(g, move)
		if slope >= 0 {
			// Projection removed every descent component at this step.
			continue
		}
		f := obj.Evaluate(trial)
		if finite(f) && f <= f0+c1*slope {
			return alpha, nil
		}
	}
	return 0, fail(ErrLineSearchFailed, op)
}
