package solver

import (
	"gonum.org/v1/gonum/floats"

	"github.com/copyleftdev/descent/internal/optimization"
	"github.com/copyleftdev/descent/internal/optimization/linesearch"
)

// ConjugateGradient is the nonlinear conjugate gradient method with the
// Polak–Ribière+ update. It restarts from steepest descent every dim
// iterations, when β would be negative, or when the conjugate direction is
// not a descent direction.
type ConjugateGradient struct {
	dim          int
	sinceRestart int
	started      bool
	prevG        []float64
	prevD        []float64
}

// NewConjugateGradient returns a Solver running nonlinear conjugate gradient.
func NewConjugateGradient(opts ...Option) *Solver {
	return New(&ConjugateGradient{}, opts...)
}

func (*ConjugateGradient) Name() string       { return "conjugate-gradient" }
func (*ConjugateGradient) RequiredOrder() int { return 1 }

func (cg *ConjugateGradient) Init(dim int, _ *optimization.SolverConfig) error {
	cg.dim = dim
	cg.sinceRestart = 0
	cg.started = false
	cg.prevG = make([]float64, dim)
	cg.prevD = make([]float64, dim)
	return nil
}

func (cg *ConjugateGradient) ComputeDirection(state optimization.State, dst []float64) (bool, error) {
	g := state.Gradient()
	restart := !cg.started || cg.sinceRestart >= cg.dim
	var beta float64
	if !restart {
		gg := floats.Dot(cg.prevG, cg.prevG)
		beta = (floats.Dot(g, g) - floats.Dot(g, cg.prevG)) / gg
		if !(beta >= 0) {
			restart = true
		}
	}

	copy(dst, g)
	floats.Scale(-1, dst)
	if !restart {
		floats.AddScaled(dst, beta, cg.prevD)
		if !(floats.Dot(g, dst) < 0) {
			copy(dst, g)
			floats.Scale(-1, dst)
			restart = true
		}
	}
	if restart {
		cg.sinceRestart = 0
	}
	cg.sinceRestart++
	cg.started = true
	copy(cg.prevG, g)
	copy(cg.prevD, dst)
	return false, nil
}

func (*ConjugateGradient) UpdateHistory(_, _ optimization.State) bool { return true }

func (*ConjugateGradient) DefaultLineSearch() linesearch.Searcher {
	return &linesearch.StrongWolfe{C2: 0.1}
}
