package solver

import (
	"gonum.org/v1/gonum/floats"

	"github.com/copyleftdev/descent/internal/optimization"
	"github.com/copyleftdev/descent/internal/optimization/linesearch"
)

// GradientDescent steps along −g.
type GradientDescent struct{}

// NewGradientDescent returns a Solver running steepest descent.
func NewGradientDescent(opts ...Option) *Solver {
	return New(&GradientDescent{}, opts...)
}

func (*GradientDescent) Name() string                               { return "gradient-descent" }
func (*GradientDescent) RequiredOrder() int                         { return 1 }
func (*GradientDescent) Init(int, *optimization.SolverConfig) error { return nil }
func (*GradientDescent) UpdateHistory(_, _ optimization.State) bool { return true }
func (*GradientDescent) DefaultLineSearch() linesearch.Searcher     { return &linesearch.Backtracking{} }

func (*GradientDescent) ComputeDirection(state optimization.State, dst []float64) (bool, error) {
	copy(dst, state.Gradient())
	floats.Scale(-1, dst)
	return false, nil
}
