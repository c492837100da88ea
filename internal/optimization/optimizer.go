package optimization

import (
	"math"
)

// Minimizer defines the interface for descent algorithms.
type Minimizer interface {
	// Name identifies the algorithm.
	Name() string

	// Minimize runs the algorithm from x0. The error is reserved for
	// precondition violations; run outcomes are reported in Result.Status.
	Minimize(obj Objective, x0 []float64, cfg *SolverConfig) (*Result, error)
}

// SolverConfig contains the stopping thresholds and optional box bounds.
// A zero epsilon disables the corresponding test.
type SolverConfig struct {
	// Maximum number of iterations
	MaxIterations int

	// Minimum Euclidean step between consecutive iterates
	XDeltaEpsilon float64

	// Minimum relative change of the objective value
	FDeltaEpsilon float64

	// Gradient infinity norm below which the run has converged
	GradientNormEpsilon float64

	// Box bounds, consumed only by the box-constrained strategy. A nil slice
	// leaves that side unbounded.
	Lower []float64
	Upper []float64
}

// DefaultSolverConfig returns the default stopping thresholds.
func DefaultSolverConfig() *SolverConfig {
	return &SolverConfig{
		MaxIterations:       10000,
		XDeltaEpsilon:       1e-9,
		FDeltaEpsilon:       1e-9,
		GradientNormEpsilon: 1e-4,
	}
}

// Validate checks the bounds against the problem dimension.
func (c *SolverConfig) Validate(dim int) error {
	const op = "SolverConfig.Validate"
	if c.MaxIterations < 0 {
		return NewErrorf("negative MaxIterations %d", c.MaxIterations).WithOperation(op)
	}
	if c.Lower != nil && len(c.Lower) != dim {
		return WrapErrorf(ErrInvalidBounds, "lower bound has length %d, want %d", len(c.Lower), dim).WithOperation(op)
	}
	if c.Upper != nil && len(c.Upper) != dim {
		return WrapErrorf(ErrInvalidBounds, "upper bound has length %d, want %d", len(c.Upper), dim).WithOperation(op)
	}
	for i := 0; i < dim; i++ {
		lo, hi := c.LowerAt(i), c.UpperAt(i)
		if math.IsNaN(lo) || math.IsNaN(hi) || lo > hi {
			return WrapErrorf(ErrInvalidBounds, "coordinate %d has bounds [%v, %v]", i, lo, hi).WithOperation(op)
		}
	}
	return nil
}

// LowerAt returns the lower bound of coordinate i, -Inf when unbounded.
func (c *SolverConfig) LowerAt(i int) float64 {
	if c.Lower == nil {
		return math.Inf(-1)
	}
	return c.Lower[i]
}

// UpperAt returns the upper bound of coordinate i, +Inf when unbounded.
func (c *SolverConfig) UpperAt(i int) float64 {
	if c.Upper == nil {
		return math.Inf(1)
	}
	return c.Upper[i]
}

// Result contains the outcome of a Minimize run.
type Result struct {
	// X is the best point reached.
	X []float64
	// State is the snapshot at X.
	State State
	// Status is the terminal verdict.
	Status Status
	// Iterations is the number of completed descent steps.
	Iterations int
	// DegradedSteps counts iterations whose direction fell back to steepest
	// descent.
	DegradedSteps int
	// SkippedUpdates counts history updates rejected by the curvature test.
	SkippedUpdates int
}
