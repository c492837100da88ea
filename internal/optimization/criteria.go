package optimization

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Criteria evaluates the stopping tests over the snapshots of one run.
type Criteria struct {
	cfg   SolverConfig
	prevX []float64
	prevF float64
	seen  bool
}

// NewCriteria returns an accumulator for a single run.
func NewCriteria(cfg *SolverConfig) *Criteria {
	return &Criteria{cfg: *cfg}
}

// Check records state as iterate number iter and returns the first
// satisfied test in priority order: iteration limit, x delta, relative f
// delta, gradient norm. gradNorm is the infinity norm of the (possibly
// projected) gradient. The delta tests need a previous snapshot.
func (c *Criteria) Check(iter int, state State, gradNorm float64) Status {
	defer c.remember(state)

	if iter >= c.cfg.MaxIterations {
		return IterationLimit
	}
	if c.seen {
		if c.cfg.XDeltaEpsilon > 0 && floats.Distance(state.X(), c.prevX, 2) < c.cfg.XDeltaEpsilon {
			return XDeltaConverged
		}
		f := state.Value()
		if c.cfg.FDeltaEpsilon > 0 && math.Abs(f-c.prevF)/math.Max(1, math.Abs(f)) < c.cfg.FDeltaEpsilon {
			return FDeltaConverged
		}
	}
	if gradNorm < c.cfg.GradientNormEpsilon {
		return GradientNormConverged
	}
	return Continue
}

func (c *Criteria) remember(state State) {
	c.prevX = append(c.prevX[:0], state.X()...)
	c.prevF = state.Value()
	c.seen = true
}
