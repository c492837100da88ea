package solver

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/copyleftdev/descent/internal/optimization"
	"github.com/copyleftdev/descent/internal/optimization/linesearch"
)

// DefaultMemory is the number of curvature pairs kept by the limited-memory
// strategies when none is configured.
const DefaultMemory = 10

// LBFGS is limited-memory BFGS: the two-loop recursion over the last Memory
// curvature pairs replaces the dense inverse Hessian.
type LBFGS struct {
	// Memory is the history capacity m.
	Memory int

	hist *History
	s, y []float64
}

// NewLBFGS returns a Solver running L-BFGS with memory m (DefaultMemory when
// m < 1).
func NewLBFGS(m int, opts ...Option) *Solver {
	return New(&LBFGS{Memory: m}, opts...)
}

func (*LBFGS) Name() string       { return "lbfgs" }
func (*LBFGS) RequiredOrder() int { return 1 }
func (*LBFGS) unitStep()          {}

func (l *LBFGS) Init(dim int, _ *optimization.SolverConfig) error {
	m := l.Memory
	if m < 1 {
		m = DefaultMemory
	}
	l.hist = NewHistory(m, dim)
	l.s = make([]float64, dim)
	l.y = make([]float64, dim)
	return nil
}

// History returns the curvature pairs of the current run.
func (l *LBFGS) History() *History { return l.hist }

func (l *LBFGS) ComputeDirection(state optimization.State, dst []float64) (bool, error) {
	g := state.Gradient()
	if !l.hist.ApplyInverse(dst, g, nil) {
		steepest(dst, g, nil)
		return false, nil
	}
	floats.Scale(-1, dst)
	if finiteVec(dst) && floats.Dot(g, dst) < 0 {
		return false, nil
	}
	l.hist.Reset()
	steepest(dst, g, nil)
	return true, nil
}

func (l *LBFGS) UpdateHistory(prev, next optimization.State) bool {
	diff(l.s, next.X(), prev.X())
	diff(l.y, next.Gradient(), prev.Gradient())
	return l.hist.Push(l.s, l.y)
}

func (*LBFGS) DefaultLineSearch() linesearch.Searcher {
	return &linesearch.StrongWolfe{}
}

// LBFGSB is L-BFGS restricted to box bounds. Coordinates sitting on a bound
// with the gradient pushing outward are held fixed, the two-loop recursion
// runs over the remaining free coordinates, and every trial point is
// projected onto the box.
type LBFGSB struct {
	// Memory is the history capacity m.
	Memory int

	hist         *History
	lower, upper []float64
	free         []bool
	s, y         []float64
}

// NewLBFGSB returns a Solver running L-BFGS-B with memory m (DefaultMemory
// when m < 1). Bounds are taken from the SolverConfig passed to Minimize.
func NewLBFGSB(m int, opts ...Option) *Solver {
	return New(&LBFGSB{Memory: m}, opts...)
}

func (*LBFGSB) Name() string       { return "lbfgsb" }
func (*LBFGSB) RequiredOrder() int { return 1 }
func (*LBFGSB) unitStep()          {}

func (l *LBFGSB) Init(dim int, cfg *optimization.SolverConfig) error {
	if err := cfg.Validate(dim); err != nil {
		return err
	}
	m := l.Memory
	if m < 1 {
		m = DefaultMemory
	}
	l.hist = NewHistory(m, dim)
	l.lower = make([]float64, dim)
	l.upper = make([]float64, dim)
	for i := 0; i < dim; i++ {
		l.lower[i] = cfg.LowerAt(i)
		l.upper[i] = cfg.UpperAt(i)
	}
	l.free = make([]bool, dim)
	l.s = make([]float64, dim)
	l.y = make([]float64, dim)
	return nil
}

// History returns the curvature pairs of the current run.
func (l *LBFGSB) History() *History { return l.hist }

// Project clamps x onto the box in place.
func (l *LBFGSB) Project(x []float64) {
	for i := range x {
		x[i] = math.Max(l.lower[i], math.Min(x[i], l.upper[i]))
	}
}

// ProjectedGradientNorm returns ‖P(x − g) − x‖_∞, which vanishes exactly at
// the stationary points of the bounded problem.
func (l *LBFGSB) ProjectedGradientNorm(x, g []float64) float64 {
	var norm float64
	for i := range x {
		p := math.Max(l.lower[i], math.Min(x[i]-g[i], l.upper[i]))
		norm = math.Max(norm, math.Abs(p-x[i]))
	}
	return norm
}

func (l *LBFGSB) ComputeDirection(state optimization.State, dst []float64) (bool, error) {
	x, g := state.X(), state.Gradient()
	for i := range x {
		atLower := x[i] <= l.lower[i] && g[i] > 0
		atUpper := x[i] >= l.upper[i] && g[i] < 0
		l.free[i] = !atLower && !atUpper
	}

	if !l.hist.ApplyInverse(dst, g, l.free) {
		steepest(dst, g, l.free)
		return false, nil
	}
	floats.Scale(-1, dst)
	if finiteVec(dst) && floats.Dot(g, dst) < 0 {
		return false, nil
	}
	l.hist.Reset()
	steepest(dst, g, l.free)
	return true, nil
}

func (l *LBFGSB) UpdateHistory(prev, next optimization.State) bool {
	diff(l.s, next.X(), prev.X())
	diff(l.y, next.Gradient(), prev.Gradient())
	return l.hist.Push(l.s, l.y)
}

func (l *LBFGSB) DefaultLineSearch() linesearch.Searcher {
	return &linesearch.Backtracking{Project: l.Project}
}
