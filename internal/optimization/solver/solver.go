// Package solver implements the shared descent iteration and the strategies
// that plug into it: Newton, gradient descent, conjugate gradient, BFGS,
// L-BFGS and box-constrained L-BFGS-B.
package solver

import (
	"errors"
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"github.com/copyleftdev/descent/internal/optimization"
	"github.com/copyleftdev/descent/internal/optimization/linesearch"
)

// ErrNumericalFailure is returned by a strategy that cannot produce a finite
// direction.
var ErrNumericalFailure = errors.New("numerical failure")

// Strategy supplies the direction rule and history policy of one algorithm.
// A Strategy owns its history and is reset by Init at the start of every run.
type Strategy interface {
	// Name identifies the algorithm.
	Name() string
	// RequiredOrder is the derivative order each iterate is evaluated at.
	RequiredOrder() int
	// Init resets the history for a run of dimension dim.
	Init(dim int, cfg *optimization.SolverConfig) error
	// ComputeDirection stores a descent direction for state in dst. degraded
	// reports a fallback to steepest descent.
	ComputeDirection(state optimization.State, dst []float64) (degraded bool, err error)
	// UpdateHistory folds the step from prev to next into the history and
	// reports whether the update was accepted.
	UpdateHistory(prev, next optimization.State) bool
	// DefaultLineSearch returns the line search the strategy is designed for.
	DefaultLineSearch() linesearch.Searcher
}

// projector is implemented by strategies that keep iterates inside a box.
type projector interface {
	Project(x []float64)
	ProjectedGradientNorm(x, g []float64) float64
}

// unitStepper marks strategies whose directions carry their own step
// length, so every line search starts from α = 1.
type unitStepper interface {
	unitStep()
}

// Solver drives a Strategy through the descent loop. A Solver is not safe for
// concurrent Minimize calls.
type Solver struct {
	strategy Strategy
	search   linesearch.Searcher
	logger   *zap.Logger
}

// Option configures a Solver.
type Option func(*Solver)

// WithLineSearch overrides the strategy's default line search.
func WithLineSearch(ls linesearch.Searcher) Option {
	return func(s *Solver) {
		if ls != nil {
			s.search = ls
		}
	}
}

// WithLogger sets the logger for per-iteration diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Solver) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a Solver around strategy.
func New(strategy Strategy, opts ...Option) *Solver {
	s := &Solver{
		strategy: strategy,
		search:   strategy.DefaultLineSearch(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("solver").With(zap.String("strategy", strategy.Name()))
	return s
}

// Name returns the strategy name.
func (s *Solver) Name() string { return s.strategy.Name() }

// Strategy returns the strategy driven by s.
func (s *Solver) Strategy() Strategy { return s.strategy }

// Minimize runs the descent loop from x0. A nil cfg uses
// optimization.DefaultSolverConfig. The returned error only reports
// precondition violations and an Eval failure at x0; every other run
// outcome, failures included, is a Result whose X is the best point reached.
func (s *Solver) Minimize(obj optimization.Objective, x0 []float64, cfg *optimization.SolverConfig) (*optimization.Result, error) {
	const op = "Solver.Minimize"
	if cfg == nil {
		cfg = optimization.DefaultSolverConfig()
	}
	c := *cfg

	n := len(x0)
	if n == 0 {
		return nil, optimization.WrapError(optimization.ErrEmptyPoint, "").WithOperation(op).WithComponent("solver")
	}
	if d, ok := obj.(optimization.Dimensioner); ok && d.Dim() != 0 && d.Dim() != n {
		return nil, optimization.WrapErrorf(optimization.ErrDimensionMismatch,
			"objective expects %d coordinates, starting point has %d", d.Dim(), n).WithOperation(op).WithComponent("solver")
	}
	if err := c.Validate(n); err != nil {
		return nil, optimization.WrapError(err, "invalid configuration").WithOperation(op).WithComponent("solver")
	}
	if err := s.strategy.Init(n, &c); err != nil {
		return nil, optimization.WrapError(err, "strategy init").WithOperation(op).WithComponent("solver")
	}

	x := append([]float64(nil), x0...)
	proj, bounded := s.strategy.(projector)
	if bounded {
		proj.Project(x)
	}
	_, unit := s.strategy.(unitStepper)

	var (
		order     = s.strategy.RequiredOrder()
		criteria  = optimization.NewCriteria(&c)
		res       = &optimization.Result{}
		dir       = make([]float64, n)
		prev      optimization.State
		best      optimization.State
		prevStep  float64
		prevSlope float64
	)

	for iter := 0; ; iter++ {
		res.Iterations = iter
		state, err := optimization.Eval(obj, x, order)
		if err != nil {
			if !best.IsSet() {
				return nil, optimization.WrapError(err, "evaluation").WithOperation(op).WithComponent("solver")
			}
			s.logger.Warn("Objective evaluation failed", zap.Int("iteration", iter), zap.Error(err))
			res.Status = optimization.NumericalFailure
			break
		}
		if !state.IsFinite() || !hessianFinite(state) {
			s.logger.Warn("Non-finite objective evaluation",
				zap.Int("iteration", iter),
				zap.Float64("value", state.Value()),
			)
			if !best.IsSet() {
				best = state
			}
			res.Status = optimization.NumericalFailure
			break
		}
		if !best.IsSet() || state.Value() <= best.Value() {
			best = state
		}

		if prev.IsSet() && !s.strategy.UpdateHistory(prev, state) {
			res.SkippedUpdates++
			s.logger.Debug("Skipped history update", zap.Int("iteration", iter))
		}

		var gradNorm float64
		if bounded {
			gradNorm = proj.ProjectedGradientNorm(state.X(), state.Gradient())
		} else {
			gradNorm = floats.Norm(state.Gradient(), math.Inf(1))
		}

		if status := criteria.Check(iter, state, gradNorm); status != optimization.Continue {
			res.Status = status
			break
		}

		degraded, err := s.strategy.ComputeDirection(state, dir)
		if err != nil {
			s.logger.Warn("Direction computation failed", zap.Int("iteration", iter), zap.Error(err))
			res.Status = optimization.NumericalFailure
			break
		}
		if degraded {
			res.DegradedSteps++
			s.logger.Warn("Falling back to steepest descent", zap.Int("iteration", iter))
		}

		slope := floats.Dot(state.Gradient(), dir)
		step0 := 1.0
		if !unit {
			step0 = initialStep(dir, slope, prevStep, prevSlope)
		}
		alpha, err := s.search.Search(obj, state, dir, step0)
		if err != nil {
			s.logger.Debug("Line search failed", zap.Int("iteration", iter), zap.Error(err))
			res.Status = optimization.LineSearchFailed
			break
		}

		s.logger.Debug("Iteration",
			zap.Int("iteration", iter),
			zap.Float64("value", state.Value()),
			zap.Float64("gradient_norm", gradNorm),
			zap.Float64("step", alpha),
		)

		floats.AddScaled(x, alpha, dir)
		if bounded {
			proj.Project(x)
		}
		prev = state
		prevStep, prevSlope = alpha, slope
	}

	res.State = best
	res.X = append([]float64(nil), best.X()...)
	s.logger.Debug("Minimization finished",
		zap.Stringer("status", res.Status),
		zap.Int("iterations", res.Iterations),
		zap.Float64("value", best.Value()),
	)
	return res, nil
}

// initialStep scales the first trial step of strategies whose directions
// have no natural length: α₀ = α_{k−1}·(g_{k−1}·d_{k−1})/(g_k·d_k), or
// min(1, 1/‖d‖_∞) without a previous step.
func initialStep(dir []float64, slope, prevStep, prevSlope float64) float64 {
	if prevStep > 0 && prevSlope < 0 && slope < 0 {
		if a := prevStep * prevSlope / slope; a > 0 && !math.IsInf(a, 0) {
			return a
		}
	}
	if norm := floats.Norm(dir, math.Inf(1)); norm > 0 {
		return math.Min(1, 1/norm)
	}
	return 1
}

func hessianFinite(state optimization.State) bool {
	h := state.Hessian()
	if h == nil {
		return true
	}
	n := h.SymmetricDim()
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := h.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}

// steepest stores −g/‖g‖₂ in dst, or −g when g is zero. With free set,
// fixed coordinates are zeroed first.
func steepest(dst, g []float64, free []bool) {
	copy(dst, g)
	if free != nil {
		mask(dst, free)
	}
	norm := floats.Norm(dst, 2)
	if norm > 0 {
		floats.Scale(-1/norm, dst)
		return
	}
	floats.Scale(-1, dst)
}

func finiteVec(v []float64) bool {
	for _, e := range v {
		if math.IsNaN(e) || math.IsInf(e, 0) {
			return false
		}
	}
	return true
}

// diff stores a − b in dst.
func diff(dst, a, b []float64) {
	floats.SubTo(dst, a, b)
}
