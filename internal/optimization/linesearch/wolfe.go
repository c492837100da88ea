package linesearch

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/copyleftdev/descent/internal/optimization"
)

const (
	defaultC2         = 0.9
	defaultMaxEvals   = 20
	defaultExpansion  = 2.0
	zoomSafeguard     = 0.1
	minIntervalRelTol = 1e-14
)

// StrongWolfe finds a step satisfying the strong Wolfe conditions
//
//	f(x+αd) ≤ f(x) + C1·α·g·d
//	|g(x+αd)·d| ≤ C2·|g·d|
//
// by bracketing an interval that contains such a step and zooming in with
// safeguarded cubic interpolation (Nocedal & Wright, algorithms 3.5 and 3.6).
type StrongWolfe struct {
	// C1 is the sufficient decrease constant, default 1e-4.
	C1 float64
	// C2 is the curvature constant in (C1, 1), default 0.9.
	C2 float64
	// MaxEvaluations bounds the trial steps of one search, default 20.
	MaxEvaluations int
}

func (w *StrongWolfe) params() (c1, c2 float64, maxEvals int) {
	c1, c2, maxEvals = w.C1, w.C2, w.MaxEvaluations
	if c1 <= 0 || c1 >= 1 {
		c1 = defaultC1
	}
	if c2 <= c1 || c2 >= 1 {
		c2 = defaultC2
	}
	if maxEvals <= 0 {
		maxEvals = defaultMaxEvals
	}
	return c1, c2, maxEvals
}

// point is one trial along the search line.
type point struct {
	alpha, phi, dphi float64
}

type wolfeRun struct {
	obj      optimization.Objective
	x, d     []float64
	trial    []float64
	grad     []float64
	phi0     float64
	dphi0    float64
	c1, c2   float64
	evals    int
	maxEvals int
}

func (r *wolfeRun) eval(alpha float64) point {
	r.evals++
	trialPoint(r.trial, r.x, alpha, r.d)
	phi := r.obj.Evaluate(r.trial)
	if !finite(phi) {
		return point{alpha: alpha, phi: math.Inf(1), dphi: math.NaN()}
	}
	optimization.Gradient(r.obj, r.trial, r.grad)
	return point{alpha: alpha, phi: phi, dphi: floats.Dot(r.grad, r.d)}
}

func (r *wolfeRun) armijo(p point) bool {
	return p.phi <= r.phi0+r.c1*p.alpha*r.dphi0
}

func (r *wolfeRun) curvature(p point) bool {
	return math.Abs(p.dphi) <= -r.c2*r.dphi0
}

// Search implements Searcher.
func (w *StrongWolfe) Search(obj optimization.Objective, state optimization.State, dir []float64, step0 float64) (float64, error) {
	const op = "StrongWolfe.Search"
	c1, c2, maxEvals := w.params()

	r := &wolfeRun{
		obj:      obj,
		x:        state.X(),
		d:        dir,
		trial:    make([]float64, len(dir)),
		grad:     make([]float64, len(dir)),
		phi0:     state.Value(),
		dphi0:    floats.Dot(state.Gradient(), dir),
		c1:       c1,
		c2:       c2,
		maxEvals: maxEvals,
	}
	if !(r.dphi0 < 0) {
		return 0, fail(ErrNotDescent, op)
	}
	if step0 <= 0 || !finite(step0) {
		step0 = 1
	}

	prev := point{alpha: 0, phi: r.phi0, dphi: r.dphi0}
	alpha := step0
	for r.evals < r.maxEvals {
		cur := r.eval(alpha)
		if !r.armijo(cur) || (prev.alpha > 0 && cur.phi >= prev.phi) {
			return r.zoom(prev, cur, op)
		}
		if r.curvature(cur) {
			return cur.alpha, nil
		}
		if cur.dphi >= 0 {
			return r.zoom(cur, prev, op)
		}
		prev = cur
		alpha *= defaultExpansion
	}
	return 0, fail(ErrLineSearchFailed, op)
}

// zoom narrows [lo, hi] until a strong Wolfe step is found. lo always
// satisfies sufficient decrease and has the lowest value seen so far.
func (r *wolfeRun) zoom(lo, hi point, op string) (float64, error) {
	for r.evals < r.maxEvals {
		width := math.Abs(hi.alpha - lo.alpha)
		if width <= minIntervalRelTol*math.Max(1, math.Max(lo.alpha, hi.alpha)) {
			break
		}
		cur := r.eval(interpolate(lo, hi))
		if !r.armijo(cur) || cur.phi >= lo.phi {
			hi = cur
			continue
		}
		if r.curvature(cur) {
			return cur.alpha, nil
		}
		if cur.dphi*(hi.alpha-lo.alpha) >= 0 {
			hi = lo
		}
		lo = cur
	}
	return 0, fail(ErrLineSearchFailed, op)
}

// interpolate returns the minimizer of the cubic matching φ and φ' at both
// ends, falling back to bisection when the cubic is undefined or its
// minimizer lies too close to an end of the interval.
func interpolate(lo, hi point) float64 {
	a, b := math.Min(lo.alpha, hi.alpha), math.Max(lo.alpha, hi.alpha)
	mid := 0.5 * (a + b)
	if math.IsInf(hi.phi, 0) || math.IsNaN(hi.dphi) {
		return mid
	}
	d1 := lo.dphi + hi.dphi - 3*(lo.phi-hi.phi)/(lo.alpha-hi.alpha)
	disc := d1*d1 - lo.dphi*hi.dphi
	if disc < 0 {
		return mid
	}
	d2 := math.Copysign(math.Sqrt(disc), hi.alpha-lo.alpha)
	denom := hi.dphi - lo.dphi + 2*d2
	if denom == 0 {
		return mid
	}
	alpha := hi.alpha - (hi.alpha-lo.alpha)*(hi.dphi+d2-d1)/denom
	margin := zoomSafeguard * (b - a)
	if !finite(alpha) || alpha < a+margin || alpha > b-margin {
		return mid
	}
	return alpha
}
