package optimization

import (
	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/descent/internal/optimization/finitediff"
)

// Objective is a scalar function to be minimized. Evaluate is the only
// mandatory capability; derivatives default to finite differences.
type Objective interface {
	Evaluate(x []float64) float64
}

// Gradienter is implemented by objectives with an analytic gradient.
// Gradient stores the gradient at x in grad.
type Gradienter interface {
	Gradient(x, grad []float64)
}

// Hessianer is implemented by objectives with an analytic Hessian.
type Hessianer interface {
	Hessian(x []float64, hess *mat.SymDense)
}

// Orderer declares which derivatives are analytically available:
// 0 value only, 1 gradient, 2 gradient and Hessian.
type Orderer interface {
	Order() int
}

// Evaler is implemented by objectives that compute value, gradient and
// Hessian together more cheaply than separately.
type Evaler interface {
	Eval(x []float64, order int) (State, error)
}

// Dimensioner is implemented by objectives defined for one dimensionality.
type Dimensioner interface {
	Dim() int
}

// OrderOf returns the analytic derivative order of obj, clamped to [0, 2].
// Without an Order method it is inferred from the implemented capabilities.
func OrderOf(obj Objective) int {
	if o, ok := obj.(Orderer); ok {
		return clampOrder(o.Order())
	}
	_, hasGrad := obj.(Gradienter)
	_, hasHess := obj.(Hessianer)
	switch {
	case hasGrad && hasHess:
		return 2
	case hasGrad:
		return 1
	default:
		return 0
	}
}

func clampOrder(order int) int {
	if order < 0 {
		return 0
	}
	if order > 2 {
		return 2
	}
	return order
}

// Gradient stores the gradient of obj at x in grad, using the analytic
// gradient when obj declares one and a central difference otherwise.
func Gradient(obj Objective, x, grad []float64) {
	if g, ok := obj.(Gradienter); ok && OrderOf(obj) >= 1 {
		g.Gradient(x, grad)
		return
	}
	finitediff.Gradient(obj.Evaluate, scratch(x), grad)
}

// Hessian stores the Hessian of obj at x in hess. Without an analytic
// Hessian it differentiates the gradient, or the values when no analytic
// gradient is declared either.
func Hessian(obj Objective, x []float64, hess *mat.SymDense) {
	order := OrderOf(obj)
	if h, ok := obj.(Hessianer); ok && order >= 2 {
		h.Hessian(x, hess)
		return
	}
	if g, ok := obj.(Gradienter); ok && order >= 1 {
		finitediff.HessianFromGradient(g.Gradient, scratch(x), hess)
		return
	}
	finitediff.Hessian(obj.Evaluate, scratch(x), hess)
}

// Eval evaluates obj at x and returns a State populated up to
// min(order, 2). An Evaler override is used when present.
func Eval(obj Objective, x []float64, order int) (State, error) {
	order = clampOrder(order)
	if e, ok := obj.(Evaler); ok {
		s, err := e.Eval(x, order)
		if err != nil {
			return State{}, WrapError(err, "evaluate").WithComponent("objective")
		}
		if s.Dim() != len(x) || s.Order() < order {
			return State{}, WrapErrorf(ErrDimensionMismatch,
				"Eval returned dim %d order %d for point of dim %d at order %d",
				s.Dim(), s.Order(), len(x), order).WithComponent("objective")
		}
		return s, nil
	}

	n := len(x)
	s := State{
		dim:   n,
		order: order,
		set:   true,
		x:     append([]float64(nil), x...),
	}
	s.value = obj.Evaluate(s.x)
	if order >= 1 {
		s.gradient = make([]float64, n)
		Gradient(obj, s.x, s.gradient)
	}
	if order >= 2 {
		s.hessian = mat.NewSymDense(n, nil)
		Hessian(obj, s.x, s.hessian)
	}
	return s, nil
}

// scratch copies x so finite differencing never perturbs a caller's slice.
func scratch(x []float64) []float64 {
	return append([]float64(nil), x...)
}

// Func adapts closures to an Objective. A nil Grad or Hess falls back to
// finite differences and lowers the declared order accordingly. Func always
// has Gradient and Hessian methods, so callers that need to know whether a
// derivative is analytic must consult Order; the finitediff checkers do.
type Func struct {
	F    func(x []float64) float64
	Grad func(x, grad []float64)
	Hess func(x []float64, hess *mat.SymDense)
	// N is the expected dimensionality; zero accepts any.
	N int
}

func (f Func) Evaluate(x []float64) float64 { return f.F(x) }

func (f Func) Gradient(x, grad []float64) {
	if f.Grad == nil {
		finitediff.Gradient(f.F, scratch(x), grad)
		return
	}
	f.Grad(x, grad)
}

func (f Func) Hessian(x []float64, hess *mat.SymDense) {
	switch {
	case f.Hess != nil:
		f.Hess(x, hess)
	case f.Grad != nil:
		finitediff.HessianFromGradient(f.Grad, scratch(x), hess)
	default:
		finitediff.Hessian(f.F, scratch(x), hess)
	}
}

func (f Func) Order() int {
	switch {
	case f.Grad != nil && f.Hess != nil:
		return 2
	case f.Grad != nil:
		return 1
	default:
		return 0
	}
}

// Dim returns N; Minimize only checks it when it is non-zero.
func (f Func) Dim() int { return f.N }
