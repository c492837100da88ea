package optimization

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// State is an immutable snapshot of an objective evaluated at one point.
// The gradient is valid only when Order() >= 1 and the Hessian only when
// Order() >= 2. The zero value is an unset snapshot.
type State struct {
	dim      int
	order    int
	set      bool
	value    float64
	x        []float64
	gradient []float64
	hessian  *mat.SymDense
}

// NewState builds a snapshot for objectives that implement Eval themselves.
// The slices are copied. gradient may be nil when order is 0 and hessian nil
// when order is below 2.
func NewState(x []float64, order int, value float64, gradient []float64, hessian mat.Symmetric) (State, error) {
	const op = "NewState"
	if order < 0 {
		return State{}, WrapErrorf(ErrUnsetState, "order %d", order).WithOperation(op)
	}
	order = clampOrder(order)
	n := len(x)
	if n == 0 {
		return State{}, WrapError(ErrEmptyPoint, "").WithOperation(op)
	}
	s := State{
		dim:   n,
		order: order,
		set:   true,
		value: value,
		x:     append([]float64(nil), x...),
	}
	if order >= 1 {
		if len(gradient) != n {
			return State{}, WrapErrorf(ErrDimensionMismatch,
				"gradient has length %d, want %d", len(gradient), n).WithOperation(op)
		}
		s.gradient = append([]float64(nil), gradient...)
	}
	if order >= 2 {
		if hessian == nil || hessian.SymmetricDim() != n {
			return State{}, WrapErrorf(ErrDimensionMismatch,
				"hessian is not %dx%d", n, n).WithOperation(op)
		}
		s.hessian = mat.NewSymDense(n, nil)
		s.hessian.CopySym(hessian)
	}
	return s, nil
}

// Dim returns the dimensionality of the point.
func (s State) Dim() int { return s.dim }

// Order returns the derivative order populated, or -1 for an unset State.
func (s State) Order() int {
	if !s.set {
		return -1
	}
	return s.order
}

// IsSet reports whether the State was produced by an evaluation.
func (s State) IsSet() bool { return s.set }

// Value returns the objective value.
func (s State) Value() float64 { return s.value }

// X returns the evaluation point. The slice must not be modified.
func (s State) X() []float64 { return s.x }

// Gradient returns the gradient, or nil when Order() < 1. The slice must not
// be modified.
func (s State) Gradient() []float64 { return s.gradient }

// Hessian returns the Hessian, or nil when Order() < 2.
func (s State) Hessian() mat.Symmetric {
	if s.hessian == nil {
		return nil
	}
	return s.hessian
}

// Clone returns a deep copy. Cloning an unset State is a contract violation.
func (s State) Clone() (State, error) {
	if !s.set {
		return State{}, WrapError(ErrUnsetState, "cannot copy").WithOperation("State.Clone")
	}
	c := State{
		dim:   s.dim,
		order: s.order,
		set:   true,
		value: s.value,
		x:     append([]float64(nil), s.x...),
	}
	if s.order >= 1 {
		c.gradient = append([]float64(nil), s.gradient...)
	}
	if s.order >= 2 {
		c.hessian = mat.NewSymDense(s.dim, nil)
		c.hessian.CopySym(s.hessian)
	}
	return c, nil
}

// IsFinite reports whether the value and gradient contain no NaN or Inf.
func (s State) IsFinite() bool {
	if math.IsNaN(s.value) || math.IsInf(s.value, 0) {
		return false
	}
	for _, g := range s.gradient {
		if math.IsNaN(g) || math.IsInf(g, 0) {
			return false
		}
	}
	return true
}
