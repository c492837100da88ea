package optimization

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// Problem adapts obj to a gonum optimize.Problem so a run can be compared
// against gonum's implementations. Derivatives follow the same dispatch as
// Gradient and Hessian, finite differences included.
func Problem(obj Objective) optimize.Problem {
	return optimize.Problem{
		Func: obj.Evaluate,
		Grad: func(grad, x []float64) {
			Gradient(obj, x, grad)
		},
		Hess: func(hess *mat.SymDense, x []float64) {
			Hessian(obj, x, hess)
		},
	}
}
