// Package functions provides standard test objectives for the solvers.
package functions

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/descent/internal/optimization"
)

// Rosenbrock is the extended Rosenbrock function
//
//	f(x) = Σ (1 − x_i)² + 100 (x_{i+1} − x_i²)²
//
// with analytic gradient and Hessian. Its minimum is 0 at (1, …, 1).
type Rosenbrock struct{}

func (Rosenbrock) Evaluate(x []float64) float64 {
	var sum float64
	for i := 0; i+1 < len(x); i++ {
		a := 1 - x[i]
		b := x[i+1] - x[i]*x[i]
		sum += a*a + 100*b*b
	}
	return sum
}

func (Rosenbrock) Gradient(x, grad []float64) {
	for i := range grad {
		grad[i] = 0
	}
	for i := 0; i+1 < len(x); i++ {
		b := x[i+1] - x[i]*x[i]
		grad[i] += -2*(1-x[i]) - 400*x[i]*b
		grad[i+1] += 200 * b
	}
}

func (Rosenbrock) Hessian(x []float64, hess *mat.SymDense) {
	hess.Zero()
	for i := 0; i+1 < len(x); i++ {
		hess.SetSym(i, i, hess.At(i, i)+2-400*x[i+1]+1200*x[i]*x[i])
		hess.SetSym(i, i+1, -400*x[i])
		hess.SetSym(i+1, i+1, hess.At(i+1, i+1)+200)
	}
}

// RosenbrockValue is Rosenbrock without analytic derivatives, so every
// derivative comes from finite differences.
type RosenbrockValue struct{}

func (RosenbrockValue) Evaluate(x []float64) float64 { return Rosenbrock{}.Evaluate(x) }

// Sphere is f(x) = Σ x_i². It computes value, gradient and Hessian in one
// pass through Eval.
type Sphere struct{}

func (Sphere) Evaluate(x []float64) float64 { return floats.Dot(x, x) }

func (Sphere) Gradient(x, grad []float64) {
	floats.ScaleTo(grad, 2, x)
}

func (Sphere) Hessian(x []float64, hess *mat.SymDense) {
	hess.Zero()
	for i := range x {
		hess.SetSym(i, i, 2)
	}
}

func (s Sphere) Eval(x []float64, order int) (optimization.State, error) {
	n := len(x)
	var grad []float64
	var hess *mat.SymDense
	if order >= 1 {
		grad = make([]float64, n)
		s.Gradient(x, grad)
	}
	if order >= 2 {
		hess = mat.NewSymDense(n, nil)
		s.Hessian(x, hess)
	}
	if hess == nil {
		return optimization.NewState(x, order, s.Evaluate(x), grad, nil)
	}
	return optimization.NewState(x, order, s.Evaluate(x), grad, hess)
}

// Quadratic is f(x) = ½ xᵀAx − bᵀx. For positive definite A its minimum is
// at A⁻¹b.
type Quadratic struct {
	A *mat.SymDense
	B []float64
}

func (q Quadratic) Dim() int { return len(q.B) }

func (q Quadratic) Evaluate(x []float64) float64 {
	xv := mat.NewVecDense(len(x), x)
	return 0.5*mat.Inner(xv, q.A, xv) - floats.Dot(q.B, x)
}

func (q Quadratic) Gradient(x, grad []float64) {
	gv := mat.NewVecDense(len(grad), grad)
	gv.MulVec(q.A, mat.NewVecDense(len(x), x))
	floats.Sub(grad, q.B)
}

func (q Quadratic) Hessian(_ []float64, hess *mat.SymDense) {
	hess.CopySym(q.A)
}

// Booth is f(x, y) = (x + 2y − 7)² + (2x + y − 5)², minimum 0 at (1, 3).
type Booth struct{}

func (Booth) Dim() int { return 2 }

func (Booth) Evaluate(x []float64) float64 {
	a := x[0] + 2*x[1] - 7
	b := 2*x[0] + x[1] - 5
	return a*a + b*b
}

func (Booth) Gradient(x, grad []float64) {
	a := x[0] + 2*x[1] - 7
	b := 2*x[0] + x[1] - 5
	grad[0] = 2*a + 4*b
	grad[1] = 4*a + 2*b
}

// Beale is f(x, y) = (1.5 − x + xy)² + (2.25 − x + xy²)² + (2.625 − x + xy³)²,
// minimum 0 at (3, 0.5).
type Beale struct{}

func (Beale) Dim() int { return 2 }

func (Beale) Evaluate(x []float64) float64 {
	var sum float64
	for i, c := range bealeConsts {
		t := c - x[0] + x[0]*math.Pow(x[1], float64(i+1))
		sum += t * t
	}
	return sum
}

func (Beale) Gradient(x, grad []float64) {
	grad[0], grad[1] = 0, 0
	for i, c := range bealeConsts {
		k := float64(i + 1)
		yk := math.Pow(x[1], k)
		t := c - x[0] + x[0]*yk
		grad[0] += 2 * t * (yk - 1)
		grad[1] += 2 * t * x[0] * k * math.Pow(x[1], k-1)
	}
}

var bealeConsts = [...]float64{1.5, 2.25, 2.625}

// Linear is f(x) = Σ x_i. It has no stationary point, so a descent run only
// ends at its iteration limit.
type Linear struct{}

func (Linear) Evaluate(x []float64) float64 { return floats.Sum(x) }

func (Linear) Gradient(_, grad []float64) {
	for i := range grad {
		grad[i] = 1
	}
}
