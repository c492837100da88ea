// Package finitediff approximates derivatives of scalar functions by central
// differences and checks analytic derivatives against those approximations.
package finitediff

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

var (
	eps       = math.Nextafter(1, 2) - 1
	sqrtEps   = math.Sqrt(eps)
	fourthEps = math.Sqrt(sqrtEps)
)

// Function is a scalar function of a vector.
type Function interface {
	Evaluate(x []float64) float64
}

// Gradienter is a Function with an analytic gradient.
type Gradienter interface {
	Function
	Gradient(x, grad []float64)
}

// Hessianer is a Function with an analytic Hessian.
type Hessianer interface {
	Function
	Hessian(x []float64, hess *mat.SymDense)
}

// orderer is implemented by functions that declare which of their
// derivatives are analytic. A method whose derivative is not covered by the
// declared order is itself a finite difference, so it is not checked.
type orderer interface {
	Order() int
}

func declares(f Function, order int) bool {
	if o, ok := f.(orderer); ok {
		return o.Order() >= order
	}
	return true
}

// step returns the central difference step for a coordinate of magnitude xi.
func step(base, xi float64) float64 {
	return base * math.Max(1, math.Abs(xi))
}

// Gradient stores the central difference gradient of f at x in grad.
// x is restored before returning.
func Gradient(f func([]float64) float64, x, grad []float64) {
	if len(grad) != len(x) {
		panic("finitediff: gradient length mismatch")
	}
	for i, xi := range x {
		h := step(sqrtEps, xi)
		x[i] = xi + h
		fp := f(x)
		x[i] = xi - h
		fm := f(x)
		x[i] = xi
		grad[i] = (fp - fm) / (2 * h)
	}
}

// HessianFromGradient stores in hess the central difference of grad at x,
// symmetrized by averaging with its transpose.
func HessianFromGradient(grad func(x, g []float64), x []float64, hess *mat.SymDense) {
	n := len(x)
	checkHessDims(hess, n)
	gp := make([]float64, n)
	gm := make([]float64, n)
	cols := mat.NewDense(n, n, nil)
	for j, xj := range x {
		h := step(sqrtEps, xj)
		x[j] = xj + h
		grad(x, gp)
		x[j] = xj - h
		grad(x, gm)
		x[j] = xj
		for i := 0; i < n; i++ {
			cols.Set(i, j, (gp[i]-gm[i])/(2*h))
		}
	}
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			hess.SetSym(i, j, 0.5*(cols.At(i, j)+cols.At(j, i)))
		}
	}
}

// Hessian stores in hess a value-only four-point central difference
// approximation of the Hessian of f at x.
func Hessian(f func([]float64) float64, x []float64, hess *mat.SymDense) {
	n := len(x)
	checkHessDims(hess, n)
	for i := 0; i < n; i++ {
		xi := x[i]
		hi := step(fourthEps, xi)
		for j := i; j < n; j++ {
			xj := x[j]
			hj := step(fourthEps, xj)
			var v float64
			if i == j {
				f0 := f(x)
				x[i] = xi + 2*hi
				fpp := f(x)
				x[i] = xi - 2*hi
				fmm := f(x)
				x[i] = xi
				v = (fpp - 2*f0 + fmm) / (4 * hi * hi)
			} else {
				x[i], x[j] = xi+hi, xj+hj
				fpp := f(x)
				x[j] = xj - hj
				fpm := f(x)
				x[i] = xi - hi
				fmm := f(x)
				x[j] = xj + hj
				fmp := f(x)
				x[i], x[j] = xi, xj
				v = (fpp - fpm - fmp + fmm) / (4 * hi * hj)
			}
			hess.SetSym(i, j, v)
		}
	}
}

func checkHessDims(hess *mat.SymDense, n int) {
	if hess == nil || hess.SymmetricDim() != n {
		panic("finitediff: hessian dimension mismatch")
	}
}

// IsGradientCorrect reports whether the analytic gradient of f at x agrees
// with its central difference estimate, componentwise within
// tol·max(1, |estimate|). It is false when f declares an Order below 1.
func IsGradientCorrect(f Gradienter, x []float64, tol float64) bool {
	if !declares(f, 1) {
		return false
	}
	n := len(x)
	xc := append([]float64(nil), x...)
	analytic := make([]float64, n)
	f.Gradient(xc, analytic)
	numeric := make([]float64, n)
	Gradient(f.Evaluate, xc, numeric)
	for i := range numeric {
		if !within(analytic[i], numeric[i], tol) {
			return false
		}
	}
	return true
}

// IsHessianCorrect reports whether the analytic Hessian of f at x agrees with
// a finite difference estimate within tol. The estimate differentiates the
// analytic gradient when f also implements Gradient, and uses values only
// otherwise. It is false when f declares an Order below 2.
func IsHessianCorrect(f Hessianer, x []float64, tol float64) bool {
	if !declares(f, 2) {
		return false
	}
	n := len(x)
	xc := append([]float64(nil), x...)
	analytic := mat.NewSymDense(n, nil)
	f.Hessian(xc, analytic)
	numeric := mat.NewSymDense(n, nil)
	if g, ok := f.(Gradienter); ok {
		HessianFromGradient(g.Gradient, xc, numeric)
	} else {
		Hessian(f.Evaluate, xc, numeric)
	}
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			if !within(analytic.At(i, j), numeric.At(i, j), tol) {
				return false
			}
		}
	}
	return true
}

func within(got, want, tol float64) bool {
	if math.IsNaN(got) || math.IsNaN(want) {
		return false
	}
	return math.Abs(got-want) <= tol*math.Max(1, math.Abs(want))
}
