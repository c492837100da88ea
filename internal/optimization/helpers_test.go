package optimization

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// quadraticObjective is f(x) = Σ (i+1)·x_i² with analytic derivatives.
type quadraticObjective struct{}

func (quadraticObjective) Evaluate(x []float64) float64 {
	sum := 0.0
	for i, v := range x {
		sum += float64(i+1) * v * v
	}
	return sum
}

func (quadraticObjective) Gradient(x, grad []float64) {
	for i, v := range x {
		grad[i] = 2 * float64(i+1) * v
	}
}

func (quadraticObjective) Hessian(x []float64, hess *mat.SymDense) {
	hess.Zero()
	for i := range x {
		hess.SetSym(i, i, 2*float64(i+1))
	}
}

// valueOnly hides every optional capability of an objective.
type valueOnly struct{ f Objective }

func (v valueOnly) Evaluate(x []float64) float64 { return v.f.Evaluate(x) }

// assertFloat64SlicesEqual checks if two float64 slices are approximately equal
func assertFloat64SlicesEqual(t *testing.T, got, want []float64, tol float64) {
	t.Helper()

	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}

	for i := range got {
		if math.Abs(got[i]-want[i]) > tol {
			t.Fatalf("at index %d: got %v, want %v (tolerance %v)", i, got[i], want[i], tol)
		}
	}
}

// assertMatEqual checks if two matrices are approximately equal
func assertMatEqual(t *testing.T, got, want mat.Matrix, tol float64) {
	t.Helper()

	rg, cg := got.Dims()
	rw, cw := want.Dims()
	if rg != rw || cg != cw {
		t.Fatalf("matrix dimensions mismatch: got %dx%d, want %dx%d", rg, cg, rw, cw)
	}

	for i := 0; i < rg; i++ {
		for j := 0; j < cg; j++ {
			if g, w := got.At(i, j), want.At(i, j); math.Abs(g-w) > tol {
				t.Fatalf("at (%d,%d): got %v, want %v (tolerance %v)", i, j, g, w, tol)
			}
		}
	}
}
