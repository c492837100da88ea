package optimization

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/descent/internal/optimization/finitediff"
)

// wrongGradient declares no analytic derivatives, so its bogus Gradient
// method must never be trusted.
type wrongGradient struct{ quadraticObjective }

func (wrongGradient) Gradient(x, grad []float64) {
	for i := range grad {
		grad[i] = 42
	}
}

func (wrongGradient) Order() int { return 0 }

type gradientOnly struct{ q quadraticObjective }

func (g gradientOnly) Evaluate(x []float64) float64 { return g.q.Evaluate(x) }
func (g gradientOnly) Gradient(x, grad []float64)   { g.q.Gradient(x, grad) }

// shortEvaler returns a State for the wrong point.
type shortEvaler struct{ quadraticObjective }

func (shortEvaler) Eval(x []float64, order int) (State, error) {
	return NewState(x[:1], 0, 0, nil, nil)
}

func TestOrderOf(t *testing.T) {
	tests := []struct {
		name string
		obj  Objective
		want int
	}{
		{"analytic gradient and hessian", quadraticObjective{}, 2},
		{"gradient only", gradientOnly{}, 1},
		{"value only", valueOnly{quadraticObjective{}}, 0},
		{"declared order wins", wrongGradient{}, 0},
		{"func without derivatives", Func{F: quadraticObjective{}.Evaluate}, 0},
		{"func with gradient", Func{F: quadraticObjective{}.Evaluate, Grad: quadraticObjective{}.Gradient}, 1},
		{"func with both", Func{
			F:    quadraticObjective{}.Evaluate,
			Grad: quadraticObjective{}.Gradient,
			Hess: quadraticObjective{}.Hessian,
		}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, OrderOf(tt.obj))
		})
	}
}

func TestGradientFallsBackWhenUndeclared(t *testing.T) {
	x := []float64{1, -2, 0.5}
	want := make([]float64, 3)
	quadraticObjective{}.Gradient(x, want)

	got := make([]float64, 3)
	Gradient(wrongGradient{}, x, got)
	assertFloat64SlicesEqual(t, got, want, 1e-6)
}

func TestEval(t *testing.T) {
	x := []float64{1, 2}

	t.Run("analytic", func(t *testing.T) {
		s, err := Eval(quadraticObjective{}, x, 5)
		require.NoError(t, err)
		assert.Equal(t, 2, s.Order())
		assert.Equal(t, 2, s.Dim())
		assert.InDelta(t, 9.0, s.Value(), 1e-12)
		assertFloat64SlicesEqual(t, s.Gradient(), []float64{2, 8}, 1e-12)
		assertMatEqual(t, s.Hessian(), mat.NewSymDense(2, []float64{2, 0, 0, 4}), 1e-12)
	})

	t.Run("finite differences", func(t *testing.T) {
		s, err := Eval(valueOnly{quadraticObjective{}}, x, 2)
		require.NoError(t, err)
		assertFloat64SlicesEqual(t, s.Gradient(), []float64{2, 8}, 1e-6)
		assertMatEqual(t, s.Hessian(), mat.NewSymDense(2, []float64{2, 0, 0, 4}), 1e-4)
	})

	t.Run("value only order", func(t *testing.T) {
		s, err := Eval(quadraticObjective{}, x, 0)
		require.NoError(t, err)
		assert.Equal(t, 0, s.Order())
		assert.Nil(t, s.Gradient())
		assert.Nil(t, s.Hessian())
	})

	t.Run("does not alias the point", func(t *testing.T) {
		in := []float64{1, 2}
		s, err := Eval(quadraticObjective{}, in, 1)
		require.NoError(t, err)
		in[0] = 100
		assert.Equal(t, 1.0, s.X()[0])
	})

	t.Run("evaler contract violation", func(t *testing.T) {
		_, err := Eval(shortEvaler{}, x, 1)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrDimensionMismatch)
	})
}

func TestFuncFallbacks(t *testing.T) {
	f := Func{F: quadraticObjective{}.Evaluate, N: 2}
	x := []float64{-1, 3}

	grad := make([]float64, 2)
	f.Gradient(x, grad)
	assertFloat64SlicesEqual(t, grad, []float64{-2, 12}, 1e-6)

	hess := mat.NewSymDense(2, nil)
	f.Hessian(x, hess)
	assertMatEqual(t, hess, mat.NewSymDense(2, []float64{2, 0, 0, 4}), 1e-4)
	assert.Equal(t, 2, f.Dim())
}

func TestFuncDerivativeChecks(t *testing.T) {
	q := quadraticObjective{}
	x := []float64{-1, 3}

	plain := Func{F: q.Evaluate}
	assert.False(t, finitediff.IsGradientCorrect(plain, x, 1e-4))
	assert.False(t, finitediff.IsHessianCorrect(plain, x, 1e-4))

	withGrad := Func{F: q.Evaluate, Grad: q.Gradient}
	assert.True(t, finitediff.IsGradientCorrect(withGrad, x, 1e-4))
	assert.False(t, finitediff.IsHessianCorrect(withGrad, x, 1e-4))

	full := Func{F: q.Evaluate, Grad: q.Gradient, Hess: q.Hessian}
	assert.True(t, finitediff.IsHessianCorrect(full, x, 1e-4))
}
