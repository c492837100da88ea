package optimization

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/optimize"
)

func TestProblemRunsUnderGonum(t *testing.T) {
	p := Problem(quadraticObjective{})
	result, err := optimize.Minimize(p, []float64{3, -2, 1}, nil, &optimize.BFGS{})
	require.NoError(t, err)
	assertFloat64SlicesEqual(t, result.X, []float64{0, 0, 0}, 1e-6)
}

func TestProblemFiniteDifferenceNewton(t *testing.T) {
	p := Problem(valueOnly{quadraticObjective{}})
	result, err := optimize.Minimize(p, []float64{1, 1}, nil, &optimize.Newton{})
	require.NoError(t, err)
	assertFloat64SlicesEqual(t, result.X, []float64{0, 0}, 1e-4)
}
