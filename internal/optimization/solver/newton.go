package solver

import (
	"errors"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/descent/internal/optimization"
	"github.com/copyleftdev/descent/internal/optimization/linesearch"
)

// Newton steps along −H⁻¹g, solving with a Cholesky factorization of the
// Hessian. A Hessian that is not positive definite degrades the step to
// steepest descent.
type Newton struct {
	dim  int
	chol mat.Cholesky
}

// NewNewton returns a Solver running Newton's method.
func NewNewton(opts ...Option) *Solver {
	return New(&Newton{}, opts...)
}

func (*Newton) Name() string       { return "newton" }
func (*Newton) RequiredOrder() int { return 2 }
func (*Newton) unitStep()          {}

func (n *Newton) Init(dim int, _ *optimization.SolverConfig) error {
	n.dim = dim
	return nil
}

func (n *Newton) ComputeDirection(state optimization.State, dst []float64) (bool, error) {
	g := state.Gradient()
	hess := state.Hessian()
	if hess == nil {
		return false, ErrNumericalFailure
	}
	if n.chol.Factorize(hess) {
		rhs := mat.NewVecDense(n.dim, append([]float64(nil), g...))
		err := n.chol.SolveVecTo(mat.NewVecDense(n.dim, dst), rhs)
		var cond mat.Condition
		if err == nil || errors.As(err, &cond) {
			floats.Scale(-1, dst)
			if finiteVec(dst) && floats.Dot(g, dst) < 0 {
				return false, nil
			}
		}
	}
	copy(dst, g)
	floats.Scale(-1, dst)
	return true, nil
}

func (*Newton) UpdateHistory(_, _ optimization.State) bool { return true }

func (*Newton) DefaultLineSearch() linesearch.Searcher {
	return &linesearch.Backtracking{}
}
