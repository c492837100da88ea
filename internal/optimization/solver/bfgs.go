package solver

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/descent/internal/optimization"
	"github.com/copyleftdev/descent/internal/optimization/linesearch"
)

// BFGS maintains a dense approximation of the inverse Hessian and steps
// along −H·g. Updates with non-positive curvature s·y are skipped.
type BFGS struct {
	dim int
	inv *mat.SymDense
	// scaled is false until the first accepted update replaces the identity
	// with (s·y / y·y)·I.
	scaled bool
	s, y   []float64
	hy     []float64
}

// NewBFGS returns a Solver running dense BFGS.
func NewBFGS(opts ...Option) *Solver {
	return New(&BFGS{}, opts...)
}

func (*BFGS) Name() string       { return "bfgs" }
func (*BFGS) RequiredOrder() int { return 1 }
func (*BFGS) unitStep()          {}

func (b *BFGS) Init(dim int, _ *optimization.SolverConfig) error {
	b.dim = dim
	b.inv = mat.NewSymDense(dim, nil)
	b.s = make([]float64, dim)
	b.y = make([]float64, dim)
	b.hy = make([]float64, dim)
	b.resetIdentity()
	return nil
}

func (b *BFGS) resetIdentity() {
	b.inv.Zero()
	for i := 0; i < b.dim; i++ {
		b.inv.SetSym(i, i, 1)
	}
	b.scaled = false
}

// InverseHessian returns the current approximation.
func (b *BFGS) InverseHessian() mat.Symmetric { return b.inv }

func (b *BFGS) ComputeDirection(state optimization.State, dst []float64) (bool, error) {
	g := state.Gradient()
	if !b.scaled {
		steepest(dst, g, nil)
		return false, nil
	}
	d := mat.NewVecDense(b.dim, dst)
	d.MulVec(b.inv, mat.NewVecDense(b.dim, append([]float64(nil), g...)))
	floats.Scale(-1, dst)
	if finiteVec(dst) && floats.Dot(g, dst) < 0 {
		return false, nil
	}
	b.resetIdentity()
	steepest(dst, g, nil)
	return true, nil
}

func (b *BFGS) UpdateHistory(prev, next optimization.State) bool {
	diff(b.s, next.X(), prev.X())
	diff(b.y, next.Gradient(), prev.Gradient())
	sy := floats.Dot(b.s, b.y)
	if !(sy > 0) {
		return false
	}
	if !b.scaled {
		gamma := sy / floats.Dot(b.y, b.y)
		b.inv.Zero()
		for i := 0; i < b.dim; i++ {
			b.inv.SetSym(i, i, gamma)
		}
		b.scaled = true
	}

	// H+ = (I − ρsyᵀ) H (I − ρysᵀ) + ρssᵀ
	//    = H − ρ(H·y sᵀ + s (H·y)ᵀ) + (ρ² yᵀHy + ρ) ssᵀ
	rho := 1 / sy
	hy := mat.NewVecDense(b.dim, b.hy)
	hy.MulVec(b.inv, mat.NewVecDense(b.dim, b.y))
	yhy := floats.Dot(b.y, b.hy)
	c := rho*rho*yhy + rho
	for i := 0; i < b.dim; i++ {
		for j := i; j < b.dim; j++ {
			v := b.inv.At(i, j) - rho*(b.hy[i]*b.s[j]+b.s[i]*b.hy[j]) + c*b.s[i]*b.s[j]
			b.inv.SetSym(i, j, v)
		}
	}
	return true
}

func (*BFGS) DefaultLineSearch() linesearch.Searcher {
	return &linesearch.StrongWolfe{}
}
