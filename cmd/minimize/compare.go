package main

import (
	"fmt"
	"io"

	"gonum.org/v1/gonum/optimize"

	"github.com/copyleftdev/descent/internal/logging"
	"github.com/copyleftdev/descent/internal/optimization"
	"github.com/copyleftdev/descent/internal/optimization/solver"
)

// gonumMethod returns gonum's counterpart of a solver, or nil when gonum has
// none.
func gonumMethod(id solver.ID) optimize.Method {
	switch id {
	case solver.NewtonID:
		return &optimize.Newton{}
	case solver.GradientDescentID:
		return &optimize.GradientDescent{}
	case solver.ConjugateGradientID:
		return &optimize.CG{Variant: &optimize.PolakRibierePolyak{}}
	case solver.BFGSID:
		return &optimize.BFGS{}
	case solver.LBFGSID:
		return &optimize.LBFGS{}
	default:
		return nil
	}
}

func compareWithGonum(out io.Writer, id solver.ID, obj optimization.Objective, x0 []float64, cfg *optimization.SolverConfig, logger *logging.Logger) {
	method := gonumMethod(id)
	if method == nil {
		fmt.Fprintf(out, "gonum: no counterpart for %s\n", id)
		return
	}

	settings := &optimize.Settings{
		MajorIterations:   cfg.MaxIterations,
		GradientThreshold: cfg.GradientNormEpsilon,
	}
	res, err := optimize.Minimize(optimization.Problem(obj), x0, settings, method)
	if err != nil {
		logger.Warn("gonum run ended with an error", map[string]interface{}{
			"solver": id.String(),
			"error":  err.Error(),
		})
		fmt.Fprintf(out, "gonum error: %v\n", err)
	}
	if res == nil {
		return
	}
	fmt.Fprintf(out, "gonum status: %s\n", res.Status)
	fmt.Fprintf(out, "gonum iterations: %d\n", res.Stats.MajorIterations)
	fmt.Fprintf(out, "gonum f(solution): %g\n", res.F)
	fmt.Fprintf(out, "gonum solution: %s\n", formatVec(res.X))
}
