package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/descent/internal/logging"
	"github.com/copyleftdev/descent/internal/optimization"
	"github.com/copyleftdev/descent/internal/optimization/finitediff"
	"github.com/copyleftdev/descent/internal/optimization/functions"
	"github.com/copyleftdev/descent/internal/optimization/solver"
)

type options struct {
	objective     string
	x0            []float64
	lower         []float64
	upper         []float64
	maxIterations int
	memory        int
	compare       bool
	logLevel      string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "minimize <solver-id>",
		Short: "Minimize a test objective with one of the descent solvers",
		Long: `Runs a solver on a registered objective. Solver ids:

  0 newton, 1 gradient-descent, 2 conjugate-gradient,
  3 bfgs, 4 lbfgs, 5 lbfgsb`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("need to provide the solver id (0-%d)", len(solver.Names())-1)
			}
			return nil
		},
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("solver id %q is not a number", args[0])
			}
			return run(cmd.OutOrStdout(), solver.ID(id), opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.objective, "objective", "rosenbrock",
		fmt.Sprintf("Objective to minimize (%s)", strings.Join(functions.Names(), ", ")))
	flags.Float64SliceVar(&opts.x0, "x0", nil, "Starting point (default: the objective's conventional start)")
	flags.Float64SliceVar(&opts.lower, "lower", nil, "Lower bounds for lbfgsb")
	flags.Float64SliceVar(&opts.upper, "upper", nil, "Upper bounds for lbfgsb")
	flags.IntVar(&opts.maxIterations, "max-iterations", optimization.DefaultSolverConfig().MaxIterations, "Iteration limit")
	flags.IntVar(&opts.memory, "memory", solver.DefaultMemory, "History size of lbfgs and lbfgsb")
	flags.BoolVar(&opts.compare, "compare", false, "Also run gonum's implementation of the same method")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	return cmd
}

func run(out io.Writer, id solver.ID, opts *options) error {
	entry, ok := functions.Lookup(opts.objective)
	if !ok {
		return fmt.Errorf("unknown objective %q", opts.objective)
	}
	x0 := opts.x0
	if len(x0) == 0 {
		x0 = entry.Start
	}

	logger, err := logging.NewLogger(&logging.Config{Level: opts.logLevel, Format: "text", Output: "stderr"})
	if err != nil {
		return err
	}
	s, err := solver.ByID(id, opts.memory, solver.WithLogger(logging.NewZapLogger(logger)))
	if err != nil {
		return err
	}

	fmt.Fprintln(out, s.Name())
	if err := describeStart(out, entry.Objective, x0); err != nil {
		return err
	}

	cfg := optimization.DefaultSolverConfig()
	cfg.MaxIterations = opts.maxIterations
	cfg.Lower = opts.lower
	cfg.Upper = opts.upper
	res, err := s.Minimize(entry.Objective, x0, cfg)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Solver status: %s\n", res.Status)
	fmt.Fprintf(out, "Iterations: %d\n", res.Iterations)
	fmt.Fprintf(out, "f(solution): %g\n", res.State.Value())
	fmt.Fprintf(out, "Solution: %s\n", formatVec(res.X))

	if opts.compare {
		compareWithGonum(out, id, entry.Objective, x0, cfg, logger)
	}
	return nil
}

// describeStart prints the value and derivatives at x with their
// finite-difference checks.
func describeStart(out io.Writer, obj optimization.Objective, x []float64) error {
	if d, ok := obj.(optimization.Dimensioner); ok && d.Dim() != 0 && d.Dim() != len(x) {
		return fmt.Errorf("objective expects %d coordinates, got %d", d.Dim(), len(x))
	}
	state, err := optimization.Eval(obj, x, 2)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "f(x): %g\n", state.Value())
	fmt.Fprintf(out, "gradient: %s\n", formatVec(state.Gradient()))
	fmt.Fprintf(out, "hessian:\n%v\n", mat.Formatted(state.Hessian(), mat.Prefix("  ")))

	order := optimization.OrderOf(obj)
	if g, ok := obj.(finitediff.Gradienter); ok && order >= 1 {
		fmt.Fprintf(out, "IsGradientCorrect: %t\n", finitediff.IsGradientCorrect(g, x, 1e-4))
	} else {
		fmt.Fprintln(out, "IsGradientCorrect: n/a (finite differences)")
	}
	if h, ok := obj.(finitediff.Hessianer); ok && order >= 2 {
		fmt.Fprintf(out, "IsHessianCorrect: %t\n", finitediff.IsHessianCorrect(h, x, 1e-4))
	} else {
		fmt.Fprintln(out, "IsHessianCorrect: n/a (finite differences)")
	}
	return nil
}

func formatVec(v []float64) string {
	parts := make([]string, len(v))
	for i, e := range v {
		parts[i] = strconv.FormatFloat(e, 'g', 8, 64)
	}
	return strings.Join(parts, " ")
}
