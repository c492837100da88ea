package server

import (
	"encoding/json"
	"math"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/descent/internal/config"
	apierrors "github.com/copyleftdev/descent/internal/errors"
	"github.com/copyleftdev/descent/internal/logging"
	"github.com/copyleftdev/descent/internal/optimization"
	"github.com/copyleftdev/descent/internal/optimization/finitediff"
	"github.com/copyleftdev/descent/internal/optimization/functions"
	"github.com/copyleftdev/descent/internal/optimization/solver"
)

// Logger defines the logging interface used by the server
type Logger interface {
	Debug(msg string, fields ...map[string]interface{})
	Info(msg string, fields ...map[string]interface{})
	Warn(msg string, fields ...map[string]interface{})
	Error(msg string, fields ...map[string]interface{})
	WithFields(fields map[string]interface{}) *logging.Logger
}

// maxRuns bounds the in-memory run history.
const maxRuns = 1000

// Server runs minimizations of the registered objectives over HTTP and
// JSON-RPC. Each request builds its own Solver, so requests never share
// solver state.
type Server struct {
	cfg       *config.Config
	logger    Logger
	solverLog *zap.Logger
	runs      *RunStore
	metrics   *Metrics
}

// Option configures a Server.
type Option func(*serverOptions)

type serverOptions struct {
	registerer prometheus.Registerer
	solverLog  *zap.Logger
}

// WithRegisterer registers the server metrics with reg instead of the
// default Prometheus registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *serverOptions) { o.registerer = reg }
}

// WithSolverLogger sets the logger handed to every solver.
func WithSolverLogger(l *zap.Logger) Option {
	return func(o *serverOptions) { o.solverLog = l }
}

// NewServer creates a new server instance with the given config and logger.
// Solver diagnostics are bridged into logger unless WithSolverLogger is
// given.
func NewServer(cfg *config.Config, logger Logger, opts ...Option) *Server {
	o := serverOptions{registerer: prometheus.DefaultRegisterer}
	for _, opt := range opts {
		opt(&o)
	}
	if o.solverLog == nil {
		o.solverLog = logging.NewZapLogger(logger.WithFields(map[string]interface{}{"component": "solver"}))
	}
	return &Server{
		cfg:       cfg,
		logger:    logger,
		solverLog: o.solverLog,
		runs:      NewRunStore(maxRuns),
		metrics:   NewMetrics(o.registerer),
	}
}

func (s *Server) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/minimize", s.handleMinimize)
		r.Post("/check", s.handleCheck)
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{id}", s.handleGetRun)
		r.Delete("/runs/{id}", s.handleDeleteRun)
		r.Get("/solvers", s.handleSolvers)
		r.Get("/objectives", s.handleObjectives)
	})

	// JSON-RPC 2.0 endpoint
	r.Post("/rpc", s.handleJSONRPC)
}

// MinimizeRequest selects a solver and objective and optionally overrides
// the configured stopping thresholds.
type MinimizeRequest struct {
	// Solver is a solver name; SolverID is used when it is empty.
	Solver        string    `json:"solver,omitempty"`
	SolverID      *int      `json:"solver_id,omitempty"`
	Objective     string    `json:"objective"`
	X0            []float64 `json:"x0,omitempty"`
	Lower         []float64 `json:"lower,omitempty"`
	Upper         []float64 `json:"upper,omitempty"`
	MaxIterations *int      `json:"max_iterations,omitempty"`
	XDelta        *float64  `json:"x_delta,omitempty"`
	FDelta        *float64  `json:"f_delta,omitempty"`
	GradientNorm  *float64  `json:"gradient_norm,omitempty"`
	Memory        int       `json:"memory,omitempty"`
}

// CheckRequest asks for the derivatives of an objective at X and whether
// its analytic derivatives agree with finite differences.
type CheckRequest struct {
	Objective string    `json:"objective"`
	X         []float64 `json:"x,omitempty"`
	Tolerance float64   `json:"tolerance,omitempty"`
}

// CheckResult reports the value and derivatives at one point. The
// correctness flags are absent when the objective has no analytic
// derivative of that order.
type CheckResult struct {
	Objective       string      `json:"objective"`
	X               []float64   `json:"x"`
	Order           int         `json:"order"`
	Value           float64     `json:"value"`
	Gradient        []float64   `json:"gradient"`
	Hessian         [][]float64 `json:"hessian"`
	GradientCorrect *bool       `json:"gradient_correct,omitempty"`
	HessianCorrect  *bool       `json:"hessian_correct,omitempty"`
}

// SolverInfo describes a selectable solver.
type SolverInfo struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// ObjectiveInfo describes a registered objective.
type ObjectiveInfo struct {
	Name      string    `json:"name"`
	Order     int       `json:"order"`
	Start     []float64 `json:"start"`
	Minimizer []float64 `json:"minimizer,omitempty"`
}

const defaultCheckTolerance = 1e-4

func (s *Server) lookupObjective(name string) (functions.Entry, error) {
	entry, ok := functions.Lookup(name)
	if !ok {
		return functions.Entry{}, apierrors.BadRequest("unknown objective %q", name)
	}
	return entry, nil
}

func (s *Server) checkDim(x []float64) error {
	if max := s.cfg.Solver.MaxDimension; max > 0 && len(x) > max {
		return apierrors.BadRequest("dimension %d exceeds the limit of %d", len(x), max)
	}
	return nil
}

func (s *Server) solverConfig(req *MinimizeRequest) *optimization.SolverConfig {
	cfg := s.cfg.SolverConfig()
	if req.MaxIterations != nil {
		cfg.MaxIterations = *req.MaxIterations
	}
	if req.XDelta != nil {
		cfg.XDeltaEpsilon = *req.XDelta
	}
	if req.FDelta != nil {
		cfg.FDeltaEpsilon = *req.FDelta
	}
	if req.GradientNorm != nil {
		cfg.GradientNormEpsilon = *req.GradientNorm
	}
	cfg.Lower = req.Lower
	cfg.Upper = req.Upper
	return cfg
}

func (s *Server) newSolver(req *MinimizeRequest) (*solver.Solver, error) {
	memory := req.Memory
	if memory <= 0 {
		memory = s.cfg.Solver.LBFGSMemory
	}
	opt := solver.WithLogger(s.solverLog)
	if req.Solver != "" {
		sv, err := solver.ByName(req.Solver, memory, opt)
		if err != nil {
			return nil, apierrors.Wrap(err, "").WithCode(http.StatusBadRequest)
		}
		return sv, nil
	}
	if req.SolverID == nil {
		return nil, apierrors.BadRequest("solver or solver_id is required")
	}
	sv, err := solver.ByID(solver.ID(*req.SolverID), memory, opt)
	if err != nil {
		return nil, apierrors.Wrap(err, "").WithCode(http.StatusBadRequest)
	}
	return sv, nil
}

// minimize runs one request to completion and records it.
func (s *Server) minimize(req *MinimizeRequest) (Run, error) {
	const op = "Server.minimize"
	sv, err := s.newSolver(req)
	if err != nil {
		return Run{}, err
	}
	entry, err := s.lookupObjective(req.Objective)
	if err != nil {
		return Run{}, err
	}
	x0 := req.X0
	if len(x0) == 0 {
		x0 = entry.Start
	}
	if err := s.checkDim(x0); err != nil {
		return Run{}, err
	}

	run := s.runs.Create(sv.Name(), entry.Name, x0)
	start := time.Now()
	res, err := sv.Minimize(entry.Objective, x0, s.solverConfig(req))
	if err != nil {
		s.runs.Delete(run.ID)
		code := http.StatusInternalServerError
		if _, ok := optimization.IsOptimizationError(err); ok {
			code = http.StatusBadRequest
		}
		return Run{}, apierrors.Wrap(err, "").WithOperation(op).WithCode(code)
	}
	elapsed := time.Since(start)

	s.runs.Update(run.ID, func(r *Run) { r.finish(res, time.Now()) })
	finished, _ := s.runs.Get(run.ID)
	s.metrics.observeRun(&finished, elapsed)

	s.logger.Info("Minimization finished", map[string]interface{}{
		"run_id":     finished.ID,
		"solver":     finished.Solver,
		"objective":  finished.Objective,
		"status":     finished.Status,
		"iterations": finished.Iterations,
		"value":      finished.Value,
	})
	return finished, nil
}

func (s *Server) check(req *CheckRequest) (*CheckResult, error) {
	entry, err := s.lookupObjective(req.Objective)
	if err != nil {
		return nil, err
	}
	x := req.X
	if len(x) == 0 {
		x = entry.Start
	}
	if err := s.checkDim(x); err != nil {
		return nil, err
	}
	if d, ok := entry.Objective.(optimization.Dimensioner); ok && d.Dim() != 0 && d.Dim() != len(x) {
		return nil, apierrors.BadRequest("objective %q expects %d coordinates, got %d", entry.Name, d.Dim(), len(x))
	}
	tol := req.Tolerance
	if tol <= 0 {
		tol = defaultCheckTolerance
	}

	state, err := optimization.Eval(entry.Objective, x, 2)
	if err != nil {
		return nil, apierrors.Wrap(err, "evaluation failed").WithCode(http.StatusBadRequest)
	}
	res := &CheckResult{
		Objective: entry.Name,
		X:         state.X(),
		Order:     optimization.OrderOf(entry.Objective),
		Value:     state.Value(),
		Gradient:  state.Gradient(),
		Hessian:   rows(state.Hessian()),
	}
	if g, ok := entry.Objective.(finitediff.Gradienter); ok && res.Order >= 1 {
		ok := finitediff.IsGradientCorrect(g, x, tol)
		res.GradientCorrect = &ok
		s.metrics.observeCheck("gradient", ok)
	}
	if h, ok := entry.Objective.(finitediff.Hessianer); ok && res.Order >= 2 {
		ok := finitediff.IsHessianCorrect(h, x, tol)
		res.HessianCorrect = &ok
		s.metrics.observeCheck("hessian", ok)
	}
	return res, nil
}

func rows(m mat.Symmetric) [][]float64 {
	if m == nil {
		return nil
	}
	n := m.SymmetricDim()
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, n)
		for j := range out[i] {
			out[i][j] = m.At(i, j)
		}
	}
	return out
}

func solverList() []SolverInfo {
	names := solver.Names()
	list := make([]SolverInfo, len(names))
	for i, n := range names {
		list[i] = SolverInfo{ID: i, Name: n}
	}
	return list
}

func objectiveList() []ObjectiveInfo {
	names := functions.Names()
	list := make([]ObjectiveInfo, 0, len(names))
	for _, n := range names {
		e, _ := functions.Lookup(n)
		list = append(list, ObjectiveInfo{
			Name:      e.Name,
			Order:     optimization.OrderOf(e.Objective),
			Start:     e.Start,
			Minimizer: e.Minimizer,
		})
	}
	return list
}

// handleMinimize handles POST /api/v1/minimize.
func (s *Server) handleMinimize(w http.ResponseWriter, r *http.Request) {
	var req MinimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.WriteJSON(w, apierrors.BadRequest("invalid request body: %v", err))
		return
	}
	run, err := s.minimize(&req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, run)
}

// handleCheck handles POST /api/v1/check.
func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	var req CheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.WriteJSON(w, apierrors.BadRequest("invalid request body: %v", err))
		return
	}
	res, err := s.check(&req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleListRuns(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.runs.List())
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, ok := s.runs.Get(id)
	if !ok {
		apierrors.WriteJSON(w, apierrors.NotFound("run %q not found", id))
		return
	}
	s.writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.runs.Delete(id) {
		apierrors.WriteJSON(w, apierrors.NotFound("run %q not found", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSolvers(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, solverList())
}

func (s *Server) handleObjectives(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, objectiveList())
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(sanitize(v)); err != nil {
		s.logger.Error("Failed to encode response", map[string]interface{}{"error": err.Error()})
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if code := apierrors.HTTPStatus(err); code >= http.StatusInternalServerError {
		s.logger.Error("Request failed", map[string]interface{}{
			"path":  r.URL.Path,
			"error": err.Error(),
		})
	}
	apierrors.WriteJSON(w, err)
}

// Close releases server resources.
func (s *Server) Close() error {
	s.logger.Info("Closing server", map[string]interface{}{"runs": s.runs.Len()})
	return nil
}

// sanitize replaces non-finite floats, which encoding/json rejects, in the
// response types that can carry them.
func sanitize(v interface{}) interface{} {
	switch t := v.(type) {
	case Run:
		t.Value = finiteOrZero(t.Value)
		t.X = finiteSlice(t.X)
		t.Gradient = finiteSlice(t.Gradient)
		return t
	case *CheckResult:
		c := *t
		c.Value = finiteOrZero(c.Value)
		c.Gradient = finiteSlice(c.Gradient)
		for i := range c.Hessian {
			c.Hessian[i] = finiteSlice(c.Hessian[i])
		}
		return &c
	default:
		return v
	}
}

func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func finiteSlice(v []float64) []float64 {
	for _, e := range v {
		if math.IsNaN(e) || math.IsInf(e, 0) {
			out := make([]float64, len(v))
			for i, e := range v {
				out[i] = finiteOrZero(e)
			}
			return out
		}
	}
	return v
}
