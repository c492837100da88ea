package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/descent/internal/config"
	"github.com/copyleftdev/descent/internal/logging"
)

// testConfig creates a test configuration with default values
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{Environment: "test"}

	cfg.HTTP.Port = 8080
	cfg.HTTP.ReadTimeout = 30 * time.Second
	cfg.HTTP.WriteTimeout = 30 * time.Second

	cfg.Logging.Level = "debug"
	cfg.Logging.Format = "text"

	cfg.Solver.MaxIterations = 10000
	cfg.Solver.XDeltaEpsilon = 1e-9
	cfg.Solver.FDeltaEpsilon = 1e-9
	cfg.Solver.GradientNormEpsilon = 1e-4
	cfg.Solver.LBFGSMemory = 10
	cfg.Solver.MaxDimension = 50

	return cfg
}

type testServer struct {
	*Server
	router chi.Router
	logs   *bytes.Buffer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	var logs bytes.Buffer
	logger := logging.New(logging.InfoLevel, &logs)
	srv := NewServer(testConfig(t), logger, WithRegisterer(prometheus.NewRegistry()))
	r := chi.NewRouter()
	srv.RegisterRoutes(r)
	return &testServer{Server: srv, router: r, logs: &logs}
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func TestMinimizeEndpoint(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/minimize", map[string]interface{}{
		"solver":    "bfgs",
		"objective": "sphere",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var run Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, "bfgs", run.Solver)
	assert.Equal(t, "sphere", run.Objective)
	assert.Equal(t, []float64{3, -4}, run.X0)
	assert.Equal(t, "GradientNormConverged", run.Status)
	assert.True(t, run.Converged)
	assert.InDeltaSlice(t, []float64{0, 0}, run.X, 1e-6)
	assert.NotNil(t, run.EndTime)

	assert.Equal(t, 1.0, testutil.ToFloat64(ts.metrics.runs.WithLabelValues("bfgs", "GradientNormConverged")))
	assert.Contains(t, ts.logs.String(), "Minimization finished")

	// The stored run matches the response.
	rec = ts.do(t, http.MethodGet, "/api/v1/runs/"+run.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stored Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stored))
	assert.Equal(t, run.ID, stored.ID)
	assert.Equal(t, run.Iterations, stored.Iterations)

	rec = ts.do(t, http.MethodDelete, "/api/v1/runs/"+run.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = ts.do(t, http.MethodGet, "/api/v1/runs/"+run.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMinimizeOptions(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name       string
		body       interface{}
		wantCode   int
		wantStatus string
		check      func(t *testing.T, run Run)
	}{
		{
			name:       "solver by id with iteration cap",
			body:       map[string]interface{}{"solver_id": 1, "objective": "linear", "x0": []float64{0}, "max_iterations": 25},
			wantCode:   http.StatusOK,
			wantStatus: "IterationLimit",
			check: func(t *testing.T, run Run) {
				assert.Equal(t, "gradient-descent", run.Solver)
				assert.Equal(t, 25, run.Iterations)
			},
		},
		{
			name: "bounded lbfgsb",
			body: map[string]interface{}{
				"solver": "lbfgsb", "objective": "rosenbrock", "x0": []float64{-1.2, 1},
				"lower": []float64{-2, -2}, "upper": []float64{0.5, 2},
				"x_delta": 0, "f_delta": 0, "gradient_norm": 1e-6,
			},
			wantCode:   http.StatusOK,
			wantStatus: "GradientNormConverged",
			check: func(t *testing.T, run Run) {
				assert.InDeltaSlice(t, []float64{0.5, 0.25}, run.X, 1e-4)
			},
		},
		{
			name:     "unknown solver",
			body:     map[string]interface{}{"solver": "simplex", "objective": "sphere"},
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "solver id out of range",
			body:     map[string]interface{}{"solver_id": 6, "objective": "sphere"},
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "missing solver",
			body:     map[string]interface{}{"objective": "sphere"},
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "unknown objective",
			body:     map[string]interface{}{"solver": "bfgs", "objective": "himmelblau"},
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "dimension mismatch",
			body:     map[string]interface{}{"solver": "bfgs", "objective": "booth", "x0": []float64{1, 2, 3}},
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "crossed bounds",
			body:     map[string]interface{}{"solver": "lbfgsb", "objective": "sphere", "lower": []float64{1, 1}, "upper": []float64{0, 0}},
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "too many coordinates",
			body:     map[string]interface{}{"solver": "bfgs", "objective": "sphere", "x0": make([]float64, 51)},
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "malformed body",
			body:     "{not json",
			wantCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/api/v1/minimize", tt.body)
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantCode != http.StatusOK {
				var body map[string]interface{}
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.NotEmpty(t, body["error"])
				return
			}
			var run Run
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
			assert.Equal(t, tt.wantStatus, run.Status)
			if tt.check != nil {
				tt.check(t, run)
			}
		})
	}

	// Rejected requests leave no run behind.
	assert.Equal(t, 2, ts.runs.Len())
}

func TestCheckEndpoint(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/check", map[string]interface{}{
		"objective": "rosenbrock",
		"x":         []float64{-1.2, 1},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res CheckResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, 2, res.Order)
	assert.InDelta(t, 24.2, res.Value, 1e-9)
	assert.InDeltaSlice(t, []float64{-215.6, -88}, res.Gradient, 1e-9)
	require.Len(t, res.Hessian, 2)
	assert.InDelta(t, 1330, res.Hessian[0][0], 1e-9)
	require.NotNil(t, res.GradientCorrect)
	assert.True(t, *res.GradientCorrect)
	require.NotNil(t, res.HessianCorrect)
	assert.True(t, *res.HessianCorrect)

	assert.Equal(t, 1.0, testutil.ToFloat64(ts.metrics.checks.WithLabelValues("gradient", "true")))

	t.Run("value-only objective has no correctness flags", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/v1/check", map[string]interface{}{"objective": "rosenbrock-fd"})
		require.Equal(t, http.StatusOK, rec.Code)
		var res CheckResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		assert.Equal(t, 0, res.Order)
		assert.Nil(t, res.GradientCorrect)
		assert.Nil(t, res.HessianCorrect)
		assert.Len(t, res.Gradient, 2)
	})

	t.Run("wrong dimension", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/v1/check", map[string]interface{}{"objective": "beale", "x": []float64{1}})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestCatalogEndpoints(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/solvers", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var solvers []SolverInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &solvers))
	require.Len(t, solvers, 6)
	assert.Equal(t, SolverInfo{ID: 0, Name: "newton"}, solvers[0])
	assert.Equal(t, SolverInfo{ID: 5, Name: "lbfgsb"}, solvers[5])

	rec = ts.do(t, http.MethodGet, "/api/v1/objectives", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var objectives []ObjectiveInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &objectives))
	names := make([]string, len(objectives))
	for i, o := range objectives {
		names[i] = o.Name
	}
	assert.Contains(t, names, "rosenbrock")
	assert.Contains(t, names, "sphere")

	rec = ts.do(t, http.MethodGet, "/api/v1/runs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

func TestJSONRPC(t *testing.T) {
	ts := newTestServer(t)

	call := func(t *testing.T, body string) rpcResponse {
		t.Helper()
		rec := ts.do(t, http.MethodPost, "/rpc", body)
		require.Equal(t, http.StatusOK, rec.Code)
		var resp rpcResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "2.0", resp.JSONRPC)
		return resp
	}

	t.Run("solver.minimize", func(t *testing.T) {
		resp := call(t, `{"jsonrpc":"2.0","id":1,"method":"solver.minimize","params":{"solver":"lbfgs","objective":"booth"}}`)
		require.Nil(t, resp.Error)
		result := resp.Result.(map[string]interface{})
		assert.Equal(t, "lbfgs", result["solver"])
		assert.Equal(t, true, result["converged"])
		x := result["x"].([]interface{})
		assert.InDelta(t, 1, x[0].(float64), 1e-4)
		assert.InDelta(t, 3, x[1].(float64), 1e-4)
	})

	t.Run("params as array", func(t *testing.T) {
		resp := call(t, `{"jsonrpc":"2.0","id":"a","method":"objective.check","params":[{"objective":"booth","x":[0,0]}]}`)
		require.Nil(t, resp.Error)
		assert.Equal(t, "a", resp.ID)
		result := resp.Result.(map[string]interface{})
		assert.Equal(t, true, result["gradient_correct"])
	})

	t.Run("solver.list", func(t *testing.T) {
		resp := call(t, `{"jsonrpc":"2.0","id":2,"method":"solver.list"}`)
		require.Nil(t, resp.Error)
		assert.Len(t, resp.Result, 6)
	})

	tests := []struct {
		name string
		body string
		code int
	}{
		{"parse error", `{"jsonrpc":`, rpcParseError},
		{"wrong version", `{"jsonrpc":"1.0","id":1,"method":"solver.list"}`, rpcInvalidRequest},
		{"unknown method", `{"jsonrpc":"2.0","id":1,"method":"solver.destroy"}`, rpcMethodNotFound},
		{"missing params", `{"jsonrpc":"2.0","id":1,"method":"solver.minimize"}`, rpcInvalidParams},
		{"bad params", `{"jsonrpc":"2.0","id":1,"method":"solver.minimize","params":{"solver":"bfgs","objective":"nope"}}`, rpcInvalidParams},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := call(t, tt.body)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestRunStoreEviction(t *testing.T) {
	store := NewRunStore(2)
	a := store.Create("bfgs", "sphere", []float64{1})
	b := store.Create("bfgs", "sphere", []float64{2})
	c := store.Create("bfgs", "sphere", []float64{3})

	_, ok := store.Get(a.ID)
	assert.False(t, ok)
	list := store.List()
	require.Len(t, list, 2)
	assert.Equal(t, b.ID, list[0].ID)
	assert.Equal(t, c.ID, list[1].ID)

	assert.True(t, store.Update(b.ID, func(r *Run) { r.Status = "done" }))
	got, _ := store.Get(b.ID)
	assert.Equal(t, "done", got.Status)
	assert.False(t, store.Update(a.ID, func(*Run) {}))
}

func TestRunStoreConcurrentAccess(t *testing.T) {
	store := NewRunStore(0)
	done := make(chan string)
	for i := 0; i < 20; i++ {
		go func() {
			run := store.Create("lbfgs", "rosenbrock", []float64{0, 0})
			store.Update(run.ID, func(r *Run) { r.Iterations++ })
			done <- run.ID
		}()
	}
	ids := make(map[string]bool)
	for i := 0; i < 20; i++ {
		ids[<-done] = true
	}
	assert.Len(t, ids, 20)
	assert.Equal(t, 20, store.Len())
}
