package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/descent/internal/optimization"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, 60*time.Second, cfg.HTTP.RequestTimeout)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 10, cfg.Solver.LBFGSMemory)
	assert.Equal(t, optimization.DefaultSolverConfig(), cfg.SolverConfig())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SOLVER_MAX_ITERATIONS", "250")
	t.Setenv("SOLVER_X_DELTA", "0")
	t.Setenv("SOLVER_GRADIENT_NORM", "1e-6")
	t.Setenv("SOLVER_LBFGS_MEMORY", "5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 5, cfg.Solver.LBFGSMemory)

	sc := cfg.SolverConfig()
	assert.Equal(t, 250, sc.MaxIterations)
	assert.Equal(t, 0.0, sc.XDeltaEpsilon)
	assert.Equal(t, 1e-9, sc.FDeltaEpsilon)
	assert.Equal(t, 1e-6, sc.GradientNormEpsilon)
	assert.Nil(t, sc.Lower)
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	t.Setenv("SOLVER_MAX_ITERATIONS", "many")
	_, err := Load()
	assert.Error(t, err)
}
