package config

import (
	"time"

	"github.com/caarlos0/env/v10"

	"github.com/copyleftdev/descent/internal/optimization"
)

type Config struct {
	Environment string `env:"ENV" envDefault:"development"`
	HTTP        struct {
		Port            int           `env:"HTTP_PORT" envDefault:"8080"`
		ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
		WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
		IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
		ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
		RequestTimeout  time.Duration `env:"HTTP_REQUEST_TIMEOUT" envDefault:"60s"`
	}
	Logging struct {
		Level  string `env:"LOG_LEVEL" envDefault:"info"`
		Format string `env:"LOG_FORMAT" envDefault:"json"`
		Output string `env:"LOG_OUTPUT" envDefault:"stderr"`
	}
	Solver struct {
		MaxIterations       int     `env:"SOLVER_MAX_ITERATIONS" envDefault:"10000"`
		XDeltaEpsilon       float64 `env:"SOLVER_X_DELTA" envDefault:"1e-9"`
		FDeltaEpsilon       float64 `env:"SOLVER_F_DELTA" envDefault:"1e-9"`
		GradientNormEpsilon float64 `env:"SOLVER_GRADIENT_NORM" envDefault:"1e-4"`
		LBFGSMemory         int     `env:"SOLVER_LBFGS_MEMORY" envDefault:"10"`
		// MaxDimension caps the size of problems accepted over HTTP.
		MaxDimension int `env:"SOLVER_MAX_DIMENSION" envDefault:"1000"`
	}
}

func Load() (*Config, error) {
	cfg := &Config{}

	// Parse environment variables
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	// Set default logging level based on environment
	if cfg.Environment == "development" && cfg.Logging.Level == "" {
		cfg.Logging.Level = "debug"
	}

	return cfg, nil
}

// SolverConfig returns the stopping thresholds configured for solver runs.
// Bounds are left unset.
func (c *Config) SolverConfig() *optimization.SolverConfig {
	return &optimization.SolverConfig{
		MaxIterations:       c.Solver.MaxIterations,
		XDeltaEpsilon:       c.Solver.XDeltaEpsilon,
		FDeltaEpsilon:       c.Solver.FDeltaEpsilon,
		GradientNormEpsilon: c.Solver.GradientNormEpsilon,
	}
}
