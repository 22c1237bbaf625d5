// Package config loads the runtime configuration of the trim tools from the
// environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"

	"github.com/Justice-Schoenfeld/Camber-Schedule-Optimization-for-NASA-Ikhana-to-Minimize-Drag/internal/optimization"
	"github.com/Justice-Schoenfeld/Camber-Schedule-Optimization-for-NASA-Ikhana-to-Minimize-Drag/internal/trim"
)

type Config struct {
	Environment string `env:"ENV" envDefault:"development"`
	HTTP        struct {
		Port            int           `env:"HTTP_PORT" envDefault:"8080"`
		ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
		WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
		IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
		ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	}
	Logging struct {
		Level  string `env:"LOG_LEVEL" envDefault:"info"`
		Format string `env:"LOG_FORMAT" envDefault:"json"`
		Output string `env:"LOG_OUTPUT" envDefault:"stderr"`
	}
	Results struct {
		Dir        string `env:"RESULTS_DIR" envDefault:"results"`
		DB         string `env:"RESULTS_DB" envDefault:"results/polar.db"`
		DumpForces bool   `env:"RESULTS_DUMP_FORCES" envDefault:"false"`
	}
	Optimization struct {
		WorkerCount   int     `env:"OPT_WORKER_COUNT" envDefault:"4"`
		Method        string  `env:"OPT_METHOD" envDefault:"slsqp"`
		MaxIterations int     `env:"OPT_MAX_ITERATIONS" envDefault:"100"`
		Tolerance     float64 `env:"OPT_TOLERANCE" envDefault:"1e-6"`
		Stationarity  float64 `env:"OPT_STATIONARITY" envDefault:"1e-5"`
	}
	Trim struct {
		DragScale         float64 `env:"TRIM_DRAG_SCALE" envDefault:"100"`
		RefineTolerance   float64 `env:"TRIM_REFINE_TOLERANCE" envDefault:"1e-4"`
		MaxRefinements    int     `env:"TRIM_MAX_REFINEMENTS" envDefault:"50"`
		AbsLiftConstraint bool    `env:"TRIM_ABS_LIFT_CONSTRAINT" envDefault:"false"`
	}
}

// Load parses the process environment.
func Load() (*Config, error) {
	return parse(env.Options{})
}

// LoadFrom parses the given variables instead of the process environment.
func LoadFrom(vars map[string]string) (*Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}

	// Parse environment variables
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, err
	}

	// Set default logging level based on environment
	if cfg.Environment == "development" && cfg.Logging.Level == "" {
		cfg.Logging.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values env tags cannot express.
func (c *Config) Validate() error {
	switch c.Optimization.Method {
	case optimization.MethodSLSQP, optimization.MethodAugLag:
	default:
		return fmt.Errorf("OPT_METHOD must be %s or %s, got %q",
			optimization.MethodSLSQP, optimization.MethodAugLag, c.Optimization.Method)
	}
	if c.Optimization.WorkerCount < 1 {
		return fmt.Errorf("OPT_WORKER_COUNT must be at least 1, got %d", c.Optimization.WorkerCount)
	}
	if c.Trim.DragScale <= 0 {
		return fmt.Errorf("TRIM_DRAG_SCALE must be positive, got %v", c.Trim.DragScale)
	}
	return nil
}

// OptimizerConfig returns the minimizer settings.
func (c *Config) OptimizerConfig() optimization.OptimizerConfig {
	return optimization.OptimizerConfig{
		Method:        c.Optimization.Method,
		MaxIterations: c.Optimization.MaxIterations,
		Tolerance:     c.Optimization.Tolerance,
		Stationarity:  c.Optimization.Stationarity,
	}
}

// TrimOptions returns the run tuning shared by every trim.
func (c *Config) TrimOptions() trim.Options {
	return trim.Options{
		DragScale:         c.Trim.DragScale,
		RefineTolerance:   c.Trim.RefineTolerance,
		MaxRefinements:    c.Trim.MaxRefinements,
		AbsLiftConstraint: c.Trim.AbsLiftConstraint,
	}
}
