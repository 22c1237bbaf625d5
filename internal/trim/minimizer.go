package trim

import (
	"github.com/Justice-Schoenfeld/Camber-Schedule-Optimization-for-NASA-Ikhana-to-Minimize-Drag/internal/optimization"
	"github.com/Justice-Schoenfeld/Camber-Schedule-Optimization-for-NASA-Ikhana-to-Minimize-Drag/internal/optimization/auglag"
	"github.com/Justice-Schoenfeld/Camber-Schedule-Optimization-for-NASA-Ikhana-to-Minimize-Drag/internal/optimization/sqp"
)

// NewMinimizer returns the minimizer named by cfg.Method. An empty method
// selects SLSQP.
func NewMinimizer(cfg optimization.OptimizerConfig) (optimization.Minimizer, error) {
	switch cfg.Method {
	case "", optimization.MethodSLSQP:
		return sqp.New(sqp.Options{
			MaxIterations: cfg.MaxIterations,
			Tolerance:     cfg.Tolerance,
			Stationarity:  cfg.Stationarity,
		}), nil
	case optimization.MethodAugLag:
		return auglag.New(auglag.Options{
			Tolerance: cfg.Tolerance,
		}), nil
	default:
		return nil, optimization.NewErrorf("unknown minimizer %q, want %s or %s",
			cfg.Method, optimization.MethodSLSQP, optimization.MethodAugLag).
			WithOperation("new_minimizer").
			WithComponent(component)
	}
}
