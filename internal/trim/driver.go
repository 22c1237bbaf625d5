package trim

import (
	"context"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/Justice-Schoenfeld/Camber-Schedule-Optimization-for-NASA-Ikhana-to-Minimize-Drag/internal/aero"
	"github.com/Justice-Schoenfeld/Camber-Schedule-Optimization-for-NASA-Ikhana-to-Minimize-Drag/internal/optimization"
	"github.com/Justice-Schoenfeld/Camber-Schedule-Optimization-for-NASA-Ikhana-to-Minimize-Drag/internal/span"
)

// Logger defines the logging interface used by the driver
type Logger interface {
	Debug(msg string, fields ...map[string]interface{})
	Info(msg string, fields ...map[string]interface{})
	Warn(msg string, fields ...map[string]interface{})
	Error(msg string, fields ...map[string]interface{})
}

// Observer receives run statistics.
type Observer interface {
	ObserveEvaluation(d time.Duration, err error)
	ObserveRun(converged bool, d time.Duration)
	ObserveRefinements(n int)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...map[string]interface{}) {}
func (nopLogger) Info(string, ...map[string]interface{})  {}
func (nopLogger) Warn(string, ...map[string]interface{})  {}
func (nopLogger) Error(string, ...map[string]interface{}) {}

type nopObserver struct{}

func (nopObserver) ObserveEvaluation(time.Duration, error) {}
func (nopObserver) ObserveRun(bool, time.Duration)         {}
func (nopObserver) ObserveRefinements(int)                 {}

// Solution is the result of one trim run.
type Solution struct {
	// X is the final design vector.
	X []float64 `json:"x"`
	// Converged reports the last minimizer run's own convergence flag.
	Converged   bool    `json:"converged"`
	Message     string  `json:"message"`
	Iterations  int     `json:"iterations"`
	Evaluations int     `json:"evaluations"`
	Violation   float64 `json:"violation"`
	// Refinements counts re-runs from the previous solution.
	Refinements         int  `json:"refinements"`
	RefinementConverged bool `json:"refinement_converged"`

	// Coefficients of the final solve. CD is the selected drag type, unscaled.
	CD float64 `json:"CD"`
	CL float64 `json:"CL"`
	Cm float64 `json:"Cm"`

	Alpha           float64       `json:"alpha"`
	Stabilizer      float64       `json:"stabilizer"`
	StabilizerTwist aero.Table    `json:"stabilizer_twist"`
	Deflections     span.Schedule `json:"deflections"`

	Forces        aero.ForcesAndMoments `json:"forces"`
	Distributions aero.Distributions    `json:"distributions"`
	Duration      time.Duration         `json:"duration"`
}

// Driver runs trim optimizations.
type Driver struct {
	minimizer optimization.Minimizer
	factory   aero.Factory
	logger    Logger
	observer  Observer
}

// Option configures a Driver.
type Option func(*Driver)

// WithFactory sets the solver factory. The default is aero.DefaultFactory.
func WithFactory(f aero.Factory) Option {
	return func(d *Driver) { d.factory = f }
}

// WithLogger sets the logger.
func WithLogger(l Logger) Option {
	return func(d *Driver) { d.logger = l }
}

// WithObserver sets the statistics observer.
func WithObserver(o Observer) Option {
	return func(d *Driver) { d.observer = o }
}

// NewDriver creates a driver around a minimizer.
func NewDriver(m optimization.Minimizer, opts ...Option) *Driver {
	d := &Driver{
		minimizer: m,
		factory:   aero.DefaultFactory,
		logger:    nopLogger{},
		observer:  nopObserver{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run trims setup's aircraft at opts.TargetCL. Invalid options are rejected
// before any solve. A minimizer that fails to converge is not an error: its
// best point is finalized and reported with Converged false.
func (d *Driver) Run(ctx context.Context, setup *Setup, opts Options) (*Solution, error) {
	start := time.Now()

	eval, err := NewEvaluator(d.factory, setup, opts)
	if err != nil {
		return nil, err
	}
	eval.observer = d.observer
	opts = eval.Options()

	log := map[string]interface{}{
		"aircraft":       setup.Name,
		"control_points": opts.ControlPoints,
		"target_cl":      opts.TargetCL,
		"drag_type":      opts.DragType,
	}
	d.logger.Info("Starting trim", log)

	problem := eval.Problem()
	result, err := d.minimizer.Minimize(ctx, problem, eval.Start())
	if err != nil {
		return nil, optimization.WrapError(err, "minimization failed").WithOperation("run").WithComponent(component)
	}

	refinements, refined := 0, false
	if opts.Refine {
		r, err := Refine(ctx, d.minimizer, problem, result, opts.RefineTolerance, opts.MaxRefinements, d.logger)
		if err != nil {
			return nil, err
		}
		result, refinements, refined = r.Result, r.Iterations, r.Converged
		d.observer.ObserveRefinements(refinements)
		if !refined {
			d.logger.Warn("Refinement stopped before consecutive solutions agreed", map[string]interface{}{
				"refinements": refinements,
				"tolerance":   opts.RefineTolerance,
			})
		}
	}

	sol, err := d.finalize(eval, result)
	if err != nil {
		return nil, err
	}
	sol.Refinements = refinements
	sol.RefinementConverged = refined
	sol.Duration = time.Since(start)
	d.observer.ObserveRun(sol.Converged, sol.Duration)

	d.logger.Info("Trim finished", map[string]interface{}{
		"aircraft":    setup.Name,
		"target_cl":   opts.TargetCL,
		"converged":   sol.Converged,
		"message":     sol.Message,
		"iterations":  sol.Iterations,
		"refinements": sol.Refinements,
		"CD":          sol.CD,
		"CL":          sol.CL,
		"Cm":          sol.Cm,
		"alpha":       sol.Alpha,
		"stabilizer":  sol.Stabilizer,
		"duration_ms": sol.Duration.Milliseconds(),
	})
	return sol, nil
}

// finalize solves once more at the final design vector and collects the
// reported quantities.
func (d *Driver) finalize(eval *Evaluator, result *optimization.OptimizationResult) (*Solution, error) {
	if result == nil || result.BestSolution == nil {
		return nil, optimization.NewError("minimizer returned no solution").WithOperation("finalize").WithComponent(component)
	}
	opts := eval.Options()
	x := append([]float64(nil), result.BestSolution.Parameters...)
	n := opts.ControlPoints

	solver, err := eval.Solver(x)
	if err != nil {
		return nil, err
	}
	fm, err := solver.SolveForces()
	if err != nil {
		return nil, optimization.WrapError(err, "final solve").WithOperation("finalize").WithComponent(component)
	}
	f, ok := fm[eval.name]
	if !ok {
		return nil, optimization.NewErrorf("final solve returned no forces for %q", eval.name).
			WithOperation("finalize").
			WithComponent(component)
	}
	dists, err := solver.Distributions()
	if err != nil {
		return nil, optimization.WrapError(err, "final distributions").WithOperation("finalize").WithComponent(component)
	}
	schedule, err := eval.Schedule(x)
	if err != nil {
		return nil, err
	}

	return &Solution{
		X:               x,
		Converged:       result.Converged,
		Message:         result.Message,
		Iterations:      result.Iterations,
		Evaluations:     result.Evaluations,
		Violation:       result.Violation,
		CD:              eval.DragType().Of(f),
		CL:              f.Total.CL,
		Cm:              f.Total.Cm,
		Alpha:           x[n+1],
		Stabilizer:      x[n],
		StabilizerTwist: eval.StabilizerTwist(x[n]),
		Deflections:     schedule,
		Forces:          fm,
		Distributions:   dists,
	}, nil
}

// Refinement is the outcome of Refine.
type Refinement struct {
	Result *optimization.OptimizationResult
	// Iterations is the number of re-runs performed.
	Iterations int
	// Converged is true when two consecutive solutions were within tolerance.
	Converged bool
}

// Refine re-runs m from the previous solution while the Euclidean distance
// between consecutive solutions exceeds tol, at most maxIter times. At least
// one re-run is made.
func Refine(ctx context.Context, m optimization.Minimizer, p optimization.ConstrainedProblem, first *optimization.OptimizationResult, tol float64, maxIter int, logger Logger) (*Refinement, error) {
	if logger == nil {
		logger = nopLogger{}
	}
	if first == nil || first.BestSolution == nil {
		return nil, optimization.NewError("nothing to refine").WithOperation("refine").WithComponent(component)
	}

	prev := first
	for i := 1; i <= maxIter; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		next, err := m.Minimize(ctx, p, prev.BestSolution.Parameters)
		if err != nil {
			return nil, optimization.WrapErrorf(err, "refinement %d", i).WithOperation("refine").WithComponent(component)
		}
		if next == nil || next.BestSolution == nil {
			return nil, optimization.NewErrorf("refinement %d returned no solution", i).WithOperation("refine").WithComponent(component)
		}

		eps := floats.Distance(prev.BestSolution.Parameters, next.BestSolution.Parameters, 2)
		logger.Debug("Refinement iteration", map[string]interface{}{
			"iteration": i,
			"epsilon":   eps,
			"converged": next.Converged,
			"value":     next.BestSolution.Value,
		})
		prev = next

		if eps <= tol {
			return &Refinement{Result: prev, Iterations: i, Converged: true}, nil
		}
	}
	return &Refinement{Result: prev, Iterations: maxIter, Converged: false}, nil
}
