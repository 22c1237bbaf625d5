package optimization

import (
	"context"
	"math"
)

// Minimizer defines the interface for bounded, equality-constrained local
// minimizers.
type Minimizer interface {
	// Minimize searches from x0 for a point that minimizes the objective while
	// driving every equality constraint to zero. A result is returned even when
	// the search did not converge; Converged and Message report the outcome.
	Minimize(ctx context.Context, problem ConstrainedProblem, x0 []float64) (*OptimizationResult, error)
}

// MinimizerFunc adapts a function to the Minimizer interface.
type MinimizerFunc func(ctx context.Context, problem ConstrainedProblem, x0 []float64) (*OptimizationResult, error)

// Minimize calls f.
func (f MinimizerFunc) Minimize(ctx context.Context, problem ConstrainedProblem, x0 []float64) (*OptimizationResult, error) {
	return f(ctx, problem, x0)
}

// Minimizer methods selectable by name.
const (
	MethodSLSQP  = "slsqp"
	MethodAugLag = "auglag"
)

// OptimizerConfig contains settings shared by the minimizers
type OptimizerConfig struct {
	// Method is MethodSLSQP or MethodAugLag
	Method string

	// Maximum number of iterations
	MaxIterations int

	// Convergence tolerance on constraint violation and step size
	Tolerance float64

	// Largest projected Lagrangian gradient accepted as stationary
	Stationarity float64
}

// ObjectiveFunction defines a scalar function of the design vector
type ObjectiveFunction func([]float64) (float64, error)

// ConstrainedProblem is a minimization problem with box bounds and equality
// constraints. Bounds may be infinite.
type ConstrainedProblem struct {
	Objective ObjectiveFunction

	// Equality constraints, each satisfied at zero
	Equality []ObjectiveFunction

	// Bounds for each dimension [min, max]
	Bounds [][2]float64
}

// Validate checks the problem against the starting point.
func (p ConstrainedProblem) Validate(x0 []float64) error {
	if p.Objective == nil {
		return WrapError(ErrInvalidProblem, "objective function is required").WithOperation("validate")
	}
	if len(x0) == 0 {
		return WrapError(ErrInvalidProblem, "starting point is empty").WithOperation("validate")
	}
	if p.Bounds != nil && len(p.Bounds) != len(x0) {
		return WrapErrorf(ErrInvalidProblem, "have %d bounds for %d variables", len(p.Bounds), len(x0)).WithOperation("validate")
	}
	for i, b := range p.Bounds {
		if b[0] > b[1] {
			return WrapErrorf(ErrInvalidProblem, "bound %d: lower %v above upper %v", i, b[0], b[1]).WithOperation("validate")
		}
	}
	return nil
}

// Clamp moves x into the bounds in place.
func (p ConstrainedProblem) Clamp(x []float64) {
	for i := range p.Bounds {
		if i >= len(x) {
			return
		}
		x[i] = math.Max(p.Bounds[i][0], math.Min(x[i], p.Bounds[i][1]))
	}
}

// Unbounded returns n (-Inf, +Inf) bounds.
func Unbounded(n int) [][2]float64 {
	b := make([][2]float64, n)
	for i := range b {
		b[i] = [2]float64{math.Inf(-1), math.Inf(1)}
	}
	return b
}

// Solution represents a point in the design space
type Solution struct {
	Parameters []float64
	Value      float64
}

// Evaluation represents one accepted iterate
type Evaluation struct {
	Iteration int
	Solution  *Solution
	// Largest absolute equality-constraint value at the iterate
	Violation float64
	Error     error
}

// OptimizationResult contains the result of an optimization run
type OptimizationResult struct {
	BestSolution *Solution
	History      []Evaluation
	Iterations   int
	// Number of objective evaluations
	Evaluations int
	Converged   bool
	// Violation is the largest absolute equality-constraint value at BestSolution
	Violation float64
	Message   string
}

// MaxViolation evaluates every constraint at x and returns the largest
// absolute value.
func MaxViolation(constraints []ObjectiveFunction, x []float64) (float64, error) {
	var worst float64
	for i, c := range constraints {
		v, err := c(x)
		if err != nil {
			return 0, WrapErrorf(err, "constraint %d", i)
		}
		worst = math.Max(worst, math.Abs(v))
	}
	return worst, nil
}
