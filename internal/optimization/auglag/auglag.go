// Package auglag implements an augmented-Lagrangian minimizer for equality
// constrained problems on top of gonum's derivative-free Nelder-Mead method.
package auglag

import (
	"context"
	"math"

	"gonum.org/v1/gonum/optimize"

	"github.com/Justice-Schoenfeld/Camber-Schedule-Optimization-for-NASA-Ikhana-to-Minimize-Drag/internal/optimization"
)

const component = "auglag"

// Options tunes the minimizer. Zero values select defaults.
type Options struct {
	// Maximum number of outer (multiplier) iterations
	MaxIterations int
	// Constraint violation accepted as converged
	Tolerance float64
	// Initial penalty weight
	Penalty float64
	// Inner Nelder-Mead iteration limit
	InnerIterations int
	// Size of the initial simplex
	SimplexSize float64
}

// Minimizer minimizes f(x) + Σ λᵢhᵢ(x) + ρ/2 Σ hᵢ(x)² with Nelder-Mead and
// updates the multipliers between inner solves.
type Minimizer struct {
	opts Options
}

var _ optimization.Minimizer = (*Minimizer)(nil)

// New creates a minimizer.
func New(opts Options) *Minimizer {
	if opts.MaxIterations < 1 {
		opts.MaxIterations = 30
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = 1e-6
	}
	if opts.Penalty <= 0 {
		opts.Penalty = 10
	}
	if opts.InnerIterations < 1 {
		opts.InnerIterations = 2000
	}
	if opts.SimplexSize <= 0 {
		opts.SimplexSize = 0.2
	}
	return &Minimizer{opts: opts}
}

// Minimize implements optimization.Minimizer.
func (m *Minimizer) Minimize(ctx context.Context, p optimization.ConstrainedProblem, x0 []float64) (*optimization.OptimizationResult, error) {
	if err := p.Validate(x0); err != nil {
		return nil, optimization.WrapError(err, "invalid problem").WithComponent(component)
	}

	x := append([]float64(nil), x0...)
	p.Clamp(x)

	lambda := make([]float64, len(p.Equality))
	rho := m.opts.Penalty
	evals := 0

	var evalErr error
	h := make([]float64, len(p.Equality))
	lagrangian := func(x []float64) float64 {
		// Ensure x is within bounds
		p.Clamp(x)
		evals++
		f, err := p.Objective(x)
		if err != nil {
			if evalErr == nil {
				evalErr = err
			}
			return math.Inf(1)
		}
		for i, c := range p.Equality {
			v, err := c(x)
			if err != nil {
				if evalErr == nil {
					evalErr = err
				}
				return math.Inf(1)
			}
			f += lambda[i]*v + 0.5*rho*v*v
		}
		return f
	}

	result := &optimization.OptimizationResult{Message: "iteration limit reached"}
	prevViolation := math.Inf(1)

	for iter := 1; iter <= m.opts.MaxIterations; iter++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		problem := optimize.Problem{Func: lagrangian}
		settings := &optimize.Settings{
			MajorIterations: m.opts.InnerIterations,
			Converger: &optimize.FunctionConverge{
				Absolute:   1e-12,
				Relative:   1e-12,
				Iterations: 200,
			},
		}
		method := &optimize.NelderMead{
			Reflection:  1.0,
			Expansion:   2.0,
			Contraction: 0.5,
			Shrink:      0.5,
			SimplexSize: m.opts.SimplexSize,
		}

		// A non-nil result is usable even when the inner run hit a limit.
		inner, err := optimize.Minimize(problem, x, settings, method)
		if evalErr != nil {
			return nil, optimization.WrapError(evalErr, "evaluation failed").WithComponent(component)
		}
		if inner == nil {
			return nil, optimization.WrapError(err, "inner minimization failed").WithComponent(component)
		}
		copy(x, inner.X)
		p.Clamp(x)

		for i, c := range p.Equality {
			v, err := c(x)
			if err != nil {
				return nil, optimization.WrapErrorf(err, "constraint %d evaluation failed", i).WithComponent(component)
			}
			h[i] = v
		}
		violation := maxAbs(h)

		f, err := p.Objective(x)
		if err != nil {
			return nil, optimization.WrapError(err, "objective evaluation failed").WithComponent(component)
		}
		evals++

		result.Iterations = iter
		result.History = append(result.History, optimization.Evaluation{
			Iteration: iter,
			Solution:  &optimization.Solution{Parameters: append([]float64(nil), x...), Value: f},
			Violation: violation,
		})

		if violation <= m.opts.Tolerance {
			result.Converged = true
			result.Message = "constraints satisfied"
			break
		}

		for i := range lambda {
			lambda[i] += rho * h[i]
		}
		if violation > 0.25*prevViolation {
			rho *= 10
		}
		prevViolation = violation
	}

	last := result.History[len(result.History)-1]
	result.BestSolution = last.Solution
	result.Violation = last.Violation
	result.Evaluations = evals
	return result, nil
}

func maxAbs(v []float64) float64 {
	var m float64
	for _, x := range v {
		m = math.Max(m, math.Abs(x))
	}
	return m
}
