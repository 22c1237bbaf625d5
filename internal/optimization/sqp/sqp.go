// Package sqp implements a sequential quadratic programming minimizer for
// smooth objectives with box bounds and equality constraints.
//
// Each iteration solves the equality-constrained quadratic subproblem through
// its KKT system, with the Hessian of the Lagrangian approximated by a damped
// BFGS update and gradients by forward differences. Steps are globalized with
// a backtracking line search on the L1 merit function. Variables at a bound
// whose step would leave the box are held fixed for that iteration. A run
// converges only at a feasible point where the Lagrangian gradient, less the
// components pressing against active bounds, is small.
package sqp

import (
	"context"
	"errors"
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/Justice-Schoenfeld/Camber-Schedule-Optimization-for-NASA-Ikhana-to-Minimize-Drag/internal/optimization"
)

const (
	defaultMaxIterations = 100
	defaultTolerance     = 1e-6
	defaultStationarity  = 1e-5
	defaultStep          = 1e-6

	armijo        = 1e-4
	minLineStep   = 1e-10
	minStep       = 1e-14
	regularize    = 1e-8
	component     = "sqp"
	meritFloor    = 1.0
	dampThreshold = 0.2
)

// Options tunes the minimizer. Zero values select defaults.
type Options struct {
	// Maximum number of major iterations
	MaxIterations int
	// Tolerance on constraint violation and on the step size
	Tolerance float64
	// Largest projected gradient of the Lagrangian accepted as stationary
	Stationarity float64
	// Forward-difference step for gradients
	Step float64
}

// Minimizer is a bounded, equality-constrained SQP method.
type Minimizer struct {
	opts Options
}

var _ optimization.Minimizer = (*Minimizer)(nil)

// New creates a minimizer.
func New(opts Options) *Minimizer {
	if opts.MaxIterations < 1 {
		opts.MaxIterations = defaultMaxIterations
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = defaultTolerance
	}
	if opts.Stationarity <= 0 {
		opts.Stationarity = defaultStationarity
	}
	if opts.Step <= 0 {
		opts.Step = defaultStep
	}
	return &Minimizer{opts: opts}
}

// problem caches evaluation state for one run.
type problem struct {
	optimization.ConstrainedProblem
	bounds [][2]float64
	step   float64
	evals  int
}

// values evaluates the objective and constraints at x.
func (p *problem) values(x []float64) (float64, []float64, error) {
	p.evals++
	f, err := p.Objective(x)
	if err != nil {
		return 0, nil, optimization.WrapError(err, "objective evaluation failed").WithComponent(component)
	}
	h := make([]float64, len(p.Equality))
	for i, c := range p.Equality {
		v, err := c(x)
		if err != nil {
			return 0, nil, optimization.WrapErrorf(err, "constraint %d evaluation failed", i).WithComponent(component)
		}
		h[i] = v
	}
	return f, h, nil
}

// derivatives returns the objective gradient and the constraint Jacobian at x
// given the values there.
func (p *problem) derivatives(x []float64, f float64, h []float64) ([]float64, *mat.Dense, error) {
	var firstErr error
	keep := func(err error) {
		if firstErr == nil {
			firstErr = err
		}
	}

	grad := fd.Gradient(nil, func(x []float64) float64 {
		p.evals++
		v, err := p.Objective(x)
		if err != nil {
			keep(err)
			return math.NaN()
		}
		return v
	}, x, &fd.Settings{
		Formula:     fd.Forward,
		Step:        p.step,
		OriginKnown: true,
		OriginValue: f,
	})

	var jac *mat.Dense
	if len(h) > 0 {
		jac = mat.NewDense(len(h), len(x), nil)
		fd.Jacobian(jac, func(y, x []float64) {
			p.evals++
			for i, c := range p.Equality {
				v, err := c(x)
				if err != nil {
					keep(err)
					v = math.NaN()
				}
				y[i] = v
			}
		}, x, &fd.JacobianSettings{
			Formula:     fd.Forward,
			Step:        p.step,
			OriginValue: h,
		})
	}

	if firstErr != nil {
		return nil, nil, optimization.WrapError(firstErr, "gradient evaluation failed").WithComponent(component)
	}
	return grad, jac, nil
}

// Minimize implements optimization.Minimizer.
func (m *Minimizer) Minimize(ctx context.Context, cp optimization.ConstrainedProblem, x0 []float64) (*optimization.OptimizationResult, error) {
	if err := cp.Validate(x0); err != nil {
		return nil, optimization.WrapError(err, "invalid problem").WithComponent(component)
	}

	n := len(x0)
	p := &problem{ConstrainedProblem: cp, bounds: cp.Bounds, step: m.opts.Step}
	if p.bounds == nil {
		p.bounds = optimization.Unbounded(n)
	}
	tol := m.opts.Tolerance

	x := append([]float64(nil), x0...)
	cp.Clamp(x)

	f, h, err := p.values(x)
	if err != nil {
		return nil, err
	}
	g, jac, err := p.derivatives(x, f, h)
	if err != nil {
		return nil, err
	}

	hess := identity(n)
	mu := meritFloor
	result := &optimization.OptimizationResult{
		Message: "iteration limit reached",
	}

	for iter := 1; iter <= m.opts.MaxIterations; iter++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		d, lambda, err := p.subproblem(hess, g, jac, h, x)
		if err != nil {
			result.Message = err.Error()
			break
		}

		if maxAbs(h) <= tol &&
			(floats.Norm(d, math.Inf(1)) <= tol || p.stationarity(g, jac, lambda, x) <= m.opts.Stationarity) {
			result.Converged = true
			result.Message = "optimization terminated successfully"
			break
		}

		for _, l := range lambda {
			mu = math.Max(mu, 1.5*math.Abs(l))
		}
		phi0 := f + mu*floats.Norm(h, 1)
		slope := math.Min(floats.Dot(g, d)-mu*floats.Norm(h, 1), 0)

		var (
			xn       []float64
			fn       float64
			hn       []float64
			accepted bool
			alpha    = 1.0
		)
		for alpha >= minLineStep {
			xn = make([]float64, n)
			floats.AddScaledTo(xn, x, alpha, d)
			cp.Clamp(xn)

			fn, hn, err = p.values(xn)
			if err != nil {
				return nil, err
			}
			if fn+mu*floats.Norm(hn, 1) <= phi0+armijo*alpha*slope {
				accepted = true
				break
			}
			alpha *= 0.5
		}
		if !accepted {
			result.Message = "positive directional derivative in line search"
			break
		}

		gn, jacn, err := p.derivatives(xn, fn, hn)
		if err != nil {
			return nil, err
		}

		s := make([]float64, n)
		floats.SubTo(s, xn, x)
		y := lagrangianGradient(gn, jacn, lambda)
		floats.Sub(y, lagrangianGradient(g, jac, lambda))
		dampedBFGS(hess, s, y)

		stepNorm := floats.Norm(s, math.Inf(1))
		x, f, h, g, jac = xn, fn, hn, gn, jacn

		result.Iterations = iter
		result.History = append(result.History, optimization.Evaluation{
			Iteration: iter,
			Solution:  &optimization.Solution{Parameters: append([]float64(nil), x...), Value: f},
			Violation: maxAbs(h),
		})

		if stepNorm <= minStep {
			result.Message = "step vanished before reaching a stationary point"
			break
		}
	}

	result.BestSolution = &optimization.Solution{Parameters: x, Value: f}
	result.Violation = maxAbs(h)
	result.Evaluations = p.evals
	return result, nil
}

// subproblem solves the KKT system
//
//	[ B  Jᵀ ] [ d ]   [ -g ]
//	[ J  0  ] [ λ ] = [ -h ]
//
// over the free variables. A variable sitting on a bound whose step points out
// of the box is fixed and the system is solved again.
func (p *problem) subproblem(hess *mat.Dense, g []float64, jac *mat.Dense, h []float64, x []float64) ([]float64, []float64, error) {
	n, m := len(x), len(h)
	free := make([]bool, n)
	for i := range free {
		free[i] = true
	}

	for attempt := 0; attempt <= n; attempt++ {
		idx := make([]int, 0, n)
		for i, ok := range free {
			if ok {
				idx = append(idx, i)
			}
		}
		k := len(idx)
		d := make([]float64, n)
		if k == 0 {
			return d, make([]float64, m), nil
		}

		kkt := mat.NewDense(k+m, k+m, nil)
		rhs := mat.NewVecDense(k+m, nil)
		for a, i := range idx {
			for b, j := range idx {
				kkt.Set(a, b, hess.At(i, j))
			}
			rhs.SetVec(a, -g[i])
			for r := 0; r < m; r++ {
				kkt.Set(a, k+r, jac.At(r, i))
				kkt.Set(k+r, a, jac.At(r, i))
			}
		}
		for r := 0; r < m; r++ {
			rhs.SetVec(k+r, -h[r])
		}

		sol, err := solveKKT(kkt, rhs, k)
		if err != nil {
			return nil, nil, err
		}
		for a, i := range idx {
			d[i] = sol.AtVec(a)
		}
		lambda := make([]float64, m)
		for r := range lambda {
			lambda[r] = sol.AtVec(k + r)
		}

		blocked := false
		for _, i := range idx {
			lo, hi := p.bounds[i][0], p.bounds[i][1]
			if (x[i] <= lo && d[i] < 0) || (x[i] >= hi && d[i] > 0) {
				free[i] = false
				blocked = true
			}
		}
		if !blocked {
			return d, lambda, nil
		}
	}
	return nil, nil, optimization.NewError("could not find a feasible step direction").WithComponent(component)
}

// solveKKT solves the system, retrying with a small negative diagonal on the
// multiplier block when the constraints are dependent.
func solveKKT(kkt *mat.Dense, rhs *mat.VecDense, k int) (*mat.VecDense, error) {
	var sol mat.VecDense
	err := sol.SolveVec(kkt, rhs)
	if usable(err, &sol) {
		return &sol, nil
	}

	size, _ := kkt.Dims()
	for r := k; r < size; r++ {
		kkt.Set(r, r, -regularize)
	}
	for r := 0; r < k; r++ {
		kkt.Set(r, r, kkt.At(r, r)+regularize)
	}
	err = sol.SolveVec(kkt, rhs)
	if !usable(err, &sol) {
		if err == nil {
			err = errors.New("non-finite step")
		}
		return nil, optimization.WrapError(err, "singular KKT system").WithComponent(component)
	}
	return &sol, nil
}

// usable accepts ill-conditioned solutions as long as they are finite.
func usable(err error, v *mat.VecDense) bool {
	if err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) || math.IsInf(float64(cond), 1) {
			return false
		}
	}
	for i := 0; i < v.Len(); i++ {
		if x := v.AtVec(i); math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

// lagrangianGradient returns g + Jᵀλ.
func lagrangianGradient(g []float64, jac *mat.Dense, lambda []float64) []float64 {
	out := append([]float64(nil), g...)
	if jac == nil {
		return out
	}
	var jt mat.VecDense
	jt.MulVec(jac.T(), mat.NewVecDense(len(lambda), lambda))
	for i := range out {
		out[i] += jt.AtVec(i)
	}
	return out
}

// stationarity returns the largest component of g + Jᵀλ that a bound does not
// absorb.
func (p *problem) stationarity(g []float64, jac *mat.Dense, lambda []float64, x []float64) float64 {
	var worst float64
	for i, v := range lagrangianGradient(g, jac, lambda) {
		lo, hi := p.bounds[i][0], p.bounds[i][1]
		if (x[i] <= lo && v > 0) || (x[i] >= hi && v < 0) {
			continue
		}
		worst = math.Max(worst, math.Abs(v))
	}
	return worst
}

// dampedBFGS applies Powell's damped update so the Hessian stays positive
// definite even when sᵀy is not positive.
func dampedBFGS(hess *mat.Dense, s, y []float64) {
	n := len(s)
	sv := mat.NewVecDense(n, s)
	var bs mat.VecDense
	bs.MulVec(hess, sv)

	sBs := mat.Dot(sv, &bs)
	if sBs <= 1e-16 {
		return
	}
	sy := floats.Dot(s, y)

	r := mat.NewVecDense(n, append([]float64(nil), y...))
	if sy < dampThreshold*sBs {
		theta := (1 - dampThreshold) * sBs / (sBs - sy)
		for i := 0; i < n; i++ {
			r.SetVec(i, theta*y[i]+(1-theta)*bs.AtVec(i))
		}
	}
	sr := mat.Dot(sv, r)
	if sr <= 1e-16 {
		return
	}

	var outer mat.Dense
	outer.Outer(-1/sBs, &bs, &bs)
	hess.Add(hess, &outer)
	outer.Outer(1/sr, r, r)
	hess.Add(hess, &outer)
}

func identity(n int) *mat.Dense {
	d := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		d.Set(i, i, 1)
	}
	return d
}

func maxAbs(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	return floats.Norm(v, math.Inf(1))
}
