package trim

import (
	"math"
	"time"

	"github.com/Justice-Schoenfeld/Camber-Schedule-Optimization-for-NASA-Ikhana-to-Minimize-Drag/internal/aero"
	"github.com/Justice-Schoenfeld/Camber-Schedule-Optimization-for-NASA-Ikhana-to-Minimize-Drag/internal/airfoil"
	"github.com/Justice-Schoenfeld/Camber-Schedule-Optimization-for-NASA-Ikhana-to-Minimize-Drag/internal/optimization"
	"github.com/Justice-Schoenfeld/Camber-Schedule-Optimization-for-NASA-Ikhana-to-Minimize-Drag/internal/span"
)

// Evaluator holds everything a design-vector evaluation needs. Every call
// builds a fresh solver from the factory, so evaluations share no mutable
// solver state.
//
// Design vector layout: x[0:n] control-point deflections (deg), x[n]
// stabilizer mounting-angle offset (deg), x[n+1] angle of attack (deg).
type Evaluator struct {
	factory  aero.Factory
	scene    *aero.SceneConfig
	name     string
	aircraft *aero.Aircraft
	twist    aero.Table
	state    aero.State
	spans    span.Fractions
	opts     Options
	drag     DragType
	observer Observer
}

// NewEvaluator prepares the aircraft for opts. With control points the main
// wing grid is clustered at the control-point boundaries and the airfoils are
// replaced by the Ikhana functional database. setup is not modified.
func NewEvaluator(factory aero.Factory, setup *Setup, opts Options) (*Evaluator, error) {
	opts = opts.WithDefaults()
	drag, err := opts.Validate()
	if err != nil {
		return nil, err
	}
	if factory == nil {
		factory = aero.DefaultFactory
	}

	ac := setup.Aircraft.Clone()
	stab, ok := ac.Wings[opts.Stabilizer]
	if !ok {
		return nil, optimization.NewErrorf("aircraft %q has no wing %q", setup.Name, opts.Stabilizer).
			WithOperation("setup").
			WithComponent(component)
	}

	e := &Evaluator{
		factory:  factory,
		scene:    setup.Scene,
		name:     setup.Name,
		aircraft: ac,
		twist:    stab.Twist.Clone(),
		state:    setup.State,
		opts:     opts,
		drag:     drag,
		observer: nopObserver{},
	}

	if n := opts.ControlPoints; n > 0 {
		main, ok := ac.Wings[opts.MainWing]
		if !ok {
			return nil, optimization.NewErrorf("aircraft %q has no wing %q", setup.Name, opts.MainWing).
				WithOperation("setup").
				WithComponent(component)
		}
		if e.spans, err = span.BuildSpanFractions(n); err != nil {
			return nil, optimization.WrapError(err, "span fractions").WithComponent(component)
		}
		main.Grid.ClusterPoints = span.ClusterPoints(e.spans)
		ac.Airfoils = airfoil.IkhanaDatabase()
	}
	return e, nil
}

// Options returns the effective run options.
func (e *Evaluator) Options() Options { return e.opts }

// Aircraft returns the prepared aircraft. It must not be modified.
func (e *Evaluator) Aircraft() *aero.Aircraft { return e.aircraft }

// DragType returns the drag coefficient being minimized.
func (e *Evaluator) DragType() DragType { return e.drag }

// Start returns the initial design vector: the caller's guess or zeros.
func (e *Evaluator) Start() []float64 {
	if e.opts.InitialGuess != nil {
		return append([]float64(nil), e.opts.InitialGuess...)
	}
	return make([]float64, e.opts.Length())
}

// Bounds returns the deflection bounds for the control points and leaves the
// stabilizer angle and angle of attack free.
func (e *Evaluator) Bounds() [][2]float64 {
	n := e.opts.ControlPoints
	b := make([][2]float64, e.opts.Length())
	for i := 0; i < n; i++ {
		b[i] = [2]float64{e.opts.LowerBound, e.opts.UpperBound}
	}
	b[n] = [2]float64{math.Inf(-1), math.Inf(1)}
	b[n+1] = [2]float64{math.Inf(-1), math.Inf(1)}
	return b
}

// Problem returns the scaled drag objective with the Cm and lift equality
// constraints.
func (e *Evaluator) Problem() optimization.ConstrainedProblem {
	lift := e.LiftResidual
	if e.opts.AbsLiftConstraint {
		lift = e.LiftError
	}
	return optimization.ConstrainedProblem{
		Objective: e.Drag,
		Equality:  []optimization.ObjectiveFunction{e.Moment, lift},
		Bounds:    e.Bounds(),
	}
}

// StabilizerTwist returns the stabilizer twist table with offset added to
// every entry.
func (e *Evaluator) StabilizerTwist(offset float64) aero.Table {
	return e.twist.Offset(offset)
}

// Schedule returns the flap deflection schedule for x. It is empty for the
// baseline.
func (e *Evaluator) Schedule(x []float64) (span.Schedule, error) {
	if e.opts.ControlPoints == 0 {
		return span.Schedule{}, nil
	}
	return span.BuildDeflectionSchedule(e.spans, x[:e.opts.ControlPoints])
}

// Solver builds and configures a fresh solver for x.
func (e *Evaluator) Solver(x []float64) (aero.Solver, error) {
	if len(x) != e.opts.Length() {
		return nil, optimization.WrapErrorf(ErrInitialGuessLength, "design vector has %d entries, want %d", len(x), e.opts.Length()).
			WithComponent(component)
	}
	n := e.opts.ControlPoints

	ac := e.aircraft.Clone()
	ac.Wings[e.opts.Stabilizer].Twist = e.StabilizerTwist(x[n])
	state := e.state
	state.Alpha = x[n+1]

	solver, err := e.factory(e.scene)
	if err != nil {
		return nil, err
	}
	if err := solver.AddAircraft(e.name, ac, state); err != nil {
		return nil, err
	}
	if n > 0 {
		schedule, err := e.Schedule(x)
		if err != nil {
			return nil, err
		}
		if err := solver.SetControlState(e.name, aero.ControlState{e.opts.FlapControl: schedule}); err != nil {
			return nil, err
		}
	}
	return solver, nil
}

// Forces solves the aircraft at x.
func (e *Evaluator) Forces(x []float64) (aero.AircraftForces, error) {
	start := time.Now()
	f, err := e.forces(x)
	e.observer.ObserveEvaluation(time.Since(start), err)
	return f, err
}

func (e *Evaluator) forces(x []float64) (aero.AircraftForces, error) {
	solver, err := e.Solver(x)
	if err != nil {
		return aero.AircraftForces{}, err
	}
	fm, err := solver.SolveForces()
	if err != nil {
		return aero.AircraftForces{}, err
	}
	f, ok := fm[e.name]
	if !ok {
		return aero.AircraftForces{}, optimization.NewErrorf("solver returned no forces for %q", e.name).
			WithComponent(component)
	}
	return f, nil
}

// Drag is the selected drag coefficient times the drag scale.
func (e *Evaluator) Drag(x []float64) (float64, error) {
	f, err := e.Forces(x)
	if err != nil {
		return 0, err
	}
	return e.drag.Of(f) * e.opts.DragScale, nil
}

// Moment is the total pitching-moment coefficient.
func (e *Evaluator) Moment(x []float64) (float64, error) {
	f, err := e.Forces(x)
	if err != nil {
		return 0, err
	}
	return f.Total.Cm, nil
}

// LiftError is |CL - target|.
func (e *Evaluator) LiftError(x []float64) (float64, error) {
	r, err := e.LiftResidual(x)
	return math.Abs(r), err
}

// LiftResidual is CL - target.
func (e *Evaluator) LiftResidual(x []float64) (float64, error) {
	f, err := e.Forces(x)
	if err != nil {
		return 0, err
	}
	return f.Total.CL - e.opts.TargetCL, nil
}
