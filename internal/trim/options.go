// Package trim finds the pitch-trimmed, minimum-drag configuration of an
// aircraft at a target lift coefficient by adjusting spanwise camber control
// points, the horizontal stabilizer mounting angle and the angle of attack.
package trim

import (
	"errors"

	"github.com/Justice-Schoenfeld/Camber-Schedule-Optimization-for-NASA-Ikhana-to-Minimize-Drag/internal/aero"
	"github.com/Justice-Schoenfeld/Camber-Schedule-Optimization-for-NASA-Ikhana-to-Minimize-Drag/internal/optimization"
)

const component = "trim"

// Defaults applied by Options when a field is left zero.
const (
	DefaultDragScale       = 100.0
	DefaultRefineTolerance = 1e-4
	DefaultMaxRefinements  = 50
	DefaultFlapControl     = "flaps1"
	DefaultMainWing        = "main_wing"
	DefaultStabilizer      = "horizontal_tail"
)

var (
	// ErrInvalidDragType is returned for a drag selector outside Total,
	// Inviscid and Viscous.
	ErrInvalidDragType = errors.New("drag type must be one of Total, Inviscid or Viscous")

	// ErrInitialGuessLength is returned when the initial guess does not hold
	// one entry per control point plus the stabilizer angle and angle of attack.
	ErrInitialGuessLength = errors.New("initial guess has the wrong length")
)

// DragType selects which drag coefficient is minimized.
type DragType string

const (
	DragTotal    DragType = "Total"
	DragInviscid DragType = "Inviscid"
	DragViscous  DragType = "Viscous"
)

// ParseDragType accepts exactly "Total", "Inviscid" or "Viscous".
func ParseDragType(s string) (DragType, error) {
	switch DragType(s) {
	case DragTotal, DragInviscid, DragViscous:
		return DragType(s), nil
	}
	return "", optimization.WrapErrorf(ErrInvalidDragType, "got %q", s).
		WithOperation("validate").
		WithComponent(component)
}

// Of returns the selected drag coefficient from a force breakdown.
func (d DragType) Of(f aero.AircraftForces) float64 {
	switch d {
	case DragInviscid:
		return f.Inviscid.CD.Total()
	case DragViscous:
		return f.Viscous.CD.Total()
	default:
		return f.Total.CD
	}
}

// Options describe one trim run.
type Options struct {
	// Aircraft is the scene name of the aircraft to trim.
	Aircraft string `json:"aircraft" yaml:"aircraft"`
	// ControlPoints is the number of rectangular camber regions on the main
	// wing. Zero is the baseline without flaps.
	ControlPoints int `json:"control_points" yaml:"control_points"`
	// TargetCL is the lift coefficient to trim at.
	TargetCL float64 `json:"target_cl" yaml:"target_cl"`
	// Deflection bounds (deg) for the control points.
	UpperBound float64 `json:"upper_bound" yaml:"upper_bound"`
	LowerBound float64 `json:"lower_bound" yaml:"lower_bound"`
	// Refine re-runs the minimizer from its own solution until consecutive
	// solutions agree.
	Refine bool `json:"refine" yaml:"refine"`
	// InitialGuess, when set, must hold ControlPoints+2 entries.
	InitialGuess []float64 `json:"initial_guess,omitempty" yaml:"initial_guess,omitempty"`
	DragType     string    `json:"drag_type" yaml:"drag_type"`
	// DragScale multiplies the drag objective so it is comparable in size to
	// the lift constraint.
	DragScale       float64 `json:"drag_scale" yaml:"drag_scale"`
	RefineTolerance float64 `json:"refine_tolerance" yaml:"refine_tolerance"`
	MaxRefinements  int     `json:"max_refinements" yaml:"max_refinements"`
	// AbsLiftConstraint constrains |CL - target| instead of CL - target.
	// Both vanish on the same designs, but the absolute value has a kink
	// there that finite-difference Jacobians straddle.
	AbsLiftConstraint bool `json:"abs_lift_constraint" yaml:"abs_lift_constraint"`

	FlapControl string `json:"flap_control" yaml:"flap_control"`
	MainWing    string `json:"main_wing" yaml:"main_wing"`
	Stabilizer  string `json:"stabilizer" yaml:"stabilizer"`
}

// WithDefaults fills zero fields.
func (o Options) WithDefaults() Options {
	if o.DragType == "" {
		o.DragType = string(DragTotal)
	}
	if o.DragScale <= 0 {
		o.DragScale = DefaultDragScale
	}
	if o.RefineTolerance <= 0 {
		o.RefineTolerance = DefaultRefineTolerance
	}
	if o.MaxRefinements <= 0 {
		o.MaxRefinements = DefaultMaxRefinements
	}
	if o.FlapControl == "" {
		o.FlapControl = DefaultFlapControl
	}
	if o.MainWing == "" {
		o.MainWing = DefaultMainWing
	}
	if o.Stabilizer == "" {
		o.Stabilizer = DefaultStabilizer
	}
	return o
}

// Length is the size of the design vector.
func (o Options) Length() int {
	return o.ControlPoints + 2
}

// Validate runs the checks that must pass before any solve.
func (o Options) Validate() (DragType, error) {
	dt, err := ParseDragType(o.DragType)
	if err != nil {
		return "", err
	}
	if o.ControlPoints < 0 {
		return "", optimization.NewErrorf("control points must not be negative, got %d", o.ControlPoints).
			WithOperation("validate").
			WithComponent(component)
	}
	if o.InitialGuess != nil && len(o.InitialGuess) != o.Length() {
		return "", optimization.WrapErrorf(ErrInitialGuessLength,
			"want %d entries (%d control points, stabilizer angle, angle of attack), got %d",
			o.Length(), o.ControlPoints, len(o.InitialGuess)).
			WithOperation("validate").
			WithComponent(component)
	}
	if o.LowerBound > o.UpperBound {
		return "", optimization.NewErrorf("lower deflection bound %v above upper bound %v", o.LowerBound, o.UpperBound).
			WithOperation("validate").
			WithComponent(component)
	}
	return dt, nil
}
