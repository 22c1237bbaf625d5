package aero

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/Justice-Schoenfeld/Camber-Schedule-Optimization-for-NASA-Ikhana-to-Minimize-Drag/internal/airfoil"
	"github.com/Justice-Schoenfeld/Camber-Schedule-Optimization-for-NASA-Ikhana-to-Minimize-Drag/internal/span"
)

const (
	defaultPanels     = 40
	defaultTolerance  = 1e-12
	defaultMaxIter    = 500
	defaultRelaxation = 0.5
	deg2rad           = math.Pi / 180
	totalKey          = "total"
)

// ErrNotConverged is returned when the section-lift iteration of a wing does
// not settle within the configured iterations.
var ErrNotConverged = errors.New("aero: lift iteration did not converge")

// Solver is the aerodynamic model consumed by the trim driver.
type Solver interface {
	// AddAircraft adds or replaces an aircraft in the scene.
	AddAircraft(name string, ac *Aircraft, state State) error
	// SetControlState sets the control deflection schedules of an aircraft.
	SetControlState(name string, controls ControlState) error
	// SolveForces returns force and moment coefficients for every aircraft.
	SolveForces() (ForcesAndMoments, error)
	// Distributions returns spanwise section data for every wing.
	Distributions() (Distributions, error)
}

// Factory builds an independent solver for a scene.
type Factory func(cfg *SceneConfig) (Solver, error)

// DefaultFactory builds the strip lifting-line Scene.
func DefaultFactory(cfg *SceneConfig) (Solver, error) {
	return NewScene(cfg)
}

// Scene is a strip lifting-line model. Every wing is split into spanwise
// panels; each panel takes its section coefficients from the airfoil model at
// the local effective angle of attack. The wing's induced angle comes from its
// own lift through the elliptic-loading relation, solved by under-relaxed
// fixed-point iteration, and surfaces aft of a main wing see its downwash.
//
// A Scene is not safe for concurrent use.
type Scene struct {
	settings SolverSettings
	aircraft map[string]*sceneAircraft

	solved *solution
}

type sceneAircraft struct {
	def      *Aircraft
	state    State
	controls ControlState
	airfoils map[string]airfoil.Airfoil
}

type solution struct {
	forces ForcesAndMoments
	dists  Distributions
}

// NewScene creates an empty scene with the solver settings of cfg.
func NewScene(cfg *SceneConfig) (*Scene, error) {
	settings := SolverSettings{}
	if cfg != nil {
		settings = cfg.Solver
	}
	if settings.ConvergenceTolerance <= 0 {
		settings.ConvergenceTolerance = defaultTolerance
	}
	if settings.MaxIterations <= 0 {
		settings.MaxIterations = defaultMaxIter
	}
	if settings.Relaxation <= 0 || settings.Relaxation > 1 {
		settings.Relaxation = defaultRelaxation
	}

	return &Scene{
		settings: settings,
		aircraft: make(map[string]*sceneAircraft),
	}, nil
}

// AddAircraft implements Solver. The aircraft is used as given; callers that
// keep modifying their copy should pass a clone.
func (s *Scene) AddAircraft(name string, ac *Aircraft, state State) error {
	if ac == nil {
		return fmt.Errorf("aero: aircraft %q is nil", name)
	}
	if err := ac.Validate(); err != nil {
		return fmt.Errorf("aero: aircraft %q: %w", name, err)
	}

	foils := make(map[string]airfoil.Airfoil, len(ac.Airfoils))
	for foilName, def := range ac.Airfoils {
		f, err := def.Build()
		if err != nil {
			return fmt.Errorf("aero: aircraft %q airfoil %q: %w", name, foilName, err)
		}
		foils[foilName] = f
	}

	s.aircraft[name] = &sceneAircraft{
		def:      ac,
		state:    state,
		controls: ControlState{},
		airfoils: foils,
	}
	s.solved = nil
	return nil
}

// SetControlState implements Solver.
func (s *Scene) SetControlState(name string, controls ControlState) error {
	ac, ok := s.aircraft[name]
	if !ok {
		return fmt.Errorf("aero: aircraft %q is not in the scene", name)
	}
	next := make(ControlState, len(controls))
	for k, v := range controls {
		next[k] = append(span.Schedule(nil), v...)
	}
	ac.controls = next
	s.solved = nil
	return nil
}

// SolveForces implements Solver.
func (s *Scene) SolveForces() (ForcesAndMoments, error) {
	sol, err := s.solve()
	if err != nil {
		return nil, err
	}
	return sol.forces, nil
}

// Distributions implements Solver.
func (s *Scene) Distributions() (Distributions, error) {
	sol, err := s.solve()
	if err != nil {
		return nil, err
	}
	return sol.dists, nil
}

func (s *Scene) solve() (*solution, error) {
	if s.solved != nil {
		return s.solved, nil
	}
	if len(s.aircraft) == 0 {
		return nil, fmt.Errorf("aero: scene has no aircraft")
	}

	sol := &solution{
		forces: make(ForcesAndMoments, len(s.aircraft)),
		dists:  make(Distributions, len(s.aircraft)),
	}
	for name, ac := range s.aircraft {
		f, d, err := s.solveAircraft(ac)
		if err != nil {
			return nil, fmt.Errorf("aero: aircraft %q: %w", name, err)
		}
		sol.forces[name] = f
		sol.dists[name] = d
	}
	s.solved = sol
	return sol, nil
}

// panel is one spanwise strip of a semispan.
type panel struct {
	frac  float64 // span fraction of the strip center
	width float64 // strip width as a span fraction
	chord float64
	twist float64 // deg
	defl  float64 // deg
	xac   float64 // quarter-chord x, forward positive
}

type wingResult struct {
	name     string
	cl       float64
	area     float64 // both sides
	aspect   float64
	downwash float64 // rad
	panels   []panel
	sections []sectionResult
	semispan float64
	sides    float64
	isMain   bool
	rootX    float64
}

type sectionResult struct {
	alpha float64 // effective, rad
	cl    float64
	cd    float64
	cm    float64
}

func (s *Scene) solveAircraft(ac *sceneAircraft) (AircraftForces, []WingDistribution, error) {
	def := ac.def
	names := def.WingNames()

	// Main wings first so their lift sets the downwash seen by the rest.
	sort.SliceStable(names, func(i, j int) bool {
		return def.Wings[names[i]].IsMain && !def.Wings[names[j]].IsMain
	})

	results := make([]*wingResult, 0, len(names))
	var mains []*wingResult
	for _, name := range names {
		w := def.Wings[name]
		res := s.layoutWing(name, w, ac.controls)

		if !w.IsMain {
			for _, m := range mains {
				if res.rootX < m.rootX {
					res.downwash += 2 * m.cl / (math.Pi * m.aspect)
				}
			}
		}

		if err := s.solveWing(res, ac.airfoils[w.Airfoil], ac.state); err != nil {
			return AircraftForces{}, nil, fmt.Errorf("wing %q: %w", name, err)
		}
		if w.IsMain {
			mains = append(mains, res)
		}
		results = append(results, res)
	}

	sref, cref := def.Reference.Area, def.Reference.LongitudinalLength
	if sref <= 0 || cref <= 0 {
		msref, mcref := mainReference(results)
		if sref <= 0 {
			sref = msref
		}
		if cref <= 0 {
			cref = mcref
		}
	}

	forces := AircraftForces{
		Inviscid: newBreakdown(),
		Viscous:  newBreakdown(),
	}
	dists := make([]WingDistribution, 0, len(results))
	xcg := def.CG[0]

	for _, r := range results {
		ratio := r.area / sref
		cl := r.cl * ratio
		cdi := (r.cl*r.cl/(math.Pi*r.aspect) + r.cl*r.downwash) * ratio

		var cdv, cm float64
		dist := WingDistribution{Wing: r.name}
		for i, p := range r.panels {
			sec := r.sections[i]
			// strip area as a fraction of the reference area, both sides
			ds := p.chord * p.width * r.semispan * r.sides / sref
			cdv += sec.cd * ds
			cm += ((p.xac-xcg)*sec.cl + sec.cm*p.chord) * ds / cref

			dist.SpanFrac = append(dist.SpanFrac, p.frac)
			dist.Span = append(dist.Span, p.frac*r.semispan)
			dist.Chord = append(dist.Chord, p.chord)
			dist.Twist = append(dist.Twist, p.twist)
			dist.Deflection = append(dist.Deflection, p.defl)
			dist.Alpha = append(dist.Alpha, sec.alpha/deg2rad)
			dist.SectionCL = append(dist.SectionCL, sec.cl)
			dist.SectionCD = append(dist.SectionCD, sec.cd)
			dist.SectionCm = append(dist.SectionCm, sec.cm)
			dist.Load = append(dist.Load, sec.cl*p.chord/cref)
		}
		dists = append(dists, dist)

		forces.Inviscid.CL[r.name] = cl
		forces.Inviscid.CD[r.name] = cdi
		forces.Inviscid.Cm[r.name] = cm
		forces.Viscous.CD[r.name] = cdv

		forces.Inviscid.CL[totalKey] += cl
		forces.Inviscid.CD[totalKey] += cdi
		forces.Inviscid.Cm[totalKey] += cm
		forces.Viscous.CD[totalKey] += cdv
	}

	forces.Total = Coefficients{
		CL: forces.Inviscid.CL[totalKey],
		CD: forces.Inviscid.CD[totalKey] + forces.Viscous.CD[totalKey],
		Cm: forces.Inviscid.Cm[totalKey],
	}
	return forces, dists, nil
}

// layoutWing panels a wing and reads geometry and deflections at the strips.
func (s *Scene) layoutWing(name string, w *Wing, controls ControlState) *wingResult {
	n := w.Grid.N
	if n <= 0 {
		n = defaultPanels
	}
	nodes := clusteredNodes(n, w.Grid.ClusterPoints)

	chord := w.Chord.Schedule()
	twist := w.Twist.Schedule()
	tanSweep := math.Tan(w.Sweep * deg2rad)

	sides := 2.0
	if w.Side == "left" || w.Side == "right" {
		sides = 1.0
	}

	res := &wingResult{
		name:     name,
		semispan: w.Semispan,
		sides:    sides,
		isMain:   w.IsMain,
		rootX:    w.ConnectTo.DX,
		panels:   make([]panel, 0, len(nodes)-1),
	}

	var halfArea float64
	for i := 0; i < len(nodes)-1; i++ {
		f := 0.5 * (nodes[i] + nodes[i+1])
		width := nodes[i+1] - nodes[i]
		c := chord.At(f)

		var defl float64
		if w.ControlSurface != nil {
			for ctrl, gain := range w.ControlSurface.ControlMixing {
				if sched, ok := controls[ctrl]; ok {
					defl += gain * sched.At(f)
				}
			}
		}

		res.panels = append(res.panels, panel{
			frac:  f,
			width: width,
			chord: c,
			twist: twist.At(f),
			defl:  defl,
			xac:   w.ConnectTo.DX - f*w.Semispan*tanSweep - 0.25*c,
		})
		halfArea += c * width * w.Semispan
	}

	res.area = halfArea * sides
	// Aspect ratio of the mirrored planform, so single-sided surfaces use the
	// induced angle of the full wing they belong to.
	res.aspect = 2 * w.Semispan * w.Semispan / halfArea
	return res
}

// solveWing iterates the wing lift until the induced angle it implies
// reproduces it.
func (s *Scene) solveWing(r *wingResult, foil airfoil.Airfoil, state State) error {
	if foil == nil {
		return fmt.Errorf("no airfoil model")
	}

	halfArea := r.area / r.sides
	sections := make([]sectionResult, len(r.panels))
	relax := s.settings.Relaxation
	cl := 0.0

	for iter := 0; iter < s.settings.MaxIterations; iter++ {
		induced := cl / (math.Pi * r.aspect)

		var lift float64
		for i, p := range r.panels {
			a := (state.Alpha+p.twist)*deg2rad - induced - r.downwash
			params := airfoil.Params{Alpha: a, TrailingFlapDeflection: p.defl * deg2rad}
			sec := sectionResult{
				alpha: a,
				cl:    foil.CL(params),
				cd:    foil.CD(params),
				cm:    foil.Cm(params),
			}
			sections[i] = sec
			lift += sec.cl * p.chord * p.width * r.semispan
		}
		next := lift / halfArea

		if math.Abs(next-cl) <= s.settings.ConvergenceTolerance {
			r.cl = next
			r.sections = sections
			return nil
		}
		cl += relax * (next - cl)
	}
	return fmt.Errorf("%w after %d iterations", ErrNotConverged, s.settings.MaxIterations)
}

// mainReference returns the area and mean chord of the main wings.
func mainReference(results []*wingResult) (float64, float64) {
	var area, span float64
	for _, r := range results {
		if r.isMain {
			area += r.area
			span += r.semispan * r.sides
		}
	}
	if area == 0 && len(results) > 0 {
		area = results[0].area
		span = results[0].semispan * results[0].sides
	}
	return area, area / span
}

// clusteredNodes returns panel edges in [0,1]. Between consecutive cluster
// points (and the root and tip) the edges follow a cosine distribution, so
// panels bunch up at every breakpoint of a rectangular deflection schedule and
// no strip straddles one.
func clusteredNodes(n int, cluster []float64) []float64 {
	breaks := []float64{0}
	pts := append([]float64(nil), cluster...)
	sort.Float64s(pts)
	for _, p := range pts {
		if p > breaks[len(breaks)-1] && p < 1 {
			breaks = append(breaks, p)
		}
	}
	breaks = append(breaks, 1)

	nodes := []float64{0}
	for k := 0; k < len(breaks)-1; k++ {
		a, b := breaks[k], breaks[k+1]
		m := int(math.Round(float64(n) * (b - a)))
		if m < 2 {
			m = 2
		}
		for j := 1; j <= m; j++ {
			t := 0.5 * (1 - math.Cos(math.Pi*float64(j)/float64(m)))
			nodes = append(nodes, a+(b-a)*t)
		}
		nodes[len(nodes)-1] = b
	}
	return nodes
}
