// Package aero describes aircraft and flight scenes in the MachUpX input layout
// and solves them for forces, moments and spanwise load distributions.
package aero

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/Justice-Schoenfeld/Camber-Schedule-Optimization-for-NASA-Ikhana-to-Minimize-Drag/internal/airfoil"
	"github.com/Justice-Schoenfeld/Camber-Schedule-Optimization-for-NASA-Ikhana-to-Minimize-Drag/internal/span"
)

// Table is a [span fraction, value] table. In a file it is either a single
// number (constant along the span) or a list of pairs.
type Table [][2]float64

// Constant returns a table holding v from root to tip.
func Constant(v float64) Table {
	return Table{{0, v}, {1, v}}
}

// UnmarshalYAML accepts a scalar or a list of [span, value] pairs.
func (t *Table) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var v float64
		if err := node.Decode(&v); err != nil {
			return err
		}
		*t = Constant(v)
		return nil
	case yaml.SequenceNode:
		var rows [][]float64
		if err := node.Decode(&rows); err != nil {
			return err
		}
		out := make(Table, len(rows))
		for i, row := range rows {
			if len(row) != 2 {
				return fmt.Errorf("table row %d has %d columns, want 2", i, len(row))
			}
			out[i] = [2]float64{row[0], row[1]}
		}
		*t = out
		return nil
	default:
		return fmt.Errorf("line %d: table must be a number or a list of [span, value] pairs", node.Line)
	}
}

// Clone returns a copy of the table.
func (t Table) Clone() Table {
	if t == nil {
		return nil
	}
	return append(Table(nil), t...)
}

// Offset returns a copy with d added to every value.
func (t Table) Offset(d float64) Table {
	out := t.Clone()
	for i := range out {
		out[i][1] += d
	}
	return out
}

// Schedule converts the table for interpolation.
func (t Table) Schedule() span.Schedule {
	out := make(span.Schedule, len(t))
	for i, row := range t {
		out[i] = span.Point{Span: row[0], Value: row[1]}
	}
	return out
}

// Reference holds the non-dimensionalization lengths and area.
type Reference struct {
	Area               float64 `yaml:"area" json:"area"`
	LongitudinalLength float64 `yaml:"longitudinal_length" json:"longitudinal_length"`
	LateralLength      float64 `yaml:"lateral_length" json:"lateral_length"`
}

// Connection locates a wing root relative to the aircraft origin. x points
// forward.
type Connection struct {
	ID int     `yaml:"ID" json:"ID"`
	DX float64 `yaml:"dx" json:"dx"`
	DY float64 `yaml:"dy" json:"dy"`
	DZ float64 `yaml:"dz" json:"dz"`
}

// ControlSurface marks a wing as carrying deflectable trailing-edge surfaces.
// ControlMixing maps control names to gains.
type ControlSurface struct {
	ChordFraction float64            `yaml:"chord_fraction" json:"chord_fraction"`
	ControlMixing map[string]float64 `yaml:"control_mixing" json:"control_mixing"`
}

// Grid controls paneling of one wing semispan.
type Grid struct {
	N             int       `yaml:"N" json:"N"`
	ClusterPoints []float64 `yaml:"cluster_points" json:"cluster_points"`
}

// Wing is one lifting surface. Sides: "both", "left" or "right".
type Wing struct {
	ID             int             `yaml:"ID" json:"ID"`
	Side           string          `yaml:"side" json:"side"`
	IsMain         bool            `yaml:"is_main" json:"is_main"`
	ConnectTo      Connection      `yaml:"connect_to" json:"connect_to"`
	Semispan       float64         `yaml:"semispan" json:"semispan"`
	Chord          Table           `yaml:"chord" json:"chord"`
	Twist          Table           `yaml:"twist" json:"twist"`
	Sweep          float64         `yaml:"sweep" json:"sweep"`
	Airfoil        string          `yaml:"airfoil" json:"airfoil"`
	ControlSurface *ControlSurface `yaml:"control_surface,omitempty" json:"control_surface,omitempty"`
	Grid           Grid            `yaml:"grid" json:"grid"`
}

// Aircraft is the geometry and section data of one airplane.
type Aircraft struct {
	CG        [3]float64                    `yaml:"CG" json:"CG"`
	Weight    float64                       `yaml:"weight" json:"weight"`
	Units     string                        `yaml:"units" json:"units"`
	Reference Reference                     `yaml:"reference" json:"reference"`
	Airfoils  map[string]airfoil.Definition `yaml:"airfoils" json:"airfoils"`
	Wings     map[string]*Wing              `yaml:"wings" json:"wings"`
}

// WingNames returns the wing names in a stable order.
func (a *Aircraft) WingNames() []string {
	names := make([]string, 0, len(a.Wings))
	for name := range a.Wings {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep copy that can be modified without touching a.
func (a *Aircraft) Clone() *Aircraft {
	out := *a
	out.Airfoils = make(map[string]airfoil.Definition, len(a.Airfoils))
	for k, v := range a.Airfoils {
		out.Airfoils[k] = v
	}
	out.Wings = make(map[string]*Wing, len(a.Wings))
	for k, w := range a.Wings {
		wc := *w
		wc.Chord = w.Chord.Clone()
		wc.Twist = w.Twist.Clone()
		wc.Grid.ClusterPoints = append([]float64(nil), w.Grid.ClusterPoints...)
		if w.ControlSurface != nil {
			cs := *w.ControlSurface
			cs.ControlMixing = make(map[string]float64, len(w.ControlSurface.ControlMixing))
			for name, gain := range w.ControlSurface.ControlMixing {
				cs.ControlMixing[name] = gain
			}
			wc.ControlSurface = &cs
		}
		out.Wings[k] = &wc
	}
	return &out
}

// Validate checks the geometry is complete enough to solve.
func (a *Aircraft) Validate() error {
	if len(a.Wings) == 0 {
		return fmt.Errorf("aircraft has no wings")
	}
	for _, name := range a.WingNames() {
		w := a.Wings[name]
		if w.Semispan <= 0 {
			return fmt.Errorf("wing %q: semispan must be positive", name)
		}
		if len(w.Chord) == 0 {
			return fmt.Errorf("wing %q: chord is required", name)
		}
		if _, ok := a.Airfoils[w.Airfoil]; !ok {
			return fmt.Errorf("wing %q: airfoil %q is not defined", name, w.Airfoil)
		}
		switch w.Side {
		case "both", "left", "right", "":
		default:
			return fmt.Errorf("wing %q: side must be both, left or right, got %q", name, w.Side)
		}
	}
	return nil
}

// State is the flight condition of an aircraft. Angles are in degrees.
type State struct {
	Type     string  `yaml:"type" json:"type"`
	Velocity float64 `yaml:"velocity" json:"velocity"`
	Alpha    float64 `yaml:"alpha" json:"alpha"`
	Beta     float64 `yaml:"beta" json:"beta"`
}

// SolverSettings tunes the nonlinear section-lift iteration.
type SolverSettings struct {
	Type                 string  `yaml:"type" json:"type"`
	ConvergenceTolerance float64 `yaml:"convergence" json:"convergence"`
	MaxIterations        int     `yaml:"max_iterations" json:"max_iterations"`
	Relaxation           float64 `yaml:"relaxation" json:"relaxation"`
}

// Atmosphere holds the freestream properties.
type Atmosphere struct {
	Density float64 `yaml:"density" json:"density"`
}

// SceneAircraft references an aircraft file and its initial state.
type SceneAircraft struct {
	File  string `yaml:"file" json:"file"`
	State State  `yaml:"state" json:"state"`
}

// SceneSpec is the "scene" block of a scene file.
type SceneSpec struct {
	Atmosphere Atmosphere               `yaml:"atmosphere" json:"atmosphere"`
	Aircraft   map[string]SceneAircraft `yaml:"aircraft" json:"aircraft"`
}

// SceneConfig is a complete scene file.
type SceneConfig struct {
	Solver SolverSettings `yaml:"solver" json:"solver"`
	Units  string         `yaml:"units" json:"units"`
	Scene  SceneSpec      `yaml:"scene" json:"scene"`
}

// ControlState maps control names to deflection schedules in degrees.
type ControlState map[string]span.Schedule
