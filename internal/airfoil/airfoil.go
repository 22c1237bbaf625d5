// Package airfoil provides section aerodynamic models: the linear model, the
// functional (callback) model and the Ikhana camber curve fits that back it.
package airfoil

import (
	"fmt"
	"sort"
	"sync"
)

// Model types accepted in an airfoil definition.
const (
	TypeLinear     = "linear"
	TypeFunctional = "functional"
)

// Params is the section state handed to an airfoil. Angles are in radians.
type Params struct {
	Alpha                  float64
	TrailingFlapDeflection float64
}

// Airfoil evaluates section coefficients.
type Airfoil interface {
	CL(p Params) float64
	CD(p Params) float64
	Cm(p Params) float64
}

// Func computes one section coefficient.
type Func func(p Params) float64

// Functional is an airfoil backed by three callbacks.
type Functional struct {
	CLFunc Func
	CDFunc Func
	CmFunc Func
}

// CL implements Airfoil.
func (f *Functional) CL(p Params) float64 { return f.CLFunc(p) }

// CD implements Airfoil.
func (f *Functional) CD(p Params) float64 { return f.CDFunc(p) }

// Cm implements Airfoil.
func (f *Functional) Cm(p Params) float64 { return f.CmFunc(p) }

// Linear is the thin-airfoil model with a parabolic drag polar. Flap deflection
// is ignored.
type Linear struct {
	AL0  float64
	CLa  float64
	CmL0 float64
	Cma  float64
	CD0  float64
	CD1  float64
	CD2  float64
}

// CL implements Airfoil.
func (l *Linear) CL(p Params) float64 {
	return l.CLa * (p.Alpha - l.AL0)
}

// CD implements Airfoil.
func (l *Linear) CD(p Params) float64 {
	cl := l.CL(p)
	return l.CD0 + l.CD1*cl + l.CD2*cl*cl
}

// Cm implements Airfoil.
func (l *Linear) Cm(p Params) float64 {
	return l.CmL0 + l.Cma*(p.Alpha-l.AL0)
}

// Geometry points at the outline file of a section. It is carried through for
// completeness and not read by the solver.
type Geometry struct {
	OutlinePoints string `yaml:"outline_points" json:"outline_points"`
}

// Definition is the file form of an airfoil entry.
type Definition struct {
	Type string `yaml:"type" json:"type"`

	// Linear coefficients.
	AL0  float64 `yaml:"aL0" json:"aL0"`
	CLa  float64 `yaml:"CLa" json:"CLa"`
	CmL0 float64 `yaml:"CmL0" json:"CmL0"`
	Cma  float64 `yaml:"Cma" json:"Cma"`
	CD0  float64 `yaml:"CD0" json:"CD0"`
	CD1  float64 `yaml:"CD1" json:"CD1"`
	CD2  float64 `yaml:"CD2" json:"CD2"`

	// Function names a registered functional model.
	Function string    `yaml:"function" json:"function"`
	Geometry *Geometry `yaml:"geometry,omitempty" json:"geometry,omitempty"`
}

// Build resolves the definition into an Airfoil.
func (d Definition) Build() (Airfoil, error) {
	switch d.Type {
	case TypeLinear, "":
		return &Linear{
			AL0:  d.AL0,
			CLa:  d.CLa,
			CmL0: d.CmL0,
			Cma:  d.Cma,
			CD0:  d.CD0,
			CD1:  d.CD1,
			CD2:  d.CD2,
		}, nil
	case TypeFunctional:
		f, ok := Lookup(d.Function)
		if !ok {
			return nil, fmt.Errorf("airfoil: functional model %q is not registered (known: %v)", d.Function, Registered())
		}
		return f, nil
	default:
		return nil, fmt.Errorf("airfoil: unsupported type %q", d.Type)
	}
}

var (
	registryMu sync.RWMutex
	registry   = map[string]*Functional{
		"ikhana": {CLFunc: IkhanaCL, CDFunc: IkhanaCD, CmFunc: IkhanaCm},
	}
)

// Register makes a functional model available to definitions by name.
func Register(name string, f *Functional) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = f
}

// Lookup returns the functional model registered under name.
func Lookup(name string) (*Functional, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[name]
	return f, ok
}

// Registered lists the registered functional model names.
func Registered() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
