package aero

// Components maps "total" and each wing name to a coefficient value.
type Components map[string]float64

// Total returns the aircraft-level value.
func (c Components) Total() float64 {
	return c[totalKey]
}

// Breakdown holds per-wing coefficients for one force category.
type Breakdown struct {
	CL Components `json:"CL"`
	CD Components `json:"CD"`
	Cm Components `json:"Cm"`
}

func newBreakdown() Breakdown {
	return Breakdown{
		CL: Components{totalKey: 0},
		CD: Components{totalKey: 0},
		Cm: Components{totalKey: 0},
	}
}

// Coefficients are the summed aircraft coefficients.
type Coefficients struct {
	CL float64 `json:"CL"`
	CD float64 `json:"CD"`
	Cm float64 `json:"Cm"`
}

// AircraftForces is the solve result for one aircraft.
type AircraftForces struct {
	Total    Coefficients `json:"total"`
	Inviscid Breakdown    `json:"inviscid"`
	Viscous  Breakdown    `json:"viscous"`
}

// ForcesAndMoments is keyed by aircraft name.
type ForcesAndMoments map[string]AircraftForces

// WingDistribution is the spanwise section data of one semispan, root to tip.
// Angles are in degrees.
type WingDistribution struct {
	Wing       string    `json:"wing"`
	SpanFrac   []float64 `json:"span_frac"`
	Span       []float64 `json:"span"`
	Chord      []float64 `json:"chord"`
	Twist      []float64 `json:"twist"`
	Deflection []float64 `json:"deflection"`
	Alpha      []float64 `json:"alpha"`
	SectionCL  []float64 `json:"section_CL"`
	SectionCD  []float64 `json:"section_CD"`
	SectionCm  []float64 `json:"section_Cm"`
	// Load is the span load cl*c/c_ref.
	Load []float64 `json:"section_load"`
}

// Distributions is keyed by aircraft name.
type Distributions map[string][]WingDistribution
