package airfoil

import "math"

// Curve fits for the Ikhana main-wing section, fitted to the morphing-wing data of
// Hunsaker and Phillips, "Aerodynamic Shape Optimization of Morphing Wings at
// Multiple Flight Conditions", AIAA SciTech 2017. Camber c is in percent chord.

// AlphaL0 returns the zero-lift angle of attack in radians.
func AlphaL0(c float64) float64 {
	return -0.0183*c - 0.0003
}

// CLAlpha returns the lift slope in 1/rad. It does not vary with camber.
func CLAlpha(c float64) float64 {
	return 6.257605
}

// CD0 is the constant term of the drag polar.
func CD0(c float64) float64 {
	return 0.0002*c*c - 4e-5*c + 0.0049
}

// CD1 is the linear term of the drag polar.
func CD1(c float64) float64 {
	return -0.003*c + 0.0002
}

// CD2 is the quadratic term of the drag polar.
func CD2(c float64) float64 {
	return 0.0001*c*c - 0.0004*c + 0.0095
}

// CmL0 returns the pitching moment at zero lift.
func CmL0(c float64) float64 {
	return -0.0253*c - 0.0004
}

// CmAlpha returns the moment slope in 1/rad.
func CmAlpha(c float64) float64 {
	return 0.016353333
}

// camber reads the flap deflection (radians) as a camber percentage: one degree
// of deflection is one percent of camber.
func camber(p Params) float64 {
	return p.TrailingFlapDeflection * (180 / math.Pi)
}

// IkhanaCL is the section lift coefficient.
func IkhanaCL(p Params) float64 {
	c := camber(p)
	return CLAlpha(c) * (p.Alpha - AlphaL0(c))
}

// IkhanaCD is the section drag coefficient, evaluated on the lift of the same
// section state.
func IkhanaCD(p Params) float64 {
	c := camber(p)
	cl := IkhanaCL(p)
	return CD0(c) + CD1(c)*cl + CD2(c)*cl*cl
}

// IkhanaCm is the section quarter-chord pitching moment coefficient.
func IkhanaCm(p Params) float64 {
	c := camber(p)
	return CmL0(c) + CmAlpha(c)*(p.Alpha-AlphaL0(c))
}

// IkhanaDatabase returns the airfoil set used once flaps are active: the main
// wing section is replaced by the curve fits, the tail keeps its linear model.
func IkhanaDatabase() map[string]Definition {
	return map[string]Definition{
		"Ikhana_NACA_0010_main": {
			Type:     TypeFunctional,
			Function: "ikhana",
			Geometry: &Geometry{OutlinePoints: "AirfoilDatabase/airfoils/uCRM-9_wr0_xfoil.txt"},
		},
		"Ikhana_NACA_0010": {
			Type: TypeLinear,
			AL0:  0.0,
			CLa:  6.43365,
			CmL0: 0.0,
			Cma:  0.0,
			CD0:  0.00513,
			CD1:  0.0,
			CD2:  0.00984,
		},
	}
}
