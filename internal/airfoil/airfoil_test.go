package airfoil

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCurveFits(t *testing.T) {
	tests := []struct {
		name     string
		fn       func(float64) float64
		c        float64
		expected float64
	}{
		{"alphaL0 flat", AlphaL0, 0, -0.0003},
		{"alphaL0 cambered", AlphaL0, 2, -0.0369},
		{"CLalpha", CLAlpha, 3, 6.257605},
		{"CD0 flat", CD0, 0, 0.0049},
		{"CD0 cambered", CD0, 2, 0.0049 + 0.0008 - 0.00008},
		{"CD1", CD1, 2, -0.0058},
		{"CD2", CD2, 2, 0.0004 - 0.0008 + 0.0095},
		{"CmL0", CmL0, 2, -0.051},
		{"Cmalpha", CmAlpha, -1, 0.016353333},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, tt.fn(tt.c), 1e-12)
		})
	}
}

func TestCurveFitsArePure(t *testing.T) {
	fits := []func(float64) float64{AlphaL0, CLAlpha, CD0, CD1, CD2, CmL0, CmAlpha}
	for _, c := range []float64{-5, -0.3, 0, 1.7, 12} {
		for i, fn := range fits {
			assert.Equal(t, fn(c), fn(c), "fit %d at c=%v", i, c)
		}
	}

	p := Params{Alpha: 0.07, TrailingFlapDeflection: 0.03}
	assert.Equal(t, IkhanaCL(p), IkhanaCL(p))
	assert.Equal(t, IkhanaCD(p), IkhanaCD(p))
	assert.Equal(t, IkhanaCm(p), IkhanaCm(p))
}

func TestIkhanaZeroLift(t *testing.T) {
	for _, defl := range []float64{-0.1, 0, 0.02, 0.05, 0.2} {
		c := defl * (180 / math.Pi)
		p := Params{Alpha: AlphaL0(c), TrailingFlapDeflection: defl}

		assert.Equal(t, 0.0, IkhanaCL(p), "defl=%v", defl)
		assert.Equal(t, CD0(c), IkhanaCD(p), "defl=%v", defl)
		assert.Equal(t, CmL0(c), IkhanaCm(p), "defl=%v", defl)
	}
}

func TestIkhanaSection(t *testing.T) {
	// One degree of flap is one percent camber.
	defl := math.Pi / 180
	p := Params{Alpha: 0.05, TrailingFlapDeflection: defl}

	cl := 6.257605 * (0.05 - (-0.0183 - 0.0003))
	assert.InDelta(t, cl, IkhanaCL(p), 1e-12)
	assert.InDelta(t, CD0(1)+CD1(1)*cl+CD2(1)*cl*cl, IkhanaCD(p), 1e-12)
	assert.InDelta(t, CmL0(1)+CmAlpha(1)*(0.05-AlphaL0(1)), IkhanaCm(p), 1e-12)

	// More camber, more lift at the same angle.
	assert.Greater(t, IkhanaCL(Params{Alpha: 0.05, TrailingFlapDeflection: 2 * defl}), IkhanaCL(p))
}

func TestLinear(t *testing.T) {
	l := &Linear{AL0: -0.02, CLa: 6, CmL0: -0.01, Cma: 0.1, CD0: 0.005, CD1: 0.001, CD2: 0.01}
	p := Params{Alpha: 0.08, TrailingFlapDeflection: 0.3}

	cl := 6 * 0.1
	assert.InDelta(t, cl, l.CL(p), 1e-12)
	assert.InDelta(t, 0.005+0.001*cl+0.01*cl*cl, l.CD(p), 1e-12)
	assert.InDelta(t, -0.01+0.1*0.1, l.Cm(p), 1e-12)
}

func TestDefinitionBuild(t *testing.T) {
	db := IkhanaDatabase()
	require.Len(t, db, 2)

	main, err := db["Ikhana_NACA_0010_main"].Build()
	require.NoError(t, err)
	p := Params{Alpha: 0.04, TrailingFlapDeflection: 0.01}
	assert.Equal(t, IkhanaCL(p), main.CL(p))
	assert.Equal(t, IkhanaCD(p), main.CD(p))
	assert.Equal(t, IkhanaCm(p), main.Cm(p))

	tail, err := db["Ikhana_NACA_0010"].Build()
	require.NoError(t, err)
	assert.InDelta(t, 6.43365*0.04, tail.CL(p), 1e-12)

	_, err = Definition{Type: TypeFunctional, Function: "missing"}.Build()
	assert.Error(t, err)

	_, err = Definition{Type: "poly_fit"}.Build()
	assert.Error(t, err)
}

func TestRegister(t *testing.T) {
	flat := &Functional{
		CLFunc: func(p Params) float64 { return 2 * math.Pi * p.Alpha },
		CDFunc: func(Params) float64 { return 0.01 },
		CmFunc: func(Params) float64 { return 0 },
	}
	Register("flat-plate-test", flat)

	got, ok := Lookup("flat-plate-test")
	require.True(t, ok)
	assert.InDelta(t, 2*math.Pi*0.1, got.CL(Params{Alpha: 0.1}), 1e-12)
	assert.Contains(t, Registered(), "flat-plate-test")
	assert.Contains(t, Registered(), "ikhana")
}
