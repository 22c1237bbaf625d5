package optimization

import (
	"math"
	"testing"
)

// SumOfSquares is x·x.
func SumOfSquares(x []float64) (float64, error) {
	sum := 0.0
	for _, v := range x {
		sum += v * v
	}
	return sum, nil
}

// Shifted returns sum((x_i - c_i)^2).
func Shifted(c ...float64) ObjectiveFunction {
	return func(x []float64) (float64, error) {
		sum := 0.0
		for i, v := range x {
			d := v - c[i]
			sum += d * d
		}
		return sum, nil
	}
}

// Plane returns sum(a_i*x_i) - b, a linear equality constraint.
func Plane(b float64, a ...float64) ObjectiveFunction {
	return func(x []float64) (float64, error) {
		sum := -b
		for i, v := range x {
			sum += a[i] * v
		}
		return sum, nil
	}
}

// AssertFloat64SlicesEqual checks if two float64 slices are approximately equal
func AssertFloat64SlicesEqual(t testing.TB, got, want []float64, tol float64) {
	t.Helper()

	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}

	for i := range got {
		if math.Abs(got[i]-want[i]) > tol {
			t.Fatalf("at index %d: got %v, want %v (tolerance %v)", i, got[i], want[i], tol)
		}
	}
}
