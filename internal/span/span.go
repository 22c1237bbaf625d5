// Package span builds the span-fraction breakpoints and deflection schedules used
// to describe rectangular (piecewise-constant) flaps on a wing.
//
// A linearly interpolated schedule such as
//
//	[[0.0, 0], [0.5, 1], [1.0, 2]]
//
// ramps the deflection between breakpoints. Doubling every interior breakpoint
//
//	[[0.0, 0], [0.0, 1], [0.5, 1], [0.5, 2], [1.0, 2]]
//
// keeps the deflection flat between them, which is what a real flap does.
package span

import (
	"errors"
	"fmt"
)

var (
	// ErrNoControlPoints is returned when a layout is requested for fewer than one control point.
	ErrNoControlPoints = errors.New("span: number of control points must be positive")

	// ErrLengthMismatch is returned when span fractions and values cannot be paired.
	ErrLengthMismatch = errors.New("span: length mismatch")
)

// Fractions is a doubled span-fraction layout: [0,0, f1,f1, ..., 1].
type Fractions []float64

// Point is one row of a deflection schedule.
type Point struct {
	Span  float64 `json:"span"`
	Value float64 `json:"value"`
}

// Schedule pairs span fractions with deflections.
type Schedule []Point

// BuildSpanFractions returns the breakpoints for n rectangular control regions.
// Every interior fraction i/n appears twice; 0 appears twice and 1 once, so the
// result has 2n+1 entries.
func BuildSpanFractions(n int) (Fractions, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrNoControlPoints, n)
	}

	step := 1.0 / float64(n)
	out := make(Fractions, 0, 2*n+1)
	out = append(out, 0.0, 0.0)
	for i := 1; i < n; i++ {
		f := float64(i) * step
		out = append(out, f, f)
	}
	out = append(out, 1.0)

	return out, nil
}

// DoubleAndRepeat returns a leading 0.0 followed by every value repeated twice.
// The result lines up with the layout from BuildSpanFractions.
func DoubleAndRepeat(values []float64) []float64 {
	out := make([]float64, 0, 2*len(values)+1)
	out = append(out, 0.0)
	for _, v := range values {
		out = append(out, v, v)
	}
	return out
}

// Join pairs spans and values element-wise.
func Join(spans, values []float64) (Schedule, error) {
	if len(spans) != len(values) {
		return nil, fmt.Errorf("%w: %d span fractions, %d values", ErrLengthMismatch, len(spans), len(values))
	}

	out := make(Schedule, len(spans))
	for i := range spans {
		out[i] = Point{Span: spans[i], Value: values[i]}
	}
	return out, nil
}

// BuildDeflectionSchedule turns one deflection per control point into the full
// rectangular schedule for the given layout.
func BuildDeflectionSchedule(spans Fractions, controls []float64) (Schedule, error) {
	return Join(spans, DoubleAndRepeat(controls))
}

// ClusterPoints extracts the distinct interior breakpoints of a doubled layout,
// dropping the leading [0,0] and the trailing 1. The input is not modified.
func ClusterPoints(doubled []float64) []float64 {
	if len(doubled) < 3 {
		return []float64{}
	}

	interior := doubled[2 : len(doubled)-1]
	out := make([]float64, 0, len(interior)/2)
	for i := 0; i < len(interior); i += 2 {
		out = append(out, interior[i])
	}
	return out
}

// CosClusterPoints returns the panel clustering locations for n control points.
func CosClusterPoints(n int) ([]float64, error) {
	fracs, err := BuildSpanFractions(n)
	if err != nil {
		return nil, err
	}
	return ClusterPoints(fracs), nil
}

// Spans returns the span column of the schedule.
func (s Schedule) Spans() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Span
	}
	return out
}

// Values returns the value column of the schedule.
func (s Schedule) Values() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Value
	}
	return out
}

// At interpolates the schedule at span fraction f. Zero-width segments (doubled
// breakpoints) are skipped, so the value is constant inside a rectangular
// region. Outside the table the end values are held. Where leading rows share
// the first span, as the 0.0 entry of a rectangular schedule does, the last of
// them is the held value.
func (s Schedule) At(f float64) float64 {
	switch {
	case len(s) == 0:
		return 0
	case f <= s[0].Span:
		i := 0
		for i+1 < len(s) && s[i+1].Span <= s[0].Span {
			i++
		}
		return s[i].Value
	case f >= s[len(s)-1].Span:
		return s[len(s)-1].Value
	}

	for i := 0; i < len(s)-1; i++ {
		a, b := s[i], s[i+1]
		if b.Span <= a.Span {
			continue
		}
		if f >= a.Span && f <= b.Span {
			t := (f - a.Span) / (b.Span - a.Span)
			return a.Value + t*(b.Value-a.Value)
		}
	}
	return s[len(s)-1].Value
}
