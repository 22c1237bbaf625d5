package span

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSpanFractions(t *testing.T) {
	tests := []struct {
		name     string
		n        int
		expected Fractions
	}{
		{
			name:     "single control point",
			n:        1,
			expected: Fractions{0, 0, 1},
		},
		{
			name:     "two control points",
			n:        2,
			expected: Fractions{0, 0, 0.5, 0.5, 1},
		},
		{
			name:     "four control points",
			n:        4,
			expected: Fractions{0, 0, 0.25, 0.25, 0.5, 0.5, 0.75, 0.75, 1.0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildSpanFractions(tt.n)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.expected, got); diff != "" {
				t.Errorf("BuildSpanFractions(%d) mismatch (-want +got):\n%s", tt.n, diff)
			}
		})
	}
}

func TestBuildSpanFractionsShape(t *testing.T) {
	for n := 1; n <= 12; n++ {
		fracs, err := BuildSpanFractions(n)
		require.NoError(t, err)
		require.Len(t, fracs, 2*n+1)

		assert.Equal(t, 0.0, fracs[0])
		assert.Equal(t, 0.0, fracs[1])
		assert.Equal(t, 1.0, fracs[len(fracs)-1])

		// Interior fractions come in pairs and strictly increase pair to pair.
		prev := 0.0
		for i := 2; i < len(fracs)-1; i += 2 {
			assert.Equal(t, fracs[i], fracs[i+1], "n=%d index %d", n, i)
			assert.Greater(t, fracs[i], prev, "n=%d index %d", n, i)
			assert.InDelta(t, float64(i/2)/float64(n), fracs[i], 1e-12)
			prev = fracs[i]
		}
		assert.Less(t, prev, 1.0)
	}
}

func TestBuildSpanFractionsInvalid(t *testing.T) {
	for _, n := range []int{0, -1, -10} {
		_, err := BuildSpanFractions(n)
		assert.True(t, errors.Is(err, ErrNoControlPoints), "n=%d", n)
	}
}

func TestDoubleAndRepeat(t *testing.T) {
	assert.Equal(t, []float64{0.0, 1.5, 1.5, -2, -2}, DoubleAndRepeat([]float64{1.5, -2}))
	assert.Equal(t, []float64{0.0}, DoubleAndRepeat(nil))

	for n := 0; n < 10; n++ {
		in := make([]float64, n)
		for i := range in {
			in[i] = float64(i) + 0.5
		}
		out := DoubleAndRepeat(in)
		assert.Len(t, out, 2*n+1)
	}
}

func TestJoin(t *testing.T) {
	got, err := Join([]float64{0, 0.5, 1}, []float64{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, Schedule{{0, 1}, {0.5, 2}, {1, 3}}, got)
}

func TestJoinLengthMismatch(t *testing.T) {
	for la := 0; la < 6; la++ {
		for lb := 0; lb < 6; lb++ {
			if la == lb {
				continue
			}
			t.Run(fmt.Sprintf("%dx%d", la, lb), func(t *testing.T) {
				out, err := Join(make([]float64, la), make([]float64, lb))
				assert.True(t, errors.Is(err, ErrLengthMismatch))
				assert.Empty(t, out)
			})
		}
	}
}

func TestBuildDeflectionSchedule(t *testing.T) {
	fracs, err := BuildSpanFractions(2)
	require.NoError(t, err)

	sched, err := BuildDeflectionSchedule(fracs, []float64{3, -1})
	require.NoError(t, err)
	assert.Equal(t, Schedule{
		{0.0, 0.0},
		{0.0, 3},
		{0.5, 3},
		{0.5, -1},
		{1.0, -1},
	}, sched)

	_, err = BuildDeflectionSchedule(fracs, []float64{1, 2, 3})
	assert.True(t, errors.Is(err, ErrLengthMismatch))
}

func TestClusterPoints(t *testing.T) {
	in := []float64{0, 0, 0.25, 0.25, 0.5, 0.5, 0.75, 0.75, 1.0}
	orig := append([]float64(nil), in...)

	got := ClusterPoints(in)
	assert.Equal(t, []float64{0.25, 0.5, 0.75}, got)
	assert.Equal(t, orig, in, "input must not be modified")

	// Calling twice on the same slice gives the same answer.
	assert.Equal(t, got, ClusterPoints(in))

	assert.Empty(t, ClusterPoints([]float64{0, 0, 1}))
	assert.Empty(t, ClusterPoints(nil))
}

func TestScheduleRoundTripsClusterPoints(t *testing.T) {
	for n := 1; n <= 8; n++ {
		fracs, err := BuildSpanFractions(n)
		require.NoError(t, err)

		controls := make([]float64, n)
		for i := range controls {
			controls[i] = float64(i*i) - 3
		}
		sched, err := BuildDeflectionSchedule(fracs, controls)
		require.NoError(t, err)

		want, err := CosClusterPoints(n)
		require.NoError(t, err)
		assert.Equal(t, want, ClusterPoints(sched.Spans()), "n=%d", n)
		assert.Len(t, want, n-1)
	}
}

func TestScheduleAt(t *testing.T) {
	fracs, err := BuildSpanFractions(4)
	require.NoError(t, err)
	sched, err := BuildDeflectionSchedule(fracs, []float64{1, 2, 3, 4})
	require.NoError(t, err)

	tests := []struct {
		f        float64
		expected float64
	}{
		{-0.5, 1},
		{0, 1},
		{0.1, 1},
		{0.2, 1},
		{0.3, 2},
		{0.49, 2},
		{0.6, 3},
		{0.9, 4},
		{1.0, 4},
		{1.5, 4},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.expected, sched.At(tt.f), 1e-12, "f=%v", tt.f)
	}

	linear := Schedule{{0, 0}, {1, 2}}
	assert.InDelta(t, 1.0, linear.At(0.5), 1e-12)
	assert.Equal(t, 0.0, linear.At(0))
	assert.Equal(t, 5.0, Schedule{{0.5, 5}}.At(0))
	assert.Equal(t, 0.0, Schedule(nil).At(0.5))
}

func TestScheduleColumns(t *testing.T) {
	s := Schedule{{0, 1}, {0.5, 2}}
	assert.Equal(t, []float64{0, 0.5}, s.Spans())
	assert.Equal(t, []float64{1, 2}, s.Values())
}
