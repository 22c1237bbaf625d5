package auglag

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Justice-Schoenfeld/Camber-Schedule-Optimization-for-NASA-Ikhana-to-Minimize-Drag/internal/optimization"
)

func TestMinimize(t *testing.T) {
	tests := []struct {
		name    string
		problem optimization.ConstrainedProblem
		x0      []float64
		want    []float64
	}{
		{
			name: "shifted quadratic on a line",
			problem: optimization.ConstrainedProblem{
				Objective: optimization.Shifted(1, 2),
				Equality:  []optimization.ObjectiveFunction{optimization.Plane(1, 1, 1)},
			},
			x0:   []float64{0, 0},
			want: []float64{0, 1},
		},
		{
			name: "bound without constraints",
			problem: optimization.ConstrainedProblem{
				Objective: optimization.Shifted(3),
				Bounds:    [][2]float64{{0, 1}},
			},
			x0:   []float64{0.5},
			want: []float64{1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := New(Options{}).Minimize(context.Background(), tt.problem, tt.x0)
			require.NoError(t, err)
			require.NotNil(t, res.BestSolution)

			assert.True(t, res.Converged, res.Message)
			assert.NotEmpty(t, res.History)
			optimization.AssertFloat64SlicesEqual(t, res.BestSolution.Parameters, tt.want, 1e-2)
		})
	}
}

func TestMinimizeErrors(t *testing.T) {
	_, err := New(Options{}).Minimize(context.Background(), optimization.ConstrainedProblem{}, []float64{0})
	assert.ErrorIs(t, err, optimization.ErrInvalidProblem)

	boom := errors.New("boom")
	_, err = New(Options{}).Minimize(context.Background(), optimization.ConstrainedProblem{
		Objective: optimization.SumOfSquares,
		Equality: []optimization.ObjectiveFunction{
			func([]float64) (float64, error) { return 0, boom },
		},
	}, []float64{1})
	assert.ErrorIs(t, err, boom)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = New(Options{}).Minimize(ctx, optimization.ConstrainedProblem{Objective: optimization.SumOfSquares}, []float64{1})
	assert.ErrorIs(t, err, context.Canceled)
}
