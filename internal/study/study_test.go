package study

import (
	"context"
	stderrors "errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Justice-Schoenfeld/Camber-Schedule-Optimization-for-NASA-Ikhana-to-Minimize-Drag/internal/optimization/sqp"
	"github.com/Justice-Schoenfeld/Camber-Schedule-Optimization-for-NASA-Ikhana-to-Minimize-Drag/internal/trim"
)

type call struct {
	cl    float64
	guess []float64
	opts  trim.Options
}

// fakeRunner returns X = [cl, cl] and CD = cl, except that CLs listed in
// better get half the drag when started from a higher CL's solution.
type fakeRunner struct {
	mu     sync.Mutex
	calls  []call
	better map[float64]bool
	failAt float64
}

var errRun = stderrors.New("run failed")

func (f *fakeRunner) Run(_ context.Context, _ *trim.Setup, opts trim.Options) (*trim.Solution, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call{cl: opts.TargetCL, guess: opts.InitialGuess, opts: opts})
	f.mu.Unlock()

	if f.failAt != 0 && opts.TargetCL == f.failAt {
		return nil, errRun
	}
	cd := opts.TargetCL
	if f.better[opts.TargetCL] && opts.InitialGuess != nil && opts.InitialGuess[0] > opts.TargetCL {
		cd /= 2
	}
	return &trim.Solution{
		X:         []float64{opts.TargetCL, opts.TargetCL},
		Converged: true,
		CD:        cd,
		CL:        opts.TargetCL,
	}, nil
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Scene = "scene.json"
	cfg.CL = Range{Start: 0.1, Stop: 0.5, Step: 0.1}
	return cfg
}

var setup = &trim.Setup{Name: "Ikhana"}

func TestRangeValues(t *testing.T) {
	tests := []struct {
		name    string
		r       Range
		want    []float64
		wantErr bool
	}{
		{"default", Range{0.1, 0.9, 0.1}, []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9}, false},
		{"single", Range{0.6, 0.6, 0.1}, []float64{0.6}, false},
		{"stop between steps", Range{0, 1, 0.3}, []float64{0, 0.3, 0.6, 0.9}, false},
		{"zero step", Range{0.1, 0.9, 0}, nil, true},
		{"reversed", Range{0.9, 0.1, 0.1}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.r.Values()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig("../../configs/ikhana/study.yaml")
	require.NoError(t, err)

	assert.Equal(t, "../../configs/ikhana/Ikhana_scene_input.json", cfg.Scene)
	assert.Equal(t, "Ikhana", cfg.Aircraft)
	assert.Equal(t, 2, cfg.ControlPoints)
	assert.Equal(t, [2]float64{-10, 10}, cfg.DeflectionBounds)
	assert.True(t, cfg.Chain, "chain defaults on")
	assert.True(t, cfg.DownPass)
	require.NoError(t, cfg.Validate())

	cls, err := cfg.CL.Values()
	require.NoError(t, err)
	assert.Len(t, cls, 9)

	opts := cfg.Options(0.3, []float64{1, 2, 3, 4})
	assert.Equal(t, -10.0, opts.LowerBound)
	assert.Equal(t, 10.0, opts.UpperBound)
	assert.Equal(t, 0.3, opts.TargetCL)
	assert.True(t, opts.Refine)
}

func TestConfigValidate(t *testing.T) {
	cfg := testConfig()
	cfg.DragType = "drag"
	assert.ErrorIs(t, cfg.Validate(), trim.ErrInvalidDragType)

	cfg = testConfig()
	cfg.Scene = ""
	assert.Error(t, cfg.Validate())

	cfg = testConfig()
	cfg.CL.Step = 0
	assert.Error(t, cfg.Validate())

	_, err := ParseConfig([]byte("cl: [1, 2"))
	assert.Error(t, err)
}

func TestChainedSweepWithDownPass(t *testing.T) {
	r := &fakeRunner{better: map[float64]bool{0.3: true}}
	var mu sync.Mutex
	progress := map[string]int{}

	res, err := NewSweeper(r, WithProgress(func(pass string, _ int, _ Point) {
		mu.Lock()
		progress[pass]++
		mu.Unlock()
	})).Sweep(context.Background(), setup, testConfig())
	require.NoError(t, err)

	require.Len(t, r.calls, 9, "five up runs and four down runs")
	assert.Nil(t, r.calls[0].guess, "first run starts from zeros")
	assert.Equal(t, []float64{0.1, 0.1}, r.calls[1].guess)
	assert.Equal(t, []float64{0.4, 0.4}, r.calls[4].guess)

	// Down pass: CL 0.4 from 0.5, 0.3 from 0.4, 0.2 from 0.3, 0.1 from 0.2.
	assert.Equal(t, 0.4, r.calls[5].cl)
	assert.Equal(t, []float64{0.5, 0.5}, r.calls[5].guess)
	assert.Equal(t, 0.1, r.calls[8].cl)

	require.Len(t, res.Points, 5)
	for i, p := range res.Points {
		assert.Equal(t, p.TargetCL == 0.3, p.Changed, "CL %v", p.TargetCL)
		assert.InDelta(t, 0.1*float64(i+1), p.TargetCL, 1e-12)
	}
	assert.Equal(t, 0.15, res.Points[2].Solution.CD)
	assert.Equal(t, 0.3, res.Up[2].Solution.CD)
	assert.False(t, res.Up[2].Changed)

	assert.Equal(t, map[string]int{PassUp: 5, PassDown: 4}, progress)
}

func TestUnchainedParallelSweep(t *testing.T) {
	r := &fakeRunner{}
	cfg := testConfig()
	cfg.Chain = false
	cfg.DownPass = false
	cfg.Parallel = 3

	res, err := NewSweeper(r).Sweep(context.Background(), setup, cfg)
	require.NoError(t, err)

	require.Len(t, r.calls, 5)
	for _, c := range r.calls {
		assert.Nil(t, c.guess)
	}
	require.Len(t, res.Points, 5)
	for i, p := range res.Points {
		assert.InDelta(t, 0.1*float64(i+1), p.TargetCL, 1e-12)
		assert.Equal(t, p.TargetCL, p.Solution.CL)
	}
}

func TestSweepAppliesBaseOptions(t *testing.T) {
	r := &fakeRunner{}
	cfg := testConfig()
	cfg.DownPass = false

	_, err := NewSweeper(r, WithBaseOptions(trim.Options{DragScale: 10, MaxRefinements: 7, Stabilizer: "tail"})).
		Sweep(context.Background(), setup, cfg)
	require.NoError(t, err)

	for _, c := range r.calls {
		assert.Equal(t, 10.0, c.opts.DragScale)
		assert.Equal(t, 7, c.opts.MaxRefinements)
		assert.Equal(t, "tail", c.opts.Stabilizer)
		assert.Equal(t, "Total", c.opts.DragType)
	}
}

func TestSweepErrors(t *testing.T) {
	t.Run("runner error", func(t *testing.T) {
		r := &fakeRunner{failAt: 0.3}
		_, err := NewSweeper(r).Sweep(context.Background(), setup, testConfig())
		assert.ErrorIs(t, err, errRun)
		assert.Len(t, r.calls, 3)
	})

	t.Run("parallel runner error", func(t *testing.T) {
		r := &fakeRunner{failAt: 0.3}
		cfg := testConfig()
		cfg.Chain = false
		cfg.Parallel = 2
		_, err := NewSweeper(r).Sweep(context.Background(), setup, cfg)
		assert.ErrorIs(t, err, errRun)
	})

	t.Run("canceled", func(t *testing.T) {
		r := &fakeRunner{}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := NewSweeper(r).Sweep(ctx, setup, testConfig())
		assert.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, r.calls)
	})

	t.Run("invalid config", func(t *testing.T) {
		r := &fakeRunner{}
		cfg := testConfig()
		cfg.DragType = "Foo"
		_, err := NewSweeper(r).Sweep(context.Background(), setup, cfg)
		assert.ErrorIs(t, err, trim.ErrInvalidDragType)
		assert.Empty(t, r.calls)
	})
}

func TestBaselineSweep(t *testing.T) {
	s, err := trim.LoadSetup("../../configs/ikhana/Ikhana_scene_input.json", "Ikhana")
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Scene = s.SceneFile
	cfg.ControlPoints = 0
	cfg.Refine = false
	cfg.CL = Range{Start: 0.3, Stop: 0.5, Step: 0.2}

	res, err := NewSweeper(trim.NewDriver(sqp.New(sqp.Options{}))).Sweep(context.Background(), s, cfg)
	require.NoError(t, err)

	require.Len(t, res.Points, 2)
	for _, p := range res.Points {
		assert.Less(t, math.Abs(p.Solution.CL-p.TargetCL), 1e-4)
		assert.Less(t, math.Abs(p.Solution.Cm), 1e-4)
	}
	assert.Greater(t, res.Points[1].Solution.CD, res.Points[0].Solution.CD)
	assert.Greater(t, res.Points[1].Solution.Alpha, res.Points[0].Solution.Alpha)
}
