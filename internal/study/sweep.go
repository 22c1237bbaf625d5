package study

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Justice-Schoenfeld/Camber-Schedule-Optimization-for-NASA-Ikhana-to-Minimize-Drag/internal/errors"
	"github.com/Justice-Schoenfeld/Camber-Schedule-Optimization-for-NASA-Ikhana-to-Minimize-Drag/internal/trim"
)

// Passes of a sweep.
const (
	PassUp   = "up"
	PassDown = "down"
)

// Runner runs one trim. *trim.Driver implements it.
type Runner interface {
	Run(ctx context.Context, setup *trim.Setup, opts trim.Options) (*trim.Solution, error)
}

// Timer times labelled sections.
type Timer interface {
	Start(label string)
	Stop(label string) time.Duration
}

// Point is the kept result for one target CL.
type Point struct {
	TargetCL float64        `json:"target_cl"`
	Options  trim.Options   `json:"options"`
	Solution *trim.Solution `json:"solution"`
	// Changed is true when the down pass replaced the up-pass result.
	Changed bool `json:"changed"`
}

// Result is a finished sweep.
type Result struct {
	// Up holds the up-pass results before the down pass touched them.
	Up []Point `json:"up"`
	// Points holds the kept result per CL in ascending CL order.
	Points   []Point       `json:"points"`
	Duration time.Duration `json:"duration"`
}

// Progress is called after every run with the pass and the run's point. For
// the down pass Changed reports whether the run replaced the kept result.
type Progress func(pass string, index int, p Point)

type nopTimer struct{}

func (nopTimer) Start(string)              {}
func (nopTimer) Stop(string) time.Duration { return 0 }

// Sweeper runs sweeps.
type Sweeper struct {
	runner   Runner
	base     trim.Options
	logger   trim.Logger
	timer    Timer
	progress Progress
}

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithBaseOptions supplies the run tuning the sweep description does not
// carry: drag scale, refinement tolerance and cap, and the wing and control
// names.
func WithBaseOptions(o trim.Options) Option {
	return func(s *Sweeper) { s.base = o }
}

// WithLogger sets the logger.
func WithLogger(l trim.Logger) Option {
	return func(s *Sweeper) { s.logger = l }
}

// WithTimer sets the timer.
func WithTimer(t Timer) Option {
	return func(s *Sweeper) { s.timer = t }
}

// WithProgress sets the progress callback. It may be called concurrently in a
// parallel sweep.
func WithProgress(p Progress) Option {
	return func(s *Sweeper) { s.progress = p }
}

// NewSweeper creates a sweeper around a runner.
func NewSweeper(r Runner, opts ...Option) *Sweeper {
	s := &Sweeper{
		runner:   r,
		logger:   nopLogger{},
		timer:    nopTimer{},
		progress: func(string, int, Point) {},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sweep runs cfg against setup. The up pass solves every CL in ascending
// order, chained or not; the optional down pass follows.
func (s *Sweeper) Sweep(ctx context.Context, setup *trim.Setup, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cls, err := cfg.CL.Values()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	s.timer.Start("sweep")
	defer s.timer.Stop("sweep")

	s.logger.Info("Starting sweep", map[string]interface{}{
		"aircraft":       setup.Name,
		"control_points": cfg.ControlPoints,
		"points":         len(cls),
		"chain":          cfg.Chain,
		"down_pass":      cfg.DownPass,
		"parallel":       cfg.Parallel,
	})

	var points []Point
	if cfg.Chain || cfg.Parallel <= 1 {
		points, err = s.sequential(ctx, setup, cfg, cls)
	} else {
		points, err = s.parallel(ctx, setup, cfg, cls)
	}
	if err != nil {
		return nil, err
	}

	res := &Result{Up: append([]Point(nil), points...)}
	if cfg.DownPass {
		if err := s.down(ctx, setup, cfg, points); err != nil {
			return nil, err
		}
	}
	res.Points = points
	res.Duration = time.Since(start)

	s.logger.Info("Sweep finished", map[string]interface{}{
		"aircraft":    setup.Name,
		"points":      len(points),
		"changed":     countChanged(points),
		"duration_ms": res.Duration.Milliseconds(),
	})
	return res, nil
}

func (s *Sweeper) sequential(ctx context.Context, setup *trim.Setup, cfg Config, cls []float64) ([]Point, error) {
	points := make([]Point, len(cls))
	var guess []float64
	for i, cl := range cls {
		p, err := s.run(ctx, setup, cfg, cl, guess)
		if err != nil {
			return nil, err
		}
		points[i] = p
		s.progress(PassUp, i, p)
		if cfg.Chain {
			guess = p.Solution.X
		}
	}
	return points, nil
}

// parallel runs an unchained up pass with at most cfg.Parallel runs in flight.
// Every run builds its own solvers, so nothing is shared between units.
func (s *Sweeper) parallel(ctx context.Context, setup *trim.Setup, cfg Config, cls []float64) ([]Point, error) {
	points := make([]Point, len(cls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Parallel)

	for i, cl := range cls {
		i, cl := i, cl
		g.Go(func() error {
			p, err := s.run(gctx, setup, cfg, cl, nil)
			if err != nil {
				return err
			}
			points[i] = p
			s.progress(PassUp, i, p)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return points, nil
}

// down re-solves CL i from the kept solution at CL i+1, highest first, and
// replaces the kept result when the drag is lower.
func (s *Sweeper) down(ctx context.Context, setup *trim.Setup, cfg Config, points []Point) error {
	for i := len(points) - 2; i >= 0; i-- {
		p, err := s.run(ctx, setup, cfg, points[i].TargetCL, points[i+1].Solution.X)
		if err != nil {
			return err
		}
		if p.Solution.CD < points[i].Solution.CD {
			s.logger.Debug("Down pass improved drag", map[string]interface{}{
				"target_cl": p.TargetCL,
				"old_CD":    points[i].Solution.CD,
				"new_CD":    p.Solution.CD,
			})
			p.Changed = true
			points[i] = p
		}
		s.progress(PassDown, i, p)
	}
	return nil
}

func (s *Sweeper) run(ctx context.Context, setup *trim.Setup, cfg Config, cl float64, guess []float64) (Point, error) {
	select {
	case <-ctx.Done():
		return Point{}, ctx.Err()
	default:
	}

	opts := s.tune(cfg.Options(cl, append([]float64(nil), guess...)))
	sol, err := s.runner.Run(ctx, setup, opts)
	if err != nil {
		return Point{}, errors.Wrapf(err, "trim at CL %v", cl).WithOperation("sweep").WithComponent(component)
	}
	return Point{TargetCL: cl, Options: opts, Solution: sol}, nil
}

func (s *Sweeper) tune(o trim.Options) trim.Options {
	o.DragScale = s.base.DragScale
	o.RefineTolerance = s.base.RefineTolerance
	o.MaxRefinements = s.base.MaxRefinements
	o.AbsLiftConstraint = s.base.AbsLiftConstraint
	o.FlapControl = s.base.FlapControl
	o.MainWing = s.base.MainWing
	o.Stabilizer = s.base.Stabilizer
	return o
}

func countChanged(points []Point) int {
	n := 0
	for _, p := range points {
		if p.Changed {
			n++
		}
	}
	return n
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...map[string]interface{}) {}
func (nopLogger) Info(string, ...map[string]interface{})  {}
func (nopLogger) Warn(string, ...map[string]interface{})  {}
func (nopLogger) Error(string, ...map[string]interface{}) {}
