package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Justice-Schoenfeld/Camber-Schedule-Optimization-for-NASA-Ikhana-to-Minimize-Drag/internal/record"
	"github.com/Justice-Schoenfeld/Camber-Schedule-Optimization-for-NASA-Ikhana-to-Minimize-Drag/internal/study"
	"github.com/Justice-Schoenfeld/Camber-Schedule-Optimization-for-NASA-Ikhana-to-Minimize-Drag/internal/trim"
)

type sweepFlags struct {
	config   string
	parallel int
	plot     bool
	db       string
}

func newSweepCmd(a *app) *cobra.Command {
	f := &sweepFlags{}

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Trim over a range of lift coefficients",
		Long: `Run the CL sweep described by a study file.

A chained sweep starts every CL from the previous solution. The down pass then
re-solves each CL from the next higher CL's solution and keeps whichever has
less drag. The polar, deflection, solution and changed tables are written to
the output directory together with each run's files, and the up-pass results
as __UP tables. Plots of the polar, angle of attack, stabilizer angle and
camber schedules are saved alongside.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.sweep(cmd, f)
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.config, "config", "c", "configs/ikhana/study.yaml", "study file")
	fl.IntVar(&f.parallel, "parallel", 0, "concurrent runs of an unchained sweep; overrides the study file")
	fl.BoolVar(&f.plot, "plot", true, "plot the polar, trim angles and camber schedules")
	fl.StringVar(&f.db, "db", "", "results database; defaults to RESULTS_DB")

	return cmd
}

func (a *app) sweep(cmd *cobra.Command, f *sweepFlags) error {
	cfg, err := study.LoadConfig(f.config)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("parallel") {
		cfg.Parallel = f.parallel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	setup, err := trim.LoadSetup(cfg.Scene, cfg.Aircraft)
	if err != nil {
		return err
	}
	m, err := trim.NewMinimizer(a.cfg.OptimizerConfig())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	sweeper := study.NewSweeper(trim.NewDriver(m, trim.WithLogger(a.logger)),
		study.WithBaseOptions(a.cfg.TrimOptions()),
		study.WithLogger(a.logger),
		study.WithTimer(a.timer),
		study.WithProgress(func(pass string, _ int, p study.Point) {
			fmt.Fprintf(out, "%-4s CL %-4s CD %.6f alpha %8.4f stabilizer %8.4f changed %t\n",
				pass, record.FormatCL(p.TargetCL), p.Solution.CD, p.Solution.Alpha, p.Solution.Stabilizer, p.Changed)
		}),
	)

	res, err := sweeper.Sweep(cmd.Context(), setup, *cfg)
	if err != nil {
		return err
	}

	recs := records(setup, res.Points)
	w := record.NewWriter(a.outDir, a.cfg.Results.DumpForces)
	for _, rec := range recs {
		if _, err := w.Write(rec); err != nil {
			return err
		}
	}
	if err := w.WriteSweep(recs, records(setup, res.Up)); err != nil {
		return err
	}
	if f.plot {
		if err := w.PlotSweep(recs, fmt.Sprintf("%s, %d control points", cfg.Aircraft, cfg.ControlPoints)); err != nil {
			return err
		}
	}

	id := uuid.New().String()
	if err := a.save(cmd, f.db, id, recs); err != nil {
		return err
	}

	a.logger.Info("Wrote sweep results", map[string]interface{}{
		"study_id": id,
		"runs":     len(recs),
		"duration": res.Duration.String(),
		"out":      w.Dir(),
	})
	return nil
}

func records(setup *trim.Setup, points []study.Point) []*record.Record {
	recs := make([]*record.Record, len(points))
	for i, p := range points {
		recs[i] = record.New(setup, p.Options, p.Solution, time.Now())
		recs[i].Changed = p.Changed
	}
	return recs
}

func (a *app) save(cmd *cobra.Command, path, id string, recs []*record.Record) error {
	if path == "" {
		path = a.cfg.Results.DB
	}
	store, err := record.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	for _, rec := range recs {
		if err := store.SaveRun(cmd.Context(), id, rec); err != nil {
			return err
		}
	}
	return nil
}
