package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Justice-Schoenfeld/Camber-Schedule-Optimization-for-NASA-Ikhana-to-Minimize-Drag/internal/record"
	"github.com/Justice-Schoenfeld/Camber-Schedule-Optimization-for-NASA-Ikhana-to-Minimize-Drag/internal/trim"
)

const defaultScene = "configs/ikhana/Ikhana_scene_input.json"

type runFlags struct {
	scene         string
	aircraft      string
	controlPoints int
	cl            float64
	guess         []float64
	dragType      string
	bounds        []float64
	refine        bool
	dumpForces    bool
	db            string
}

func newRunCmd(a *app) *cobra.Command {
	f := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Trim at one lift coefficient",
		Long: `Minimize drag at the target CL subject to zero pitching moment.

With zero control points only the stabilizer and the angle of attack are
solved for, which gives the baseline without flaps. The text summary is written
to stdout and, with the forces and distributions, to the output directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, f)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.scene, "scene", defaultScene, "scene input file")
	fl.StringVar(&f.aircraft, "aircraft", "Ikhana", "aircraft name in the scene")
	fl.IntVarP(&f.controlPoints, "control-points", "n", 0, "number of flap control points")
	fl.Float64Var(&f.cl, "cl", 0, "target lift coefficient")
	fl.Float64SliceVar(&f.guess, "guess", nil, "initial design vector: deflections, stabilizer, alpha")
	fl.StringVar(&f.dragType, "drag-type", string(trim.DragTotal), "drag to minimize (Total, Inviscid, Viscous)")
	fl.Float64SliceVar(&f.bounds, "bounds", []float64{-25, 25}, "lower,upper deflection bound (deg)")
	fl.BoolVar(&f.refine, "refine", true, "re-run from each solution until it stops moving")
	fl.BoolVar(&f.dumpForces, "dump-forces", false, "include the full forces breakdown in the summary")
	fl.StringVar(&f.db, "db", "", "results database to record the run in")
	_ = cmd.MarkFlagRequired("cl")

	return cmd
}

func (a *app) run(cmd *cobra.Command, f *runFlags) error {
	if len(f.bounds) != 2 {
		return fmt.Errorf("--bounds takes two values, got %d", len(f.bounds))
	}

	setup, err := trim.LoadSetup(f.scene, f.aircraft)
	if err != nil {
		return err
	}
	m, err := trim.NewMinimizer(a.cfg.OptimizerConfig())
	if err != nil {
		return err
	}

	opts := a.cfg.TrimOptions()
	opts.Aircraft = f.aircraft
	opts.ControlPoints = f.controlPoints
	opts.TargetCL = f.cl
	opts.LowerBound, opts.UpperBound = f.bounds[0], f.bounds[1]
	opts.Refine = f.refine
	opts.InitialGuess = f.guess
	opts.DragType = f.dragType

	label := fmt.Sprintf("trim CL %s", record.FormatCL(f.cl))
	a.timer.Start(label)
	sol, err := trim.NewDriver(m, trim.WithLogger(a.logger)).Run(cmd.Context(), setup, opts)
	a.timer.Stop(label)
	if err != nil {
		return err
	}

	rec := record.New(setup, opts, sol, time.Now())
	if err := record.WriteText(cmd.OutOrStdout(), rec, f.dumpForces); err != nil {
		return err
	}

	files, err := record.NewWriter(a.outDir, f.dumpForces).Write(rec)
	if err != nil {
		return err
	}
	a.logger.Info("Wrote results", map[string]interface{}{
		"summary":       files.Text,
		"forces":        files.Forces,
		"distributions": files.Distributions,
	})

	if f.db == "" {
		return nil
	}
	store, err := record.Open(f.db)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.SaveRun(cmd.Context(), rec.ID.String(), rec)
}
