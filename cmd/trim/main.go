// Command trim runs Ikhana trim optimizations and CL sweeps from the command
// line.
//
// Usage:
//
//	trim run --cl 0.5 -n 2
//	trim sweep --config configs/ikhana/study.yaml
//	trim clusters 4
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	_ "go.uber.org/automaxprocs"
	"go.uber.org/zap"

	"github.com/Justice-Schoenfeld/Camber-Schedule-Optimization-for-NASA-Ikhana-to-Minimize-Drag/internal/config"
	"github.com/Justice-Schoenfeld/Camber-Schedule-Optimization-for-NASA-Ikhana-to-Minimize-Drag/internal/logging"
	"github.com/Justice-Schoenfeld/Camber-Schedule-Optimization-for-NASA-Ikhana-to-Minimize-Drag/internal/timing"
)

// app carries what every subcommand shares. It is filled in by the root
// command's PersistentPreRunE.
type app struct {
	cfg    *config.Config
	logger *logging.Logger
	timer  *timing.Timer

	logLevel  string
	logFormat string
	outDir    string
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "trim",
		Short: "Minimum-drag camber schedules for the Ikhana",
		Long: `Trim the Ikhana at a target lift coefficient while minimizing drag.

The design vector holds one trailing-edge deflection per control point on the
main wing, the horizontal stabilizer incidence and the angle of attack.
Optimizer and trim tuning come from the environment (OPT_*, TRIM_*, RESULTS_*).`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error); defaults to LOG_LEVEL")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "text", "log format (text, json)")
	root.PersistentFlags().StringVarP(&a.outDir, "out", "o", "", "output directory; defaults to RESULTS_DIR")

	root.AddCommand(newRunCmd(a), newSweepCmd(a), newClustersCmd())
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	a.cfg = cfg

	level := a.logLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.NewLogger(&logging.Config{Level: level, Format: a.logFormat, Output: "stderr"})
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	a.logger = logger.WithFields(map[string]interface{}{"command": cmd.Name()})
	a.timer = timing.New(logging.NewZapLogger(a.logger).With(zap.String("component", "timing")))

	if a.outDir == "" {
		a.outDir = cfg.Results.Dir
	}
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
