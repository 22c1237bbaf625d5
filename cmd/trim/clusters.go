package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Justice-Schoenfeld/Camber-Schedule-Optimization-for-NASA-Ikhana-to-Minimize-Drag/internal/span"
)

func newClustersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clusters <control-points>",
		Short: "Print the main wing's panel clustering locations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("control points: %w", err)
			}
			points, err := span.CosClusterPoints(n)
			if err != nil {
				return err
			}
			for _, p := range points {
				fmt.Fprintln(cmd.OutOrStdout(), strconv.FormatFloat(p, 'f', -1, 64))
			}
			return nil
		},
	}
}
