package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/weiihann/lapbench/report"
)

func newRenderCmd(logger *slog.Logger) *cobra.Command {
	var (
		plotPath  string
		plotTitle string
		noPlot    bool
	)

	cmd := &cobra.Command{
		Use:   "render RESULTS.json",
		Short: "Print the table and chart of a saved JSON result set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rs, err := readResultSet(args[0])
			if err != nil {
				return err
			}

			if err := report.Generate(cmd.OutOrStdout(), rs); err != nil {
				return fmt.Errorf("generate report: %w", err)
			}

			if noPlot {
				return nil
			}

			return report.Chart(logger, rs, report.ChartConfig{
				Path:  plotPath,
				Title: plotTitle,
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&plotPath, "plot", "lap-benchmark.png",
		"Chart output file; format follows the extension (png, svg, pdf)")
	flags.StringVar(&plotTitle, "plot-title", "",
		"Chart title")
	flags.BoolVar(&noPlot, "no-plot", false,
		"Only print the table")

	return cmd
}
