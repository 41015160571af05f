// Package main provides the CLI entry point for lapbench, a benchmark of
// linear assignment problem solvers over a sweep of matrix sizes.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/weiihann/lapbench/config"
)

func main() {
	level := new(slog.LevelVar)
	level.Set(slog.LevelInfo)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	root := newRootCmd(logger, level)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd(logger *slog.Logger, level *slog.LevelVar) *cobra.Command {
	root := &cobra.Command{
		Use:   "lapbench",
		Short: "Benchmark linear assignment problem solvers",
		Long: `Lapbench times interchangeable solvers of the linear assignment problem
on random square cost matrices of sizes base^min .. base^max. Every solver
sees the same matrix in a cycle; timings are averaged over cycles.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newRunCmd(logger, level))
	root.AddCommand(newSolversCmd())
	root.AddCommand(newRenderCmd(logger))

	return root
}

func newSolversCmd() *cobra.Command {
	var base int

	cmd := &cobra.Command{
		Use:   "solvers",
		Short: "List built-in solvers and their default size ceilings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if base < 2 {
				return &config.ConfigurationError{
					Field:  "base",
					Reason: fmt.Sprintf("must be at least 2, got %d", base),
				}
			}

			return listSolvers(cmd.OutOrStdout(), base)
		},
	}

	cmd.Flags().IntVar(&base, "base", config.Default().Base,
		"Base the ceilings are exponents of")

	return cmd
}
