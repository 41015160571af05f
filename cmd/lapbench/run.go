package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/weiihann/lapbench/config"
	"github.com/weiihann/lapbench/harness"
	"github.com/weiihann/lapbench/report"
	"github.com/weiihann/lapbench/solver"
	"github.com/weiihann/lapbench/workload"
)

// errInconsistent is returned after reporting when solvers disagreed on a
// minimum cost or broke their contract.
var errInconsistent = errors.New("solver results are inconsistent, see report")

// runFlags mirrors config.Config. A flag only overrides the configuration
// when it was set on the command line.
type runFlags struct {
	configPath   string
	minDim       int
	maxDim       int
	cycles       int
	base         int
	inclusive    bool
	solvers      []string
	ceilings     map[string]int
	checkCost    bool
	tolerance    float64
	skipFailed   bool
	seed         int64
	distribution string
	low          float64
	high         float64
	verbose      bool
	noPlot       bool
	plotPath     string
	plotTitle    string
	outputJSON   bool
	sqlitePath   string
}

func newRunCmd(logger *slog.Logger, level *slog.LevelVar) *cobra.Command {
	var f runFlags

	def := config.Default()

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the solver benchmark sweep",
		Long: `Generate random cost matrices of sizes base^floor(log(min)) up to
base^ceil(log(max)) (exclusive unless --inclusive) and time every
eligible solver on each of them.

The command writes:
  1) a table of mean times per solver and matrix size
  2) a log-log chart of the same data (unless --no-plot)`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd.Flags(), f)
			if err != nil {
				return err
			}

			if cfg.Verbose {
				level.Set(slog.LevelDebug)
			}

			return runBenchmark(cmd.Context(), logger, cmd.OutOrStdout(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.configPath, "config", "",
		"Path to a YAML configuration file")
	flags.IntVar(&f.minDim, "min", def.MinDim,
		"Minimum dimension of the cost matrix")
	flags.IntVar(&f.maxDim, "max", def.MaxDim,
		"Maximum dimension of the cost matrix")
	flags.IntVar(&f.cycles, "cycles", def.Cycles,
		"Number of matrices solved and averaged per size")
	flags.IntVar(&f.base, "base", def.Base,
		"Matrix sizes are powers of this base")
	flags.BoolVar(&f.inclusive, "inclusive", def.Inclusive,
		"Include the maximum size when it is an exact power of the base")
	flags.StringSliceVar(&f.solvers, "solvers", nil,
		"Solvers to benchmark, in order (default: all built-ins)")
	flags.StringToIntVar(&f.ceilings, "ceiling", nil,
		"Per-solver size ceiling as an exponent of the base, e.g. munkres=9 (-1 = none)")
	flags.BoolVarP(&f.checkCost, "check-cost", "c", def.CheckCost,
		"Validate assignments, print the minimum cost and cross-check solvers")
	flags.Float64Var(&f.tolerance, "tolerance", def.Tolerance,
		"Absolute cost tolerance (0 = 1e-6 * n)")
	flags.BoolVar(&f.skipFailed, "skip-failed", def.SkipFailed,
		"Drop a solver that returns an error instead of aborting the sweep")
	flags.Int64Var(&f.seed, "seed", def.Seed,
		"Random seed (0 = use current time)")
	flags.StringVar(&f.distribution, "distribution", def.Distribution,
		"Cost distribution: uniform, scaled, integer")
	flags.Float64Var(&f.low, "low", def.Low,
		"Lower bound of uniform and integer costs")
	flags.Float64Var(&f.high, "high", def.High,
		"Upper bound of uniform and integer costs")
	flags.BoolVarP(&f.verbose, "verbose", "v", def.Verbose,
		"Log every cycle and state transition")
	flags.BoolVar(&f.noPlot, "no-plot", !def.Plot.Enabled,
		"Do not render the chart")
	flags.StringVar(&f.plotPath, "plot", def.Plot.Path,
		"Chart output file; format follows the extension (png, svg, pdf)")
	flags.StringVar(&f.plotTitle, "plot-title", def.Plot.Title,
		"Chart title")
	flags.BoolVar(&f.outputJSON, "json", def.Output.JSON,
		"Output results as JSON instead of a table")
	flags.StringVar(&f.sqlitePath, "sqlite", def.Output.SQLite,
		"Append results to this SQLite database")

	return cmd
}

// resolveConfig layers defaults, the optional config file and explicitly
// set flags, then validates the result.
func resolveConfig(fs *pflag.FlagSet, f runFlags) (config.Config, error) {
	cfg := config.Default()

	if f.configPath != "" {
		var err error

		cfg, err = config.Load(f.configPath)
		if err != nil {
			return cfg, err
		}
	}

	set := func(name string, apply func()) {
		if fs.Changed(name) {
			apply()
		}
	}

	set("min", func() { cfg.MinDim = f.minDim })
	set("max", func() { cfg.MaxDim = f.maxDim })
	set("cycles", func() { cfg.Cycles = f.cycles })
	set("base", func() { cfg.Base = f.base })
	set("inclusive", func() { cfg.Inclusive = f.inclusive })
	set("solvers", func() { cfg.Solvers = f.solvers })
	set("ceiling", func() {
		if cfg.Ceilings == nil {
			cfg.Ceilings = make(map[string]int, len(f.ceilings))
		}
		for name, c := range f.ceilings {
			cfg.Ceilings[name] = c
		}
	})
	set("check-cost", func() { cfg.CheckCost = f.checkCost })
	set("tolerance", func() { cfg.Tolerance = f.tolerance })
	set("skip-failed", func() { cfg.SkipFailed = f.skipFailed })
	set("seed", func() { cfg.Seed = f.seed })
	set("distribution", func() { cfg.Distribution = f.distribution })
	set("low", func() { cfg.Low = f.low })
	set("high", func() { cfg.High = f.high })
	set("verbose", func() { cfg.Verbose = f.verbose })
	set("no-plot", func() { cfg.Plot.Enabled = !f.noPlot })
	set("plot", func() { cfg.Plot.Path = f.plotPath })
	set("plot-title", func() { cfg.Plot.Title = f.plotTitle })
	set("json", func() { cfg.Output.JSON = f.outputJSON })
	set("sqlite", func() { cfg.Output.SQLite = f.sqlitePath })

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// buildRegistry registers the selected built-in solvers with their
// effective ceilings.
func buildRegistry(cfg config.Config) (*harness.Registry, error) {
	builtins := solver.Builtins()
	byName := lo.KeyBy(builtins, func(b solver.Builtin) string { return b.Name })

	names := cfg.Solvers
	if len(names) == 0 {
		names = lo.Map(builtins, func(b solver.Builtin, _ int) string { return b.Name })
	}

	for name := range cfg.Ceilings {
		if _, ok := byName[name]; !ok {
			return nil, &config.ConfigurationError{
				Field:  "ceilings",
				Reason: fmt.Sprintf("unknown solver %q", name),
			}
		}
	}

	reg := harness.NewRegistry(cfg.Base)

	for _, name := range names {
		b, ok := byName[name]
		if !ok {
			return nil, &config.ConfigurationError{
				Field:  "solvers",
				Reason: fmt.Sprintf("unknown solver %q (known: %v)", name, lo.Keys(byName)),
			}
		}

		ceiling := b.Ceiling
		if c, ok := cfg.CeilingFor(name); ok {
			ceiling = c
		}

		if err := reg.Register(harness.Descriptor{Name: name, SizeCeiling: ceiling}, b.Solver); err != nil {
			return nil, &config.ConfigurationError{Field: "solvers", Reason: err.Error()}
		}
	}

	return reg, nil
}

func runBenchmark(
	ctx context.Context,
	logger *slog.Logger,
	out io.Writer,
	cfg config.Config,
) error {
	reg, err := buildRegistry(cfg)
	if err != nil {
		return err
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	limits := make(map[string]string, reg.Len())
	for _, d := range reg.Descriptors() {
		limits[d.Name] = ceilingString(cfg.Base, d)
	}

	logger.InfoContext(ctx, "starting benchmark",
		slog.Int("min_dim", cfg.MinDim),
		slog.Int("max_dim", cfg.MaxDim),
		slog.Int("cycles", cfg.Cycles),
		slog.String("distribution", cfg.Distribution),
		slog.Int64("seed", seed),
		slog.Any("limits", limits),
	)

	gen := workload.NewGenerator(workload.Config{
		Distribution: cfg.Distribution,
		Low:          cfg.Low,
		High:         cfg.High,
		Seed:         seed,
	})

	runner := harness.NewRunner(reg, gen, logger)

	rs, err := runner.Run(ctx, harness.RunConfig{
		Sizes:      cfg.Sizes(),
		Cycles:     cfg.Cycles,
		CheckCost:  cfg.CheckCost,
		Tolerance:  cfg.Tolerance,
		SkipFailed: cfg.SkipFailed,
	})
	if err != nil {
		return fmt.Errorf("run sweep: %w", err)
	}

	if cfg.Output.JSON {
		if err := report.GenerateJSON(out, rs); err != nil {
			return fmt.Errorf("generate JSON report: %w", err)
		}
	} else {
		if err := report.Generate(out, rs); err != nil {
			return fmt.Errorf("generate report: %w", err)
		}
	}

	if cfg.Plot.Enabled {
		if err := report.Chart(logger, rs, report.ChartConfig{
			Path:  cfg.Plot.Path,
			Title: cfg.Plot.Title,
		}); err != nil {
			return fmt.Errorf("render chart: %w", err)
		}
	}

	if cfg.Output.SQLite != "" {
		if err := saveSQLite(ctx, cfg.Output.SQLite, rs); err != nil {
			return err
		}

		logger.InfoContext(ctx, "results stored",
			slog.String("path", cfg.Output.SQLite),
			slog.String("run_id", rs.RunID),
		)
	}

	logger.InfoContext(ctx, "benchmark complete")

	if !rs.Consistent() {
		return errInconsistent
	}

	return nil
}

func saveSQLite(ctx context.Context, path string, rs *harness.ResultSet) error {
	store, err := report.OpenStore(path)
	if err != nil {
		return fmt.Errorf("open results db: %w", err)
	}
	defer store.Close()

	if err := store.Save(ctx, rs); err != nil {
		return fmt.Errorf("save results: %w", err)
	}

	return nil
}

func ceilingString(base int, d harness.Descriptor) string {
	if d.SizeCeiling == harness.NoCeiling {
		return "none"
	}

	return fmt.Sprintf("%d^%d=%d", base, d.SizeCeiling, d.MaxSize(base))
}

// listSolvers prints the built-in solvers with their default ceilings
// resolved against base.
func listSolvers(w io.Writer, base int) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintln(tw, "NAME\tCEILING\tDESCRIPTION")

	for _, b := range solver.Builtins() {
		d := harness.Descriptor{Name: b.Name, SizeCeiling: b.Ceiling}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", b.Name, ceilingString(base, d), b.Description)
	}

	return tw.Flush()
}

func readResultSet(path string) (*harness.ResultSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read results %s: %w", path, err)
	}

	var rs harness.ResultSet
	if err := json.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("decode results %s: %w", path, err)
	}

	return &rs, nil
}
