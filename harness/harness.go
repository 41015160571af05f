package harness

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/weiihann/lapbench/config"
	"github.com/weiihann/lapbench/solver"
	"golang.org/x/perf/benchmath"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// summaryConfidence is the confidence level of Entry.Lo and Entry.Hi.
const summaryConfidence = 0.95

// MatrixSource produces the cost matrix for one cycle. Each call must return
// a new matrix.
type MatrixSource interface {
	Generate(size int) (*mat.Dense, error)
}

// RunConfig holds the parameters of one sweep.
type RunConfig struct {
	// Sizes are visited in order; they must be positive and increasing.
	Sizes  []int
	Cycles int

	// CheckCost recomputes every assignment's cost from the matrix, compares
	// it with the reported cost, and cross-checks costs between solvers.
	// Assignments are checked to be perfect matchings regardless.
	CheckCost bool
	// Tolerance is the absolute cost tolerance. Zero selects
	// solver.DefaultTolerance for each size.
	Tolerance float64
	// SkipFailed drops a solver that returns an error instead of aborting
	// the sweep.
	SkipFailed bool
}

func (c RunConfig) validate() error {
	if len(c.Sizes) == 0 {
		return &config.ConfigurationError{Field: "sizes", Reason: "empty sweep"}
	}
	if c.Cycles < 1 {
		return &config.ConfigurationError{
			Field:  "cycles",
			Reason: fmt.Sprintf("must be at least 1, got %d", c.Cycles),
		}
	}
	if c.Tolerance < 0 {
		return &config.ConfigurationError{
			Field:  "tolerance",
			Reason: fmt.Sprintf("must not be negative, got %g", c.Tolerance),
		}
	}

	for i, s := range c.Sizes {
		if s <= 0 {
			return &config.ConfigurationError{
				Field:  "sizes",
				Reason: fmt.Sprintf("size %d is not positive", s),
			}
		}
		if i > 0 && s <= c.Sizes[i-1] {
			return &config.ConfigurationError{
				Field:  "sizes",
				Reason: fmt.Sprintf("sizes not increasing at %d", s),
			}
		}
	}

	return nil
}

func (c RunConfig) tolerance(size int) float64 {
	if c.Tolerance > 0 {
		return c.Tolerance
	}

	return solver.DefaultTolerance(size)
}

// Runner drives a sweep: for each size it runs Cycles cycles, each on one
// fresh matrix shared by every eligible solver, and averages the timings.
// It is single-threaded and not safe for concurrent use.
type Runner struct {
	Registry *Registry
	Source   MatrixSource
	Logger   *slog.Logger

	now      func() time.Time
	state    State
	disabled map[string]bool
}

// NewRunner creates a Runner over the registry's solvers.
func NewRunner(reg *Registry, src MatrixSource, logger *slog.Logger) *Runner {
	return &Runner{
		Registry: reg,
		Source:   src,
		Logger:   logger,
		now:      time.Now,
		state:    StateIdle,
	}
}

// State returns the runner's current state.
func (r *Runner) State() State {
	return r.state
}

func (r *Runner) setState(s State) {
	if r.state == s {
		return
	}

	r.Logger.Debug("runner state",
		slog.String("from", r.state.String()),
		slog.String("to", s.String()),
	)
	r.state = s
}

// accumulator collects one solver's timings at one size. It only advances
// on cycles where the solver actually ran.
type accumulator struct {
	sum     time.Duration
	samples []time.Duration
}

func (a *accumulator) add(d time.Duration) {
	a.sum += d
	a.samples = append(a.samples, d)
}

func (a *accumulator) count() int {
	return len(a.samples)
}

// trial is the outcome of one invocation.
type trial struct {
	elapsed time.Duration
	sol     solver.Solution
}

type solverCost struct {
	name string
	cost float64
}

// Run executes the sweep. A solver error aborts the sweep with a
// *SolverFailure unless cfg.SkipFailed is set. Every returned assignment is
// checked to be a perfect matching; contract violations only drop the
// offending solver. ctx is checked between invocations, never
// during one.
func (r *Runner) Run(ctx context.Context, cfg RunConfig) (*ResultSet, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if r.Registry == nil || r.Registry.Len() == 0 {
		return nil, &config.ConfigurationError{Field: "solvers", Reason: "no solvers registered"}
	}

	rs := newResultSet(uuid.New().String(), r.Registry.Names(), cfg.Sizes)
	rs.Base = r.Registry.Base()
	rs.Cycles = cfg.Cycles
	rs.CostChecked = cfg.CheckCost
	rs.StartedAt = time.Now().UTC()

	r.disabled = make(map[string]bool)

	r.Logger.InfoContext(ctx, "starting sweep",
		slog.String("run_id", rs.RunID),
		slog.Any("sizes", cfg.Sizes),
		slog.Int("cycles", cfg.Cycles),
		slog.Any("solvers", rs.Solvers),
		slog.Bool("check_cost", cfg.CheckCost),
	)

	r.setState(StateSweeping)

	for _, size := range cfg.Sizes {
		if err := r.runSize(ctx, cfg, size, rs); err != nil {
			r.setState(StateIdle)

			return nil, err
		}
	}

	r.setState(StateDone)
	rs.FinishedAt = time.Now().UTC()

	r.Logger.InfoContext(ctx, "sweep complete",
		slog.String("run_id", rs.RunID),
		slog.Duration("wall_time", rs.FinishedAt.Sub(rs.StartedAt)),
		slog.Int("mismatches", len(rs.Mismatches)),
		slog.Int("failures", len(rs.Failures)),
	)

	return rs, nil
}

func (r *Runner) runSize(ctx context.Context, cfg RunConfig, size int, rs *ResultSet) error {
	accs := make(map[string]*accumulator, r.Registry.Len())
	sizeStart := time.Now()

	for cycle := range cfg.Cycles {
		r.setState(StateCycling)

		if err := ctx.Err(); err != nil {
			return err
		}

		cost, err := r.Source.Generate(size)
		if err != nil {
			return fmt.Errorf("generate %dx%d matrix: %w", size, size, err)
		}

		r.Logger.Debug("cycle",
			slog.Int("size", size),
			slog.Int("cycle", cycle),
		)

		var costs []solverCost

		for _, e := range r.Registry.entries {
			name := e.desc.Name
			if r.disabled[name] || !eligible(e.desc, r.Registry.base, size) {
				continue
			}

			if err := ctx.Err(); err != nil {
				return err
			}

			r.setState(StateInvoking)

			t, err := r.invoke(e.solver, cost)
			if err != nil {
				failure := &SolverFailure{Solver: name, Size: size, Cycle: cycle, Err: err}
				if !cfg.SkipFailed {
					return failure
				}

				r.drop(ctx, rs, FailureRuntime, failure)

				continue
			}

			if verr := solver.ValidateAssignment(cost, t.sol); verr != nil {
				r.drop(ctx, rs, FailureContract, &SolverContractViolation{
					Solver: name, Size: size, Cycle: cycle, Err: verr,
				})

				continue
			}

			if cfg.CheckCost {
				actual, verr := solver.Validate(cost, t.sol, cfg.tolerance(size))
				if verr != nil {
					r.drop(ctx, rs, FailureContract, &SolverContractViolation{
						Solver: name, Size: size, Cycle: cycle, Err: verr,
					})

					continue
				}

				costs = append(costs, solverCost{name: name, cost: actual})

				r.Logger.InfoContext(ctx, "minimum cost",
					slog.String("solver", name),
					slog.Int("size", size),
					slog.Int("cycle", cycle),
					slog.Float64("cost", actual),
				)
			}

			if t.elapsed <= 0 {
				r.Logger.WarnContext(ctx, "non-positive elapsed time, keeping sample",
					slog.String("solver", name),
					slog.Int("size", size),
					slog.Int("cycle", cycle),
					slog.Duration("elapsed", t.elapsed),
				)
			}

			acc, ok := accs[name]
			if !ok {
				acc = &accumulator{}
				accs[name] = acc
			}
			acc.add(t.elapsed)
		}

		if cfg.CheckCost {
			r.crossCheck(ctx, rs, size, cycle, costs, cfg.tolerance(size))
		}
	}

	r.setState(StateFinalizing)

	for _, name := range rs.Solvers {
		acc, ok := accs[name]
		if !ok || acc.count() == 0 {
			continue
		}

		entry := summarize(size, acc)
		rs.add(name, entry)

		r.Logger.Debug("size finalized",
			slog.String("solver", name),
			slog.Int("size", size),
			slog.Int("cycles", entry.Cycles),
			slog.Duration("mean", entry.Mean),
		)
	}

	r.Logger.InfoContext(ctx, "size done",
		slog.Int("size", size),
		slog.Int("solvers", len(accs)),
		slog.Duration("wall_time", time.Since(sizeStart)),
	)

	r.setState(StateSweeping)

	return nil
}

// invoke times a single Solve call. Only the call itself is inside the
// timed region. A panic is turned into an error.
func (r *Runner) invoke(s solver.Solver, cost *mat.Dense) (t trial, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()

	start := r.now()
	sol, err := s.Solve(cost)
	t.elapsed = r.now().Sub(start)
	t.sol = sol

	return t, err
}

func (r *Runner) drop(ctx context.Context, rs *ResultSet, kind FailureKind, err error) {
	var f Failure

	switch e := err.(type) {
	case *SolverContractViolation:
		f = Failure{Solver: e.Solver, Size: e.Size, Cycle: e.Cycle}
	case *SolverFailure:
		f = Failure{Solver: e.Solver, Size: e.Size, Cycle: e.Cycle}
	}

	f.Kind = kind
	f.Err = err
	f.Message = err.Error()

	rs.Failures = append(rs.Failures, f)
	r.disabled[f.Solver] = true

	r.Logger.ErrorContext(ctx, "solver dropped from sweep",
		slog.String("solver", f.Solver),
		slog.String("kind", string(kind)),
		slog.Int("size", f.Size),
		slog.Int("cycle", f.Cycle),
		slog.String("error", err.Error()),
	)
}

// crossCheck compares every validated cost of a cycle with the first one.
func (r *Runner) crossCheck(
	ctx context.Context,
	rs *ResultSet,
	size, cycle int,
	costs []solverCost,
	tol float64,
) {
	if len(costs) < 2 {
		return
	}

	ref := costs[0]
	for _, c := range costs[1:] {
		if math.Abs(c.cost-ref.cost) <= tol {
			continue
		}

		rs.Mismatches = append(rs.Mismatches, CostMismatch{
			Size:          size,
			Cycle:         cycle,
			Reference:     ref.name,
			ReferenceCost: ref.cost,
			Solver:        c.name,
			Cost:          c.cost,
		})

		r.Logger.ErrorContext(ctx, "solvers disagree on minimum cost",
			slog.Int("size", size),
			slog.Int("cycle", cycle),
			slog.String("reference", ref.name),
			slog.Float64("reference_cost", ref.cost),
			slog.String("solver", c.name),
			slog.Float64("cost", c.cost),
			slog.Float64("tolerance", tol),
		)
	}
}

func summarize(size int, acc *accumulator) Entry {
	n := acc.count()

	e := Entry{
		Size:       size,
		Mean:       acc.sum / time.Duration(n),
		Cycles:     n,
		Samples:    slices.Clone(acc.samples),
		Confidence: summaryConfidence,
	}

	secs := make([]float64, n)
	for i, d := range acc.samples {
		secs[i] = d.Seconds()
	}

	if n > 1 {
		e.StdDev = fromSeconds(stat.StdDev(secs, nil))
	}

	lo, hi := slices.Min(acc.samples), slices.Max(acc.samples)

	// NewSample sorts its input; secs is not used afterwards.
	sample := benchmath.NewSample(secs, &benchmath.DefaultThresholds)
	summary := benchmath.AssumeNothing.Summary(sample, summaryConfidence)

	e.Median = finiteOr(summary.Center, e.Mean)
	e.Lo = finiteOr(summary.Lo, lo)
	e.Hi = finiteOr(summary.Hi, hi)

	for _, w := range summary.Warnings {
		e.Warnings = append(e.Warnings, w.Error())
	}

	return e
}

func fromSeconds(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}

func finiteOr(s float64, fallback time.Duration) time.Duration {
	if math.IsNaN(s) || math.IsInf(s, 0) {
		return fallback
	}

	return fromSeconds(s)
}
