package harness

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiihann/lapbench/config"
	"github.com/weiihann/lapbench/solver"
	"github.com/weiihann/lapbench/workload"
	"gonum.org/v1/gonum/mat"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeClock only moves when a fake solver advances it, so every
// invocation's elapsed time is exactly what the solver declares.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

// stub is a scripted solver. It solves correctly with the Hungarian
// method unless told otherwise and records every matrix it sees.
type stub struct {
	clock    *fakeClock
	durs     []time.Duration
	calls    int
	sizes    []int
	matrices []*mat.Dense
	solve    func(cost mat.Matrix) (solver.Solution, error)
}

func (s *stub) Solve(cost mat.Matrix) (solver.Solution, error) {
	if s.clock != nil && len(s.durs) > 0 {
		s.clock.t = s.clock.t.Add(s.durs[s.calls%len(s.durs)])
	}
	s.calls++

	r, _ := cost.Dims()
	s.sizes = append(s.sizes, r)
	if d, ok := cost.(*mat.Dense); ok {
		s.matrices = append(s.matrices, d)
	}

	if s.solve != nil {
		return s.solve(cost)
	}

	return solver.Hungarian(cost)
}

func newTestRunner(t *testing.T, clock *fakeClock, solvers map[string]*stub, order []string, ceilings map[string]int) *Runner {
	t.Helper()

	reg := NewRegistry(2)
	for _, name := range order {
		ceiling, ok := ceilings[name]
		if !ok {
			ceiling = NoCeiling
		}
		require.NoError(t, reg.Register(Descriptor{Name: name, SizeCeiling: ceiling}, solvers[name]))
	}

	r := NewRunner(reg, workload.NewGenerator(workload.Config{Seed: 42}), testLogger())
	if clock != nil {
		r.now = clock.now
	}

	return r
}

func TestRunEightByEightThreeCycles(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	a := &stub{clock: clock, durs: []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 30 * time.Millisecond}}
	b := &stub{clock: clock, durs: []time.Duration{1 * time.Millisecond, 2 * time.Millisecond, 6 * time.Millisecond}}

	r := newTestRunner(t, clock, map[string]*stub{"a": a, "b": b}, []string{"a", "b"}, nil)

	rs, err := r.Run(context.Background(), RunConfig{Sizes: []int{8}, Cycles: 3})
	require.NoError(t, err)

	assert.Equal(t, 3, a.calls)
	assert.Equal(t, 3, b.calls)
	assert.Equal(t, StateDone, r.State())

	ea := rs.Entries("a")
	require.Len(t, ea, 1)
	assert.Equal(t, 8, ea[0].Size)
	assert.Equal(t, 3, ea[0].Cycles)
	assert.Equal(t, 20*time.Millisecond, ea[0].Mean)
	assert.Equal(t, 20*time.Millisecond, ea[0].Median)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 30 * time.Millisecond}, ea[0].Samples)
	assert.Equal(t, 10*time.Millisecond, ea[0].StdDev)

	eb := rs.Entries("b")
	require.Len(t, eb, 1)
	assert.Equal(t, 3*time.Millisecond, eb[0].Mean)

	assert.NotEmpty(t, rs.RunID)
	assert.Equal(t, []string{"a", "b"}, rs.Solvers)
	assert.False(t, rs.FinishedAt.Before(rs.StartedAt))
}

func TestRunSameMatrixWithinCycle(t *testing.T) {
	a, b := &stub{}, &stub{}
	r := newTestRunner(t, nil, map[string]*stub{"a": a, "b": b}, []string{"a", "b"}, nil)

	_, err := r.Run(context.Background(), RunConfig{Sizes: []int{4, 8}, Cycles: 2})
	require.NoError(t, err)

	require.Len(t, a.matrices, 4)
	require.Len(t, b.matrices, 4)

	for i := range a.matrices {
		assert.Same(t, a.matrices[i], b.matrices[i], "cycle %d used different matrices", i)
		if i > 0 {
			assert.NotSame(t, a.matrices[i-1], a.matrices[i])
		}
	}

	assert.Equal(t, []int{4, 4, 8, 8}, a.sizes)
}

func TestRunSizeCeiling(t *testing.T) {
	fast, slow := &stub{}, &stub{}
	r := newTestRunner(t, nil,
		map[string]*stub{"fast": fast, "slow": slow},
		[]string{"fast", "slow"},
		map[string]int{"slow": 7},
	)

	sizes := []int{32, 64, 128, 256}
	rs, err := r.Run(context.Background(), RunConfig{Sizes: sizes, Cycles: 1})
	require.NoError(t, err)

	assert.NotContains(t, slow.sizes, 256)
	assert.Equal(t, []int{32, 64, 128}, slow.sizes)
	assert.Equal(t, sizes, fast.sizes)

	var slowSizes []int
	for _, e := range rs.Entries("slow") {
		slowSizes = append(slowSizes, e.Size)
	}
	assert.Equal(t, []int{32, 64, 128}, slowSizes)

	_, ok := rs.Lookup("slow", 256)
	assert.False(t, ok)

	_, ok = rs.Lookup("fast", 256)
	assert.True(t, ok)
}

func TestRunContractViolationDropsOnlyThatSolver(t *testing.T) {
	good := &stub{}
	bad := &stub{solve: func(cost mat.Matrix) (solver.Solution, error) {
		n, _ := cost.Dims()
		return solver.Solution{RowAssignment: make([]int, n)}, nil // all zeros
	}}

	r := newTestRunner(t, nil, map[string]*stub{"bad": bad, "good": good}, []string{"bad", "good"}, nil)

	rs, err := r.Run(context.Background(), RunConfig{Sizes: []int{4, 8}, Cycles: 3, CheckCost: true})
	require.NoError(t, err)

	assert.Equal(t, 1, bad.calls, "violating solver must not be invoked again")
	assert.Equal(t, 6, good.calls)

	require.Len(t, rs.Failures, 1)
	f := rs.Failures[0]
	assert.Equal(t, "bad", f.Solver)
	assert.Equal(t, FailureContract, f.Kind)
	assert.Equal(t, 4, f.Size)
	assert.Equal(t, 0, f.Cycle)

	var violation *SolverContractViolation
	require.ErrorAs(t, f.Err, &violation)
	assert.ErrorIs(t, f.Err, solver.ErrDuplicate)

	assert.Empty(t, rs.Entries("bad"))
	assert.Len(t, rs.Entries("good"), 2)
	assert.False(t, rs.Consistent())
}

func TestRunAssignmentCheckedWithoutCostCheck(t *testing.T) {
	good := &stub{}
	bad := &stub{solve: func(cost mat.Matrix) (solver.Solution, error) {
		n, _ := cost.Dims()
		return solver.Solution{RowAssignment: make([]int, n)}, nil
	}}

	r := newTestRunner(t, nil, map[string]*stub{"bad": bad, "good": good}, []string{"bad", "good"}, nil)

	rs, err := r.Run(context.Background(), RunConfig{Sizes: []int{4, 8}, Cycles: 3})
	require.NoError(t, err)

	assert.Equal(t, 1, bad.calls, "violating solver must not be invoked again")
	assert.Equal(t, 6, good.calls)

	require.Len(t, rs.Failures, 1)
	assert.Equal(t, FailureContract, rs.Failures[0].Kind)
	assert.ErrorIs(t, rs.Failures[0].Err, solver.ErrDuplicate)

	assert.Empty(t, rs.Entries("bad"))
	assert.Len(t, rs.Entries("good"), 2)
	assert.Empty(t, rs.Mismatches, "costs are not cross-checked")
	assert.False(t, rs.Consistent())
}

func TestRunReportedCostIgnoredWithoutCostCheck(t *testing.T) {
	liar := &stub{solve: func(cost mat.Matrix) (solver.Solution, error) {
		sol, err := solver.Hungarian(cost)
		sol.Cost += 1
		return sol, err
	}}

	r := newTestRunner(t, nil, map[string]*stub{"liar": liar}, []string{"liar"}, nil)

	rs, err := r.Run(context.Background(), RunConfig{Sizes: []int{4}, Cycles: 2})
	require.NoError(t, err)

	assert.Empty(t, rs.Failures)
	assert.Len(t, rs.Entries("liar"), 1)
}

func TestRunReportedCostMismatchIsViolation(t *testing.T) {
	liar := &stub{solve: func(cost mat.Matrix) (solver.Solution, error) {
		sol, err := solver.Hungarian(cost)
		sol.Cost += 1
		return sol, err
	}}

	r := newTestRunner(t, nil, map[string]*stub{"liar": liar}, []string{"liar"}, nil)

	rs, err := r.Run(context.Background(), RunConfig{Sizes: []int{4}, Cycles: 2, CheckCost: true})
	require.NoError(t, err)

	require.Len(t, rs.Failures, 1)
	assert.ErrorIs(t, rs.Failures[0].Err, solver.ErrCostMismatch)
	assert.True(t, rs.Empty())
}

func TestRunCrossCheckMismatch(t *testing.T) {
	optimal := &stub{}
	// Identity is a valid matching with an honest cost, but not optimal.
	identity := &stub{solve: func(cost mat.Matrix) (solver.Solution, error) {
		n, _ := cost.Dims()
		rows := make([]int, n)
		for i := range rows {
			rows[i] = i
		}
		return solver.Solution{
			Cost:          solver.AssignmentCost(cost, rows),
			RowAssignment: rows,
			ColAssignment: rows,
		}, nil
	}}

	r := newTestRunner(t, nil,
		map[string]*stub{"optimal": optimal, "identity": identity},
		[]string{"optimal", "identity"}, nil)

	rs, err := r.Run(context.Background(), RunConfig{Sizes: []int{16}, Cycles: 2, CheckCost: true})
	require.NoError(t, err)

	require.Len(t, rs.Mismatches, 2)
	for cycle, m := range rs.Mismatches {
		assert.Equal(t, "optimal", m.Reference)
		assert.Equal(t, "identity", m.Solver)
		assert.Equal(t, 16, m.Size)
		assert.Equal(t, cycle, m.Cycle)
		assert.Greater(t, m.Cost, m.ReferenceCost)
	}

	assert.Empty(t, rs.Failures, "a disagreement is not attributed to either solver")
	assert.Equal(t, 2, identity.calls)
	assert.False(t, rs.Consistent())
}

func TestRunBuiltinsAgree(t *testing.T) {
	reg := NewRegistry(2)
	for _, b := range solver.Builtins() {
		require.NoError(t, reg.Register(Descriptor{Name: b.Name, SizeCeiling: b.Ceiling}, b.Solver))
	}

	r := NewRunner(reg, workload.NewGenerator(workload.Config{Seed: 7}), testLogger())

	rs, err := r.Run(context.Background(), RunConfig{Sizes: []int{4, 8, 16}, Cycles: 2, CheckCost: true})
	require.NoError(t, err)

	assert.True(t, rs.Consistent())
	assert.Len(t, rs.Entries("lapjv"), 3)
	assert.Len(t, rs.Entries("munkres"), 3)
	assert.Len(t, rs.Entries("bruteforce"), 2, "bruteforce stops at 2^3")
}

func TestRunSolverErrorIsFatal(t *testing.T) {
	boom := errors.New("boom")
	failing := &stub{solve: func(mat.Matrix) (solver.Solution, error) {
		return solver.Solution{}, boom
	}}
	other := &stub{}

	r := newTestRunner(t, nil, map[string]*stub{"failing": failing, "other": other}, []string{"failing", "other"}, nil)

	rs, err := r.Run(context.Background(), RunConfig{Sizes: []int{4, 8}, Cycles: 2})
	require.Error(t, err)
	assert.Nil(t, rs)

	var sf *SolverFailure
	require.ErrorAs(t, err, &sf)
	assert.Equal(t, "failing", sf.Solver)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, other.calls)
}

func TestRunSolverPanicIsFailure(t *testing.T) {
	panicky := &stub{solve: func(mat.Matrix) (solver.Solution, error) {
		panic("index out of range")
	}}

	r := newTestRunner(t, nil, map[string]*stub{"panicky": panicky}, []string{"panicky"}, nil)

	_, err := r.Run(context.Background(), RunConfig{Sizes: []int{4}, Cycles: 1})

	var sf *SolverFailure
	require.ErrorAs(t, err, &sf)
	assert.Contains(t, err.Error(), "index out of range")
}

func TestRunSkipFailed(t *testing.T) {
	calls := 0
	flaky := &stub{solve: func(cost mat.Matrix) (solver.Solution, error) {
		calls++
		if calls == 2 {
			return solver.Solution{}, errors.New("transient")
		}
		return solver.Hungarian(cost)
	}}
	other := &stub{}

	r := newTestRunner(t, nil, map[string]*stub{"flaky": flaky, "other": other}, []string{"flaky", "other"}, nil)

	rs, err := r.Run(context.Background(), RunConfig{Sizes: []int{4, 8}, Cycles: 3, SkipFailed: true})
	require.NoError(t, err)

	assert.Equal(t, 2, flaky.calls)
	assert.Equal(t, 6, other.calls)

	require.Len(t, rs.Failures, 1)
	assert.Equal(t, FailureRuntime, rs.Failures[0].Kind)
	assert.Equal(t, 1, rs.Failures[0].Cycle)

	// The one cycle it completed at size 4 still counts.
	e, ok := rs.Lookup("flaky", 4)
	require.True(t, ok)
	assert.Equal(t, 1, e.Cycles)

	_, ok = rs.Lookup("flaky", 8)
	assert.False(t, ok)
	assert.True(t, rs.Consistent(), "runtime failures are not inconsistencies")
}

func TestRunZeroElapsedIsKept(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	instant := &stub{clock: clock, durs: []time.Duration{0}}

	r := newTestRunner(t, clock, map[string]*stub{"instant": instant}, []string{"instant"}, nil)

	rs, err := r.Run(context.Background(), RunConfig{Sizes: []int{2}, Cycles: 4})
	require.NoError(t, err)

	e, ok := rs.Lookup("instant", 2)
	require.True(t, ok, "a zero timing is data, not absence")
	assert.Equal(t, time.Duration(0), e.Mean)
	assert.Equal(t, 4, e.Cycles)
}

func TestRunInvalidConfig(t *testing.T) {
	r := newTestRunner(t, nil, map[string]*stub{"a": {}}, []string{"a"}, nil)

	tests := []struct {
		name string
		cfg  RunConfig
	}{
		{"no sizes", RunConfig{Cycles: 1}},
		{"zero cycles", RunConfig{Sizes: []int{4}, Cycles: 0}},
		{"non-positive size", RunConfig{Sizes: []int{0, 4}, Cycles: 1}},
		{"decreasing", RunConfig{Sizes: []int{8, 4}, Cycles: 1}},
		{"negative tolerance", RunConfig{Sizes: []int{4}, Cycles: 1, Tolerance: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Run(context.Background(), tt.cfg)
			require.Error(t, err)
			assert.True(t, config.IsConfigurationError(err))
		})
	}

	empty := NewRunner(NewRegistry(2), workload.NewGenerator(workload.Config{}), testLogger())
	_, err := empty.Run(context.Background(), RunConfig{Sizes: []int{4}, Cycles: 1})
	assert.True(t, config.IsConfigurationError(err))
}

func TestRunCancelled(t *testing.T) {
	a := &stub{}
	r := newTestRunner(t, nil, map[string]*stub{"a": a}, []string{"a"}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Run(ctx, RunConfig{Sizes: []int{4}, Cycles: 1})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, a.calls)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "invoking_solver", StateInvoking.String())
	assert.Equal(t, "sweep_done", StateDone.String())
	assert.Equal(t, "unknown", State(99).String())
}
