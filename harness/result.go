// Package harness runs assignment-problem solvers over a sweep of matrix
// sizes and collects averaged timings into a ResultSet.
package harness

import (
	"encoding/json"
	"time"
)

// Entry is the aggregated timing of one solver at one size.
type Entry struct {
	Size int `json:"size"`
	// Mean is the arithmetic mean of Samples.
	Mean time.Duration `json:"mean_ns"`
	// Cycles is the number of cycles the solver actually ran at Size.
	Cycles  int             `json:"cycles"`
	Samples []time.Duration `json:"samples_ns"`
	StdDev  time.Duration   `json:"stddev_ns"`

	// Median with a confidence interval that assumes nothing about the
	// distribution of the samples.
	Median     time.Duration `json:"median_ns"`
	Lo         time.Duration `json:"lo_ns"`
	Hi         time.Duration `json:"hi_ns"`
	Confidence float64       `json:"confidence"`
	Warnings   []string      `json:"warnings,omitempty"`
}

// CostMismatch records two solvers disagreeing on the optimum of the same
// matrix by more than the tolerance.
type CostMismatch struct {
	Size          int     `json:"size"`
	Cycle         int     `json:"cycle"`
	Reference     string  `json:"reference"`
	ReferenceCost float64 `json:"reference_cost"`
	Solver        string  `json:"solver"`
	Cost          float64 `json:"cost"`
}

// FailureKind classifies a Failure.
type FailureKind string

const (
	FailureContract FailureKind = "contract_violation"
	FailureRuntime  FailureKind = "runtime_error"
)

// Failure records the invocation after which a solver was dropped from the
// rest of the sweep.
type Failure struct {
	Solver  string      `json:"solver"`
	Size    int         `json:"size"`
	Cycle   int         `json:"cycle"`
	Kind    FailureKind `json:"kind"`
	Message string      `json:"error"`
	Err     error       `json:"-"`
}

// ResultSet maps each solver to its entries in increasing size order. It is
// built by a Runner and must be treated as read-only afterwards.
type ResultSet struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Base       int
	Cycles     int
	Sizes      []int
	Solvers    []string
	// CostChecked is set when assignments were validated and cross-checked.
	CostChecked bool
	Mismatches  []CostMismatch
	Failures    []Failure

	series map[string][]Entry
}

func newResultSet(runID string, solvers []string, sizes []int) *ResultSet {
	rs := &ResultSet{
		RunID:   runID,
		Sizes:   append([]int(nil), sizes...),
		Solvers: append([]string(nil), solvers...),
		series:  make(map[string][]Entry, len(solvers)),
	}

	return rs
}

// NewResultSet assembles a ResultSet from series collected elsewhere, such
// as a previous run decoded from JSON. Entries must be in increasing size
// order.
func NewResultSet(runID string, solvers []string, sizes []int, series map[string][]Entry) *ResultSet {
	rs := newResultSet(runID, solvers, sizes)
	for name, entries := range series {
		rs.series[name] = append([]Entry(nil), entries...)
	}

	return rs
}

func (rs *ResultSet) add(name string, e Entry) {
	rs.series[name] = append(rs.series[name], e)
}

// Entries returns the entries recorded for a solver, ordered by size.
func (rs *ResultSet) Entries(name string) []Entry {
	return append([]Entry(nil), rs.series[name]...)
}

// Lookup returns the entry for a solver at a size.
func (rs *ResultSet) Lookup(name string, size int) (Entry, bool) {
	for _, e := range rs.series[name] {
		if e.Size == size {
			return e, true
		}
	}

	return Entry{}, false
}

// Empty reports whether no solver recorded any entry.
func (rs *ResultSet) Empty() bool {
	for _, entries := range rs.series {
		if len(entries) > 0 {
			return false
		}
	}

	return true
}

// Consistent reports whether the sweep saw no cost mismatch and no
// contract violation.
func (rs *ResultSet) Consistent() bool {
	if len(rs.Mismatches) > 0 {
		return false
	}

	for _, f := range rs.Failures {
		if f.Kind == FailureContract {
			return false
		}
	}

	return true
}

type seriesJSON struct {
	Solver  string  `json:"solver"`
	Entries []Entry `json:"entries"`
}

type resultSetJSON struct {
	RunID       string         `json:"run_id"`
	StartedAt   time.Time      `json:"started_at"`
	FinishedAt  time.Time      `json:"finished_at"`
	Base        int            `json:"base"`
	Cycles      int            `json:"cycles"`
	Sizes       []int          `json:"sizes"`
	CostChecked bool           `json:"cost_checked"`
	Series      []seriesJSON   `json:"series"`
	Mismatches  []CostMismatch `json:"mismatches"`
	Failures    []Failure      `json:"failures"`
}

// MarshalJSON encodes the result set with its series in solver order.
func (rs *ResultSet) MarshalJSON() ([]byte, error) {
	out := resultSetJSON{
		RunID:       rs.RunID,
		StartedAt:   rs.StartedAt,
		FinishedAt:  rs.FinishedAt,
		Base:        rs.Base,
		Cycles:      rs.Cycles,
		Sizes:       rs.Sizes,
		CostChecked: rs.CostChecked,
		Series:      make([]seriesJSON, 0, len(rs.Solvers)),
		Mismatches:  rs.Mismatches,
		Failures:    rs.Failures,
	}

	for _, name := range rs.Solvers {
		entries := rs.series[name]
		if entries == nil {
			entries = []Entry{}
		}
		out.Series = append(out.Series, seriesJSON{Solver: name, Entries: entries})
	}

	if out.Mismatches == nil {
		out.Mismatches = []CostMismatch{}
	}
	if out.Failures == nil {
		out.Failures = []Failure{}
	}

	return json.Marshal(out)
}

// UnmarshalJSON decodes the format written by MarshalJSON.
func (rs *ResultSet) UnmarshalJSON(data []byte) error {
	var in resultSetJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	*rs = ResultSet{
		RunID:       in.RunID,
		StartedAt:   in.StartedAt,
		FinishedAt:  in.FinishedAt,
		Base:        in.Base,
		Cycles:      in.Cycles,
		Sizes:       in.Sizes,
		CostChecked: in.CostChecked,
		Mismatches:  in.Mismatches,
		Failures:    in.Failures,
		series:      make(map[string][]Entry, len(in.Series)),
	}

	for _, s := range in.Series {
		rs.Solvers = append(rs.Solvers, s.Solver)
		if len(s.Entries) > 0 {
			rs.series[s.Solver] = s.Entries
		}
	}

	return nil
}
