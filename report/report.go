// Package report formats benchmark results into comparison tables, JSON,
// charts and SQLite exports.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/weiihann/lapbench/harness"
)

// Generate writes a markdown comparison table for the given results: one
// row per solver, one column per matrix size, mean time per cell.
func Generate(w io.Writer, rs *harness.ResultSet) error {
	if rs == nil || rs.Empty() {
		return fmt.Errorf("no results to report")
	}

	// Header.
	fmt.Fprintln(w, "## Benchmark Results")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Run %s, %d cycle(s) per size\n", rs.RunID, rs.Cycles)
	fmt.Fprintln(w)

	// Cost check.
	switch {
	case !rs.CostChecked:
		fmt.Fprintln(w, "Minimum costs: not checked")
	case len(rs.Mismatches) == 0:
		fmt.Fprintln(w, "Minimum costs: **all match**")
	default:
		fmt.Fprintln(w, "Minimum costs: **MISMATCH**")

		for _, m := range rs.Mismatches {
			fmt.Fprintf(w, "  - size %d cycle %d: %s %.6f vs %s %.6f\n",
				m.Size, m.Cycle, m.Reference, m.ReferenceCost, m.Solver, m.Cost)
		}
	}

	fmt.Fprintln(w)

	// Table header.
	sizes := lo.Map(rs.Sizes, func(s int, _ int) string { return fmt.Sprintf("%d", s) })

	fmt.Fprintln(w, "| Solver | "+strings.Join(sizes, " | ")+" |")
	fmt.Fprintln(w, "|--------|"+strings.Repeat("------|", len(sizes)))

	for _, name := range rs.Solvers {
		cells := lo.Map(rs.Sizes, func(size int, _ int) string {
			e, ok := rs.Lookup(name, size)
			if !ok {
				return "-"
			}

			return formatDuration(e.Mean)
		})

		fmt.Fprintf(w, "| %s | %s |\n", name, strings.Join(cells, " | "))
	}

	fmt.Fprintln(w)

	// Speedup at the largest size every remaining solver reached.
	if size, fastest, ok := largestCommonSize(rs); ok {
		fmt.Fprintf(w, "| Solver | Mean @ %d | Median | Speedup |\n", size)
		fmt.Fprintln(w, "|--------|----------|--------|---------|")

		for _, name := range rs.Solvers {
			e, ok := rs.Lookup(name, size)
			if !ok {
				continue
			}

			speedup := 1.0
			if fastest > 0 && e.Mean > 0 {
				speedup = float64(e.Mean) / float64(fastest)
			}

			fmt.Fprintf(w, "| %s | %s | %s | %.2fx |\n",
				name, formatDuration(e.Mean), formatDuration(e.Median), speedup)
		}

		fmt.Fprintln(w)
	}

	if len(rs.Failures) > 0 {
		fmt.Fprintln(w, "Dropped solvers:")

		for _, f := range rs.Failures {
			fmt.Fprintf(w, "  - %s (%s) at size %d cycle %d: %s\n",
				f.Solver, f.Kind, f.Size, f.Cycle, f.Message)
		}
	}

	return nil
}

// GenerateJSON writes results as JSON to w.
func GenerateJSON(w io.Writer, rs *harness.ResultSet) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(rs)
}

// largestCommonSize returns the largest size at which at least two solvers
// have entries, and the fastest mean there.
func largestCommonSize(rs *harness.ResultSet) (int, time.Duration, bool) {
	for i := len(rs.Sizes) - 1; i >= 0; i-- {
		size := rs.Sizes[i]

		entries := lo.FilterMap(rs.Solvers, func(name string, _ int) (harness.Entry, bool) {
			return rs.Lookup(name, size)
		})
		if len(entries) < 2 {
			continue
		}

		fastest := lo.MinBy(entries, func(a, b harness.Entry) bool {
			return a.Mean < b.Mean
		})

		return size, fastest.Mean, true
	}

	return 0, 0, false
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Microsecond:
		return fmt.Sprintf("%dns", d.Nanoseconds())
	case d < time.Millisecond:
		return fmt.Sprintf("%.2fµs", float64(d)/float64(time.Microsecond))
	case d < time.Second:
		return fmt.Sprintf("%.2fms", float64(d)/float64(time.Millisecond))
	default:
		return fmt.Sprintf("%.3fs", d.Seconds())
	}
}
