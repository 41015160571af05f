// Package solver defines the assignment-problem solver capability consumed
// by the benchmark harness, the checks applied to a solver's output, and a
// set of built-in solvers.
//
// A solver takes a square, non-negative cost matrix and returns a perfect
// matching of minimum total cost. RowAssignment[i] is the column assigned
// to row i; ColAssignment[j] is the row assigned to column j.
package solver

import (
	"errors"
	"fmt"

	"github.com/weiihann/lapbench/config"
	"gonum.org/v1/gonum/mat"
)

// ErrNotSquare is returned when a solver is handed a non-square matrix.
var ErrNotSquare = errors.New("cost matrix is not square")

// Solution is the output of one Solve call.
type Solution struct {
	Cost          float64
	RowAssignment []int
	ColAssignment []int
}

// Solver is the capability every benchmarked implementation exposes. Solve
// must be deterministic for a given matrix and must not modify it.
type Solver interface {
	Solve(cost mat.Matrix) (Solution, error)
}

// Func adapts an ordinary function to the Solver interface.
type Func func(cost mat.Matrix) (Solution, error)

// Solve calls f(cost).
func (f Func) Solve(cost mat.Matrix) (Solution, error) {
	return f(cost)
}

// Builtin describes a solver shipped with lapbench and its default size
// ceiling, an exponent of the sweep base. NoCeiling admits every size.
type Builtin struct {
	Name        string
	Description string
	Ceiling     int
	Solver      Solver
}

// NoCeiling admits a solver at every size.
const NoCeiling = config.NoCeiling

// Builtins returns the built-in solvers in their default run order. The
// slow reference solvers are capped so a default sweep stays short.
func Builtins() []Builtin {
	return []Builtin{
		{
			Name:        "lapjv",
			Description: "Jonker-Volgenant shortest augmenting path",
			Ceiling:     NoCeiling,
			Solver:      Func(LAPJV),
		},
		{
			Name:        "hungarian",
			Description: "primal-dual Hungarian method with potentials, O(n^3)",
			Ceiling:     NoCeiling,
			Solver:      Func(Hungarian),
		},
		{
			Name:        "munkres",
			Description: "classic Munkres star/prime covering",
			Ceiling:     7,
			Solver:      Func(Munkres),
		},
		{
			Name:        "bruteforce",
			Description: "exhaustive search over all permutations, n <= 10",
			Ceiling:     3,
			Solver:      Func(BruteForce),
		},
	}
}

func squareDims(cost mat.Matrix) (int, error) {
	r, c := cost.Dims()
	if r != c {
		return 0, fmt.Errorf("%dx%d: %w", r, c, ErrNotSquare)
	}

	return r, nil
}

// dense copies cost into row-major slices.
func dense(cost mat.Matrix, n int) [][]float64 {
	a := make([][]float64, n)
	for i := range n {
		a[i] = make([]float64, n)
		for j := range n {
			a[i][j] = cost.At(i, j)
		}
	}

	return a
}

// complete builds a Solution from a row assignment.
func complete(cost mat.Matrix, rows []int) Solution {
	cols := make([]int, len(rows))
	for i, j := range rows {
		cols[j] = i
	}

	return Solution{
		Cost:          AssignmentCost(cost, rows),
		RowAssignment: rows,
		ColAssignment: cols,
	}
}
