package solver

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Contract violations reported by Validate.
var (
	ErrLength       = errors.New("assignment has wrong length")
	ErrOutOfRange   = errors.New("assignment index out of range")
	ErrDuplicate    = errors.New("assignment index used twice")
	ErrInconsistent = errors.New("row and column assignments disagree")
	ErrCostMismatch = errors.New("reported cost differs from assignment cost")
)

// DefaultTolerance is the cost tolerance used for an n x n problem when no
// explicit tolerance is configured.
func DefaultTolerance(n int) float64 {
	return 1e-6 * float64(n)
}

// AssignmentCost sums cost[i][rows[i]]. It does not check rows.
func AssignmentCost(cost mat.Matrix, rows []int) float64 {
	var sum float64
	for i, j := range rows {
		sum += cost.At(i, j)
	}

	return sum
}

// ValidateAssignment checks that sol is a perfect matching for cost. The
// column view is optional; when present it must be the inverse of the row
// view.
func ValidateAssignment(cost mat.Matrix, sol Solution) error {
	n, err := squareDims(cost)
	if err != nil {
		return err
	}

	if len(sol.RowAssignment) != n {
		return fmt.Errorf("%w: row assignment has %d entries, want %d",
			ErrLength, len(sol.RowAssignment), n)
	}

	seen := make([]bool, n)
	for i, j := range sol.RowAssignment {
		if j < 0 || j >= n {
			return fmt.Errorf("%w: row %d -> column %d", ErrOutOfRange, i, j)
		}
		if seen[j] {
			return fmt.Errorf("%w: column %d", ErrDuplicate, j)
		}
		seen[j] = true
	}

	if sol.ColAssignment == nil {
		return nil
	}

	if len(sol.ColAssignment) != n {
		return fmt.Errorf("%w: column assignment has %d entries, want %d",
			ErrLength, len(sol.ColAssignment), n)
	}
	for j, i := range sol.ColAssignment {
		if i < 0 || i >= n {
			return fmt.Errorf("%w: column %d -> row %d", ErrOutOfRange, j, i)
		}
		if sol.RowAssignment[i] != j {
			return fmt.Errorf("%w: column %d -> row %d, row %d -> column %d",
				ErrInconsistent, j, i, i, sol.RowAssignment[i])
		}
	}

	return nil
}

// Validate checks that sol is a perfect matching for cost and that its
// reported cost matches the entries it selects within tol. It returns the
// recomputed cost, which callers should prefer over sol.Cost.
func Validate(cost mat.Matrix, sol Solution, tol float64) (float64, error) {
	if err := ValidateAssignment(cost, sol); err != nil {
		return 0, err
	}

	actual := AssignmentCost(cost, sol.RowAssignment)
	if math.Abs(actual-sol.Cost) > tol {
		return actual, fmt.Errorf("%w: reported %g, assignment sums to %g",
			ErrCostMismatch, sol.Cost, actual)
	}

	return actual, nil
}
