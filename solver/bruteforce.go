package solver

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// MaxBruteForce is the largest dimension BruteForce accepts.
const MaxBruteForce = 10

// ErrTooLarge is returned by BruteForce above MaxBruteForce.
var ErrTooLarge = errors.New("matrix too large for exhaustive search")

// BruteForce enumerates every permutation with Heap's algorithm and keeps
// the cheapest. Ties resolve to the first permutation found, so the result
// is deterministic. Only usable as a reference on tiny matrices.
func BruteForce(cost mat.Matrix) (Solution, error) {
	n, err := squareDims(cost)
	if err != nil {
		return Solution{}, err
	}
	if n > MaxBruteForce {
		return Solution{}, fmt.Errorf("%d > %d: %w", n, MaxBruteForce, ErrTooLarge)
	}

	a := dense(cost, n)

	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}

	best := make([]int, n)
	copy(best, perm)
	bestCost := sum(a, perm)

	// Iterative Heap's algorithm.
	c := make([]int, n)
	for i := 0; i < n; {
		if c[i] < i {
			if i%2 == 0 {
				perm[0], perm[i] = perm[i], perm[0]
			} else {
				perm[c[i]], perm[i] = perm[i], perm[c[i]]
			}

			if s := sum(a, perm); s < bestCost {
				bestCost = s
				copy(best, perm)
			}

			c[i]++
			i = 0
		} else {
			c[i] = 0
			i++
		}
	}

	return complete(cost, best), nil
}

func sum(a [][]float64, perm []int) float64 {
	var s float64
	for i, j := range perm {
		s += a[i][j]
	}

	return s
}
