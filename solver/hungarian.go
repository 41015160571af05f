package solver

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Hungarian solves the assignment problem with the primal-dual Hungarian
// method, adding one row at a time and growing a shortest alternating path
// over reduced costs. O(n^3).
func Hungarian(cost mat.Matrix) (Solution, error) {
	n, err := squareDims(cost)
	if err != nil {
		return Solution{}, err
	}

	a := dense(cost, n)

	// 1-based: index 0 is a virtual column/row used as the path root.
	u := make([]float64, n+1)
	v := make([]float64, n+1)
	match := make([]int, n+1) // match[j]: row assigned to column j, 0 if free
	way := make([]int, n+1)
	minv := make([]float64, n+1)
	used := make([]bool, n+1)

	for i := 1; i <= n; i++ {
		match[0] = i
		j0 := 0

		for j := range minv {
			minv[j] = math.Inf(1)
			used[j] = false
		}

		for {
			used[j0] = true
			i0 := match[j0]
			delta := math.Inf(1)
			j1 := 0

			for j := 1; j <= n; j++ {
				if used[j] {
					continue
				}
				cur := a[i0-1][j-1] - u[i0] - v[j]
				if cur < minv[j] {
					minv[j] = cur
					way[j] = j0
				}
				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}

			for j := 0; j <= n; j++ {
				if used[j] {
					u[match[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}

			j0 = j1
			if match[j0] == 0 {
				break
			}
		}

		// Flip the alternating path back to the root.
		for j0 != 0 {
			j1 := way[j0]
			match[j0] = match[j1]
			j0 = j1
		}
	}

	rows := make([]int, n)
	for j := 1; j <= n; j++ {
		rows[match[j]-1] = j - 1
	}

	return complete(cost, rows), nil
}
