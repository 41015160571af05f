package solver

import (
	"gonum.org/v1/gonum/mat"
)

// LAPJV solves the assignment problem with the Jonker-Volgenant method:
// column reduction builds a feasible dual and a partial assignment, then
// each free row is matched along a shortest augmenting path (Dijkstra over
// reduced costs) and the column prices are updated.
func LAPJV(cost mat.Matrix) (Solution, error) {
	n, err := squareDims(cost)
	if err != nil {
		return Solution{}, err
	}

	a := dense(cost, n)

	rowsol := make([]int, n) // column of each row, -1 if free
	colsol := make([]int, n) // row of each column, -1 if free
	v := make([]float64, n)  // column prices

	for i := range rowsol {
		rowsol[i] = -1
	}

	// Column reduction, scanning columns in reverse as in the original
	// formulation. Every assigned row then sits on a zero reduced cost.
	for j := n - 1; j >= 0; j-- {
		imin := 0
		minCost := a[0][j]
		for i := 1; i < n; i++ {
			if a[i][j] < minCost {
				minCost = a[i][j]
				imin = i
			}
		}

		v[j] = minCost
		if rowsol[imin] < 0 {
			rowsol[imin] = j
			colsol[j] = imin
		} else {
			colsol[j] = -1
		}
	}

	d := make([]float64, n)
	pred := make([]int, n)
	collist := make([]int, n)

	for f := range n {
		if rowsol[f] >= 0 {
			continue
		}

		for j := range n {
			collist[j] = j
			d[j] = a[f][j] - v[j]
			pred[j] = f
		}

		// collist[0:low] scanned, collist[low:up] at the current minimum
		// distance and ready to scan, collist[up:] not yet reached.
		low, up, last := 0, 0, 0
		endofpath := -1
		minDist := 0.0

		for endofpath < 0 {
			if up == low {
				last = low - 1

				minDist = d[collist[up]]
				up++
				for k := up; k < n; k++ {
					j := collist[k]
					h := d[j]
					if h <= minDist {
						if h < minDist {
							up = low
							minDist = h
						}
						collist[k] = collist[up]
						collist[up] = j
						up++
					}
				}

				for k := low; k < up; k++ {
					if colsol[collist[k]] < 0 {
						endofpath = collist[k]

						break
					}
				}
			}

			if endofpath >= 0 {
				break
			}

			j1 := collist[low]
			low++
			i := colsol[j1]
			h := a[i][j1] - v[j1] - minDist

			for k := up; k < n; k++ {
				j := collist[k]
				v2 := a[i][j] - v[j] - h
				if v2 < d[j] {
					pred[j] = i
					if v2 == minDist {
						if colsol[j] < 0 {
							endofpath = j

							break
						}
						collist[k] = collist[up]
						collist[up] = j
						up++
					}
					d[j] = v2
				}
			}
		}

		// Price update for every column finalized before the last minimum.
		for k := 0; k <= last; k++ {
			j1 := collist[k]
			v[j1] += d[j1] - minDist
		}

		// Augment along the predecessor chain back to f.
		for {
			i := pred[endofpath]
			colsol[endofpath] = i
			j1 := endofpath
			endofpath = rowsol[i]
			rowsol[i] = j1
			if i == f {
				break
			}
		}
	}

	return complete(cost, rowsol), nil
}
