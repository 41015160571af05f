package solver

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	unmarked = iota
	starred
	primed
)

type munkres struct {
	n      int
	c      [][]float64
	marks  [][]uint8
	rowCov []bool
	colCov []bool
}

// Munkres solves the assignment problem with the classic Munkres algorithm:
// starred zeros form the current matching, primed zeros extend alternating
// paths, and the covered-line adjustment creates new zeros.
func Munkres(cost mat.Matrix) (Solution, error) {
	n, err := squareDims(cost)
	if err != nil {
		return Solution{}, err
	}

	m := &munkres{
		n:      n,
		c:      dense(cost, n),
		marks:  make([][]uint8, n),
		rowCov: make([]bool, n),
		colCov: make([]bool, n),
	}
	for i := range m.marks {
		m.marks[i] = make([]uint8, n)
	}

	m.reduceRows()
	m.starInitial()

	for m.coverStarredColumns() < n {
		m.augment()
	}

	rows := make([]int, n)
	for i := range n {
		for j := range n {
			if m.marks[i][j] == starred {
				rows[i] = j
			}
		}
	}

	return complete(cost, rows), nil
}

func (m *munkres) reduceRows() {
	for _, row := range m.c {
		lo := math.Inf(1)
		for _, x := range row {
			lo = math.Min(lo, x)
		}
		for j := range row {
			row[j] -= lo
		}
	}
}

func (m *munkres) starInitial() {
	for i := range m.n {
		for j := range m.n {
			if m.c[i][j] == 0 && !m.rowCov[i] && !m.colCov[j] {
				m.marks[i][j] = starred
				m.rowCov[i] = true
				m.colCov[j] = true
			}
		}
	}
	m.clearCovers()
}

func (m *munkres) coverStarredColumns() int {
	count := 0
	for i := range m.n {
		for j := range m.n {
			if m.marks[i][j] == starred && !m.colCov[j] {
				m.colCov[j] = true
				count++
			}
		}
	}

	return count
}

// augment primes uncovered zeros until one has no starred zero in its row,
// then flips the alternating path starting there. It leaves one more
// starred zero than it found.
func (m *munkres) augment() {
	for {
		i, j, ok := m.findUncoveredZero()
		if !ok {
			m.adjust()

			continue
		}

		m.marks[i][j] = primed

		if sc := m.findInRow(i, starred); sc >= 0 {
			m.rowCov[i] = true
			m.colCov[sc] = false

			continue
		}

		m.flipPath(i, j)
		m.clearCovers()
		m.erasePrimes()

		return
	}
}

func (m *munkres) findUncoveredZero() (int, int, bool) {
	for i := range m.n {
		if m.rowCov[i] {
			continue
		}
		for j := range m.n {
			if !m.colCov[j] && m.c[i][j] == 0 {
				return i, j, true
			}
		}
	}

	return 0, 0, false
}

// adjust subtracts the smallest uncovered value from every uncovered entry
// and adds it to every doubly covered entry. Each entry is touched at most
// once so existing zeros stay exactly zero.
func (m *munkres) adjust() {
	h := math.Inf(1)
	for i := range m.n {
		if m.rowCov[i] {
			continue
		}
		for j := range m.n {
			if !m.colCov[j] {
				h = math.Min(h, m.c[i][j])
			}
		}
	}

	for i := range m.n {
		for j := range m.n {
			switch {
			case m.rowCov[i] && m.colCov[j]:
				m.c[i][j] += h
			case !m.rowCov[i] && !m.colCov[j]:
				m.c[i][j] -= h
			}
		}
	}
}

func (m *munkres) flipPath(row, col int) {
	type cell struct{ r, c int }

	path := []cell{{row, col}}
	for {
		last := path[len(path)-1]

		r := m.findInCol(last.c, starred)
		if r < 0 {
			break
		}
		path = append(path, cell{r, last.c})

		c := m.findInRow(r, primed)
		path = append(path, cell{r, c})
	}

	for _, p := range path {
		if m.marks[p.r][p.c] == starred {
			m.marks[p.r][p.c] = unmarked
		} else {
			m.marks[p.r][p.c] = starred
		}
	}
}

func (m *munkres) findInRow(i int, mark uint8) int {
	for j := range m.n {
		if m.marks[i][j] == mark {
			return j
		}
	}

	return -1
}

func (m *munkres) findInCol(j int, mark uint8) int {
	for i := range m.n {
		if m.marks[i][j] == mark {
			return i
		}
	}

	return -1
}

func (m *munkres) clearCovers() {
	for i := range m.n {
		m.rowCov[i] = false
		m.colCov[i] = false
	}
}

func (m *munkres) erasePrimes() {
	for i := range m.n {
		for j := range m.n {
			if m.marks[i][j] == primed {
				m.marks[i][j] = unmarked
			}
		}
	}
}
