package config

// FloorLog returns the largest e with base^e <= n. n must be positive.
func FloorLog(base, n int) int {
	e := 0
	for p := base; p <= n; p *= base {
		e++
		if p > n/base {
			break
		}
	}

	return e
}

// CeilLog returns the smallest e with base^e >= n. n must be positive.
func CeilLog(base, n int) int {
	e := 0
	for p := 1; p < n; p *= base {
		e++
	}

	return e
}

// Pow returns base^e, saturating at the largest int instead of overflowing.
func Pow(base, e int) int {
	const maxInt = int(^uint(0) >> 1)

	p := 1
	for range e {
		if p > maxInt/base {
			return maxInt
		}
		p *= base
	}

	return p
}

// Exponents returns the sweep bounds: floor(log_base(MinDim)) and
// ceil(log_base(MaxDim)).
func (c Config) Exponents() (lo, hi int) {
	return FloorLog(c.Base, c.MinDim), CeilLog(c.Base, c.MaxDim)
}

// Sizes returns the matrix dimensions visited by the sweep, increasing.
// The upper exponent is excluded unless Inclusive is set and base^hi equals
// MaxDim exactly, so no size ever exceeds MaxDim.
func (c Config) Sizes() []int {
	if c.Base < 2 || c.MinDim <= 0 || c.MaxDim < c.MinDim {
		return nil
	}

	lo, hi := c.Exponents()

	last := hi - 1
	if c.Inclusive && Pow(c.Base, hi) == c.MaxDim {
		last = hi
	}

	var sizes []int
	for e := lo; e <= last; e++ {
		sizes = append(sizes, Pow(c.Base, e))
	}

	return sizes
}

// CeilingFor returns the configured ceiling override for a solver and
// whether one was set.
func (c Config) CeilingFor(name string) (int, bool) {
	v, ok := c.Ceilings[name]

	return v, ok
}
