// Package workload generates random cost matrices for assignment-problem
// benchmarks. Every call to Generate returns a freshly allocated matrix so
// no two cycles ever share backing storage.
package workload

import (
	"errors"
	"fmt"
	"math"
	mrand "math/rand"

	"gonum.org/v1/gonum/mat"
)

// Distribution names accepted by Config.Distribution.
const (
	Uniform = "uniform"
	Scaled  = "scaled"
	Integer = "integer"
)

var (
	// ErrInvalidSize is returned for a non-positive matrix dimension.
	ErrInvalidSize = errors.New("matrix size must be positive")
	// ErrNoIntegers is returned when an integer range holds no integer.
	ErrNoIntegers = errors.New("integer range contains no integer")
)

// HasIntegers reports whether [low, high] contains at least one integer.
func HasIntegers(low, high float64) bool {
	return math.Ceil(low) <= math.Floor(high)
}

// Config controls matrix generation.
type Config struct {
	// Distribution selects how entries are sampled:
	//   uniform: U[Low, High)
	//   scaled:  n * U[0, 1) for an n x n matrix
	//   integer: uniform integers in [Low, High]
	Distribution string
	Low          float64
	High         float64
	Seed         int64
}

// Generator produces cost matrices from a Config. It is not safe for
// concurrent use.
type Generator struct {
	cfg Config
	rng *mrand.Rand
}

// NewGenerator creates a Generator from the given Config. Unset bounds
// default to [0, 1).
func NewGenerator(cfg Config) *Generator {
	if cfg.Distribution == "" {
		cfg.Distribution = Uniform
	}
	if cfg.High <= cfg.Low {
		cfg.Low, cfg.High = 0, 1
	}

	return &Generator{
		cfg: cfg,
		rng: mrand.New(mrand.NewSource(cfg.Seed)),
	}
}

// Generate returns a new size x size matrix of independent non-negative
// samples.
func (g *Generator) Generate(size int) (*mat.Dense, error) {
	if size <= 0 {
		return nil, fmt.Errorf("generate %d: %w", size, ErrInvalidSize)
	}

	data := make([]float64, size*size)

	switch g.cfg.Distribution {
	case Scaled:
		n := float64(size)
		for i := range data {
			data[i] = n * g.rng.Float64()
		}

	case Integer:
		if !HasIntegers(g.cfg.Low, g.cfg.High) {
			return nil, fmt.Errorf("[%g, %g]: %w", g.cfg.Low, g.cfg.High, ErrNoIntegers)
		}

		lo := math.Ceil(g.cfg.Low)
		span := int64(math.Floor(g.cfg.High)-lo) + 1
		for i := range data {
			data[i] = lo + float64(g.rng.Int63n(span))
		}

	case Uniform:
		width := g.cfg.High - g.cfg.Low
		for i := range data {
			data[i] = g.cfg.Low + width*g.rng.Float64()
		}

	default:
		return nil, fmt.Errorf("unknown distribution %q", g.cfg.Distribution)
	}

	return mat.NewDense(size, size, data), nil
}
