// Package config holds the benchmark configuration: built-in defaults, an
// optional YAML file, validation, and derivation of the size sweep.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/weiihann/lapbench/workload"
	"gopkg.in/yaml.v3"
)

// NoCeiling marks a solver that is admitted at every size in the sweep.
const NoCeiling = -1

// Config is the full benchmark configuration.
type Config struct {
	MinDim    int  `yaml:"min_dim"`
	MaxDim    int  `yaml:"max_dim"`
	Cycles    int  `yaml:"cycles"`
	Base      int  `yaml:"base"`
	Inclusive bool `yaml:"inclusive"`

	// Solvers selects which registered solvers run, in order. Empty means all.
	Solvers []string `yaml:"solvers"`
	// Ceilings overrides per-solver size ceilings (exponent of Base).
	Ceilings map[string]int `yaml:"ceilings"`

	CheckCost  bool    `yaml:"check_cost"`
	Tolerance  float64 `yaml:"tolerance"`
	SkipFailed bool    `yaml:"skip_failed"`

	Seed         int64   `yaml:"seed"`
	Distribution string  `yaml:"distribution"`
	Low          float64 `yaml:"low"`
	High         float64 `yaml:"high"`

	Verbose bool `yaml:"verbose"`

	Plot struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
		Title   string `yaml:"title"`
	} `yaml:"plot"`

	Output struct {
		JSON   bool   `yaml:"json"`
		SQLite string `yaml:"sqlite"`
	} `yaml:"output"`
}

// Default returns the configuration used when neither a file nor flags
// override a value: 8x8 up to (but excluding) 4096x4096, three cycles.
func Default() Config {
	var c Config

	c.MinDim = 8
	c.MaxDim = 4096
	c.Cycles = 3
	c.Base = 2
	c.Distribution = workload.Uniform
	c.Low = 0
	c.High = 1
	c.Plot.Enabled = true
	c.Plot.Path = "lap-benchmark.png"
	c.Plot.Title = "Time to solve LAPs using different solvers"

	return c
}

// Load reads a YAML file on top of Default. Keys absent from the file keep
// their default values.
func Load(path string) (Config, error) {
	c := Default()

	b, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(b, &c); err != nil {
		return c, fmt.Errorf("parse config %s: %w", path, err)
	}

	return c, nil
}

// ConfigurationError reports an invalid configuration value. It is raised
// before any sweep starts.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...any) error {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsConfigurationError reports whether err is (or wraps) a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError

	return errors.As(err, &ce)
}

// Validate checks the configuration and returns the first problem found.
func (c Config) Validate() error {
	switch {
	case c.MinDim <= 0:
		return invalid("min_dim", "must be positive, got %d", c.MinDim)
	case c.MaxDim <= 0:
		return invalid("max_dim", "must be positive, got %d", c.MaxDim)
	case c.MaxDim < c.MinDim:
		return invalid("max_dim", "%d is smaller than min_dim %d", c.MaxDim, c.MinDim)
	case c.Cycles < 1:
		return invalid("cycles", "must be at least 1, got %d", c.Cycles)
	case c.Base < 2:
		return invalid("base", "must be at least 2, got %d", c.Base)
	case c.Tolerance < 0:
		return invalid("tolerance", "must not be negative, got %g", c.Tolerance)
	}

	switch c.Distribution {
	case workload.Uniform, workload.Integer:
		if c.Low < 0 {
			return invalid("low", "costs must be non-negative, got %g", c.Low)
		}
		if c.High <= c.Low {
			return invalid("high", "%g must be greater than low %g", c.High, c.Low)
		}
		if c.Distribution == workload.Integer && !workload.HasIntegers(c.Low, c.High) {
			return invalid("high", "no integer between low %g and high %g", c.Low, c.High)
		}
	case workload.Scaled:
	default:
		return invalid("distribution", "unknown distribution %q", c.Distribution)
	}

	for name, ceiling := range c.Ceilings {
		if ceiling < NoCeiling {
			return invalid("ceilings", "%s: ceiling %d is below %d", name, ceiling, NoCeiling)
		}
	}

	if len(c.Sizes()) == 0 {
		hint := ""
		if !c.Inclusive {
			hint = " (set inclusive to include the maximum)"
		}

		return invalid("max_dim", "no sizes between %d and %d%s", c.MinDim, c.MaxDim, hint)
	}

	return nil
}
