package harness

import (
	"errors"
	"fmt"

	"github.com/samber/lo"
	"github.com/weiihann/lapbench/config"
	"github.com/weiihann/lapbench/solver"
)

// NoCeiling admits a solver at every size.
const NoCeiling = config.NoCeiling

// Descriptor identifies a registered solver and the largest size, as an
// exponent of the registry base, at which it still runs.
type Descriptor struct {
	Name        string `json:"name"`
	SizeCeiling int    `json:"size_ceiling"`
}

// MaxSize returns base^SizeCeiling, or 0 for an unbounded descriptor.
func (d Descriptor) MaxSize(base int) int {
	if d.SizeCeiling == NoCeiling {
		return 0
	}

	return config.Pow(base, d.SizeCeiling)
}

type registered struct {
	desc   Descriptor
	solver solver.Solver
}

// Registry holds solvers in registration order. The Runner visits them in
// that order on every cycle.
type Registry struct {
	base    int
	entries []registered
	index   map[string]int
}

// NewRegistry creates an empty Registry whose ceilings are exponents of base.
func NewRegistry(base int) *Registry {
	return &Registry{
		base:  base,
		index: make(map[string]int),
	}
}

// Register adds a solver. Names must be unique.
func (r *Registry) Register(d Descriptor, s solver.Solver) error {
	switch {
	case d.Name == "":
		return errors.New("register solver: empty name")
	case s == nil:
		return fmt.Errorf("register %s: nil solver", d.Name)
	case d.SizeCeiling < NoCeiling:
		return fmt.Errorf("register %s: invalid size ceiling %d", d.Name, d.SizeCeiling)
	}

	if _, dup := r.index[d.Name]; dup {
		return fmt.Errorf("register %s: duplicate solver name", d.Name)
	}

	r.index[d.Name] = len(r.entries)
	r.entries = append(r.entries, registered{desc: d, solver: s})

	return nil
}

// Base returns the base the size ceilings are expressed in.
func (r *Registry) Base() int {
	return r.base
}

// Len returns the number of registered solvers.
func (r *Registry) Len() int {
	return len(r.entries)
}

// Names returns solver names in registration order.
func (r *Registry) Names() []string {
	return lo.Map(r.entries, func(e registered, _ int) string {
		return e.desc.Name
	})
}

// Descriptors returns copies of all descriptors in registration order.
func (r *Registry) Descriptors() []Descriptor {
	return lo.Map(r.entries, func(e registered, _ int) Descriptor {
		return e.desc
	})
}

// Descriptor returns the descriptor registered under name.
func (r *Registry) Descriptor(name string) (Descriptor, bool) {
	i, ok := r.index[name]
	if !ok {
		return Descriptor{}, false
	}

	return r.entries[i].desc, true
}

// Eligible reports whether the named solver may run at the given size,
// i.e. size <= base^ceiling. Unknown names and non-positive sizes are
// never eligible.
func (r *Registry) Eligible(name string, size int) bool {
	d, ok := r.Descriptor(name)
	if !ok || size <= 0 {
		return false
	}

	return eligible(d, r.base, size)
}

func eligible(d Descriptor, base, size int) bool {
	if d.SizeCeiling == NoCeiling {
		return true
	}

	return size <= config.Pow(base, d.SizeCeiling)
}
