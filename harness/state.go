package harness

// State is a phase of the Runner's sweep.
type State int

const (
	StateIdle State = iota
	StateSweeping
	StateCycling
	StateInvoking
	StateFinalizing
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSweeping:
		return "sweeping_sizes"
	case StateCycling:
		return "cycling_at_size"
	case StateInvoking:
		return "invoking_solver"
	case StateFinalizing:
		return "finalizing_size"
	case StateDone:
		return "sweep_done"
	default:
		return "unknown"
	}
}
