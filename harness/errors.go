package harness

import "fmt"

// SolverContractViolation is raised when a solver returns a malformed
// assignment or a cost that does not match it. The solver is dropped for
// the rest of the sweep; other solvers continue.
type SolverContractViolation struct {
	Solver string
	Size   int
	Cycle  int
	Err    error
}

func (e *SolverContractViolation) Error() string {
	return fmt.Sprintf("solver %s violated its contract at size %d, cycle %d: %v",
		e.Solver, e.Size, e.Cycle, e.Err)
}

func (e *SolverContractViolation) Unwrap() error { return e.Err }

// SolverFailure wraps an error returned (or a panic raised) by a solver.
// It ends the sweep unless the run skips failed solvers.
type SolverFailure struct {
	Solver string
	Size   int
	Cycle  int
	Err    error
}

func (e *SolverFailure) Error() string {
	return fmt.Sprintf("solver %s failed at size %d, cycle %d: %v",
		e.Solver, e.Size, e.Cycle, e.Err)
}

func (e *SolverFailure) Unwrap() error { return e.Err }
