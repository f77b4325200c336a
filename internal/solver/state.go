package solver

import (
	"fmt"

	"github.com/specialistvlad/femloop/internal/params"
)

// State is where a Session is in its solve cycle.
type State int

const (
	StateIdle State = iota
	StateStarting
	StateRunning
	StateCollecting
	StateFailed
)

// String returns the state's name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateCollecting:
		return "collecting"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// RunState is the mutable part of a session.
type RunState struct {
	// JobName is the job the solver actually runs under, which may differ
	// from the configured one.
	JobName string
	// LastInput is the input set of the last completed solve.
	LastInput *params.Set
}
