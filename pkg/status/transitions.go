package status

import (
	"fmt"
	"slices"
)

// RunTransitions defines valid state transitions for runs
// Key is the current state, value is a list of valid next states
var RunTransitions = map[Run][]Run{
	RunSeeding:     {RunPaginating, RunFallingBack, RunFailed},
	RunPaginating:  {RunDone, RunFallingBack},
	RunDone:        {RunNormalizing},
	RunFallingBack: {RunNormalizing, RunFailed},
	RunNormalizing: {RunEnriching, RunComplete},
	RunEnriching:   {RunComplete},
	RunComplete:    {}, // terminal state
	RunFailed:      {}, // terminal state
}

// CanRunTransition checks if a run state transition is valid
func CanRunTransition(from, to Run) bool {
	allowed, ok := RunTransitions[from]
	if !ok {
		return false
	}
	return slices.Contains(allowed, to)
}

// Machine tracks the current state of a run and the states it went through
type Machine struct {
	current Run
	trace   []Run
}

func NewMachine() *Machine {
	return &Machine{current: RunSeeding, trace: []Run{RunSeeding}}
}

func (m *Machine) Current() Run {
	return m.current
}

// Trace returns a copy of visited states in order
func (m *Machine) Trace() []Run {
	return slices.Clone(m.trace)
}

// To moves the machine to the next state
func (m *Machine) To(next Run) error {
	if !next.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, next)
	}
	if !CanRunTransition(m.current, next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, m.current, next)
	}
	m.current = next
	m.trace = append(m.trace, next)
	return nil
}
