package executor

import (
	"fmt"
	"sync"
)

// State is the lifecycle position of one package within a run.
type State int

const (
	StatePending State = iota
	StateInProgress
	StateSucceeded
	StateFailed
	// StateSkipped is the Failed variant applied when an ancestor fails
	// before the package is dispatched.
	StateSkipped
)

// String returns the reporting spelling of the state.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateInProgress:
		return "in-progress"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateSkipped:
		return "skipped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether a node may never leave this state within a run.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateSkipped
}

// stateTable is the only mutable structure shared between workers. Every
// transition goes through its single lock, and leaving a terminal state
// is a scheduler bug that panics rather than corrupting a run.
type stateTable struct {
	mu     sync.Mutex
	states map[string]State
	errs   map[string]error
}

func newStateTable(names []string) *stateTable {
	t := &stateTable{
		states: make(map[string]State, len(names)),
		errs:   make(map[string]error, len(names)),
	}
	for _, name := range names {
		t.states[name] = StatePending
	}
	return t
}

// transition moves a node to a new state, recording the error for the
// failed variants.
func (t *stateTable) transition(name string, to State, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	from := t.states[name]
	if from.Terminal() {
		panic(fmt.Sprintf("executor: package %q transitioning %s -> %s", name, from, to))
	}
	t.states[name] = to
	if err != nil {
		t.errs[name] = err
	}
}

func (t *stateTable) get(name string) (State, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.states[name], t.errs[name]
}
