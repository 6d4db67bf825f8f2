package flows

import "strings"

// State is a pipeline position. Only Succeeded and Failed are terminal.
type State uint8

const (
	StateIdle State = iota
	StateValidating
	StateCreatingIdentity
	StatePersistingProfile
	StateAuthenticating
	StateFetchingProfile
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating"
	case StateCreatingIdentity:
		return "creating_identity"
	case StatePersistingProfile:
		return "persisting_profile"
	case StateAuthenticating:
		return "authenticating"
	case StateFetchingProfile:
		return "fetching_profile"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether s ends a pipeline.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// machine walks one pipeline and reports each edge to the observer.
type machine struct {
	state   State
	observe func(from, to State)
}

func newMachine(observe func(from, to State)) *machine {
	if observe == nil {
		observe = func(State, State) {}
	}
	return &machine{state: StateIdle, observe: observe}
}

func (m *machine) enter(next State) {
	prev := m.state
	m.state = next
	m.observe(prev, next)
}

// blankIdentity matches the root package's IdentityID.Valid rule.
func blankIdentity(id string) bool {
	return strings.TrimSpace(id) == ""
}
