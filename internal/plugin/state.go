package plugin

// State represents the lifecycle state of a plugin.
type State int

// Plugin states.
const (
	// StateUnloaded - no module is open.
	StateUnloaded State = iota

	// StateLoading - a Load call owns the entry.
	StateLoading

	// StateLoaded - module open and contract validated, not yet activated.
	StateLoaded

	// StateActive - initialized, configured and activated.
	StateActive

	// StateError - the last operation failed; see LastError.
	StateError

	// StateUnloading - an Unload call owns the entry.
	StateUnloading
)

// String returns a string representation of the state.
func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateActive:
		return "active"
	case StateError:
		return "error"
	case StateUnloading:
		return "unloading"
	default:
		return "unknown"
	}
}

// AllStates lists every state in declaration order.
var AllStates = []State{StateUnloaded, StateLoading, StateLoaded, StateActive, StateError, StateUnloading}

// transitions is the legal state graph. Any state may move to Error.
var transitions = map[State][]State{
	StateUnloaded:  {StateLoading},
	StateLoading:   {StateLoaded, StateUnloading},
	StateLoaded:    {StateActive, StateUnloading},
	StateActive:    {StateLoaded, StateUnloading},
	StateError:     {StateLoading, StateUnloading},
	StateUnloading: {StateUnloaded},
}

// CanTransition reports whether from -> to is legal.
func CanTransition(from, to State) bool {
	if to == StateError {
		return true
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsBusy returns true while a load or unload owns the plugin.
func (s State) IsBusy() bool {
	return s == StateLoading || s == StateUnloading
}
