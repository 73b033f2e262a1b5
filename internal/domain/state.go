package domain

// State is the lifecycle position mirrored from the playback engine.
// The numeric values are stable: range checks depend on their order.
type State int

const (
	StateUnknown     State = -2
	StateError       State = -1
	StateIdle        State = 0
	StateInitialized State = 1
	StatePreparing   State = 2
	StatePrepared    State = 3
	StateStarted     State = 4
	StatePaused      State = 5
	StateStopped     State = 6
	StateCompleted   State = 7
	StateEnded       State = 8
)

// AllStates lists every state in ascending order.
var AllStates = []State{
	StateUnknown,
	StateError,
	StateIdle,
	StateInitialized,
	StatePreparing,
	StatePrepared,
	StateStarted,
	StatePaused,
	StateStopped,
	StateCompleted,
	StateEnded,
}

func (s State) String() string {
	switch s {
	case StateUnknown:
		return "Unknown"
	case StateError:
		return "Error"
	case StateIdle:
		return "Idle"
	case StateInitialized:
		return "Initialized"
	case StatePreparing:
		return "Preparing"
	case StatePrepared:
		return "Prepared"
	case StateStarted:
		return "Started"
	case StatePaused:
		return "Paused"
	case StateStopped:
		return "Stopped"
	case StateCompleted:
		return "Completed"
	case StateEnded:
		return "Ended"
	default:
		return "Invalid"
	}
}

func (s State) Valid() bool {
	return s >= StateUnknown && s <= StateEnded
}

// Ready reports whether playback can be started right away.
func (s State) Ready() bool {
	return s == StatePrepared
}

// Initialized reports whether a data source is attached.
func (s State) Initialized() bool {
	return s >= StateInitialized && s <= StateCompleted
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateEnded
}
