package async

// State is a session's position in the async protocol.
type State uint8

const (
	StateStarted State = iota
	StateWaiting
	StateReady
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateStarted:
		return "started"
	case StateWaiting:
		return "waiting"
	case StateReady:
		return "ready"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Observer is notified of every state transition.
type Observer func(name string, state State)
