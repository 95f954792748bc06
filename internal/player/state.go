package player

type State int

const (
	StateIdle State = iota
	StateConnecting
	StateAwaitingReady
	StateReady
	StatePlaying
	StatePaused
	StateNotReady
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateAwaitingReady:
		return "awaiting_ready"
	case StateReady:
		return "ready"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateNotReady:
		return "not_ready"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// usable reports whether the session has completed a handshake and not been torn down.
func (s State) usable() bool {
	return s == StateReady || s == StatePlaying || s == StatePaused
}

// Status is a read-only snapshot for display.
type Status struct {
	State     string `json:"state"`
	IsReady   bool   `json:"isReady"`
	IsPlaying bool   `json:"isPlaying"`
	DeviceID  string `json:"deviceId,omitempty"`
	Error     string `json:"error,omitempty"`
}
