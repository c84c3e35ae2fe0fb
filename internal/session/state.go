package session

// State is a session's position in its connection lifecycle.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateHandshaking
	StateActive
	StateReconnecting
	StateClosing
	StateClosed
)

var stateNames = [...]string{
	StateIdle:         "idle",
	StateConnecting:   "connecting",
	StateHandshaking:  "handshaking",
	StateActive:       "active",
	StateReconnecting: "reconnecting",
	StateClosing:      "closing",
	StateClosed:       "closed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether no further transitions can happen.
func (s State) Terminal() bool { return s == StateClosed }
