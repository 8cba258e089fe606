// internal/session/state.go
package session

// State is a step of one polling session.
type State int

const (
	Idle State = iota
	Connecting
	Connected
	AwaitingService
	AwaitingCharacteristics
	CommandSent
	WaitingForData
	Success
	TimedOut
	Failed
	Disconnecting
)

var stateNames = [...]string{
	Idle:                    "idle",
	Connecting:              "connecting",
	Connected:               "connected",
	AwaitingService:         "awaiting_service",
	AwaitingCharacteristics: "awaiting_characteristics",
	CommandSent:             "command_sent",
	WaitingForData:          "waiting_for_data",
	Success:                 "success",
	TimedOut:                "timed_out",
	Failed:                  "failed",
	Disconnecting:           "disconnecting",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether s ends a session.
func (s State) Terminal() bool {
	return s == Success || s == TimedOut || s == Failed
}
