package session

import "strconv"

// State is the lifecycle state of a Player.
type State int

const (
	// StateIdle is the state before Run is called.
	StateIdle State = iota
	// StateOffering covers building the media engine and the local offer.
	StateOffering
	// StateAwaitingAnswer covers the create exchange with the endpoint.
	StateAwaitingAnswer
	// StateNegotiated means the answer was accepted by the media engine.
	StateNegotiated
	// StateConnecting means the media transport is being established.
	StateConnecting
	// StateConnected means media is flowing.
	StateConnected
	// StateReconnecting covers teardown and backoff between attempts.
	StateReconnecting
	// StateClosed is the terminal state after a requested stop.
	StateClosed
	// StateFailed is the terminal state after an unrecoverable error.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateOffering:
		return "Offering"
	case StateAwaitingAnswer:
		return "AwaitingAnswer"
	case StateNegotiated:
		return "Negotiated"
	case StateConnecting:
		return "Connecting"
	case StateConnected:
		return "Connected"
	case StateReconnecting:
		return "Reconnecting"
	case StateClosed:
		return "Closed"
	case StateFailed:
		return "Failed"
	default:
		return "State(" + strconv.Itoa(int(s)) + ")"
	}
}
