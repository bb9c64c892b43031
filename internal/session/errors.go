package session

import "errors"

var (
	// ErrAlreadyStarted is returned by Run when the player was started
	// before. Players are single-use.
	ErrAlreadyStarted = errors.New("session: player already started")
	// ErrReconnectBudget is returned when the retry budget is exhausted
	// without a stable session.
	ErrReconnectBudget = errors.New("session: reconnect budget exhausted")
	// ErrMediaTransport reports a media transport that failed after
	// negotiation.
	ErrMediaTransport = errors.New("session: media transport failed")
)
