package domain

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrResourceGone reports that the endpoint no longer knows the
	// session resource.
	ErrResourceGone = errors.New("whep: session resource gone")
	// ErrTrickleUnsupported reports that the endpoint does not accept
	// trickle ICE updates.
	ErrTrickleUnsupported = errors.New("whep: trickle ice not supported")
	// ErrRenegotiationUnsupported reports that the endpoint does not
	// accept in-place renegotiation.
	ErrRenegotiationUnsupported = errors.New("whep: renegotiation not supported")
	// ErrIncompatibleMedia reports an answer the media engine cannot use.
	ErrIncompatibleMedia = errors.New("whep: incompatible media description")
)

// TransportError wraps a network-level failure talking to the endpoint.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return "whep: transport: " + e.Err.Error() }

func (e *TransportError) Unwrap() error { return e.Err }

// RejectedError is a non-success status returned by the endpoint.
type RejectedError struct {
	Code int
	Body string
}

func (e *RejectedError) Error() string {
	if body := strings.TrimSpace(e.Body); body != "" {
		return fmt.Sprintf("whep: endpoint returned %d: %s", e.Code, body)
	}
	return fmt.Sprintf("whep: endpoint returned %d", e.Code)
}

// Retryable reports whether the rejection is transient and worth a fresh
// session attempt.
func (e *RejectedError) Retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}
