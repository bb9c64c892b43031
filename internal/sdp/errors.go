package sdp

import "errors"

// ErrMalformedSDP is returned when a session description cannot be parsed
// or lacks fields an operation depends on.
var ErrMalformedSDP = errors.New("sdp: malformed session description")
