package domain

import "github.com/pion/rtp"

// Candidate is one ICE candidate in transit between the media engine and
// the signaling layer. Values are copied between queues, never shared.
type Candidate struct {
	// Candidate is the candidate attribute value, e.g. "candidate:1 1 udp ...".
	Candidate string
	// SDPMid names the media section the candidate belongs to.
	SDPMid string
	// SDPMLineIndex is the zero-based media line index.
	SDPMLineIndex int
	// UsernameFragment is the ICE ufrag the candidate was gathered under.
	UsernameFragment string
}

// TrackKind tells audio and video tracks apart.
type TrackKind string

const (
	TrackKindAudio TrackKind = "audio"
	TrackKindVideo TrackKind = "video"
)

// RTPReader reads RTP packets from a remote track.
type RTPReader interface {
	ReadRTP() (*rtp.Packet, error)
}

// Track is a negotiated inbound media track handed to the sink.
type Track struct {
	ID        string
	Kind      TrackKind
	MimeType  string
	ClockRate uint32
	RTP       RTPReader
}

// ConnState is the media transport state as seen by the session core.
type ConnState int

const (
	ConnStateNew ConnState = iota
	ConnStateConnecting
	ConnStateConnected
	ConnStateDisconnected
	ConnStateFailed
	ConnStateClosed
)

func (s ConnState) String() string {
	switch s {
	case ConnStateNew:
		return "new"
	case ConnStateConnecting:
		return "connecting"
	case ConnStateConnected:
		return "connected"
	case ConnStateDisconnected:
		return "disconnected"
	case ConnStateFailed:
		return "failed"
	case ConnStateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
