package domain

import "context"

// Signaler performs the WHEP HTTP exchanges against one endpoint. A session
// resource is created once per connection attempt and addressed through the
// returned handle afterwards.
type Signaler interface {
	// CreateSession posts an SDP offer and returns the answered session.
	CreateSession(ctx context.Context, offerSDP string) (*SessionHandle, error)
	// Trickle sends an ICE candidate fragment to the session resource.
	Trickle(ctx context.Context, handle *SessionHandle, fragment string) error
	// Renegotiate sends a new offer to the session resource and returns the
	// new answer.
	Renegotiate(ctx context.Context, handle *SessionHandle, offerSDP string) (string, error)
	// Terminate deletes the session resource. A resource that is already
	// gone counts as deleted.
	Terminate(ctx context.Context, handle *SessionHandle) error
}

// MediaEngine drives the WebRTC peer for a single connection attempt.
// Callback setters must be called before CreateOffer.
type MediaEngine interface {
	AddTransceivers() error
	CreateOffer() (string, error)
	SetRemoteAnswer(answerSDP string) error
	AddRemoteCandidate(c Candidate) error
	SetOnCandidate(func(Candidate))
	SetOnGatheringComplete(func())
	SetOnConnectionState(func(ConnState))
	SetOnTrack(func(Track))
	Close() error
}

// EngineFactory builds a fresh media engine for every connection attempt.
type EngineFactory interface {
	NewEngine(servers []ICEServer) (MediaEngine, error)
}

// Sink receives negotiated tracks and is told exactly once when the session
// is over.
type Sink interface {
	OnTrack(Track)
	OnSessionEnded(err error)
}
