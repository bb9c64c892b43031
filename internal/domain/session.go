package domain

// SessionHandle identifies a live session resource on a WHEP endpoint.
type SessionHandle struct {
	// ResourceURL is the absolute URL of the session resource, resolved
	// against the endpoint URL.
	ResourceURL string
	// ETag is the entity tag returned on creation, echoed back on trickle
	// updates when present.
	ETag string
	// AnswerSDP is the SDP answer returned by the endpoint.
	AnswerSDP string
	// ICEServers are STUN/TURN servers advertised by the endpoint.
	ICEServers []ICEServer
}

// ICEServer holds STUN/TURN server configuration.
type ICEServer struct {
	URL        string
	Username   string
	Credential string
}
