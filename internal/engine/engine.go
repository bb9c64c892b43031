package engine

import (
	"fmt"
	"strings"

	"github.com/pion/interceptor"
	"github.com/pion/interceptor/pkg/intervalpli"
	"github.com/pion/logging"
	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	pion "github.com/pion/webrtc/v4"

	"github.com/mpromonet/go-whep-play/internal/domain"
)

// Factory builds Pion-backed media engines.
type Factory struct {
	LoggerFactory logging.LoggerFactory
}

// NewEngine creates an engine configured with the given ICE servers.
func (f *Factory) NewEngine(servers []domain.ICEServer) (domain.MediaEngine, error) {
	loggerFactory := f.LoggerFactory
	if loggerFactory == nil {
		loggerFactory = logging.NewDefaultLoggerFactory()
	}
	return newEngine(servers, loggerFactory)
}

// Engine wraps a Pion PeerConnection behind the media engine port.
type Engine struct {
	pc            *pion.PeerConnection
	log           logging.LeveledLogger
	remoteDescSet chan struct{}

	onCandidate  func(domain.Candidate)
	onGatherDone func()
	onConnState  func(domain.ConnState)
	onTrack      func(domain.Track)
}

func newEngine(iceServers []domain.ICEServer, loggerFactory logging.LoggerFactory) (*Engine, error) {
	m := &pion.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}

	registry := &interceptor.Registry{}
	if err := pion.RegisterDefaultInterceptors(m, registry); err != nil {
		return nil, fmt.Errorf("register interceptors: %w", err)
	}
	pli, err := intervalpli.NewReceiverInterceptor()
	if err != nil {
		return nil, fmt.Errorf("create pli interceptor: %w", err)
	}
	registry.Add(pli)

	settings := pion.SettingEngine{LoggerFactory: loggerFactory}
	api := pion.NewAPI(
		pion.WithMediaEngine(m),
		pion.WithInterceptorRegistry(registry),
		pion.WithSettingEngine(settings),
	)

	var servers []pion.ICEServer
	for _, s := range iceServers {
		servers = append(servers, pion.ICEServer{
			URLs:       []string{s.URL},
			Username:   s.Username,
			Credential: s.Credential,
		})
	}

	pc, err := api.NewPeerConnection(pion.Configuration{
		ICEServers:   servers,
		BundlePolicy: pion.BundlePolicyMaxBundle,
	})
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	e := &Engine{
		pc:            pc,
		log:           loggerFactory.NewLogger("engine"),
		remoteDescSet: make(chan struct{}),
	}

	pc.OnICECandidate(func(c *pion.ICECandidate) {
		if c == nil {
			e.log.Debugf("ice gathering complete")
			if e.onGatherDone != nil {
				e.onGatherDone()
			}
			return
		}
		init := c.ToJSON()
		if isLoopback(init.Candidate) {
			e.log.Debugf("filtering loopback candidate")
			return
		}
		cand := domain.Candidate{Candidate: init.Candidate}
		if init.SDPMid != nil {
			cand.SDPMid = *init.SDPMid
		}
		if init.SDPMLineIndex != nil {
			cand.SDPMLineIndex = int(*init.SDPMLineIndex)
		}
		if init.UsernameFragment != nil {
			cand.UsernameFragment = *init.UsernameFragment
		}
		e.log.Debugf("local candidate: %s", init.Candidate)
		if e.onCandidate != nil {
			e.onCandidate(cand)
		}
	})

	pc.OnICEConnectionStateChange(func(state pion.ICEConnectionState) {
		e.log.Debugf("ice connection state: %s", state)
	})
	pc.OnConnectionStateChange(func(state pion.PeerConnectionState) {
		e.log.Infof("peer connection state: %s", state)
		if e.onConnState != nil {
			e.onConnState(mapConnState(state))
		}
	})

	pc.OnTrack(func(track *pion.TrackRemote, receiver *pion.RTPReceiver) {
		codec := track.Codec()
		e.log.Infof("track: id=%s kind=%s codec=%s pt=%d", track.ID(), track.Kind(), codec.MimeType, codec.PayloadType)
		if track.Kind() == pion.RTPCodecTypeVideo {
			// Ask for a keyframe now instead of waiting out the PLI interval,
			// so playback after a reconnect starts on a decodable frame.
			err := pc.WriteRTCP([]rtcp.Packet{&rtcp.PictureLossIndication{MediaSSRC: uint32(track.SSRC())}})
			if err != nil {
				e.log.Warnf("request keyframe: %v", err)
			}
		}
		if e.onTrack == nil {
			return
		}
		e.onTrack(domain.Track{
			ID:        track.ID(),
			Kind:      mapKind(track.Kind()),
			MimeType:  codec.MimeType,
			ClockRate: codec.ClockRate,
			RTP:       &remoteTrackReader{track: track},
		})
	})

	return e, nil
}

// SetOnCandidate registers the local candidate callback.
func (e *Engine) SetOnCandidate(fn func(domain.Candidate)) {
	e.onCandidate = fn
}

// SetOnGatheringComplete registers the end-of-gathering callback.
func (e *Engine) SetOnGatheringComplete(fn func()) {
	e.onGatherDone = fn
}

// SetOnConnectionState registers the connection state callback.
func (e *Engine) SetOnConnectionState(fn func(domain.ConnState)) {
	e.onConnState = fn
}

// SetOnTrack registers the incoming track callback.
func (e *Engine) SetOnTrack(fn func(domain.Track)) {
	e.onTrack = fn
}

// AddTransceivers adds recvonly video and audio transceivers, preferring
// H264 for video so the stream can be piped out without transcoding.
func (e *Engine) AddTransceivers() error {
	video, err := e.pc.AddTransceiverFromKind(pion.RTPCodecTypeVideo, pion.RTPTransceiverInit{
		Direction: pion.RTPTransceiverDirectionRecvonly,
	})
	if err != nil {
		return fmt.Errorf("add video transceiver: %w", err)
	}
	if err := video.SetCodecPreferences(videoCodecPreferences()); err != nil {
		return fmt.Errorf("set video codec preferences: %w", err)
	}

	_, err = e.pc.AddTransceiverFromKind(pion.RTPCodecTypeAudio, pion.RTPTransceiverInit{
		Direction: pion.RTPTransceiverDirectionRecvonly,
	})
	if err != nil {
		return fmt.Errorf("add audio transceiver: %w", err)
	}
	return nil
}

// CreateOffer creates an SDP offer and sets it as the local description,
// which also starts ICE gathering.
func (e *Engine) CreateOffer() (string, error) {
	offer, err := e.pc.CreateOffer(nil)
	if err != nil {
		return "", fmt.Errorf("create offer: %w", err)
	}
	if err := e.pc.SetLocalDescription(offer); err != nil {
		return "", fmt.Errorf("set local description: %w", err)
	}
	e.log.Debugf("local offer set")
	return offer.SDP, nil
}

// SetRemoteAnswer applies the SDP answer and unblocks remote candidate
// addition.
func (e *Engine) SetRemoteAnswer(answerSDP string) error {
	answer := pion.SessionDescription{
		Type: pion.SDPTypeAnswer,
		SDP:  answerSDP,
	}
	if err := e.pc.SetRemoteDescription(answer); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrIncompatibleMedia, err)
	}
	e.log.Debugf("remote answer set")
	close(e.remoteDescSet)
	return nil
}

// AddRemoteCandidate waits for the remote description, then adds the
// candidate.
func (e *Engine) AddRemoteCandidate(c domain.Candidate) error {
	<-e.remoteDescSet

	mid := c.SDPMid
	index := uint16(c.SDPMLineIndex)
	init := pion.ICECandidateInit{
		Candidate:     c.Candidate,
		SDPMid:        &mid,
		SDPMLineIndex: &index,
	}
	if c.UsernameFragment != "" {
		ufrag := c.UsernameFragment
		init.UsernameFragment = &ufrag
	}
	if err := e.pc.AddICECandidate(init); err != nil {
		return fmt.Errorf("add ice candidate: %w", err)
	}
	e.log.Debugf("added remote candidate")
	return nil
}

// Close shuts down the peer connection.
func (e *Engine) Close() error {
	return e.pc.Close()
}

// remoteTrackReader adapts a Pion remote track to the RTP reader port.
type remoteTrackReader struct {
	track *pion.TrackRemote
}

func (r *remoteTrackReader) ReadRTP() (*rtp.Packet, error) {
	pkt, _, err := r.track.ReadRTP()
	return pkt, err
}

func videoCodecPreferences() []pion.RTPCodecParameters {
	return []pion.RTPCodecParameters{
		{
			RTPCodecCapability: pion.RTPCodecCapability{
				MimeType:    pion.MimeTypeH264,
				ClockRate:   90000,
				SDPFmtpLine: "level-asymmetry-allowed=1;packetization-mode=1;profile-level-id=42001f",
			},
			PayloadType: 96,
		},
		{
			RTPCodecCapability: pion.RTPCodecCapability{
				MimeType:  pion.MimeTypeVP8,
				ClockRate: 90000,
			},
			PayloadType: 97,
		},
	}
}

func mapConnState(s pion.PeerConnectionState) domain.ConnState {
	switch s {
	case pion.PeerConnectionStateConnecting:
		return domain.ConnStateConnecting
	case pion.PeerConnectionStateConnected:
		return domain.ConnStateConnected
	case pion.PeerConnectionStateDisconnected:
		return domain.ConnStateDisconnected
	case pion.PeerConnectionStateFailed:
		return domain.ConnStateFailed
	case pion.PeerConnectionStateClosed:
		return domain.ConnStateClosed
	}
	return domain.ConnStateNew
}

func mapKind(k pion.RTPCodecType) domain.TrackKind {
	if k == pion.RTPCodecTypeAudio {
		return domain.TrackKindAudio
	}
	return domain.TrackKindVideo
}

func isLoopback(candidate string) bool {
	return strings.Contains(candidate, "127.0.0.1") || strings.Contains(candidate, "::1 ")
}
