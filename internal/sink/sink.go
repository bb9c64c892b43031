package sink

import (
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/pion/logging"

	"github.com/mpromonet/go-whep-play/internal/domain"
)

const mimeTypeH264 = "video/H264"

var annexBStartCode = []byte{0x00, 0x00, 0x00, 0x01}

// Config carries the writer sink dependencies.
type Config struct {
	// Output receives the H264 elementary stream.
	Output io.Writer
	// LoggerFactory overrides the default logger factory.
	LoggerFactory logging.LoggerFactory
}

// WriterSink plays the first H264 video track as an Annex-B elementary
// stream on an io.Writer, typically a pipe into ffplay. Every other track
// is drained so the transport keeps feeding back RTCP.
type WriterSink struct {
	out io.Writer
	log logging.LeveledLogger

	mu      sync.Mutex
	playing bool
}

// NewWriter builds a sink writing to cfg.Output.
func NewWriter(cfg Config) *WriterSink {
	loggerFactory := cfg.LoggerFactory
	if loggerFactory == nil {
		loggerFactory = logging.NewDefaultLoggerFactory()
	}
	return &WriterSink{
		out: cfg.Output,
		log: loggerFactory.NewLogger("sink"),
	}
}

// OnTrack starts playback for the first H264 video track and drains the
// rest. Tracks from a replaced session take over once the previous track
// reader has returned.
func (s *WriterSink) OnTrack(t domain.Track) {
	if t.Kind == domain.TrackKindVideo && strings.EqualFold(t.MimeType, mimeTypeH264) && s.claimVideo() {
		s.log.Infof("playing track %s (%s)", t.ID, t.MimeType)
		go func() {
			defer s.releaseVideo()
			s.playH264(t)
		}()
		return
	}
	s.log.Infof("draining track %s (%s %s)", t.ID, t.Kind, t.MimeType)
	go s.drain(t)
}

// OnSessionEnded logs the outcome and flushes the output when it buffers.
func (s *WriterSink) OnSessionEnded(err error) {
	if err != nil {
		s.log.Errorf("session ended: %v", err)
	} else {
		s.log.Infof("session ended")
	}
	if f, ok := s.out.(interface{ Flush() error }); ok {
		if ferr := f.Flush(); ferr != nil {
			s.log.Warnf("flush output: %v", ferr)
		}
	}
}

func (s *WriterSink) claimVideo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.playing {
		return false
	}
	s.playing = true
	return true
}

func (s *WriterSink) releaseVideo() {
	s.mu.Lock()
	s.playing = false
	s.mu.Unlock()
}

func (s *WriterSink) playH264(t domain.Track) {
	depack := NewH264Depacketizer()
	for {
		pkt, err := t.RTP.ReadRTP()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.log.Warnf("video track read: %v", err)
			}
			return
		}

		for _, nalu := range depack.Depacketize(pkt.SequenceNumber, pkt.Payload) {
			if len(nalu) == 0 {
				continue
			}
			if _, err := s.out.Write(annexBStartCode); err != nil {
				s.log.Warnf("output write: %v", err)
				return
			}
			if _, err := s.out.Write(nalu); err != nil {
				s.log.Warnf("output write: %v", err)
				return
			}
		}
	}
}

func (s *WriterSink) drain(t domain.Track) {
	for {
		if _, err := t.RTP.ReadRTP(); err != nil {
			return
		}
	}
}
