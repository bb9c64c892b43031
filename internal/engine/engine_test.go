package engine

import (
	"testing"

	pion "github.com/pion/webrtc/v4"

	"github.com/mpromonet/go-whep-play/internal/domain"
)

func TestMapConnState(t *testing.T) {
	cases := map[pion.PeerConnectionState]domain.ConnState{
		pion.PeerConnectionStateNew:          domain.ConnStateNew,
		pion.PeerConnectionStateConnecting:   domain.ConnStateConnecting,
		pion.PeerConnectionStateConnected:    domain.ConnStateConnected,
		pion.PeerConnectionStateDisconnected: domain.ConnStateDisconnected,
		pion.PeerConnectionStateFailed:       domain.ConnStateFailed,
		pion.PeerConnectionStateClosed:       domain.ConnStateClosed,
	}
	for in, want := range cases {
		if got := mapConnState(in); got != want {
			t.Errorf("mapConnState(%s) = %s, want %s", in, got, want)
		}
	}
}

func TestMapKind(t *testing.T) {
	if got := mapKind(pion.RTPCodecTypeAudio); got != domain.TrackKindAudio {
		t.Errorf("mapKind(audio) = %s", got)
	}
	if got := mapKind(pion.RTPCodecTypeVideo); got != domain.TrackKindVideo {
		t.Errorf("mapKind(video) = %s", got)
	}
}

func TestIsLoopback(t *testing.T) {
	cases := []struct {
		candidate string
		want      bool
	}{
		{"candidate:1 1 udp 2130706431 127.0.0.1 54321 typ host", true},
		{"candidate:2 1 udp 2130706431 ::1 54321 typ host", true},
		{"candidate:3 1 udp 2130706431 192.0.2.1 54321 typ host", false},
		{"candidate:4 1 udp 1694498815 198.51.100.7 61000 typ srflx", false},
	}
	for _, c := range cases {
		if got := isLoopback(c.candidate); got != c.want {
			t.Errorf("isLoopback(%q) = %v, want %v", c.candidate, got, c.want)
		}
	}
}

func TestVideoCodecPreferencesPreferH264(t *testing.T) {
	prefs := videoCodecPreferences()
	if len(prefs) == 0 {
		t.Fatal("no video codec preferences")
	}
	if prefs[0].MimeType != pion.MimeTypeH264 {
		t.Errorf("first preference = %s, want %s", prefs[0].MimeType, pion.MimeTypeH264)
	}
	for _, p := range prefs {
		if p.ClockRate != 90000 {
			t.Errorf("%s clock rate = %d, want 90000", p.MimeType, p.ClockRate)
		}
	}
}
