package sdp

import (
	"errors"
	"strings"
	"testing"

	"github.com/mpromonet/go-whep-play/internal/domain"
)

func TestTrickleFragment(t *testing.T) {
	d, err := Parse(offerFixture())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	frag, err := d.TrickleFragment([]domain.Candidate{{
		Candidate:     "candidate:100 1 udp 2122260223 192.0.2.7 40000 typ host",
		SDPMid:        "0",
		SDPMLineIndex: 0,
	}})
	if err != nil {
		t.Fatalf("fragment: %v", err)
	}

	want := "a=ice-ufrag:EsAw\r\n" +
		"a=ice-pwd:P2uYro0UCOQ4zxjKXaWCBui1\r\n" +
		"m=video 9 UDP/TLS/RTP/SAVPF 96 97\r\n" +
		"a=mid:0\r\n" +
		"a=candidate:100 1 udp 2122260223 192.0.2.7 40000 typ host\r\n"
	if frag != want {
		t.Errorf("fragment mismatch:\ngot:\n%s\nwant:\n%s", frag, want)
	}
}

func TestTrickleFragmentSkipsSectionsWithoutCandidates(t *testing.T) {
	d, err := Parse(offerFixture())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	frag, err := d.TrickleFragment([]domain.Candidate{{
		Candidate:     "candidate:200 1 udp 2122260222 192.0.2.8 41000 typ host",
		SDPMid:        "1",
		SDPMLineIndex: 1,
	}})
	if err != nil {
		t.Fatalf("fragment: %v", err)
	}

	if strings.Contains(frag, "m=video") {
		t.Errorf("video section should be left out:\n%s", frag)
	}
	if !strings.Contains(frag, "m=audio 9 UDP/TLS/RTP/SAVPF 111\r\na=mid:1\r\n") {
		t.Errorf("audio section missing or malformed:\n%s", frag)
	}
}

func TestTrickleFragmentMatchesByLineIndex(t *testing.T) {
	d, err := Parse(offerFixture())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	// No mid on the candidate: pairing falls back to the media line index.
	frag, err := d.TrickleFragment([]domain.Candidate{{
		Candidate:     "candidate:300 1 udp 2122260221 192.0.2.9 42000 typ host",
		SDPMLineIndex: 1,
	}})
	if err != nil {
		t.Fatalf("fragment: %v", err)
	}

	if !strings.Contains(frag, "m=audio") || strings.Contains(frag, "m=video") {
		t.Errorf("candidate should land in the audio section:\n%s", frag)
	}
}

func TestEndOfCandidatesFragment(t *testing.T) {
	d, err := Parse(offerFixture())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	frag, err := d.EndOfCandidatesFragment()
	if err != nil {
		t.Fatalf("fragment: %v", err)
	}

	if got := strings.Count(frag, "a=end-of-candidates\r\n"); got != 2 {
		t.Errorf("expected end-of-candidates in both sections, got %d:\n%s", got, frag)
	}
	if !strings.Contains(frag, "m=video") || !strings.Contains(frag, "m=audio") {
		t.Errorf("expected both media sections:\n%s", frag)
	}
}

func TestTrickleFragmentMissingCredentials(t *testing.T) {
	bare := "v=0\r\n" +
		"o=- 1 1 IN IP4 127.0.0.1\r\n" +
		"s=-\r\n" +
		"t=0 0\r\n" +
		"m=video 9 UDP/TLS/RTP/SAVPF 96\r\n" +
		"a=mid:0\r\n"
	d, err := Parse(bare)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	_, err = d.TrickleFragment([]domain.Candidate{{Candidate: "candidate:1 1 udp 1 192.0.2.1 4000 typ host", SDPMid: "0"}})
	if !errors.Is(err, ErrMalformedSDP) {
		t.Errorf("expected ErrMalformedSDP, got %v", err)
	}
}
