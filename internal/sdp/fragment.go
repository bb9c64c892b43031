package sdp

import (
	"fmt"
	"strings"

	pionsdp "github.com/pion/sdp/v3"

	"github.com/mpromonet/go-whep-play/internal/domain"
)

// TrickleFragment builds an application/trickle-ice-sdpfrag body carrying
// the given candidates, grouped under the description's media sections.
// Sections without a matching candidate are left out.
func (d *Description) TrickleFragment(cands []domain.Candidate) (string, error) {
	var b strings.Builder
	if err := d.writeFragmentHeader(&b); err != nil {
		return "", err
	}
	for i, md := range d.sd.MediaDescriptions {
		mid, _ := md.Attribute("mid")
		var attrs []string
		for _, c := range cands {
			if matchesSection(c, mid, i) {
				attrs = append(attrs, "a="+c.Candidate)
			}
		}
		if len(attrs) == 0 {
			continue
		}
		writeSectionHeader(&b, md, mid)
		for _, a := range attrs {
			b.WriteString(a)
			b.WriteString("\r\n")
		}
	}
	return b.String(), nil
}

// EndOfCandidatesFragment builds the fragment telling the endpoint that no
// further candidates will follow.
func (d *Description) EndOfCandidatesFragment() (string, error) {
	var b strings.Builder
	if err := d.writeFragmentHeader(&b); err != nil {
		return "", err
	}
	for _, md := range d.sd.MediaDescriptions {
		mid, _ := md.Attribute("mid")
		writeSectionHeader(&b, md, mid)
		b.WriteString("a=end-of-candidates\r\n")
	}
	return b.String(), nil
}

func (d *Description) writeFragmentHeader(b *strings.Builder) error {
	ufrag, pwd := d.ICECredentials()
	if ufrag == "" || pwd == "" {
		return fmt.Errorf("%w: missing ice credentials", ErrMalformedSDP)
	}
	fmt.Fprintf(b, "a=ice-ufrag:%s\r\n", ufrag)
	fmt.Fprintf(b, "a=ice-pwd:%s\r\n", pwd)
	return nil
}

func writeSectionHeader(b *strings.Builder, md *pionsdp.MediaDescription, mid string) {
	fmt.Fprintf(b, "m=%s\r\n", md.MediaName.String())
	if mid != "" {
		fmt.Fprintf(b, "a=mid:%s\r\n", mid)
	}
}

// matchesSection pairs a candidate with a media section by mid when the
// candidate carries one, by media line index otherwise.
func matchesSection(c domain.Candidate, mid string, index int) bool {
	if c.SDPMid != "" {
		return c.SDPMid == mid
	}
	return c.SDPMLineIndex == index
}
