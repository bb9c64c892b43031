package sdp

import (
	"fmt"

	pionsdp "github.com/pion/sdp/v3"

	"github.com/mpromonet/go-whep-play/internal/domain"
)

// Description is a parsed session description. Attribute lines that are not
// understood survive a Parse/Marshal round trip untouched.
type Description struct {
	sd *pionsdp.SessionDescription
}

// Parse unmarshals an SDP document.
func Parse(text string) (*Description, error) {
	sd := &pionsdp.SessionDescription{}
	if err := sd.Unmarshal([]byte(text)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSDP, err)
	}
	return &Description{sd: sd}, nil
}

// Marshal serializes the description back to SDP text.
func (d *Description) Marshal() (string, error) {
	out, err := d.sd.Marshal()
	if err != nil {
		return "", fmt.Errorf("marshal session description: %w", err)
	}
	return string(out), nil
}

// MediaCount returns the number of media sections.
func (d *Description) MediaCount() int {
	return len(d.sd.MediaDescriptions)
}

// ICECredentials returns the ICE ufrag and password, taken from the session
// level or the first media section that carries them.
func (d *Description) ICECredentials() (ufrag, pwd string) {
	ufrag, _ = d.sd.Attribute("ice-ufrag")
	pwd, _ = d.sd.Attribute("ice-pwd")
	for _, md := range d.sd.MediaDescriptions {
		if ufrag == "" {
			if v, ok := md.Attribute("ice-ufrag"); ok {
				ufrag = v
			}
		}
		if pwd == "" {
			if v, ok := md.Attribute("ice-pwd"); ok {
				pwd = v
			}
		}
	}
	return ufrag, pwd
}

// Candidates returns the ICE candidates declared in the description,
// ordered by media section and line position.
func (d *Description) Candidates() []domain.Candidate {
	sessionUfrag, _ := d.sd.Attribute("ice-ufrag")

	var cands []domain.Candidate
	for i, md := range d.sd.MediaDescriptions {
		mid, _ := md.Attribute("mid")
		ufrag := sessionUfrag
		if v, ok := md.Attribute("ice-ufrag"); ok {
			ufrag = v
		}
		for _, attr := range md.Attributes {
			if attr.Key != "candidate" || attr.Value == "" {
				continue
			}
			cands = append(cands, domain.Candidate{
				Candidate:        "candidate:" + attr.Value,
				SDPMid:           mid,
				SDPMLineIndex:    i,
				UsernameFragment: ufrag,
			})
		}
	}
	return cands
}
