package rtc

import (
	"errors"
	"fmt"

	"github.com/pion/sdp/v3"
)

var errNoMedia = errors.New("offer has no audio or video")

// offerKinds returns the active media kinds of an SDP offer in order of
// appearance, each at most once.
func offerKinds(offer string) ([]string, error) {
	var sd sdp.SessionDescription
	if err := sd.Unmarshal([]byte(offer)); err != nil {
		return nil, fmt.Errorf("parse offer: %w", err)
	}
	var kinds []string
	seen := make(map[string]bool, 2)
	for _, md := range sd.MediaDescriptions {
		kind := md.MediaName.Media
		if md.MediaName.Port.Value == 0 || seen[kind] {
			continue
		}
		if _, ok := capabilityFor(kind); !ok {
			continue
		}
		seen[kind] = true
		kinds = append(kinds, kind)
	}
	if len(kinds) == 0 {
		return nil, errNoMedia
	}
	return kinds, nil
}
