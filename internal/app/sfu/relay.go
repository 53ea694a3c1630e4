package sfu

import (
	"context"
	"maps"
	"sync"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/rs/zerolog"
)

// RTPSource is the ingress side of a relay, satisfied by *webrtc.TrackRemote.
type RTPSource interface {
	ReadRTP() (*rtp.Packet, interceptor.Attributes, error)
}

// RTPWriter is the egress side of a relay, satisfied by
// *webrtc.TrackLocalStaticRTP.
type RTPWriter interface {
	WriteRTP(p *rtp.Packet) error
}

// Relay copies the packets of one publisher track to every subscriber of
// the same media kind. Out tracks are keyed by subscriber endpoint id.
type Relay struct {
	Src  RTPSource
	Kind string

	mu        sync.RWMutex
	outTracks map[string]RTPWriter

	cancel context.CancelFunc
	done   chan struct{}
}

func NewRelay(src RTPSource, kind string, cancel context.CancelFunc) *Relay {
	return &Relay{
		Src:       src,
		Kind:      kind,
		outTracks: make(map[string]RTPWriter),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

// loop reads RTP packets from the source track and forwards them to all out tracks.
func (r *Relay) loop(ctx context.Context, logger *zerolog.Logger) {
	defer close(r.done)
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("relay ctx done, dropping out tracks")
			r.dropAll()
			return
		default:
		}
		pkt, _, err := r.Src.ReadRTP()
		if err != nil {
			logger.Info().Err(err).Msg("relay source ended")
			r.dropAll()
			return
		}
		r.forward(pkt, logger)
	}
}

func (r *Relay) forward(pkt *rtp.Packet, logger *zerolog.Logger) {
	r.mu.RLock()
	snapshot := maps.Clone(r.outTracks)
	r.mu.RUnlock()

	for dst, w := range snapshot {
		if err := w.WriteRTP(pkt); err != nil {
			logger.Error().
				Err(err).
				Str("dst", dst).
				Msg("relay write RTP error, dropping out track")
			r.dropIfSame(dst, w)
		}
	}
}

// dropIfSame removes dst unless it was replaced since the snapshot.
func (r *Relay) dropIfSame(dst string, w RTPWriter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.outTracks[dst]; ok && cur == w {
		delete(r.outTracks, dst)
	}
}

func (r *Relay) dropAll() {
	r.mu.Lock()
	clear(r.outTracks)
	r.mu.Unlock()
}

// AddOutTrack attaches w for dst, replacing any previous track of dst.
func (r *Relay) AddOutTrack(dst string, w RTPWriter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outTracks[dst] = w
}

// RemoveOutTrack detaches the out track of dst. A packet already in flight
// may still reach it.
func (r *Relay) RemoveOutTrack(dst string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.outTracks, dst)
}

// OutTracks returns the number of attached out tracks.
func (r *Relay) OutTracks() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.outTracks)
}

func (r *Relay) stop() {
	r.dropAll()
	if r.cancel != nil {
		r.cancel()
	}
}

// Done is closed when the relay loop has returned.
func (r *Relay) Done() <-chan struct{} { return r.done }
