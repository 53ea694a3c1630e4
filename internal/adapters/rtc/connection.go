package rtc

import (
	"context"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/groupcall/internal/core"
	"github.com/dkeye/groupcall/internal/domain"
)

// WebRTCConnection is the PeerConnection behind one negotiation endpoint.
type WebRTCConnection struct {
	pc     *webrtc.PeerConnection
	ep     core.Endpoint
	logger zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	onICE       func(domain.Candidate)
	onConnected func()
	onTrack     func(ctx context.Context, track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver)
	onClosed    func()

	closeOnce    sync.Once
	reportClosed sync.Once
}

func NewWebRTCConnection(ctx context.Context, api *webrtc.API, cfg webrtc.Configuration, ep core.Endpoint) (*WebRTCConnection, error) {
	pc, err := api.NewPeerConnection(cfg)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(ctx)
	return &WebRTCConnection{
		pc: pc,
		ep: ep,
		logger: log.With().
			Str("module", "rtc").
			Str("endpoint", ep.ID).
			Str("viewer", string(ep.Viewer)).
			Str("peer", string(ep.Publisher)).
			Logger(),
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Start installs the pion handlers. Callbacks must be set before.
func (c *WebRTCConnection) Start() {
	c.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		c.logger.Info().Str("peer_connection_state", s.String()).Msg("Peer state")
		switch s {
		case webrtc.PeerConnectionStateConnected:
			if c.onConnected != nil {
				c.onConnected()
			}
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
			c.cancel()
			c.fireClosed()
		}
	})

	c.pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand == nil || c.onICE == nil {
			return
		}
		c.onICE(fromICEInit(cand.ToJSON()))
	})

	c.pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		c.logger.Info().
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Str("stream_id", track.StreamID()).
			Msg("OnTrack received")
		if c.ctx.Err() != nil || c.onTrack == nil {
			return
		}
		c.onTrack(c.ctx, track, receiver)
	})
}

// ApplyOfferAndCreateAnswer returns the answer without waiting for ICE
// gathering; candidates are trickled through the ICE callback.
func (c *WebRTCConnection) ApplyOfferAndCreateAnswer(offer string) (string, error) {
	if err := c.pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  offer,
	}); err != nil {
		return "", err
	}
	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return "", err
	}
	if err := c.pc.SetLocalDescription(answer); err != nil {
		return "", err
	}
	return c.pc.LocalDescription().SDP, nil
}

func (c *WebRTCConnection) AddICECandidate(cand domain.Candidate) error {
	return c.pc.AddICECandidate(toICEInit(cand))
}

// AddLocalTrack attaches a local static RTP track to the PeerConnection.
func (c *WebRTCConnection) AddLocalTrack(track *webrtc.TrackLocalStaticRTP) (*webrtc.RTPSender, error) {
	return c.pc.AddTrack(track)
}

// Close is safe to call more than once.
func (c *WebRTCConnection) Close() {
	c.closeOnce.Do(func() {
		c.cancel()
		if err := c.pc.Close(); err != nil {
			c.logger.Error().Err(err).Msg("close error")
		} else {
			c.logger.Info().Msg("closed")
		}
	})
}

func (c *WebRTCConnection) Context() context.Context { return c.ctx }

func (c *WebRTCConnection) OnICECandidate(fn func(domain.Candidate)) { c.onICE = fn }

func (c *WebRTCConnection) OnConnected(fn func()) { c.onConnected = fn }

// OnTrack sets application-level callback for remote tracks.
func (c *WebRTCConnection) OnTrack(fn func(ctx context.Context, track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver)) {
	c.onTrack = fn
}

// OnClosed is called once when the connection fails or closes.
func (c *WebRTCConnection) OnClosed(fn func()) { c.onClosed = fn }

func (c *WebRTCConnection) fireClosed() {
	c.reportClosed.Do(func() {
		if c.onClosed != nil {
			go c.onClosed()
		}
	})
}

func toICEInit(c domain.Candidate) webrtc.ICECandidateInit {
	idx := c.SDPMLineIndex
	ci := webrtc.ICECandidateInit{
		Candidate:     c.Candidate,
		SDPMLineIndex: &idx,
	}
	if c.SDPMid != "" {
		mid := c.SDPMid
		ci.SDPMid = &mid
	}
	return ci
}

func fromICEInit(ci webrtc.ICECandidateInit) domain.Candidate {
	c := domain.Candidate{Candidate: ci.Candidate}
	if ci.SDPMid != nil {
		c.SDPMid = *ci.SDPMid
	}
	if ci.SDPMLineIndex != nil {
		c.SDPMLineIndex = *ci.SDPMLineIndex
	}
	return c
}
