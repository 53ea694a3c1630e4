// Package rtc implements the media engine port on pion/webrtc. Every
// negotiation endpoint owns one PeerConnection; a viewer's own endpoint
// ingests its tracks into the relay hub, every other endpoint egresses the
// publisher's relayed tracks.
package rtc

import (
	"context"
	"fmt"
	"sync"

	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/groupcall/internal/app/sfu"
	"github.com/dkeye/groupcall/internal/core"
	"github.com/dkeye/groupcall/internal/domain"
)

type Options struct {
	ICEServers []string
	UDPPortMin uint16
	UDPPortMax uint16
}

type Engine struct {
	api    *webrtc.API
	config webrtc.Configuration
	hub    *sfu.Hub
	logger zerolog.Logger

	mu    sync.Mutex
	conns map[string]*WebRTCConnection
}

var _ core.MediaEngine = (*Engine)(nil)

func NewEngine(opts Options, hub *sfu.Hub) (*Engine, error) {
	logger := log.With().Str("module", "rtc").Logger()
	api, err := newAPI(opts, NewLoggerFactory(log.Logger))
	if err != nil {
		return nil, err
	}
	cfg := webrtc.Configuration{}
	if len(opts.ICEServers) > 0 {
		cfg.ICEServers = []webrtc.ICEServer{{URLs: opts.ICEServers}}
	}
	return &Engine{
		api:    api,
		config: cfg,
		hub:    hub,
		logger: logger,
		conns:  make(map[string]*WebRTCConnection),
	}, nil
}

func (e *Engine) Negotiate(ctx context.Context, ep core.Endpoint, offer string, ev core.MediaEvents) (string, error) {
	kinds, err := offerKinds(offer)
	if err != nil {
		return "", err
	}

	// Media outlives the request that negotiated it.
	c, err := NewWebRTCConnection(context.WithoutCancel(ctx), e.api, e.config, ep)
	if err != nil {
		return "", fmt.Errorf("new peer connection: %w", err)
	}
	c.OnICECandidate(ev.OnCandidate)
	c.OnConnected(ev.OnConnected)
	c.OnClosed(ev.OnClosed)

	e.mu.Lock()
	e.conns[ep.ID] = c
	e.mu.Unlock()

	if ep.Loopback() {
		e.bindPublisher(c, ep.Source)
	} else if err := e.bindSubscriber(c, ep, kinds); err != nil {
		e.Release(ep)
		return "", err
	}
	c.Start()

	answer, err := c.ApplyOfferAndCreateAnswer(offer)
	if err != nil {
		e.Release(ep)
		return "", fmt.Errorf("apply offer: %w", err)
	}
	e.logger.Debug().Str("endpoint", ep.ID).Strs("kinds", kinds).Bool("loopback", ep.Loopback()).Msg("answered")
	return answer, nil
}

func (e *Engine) AddRemoteCandidate(ep core.Endpoint, cand domain.Candidate) error {
	e.mu.Lock()
	c, ok := e.conns[ep.ID]
	e.mu.Unlock()
	if !ok {
		e.logger.Debug().Str("endpoint", ep.ID).Msg("candidate for released endpoint")
		return nil
	}
	return c.AddICECandidate(cand)
}

func (e *Engine) Release(ep core.Endpoint) {
	e.mu.Lock()
	c, ok := e.conns[ep.ID]
	delete(e.conns, ep.ID)
	e.mu.Unlock()
	if !ok {
		return
	}
	if ep.Loopback() {
		e.hub.Unpublish(ep.Source)
	} else {
		e.hub.Unsubscribe(ep.Source, ep.ID)
	}
	c.Close()
}

// Endpoints returns the number of live peer connections.
func (e *Engine) Endpoints() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.conns)
}

// Close releases every endpoint still held.
func (e *Engine) Close() {
	e.mu.Lock()
	conns := e.conns
	e.conns = make(map[string]*WebRTCConnection)
	e.mu.Unlock()
	for _, c := range conns {
		if c.ep.Loopback() {
			e.hub.Unpublish(c.ep.Source)
		} else {
			e.hub.Unsubscribe(c.ep.Source, c.ep.ID)
		}
		c.Close()
	}
}

func (e *Engine) bindPublisher(c *WebRTCConnection, source string) {
	c.OnTrack(func(ctx context.Context, track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		kind := track.Kind().String()
		if track.Kind() == webrtc.RTPCodecTypeVideo {
			ssrc := uint32(track.SSRC())
			e.hub.SetKeyframeRequester(source, func() {
				pli := []rtcp.Packet{&rtcp.PictureLossIndication{MediaSSRC: ssrc}}
				if err := c.pc.WriteRTCP(pli); err != nil {
					c.logger.Debug().Err(err).Msg("write PLI")
				}
			})
		}
		e.hub.Publish(ctx, source, kind, track)
	})
}

func (e *Engine) bindSubscriber(c *WebRTCConnection, ep core.Endpoint, kinds []string) error {
	tracks := make(map[string]sfu.RTPWriter, len(kinds))
	for _, kind := range kinds {
		capability, _ := capabilityFor(kind)
		local, err := webrtc.NewTrackLocalStaticRTP(capability, kind, string(ep.Publisher))
		if err != nil {
			return fmt.Errorf("new %s track: %w", kind, err)
		}
		sender, err := c.AddLocalTrack(local)
		if err != nil {
			return fmt.Errorf("add %s track: %w", kind, err)
		}
		go e.readRTCP(sender, ep.Source)
		tracks[kind] = local
	}
	e.hub.Subscribe(ep.Source, ep.ID, tracks)
	return nil
}

// readRTCP drains subscriber feedback and forwards keyframe requests to the
// publishing session. It returns when the sender stops.
func (e *Engine) readRTCP(sender *webrtc.RTPSender, source string) {
	for {
		pkts, _, err := sender.ReadRTCP()
		if err != nil {
			return
		}
		for _, p := range pkts {
			switch p.(type) {
			case *rtcp.PictureLossIndication, *rtcp.FullIntraRequest:
				e.hub.RequestKeyframe(source)
			}
		}
	}
}
