package core

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"

	"github.com/dkeye/groupcall/internal/domain"
	"github.com/dkeye/groupcall/internal/protocol"
)

const maxParallelReleases = 8

// UserSession is the state bound to one participant's connection for the
// duration of one room membership.
type UserSession struct {
	id     string
	conn   ConnID
	name   domain.UserName
	room   domain.RoomName
	sink   SignalConnection
	engine MediaEngine
	logger zerolog.Logger

	mu           sync.Mutex
	negotiations map[domain.UserName]*negotiation
	closed       bool
}

func NewUserSession(
	conn ConnID,
	name domain.UserName,
	room domain.RoomName,
	sink SignalConnection,
	engine MediaEngine,
) *UserSession {
	return &UserSession{
		id:     uuid.NewString(),
		conn:   conn,
		name:   name,
		room:   room,
		sink:   sink,
		engine: engine,
		logger: log.With().
			Str("module", "core.session").
			Str("conn", string(conn)).
			Str("name", string(name)).
			Str("room", string(room)).
			Logger(),
		negotiations: make(map[domain.UserName]*negotiation),
	}
}

// ID is unique per session, even when a connection joins again under the
// same name.
func (s *UserSession) ID() string { return s.id }

func (s *UserSession) Conn() ConnID              { return s.conn }
func (s *UserSession) Name() domain.UserName     { return s.name }
func (s *UserSession) RoomName() domain.RoomName { return s.room }
func (s *UserSession) Signal() SignalConnection  { return s.sink }
func (s *UserSession) Logger() *zerolog.Logger   { return &s.logger }

// Send encodes msg and queues it on the session's connection.
func (s *UserSession) Send(msg protocol.Outbound) error {
	b, err := protocol.Encode(msg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", msg.Kind(), err)
	}
	return s.sink.TrySend(b)
}

// Disconnect closes the underlying connection. Cleanup runs through the
// adapter's connection-closed path.
func (s *UserSession) Disconnect() {
	s.sink.Close()
}

// NegotiationState returns the state of the entry for publisher, if any.
func (s *UserSession) NegotiationState(publisher domain.UserName) (NegotiationState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.negotiations[publisher]
	if !ok {
		return StateClosed, false
	}
	return n.state, true
}

// ReceiveVideoFrom negotiates media from pub to this session and sends the
// answer back. Passing the session itself negotiates its own upstream. A
// previous entry for the same publisher name is superseded.
func (s *UserSession) ReceiveVideoFrom(ctx context.Context, pub *UserSession, offer string) error {
	publisher := pub.Name()
	n := &negotiation{
		ep: Endpoint{
			ID:        uuid.NewString(),
			Viewer:    s.name,
			Publisher: publisher,
			Source:    pub.ID(),
		},
		state: StateRequested,
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	prev := s.negotiations[publisher]
	s.negotiations[publisher] = n
	s.mu.Unlock()

	if prev != nil {
		s.logger.Info().Str("peer", string(publisher)).Msg("superseding negotiation")
		s.release(prev)
	}

	answer, err := s.engine.Negotiate(ctx, n.ep, offer, s.eventsFor(n))
	if err != nil {
		s.drop(n)
		return fmt.Errorf("negotiate with %s: %w", publisher, err)
	}

	s.mu.Lock()
	if n.state == StateClosed {
		s.mu.Unlock()
		// Released while the engine was still building the endpoint.
		s.engine.Release(n.ep)
		return ErrNegotiationClosed
	}
	if n.state == StateRequested {
		n.state = StateOffered
	}
	s.mu.Unlock()

	s.logger.Info().Str("peer", string(publisher)).Msg("negotiation offered")
	return s.Send(protocol.ReceiveVideoAnswer{Sender: publisher, SDPAnswer: answer})
}

// AddCandidate forwards a remote candidate to the negotiation with peer.
// Candidates for a peer without an entry are dropped.
func (s *UserSession) AddCandidate(peer domain.UserName, c domain.Candidate) error {
	s.mu.Lock()
	n, ok := s.negotiations[peer]
	live := ok && n.state != StateClosed
	s.mu.Unlock()
	if !live {
		s.logger.Debug().Str("peer", string(peer)).Msg("candidate without negotiation ignored")
		return nil
	}
	return s.engine.AddRemoteCandidate(n.ep, c)
}

// CancelVideoFrom closes the entry for peer. Safe to call repeatedly.
func (s *UserSession) CancelVideoFrom(peer domain.UserName) {
	s.mu.Lock()
	n, ok := s.negotiations[peer]
	if ok {
		delete(s.negotiations, peer)
	}
	s.mu.Unlock()
	if ok {
		s.logger.Info().Str("peer", string(peer)).Msg("cancel video")
		s.release(n)
	}
}

// CancelVideoFromSession closes the entry for pub only when it was
// negotiated with that very session, leaving an entry for a newer session
// under the same name alone.
func (s *UserSession) CancelVideoFromSession(pub *UserSession) {
	s.mu.Lock()
	n, ok := s.negotiations[pub.Name()]
	ok = ok && n.ep.Source == pub.ID()
	if ok {
		delete(s.negotiations, pub.Name())
	}
	s.mu.Unlock()
	if ok {
		s.logger.Info().Str("peer", string(pub.Name())).Msg("publisher gone, cancel video")
		s.release(n)
	}
}

// Close releases every negotiation of the session, as viewer and as
// publisher. Later ReceiveVideoFrom calls fail with ErrSessionClosed.
func (s *UserSession) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	all := make([]*negotiation, 0, len(s.negotiations))
	for peer, n := range s.negotiations {
		all = append(all, n)
		delete(s.negotiations, peer)
	}
	s.mu.Unlock()

	p := pool.New().WithMaxGoroutines(maxParallelReleases)
	for _, n := range all {
		p.Go(func() { s.release(n) })
	}
	p.Wait()
	s.logger.Info().Int("released", len(all)).Msg("session closed")
}

func (s *UserSession) eventsFor(n *negotiation) MediaEvents {
	peer := n.ep.Publisher
	return MediaEvents{
		OnCandidate: func(c domain.Candidate) {
			if s.stateOf(n) == StateClosed {
				return
			}
			if err := s.Send(protocol.IceCandidate{Name: peer, Candidate: c}); err != nil {
				s.logger.Warn().Err(err).Str("peer", string(peer)).Msg("send ice candidate")
			}
		},
		OnConnected: func() {
			s.mu.Lock()
			changed := n.state == StateRequested || n.state == StateOffered
			if changed {
				n.state = StateActive
			}
			s.mu.Unlock()
			if changed {
				s.logger.Info().Str("peer", string(peer)).Msg("negotiation active")
			}
		},
		OnClosed: func() { s.drop(n) },
	}
}

func (s *UserSession) stateOf(n *negotiation) NegotiationState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return n.state
}

// drop removes n if it is still the current entry for its publisher and
// releases it.
func (s *UserSession) drop(n *negotiation) {
	s.mu.Lock()
	if s.negotiations[n.ep.Publisher] == n {
		delete(s.negotiations, n.ep.Publisher)
	}
	s.mu.Unlock()
	s.release(n)
}

func (s *UserSession) release(n *negotiation) {
	s.mu.Lock()
	if n.state == StateClosed {
		s.mu.Unlock()
		return
	}
	n.state = StateClosed
	s.mu.Unlock()
	s.engine.Release(n.ep)
}
