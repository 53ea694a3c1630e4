package orch_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/dkeye/groupcall/internal/app"
	"github.com/dkeye/groupcall/internal/app/orch"
	"github.com/dkeye/groupcall/internal/core"
	"github.com/dkeye/groupcall/internal/core/coretest"
	"github.com/dkeye/groupcall/internal/core/mocks"
	"github.com/dkeye/groupcall/internal/domain"
	"github.com/dkeye/groupcall/internal/protocol"
)

type fixture struct {
	o      *orch.Orchestrator
	engine *mocks.MockMediaEngine
	sinks  map[string]*coretest.RecordingSink
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	engine := mocks.NewMockMediaEngine(ctrl)
	ids := 0
	return &fixture{
		o: &orch.Orchestrator{
			Registry: app.NewRegistry(),
			Rooms:    app.NewRoomManager(),
			Policy:   app.SimplePolicy{},
			Engine:   engine,
			NewID: func() string {
				ids++
				return fmt.Sprintf("m%d", ids)
			},
			Now: func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) },
		},
		engine: engine,
		sinks:  make(map[string]*coretest.RecordingSink),
	}
}

// conn returns the sink of a client connection named by its handle.
func (f *fixture) conn(id string) *coretest.RecordingSink {
	s, ok := f.sinks[id]
	if !ok {
		s = coretest.NewRecordingSink()
		f.sinks[id] = s
	}
	return s
}

func (f *fixture) send(id string, msg protocol.Inbound) {
	f.o.Dispatch(context.Background(), core.ConnID(id), f.conn(id), msg)
}

func (f *fixture) join(id, room, name string) *coretest.RecordingSink {
	f.send(id, &protocol.JoinRoom{Room: room, Name: name})
	return f.conn(id)
}

func TestJoinFirstMember(t *testing.T) {
	f := newFixture(t)
	alice := f.join("c1", "r1", "alice")

	assert.Equal(t, []string{"existingParticipants"}, alice.Kinds())
	room, ok := f.o.Rooms.Get("r1")
	require.True(t, ok)
	assert.Equal(t, 1, room.MemberCount())
	_, ok = f.o.Registry.GetByName("alice")
	assert.True(t, ok)
}

func TestJoinSecondMemberNotifiesFirst(t *testing.T) {
	f := newFixture(t)
	alice := f.join("c1", "r1", "alice")
	bob := f.join("c2", "r1", "bob")

	arrived := alice.OfKind("newParticipantArrived")
	require.Len(t, arrived, 1)
	assert.Equal(t, "bob", arrived[0].Str("name"))

	existing := bob.OfKind("existingParticipants")
	require.Len(t, existing, 1)
	assert.Equal(t, []any{"alice"}, existing[0]["data"])
}

func TestJoinRejections(t *testing.T) {
	f := newFixture(t)
	f.join("c1", "r1", "alice")

	dup := f.join("c2", "r2", "alice")
	errs := dup.OfKind("error")
	require.Len(t, errs, 1)
	assert.Equal(t, protocol.CodeDuplicateName, errs[0].Str("code"))
	_, ok := f.o.Rooms.Get("r2")
	assert.False(t, ok, "rejected join leaves no empty room behind")
	got, _ := f.o.Registry.GetByName("alice")
	assert.Equal(t, core.ConnID("c1"), got.Conn())

	again := f.join("c1", "r3", "alice2")
	require.Len(t, again.OfKind("error"), 1)
	assert.Equal(t, protocol.CodeAlreadyJoined, again.OfKind("error")[0].Str("code"))

	bad := f.join("c3", "r1", "this-name-is-definitely-longer-than-allowed")
	require.Len(t, bad.OfKind("error"), 1)
	assert.Equal(t, protocol.CodeInvalidName, bad.OfKind("error")[0].Str("code"))

	assert.Equal(t, 1, f.o.Registry.Len())
	assert.Len(t, f.o.Rooms.List(), 1)
}

func TestReceiveVideoFromAnswers(t *testing.T) {
	f := newFixture(t)
	f.join("c1", "r1", "alice")
	bob := f.join("c2", "r1", "bob")

	f.engine.EXPECT().
		Negotiate(gomock.Any(), gomock.Any(), "offer", gomock.Any()).
		DoAndReturn(func(_ context.Context, ep core.Endpoint, _ string, _ core.MediaEvents) (string, error) {
			assert.Equal(t, domain.UserName("bob"), ep.Viewer)
			assert.Equal(t, domain.UserName("alice"), ep.Publisher)
			return "answer", nil
		})
	f.send("c2", &protocol.ReceiveVideoFrom{Sender: "alice", SDPOffer: "offer"})

	answers := bob.OfKind("receiveVideoAnswer")
	require.Len(t, answers, 1)
	assert.Equal(t, "alice", answers[0].Str("sender"))
	assert.Equal(t, "answer", answers[0].Str("sdpAnswer"))
}

func TestReceiveVideoFromSelfPublishes(t *testing.T) {
	f := newFixture(t)
	alice := f.join("c1", "r1", "alice")

	f.engine.EXPECT().
		Negotiate(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, ep core.Endpoint, _ string, _ core.MediaEvents) (string, error) {
			assert.True(t, ep.Loopback())
			return "answer", nil
		})
	f.send("c1", &protocol.ReceiveVideoFrom{Sender: "alice", SDPOffer: "offer"})
	assert.Len(t, alice.OfKind("receiveVideoAnswer"), 1)
}

func TestReceiveVideoFromUnknownPeer(t *testing.T) {
	f := newFixture(t)
	bob := f.join("c2", "r1", "bob")

	f.send("c2", &protocol.ReceiveVideoFrom{Sender: "ghost", SDPOffer: "offer"})
	missing := bob.OfKind("peerNotFound")
	require.Len(t, missing, 1)
	assert.Equal(t, "ghost", missing[0].Str("sender"))

	// Before join nothing is sent at all.
	f.send("c9", &protocol.ReceiveVideoFrom{Sender: "bob", SDPOffer: "offer"})
	assert.Empty(t, f.conn("c9").Messages())
}

func TestReceiveVideoFromEngineError(t *testing.T) {
	f := newFixture(t)
	f.join("c1", "r1", "alice")
	bob := f.join("c2", "r1", "bob")

	f.engine.EXPECT().Negotiate(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return("", errors.New("unparsable offer"))
	f.engine.EXPECT().Release(gomock.Any())
	f.send("c2", &protocol.ReceiveVideoFrom{Sender: "alice", SDPOffer: "garbage"})

	errs := bob.OfKind("error")
	require.Len(t, errs, 1)
	assert.Equal(t, protocol.CodeNegotiationFailed, errs[0].Str("code"))
	assert.False(t, bob.Closed())
}

func TestOnIceCandidateRouting(t *testing.T) {
	f := newFixture(t)
	f.join("c1", "r1", "alice")
	f.join("c2", "r1", "bob")

	// Before join and for unknown peers nothing reaches the engine.
	c := domain.Candidate{Candidate: "candidate:1", SDPMid: "0"}
	f.send("c9", &protocol.OnIceCandidate{Name: "alice", Candidate: c})
	f.send("c2", &protocol.OnIceCandidate{Name: "alice", Candidate: c})

	var ep core.Endpoint
	f.engine.EXPECT().
		Negotiate(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, e core.Endpoint, _ string, _ core.MediaEvents) (string, error) {
			ep = e
			return "answer", nil
		})
	f.send("c2", &protocol.ReceiveVideoFrom{Sender: "alice", SDPOffer: "offer"})

	f.engine.EXPECT().AddRemoteCandidate(ep, c).Return(nil)
	f.send("c2", &protocol.OnIceCandidate{Name: "alice", Candidate: c})
}

func TestDisconnectMidNegotiation(t *testing.T) {
	f := newFixture(t)
	f.join("c1", "r1", "alice")
	bob := f.join("c2", "r1", "bob")

	f.engine.EXPECT().Negotiate(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return("answer", nil)
	f.send("c2", &protocol.ReceiveVideoFrom{Sender: "alice", SDPOffer: "offer"})
	sess, _ := f.o.Registry.GetByName("bob")
	state, ok := sess.NegotiationState("alice")
	require.True(t, ok)
	require.Equal(t, core.StateOffered, state)

	f.engine.EXPECT().Release(gomock.Any()).Times(1)
	f.o.OnDisconnect("c1")

	left := bob.OfKind("participantLeft")
	require.Len(t, left, 1)
	assert.Equal(t, "alice", left[0].Str("name"))
	_, ok = sess.NegotiationState("alice")
	assert.False(t, ok)
	_, ok = f.o.Registry.GetByName("alice")
	assert.False(t, ok)

	// A second close of the same connection is a no-op.
	f.o.OnDisconnect("c1")
	assert.Len(t, bob.OfKind("participantLeft"), 1)
}

func TestPublisherLeaveClosesViewersInOtherRooms(t *testing.T) {
	f := newFixture(t)
	f.join("c1", "r1", "alice")
	carol := f.join("c3", "r2", "carol")

	var first core.Endpoint
	f.engine.EXPECT().
		Negotiate(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, ep core.Endpoint, _ string, _ core.MediaEvents) (string, error) {
			first = ep
			return "answer", nil
		})
	f.send("c3", &protocol.ReceiveVideoFrom{Sender: "alice", SDPOffer: "offer"})
	viewer, _ := f.o.Registry.GetByName("carol")
	state, ok := viewer.NegotiationState("alice")
	require.True(t, ok)
	require.Equal(t, core.StateOffered, state)

	f.engine.EXPECT().Release(first).Times(1)
	f.o.OnDisconnect("c1")

	_, ok = viewer.NegotiationState("alice")
	assert.False(t, ok)
	assert.Empty(t, carol.OfKind("participantLeft"), "carol is not in alice's room")

	// A newcomer under the same name gets a fresh media source.
	f.join("c4", "r1", "alice")
	var second core.Endpoint
	f.engine.EXPECT().
		Negotiate(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, ep core.Endpoint, _ string, _ core.MediaEvents) (string, error) {
			second = ep
			return "answer", nil
		})
	f.send("c3", &protocol.ReceiveVideoFrom{Sender: "alice", SDPOffer: "offer"})
	assert.NotEqual(t, first.Source, second.Source)
	state, ok = viewer.NegotiationState("alice")
	require.True(t, ok)
	assert.Equal(t, core.StateOffered, state)
}

func TestPublisherLeavesWhileViewerNegotiates(t *testing.T) {
	f := newFixture(t)
	f.join("c1", "r1", "alice")
	carol := f.join("c3", "r2", "carol")

	f.engine.EXPECT().
		Negotiate(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, core.Endpoint, string, core.MediaEvents) (string, error) {
			f.o.OnDisconnect("c1")
			return "answer", nil
		})
	// Once from alice's leave, once for what the engine built after it.
	f.engine.EXPECT().Release(gomock.Any()).Times(2)
	f.send("c3", &protocol.ReceiveVideoFrom{Sender: "alice", SDPOffer: "offer"})

	viewer, _ := f.o.Registry.GetByName("carol")
	_, ok := viewer.NegotiationState("alice")
	assert.False(t, ok)
	assert.Empty(t, carol.OfKind("receiveVideoAnswer"))
	assert.Empty(t, carol.OfKind("error"))
}

func TestPublisherGoneBeforeEntryCheckIsClosed(t *testing.T) {
	f := newFixture(t)
	f.join("c1", "r1", "alice")
	f.join("c3", "r2", "carol")

	// The publisher drops out of the registry without a leave sweep
	// reaching the viewer's entry.
	f.engine.EXPECT().
		Negotiate(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, core.Endpoint, string, core.MediaEvents) (string, error) {
			f.o.Registry.RemoveByConnection("c1")
			return "answer", nil
		})
	f.engine.EXPECT().Release(gomock.Any()).Times(1)
	f.send("c3", &protocol.ReceiveVideoFrom{Sender: "alice", SDPOffer: "offer"})

	viewer, _ := f.o.Registry.GetByName("carol")
	_, ok := viewer.NegotiationState("alice")
	assert.False(t, ok)
}

func TestLastLeaveRemovesRoomAndRejoinRecreates(t *testing.T) {
	f := newFixture(t)
	f.join("c1", "r1", "alice")
	old, _ := f.o.Rooms.Get("r1")

	f.send("c1", &protocol.LeaveRoom{})
	_, ok := f.o.Rooms.Get("r1")
	require.False(t, ok)
	assert.Zero(t, f.o.Registry.Len())

	// The connection stays usable and the name is free again.
	f.join("c1", "r1", "alice")
	fresh, ok := f.o.Rooms.Get("r1")
	require.True(t, ok)
	assert.NotSame(t, old, fresh)
	assert.Equal(t, 1, fresh.MemberCount())
}

func TestChatEchoesToEveryMember(t *testing.T) {
	f := newFixture(t)
	sinks := []*coretest.RecordingSink{
		f.join("c1", "r1", "alice"),
		f.join("c2", "r1", "bob"),
		f.join("c3", "r1", "carol"),
	}

	f.send("c1", &protocol.SendChat{Name: "alice", Room: "r1", Message: "hello"})
	for _, s := range sinks {
		chats := s.OfKind("chatMessage")
		require.Len(t, chats, 1)
		assert.Equal(t, "m1", chats[0].Str("messageId"))
		assert.Equal(t, "alice", chats[0].Str("name"))
		assert.Equal(t, "hello", chats[0].Str("message"))
		assert.Equal(t, "2024-01-02T03:04:05Z", chats[0].Str("sentAt"))
	}
}

func TestChatRateLimit(t *testing.T) {
	f := newFixture(t)
	f.o.Chat = app.NewRateLimiter(2, time.Minute)
	bob := f.join("c2", "r1", "bob")
	f.join("c1", "r1", "alice")

	for range 5 {
		f.send("c1", &protocol.SendChat{Name: "alice", Room: "r1", Message: "spam"})
	}
	assert.Len(t, bob.OfKind("chatMessage"), 2)
}

func TestChatRateLimitFollowsConnection(t *testing.T) {
	f := newFixture(t)
	f.o.Chat = app.NewRateLimiter(2, time.Minute)
	bob := f.join("c2", "r1", "bob")
	f.join("c1", "r1", "alice")

	// Claiming a new name per chat does not reset the sender's budget.
	for i := range 5 {
		f.send("c1", &protocol.SendChat{Name: fmt.Sprintf("alice%d", i), Room: "r1", Message: "spam"})
	}
	// Connections without a session cannot chat at all.
	f.send("c9", &protocol.SendChat{Name: "mallory", Room: "r1", Message: "spam"})
	assert.Len(t, bob.OfKind("chatMessage"), 2)

	// Leaving clears the budget for the next session.
	f.send("c1", &protocol.LeaveRoom{})
	f.join("c1", "r1", "alice")
	f.send("c1", &protocol.SendChat{Name: "alice", Room: "r1", Message: "back"})
	assert.Len(t, bob.OfKind("chatMessage"), 3)
}

func TestModerationRouting(t *testing.T) {
	f := newFixture(t)
	alice := f.join("c1", "r1", "alice")
	bob := f.join("c2", "r1", "bob")
	other := f.join("c3", "r2", "carol")
	alice.Reset()
	bob.Reset()
	other.Reset()

	f.send("c1", &protocol.Ban{Name: "bob", Room: "r1"})
	f.send("c1", &protocol.Mute{Name: "bob", Room: "r1"})
	f.send("c1", &protocol.SendLadderResult{Name: "bob", Room: "r1", Value: "7"})
	assert.Equal(t, []string{"ban", "mute", "ladderResult"}, bob.Kinds())
	assert.Empty(t, alice.Messages())

	f.send("c1", &protocol.RequestMute{Name: "bob", Room: "r1"})
	f.send("c1", &protocol.RequestExit{Room: "r1"})
	f.send("c1", &protocol.Exit{Room: "r1"})
	assert.Equal(t, []string{"requestMute", "requestExit", "exit"}, alice.Kinds())
	assert.Equal(t, "bob", alice.OfKind("requestMute")[0].Str("name"))

	// Routing never leaks into other rooms, and gone rooms are a no-op.
	f.send("c1", &protocol.Ban{Name: "carol", Room: "r1"})
	f.send("c1", &protocol.Exit{Room: "gone"})
	assert.Empty(t, other.Messages())
}

func TestBackpressureKicksMember(t *testing.T) {
	f := newFixture(t)
	alice := f.join("c1", "r1", "alice")
	bob := f.join("c2", "r1", "bob")
	bob.SetFull(true)

	f.send("c1", &protocol.SendChat{Name: "alice", Room: "r1", Message: "hi"})
	assert.True(t, bob.Closed())
	assert.False(t, alice.Closed())
	assert.Len(t, alice.OfKind("chatMessage"), 1)

	// The adapter reports the closed connection, which runs normal cleanup.
	f.o.OnDisconnect("c2")
	assert.Equal(t, "bob", alice.OfKind("participantLeft")[0].Str("name"))
}

func TestConcurrentJoinLeaveKeepsStateConsistent(t *testing.T) {
	f := newFixture(t)
	const n = 24

	sinks := make([]*coretest.RecordingSink, n)
	for i := range n {
		sinks[i] = coretest.NewRecordingSink()
	}

	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn := core.ConnID(fmt.Sprintf("c%d", i))
			room := fmt.Sprintf("r%d", i%3)
			for round := range 5 {
				f.o.Dispatch(context.Background(), conn, sinks[i], &protocol.JoinRoom{Room: room, Name: fmt.Sprintf("u%d", i)})
				if round%2 == 0 {
					f.o.Dispatch(context.Background(), conn, sinks[i], &protocol.LeaveRoom{})
				} else {
					f.o.OnDisconnect(conn)
				}
			}
		}()
	}
	wg.Wait()

	assert.Zero(t, f.o.Registry.Len())
	assert.Empty(t, f.o.Rooms.List())
	for i := range n {
		assert.Empty(t, sinks[i].OfKind("error"), "client %d", i)
	}
}
