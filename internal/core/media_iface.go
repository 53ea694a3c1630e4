package core

import (
	"context"

	"github.com/dkeye/groupcall/internal/domain"
)

// Endpoint identifies one negotiation inside the media engine.
// ID is unique per negotiation, names may be reused after a leave.
type Endpoint struct {
	ID        string
	Viewer    domain.UserName
	Publisher domain.UserName
	// Source is the id of the publishing session. Media is routed by it.
	Source    string
}

// Loopback reports whether the endpoint is the publisher's own upstream.
func (e Endpoint) Loopback() bool { return e.Viewer == e.Publisher }

// MediaEvents are invoked by the engine from its own goroutines.
type MediaEvents struct {
	OnCandidate func(domain.Candidate)
	OnConnected func()
	OnClosed    func()
}

type MediaEngine interface {
	// Negotiate answers offer for ep. The answer is returned before ICE
	// gathering completes; local candidates arrive through ev.OnCandidate.
	Negotiate(ctx context.Context, ep Endpoint, offer string, ev MediaEvents) (string, error)
	AddRemoteCandidate(ep Endpoint, c domain.Candidate) error
	// Release frees everything held for ep. Unknown endpoints are ignored.
	Release(ep Endpoint)
}
