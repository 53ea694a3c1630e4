package core

import "errors"

var (
	ErrNegotiationClosed = errors.New("negotiation closed")
	ErrSessionClosed     = errors.New("session closed")
)

type NegotiationState int32

const (
	StateRequested NegotiationState = iota
	StateOffered
	StateActive
	StateClosed
)

func (s NegotiationState) String() string {
	switch s {
	case StateRequested:
		return "REQUESTED"
	case StateOffered:
		return "OFFERED"
	case StateActive:
		return "ACTIVE"
	case StateClosed:
		return "CLOSED"
	}
	return "UNKNOWN"
}

// negotiation is one viewer->publisher entry. Its state is guarded by the
// owning session's mutex.
type negotiation struct {
	ep    Endpoint
	state NegotiationState
}
