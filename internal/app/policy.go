package app

import (
	"errors"

	"github.com/dkeye/groupcall/internal/core"
)

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	DropMessage
	KickMember
)

func (a BackpressureAction) String() string {
	switch a {
	case DropMessage:
		return "drop"
	case KickMember:
		return "kick"
	}
	return "none"
}

type Policy interface {
	OnSendFailure(f core.SendFailure) BackpressureAction
}

// SimplePolicy kicks members that cannot keep up and drops the message for
// every other failure.
type SimplePolicy struct{}

func (SimplePolicy) OnSendFailure(f core.SendFailure) BackpressureAction {
	if errors.Is(f.Err, core.ErrBackpressure) {
		return KickMember
	}
	return DropMessage
}
