// Package protocol defines the closed set of messages exchanged with
// group-call clients and their JSON encoding.
package protocol

import "github.com/dkeye/groupcall/internal/domain"

const (
	KindJoinRoom         = "joinRoom"
	KindReceiveVideoFrom = "receiveVideoFrom"
	KindOnIceCandidate   = "onIceCandidate"
	KindLeaveRoom        = "leaveRoom"
	KindBan              = "ban"
	KindMute             = "mute"
	KindRequestMute      = "requestMute"
	KindRequestExit      = "requestExit"
	KindSendLadderResult = "sendLadderResult"
	KindSendChat         = "sendChat"
	KindExit             = "exit"
)

// Inbound is implemented only by the message types of this package.
type Inbound interface {
	Kind() string
	inbound()
}

type JoinRoom struct {
	Room string `json:"room" validate:"required"`
	Name string `json:"name" validate:"required"`
}

type ReceiveVideoFrom struct {
	Sender   string `json:"sender" validate:"required"`
	SDPOffer string `json:"sdpOffer" validate:"required"`
}

type OnIceCandidate struct {
	Name      string           `json:"name" validate:"required"`
	Candidate domain.Candidate `json:"candidate"`
}

type LeaveRoom struct{}

type Ban struct {
	Name string `json:"name" validate:"required"`
	Room string `json:"room" validate:"required"`
}

type Mute struct {
	Name string `json:"name" validate:"required"`
	Room string `json:"room" validate:"required"`
}

type RequestMute struct {
	Name string `json:"name" validate:"required"`
	Room string `json:"room" validate:"required"`
}

type RequestExit struct {
	Room string `json:"room" validate:"required"`
}

type SendLadderResult struct {
	Name  string `json:"name" validate:"required"`
	Room  string `json:"room" validate:"required"`
	Value string `json:"value"`
}

type SendChat struct {
	Name    string `json:"name" validate:"required"`
	Room    string `json:"room" validate:"required"`
	Message string `json:"message" validate:"required"`
}

type Exit struct {
	Room string `json:"room" validate:"required"`
}

func (*JoinRoom) Kind() string         { return KindJoinRoom }
func (*ReceiveVideoFrom) Kind() string { return KindReceiveVideoFrom }
func (*OnIceCandidate) Kind() string   { return KindOnIceCandidate }
func (*LeaveRoom) Kind() string        { return KindLeaveRoom }
func (*Ban) Kind() string              { return KindBan }
func (*Mute) Kind() string             { return KindMute }
func (*RequestMute) Kind() string      { return KindRequestMute }
func (*RequestExit) Kind() string      { return KindRequestExit }
func (*SendLadderResult) Kind() string { return KindSendLadderResult }
func (*SendChat) Kind() string         { return KindSendChat }
func (*Exit) Kind() string             { return KindExit }

func (*JoinRoom) inbound()         {}
func (*ReceiveVideoFrom) inbound() {}
func (*OnIceCandidate) inbound()   {}
func (*LeaveRoom) inbound()        {}
func (*Ban) inbound()              {}
func (*Mute) inbound()             {}
func (*RequestMute) inbound()      {}
func (*RequestExit) inbound()      {}
func (*SendLadderResult) inbound() {}
func (*SendChat) inbound()         {}
func (*Exit) inbound()             {}

// newInbound returns an empty message for kind, or nil when kind is unknown.
func newInbound(kind string) Inbound {
	switch kind {
	case KindJoinRoom:
		return &JoinRoom{}
	case KindReceiveVideoFrom:
		return &ReceiveVideoFrom{}
	case KindOnIceCandidate:
		return &OnIceCandidate{}
	case KindLeaveRoom:
		return &LeaveRoom{}
	case KindBan:
		return &Ban{}
	case KindMute:
		return &Mute{}
	case KindRequestMute:
		return &RequestMute{}
	case KindRequestExit:
		return &RequestExit{}
	case KindSendLadderResult:
		return &SendLadderResult{}
	case KindSendChat:
		return &SendChat{}
	case KindExit:
		return &Exit{}
	}
	return nil
}
