package protocol

import (
	"time"

	"github.com/dkeye/groupcall/internal/domain"
)

// Error codes carried by Error.
const (
	CodeDuplicateName     = "duplicateName"
	CodeAlreadyJoined     = "alreadyJoined"
	CodeInvalidName       = "invalidName"
	CodeNegotiationFailed = "negotiationFailed"
)

// Outbound is a server to client message.
type Outbound interface {
	Kind() string
}

type ExistingParticipants struct {
	Data []domain.UserName `json:"data"`
}

type NewParticipantArrived struct {
	Name domain.UserName `json:"name"`
}

type ParticipantLeft struct {
	Name domain.UserName `json:"name"`
}

type ReceiveVideoAnswer struct {
	Sender    domain.UserName `json:"sender"`
	SDPAnswer string          `json:"sdpAnswer"`
}

type PeerNotFound struct {
	Sender string `json:"sender"`
}

type IceCandidate struct {
	Name      domain.UserName  `json:"name"`
	Candidate domain.Candidate `json:"candidate"`
}

type ChatMessage struct {
	MessageID string          `json:"messageId"`
	Name      domain.UserName `json:"name"`
	Message   string          `json:"message"`
	SentAt    time.Time       `json:"sentAt"`
}

type LadderResult struct {
	Value string `json:"value"`
}

type RequestMuteNotice struct {
	Name domain.UserName `json:"name"`
}

type RequestExitNotice struct{}

type ExitNotice struct{}

type BanNotice struct {
	Name domain.UserName `json:"name"`
}

type MuteNotice struct {
	Name domain.UserName `json:"name"`
}

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

func (ExistingParticipants) Kind() string  { return "existingParticipants" }
func (NewParticipantArrived) Kind() string { return "newParticipantArrived" }
func (ParticipantLeft) Kind() string       { return "participantLeft" }
func (ReceiveVideoAnswer) Kind() string    { return "receiveVideoAnswer" }
func (PeerNotFound) Kind() string          { return "peerNotFound" }
func (IceCandidate) Kind() string          { return "iceCandidate" }
func (ChatMessage) Kind() string           { return "chatMessage" }
func (LadderResult) Kind() string          { return "ladderResult" }
func (RequestMuteNotice) Kind() string     { return KindRequestMute }
func (RequestExitNotice) Kind() string     { return KindRequestExit }
func (ExitNotice) Kind() string            { return KindExit }
func (BanNotice) Kind() string             { return KindBan }
func (MuteNotice) Kind() string            { return KindMute }
func (Error) Kind() string                 { return "error" }
