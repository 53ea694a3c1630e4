package protocol

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
)

var (
	ErrMalformedMessage = errors.New("malformed message")
	ErrUnknownKind      = errors.New("unknown message kind")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type envelope struct {
	Kind string `json:"kind"`
	// ID is the discriminator used by the original group-call clients.
	ID string `json:"id"`
}

// Decode parses one client frame into its typed message.
func Decode(data []byte) (Inbound, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	kind := env.Kind
	if kind == "" {
		kind = env.ID
	}
	msg := newInbound(kind)
	if msg == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if err := json.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedMessage, kind, err)
	}
	if err := validate.Struct(msg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedMessage, kind, err)
	}
	return msg, nil
}

// Encode marshals msg and prepends its kind discriminator.
func Encode(msg Outbound) ([]byte, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	kind, err := json.Marshal(msg.Kind())
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(body)+len(kind)+9)
	out = append(out, `{"kind":`...)
	out = append(out, kind...)
	if len(body) > 2 {
		out = append(out, ',')
		out = append(out, body[1:]...)
		return out, nil
	}
	return append(out, '}'), nil
}
