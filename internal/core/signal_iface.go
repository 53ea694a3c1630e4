package core

import "errors"

// ConnID is the opaque handle of one live client connection.
type ConnID string

// Frame is a raw encoded message.
type Frame []byte

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	// TrySend queues f without blocking. It returns ErrBackpressure when
	// the queue is full and ErrConnClosed after Close.
	TrySend(Frame) error
	Close()
}
