// Package coretest provides test doubles for the core ports.
package coretest

import (
	"sync"

	"github.com/goccy/go-json"

	"github.com/dkeye/groupcall/internal/core"
)

// Message is a decoded outbound frame.
type Message map[string]any

func (m Message) Kind() string {
	k, _ := m["kind"].(string)
	return k
}

func (m Message) Str(key string) string {
	v, _ := m[key].(string)
	return v
}

// RecordingSink is an in-memory core.SignalConnection.
type RecordingSink struct {
	mu     sync.Mutex
	frames []core.Frame
	full   bool
	closed bool
}

func NewRecordingSink() *RecordingSink {
	return &RecordingSink{}
}

func (s *RecordingSink) TrySend(f core.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return core.ErrConnClosed
	}
	if s.full {
		return core.ErrBackpressure
	}
	s.frames = append(s.frames, append(core.Frame(nil), f...))
	return nil
}

func (s *RecordingSink) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// SetFull makes every following TrySend fail with ErrBackpressure.
func (s *RecordingSink) SetFull(full bool) {
	s.mu.Lock()
	s.full = full
	s.mu.Unlock()
}

func (s *RecordingSink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Messages decodes every frame received so far.
func (s *RecordingSink) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, 0, len(s.frames))
	for _, f := range s.frames {
		var m Message
		if err := json.Unmarshal(f, &m); err != nil {
			m = Message{"kind": "<undecodable>"}
		}
		out = append(out, m)
	}
	return out
}

// Kinds returns the kind of every received frame in order.
func (s *RecordingSink) Kinds() []string {
	msgs := s.Messages()
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Kind())
	}
	return out
}

// OfKind returns the received messages of one kind.
func (s *RecordingSink) OfKind(kind string) []Message {
	var out []Message
	for _, m := range s.Messages() {
		if m.Kind() == kind {
			out = append(out, m)
		}
	}
	return out
}

// Reset forgets everything received so far.
func (s *RecordingSink) Reset() {
	s.mu.Lock()
	s.frames = nil
	s.mu.Unlock()
}
