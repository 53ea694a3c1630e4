// Package idgen issues sortable identifiers for relayed chat messages.
package idgen

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewMessageID returns a ULID. IDs issued by one process sort in issue order,
// including several within the same millisecond.
func NewMessageID() string {
	return MessageIDAt(time.Now())
}

func MessageIDAt(t time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t.UTC()), entropy).String()
}
