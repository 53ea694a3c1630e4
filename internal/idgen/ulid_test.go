package idgen

import (
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageIDsSortInIssueOrder(t *testing.T) {
	at := time.UnixMilli(1_700_000_000_000)
	prev := MessageIDAt(at)
	for range 100 {
		next := MessageIDAt(at)
		assert.Less(t, prev, next)
		prev = next
	}
}

func TestMessageIDCarriesTimestamp(t *testing.T) {
	at := time.UnixMilli(1_700_000_123_456)
	id, err := ulid.Parse(MessageIDAt(at))
	require.NoError(t, err)
	assert.Equal(t, uint64(at.UnixMilli()), id.Time())
	assert.Len(t, NewMessageID(), ulid.EncodedSize)
}
