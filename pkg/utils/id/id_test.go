package id

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewULIDIsSortableAndUnique(t *testing.T) {
	ids := NewULIDGenerator().GenerateN(100)

	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		assert.Len(t, id, 26)
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.True(t, sort.StringsAreSorted(ids))
}

func TestParseULID(t *testing.T) {
	before := time.Now().Add(-time.Second)
	ts, err := ParseULID(NewULID())
	require.NoError(t, err)
	assert.True(t, ts.After(before))

	_, err = ParseULID("not-a-ulid")
	assert.ErrorIs(t, err, ErrInvalidULID)
}
