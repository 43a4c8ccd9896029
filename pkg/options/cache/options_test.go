package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionsDefaults(t *testing.T) {
	o := NewOptions()
	require.NoError(t, o.Complete())

	assert.Equal(t, BackendFile, o.Backend)
	assert.False(t, o.NeedsRedis())
	assert.Empty(t, o.Validate())
}

func TestOptionsValidate(t *testing.T) {
	o := NewOptions()
	o.Backend = "memcached"
	assert.Len(t, o.Validate(), 1)

	o.Backend = BackendRedis
	o.HashKey = ""
	o.Redis.Host = ""
	assert.True(t, o.NeedsRedis())
	assert.Len(t, o.Validate(), 2)
}
