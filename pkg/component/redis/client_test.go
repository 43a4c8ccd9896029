package redis

import (
	"context"
	"strconv"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisopts "github.com/kart-io/paperline/pkg/options/redis"
)

func newTestOptions(t *testing.T) *redisopts.Options {
	t.Helper()
	mr := miniredis.RunT(t)

	host, port, ok := strings.Cut(mr.Addr(), ":")
	require.True(t, ok)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)

	opts := redisopts.NewOptions()
	opts.Host = host
	opts.Port = p
	return opts
}

func TestNewAndHealth(t *testing.T) {
	ctx := context.Background()
	client, err := New(ctx, newTestOptions(t))
	require.NoError(t, err)
	defer client.Close()

	assert.Equal(t, "redis", client.Name())
	require.NoError(t, client.Client().HSet(ctx, "k", "f", "v").Err())

	stats := client.HealthWithStats(ctx)
	assert.True(t, stats.Healthy)
	assert.Empty(t, stats.Error)
}

func TestNewRejectsInvalidOptions(t *testing.T) {
	_, err := New(context.Background(), nil)
	assert.Error(t, err)

	opts := redisopts.NewOptions()
	opts.Host = ""
	_, err = New(context.Background(), opts)
	assert.ErrorContains(t, err, "invalid redis options")
}

func TestNewPingFailure(t *testing.T) {
	opts := newTestOptions(t)
	opts.Port = 1
	opts.MaxRetries = -1

	_, err := New(context.Background(), opts)
	assert.ErrorContains(t, err, "failed to ping redis")
}
