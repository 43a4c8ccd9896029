package options

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJoin(t *testing.T) {
	assert.Equal(t, "", Join())
	assert.Equal(t, "ingest.", Join("ingest"))
	assert.Equal(t, "a.b.", Join("a", "b"))
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("PAPERLINE_TEST_CHUNK", "128")
	t.Setenv("PAPERLINE_TEST_FACTOR", "0.5")
	t.Setenv("PAPERLINE_TEST_DIR", " /srv/data ")
	t.Setenv("PAPERLINE_TEST_BAD", "abc")

	size := 256
	EnvInt(&size, 256, "PAPERLINE_TEST_CHUNK")
	assert.Equal(t, 128, size)

	explicit := 64
	EnvInt(&explicit, 256, "PAPERLINE_TEST_CHUNK")
	assert.Equal(t, 64, explicit, "non-default values win over the environment")

	bad := 256
	EnvInt(&bad, 256, "PAPERLINE_TEST_BAD")
	assert.Equal(t, 256, bad)

	factor := 1.0
	EnvFloat(&factor, 1.0, "PAPERLINE_TEST_FACTOR")
	assert.InDelta(t, 0.5, factor, 1e-9)

	dir := "data"
	EnvString(&dir, "data", "PAPERLINE_TEST_MISSING", "PAPERLINE_TEST_DIR")
	assert.Equal(t, "/srv/data", dir)
}

func TestAggregate(t *testing.T) {
	assert.NoError(t, Aggregate(nil))
	err := Aggregate([]error{assert.AnError, assert.AnError})
	assert.Error(t, err)
}
