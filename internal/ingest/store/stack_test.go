package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStack(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "stack.json")
	s := NewStack(path)

	items, err := s.Items(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)

	require.NoError(t, s.Push(ctx, "/a.pdf"))
	require.NoError(t, s.Push(ctx, "/b.pdf"))
	require.NoError(t, s.Push(ctx, "/a.pdf"))

	items, err = NewStack(path).Items(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"/a.pdf", "/b.pdf"}, items)

	require.NoError(t, s.Remove(ctx, "/a.pdf"))
	require.NoError(t, s.Remove(ctx, "/missing.pdf"))
	items, err = s.Items(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"/b.pdf"}, items)
}

func TestStackCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stack.json")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o644))

	items, err := NewStack(path).Items(context.Background())
	require.NoError(t, err)
	assert.Empty(t, items)
}
