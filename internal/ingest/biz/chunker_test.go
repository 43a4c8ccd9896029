package biz

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChunkerSplit(t *testing.T) {
	c := NewChunker(3)
	got := c.Split("a b c d e\n\nf g\n\n\n\nh")
	assert.Equal(t, []string{"a b c", "d e", "f g", "h"}, got)
}

func TestChunkerDefaults(t *testing.T) {
	assert.Equal(t, DefaultChunkSize, NewChunker(0).Size)
	assert.Equal(t, DefaultChunkSize, NewChunker(-5).Size)
	assert.Len(t, (&Chunker{}).Split(strings.Repeat("w ", 300)), 2)
}

func TestChunkerEmpty(t *testing.T) {
	c := NewChunker(5)
	assert.Empty(t, c.Split(""))
	assert.Empty(t, c.Split("\n\n  \n\n"))
}

func TestChunkerPreservesWordsAndBound(t *testing.T) {
	text := "Lorem ipsum dolor sit amet,\nconsectetur adipiscing elit.\n\nSed do eiusmod\ttempor incididunt ut labore.\n\n" +
		strings.Repeat("kelime ", 40)
	for _, size := range []int{1, 2, 5, 7, 256} {
		chunks := NewChunker(size).Split(text)

		var words []string
		for _, ch := range chunks {
			fields := strings.Fields(ch)
			assert.LessOrEqual(t, len(fields), size)
			assert.NotEmpty(t, fields)
			words = append(words, fields...)
		}
		assert.Equal(t, strings.Fields(text), words, "size %d", size)
	}
}

func TestChunkerChunks(t *testing.T) {
	chunks := NewChunker(2).Chunks("ABCD1234", "one two three")
	assert.Len(t, chunks, 2)
	for i, ch := range chunks {
		assert.Equal(t, i, ch.Index)
		assert.Equal(t, "ABCD1234", ch.DocumentID)
	}
	assert.Equal(t, "ABCD1234_1", chunks[1].ChunkID())
	assert.Equal(t, "doc_0", ChunkID("doc", 0))
}
