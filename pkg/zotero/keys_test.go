package zotero

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestItemKeyAndDocumentID(t *testing.T) {
	tests := []struct {
		path string
		key  string
		id   string
	}{
		{"/papers/ABCD1234.pdf", "ABCD1234", "ABCD1234"},
		{"/papers/NEURIPS2020 attention.pdf", "NEURIPS2", "NEURIPS2020 attention"},
		{"/papers/Smith 2020 - XY12ZW98 - study.pdf", "XY12ZW98", "Smith 2020 - XY12ZW98 - study"},
		{"/papers/notes.txt", "", "notes"},
		{"relative/abcd1234.pdf", "", "abcd1234"},
	}
	for _, tt := range tests {
		key, ok := ItemKey(tt.path)
		assert.Equal(t, tt.key, key, tt.path)
		assert.Equal(t, tt.key != "", ok, tt.path)
		assert.Equal(t, tt.id, DocumentID(tt.path), tt.path)
	}
}

func TestDocumentIDDistinguishesSharedKeyPrefix(t *testing.T) {
	a := DocumentID("/papers/NEURIPS2020 attention.pdf")
	b := DocumentID("/papers/NEURIPS2020 graphs.pdf")
	assert.NotEqual(t, a, b)

	keyA, _ := ItemKey("/papers/NEURIPS2020 attention.pdf")
	keyB, _ := ItemKey("/papers/NEURIPS2020 graphs.pdf")
	assert.Equal(t, keyA, keyB)
}

func TestShortenTitle(t *testing.T) {
	assert.Equal(t, "Short", ShortenTitle("Short"))

	exact := strings.Repeat("a", MaxTitleLength)
	assert.Equal(t, exact, ShortenTitle(exact))

	long := strings.Repeat("ş", MaxTitleLength+5)
	got := ShortenTitle(long)
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Equal(t, MaxTitleLength+3, utf8.RuneCountInString(got))
}
