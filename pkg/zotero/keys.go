package zotero

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxTitleLength is the rune limit applied by ShortenTitle.
const MaxTitleLength = 80

var itemKeyPattern = regexp.MustCompile(`[A-Z0-9]{8}`)

// ItemKey returns the first 8-character Zotero item key found in the file name.
func ItemKey(path string) (string, bool) {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	key := itemKeyPattern.FindString(stem)
	return key, key != ""
}

// DocumentID derives the document id from a path: the file stem.
// The item key embedded in the name is only used for the metadata lookup.
func DocumentID(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ShortenTitle truncates title to MaxTitleLength runes and appends "...".
func ShortenTitle(title string) string {
	if utf8.RuneCountInString(title) <= MaxTitleLength {
		return title
	}
	runes := []rune(title)
	return string(runes[:MaxTitleLength]) + "..."
}
