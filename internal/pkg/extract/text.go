package extract

import (
	"bytes"
	"context"
	"os"
	"strings"
	"unicode/utf8"

	errs "github.com/kart-io/paperline/pkg/utils/errors"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Text reads UTF-8 text files.
type Text struct{}

// Extract implements Extractor. A leading BOM is dropped and invalid bytes are replaced.
func (t *Text) Extract(_ context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errs.ErrExtractionFailure.WithCause(err).WithMessagef("failed to read %s", path)
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		return strings.ToValidUTF8(string(data), "�"), nil
	}
	return string(data), nil
}
