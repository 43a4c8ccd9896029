package extract

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/kart-io/logger"
	"github.com/ledongthuc/pdf"

	errs "github.com/kart-io/paperline/pkg/utils/errors"
)

// Native extracts PDF text with a pure-Go reader.
type Native struct{}

// NewNative creates a Native extractor.
func NewNative() *Native {
	return &Native{}
}

// Extract implements Extractor. Pages that fail to decode are skipped.
func (n *Native) Extract(ctx context.Context, path string) (text string, err error) {
	// The PDF reader panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = errs.ErrExtractionFailure.WithCause(fmt.Errorf("pdf reader panic: %v", r)).
				WithMessagef("failed to read %s", path)
		}
	}()

	file, err := os.Open(path)
	if err != nil {
		return "", errs.ErrExtractionFailure.WithCause(err).WithMessagef("failed to open %s", path)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", errs.ErrExtractionFailure.WithCause(err).WithMessagef("failed to stat %s", path)
	}

	reader, err := pdf.NewReader(file, info.Size())
	if err != nil {
		return "", errs.ErrExtractionFailure.WithCause(err).WithMessagef("failed to parse %s", path)
	}

	var b strings.Builder
	pages := reader.NumPage()
	for i := 1; i <= pages; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		content, err := page.GetPlainText(nil)
		if err != nil {
			logger.Warnw("failed to extract page text", "path", path, "page", i, "error", err.Error())
			continue
		}
		b.WriteString(content)
		b.WriteString("\n")
	}

	return b.String(), nil
}
