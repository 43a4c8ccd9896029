// Package extract turns PDF and plain-text files into raw text.
package extract

import (
	"context"
	"path/filepath"
	"strings"

	errs "github.com/kart-io/paperline/pkg/utils/errors"
)

// Extraction methods for PDF files.
const (
	MethodNative    = "native"
	MethodPdftotext = "pdftotext"
)

// Extractor reads the text of one document.
type Extractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// Router dispatches on the file extension: .txt files are read directly,
// .pdf files go through the configured PDF extractor.
type Router struct {
	PDF  Extractor
	Text Extractor
}

var _ Extractor = (*Router)(nil)

// New returns a Router using the given PDF method.
func New(method, pdftotextPath string) (*Router, error) {
	var pdf Extractor
	switch method {
	case MethodNative, "":
		pdf = NewNative()
	case MethodPdftotext:
		pdf = NewPdftotext(pdftotextPath, nil)
	default:
		return nil, errs.ErrInvalidConfig.WithMessagef("unsupported extraction method %q", method)
	}
	return &Router{PDF: pdf, Text: &Text{}}, nil
}

// Extract implements Extractor.
func (r *Router) Extract(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var text string
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		text, err = r.PDF.Extract(ctx, path)
	case ".txt", ".text":
		text, err = r.Text.Extract(ctx, path)
	default:
		return "", errs.ErrUnsupportedFormat.WithMessagef("unsupported file type: %s", filepath.Base(path))
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", errs.ErrExtractionFailure.WithMessagef("no text extracted from %s", filepath.Base(path))
	}
	return text, nil
}
