package extract

import (
	"context"
	"os/exec"

	errs "github.com/kart-io/paperline/pkg/utils/errors"
)

// CommandRunner runs an external command and returns its stdout.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs commands with os/exec.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Pdftotext extracts PDF text with poppler's pdftotext, keeping the physical layout
// so that column gaps survive for column detection.
type Pdftotext struct {
	Binary string
	Run    CommandRunner
}

// NewPdftotext creates a Pdftotext extractor. A nil runner uses ExecRunner.
func NewPdftotext(binary string, run CommandRunner) *Pdftotext {
	if binary == "" {
		binary = "pdftotext"
	}
	if run == nil {
		run = ExecRunner
	}
	return &Pdftotext{Binary: binary, Run: run}
}

// Extract implements Extractor.
func (p *Pdftotext) Extract(ctx context.Context, path string) (string, error) {
	out, err := p.Run(ctx, p.Binary, "-layout", "-enc", "UTF-8", path, "-")
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", errs.ErrExtractionFailure.WithCause(err).WithMessagef("%s failed for %s", p.Binary, path)
	}
	return string(out), nil
}
