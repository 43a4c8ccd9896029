package extract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "github.com/kart-io/paperline/pkg/utils/errors"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestRouterText(t *testing.T) {
	r, err := New(MethodNative, "")
	require.NoError(t, err)

	path := writeFile(t, "ABCD1234.txt", append([]byte{0xEF, 0xBB, 0xBF}, []byte("Abstract\nHello")...))
	text, err := r.Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "Abstract\nHello", text)
}

func TestRouterEmptyText(t *testing.T) {
	r, err := New(MethodNative, "")
	require.NoError(t, err)

	path := writeFile(t, "empty.txt", []byte("  \n\t\n"))
	_, err = r.Extract(context.Background(), path)
	assert.ErrorIs(t, err, errs.ErrExtractionFailure)
}

func TestRouterUnsupported(t *testing.T) {
	r, err := New(MethodNative, "")
	require.NoError(t, err)

	_, err = r.Extract(context.Background(), "paper.docx")
	assert.ErrorIs(t, err, errs.ErrUnsupportedFormat)

	_, err = New("ocr", "")
	assert.ErrorIs(t, err, errs.ErrInvalidConfig)
}

func TestTextInvalidUTF8(t *testing.T) {
	path := writeFile(t, "bad.txt", []byte{'a', 0xff, 'b'})
	text, err := (&Text{}).Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "a�b", text)
}

func TestNativeRejectsGarbage(t *testing.T) {
	path := writeFile(t, "broken.pdf", []byte("this is not a pdf"))
	_, err := NewNative().Extract(context.Background(), path)
	assert.ErrorIs(t, err, errs.ErrExtractionFailure)

	_, err = NewNative().Extract(context.Background(), filepath.Join(t.TempDir(), "missing.pdf"))
	assert.ErrorIs(t, err, errs.ErrExtractionFailure)
}

func TestPdftotext(t *testing.T) {
	var gotName string
	var gotArgs []string
	run := func(_ context.Context, name string, args ...string) ([]byte, error) {
		gotName, gotArgs = name, args
		return []byte("Left column    Right column\n"), nil
	}

	r := &Router{PDF: NewPdftotext("/usr/bin/pdftotext", run), Text: &Text{}}
	text, err := r.Extract(context.Background(), "/papers/ABCD1234.pdf")
	require.NoError(t, err)
	assert.Equal(t, "Left column    Right column\n", text)
	assert.Equal(t, "/usr/bin/pdftotext", gotName)
	assert.Equal(t, []string{"-layout", "-enc", "UTF-8", "/papers/ABCD1234.pdf", "-"}, gotArgs)
}

func TestPdftotextFailure(t *testing.T) {
	run := func(context.Context, string, ...string) ([]byte, error) {
		return nil, errors.New("exit status 1")
	}
	_, err := NewPdftotext("", run).Extract(context.Background(), "x.pdf")
	assert.ErrorIs(t, err, errs.ErrExtractionFailure)
}
