package ingestopts

import (
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionsCompleteLegacyEnv(t *testing.T) {
	t.Setenv("STORAGE_DIR", "/srv/paperline")
	t.Setenv("CHUNK_SIZE", "128")
	t.Setenv("PDF_TEXT_EXTRACTION_METHOD", "pdfplumber")

	o := NewOptions()
	o.Extensions = []string{"PDF", ".Txt"}
	require.NoError(t, o.Complete())

	assert.Equal(t, "/srv/paperline", o.StorageDir)
	assert.Equal(t, 128, o.ChunkSize)
	assert.Equal(t, ExtractionNative, o.Extraction)
	assert.Equal(t, runtime.NumCPU(), o.Workers)
	assert.Equal(t, []string{".pdf", ".txt"}, o.Extensions)
	assert.Empty(t, o.Validate())
}

func TestOptionsCompleteKeepsExplicitValues(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "128")
	t.Setenv("PDF_TEXT_EXTRACTION_METHOD", "pdfminer")

	o := NewOptions()
	o.ChunkSize = 64
	o.Extraction = ExtractionPdftotext
	require.NoError(t, o.Complete())

	assert.Equal(t, 64, o.ChunkSize)
	assert.Equal(t, ExtractionPdftotext, o.Extraction)
}

func TestOptionsValidate(t *testing.T) {
	o := NewOptions()
	o.ChunkSize = 0
	o.Extraction = "ocr"
	o.ReflowStrategy = "columns"
	o.ColumnLineFraction = 2

	assert.Len(t, o.Validate(), 4)
}

func TestResolve(t *testing.T) {
	o := NewOptions()
	o.StorageDir = "/data"

	assert.Equal(t, filepath.Join("/data", "references"), o.Resolve("references"))
	assert.Equal(t, "/abs/tables", o.Resolve("/abs/tables"))
	assert.Empty(t, o.Resolve(""))
}
