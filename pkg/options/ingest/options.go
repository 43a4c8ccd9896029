// Package ingestopts provides document ingestion options.
package ingestopts

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/pflag"

	"github.com/kart-io/paperline/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Extraction methods.
const (
	ExtractionNative    = "native"
	ExtractionPdftotext = "pdftotext"
)

// Options controls extraction, normalization, chunking and artifact output.
type Options struct {
	StorageDir string `json:"storage-dir" mapstructure:"storage-dir"`
	ChunkSize  int    `json:"chunk-size" mapstructure:"chunk-size"`
	// Workers is the document worker count; <= 0 means runtime.NumCPU().
	Workers       int      `json:"workers" mapstructure:"workers"`
	Extraction    string   `json:"extraction" mapstructure:"extraction"`
	PdftotextPath string   `json:"pdftotext-path" mapstructure:"pdftotext-path"`
	Extensions    []string `json:"extensions" mapstructure:"extensions"`
	Recursive     bool     `json:"recursive" mapstructure:"recursive"`
	Resume        bool     `json:"resume" mapstructure:"resume"`
	AdvancedClean bool     `json:"advanced-clean" mapstructure:"advanced-clean"`

	ReflowStrategy string `json:"reflow-strategy" mapstructure:"reflow-strategy"`
	ReflowMarker   string `json:"reflow-marker" mapstructure:"reflow-marker"`

	ColumnMinGap       int     `json:"column-min-gap" mapstructure:"column-min-gap"`
	ColumnLineFraction float64 `json:"column-line-fraction" mapstructure:"column-line-fraction"`

	// Artifact directories; relative paths live under StorageDir, empty disables the artifact.
	CleanTextDir  string `json:"clean-text-dir" mapstructure:"clean-text-dir"`
	ReferencesDir string `json:"references-dir" mapstructure:"references-dir"`
	TablesDir     string `json:"tables-dir" mapstructure:"tables-dir"`
	SectionsDir   string `json:"sections-dir" mapstructure:"sections-dir"`
	StackFile     string `json:"stack-file" mapstructure:"stack-file"`
	// MetricsFile receives the Prometheus text exposition after a run; empty disables it.
	MetricsFile string `json:"metrics-file" mapstructure:"metrics-file"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		StorageDir:         "data",
		ChunkSize:          256,
		Extraction:         ExtractionNative,
		PdftotextPath:      "pdftotext",
		Extensions:         []string{".pdf", ".txt"},
		Recursive:          true,
		ReflowStrategy:     "abstract",
		ReflowMarker:       "Abstract",
		ColumnMinGap:       4,
		ColumnLineFraction: 0.2,
		CleanTextDir:       "clean_text",
		ReferencesDir:      "references",
		TablesDir:          "tables",
		SectionsDir:        "sections",
		StackFile:          "stack.json",
	}
}

// AddFlags adds flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "ingest."
	fs.StringVar(&o.StorageDir, p+"storage-dir", o.StorageDir, "Root directory for cache, stack and artifacts (default $STORAGE_DIR or data).")
	fs.IntVar(&o.ChunkSize, p+"chunk-size", o.ChunkSize, "Maximum words per chunk.")
	fs.IntVar(&o.Workers, p+"workers", o.Workers, "Documents processed in parallel (0 = number of CPUs).")
	fs.StringVar(&o.Extraction, p+"extraction", o.Extraction, "PDF text extraction method (native|pdftotext).")
	fs.StringVar(&o.PdftotextPath, p+"pdftotext-path", o.PdftotextPath, "pdftotext binary.")
	fs.StringSliceVar(&o.Extensions, p+"extensions", o.Extensions, "File extensions picked up when walking directories.")
	fs.BoolVar(&o.Recursive, p+"recursive", o.Recursive, "Walk directories recursively.")
	fs.BoolVar(&o.Resume, p+"resume", o.Resume, "Skip documents whose chunks are all present in the embedding cache.")
	fs.BoolVar(&o.AdvancedClean, p+"advanced-clean", o.AdvancedClean, "Strip HTML, markdown links and page markers and join hyphenated words.")
	fs.StringVar(&o.ReflowStrategy, p+"reflow-strategy", o.ReflowStrategy, "Reflow strategy (abstract|none).")
	fs.StringVar(&o.ReflowMarker, p+"reflow-marker", o.ReflowMarker, "Marker where the abstract reflow starts.")
	fs.IntVar(&o.ColumnMinGap, p+"column-min-gap", o.ColumnMinGap, "Consecutive spaces that mark a column gap.")
	fs.Float64Var(&o.ColumnLineFraction, p+"column-line-fraction", o.ColumnLineFraction, "Fraction of gap lines above which text is multi-column.")
	fs.StringVar(&o.CleanTextDir, p+"clean-text-dir", o.CleanTextDir, "Clean text artifact directory (empty disables).")
	fs.StringVar(&o.ReferencesDir, p+"references-dir", o.ReferencesDir, "References artifact directory (empty disables).")
	fs.StringVar(&o.TablesDir, p+"tables-dir", o.TablesDir, "Tables artifact directory (empty disables).")
	fs.StringVar(&o.SectionsDir, p+"sections-dir", o.SectionsDir, "Section map artifact directory (empty disables).")
	fs.StringVar(&o.StackFile, p+"stack-file", o.StackFile, "In-progress document stack file.")
	fs.StringVar(&o.MetricsFile, p+"metrics-file", o.MetricsFile, "Write run metrics in Prometheus text format to this file.")
}

// Complete applies legacy environment defaults and normalizes values.
func (o *Options) Complete() error {
	options.EnvString(&o.StorageDir, "data", "STORAGE_DIR")
	options.EnvInt(&o.ChunkSize, 256, "CHUNK_SIZE")

	method := o.Extraction
	options.EnvString(&method, ExtractionNative, "PDF_TEXT_EXTRACTION_METHOD")
	switch strings.ToLower(method) {
	case "pdfplumber", "pdfminer", "":
		method = ExtractionNative
	}
	o.Extraction = strings.ToLower(method)

	if o.Workers <= 0 {
		o.Workers = runtime.NumCPU()
	}
	for i, ext := range o.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		o.Extensions[i] = ext
	}
	return nil
}

// Validate validates the options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.StorageDir == "" {
		errs = append(errs, fmt.Errorf("ingest.storage-dir is required"))
	}
	if o.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("ingest.chunk-size must be positive"))
	}
	if o.Extraction != ExtractionNative && o.Extraction != ExtractionPdftotext {
		errs = append(errs, fmt.Errorf("unsupported extraction method %q", o.Extraction))
	}
	if o.ReflowStrategy != "abstract" && o.ReflowStrategy != "none" {
		errs = append(errs, fmt.Errorf("unsupported reflow strategy %q", o.ReflowStrategy))
	}
	if o.ColumnMinGap <= 0 {
		errs = append(errs, fmt.Errorf("ingest.column-min-gap must be positive"))
	}
	if o.ColumnLineFraction <= 0 || o.ColumnLineFraction > 1 {
		errs = append(errs, fmt.Errorf("ingest.column-line-fraction must be in (0, 1]"))
	}
	if len(o.Extensions) == 0 {
		errs = append(errs, fmt.Errorf("ingest.extensions must not be empty"))
	}
	return errs
}

// Resolve returns path under StorageDir unless it is absolute. Empty stays empty.
func (o *Options) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(o.StorageDir, path)
}
