// Package sinkopts provides vector sink configuration options.
package sinkopts

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/kart-io/paperline/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

const (
	TypeJSONL  = "jsonl"
	TypeMilvus = "milvus"
	TypeNone   = "none"
)

// Options selects where embedded chunks are persisted.
type Options struct {
	// Type is one of jsonl, milvus or none.
	Type string `json:"type" mapstructure:"type"`

	// JSONLPath is the output file for the jsonl sink. Empty means {storage-dir}/chunks.jsonl.
	JSONLPath string `json:"jsonl-path" mapstructure:"jsonl-path"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{Type: TypeJSONL}
}

// AddFlags adds flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...)
	fs.StringVar(&o.Type, p+"sink.type", o.Type, "Vector sink (jsonl|milvus|none).")
	fs.StringVar(&o.JSONLPath, p+"sink.jsonl-path", o.JSONLPath, "Output file of the jsonl sink (default {storage-dir}/chunks.jsonl).")
}

// Validate validates the options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}
	switch o.Type {
	case TypeJSONL, TypeMilvus, TypeNone:
		return nil
	default:
		return []error{fmt.Errorf("unsupported sink type %q", o.Type)}
	}
}
