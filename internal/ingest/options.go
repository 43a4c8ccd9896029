// Package app provides the paperline ingestion application.
package app

import (
	"github.com/spf13/pflag"

	"github.com/kart-io/paperline/pkg/options"
	cacheopts "github.com/kart-io/paperline/pkg/options/cache"
	ingestopts "github.com/kart-io/paperline/pkg/options/ingest"
	llmopts "github.com/kart-io/paperline/pkg/options/llm"
	logopts "github.com/kart-io/paperline/pkg/options/logger"
	milvusopts "github.com/kart-io/paperline/pkg/options/milvus"
	sinkopts "github.com/kart-io/paperline/pkg/options/sink"
	zoteroopts "github.com/kart-io/paperline/pkg/options/zotero"
)

// Options contains all paperline options.
type Options struct {
	// Log contains logger configuration.
	Log *logopts.Options `json:"log" mapstructure:"log"`

	// Ingest contains extraction, normalization, chunking and artifact configuration.
	Ingest *ingestopts.Options `json:"ingest" mapstructure:"ingest"`

	// Embedding contains the provider profiles and the fallback policy.
	Embedding *llmopts.EmbeddingOptions `json:"embedding" mapstructure:"embedding"`

	// Cache contains the embedding cache configuration.
	Cache *cacheopts.Options `json:"cache" mapstructure:"cache"`

	// Milvus contains Milvus database configuration.
	Milvus *milvusopts.Options `json:"milvus" mapstructure:"milvus"`

	// Sink selects where embedded chunks are written.
	Sink *sinkopts.Options `json:"sink" mapstructure:"sink"`

	// Zotero contains reference manager configuration.
	Zotero *zoteroopts.Options `json:"zotero" mapstructure:"zotero"`
}

// NewOptions creates Options with defaults.
func NewOptions() *Options {
	return &Options{
		Log:       logopts.NewOptions(),
		Ingest:    ingestopts.NewOptions(),
		Embedding: llmopts.NewEmbeddingOptions(),
		Cache:     cacheopts.NewOptions(),
		Milvus:    milvusopts.NewOptions(),
		Sink:      sinkopts.NewOptions(),
		Zotero:    zoteroopts.NewOptions(),
	}
}

// AddFlags adds flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	o.Log.AddFlags(fs)
	o.Ingest.AddFlags(fs)
	o.Embedding.AddFlags(fs)
	o.Cache.AddFlags(fs)
	o.Milvus.AddFlags(fs)
	o.Sink.AddFlags(fs)
	o.Zotero.AddFlags(fs)
}

// Complete fills defaults from the legacy environment variables.
func (o *Options) Complete() error {
	if err := o.Ingest.Complete(); err != nil {
		return err
	}
	if err := o.Embedding.Complete(); err != nil {
		return err
	}
	if err := o.Cache.Complete(); err != nil {
		return err
	}
	return o.Zotero.Complete()
}

// Validate validates all option groups.
func (o *Options) Validate() error {
	var errs []error
	errs = append(errs, o.Log.Validate()...)
	errs = append(errs, o.Ingest.Validate()...)
	errs = append(errs, o.Embedding.Validate()...)
	errs = append(errs, o.Cache.Validate()...)
	errs = append(errs, o.Sink.Validate()...)
	if o.Sink.Type == sinkopts.TypeMilvus {
		errs = append(errs, o.Milvus.Validate()...)
	}
	errs = append(errs, o.Zotero.Validate()...)
	return options.Aggregate(errs)
}
