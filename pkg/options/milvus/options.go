// Package milvusopts provides options for Milvus client configuration.
package milvusopts

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/paperline/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options contains Milvus client configuration.
type Options struct {
	// Address is the Milvus server address (host:port).
	Address string `json:"address" mapstructure:"address"`

	// Database is the database name to use.
	Database string `json:"database" mapstructure:"database"`

	// Username for authentication.
	Username string `json:"username" mapstructure:"username"`

	// Password for authentication.
	Password string `json:"-" mapstructure:"password"`

	// Timeout for connection and operations.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// CollectionPrefix names chunk collections; the vector dimension is appended.
	CollectionPrefix string `json:"collection-prefix" mapstructure:"collection-prefix"`

	// NList is the IVF_FLAT cluster count.
	NList int `json:"nlist" mapstructure:"nlist"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		Address:          "localhost:19530",
		Database:         "default",
		Timeout:          30 * time.Second,
		CollectionPrefix: "paperline_chunks",
		NList:            128,
	}
}

// AddFlags adds flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...)
	fs.StringVar(&o.Address, p+"milvus.address", o.Address, "Milvus server address (host:port).")
	fs.StringVar(&o.Database, p+"milvus.database", o.Database, "Milvus database name.")
	fs.StringVar(&o.Username, p+"milvus.username", o.Username, "Milvus username for authentication.")
	fs.StringVar(&o.Password, p+"milvus.password", o.Password, "Milvus password for authentication.")
	fs.DurationVar(&o.Timeout, p+"milvus.timeout", o.Timeout, "Connection and operation timeout.")
	fs.StringVar(&o.CollectionPrefix, p+"milvus.collection-prefix", o.CollectionPrefix, "Chunk collection name prefix.")
	fs.IntVar(&o.NList, p+"milvus.nlist", o.NList, "IVF_FLAT nlist parameter.")
}

// Validate validates the options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Address == "" {
		errs = append(errs, fmt.Errorf("milvus address is required"))
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("milvus timeout must be positive"))
	}
	if o.CollectionPrefix == "" {
		errs = append(errs, fmt.Errorf("milvus collection prefix is required"))
	}
	if o.NList <= 0 {
		errs = append(errs, fmt.Errorf("milvus nlist must be positive"))
	}
	return errs
}
