// Package zoteroopts provides Zotero client configuration options.
package zoteroopts

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/paperline/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options contains Zotero web API configuration.
type Options struct {
	BaseURL     string        `json:"base-url" mapstructure:"base-url"`
	UserID      string        `json:"user-id" mapstructure:"user-id"`
	APIKey      string        `json:"-" mapstructure:"api-key"`
	LibraryType string        `json:"library-type" mapstructure:"library-type"`
	Timeout     time.Duration `json:"timeout" mapstructure:"timeout"`
	// RateLimit is the sustained request rate per second.
	RateLimit  float64 `json:"rate-limit" mapstructure:"rate-limit"`
	Burst      int     `json:"burst" mapstructure:"burst"`
	MaxRetries int     `json:"max-retries" mapstructure:"max-retries"`
	// BreakerFailures consecutive unavailable lookups pause Zotero for BreakerCooldown.
	BreakerFailures int           `json:"breaker-failures" mapstructure:"breaker-failures"`
	BreakerCooldown time.Duration `json:"breaker-cooldown" mapstructure:"breaker-cooldown"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		BaseURL:     "https://api.zotero.org",
		LibraryType: "user",
		Timeout:     10 * time.Second,
		RateLimit:   2,
		Burst:       1,
		MaxRetries:  3,

		BreakerFailures: 3,
		BreakerCooldown: time.Minute,
	}
}

// Enabled reports whether enough credentials are present to query Zotero.
func (o *Options) Enabled() bool {
	return o.UserID != "" && o.APIKey != ""
}

// AddFlags adds flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...)
	fs.StringVar(&o.BaseURL, p+"zotero.base-url", o.BaseURL, "Zotero web API base URL.")
	fs.StringVar(&o.UserID, p+"zotero.user-id", o.UserID, "Zotero user or group id (default $ZOTERO_USER_ID).")
	fs.StringVar(&o.APIKey, p+"zotero.api-key", o.APIKey, "Zotero API key (default $ZOTERO_API_KEY).")
	fs.StringVar(&o.LibraryType, p+"zotero.library-type", o.LibraryType, "Zotero library type (user|group).")
	fs.DurationVar(&o.Timeout, p+"zotero.timeout", o.Timeout, "Zotero request timeout.")
	fs.Float64Var(&o.RateLimit, p+"zotero.rate-limit", o.RateLimit, "Zotero requests per second.")
	fs.IntVar(&o.Burst, p+"zotero.burst", o.Burst, "Zotero request burst.")
	fs.IntVar(&o.MaxRetries, p+"zotero.max-retries", o.MaxRetries, "Zotero attempts per item.")
	fs.IntVar(&o.BreakerFailures, p+"zotero.breaker-failures", o.BreakerFailures, "Consecutive unavailable lookups before Zotero requests are paused.")
	fs.DurationVar(&o.BreakerCooldown, p+"zotero.breaker-cooldown", o.BreakerCooldown, "How long Zotero requests stay paused.")
}

// Complete fills credentials from the legacy environment variables.
func (o *Options) Complete() error {
	options.EnvString(&o.UserID, "", "ZOTERO_USER_ID")
	options.EnvString(&o.APIKey, "", "ZOTERO_API_KEY")
	options.EnvString(&o.LibraryType, "user", "ZOTERO_LIBRARY_TYPE")
	return nil
}

// Validate validates the options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.LibraryType != "user" && o.LibraryType != "group" {
		errs = append(errs, fmt.Errorf("zotero library type must be user or group, got %q", o.LibraryType))
	}
	if o.RateLimit <= 0 {
		errs = append(errs, fmt.Errorf("zotero rate limit must be positive"))
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("zotero timeout must be positive"))
	}
	if o.BreakerFailures < 0 || o.BreakerCooldown < 0 {
		errs = append(errs, fmt.Errorf("zotero breaker settings must not be negative"))
	}
	return errs
}
