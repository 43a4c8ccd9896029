// Package zotero fetches bibliographic metadata from the Zotero web API.
package zotero

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/paperline/pkg/llm/resilience"
	errs "github.com/kart-io/paperline/pkg/utils/errors"
	"github.com/kart-io/paperline/pkg/utils/httpclient"
	"github.com/kart-io/paperline/pkg/utils/json"
)

const apiVersion = "3"

// Config holds the client settings.
type Config struct {
	BaseURL     string
	UserID      string
	APIKey      string
	LibraryType string
	Timeout     time.Duration
	RateLimit   float64
	Burst       int
	MaxRetries  int
	// RetryDelay is the first backoff delay; it doubles per attempt.
	RetryDelay time.Duration
	// BreakerFailures is the number of consecutive unavailable lookups that
	// stop further requests until BreakerCooldown has passed.
	BreakerFailures int
	BreakerCooldown time.Duration
}

// DefaultConfig returns the public API defaults.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:     "https://api.zotero.org",
		LibraryType: "user",
		Timeout:     10 * time.Second,
		RateLimit:   2,
		Burst:       1,
		MaxRetries:  3,
		RetryDelay:  500 * time.Millisecond,

		BreakerFailures: 3,
		BreakerCooldown: time.Minute,
	}
}

// Client reads items of one Zotero library.
type Client struct {
	config  *Config
	http    *httpclient.Client
	limiter *RateLimiter
	retry   *resilience.RetryConfig
	breaker *resilience.CircuitBreaker
}

// NewClient creates a Zotero client.
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.UserID == "" || cfg.APIKey == "" {
		return nil, errs.ErrInvalidConfig.WithMessage("zotero user id and api key are required")
	}
	if cfg.LibraryType != "user" && cfg.LibraryType != "group" {
		return nil, errs.ErrInvalidConfig.WithMessagef("unsupported zotero library type %q", cfg.LibraryType)
	}

	retry := resilience.DefaultRetryConfig()
	if cfg.MaxRetries > 0 {
		retry.MaxAttempts = cfg.MaxRetries
	}
	if cfg.RetryDelay > 0 {
		retry.InitialDelay = cfg.RetryDelay
	}

	breaker := resilience.DefaultCircuitBreakerConfig()
	if cfg.BreakerFailures > 0 {
		breaker.MaxFailures = cfg.BreakerFailures
	}
	if cfg.BreakerCooldown > 0 {
		breaker.Timeout = cfg.BreakerCooldown
	}

	return &Client{
		config:  cfg,
		http:    httpclient.NewClient(cfg.Timeout, 0),
		limiter: NewRateLimiter(cfg.RateLimit, cfg.Burst),
		retry:   retry,
		breaker: resilience.NewCircuitBreaker("zotero", breaker),
	}, nil
}

// ItemURL returns {base}/{users|groups}/{id}/items/{key}.
func (c *Client) ItemURL(key string) string {
	return fmt.Sprintf("%s/%ss/%s/items/%s",
		strings.TrimRight(c.config.BaseURL, "/"), c.config.LibraryType,
		url.PathEscape(c.config.UserID), url.PathEscape(key))
}

// FetchItem returns the raw item JSON object for key. Once the API has been
// unavailable for BreakerFailures lookups in a row, calls fail fast until the
// cooldown has passed.
func (c *Client) FetchItem(ctx context.Context, key string) (map[string]any, error) {
	var (
		item      map[string]any
		lookupErr error
	)
	err := c.breaker.Execute(func() error {
		lookupErr = resilience.RetryWithBackoff(ctx, c.retry, func() error {
			var err error
			item, err = c.fetchOnce(ctx, key)
			return err
		})
		// A missing item is an answer, not an outage.
		if resilience.IsRetryableError(lookupErr) {
			return lookupErr
		}
		return nil
	})
	if err == nil {
		err = lookupErr
	}
	if err != nil {
		return nil, errs.ErrMetadataUnavailable.WithCause(err).WithMessagef("zotero item %s is unavailable", key)
	}
	return item, nil
}

func (c *Client) fetchOnce(ctx context.Context, key string) (map[string]any, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.ItemURL(key), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Zotero-API-Key", c.config.APIKey)
	req.Header.Set("Zotero-API-Version", apiVersion)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.DoRequest(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	c.limiter.Update(resp.Header)

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		logger.Warnw("zotero request failed", "key", key, "status", resp.StatusCode)
		return nil, &httpclient.StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var item map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		return nil, fmt.Errorf("failed to decode zotero item: %w", err)
	}
	return item, nil
}

// Metadata is the bibliographic subset attached to chunk records.
type Metadata struct {
	Key        string   `json:"key"`
	ItemType   string   `json:"item_type,omitempty"`
	Title      string   `json:"title,omitempty"`
	ShortTitle string   `json:"short_title,omitempty"`
	Authors    []string `json:"authors,omitempty"`
	Date       string   `json:"date,omitempty"`
	DOI        string   `json:"doi,omitempty"`
	URL        string   `json:"url,omitempty"`
}

// ParseMetadata extracts Metadata from a raw item returned by FetchItem.
func ParseMetadata(item map[string]any) *Metadata {
	md := &Metadata{}
	md.Key, _ = item["key"].(string)

	data, _ := item["data"].(map[string]any)
	if data == nil {
		return md
	}

	str := func(name string) string {
		s, _ := data[name].(string)
		return s
	}
	md.ItemType = str("itemType")
	md.Title = str("title")
	md.ShortTitle = ShortenTitle(md.Title)
	md.Date = str("date")
	md.DOI = str("DOI")
	md.URL = str("url")
	if md.Key == "" {
		md.Key = str("key")
	}

	creators, _ := data["creators"].([]any)
	for _, raw := range creators {
		c, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if name, _ := c["name"].(string); name != "" {
			md.Authors = append(md.Authors, name)
			continue
		}
		last, _ := c["lastName"].(string)
		first, _ := c["firstName"].(string)
		switch {
		case last != "" && first != "":
			md.Authors = append(md.Authors, last+", "+first)
		case last != "":
			md.Authors = append(md.Authors, last)
		}
	}
	return md
}
