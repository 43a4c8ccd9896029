// Package cache provides embedding cache configuration options.
package cache

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/paperline/pkg/options"
	redisopts "github.com/kart-io/paperline/pkg/options/redis"
)

var _ options.IOptions = (*Options)(nil)

const (
	// BackendFile 使用带文件锁的 JSON 文件。
	BackendFile = "file"
	// BackendRedis 使用 Redis Hash。
	BackendRedis = "redis"
)

// VectorOptions 向量缓存配置：按 sha256(model+text) 复用已计算的向量。
type VectorOptions struct {
	// Enabled 是否启用向量缓存（需要 Redis）。
	Enabled bool `json:"enabled" mapstructure:"enabled"`

	// TTL 缓存过期时间。
	TTL time.Duration `json:"ttl" mapstructure:"ttl"`

	// KeyPrefix 缓存键前缀。
	KeyPrefix string `json:"key-prefix" mapstructure:"key-prefix"`
}

// Options 嵌入尝试记录缓存配置。
type Options struct {
	// Backend 存储后端（file, redis）。
	Backend string `json:"backend" mapstructure:"backend"`

	// Path 文件后端路径，为空时为 {storage-dir}/embedding_cache.json。
	Path string `json:"path" mapstructure:"path"`

	// HashKey Redis 后端使用的 Hash 键。
	HashKey string `json:"hash-key" mapstructure:"hash-key"`

	// Vectors 向量缓存配置。
	Vectors VectorOptions `json:"vectors" mapstructure:"vectors"`

	// Redis Redis 连接配置。
	Redis *redisopts.Options `json:"redis" mapstructure:"redis"`
}

// NewOptions 创建默认缓存配置。
func NewOptions() *Options {
	return &Options{
		Backend: BackendFile,
		HashKey: "paperline:embedding_cache",
		Vectors: VectorOptions{
			TTL:       7 * 24 * time.Hour,
			KeyPrefix: "paperline:emb:",
		},
		Redis: redisopts.NewOptions(),
	}
}

// NeedsRedis 判断是否需要 Redis 连接。
func (o *Options) NeedsRedis() bool {
	return o.Backend == BackendRedis || o.Vectors.Enabled
}

// AddFlags adds flags for cache options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...)
	fs.StringVar(&o.Backend, p+"cache.backend", o.Backend, "Embedding cache backend (file|redis).")
	fs.StringVar(&o.Path, p+"cache.path", o.Path, "Embedding cache file (default {storage-dir}/embedding_cache.json).")
	fs.StringVar(&o.HashKey, p+"cache.hash-key", o.HashKey, "Redis hash holding embedding cache records.")
	fs.BoolVar(&o.Vectors.Enabled, p+"cache.vectors.enabled", o.Vectors.Enabled, "Reuse vectors of identical chunk texts through Redis.")
	fs.DurationVar(&o.Vectors.TTL, p+"cache.vectors.ttl", o.Vectors.TTL, "Vector cache TTL.")
	fs.StringVar(&o.Vectors.KeyPrefix, p+"cache.vectors.key-prefix", o.Vectors.KeyPrefix, "Vector cache key prefix.")

	if o.Redis == nil {
		o.Redis = redisopts.NewOptions()
	}
	o.Redis.AddFlags(fs, append(prefixes, "cache")...)
}

// Validate validates the cache options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	switch o.Backend {
	case BackendFile, BackendRedis:
	default:
		errs = append(errs, fmt.Errorf("unsupported cache backend %q", o.Backend))
	}
	if o.Backend == BackendRedis && o.HashKey == "" {
		errs = append(errs, fmt.Errorf("cache.hash-key is required for the redis backend"))
	}
	if o.NeedsRedis() && o.Redis != nil {
		errs = append(errs, o.Redis.Validate()...)
	}
	return errs
}

// Complete completes the cache options with defaults.
func (o *Options) Complete() error {
	if o.Redis == nil {
		o.Redis = redisopts.NewOptions()
	}
	return o.Redis.Complete()
}
