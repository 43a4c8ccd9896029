package biz

import (
	"context"
	"errors"

	"github.com/kart-io/logger"
	"github.com/kart-io/logger/core"

	"github.com/kart-io/paperline/internal/ingest/metrics"
	"github.com/kart-io/paperline/internal/ingest/store"
	"github.com/kart-io/paperline/pkg/llm"
	"github.com/kart-io/paperline/pkg/llm/resilience"
	errs "github.com/kart-io/paperline/pkg/utils/errors"
)

// Embedder 生成单个块的向量。
type Embedder interface {
	EmbedWithFallback(ctx context.Context, req EmbedRequest, opts ...EmbedOption) *EmbedResult
}

// ProviderSource 按 profile ID 返回供应商实例（llm.Instances 实现该接口）。
type ProviderSource interface {
	Get(id string) (llm.EmbeddingProvider, error)
}

// EmbedRequest 单个块的嵌入请求。
type EmbedRequest struct {
	Text        string
	DocumentID  string
	ChunkIndex  int
	TotalChunks int
}

// EmbedResult 嵌入结果。失败时 Vector 为 nil，Model 为 "failed"。
type EmbedResult struct {
	Vector []float32
	// Model 成功的 profile ID。
	Model  string
	Status string
	// Calls 本次请求的供应商调用总次数。
	Calls int
	Err   error
}

// OK 判断是否得到向量。
func (r *EmbedResult) OK() bool {
	return r.Status == store.StatusSuccess && r.Vector != nil
}

// EmbedderConfig 回退策略配置。
type EmbedderConfig struct {
	// Priority 按顺序尝试的 profile ID。
	Priority []string
	// MaxRetries 每个 profile 的最大尝试次数，默认 3。
	MaxRetries int
	// BackoffFactor 第 n 次（从 0 开始）失败后等待 BackoffFactor * 2^n 秒，默认 1.0。
	BackoffFactor float64
}

// EmbedOption 单次调用覆盖配置。
type EmbedOption func(*EmbedderConfig)

// WithPriority 覆盖优先级列表。
func WithPriority(ids ...string) EmbedOption {
	return func(c *EmbedderConfig) {
		c.Priority = ids
	}
}

// WithMaxRetries 覆盖每个 profile 的最大尝试次数。
func WithMaxRetries(n int) EmbedOption {
	return func(c *EmbedderConfig) {
		c.MaxRetries = n
	}
}

// WithBackoffFactor 覆盖退避系数。
func WithBackoffFactor(f float64) EmbedOption {
	return func(c *EmbedderConfig) {
		c.BackoffFactor = f
	}
}

// EmbedderOption 配置 ResilientEmbedder。
type EmbedderOption func(*ResilientEmbedder)

// WithSleep 替换退避等待函数（测试时注入）。
func WithSleep(fn resilience.SleepFunc) EmbedderOption {
	return func(e *ResilientEmbedder) {
		e.sleep = fn
	}
}

// WithBreakers 使用共享的熔断器集合。
func WithBreakers(b *resilience.Breakers) EmbedderOption {
	return func(e *ResilientEmbedder) {
		e.breakers = b
	}
}

// WithEmbedderMetrics 设置指标收集器。
func WithEmbedderMetrics(m *metrics.IngestMetrics) EmbedderOption {
	return func(e *ResilientEmbedder) {
		e.metrics = m
	}
}

// ResilientEmbedder 按优先级在多个供应商间回退，每个供应商带重试与指数退避，
// 连续失败 MaxRetries 次后该供应商的熔断器在进程内保持打开。
// 每次调用结束时向缓存写入且仅写入一条记录。
type ResilientEmbedder struct {
	providers ProviderSource
	cache     store.EmbeddingCache
	config    EmbedderConfig
	breakers  *resilience.Breakers
	sleep     resilience.SleepFunc
	metrics   *metrics.IngestMetrics
}

var _ Embedder = (*ResilientEmbedder)(nil)

// NewResilientEmbedder 创建 ResilientEmbedder，cache 可以为 nil。
func NewResilientEmbedder(providers ProviderSource, cache store.EmbeddingCache, cfg EmbedderConfig, opts ...EmbedderOption) *ResilientEmbedder {
	cfg = withDefaults(cfg)
	e := &ResilientEmbedder{
		providers: providers,
		cache:     cache,
		config:    cfg,
		sleep:     resilience.Sleep,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.breakers == nil {
		// Timeout 为 0：打开后不再恢复。
		e.breakers = resilience.NewBreakers(&resilience.CircuitBreakerConfig{
			MaxFailures:      cfg.MaxRetries,
			HalfOpenMaxCalls: 1,
		})
	}
	if e.metrics == nil {
		e.metrics = metrics.New()
	}
	return e
}

func withDefaults(cfg EmbedderConfig) EmbedderConfig {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BackoffFactor < 0 {
		cfg.BackoffFactor = 0
	}
	return cfg
}

// Breakers 返回熔断器集合。
func (e *ResilientEmbedder) Breakers() *resilience.Breakers {
	return e.breakers
}

// EmbedWithFallback implements Embedder.
func (e *ResilientEmbedder) EmbedWithFallback(ctx context.Context, req EmbedRequest, opts ...EmbedOption) *EmbedResult {
	cfg := e.config
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg = withDefaults(cfg)

	log := logger.With("document_id", req.DocumentID, "chunk_index", req.ChunkIndex)
	result := e.embed(ctx, log, req, cfg)
	e.record(ctx, log, req, result)
	return result
}

func (e *ResilientEmbedder) embed(ctx context.Context, log core.Logger, req EmbedRequest, cfg EmbedderConfig) *EmbedResult {
	result := &EmbedResult{Model: store.FailedModel, Status: store.StatusFailed}

	for i, id := range cfg.Priority {
		if i > 0 {
			e.metrics.RecordFallback()
		}

		breaker := e.breakers.Get(id)
		if err := breaker.Allow(); err != nil {
			log.Debugw("skipping provider with open circuit", "profile", id)
			continue
		}

		for attempt := 0; attempt < cfg.MaxRetries; attempt++ {
			if err := ctx.Err(); err != nil {
				result.Err = errs.ErrCanceled.WithCause(err)
				return result
			}

			out := e.attempt(ctx, id, req.Text)
			result.Calls++
			e.metrics.RecordEmbeddingCall(out.Duration, errorOf(out))

			if out.OK() {
				breaker.RecordSuccess()
				result.Vector = out.Vector
				result.Model = id
				result.Status = store.StatusSuccess
				return result
			}
			if out.Err.Kind == llm.KindCanceled && ctx.Err() != nil {
				result.Err = errs.ErrCanceled.WithCause(ctx.Err())
				return result
			}

			log.Warnw("embedding attempt failed",
				"profile", id,
				"attempt", attempt+1,
				"max_retries", cfg.MaxRetries,
				"kind", string(out.Err.Kind),
				"error", out.Err.Error(),
			)

			if attempt+1 < cfg.MaxRetries {
				e.metrics.RecordRetry()
				if err := e.sleep(ctx, resilience.Backoff(cfg.BackoffFactor, attempt)); err != nil {
					result.Err = errs.ErrCanceled.WithCause(err)
					return result
				}
			}
		}

		breaker.Trip()
		e.metrics.RecordCircuitBreakerOpen()
	}

	log.Warnw("all embedding providers exhausted", "priority", cfg.Priority, "calls", result.Calls)
	result.Err = errs.ErrEmbeddingExhausted
	return result
}

// attempt 获取供应商实例并调用一次，构造失败同样作为一次失败的尝试。
func (e *ResilientEmbedder) attempt(ctx context.Context, id, text string) llm.Outcome {
	p, err := e.providers.Get(id)
	if err != nil {
		return llm.Outcome{Provider: id, Err: llm.ConstructionError(id, err)}
	}
	return llm.Attempt(ctx, p, text)
}

// record 写入本次调用的最终结果，上下文已取消时仍然写入。
func (e *ResilientEmbedder) record(ctx context.Context, log core.Logger, req EmbedRequest, result *EmbedResult) {
	e.metrics.RecordChunk(result.Model, result.OK())
	if e.cache == nil {
		return
	}

	rec := store.NewCacheRecord(req.DocumentID, req.ChunkIndex, req.TotalChunks, result.Model, result.Status)
	if err := e.cache.Upsert(context.WithoutCancel(ctx), rec); err != nil {
		log.Warnw("failed to record embedding attempt", "error", err.Error())
	}
}

func errorOf(out llm.Outcome) error {
	if out.Err == nil {
		return nil
	}
	return out.Err
}

// IsExhausted 判断错误是否为全部供应商失败。
func IsExhausted(err error) bool {
	return errors.Is(err, errs.ErrEmbeddingExhausted)
}
