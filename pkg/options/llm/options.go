// Package llmopts provides embedding provider configuration options.
package llmopts

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/paperline/pkg/llm"
	"github.com/kart-io/paperline/pkg/options"
)

var _ options.IOptions = (*EmbeddingOptions)(nil)

// ProfileOptions 定义单个 Embedding profile：供应商 + 模型 + 凭据。
type ProfileOptions struct {
	// Provider 供应商名称（openai, huggingface, ollama, gemini）。
	Provider string `json:"provider" mapstructure:"provider"`

	// BaseURL API 基础地址，为空时使用供应商默认值。
	BaseURL string `json:"base-url" mapstructure:"base-url"`

	// APIKey API 密钥。
	APIKey string `json:"-" mapstructure:"api-key"`

	// Model 使用的模型名称。
	Model string `json:"model" mapstructure:"model"`

	// Timeout 请求超时时间。
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// MaxRetries 供应商内部的 HTTP 重试次数，重试主要由回退层负责，默认 0。
	MaxRetries int `json:"max-retries" mapstructure:"max-retries"`

	// Organization 组织 ID（OpenAI 可选）。
	Organization string `json:"organization" mapstructure:"organization"`

	// Dimensions 输出向量维度（OpenAI text-embedding-3 可选）。
	Dimensions int `json:"dimensions" mapstructure:"dimensions"`

	// Normalize 是否对向量做 L2 归一化（HuggingFace）。
	Normalize bool `json:"normalize" mapstructure:"normalize"`

	// WaitForModel 模型冷启动时是否等待（HuggingFace）。
	WaitForModel bool `json:"wait-for-model" mapstructure:"wait-for-model"`

	// KeepAlive 模型常驻时间（Ollama）。
	KeepAlive string `json:"keep-alive" mapstructure:"keep-alive"`

	// TaskType 任务类型（Gemini）。
	TaskType string `json:"task-type" mapstructure:"task-type"`
}

// ToConfigMap 转换为配置 map，用于供应商工厂。
func (o *ProfileOptions) ToConfigMap() map[string]any {
	m := map[string]any{
		"base_url":       o.BaseURL,
		"api_key":        o.APIKey,
		"embed_model":    o.Model,
		"timeout":        o.Timeout,
		"max_retries":    o.MaxRetries,
		"organization":   o.Organization,
		"dimensions":     o.Dimensions,
		"normalize":      o.Normalize,
		"wait_for_model": o.WaitForModel,
		"keep_alive":     o.KeepAlive,
		"task_type":      o.TaskType,
	}
	return m
}

// EmbeddingOptions 定义回退链路：优先级列表、重试与退避、各 profile。
type EmbeddingOptions struct {
	// Priority 按顺序尝试的 profile ID。
	Priority []string `json:"priority" mapstructure:"priority"`

	// MaxRetries 每个 profile 的最大尝试次数。
	MaxRetries int `json:"max-retries" mapstructure:"max-retries"`

	// BackoffFactor 退避系数，第 n 次失败后等待 factor * 2^n 秒。
	BackoffFactor float64 `json:"backoff-factor" mapstructure:"backoff-factor"`

	// OpenAIAPIKey 填充所有未设置密钥的 openai profile。
	OpenAIAPIKey string `json:"-" mapstructure:"openai-api-key"`

	// HuggingFaceAPIKey 填充所有未设置密钥的 huggingface profile。
	HuggingFaceAPIKey string `json:"-" mapstructure:"huggingface-api-key"`

	// Profiles profile ID 到配置的映射。
	Profiles map[string]*ProfileOptions `json:"profiles" mapstructure:"profiles"`
}

// DefaultPriority 默认回退顺序：托管 API 优先，其后为开源模型。
var DefaultPriority = []string{"openai", "contriever_large", "specter_large", "all_mpnet", "paraphrase_mpnet"}

// NewEmbeddingOptions 创建默认 Embedding 配置。
func NewEmbeddingOptions() *EmbeddingOptions {
	hf := func(model string) *ProfileOptions {
		return &ProfileOptions{Provider: "huggingface", Model: model, Timeout: 60 * time.Second, WaitForModel: true}
	}
	return &EmbeddingOptions{
		Priority:      append([]string(nil), DefaultPriority...),
		MaxRetries:    3,
		BackoffFactor: 1.0,
		Profiles: map[string]*ProfileOptions{
			"openai":           {Provider: "openai", Model: "text-embedding-ada-002", Timeout: 60 * time.Second},
			"contriever_large": hf("facebook/contriever-large"),
			"specter_large":    hf("allenai/specter2_base"),
			"all_mpnet":        hf("sentence-transformers/all-mpnet-base-v2"),
			"paraphrase_mpnet": hf("sentence-transformers/paraphrase-mpnet-base-v2"),
			"nomic_local":      {Provider: "ollama", Model: "nomic-embed-text", Timeout: 120 * time.Second},
		},
	}
}

// AddFlags adds flags for embedding options to the specified FlagSet.
func (o *EmbeddingOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringSliceVar(&o.Priority, options.Join(prefixes...)+"embedding.priority", o.Priority, "Embedding profile ids in fallback order.")
	fs.IntVar(&o.MaxRetries, options.Join(prefixes...)+"embedding.max-retries", o.MaxRetries, "Attempts per embedding profile before falling back.")
	fs.Float64Var(&o.BackoffFactor, options.Join(prefixes...)+"embedding.backoff-factor", o.BackoffFactor, "Backoff factor in seconds; the n-th failure waits factor*2^n.")
	fs.StringVar(&o.OpenAIAPIKey, options.Join(prefixes...)+"embedding.openai-api-key", o.OpenAIAPIKey, "API key for openai profiles (default $OPENAI_API_KEY).")
	fs.StringVar(&o.HuggingFaceAPIKey, options.Join(prefixes...)+"embedding.huggingface-api-key", o.HuggingFaceAPIKey, "API key for huggingface profiles (default $HF_API_KEY).")
}

// Complete fills credentials and legacy environment defaults.
func (o *EmbeddingOptions) Complete() error {
	options.EnvString(&o.OpenAIAPIKey, "", "OPENAI_API_KEY")
	options.EnvString(&o.HuggingFaceAPIKey, "", "HF_API_KEY", "HUGGINGFACEHUB_API_TOKEN")
	options.EnvInt(&o.MaxRetries, 3, "MAX_RETRIES")
	options.EnvFloat(&o.BackoffFactor, 1.0, "BACKOFF_FACTOR")

	for _, p := range o.Profiles {
		if p == nil || p.APIKey != "" {
			continue
		}
		switch p.Provider {
		case "openai":
			p.APIKey = o.OpenAIAPIKey
		case "huggingface":
			p.APIKey = o.HuggingFaceAPIKey
		}
	}
	return nil
}

// Validate validates the embedding options.
func (o *EmbeddingOptions) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if len(o.Priority) == 0 {
		errs = append(errs, fmt.Errorf("embedding.priority must not be empty"))
	}
	if o.MaxRetries <= 0 {
		errs = append(errs, fmt.Errorf("embedding.max-retries must be positive"))
	}
	if o.BackoffFactor < 0 {
		errs = append(errs, fmt.Errorf("embedding.backoff-factor must not be negative"))
	}
	for _, id := range o.Priority {
		p, ok := o.Profiles[id]
		if !ok || p == nil {
			errs = append(errs, fmt.Errorf("embedding profile %q is in the priority list but not configured", id))
			continue
		}
		if p.Provider == "" {
			errs = append(errs, fmt.Errorf("embedding profile %q: provider is required", id))
		}
		if p.Timeout < 0 {
			errs = append(errs, fmt.Errorf("embedding profile %q: timeout must not be negative", id))
		}
	}
	return errs
}

// LLMProfiles 转换为 llm.Profile 列表（按 ID 排序）。
func (o *EmbeddingOptions) LLMProfiles() []llm.Profile {
	ids := make([]string, 0, len(o.Profiles))
	for id, p := range o.Profiles {
		if p != nil {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	profiles := make([]llm.Profile, 0, len(ids))
	for _, id := range ids {
		p := o.Profiles[id]
		profiles = append(profiles, llm.Profile{ID: id, Provider: p.Provider, Config: p.ToConfigMap()})
	}
	return profiles
}
