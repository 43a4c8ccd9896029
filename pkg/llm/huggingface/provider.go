// Package huggingface 提供 HuggingFace feature-extraction Embedding 供应商实现。
// 适用于 sentence-transformers、facebook/contriever、allenai/specter 等模型，
// 既可以调用托管的 Inference API，也可以指向自建的兼容端点（此时无需 api_key）。
package huggingface

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/kart-io/paperline/pkg/llm"
	errs "github.com/kart-io/paperline/pkg/utils/errors"
	"github.com/kart-io/paperline/pkg/utils/httpclient"
	"github.com/kart-io/paperline/pkg/utils/json"
)

// ProviderName 是 HuggingFace 供应商的名称标识符
const ProviderName = "huggingface"

// DefaultBaseURL 托管 Inference API 地址。
const DefaultBaseURL = "https://api-inference.huggingface.co"

func init() {
	llm.RegisterEmbeddingProvider(ProviderName, NewProvider)
}

// Config HuggingFace 供应商配置。
type Config struct {
	// BaseURL API 基础地址。
	BaseURL string `json:"base_url" mapstructure:"base_url"`

	// APIKey API 密钥，使用托管 API 时必需。
	APIKey string `json:"api_key" mapstructure:"api_key"`

	// EmbedModel 用于生成嵌入的模型。
	EmbedModel string `json:"embed_model" mapstructure:"embed_model"`

	// Timeout 请求超时时间。
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// MaxRetries HTTP 层重试次数。
	MaxRetries int `json:"max_retries" mapstructure:"max_retries"`

	// WaitForModel 模型冷启动时是否等待加载完成。
	WaitForModel bool `json:"wait_for_model" mapstructure:"wait_for_model"`

	// Normalize 是否对输出向量做 L2 归一化。
	Normalize bool `json:"normalize" mapstructure:"normalize"`
}

// DefaultConfig 返回默认配置。
func DefaultConfig() *Config {
	return &Config{
		BaseURL:      DefaultBaseURL,
		EmbedModel:   "sentence-transformers/all-mpnet-base-v2",
		Timeout:      120 * time.Second,
		WaitForModel: true,
	}
}

// Provider HuggingFace 供应商实现。
type Provider struct {
	config *Config
	client *httpclient.Client
}

// NewProvider 从配置 map 创建 HuggingFace 供应商。
func NewProvider(configMap map[string]any) (llm.EmbeddingProvider, error) {
	cfg := DefaultConfig()

	if v, ok := configMap["base_url"].(string); ok && v != "" {
		cfg.BaseURL = strings.TrimRight(v, "/")
	}
	if v, ok := configMap["api_key"].(string); ok && v != "" {
		cfg.APIKey = v
	}
	if v, ok := configMap["embed_model"].(string); ok && v != "" {
		cfg.EmbedModel = v
	}
	if v, ok := configMap["timeout"].(time.Duration); ok && v > 0 {
		cfg.Timeout = v
	}
	if v, ok := configMap["max_retries"].(int); ok && v > 0 {
		cfg.MaxRetries = v
	}
	if v, ok := configMap["wait_for_model"].(bool); ok {
		cfg.WaitForModel = v
	}
	if v, ok := configMap["normalize"].(bool); ok {
		cfg.Normalize = v
	}

	if cfg.APIKey == "" && cfg.BaseURL == DefaultBaseURL {
		return nil, errs.ErrInvalidConfig.WithMessage("huggingface: 使用托管 API 时 api_key 是必需的")
	}

	return NewProviderWithConfig(cfg), nil
}

// NewProviderWithConfig 使用配置结构体创建供应商。
func NewProviderWithConfig(cfg *Config) *Provider {
	return &Provider{
		config: cfg,
		client: httpclient.NewClient(cfg.Timeout, cfg.MaxRetries),
	}
}

// Name 返回供应商名称。
func (p *Provider) Name() string {
	return ProviderName
}

// Model 返回 Embedding 模型名称。
func (p *Provider) Model() string {
	return p.config.EmbedModel
}

type embeddingRequest struct {
	Inputs  []string          `json:"inputs"`
	Options *embeddingOptions `json:"options,omitempty"`
}

type embeddingOptions struct {
	WaitForModel bool `json:"wait_for_model,omitempty"`
}

// Embed 为多个文本生成向量嵌入。
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	reqBody := embeddingRequest{Inputs: texts}
	if p.config.WaitForModel {
		reqBody.Options = &embeddingOptions{WaitForModel: true}
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("序列化请求失败: %w", err)
	}

	url := fmt.Sprintf("%s/pipeline/feature-extraction/%s", p.config.BaseURL, p.config.EmbedModel)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	p.setHeaders(req)

	var raw json.RawMessage
	if err := p.client.DoJSON(req, &raw); err != nil {
		return nil, err
	}

	embeddings, err := decodeEmbeddings(raw)
	if err != nil {
		return nil, err
	}
	if p.config.Normalize {
		for _, e := range embeddings {
			l2Normalize(e)
		}
	}
	return embeddings, nil
}

// decodeEmbeddings 解析句向量 [][]float32，或对 token 级输出 [][][]float32 做均值池化。
func decodeEmbeddings(raw []byte) ([][]float32, error) {
	var embeddings [][]float32
	if err := json.Unmarshal(raw, &embeddings); err == nil {
		return embeddings, nil
	}

	var tokenEmbeddings [][][]float32
	if err := json.Unmarshal(raw, &tokenEmbeddings); err != nil {
		return nil, errs.ErrEmbeddingEmpty.WithCause(fmt.Errorf("解析响应失败: %w", err))
	}

	embeddings = make([][]float32, len(tokenEmbeddings))
	for i, tokens := range tokenEmbeddings {
		if len(tokens) == 0 {
			continue
		}
		pooled := make([]float32, len(tokens[0]))
		for _, token := range tokens {
			for j := 0; j < len(pooled) && j < len(token); j++ {
				pooled[j] += token[j]
			}
		}
		for j := range pooled {
			pooled[j] /= float32(len(tokens))
		}
		embeddings[i] = pooled
	}
	return embeddings, nil
}

func l2Normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
}

// EmbedSingle 为单个文本生成向量嵌入。
func (p *Provider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := p.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 || len(embeddings[0]) == 0 {
		return nil, errs.ErrEmbeddingEmpty
	}
	return embeddings[0], nil
}

func (p *Provider) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if p.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	}
}

var (
	_ llm.EmbeddingProvider = (*Provider)(nil)
	_ llm.ModelNamer        = (*Provider)(nil)
)
