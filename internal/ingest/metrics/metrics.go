// Package metrics 提供摄取流水线的业务指标收集。
package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// IngestMetrics 摄取流水线业务指标。
type IngestMetrics struct {
	// 文档指标
	documentsProcessed        uint64 // 已处理文档数
	documentsSucceeded        uint64 // 成功文档数
	documentsFailed           uint64 // 失败文档数（全部原因）
	documentsExtractionFailed uint64 // 提取失败文档数
	documentsEmbeddingFailed  uint64 // 存在嵌入失败块的文档数
	documentsSkipped          uint64 // 断点续跑跳过的文档数

	// 块指标
	chunksEmbedded uint64 // 嵌入成功块数
	chunksFailed   uint64 // 嵌入失败块数

	// 供应商指标
	embeddingCalls    uint64  // 供应商调用次数
	embeddingErrors   uint64  // 供应商调用失败次数
	embeddingRetries  uint64  // 重试次数
	embeddingFallback uint64  // 回退到下一个供应商的次数
	embeddingDuration float64 // 供应商调用总耗时（秒）

	// 熔断器指标
	circuitBreakerOpens uint64 // 熔断器打开次数

	mu         sync.Mutex
	byProvider map[string]uint64
	startTime  time.Time
}

// New 创建指标实例。
func New() *IngestMetrics {
	return &IngestMetrics{
		byProvider: make(map[string]uint64),
		startTime:  time.Now(),
	}
}

// Outcome 文档处理结果分类。
type Outcome int

const (
	OutcomeSucceeded Outcome = iota
	OutcomeExtractionFailed
	OutcomeEmbeddingFailed
	OutcomeFailed
	OutcomeSkipped
)

// RecordDocument 记录一个文档的处理结果。
func (m *IngestMetrics) RecordDocument(outcome Outcome) {
	if outcome == OutcomeSkipped {
		atomic.AddUint64(&m.documentsSkipped, 1)
		return
	}

	atomic.AddUint64(&m.documentsProcessed, 1)
	switch outcome {
	case OutcomeSucceeded:
		atomic.AddUint64(&m.documentsSucceeded, 1)
	case OutcomeExtractionFailed:
		atomic.AddUint64(&m.documentsExtractionFailed, 1)
		atomic.AddUint64(&m.documentsFailed, 1)
	case OutcomeEmbeddingFailed:
		atomic.AddUint64(&m.documentsEmbeddingFailed, 1)
		atomic.AddUint64(&m.documentsFailed, 1)
	default:
		atomic.AddUint64(&m.documentsFailed, 1)
	}
}

// RecordChunk 记录一个块的最终嵌入结果，provider 为成功的 profile。
func (m *IngestMetrics) RecordChunk(provider string, ok bool) {
	if !ok {
		atomic.AddUint64(&m.chunksFailed, 1)
		return
	}
	atomic.AddUint64(&m.chunksEmbedded, 1)

	m.mu.Lock()
	m.byProvider[provider]++
	m.mu.Unlock()
}

// RecordEmbeddingCall 记录一次供应商调用。
func (m *IngestMetrics) RecordEmbeddingCall(duration time.Duration, err error) {
	atomic.AddUint64(&m.embeddingCalls, 1)
	if err != nil {
		atomic.AddUint64(&m.embeddingErrors, 1)
	}

	m.mu.Lock()
	m.embeddingDuration += duration.Seconds()
	m.mu.Unlock()
}

// RecordRetry 记录一次同一供应商的重试。
func (m *IngestMetrics) RecordRetry() {
	atomic.AddUint64(&m.embeddingRetries, 1)
}

// RecordFallback 记录一次回退到下一个供应商。
func (m *IngestMetrics) RecordFallback() {
	atomic.AddUint64(&m.embeddingFallback, 1)
}

// RecordCircuitBreakerOpen 记录熔断器打开。
func (m *IngestMetrics) RecordCircuitBreakerOpen() {
	atomic.AddUint64(&m.circuitBreakerOpens, 1)
}

// Summary 批处理结束时输出的计数。
type Summary struct {
	Processed        uint64 `json:"processed"`
	Succeeded        uint64 `json:"succeeded"`
	EmbeddingFailed  uint64 `json:"embedding_failed"`
	ExtractionFailed uint64 `json:"extraction_failed"`
	Failed           uint64 `json:"failed"`
	Skipped          uint64 `json:"skipped"`
	ChunksEmbedded   uint64 `json:"chunks_embedded"`
	ChunksFailed     uint64 `json:"chunks_failed"`
}

// Summary 返回当前计数快照。
func (m *IngestMetrics) Summary() Summary {
	return Summary{
		Processed:        atomic.LoadUint64(&m.documentsProcessed),
		Succeeded:        atomic.LoadUint64(&m.documentsSucceeded),
		EmbeddingFailed:  atomic.LoadUint64(&m.documentsEmbeddingFailed),
		ExtractionFailed: atomic.LoadUint64(&m.documentsExtractionFailed),
		Failed:           atomic.LoadUint64(&m.documentsFailed),
		Skipped:          atomic.LoadUint64(&m.documentsSkipped),
		ChunksEmbedded:   atomic.LoadUint64(&m.chunksEmbedded),
		ChunksFailed:     atomic.LoadUint64(&m.chunksFailed),
	}
}

// ProviderCounts 返回各 profile 成功嵌入的块数。
func (m *IngestMetrics) ProviderCounts() map[string]uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]uint64, len(m.byProvider))
	for k, v := range m.byProvider {
		out[k] = v
	}
	return out
}

// Export 导出 Prometheus 文本格式指标。
func (m *IngestMetrics) Export(namespace, subsystem string) string {
	var sb strings.Builder
	prefix := namespace
	if subsystem != "" {
		prefix = prefix + "_" + subsystem
	}

	counter := func(name, help string, v uint64) {
		sb.WriteString(fmt.Sprintf("# HELP %s_%s %s\n", prefix, name, help))
		sb.WriteString(fmt.Sprintf("# TYPE %s_%s counter\n", prefix, name))
		sb.WriteString(fmt.Sprintf("%s_%s %d\n\n", prefix, name, v))
	}

	s := m.Summary()
	counter("documents_processed_total", "Documents that went through the pipeline.", s.Processed)
	counter("documents_succeeded_total", "Documents fully embedded and persisted.", s.Succeeded)
	counter("documents_failed_total", "Documents that failed for any reason.", s.Failed)
	counter("documents_extraction_failed_total", "Documents whose text extraction failed.", s.ExtractionFailed)
	counter("documents_embedding_failed_total", "Documents with at least one chunk that could not be embedded.", s.EmbeddingFailed)
	counter("documents_skipped_total", "Documents skipped in resume mode.", s.Skipped)
	counter("chunks_embedded_total", "Chunks embedded successfully.", s.ChunksEmbedded)
	counter("chunks_failed_total", "Chunks for which every provider failed.", s.ChunksFailed)
	counter("embedding_calls_total", "Embedding provider calls.", atomic.LoadUint64(&m.embeddingCalls))
	counter("embedding_errors_total", "Failed embedding provider calls.", atomic.LoadUint64(&m.embeddingErrors))
	counter("embedding_retries_total", "Retries against the same provider.", atomic.LoadUint64(&m.embeddingRetries))
	counter("embedding_fallbacks_total", "Fallbacks to the next provider.", atomic.LoadUint64(&m.embeddingFallback))
	counter("circuit_breaker_opens_total", "Number of circuit breaker opens.", atomic.LoadUint64(&m.circuitBreakerOpens))

	m.mu.Lock()
	duration := m.embeddingDuration
	providers := make([]string, 0, len(m.byProvider))
	for p := range m.byProvider {
		providers = append(providers, p)
	}
	sort.Strings(providers)
	counts := make([]uint64, len(providers))
	for i, p := range providers {
		counts[i] = m.byProvider[p]
	}
	m.mu.Unlock()

	sb.WriteString(fmt.Sprintf("# HELP %s_embedding_duration_seconds_total Total embedding call duration.\n", prefix))
	sb.WriteString(fmt.Sprintf("# TYPE %s_embedding_duration_seconds_total counter\n", prefix))
	sb.WriteString(fmt.Sprintf("%s_embedding_duration_seconds_total %.6f\n\n", prefix, duration))

	if len(providers) > 0 {
		sb.WriteString(fmt.Sprintf("# HELP %s_chunks_by_provider_total Chunks embedded per provider profile.\n", prefix))
		sb.WriteString(fmt.Sprintf("# TYPE %s_chunks_by_provider_total counter\n", prefix))
		for i, p := range providers {
			sb.WriteString(fmt.Sprintf("%s_chunks_by_provider_total{provider=%q} %d\n", prefix, p, counts[i]))
		}
		sb.WriteString("\n")
	}

	uptime := time.Since(m.startTime).Seconds()
	sb.WriteString(fmt.Sprintf("# HELP %s_uptime_seconds Run time in seconds.\n", prefix))
	sb.WriteString(fmt.Sprintf("# TYPE %s_uptime_seconds gauge\n", prefix))
	sb.WriteString(fmt.Sprintf("%s_uptime_seconds %.2f\n", prefix, uptime))

	return sb.String()
}

// Stats 返回当前统计信息。
func (m *IngestMetrics) Stats() map[string]interface{} {
	s := m.Summary()

	m.mu.Lock()
	duration := m.embeddingDuration
	m.mu.Unlock()

	calls := atomic.LoadUint64(&m.embeddingCalls)
	avg := 0.0
	if calls > 0 {
		avg = duration / float64(calls)
	}

	return map[string]interface{}{
		"documents": map[string]interface{}{
			"processed":         s.Processed,
			"succeeded":         s.Succeeded,
			"failed":            s.Failed,
			"extraction_failed": s.ExtractionFailed,
			"embedding_failed":  s.EmbeddingFailed,
			"skipped":           s.Skipped,
		},
		"chunks": map[string]interface{}{
			"embedded":    s.ChunksEmbedded,
			"failed":      s.ChunksFailed,
			"by_provider": m.ProviderCounts(),
		},
		"embedding": map[string]interface{}{
			"calls":             calls,
			"errors":            atomic.LoadUint64(&m.embeddingErrors),
			"retries":           atomic.LoadUint64(&m.embeddingRetries),
			"fallbacks":         atomic.LoadUint64(&m.embeddingFallback),
			"avg_duration_secs": avg,
		},
		"circuit_breaker": map[string]interface{}{
			"opens": atomic.LoadUint64(&m.circuitBreakerOpens),
		},
		"uptime_seconds": time.Since(m.startTime).Seconds(),
	}
}
