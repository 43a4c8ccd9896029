// Package biz 提供文档摄取流水线的业务逻辑层。
//
// 该包将流水线拆分为以下组件：
//   - Normalizer: 文本清洗与重排（clean / reflow）
//   - SectionMapper: 分栏检测与章节定位
//   - Chunker: 按段落与词数切分文本
//   - ResilientEmbedder: 多供应商回退、重试与熔断的嵌入层
//   - Orchestrator: 单文档步骤状态机
//   - Batch: 基于 worker 池的多文档并行驱动
package biz

import (
	"github.com/kart-io/paperline/pkg/zotero"
)

// Document 表示一次运行中被处理的文档。
type Document struct {
	// ID 文件名主干，同一 item key 前缀的不同文件不会冲突。
	ID string
	// Path 源文件路径。
	Path string
	// Title 来自 Zotero 的标题（可能为空）。
	Title string
	// Metadata Zotero 书目信息，未获取时为 nil。
	Metadata *zotero.Metadata
	// RawText 提取出的原始文本。
	RawText string
	// CleanText 清洗后的文本。
	CleanText string
}

// NewDocument 根据路径创建文档，ID 在多次运行间保持稳定。
func NewDocument(path string) *Document {
	return &Document{
		ID:   zotero.DocumentID(path),
		Path: path,
	}
}

// Chunk 表示嵌入的基本单元。
type Chunk struct {
	DocumentID string
	// Index 从 0 开始，连续无间隔。
	Index int
	Text  string
}

// ChunkID 返回 "{document_id}_{chunk_index}"。
func (c Chunk) ChunkID() string {
	return ChunkID(c.DocumentID, c.Index)
}
