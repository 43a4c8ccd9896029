// Package store 提供摄取流水线的持久化层。
//
// 包含三类存储：
//   - EmbeddingCache: 嵌入尝试记录（文件或 Redis），按 (document_id, chunk_index) 去重
//   - VectorSink: 向量持久化（Milvus 或 JSONL 文件）
//   - Stack / Artifacts: 运行中文档栈与每个文档的中间产物
package store
