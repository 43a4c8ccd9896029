package store

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/kart-io/paperline/pkg/utils/json"
)

// Record statuses.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// FailedModel 所有供应商均失败时记录的模型名。
const FailedModel = "failed"

// CacheRecord 一次嵌入尝试的记录，以 (DocumentID, ChunkIndex) 为主键。
type CacheRecord struct {
	DocumentID  string `json:"document_id"`
	ChunkIndex  int    `json:"chunk_index"`
	TotalChunks int    `json:"total_chunks"`
	UsedModel   string `json:"used_model"`
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
}

// NewCacheRecord 创建带当前 UTC 时间戳的记录。
func NewCacheRecord(documentID string, chunkIndex, totalChunks int, usedModel, status string) *CacheRecord {
	return &CacheRecord{
		DocumentID:  documentID,
		ChunkIndex:  chunkIndex,
		TotalChunks: totalChunks,
		UsedModel:   usedModel,
		Status:      status,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
}

// Key 返回记录主键 "document_id:chunk_index"。
func (r *CacheRecord) Key() string {
	return RecordKey(r.DocumentID, r.ChunkIndex)
}

// Succeeded 判断记录是否为成功状态。
func (r *CacheRecord) Succeeded() bool {
	return r.Status == StatusSuccess
}

// UnmarshalJSON 兼容旧格式字段 pdf_id / chunk_no。
func (r *CacheRecord) UnmarshalJSON(data []byte) error {
	var raw struct {
		DocumentID  *string `json:"document_id"`
		PDFID       *string `json:"pdf_id"`
		ChunkIndex  *int    `json:"chunk_index"`
		ChunkNo     *int    `json:"chunk_no"`
		TotalChunks int     `json:"total_chunks"`
		UsedModel   string  `json:"used_model"`
		Status      string  `json:"status"`
		Timestamp   string  `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch {
	case raw.DocumentID != nil:
		r.DocumentID = *raw.DocumentID
	case raw.PDFID != nil:
		r.DocumentID = *raw.PDFID
	default:
		return fmt.Errorf("cache record has no document id")
	}
	switch {
	case raw.ChunkIndex != nil:
		r.ChunkIndex = *raw.ChunkIndex
	case raw.ChunkNo != nil:
		r.ChunkIndex = *raw.ChunkNo
	default:
		return fmt.Errorf("cache record %s has no chunk index", r.DocumentID)
	}
	r.TotalChunks = raw.TotalChunks
	r.UsedModel = raw.UsedModel
	r.Status = raw.Status
	r.Timestamp = raw.Timestamp
	return nil
}

// RecordKey 返回 (documentID, chunkIndex) 的组合键。
func RecordKey(documentID string, chunkIndex int) string {
	return fmt.Sprintf("%s:%d", documentID, chunkIndex)
}

// EmbeddingCache 嵌入尝试记录存储。
type EmbeddingCache interface {
	// Load 返回全部记录。缓存不存在或已损坏时返回空列表。
	Load(ctx context.Context) ([]*CacheRecord, error)
	// Upsert 按主键替换或追加一条记录，并立即持久化。
	Upsert(ctx context.Context, rec *CacheRecord) error
}

// DocumentRecords 过滤出指定文档的记录并按 chunk_index 排序。
func DocumentRecords(records []*CacheRecord, documentID string) []*CacheRecord {
	var out []*CacheRecord
	for _, r := range records {
		if r.DocumentID == documentID {
			out = append(out, r)
		}
	}
	sortRecords(out)
	return out
}

// Complete 判断某文档的每个块在 totalChunks 相同的前提下都已有成功记录。
// 失败记录不算完成，续跑时该文档会被重新处理。
func Complete(records []*CacheRecord, documentID string, totalChunks int) bool {
	if totalChunks <= 0 {
		return false
	}
	seen := make(map[int]struct{}, totalChunks)
	for _, r := range DocumentRecords(records, documentID) {
		if r.TotalChunks != totalChunks || !r.Succeeded() {
			continue
		}
		if r.ChunkIndex >= 0 && r.ChunkIndex < totalChunks {
			seen[r.ChunkIndex] = struct{}{}
		}
	}
	return len(seen) == totalChunks
}

func sortRecords(records []*CacheRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].DocumentID != records[j].DocumentID {
			return records[i].DocumentID < records[j].DocumentID
		}
		return records[i].ChunkIndex < records[j].ChunkIndex
	})
}
