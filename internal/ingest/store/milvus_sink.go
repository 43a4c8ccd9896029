package store

import (
	"context"
	"fmt"

	"github.com/kart-io/logger"

	"github.com/kart-io/paperline/pkg/component/milvus"
	errs "github.com/kart-io/paperline/pkg/utils/errors"
	"github.com/kart-io/paperline/pkg/utils/json"
)

// maxTextBytes Milvus text 字段（VarChar）的最大长度。
const maxTextBytes = 65535

// MilvusWriter 是 MilvusSink 依赖的 Milvus 客户端能力。
type MilvusWriter interface {
	CollectionName(dim int) string
	EnsureCollection(ctx context.Context, name string, dim int) error
	Upsert(ctx context.Context, collectionName string, rows *milvus.Rows) (int64, error)
	Close(ctx context.Context) error
}

var _ MilvusWriter = (*milvus.Client)(nil)

// MilvusSink 将向量 upsert 到 Milvus，每种向量维度对应一个集合。
type MilvusSink struct {
	client MilvusWriter
}

var _ VectorSink = (*MilvusSink)(nil)

// NewMilvusSink 创建 Milvus 向量存储。
func NewMilvusSink(client MilvusWriter) *MilvusSink {
	return &MilvusSink{client: client}
}

// Add implements VectorSink. 按维度分组后分别写入对应集合。
func (s *MilvusSink) Add(ctx context.Context, ids []string, vectors [][]float32, metadatas []map[string]any) error {
	if err := checkBatch(ids, vectors, metadatas); err != nil {
		return errs.ErrPersistenceFailure.WithCause(err)
	}
	if len(ids) == 0 {
		return nil
	}

	byDim := make(map[int]*milvus.Rows)
	var dims []int
	for i, id := range ids {
		dim := len(vectors[i])
		if dim == 0 {
			return errs.ErrPersistenceFailure.WithMessagef("vector %s is empty", id)
		}
		rows, ok := byDim[dim]
		if !ok {
			rows = &milvus.Rows{}
			byDim[dim] = rows
			dims = append(dims, dim)
		}

		meta := metaAt(metadatas, i)
		extra, err := json.Marshal(meta)
		if err != nil {
			return errs.ErrPersistenceFailure.WithCause(err)
		}
		rows.IDs = append(rows.IDs, id)
		rows.DocumentIDs = append(rows.DocumentIDs, stringOf(meta[MetaDocumentID]))
		rows.ChunkIndexes = append(rows.ChunkIndexes, int64Of(meta[MetaChunkIndex]))
		rows.Texts = append(rows.Texts, truncateBytes(stringOf(meta[MetaText]), maxTextBytes))
		rows.Embeddings = append(rows.Embeddings, vectors[i])
		rows.Metadata = append(rows.Metadata, extra)
	}

	for _, dim := range dims {
		name := s.client.CollectionName(dim)
		if err := s.client.EnsureCollection(ctx, name, dim); err != nil {
			return errs.ErrPersistenceFailure.WithCause(err)
		}
		n, err := s.client.Upsert(ctx, name, byDim[dim])
		if err != nil {
			return errs.ErrPersistenceFailure.WithCause(err)
		}
		logger.Debugw("vectors upserted", "collection", name, "dimension", dim, "count", n)
	}
	return nil
}

// Close implements VectorSink.
func (s *MilvusSink) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

func stringOf(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(s)
	}
}

func int64Of(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int64:
		return n
	case int32:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

// truncateBytes 截断到不超过 limit 字节，且不拆分 UTF-8 字符。
func truncateBytes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := 0
	for i := range s {
		if i > limit {
			break
		}
		cut = i
	}
	return s[:cut]
}
