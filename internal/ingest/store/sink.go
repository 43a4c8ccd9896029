package store

import (
	"context"
	"fmt"
)

// Metadata keys written alongside each vector.
const (
	MetaDocumentID  = "document_id"
	MetaChunkIndex  = "chunk_index"
	MetaTotalChunks = "total_chunks"
	MetaText        = "text"
	MetaModel       = "used_model"
	MetaTitle       = "title"
	MetaPath        = "path"

	MetaItemKey = "item_key"
	MetaAuthors = "authors"
	MetaDate    = "date"
	MetaDOI     = "doi"
	MetaURL     = "url"
)

// VectorSink 向量持久化接口，ids 形如 "{document_id}_{chunk_index}"。
type VectorSink interface {
	Add(ctx context.Context, ids []string, vectors [][]float32, metadatas []map[string]any) error
	Close(ctx context.Context) error
}

// NopSink 丢弃所有向量。
type NopSink struct{}

// Add implements VectorSink.
func (NopSink) Add(context.Context, []string, [][]float32, []map[string]any) error { return nil }

// Close implements VectorSink.
func (NopSink) Close(context.Context) error { return nil }

func checkBatch(ids []string, vectors [][]float32, metadatas []map[string]any) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("got %d ids but %d vectors", len(ids), len(vectors))
	}
	if metadatas != nil && len(metadatas) != len(ids) {
		return fmt.Errorf("got %d ids but %d metadata entries", len(ids), len(metadatas))
	}
	return nil
}

func metaAt(metadatas []map[string]any, i int) map[string]any {
	if i < len(metadatas) && metadatas[i] != nil {
		return metadatas[i]
	}
	return map[string]any{}
}
