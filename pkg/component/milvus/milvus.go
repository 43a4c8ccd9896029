// Package milvus wraps the Milvus SDK for chunk vector storage.
package milvus

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"

	milvusopts "github.com/kart-io/paperline/pkg/options/milvus"
)

// Field names of chunk collections.
const (
	FieldID         = "id"
	FieldEmbedding  = "embedding"
	FieldDocumentID = "document_id"
	FieldChunkIndex = "chunk_index"
	FieldText       = "text"
	FieldMetadata   = "metadata"

	maxIDLength   = 256
	maxTextLength = 65535
)

// Client wraps the Milvus SDK client.
type Client struct {
	client *milvusclient.Client
	opts   *milvusopts.Options

	mu      sync.Mutex
	ensured map[string]struct{}
}

// New creates a new Milvus client.
func New(ctx context.Context, opts *milvusopts.Options) (*Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("milvus options is nil")
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	c, err := milvusclient.New(ctx, &milvusclient.ClientConfig{
		Address:  opts.Address,
		Username: opts.Username,
		Password: opts.Password,
		DBName:   opts.Database,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to milvus: %w", err)
	}

	return &Client{
		client:  c,
		opts:    opts,
		ensured: make(map[string]struct{}),
	}, nil
}

// Close closes the Milvus client connection.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Close(ctx)
}

// CollectionName returns the chunk collection holding vectors of the given dimension.
func (c *Client) CollectionName(dim int) string {
	return CollectionName(c.opts.CollectionPrefix, dim)
}

// CollectionName joins prefix and dimension, e.g. "paperline_chunks_1536".
func CollectionName(prefix string, dim int) string {
	return prefix + "_" + strconv.Itoa(dim)
}

// EnsureCollection creates, indexes and loads the collection unless it already exists.
func (c *Client) EnsureCollection(ctx context.Context, name string, dim int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.ensured[name]; ok {
		return nil
	}

	exists, err := c.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(name))
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}

	if !exists {
		if err := c.createCollection(ctx, name, dim); err != nil {
			return err
		}
	}

	loadTask, err := c.client.LoadCollection(ctx, milvusclient.NewLoadCollectionOption(name))
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}
	if err := loadTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for collection loading: %w", err)
	}

	c.ensured[name] = struct{}{}
	return nil
}

func (c *Client) createCollection(ctx context.Context, name string, dim int) error {
	schema := entity.NewSchema().
		WithName(name).
		WithDescription(fmt.Sprintf("document chunks with %d-dimensional embeddings", dim)).
		WithAutoID(false).
		WithField(entity.NewField().
			WithName(FieldID).
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(maxIDLength).
			WithIsPrimaryKey(true)).
		WithField(entity.NewField().
			WithName(FieldEmbedding).
			WithDataType(entity.FieldTypeFloatVector).
			WithDim(int64(dim))).
		WithField(entity.NewField().
			WithName(FieldDocumentID).
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(maxIDLength)).
		WithField(entity.NewField().
			WithName(FieldChunkIndex).
			WithDataType(entity.FieldTypeInt64)).
		WithField(entity.NewField().
			WithName(FieldText).
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(maxTextLength)).
		WithField(entity.NewField().
			WithName(FieldMetadata).
			WithDataType(entity.FieldTypeJSON))

	if err := c.client.CreateCollection(ctx, milvusclient.NewCreateCollectionOption(name, schema)); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx := index.NewIvfFlatIndex(entity.COSINE, c.opts.NList)
	task, err := c.client.CreateIndex(ctx, milvusclient.NewCreateIndexOption(name, FieldEmbedding, idx))
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	if err := task.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for index creation: %w", err)
	}
	return nil
}

// Rows is a column-oriented batch of chunks. All slices have the same length.
type Rows struct {
	IDs          []string
	DocumentIDs  []string
	ChunkIndexes []int64
	Texts        []string
	Embeddings   [][]float32
	Metadata     [][]byte
}

// Len returns the number of rows.
func (r *Rows) Len() int {
	return len(r.IDs)
}

func (r *Rows) validate() error {
	n := len(r.IDs)
	if n == 0 {
		return fmt.Errorf("no rows to upsert")
	}
	if len(r.DocumentIDs) != n || len(r.ChunkIndexes) != n || len(r.Texts) != n ||
		len(r.Embeddings) != n || len(r.Metadata) != n {
		return fmt.Errorf("row columns have different lengths")
	}
	dim := len(r.Embeddings[0])
	for i, v := range r.Embeddings {
		if len(v) != dim {
			return fmt.Errorf("row %s has dimension %d, want %d", r.IDs[i], len(v), dim)
		}
	}
	return nil
}

// Upsert writes rows into the collection, replacing rows with the same id, and flushes.
func (c *Client) Upsert(ctx context.Context, collectionName string, rows *Rows) (int64, error) {
	if err := rows.validate(); err != nil {
		return 0, err
	}

	dim := len(rows.Embeddings[0])
	option := milvusclient.NewColumnBasedInsertOption(collectionName,
		column.NewColumnVarChar(FieldID, rows.IDs),
		column.NewColumnFloatVector(FieldEmbedding, dim, rows.Embeddings),
		column.NewColumnVarChar(FieldDocumentID, rows.DocumentIDs),
		column.NewColumnInt64(FieldChunkIndex, rows.ChunkIndexes),
		column.NewColumnVarChar(FieldText, rows.Texts),
		column.NewColumnJSONBytes(FieldMetadata, rows.Metadata),
	)

	result, err := c.client.Upsert(ctx, option)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert data: %w", err)
	}

	flushTask, err := c.client.Flush(ctx, milvusclient.NewFlushOption(collectionName))
	if err != nil {
		return 0, fmt.Errorf("failed to flush collection: %w", err)
	}
	if err := flushTask.Await(ctx); err != nil {
		return 0, fmt.Errorf("failed to wait for flush: %w", err)
	}

	return result.UpsertCount, nil
}

// Count returns the number of entities in a collection.
func (c *Client) Count(ctx context.Context, collectionName string) (int64, error) {
	stats, err := c.client.GetCollectionStats(ctx, milvusclient.NewGetCollectionStatsOption(collectionName))
	if err != nil {
		return 0, fmt.Errorf("failed to get collection stats: %w", err)
	}

	if val, ok := stats["row_count"]; ok {
		return strconv.ParseInt(val, 10, 64)
	}
	return 0, nil
}
