package store

import (
	"bufio"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/paperline/pkg/component/milvus"
	errs "github.com/kart-io/paperline/pkg/utils/errors"
	"github.com/kart-io/paperline/pkg/utils/json"
)

type fakeMilvus struct {
	ensured  map[string]int
	upserted map[string]*milvus.Rows
	failWith error
	closed   bool
}

func newFakeMilvus() *fakeMilvus {
	return &fakeMilvus{ensured: map[string]int{}, upserted: map[string]*milvus.Rows{}}
}

func (f *fakeMilvus) CollectionName(dim int) string {
	return milvus.CollectionName("chunks", dim)
}

func (f *fakeMilvus) EnsureCollection(_ context.Context, name string, dim int) error {
	f.ensured[name] = dim
	return nil
}

func (f *fakeMilvus) Upsert(_ context.Context, name string, rows *milvus.Rows) (int64, error) {
	if f.failWith != nil {
		return 0, f.failWith
	}
	f.upserted[name] = rows
	return int64(rows.Len()), nil
}

func (f *fakeMilvus) Close(context.Context) error {
	f.closed = true
	return nil
}

func TestMilvusSinkGroupsByDimension(t *testing.T) {
	fake := newFakeMilvus()
	sink := NewMilvusSink(fake)
	ctx := context.Background()

	err := sink.Add(ctx,
		[]string{"doc_0", "doc_1", "doc_2"},
		[][]float32{{0.1, 0.2}, {0.3, 0.4, 0.5}, {0.6, 0.7}},
		[]map[string]any{
			{MetaDocumentID: "doc", MetaChunkIndex: 0, MetaText: "first"},
			{MetaDocumentID: "doc", MetaChunkIndex: 1, MetaText: "second"},
			{MetaDocumentID: "doc", MetaChunkIndex: 2, MetaText: "third", MetaModel: "openai"},
		},
	)
	require.NoError(t, err)

	assert.Len(t, fake.ensured, 2)
	rows2 := fake.upserted[milvus.CollectionName("chunks", 2)]
	require.NotNil(t, rows2)
	assert.Equal(t, []string{"doc_0", "doc_2"}, rows2.IDs)
	assert.Equal(t, []int64{0, 2}, rows2.ChunkIndexes)
	assert.Equal(t, []string{"first", "third"}, rows2.Texts)

	var meta map[string]any
	require.NoError(t, json.Unmarshal(rows2.Metadata[1], &meta))
	assert.Equal(t, "openai", meta[MetaModel])

	rows3 := fake.upserted[milvus.CollectionName("chunks", 3)]
	require.NotNil(t, rows3)
	assert.Equal(t, []string{"doc"}, rows3.DocumentIDs)

	require.NoError(t, sink.Close(ctx))
	assert.True(t, fake.closed)
}

func TestMilvusSinkErrors(t *testing.T) {
	fake := newFakeMilvus()
	sink := NewMilvusSink(fake)
	ctx := context.Background()

	err := sink.Add(ctx, []string{"a"}, nil, nil)
	assert.ErrorIs(t, err, errs.ErrPersistenceFailure)

	fake.failWith = errors.New("milvus down")
	err = sink.Add(ctx, []string{"a"}, [][]float32{{1}}, nil)
	assert.ErrorIs(t, err, errs.ErrPersistenceFailure)

	assert.NoError(t, sink.Add(ctx, nil, nil, nil))
}

func TestTruncateBytes(t *testing.T) {
	assert.Equal(t, "abc", truncateBytes("abc", 5))
	assert.Equal(t, "ab", truncateBytes("abc", 2))
	// "ş" 占两个字节，不能被截成半个字符。
	assert.Equal(t, "a", truncateBytes("aş", 2))
	assert.Equal(t, "aş", truncateBytes("aşb", 3))
}

func TestJSONLSink(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "out", "vectors.jsonl")

	sink, err := NewJSONLSink(path)
	require.NoError(t, err)
	require.NoError(t, sink.Add(ctx, []string{"d_0"}, [][]float32{{1, 2}}, []map[string]any{{MetaDocumentID: "d"}}))
	require.NoError(t, sink.Add(ctx, []string{"d_1"}, [][]float32{{3, 4}}, nil))
	require.NoError(t, sink.Close(ctx))
	require.NoError(t, sink.Close(ctx))

	assert.Error(t, sink.Add(ctx, []string{"d_2"}, [][]float32{{5}}, nil))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []JSONLRecord
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) == "" {
			continue
		}
		var rec JSONLRecord
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		lines = append(lines, rec)
	}
	require.Len(t, lines, 2)
	assert.Equal(t, "d_0", lines[0].ID)
	assert.Equal(t, "d", lines[0].Metadata[MetaDocumentID])
	assert.Equal(t, []float32{3, 4}, lines[1].Vector)
}

func TestNopSink(t *testing.T) {
	var s VectorSink = NopSink{}
	assert.NoError(t, s.Add(context.Background(), []string{"x"}, [][]float32{{1}}, nil))
	assert.NoError(t, s.Close(context.Background()))
}
