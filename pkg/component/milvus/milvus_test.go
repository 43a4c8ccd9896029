package milvus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCollectionName(t *testing.T) {
	assert.Equal(t, "paperline_chunks_1536", CollectionName("paperline_chunks", 1536))
	assert.Equal(t, "x_768", CollectionName("x", 768))
}

func TestRowsValidate(t *testing.T) {
	rows := &Rows{
		IDs:          []string{"A_0", "A_1"},
		DocumentIDs:  []string{"A", "A"},
		ChunkIndexes: []int64{0, 1},
		Texts:        []string{"a", "b"},
		Embeddings:   [][]float32{{1, 0}, {0, 1}},
		Metadata:     [][]byte{[]byte(`{}`), []byte(`{}`)},
	}
	assert.NoError(t, rows.validate())
	assert.Equal(t, 2, rows.Len())

	rows.Embeddings[1] = []float32{1, 2, 3}
	assert.ErrorContains(t, rows.validate(), "dimension")

	rows.Texts = rows.Texts[:1]
	assert.ErrorContains(t, rows.validate(), "different lengths")

	assert.Error(t, (&Rows{}).validate())
}
