package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/paperline/pkg/utils/json"
)

func TestCacheRecordJSON(t *testing.T) {
	rec := NewCacheRecord("ABCD1234", 2, 5, "openai", StatusSuccess)
	data, err := json.Marshal(rec)
	require.NoError(t, err)

	for _, field := range []string{`"document_id"`, `"chunk_index"`, `"total_chunks"`, `"used_model"`, `"status"`, `"timestamp"`} {
		assert.Contains(t, string(data), field)
	}
	assert.NotContains(t, string(data), "pdf_id")
}

func TestCacheRecordLegacyFields(t *testing.T) {
	var rec CacheRecord
	err := json.Unmarshal([]byte(`{"pdf_id":"paper","chunk_no":3,"total_chunks":4,"used_model":"failed","status":"failed","timestamp":"2024-01-02T03:04:05.123456"}`), &rec)
	require.NoError(t, err)

	assert.Equal(t, "paper", rec.DocumentID)
	assert.Equal(t, 3, rec.ChunkIndex)
	assert.Equal(t, 4, rec.TotalChunks)
	assert.Equal(t, FailedModel, rec.UsedModel)
	assert.False(t, rec.Succeeded())
	assert.Equal(t, "paper:3", rec.Key())
}

func TestCacheRecordMissingKey(t *testing.T) {
	var rec CacheRecord
	assert.Error(t, json.Unmarshal([]byte(`{"chunk_index":1}`), &rec))
	assert.Error(t, json.Unmarshal([]byte(`{"document_id":"x"}`), &rec))
}

func TestCompleteAndDocumentRecords(t *testing.T) {
	records := []*CacheRecord{
		NewCacheRecord("a", 1, 2, "openai", StatusSuccess),
		NewCacheRecord("b", 0, 1, "openai", StatusSuccess),
		NewCacheRecord("a", 0, 2, FailedModel, StatusFailed),
		NewCacheRecord("c", 0, 1, FailedModel, StatusFailed),
	}

	// a 的第 0 块只有失败记录
	assert.False(t, Complete(records, "a", 2))
	records = append(records, NewCacheRecord("a", 0, 2, "openai", StatusSuccess))
	assert.True(t, Complete(records, "a", 2))
	assert.False(t, Complete(records, "a", 3))
	assert.True(t, Complete(records, "b", 1))
	assert.False(t, Complete(records, "c", 1))
	assert.False(t, Complete(records, "a", 0))

	docA := DocumentRecords(records, "a")
	require.Len(t, docA, 3)
	assert.Equal(t, 0, docA[0].ChunkIndex)
	assert.Equal(t, 0, docA[1].ChunkIndex)
	assert.Equal(t, 1, docA[2].ChunkIndex)
}
