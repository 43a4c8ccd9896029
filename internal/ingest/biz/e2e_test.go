package biz

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/paperline/internal/ingest/metrics"
	"github.com/kart-io/paperline/internal/ingest/store"
	"github.com/kart-io/paperline/internal/pkg/extract"
	"github.com/kart-io/paperline/pkg/utils/json"
)

const e2eText = "Abstract\nThis is the abstract.\n\nIntroduction\nBody line one.\nBody line two.\n\nKAYNAKÇA\n[1] Author, A. (2020). Title."

func TestEndToEndTextAnalysis(t *testing.T) {
	clean := Clean(e2eText)
	require.Equal(t, e2eText, clean)

	sm := NewSectionMapper(4, 0.2).Map(clean)
	abs := sm.Sections[SectionAbstract]
	intro := sm.Sections[SectionIntroduction]
	require.NotNil(t, abs)
	require.NotNil(t, intro)
	assert.Equal(t, 0, abs.Start)
	assert.Equal(t, abs.End, intro.Start)
	assert.False(t, sm.Columns.Multicolumn)

	body := "Body line one.\nBody line two."
	require.Contains(t, intro.Content, body)
	chunks := NewChunker(5).Split(body)
	assert.Equal(t, []string{"Body line one. Body line", "two."}, chunks)

	refs := ExtractReferences(clean)
	require.Len(t, refs, 1)
	assert.Contains(t, refs[0], "Author")
	assert.Contains(t, refs[0], "2020")
}

func TestEndToEndPipeline(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	docPath := filepath.Join(dir, "papers", "K7QX2M9A_sample.txt")
	require.NoError(t, os.MkdirAll(filepath.Dir(docPath), 0o755))
	require.NoError(t, os.WriteFile(docPath, []byte(strings.ReplaceAll(e2eText, "\n", "\r\n")), 0o644))

	router, err := extract.New(extract.MethodNative, "")
	require.NoError(t, err)

	cache := store.NewFileCache(filepath.Join(dir, "embedding_cache.json"))
	sinkPath := filepath.Join(dir, "vectors.jsonl")
	sink, err := store.NewJSONLSink(sinkPath)
	require.NoError(t, err)

	primary := &fakeProvider{name: "openai", vec: []float32{0.5, 0.5}}
	m := metrics.New()
	embedder := NewResilientEmbedder(newFakeSource(primary), cache, EmbedderConfig{
		Priority:   []string{"openai"},
		MaxRetries: 3,
	}, WithSleep((&sleepRecorder{}).Sleep), WithEmbedderMetrics(m))

	orch := NewOrchestrator(router, embedder, sink,
		WithChunker(NewChunker(5)),
		WithResume(cache),
		WithArtifacts(store.NewArtifacts(store.ArtifactDirs{
			References: filepath.Join(dir, "references"),
			Sections:   filepath.Join(dir, "sections"),
		})),
	)
	stack := store.NewStack(filepath.Join(dir, "stack.json"))
	batch := NewBatch(orch, WithWorkers(2), WithStack(stack), WithBatchMetrics(m))

	report, err := batch.Run(ctx, []string{docPath})
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	require.NoError(t, sink.Close(ctx))

	res := report.Results[0]
	assert.True(t, res.Success)
	assert.Equal(t, "K7QX2M9A_sample", res.DocumentID)
	assert.Equal(t, res.TotalChunks, primary.Calls())
	assert.Equal(t, uint64(1), report.Summary.Succeeded)
	assert.Equal(t, uint64(res.TotalChunks), report.Summary.ChunksEmbedded)

	records, err := cache.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, records, res.TotalChunks)
	assert.True(t, store.Complete(records, "K7QX2M9A_sample", res.TotalChunks))

	data, err := os.ReadFile(sinkPath)
	require.NoError(t, err)
	assert.Equal(t, res.TotalChunks, strings.Count(string(data), "\n"))

	// 块来自重排后的文本，跨越原段落边界
	clean := Clean(e2eText)
	want := NewChunker(5).Split(NewNormalizer(false, nil).Reflow(clean))
	require.NotEqual(t, NewChunker(5).Split(clean), want)
	var got []string
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		var rec store.JSONLRecord
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		got = append(got, rec.Metadata[store.MetaText].(string))
	}
	assert.Equal(t, want, got)

	// 章节偏移基于清洗后的文本，保留原有换行
	raw, err := os.ReadFile(filepath.Join(dir, "sections", "K7QX2M9A_sample.json"))
	require.NoError(t, err)
	var sm SectionMap
	require.NoError(t, json.Unmarshal(raw, &sm))
	intro := sm.Sections[SectionIntroduction]
	require.NotNil(t, intro)
	assert.Equal(t, strings.Index(clean, "Introduction"), intro.Start)
	assert.Contains(t, intro.Content, "Body line one.\nBody line two.")

	refs, err := os.ReadFile(filepath.Join(dir, "references", "K7QX2M9A_sample.json"))
	require.NoError(t, err)
	assert.Contains(t, string(refs), "Author")

	// 第二次运行：缓存完整，文档被跳过。
	again, err := NewBatch(orch, WithStack(stack)).Run(ctx, []string{docPath})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), again.Summary.Skipped)
	assert.Equal(t, res.TotalChunks, primary.Calls())
}
