package biz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kart-io/logger"
	"github.com/kart-io/logger/core"

	"github.com/kart-io/paperline/internal/ingest/store"
	"github.com/kart-io/paperline/internal/pkg/extract"
	errs "github.com/kart-io/paperline/pkg/utils/errors"
	"github.com/kart-io/paperline/pkg/zotero"
)

// Step 单文档处理步骤。
type Step string

const (
	StepExtracting     Step = "extracting"
	StepNormalizing    Step = "normalizing"
	StepSectionMapping Step = "section_mapping"
	StepChunking       Step = "chunking"
	StepEmbedding      Step = "embedding"
	StepPersisting     Step = "persisting"
	StepDone           Step = "done"
	StepErrorExit      Step = "error_exit"
)

// StepError 记录文档在哪一步失败。
type StepError struct {
	DocumentID string    `json:"document_id"`
	Step       Step      `json:"step"`
	Message    string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
	Err        error     `json:"-"`
}

func (e *StepError) Error() string {
	return fmt.Sprintf("document %s failed at %s: %s", e.DocumentID, e.Step, e.Message)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// MetadataFetcher 获取文献元数据（zotero.Client 实现该接口）。
type MetadataFetcher interface {
	FetchItem(ctx context.Context, key string) (map[string]any, error)
}

// Result 单文档处理结果。
type Result struct {
	DocumentID string `json:"document_id"`
	Path       string `json:"path"`
	Title      string `json:"title,omitempty"`
	// Step 最终状态：StepDone 或 StepErrorExit。
	Step Step `json:"step"`
	// FailedStep 失败时所在的步骤。
	FailedStep Step `json:"failed_step,omitempty"`
	Success    bool `json:"success"`
	Skipped    bool `json:"skipped"`

	TotalChunks    int          `json:"total_chunks"`
	EmbeddedChunks int          `json:"embedded_chunks"`
	FailedChunks   int          `json:"failed_chunks"`
	References     int          `json:"references"`
	Tables         int          `json:"tables"`
	Columns        ColumnLayout `json:"columns"`
	Models         []string     `json:"models,omitempty"`

	Duration time.Duration `json:"duration"`
	Error    *StepError    `json:"error,omitempty"`
}

// Orchestrator 单文档流水线：
// Extracting → Normalizing → SectionMapping → Chunking → Embedding → Persisting → Done，
// 任一步骤失败进入 ErrorExit。
type Orchestrator struct {
	extractor  extract.Extractor
	normalizer *Normalizer
	mapper     *SectionMapper
	chunker    *Chunker
	embedder   Embedder
	sink       store.VectorSink
	cache      store.EmbeddingCache
	artifacts  *store.Artifacts
	metadata   MetadataFetcher
	resume     bool
	now        func() time.Time
}

// OrchestratorOption 配置 Orchestrator。
type OrchestratorOption func(*Orchestrator)

// WithNormalizer 设置文本规范化器。
func WithNormalizer(n *Normalizer) OrchestratorOption {
	return func(o *Orchestrator) { o.normalizer = n }
}

// WithSectionMapper 设置章节定位器。
func WithSectionMapper(m *SectionMapper) OrchestratorOption {
	return func(o *Orchestrator) { o.mapper = m }
}

// WithChunker 设置分块器。
func WithChunker(c *Chunker) OrchestratorOption {
	return func(o *Orchestrator) { o.chunker = c }
}

// WithArtifacts 在 Persisting 步骤写出中间产物。
func WithArtifacts(a *store.Artifacts) OrchestratorOption {
	return func(o *Orchestrator) { o.artifacts = a }
}

// WithMetadata 启用 Zotero 元数据获取。
func WithMetadata(f MetadataFetcher) OrchestratorOption {
	return func(o *Orchestrator) { o.metadata = f }
}

// WithResume 启用断点续跑：缓存中已有全部块记录的文档直接跳过。
func WithResume(cache store.EmbeddingCache) OrchestratorOption {
	return func(o *Orchestrator) {
		o.cache = cache
		o.resume = cache != nil
	}
}

// NewOrchestrator 创建 Orchestrator。sink 为 nil 时向量被丢弃。
func NewOrchestrator(extractor extract.Extractor, embedder Embedder, sink store.VectorSink, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		extractor: extractor,
		embedder:  embedder,
		sink:      sink,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.normalizer == nil {
		o.normalizer = NewNormalizer(false, nil)
	}
	if o.mapper == nil {
		o.mapper = NewSectionMapper(0, 0)
	}
	if o.chunker == nil {
		o.chunker = NewChunker(DefaultChunkSize)
	}
	if o.sink == nil {
		o.sink = store.NopSink{}
	}
	return o
}

// Process 处理单个文档。失败时返回 (result, *StepError)，result.Success 为 false；
// 任何 panic 都在此边界内被转换为 ErrorExit。
func (o *Orchestrator) Process(ctx context.Context, path string) (res *Result, err error) {
	doc := NewDocument(path)
	log := logger.With("document_id", doc.ID, "path", path)
	start := o.now()

	res = &Result{DocumentID: doc.ID, Path: path}
	step := StepExtracting

	fail := func(s Step, cause error) (*Result, error) {
		stepErr := &StepError{
			DocumentID: doc.ID,
			Step:       s,
			Message:    cause.Error(),
			Timestamp:  o.now().UTC(),
			Err:        cause,
		}
		res.Step = StepErrorExit
		res.FailedStep = s
		res.Success = false
		res.Error = stepErr
		res.Duration = o.now().Sub(start)
		log.Errorw("document processing failed", "step", string(s), "error", cause.Error())
		return res, stepErr
	}

	defer func() {
		if r := recover(); r != nil {
			res, err = fail(step, errs.ErrInternal.WithMessagef("panic: %v", r))
		}
	}()

	// Extracting
	raw, err := o.extractor.Extract(ctx, path)
	if err != nil {
		return fail(step, err)
	}
	doc.RawText = raw
	o.fetchMetadata(ctx, log, doc)
	res.Title = doc.Title
	tables := DetectTables(raw)
	res.Tables = len(tables)

	// Normalizing
	step = StepNormalizing
	doc.CleanText = o.normalizer.Clean(raw)
	if doc.CleanText == "" {
		return fail(step, errs.ErrExtractionFailure.WithMessage("document has no text after cleaning"))
	}

	// SectionMapping
	step = StepSectionMapping
	sections := o.mapper.Map(doc.CleanText)
	// 分栏检测依赖列间空白，清洗会折叠空格，因此基于原始文本。
	sections.Columns = o.mapper.DetectColumns(raw)
	refs := ExtractReferences(doc.CleanText)
	res.Columns = sections.Columns
	res.References = len(refs)
	log.Debugw("sections mapped",
		"found", len(sections.Found()),
		"multicolumn", sections.Columns.Multicolumn,
		"references", len(refs),
		"tables", len(tables),
	)

	// Chunking
	step = StepChunking
	chunks := o.chunker.Chunks(doc.ID, o.normalizer.Reflow(doc.CleanText))
	res.TotalChunks = len(chunks)
	if len(chunks) == 0 {
		return fail(step, errs.ErrExtractionFailure.WithMessage("document produced no chunks"))
	}
	if o.resume && !reprocess(ctx) {
		if skip, err := o.alreadyEmbedded(ctx, doc.ID, len(chunks)); err != nil {
			log.Warnw("failed to load embedding cache, processing anyway", "error", err.Error())
		} else if skip {
			log.Infow("document already embedded, skipping", "chunks", len(chunks))
			res.Skipped = true
			res.Success = true
			res.Step = StepDone
			res.Duration = o.now().Sub(start)
			return res, nil
		}
	}

	// Embedding
	step = StepEmbedding
	var (
		ids     []string
		vectors [][]float32
		metas   []map[string]any
		models  = make(map[string]struct{})
	)
	for _, ch := range chunks {
		if err := ctx.Err(); err != nil {
			return fail(step, errs.ErrCanceled.WithCause(err))
		}
		r := o.embedder.EmbedWithFallback(ctx, EmbedRequest{
			Text:        ch.Text,
			DocumentID:  doc.ID,
			ChunkIndex:  ch.Index,
			TotalChunks: len(chunks),
		})
		if !r.OK() {
			res.FailedChunks++
			if errors.Is(r.Err, errs.ErrCanceled) {
				return fail(step, r.Err)
			}
			continue
		}
		res.EmbeddedChunks++
		if _, ok := models[r.Model]; !ok {
			models[r.Model] = struct{}{}
			res.Models = append(res.Models, r.Model)
		}
		ids = append(ids, ch.ChunkID())
		vectors = append(vectors, r.Vector)
		metas = append(metas, chunkMetadata(doc, ch, len(chunks), r.Model))
	}

	// Persisting
	step = StepPersisting
	if len(ids) > 0 {
		if err := o.sink.Add(ctx, ids, vectors, metas); err != nil {
			return fail(step, err)
		}
	}
	o.writeArtifacts(log, doc, refs, tables, sections)

	if res.FailedChunks > 0 {
		return fail(StepEmbedding, errs.ErrEmbeddingExhausted.WithMessagef(
			"%d of %d chunks could not be embedded", res.FailedChunks, len(chunks)))
	}

	res.Step = StepDone
	res.Success = true
	res.Duration = o.now().Sub(start)
	log.Infow("document processed",
		"chunks", len(chunks),
		"models", res.Models,
		"duration", res.Duration.String(),
	)
	return res, nil
}

// fetchMetadata 获取 Zotero 元数据，失败只记录警告。
func (o *Orchestrator) fetchMetadata(ctx context.Context, log core.Logger, doc *Document) {
	if o.metadata == nil {
		return
	}
	key, ok := zotero.ItemKey(doc.Path)
	if !ok {
		return
	}
	item, err := o.metadata.FetchItem(ctx, key)
	if err != nil {
		log.Warnw("metadata unavailable", "item_key", key, "error", err.Error())
		return
	}
	meta := zotero.ParseMetadata(item)
	if meta.Key == "" {
		meta.Key = key
	}
	doc.Metadata = meta
	doc.Title = meta.Title
	log.Debugw("metadata fetched", "item_key", key, "title", zotero.ShortenTitle(meta.Title))
}

// chunkMetadata 构造写入向量存储的块元数据，书目字段仅在已获取时附加。
func chunkMetadata(doc *Document, ch Chunk, total int, model string) map[string]any {
	m := map[string]any{
		store.MetaDocumentID:  doc.ID,
		store.MetaChunkIndex:  ch.Index,
		store.MetaTotalChunks: total,
		store.MetaText:        ch.Text,
		store.MetaModel:       model,
		store.MetaTitle:       doc.Title,
		store.MetaPath:        doc.Path,
	}
	if md := doc.Metadata; md != nil {
		m[store.MetaItemKey] = md.Key
		m[store.MetaAuthors] = md.Authors
		m[store.MetaDate] = md.Date
		m[store.MetaDOI] = md.DOI
		m[store.MetaURL] = md.URL
	}
	return m
}

func (o *Orchestrator) alreadyEmbedded(ctx context.Context, documentID string, total int) (bool, error) {
	records, err := o.cache.Load(ctx)
	if err != nil {
		return false, err
	}
	return store.Complete(records, documentID, total), nil
}

// writeArtifacts 写出中间产物，失败只记录警告。
func (o *Orchestrator) writeArtifacts(log core.Logger, doc *Document, refs []string, tables []Table, sections *SectionMap) {
	if o.artifacts == nil {
		return
	}
	warn := func(kind string, err error) {
		if err != nil {
			log.Warnw("failed to write artifact", "kind", kind, "error", err.Error())
		}
	}
	_, err := o.artifacts.WriteCleanText(doc.ID, doc.CleanText)
	warn("clean_text", err)
	_, err = o.artifacts.WriteReferences(doc.ID, refs)
	warn("references", err)
	if tables == nil {
		tables = []Table{}
	}
	_, err = o.artifacts.WriteTables(doc.ID, tables)
	warn("tables", err)
	_, err = o.artifacts.WriteSections(doc.ID, sections)
	warn("sections", err)
}
