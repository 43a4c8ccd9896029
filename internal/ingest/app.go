package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/kart-io/logger"
	"github.com/spf13/cobra"

	"github.com/kart-io/paperline/internal/ingest/biz"
	"github.com/kart-io/paperline/internal/ingest/metrics"
	"github.com/kart-io/paperline/internal/ingest/store"
	"github.com/kart-io/paperline/internal/pkg/docutil"
	"github.com/kart-io/paperline/internal/pkg/extract"
	"github.com/kart-io/paperline/pkg/component/milvus"
	"github.com/kart-io/paperline/pkg/component/redis"
	"github.com/kart-io/paperline/pkg/infra/app"
	"github.com/kart-io/paperline/pkg/llm"
	cacheopts "github.com/kart-io/paperline/pkg/options/cache"
	sinkopts "github.com/kart-io/paperline/pkg/options/sink"
	"github.com/kart-io/paperline/pkg/zotero"

	// Register embedding providers
	_ "github.com/kart-io/paperline/pkg/llm/gemini"
	_ "github.com/kart-io/paperline/pkg/llm/huggingface"
	_ "github.com/kart-io/paperline/pkg/llm/ollama"
	_ "github.com/kart-io/paperline/pkg/llm/openai"
)

const (
	appName        = "paperline"
	appDescription = `paperline ingests academic documents into a vector store.

For every PDF or text file it:
  - extracts and normalizes the text
  - maps the canonical sections and detects multi-column layouts
  - extracts references and table captions
  - splits the text into word chunks and embeds them with provider fallback
  - writes the vectors to Milvus or a JSONL file`
)

// stdout receives the run summary. Logs go to stderr.
var stdout io.Writer = os.Stdout

// NewApp creates a new application instance.
func NewApp() *app.App {
	opts := NewOptions()

	return app.NewApp(
		app.WithName(appName),
		app.WithShortDescription("Ingest academic PDF and text documents"),
		app.WithDescription(appDescription),
		app.WithOptions(opts),
		app.WithArgs(cobra.MinimumNArgs(1)),
		app.WithRunFunc(func(ctx context.Context, args []string) error {
			return Run(ctx, opts, args)
		}),
	)
}

// Run ingests every document found under args. Only configuration and
// bootstrap problems are returned; per-document failures end up in the summary.
func Run(ctx context.Context, opts *Options, args []string) error {
	// 1. 初始化日志
	if err := opts.Log.Init(appName); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Flush()
	logger.Infow("starting paperline", "version", app.GetVersion(), "storage_dir", opts.Ingest.StorageDir)

	// 2. 收集输入文件
	paths, err := docutil.CollectPaths(args, opts.Ingest.Extensions, opts.Ingest.Recursive)
	if err != nil {
		return fmt.Errorf("failed to collect documents: %w", err)
	}
	if err := docutil.EnsureDir(opts.Ingest.StorageDir); err != nil {
		return fmt.Errorf("failed to create storage dir: %w", err)
	}

	// 3. 文本提取
	extractor, err := extract.New(opts.Ingest.Extraction, opts.Ingest.PdftotextPath)
	if err != nil {
		return err
	}

	// 4. Redis（缓存后端或向量缓存需要时）
	var rdb *redis.Client
	if opts.Cache.NeedsRedis() {
		rdb, err = redis.New(ctx, opts.Cache.Redis)
		if err != nil {
			return fmt.Errorf("failed to initialize redis: %w", err)
		}
		defer rdb.Close()
		logger.Infow("redis client initialized", "addr", opts.Cache.Redis.Addr())
	}

	// 5. 嵌入尝试记录缓存
	cache := newCache(opts, rdb)

	// 6. Embedding 供应商与回退策略
	ingestMetrics := metrics.New()
	providers := newProviders(opts, rdb)
	logger.Infow("embedding profiles configured", "profiles", providers.IDs(), "priority", opts.Embedding.Priority)
	embedder := biz.NewResilientEmbedder(providers, cache, biz.EmbedderConfig{
		Priority:      opts.Embedding.Priority,
		MaxRetries:    opts.Embedding.MaxRetries,
		BackoffFactor: opts.Embedding.BackoffFactor,
	}, biz.WithEmbedderMetrics(ingestMetrics))

	// 7. 向量存储
	sink, err := newSink(ctx, opts)
	if err != nil {
		return err
	}
	defer func() {
		if err := sink.Close(context.WithoutCancel(ctx)); err != nil {
			logger.Warnw("failed to close vector sink", "error", err.Error())
		}
	}()

	// 8. 编排器
	orchOpts := []biz.OrchestratorOption{
		biz.WithNormalizer(biz.NewNormalizer(opts.Ingest.AdvancedClean,
			biz.NewReflower(opts.Ingest.ReflowStrategy, opts.Ingest.ReflowMarker))),
		biz.WithSectionMapper(biz.NewSectionMapper(opts.Ingest.ColumnMinGap, opts.Ingest.ColumnLineFraction)),
		biz.WithChunker(biz.NewChunker(opts.Ingest.ChunkSize)),
		biz.WithArtifacts(store.NewArtifacts(store.ArtifactDirs{
			CleanText:  opts.Ingest.Resolve(opts.Ingest.CleanTextDir),
			References: opts.Ingest.Resolve(opts.Ingest.ReferencesDir),
			Tables:     opts.Ingest.Resolve(opts.Ingest.TablesDir),
			Sections:   opts.Ingest.Resolve(opts.Ingest.SectionsDir),
		})),
	}
	if opts.Zotero.Enabled() {
		client, err := newZotero(opts)
		if err != nil {
			return err
		}
		orchOpts = append(orchOpts, biz.WithMetadata(client))
	}
	if opts.Ingest.Resume {
		orchOpts = append(orchOpts, biz.WithResume(cache))
	}
	orchestrator := biz.NewOrchestrator(extractor, embedder, sink, orchOpts...)

	// 9. 批处理
	var batchOpts []biz.BatchOption
	batchOpts = append(batchOpts,
		biz.WithWorkers(opts.Ingest.Workers),
		biz.WithBatchMetrics(ingestMetrics),
	)
	if opts.Ingest.StackFile != "" {
		batchOpts = append(batchOpts, biz.WithStack(store.NewStack(opts.Ingest.Resolve(opts.Ingest.StackFile))))
	}
	report, err := biz.NewBatch(orchestrator, batchOpts...).Run(ctx, paths)
	if err != nil {
		return err
	}
	logger.Infow("embedding providers used", "built", providers.Built(), "configured", len(providers.IDs()))

	if opts.Ingest.MetricsFile != "" {
		if err := writeMetrics(opts.Ingest.Resolve(opts.Ingest.MetricsFile), ingestMetrics); err != nil {
			logger.Warnw("failed to write metrics", "error", err.Error())
		}
	}

	printSummary(stdout, report)
	return nil
}

func newCache(opts *Options, rdb *redis.Client) store.EmbeddingCache {
	if opts.Cache.Backend == cacheopts.BackendRedis {
		logger.Infow("embedding cache ready", "backend", "redis", "hash_key", opts.Cache.HashKey)
		return store.NewRedisCache(rdb.Client(), opts.Cache.HashKey)
	}
	path := opts.Cache.Path
	if path == "" {
		path = "embedding_cache.json"
	}
	c := store.NewFileCache(opts.Ingest.Resolve(path))
	logger.Infow("embedding cache ready", "backend", "file", "path", c.Path())
	return c
}

func newProviders(opts *Options, rdb *redis.Client) *llm.Instances {
	var instOpts []llm.InstancesOption
	if opts.Cache.Vectors.Enabled && rdb != nil {
		cfg := &llm.EmbeddingCacheConfig{
			Enabled:   true,
			TTL:       opts.Cache.Vectors.TTL,
			KeyPrefix: opts.Cache.Vectors.KeyPrefix,
		}
		instOpts = append(instOpts, llm.WithDecorator(func(_ string, p llm.EmbeddingProvider) llm.EmbeddingProvider {
			return llm.NewCachedEmbeddingProvider(p, rdb.Client(), cfg)
		}))
	}
	return llm.NewInstances(opts.Embedding.LLMProfiles(), instOpts...)
}

func newSink(ctx context.Context, opts *Options) (store.VectorSink, error) {
	switch opts.Sink.Type {
	case sinkopts.TypeMilvus:
		client, err := milvus.New(ctx, opts.Milvus)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize milvus: %w", err)
		}
		logger.Infow("milvus client initialized", "address", opts.Milvus.Address)
		return store.NewMilvusSink(client), nil
	case sinkopts.TypeJSONL:
		path := opts.Sink.JSONLPath
		if path == "" {
			path = "chunks.jsonl"
		}
		return store.NewJSONLSink(opts.Ingest.Resolve(path))
	default:
		return store.NopSink{}, nil
	}
}

func newZotero(opts *Options) (*zotero.Client, error) {
	cfg := zotero.DefaultConfig()
	cfg.BaseURL = opts.Zotero.BaseURL
	cfg.UserID = opts.Zotero.UserID
	cfg.APIKey = opts.Zotero.APIKey
	cfg.LibraryType = opts.Zotero.LibraryType
	cfg.Timeout = opts.Zotero.Timeout
	cfg.RateLimit = opts.Zotero.RateLimit
	cfg.Burst = opts.Zotero.Burst
	cfg.MaxRetries = opts.Zotero.MaxRetries
	cfg.BreakerFailures = opts.Zotero.BreakerFailures
	cfg.BreakerCooldown = opts.Zotero.BreakerCooldown
	return zotero.NewClient(cfg)
}

func writeMetrics(path string, m *metrics.IngestMetrics) error {
	if err := docutil.EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	return docutil.WriteFileAtomic(path, []byte(m.Export(appName, "ingest")), 0o644)
}

func printSummary(w io.Writer, report *biz.Report) {
	s := report.Summary
	fmt.Fprintf(w, "run %s finished in %s\n", report.RunID, report.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "  processed:         %d\n", s.Processed)
	fmt.Fprintf(w, "  succeeded:         %d\n", s.Succeeded)
	fmt.Fprintf(w, "  embedding failed:  %d\n", s.EmbeddingFailed)
	fmt.Fprintf(w, "  extraction failed: %d\n", s.ExtractionFailed)
	fmt.Fprintf(w, "  failed:            %d\n", s.Failed)
	fmt.Fprintf(w, "  skipped:           %d\n", s.Skipped)
	fmt.Fprintf(w, "  chunks embedded:   %d\n", s.ChunksEmbedded)
	fmt.Fprintf(w, "  chunks failed:     %d\n", s.ChunksFailed)
	if len(report.Leftover) > 0 {
		fmt.Fprintf(w, "  reprocessed from previous run: %d\n", len(report.Leftover))
	}
	if report.Canceled {
		fmt.Fprintln(w, "  canceled before all documents were submitted")
	}
	for _, r := range report.Results {
		if r.Success || r.Skipped {
			continue
		}
		msg := "unknown error"
		if r.Error != nil {
			msg = r.Error.Error()
		}
		fmt.Fprintf(w, "  FAILED %s at %s: %s\n", r.Path, r.FailedStep, msg)
	}
}
