package biz

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/paperline/internal/ingest/metrics"
	"github.com/kart-io/paperline/internal/ingest/store"
	"github.com/kart-io/paperline/pkg/infra/pool"
	errs "github.com/kart-io/paperline/pkg/utils/errors"
	"github.com/kart-io/paperline/pkg/utils/id"
)

// Processor 处理单个文档（Orchestrator 实现该接口）。
type Processor interface {
	Process(ctx context.Context, path string) (*Result, error)
}

type reprocessKey struct{}

// WithReprocess 标记文档必须重新处理，即使断点续跑认为它已完成。
func WithReprocess(ctx context.Context) context.Context {
	return context.WithValue(ctx, reprocessKey{}, true)
}

func reprocess(ctx context.Context) bool {
	v, _ := ctx.Value(reprocessKey{}).(bool)
	return v
}

// Report 一次批处理的汇总。
type Report struct {
	RunID    string          `json:"run_id"`
	Summary  metrics.Summary `json:"summary"`
	Results  []*Result       `json:"results"`
	Leftover []string        `json:"leftover,omitempty"`
	Canceled bool            `json:"canceled"`
	Duration time.Duration   `json:"duration"`
}

// Batch 使用 worker 池并行处理多个文档，每个 worker 处理一个完整文档。
type Batch struct {
	proc    Processor
	workers int
	stack   *store.Stack
	metrics *metrics.IngestMetrics
	ids     id.Generator
}

// BatchOption 配置 Batch。
type BatchOption func(*Batch)

// WithWorkers 设置并发 worker 数，<= 0 时使用 CPU 核数。
func WithWorkers(n int) BatchOption {
	return func(b *Batch) { b.workers = n }
}

// WithStack 设置运行中文档栈。
func WithStack(s *store.Stack) BatchOption {
	return func(b *Batch) { b.stack = s }
}

// WithBatchMetrics 设置指标收集器。
func WithBatchMetrics(m *metrics.IngestMetrics) BatchOption {
	return func(b *Batch) { b.metrics = m }
}

// NewBatch 创建批处理驱动。
func NewBatch(proc Processor, opts ...BatchOption) *Batch {
	b := &Batch{proc: proc, ids: id.NewULIDGenerator()}
	for _, opt := range opts {
		opt(b)
	}
	if b.metrics == nil {
		b.metrics = metrics.New()
	}
	return b
}

// Run 处理全部路径。上一次运行残留在栈中的文档会被报告并重新处理。
// 上下文取消后不再提交新文档，已在处理中的文档继续完成当前步骤。
func (b *Batch) Run(ctx context.Context, paths []string) (*Report, error) {
	start := time.Now()
	report := &Report{RunID: b.ids.Generate()}
	log := logger.With("run_id", report.RunID)

	leftover := b.leftover(ctx)
	report.Leftover = leftover
	pending := make(map[string]bool, len(leftover))
	for _, p := range leftover {
		log.Warnw("document left unfinished by a previous run, reprocessing", "path", p)
		pending[p] = true
	}
	paths = mergePaths(paths, leftover)

	p, err := pool.NewPool("documents", pool.DocumentPool, pool.DocumentPoolConfig(b.workers))
	if err != nil {
		return nil, errs.ErrInternal.WithCause(err)
	}
	defer p.Release()

	log.Infow("batch started", "documents", len(paths), "workers", p.Cap())

	results := make([]*Result, len(paths))
	var mu sync.Mutex
	for i, path := range paths {
		if ctx.Err() != nil {
			report.Canceled = true
			break
		}

		docCtx := ctx
		if pending[path] {
			docCtx = WithReprocess(ctx)
		}
		err := p.SubmitWithContext(ctx, func() {
			res := b.processOne(docCtx, path)
			mu.Lock()
			results[i] = res
			mu.Unlock()
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				report.Canceled = true
				break
			}
			log.Errorw("failed to submit document", "path", path, "error", err.Error())
		}
	}
	p.Wait()

	ps := p.Stats()
	log.Debugw("document pool drained",
		"pool", p.Name(),
		"completed", ps.CompletedTasks,
		"panics_recovered", ps.PanicRecovered,
		"wait", time.Duration(ps.TotalWaitTimeNs).String(),
	)

	if ctx.Err() != nil {
		report.Canceled = true
	}
	for _, r := range results {
		if r != nil {
			report.Results = append(report.Results, r)
		}
	}
	report.Summary = b.metrics.Summary()
	report.Duration = time.Since(start)

	s := report.Summary
	log.Infow("batch finished",
		"processed", s.Processed,
		"succeeded", s.Succeeded,
		"embedding_failed", s.EmbeddingFailed,
		"extraction_failed", s.ExtractionFailed,
		"failed", s.Failed,
		"skipped", s.Skipped,
		"chunks_embedded", s.ChunksEmbedded,
		"chunks_failed", s.ChunksFailed,
		"canceled", report.Canceled,
		"duration", report.Duration.String(),
	)
	return report, nil
}

func (b *Batch) processOne(ctx context.Context, path string) *Result {
	if b.stack != nil {
		if err := b.stack.Push(ctx, path); err != nil {
			logger.Warnw("failed to push document onto stack", "path", path, "error", err.Error())
		}
	}

	res, err := b.safeProcess(ctx, path)
	b.metrics.RecordDocument(Classify(res, err))

	// 被取消的文档留在栈中，下次运行时重新处理。
	if b.stack != nil && ctx.Err() == nil {
		if err := b.stack.Remove(ctx, path); err != nil {
			logger.Warnw("failed to remove document from stack", "path", path, "error", err.Error())
		}
	}
	return res
}

func (b *Batch) safeProcess(ctx context.Context, path string) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errs.ErrInternal.WithMessagef("panic: %v", r)
			res = &Result{Path: path, Step: StepErrorExit}
		}
	}()
	res, err = b.proc.Process(ctx, path)
	if res == nil {
		res = &Result{Path: path, Step: StepErrorExit, Success: err == nil}
	}
	return res, err
}

func (b *Batch) leftover(ctx context.Context) []string {
	if b.stack == nil {
		return nil
	}
	items, err := b.stack.Items(ctx)
	if err != nil {
		logger.Warnw("failed to read stack file", "error", err.Error())
		return nil
	}
	return items
}

// Classify 将单文档结果归入批处理计数类别。
func Classify(res *Result, err error) metrics.Outcome {
	if err == nil && res != nil {
		if res.Skipped {
			return metrics.OutcomeSkipped
		}
		if res.Success {
			return metrics.OutcomeSucceeded
		}
	}

	var stepErr *StepError
	if errors.As(err, &stepErr) {
		switch stepErr.Step {
		case StepExtracting, StepNormalizing:
			return metrics.OutcomeExtractionFailed
		case StepEmbedding:
			return metrics.OutcomeEmbeddingFailed
		}
	}
	switch {
	case errors.Is(err, errs.ErrExtractionFailure), errors.Is(err, errs.ErrUnsupportedFormat):
		return metrics.OutcomeExtractionFailed
	case errors.Is(err, errs.ErrEmbeddingExhausted):
		return metrics.OutcomeEmbeddingFailed
	}
	return metrics.OutcomeFailed
}

func mergePaths(paths, extra []string) []string {
	seen := make(map[string]struct{}, len(paths)+len(extra))
	out := make([]string, 0, len(paths)+len(extra))
	for _, group := range [][]string{extra, paths} {
		for _, p := range group {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}
