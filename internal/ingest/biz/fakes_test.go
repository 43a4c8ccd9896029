package biz

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kart-io/paperline/internal/ingest/store"
	"github.com/kart-io/paperline/pkg/llm"
	errs "github.com/kart-io/paperline/pkg/utils/errors"
)

// fakeProvider 模拟供应商实现，用于测试。
type fakeProvider struct {
	name  string
	calls int32
	vec   []float32
	err   error
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.EmbedSingle(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeProvider) EmbedSingle(context.Context, string) ([]float32, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return nil, f.err
	}
	if f.vec != nil {
		return f.vec, nil
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func (f *fakeProvider) Calls() int {
	return int(atomic.LoadInt32(&f.calls))
}

// fakeSource 按 profile ID 返回预置的供应商。
type fakeSource struct {
	providers map[string]llm.EmbeddingProvider
	buildErr  map[string]error
}

func newFakeSource(providers ...*fakeProvider) *fakeSource {
	s := &fakeSource{providers: map[string]llm.EmbeddingProvider{}, buildErr: map[string]error{}}
	for _, p := range providers {
		s.providers[p.name] = p
	}
	return s
}

func (s *fakeSource) Get(id string) (llm.EmbeddingProvider, error) {
	if err, ok := s.buildErr[id]; ok {
		return nil, err
	}
	p, ok := s.providers[id]
	if !ok {
		return nil, fmt.Errorf("unknown profile %s", id)
	}
	return p, nil
}

// memCache 内存版 EmbeddingCache。
type memCache struct {
	mu      sync.Mutex
	records map[string]*store.CacheRecord
	order   []string
	upserts int
	loadErr error
}

func newMemCache() *memCache {
	return &memCache{records: map[string]*store.CacheRecord{}}
}

func (c *memCache) Load(context.Context) ([]*store.CacheRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loadErr != nil {
		return nil, c.loadErr
	}
	out := make([]*store.CacheRecord, 0, len(c.order))
	for _, k := range c.order {
		out = append(out, c.records[k])
	}
	return out, nil
}

func (c *memCache) Upsert(_ context.Context, rec *store.CacheRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.upserts++
	if _, ok := c.records[rec.Key()]; !ok {
		c.order = append(c.order, rec.Key())
	}
	c.records[rec.Key()] = rec
	return nil
}

func (c *memCache) Upserts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.upserts
}

// sleepRecorder 记录退避时长而不真正等待。
type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
	err    error
}

func (s *sleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	if s.err != nil {
		return s.err
	}
	return ctx.Err()
}

// fakeExtractor 按路径返回文本或错误。
type fakeExtractor struct {
	texts map[string]string
	err   error
	panic bool
}

func (f *fakeExtractor) Extract(_ context.Context, path string) (string, error) {
	if f.panic {
		panic("pdf reader exploded")
	}
	if f.err != nil {
		return "", f.err
	}
	t, ok := f.texts[path]
	if !ok {
		return "", errors.New("no such file")
	}
	return t, nil
}

// fakeEmbedder 对包含 failOn 的文本返回失败。
type fakeEmbedder struct {
	mu     sync.Mutex
	failOn string
	reqs   []EmbedRequest
}

func (f *fakeEmbedder) EmbedWithFallback(_ context.Context, req EmbedRequest, _ ...EmbedOption) *EmbedResult {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	if f.failOn != "" && strings.Contains(req.Text, f.failOn) {
		return &EmbedResult{Model: store.FailedModel, Status: store.StatusFailed, Err: errs.ErrEmbeddingExhausted}
	}
	return &EmbedResult{Vector: []float32{float32(req.ChunkIndex), 1}, Model: "openai", Status: store.StatusSuccess}
}

// fakeSink 记录写入的向量。
type fakeSink struct {
	mu     sync.Mutex
	ids    []string
	metas  []map[string]any
	err    error
	closed bool
}

func (f *fakeSink) Add(_ context.Context, ids []string, _ [][]float32, metas []map[string]any) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids = append(f.ids, ids...)
	f.metas = append(f.metas, metas...)
	return nil
}

func (f *fakeSink) Close(context.Context) error {
	f.closed = true
	return nil
}

// fakeFetcher 模拟 Zotero 客户端。
type fakeFetcher struct {
	items map[string]map[string]any
	err   error
	keys  []string
}

func (f *fakeFetcher) FetchItem(_ context.Context, key string) (map[string]any, error) {
	f.keys = append(f.keys, key)
	if f.err != nil {
		return nil, f.err
	}
	return f.items[key], nil
}
