package biz

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/paperline/internal/ingest/metrics"
	"github.com/kart-io/paperline/internal/ingest/store"
	"github.com/kart-io/paperline/pkg/llm/resilience"
	errs "github.com/kart-io/paperline/pkg/utils/errors"
)

func newTestEmbedder(src ProviderSource, cache store.EmbeddingCache, sleeper *sleepRecorder, priority ...string) *ResilientEmbedder {
	return NewResilientEmbedder(src, cache, EmbedderConfig{
		Priority:      priority,
		MaxRetries:    3,
		BackoffFactor: 1.0,
	}, WithSleep(sleeper.Sleep))
}

func testRequest() EmbedRequest {
	return EmbedRequest{Text: "chunk text", DocumentID: "doc", ChunkIndex: 4, TotalChunks: 9}
}

func TestEmbedFirstSuccessShortCircuits(t *testing.T) {
	a := &fakeProvider{name: "a", vec: []float32{1, 2}}
	b := &fakeProvider{name: "b"}
	cache := newMemCache()
	sleeper := &sleepRecorder{}
	e := newTestEmbedder(newFakeSource(a, b), cache, sleeper, "a", "b")

	res := e.EmbedWithFallback(context.Background(), testRequest())

	require.True(t, res.OK())
	assert.Equal(t, []float32{1, 2}, res.Vector)
	assert.Equal(t, "a", res.Model)
	assert.Equal(t, 1, res.Calls)
	assert.NoError(t, res.Err)
	assert.Equal(t, 1, a.Calls())
	assert.Equal(t, 0, b.Calls())
	assert.Empty(t, sleeper.delays)

	require.Equal(t, 1, cache.Upserts())
	records, _ := cache.Load(context.Background())
	assert.Equal(t, "a", records[0].UsedModel)
	assert.Equal(t, store.StatusSuccess, records[0].Status)
	assert.Equal(t, 9, records[0].TotalChunks)
}

func TestEmbedFallsBackAfterMaxRetries(t *testing.T) {
	a := &fakeProvider{name: "a", err: errors.New("rate limited")}
	b := &fakeProvider{name: "b"}
	cache := newMemCache()
	sleeper := &sleepRecorder{}
	e := newTestEmbedder(newFakeSource(a, b), cache, sleeper, "a", "b")

	res := e.EmbedWithFallback(context.Background(), testRequest())

	require.True(t, res.OK())
	assert.Equal(t, "b", res.Model)
	assert.Equal(t, 3, a.Calls())
	assert.Equal(t, 1, b.Calls())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, sleeper.delays)
	assert.Equal(t, resilience.StateOpen, e.Breakers().Get("a").State())
	assert.Equal(t, resilience.StateClosed, e.Breakers().Get("b").State())
	assert.Equal(t, 1, cache.Upserts())
}

func TestEmbedTotalExhaustion(t *testing.T) {
	a := &fakeProvider{name: "a", err: errors.New("boom")}
	b := &fakeProvider{name: "b", vec: []float32{}}
	cache := newMemCache()
	sleeper := &sleepRecorder{}
	m := metrics.New()
	e := NewResilientEmbedder(newFakeSource(a, b), cache, EmbedderConfig{
		Priority:      []string{"a", "b"},
		MaxRetries:    3,
		BackoffFactor: 0.5,
	}, WithSleep(sleeper.Sleep), WithEmbedderMetrics(m))

	res := e.EmbedWithFallback(context.Background(), testRequest())

	assert.False(t, res.OK())
	assert.Nil(t, res.Vector)
	assert.Equal(t, store.FailedModel, res.Model)
	assert.Equal(t, store.StatusFailed, res.Status)
	assert.True(t, IsExhausted(res.Err))
	assert.Equal(t, 3, a.Calls())
	assert.Equal(t, 3, b.Calls())
	assert.Equal(t, 6, res.Calls)
	assert.Equal(t, []time.Duration{
		500 * time.Millisecond, time.Second,
		500 * time.Millisecond, time.Second,
	}, sleeper.delays)

	require.Equal(t, 1, cache.Upserts())
	records, _ := cache.Load(context.Background())
	assert.Equal(t, store.FailedModel, records[0].UsedModel)
	assert.Equal(t, store.StatusFailed, records[0].Status)

	assert.Equal(t, uint64(1), m.Summary().ChunksFailed)
	assert.Equal(t, []string{"a", "b"}, e.Breakers().Open())
}

func TestEmbedOpenBreakerIsSkipped(t *testing.T) {
	a := &fakeProvider{name: "a", err: errors.New("down")}
	sleeper := &sleepRecorder{}
	e := newTestEmbedder(newFakeSource(a), nil, sleeper, "a")

	first := e.EmbedWithFallback(context.Background(), testRequest())
	require.False(t, first.OK())
	require.Equal(t, 3, a.Calls())

	second := e.EmbedWithFallback(context.Background(), testRequest())
	assert.False(t, second.OK())
	assert.Equal(t, 0, second.Calls)
	assert.Equal(t, 3, a.Calls())
}

func TestEmbedPerCallOptions(t *testing.T) {
	a := &fakeProvider{name: "a"}
	b := &fakeProvider{name: "b", err: errors.New("down")}
	sleeper := &sleepRecorder{}
	e := newTestEmbedder(newFakeSource(a, b), nil, sleeper, "a")

	res := e.EmbedWithFallback(context.Background(), testRequest(),
		WithPriority("b"), WithMaxRetries(2), WithBackoffFactor(0.25))

	assert.False(t, res.OK())
	assert.Equal(t, 0, a.Calls())
	assert.Equal(t, 2, b.Calls())
	assert.Equal(t, []time.Duration{250 * time.Millisecond}, sleeper.delays)
}

func TestEmbedConstructionFailureCountsAsAttempt(t *testing.T) {
	b := &fakeProvider{name: "b"}
	src := newFakeSource(b)
	src.buildErr["a"] = errors.New("model download failed")
	sleeper := &sleepRecorder{}
	e := newTestEmbedder(src, nil, sleeper, "a", "b")

	res := e.EmbedWithFallback(context.Background(), testRequest())

	require.True(t, res.OK())
	assert.Equal(t, "b", res.Model)
	assert.Equal(t, 4, res.Calls)
	assert.Len(t, sleeper.delays, 2)
}

func TestEmbedCanceledContext(t *testing.T) {
	a := &fakeProvider{name: "a"}
	cache := newMemCache()
	e := newTestEmbedder(newFakeSource(a), cache, &sleepRecorder{}, "a")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := e.EmbedWithFallback(ctx, testRequest())

	assert.False(t, res.OK())
	assert.True(t, errors.Is(res.Err, errs.ErrCanceled))
	assert.Equal(t, 0, a.Calls())
	assert.Equal(t, resilience.StateClosed, e.Breakers().Get("a").State())
	assert.Equal(t, 1, cache.Upserts())
}

func TestEmbedCanceledDuringBackoff(t *testing.T) {
	a := &fakeProvider{name: "a", err: errors.New("flaky")}
	sleeper := &sleepRecorder{err: context.Canceled}
	e := newTestEmbedder(newFakeSource(a), newMemCache(), sleeper, "a")

	res := e.EmbedWithFallback(context.Background(), testRequest())

	assert.False(t, res.OK())
	assert.True(t, errors.Is(res.Err, errs.ErrCanceled))
	assert.Equal(t, 1, a.Calls())
	assert.Equal(t, resilience.StateClosed, e.Breakers().Get("a").State())
}

func TestEmbedUnknownProfile(t *testing.T) {
	e := newTestEmbedder(newFakeSource(), nil, &sleepRecorder{}, "missing")
	res := e.EmbedWithFallback(context.Background(), testRequest(), WithMaxRetries(1))
	assert.False(t, res.OK())
	assert.True(t, IsExhausted(res.Err))
}
