package llm

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "github.com/kart-io/paperline/pkg/utils/errors"
	"github.com/kart-io/paperline/pkg/utils/httpclient"
)

type panicProvider struct{ mockProvider }

func (p *panicProvider) EmbedSingle(context.Context, string) ([]float32, error) {
	panic("model weights missing")
}

func TestAttemptSuccess(t *testing.T) {
	p := &mockProvider{name: "ok", vec: []float32{1, 2}}
	out := Attempt(context.Background(), p, "hello")

	require.True(t, out.OK())
	assert.Equal(t, []float32{1, 2}, out.Vector)
	assert.Equal(t, "ok", out.Provider)
}

func TestAttemptNormalizesFailures(t *testing.T) {
	tests := []struct {
		name      string
		provider  EmbeddingProvider
		ctx       func() context.Context
		kind      FailureKind
		retryable bool
	}{
		{
			name:      "plain error",
			provider:  &mockProvider{name: "p", err: errors.New("boom")},
			kind:      KindUnknown,
			retryable: true,
		},
		{
			name:      "rate limited",
			provider:  &mockProvider{name: "p", err: &httpclient.StatusError{StatusCode: http.StatusTooManyRequests}},
			kind:      KindStatus,
			retryable: true,
		},
		{
			name:      "bad credentials",
			provider:  &mockProvider{name: "p", err: &httpclient.StatusError{StatusCode: http.StatusUnauthorized}},
			kind:      KindStatus,
			retryable: false,
		},
		{
			name:      "empty vector",
			provider:  &mockProvider{name: "p", vec: []float32{}},
			kind:      KindMalformed,
			retryable: true,
		},
		{
			name:     "panic",
			provider: &panicProvider{mockProvider{name: "p"}},
			kind:     KindPanic,
		},
		{
			name:     "canceled context",
			provider: &mockProvider{name: "p"},
			ctx: func() context.Context {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				return ctx
			},
			kind: KindCanceled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			if tt.ctx != nil {
				ctx = tt.ctx()
			}
			out := Attempt(ctx, tt.provider, "text")

			require.False(t, out.OK())
			assert.Nil(t, out.Vector)
			assert.Equal(t, tt.kind, out.Err.Kind)
			assert.Equal(t, tt.retryable, out.Err.Retryable)
			assert.ErrorIs(t, out.Err, errs.ErrEmbeddingProviderFailure)
		})
	}
}

func TestNewEmbeddingErrorKeepsExisting(t *testing.T) {
	orig := ConstructionError("specter_large", errors.New("no such model"))
	wrapped := NewEmbeddingError("other", orig)
	assert.Same(t, orig, wrapped)
	assert.Equal(t, KindConstruct, wrapped.Kind)
}
