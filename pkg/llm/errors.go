package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	errs "github.com/kart-io/paperline/pkg/utils/errors"
	"github.com/kart-io/paperline/pkg/utils/httpclient"
)

// FailureKind 失败原因分类。
type FailureKind string

const (
	KindTransport FailureKind = "transport"
	KindStatus    FailureKind = "status"
	KindConstruct FailureKind = "construct"
	KindMalformed FailureKind = "malformed"
	KindPanic     FailureKind = "panic"
	KindCanceled  FailureKind = "canceled"
	KindUnknown   FailureKind = "unknown"
)

// EmbeddingError 统一的供应商失败信号，所有供应商的错误都归一化为该类型。
type EmbeddingError struct {
	Provider  string
	Kind      FailureKind
	Retryable bool
	Err       error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding provider %s failed (%s): %v", e.Provider, e.Kind, e.Err)
}

// Unwrap 同时暴露 errno 分类和原始错误，便于 errors.Is 判断。
func (e *EmbeddingError) Unwrap() []error {
	return []error{errs.ErrEmbeddingProviderFailure, e.Err}
}

// NewEmbeddingError 将任意错误归一化为 EmbeddingError。
func NewEmbeddingError(provider string, err error) *EmbeddingError {
	var embErr *EmbeddingError
	if errors.As(err, &embErr) {
		return embErr
	}

	e := &EmbeddingError{Provider: provider, Kind: KindUnknown, Retryable: true, Err: err}

	var statusErr *httpclient.StatusError
	var netErr net.Error
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		e.Kind, e.Retryable = KindCanceled, false
	case errors.As(err, &statusErr):
		e.Kind, e.Retryable = KindStatus, statusErr.Retryable()
	case errors.As(err, &netErr):
		e.Kind = KindTransport
	case errors.Is(err, errs.ErrEmbeddingEmpty):
		e.Kind = KindMalformed
	}
	return e
}

// Outcome 单次 Embedding 调用的显式结果：成功时携带向量，失败时携带原因。
type Outcome struct {
	Provider string
	Vector   []float32
	Err      *EmbeddingError
	Duration time.Duration
}

// OK 判断调用是否成功。
func (o Outcome) OK() bool {
	return o.Err == nil
}

// Attempt 调用一次供应商，并把错误、空向量和 panic 统一转换为 Outcome。
func Attempt(ctx context.Context, p EmbeddingProvider, text string) (out Outcome) {
	out.Provider = p.Name()
	start := time.Now()

	defer func() {
		out.Duration = time.Since(start)
		if r := recover(); r != nil {
			out.Vector = nil
			out.Err = &EmbeddingError{
				Provider: out.Provider,
				Kind:     KindPanic,
				Err:      fmt.Errorf("provider panicked: %v", r),
			}
		}
	}()

	if err := ctx.Err(); err != nil {
		out.Err = NewEmbeddingError(out.Provider, err)
		return out
	}

	vec, err := p.EmbedSingle(ctx, text)
	if err != nil {
		out.Err = NewEmbeddingError(out.Provider, err)
		return out
	}
	if len(vec) == 0 {
		out.Err = &EmbeddingError{
			Provider:  out.Provider,
			Kind:      KindMalformed,
			Retryable: true,
			Err:       errs.ErrEmbeddingEmpty,
		}
		return out
	}

	out.Vector = vec
	return out
}

// ConstructionError 将供应商构造失败包装为 EmbeddingError。
func ConstructionError(profile string, err error) *EmbeddingError {
	return &EmbeddingError{Provider: profile, Kind: KindConstruct, Retryable: true, Err: err}
}
