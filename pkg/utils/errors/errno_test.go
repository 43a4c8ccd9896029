package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakeAndParseCode(t *testing.T) {
	code := MakeCode(ServiceIngest, CategoryInternal, 1)
	assert.Equal(t, 2007001, code)

	service, category, seq := ParseCode(code)
	assert.Equal(t, ServiceIngest, service)
	assert.Equal(t, CategoryInternal, category)
	assert.Equal(t, 1, seq)
	assert.Equal(t, ServiceIngest, GetService(code))
	assert.Equal(t, CategoryInternal, GetCategory(code))
}

func TestErrnoWithCause(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := ErrCacheWrite.WithCause(cause)

	assert.ErrorIs(t, err, ErrCacheWrite)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "disk full")
	assert.Nil(t, ErrCacheWrite.Unwrap(), "WithCause must not mutate the registered errno")
}

func TestErrnoMessage(t *testing.T) {
	assert.Equal(t, "文本提取失败", ErrExtractionFailure.Message("zh"))
	assert.Equal(t, "Text extraction failed", ErrExtractionFailure.Message("en"))

	custom := ErrExtractionFailure.WithMessagef("no text in %s", "a.pdf")
	assert.Equal(t, "no text in a.pdf", custom.MessageEN)
	assert.Equal(t, ErrExtractionFailure.Code, custom.Code)
}

func TestHelpersUnwrapChains(t *testing.T) {
	wrapped := fmt.Errorf("step failed: %w", ErrPersistenceFailure.WithCause(stderrors.New("boom")))

	assert.True(t, IsCode(wrapped, ErrPersistenceFailure.Code))
	assert.Equal(t, ErrPersistenceFailure.Code, GetCode(wrapped))
	assert.Equal(t, -1, GetCode(stderrors.New("plain")))

	e := FromError(stderrors.New("plain"))
	require.NotNil(t, e)
	assert.Equal(t, ErrInternal.Code, e.Code)
	assert.Nil(t, FromError(nil))
}

func TestRegisterDuplicatePanics(t *testing.T) {
	assert.Panics(t, func() {
		NewInternalErr(ServiceIngest, 1, "dup", "重复")
	})
}

func TestRegisterService(t *testing.T) {
	RegisterService(95, "test-service")
	name, ok := GetServiceName(95)
	require.True(t, ok)
	assert.Equal(t, "test-service", name)

	assert.NotPanics(t, func() { RegisterService(95, "test-service") })
	assert.Panics(t, func() { RegisterService(95, "other") })
}

func TestFormatVerbose(t *testing.T) {
	err := ErrInvalidConfig.WithCause(stderrors.New("chunk_size"))
	out := fmt.Sprintf("%+v", err)
	assert.Contains(t, out, "配置无效")
	assert.Contains(t, out, "caused by: chunk_size")
}
