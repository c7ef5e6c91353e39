package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_WithCause(t *testing.T) {
	cause := fmt.Errorf("connection reset")
	err := ErrDelivery.WithCause(cause)

	assert.Equal(t, "DELIVERY_ERROR: webhook delivery failed (caused by: connection reset)", err.Error())
	assert.True(t, stderrors.Is(err, cause))
	assert.True(t, stderrors.Is(err, ErrDelivery))
	assert.False(t, stderrors.Is(err, ErrAdaptation))
	assert.Nil(t, ErrDelivery.Cause, "base error must not be mutated")
}

func TestError_WithDetailDoesNotShareMap(t *testing.T) {
	a := ErrAdaptation.WithDetail("attachment", "a.png")
	b := ErrAdaptation.WithDetail("attachment", "b.png")

	assert.Equal(t, "a.png", a.Details["attachment"])
	assert.Equal(t, "b.png", b.Details["attachment"])
	assert.Empty(t, ErrAdaptation.Details)
}

func TestError_WithMessage(t *testing.T) {
	err := ErrConfig.WithMessage("relay.webhook_url is required")
	assert.Equal(t, "CONFIG_ERROR: relay.webhook_url is required", err.Error())
}

func TestPredicates(t *testing.T) {
	wrapped := fmt.Errorf("dispatch: %w", ErrDelivery.WithCause(fmt.Errorf("boom")))

	assert.True(t, IsDelivery(wrapped))
	assert.True(t, IsDelivery(ErrCircuitOpen))
	assert.True(t, IsDelivery(ErrTimeout))
	assert.True(t, IsTimeout(ErrTimeout))
	assert.False(t, IsAdaptation(wrapped))
	assert.True(t, IsAdaptation(ErrAdaptation.WithCause(fmt.Errorf("short read"))))
	assert.True(t, IsConfig(ErrConfig))
	assert.False(t, IsConfig(fmt.Errorf("plain")))
}

func TestRetryableAndFatal(t *testing.T) {
	assert.True(t, ErrDelivery.IsRetryable())
	assert.False(t, ErrAdaptation.IsRetryable())
	assert.True(t, ErrConfig.IsFatal())
	assert.False(t, ErrDelivery.AsFatal().IsRetryable())
	assert.True(t, ErrAdaptation.AsRetryable().IsRetryable())
}

func TestToHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadGateway, ToHTTPStatus(ErrDelivery))
	assert.Equal(t, http.StatusInternalServerError, ToHTTPStatus(fmt.Errorf("plain")))
}

func TestToErrorResponse(t *testing.T) {
	resp := ToErrorResponse(fmt.Errorf("plain"))
	assert.Equal(t, "INTERNAL_ERROR", resp["error_code"])

	resp = ToErrorResponse(ErrNotFound.WithDetail("id", "x"))
	assert.Equal(t, "NOT_FOUND", resp["error_code"])
	assert.Equal(t, map[string]interface{}{"id": "x"}, resp["details"])
}

func TestRecoverPanic(t *testing.T) {
	assert.Nil(t, RecoverPanic(nil))

	err := RecoverPanic("nil map write")
	require.Error(t, err)

	var appErr *Error
	require.True(t, stderrors.As(err, &appErr))
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.Equal(t, true, appErr.Details["panic"])
	assert.NotEmpty(t, appErr.Details["stack_trace"])
	assert.True(t, appErr.IsFatal())

	var called error
	RecoverPanicWithCallback(fmt.Errorf("boom"), func(e error) { called = e })
	assert.Error(t, called)
}
