package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrConfig         = NewError("CONFIG_ERROR", "invalid or missing configuration", http.StatusInternalServerError)
	ErrAdaptation     = NewError("ADAPTATION_ERROR", "message could not be adapted for relay", http.StatusUnprocessableEntity)
	ErrDelivery       = NewError("DELIVERY_ERROR", "webhook delivery failed", http.StatusBadGateway)
	ErrTimeout        = NewError("TIMEOUT", "operation timed out", http.StatusGatewayTimeout)
	ErrCircuitOpen    = NewError("CIRCUIT_OPEN", "delivery circuit breaker is open", http.StatusServiceUnavailable)
	ErrNotFound       = NewError("NOT_FOUND", "resource not found", http.StatusNotFound)
	ErrInternal       = NewError("INTERNAL_ERROR", "internal error", http.StatusInternalServerError)
	ErrRuleEvaluation = NewError("RULE_EVALUATION_ERROR", "relay rule evaluation failed", http.StatusInternalServerError)
)

type RetryableError interface {
	error
	IsRetryable() bool
}

type FatalError interface {
	error
	IsFatal() bool
}

type Error struct {
	Code      string
	Message   string
	Status    int
	Details   map[string]interface{}
	Cause     error
	retryable *bool
}

func NewError(code, message string, status int) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Status:  status,
		Details: make(map[string]interface{}),
	}
}

func (e *Error) Error() string {
	msg := e.Message

	if detailMsg, ok := e.Details["message"].(string); ok && detailMsg != "" {
		msg = detailMsg
	}

	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches on Code so that errors.Is(err, ErrDelivery) works for any
// derived copy made by WithCause/WithDetail.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

func (e *Error) IsRetryable() bool {
	if e.retryable != nil {
		return *e.retryable
	}
	if e.Cause != nil {
		var retryableErr RetryableError
		if errors.As(e.Cause, &retryableErr) {
			return retryableErr.IsRetryable()
		}
	}
	return e.Code != ErrConfig.Code && e.Code != ErrAdaptation.Code
}

func (e *Error) IsFatal() bool {
	if e.retryable != nil {
		return !*e.retryable
	}
	return e.Code == ErrConfig.Code
}

func (e *Error) WithCause(cause error) *Error {
	err := *e
	err.Cause = cause
	return &err
}

func (e *Error) WithDetail(key string, value interface{}) *Error {
	err := *e
	details := make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	err.Details = details
	return &err
}

func (e *Error) WithMessage(message string) *Error {
	return e.WithDetail("message", message)
}

func (e *Error) AsRetryable() *Error {
	err := *e
	retryable := true
	err.retryable = &retryable
	return &err
}

func (e *Error) AsFatal() *Error {
	err := *e
	retryable := false
	err.retryable = &retryable
	return &err
}

func Wrap(err error, appErr *Error) *Error {
	if err == nil {
		return nil
	}
	return appErr.WithCause(err)
}

func hasCode(err error, code string) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

func IsConfig(err error) bool {
	return hasCode(err, ErrConfig.Code)
}

func IsAdaptation(err error) bool {
	return hasCode(err, ErrAdaptation.Code)
}

func IsDelivery(err error) bool {
	return hasCode(err, ErrDelivery.Code) || hasCode(err, ErrCircuitOpen.Code) || hasCode(err, ErrTimeout.Code)
}

func IsTimeout(err error) bool {
	return hasCode(err, ErrTimeout.Code)
}

func IsNotFound(err error) bool {
	return hasCode(err, ErrNotFound.Code)
}

func ToHTTPStatus(err error) int {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	return http.StatusInternalServerError
}

func ToErrorResponse(err error) map[string]interface{} {
	var appErr *Error
	if !errors.As(err, &appErr) {
		appErr = ErrInternal.WithCause(err)
	}

	response := map[string]interface{}{
		"error":      appErr.Message,
		"error_code": appErr.Code,
	}

	if len(appErr.Details) > 0 {
		response["details"] = appErr.Details
	}

	return response
}
