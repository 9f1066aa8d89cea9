package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorIsMatchesDerivedCopies(t *testing.T) {
	err := ErrRateLimited.WithDetail("retryAfterSeconds", 60)

	assert.True(t, stderrors.Is(err, ErrRateLimited))
	assert.False(t, stderrors.Is(err, ErrValidation))
}

func TestWithCauseKeepsCause(t *testing.T) {
	cause := fmt.Errorf("connection reset")
	err := ErrUpstream.WithCause(cause)

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrUpstream)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Nil(t, ErrUpstream.Cause)
}

func TestToHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "validation", err: ErrValidation, want: http.StatusBadRequest},
		{name: "rate limited", err: ErrRateLimited, want: http.StatusTooManyRequests},
		{name: "method", err: ErrMethodNotAllowed, want: http.StatusMethodNotAllowed},
		{name: "wrapped upstream", err: fmt.Errorf("publish: %w", ErrUpstream), want: http.StatusInternalServerError},
		{name: "plain error", err: fmt.Errorf("boom"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToHTTPStatus(tt.err))
		})
	}
}

func TestToErrorResponseHidesServerDetail(t *testing.T) {
	err := ErrUpstream.WithCause(fmt.Errorf("401 Bad credentials")).WithDetail("token", "secret")

	resp := ToErrorResponse(err)

	assert.Equal(t, ErrInternal.Message, resp["error"])
	assert.Equal(t, ErrInternal.Code, resp["error_code"])
	assert.NotContains(t, resp, "token")
	for _, v := range resp {
		assert.NotContains(t, fmt.Sprint(v), "Bad credentials")
	}
}

func TestToErrorResponseIncludesClientDetails(t *testing.T) {
	err := ErrValidation.WithDetail("missingFields", []string{"title"})

	resp := ToErrorResponse(err)

	assert.Equal(t, "Validation failed", resp["error"])
	assert.Equal(t, []string{"title"}, resp["missingFields"])
}

func TestRecoverPanic(t *testing.T) {
	assert.Nil(t, RecoverPanic(nil))

	err := RecoverPanic("nil map write")
	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, ToHTTPStatus(err))
	assert.Contains(t, err.Error(), "nil map write")
}
