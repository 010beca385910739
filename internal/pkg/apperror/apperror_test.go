package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithErrKeepsSentinelIdentity(t *testing.T) {
	sentinel := New(http.StatusInternalServerError, "failed to confirm booking")
	cause := errors.New("connection reset")

	wrapped := fmt.Errorf("confirm: %w", sentinel.WithErr(cause))

	assert.ErrorIs(t, wrapped, sentinel)
	assert.ErrorIs(t, wrapped, cause)
	assert.Contains(t, wrapped.Error(), "connection reset")

	var appErr *AppError
	assert.True(t, errors.As(wrapped, &appErr))
	assert.Equal(t, http.StatusInternalServerError, appErr.Code)
}

func TestIsDistinguishesSentinels(t *testing.T) {
	a := New(http.StatusInternalServerError, "failed to confirm booking")
	b := New(http.StatusInternalServerError, "failed to confirm booking items")

	assert.False(t, errors.Is(a.WithErr(errors.New("x")), b))
	assert.True(t, errors.Is(a, a))
}
