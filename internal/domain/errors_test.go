package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidationError_NeverTransient(t *testing.T) {
	ce := NewValidationError(fmt.Errorf("%w: got 1", ErrInsufficientSelection))

	assert.Equal(t, KindValidation, ce.Kind)
	assert.False(t, ce.Transient)
	assert.True(t, errors.Is(ce, ErrInsufficientSelection))
}

func TestNewTransportError_RetryEligible(t *testing.T) {
	cause := errors.New("connection refused")
	ce := NewTransportError(cause)

	assert.Equal(t, KindTransport, ce.Kind)
	assert.True(t, ce.Transient)
	assert.Equal(t, TransportRetryAfter, ce.RetryAfter)
	assert.True(t, errors.Is(ce, cause))
}

func TestNewRateLimitedError_LongerBackoffThanTransport(t *testing.T) {
	ce := NewRateLimitedError(429, 0)

	assert.Equal(t, KindRateLimited, ce.Kind)
	assert.True(t, ce.Transient)
	assert.Greater(t, ce.RetryAfter, TransportRetryAfter)
}

func TestNewRateLimitedError_HonorsServerWindow(t *testing.T) {
	ce := NewRateLimitedError(429, 90*time.Second)
	assert.Equal(t, 90*time.Second, ce.RetryAfter)
}

func TestNewServerError_NotTransient(t *testing.T) {
	ce := NewServerError(503, "unavailable")

	assert.Equal(t, KindServer, ce.Kind)
	assert.Equal(t, 503, ce.StatusCode)
	assert.False(t, ce.Transient)
}

func TestAsClassified_PassesThroughAndWraps(t *testing.T) {
	original := NewAPIError(400, "bad_range", "start after end")
	require.Same(t, original, AsClassified(original))

	wrapped := AsClassified(errors.New("dial tcp: timeout"))
	assert.Equal(t, KindTransport, wrapped.Kind)
	assert.True(t, wrapped.Transient)
}
