package errors

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelayErrorFormatting(t *testing.T) {
	err := New(ErrCodeLiquidity, "pool has zero reserves")
	assert.Equal(t, "[LIQUIDITY] pool has zero reserves", err.Error())

	err = err.WithTxRef("100:abc")
	assert.Equal(t, "[LIQUIDITY] pool has zero reserves (tx 100:abc)", err.Error())
}

func TestHasCodeUnwrapsChains(t *testing.T) {
	inner := New(ErrCodeTimeout, "seqno wait expired")
	wrapped := Wrap(Wrap(inner, "send"), "process payment")

	assert.True(t, HasCode(wrapped, ErrCodeTimeout))
	assert.False(t, HasCode(wrapped, ErrCodeRPC))
	assert.Equal(t, ErrCodeTimeout, CodeOf(wrapped))
	assert.Equal(t, ErrCodeInternal, CodeOf(stderrors.New("plain")))
}

func TestWrapRelayKeepsExistingCode(t *testing.T) {
	inner := New(ErrCodeInsufficientBalance, "balance short")
	wrapped := WrapRelay(Wrap(inner, "context"), ErrCodeRPC, "outer")

	assert.Equal(t, ErrCodeInsufficientBalance, wrapped.Code)

	plain := WrapRelay(stderrors.New("socket closed"), ErrCodeRPC, "read balance")
	assert.Equal(t, ErrCodeRPC, plain.Code)
	assert.ErrorContains(t, plain, "read balance")
}

func TestIsRetryableByCode(t *testing.T) {
	assert.True(t, IsRetryable(New(ErrCodeRPC, "x")))
	assert.True(t, IsRetryable(New(ErrCodeTimeout, "x")))
	assert.False(t, IsRetryable(New(ErrCodeLiquidity, "x")))
	assert.False(t, IsRetryable(New(ErrCodeInsufficientBalance, "x")))
	assert.False(t, IsRetryable(nil))
}

func TestIsRetryableByMessagePattern(t *testing.T) {
	assert.True(t, IsRetryable(stderrors.New("dial tcp: connection refused")))
	assert.True(t, IsRetryable(stderrors.New("request failed with status 503")))
	assert.False(t, IsRetryable(stderrors.New("invalid address")))
}

func TestRetryStopsOnNonRetryable(t *testing.T) {
	calls := 0
	err := RetryWithConfig(context.Background(), func() error {
		calls++
		return New(ErrCodeLiquidity, "deterministic failure")
	}, &RetryConfig{MaxAttempts: 5, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, HasCode(err, ErrCodeLiquidity))
}

func TestRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	err := RetryWithConfig(context.Background(), func() error {
		calls++
		return New(ErrCodeRPC, "flaky")
	}, &RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.ErrorContains(t, err, "maximum retry attempts exceeded")
}

func TestRetrySucceedsAfterTransientFailure(t *testing.T) {
	calls := 0
	err := RetryWithConfig(context.Background(), func() error {
		calls++
		if calls < 3 {
			return New(ErrCodeRPC, "flaky")
		}
		return nil
	}, &RetryConfig{MaxAttempts: 5, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Retry(ctx, func() error { return New(ErrCodeRPC, "flaky") })
	assert.ErrorIs(t, err, context.Canceled)
}
