package broker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyBroker fails every call until failUntil calls have been made.
type flakyBroker struct {
	calls     int
	failUntil int
	closeErr  error
}

var _ Broker = (*flakyBroker)(nil)

func (f *flakyBroker) fail() bool {
	f.calls++
	return f.calls <= f.failUntil
}

func (f *flakyBroker) GetOpenPositions(symbol string) ([]RawPosition, error) {
	return f.GetOpenPositionsCtx(context.Background(), symbol)
}

func (f *flakyBroker) GetOpenPositionsCtx(_ context.Context, _ string) ([]RawPosition, error) {
	if f.fail() {
		return nil, errors.New("bridge down")
	}
	return []RawPosition{{ID: 1, Side: "buy", Volume: 0.1}}, nil
}

func (f *flakyBroker) GetAccountSnapshot() (AccountSnapshot, error) {
	if f.fail() {
		return AccountSnapshot{}, errors.New("bridge down")
	}
	return AccountSnapshot{Balance: 10000, Equity: 10000}, nil
}

func (f *flakyBroker) GetCurrentSpread(_ string) (float64, error) {
	if f.fail() {
		return 0, errors.New("bridge down")
	}
	return 0.3, nil
}

func (f *flakyBroker) ClosePosition(id int64, reason string) (bool, error) {
	return f.ClosePositionCtx(context.Background(), id, reason)
}

func (f *flakyBroker) ClosePositionCtx(_ context.Context, _ int64, _ string) (bool, error) {
	f.calls++
	if f.closeErr != nil {
		return false, f.closeErr
	}
	return true, nil
}

func TestCircuitBreakerPassesThroughSuccess(t *testing.T) {
	cb := NewCircuitBreakerBroker(&flakyBroker{})

	positions, err := cb.GetOpenPositions("XAUUSD")
	require.NoError(t, err)
	assert.Len(t, positions, 1)

	spread, err := cb.GetCurrentSpread("XAUUSD")
	require.NoError(t, err)
	assert.Equal(t, 0.3, spread)
}

func TestCircuitBreakerTripsAfterRepeatedFailures(t *testing.T) {
	flaky := &flakyBroker{failUntil: 1000}
	cb := NewCircuitBreakerBrokerWithSettings(flaky, CircuitBreakerSettings{
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      time.Minute,
		MinRequests:  3,
		FailureRatio: 0.6,
	})

	for i := 0; i < 3; i++ {
		_, err := cb.GetOpenPositions("XAUUSD")
		require.Error(t, err)
	}

	// Breaker is now open: underlying broker no longer sees calls.
	before := flaky.calls
	_, err := cb.GetOpenPositions("XAUUSD")
	require.Error(t, err)
	assert.Equal(t, before, flaky.calls, "open breaker should short-circuit")
}

func TestCircuitBreakerIgnoresNotFoundErrors(t *testing.T) {
	flaky := &flakyBroker{closeErr: ErrPositionNotFound}
	cb := NewCircuitBreakerBrokerWithSettings(flaky, CircuitBreakerSettings{
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      time.Minute,
		MinRequests:  3,
		FailureRatio: 0.6,
	})

	// Many not-found closes must never trip the breaker.
	for i := 0; i < 10; i++ {
		_, err := cb.ClosePosition(int64(i), "test")
		assert.ErrorIs(t, err, ErrPositionNotFound)
	}

	before := flaky.calls
	_, _ = cb.ClosePosition(99, "test")
	assert.Equal(t, before+1, flaky.calls, "breaker should still be closed")
}
