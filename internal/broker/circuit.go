package broker

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/sony/gobreaker"
)

// CircuitBreakerBroker wraps a Broker with circuit breaker functionality.
// A flapping bridge trips the breaker so the engine degrades to empty
// snapshots instead of hammering a dead terminal.
type CircuitBreakerBroker struct {
	broker  Broker
	breaker *gobreaker.CircuitBreaker
}

// execCircuitBreaker is a generic helper for circuit breaker wrapper methods.
func execCircuitBreaker[T any](
	breaker *gobreaker.CircuitBreaker,
	broker Broker,
	fn func(Broker) (T, error),
) (T, error) {
	var zero T
	res, err := breaker.Execute(func() (interface{}, error) { return fn(broker) })
	if err != nil {
		return zero, err
	}
	if res == nil {
		return zero, nil
	}
	v, ok := res.(T)
	if !ok {
		return zero, errors.New("circuit breaker: type assertion failed")
	}
	return v, nil
}

// CircuitBreakerSettings configures circuit breaker behavior.
type CircuitBreakerSettings struct {
	MaxRequests  uint32        // Max requests when half-open
	Interval     time.Duration // Reset counts interval
	Timeout      time.Duration // Open circuit duration
	MinRequests  uint32        // Min requests before tripping
	FailureRatio float64       // Failure ratio threshold
}

// NewCircuitBreakerBroker creates a new CircuitBreakerBroker with sensible defaults.
func NewCircuitBreakerBroker(broker Broker) *CircuitBreakerBroker {
	return NewCircuitBreakerBrokerWithSettings(broker, CircuitBreakerSettings{
		MaxRequests:  3,                // Allow 3 requests when half-open
		Interval:     60 * time.Second, // Reset counts every minute
		Timeout:      30 * time.Second, // Open circuit for 30 seconds
		MinRequests:  5,                // Minimum requests before tripping
		FailureRatio: 0.6,              // Trip if 60% failure rate
	})
}

// NewCircuitBreakerBrokerWithSettings creates a CircuitBreakerBroker with custom settings.
func NewCircuitBreakerBrokerWithSettings(broker Broker, settings CircuitBreakerSettings) *CircuitBreakerBroker {
	gbSettings := gobreaker.Settings{
		Name:        "BrokerCircuitBreaker",
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests == 0 || counts.Requests < settings.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= settings.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Printf("Circuit breaker %s state changed from %s to %s", name, from, to)
		},
		IsSuccessful: func(err error) bool {
			// An already-closed ticket is not a terminal failure.
			return err == nil || errors.Is(err, ErrPositionNotFound)
		},
	}

	return &CircuitBreakerBroker{
		broker:  broker,
		breaker: gobreaker.NewCircuitBreaker(gbSettings),
	}
}

// Ensure CircuitBreakerBroker implements Broker at compile time.
var _ Broker = (*CircuitBreakerBroker)(nil)

// GetOpenPositions wraps the underlying broker call with circuit breaker.
func (c *CircuitBreakerBroker) GetOpenPositions(symbol string) ([]RawPosition, error) {
	return execCircuitBreaker(c.breaker, c.broker, func(b Broker) ([]RawPosition, error) {
		return b.GetOpenPositions(symbol)
	})
}

// GetOpenPositionsCtx wraps the underlying broker call with circuit breaker.
func (c *CircuitBreakerBroker) GetOpenPositionsCtx(ctx context.Context, symbol string) ([]RawPosition, error) {
	return execCircuitBreaker(c.breaker, c.broker, func(b Broker) ([]RawPosition, error) {
		return b.GetOpenPositionsCtx(ctx, symbol)
	})
}

// GetAccountSnapshot wraps the underlying broker call with circuit breaker.
func (c *CircuitBreakerBroker) GetAccountSnapshot() (AccountSnapshot, error) {
	return execCircuitBreaker(c.breaker, c.broker, func(b Broker) (AccountSnapshot, error) {
		return b.GetAccountSnapshot()
	})
}

// GetCurrentSpread wraps the underlying broker call with circuit breaker.
func (c *CircuitBreakerBroker) GetCurrentSpread(symbol string) (float64, error) {
	return execCircuitBreaker(c.breaker, c.broker, func(b Broker) (float64, error) {
		return b.GetCurrentSpread(symbol)
	})
}

// ClosePosition wraps the underlying broker call with circuit breaker.
func (c *CircuitBreakerBroker) ClosePosition(id int64, reason string) (bool, error) {
	return execCircuitBreaker(c.breaker, c.broker, func(b Broker) (bool, error) {
		return b.ClosePosition(id, reason)
	})
}

// ClosePositionCtx wraps the underlying broker call with circuit breaker.
func (c *CircuitBreakerBroker) ClosePositionCtx(ctx context.Context, id int64, reason string) (bool, error) {
	return execCircuitBreaker(c.breaker, c.broker, func(b Broker) (bool, error) {
		return b.ClosePositionCtx(ctx, id, reason)
	})
}
