// Package retry wraps close calls with a bounded retry policy. A close that
// fails or times out is never blindly retried: actual position existence is
// re-queried first, so a close that landed but lost its reply resolves as
// success instead of a double-close.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/halpertj/unwinder/internal/broker"
)

// Config controls retry behavior for close calls.
type Config struct {
	MaxAttempts  int
	Backoff      time.Duration
	CloseTimeout time.Duration
}

// DefaultConfig caps attempts at 3 with a short fixed backoff.
var DefaultConfig = Config{
	MaxAttempts:  3,
	Backoff:      500 * time.Millisecond,
	CloseTimeout: 10 * time.Second,
}

// Client executes close calls against a broker with the retry policy.
type Client struct {
	broker broker.Broker
	symbol string
	logger logrus.FieldLogger
	config Config
}

// NewClient creates a retrying close client.
func NewClient(b broker.Broker, symbol string, logger logrus.FieldLogger, config ...Config) *Client {
	cfg := DefaultConfig
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultConfig.MaxAttempts
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Client{
		broker: b,
		symbol: symbol,
		logger: logger.WithField("component", "close_retry"),
		config: cfg,
	}
}

// ClosePosition closes one ticket idempotently. A ticket the terminal no
// longer reports is a no-op success, whether discovered via the close reply
// or via the existence re-query after a failed-unknown attempt.
func (c *Client) ClosePosition(ctx context.Context, id int64, reason string) (bool, error) {
	var lastErr error

	for attempt := 1; attempt <= c.config.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return false, fmt.Errorf("close canceled: %w", ctx.Err())
		}

		callCtx, cancel := context.WithTimeout(ctx, c.config.CloseTimeout)
		ok, err := c.broker.ClosePositionCtx(callCtx, id, reason)
		cancel()

		if err == nil && ok {
			return true, nil
		}
		if errors.Is(err, broker.ErrPositionNotFound) {
			c.logger.WithField("ticket", id).Debug("close target already gone, treating as success")
			return true, nil
		}

		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("broker declined close of ticket %d", id)
		}
		c.logger.WithError(lastErr).WithFields(logrus.Fields{
			"ticket":  id,
			"attempt": attempt,
		}).Warn("close attempt failed")

		// Failed-unknown: resolve against reality before any retry.
		gone, qerr := c.positionGone(ctx, id)
		if qerr == nil && gone {
			return true, nil
		}

		if attempt < c.config.MaxAttempts {
			select {
			case <-time.After(c.config.Backoff):
			case <-ctx.Done():
				return false, fmt.Errorf("close canceled during backoff: %w", ctx.Err())
			}
		}
	}

	return false, fmt.Errorf("close of ticket %d failed after %d attempts: %w", id, c.config.MaxAttempts, lastErr)
}

func (c *Client) positionGone(ctx context.Context, id int64) (bool, error) {
	open, err := c.broker.GetOpenPositionsCtx(ctx, c.symbol)
	if err != nil {
		return false, err
	}
	for _, p := range open {
		if p.ID == id {
			return false, nil
		}
	}
	return true, nil
}
