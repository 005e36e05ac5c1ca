// Package broker provides terminal connectivity for the close engine.
// It defines the Broker interface, an HTTP client for a local MetaTrader
// bridge, and a circuit-breaker decorator.
package broker

import (
	"context"
	"errors"
	"time"
)

// ErrPositionNotFound is returned by close calls when the terminal no longer
// reports the ticket as open. Callers treat it as an idempotent success.
var ErrPositionNotFound = errors.New("position not found at broker")

// RawPosition is a position record exactly as the terminal reports it.
// Enrichment and validation happen at the ingestion boundary, not here.
type RawPosition struct {
	ID           int64     `json:"id"`
	Side         string    `json:"side"` // "buy" | "sell"
	Volume       float64   `json:"volume"`
	PriceOpen    float64   `json:"price_open"`
	PriceCurrent float64   `json:"price_current"`
	Profit       float64   `json:"profit"`
	Swap         float64   `json:"swap"`
	Commission   float64   `json:"commission"`
	OpenTime     time.Time `json:"open_time"`
}

// AccountSnapshot is the terminal's account state at fetch time.
type AccountSnapshot struct {
	Balance     float64 `json:"balance"`
	Equity      float64 `json:"equity"`
	MarginUsed  float64 `json:"margin_used"`
	MarginFree  float64 `json:"margin_free"`
	MarginLevel float64 `json:"margin_level"` // percent; 0 when no margin is used
	Leverage    float64 `json:"leverage"`
}

// Broker defines the interface for interacting with the trading terminal.
type Broker interface {
	// GetOpenPositions returns every open position on the symbol.
	GetOpenPositions(symbol string) ([]RawPosition, error)
	// GetOpenPositionsCtx is GetOpenPositions with caller-bounded cancellation.
	GetOpenPositionsCtx(ctx context.Context, symbol string) ([]RawPosition, error)

	// GetAccountSnapshot returns balance, equity, and margin state.
	GetAccountSnapshot() (AccountSnapshot, error)

	// GetCurrentSpread returns the live spread on the symbol in account currency per lot basis.
	GetCurrentSpread(symbol string) (float64, error)

	// ClosePosition closes a single ticket. Closing a ticket the terminal no
	// longer reports returns ErrPositionNotFound.
	ClosePosition(id int64, reason string) (bool, error)
	// ClosePositionCtx is ClosePosition with caller-bounded cancellation.
	ClosePositionCtx(ctx context.Context, id int64, reason string) (bool, error)
}
