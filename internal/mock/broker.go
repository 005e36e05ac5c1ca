// Package mock provides a simulated terminal for paper mode and tests: an
// in-memory book with random price drift and optional failure injection.
package mock

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/halpertj/unwinder/internal/broker"
)

// secureFloat64 generates a cryptographically secure random float64 between 0 and 1.
func secureFloat64() float64 {
	n, err := rand.Int(rand.Reader, big.NewInt(1<<53))
	if err != nil {
		// Fallback to a reasonable default if crypto/rand fails
		return 0.5
	}
	return float64(n.Int64()) / (1 << 53)
}

// SimBroker is an in-memory broker.Broker. Prices drift a little per fetch
// so classifications and detectors see changing state across cycles.
type SimBroker struct {
	mu        sync.Mutex
	symbol    string
	spread    float64
	leverage  float64
	balance   float64
	positions map[int64]broker.RawPosition

	// FailCloseIDs makes ClosePosition fail for these tickets.
	FailCloseIDs map[int64]bool
	// FailFetch makes position fetches fail, simulating a dead terminal.
	FailFetch bool
	// Static disables price drift for deterministic tests.
	Static bool
}

// NewSimBroker seeds a simulated book on the symbol.
func NewSimBroker(symbol string, seed []broker.RawPosition) *SimBroker {
	s := &SimBroker{
		symbol:       symbol,
		spread:       0.30,
		leverage:     100,
		balance:      10000,
		positions:    make(map[int64]broker.RawPosition, len(seed)),
		FailCloseIDs: make(map[int64]bool),
	}
	for _, p := range seed {
		s.positions[p.ID] = p
	}
	return s
}

// Ensure SimBroker implements broker.Broker at compile time.
var _ broker.Broker = (*SimBroker)(nil)

// GetOpenPositions returns the live book, drifting prices slightly.
func (s *SimBroker) GetOpenPositions(symbol string) ([]broker.RawPosition, error) {
	return s.GetOpenPositionsCtx(context.Background(), symbol)
}

// GetOpenPositionsCtx returns the live book, honoring ctx.
func (s *SimBroker) GetOpenPositionsCtx(ctx context.Context, symbol string) ([]broker.RawPosition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailFetch {
		return nil, fmt.Errorf("sim terminal unreachable")
	}

	out := make([]broker.RawPosition, 0, len(s.positions))
	for id, p := range s.positions {
		if !s.Static {
			move := (secureFloat64() - 0.5) * 2
			p.PriceCurrent += move
			if p.Side == "buy" {
				p.Profit += move * p.Volume * 100
			} else {
				p.Profit -= move * p.Volume * 100
			}
			s.positions[id] = p
		}
		out = append(out, p)
	}
	return out, nil
}

// GetAccountSnapshot derives account state from the book.
func (s *SimBroker) GetAccountSnapshot() (broker.AccountSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailFetch {
		return broker.AccountSnapshot{}, fmt.Errorf("sim terminal unreachable")
	}

	var pnl, margin float64
	for _, p := range s.positions {
		pnl += p.Profit + p.Swap + p.Commission
		margin += p.PriceCurrent * p.Volume / s.leverage
	}
	acct := broker.AccountSnapshot{
		Balance:    s.balance,
		Equity:     s.balance + pnl,
		MarginUsed: margin,
		Leverage:   s.leverage,
	}
	acct.MarginFree = acct.Equity - acct.MarginUsed
	if acct.MarginUsed > 0 {
		acct.MarginLevel = acct.Equity / acct.MarginUsed * 100
	}
	return acct, nil
}

// GetCurrentSpread returns the configured spread.
func (s *SimBroker) GetCurrentSpread(symbol string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailFetch {
		return 0, fmt.Errorf("sim terminal unreachable")
	}
	return s.spread, nil
}

// ClosePosition removes the ticket from the book. Unknown tickets return
// broker.ErrPositionNotFound so idempotency behaves like the real bridge.
func (s *SimBroker) ClosePosition(id int64, reason string) (bool, error) {
	return s.ClosePositionCtx(context.Background(), id, reason)
}

// ClosePositionCtx removes the ticket from the book, honoring ctx.
func (s *SimBroker) ClosePositionCtx(ctx context.Context, id int64, reason string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.positions[id]
	if !ok {
		return false, broker.ErrPositionNotFound
	}
	if s.FailCloseIDs[id] {
		return false, fmt.Errorf("sim close rejected for ticket %d", id)
	}
	s.balance += p.Profit + p.Swap + p.Commission
	delete(s.positions, id)
	return true, nil
}

// OpenCount returns how many positions remain.
func (s *SimBroker) OpenCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.positions)
}

// Balance returns the realized balance.
func (s *SimBroker) Balance() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balance
}

// SeedPosition builds a raw position with sensible defaults for seeding.
func SeedPosition(id int64, side string, volume, profit float64, age time.Duration) broker.RawPosition {
	return broker.RawPosition{
		ID:           id,
		Side:         side,
		Volume:       volume,
		PriceOpen:    2400,
		PriceCurrent: 2400,
		Profit:       profit,
		OpenTime:     time.Now().Add(-age),
	}
}
