package mock

import (
	"time"

	"github.com/halpertj/unwinder/internal/broker"
)

// DemoBook returns a mixed seed book: winners near target, a hedged pair,
// an old heavy loser, and a volume imbalance toward buys. Exercises every
// detector within a few cycles.
func DemoBook() []broker.RawPosition {
	now := time.Now()
	book := []broker.RawPosition{
		{ID: 1001, Side: "buy", Volume: 0.10, PriceOpen: 2400, PriceCurrent: 2412, Profit: 24.0, OpenTime: now.Add(-2 * time.Hour)},
		{ID: 1002, Side: "buy", Volume: 0.20, PriceOpen: 2395, PriceCurrent: 2412, Profit: 41.0, OpenTime: now.Add(-6 * time.Hour)},
		{ID: 1003, Side: "buy", Volume: 0.15, PriceOpen: 2420, PriceCurrent: 2412, Profit: -12.0, OpenTime: now.Add(-4 * time.Hour)},
		{ID: 1004, Side: "buy", Volume: 0.30, PriceOpen: 2435, PriceCurrent: 2412, Profit: -69.0, OpenTime: now.Add(-30 * time.Hour)},
		{ID: 1005, Side: "sell", Volume: 0.10, PriceOpen: 2418, PriceCurrent: 2412, Profit: 6.0, OpenTime: now.Add(-1 * time.Hour)},
		{ID: 1006, Side: "sell", Volume: 0.15, PriceOpen: 2405, PriceCurrent: 2412, Profit: -10.5, OpenTime: now.Add(-14 * time.Hour)},
	}
	for i := range book {
		book[i].Swap = -0.4 * book[i].Volume * 10
		book[i].Commission = -0.2 * book[i].Volume * 10
	}
	return book
}
