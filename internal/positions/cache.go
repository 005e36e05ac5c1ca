package positions

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/halpertj/unwinder/internal/broker"
	"github.com/halpertj/unwinder/internal/models"
)

// fallbackLeverage is used when the account snapshot is unavailable; margin
// estimates stay conservative rather than blowing up.
const fallbackLeverage = 100.0

// SnapshotCache pulls raw positions, enriches them, and serves the result
// for a short TTL to avoid hammering the terminal between cycles. It is the
// engine's only mutable shared state and is safe for concurrent readers;
// refreshes are single-writer-guarded by the mutex.
type SnapshotCache struct {
	broker broker.Broker
	symbol string
	ttl    time.Duration
	logger logrus.FieldLogger

	classifier *Classifier

	mu        sync.Mutex
	snap      *models.PortfolioSnapshot
	fetchedAt time.Time

	// nowFn is replaceable in tests.
	nowFn func() time.Time
}

// NewSnapshotCache creates a cache over the given broker and symbol.
func NewSnapshotCache(b broker.Broker, symbol string, ttl time.Duration, classifier *Classifier, logger logrus.FieldLogger) *SnapshotCache {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &SnapshotCache{
		broker:     b,
		symbol:     symbol,
		ttl:        ttl,
		logger:     logger.WithField("component", "snapshot_cache"),
		classifier: classifier,
		nowFn:      time.Now,
	}
}

// Snapshot returns the current portfolio snapshot, refreshing from the
// terminal when forced or when the cached copy is older than the TTL.
// A broker failure degrades to an empty snapshot: callers cannot and must
// not distinguish "empty portfolio" from "fetch failed" at this layer.
// The returned snapshot is shared between callers and immutable after
// publication; mutate a Clone, never the snapshot itself.
func (c *SnapshotCache) Snapshot(forceRefresh bool) *models.PortfolioSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.nowFn()
	if !forceRefresh && c.snap != nil && now.Sub(c.fetchedAt) < c.ttl {
		return c.snap
	}

	c.snap = c.fetch(now)
	c.fetchedAt = now
	return c.snap
}

// GetPositions returns the enriched positions from the current snapshot.
func (c *SnapshotCache) GetPositions(forceRefresh bool) []models.Position {
	return c.Snapshot(forceRefresh).Positions
}

// Invalidate drops the cached snapshot so the next read refetches.
func (c *SnapshotCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap = nil
	c.fetchedAt = time.Time{}
}

func (c *SnapshotCache) fetch(now time.Time) *models.PortfolioSnapshot {
	snap := &models.PortfolioSnapshot{Timestamp: now}

	raw, err := c.broker.GetOpenPositions(c.symbol)
	if err != nil {
		c.logger.WithError(err).Warn("position fetch failed, degrading to empty snapshot")
		snap.Positions = []models.Position{}
		aggregate(snap)
		return snap
	}

	leverage := fallbackLeverage
	if acct, err := c.broker.GetAccountSnapshot(); err != nil {
		c.logger.WithError(err).Warn("account fetch failed, using fallback leverage")
	} else if acct.Leverage > 0 {
		leverage = acct.Leverage
	}

	snap.Positions = make([]models.Position, 0, len(raw))
	for _, r := range raw {
		p, ok := ingest(r, leverage)
		if !ok {
			c.logger.WithField("ticket", r.ID).Warn("dropping malformed position record")
			continue
		}
		c.classifier.Classify(&p, now)
		snap.Positions = append(snap.Positions, p)
	}

	aggregate(snap)
	return snap
}

// ingest validates a raw terminal record at the boundary and computes the
// derived metrics. Records with an unknown side are rejected; a zero volume
// is kept (its per-lot metrics default to 0) so the terminal's view and
// ours never diverge on which tickets exist.
func ingest(r broker.RawPosition, leverage float64) (models.Position, bool) {
	side := models.Side(r.Side)
	if !side.Valid() {
		return models.Position{}, false
	}
	p := models.Position{
		ID:           r.ID,
		Side:         side,
		Volume:       r.Volume,
		OpenPrice:    r.PriceOpen,
		CurrentPrice: r.PriceCurrent,
		RawProfit:    r.Profit,
		Swap:         r.Swap,
		Commission:   r.Commission,
		OpenTime:     r.OpenTime,
	}
	p.ComputeDerived(leverage)
	return p, true
}
