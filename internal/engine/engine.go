// Package engine ties the snapshot cache, the opportunity detectors, and
// the role engine together, ranks their merged recommendations, and
// executes closes against the broker. One Engine instance serves one
// polling loop; all methods are synchronous.
package engine

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/halpertj/unwinder/internal/broker"
	"github.com/halpertj/unwinder/internal/config"
	"github.com/halpertj/unwinder/internal/detect"
	"github.com/halpertj/unwinder/internal/models"
	"github.com/halpertj/unwinder/internal/positions"
	"github.com/halpertj/unwinder/internal/retry"
	"github.com/halpertj/unwinder/internal/roles"
)

// batchSuccessRatio is the per-id close success share a batch needs to
// count as successful overall.
const batchSuccessRatio = 0.8

// Engine is the close-decision core exposed to the host loop.
type Engine struct {
	cfg       *config.Config
	broker    broker.Broker
	cache     *positions.SnapshotCache
	detectors []detect.Detector
	roleEng   *roles.Engine
	closer    *retry.Client
	logger    logrus.FieldLogger

	// nowFn and sleepFn are replaceable in tests.
	nowFn   func() time.Time
	sleepFn func(time.Duration)
}

// New wires up a complete engine over the given broker.
func New(cfg *config.Config, b broker.Broker, logger logrus.FieldLogger) *Engine {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	classifier := positions.NewClassifier(cfg.Thresholds)
	return &Engine{
		cfg:    cfg,
		broker: b,
		cache:  positions.NewSnapshotCache(b, cfg.Engine.Symbol, cfg.SnapshotTTL(), classifier, logger),
		detectors: []detect.Detector{
			detect.NewMarginOptimization(cfg.Thresholds),
			detect.NewVolumeBalance(cfg.Thresholds),
			detect.NewLotRecovery(cfg.Thresholds),
			detect.NewProfitHarvest(cfg.Thresholds),
		},
		roleEng: roles.NewEngine(cfg.Thresholds),
		closer: retry.NewClient(b, cfg.Engine.Symbol, logger, retry.Config{
			MaxAttempts:  retry.DefaultConfig.MaxAttempts,
			Backoff:      retry.DefaultConfig.Backoff,
			CloseTimeout: cfg.CloseTimeout(),
		}),
		logger:  logger.WithField("component", "engine"),
		nowFn:   time.Now,
		sleepFn: time.Sleep,
	}
}

// Refresh forces a snapshot refresh and returns the result.
func (e *Engine) Refresh() *models.PortfolioSnapshot {
	return e.cache.Snapshot(true)
}

// Snapshot returns the current snapshot, refreshing only past the TTL.
func (e *Engine) Snapshot() *models.PortfolioSnapshot {
	return e.cache.Snapshot(false)
}

// GetRecommendations runs both recommendation families over the current
// snapshot and returns the merged, ranked list. The emergency flag and id
// list come from the host's risk check; normal cycles pass false, nil.
func (e *Engine) GetRecommendations(emergency bool, emergencyIDs []int64) []models.CloseOpportunity {
	// Role assignment writes onto positions; the cached snapshot is shared
	// with concurrent readers (status server), so this cycle works on a clone.
	snap := e.Snapshot().Clone()
	now := e.nowFn()

	scanCtx := detect.Context{
		Snapshot: snap,
		Now:      now,
	}
	if acct, err := e.broker.GetAccountSnapshot(); err != nil {
		e.logger.WithError(err).Warn("account fetch failed, detectors see zero account state")
	} else {
		scanCtx.Account = acct
	}
	if spread, err := e.broker.GetCurrentSpread(e.cfg.Engine.Symbol); err != nil {
		e.logger.WithError(err).Warn("spread fetch failed, defaulting to 0")
	} else {
		scanCtx.Spread = spread
	}

	var merged []models.CloseOpportunity
	for _, d := range e.detectors {
		merged = append(merged, d.Scan(scanCtx)...)
	}

	assignment := e.roleEng.Assign(snap, now)
	merged = append(merged, e.roleEng.Recommend(scanCtx, assignment, emergency, emergencyIDs)...)

	ranked := Rank(merged)
	for _, opp := range ranked {
		e.logger.WithField("recommendation", opp.Describe()).Debug("ranked recommendation")
	}
	return ranked
}

// Execute re-validates a recommendation against a fresh snapshot and closes
// the surviving ids. Ids no longer open are dropped silently, never closed.
// Partial failures are reported in the result; nothing is rolled back
// because the broker has no atomic multi-close.
func (e *Engine) Execute(ctx context.Context, rec models.CloseOpportunity) models.ExecutionResult {
	if rec.Action == models.ActionRoleRebalance {
		// Advisory only: roles are recomputed next cycle.
		return models.ExecutionResult{Success: true, ClosedIDs: []int64{}, FailedIDs: []int64{}}
	}

	fresh := e.cache.Snapshot(true)
	live := make([]int64, 0, len(rec.PositionIDs))
	for _, id := range rec.PositionIDs {
		if fresh.Has(id) {
			live = append(live, id)
		} else {
			e.logger.WithFields(logrus.Fields{
				"ticket": id,
				"action": rec.Action,
			}).Debug("dropping stale id from recommendation")
		}
	}
	if len(live) == 0 {
		e.logger.WithField("recommendation", rec.Describe()).Debug("recommendation fully stale, dropped")
		return models.ExecutionResult{Success: false, ClosedIDs: []int64{}, FailedIDs: []int64{}}
	}

	reason := fmt.Sprintf("%s:%s", rec.Action, rec.ID)
	closed := make([]int64, 0, len(live))
	failed := make([]int64, 0)

	for i, id := range live {
		if i > 0 {
			// Terminal bridges rate-limit close calls.
			e.sleepFn(e.cfg.CloseCallDelay())
		}
		ok, err := e.closer.ClosePosition(ctx, id, reason)
		if err != nil || !ok {
			e.logger.WithError(err).WithField("ticket", id).Error("close failed")
			failed = append(failed, id)
			continue
		}
		closed = append(closed, id)
	}

	e.cache.Invalidate()

	required := int(math.Ceil(batchSuccessRatio * float64(len(live))))
	return models.ExecutionResult{
		Success:   len(closed) >= required,
		ClosedIDs: closed,
		FailedIDs: failed,
	}
}

// EmergencyCloseAll bypasses the ranker and closes every open position
// sequentially. Per-id failures are logged and skipped, never aborting the
// sweep. Returns the number of positions closed.
func (e *Engine) EmergencyCloseAll(ctx context.Context) int {
	fresh := e.cache.Snapshot(true)
	closed := 0
	for i, p := range fresh.Positions {
		if i > 0 {
			e.sleepFn(e.cfg.CloseCallDelay())
		}
		ok, err := e.closer.ClosePosition(ctx, p.ID, "emergency_close_all")
		if err != nil || !ok {
			e.logger.WithError(err).WithField("ticket", p.ID).Error("emergency close failed, continuing")
			continue
		}
		closed++
	}
	e.cache.Invalidate()
	e.logger.WithField("closed", closed).Warn("emergency close all completed")
	return closed
}
