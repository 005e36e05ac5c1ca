package main

import (
	"context"

	"github.com/sirupsen/logrus"
)

// runCycle performs one full pass: refresh the book, check the emergency
// stop, then execute the top ranked recommendations up to the per-cycle cap.
func (b *Bot) runCycle(ctx context.Context) {
	snap := b.engine.Refresh()
	b.logger.WithFields(logrus.Fields{
		"positions": len(snap.Positions),
		"buy_vol":   snap.BuyVolume,
		"sell_vol":  snap.SellVolume,
		"health":    snap.HealthScore,
	}).Info("cycle snapshot")

	if len(snap.Positions) == 0 {
		return
	}

	if acct, err := b.broker.GetAccountSnapshot(); err != nil {
		b.logger.WithError(err).Warn("account fetch failed, skipping emergency check")
	} else if stop, reason := b.risk.EmergencyStop(acct); stop {
		b.logger.WithField("reason", reason).Error("EMERGENCY STOP tripped, closing entire book")
		closed := b.engine.EmergencyCloseAll(ctx)
		b.logger.WithField("closed", closed).Warn("emergency sweep done")
		return
	}

	recs := b.engine.GetRecommendations(false, nil)
	if len(recs) == 0 {
		b.logger.Debug("no close opportunities this cycle")
		return
	}

	executed := 0
	for _, rec := range recs {
		if executed >= b.config.MaxClosesPerCycle() {
			break
		}
		b.logger.WithField("recommendation", rec.Describe()).Info("executing recommendation")
		result := b.engine.Execute(ctx, rec)
		if !result.Success {
			b.logger.WithFields(logrus.Fields{
				"closed": result.ClosedIDs,
				"failed": result.FailedIDs,
			}).Warn("recommendation did not fully execute")
		} else {
			b.logger.WithField("closed", result.ClosedIDs).Info("recommendation executed")
		}
		// Stale no-op batches don't consume the cycle budget.
		if len(result.ClosedIDs) > 0 || len(result.FailedIDs) > 0 {
			executed++
		}
	}
}
