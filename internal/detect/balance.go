package detect

import (
	"fmt"
	"sort"

	"github.com/halpertj/unwinder/internal/config"
	"github.com/halpertj/unwinder/internal/models"
)

const (
	// rebalanceBandLow and rebalanceBandHigh bound accepted close volume
	// relative to the computed rebalancing target.
	rebalanceBandLow  = 0.8
	rebalanceBandHigh = 1.2
	// rebalanceLossLimit rejects any addition that drags the accumulated
	// P&L down by more than this many dollars.
	rebalanceLossLimit = 10.0
)

// VolumeBalance proposes closing overweight-side positions when the
// directional volume split drifts past the configured tolerance.
type VolumeBalance struct {
	thresholds config.ThresholdConfig
}

// NewVolumeBalance creates the volume balance detector.
func NewVolumeBalance(thresholds config.ThresholdConfig) *VolumeBalance {
	return &VolumeBalance{thresholds: thresholds}
}

// Name implements Detector.
func (d *VolumeBalance) Name() string { return "volume_balance" }

// Scan implements Detector.
func (d *VolumeBalance) Scan(ctx Context) []models.CloseOpportunity {
	if ctx.Snapshot == nil {
		return nil
	}
	snap := ctx.Snapshot
	total := snap.TotalVolume()
	if total <= 0 {
		return nil
	}

	buyRatio := snap.BuyVolume / total
	sellRatio := snap.SellVolume / total
	gap := buyRatio - sellRatio
	if gap < 0 {
		gap = -gap
	}
	if gap <= d.thresholds.VolumeBalanceTolerance {
		return nil
	}

	overweight := models.SideBuy
	if snap.SellVolume > snap.BuyVolume {
		overweight = models.SideSell
	}

	// Closing target volume from the heavy side equalizes both sides.
	var target float64
	if overweight == models.SideBuy {
		target = (snap.BuyVolume - snap.SellVolume) / 2
	} else {
		target = (snap.SellVolume - snap.BuyVolume) / 2
	}
	if target <= 0 {
		return nil
	}

	pool := snap.BySide(overweight)
	sort.SliceStable(pool, func(i, j int) bool {
		return pool[i].ClosePriority > pool[j].ClosePriority
	})

	var ids []int64
	var acc, net float64
	for _, p := range pool {
		if acc >= rebalanceBandLow*target {
			break
		}
		if acc+p.Volume > rebalanceBandHigh*target {
			continue
		}
		if p.TotalPnL < -rebalanceLossLimit {
			continue
		}
		ids = append(ids, p.ID)
		acc += p.Volume
		net += p.TotalPnL
	}

	if acc < rebalanceBandLow*target {
		return nil
	}

	opp := newOpportunity(models.ActionVolumeBalance, ids, net, 2,
		fmt.Sprintf("close %.2f lots %s to rebalance %.0f%%/%.0f%% split",
			acc, overweight, buyRatio*100, sellRatio*100))
	opp.BalanceImprovement = gap - remainingGap(snap, overweight, acc)
	return []models.CloseOpportunity{opp}
}

// remainingGap computes the directional ratio gap after closing vol lots
// from the overweight side.
func remainingGap(snap *models.PortfolioSnapshot, overweight models.Side, vol float64) float64 {
	buy, sell := snap.BuyVolume, snap.SellVolume
	if overweight == models.SideBuy {
		buy -= vol
	} else {
		sell -= vol
	}
	total := buy + sell
	if total <= 0 {
		return 0
	}
	gap := (buy - sell) / total
	if gap < 0 {
		gap = -gap
	}
	return gap
}
