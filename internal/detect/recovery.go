package detect

import (
	"fmt"
	"math"
	"sort"

	"github.com/halpertj/unwinder/internal/config"
	"github.com/halpertj/unwinder/internal/models"
	"github.com/halpertj/unwinder/internal/util"
)

const (
	// recoveryDonorLimit caps the donor pool so the 3-way search stays cheap.
	recoveryDonorLimit = 8
	// recoveryMaxCombo bounds combination size; this is heuristic search,
	// not portfolio optimization.
	recoveryMaxCombo = 3
	// recoveryMinVolumeMatch is the minimum donor/target volume match ratio.
	recoveryMinVolumeMatch = 0.8
	// recoveryMinScore is the blended score an accepted combination must beat.
	recoveryMinScore = 0.3
	// recoveryProfitNormCap normalizes the profit component: combined gains
	// at or above this many dollars score 1.0.
	recoveryProfitNormCap = 100.0
)

// LotRecovery pairs each poor or terrible position with a small combination
// of excellent/good positions whose gains absorb the loss, freeing the book
// of its worst lots at no net cost.
type LotRecovery struct {
	thresholds config.ThresholdConfig
}

// NewLotRecovery creates the lot-aware recovery detector.
func NewLotRecovery(thresholds config.ThresholdConfig) *LotRecovery {
	return &LotRecovery{thresholds: thresholds}
}

// Name implements Detector.
func (d *LotRecovery) Name() string { return "lot_recovery" }

// Scan implements Detector.
func (d *LotRecovery) Scan(ctx Context) []models.CloseOpportunity {
	if ctx.Snapshot == nil {
		return nil
	}

	var targets, donors []models.Position
	for _, p := range ctx.Snapshot.Positions {
		switch p.Efficiency {
		case models.EfficiencyPoor, models.EfficiencyTerrible:
			targets = append(targets, p)
		case models.EfficiencyExcellent, models.EfficiencyGood:
			donors = append(donors, p)
		}
	}
	if len(targets) == 0 || len(donors) == 0 {
		return nil
	}

	// Worst targets first; strongest donors first, pool capped.
	sort.SliceStable(targets, func(i, j int) bool {
		return targets[i].TotalPnL < targets[j].TotalPnL
	})
	sort.SliceStable(donors, func(i, j int) bool {
		return donors[i].ProfitPerLot > donors[j].ProfitPerLot
	})
	if len(donors) > recoveryDonorLimit {
		donors = donors[:recoveryDonorLimit]
	}

	used := make(map[int64]bool)
	var out []models.CloseOpportunity

	for _, target := range targets {
		combo, score, net := d.bestCombination(ctx.Snapshot, target, donors, used)
		if combo == nil {
			continue
		}

		ids := []int64{target.ID}
		freed := target.EstimatedMargin
		for _, dn := range combo {
			ids = append(ids, dn.ID)
			freed += dn.EstimatedMargin
			used[dn.ID] = true
		}

		opp := newOpportunity(models.ActionLotRecovery, ids, net, 3,
			fmt.Sprintf("recover %s lot %.2f at +$%.2f (score %.2f)",
				target.Efficiency, target.Volume, net, score))
		opp.MarginFreed = freed
		out = append(out, opp)
	}

	return out
}

// bestCombination searches donor combinations of size 1, then 2, then 3 and
// returns the highest-scoring one that clears every acceptance gate:
// non-negative combined P&L, volume match >= 0.8, blended score > 0.3.
func (d *LotRecovery) bestCombination(snap *models.PortfolioSnapshot, target models.Position, donors []models.Position, used map[int64]bool) ([]models.Position, float64, float64) {
	avail := make([]models.Position, 0, len(donors))
	for _, dn := range donors {
		if !used[dn.ID] {
			avail = append(avail, dn)
		}
	}

	var best []models.Position
	bestScore := recoveryMinScore
	var bestNet float64

	var walk func(start int, combo []models.Position)
	walk = func(start int, combo []models.Position) {
		if len(combo) > 0 {
			net, match, score := d.scoreCombination(snap, target, combo)
			if net >= 0 && match >= recoveryMinVolumeMatch && score > bestScore {
				bestScore = score
				bestNet = net
				best = append([]models.Position(nil), combo...)
			}
		}
		if len(combo) == recoveryMaxCombo {
			return
		}
		for i := start; i < len(avail); i++ {
			walk(i+1, append(combo, avail[i]))
		}
	}
	walk(0, nil)

	return best, bestScore, bestNet
}

// scoreCombination blends profit, volume match, and margin freed, each
// normalized to [0,1].
func (d *LotRecovery) scoreCombination(snap *models.PortfolioSnapshot, target models.Position, combo []models.Position) (net, match, score float64) {
	net = target.TotalPnL
	var donorVol, freed float64
	freed = target.EstimatedMargin
	for _, dn := range combo {
		net += dn.TotalPnL
		donorVol += dn.Volume
		freed += dn.EstimatedMargin
	}

	match = volumeMatchRatio(donorVol, target.Volume)

	profitComp := util.Normalize(net, 0, recoveryProfitNormCap)
	volumeComp := util.Clamp(match, 0, 1)
	marginComp := util.Normalize(freed, 0, math.Max(snap.TotalMargin, 1))

	score = 0.5*profitComp + 0.3*volumeComp + 0.2*marginComp
	return net, match, score
}

// volumeMatchRatio is the symmetric overlap of two volumes in [0,1]:
// 1.0 for an exact match, falling toward 0 as they diverge.
func volumeMatchRatio(a, b float64) float64 {
	if a <= 0 || b <= 0 {
		return 0
	}
	if a > b {
		a, b = b, a
	}
	return a / b
}
