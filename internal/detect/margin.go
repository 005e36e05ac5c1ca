package detect

import (
	"fmt"
	"sort"

	"github.com/halpertj/unwinder/internal/config"
	"github.com/halpertj/unwinder/internal/models"
)

const (
	// marginEfficiencyCutoff marks a position as margin-inefficient: it ties
	// up capital without earning against it.
	marginEfficiencyCutoff = 0.0
	// marginCandidateLimit bounds how many inefficient positions one scan considers.
	marginCandidateLimit = 5
	// marginComboLossFloor is the worst combined P&L a margin-relief close may accept.
	marginComboLossFloor = -5.0
)

// MarginOptimization frees margin under pressure by closing the largest
// margin-inefficient positions together with enough opposite-side winners to
// keep the combined P&L near break-even.
type MarginOptimization struct {
	thresholds config.ThresholdConfig
}

// NewMarginOptimization creates the margin optimization detector.
func NewMarginOptimization(thresholds config.ThresholdConfig) *MarginOptimization {
	return &MarginOptimization{thresholds: thresholds}
}

// Name implements Detector.
func (d *MarginOptimization) Name() string { return "margin_optimization" }

// Scan implements Detector. It fires only under real margin pressure:
// margin in use and margin level below the configured pressure threshold.
func (d *MarginOptimization) Scan(ctx Context) []models.CloseOpportunity {
	if ctx.Snapshot == nil || ctx.Account.MarginUsed <= 0 {
		return nil
	}
	if ctx.Account.MarginLevel >= d.thresholds.MarginPressureLevel {
		return nil
	}

	candidates := make([]models.Position, 0)
	for _, p := range ctx.Snapshot.Positions {
		if p.MarginEfficiency < marginEfficiencyCutoff && p.EstimatedMargin > d.thresholds.MarginFloor {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].EstimatedMargin > candidates[j].EstimatedMargin
	})
	if len(candidates) > marginCandidateLimit {
		candidates = candidates[:marginCandidateLimit]
	}

	used := make(map[int64]bool)
	var out []models.CloseOpportunity

	for _, cand := range candidates {
		if used[cand.ID] {
			continue
		}

		partners := d.hedgePartners(ctx.Snapshot, cand, used)
		matched := 0.0
		net := cand.TotalPnL
		freed := cand.EstimatedMargin
		ids := []int64{cand.ID}
		for _, h := range partners {
			matched += h.Volume
			net += h.TotalPnL
			freed += h.EstimatedMargin
			ids = append(ids, h.ID)
		}

		if cand.Volume > 0 && matched < d.thresholds.HedgeRatioThreshold*cand.Volume {
			continue
		}
		if net < marginComboLossFloor {
			continue
		}

		used[cand.ID] = true
		for _, id := range ids[1:] {
			used[id] = true
		}

		opp := newOpportunity(models.ActionMarginOptimization, ids, net, 1,
			fmt.Sprintf("free $%.0f margin at level %.0f%%", freed, ctx.Account.MarginLevel))
		opp.MarginFreed = freed
		out = append(out, opp)
	}

	return out
}

// hedgePartners greedily accumulates opposite-side positions by descending
// profit per lot until the candidate's volume is matched to the configured
// hedge ratio.
func (d *MarginOptimization) hedgePartners(snap *models.PortfolioSnapshot, cand models.Position, used map[int64]bool) []models.Position {
	pool := snap.BySide(cand.Side.Opposite())
	sort.SliceStable(pool, func(i, j int) bool {
		return pool[i].ProfitPerLot > pool[j].ProfitPerLot
	})

	need := d.thresholds.HedgeRatioThreshold * cand.Volume
	var picked []models.Position
	var matched float64
	for _, h := range pool {
		if matched >= need {
			break
		}
		if used[h.ID] {
			continue
		}
		picked = append(picked, h)
		matched += h.Volume
	}
	return picked
}
