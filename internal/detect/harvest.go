package detect

import (
	"fmt"

	"github.com/halpertj/unwinder/internal/config"
	"github.com/halpertj/unwinder/internal/models"
)

const (
	// harvestAgeHours is the minimum age for the 0.8x-target tier.
	harvestAgeHours = 12.0
	// harvestMinVolume is the minimum volume for the 0.6x-target tier.
	harvestMinVolume = 0.1
)

// ProfitHarvest proposes single-position closes once unrealized profit
// clears a volume-scaled target padded by twice the live spread.
type ProfitHarvest struct {
	thresholds config.ThresholdConfig
}

// NewProfitHarvest creates the profit harvest detector.
func NewProfitHarvest(thresholds config.ThresholdConfig) *ProfitHarvest {
	return &ProfitHarvest{thresholds: thresholds}
}

// Name implements Detector.
func (d *ProfitHarvest) Name() string { return "profit_harvest" }

// Scan implements Detector. Tier ladder, most attractive first:
// 2x target -> priority 1; 1x -> 2; 0.8x and aged -> 3; 0.6x with real volume -> 4.
func (d *ProfitHarvest) Scan(ctx Context) []models.CloseOpportunity {
	if ctx.Snapshot == nil {
		return nil
	}

	var out []models.CloseOpportunity
	for _, p := range ctx.Snapshot.Positions {
		target := p.Volume*d.thresholds.ProfitTargetBasePerLot + 2*ctx.Spread
		if target <= 0 || p.TotalPnL <= 0 {
			continue
		}

		var priority int
		switch {
		case p.TotalPnL >= 2*target:
			priority = 1
		case p.TotalPnL >= target:
			priority = 2
		case p.TotalPnL >= 0.8*target && p.AgeHours(ctx.Now) >= harvestAgeHours:
			priority = 3
		case p.TotalPnL >= 0.6*target && p.Volume >= harvestMinVolume:
			priority = 4
		default:
			continue
		}

		out = append(out, newOpportunity(models.ActionProfitHarvest, []int64{p.ID}, p.TotalPnL, priority,
			fmt.Sprintf("harvest $%.2f against target $%.2f", p.TotalPnL, target)))
	}
	return out
}
