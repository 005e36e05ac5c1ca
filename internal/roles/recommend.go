package roles

import (
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/halpertj/unwinder/internal/detect"
	"github.com/halpertj/unwinder/internal/models"
	"github.com/halpertj/unwinder/internal/util"
)

// Role-family priorities. They interleave with the detector family purely
// as a sort key.
const (
	priorityEmergencyProtection = 2
	priorityMainHarvest         = 3
	priorityHedgePairClose      = 4
	priorityStrategicSacrifice  = 5
	priorityRoleRebalance       = 8
)

// Recommend derives the role-driven close recommendations for one cycle.
// emergencyIDs is the caller-supplied list closed under the emergency flag;
// it is ignored when emergency is false. Like the detectors, this never
// fails outward: anything unscorable is simply skipped.
func (e *Engine) Recommend(ctx detect.Context, a Assignment, emergency bool, emergencyIDs []int64) []models.CloseOpportunity {
	if ctx.Snapshot == nil {
		return nil
	}

	var out []models.CloseOpportunity

	if emergency && len(emergencyIDs) > 0 {
		out = append(out, e.emergencyProtection(ctx, emergencyIDs))
	}
	out = append(out, e.mainHarvest(ctx, a)...)
	out = append(out, e.hedgePairCloses(ctx, a)...)
	out = append(out, e.strategicSacrifices(ctx, a)...)
	out = append(out, e.roleRebalance(a)...)

	return out
}

func (e *Engine) emergencyProtection(ctx detect.Context, ids []int64) models.CloseOpportunity {
	var net float64
	kept := make([]int64, 0, len(ids))
	for _, id := range ids {
		if p, ok := ctx.Snapshot.Find(id); ok {
			kept = append(kept, id)
			net += p.TotalPnL
		}
	}
	return models.CloseOpportunity{
		ID:          uuid.NewString(),
		Action:      models.ActionEmergencyProtection,
		PositionIDs: kept,
		NetProfit:   util.RoundCents(net),
		Priority:    priorityEmergencyProtection,
		Reason:      fmt.Sprintf("emergency flag set, protecting portfolio (%d positions)", len(kept)),
	}
}

// mainHarvest takes profit on MAIN positions past a dynamic threshold: the
// per-lot base scaled by volume, relaxed as the position ages so stale
// mains harvest sooner.
func (e *Engine) mainHarvest(ctx detect.Context, a Assignment) []models.CloseOpportunity {
	var out []models.CloseOpportunity
	for _, p := range a.Mains {
		threshold := e.dynamicHarvestThreshold(p, ctx)
		if threshold <= 0 || p.TotalPnL < threshold {
			continue
		}
		out = append(out, models.CloseOpportunity{
			ID:          uuid.NewString(),
			Action:      models.ActionMainHarvest,
			PositionIDs: []int64{p.ID},
			NetProfit:   util.RoundCents(p.TotalPnL),
			Priority:    priorityMainHarvest,
			Reason:      fmt.Sprintf("MAIN harvest $%.2f over dynamic threshold $%.2f", p.TotalPnL, threshold),
		})
	}
	return out
}

// dynamicHarvestThreshold is volume-scaled and age-relaxed: up to 30% off
// over the first 48 hours.
func (e *Engine) dynamicHarvestThreshold(p models.Position, ctx detect.Context) float64 {
	base := p.Volume * e.thresholds.ProfitTargetBasePerLot
	return base * (1 - 0.3*util.Normalize(p.AgeHours(ctx.Now), 0, 48))
}

// hedgePairCloses pairs each HG loss with the opposite-side profitable
// position that maximizes the combined gain, accepting only pairs above the
// configured minimum net profit.
func (e *Engine) hedgePairCloses(ctx detect.Context, a Assignment) []models.CloseOpportunity {
	used := make(map[int64]bool)
	var out []models.CloseOpportunity

	for _, hg := range a.Hedges {
		var best *models.Position
		for i := range ctx.Snapshot.Positions {
			p := &ctx.Snapshot.Positions[i]
			if p.Side != hg.Side.Opposite() || !p.IsProfit() || used[p.ID] || p.ID == hg.ID {
				continue
			}
			if best == nil || p.TotalPnL > best.TotalPnL {
				best = p
			}
		}
		if best == nil {
			continue
		}
		net := hg.TotalPnL + best.TotalPnL
		if net < e.thresholds.MinNetProfitToClose {
			continue
		}
		used[best.ID] = true
		out = append(out, models.CloseOpportunity{
			ID:          uuid.NewString(),
			Action:      models.ActionHedgePairClose,
			PositionIDs: []int64{hg.ID, best.ID},
			NetProfit:   util.RoundCents(net),
			Priority:    priorityHedgePairClose,
			Reason:      fmt.Sprintf("HG %d paired with %d for +$%.2f", hg.ID, best.ID, net),
		})
	}
	return out
}

// strategicSacrifices closes a SACRIFICE loss against any profitable
// position when the pair nets above the minimum and the loss stays inside
// the sacrifice bound.
func (e *Engine) strategicSacrifices(ctx detect.Context, a Assignment) []models.CloseOpportunity {
	used := make(map[int64]bool)
	var out []models.CloseOpportunity

	for _, sac := range a.Sacrifices {
		if math.Abs(sac.TotalPnL) > e.thresholds.MaxSacrificeLoss {
			continue
		}
		var best *models.Position
		for i := range ctx.Snapshot.Positions {
			p := &ctx.Snapshot.Positions[i]
			if !p.IsProfit() || used[p.ID] || p.ID == sac.ID {
				continue
			}
			if best == nil || p.TotalPnL > best.TotalPnL {
				best = p
			}
		}
		if best == nil {
			continue
		}
		net := sac.TotalPnL + best.TotalPnL
		if net < e.thresholds.MinNetProfitToClose {
			continue
		}
		used[best.ID] = true
		out = append(out, models.CloseOpportunity{
			ID:          uuid.NewString(),
			Action:      models.ActionStrategicSacrifice,
			PositionIDs: []int64{sac.ID, best.ID},
			NetProfit:   util.RoundCents(net),
			Priority:    priorityStrategicSacrifice,
			Reason:      fmt.Sprintf("sacrifice %d ($%.2f) absorbed by %d for +$%.2f", sac.ID, sac.TotalPnL, best.ID, net),
		})
	}
	return out
}

// roleRebalance promotes the strongest SUPPORT position to MAIN when the
// MAIN bench is short. Advisory: executing it closes nothing, roles are
// recomputed next cycle.
func (e *Engine) roleRebalance(a Assignment) []models.CloseOpportunity {
	if len(a.Mains) >= e.thresholds.MinMainPositions || len(a.Supports) == 0 {
		return nil
	}
	best := a.Supports[0]
	for _, p := range a.Supports[1:] {
		if p.TotalPnL > best.TotalPnL {
			best = p
		}
	}
	return []models.CloseOpportunity{{
		ID:          uuid.NewString(),
		Action:      models.ActionRoleRebalance,
		PositionIDs: []int64{best.ID},
		NetProfit:   0,
		Priority:    priorityRoleRebalance,
		Reason:      fmt.Sprintf("promote support %d to MAIN (%d of %d mains)", best.ID, len(a.Mains), e.thresholds.MinMainPositions),
	}}
}
