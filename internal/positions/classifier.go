// Package positions pulls raw positions from the terminal, enriches them
// with lot-aware metrics, classifies them, and caches the resulting
// portfolio snapshot for a short TTL.
package positions

import (
	"time"

	"github.com/halpertj/unwinder/internal/config"
	"github.com/halpertj/unwinder/internal/models"
	"github.com/halpertj/unwinder/internal/util"
)

// heavyLossFloor is the total P&L below which a position counts as a heavy loss.
const heavyLossFloor = -50.0

// minProfitableVolume is the smallest volume eligible for the plain
// "profitable" status; dust positions stay neutral.
const minProfitableVolume = 0.05

// Classifier assigns each position a status category, an efficiency band,
// and a numeric close-priority score. All thresholds come from config.
type Classifier struct {
	thresholds config.ThresholdConfig
}

// NewClassifier creates a classifier over the supplied thresholds.
func NewClassifier(thresholds config.ThresholdConfig) *Classifier {
	return &Classifier{thresholds: thresholds}
}

// Classify populates Status, Efficiency, and ClosePriority on the position.
func (c *Classifier) Classify(p *models.Position, now time.Time) {
	p.Status = c.Status(p, now)
	p.Efficiency = c.EfficiencyCategory(p)
	p.ClosePriority = c.ClosePriority(p, now)
}

// Status walks the urgency-ordered decision tree.
func (c *Classifier) Status(p *models.Position, now time.Time) models.StatusCategory {
	e := c.thresholds.MinEfficiencyPerLot
	ageHours := p.AgeHours(now)
	old := ageHours > c.thresholds.MaxLosingAgeHours

	switch {
	case p.ProfitPerLot >= e:
		return models.StatusHighEfficiency
	case p.ProfitPerLot >= 0.5*e:
		return models.StatusMediumEfficiency
	case p.TotalPnL > c.thresholds.MinNetProfitToClose && p.Volume >= minProfitableVolume:
		return models.StatusProfitable
	case p.ProfitPerLot < -e && old:
		return models.StatusHighRiskOld
	case p.ProfitPerLot < -e:
		return models.StatusHighRisk
	case p.TotalPnL < heavyLossFloor:
		return models.StatusHeavyLoss
	case p.TotalPnL < 0 && old:
		return models.StatusOldLosing
	case p.TotalPnL < 0:
		return models.StatusLosing
	default:
		return models.StatusNeutral
	}
}

// EfficiencyCategory bands the blended per-lot and margin efficiency score.
func (c *Classifier) EfficiencyCategory(p *models.Position) models.EfficiencyCategory {
	score := 0.7*p.ProfitPerLot + 0.3*(p.MarginEfficiency*100)
	switch {
	case score >= 100:
		return models.EfficiencyExcellent
	case score >= 50:
		return models.EfficiencyGood
	case score >= 0:
		return models.EfficiencyFair
	case score >= -50:
		return models.EfficiencyPoor
	default:
		return models.EfficiencyTerrible
	}
}

// ClosePriority scores how urgently the position should be closed, in [0,1].
// Higher is more urgent. Each component is normalized and clamped before
// weighting, so a pathological input can never push the score out of range.
func (c *Classifier) ClosePriority(p *models.Position, now time.Time) float64 {
	return 0.4*util.Normalize(p.ProfitPerLot, -100, 100) +
		0.3*util.Normalize(p.AgeHours(now), 0, 48) +
		0.2*util.Normalize(p.MarginEfficiency, -0.5, 0.5) +
		0.1*util.Normalize(p.Volume, 0, 1)
}
