package positions

import (
	"github.com/halpertj/unwinder/internal/models"
	"github.com/halpertj/unwinder/internal/util"
)

// aggregate fills the snapshot-level rollups: directional volumes, the
// imbalance ratio, total estimated margin, and the portfolio health score.
//
// Health is 1.0 for an empty or calm balanced book and decays toward 0 as
// directional imbalance grows and aggregate margin efficiency turns
// negative: health = 0.5*(1-imbalance) + 0.5*norm(avgMarginEff, -0.5..0.5).
func aggregate(snap *models.PortfolioSnapshot) {
	var buy, sell, margin, effSum float64
	for i := range snap.Positions {
		p := &snap.Positions[i]
		switch p.Side {
		case models.SideBuy:
			buy += p.Volume
		case models.SideSell:
			sell += p.Volume
		}
		margin += p.EstimatedMargin
		effSum += p.MarginEfficiency
	}

	snap.BuyVolume = buy
	snap.SellVolume = sell
	snap.TotalMargin = margin

	total := buy + sell
	if total <= 0 {
		snap.ImbalanceRatio = 0
		snap.HealthScore = 1
		return
	}

	diff := buy - sell
	if diff < 0 {
		diff = -diff
	}
	snap.ImbalanceRatio = diff / total

	avgEff := effSum / float64(len(snap.Positions))
	snap.HealthScore = util.Clamp(
		0.5*(1-snap.ImbalanceRatio)+0.5*util.Normalize(avgEff, -0.5, 0.5), 0, 1)
}
