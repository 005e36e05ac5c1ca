package detect

import (
	"time"

	"github.com/halpertj/unwinder/internal/broker"
	"github.com/halpertj/unwinder/internal/config"
	"github.com/halpertj/unwinder/internal/models"
	"github.com/halpertj/unwinder/internal/positions"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testThresholds() config.ThresholdConfig {
	return config.ThresholdConfig{
		MinEfficiencyPerLot:    50,
		VolumeBalanceTolerance: 0.30,
		MaxSacrificeLoss:       80,
		MinNetProfitToClose:    2,
		MaxLosingAgeHours:      24,
		ProfitTargetBasePerLot: 100,
		HedgeRatioThreshold:    0.70,
		MinMainPositions:       2,
		MarginPressureLevel:    300,
		MarginFloor:            50,
	}
}

// makePos builds a fully derived and classified position at price 2400 and
// leverage 100.
func makePos(id int64, side models.Side, volume, rawProfit, ageHours float64) models.Position {
	p := models.Position{
		ID:           id,
		Side:         side,
		Volume:       volume,
		OpenPrice:    2400,
		CurrentPrice: 2400,
		RawProfit:    rawProfit,
		OpenTime:     testNow.Add(-time.Duration(ageHours * float64(time.Hour))),
	}
	p.ComputeDerived(100)
	positions.NewClassifier(testThresholds()).Classify(&p, testNow)
	return p
}

// makeSnapshot rolls up the snapshot-level fields the detectors consult.
func makeSnapshot(ps ...models.Position) *models.PortfolioSnapshot {
	snap := &models.PortfolioSnapshot{Timestamp: testNow, Positions: ps}
	for _, p := range ps {
		switch p.Side {
		case models.SideBuy:
			snap.BuyVolume += p.Volume
		case models.SideSell:
			snap.SellVolume += p.Volume
		}
		snap.TotalMargin += p.EstimatedMargin
	}
	return snap
}

func scanContext(snap *models.PortfolioSnapshot, acct broker.AccountSnapshot, spread float64) Context {
	return Context{Snapshot: snap, Account: acct, Spread: spread, Now: testNow}
}
