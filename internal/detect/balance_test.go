package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halpertj/unwinder/internal/broker"
	"github.com/halpertj/unwinder/internal/models"
)

func TestVolumeBalanceSilentWithinTolerance(t *testing.T) {
	d := NewVolumeBalance(testThresholds())
	snap := makeSnapshot(
		makePos(1, models.SideBuy, 0.55, 5, 2),
		makePos(2, models.SideSell, 0.45, 3, 2),
	)

	// Gap of 0.10 is under the 0.30 tolerance.
	assert.Empty(t, d.Scan(scanContext(snap, broker.AccountSnapshot{}, 0.3)))
}

func TestVolumeBalanceClosesHalfTheGap(t *testing.T) {
	d := NewVolumeBalance(testThresholds())

	// Buys 0.8 vs sells 0.2: gap 0.6 over tolerance. Closing the 0.3 target
	// from the buy side leaves a balanced 0.5/0.2... the band accepts 0.24-0.36.
	snap := makeSnapshot(
		makePos(1, models.SideBuy, 0.3, 5, 20),
		makePos(2, models.SideBuy, 0.5, 8, 2),
		makePos(3, models.SideSell, 0.2, 3, 2),
	)

	opps := d.Scan(scanContext(snap, broker.AccountSnapshot{}, 0.3))
	require.Len(t, opps, 1)

	opp := opps[0]
	assert.Equal(t, models.ActionVolumeBalance, opp.Action)
	assert.Equal(t, 2, opp.Priority)
	// The 0.5 lot overshoots the 1.2x band; only the 0.3 lot fits.
	assert.Equal(t, []int64{1}, opp.PositionIDs)
	assert.InDelta(t, 5.0, opp.NetProfit, 1e-9)
	assert.Greater(t, opp.BalanceImprovement, 0.0)
}

func TestVolumeBalanceSkipsHeavyLosers(t *testing.T) {
	d := NewVolumeBalance(testThresholds())

	// The only buy that fits the band is losing more than $10, so no safe
	// rebalance exists this cycle.
	snap := makeSnapshot(
		makePos(1, models.SideBuy, 0.3, -25, 20),
		makePos(2, models.SideBuy, 0.5, 8, 2),
		makePos(3, models.SideSell, 0.2, 3, 2),
	)

	assert.Empty(t, d.Scan(scanContext(snap, broker.AccountSnapshot{}, 0.3)))
}

func TestVolumeBalanceSellOverweight(t *testing.T) {
	d := NewVolumeBalance(testThresholds())

	snap := makeSnapshot(
		makePos(1, models.SideSell, 0.3, 4, 20),
		makePos(2, models.SideSell, 0.5, 6, 2),
		makePos(3, models.SideBuy, 0.2, 3, 2),
	)

	opps := d.Scan(scanContext(snap, broker.AccountSnapshot{}, 0.3))
	require.Len(t, opps, 1)
	assert.Equal(t, []int64{1}, opps[0].PositionIDs)
}

func TestVolumeBalanceEmptyBook(t *testing.T) {
	d := NewVolumeBalance(testThresholds())
	assert.Empty(t, d.Scan(scanContext(makeSnapshot(), broker.AccountSnapshot{}, 0.3)))
}
