package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halpertj/unwinder/internal/broker"
	"github.com/halpertj/unwinder/internal/models"
)

func TestMarginOptimizationSilentWithoutMarginInUse(t *testing.T) {
	d := NewMarginOptimization(testThresholds())
	snap := makeSnapshot(
		makePos(1, models.SideSell, 2.5, -30, 6),
		makePos(2, models.SideBuy, 1.0, 15, 2),
	)

	// No margin in use: never fires regardless of the book.
	opps := d.Scan(scanContext(snap, broker.AccountSnapshot{MarginUsed: 0, MarginLevel: 50}, 0.3))
	assert.Empty(t, opps)
}

func TestMarginOptimizationSilentAbovePressureLevel(t *testing.T) {
	d := NewMarginOptimization(testThresholds())
	snap := makeSnapshot(
		makePos(1, models.SideSell, 2.5, -30, 6),
		makePos(2, models.SideBuy, 2.0, 30, 2),
	)

	acct := broker.AccountSnapshot{MarginUsed: 120, MarginLevel: 450}
	assert.Empty(t, d.Scan(scanContext(snap, acct, 0.3)))
}

func TestMarginOptimizationPairsLoserWithWinners(t *testing.T) {
	d := NewMarginOptimization(testThresholds())

	// Sell 2.5 lots losing $30 ties up $60 margin; two buys earn $30 combined.
	loser := makePos(1, models.SideSell, 2.5, -30, 6)
	winA := makePos(2, models.SideBuy, 1.0, 15, 2)
	winB := makePos(3, models.SideBuy, 1.0, 15, 2)
	snap := makeSnapshot(loser, winA, winB)

	acct := broker.AccountSnapshot{MarginUsed: 108, MarginLevel: 180}
	opps := d.Scan(scanContext(snap, acct, 0.3))
	require.Len(t, opps, 1)

	opp := opps[0]
	assert.Equal(t, models.ActionMarginOptimization, opp.Action)
	assert.Equal(t, 1, opp.Priority)
	assert.ElementsMatch(t, []int64{1, 2, 3}, opp.PositionIDs)
	assert.InDelta(t, 0.0, opp.NetProfit, 1e-9)
	assert.InDelta(t, 60+24+24, opp.MarginFreed, 1e-9)
	assert.NotEmpty(t, opp.ID)
}

func TestMarginOptimizationRejectsUnhedgedCandidate(t *testing.T) {
	d := NewMarginOptimization(testThresholds())

	// Only 0.5 lots of opposite-side volume against a 2.5 lot candidate:
	// below the 70% hedge ratio, so no safe combination exists.
	snap := makeSnapshot(
		makePos(1, models.SideSell, 2.5, -30, 6),
		makePos(2, models.SideBuy, 0.5, 40, 2),
	)

	acct := broker.AccountSnapshot{MarginUsed: 72, MarginLevel: 180}
	assert.Empty(t, d.Scan(scanContext(snap, acct, 0.3)))
}

func TestMarginOptimizationRejectsDeepCombinedLoss(t *testing.T) {
	d := NewMarginOptimization(testThresholds())

	// Hedge volume matches but the combined P&L is far below the -$5 floor.
	snap := makeSnapshot(
		makePos(1, models.SideSell, 2.5, -60, 6),
		makePos(2, models.SideBuy, 2.0, 10, 2),
	)

	acct := broker.AccountSnapshot{MarginUsed: 108, MarginLevel: 180}
	assert.Empty(t, d.Scan(scanContext(snap, acct, 0.3)))
}

func TestMarginOptimizationSkipsSmallMarginPositions(t *testing.T) {
	d := NewMarginOptimization(testThresholds())

	// Losing but tiny: estimated margin $2.40 is under the $50 floor.
	snap := makeSnapshot(
		makePos(1, models.SideSell, 0.1, -20, 6),
		makePos(2, models.SideBuy, 0.1, 25, 2),
	)

	acct := broker.AccountSnapshot{MarginUsed: 5, MarginLevel: 180}
	assert.Empty(t, d.Scan(scanContext(snap, acct, 0.3)))
}
