package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/halpertj/unwinder/internal/models"
)

func TestRankOrdersByPriorityThenNetProfit(t *testing.T) {
	opps := []models.CloseOpportunity{
		{ID: "a", Action: models.ActionLotRecovery, Priority: 3, NetProfit: 4},
		{ID: "b", Action: models.ActionMarginOptimization, Priority: 1, NetProfit: -2},
		{ID: "c", Action: models.ActionProfitHarvest, Priority: 2, NetProfit: 12},
		{ID: "d", Action: models.ActionVolumeBalance, Priority: 2, NetProfit: 45},
		{ID: "e", Action: models.ActionRoleRebalance, Priority: 8, NetProfit: 0},
	}

	ranked := Rank(opps)

	got := make([]string, len(ranked))
	for i, o := range ranked {
		got[i] = o.ID
	}
	assert.Equal(t, []string{"b", "d", "c", "a", "e"}, got)
}

func TestRankStableOnFullTies(t *testing.T) {
	opps := []models.CloseOpportunity{
		{ID: "first", Priority: 2, NetProfit: 10},
		{ID: "second", Priority: 2, NetProfit: 10},
		{ID: "third", Priority: 2, NetProfit: 10},
	}

	ranked := Rank(opps)
	assert.Equal(t, "first", ranked[0].ID)
	assert.Equal(t, "second", ranked[1].ID)
	assert.Equal(t, "third", ranked[2].ID)
}

func TestRankDoesNotMutateInput(t *testing.T) {
	opps := []models.CloseOpportunity{
		{ID: "x", Priority: 5},
		{ID: "y", Priority: 1},
	}

	_ = Rank(opps)
	assert.Equal(t, "x", opps[0].ID, "input slice must keep its order")
}

func TestRankEmpty(t *testing.T) {
	assert.Empty(t, Rank(nil))
}
