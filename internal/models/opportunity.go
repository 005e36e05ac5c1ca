package models

import "fmt"

// ActionType identifies the strategy behind a close recommendation.
type ActionType string

const (
	// ActionMarginOptimization closes a margin-inefficient position with hedge partners.
	ActionMarginOptimization ActionType = "margin_optimization"
	// ActionVolumeBalance closes overweight-side positions to restore directional balance.
	ActionVolumeBalance ActionType = "volume_balance"
	// ActionLotRecovery pairs a poor position with winners for a non-negative combined close.
	ActionLotRecovery ActionType = "lot_recovery"
	// ActionProfitHarvest takes profit on a single position past its target.
	ActionProfitHarvest ActionType = "profit_harvest"
	// ActionMainHarvest takes profit on a MAIN-role position past its dynamic threshold.
	ActionMainHarvest ActionType = "main_harvest"
	// ActionHedgePairClose closes an HG loss with an opposite-side profitable partner.
	ActionHedgePairClose ActionType = "hedge_pair_close"
	// ActionStrategicSacrifice closes a SACRIFICE loss against any profitable position.
	ActionStrategicSacrifice ActionType = "strategic_sacrifice"
	// ActionEmergencyProtection closes a caller-supplied id list under an emergency flag.
	ActionEmergencyProtection ActionType = "emergency_protection"
	// ActionRoleRebalance promotes a SUPPORT position to MAIN when MAIN count is short.
	ActionRoleRebalance ActionType = "role_rebalance"
)

// CloseOpportunity is a recommendation to close one or more positions
// together. Produced fresh every cycle and consumed immediately; never
// persisted.
type CloseOpportunity struct {
	ID          string     `json:"id"`
	Action      ActionType `json:"action"`
	PositionIDs []int64    `json:"position_ids"`
	NetProfit   float64    `json:"net_profit"`
	// MarginFreed estimates margin released by the close, when relevant.
	MarginFreed float64 `json:"margin_freed,omitempty"`
	// BalanceImprovement is the expected drop in directional imbalance, when relevant.
	BalanceImprovement float64 `json:"balance_improvement,omitempty"`
	// Priority orders execution: lower runs sooner.
	Priority int    `json:"priority"`
	Reason   string `json:"reason"`
}

// Describe returns a one-line human-readable summary for logs.
func (o *CloseOpportunity) Describe() string {
	return fmt.Sprintf("%s p%d ids=%v net=$%.2f: %s",
		o.Action, o.Priority, o.PositionIDs, o.NetProfit, o.Reason)
}

// ExecutionResult reports the outcome of executing one recommendation.
// Partial failures are surfaced, never rolled back: the broker has no
// atomic multi-close.
type ExecutionResult struct {
	Success   bool    `json:"success"`
	ClosedIDs []int64 `json:"closed_ids"`
	FailedIDs []int64 `json:"failed_ids"`
}
