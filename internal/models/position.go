// Package models defines the position, snapshot, and recommendation types
// shared by the close-decision engine.
package models

import (
	"time"

	"github.com/halpertj/unwinder/internal/util"
)

// Side is the direction of an open position.
type Side string

const (
	// SideBuy is a long position.
	SideBuy Side = "buy"
	// SideSell is a short position.
	SideSell Side = "sell"
)

// Valid returns true if the Side is one of the defined constants.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// Opposite returns the other direction.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// StatusCategory classifies a position by close urgency.
type StatusCategory string

const (
	// StatusHighEfficiency marks positions earning at or above the per-lot threshold.
	StatusHighEfficiency StatusCategory = "high_efficiency"
	// StatusMediumEfficiency marks positions earning at least half the per-lot threshold.
	StatusMediumEfficiency StatusCategory = "medium_efficiency"
	// StatusProfitable marks positions above the minimum net close gain.
	StatusProfitable StatusCategory = "profitable"
	// StatusHighRiskOld marks deeply losing positions older than the losing-age limit.
	StatusHighRiskOld StatusCategory = "high_risk_old"
	// StatusHighRisk marks deeply losing positions within the losing-age limit.
	StatusHighRisk StatusCategory = "high_risk"
	// StatusHeavyLoss marks positions losing more than $50 total.
	StatusHeavyLoss StatusCategory = "heavy_loss"
	// StatusOldLosing marks losing positions past the losing-age limit.
	StatusOldLosing StatusCategory = "old_losing"
	// StatusLosing marks any other losing position.
	StatusLosing StatusCategory = "losing"
	// StatusNeutral marks positions near breakeven.
	StatusNeutral StatusCategory = "neutral"
)

// EfficiencyCategory bands a position's blended efficiency score.
type EfficiencyCategory string

const (
	// EfficiencyExcellent is a blended score >= 100.
	EfficiencyExcellent EfficiencyCategory = "excellent"
	// EfficiencyGood is a blended score >= 50.
	EfficiencyGood EfficiencyCategory = "good"
	// EfficiencyFair is a blended score >= 0.
	EfficiencyFair EfficiencyCategory = "fair"
	// EfficiencyPoor is a blended score >= -50.
	EfficiencyPoor EfficiencyCategory = "poor"
	// EfficiencyTerrible is a blended score below -50.
	EfficiencyTerrible EfficiencyCategory = "terrible"
)

// Role is the strategic function assigned to a position each cycle.
type Role string

const (
	// RoleMain is a core profit driver, one per side.
	RoleMain Role = "main"
	// RoleHG is a hedge guard: a small recoverable loss held for pairing.
	RoleHG Role = "hg"
	// RoleSupport is the reserve pool.
	RoleSupport Role = "support"
	// RoleSacrifice is expendable for a combined net gain.
	RoleSacrifice Role = "sacrifice"
)

// Position is an open leveraged position enriched with lot-aware metrics.
// ID, Side, OpenPrice, and OpenTime are immutable broker facts; every other
// field is recomputed each cycle from the live snapshot.
type Position struct {
	ID           int64     `json:"id"`
	Side         Side      `json:"side"`
	Volume       float64   `json:"volume"`
	OpenPrice    float64   `json:"open_price"`
	CurrentPrice float64   `json:"current_price"`
	RawProfit    float64   `json:"raw_profit"`
	Swap         float64   `json:"swap"`
	Commission   float64   `json:"commission"`
	OpenTime     time.Time `json:"open_time"`

	// Derived fields, populated by ComputeDerived.
	TotalPnL         float64 `json:"total_pnl"`
	ProfitPerLot     float64 `json:"profit_per_lot"`
	EstimatedMargin  float64 `json:"estimated_margin"`
	MarginEfficiency float64 `json:"margin_efficiency"`

	// Classification, populated by the classifier.
	Status        StatusCategory     `json:"status"`
	Efficiency    EfficiencyCategory `json:"efficiency"`
	ClosePriority float64            `json:"close_priority"`
	Role          Role               `json:"role,omitempty"`
}

// Age returns how long the position has been open as of now.
func (p *Position) Age(now time.Time) time.Duration {
	if p.OpenTime.IsZero() || now.Before(p.OpenTime) {
		return 0
	}
	return now.Sub(p.OpenTime)
}

// AgeHours returns the position age in fractional hours.
func (p *Position) AgeHours(now time.Time) float64 {
	return p.Age(now).Hours()
}

// ComputeDerived fills in the lot-aware metrics. Every division is
// zero-guarded: a degenerate denominator defaults the metric to 0 rather
// than failing the cycle.
func (p *Position) ComputeDerived(leverage float64) {
	p.TotalPnL = p.RawProfit + p.Swap + p.Commission
	p.ProfitPerLot = util.SafeDiv(p.TotalPnL, p.Volume)
	p.EstimatedMargin = util.SafeDiv(p.CurrentPrice*p.Volume, leverage)
	p.MarginEfficiency = util.SafeDiv(p.TotalPnL, p.EstimatedMargin)
}

// IsProfit returns true when the position's total P&L is positive.
func (p *Position) IsProfit() bool {
	return p.TotalPnL > 0
}
