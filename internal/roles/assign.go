// Package roles implements the role assignment engine: a parallel heuristic
// that labels every position MAIN, HG, SUPPORT, or SACRIFICE each cycle and
// derives a second family of close recommendations from the labels.
package roles

import (
	"sort"
	"time"

	"github.com/halpertj/unwinder/internal/config"
	"github.com/halpertj/unwinder/internal/models"
)

const (
	// mainLossWindow is how far underwater a position may be and still be
	// nominated MAIN ($).
	mainLossWindow = 15.0
	// hgLossMin/hgLossMax bound the hedge-guard loss band ($).
	hgLossMin = -40.0
	hgLossMax = -10.0
	// sacrificeAgeHours is the age past which a losing position becomes expendable.
	sacrificeAgeHours = 12.0
	// hgShareDivisor caps HG count at population/3.
	hgShareDivisor = 3
	// sacrificeShareDivisor caps SACRIFICE count at population/5.
	sacrificeShareDivisor = 5
)

// Assignment is the full role map for one cycle, recomputed from scratch
// every time. No history is kept.
type Assignment struct {
	Roles      map[int64]models.Role
	Mains      []models.Position
	Hedges     []models.Position
	Sacrifices []models.Position
	Supports   []models.Position
}

// Engine assigns roles and generates role-driven recommendations.
type Engine struct {
	thresholds config.ThresholdConfig
}

// NewEngine creates a role engine over the supplied thresholds.
func NewEngine(thresholds config.ThresholdConfig) *Engine {
	return &Engine{thresholds: thresholds}
}

// Assign labels every position in the snapshot and writes the role back onto
// the snapshot's positions. Each position receives exactly one role.
func (e *Engine) Assign(snap *models.PortfolioSnapshot, now time.Time) Assignment {
	a := Assignment{Roles: make(map[int64]models.Role, len(snap.Positions))}
	n := len(snap.Positions)
	if n == 0 {
		return a
	}

	// MAIN: per side, the highest total P&L among positions inside the small
	// unrealized-loss window. An outright winner outranks a near-breakeven
	// loser: MAIN is the side's profit driver and feeds the harvest
	// generator, not the position easiest to rescue.
	for _, side := range []models.Side{models.SideBuy, models.SideSell} {
		var best *models.Position
		for i := range snap.Positions {
			p := &snap.Positions[i]
			if p.Side != side || p.TotalPnL < -mainLossWindow {
				continue
			}
			if best == nil || p.TotalPnL > best.TotalPnL {
				best = p
			}
		}
		if best != nil {
			a.Roles[best.ID] = models.RoleMain
		}
	}

	// HG: recoverable losses in the band, least-losing first, capped at a
	// third of the population.
	var hgCandidates []models.Position
	for _, p := range snap.Positions {
		if _, taken := a.Roles[p.ID]; taken {
			continue
		}
		if p.TotalPnL >= hgLossMin && p.TotalPnL <= hgLossMax {
			hgCandidates = append(hgCandidates, p)
		}
	}
	sort.SliceStable(hgCandidates, func(i, j int) bool {
		return hgCandidates[i].TotalPnL > hgCandidates[j].TotalPnL
	})
	hgCap := n / hgShareDivisor
	if len(hgCandidates) > hgCap {
		hgCandidates = hgCandidates[:hgCap]
	}
	for _, p := range hgCandidates {
		a.Roles[p.ID] = models.RoleHG
	}

	// SACRIFICE: the worst of the book, capped at a fifth of the population.
	var sacCandidates []models.Position
	for _, p := range snap.Positions {
		if _, taken := a.Roles[p.ID]; taken {
			continue
		}
		if p.TotalPnL < -50 || (p.TotalPnL < 0 && p.AgeHours(now) > sacrificeAgeHours) {
			sacCandidates = append(sacCandidates, p)
		}
	}
	sort.SliceStable(sacCandidates, func(i, j int) bool {
		return sacCandidates[i].TotalPnL < sacCandidates[j].TotalPnL
	})
	sacCap := n / sacrificeShareDivisor
	if len(sacCandidates) > sacCap {
		sacCandidates = sacCandidates[:sacCap]
	}
	for _, p := range sacCandidates {
		a.Roles[p.ID] = models.RoleSacrifice
	}

	// Everything else is reserve.
	for i := range snap.Positions {
		p := &snap.Positions[i]
		role, ok := a.Roles[p.ID]
		if !ok {
			role = models.RoleSupport
			a.Roles[p.ID] = role
		}
		p.Role = role
		switch role {
		case models.RoleMain:
			a.Mains = append(a.Mains, *p)
		case models.RoleHG:
			a.Hedges = append(a.Hedges, *p)
		case models.RoleSacrifice:
			a.Sacrifices = append(a.Sacrifices, *p)
		case models.RoleSupport:
			a.Supports = append(a.Supports, *p)
		}
	}

	return a
}
