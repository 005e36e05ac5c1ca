// Package detect implements the opportunity detectors: independent scanners
// that each propose close actions over the current portfolio snapshot.
// Detectors never fail outward; anything that cannot be scored yields an
// empty recommendation list.
package detect

import (
	"time"

	"github.com/google/uuid"

	"github.com/halpertj/unwinder/internal/broker"
	"github.com/halpertj/unwinder/internal/models"
	"github.com/halpertj/unwinder/internal/util"
)

// Context carries everything a detector may consult during one scan.
// All fields are read-only to detectors.
type Context struct {
	Snapshot *models.PortfolioSnapshot
	Account  broker.AccountSnapshot
	// Spread is the live spread on the instrument, in account currency.
	Spread float64
	Now    time.Time
}

// Detector scans a snapshot and proposes close opportunities.
type Detector interface {
	Name() string
	Scan(ctx Context) []models.CloseOpportunity
}

func newOpportunity(action models.ActionType, ids []int64, net float64, priority int, reason string) models.CloseOpportunity {
	return models.CloseOpportunity{
		ID:          uuid.NewString(),
		Action:      action,
		PositionIDs: ids,
		NetProfit:   util.RoundCents(net),
		Priority:    priority,
		Reason:      reason,
	}
}
