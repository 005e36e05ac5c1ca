// Package risk supplies the per-cycle emergency-stop decision. When it
// trips, the host bypasses normal recommendation execution and closes the
// whole book.
package risk

import (
	"fmt"

	"github.com/halpertj/unwinder/internal/broker"
	"github.com/halpertj/unwinder/internal/config"
)

// Monitor evaluates catastrophic-loss conditions against account state.
type Monitor struct {
	cfg config.RiskConfig
}

// NewMonitor creates a monitor over the configured limits.
func NewMonitor(cfg config.RiskConfig) *Monitor {
	return &Monitor{cfg: cfg}
}

// EmergencyStop returns true, with a reason, when the account has breached
// a configured limit. A zero limit disables its check.
func (m *Monitor) EmergencyStop(acct broker.AccountSnapshot) (bool, string) {
	if m.cfg.MaxDrawdownPct > 0 && acct.Balance > 0 {
		floor := acct.Balance * (1 - m.cfg.MaxDrawdownPct)
		if acct.Equity < floor {
			return true, fmt.Sprintf("equity $%.2f below drawdown floor $%.2f", acct.Equity, floor)
		}
	}
	if m.cfg.MinMarginLevel > 0 && acct.MarginUsed > 0 && acct.MarginLevel < m.cfg.MinMarginLevel {
		return true, fmt.Sprintf("margin level %.1f%% below minimum %.1f%%", acct.MarginLevel, m.cfg.MinMarginLevel)
	}
	return false, ""
}
