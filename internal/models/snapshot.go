package models

import "time"

// PortfolioSnapshot is a point-in-time view of every open position plus the
// aggregates the detectors work from. Fully recomputed each cycle; only
// cached within the snapshot TTL window.
type PortfolioSnapshot struct {
	Timestamp  time.Time  `json:"timestamp"`
	Positions  []Position `json:"positions"`
	BuyVolume  float64    `json:"buy_volume"`
	SellVolume float64    `json:"sell_volume"`
	// ImbalanceRatio is |buy-sell| volume share in [0,1]; 0 is balanced.
	ImbalanceRatio float64 `json:"imbalance_ratio"`
	TotalMargin    float64 `json:"total_margin"`
	// HealthScore is 1 for a calm, balanced book and approaches 0 under stress.
	HealthScore float64 `json:"health_score"`
}

// Clone returns a deep copy. Published snapshots are shared with concurrent
// readers and treated as immutable after publication; anything that mutates
// positions works on a clone.
func (s *PortfolioSnapshot) Clone() *PortfolioSnapshot {
	c := *s
	c.Positions = append([]Position(nil), s.Positions...)
	return &c
}

// Find returns the position with the given ticket, if still open.
func (s *PortfolioSnapshot) Find(id int64) (*Position, bool) {
	for i := range s.Positions {
		if s.Positions[i].ID == id {
			return &s.Positions[i], true
		}
	}
	return nil, false
}

// Has reports whether the ticket is present in the snapshot.
func (s *PortfolioSnapshot) Has(id int64) bool {
	_, ok := s.Find(id)
	return ok
}

// BySide returns the positions on one side, preserving snapshot order.
func (s *PortfolioSnapshot) BySide(side Side) []Position {
	out := make([]Position, 0, len(s.Positions))
	for _, p := range s.Positions {
		if p.Side == side {
			out = append(out, p)
		}
	}
	return out
}

// TotalVolume is the combined open volume on both sides.
func (s *PortfolioSnapshot) TotalVolume() float64 {
	return s.BuyVolume + s.SellVolume
}
