package model

import "time"

// PositionSnapshot is the point-in-time copy of an open position handed to the
// persistence layer. It is written only on open/close transitions; the trailing
// stop recalculated between snapshots is deliberately not persisted, so a
// restored stop level may be slightly stale relative to the last live tick.
type PositionSnapshot struct {
	DealID         string    `json:"deal_id"`
	Market         string    `json:"market"`
	Side           Side      `json:"side"`
	EntryPrice     float64   `json:"entry_price"`
	EntryTime      time.Time `json:"entry_time"`
	StopLevel      float64   `json:"stop_level"`
	TargetLevel    float64   `json:"target_level"`
	ExtremePrice   float64   `json:"extreme_price_since_entry"`
	TrailingActive bool      `json:"trailing_active"`
	DaysHeld       int       `json:"days_held"`
	OvernightPts   float64   `json:"accrued_overnight_charge"`
}
