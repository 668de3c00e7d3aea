package signal

import (
	"math"

	"reboundtrader/src/model"
)

// Tracker detects rebound entry triggers for one trade direction: the
// oscillator must first reach the extreme zone (oversold for long,
// overbought for short) and then cross back out of it. The crossing is a
// one-shot edge trigger; it never re-fires while outside the zone without
// the oscillator dipping back in first.
type Tracker struct {
	side        model.Side
	threshold   float64
	seenExtreme bool
}

func NewTracker(side model.Side, threshold float64) *Tracker {
	return &Tracker{side: side, threshold: threshold}
}

// Observe consumes one indicator value per completed bar and reports whether
// an entry trigger fires. NaN values (indicator warm-up) are skipped without
// touching state.
//
// A trigger is suppressed when canEnter is false (entry window closed) or
// when a position on this side is already open. Both suppression causes
// still consume the seen-extreme flag, so a stale trigger cannot fire on a
// later bar straight after the blocking condition clears.
func (t *Tracker) Observe(value float64, canEnter, positionOpen bool) bool {
	if math.IsNaN(value) {
		return false
	}

	if t.inExtremeZone(value) {
		t.seenExtreme = true
		return false
	}

	if !t.seenExtreme {
		return false
	}

	// Crossed out of the extreme zone: one-shot edge.
	t.seenExtreme = false
	if !canEnter || positionOpen {
		return false
	}
	return true
}

func (t *Tracker) inExtremeZone(value float64) bool {
	if t.side == model.SideShort {
		return value >= t.threshold
	}
	return value <= t.threshold
}

// Reset clears the seen-extreme flag. Called at the start of a new trading
// day when no position is open on this side.
func (t *Tracker) Reset() {
	t.seenExtreme = false
}

func (t *Tracker) SeenExtreme() bool {
	return t.seenExtreme
}
