package trailing

import (
	"reboundtrader/src/model"
)

// Engine recomputes a position's protective stop as price moves in its
// favor. The stop only ever tightens: up for long, down for short. Trailing
// arms once profit from entry reaches the activation distance and never
// disarms.
//
// The same math serves both cadences: the bar engine feeds it the bar's
// favorable extreme once per bar, the tick engine and the live path feed it
// every relevant tick.
type Engine struct {
	side          model.Side
	entryPrice    float64
	activationPts float64
	distancePts   float64
	enabled       bool

	extreme   float64 // highest bid since entry (long) or lowest ask (short)
	active    bool
	stopLevel float64
}

func New(side model.Side, entryPrice, initialStop float64, enabled bool, activationPts, distancePts float64) *Engine {
	return &Engine{
		side:          side,
		entryPrice:    entryPrice,
		activationPts: activationPts,
		distancePts:   distancePts,
		enabled:       enabled,
		extreme:       entryPrice,
		stopLevel:     initialStop,
	}
}

// OnPrice consumes one tradable price on the position's exit side (bid for
// long, ask for short) and reports whether the stop moved.
func (e *Engine) OnPrice(price float64) (changed bool, newStop float64) {
	sign := e.side.Sign()

	if (price-e.extreme)*sign > 0 {
		e.extreme = price
	}

	if !e.enabled {
		return false, e.stopLevel
	}

	profit := (e.extreme - e.entryPrice) * sign
	if !e.active && profit >= e.activationPts {
		e.active = true
	}

	if e.active {
		candidate := e.extreme - e.distancePts*sign
		if (candidate-e.stopLevel)*sign > 0 {
			e.stopLevel = candidate
			return true, e.stopLevel
		}
	}

	return false, e.stopLevel
}

func (e *Engine) Active() bool {
	return e.active
}

func (e *Engine) StopLevel() float64 {
	return e.stopLevel
}

func (e *Engine) Extreme() float64 {
	return e.extreme
}

// SetStop overrides the stop level. Used when restoring from a snapshot and
// in tests; regular updates go through OnPrice.
func (e *Engine) SetStop(level float64) {
	e.stopLevel = level
}

// Restore rebuilds trailing state from a persisted snapshot. The snapshot's
// own extreme price is trusted when present; otherwise the extreme is
// recalculated conservatively from the current market price. In either case
// the restored stop is the tighter of the snapshot stop and the candidate
// derived from the restored extreme, so restoring and immediately
// recomputing is a no-op.
func Restore(snap model.PositionSnapshot, currentPrice float64, enabled bool, activationPts, distancePts float64) *Engine {
	e := New(snap.Side, snap.EntryPrice, snap.StopLevel, enabled, activationPts, distancePts)
	sign := snap.Side.Sign()

	if snap.ExtremePrice != 0 {
		e.extreme = snap.ExtremePrice
		e.active = snap.TrailingActive
	} else {
		e.extreme = snap.EntryPrice
		if (currentPrice-e.extreme)*sign > 0 {
			e.extreme = currentPrice
		}
		profit := (e.extreme - snap.EntryPrice) * sign
		e.active = enabled && profit >= activationPts
	}

	if e.enabled && e.active {
		candidate := e.extreme - distancePts*sign
		if (candidate-e.stopLevel)*sign > 0 {
			e.stopLevel = candidate
		}
	}

	return e
}
