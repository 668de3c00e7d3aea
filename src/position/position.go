package position

import (
	"time"

	"reboundtrader/src/config"
	"reboundtrader/src/model"
	"reboundtrader/src/sessionclock"
	"reboundtrader/src/trailing"
)

// Exit is the single exit event a position may produce per observation.
type Exit struct {
	Price  float64
	Reason model.ExitReason
	Time   time.Time
}

// Position owns one open trade from entry to close. It is constructed
// already open and becomes a ClosedTrade exactly once; the exit conditions
// are evaluated in a fixed priority order and at most one fires per
// observation.
//
// The state machine is cadence-agnostic: the backtest engines drive it from
// a sequential loop, the live trader drives it one pushed tick at a time.
type Position struct {
	Side        model.Side
	DealID      string
	Market      string
	EntryPrice  float64
	EntryTime   time.Time
	EntryDate   time.Time // trading date, UTC-midnight normalized
	TargetLevel float64

	BarsHeld     int
	DaysHeld     int
	OvernightPts float64

	cfg      config.SideConfig
	trailing *trailing.Engine
}

func Open(side model.Side, dealID, market string, entryPrice float64, entryTime, entryDate time.Time, cfg config.SideConfig) *Position {
	sign := side.Sign()
	initialStop := entryPrice - cfg.StopLossPts*sign

	return &Position{
		Side:        side,
		DealID:      dealID,
		Market:      market,
		EntryPrice:  entryPrice,
		EntryTime:   entryTime,
		EntryDate:   entryDate,
		TargetLevel: entryPrice + cfg.TakeProfitPts*sign,
		cfg:         cfg,
		trailing:    trailing.New(side, entryPrice, initialStop, cfg.UseTrailing, cfg.TrailingActivationPts, cfg.TrailingDistancePts),
	}
}

func (p *Position) StopLevel() float64 {
	return p.trailing.StopLevel()
}

func (p *Position) TrailingActive() bool {
	return p.trailing.Active()
}

func (p *Position) Trailing() *trailing.Engine {
	return p.trailing
}

// MarkBar counts one completed bar of holding time.
func (p *Position) MarkBar() {
	p.BarsHeld++
}

// AccrueOvernight charges funding for every trading-day boundary crossed
// since the last charge: entry_price x (annual_rate / 365) per night,
// proportionally for multi-day gaps. Returns the points charged now.
func (p *Position) AccrueOvernight(tradingDate time.Time, annualRatePct float64) float64 {
	daysDiff := sessionclock.DaysBetween(p.EntryDate, tradingDate)
	if daysDiff <= p.DaysHeld {
		return 0
	}
	nights := daysDiff - p.DaysHeld
	charge := p.EntryPrice * (annualRatePct / 100.0 / 365.0) * float64(nights)
	p.OvernightPts += charge
	p.DaysHeld = daysDiff
	return charge
}

// MaxHoldExceeded reports whether the configured holding limit is reached.
// Zero max_hold_days means unlimited.
func (p *Position) MaxHoldExceeded() bool {
	return p.cfg.MaxHoldDays > 0 && p.DaysHeld >= p.cfg.MaxHoldDays
}

// stopHit reports whether the exit-side price has crossed the stop. The fill
// is assumed at the stop level itself, not the crossing price.
func (p *Position) stopHit(price float64) bool {
	return (price-p.trailing.StopLevel())*p.Side.Sign() <= 0
}

func (p *Position) targetHit(price float64) bool {
	return (price-p.TargetLevel)*p.Side.Sign() >= 0
}

// ObserveTick runs the trailing update and the stop/target checks for one
// tick. price must be the tradable exit-side price: bid for long, ask for
// short. The stop is checked before the target; on a tick where both are
// technically crossed the stop wins.
func (p *Position) ObserveTick(price float64, ts time.Time) *Exit {
	p.trailing.OnPrice(price)

	if p.stopHit(price) {
		return &Exit{Price: p.trailing.StopLevel(), Reason: p.stopReason(), Time: ts}
	}
	if p.targetHit(price) {
		return &Exit{Price: p.TargetLevel, Reason: model.ExitTakeProfit, Time: ts}
	}
	return nil
}

// ObserveBar resolves the bar-cadence exits for one completed bar, in
// priority order: max-hold, stop (trailing recomputed from the bar's
// favorable extreme first), take-profit, then end-of-day when isEOD.
// Bid/ask sides are derived from the bar by half-applying spreadPts.
//
// The stop-before-target ordering is the documented conservative assumption
// for bars whose intrabar path is unknown: when both levels fall inside the
// bar's range, the worse outcome is assumed to happen first.
func (p *Position) ObserveBar(bar model.Bar, spreadPts float64, isEOD bool) *Exit {
	half := spreadPts / 2.0

	// Tradable prices on the exit side. A long exits at bid (mid - spread/2),
	// a short at ask (mid + spread/2).
	var favorable, adverse, refClose float64
	if p.Side == model.SideLong {
		favorable = bar.High - half
		adverse = bar.Low - half
		refClose = bar.Close - half
	} else {
		favorable = bar.Low + half
		adverse = bar.High + half
		refClose = bar.Close + half
	}

	if p.MaxHoldExceeded() {
		return &Exit{Price: refClose, Reason: model.ExitMaxHoldDays, Time: bar.Timestamp}
	}

	p.trailing.OnPrice(favorable)

	if p.stopHit(adverse) {
		return &Exit{Price: p.trailing.StopLevel(), Reason: p.stopReason(), Time: bar.Timestamp}
	}
	if p.targetHit(favorable) {
		return &Exit{Price: p.TargetLevel, Reason: model.ExitTakeProfit, Time: bar.Timestamp}
	}
	if isEOD && p.cfg.ForceEODExit {
		return &Exit{Price: refClose, Reason: model.ExitEndOfDay, Time: bar.Timestamp}
	}
	return nil
}

func (p *Position) stopReason() model.ExitReason {
	if p.trailing.Active() {
		return model.ExitTrailingStop
	}
	return model.ExitStopLoss
}

// Close converts the position into its ClosedTrade record. Gross P&L is
// directional points; the accrued overnight charge is deducted before
// converting to account currency.
func (p *Position) Close(exit Exit, sizePerPoint float64) model.ClosedTrade {
	gross := (exit.Price - p.EntryPrice) * p.Side.Sign()
	net := gross - p.OvernightPts

	return model.ClosedTrade{
		Market:        p.Market,
		Side:          string(p.Side),
		EntryTime:     p.EntryTime,
		EntryPrice:    p.EntryPrice,
		ExitTime:      exit.Time,
		ExitPrice:     exit.Price,
		ExitReason:    string(exit.Reason),
		TakeProfitPts: p.cfg.TakeProfitPts,
		StopLossPts:   p.cfg.StopLossPts,
		GrossPts:      gross,
		OvernightPts:  p.OvernightPts,
		NetPts:        net,
		NetCurrency:   net * sizePerPoint,
		BarsHeld:      p.BarsHeld,
		DaysHeld:      p.DaysHeld,
	}
}

// Snapshot produces the point-in-time copy handed to the persistence layer
// at open/close transitions.
func (p *Position) Snapshot() model.PositionSnapshot {
	return model.PositionSnapshot{
		DealID:         p.DealID,
		Market:         p.Market,
		Side:           p.Side,
		EntryPrice:     p.EntryPrice,
		EntryTime:      p.EntryTime,
		StopLevel:      p.trailing.StopLevel(),
		TargetLevel:    p.TargetLevel,
		ExtremePrice:   p.trailing.Extreme(),
		TrailingActive: p.trailing.Active(),
		DaysHeld:       p.DaysHeld,
		OvernightPts:   p.OvernightPts,
	}
}

// Restore rebuilds an open position from a persisted snapshot plus the
// current market price on the exit side. The trailing state is recovered by
// the trailing engine's own restore rules.
func Restore(snap model.PositionSnapshot, currentPrice float64, cfg config.SideConfig, entryDate time.Time) *Position {
	p := &Position{
		Side:         snap.Side,
		DealID:       snap.DealID,
		Market:       snap.Market,
		EntryPrice:   snap.EntryPrice,
		EntryTime:    snap.EntryTime,
		EntryDate:    entryDate,
		TargetLevel:  snap.TargetLevel,
		DaysHeld:     snap.DaysHeld,
		OvernightPts: snap.OvernightPts,
		cfg:          cfg,
	}
	p.trailing = trailing.Restore(snap, currentPrice, cfg.UseTrailing, cfg.TrailingActivationPts, cfg.TrailingDistancePts)
	return p
}
