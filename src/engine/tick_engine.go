package engine

import (
	"math"
	"time"

	"github.com/google/uuid"
	logger "github.com/sirupsen/logrus"

	"reboundtrader/src/config"
	"reboundtrader/src/indicators"
	"reboundtrader/src/margin"
	"reboundtrader/src/model"
	"reboundtrader/src/position"
	"reboundtrader/src/sessionclock"
)

// TickEngine replays a tick series against a completed-bar series from the
// same period. Signals come from bar closes, exactly as in BarEngine; fills
// and exits use the quoted bid/ask of every tick inside the bar's window, so
// trailing stops and intrabar touches resolve at tick granularity.
type TickEngine struct {
	cfg       *config.Strategy
	clock     *sessionclock.Clock
	validator *margin.Validator
	log       *logger.Entry
	runID     string
}

func NewTickEngine(cfg *config.Strategy) (*TickEngine, error) {
	clock, err := sessionclock.New(cfg.TZ, cfg.SessionOpen, cfg.SessionClose, cfg.NoTradeFirstMinutes)
	if err != nil {
		return nil, err
	}
	runID := uuid.NewString()
	return &TickEngine{
		cfg:       cfg,
		clock:     clock,
		validator: margin.NewValidator(cfg.StartingCapital, cfg.MarginRatePct, cfg.SizePerPoint),
		log:       logger.WithField("component", "tick_engine").WithField("run_id", runID),
		runID:     runID,
	}, nil
}

// Run replays ticks bucketed into bar windows. Both series must be
// timestamp-ordered or the run aborts with an OutOfOrderError.
func (e *TickEngine) Run(bars []model.Bar, ticks []model.Tick) (*Result, error) {
	if err := checkBarsOrdered(bars); err != nil {
		return nil, err
	}
	if err := checkTicksOrdered(ticks); err != nil {
		return nil, err
	}

	session := make([]model.Bar, 0, len(bars))
	for _, b := range bars {
		if e.clock.InSession(b.Timestamp) {
			session = append(session, b)
		}
	}
	e.log.WithFields(logger.Fields{
		"bars":    len(bars),
		"session": len(session),
		"ticks":   len(ticks),
		"mode":    e.cfg.Mode,
	}).Info("starting tick replay")

	closes := make([]float64, len(session))
	for i, b := range session {
		closes[i] = b.Close
	}
	rsi := indicators.RSI(closes, e.cfg.RSIPeriod)

	sides := activeSides(e.cfg)
	barDur := time.Duration(e.cfg.TimeframeMinutes) * time.Minute
	result := &Result{RunID: e.runID}

	cursor := 0
	var currentDate time.Time
	for i, bar := range session {
		date := e.clock.TradingDate(bar.Timestamp)
		if currentDate.IsZero() || !date.Equal(currentDate) {
			currentDate = date
			for _, s := range sides {
				if s.pos == nil {
					s.tracker.Reset()
					s.pending = false
				}
			}
		}

		if math.IsNaN(rsi[i]) {
			continue
		}

		// The tick cursor only ever advances; ticks that fall between
		// session bars are dropped with the window boundary.
		windowEnd := bar.Timestamp.Add(barDur)
		for cursor < len(ticks) && ticks[cursor].Timestamp.Before(bar.Timestamp) {
			cursor++
		}
		start := cursor
		for cursor < len(ticks) && ticks[cursor].Timestamp.Before(windowEnd) {
			cursor++
		}
		window := ticks[start:cursor]

		entryAllowed := e.clock.EntryAllowed(bar.Timestamp)
		isEOD := e.clock.IsEODBar(bar.Timestamp, barDur)

		for _, s := range sides {
			if s.pending && s.pos == nil {
				e.executeEntry(s, sides, bar, window, date, result)
			} else if trig := s.tracker.Observe(rsi[i], entryAllowed, s.pos != nil); trig {
				s.pending = true
			}

			if s.pos == nil {
				continue
			}
			s.pos.MarkBar()
			s.pos.AccrueOvernight(date, e.cfg.OvernightRatePct)

			if s.pos.MaxHoldExceeded() {
				e.settle(s, position.Exit{
					Price:  bar.Close,
					Reason: model.ExitMaxHoldDays,
					Time:   bar.Timestamp,
				}, result)
				continue
			}

			for _, tk := range window {
				if exit := s.pos.ObserveTick(exitSidePrice(s.side, tk), tk.Timestamp); exit != nil {
					e.settle(s, *exit, result)
					break
				}
			}

			if s.pos != nil && isEOD && s.cfg.ForceEODExit {
				price, ts := bar.Close, bar.Timestamp
				if len(window) > 0 {
					last := window[len(window)-1]
					price, ts = exitSidePrice(s.side, last), last.Timestamp
				}
				e.settle(s, position.Exit{Price: price, Reason: model.ExitEndOfDay, Time: ts}, result)
			}
		}
	}

	result.Margin = e.validator.Status(openEntryPrices(sides))
	e.log.WithFields(logger.Fields{
		"trades":  len(result.Trades),
		"blocked": len(result.Blocked),
	}).Info("tick replay complete")

	return result, nil
}

// executeEntry fills at the first quote of the bar window when one exists:
// ask for long, bid for short. A window with no ticks falls back to the bar
// open plus half the configured spread.
func (e *TickEngine) executeEntry(s *sideState, sides []*sideState, bar model.Bar, window []model.Tick, date time.Time, result *Result) {
	s.pending = false

	var entryPrice float64
	entryTime := bar.Timestamp
	if len(window) > 0 {
		first := window[0]
		entryTime = first.Timestamp
		if s.side == model.SideLong {
			entryPrice = first.Ask
		} else {
			entryPrice = first.Bid
		}
	} else {
		entryPrice = bar.Open + (e.cfg.SpreadPts/2.0)*s.side.Sign()
	}

	allowed, reason := e.validator.CanOpen(entryPrice, openEntryPrices(sides))
	if !allowed {
		result.Blocked = append(result.Blocked, model.BlockedTrade{
			Timestamp:  entryTime,
			Side:       s.side,
			EntryPrice: entryPrice,
			Reason:     reason,
		})
		e.log.WithFields(logger.Fields{
			"side":   s.side,
			"price":  entryPrice,
			"reason": reason,
		}).Warn("entry blocked by margin")
		return
	}

	s.pos = position.Open(s.side, uuid.NewString(), e.cfg.Market, entryPrice, entryTime, date, s.cfg)
	e.log.WithFields(logger.Fields{
		"side":   s.side,
		"price":  entryPrice,
		"stop":   s.pos.StopLevel(),
		"target": s.pos.TargetLevel,
		"time":   entryTime,
	}).Debug("position opened")
}

func (e *TickEngine) settle(s *sideState, exit position.Exit, result *Result) {
	trade := s.pos.Close(exit, e.cfg.SizePerPoint)
	trade.RunID = e.runID
	e.validator.OnTradeClosed(trade.NetCurrency)
	result.Trades = append(result.Trades, trade)

	e.log.WithFields(logger.Fields{
		"side":   s.side,
		"reason": trade.ExitReason,
		"price":  trade.ExitPrice,
		"pnl":    trade.NetPts,
	}).Debug("position closed")
	s.pos = nil
}

// exitSidePrice is the quote a resting position would actually be closed at:
// a long sells into the bid, a short buys back at the ask.
func exitSidePrice(side model.Side, tk model.Tick) float64 {
	if side == model.SideLong {
		return tk.Bid
	}
	return tk.Ask
}
