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

// BarEngine replays a completed-bar series through the strategy. It is
// single-threaded and strictly sequential: decisions at bar i use only data
// at or before bar i, and entries triggered at bar i fill at bar i+1's open.
type BarEngine struct {
	cfg       *config.Strategy
	clock     *sessionclock.Clock
	validator *margin.Validator
	log       *logger.Entry
	runID     string
}

func NewBarEngine(cfg *config.Strategy) (*BarEngine, error) {
	clock, err := sessionclock.New(cfg.TZ, cfg.SessionOpen, cfg.SessionClose, cfg.NoTradeFirstMinutes)
	if err != nil {
		return nil, err
	}
	runID := uuid.NewString()
	return &BarEngine{
		cfg:       cfg,
		clock:     clock,
		validator: margin.NewValidator(cfg.StartingCapital, cfg.MarginRatePct, cfg.SizePerPoint),
		log:       logger.WithField("component", "bar_engine").WithField("run_id", runID),
		runID:     runID,
	}, nil
}

func (e *BarEngine) Clock() *sessionclock.Clock {
	return e.clock
}

// Run replays the ordered bar series and returns the closed-trade ledger.
// Input must be timestamp-ordered; a regression aborts the run with an
// OutOfOrderError naming the offending index.
func (e *BarEngine) Run(bars []model.Bar) (*Result, error) {
	if err := checkBarsOrdered(bars); err != nil {
		return nil, err
	}

	session := e.filterSession(bars)
	e.log.WithFields(logger.Fields{
		"bars":    len(bars),
		"session": len(session),
		"mode":    e.cfg.Mode,
	}).Info("starting bar replay")

	closes := make([]float64, len(session))
	for i, b := range session {
		closes[i] = b.Close
	}
	rsi := indicators.RSI(closes, e.cfg.RSIPeriod)

	sides := activeSides(e.cfg)
	barDur := time.Duration(e.cfg.TimeframeMinutes) * time.Minute
	result := &Result{RunID: e.runID}

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

		// Indicator warm-up: no signal possible yet, not a fault.
		if math.IsNaN(rsi[i]) {
			continue
		}

		entryAllowed := e.clock.EntryAllowed(bar.Timestamp)
		isEOD := e.clock.IsEODBar(bar.Timestamp, barDur)

		for _, s := range sides {
			if s.pending && s.pos == nil {
				e.executeEntry(s, sides, bar, date, result)
			} else if trig := s.tracker.Observe(rsi[i], entryAllowed, s.pos != nil); trig {
				s.pending = true
			}

			if s.pos == nil {
				continue
			}
			s.pos.MarkBar()
			s.pos.AccrueOvernight(date, e.cfg.OvernightRatePct)

			if exit := s.pos.ObserveBar(bar, e.cfg.SpreadPts, isEOD); exit != nil {
				e.settle(s, *exit, result)
			}
		}
	}

	result.Margin = e.validator.Status(openEntryPrices(sides))
	e.log.WithFields(logger.Fields{
		"trades":  len(result.Trades),
		"blocked": len(result.Blocked),
	}).Info("bar replay complete")

	return result, nil
}

// executeEntry fills a previously triggered signal at this bar's open on the
// entry side of the spread: ask for long, bid for short. The margin check
// happens strictly before the position is constructed.
func (e *BarEngine) executeEntry(s *sideState, sides []*sideState, bar model.Bar, date time.Time, result *Result) {
	s.pending = false

	half := e.cfg.SpreadPts / 2.0
	entryPrice := bar.Open + half*s.side.Sign()

	allowed, reason := e.validator.CanOpen(entryPrice, openEntryPrices(sides))
	if !allowed {
		result.Blocked = append(result.Blocked, model.BlockedTrade{
			Timestamp:  bar.Timestamp,
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

	s.pos = position.Open(s.side, uuid.NewString(), e.cfg.Market, entryPrice, bar.Timestamp, date, s.cfg)
	e.log.WithFields(logger.Fields{
		"side":   s.side,
		"price":  entryPrice,
		"stop":   s.pos.StopLevel(),
		"target": s.pos.TargetLevel,
		"time":   bar.Timestamp,
	}).Debug("position opened")
}

func (e *BarEngine) settle(s *sideState, exit position.Exit, result *Result) {
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

func (e *BarEngine) filterSession(bars []model.Bar) []model.Bar {
	session := make([]model.Bar, 0, len(bars))
	for _, b := range bars {
		if e.clock.InSession(b.Timestamp) {
			session = append(session, b)
		}
	}
	return session
}
