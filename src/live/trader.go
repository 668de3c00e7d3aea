package live

import (
	"context"
	"sync"
	"time"

	logger "github.com/sirupsen/logrus"

	"reboundtrader/src/broker"
	"reboundtrader/src/candles"
	"reboundtrader/src/config"
	"reboundtrader/src/indicators"
	"reboundtrader/src/margin"
	"reboundtrader/src/model"
	"reboundtrader/src/position"
	"reboundtrader/src/repository"
	"reboundtrader/src/sessionclock"
	"reboundtrader/src/signal"
	"reboundtrader/src/spread"
	"reboundtrader/src/statestore"
	"reboundtrader/src/stream"
)

// liveSide carries one direction's trading state.
type liveSide struct {
	side    model.Side
	cfg     config.SideConfig
	tracker *signal.Tracker
	pending bool
	pos     *position.Position
}

// Trader runs the strategy against a live quote stream: candles are built
// from ticks, signals fire on completed candles, and exits resolve per tick.
// Position opens and closes go through the dealing client; the snapshot
// store lets a restarted process resume mid-position.
type Trader struct {
	strat   *config.Strategy
	cfg     Config
	clock   *sessionclock.Clock
	broker  *broker.Client
	store   *statestore.Store
	spread  *spread.Monitor
	repo    *repository.TradeRepository
	log     *logger.Entry
	builder *candles.Builder

	mu          sync.Mutex
	sides       []*liveSide
	validator   *margin.Validator
	closes      []float64
	currentDate time.Time
	lastTick    model.Tick
	restored    *statestore.State // applied on first tick, then nil
}

func NewTrader(strat *config.Strategy, cfg Config, brk *broker.Client, repo *repository.TradeRepository) (*Trader, error) {
	clock, err := sessionclock.New(strat.TZ, strat.SessionOpen, strat.SessionClose, strat.NoTradeFirstMinutes)
	if err != nil {
		return nil, err
	}

	t := &Trader{
		strat:     strat,
		cfg:       cfg,
		clock:     clock,
		broker:    brk,
		store:     statestore.NewStore(cfg.SnapshotPath, cfg.SnapshotMaxAge),
		spread:    spread.NewMonitor(cfg.MaxSpreadPts),
		repo:      repo,
		validator: margin.NewValidator(strat.StartingCapital, strat.MarginRatePct, strat.SizePerPoint),
		log:       logger.WithField("component", "live_trader").WithField("market", strat.Market),
	}

	if sc, on := strat.SideFor(true); on {
		t.sides = append(t.sides, &liveSide{
			side:    model.SideLong,
			cfg:     sc,
			tracker: signal.NewTracker(model.SideLong, sc.Threshold),
		})
	}
	if sc, on := strat.SideFor(false); on {
		t.sides = append(t.sides, &liveSide{
			side:    model.SideShort,
			cfg:     sc,
			tracker: signal.NewTracker(model.SideShort, sc.Threshold),
		})
	}

	t.builder = candles.NewBuilder(time.Duration(strat.TimeframeMinutes)*time.Minute, t.onCandle)
	return t, nil
}

// Run blocks until ctx is cancelled.
func (t *Trader) Run(ctx context.Context) error {
	if err := t.broker.Login(ctx); err != nil {
		return err
	}
	t.loadSnapshot()

	go t.heartbeatLoop(ctx)
	go t.reconcileLoop(ctx)

	client := stream.NewClient(t.cfg.StreamURL, t.strat.Market, t.onTick)
	return client.Run(ctx)
}

// Status is served by the status endpoint.
func (t *Trader) Status() interface{} {
	t.mu.Lock()
	defer t.mu.Unlock()

	type openPos struct {
		Side       model.Side `json:"side"`
		DealID     string     `json:"deal_id"`
		EntryPrice float64    `json:"entry_price"`
		StopLevel  float64    `json:"stop_level"`
		DaysHeld   int        `json:"days_held"`
	}

	var open []openPos
	for _, s := range t.sides {
		if s.pos != nil {
			open = append(open, openPos{
				Side:       s.pos.Side,
				DealID:     s.pos.DealID,
				EntryPrice: s.pos.EntryPrice,
				StopLevel:  s.pos.StopLevel(),
				DaysHeld:   s.pos.DaysHeld,
			})
		}
	}

	return struct {
		Market    string        `json:"market"`
		Margin    margin.Status `json:"margin"`
		Spread    float64       `json:"spread"`
		LastTick  time.Time     `json:"last_tick"`
		Positions []openPos     `json:"positions"`
	}{
		Market:    t.strat.Market,
		Margin:    t.validator.Status(t.openEntryPrices()),
		Spread:    t.spread.Current(),
		LastTick:  t.lastTick.Timestamp,
		Positions: open,
	}
}

func (t *Trader) onTick(tk model.Tick) {
	t.spread.Observe(tk)

	t.mu.Lock()
	defer t.mu.Unlock()

	t.lastTick = tk
	t.applyRestore(tk)

	if t.clock.InSession(tk.Timestamp) {
		t.builder.OnTick(tk)
	}

	for _, s := range t.sides {
		if s.pending && s.pos == nil {
			t.tryOpen(s, tk)
		}

		if s.pos == nil {
			continue
		}

		price := tk.Bid
		if s.side == model.SideShort {
			price = tk.Ask
		}

		prevStop := s.pos.StopLevel()
		exit := s.pos.ObserveTick(price, tk.Timestamp)
		if exit != nil {
			t.closeAtBroker(s, *exit)
			continue
		}
		if stop := s.pos.StopLevel(); stop != prevStop {
			if err := t.broker.UpdateStop(context.Background(), s.pos.DealID, stop); err != nil {
				t.log.WithError(err).WithField("deal_id", s.pos.DealID).Error("failed to move stop")
			}
		}
	}
}

// onCandle runs the signal logic once per completed candle, mirroring how
// the replay engines observe one RSI value per bar.
func (t *Trader) onCandle(bar model.Bar) {
	date := t.clock.TradingDate(bar.Timestamp)
	if t.currentDate.IsZero() || !date.Equal(t.currentDate) {
		t.currentDate = date
		for _, s := range t.sides {
			if s.pos == nil {
				s.tracker.Reset()
				s.pending = false
			}
		}
	}

	t.closes = append(t.closes, bar.Close)
	if limit := t.strat.RSIPeriod*10 + 50; len(t.closes) > limit {
		t.closes = t.closes[len(t.closes)-limit:]
	}

	rsiSeries := indicators.RSI(t.closes, t.strat.RSIPeriod)
	rsi := rsiSeries[len(rsiSeries)-1]

	entryAllowed := t.clock.EntryAllowed(bar.Timestamp) && !t.spread.TooWide()
	barDur := time.Duration(t.strat.TimeframeMinutes) * time.Minute
	isEOD := t.clock.IsEODBar(bar.Timestamp, barDur)

	for _, s := range t.sides {
		if trig := s.tracker.Observe(rsi, entryAllowed, s.pos != nil); trig {
			s.pending = true
			t.log.WithFields(logger.Fields{
				"side": s.side,
				"rsi":  rsi,
			}).Info("entry signal")
		}

		if s.pos == nil {
			continue
		}
		s.pos.MarkBar()
		s.pos.AccrueOvernight(date, t.strat.OvernightRatePct)

		if s.pos.MaxHoldExceeded() {
			t.closeAtBroker(s, position.Exit{
				Price:  t.exitPrice(s.side),
				Reason: model.ExitMaxHoldDays,
				Time:   bar.Timestamp,
			})
			continue
		}
		if isEOD && s.cfg.ForceEODExit {
			t.closeAtBroker(s, position.Exit{
				Price:  t.exitPrice(s.side),
				Reason: model.ExitEndOfDay,
				Time:   bar.Timestamp,
			})
		}
	}
}

// tryOpen executes a pending signal at the current quote.
func (t *Trader) tryOpen(s *liveSide, tk model.Tick) {
	if !t.clock.EntryAllowed(tk.Timestamp) || t.spread.TooWide() {
		s.pending = false
		return
	}
	s.pending = false

	entryPrice := tk.Ask
	if s.side == model.SideShort {
		entryPrice = tk.Bid
	}

	allowed, reason := t.validator.CanOpen(entryPrice, t.openEntryPrices())
	if !allowed {
		t.log.WithFields(logger.Fields{
			"side":   s.side,
			"price":  entryPrice,
			"reason": reason,
		}).Warn("entry blocked by margin")
		return
	}

	sign := s.side.Sign()
	stopLevel := entryPrice - s.cfg.StopLossPts*sign
	limitLevel := entryPrice + s.cfg.TakeProfitPts*sign

	deal, err := t.broker.OpenPosition(context.Background(), t.strat.Market, s.side, t.strat.SizePerPoint, stopLevel, limitLevel)
	if err != nil {
		t.log.WithError(err).WithField("side", s.side).Error("failed to open position")
		return
	}

	date := t.clock.TradingDate(tk.Timestamp)
	s.pos = position.Open(s.side, deal.DealID, t.strat.Market, entryPrice, tk.Timestamp, date, s.cfg)
	t.log.WithFields(logger.Fields{
		"side":    s.side,
		"deal_id": deal.DealID,
		"price":   entryPrice,
		"stop":    stopLevel,
		"target":  limitLevel,
	}).Info("position opened")

	t.saveSnapshot()
}

// closeAtBroker closes the deal and settles the ledger. Errors from the
// gateway are logged but the local close still proceeds: the broker-side
// stop and limit levels protect the position if the close request failed.
func (t *Trader) closeAtBroker(s *liveSide, exit position.Exit) {
	if _, err := t.broker.ClosePosition(context.Background(), s.pos.DealID, s.side, t.strat.SizePerPoint); err != nil {
		t.log.WithError(err).WithField("deal_id", s.pos.DealID).Error("failed to close position at broker")
	}
	t.settle(s, exit)
}

// settle books the closed trade locally. Safe to call for positions already
// flat at the gateway; reconciliation relies on that.
func (t *Trader) settle(s *liveSide, exit position.Exit) {
	trade := s.pos.Close(exit, t.strat.SizePerPoint)
	t.validator.OnTradeClosed(trade.NetCurrency)
	s.pos = nil

	t.log.WithFields(logger.Fields{
		"side":   trade.Side,
		"reason": trade.ExitReason,
		"price":  trade.ExitPrice,
		"pnl":    trade.NetPts,
	}).Info("position closed")

	if t.repo != nil && t.cfg.PersistTrades {
		if err := t.repo.Create(context.Background(), &trade); err != nil {
			t.log.WithError(err).Error("failed to persist closed trade")
		}
	}
	t.saveSnapshot()
}

// reconcileLoop detects deals the gateway closed on its own, usually a
// broker-side stop, and books them locally so both books agree.
func (t *Trader) reconcileLoop(ctx context.Context) {
	ticker := time.NewTicker(t.cfg.ReconcilePeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.reconcile(ctx)
		}
	}
}

func (t *Trader) reconcile(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, s := range t.sides {
		if s.pos == nil {
			continue
		}
		open, err := t.broker.IsOpen(ctx, s.pos.DealID)
		if err != nil {
			t.log.WithError(err).WithField("deal_id", s.pos.DealID).Warn("reconcile lookup failed")
			continue
		}
		if open {
			continue
		}

		reason := model.ExitStopLoss
		if s.pos.TrailingActive() {
			reason = model.ExitTrailingStop
		}
		t.log.WithFields(logger.Fields{
			"deal_id": s.pos.DealID,
			"reason":  reason,
		}).Warn("deal closed at gateway, settling locally")

		t.settle(s, position.Exit{
			Price:  s.pos.StopLevel(),
			Reason: reason,
			Time:   time.Now().UTC(),
		})
	}
}

func (t *Trader) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(t.cfg.HeartbeatPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.mu.Lock()
			open := len(t.openEntryPrices())
			balance := t.validator.Balance()
			last := t.lastTick.Timestamp
			t.mu.Unlock()

			t.log.WithFields(logger.Fields{
				"balance":   balance,
				"positions": open,
				"last_tick": last,
				"spread":    t.spread.Current(),
			}).Info("heartbeat")
		}
	}
}

// loadSnapshot stages a saved state for restoration. The actual position
// rebuild waits for the first tick, which supplies the price the trailing
// state is conservatively recomputed from.
func (t *Trader) loadSnapshot() {
	state, err := t.store.Load(t.strat.Market)
	if err != nil {
		if err == statestore.ErrNoSnapshot {
			t.log.Info("no snapshot, starting flat")
		} else {
			t.log.WithError(err).Warn("snapshot unusable, starting flat")
		}
		return
	}

	t.mu.Lock()
	t.restored = state
	t.validator.OnTradeClosed(state.RealizedPnL)
	t.mu.Unlock()

	t.log.WithField("positions", len(state.Positions)).Info("snapshot staged for restore")
}

// applyRestore rebuilds snapshotted positions once the first quote arrives.
// Caller holds t.mu.
func (t *Trader) applyRestore(tk model.Tick) {
	if t.restored == nil {
		return
	}
	state := t.restored
	t.restored = nil

	for _, snap := range state.Positions {
		for _, s := range t.sides {
			if s.side != snap.Side || s.pos != nil {
				continue
			}
			price := tk.Bid
			if s.side == model.SideShort {
				price = tk.Ask
			}
			entryDate := t.clock.TradingDate(snap.EntryTime)
			s.pos = position.Restore(snap, price, s.cfg, entryDate)
			t.log.WithFields(logger.Fields{
				"side":    s.side,
				"deal_id": snap.DealID,
				"stop":    s.pos.StopLevel(),
			}).Info("position restored from snapshot")
		}
	}
}

// saveSnapshot persists open positions and realized PnL. Caller holds t.mu.
func (t *Trader) saveSnapshot() {
	state := statestore.State{
		Market:      t.strat.Market,
		RealizedPnL: t.validator.Balance().InexactFloat64() - t.strat.StartingCapital,
	}
	for _, s := range t.sides {
		if s.pos != nil {
			state.Positions = append(state.Positions, s.pos.Snapshot())
		}
	}

	if err := t.store.Save(state); err != nil {
		t.log.WithError(err).Error("failed to save snapshot")
	}
}

func (t *Trader) openEntryPrices() []float64 {
	var prices []float64
	for _, s := range t.sides {
		if s.pos != nil {
			prices = append(prices, s.pos.EntryPrice)
		}
	}
	return prices
}

func (t *Trader) exitPrice(side model.Side) float64 {
	if side == model.SideShort {
		return t.lastTick.Ask
	}
	return t.lastTick.Bid
}
