package engine

import (
	"fmt"
	"time"

	"reboundtrader/src/config"
	"reboundtrader/src/margin"
	"reboundtrader/src/model"
	"reboundtrader/src/position"
	"reboundtrader/src/signal"
)

// OutOfOrderError aborts a replay whose input series regresses in time. The
// no-look-ahead guarantee cannot hold over unordered data, so the run fails
// at the offending index instead of silently re-sorting.
type OutOfOrderError struct {
	Index    int
	Previous time.Time
	Current  time.Time
}

func (e *OutOfOrderError) Error() string {
	return fmt.Sprintf("price series out of order at index %d: %s precedes %s",
		e.Index, e.Current.Format(time.RFC3339), e.Previous.Format(time.RFC3339))
}

// Result is everything a replay produces: the append-only closed-trade
// ledger in close order, the margin-denied entry attempts, and the final
// account status.
type Result struct {
	RunID   string
	Trades  []model.ClosedTrade
	Blocked []model.BlockedTrade
	Margin  margin.Status
}

// sideState carries one direction's replay state. Long and short run through
// the same code path, parameterized by side.
type sideState struct {
	side    model.Side
	cfg     config.SideConfig
	tracker *signal.Tracker
	pending bool // trigger seen, entry executes on the next observation
	pos     *position.Position
}

func activeSides(cfg *config.Strategy) []*sideState {
	var sides []*sideState
	if sc, on := cfg.SideFor(true); on {
		sides = append(sides, &sideState{
			side:    model.SideLong,
			cfg:     sc,
			tracker: signal.NewTracker(model.SideLong, sc.Threshold),
		})
	}
	if sc, on := cfg.SideFor(false); on {
		sides = append(sides, &sideState{
			side:    model.SideShort,
			cfg:     sc,
			tracker: signal.NewTracker(model.SideShort, sc.Threshold),
		})
	}
	return sides
}

// openEntryPrices lists entry prices of positions currently open on any side.
func openEntryPrices(sides []*sideState) []float64 {
	var prices []float64
	for _, s := range sides {
		if s.pos != nil {
			prices = append(prices, s.pos.EntryPrice)
		}
	}
	return prices
}

func checkBarsOrdered(bars []model.Bar) error {
	for i := 1; i < len(bars); i++ {
		if bars[i].Timestamp.Before(bars[i-1].Timestamp) {
			return &OutOfOrderError{Index: i, Previous: bars[i-1].Timestamp, Current: bars[i].Timestamp}
		}
	}
	return nil
}

func checkTicksOrdered(ticks []model.Tick) error {
	for i := 1; i < len(ticks); i++ {
		if ticks[i].Timestamp.Before(ticks[i-1].Timestamp) {
			return &OutOfOrderError{Index: i, Previous: ticks[i-1].Timestamp, Current: ticks[i].Timestamp}
		}
	}
	return nil
}
