package engine

import (
	"errors"
	"testing"
	"time"

	"reboundtrader/src/config"
	"reboundtrader/src/model"
)

func testStrategy() *config.Strategy {
	return &config.Strategy{
		Market:           "US500",
		Mode:             config.ModeLong,
		RSIPeriod:        2,
		TimeframeMinutes: 30,
		SpreadPts:        0.5,
		SizePerPoint:     1.0,
		MarginRatePct:    5.0,
		StartingCapital:  100000.0,
		TZ:               "UTC",
		SessionOpen:      "09:00",
		SessionClose:     "17:00",
		Long: config.SideConfig{
			Enabled:       true,
			Threshold:     5.0,
			TakeProfitPts: 2.0,
			StopLossPts:   10.0,
			ForceEODExit:  true,
		},
	}
}

func barAt(hour, minute int, o, h, l, c float64) model.Bar {
	return model.Bar{
		Timestamp: time.Date(2024, 3, 4, hour, minute, 0, 0, time.UTC),
		Open:      o, High: h, Low: l, Close: c,
	}
}

// signalBars produce RSI(2) = 0 at 11:00 (setup) and 75 at 11:30 (trigger).
func signalBars() []model.Bar {
	return []model.Bar{
		barAt(10, 0, 100, 100.5, 99.5, 100),
		barAt(10, 30, 100, 100.2, 98.8, 99),
		barAt(11, 0, 99, 99.2, 97.8, 98),
		barAt(11, 30, 98, 101.5, 98, 101),
	}
}

func TestBarEngineEntryOnNextBarOpen(t *testing.T) {
	eng, err := NewBarEngine(testStrategy())
	if err != nil {
		t.Fatalf("failed to build engine: %v", err)
	}

	bars := append(signalBars(),
		barAt(12, 0, 101, 104, 100.5, 102),
	)

	result, err := eng.Run(bars)
	if err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}

	if len(result.Trades) != 1 {
		t.Fatalf("expected exactly 1 trade, got %d", len(result.Trades))
	}
	trade := result.Trades[0]

	// Fill at the bar after the trigger, on the ask side of the spread.
	if !trade.EntryTime.Equal(time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("entry time = %s, want the 12:00 bar", trade.EntryTime)
	}
	if trade.EntryPrice != 101.25 {
		t.Fatalf("entry price = %v, want open + spread/2 = 101.25", trade.EntryPrice)
	}
	if trade.ExitReason != "TP" || trade.ExitPrice != 103.25 {
		t.Fatalf("expected TP at 103.25, got %s at %v", trade.ExitReason, trade.ExitPrice)
	}
	if trade.GrossPts != 2.0 {
		t.Fatalf("gross = %v, want 2", trade.GrossPts)
	}
	if trade.RunID != result.RunID {
		t.Fatal("trade must carry the run ID")
	}
}

func TestBarEngineEndOfDayFlat(t *testing.T) {
	strat := testStrategy()
	strat.Long.TakeProfitPts = 500
	strat.Long.StopLossPts = 500

	eng, err := NewBarEngine(strat)
	if err != nil {
		t.Fatalf("failed to build engine: %v", err)
	}

	bars := signalBars()
	for _, hm := range [][2]int{{12, 0}, {12, 30}, {13, 0}, {16, 30}} {
		bars = append(bars, barAt(hm[0], hm[1], 101, 101.5, 100.5, 101))
	}

	result, err := eng.Run(bars)
	if err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}

	if len(result.Trades) != 1 {
		t.Fatalf("expected the position to close at EOD, got %d trades", len(result.Trades))
	}
	trade := result.Trades[0]
	if trade.ExitReason != "EOD" {
		t.Fatalf("exit reason = %s, want EOD", trade.ExitReason)
	}
	if !trade.ExitTime.Equal(time.Date(2024, 3, 4, 16, 30, 0, 0, time.UTC)) {
		t.Fatalf("exit time = %s, want the session's last bar", trade.ExitTime)
	}
	if trade.ExitPrice != 100.75 {
		t.Fatalf("EOD exit = %v, want close - spread/2 = 100.75", trade.ExitPrice)
	}
}

func TestBarEngineMarginDenialIsRecordedNotFatal(t *testing.T) {
	strat := testStrategy()
	strat.StartingCapital = 1.0 // required margin ~5 against balance 1

	eng, err := NewBarEngine(strat)
	if err != nil {
		t.Fatalf("failed to build engine: %v", err)
	}

	bars := append(signalBars(),
		barAt(12, 0, 101, 104, 100.5, 102),
	)

	result, err := eng.Run(bars)
	if err != nil {
		t.Fatalf("margin denial must not abort the run: %v", err)
	}

	if len(result.Trades) != 0 {
		t.Fatalf("expected no trades, got %d", len(result.Trades))
	}
	if len(result.Blocked) != 1 {
		t.Fatalf("expected 1 blocked entry, got %d", len(result.Blocked))
	}
	blocked := result.Blocked[0]
	if blocked.Side != model.SideLong || blocked.EntryPrice != 101.25 {
		t.Fatalf("unexpected blocked record: %+v", blocked)
	}
	if blocked.Reason == "" {
		t.Fatal("blocked record must carry the denial reason")
	}
}

func TestBarEngineRejectsOutOfOrderSeries(t *testing.T) {
	eng, err := NewBarEngine(testStrategy())
	if err != nil {
		t.Fatalf("failed to build engine: %v", err)
	}

	bars := []model.Bar{
		barAt(11, 0, 100, 100, 100, 100),
		barAt(10, 30, 100, 100, 100, 100),
	}

	_, err = eng.Run(bars)
	var oooErr *OutOfOrderError
	if !errors.As(err, &oooErr) {
		t.Fatalf("expected OutOfOrderError, got %v", err)
	}
	if oooErr.Index != 1 {
		t.Fatalf("offending index = %d, want 1", oooErr.Index)
	}
}

func TestBarEngineIgnoresOutOfSessionBars(t *testing.T) {
	eng, err := NewBarEngine(testStrategy())
	if err != nil {
		t.Fatalf("failed to build engine: %v", err)
	}

	// A pre-open crash bar would fake an oversold setup if it were counted.
	bars := append([]model.Bar{barAt(8, 0, 100, 100, 50, 50)},
		barAt(10, 0, 100, 100.5, 99.5, 100),
		barAt(10, 30, 100, 100.6, 99.8, 100.5),
		barAt(11, 0, 100.5, 101, 100.2, 101),
	)

	result, err := eng.Run(bars)
	if err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}
	if len(result.Trades) != 0 || len(result.Blocked) != 0 {
		t.Fatalf("out-of-session bar leaked into the replay: %+v", result)
	}
}
