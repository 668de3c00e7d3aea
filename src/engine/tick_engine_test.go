package engine

import (
	"errors"
	"testing"
	"time"

	"reboundtrader/src/model"
)

func tickAt(hour, minute, second int, bid, ask float64) model.Tick {
	return model.Tick{
		Timestamp: time.Date(2024, 3, 4, hour, minute, second, 0, time.UTC),
		Bid:       bid,
		Ask:       ask,
	}
}

func TestTickEngineFillsAtQuotedPrices(t *testing.T) {
	eng, err := NewTickEngine(testStrategy())
	if err != nil {
		t.Fatalf("failed to build engine: %v", err)
	}

	bars := append(signalBars(),
		barAt(12, 0, 101, 104, 100.5, 102),
	)
	ticks := []model.Tick{
		tickAt(12, 0, 5, 101, 101.5),
		tickAt(12, 10, 0, 103.6, 104.1),
	}

	result, err := eng.Run(bars, ticks)
	if err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}

	if len(result.Trades) != 1 {
		t.Fatalf("expected exactly 1 trade, got %d", len(result.Trades))
	}
	trade := result.Trades[0]

	// Long entry lifts the ask of the first quote in the entry bar's window.
	if trade.EntryPrice != 101.5 {
		t.Fatalf("entry price = %v, want first ask 101.5", trade.EntryPrice)
	}
	if !trade.EntryTime.Equal(time.Date(2024, 3, 4, 12, 0, 5, 0, time.UTC)) {
		t.Fatalf("entry time = %s, want the first window tick", trade.EntryTime)
	}
	// Bid crossed the 103.5 target; the fill books at the level, not the quote.
	if trade.ExitReason != "TP" || trade.ExitPrice != 103.5 {
		t.Fatalf("expected TP at 103.5, got %s at %v", trade.ExitReason, trade.ExitPrice)
	}
	if !trade.ExitTime.Equal(time.Date(2024, 3, 4, 12, 10, 0, 0, time.UTC)) {
		t.Fatalf("exit time = %s, want the crossing tick", trade.ExitTime)
	}
}

func TestTickEngineStopFillsAtStopLevel(t *testing.T) {
	eng, err := NewTickEngine(testStrategy())
	if err != nil {
		t.Fatalf("failed to build engine: %v", err)
	}

	bars := append(signalBars(),
		barAt(12, 0, 101, 101.5, 90, 91),
	)
	ticks := []model.Tick{
		tickAt(12, 0, 5, 101, 101.5), // entry 101.5, stop 91.5
		tickAt(12, 5, 0, 91, 91.5),
	}

	result, err := eng.Run(bars, ticks)
	if err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}

	if len(result.Trades) != 1 {
		t.Fatalf("expected exactly 1 trade, got %d", len(result.Trades))
	}
	trade := result.Trades[0]
	if trade.ExitReason != "SL" || trade.ExitPrice != 91.5 {
		t.Fatalf("expected SL at 91.5, got %s at %v", trade.ExitReason, trade.ExitPrice)
	}
	if trade.NetCurrency != -10.0 {
		t.Fatalf("net = %v, want -10", trade.NetCurrency)
	}
}

func TestTickEngineEmptyWindowFallsBackToBarPrices(t *testing.T) {
	eng, err := NewTickEngine(testStrategy())
	if err != nil {
		t.Fatalf("failed to build engine: %v", err)
	}

	bars := append(signalBars(),
		barAt(12, 0, 101, 101.5, 100.5, 101),
		barAt(16, 30, 101, 101.5, 100.5, 101.2),
	)

	result, err := eng.Run(bars, nil)
	if err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}

	if len(result.Trades) != 1 {
		t.Fatalf("expected exactly 1 trade, got %d", len(result.Trades))
	}
	trade := result.Trades[0]
	if trade.EntryPrice != 101.25 {
		t.Fatalf("entry price = %v, want open + spread/2 = 101.25", trade.EntryPrice)
	}
	// No quote to close against, so EOD books at the raw bar close.
	if trade.ExitReason != "EOD" || trade.ExitPrice != 101.2 {
		t.Fatalf("expected EOD at 101.2, got %s at %v", trade.ExitReason, trade.ExitPrice)
	}
}

func TestTickEngineRejectsOutOfOrderTicks(t *testing.T) {
	eng, err := NewTickEngine(testStrategy())
	if err != nil {
		t.Fatalf("failed to build engine: %v", err)
	}

	ticks := []model.Tick{
		tickAt(12, 10, 0, 100, 100.5),
		tickAt(12, 0, 0, 100, 100.5),
	}

	_, err = eng.Run(signalBars(), ticks)
	var oooErr *OutOfOrderError
	if !errors.As(err, &oooErr) {
		t.Fatalf("expected OutOfOrderError, got %v", err)
	}
	if oooErr.Index != 1 {
		t.Fatalf("offending index = %d, want 1", oooErr.Index)
	}
}
