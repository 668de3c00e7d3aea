package candles

import (
	"testing"
	"time"

	"reboundtrader/src/model"
)

func tick(minute, second int, bid, ask float64) model.Tick {
	return model.Tick{
		Timestamp: time.Date(2024, 3, 4, 12, minute, second, 0, time.UTC),
		Bid:       bid,
		Ask:       ask,
	}
}

func TestBuilderEmitsOnIntervalRollover(t *testing.T) {
	var done []model.Bar
	b := NewBuilder(5*time.Minute, func(bar model.Bar) {
		done = append(done, bar)
	})

	// First interval: mids 100, 102, 99, 101.
	b.OnTick(tick(0, 10, 99.5, 100.5))
	b.OnTick(tick(1, 0, 101.5, 102.5))
	b.OnTick(tick(2, 0, 98.5, 99.5))
	b.OnTick(tick(4, 59, 100.5, 101.5))
	if len(done) != 0 {
		t.Fatalf("candle emitted before its interval closed: %+v", done)
	}

	// First tick of the next interval completes the previous candle.
	b.OnTick(tick(5, 1, 101, 102))
	if len(done) != 1 {
		t.Fatalf("expected 1 completed candle, got %d", len(done))
	}

	bar := done[0]
	if !bar.Timestamp.Equal(time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("bucket = %s, want 12:00", bar.Timestamp)
	}
	if bar.Open != 100 || bar.High != 102 || bar.Low != 99 || bar.Close != 101 {
		t.Fatalf("unexpected OHLC: %+v", bar)
	}
	if bar.Volume != 4 {
		t.Fatalf("tick count = %v, want 4", bar.Volume)
	}

	cur := b.Current()
	if cur == nil || cur.Open != 101.5 {
		t.Fatalf("in-progress candle should open at the rollover tick's mid: %+v", cur)
	}
}

func TestBuilderFlushEmitsInProgressCandle(t *testing.T) {
	var done []model.Bar
	b := NewBuilder(time.Minute, func(bar model.Bar) {
		done = append(done, bar)
	})

	b.Flush() // nothing buffered yet
	if len(done) != 0 {
		t.Fatal("flush with no ticks must emit nothing")
	}

	b.OnTick(tick(0, 10, 99.5, 100.5))
	b.Flush()
	if len(done) != 1 {
		t.Fatalf("expected 1 flushed candle, got %d", len(done))
	}
	if done[0].Close != 100 {
		t.Fatalf("close = %v, want 100", done[0].Close)
	}
	if b.Current() != nil {
		t.Fatal("flush must clear the in-progress candle")
	}
}
