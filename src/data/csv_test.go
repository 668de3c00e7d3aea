package data

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return path
}

func TestLoadBarsSkipsHeader(t *testing.T) {
	path := writeFile(t, "bars.csv",
		"timestamp,open,high,low,close,volume\n"+
			"2024-03-04 12:00:00,101,104,100.5,102,350\n"+
			"2024-03-04T12:30:00Z,102,103,101,102.5\n")

	bars, err := LoadBars(path, time.UTC)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("expected 2 bars, got %d", len(bars))
	}

	b := bars[0]
	if !b.Timestamp.Equal(time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("timestamp = %s", b.Timestamp)
	}
	if b.Open != 101 || b.High != 104 || b.Low != 100.5 || b.Close != 102 {
		t.Fatalf("unexpected OHLC: %+v", b)
	}
	if b.Volume != 350 {
		t.Fatalf("volume = %v, want 350", b.Volume)
	}
	// Second row has no volume column; that is not an error.
	if bars[1].Volume != 0 {
		t.Fatalf("missing volume should load as 0, got %v", bars[1].Volume)
	}
}

func TestLoadBarsHonorsLocation(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("loading tz: %v", err)
	}

	path := writeFile(t, "bars.csv",
		"2024-03-04 09:30:00,100,101,99,100,0\n")

	bars, err := LoadBars(path, ny)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	want := time.Date(2024, 3, 4, 9, 30, 0, 0, ny)
	if !bars[0].Timestamp.Equal(want) {
		t.Fatalf("timestamp = %s, want %s", bars[0].Timestamp, want)
	}
}

func TestLoadBarsEpochTimestamps(t *testing.T) {
	path := writeFile(t, "bars.csv",
		"1709553600,101,104,100.5,102,0\n"+
			"1709555400000,102,103,101,102.5,0\n")

	bars, err := LoadBars(path, nil)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if !bars[0].Timestamp.Equal(time.Unix(1709553600, 0)) {
		t.Fatalf("epoch seconds parsed as %s", bars[0].Timestamp)
	}
	if !bars[1].Timestamp.Equal(time.UnixMilli(1709555400000)) {
		t.Fatalf("epoch millis parsed as %s", bars[1].Timestamp)
	}
}

func TestLoadBarsRejectsBadRow(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"too few columns", "2024-03-04 12:00:00,101,104\n"},
		{"bad price", "2024-03-04 12:00:00,101,abc,100.5,102,0\n"},
		{"bad timestamp past header", "timestamp,open,high,low,close\nnot-a-time,101,104,100.5,102\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeFile(t, "bars.csv", tc.content)
			if _, err := LoadBars(path, time.UTC); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestLoadTicks(t *testing.T) {
	path := writeFile(t, "ticks.csv",
		"timestamp,bid,ask\n"+
			"2024-03-04 12:00:05,101,101.5\n"+
			"2024-03-04 12:00:06,101.1,101.6\n")

	ticks, err := LoadTicks(path, time.UTC)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(ticks) != 2 {
		t.Fatalf("expected 2 ticks, got %d", len(ticks))
	}
	if ticks[0].Bid != 101 || ticks[0].Ask != 101.5 {
		t.Fatalf("unexpected quote: %+v", ticks[0])
	}
	if ticks[0].Spread() != 0.5 {
		t.Fatalf("spread = %v, want 0.5", ticks[0].Spread())
	}
}

func TestLoadTicksRejectsBadQuote(t *testing.T) {
	path := writeFile(t, "ticks.csv",
		"2024-03-04 12:00:05,abc,101.5\n")

	if _, err := LoadTicks(path, time.UTC); err == nil {
		t.Fatal("expected an error")
	}
}

func TestLoadBarsMissingFile(t *testing.T) {
	if _, err := LoadBars(filepath.Join(t.TempDir(), "absent.csv"), time.UTC); err == nil {
		t.Fatal("expected an error")
	}
}
