package reports

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"reboundtrader/src/engine"
	"reboundtrader/src/model"
)

func sampleResult() *engine.Result {
	entry := time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)
	return &engine.Result{
		RunID: "run-1",
		Trades: []model.ClosedTrade{
			{
				RunID: "run-1", Market: "US500", Side: "LONG", ExitReason: "TP",
				EntryTime: entry, ExitTime: entry.Add(time.Hour),
				EntryPrice: 100, ExitPrice: 102,
				GrossPts: 2, NetPts: 2, NetCurrency: 200,
			},
			{
				RunID: "run-1", Market: "US500", Side: "SHORT", ExitReason: "SL",
				EntryTime: entry.Add(2 * time.Hour), ExitTime: entry.Add(3 * time.Hour),
				EntryPrice: 100, ExitPrice: 105,
				GrossPts: -5, OvernightPts: 1, NetPts: -6, NetCurrency: -600,
			},
			{
				RunID: "run-1", Market: "US500", Side: "LONG", ExitReason: "TP",
				EntryTime: entry.Add(4 * time.Hour), ExitTime: entry.Add(5 * time.Hour),
				EntryPrice: 100, ExitPrice: 101,
				GrossPts: 1, NetPts: 1, NetCurrency: 100,
			},
		},
		Blocked: []model.BlockedTrade{
			{Side: model.SideShort, EntryPrice: 100, Reason: "INSUFFICIENT_MARGIN"},
		},
	}
}

func TestSummarizeAggregatesLedger(t *testing.T) {
	s := Summarize(sampleResult(), 10000)

	if s.Trades != 3 || s.Wins != 2 || s.Losses != 1 {
		t.Fatalf("counts wrong: %+v", s)
	}
	if s.WinRate < 0.666 || s.WinRate > 0.667 {
		t.Fatalf("win rate = %v, want 2/3", s.WinRate)
	}
	if s.GrossPts != -2 || s.OvernightPts != 1 || s.NetPts != -3 {
		t.Fatalf("point totals wrong: %+v", s)
	}
	if s.NetCurrency != -300 || s.EndBalance != 9700 {
		t.Fatalf("currency totals wrong: %+v", s)
	}
	// Peak 10200 after the first win, trough 9600 after the loss.
	if s.MaxDrawdown != 600 {
		t.Fatalf("max drawdown = %v, want 600", s.MaxDrawdown)
	}
	// Gross profit 300 against gross loss 600.
	if s.ProfitFactor != 0.5 {
		t.Fatalf("profit factor = %v, want 0.5", s.ProfitFactor)
	}
	if s.Blocked != 1 {
		t.Fatalf("blocked = %d, want 1", s.Blocked)
	}
	if s.ByExitReason["TP"] != 2 || s.ByExitReason["SL"] != 1 {
		t.Fatalf("exit reason breakdown wrong: %v", s.ByExitReason)
	}
}

func TestSummarizeEmptyResult(t *testing.T) {
	s := Summarize(&engine.Result{RunID: "run-2"}, 5000)

	if s.Trades != 0 || s.WinRate != 0 {
		t.Fatalf("expected zeroed summary, got %+v", s)
	}
	if s.EndBalance != 5000 || s.MaxDrawdown != 0 {
		t.Fatalf("balance fields wrong: %+v", s)
	}
}

func TestWriteTradesCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.csv")
	res := sampleResult()

	if err := WriteTradesCSV(path, res.Trades); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	rows := readCSV(t, path)
	if len(rows) != 4 {
		t.Fatalf("expected header + 3 rows, got %d", len(rows))
	}
	if rows[0][0] != "run_id" || rows[0][7] != "exit_reason" {
		t.Fatalf("unexpected header: %v", rows[0])
	}
	if rows[1][2] != "LONG" || rows[1][7] != "TP" || rows[1][4] != "100" {
		t.Fatalf("unexpected first trade row: %v", rows[1])
	}
	if rows[2][7] != "SL" {
		t.Fatalf("unexpected second trade row: %v", rows[2])
	}
}

func TestWriteEquityCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "equity.csv")
	res := sampleResult()

	if err := WriteEquityCSV(path, res.Trades, 10000); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	rows := readCSV(t, path)
	if len(rows) != 4 {
		t.Fatalf("expected header + 3 rows, got %d", len(rows))
	}
	want := []string{"10200", "9600", "9700"}
	for i, w := range want {
		if rows[i+1][1] != w {
			t.Fatalf("balance row %d = %s, want %s", i+1, rows[i+1][1], w)
		}
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening %s: %v", path, err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("parsing %s: %v", path, err)
	}
	return rows
}
