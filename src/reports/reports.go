package reports

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"

	logger "github.com/sirupsen/logrus"

	"reboundtrader/src/engine"
	"reboundtrader/src/model"
)

// Summary aggregates one replay into headline figures.
type Summary struct {
	RunID        string         `json:"run_id"`
	Trades       int            `json:"trades"`
	Wins         int            `json:"wins"`
	Losses       int            `json:"losses"`
	WinRate      float64        `json:"win_rate"`
	GrossPts     float64        `json:"gross_pts"`
	OvernightPts float64        `json:"overnight_pts"`
	NetPts       float64        `json:"net_pts"`
	NetCurrency  float64        `json:"net_currency"`
	ProfitFactor float64        `json:"profit_factor"`
	EndBalance   float64        `json:"end_balance"`
	MaxDrawdown  float64        `json:"max_drawdown"`
	Blocked      int            `json:"blocked"`
	ByExitReason map[string]int `json:"by_exit_reason"`
}

// Summarize walks the closed-trade ledger in close order, tracking the
// running balance to compute peak-to-trough drawdown in account currency.
func Summarize(res *engine.Result, startingCapital float64) Summary {
	s := Summary{
		RunID:        res.RunID,
		Trades:       len(res.Trades),
		Blocked:      len(res.Blocked),
		ByExitReason: make(map[string]int),
	}

	balance := startingCapital
	peak := startingCapital
	var grossProfit, grossLoss float64
	for _, t := range res.Trades {
		if t.NetPts > 0 {
			s.Wins++
			grossProfit += t.NetCurrency
		} else {
			s.Losses++
			grossLoss -= t.NetCurrency
		}
		s.GrossPts += t.GrossPts
		s.OvernightPts += t.OvernightPts
		s.NetPts += t.NetPts
		s.NetCurrency += t.NetCurrency
		s.ByExitReason[t.ExitReason]++

		balance += t.NetCurrency
		if balance > peak {
			peak = balance
		}
		if dd := peak - balance; dd > s.MaxDrawdown {
			s.MaxDrawdown = dd
		}
	}
	s.EndBalance = balance
	if s.Trades > 0 {
		s.WinRate = float64(s.Wins) / float64(s.Trades)
	}
	if grossLoss > 0 {
		s.ProfitFactor = grossProfit / grossLoss
	}
	return s
}

// Log writes the summary through the structured logger at info level.
func (s Summary) Log() {
	logger.WithFields(logger.Fields{
		"run_id":       s.RunID,
		"trades":       s.Trades,
		"win_rate":     s.WinRate,
		"net_pts":      s.NetPts,
		"net_currency": s.NetCurrency,
		"end_balance":  s.EndBalance,
		"max_drawdown": s.MaxDrawdown,
		"blocked":      s.Blocked,
	}).Info("replay summary")
}

// WriteTradesCSV writes the closed-trade ledger, one row per trade in close
// order.
func WriteTradesCSV(path string, trades []model.ClosedTrade) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{
		"run_id", "market", "side", "entry_time", "entry_price",
		"exit_time", "exit_price", "exit_reason",
		"gross_pts", "overnight_pts", "net_pts", "net_currency",
		"bars_held", "days_held",
	}); err != nil {
		return err
	}
	for _, t := range trades {
		if err := w.Write([]string{
			t.RunID, t.Market, t.Side,
			t.EntryTime.Format(time.RFC3339), formatF(t.EntryPrice),
			t.ExitTime.Format(time.RFC3339), formatF(t.ExitPrice), t.ExitReason,
			formatF(t.GrossPts), formatF(t.OvernightPts), formatF(t.NetPts), formatF(t.NetCurrency),
			strconv.Itoa(t.BarsHeld), strconv.Itoa(t.DaysHeld),
		}); err != nil {
			return err
		}
	}
	return w.Error()
}

// WriteEquityCSV writes the account balance after each closed trade.
func WriteEquityCSV(path string, trades []model.ClosedTrade, startingCapital float64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"exit_time", "balance"}); err != nil {
		return err
	}
	balance := startingCapital
	for _, t := range trades {
		balance += t.NetCurrency
		if err := w.Write([]string{t.ExitTime.Format(time.RFC3339), formatF(balance)}); err != nil {
			return err
		}
	}
	return w.Error()
}

func formatF(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
