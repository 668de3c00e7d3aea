package model

import "time"

type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Sign is +1 for long and -1 for short, so directional math can be written once.
func (s Side) Sign() float64 {
	if s == SideShort {
		return -1.0
	}
	return 1.0
}

type ExitReason string

const (
	ExitTakeProfit   ExitReason = "TP"
	ExitStopLoss     ExitReason = "SL"
	ExitTrailingStop ExitReason = "TRAILING_SL"
	ExitEndOfDay     ExitReason = "EOD"
	ExitMaxHoldDays  ExitReason = "MAX_HOLD_DAYS"
)

// ClosedTrade is the immutable settlement record appended to the ledger
// when a position closes.
type ClosedTrade struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	RunID         string    `gorm:"size:64;index" json:"run_id"`
	Market        string    `gorm:"size:50" json:"market"`
	Side          string    `gorm:"size:10;not null" json:"side"`
	EntryTime     time.Time `gorm:"index" json:"entry_time"`
	EntryPrice    float64   `json:"entry_price"`
	ExitTime      time.Time `json:"exit_time"`
	ExitPrice     float64   `json:"exit_price"`
	ExitReason    string    `gorm:"size:20" json:"exit_reason"`
	TakeProfitPts float64   `json:"tp_pts"`
	StopLossPts   float64   `json:"sl_pts"`
	GrossPts      float64   `json:"pnl_pts_gross"`
	OvernightPts  float64   `json:"overnight_charges"`
	NetPts        float64   `json:"pnl_pts"`
	NetCurrency   float64   `json:"pnl_ccy"`
	BarsHeld      int       `json:"bars_held"`
	DaysHeld      int       `json:"days_held"`
	CreatedAt     time.Time `json:"created_at"`
}

func (ClosedTrade) TableName() string {
	return "closed_trades"
}

// BlockedTrade records an entry trigger denied by the margin check.
// It is a reporting artifact, not an error.
type BlockedTrade struct {
	Timestamp  time.Time `json:"timestamp"`
	Side       Side      `json:"side"`
	EntryPrice float64   `json:"entry_price"`
	Reason     string    `json:"reason"`
}
