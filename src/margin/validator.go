package margin

import (
	"fmt"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
)

// Validator decides whether the account can carry a new position. Balance is
// starting capital plus realized P&L of closed trades only; unrealized P&L of
// open positions never counts toward margin capacity.
type Validator struct {
	startingCapital decimal.Decimal
	marginRate      decimal.Decimal // fraction, e.g. 0.05
	sizePerPoint    decimal.Decimal
	realizedPnL     decimal.Decimal
}

// Status is a snapshot of the account's margin situation.
type Status struct {
	Balance         decimal.Decimal `json:"balance"`
	StartingCapital decimal.Decimal `json:"starting_capital"`
	RealizedPnL     decimal.Decimal `json:"realized_pnl"`
	UsedMargin      decimal.Decimal `json:"used_margin"`
	FreeMargin      decimal.Decimal `json:"free_margin"`
	OpenPositions   int             `json:"open_positions"`
}

func NewValidator(startingCapital, marginRatePct, sizePerPoint float64) *Validator {
	return &Validator{
		startingCapital: decimal.NewFromFloat(startingCapital),
		marginRate:      decimal.NewFromFloat(marginRatePct).Div(decimal.NewFromInt(100)),
		sizePerPoint:    decimal.NewFromFloat(sizePerPoint),
	}
}

// Balance is starting capital plus realized P&L to date.
func (v *Validator) Balance() decimal.Decimal {
	return v.startingCapital.Add(v.realizedPnL)
}

// RequiredMargin is price x size x margin rate for one position.
func (v *Validator) RequiredMargin(entryPrice float64) decimal.Decimal {
	return decimal.NewFromFloat(entryPrice).Mul(v.sizePerPoint).Mul(v.marginRate)
}

// UsedMargin sums the margin held by currently open positions, identified by
// their entry prices.
func (v *Validator) UsedMargin(openEntryPrices []float64) decimal.Decimal {
	used := decimal.Zero
	for _, p := range openEntryPrices {
		used = used.Add(v.RequiredMargin(p))
	}
	return used
}

// CanOpen is a pure decision: no state changes here. Balance updates happen
// only through OnTradeClosed.
func (v *Validator) CanOpen(entryPrice float64, openEntryPrices []float64) (bool, string) {
	balance := v.Balance()
	used := v.UsedMargin(openEntryPrices)
	required := v.RequiredMargin(entryPrice)
	free := balance.Sub(used)

	if free.GreaterThanOrEqual(required) {
		return true, fmt.Sprintf("OK (balance=%s free=%s required=%s)",
			balance.StringFixed(2), free.StringFixed(2), required.StringFixed(2))
	}
	return false, fmt.Sprintf("INSUFFICIENT_MARGIN (balance=%s free=%s required=%s)",
		balance.StringFixed(2), free.StringFixed(2), required.StringFixed(2))
}

// OnTradeClosed settles a closed trade's net P&L in account currency.
func (v *Validator) OnTradeClosed(netCurrency float64) {
	v.realizedPnL = v.realizedPnL.Add(decimal.NewFromFloat(netCurrency))

	logger.WithFields(logger.Fields{
		"pnl":      netCurrency,
		"realized": v.realizedPnL.StringFixed(2),
		"balance":  v.Balance().StringFixed(2),
	}).Debug("trade settled")
}

func (v *Validator) Status(openEntryPrices []float64) Status {
	used := v.UsedMargin(openEntryPrices)
	return Status{
		Balance:         v.Balance(),
		StartingCapital: v.startingCapital,
		RealizedPnL:     v.realizedPnL,
		UsedMargin:      used,
		FreeMargin:      v.Balance().Sub(used),
		OpenPositions:   len(openEntryPrices),
	}
}
