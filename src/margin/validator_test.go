package margin

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestRequiredMargin(t *testing.T) {
	v := NewValidator(10000, 5.0, 2.0)

	// price 1000 x size 2 x 5% = 100
	require.True(t, v.RequiredMargin(1000.0).Equal(d("100")))
}

func TestCanOpenAgainstFreeMargin(t *testing.T) {
	v := NewValidator(10000, 5.0, 1.0)

	ok, reason := v.CanOpen(5000.0, nil)
	require.True(t, ok)
	require.True(t, strings.HasPrefix(reason, "OK"), "approval reason should start with OK, got %s", reason)

	// One open position at 5000 holds 250; a second still fits.
	ok, _ = v.CanOpen(5000.0, []float64{5000.0})
	require.True(t, ok, "second position should fit within free margin")
}

func TestCanOpenDeniedWhenBalanceTooSmall(t *testing.T) {
	v := NewValidator(100, 5.0, 1.0)

	ok, reason := v.CanOpen(5000.0, nil)
	require.False(t, ok, "required 250 against balance 100")
	require.True(t, strings.HasPrefix(reason, "INSUFFICIENT_MARGIN"), "denial reason = %s", reason)
}

func TestCanOpenIsPure(t *testing.T) {
	v := NewValidator(100, 5.0, 1.0)

	_, first := v.CanOpen(5000.0, nil)
	_, second := v.CanOpen(5000.0, nil)
	require.Equal(t, first, second, "repeated denial changed state")
	require.True(t, v.Balance().Equal(d("100")), "balance changed by CanOpen: %s", v.Balance())
}

func TestRealizedLossShrinksCapacity(t *testing.T) {
	v := NewValidator(300, 5.0, 1.0)

	ok, _ := v.CanOpen(5000.0, nil)
	require.True(t, ok, "expected approval before the loss")

	v.OnTradeClosed(-100.0)

	ok, _ = v.CanOpen(5000.0, nil)
	require.False(t, ok, "balance 200 < required 250")
}

func TestStatusSnapshot(t *testing.T) {
	v := NewValidator(10000, 5.0, 1.0)
	v.OnTradeClosed(500.0)

	st := v.Status([]float64{2000.0})
	require.True(t, st.Balance.Equal(d("10500")), "balance = %s", st.Balance)
	require.True(t, st.UsedMargin.Equal(d("100")), "used margin = %s", st.UsedMargin)
	require.True(t, st.FreeMargin.Equal(d("10400")), "free margin = %s", st.FreeMargin)
	require.Equal(t, 1, st.OpenPositions)
}
