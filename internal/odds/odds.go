// Package odds implements American-odds math for the fixed-odds book:
// odds validation, display formatting, payout calculation and volume
// percentage aggregation.
package odds

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ValidAmerican reports whether the value is a well-formed American
// odds integer. By convention the magnitude is at least 100: positive
// odds are the profit per 100 staked, negative odds the stake needed
// to win 100.
func ValidAmerican(o int) bool {
	return o >= 100 || o <= -100
}

// ParseAmerican parses a signed American odds string such as "+150" or
// "-110".
func ParseAmerican(s string) (int, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(s), "+")
	o, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("invalid odds %q: %w", s, err)
	}
	if !ValidAmerican(o) {
		return 0, fmt.Errorf("invalid odds %q: magnitude below 100", s)
	}
	return o, nil
}

// FormatAmerican renders odds with an explicit sign, e.g. "+150", "-110".
func FormatAmerican(o int) string {
	if o > 0 {
		return fmt.Sprintf("+%d", o)
	}
	return strconv.Itoa(o)
}

// Profit returns the winnings (excluding the returned stake) for a
// winning bet of the given stake at the given American odds.
// Positive odds: stake * odds/100. Negative odds: stake * 100/|odds|.
func Profit(stake decimal.Decimal, american int) decimal.Decimal {
	if american > 0 {
		return stake.Mul(decimal.NewFromInt(int64(american))).Div(hundred)
	}
	return stake.Mul(hundred).Div(decimal.NewFromInt(int64(-american)))
}

// Payout returns the total amount credited to a winner: the returned
// stake plus the profit.
func Payout(stake decimal.Decimal, american int) decimal.Decimal {
	return stake.Add(Profit(stake, american))
}

// Percentages splits the wagered volume into whole-number percentages.
// The yes share is rounded half away from zero and no takes the
// remainder, so the two always sum to 100. An empty market is defined
// as 0/100 to keep the division guarded.
func Percentages(yesTotal, noTotal decimal.Decimal) (yesPercent, noPercent int) {
	total := yesTotal.Add(noTotal)
	if total.IsZero() {
		return 0, 100
	}
	yes := int(yesTotal.Div(total).Mul(hundred).Round(0).IntPart())
	return yes, 100 - yes
}
