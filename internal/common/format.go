package common

import (
	"fmt"
	"math"

	"github.com/dustin/go-humanize"
)

// FormatMoney renders an amount with thousands separators and two decimals.
func FormatMoney(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "-"
	}
	return humanize.FormatFloat("#,###.##", v)
}

// FormatSignedMoney is FormatMoney with an explicit + on gains.
func FormatSignedMoney(v float64) string {
	if v > 0 {
		return "+" + FormatMoney(v)
	}
	return FormatMoney(v)
}

// FormatQty renders a share count with thousands separators.
func FormatQty(n int64) string {
	return humanize.Comma(n)
}

// FormatPct renders a fraction (0.2 -> "20.00%").
func FormatPct(fraction float64) string {
	return fmt.Sprintf("%.2f%%", fraction*100)
}

// FormatSignedPct renders a percentage already scaled to 100 with its sign.
func FormatSignedPct(pct float64) string {
	return fmt.Sprintf("%+.2f%%", pct)
}
