// Package signals provides trailing stop-loss metrics and the policy evaluator
package signals

import (
	"math"

	"github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/floats"
)

// PeakPrice returns the highest price in the series, 0 for an empty series.
func PeakPrice(prices []float64) float64 {
	if len(prices) == 0 {
		return 0
	}
	return floats.Max(prices)
}

// Drawdown is the fractional fall from peak, never negative.
func Drawdown(peak, current float64) float64 {
	if peak <= 0 {
		return 0
	}
	return math.Max(0, (peak-current)/peak)
}

// Loss is the fractional fall below average cost, never negative.
func Loss(avgCost, current float64) float64 {
	if avgCost <= 0 {
		return 0
	}
	return math.Max(0, (avgCost-current)/avgCost)
}

// PnLPct is the signed return on average cost.
func PnLPct(avgCost, current float64) float64 {
	if avgCost <= 0 {
		return 0
	}
	return (current - avgCost) / avgCost
}

// SMA returns the simple moving average of the last period prices.
// ok is false when the series is shorter than period.
func SMA(prices []float64, period int) (float64, bool) {
	if period < 2 || len(prices) < period {
		return 0, false
	}
	out := talib.Sma(prices, period)
	return out[len(out)-1], true
}

// MaxDrawdown is the largest peak-to-trough fall over the series.
func MaxDrawdown(prices []float64) float64 {
	maxDD := 0.0
	peak := 0.0
	for _, p := range prices {
		if p > peak {
			peak = p
		}
		if dd := Drawdown(peak, p); dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// ExitQuantity converts an exit fraction into whole shares: floor(qty*fraction),
// at least one share for a non-zero fraction, never more than qty.
func ExitQuantity(qty int64, fraction float64) int64 {
	if qty <= 0 || fraction <= 0 {
		return 0
	}
	n := int64(math.Floor(float64(qty) * fraction))
	if n < 1 {
		n = 1
	}
	if n > qty {
		n = qty
	}
	return n
}
