package signals

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bobmcallan/snaptrail/internal/models"
)

func TestSMA(t *testing.T) {
	tests := []struct {
		name     string
		prices   []float64
		period   int
		expected float64
		ok       bool
	}{
		{"simple 3-day SMA", []float64{10, 20, 30}, 3, 20.0, true},
		{"uses trailing window", []float64{10, 20, 30, 40, 50}, 2, 45.0, true},
		{"insufficient data", []float64{10, 20}, 5, 0, false},
		{"period too small", []float64{10, 20}, 1, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SMA(tt.prices, tt.period)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.expected, got, 1e-9)
		})
	}
}

func TestMetrics(t *testing.T) {
	assert.Equal(t, 100.0, PeakPrice([]float64{90, 100, 80}))
	assert.Zero(t, PeakPrice(nil))

	assert.InDelta(t, 0.20, Drawdown(100, 80), 1e-9)
	assert.Zero(t, Drawdown(100, 120), "above peak clamps to zero")
	assert.Zero(t, Drawdown(0, 10))

	assert.InDelta(t, 0.25, Loss(200, 150), 1e-9)
	assert.Zero(t, Loss(100, 110))

	assert.InDelta(t, -0.25, PnLPct(200, 150), 1e-9)
	assert.InDelta(t, 0.10, PnLPct(100, 110), 1e-9)

	assert.InDelta(t, 0.5, MaxDrawdown([]float64{100, 50, 120, 90}), 1e-9)
}

func TestExitQuantity(t *testing.T) {
	assert.Equal(t, int64(5), ExitQuantity(10, 0.5))
	assert.Equal(t, int64(3), ExitQuantity(7, 0.5), "floor")
	assert.Equal(t, int64(1), ExitQuantity(1, 0.5), "at least one share")
	assert.Equal(t, int64(10), ExitQuantity(10, 1.0))
	assert.Zero(t, ExitQuantity(10, 0))
	assert.Zero(t, ExitQuantity(0, 0.5))
}

func defaultPolicy() Policy {
	return Policy{
		Rules: []models.PolicyRule{
			{Metric: models.MetricDrawdown, Threshold: 0.25, Action: models.SignalStop, ExitFraction: 1.0},
			{Metric: models.MetricDrawdown, Threshold: 0.15, Action: models.SignalTrim, ExitFraction: 0.5},
		},
		MomentumWindow: 3,
	}
}

func TestEvaluate_TrimOnTwentyPercentDrawdown(t *testing.T) {
	c := NewComputer(defaultPolicy())
	rec := c.Evaluate(Position{Account: "A", Symbol: "X", Quantity: 10, AverageCost: 90, History: []float64{100, 80}})

	assert.Equal(t, 100.0, rec.PeakPrice)
	assert.InDelta(t, 0.20, rec.Drawdown, 1e-9)
	assert.Equal(t, models.SignalTrim, rec.Action)
	assert.Equal(t, 0.5, rec.ExitFraction)
	assert.Equal(t, int64(5), rec.ExitQty)
	assert.Equal(t, 800.0, rec.Value)
	assert.Equal(t, -100.0, rec.PnLAmount)
	assert.Equal(t, 2, rec.Observations)
}

func TestEvaluate_StopTakesPrecedence(t *testing.T) {
	c := NewComputer(defaultPolicy())
	rec := c.Evaluate(Position{Quantity: 3, AverageCost: 50, History: []float64{100, 70}})
	assert.Equal(t, models.SignalStop, rec.Action)
	assert.Equal(t, int64(3), rec.ExitQty)
}

func TestEvaluate_FirstObservationHolds(t *testing.T) {
	c := NewComputer(Policy{Rules: []models.PolicyRule{
		{Metric: models.MetricLoss, Threshold: 0.2, Action: models.SignalStop, ExitFraction: 1},
	}})
	rec := c.Evaluate(Position{Quantity: 10, AverageCost: 200, History: []float64{100}})
	assert.Equal(t, models.SignalHold, rec.Action)
	assert.Equal(t, 100.0, rec.PeakPrice)
	assert.Zero(t, rec.Drawdown)
	assert.Zero(t, rec.ExitQty)
}

func TestEvaluate_LossRule(t *testing.T) {
	c := NewComputer(Policy{Rules: []models.PolicyRule{
		{Metric: models.MetricLoss, Threshold: 0.20, Action: models.SignalStop, ExitFraction: 1},
		{Metric: models.MetricLoss, Threshold: 0.15, Action: models.SignalTrim, ExitFraction: 0.5},
	}})
	rec := c.Evaluate(Position{Quantity: 4, AverageCost: 100, History: []float64{84, 83}})
	assert.Equal(t, models.SignalTrim, rec.Action)
	assert.InDelta(t, 0.17, rec.Loss, 1e-9)
	assert.Equal(t, int64(2), rec.ExitQty)
}

func TestEvaluate_BuyWatch(t *testing.T) {
	c := NewComputer(defaultPolicy())

	rising := c.Evaluate(Position{Quantity: 1, AverageCost: 90, History: []float64{90, 95, 100, 110}})
	assert.Equal(t, models.SignalBuyWatch, rising.Action)

	// At peak but too few observations for the window
	short := c.Evaluate(Position{Quantity: 1, AverageCost: 90, History: []float64{90, 110}})
	assert.Equal(t, models.SignalHold, short.Action)

	// Below peak without tripping a rule
	dip := c.Evaluate(Position{Quantity: 1, AverageCost: 90, History: []float64{100, 105, 110, 100}})
	assert.Equal(t, models.SignalHold, dip.Action)

	off := NewComputer(Policy{Rules: defaultPolicy().Rules})
	assert.Equal(t, models.SignalHold, off.Evaluate(Position{Quantity: 1, History: []float64{90, 95, 100, 110}}).Action)
}

func TestEvaluate_EmptyHistory(t *testing.T) {
	rec := NewComputer(defaultPolicy()).Evaluate(Position{Symbol: "X", Quantity: 1})
	assert.Equal(t, models.SignalHold, rec.Action)
	assert.Zero(t, rec.Value)
}
