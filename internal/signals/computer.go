package signals

import (
	"github.com/bobmcallan/snaptrail/internal/models"
)

// Policy is the ordered exit table plus the momentum rule for BUY-WATCH.
type Policy struct {
	Rules          []models.PolicyRule
	MomentumWindow int     // 0 disables BUY-WATCH
	MinGain        float64 // required excess over the SMA, as a fraction
}

// Position is one holding with its price history, oldest first. The last
// price in History is the current price.
type Position struct {
	Account      string
	Symbol       string
	Quantity     int64
	AverageCost  float64
	History      []float64
	Observations int // distinct dates behind History, defaults to len(History)
}

// Computer evaluates positions against a policy
type Computer struct {
	policy Policy
}

// NewComputer creates a new signal computer
func NewComputer(policy Policy) *Computer {
	return &Computer{policy: policy}
}

// Evaluate returns the recommendation for a position.
func (c *Computer) Evaluate(p Position) models.Recommendation {
	rec := models.Recommendation{
		Account:      p.Account,
		Symbol:       p.Symbol,
		Quantity:     p.Quantity,
		AverageCost:  p.AverageCost,
		Action:       models.SignalHold,
		Observations: p.Observations,
	}
	if rec.Observations == 0 {
		rec.Observations = len(p.History)
	}
	if len(p.History) == 0 {
		return rec
	}

	current := p.History[len(p.History)-1]
	rec.CurrentPrice = current
	rec.PeakPrice = PeakPrice(p.History)
	rec.Drawdown = Drawdown(rec.PeakPrice, current)
	rec.Loss = Loss(p.AverageCost, current)
	rec.PnLPct = PnLPct(p.AverageCost, current)
	rec.Value = float64(p.Quantity) * current
	rec.PnLAmount = rec.Value - float64(p.Quantity)*p.AverageCost

	// A first sighting has no trail to stop against
	if rec.Observations < 2 {
		return rec
	}

	if rule, ok := c.match(rec.Drawdown, rec.Loss); ok {
		rec.Action = rule.Action
		rec.ExitFraction = rule.ExitFraction
		rec.ExitQty = ExitQuantity(p.Quantity, rule.ExitFraction)
		return rec
	}

	if current >= rec.PeakPrice && c.momentum(p.History) {
		rec.Action = models.SignalBuyWatch
	}
	return rec
}

// match returns the first rule whose metric reaches its threshold.
func (c *Computer) match(drawdown, loss float64) (models.PolicyRule, bool) {
	for _, rule := range c.policy.Rules {
		var v float64
		switch rule.Metric {
		case models.MetricDrawdown:
			v = drawdown
		case models.MetricLoss:
			v = loss
		default:
			continue
		}
		if v >= rule.Threshold {
			return rule, true
		}
	}
	return models.PolicyRule{}, false
}

func (c *Computer) momentum(history []float64) bool {
	w := c.policy.MomentumWindow
	if w < 2 {
		return false
	}
	sma, ok := SMA(history, w)
	if !ok {
		return false
	}
	return history[len(history)-1] > sma*(1+c.policy.MinGain)
}
