package models

// SignalAction is the recommendation for a position.
type SignalAction string

const (
	SignalHold     SignalAction = "HOLD"
	SignalTrim     SignalAction = "TRIM"
	SignalStop     SignalAction = "STOP"
	SignalBuyWatch SignalAction = "BUY-WATCH"
)

// Policy metrics a rule can threshold on.
const (
	MetricDrawdown = "drawdown"
	MetricLoss     = "loss"
)

// PolicyRule is one row of the ordered exit policy table.
type PolicyRule struct {
	Metric       string       `toml:"metric" json:"metric"`
	Threshold    float64      `toml:"threshold" json:"threshold"`
	Action       SignalAction `toml:"action" json:"action"`
	ExitFraction float64      `toml:"exit_fraction" json:"exit_fraction"`
}

// Allocation is the share of a consolidated exit assigned to one account.
type Allocation struct {
	Account  string `json:"account"`
	Quantity int64  `json:"quantity"`
	ExitQty  int64  `json:"exit_qty"`
}

// Recommendation is the derived signal for one position.
type Recommendation struct {
	Account      string       `json:"account"`
	Symbol       string       `json:"symbol"`
	Quantity     int64        `json:"quantity"`
	AverageCost  float64      `json:"average_cost"`
	CurrentPrice float64      `json:"current_price"`
	PeakPrice    float64      `json:"peak_price"`
	Drawdown     float64      `json:"drawdown"`
	Loss         float64      `json:"loss"`
	PnLPct       float64      `json:"pnl_pct"`
	Action       SignalAction `json:"action"`
	ExitFraction float64      `json:"exit_fraction"`
	ExitQty      int64        `json:"exit_qty"`
	Value        float64      `json:"value"`
	PnLAmount    float64      `json:"pnl_amount"`
	Observations int          `json:"observations"`
	Allocations  []Allocation `json:"allocations,omitempty"`
}

// SignalSet holds both views computed for one target date.
type SignalSet struct {
	TargetDate   string           `json:"target_date"`
	PerAccount   []Recommendation `json:"per_account"`
	Consolidated []Recommendation `json:"consolidated"`
	Excluded     []string         `json:"excluded,omitempty"`
}
