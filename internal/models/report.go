package models

// AccountReport is the latest recorded state of one account.
type AccountReport struct {
	Account       string          `json:"account"`
	HoldingsDate  string          `json:"holdings_date,omitempty"`
	FundsDate     string          `json:"funds_date,omitempty"`
	Holdings      []HoldingRecord `json:"holdings"`
	Funds         []FundsRecord   `json:"funds"`
	Invested      float64         `json:"invested"`
	MarketValue   float64         `json:"market_value"`
	PnL           float64         `json:"pnl"`
	AvailableCash float64         `json:"available_cash"`
	CashLike      []HoldingRecord `json:"cash_like,omitempty"` // excluded symbols, reported as cash
	CashLikeValue float64         `json:"cash_like_value"`
}

// ReportSnapshot is the read model handed to report renderers.
type ReportSnapshot struct {
	TargetDate string          `json:"target_date"`
	Accounts   []AccountReport `json:"accounts"`
	Signals    *SignalSet      `json:"signals"`
}
