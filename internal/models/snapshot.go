package models

import "time"

// Dataset names one of the two snapshot kinds recorded per account and day.
type Dataset string

const (
	DatasetHoldings Dataset = "holdings"
	DatasetFunds    Dataset = "funds"
)

// Datasets lists every dataset in the order they are processed.
var Datasets = []Dataset{DatasetHoldings, DatasetFunds}

// Valid reports whether d is a known dataset.
func (d Dataset) Valid() bool {
	return d == DatasetHoldings || d == DatasetFunds
}

// AllAccounts selects every account in history queries and consolidated signals.
const AllAccounts = "ALL"

// AllSymbols selects every symbol in history queries.
const AllSymbols = "ALL"

// ExistState is the persistence state of one (dataset, account, date) key.
type ExistState string

const (
	StateAbsent       ExistState = "ABSENT"
	StateRawOnly      ExistState = "RAW_ONLY"
	StateMaterialized ExistState = "MATERIALIZED"
)

// HoldingRecord is one canonical holding line of a snapshot.
type HoldingRecord struct {
	Account             string  `json:"account"`
	AsOfDate            string  `json:"as_of_date"`
	AsOfTS              string  `json:"as_of_ts"`
	TradingSymbol       string  `json:"tradingsymbol"`
	Exchange            string  `json:"exchange,omitempty"`
	ISIN                string  `json:"isin,omitempty"`
	Product             string  `json:"product,omitempty"`
	InstrumentToken     int64   `json:"instrument_token,omitempty"`
	Quantity            int64   `json:"quantity"`
	T1Quantity          int64   `json:"t1_quantity"`
	AveragePrice        float64 `json:"average_price"`
	LastPrice           float64 `json:"last_price"`
	ClosePrice          float64 `json:"close_price"`
	Value               float64 `json:"value"`
	PnL                 float64 `json:"pnl"`
	DayChange           float64 `json:"day_change"`
	DayChangePercentage float64 `json:"day_change_percentage"`
}

// FundsRecord is the cash position of one margin segment.
type FundsRecord struct {
	Account             string  `json:"account"`
	Segment             string  `json:"segment"`
	AsOfDate            string  `json:"as_of_date"`
	AsOfTS              string  `json:"as_of_ts"`
	AvailableCash       float64 `json:"available_cash"`
	Net                 float64 `json:"net"`
	AvailableCollateral float64 `json:"available_collateral"`
}

// Funds segments reported by the broker.
const (
	SegmentEquity    = "equity"
	SegmentCommodity = "commodity"
)

// RawHeader is the first line of every raw log entry.
type RawHeader struct {
	Kind     string  `json:"kind"`
	Dataset  Dataset `json:"dataset"`
	Account  string  `json:"account"`
	AsOfDate string  `json:"as_of_date"`
	AsOfTS   string  `json:"as_of_ts"`
	Lines    int     `json:"lines"`
}

// RawHeaderKind marks the header line of a raw entry.
const RawHeaderKind = "header"

// RawEntry is the append-only source of truth for one snapshot.
// Exactly one of Holdings or Funds is used, according to Header.Dataset.
type RawEntry struct {
	Header   RawHeader
	Holdings []HoldingRecord
	Funds    []FundsRecord
}

// Len returns the number of record lines in the entry.
func (e *RawEntry) Len() int {
	if e.Header.Dataset == DatasetFunds {
		return len(e.Funds)
	}
	return len(e.Holdings)
}

// RawFetchResult is a broker payload as fetched, before normalization.
type RawFetchResult struct {
	Payload   []byte    `json:"payload"`
	FetchedAt time.Time `json:"fetched_at"`
	Source    string    `json:"source,omitempty"`
}

// HistoryQuery selects materialized records for the signal engine and API.
type HistoryQuery struct {
	Dataset Dataset
	Account string // account name or AllAccounts
	Symbol  string // trading symbol or AllSymbols, holdings only
	Until   string // inclusive YYYY-MM-DD bound, empty for no bound
}

// History is the result of a HistoryQuery, ordered by date ascending.
type History struct {
	Holdings []HoldingRecord `json:"holdings,omitempty"`
	Funds    []FundsRecord   `json:"funds,omitempty"`
}

// Snapshot is a single materialized (dataset, account, date) partition.
type Snapshot struct {
	Dataset  Dataset         `json:"dataset"`
	Account  string          `json:"account"`
	AsOfDate string          `json:"as_of_date"`
	Holdings []HoldingRecord `json:"holdings,omitempty"`
	Funds    []FundsRecord   `json:"funds,omitempty"`
}
