// Package signal derives trailing stop-loss recommendations from snapshot history
package signal

import (
	"context"
	"fmt"
	"sort"

	"github.com/bobmcallan/snaptrail/internal/calendar"
	"github.com/bobmcallan/snaptrail/internal/common"
	"github.com/bobmcallan/snaptrail/internal/interfaces"
	"github.com/bobmcallan/snaptrail/internal/models"
	"github.com/bobmcallan/snaptrail/internal/signals"
)

// Service implements SignalService
type Service struct {
	store    interfaces.SnapshotStore
	computer *signals.Computer
	config   common.SignalsConfig
	accounts map[string]bool
	logger   *common.Logger
}

// NewService creates a new signal service. An empty accounts list reads every
// account present in the store.
func NewService(store interfaces.SnapshotStore, config common.SignalsConfig, accounts []string, logger *common.Logger) *Service {
	var allowed map[string]bool
	if len(accounts) > 0 {
		allowed = make(map[string]bool, len(accounts))
		for _, a := range accounts {
			allowed[a] = true
		}
	}
	return &Service{
		store: store,
		computer: signals.NewComputer(signals.Policy{
			Rules:          config.Policy,
			MomentumWindow: config.Momentum.Window,
			MinGain:        config.Momentum.MinGain,
		}),
		config:   config,
		accounts: allowed,
		logger:   logger,
	}
}

// series is the per-date price history of one symbol, keyed by date.
type series map[string]float64

func (s series) observe(date string, price float64) {
	if cur, ok := s[date]; !ok || price > cur {
		s[date] = price
	}
}

// prices returns the series ordered by date.
func (s series) prices() []float64 {
	dates := make([]string, 0, len(s))
	for d := range s {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	out := make([]float64, len(dates))
	for i, d := range dates {
		out[i] = s[d]
	}
	return out
}

// position is a merged holding of one symbol in one account on the target date.
type position struct {
	account string
	symbol  string
	qty     int64
	cost    float64 // qty * average price
	last    float64
}

func (p *position) add(h models.HoldingRecord) {
	p.qty += h.Quantity
	p.cost += float64(h.Quantity) * h.AveragePrice
	if h.LastPrice > p.last {
		p.last = h.LastPrice
	}
}

func (p *position) avg() float64 {
	if p.qty == 0 {
		return 0
	}
	return p.cost / float64(p.qty)
}

type acctSym struct{ account, symbol string }

// ComputeSignals returns per-account and consolidated recommendations for
// the positions held on target. Peaks are recomputed from the full
// materialized history up to and including target.
func (s *Service) ComputeSignals(ctx context.Context, target calendar.Date) (*models.SignalSet, error) {
	day := target.String()
	hist, err := s.store.QueryHistory(ctx, models.HistoryQuery{
		Dataset: models.DatasetHoldings,
		Account: models.AllAccounts,
		Symbol:  models.AllSymbols,
		Until:   day,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load holdings history: %w", err)
	}

	set := &models.SignalSet{TargetDate: day}
	excluded := map[string]bool{}

	perAccount := map[acctSym]series{}
	union := map[string]series{}
	positions := map[acctSym]*position{}

	for _, h := range hist.Holdings {
		if s.accounts != nil && !s.accounts[h.Account] {
			continue
		}
		if s.config.IsExcluded(h.TradingSymbol) {
			if h.AsOfDate == day {
				excluded[h.TradingSymbol] = true
			}
			continue
		}

		key := acctSym{h.Account, h.TradingSymbol}
		if perAccount[key] == nil {
			perAccount[key] = series{}
		}
		perAccount[key].observe(h.AsOfDate, h.LastPrice)
		if union[h.TradingSymbol] == nil {
			union[h.TradingSymbol] = series{}
		}
		union[h.TradingSymbol].observe(h.AsOfDate, h.LastPrice)

		if h.AsOfDate == day {
			p := positions[key]
			if p == nil {
				p = &position{account: h.Account, symbol: h.TradingSymbol}
				positions[key] = p
			}
			p.add(h)
		}
	}

	bySymbol := map[string][]*position{}
	for key, p := range positions {
		if p.qty <= 0 {
			continue
		}
		set.PerAccount = append(set.PerAccount, s.computer.Evaluate(signals.Position{
			Account:     p.account,
			Symbol:      p.symbol,
			Quantity:    p.qty,
			AverageCost: p.avg(),
			History:     perAccount[key].prices(),
		}))
		bySymbol[p.symbol] = append(bySymbol[p.symbol], p)
	}

	for symbol, group := range bySymbol {
		set.Consolidated = append(set.Consolidated, s.consolidate(symbol, group, union[symbol]))
	}

	for sym := range excluded {
		set.Excluded = append(set.Excluded, sym)
	}
	sort.Strings(set.Excluded)
	SortRecommendations(set.PerAccount)
	SortRecommendations(set.Consolidated)

	s.logger.Debug().
		Str("target_date", day).
		Int("positions", len(set.PerAccount)).
		Int("symbols", len(set.Consolidated)).
		Msg("Signals computed")
	return set, nil
}

// consolidate evaluates one symbol across accounts: quantities summed, cost
// weighted, current price the highest account price, peak over the union.
func (s *Service) consolidate(symbol string, group []*position, hist series) models.Recommendation {
	total := &position{account: models.AllAccounts, symbol: symbol}
	var value, pnl float64
	for _, p := range group {
		total.qty += p.qty
		total.cost += p.cost
		if p.last > total.last {
			total.last = p.last
		}
		value += float64(p.qty) * p.last
		pnl += float64(p.qty)*p.last - p.cost
	}

	prices := hist.prices()
	if n := len(prices); n > 0 {
		prices[n-1] = total.last
	}

	rec := s.computer.Evaluate(signals.Position{
		Account:     models.AllAccounts,
		Symbol:      symbol,
		Quantity:    total.qty,
		AverageCost: total.avg(),
		History:     prices,
	})
	rec.Value = value
	rec.PnLAmount = pnl

	if rec.ExitQty > 0 {
		holdings := make([]models.Allocation, len(group))
		for i, p := range group {
			holdings[i] = models.Allocation{Account: p.account, Quantity: p.qty}
		}
		rec.Allocations = AllocateExit(rec.ExitQty, holdings)
	}
	return rec
}

// AllocateExit splits exitQty across accounts in proportion to their
// quantities using largest-remainder rounding. No account is asked to sell
// more than it holds. Ties go to the larger holding, then account name.
func AllocateExit(exitQty int64, holdings []models.Allocation) []models.Allocation {
	out := make([]models.Allocation, len(holdings))
	copy(out, holdings)
	sort.Slice(out, func(i, j int) bool { return out[i].Account < out[j].Account })

	var total int64
	for _, h := range out {
		total += h.Quantity
	}
	if total <= 0 || exitQty <= 0 {
		return out
	}
	if exitQty > total {
		exitQty = total
	}

	type share struct {
		idx       int
		remainder int64 // numerator of the fractional part, over total
	}
	shares := make([]share, len(out))
	var assigned int64
	for i := range out {
		num := exitQty * out[i].Quantity
		out[i].ExitQty = num / total
		assigned += out[i].ExitQty
		shares[i] = share{idx: i, remainder: num % total}
	}

	sort.SliceStable(shares, func(a, b int) bool {
		ra, rb := shares[a], shares[b]
		if ra.remainder != rb.remainder {
			return ra.remainder > rb.remainder
		}
		return out[ra.idx].Quantity > out[rb.idx].Quantity
	})
	for _, sh := range shares {
		if assigned >= exitQty {
			break
		}
		if out[sh.idx].ExitQty < out[sh.idx].Quantity {
			out[sh.idx].ExitQty++
			assigned++
		}
	}
	return out
}

// SortRecommendations orders by value desc, then pnl_amount desc, then
// account and symbol.
func SortRecommendations(recs []models.Recommendation) {
	sort.SliceStable(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if a.Value != b.Value {
			return a.Value > b.Value
		}
		if a.PnLAmount != b.PnLAmount {
			return a.PnLAmount > b.PnLAmount
		}
		if a.Account != b.Account {
			return a.Account < b.Account
		}
		return a.Symbol < b.Symbol
	})
}

var _ interfaces.SignalService = (*Service)(nil)
