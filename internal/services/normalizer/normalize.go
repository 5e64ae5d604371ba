package normalizer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/snaptrail/internal/models"
)

// fieldReader pulls typed values out of one decoded broker object and
// records the first validation failure.
type fieldReader struct {
	obj     map[string]any
	dataset models.Dataset
	account string
	scope   string
	err     error
}

func (r *fieldReader) fail(field, reason string) {
	if r.err != nil {
		return
	}
	name := field
	if r.scope != "" {
		name = r.scope + "." + field
	}
	r.err = &models.MalformedRecordError{Dataset: r.dataset, Account: r.account, Field: name, Reason: reason}
}

func (r *fieldReader) decimal(field string, required bool) decimal.Decimal {
	v, ok := r.obj[field]
	if !ok || v == nil {
		if required {
			r.fail(field, "missing")
		}
		return decimal.Zero
	}
	var s string
	switch n := v.(type) {
	case json.Number:
		s = n.String()
	case string:
		s = strings.TrimSpace(n)
	default:
		r.fail(field, fmt.Sprintf("expected number, got %T", v))
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		r.fail(field, fmt.Sprintf("not a number: %q", s))
		return decimal.Zero
	}
	return d
}

func (r *fieldReader) integer(field string, required bool) int64 {
	d := r.decimal(field, required)
	if !d.Equal(d.Truncate(0)) {
		r.fail(field, fmt.Sprintf("expected whole number, got %s", d.String()))
		return 0
	}
	return d.IntPart()
}

func (r *fieldReader) str(field string, required bool) string {
	v, ok := r.obj[field]
	if !ok || v == nil {
		if required {
			r.fail(field, "missing")
		}
		return ""
	}
	s, ok := v.(string)
	if !ok {
		r.fail(field, fmt.Sprintf("expected string, got %T", v))
		return ""
	}
	s = strings.TrimSpace(s)
	if required && s == "" {
		r.fail(field, "empty")
	}
	return s
}

// decodePayload decodes JSON keeping numbers exact. A broker envelope of the
// form {"status": ..., "data": ...} is unwrapped.
func decodePayload(payload []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if obj, ok := v.(map[string]any); ok {
		if data, ok := obj["data"]; ok {
			if _, hasStatus := obj["status"]; hasStatus {
				return data, nil
			}
		}
	}
	return v, nil
}

// NormalizeHoldings validates a holdings payload and returns canonical records.
// An empty array is a valid empty snapshot.
func NormalizeHoldings(account, asOfDate, asOfTS string, payload []byte) ([]models.HoldingRecord, error) {
	v, err := decodePayload(payload)
	if err != nil {
		return nil, &models.MalformedRecordError{Dataset: models.DatasetHoldings, Account: account, Reason: "invalid JSON: " + err.Error()}
	}
	items, ok := v.([]any)
	if !ok {
		return nil, &models.MalformedRecordError{Dataset: models.DatasetHoldings, Account: account, Reason: fmt.Sprintf("expected array of holdings, got %T", v)}
	}

	records := make([]models.HoldingRecord, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, &models.MalformedRecordError{Dataset: models.DatasetHoldings, Account: account, Field: fmt.Sprintf("[%d]", i), Reason: "expected object"}
		}
		r := &fieldReader{obj: obj, dataset: models.DatasetHoldings, account: account, scope: fmt.Sprintf("[%d]", i)}

		symbol := r.str("tradingsymbol", true)
		qty := r.decimal("quantity", true)
		avg := r.decimal("average_price", true)
		last := r.decimal("last_price", true)

		value := qty.Mul(last)
		pnl := value.Sub(qty.Mul(avg))
		if _, reported := obj["pnl"]; reported && obj["pnl"] != nil {
			pnl = r.decimal("pnl", false)
		}

		rec := models.HoldingRecord{
			Account:             account,
			AsOfDate:            asOfDate,
			AsOfTS:              asOfTS,
			TradingSymbol:       symbol,
			Exchange:            r.str("exchange", false),
			ISIN:                r.str("isin", false),
			Product:             r.str("product", false),
			InstrumentToken:     r.integer("instrument_token", false),
			Quantity:            r.integer("quantity", true),
			T1Quantity:          r.integer("t1_quantity", false),
			AveragePrice:        avg.InexactFloat64(),
			LastPrice:           last.InexactFloat64(),
			ClosePrice:          r.decimal("close_price", false).InexactFloat64(),
			Value:               value.InexactFloat64(),
			PnL:                 pnl.InexactFloat64(),
			DayChange:           r.decimal("day_change", false).InexactFloat64(),
			DayChangePercentage: r.decimal("day_change_percentage", false).InexactFloat64(),
		}
		if r.err != nil {
			return nil, r.err
		}
		records = append(records, rec)
	}
	return records, nil
}

// NormalizeFunds validates a funds payload and returns one record per segment
// present, equity first.
func NormalizeFunds(account, asOfDate, asOfTS string, payload []byte) ([]models.FundsRecord, error) {
	v, err := decodePayload(payload)
	if err != nil {
		return nil, &models.MalformedRecordError{Dataset: models.DatasetFunds, Account: account, Reason: "invalid JSON: " + err.Error()}
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, &models.MalformedRecordError{Dataset: models.DatasetFunds, Account: account, Reason: fmt.Sprintf("expected object, got %T", v)}
	}

	var records []models.FundsRecord
	for _, segment := range []string{models.SegmentEquity, models.SegmentCommodity} {
		raw, present := obj[segment]
		if !present || raw == nil {
			continue
		}
		seg, ok := raw.(map[string]any)
		if !ok {
			return nil, &models.MalformedRecordError{Dataset: models.DatasetFunds, Account: account, Field: segment, Reason: "expected object"}
		}

		r := &fieldReader{obj: seg, dataset: models.DatasetFunds, account: account, scope: segment}
		net := r.decimal("net", true)

		var cash, collateral decimal.Decimal
		if avail, ok := seg["available"]; ok && avail != nil {
			availObj, ok := avail.(map[string]any)
			if !ok {
				r.fail("available", "expected object")
			} else {
				ar := &fieldReader{obj: availObj, dataset: models.DatasetFunds, account: account, scope: segment + ".available"}
				cash = ar.decimal("cash", false)
				collateral = ar.decimal("collateral", false)
				if ar.err != nil {
					return nil, ar.err
				}
			}
		}
		if r.err != nil {
			return nil, r.err
		}

		records = append(records, models.FundsRecord{
			Account:             account,
			Segment:             segment,
			AsOfDate:            asOfDate,
			AsOfTS:              asOfTS,
			AvailableCash:       cash.InexactFloat64(),
			Net:                 net.InexactFloat64(),
			AvailableCollateral: collateral.InexactFloat64(),
		})
	}

	if len(records) == 0 {
		return nil, &models.MalformedRecordError{Dataset: models.DatasetFunds, Account: account, Reason: "no equity or commodity segment"}
	}
	return records, nil
}
