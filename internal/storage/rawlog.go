package storage

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/bobmcallan/snaptrail/internal/calendar"
	"github.com/bobmcallan/snaptrail/internal/models"
)

const rawExt = ".jsonl"

// rawPrefix returns the key prefix holding every raw entry of an account.
func rawPrefix(dataset models.Dataset, account string) (string, error) {
	if !dataset.Valid() {
		return "", fmt.Errorf("unknown dataset %q", dataset)
	}
	if account == "" || account == models.AllAccounts ||
		strings.ContainsAny(account, `/\`) || strings.Contains(account, "..") {
		return "", fmt.Errorf("invalid account name %q", account)
	}
	return path.Join(string(dataset)+"_jsonl", account) + "/", nil
}

// rawKey returns the blob key of one raw entry,
// e.g. "holdings_jsonl/AB1234/2025-01-03.jsonl".
func rawKey(dataset models.Dataset, account string, date calendar.Date) (string, error) {
	prefix, err := rawPrefix(dataset, account)
	if err != nil {
		return "", err
	}
	return prefix + date.String() + rawExt, nil
}

// rawChecksum identifies the exact bytes a partition was derived from.
func rawChecksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// encodeRawEntry renders a header line followed by one JSON line per record.
func encodeRawEntry(entry models.RawEntry) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	header := entry.Header
	header.Kind = models.RawHeaderKind
	header.Lines = entry.Len()
	if err := enc.Encode(header); err != nil {
		return nil, fmt.Errorf("failed to encode raw header: %w", err)
	}

	if header.Dataset == models.DatasetFunds {
		for i := range entry.Funds {
			if err := enc.Encode(&entry.Funds[i]); err != nil {
				return nil, fmt.Errorf("failed to encode funds line %d: %w", i, err)
			}
		}
	} else {
		for i := range entry.Holdings {
			if err := enc.Encode(&entry.Holdings[i]); err != nil {
				return nil, fmt.Errorf("failed to encode holdings line %d: %w", i, err)
			}
		}
	}
	return buf.Bytes(), nil
}

// decodeRawEntry parses a raw entry. Entries written before headers were
// introduced have no header line and are accepted as-is.
func decodeRawEntry(data []byte, dataset models.Dataset, account string) (*models.RawEntry, error) {
	malformed := func(field, reason string) error {
		return &models.MalformedRecordError{Dataset: dataset, Account: account, Field: field, Reason: reason}
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	entry := &models.RawEntry{Header: models.RawHeader{Dataset: dataset, Account: account}}
	headed := false
	lineNo := 0
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		lineNo++

		if lineNo == 1 {
			var probe struct {
				Kind string `json:"kind"`
			}
			if err := json.Unmarshal(line, &probe); err != nil {
				return nil, malformed("line 1", err.Error())
			}
			if probe.Kind == models.RawHeaderKind {
				if err := json.Unmarshal(line, &entry.Header); err != nil {
					return nil, malformed("header", err.Error())
				}
				if entry.Header.Dataset != dataset {
					return nil, malformed("header", fmt.Sprintf("dataset %q, expected %q", entry.Header.Dataset, dataset))
				}
				headed = true
				continue
			}
		}

		switch dataset {
		case models.DatasetFunds:
			var rec models.FundsRecord
			if err := json.Unmarshal(line, &rec); err != nil {
				return nil, malformed(fmt.Sprintf("line %d", lineNo), err.Error())
			}
			entry.Funds = append(entry.Funds, rec)
		default:
			var rec models.HoldingRecord
			if err := json.Unmarshal(line, &rec); err != nil {
				return nil, malformed(fmt.Sprintf("line %d", lineNo), err.Error())
			}
			entry.Holdings = append(entry.Holdings, rec)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, malformed("body", err.Error())
	}

	if headed {
		if got := entry.Len(); got != entry.Header.Lines {
			return nil, malformed("lines", fmt.Sprintf("header declares %d records, found %d", entry.Header.Lines, got))
		}
	} else {
		entry.Header.Kind = models.RawHeaderKind
		entry.Header.Lines = entry.Len()
	}
	return entry, nil
}
