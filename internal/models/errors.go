package models

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateSnapshot = errors.New("snapshot already exists")
	ErrMissingRawData    = errors.New("raw snapshot data missing")
	ErrMalformedRecord   = errors.New("malformed record")
)

// DuplicateSnapshotError is returned when a raw entry already exists for a key.
type DuplicateSnapshotError struct {
	Dataset Dataset
	Account string
	Date    string
}

func (e *DuplicateSnapshotError) Error() string {
	return fmt.Sprintf("%s snapshot for %s on %s already exists", e.Dataset, e.Account, e.Date)
}

func (e *DuplicateSnapshotError) Unwrap() error { return ErrDuplicateSnapshot }

// MissingRawDataError is returned when materializing a key with no raw entry.
type MissingRawDataError struct {
	Dataset Dataset
	Account string
	Date    string
}

func (e *MissingRawDataError) Error() string {
	return fmt.Sprintf("no raw %s data for %s on %s", e.Dataset, e.Account, e.Date)
}

func (e *MissingRawDataError) Unwrap() error { return ErrMissingRawData }

// MalformedRecordError reports a payload or raw line that failed validation.
type MalformedRecordError struct {
	Dataset Dataset
	Account string
	Field   string
	Reason  string
}

func (e *MalformedRecordError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("malformed %s record for %s: %s", e.Dataset, e.Account, e.Reason)
	}
	return fmt.Sprintf("malformed %s record for %s: %s: %s", e.Dataset, e.Account, e.Field, e.Reason)
}

func (e *MalformedRecordError) Unwrap() error { return ErrMalformedRecord }
