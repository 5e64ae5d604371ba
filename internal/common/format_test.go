package common

import (
	"math"
	"testing"
)

func TestFormatMoney(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0.00"},
		{1234.5, "1,234.50"},
		{-98765.432, "-98,765.43"},
		{math.NaN(), "-"},
	}
	for _, tt := range tests {
		if got := FormatMoney(tt.in); got != tt.want {
			t.Errorf("FormatMoney(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatSigned(t *testing.T) {
	if got := FormatSignedMoney(10); got != "+10.00" {
		t.Errorf("FormatSignedMoney(10) = %q", got)
	}
	if got := FormatSignedMoney(-10); got != "-10.00" {
		t.Errorf("FormatSignedMoney(-10) = %q", got)
	}
	if got := FormatSignedPct(-3.456); got != "-3.46%" {
		t.Errorf("FormatSignedPct(-3.456) = %q", got)
	}
}

func TestFormatQtyAndPct(t *testing.T) {
	if got := FormatQty(1234567); got != "1,234,567" {
		t.Errorf("FormatQty = %q", got)
	}
	if got := FormatPct(0.2); got != "20.00%" {
		t.Errorf("FormatPct(0.2) = %q", got)
	}
}
