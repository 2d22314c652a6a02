package money

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestNewUSDFromDecimal(t *testing.T) {
	tests := []struct {
		name     string
		dollars  string
		expected USD
	}{
		{"rounds to the cent", "3.14159", 314},
		{"half cent rounds up", "0.005", 1},
		{"whole dollars", "12", 1200},
		{"negative", "-50.25", -5025},
		{"saturates high", "1e30", USD(MaxUSD * USDScale)},
		{"saturates low", "-1e30", USD(-MaxUSD * USDScale)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewUSDFromDecimal(decimal.RequireFromString(tt.dollars))
			if got != tt.expected {
				t.Errorf("got %d cents, want %d", int64(got), int64(tt.expected))
			}
		})
	}
}

func TestUSDString(t *testing.T) {
	tests := []struct {
		amount   USD
		expected string
	}{
		{10000, "$100.00"},
		{50, "$0.50"},
		{-5025, "-$50.25"},
		{0, "$0.00"},
		{123456789, "$1234567.89"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.amount.String(); got != tt.expected {
				t.Errorf("got %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestNewBPSFromPercent(t *testing.T) {
	tests := []struct {
		percent  string
		expected BPS
	}{
		{"0.5", 50},
		{"5", 500},
		{"0", 0},
		{"0.004", 0},
		{"0.005", 1},
		{"0.125", 13},
		{"100", 10000},
		{"250", 10000},
		{"-1", 0},
	}

	for _, tt := range tests {
		t.Run(tt.percent, func(t *testing.T) {
			got := NewBPSFromPercent(decimal.RequireFromString(tt.percent))
			if got != tt.expected {
				t.Errorf("got %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestNewBPSFromRatio(t *testing.T) {
	tests := []struct {
		ratio    string
		expected BPS
	}{
		{"-0.0123", -123},
		{"0.05", 500},
		{"-0.00009", 0},
		{"0", 0},
	}

	for _, tt := range tests {
		t.Run(tt.ratio, func(t *testing.T) {
			if got := NewBPSFromRatio(decimal.RequireFromString(tt.ratio)); got != tt.expected {
				t.Errorf("got %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestBPSString(t *testing.T) {
	if got := BPS(50).String(); got != "50 bps" {
		t.Errorf("got %q, want %q", got, "50 bps")
	}
	if got := BPS(-123).Int64(); got != -123 {
		t.Errorf("got %d, want -123", got)
	}
}
