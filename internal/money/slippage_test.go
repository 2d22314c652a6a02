package money

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

func TestApplyMinMax(t *testing.T) {
	tests := []struct {
		name    string
		amount  uint64
		bps     BPS
		wantMin uint64
		wantMax uint64
	}{
		{"5% of 1000", 1000, NewBPSFromPercent(decimal.NewFromInt(5)), 950, 1050},
		{"0.5% of 1000", 1000, 50, 995, 1005},
		{"floors both sides", 999, 50, 994, 1003},
		{"zero bps is identity", 123456789, 0, 123456789, 123456789},
		{"zero amount", 0, 100, 0, 0},
		{"one wei", 1, 50, 0, 1},
		{"100% tolerance", 1000, 10000, 0, 2000},
		{"negative bps clamps to zero", 1000, -25, 1000, 1000},
		{"bps above 100% clamps", 1000, 20000, 0, 2000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amount := uint256.NewInt(tt.amount)

			gotMin := ApplyMin(amount, tt.bps)
			if gotMin.Uint64() != tt.wantMin {
				t.Errorf("ApplyMin: got %s, want %d", gotMin.Dec(), tt.wantMin)
			}

			gotMax := ApplyMax(amount, tt.bps)
			if gotMax.Uint64() != tt.wantMax {
				t.Errorf("ApplyMax: got %s, want %d", gotMax.Dec(), tt.wantMax)
			}

			if amount.Uint64() != tt.amount {
				t.Errorf("input mutated: %s", amount.Dec())
			}
		})
	}
}

func TestApplyMinMax_Bounds(t *testing.T) {
	amounts := []*uint256.Int{
		uint256.NewInt(0),
		uint256.NewInt(1),
		uint256.NewInt(1e18),
		uint256.MustFromHex("0xffffffffffffffffffffffffffffffff"),
		new(uint256.Int).Rsh(new(uint256.Int).SetAllOne(), 8),
	}

	for _, amount := range amounts {
		for _, bps := range []BPS{0, 1, 30, 50, 100, 500, 9999, 10000} {
			lo := ApplyMin(amount, bps)
			hi := ApplyMax(amount, bps)
			if lo.Gt(amount) {
				t.Errorf("ApplyMin(%s, %d) = %s exceeds amount", amount.Dec(), bps, lo.Dec())
			}
			if hi.Lt(amount) {
				t.Errorf("ApplyMax(%s, %d) = %s below amount", amount.Dec(), bps, hi.Dec())
			}
			if bps == 0 && (!lo.Eq(amount) || !hi.Eq(amount)) {
				t.Errorf("bps 0 must be identity for %s", amount.Dec())
			}
		}
	}
}

func TestApplyMax_Saturates(t *testing.T) {
	ceiling := new(uint256.Int).SetAllOne()
	got := ApplyMax(ceiling, 100)
	if !got.Eq(ceiling) {
		t.Errorf("expected saturation at 2^256-1, got %s", got.Hex())
	}
}

func TestApplyMin_LargeAmountExact(t *testing.T) {
	// 2^200 * 9950 / 10000 must not lose precision through an intermediate overflow
	amount := new(uint256.Int).Lsh(uint256.NewInt(1), 200)
	got := ApplyMin(amount, 50)

	want := new(uint256.Int).Mul(new(uint256.Int).Rsh(amount, 4), uint256.NewInt(9950))
	want.Div(want, uint256.NewInt(625))
	if !got.Eq(want) {
		t.Errorf("got %s, want %s", got.Dec(), want.Dec())
	}
}

func TestApplyMin_NilAmount(t *testing.T) {
	if got := ApplyMin(nil, 50); !got.IsZero() {
		t.Errorf("expected zero for nil amount, got %s", got.Dec())
	}
	if got := ApplyMax(nil, 50); !got.IsZero() {
		t.Errorf("expected zero for nil amount, got %s", got.Dec())
	}
}
