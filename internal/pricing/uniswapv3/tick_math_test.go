package uniswapv3

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"
)

func TestGetSqrtRatioAtTick(t *testing.T) {
	tests := []struct {
		tick     int32
		expected string
	}{
		{0, "79228162514264337593543950336"},
		{1, "79232123823359799118286999568"},
		{-1, "79224201403219477170569942574"},
		{60, "79466191966197645195421774833"},
		{-60, "78990846045029531151608375686"},
		{200, "80024378775772204256025656563"},
		{-230280, "791886475482113416236842"},
		{322380, "792359631301295627757723824548136721"},
		{MinTick, "4295128739"},
		{MaxTick, "1461446703485210103287273052203988822378723970342"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			got, err := GetSqrtRatioAtTick(tt.tick)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Dec() != tt.expected {
				t.Errorf("tick %d: got %s, want %s", tt.tick, got.Dec(), tt.expected)
			}
		})
	}
}

func TestGetSqrtRatioAtTick_OutOfBounds(t *testing.T) {
	for _, tick := range []int32{MinTick - 1, MaxTick + 1} {
		if _, err := GetSqrtRatioAtTick(tick); err != ErrInvalidTick {
			t.Errorf("tick %d: expected ErrInvalidTick, got %v", tick, err)
		}
	}
}

func TestGetSqrtRatioAtTick_Bounds(t *testing.T) {
	minRatio := MustGetSqrtRatioAtTick(MinTick)
	if !minRatio.Eq(MinSqrtRatio) {
		t.Errorf("MinTick ratio %s != MinSqrtRatio %s", minRatio.Dec(), MinSqrtRatio.Dec())
	}
	maxRatio := MustGetSqrtRatioAtTick(MaxTick)
	if !maxRatio.Eq(MaxSqrtRatio) {
		t.Errorf("MaxTick ratio %s != MaxSqrtRatio %s", maxRatio.Dec(), MaxSqrtRatio.Dec())
	}
}

func TestGetTickAtSqrtRatio(t *testing.T) {
	tests := []struct {
		name     string
		ratio    *uint256.Int
		expected int32
	}{
		{"min ratio", MinSqrtRatio, MinTick},
		{"q96", new(uint256.Int).Set(Q96), 0},
		{"just below q96", new(uint256.Int).SubUint64(Q96, 1), -1},
		{"ratio at max tick minus one", MustGetSqrtRatioAtTick(MaxTick - 1), MaxTick - 1},
		{"ratio at 60", MustGetSqrtRatioAtTick(60), 60},
		{"just above ratio at -60", new(uint256.Int).AddUint64(MustGetSqrtRatioAtTick(-60), 1), -60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := GetTickAtSqrtRatio(tt.ratio)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("got %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestGetTickAtSqrtRatio_OutOfBounds(t *testing.T) {
	for _, ratio := range []*uint256.Int{
		new(uint256.Int).SubUint64(MinSqrtRatio, 1),
		MaxSqrtRatio,
	} {
		if _, err := GetTickAtSqrtRatio(ratio); err != ErrInvalidSqrtRatio {
			t.Errorf("ratio %s: expected ErrInvalidSqrtRatio, got %v", ratio.Dec(), err)
		}
	}
}

func TestClampTick(t *testing.T) {
	tests := []struct {
		in       int64
		expected int32
	}{
		{0, 0},
		{-887273, MinTick},
		{887273, MaxTick},
		{-1 << 40, MinTick},
		{12345, 12345},
	}
	for _, tt := range tests {
		if got := ClampTick(tt.in); got != tt.expected {
			t.Errorf("ClampTick(%d) = %d, want %d", tt.in, got, tt.expected)
		}
	}
}

func TestFeeTierTickSpacing(t *testing.T) {
	tests := []struct {
		fee      FeeTier
		expected int32
		wantErr  bool
	}{
		{FeeLowest, 1, false},
		{FeeLow, 10, false},
		{FeeMedium, 60, false},
		{FeeHigh, 200, false},
		{FeeTier(2500), 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.fee.String(), func(t *testing.T) {
			got, err := tt.fee.TickSpacing()
			if tt.wantErr {
				var unsupported *UnsupportedFeeTierError
				if !errors.As(err, &unsupported) {
					t.Fatalf("expected UnsupportedFeeTierError, got %v", err)
				}
				if unsupported.Fee != tt.fee {
					t.Errorf("error carries fee %d, want %d", unsupported.Fee, tt.fee)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("got %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestUsableTicks(t *testing.T) {
	tests := []struct {
		spacing int32
		min     int32
		max     int32
	}{
		{1, -887272, 887272},
		{10, -887270, 887270},
		{60, -887220, 887220},
		{200, -887200, 887200},
	}
	for _, tt := range tests {
		if got := MinUsableTick(tt.spacing); got != tt.min {
			t.Errorf("MinUsableTick(%d) = %d, want %d", tt.spacing, got, tt.min)
		}
		if got := MaxUsableTick(tt.spacing); got != tt.max {
			t.Errorf("MaxUsableTick(%d) = %d, want %d", tt.spacing, got, tt.max)
		}
	}
}
