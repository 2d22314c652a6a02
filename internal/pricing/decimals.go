package pricing

import (
	"math/big"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// pow10 returns 10^exp as *big.Int
func pow10(exp int) *big.Int {
	if exp < 0 {
		exp = 0
	}
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(exp)), nil)
}

// scaleRat multiplies r by 10^exp in place (exp may be negative) and returns it.
func scaleRat(r *big.Rat, exp int) *big.Rat {
	switch {
	case exp > 0:
		r.Mul(r, new(big.Rat).SetInt(pow10(exp)))
	case exp < 0:
		r.Quo(r, new(big.Rat).SetInt(pow10(-exp)))
	}
	return r
}

// RawToDecimal converts a raw integer amount into a human-readable decimal using decimals.
func RawToDecimal(raw *uint256.Int, decimals uint8) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw.ToBig(), -int32(decimals))
}

// DecimalToRaw converts a human-readable decimal into a raw integer amount,
// truncating digits beyond the token's precision. Negative or oversized
// values return zero.
func DecimalToRaw(val decimal.Decimal, decimals uint8) *uint256.Int {
	if val.Sign() <= 0 {
		return new(uint256.Int)
	}
	raw, overflow := uint256.FromBig(val.Shift(int32(decimals)).Truncate(0).BigInt())
	if overflow {
		return new(uint256.Int)
	}
	return raw
}

// ratToDecimal renders r with roughly sigDigits significant digits, so that
// both very large and very small prices keep their precision.
func ratToDecimal(r *big.Rat, sigDigits int32) decimal.Decimal {
	if r.Sign() == 0 {
		return decimal.Zero
	}
	num := new(big.Int).Abs(r.Num())
	magnitude := int32(len(num.String()) - len(r.Denom().String()))
	places := sigDigits - magnitude
	if places < 0 {
		places = 0
	}
	return decimal.NewFromBigInt(r.Num(), 0).DivRound(decimal.NewFromBigInt(r.Denom(), 0), places)
}
