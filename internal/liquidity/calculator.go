package liquidity

import (
	"errors"
	"time"

	"github.com/agatticelli/clmm-kit/internal/money"
	"github.com/agatticelli/clmm-kit/internal/pricing/uniswapv3"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"lukechampine.com/uint128"
)

// DeadlineWindow is how long a built transaction stays valid on chain.
const DeadlineWindow = 1200 * time.Second

var (
	// ErrSideNotAccepted is returned when the range cannot take the given token
	// at the current price (e.g. token1 into a range above the price).
	ErrSideNotAccepted = errors.New("range does not accept this token at the current price")

	// ErrLiquidityOverflow is returned when implied liquidity exceeds 128 bits
	ErrLiquidityOverflow = errors.New("liquidity overflows uint128")
)

// ScaleLiquidityByPercentage returns floor(total * percent / 100).
// percent >= 100 returns total unchanged so a full exit leaves no dust.
func ScaleLiquidityByPercentage(total uint128.Uint128, percent uint8) uint128.Uint128 {
	if percent >= 100 {
		return total
	}
	if percent == 0 {
		return uint128.Zero
	}
	// total = q*100 + r, so total*p/100 = q*p + r*p/100 with no overflow
	q, r := total.QuoRem64(100)
	return q.Mul64(uint64(percent)).Add64(r * uint64(percent) / 100)
}

// Calculator turns position and pool snapshots into amounts and parameters.
// It holds no state besides the clock used for deadlines.
type Calculator struct {
	now func() time.Time
}

// Option configures a Calculator.
type Option func(*Calculator)

// WithClock replaces time.Now as the deadline source.
func WithClock(now func() time.Time) Option {
	return func(c *Calculator) {
		c.now = now
	}
}

// NewCalculator creates a new liquidity calculator
func NewCalculator(opts ...Option) *Calculator {
	c := &Calculator{now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Deadline returns the unix deadline for a transaction built now.
func (c *Calculator) Deadline() uint64 {
	return uint64(c.now().Add(DeadlineWindow).Unix())
}

// RemovalAmounts are the decreaseLiquidity inputs for a partial or full exit.
type RemovalAmounts struct {
	Liquidity  uint128.Uint128
	Amount0    *uint256.Int
	Amount1    *uint256.Int
	Amount0Min *uint256.Int
	Amount1Min *uint256.Int
	Deadline   uint64
	Status     RangeStatus
}

// ComputeRemovalAmounts returns the token amounts that removing
// liquidityToRemove from pos pays out at the pool's current price, rounded
// down as the pool does, and their slippage-bounded minimums.
// liquidityToRemove is capped at the position's liquidity, so an empty
// position always yields zero amounts.
//
// Nil snapshots or a zero pool price are programmer errors and panic.
func (c *Calculator) ComputeRemovalAmounts(pool *PoolState, pos *Position, liquidityToRemove uint128.Uint128, tolerancePercent decimal.Decimal) RemovalAmounts {
	if pool == nil || pos == nil {
		panic("liquidity: nil pool or position snapshot")
	}
	if pool.SqrtPriceX96 == nil || pool.SqrtPriceX96.IsZero() {
		panic("liquidity: pool sqrtPriceX96 must be positive")
	}

	if liquidityToRemove.Cmp(pos.Liquidity) > 0 {
		liquidityToRemove = pos.Liquidity
	}

	out := RemovalAmounts{
		Liquidity:  liquidityToRemove,
		Amount0:    new(uint256.Int),
		Amount1:    new(uint256.Int),
		Amount0Min: new(uint256.Int),
		Amount1Min: new(uint256.Int),
		Deadline:   c.Deadline(),
		Status:     pos.Status(pool.CurrentTick),
	}
	if liquidityToRemove.IsZero() {
		return out
	}

	sqrtLower := uniswapv3.MustGetSqrtRatioAtTick(uniswapv3.ClampTick(int64(pos.TickLower)))
	sqrtUpper := uniswapv3.MustGetSqrtRatioAtTick(uniswapv3.ClampTick(int64(pos.TickUpper)))
	out.Amount0, out.Amount1 = uniswapv3.GetAmountsForLiquidity(pool.SqrtPriceX96, sqrtLower, sqrtUpper, toUint256(liquidityToRemove))

	bps := money.NewBPSFromPercent(tolerancePercent)
	out.Amount0Min = money.ApplyMin(out.Amount0, bps)
	out.Amount1Min = money.ApplyMin(out.Amount1, bps)
	return out
}

// ComputeRemovalForPercentage scales the position's liquidity by percent and
// computes the removal amounts for it.
func (c *Calculator) ComputeRemovalForPercentage(pool *PoolState, pos *Position, percent uint8, tolerancePercent decimal.Decimal) RemovalAmounts {
	if pos == nil {
		panic("liquidity: nil position snapshot")
	}
	return c.ComputeRemovalAmounts(pool, pos, ScaleLiquidityByPercentage(pos.Liquidity, percent), tolerancePercent)
}

// IncreaseParams are the increaseLiquidity inputs for an existing position.
type IncreaseParams struct {
	ChainID         uint64
	PositionManager common.Address
	Amount0Desired  *uint256.Int
	Amount1Desired  *uint256.Int
	Amount0Min      *uint256.Int
	Amount1Min      *uint256.Int
	Deadline        uint64
}

// ComputeIncreaseLiquidityParams applies the slippage tolerance to the
// desired amounts. Any side with a non-zero desired amount gets a minimum of
// at least one raw unit. A side with nothing desired keeps a zero minimum
// instead: the pool takes nothing of that token on a single-sided deposit, so
// a one-unit floor there would make the transaction revert.
func (c *Calculator) ComputeIncreaseLiquidityParams(amount0Desired, amount1Desired *uint256.Int, tolerancePercent decimal.Decimal, chain Chain) IncreaseParams {
	bps := money.NewBPSFromPercent(tolerancePercent)
	return IncreaseParams{
		ChainID:         chain.ID,
		PositionManager: chain.PositionManager,
		Amount0Desired:  cloneOrZero(amount0Desired),
		Amount1Desired:  cloneOrZero(amount1Desired),
		Amount0Min:      minAtLeastOne(amount0Desired, bps),
		Amount1Min:      minAtLeastOne(amount1Desired, bps),
		Deadline:        c.Deadline(),
	}
}

func minAtLeastOne(desired *uint256.Int, bps money.BPS) *uint256.Int {
	minimum := money.ApplyMin(desired, bps)
	if desired != nil && !desired.IsZero() && minimum.IsZero() {
		minimum.SetOne()
	}
	return minimum
}

func cloneOrZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(v)
}

// Side selects which token a deposit amount is given in.
type Side int

const (
	Token0 Side = iota
	Token1
)

// AddAmounts is a deposit split across both tokens for a range.
type AddAmounts struct {
	Amount0   *uint256.Int
	Amount1   *uint256.Int
	Liquidity uint128.Uint128
}

// ComputeAddAmounts derives the dependent side of a deposit into
// [tickLower, tickUpper) from the amount given for one side, through the
// liquidity that amount mints. The dependent amount rounds up, matching what
// the pool charges on mint.
func ComputeAddAmounts(pool *PoolState, tickLower, tickUpper int32, amount *uint256.Int, side Side) (out AddAmounts, err error) {
	defer func() {
		// user-sized amounts can push the 512-bit mulDiv past 256 bits
		if r := recover(); r != nil {
			if r != uniswapv3.ErrMulDivOverflow {
				panic(r)
			}
			out, err = AddAmounts{}, ErrLiquidityOverflow
		}
	}()

	if pool == nil || pool.SqrtPriceX96 == nil {
		panic("liquidity: nil pool snapshot")
	}

	sqrtLower := uniswapv3.MustGetSqrtRatioAtTick(uniswapv3.ClampTick(int64(tickLower)))
	sqrtUpper := uniswapv3.MustGetSqrtRatioAtTick(uniswapv3.ClampTick(int64(tickUpper)))
	sqrtPrice := pool.SqrtPriceX96
	given := cloneOrZero(amount)

	below := !sqrtPrice.Gt(sqrtLower)
	above := !sqrtPrice.Lt(sqrtUpper)

	var liquidity *uint256.Int
	out = AddAmounts{Amount0: new(uint256.Int), Amount1: new(uint256.Int)}

	switch side {
	case Token0:
		if above {
			return AddAmounts{}, ErrSideNotAccepted
		}
		out.Amount0 = given
		if below {
			liquidity = uniswapv3.GetLiquidityForAmount0(sqrtLower, sqrtUpper, given)
			break
		}
		liquidity = uniswapv3.GetLiquidityForAmount0(sqrtPrice, sqrtUpper, given)
		out.Amount1 = uniswapv3.GetAmount1Delta(sqrtLower, sqrtPrice, liquidity, true)
	default:
		if below {
			return AddAmounts{}, ErrSideNotAccepted
		}
		out.Amount1 = given
		if above {
			liquidity = uniswapv3.GetLiquidityForAmount1(sqrtLower, sqrtUpper, given)
			break
		}
		liquidity = uniswapv3.GetLiquidityForAmount1(sqrtLower, sqrtPrice, given)
		out.Amount0 = uniswapv3.GetAmount0Delta(sqrtPrice, sqrtUpper, liquidity, true)
	}

	l, ok := toUint128(liquidity)
	if !ok {
		return AddAmounts{}, ErrLiquidityOverflow
	}
	out.Liquidity = l
	return out, nil
}
