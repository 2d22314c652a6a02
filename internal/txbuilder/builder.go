// Package txbuilder encodes unsigned calldata for the position manager and
// swap router. Signing and submission belong to the caller.
package txbuilder

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/agatticelli/clmm-kit/internal/liquidity"
	"github.com/agatticelli/clmm-kit/internal/pricing"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"lukechampine.com/uint128"
)

var (
	ErrEmptyPath         = errors.New("swap path is empty")
	ErrDisconnectedPath  = errors.New("swap path hops are not connected")
	ErrMissingAmount     = errors.New("quote is missing amounts")
	ErrMissingPositionID = errors.New("position token id is required")
)

// maxUint128 collects everything owed
var maxUint128 = uint128.Max.Big()

// Call is an unsigned contract call.
type Call struct {
	To    common.Address
	Data  []byte
	Value *big.Int
}

// DataHex returns the calldata as 0x-prefixed hex.
func (c Call) DataHex() string {
	return hexutil.Encode(c.Data)
}

// DecreaseLiquidityData encodes decreaseLiquidity for a computed removal.
func DecreaseLiquidityData(tokenID *big.Int, r liquidity.RemovalAmounts) ([]byte, error) {
	if tokenID == nil {
		return nil, ErrMissingPositionID
	}
	parsed, err := PositionManagerABI()
	if err != nil {
		return nil, fmt.Errorf("parse position manager abi: %w", err)
	}

	params := struct {
		TokenId    *big.Int
		Liquidity  *big.Int
		Amount0Min *big.Int
		Amount1Min *big.Int
		Deadline   *big.Int
	}{
		TokenId:    tokenID,
		Liquidity:  r.Liquidity.Big(),
		Amount0Min: bigOrZero(r.Amount0Min),
		Amount1Min: bigOrZero(r.Amount1Min),
		Deadline:   new(big.Int).SetUint64(r.Deadline),
	}

	data, err := parsed.Pack("decreaseLiquidity", params)
	if err != nil {
		return nil, fmt.Errorf("pack decreaseLiquidity: %w", err)
	}
	return data, nil
}

// CollectData encodes collect of all owed tokens to recipient.
func CollectData(tokenID *big.Int, recipient common.Address) ([]byte, error) {
	if tokenID == nil {
		return nil, ErrMissingPositionID
	}
	parsed, err := PositionManagerABI()
	if err != nil {
		return nil, fmt.Errorf("parse position manager abi: %w", err)
	}

	params := struct {
		TokenId    *big.Int
		Recipient  common.Address
		Amount0Max *big.Int
		Amount1Max *big.Int
	}{
		TokenId:    tokenID,
		Recipient:  recipient,
		Amount0Max: maxUint128,
		Amount1Max: maxUint128,
	}

	data, err := parsed.Pack("collect", params)
	if err != nil {
		return nil, fmt.Errorf("pack collect: %w", err)
	}
	return data, nil
}

// IncreaseLiquidityData encodes increaseLiquidity for an existing position.
func IncreaseLiquidityData(tokenID *big.Int, p liquidity.IncreaseParams) ([]byte, error) {
	if tokenID == nil {
		return nil, ErrMissingPositionID
	}
	parsed, err := PositionManagerABI()
	if err != nil {
		return nil, fmt.Errorf("parse position manager abi: %w", err)
	}

	params := struct {
		TokenId        *big.Int
		Amount0Desired *big.Int
		Amount1Desired *big.Int
		Amount0Min     *big.Int
		Amount1Min     *big.Int
		Deadline       *big.Int
	}{
		TokenId:        tokenID,
		Amount0Desired: bigOrZero(p.Amount0Desired),
		Amount1Desired: bigOrZero(p.Amount1Desired),
		Amount0Min:     bigOrZero(p.Amount0Min),
		Amount1Min:     bigOrZero(p.Amount1Min),
		Deadline:       new(big.Int).SetUint64(p.Deadline),
	}

	data, err := parsed.Pack("increaseLiquidity", params)
	if err != nil {
		return nil, fmt.Errorf("pack increaseLiquidity: %w", err)
	}
	return data, nil
}

// MulticallData batches position manager calls.
func MulticallData(calls ...[]byte) ([]byte, error) {
	parsed, err := PositionManagerABI()
	if err != nil {
		return nil, fmt.Errorf("parse position manager abi: %w", err)
	}
	data, err := parsed.Pack("multicall", calls)
	if err != nil {
		return nil, fmt.Errorf("pack multicall: %w", err)
	}
	return data, nil
}

// RemoveLiquidity builds decreaseLiquidity + collect as one multicall, so
// the withdrawn tokens reach recipient in the same transaction.
func RemoveLiquidity(chain liquidity.Chain, tokenID *big.Int, recipient common.Address, r liquidity.RemovalAmounts) (Call, error) {
	decrease, err := DecreaseLiquidityData(tokenID, r)
	if err != nil {
		return Call{}, err
	}
	collect, err := CollectData(tokenID, recipient)
	if err != nil {
		return Call{}, err
	}
	data, err := MulticallData(decrease, collect)
	if err != nil {
		return Call{}, err
	}
	return Call{To: chain.PositionManager, Data: data, Value: new(big.Int)}, nil
}

// IncreaseLiquidity builds the increaseLiquidity call to the chain's position manager.
func IncreaseLiquidity(tokenID *big.Int, p liquidity.IncreaseParams) (Call, error) {
	data, err := IncreaseLiquidityData(tokenID, p)
	if err != nil {
		return Call{}, err
	}
	return Call{To: p.PositionManager, Data: data, Value: new(big.Int)}, nil
}

// EncodePath packs hops as tokenIn | fee (3 bytes) | tokenOut | fee | ...
func EncodePath(hops []pricing.RouteHop) ([]byte, error) {
	if len(hops) == 0 {
		return nil, ErrEmptyPath
	}

	path := make([]byte, 0, 20+len(hops)*23)
	path = append(path, hops[0].TokenIn.Address.Bytes()...)
	for i, hop := range hops {
		if i > 0 && hops[i-1].TokenOut.Address != hop.TokenIn.Address {
			return nil, fmt.Errorf("%w at hop %d", ErrDisconnectedPath, i)
		}
		if uint32(hop.Fee) >= 1<<24 {
			return nil, fmt.Errorf("fee %d does not fit uint24", uint32(hop.Fee))
		}
		fee := uint32(hop.Fee)
		path = append(path, byte(fee>>16), byte(fee>>8), byte(fee))
		path = append(path, hop.TokenOut.Address.Bytes()...)
	}
	return path, nil
}

// ExactInput builds a SwapRouter02 exactInput call for the quote's first
// path, with amountOutMinimum bounded by the slippage tolerance.
func ExactInput(chain liquidity.Chain, q *pricing.Quote, recipient common.Address, tolerancePercent decimal.Decimal) (Call, error) {
	if q == nil || q.AmountIn == nil || q.AmountOut == nil {
		return Call{}, ErrMissingAmount
	}
	path, err := EncodePath(q.FirstPath())
	if err != nil {
		return Call{}, err
	}
	minOut := pricing.MinimumReceived(q, tolerancePercent)
	if minOut.Missing {
		return Call{}, pricing.ErrMissingRouteData
	}

	parsed, err := SwapRouterABI()
	if err != nil {
		return Call{}, fmt.Errorf("parse swap router abi: %w", err)
	}

	params := struct {
		Path             []byte
		Recipient        common.Address
		AmountIn         *big.Int
		AmountOutMinimum *big.Int
	}{
		Path:             path,
		Recipient:        recipient,
		AmountIn:         q.AmountIn.ToBig(),
		AmountOutMinimum: minOut.Raw.ToBig(),
	}

	data, err := parsed.Pack("exactInput", params)
	if err != nil {
		return Call{}, fmt.Errorf("pack exactInput: %w", err)
	}
	return Call{To: chain.SwapRouter, Data: data, Value: new(big.Int)}, nil
}

func bigOrZero(v *uint256.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v.ToBig()
}
