package txbuilder

import (
	"bytes"
	"encoding/hex"
	"errors"
	"math/big"
	"testing"

	"github.com/agatticelli/clmm-kit/internal/liquidity"
	"github.com/agatticelli/clmm-kit/internal/pricing"
	"github.com/agatticelli/clmm-kit/internal/pricing/uniswapv3"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"lukechampine.com/uint128"
)

var (
	usdc = pricing.Token{Address: common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"), Decimals: 6, Symbol: "USDC", ChainID: 1}
	weth = pricing.Token{Address: common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"), Decimals: 18, Symbol: "WETH", ChainID: 1}
	dai  = pricing.Token{Address: common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F"), Decimals: 18, Symbol: "DAI", ChainID: 1}

	recipient = common.HexToAddress("0x00000000000000000000000000000000000000aa")
)

// word returns the i-th 32-byte argument word after the selector.
func word(data []byte, i int) []byte {
	start := 4 + i*32
	return data[start : start+32]
}

func wordBig(data []byte, i int) *big.Int {
	return new(big.Int).SetBytes(word(data, i))
}

func selector(data []byte) string {
	return hex.EncodeToString(data[:4])
}

func TestDecreaseLiquidityData(t *testing.T) {
	r := liquidity.RemovalAmounts{
		Liquidity:  uint128.From64(1_000_000),
		Amount0Min: uint256.NewInt(500),
		Amount1Min: uint256.NewInt(700),
		Deadline:   1_709_295_600,
	}

	data, err := DecreaseLiquidityData(big.NewInt(42), r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := selector(data); got != "0c49ccbe" {
		t.Errorf("selector: got %s, want 0c49ccbe", got)
	}
	if len(data) != 4+5*32 {
		t.Fatalf("length: got %d", len(data))
	}

	want := []int64{42, 1_000_000, 500, 700, 1_709_295_600}
	for i, w := range want {
		if got := wordBig(data, i); got.Int64() != w {
			t.Errorf("word %d: got %s, want %d", i, got, w)
		}
	}
}

func TestDecreaseLiquidityData_NilMinimums(t *testing.T) {
	data, err := DecreaseLiquidityData(big.NewInt(1), liquidity.RemovalAmounts{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 1; i < 5; i++ {
		if wordBig(data, i).Sign() != 0 {
			t.Errorf("word %d: expected zero", i)
		}
	}
}

func TestCollectData(t *testing.T) {
	data, err := CollectData(big.NewInt(7), recipient)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := selector(data); got != "fc6f7865" {
		t.Errorf("selector: got %s, want fc6f7865", got)
	}
	if wordBig(data, 0).Int64() != 7 {
		t.Errorf("token id: got %s", wordBig(data, 0))
	}
	if common.BytesToAddress(word(data, 1)) != recipient {
		t.Errorf("recipient: got %x", word(data, 1))
	}
	max := uint128.Max.Big()
	for i := 2; i < 4; i++ {
		if wordBig(data, i).Cmp(max) != 0 {
			t.Errorf("word %d: got %s, want max uint128", i, wordBig(data, i))
		}
	}
}

func TestIncreaseLiquidityData(t *testing.T) {
	p := liquidity.IncreaseParams{
		Amount0Desired: uint256.NewInt(1000),
		Amount1Desired: uint256.NewInt(0),
		Amount0Min:     uint256.NewInt(995),
		Amount1Min:     uint256.NewInt(0),
		Deadline:       99,
	}

	data, err := IncreaseLiquidityData(big.NewInt(3), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := selector(data); got != "219f5d17" {
		t.Errorf("selector: got %s, want 219f5d17", got)
	}

	want := []int64{3, 1000, 0, 995, 0, 99}
	for i, w := range want {
		if got := wordBig(data, i); got.Int64() != w {
			t.Errorf("word %d: got %s, want %d", i, got, w)
		}
	}
}

func TestMissingTokenID(t *testing.T) {
	if _, err := DecreaseLiquidityData(nil, liquidity.RemovalAmounts{}); !errors.Is(err, ErrMissingPositionID) {
		t.Errorf("decrease: got %v", err)
	}
	if _, err := CollectData(nil, recipient); !errors.Is(err, ErrMissingPositionID) {
		t.Errorf("collect: got %v", err)
	}
	if _, err := IncreaseLiquidityData(nil, liquidity.IncreaseParams{}); !errors.Is(err, ErrMissingPositionID) {
		t.Errorf("increase: got %v", err)
	}
}

func TestRemoveLiquidity(t *testing.T) {
	chain, err := liquidity.ChainByID(liquidity.ChainEthereum)
	if err != nil {
		t.Fatalf("chain: %v", err)
	}
	r := liquidity.RemovalAmounts{
		Liquidity:  uint128.From64(10),
		Amount0Min: uint256.NewInt(1),
		Amount1Min: uint256.NewInt(2),
		Deadline:   3,
	}

	call, err := RemoveLiquidity(chain, big.NewInt(9), recipient, r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if call.To != chain.PositionManager {
		t.Errorf("to: got %s", call.To.Hex())
	}
	if call.Value.Sign() != 0 {
		t.Errorf("value: got %s", call.Value)
	}
	if got := selector(call.Data); got != "ac9650d8" {
		t.Errorf("selector: got %s, want ac9650d8", got)
	}

	parsed, err := PositionManagerABI()
	if err != nil {
		t.Fatalf("abi: %v", err)
	}
	args, err := parsed.Methods["multicall"].Inputs.Unpack(call.Data[4:])
	if err != nil {
		t.Fatalf("unpack multicall: %v", err)
	}
	inner, ok := args[0].([][]byte)
	if !ok || len(inner) != 2 {
		t.Fatalf("inner calls: got %T len %d", args[0], len(inner))
	}

	decrease, _ := DecreaseLiquidityData(big.NewInt(9), r)
	collect, _ := CollectData(big.NewInt(9), recipient)
	if !bytes.Equal(inner[0], decrease) {
		t.Error("first inner call is not decreaseLiquidity")
	}
	if !bytes.Equal(inner[1], collect) {
		t.Error("second inner call is not collect")
	}
}

func TestIncreaseLiquidity_TargetsPositionManager(t *testing.T) {
	chain, _ := liquidity.ChainByID(liquidity.ChainArbitrum)
	calc := liquidity.NewCalculator()
	p := calc.ComputeIncreaseLiquidityParams(uint256.NewInt(100), uint256.NewInt(200), decimal.NewFromFloat(0.5), chain)

	call, err := IncreaseLiquidity(big.NewInt(5), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if call.To != chain.PositionManager {
		t.Errorf("to: got %s", call.To.Hex())
	}
	if len(call.DataHex()) != 2+2*(4+6*32) {
		t.Errorf("hex length: got %d", len(call.DataHex()))
	}
}

func TestEncodePath(t *testing.T) {
	hops := []pricing.RouteHop{
		{TokenIn: usdc, TokenOut: weth, Fee: uniswapv3.FeeLow},
		{TokenIn: weth, TokenOut: dai, Fee: uniswapv3.FeeMedium},
	}

	path, err := EncodePath(hops)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(path) != 20+2*23 {
		t.Fatalf("length: got %d", len(path))
	}

	var want []byte
	want = append(want, usdc.Address.Bytes()...)
	want = append(want, 0x00, 0x01, 0xf4)
	want = append(want, weth.Address.Bytes()...)
	want = append(want, 0x00, 0x0b, 0xb8)
	want = append(want, dai.Address.Bytes()...)
	if !bytes.Equal(path, want) {
		t.Errorf("got %x\nwant %x", path, want)
	}
}

func TestEncodePath_Errors(t *testing.T) {
	if _, err := EncodePath(nil); !errors.Is(err, ErrEmptyPath) {
		t.Errorf("empty: got %v", err)
	}

	hops := []pricing.RouteHop{
		{TokenIn: usdc, TokenOut: weth, Fee: uniswapv3.FeeLow},
		{TokenIn: dai, TokenOut: usdc, Fee: uniswapv3.FeeLow},
	}
	if _, err := EncodePath(hops); !errors.Is(err, ErrDisconnectedPath) {
		t.Errorf("disconnected: got %v", err)
	}
}

type exactInputArgs struct {
	Path             []byte
	Recipient        common.Address
	AmountIn         *big.Int
	AmountOutMinimum *big.Int
}

func TestExactInput(t *testing.T) {
	chain, _ := liquidity.ChainByID(liquidity.ChainEthereum)
	q := &pricing.Quote{
		AmountIn:  uint256.NewInt(1_000_000_000),
		AmountOut: uint256.MustFromDecimal("1000000000000000000"),
		Route: [][]pricing.RouteHop{{
			{TokenIn: usdc, TokenOut: weth, Fee: uniswapv3.FeeLow, SqrtRatioX96: uniswapv3.Q96},
		}},
	}

	call, err := ExactInput(chain, q, recipient, decimal.NewFromInt(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if call.To != chain.SwapRouter {
		t.Errorf("to: got %s", call.To.Hex())
	}
	if got := selector(call.Data); got != "b858183f" {
		t.Errorf("selector: got %s, want b858183f", got)
	}

	parsed, err := SwapRouterABI()
	if err != nil {
		t.Fatalf("abi: %v", err)
	}
	args, err := parsed.Methods["exactInput"].Inputs.Unpack(call.Data[4:])
	if err != nil {
		t.Fatalf("unpack: %v", err)
	}
	params := abi.ConvertType(args[0], new(exactInputArgs)).(*exactInputArgs)
	if params.Recipient != recipient {
		t.Errorf("recipient: got %s", params.Recipient.Hex())
	}
	if params.AmountIn.Int64() != 1_000_000_000 {
		t.Errorf("amount in: got %s", params.AmountIn)
	}
	if params.AmountOutMinimum.String() != "990000000000000000" {
		t.Errorf("amount out minimum: got %s", params.AmountOutMinimum)
	}
	wantPath, _ := EncodePath(q.FirstPath())
	if !bytes.Equal(params.Path, wantPath) {
		t.Errorf("path: got %x", params.Path)
	}
}

func TestExactInput_MissingData(t *testing.T) {
	chain, _ := liquidity.ChainByID(liquidity.ChainEthereum)

	if _, err := ExactInput(chain, nil, recipient, decimal.Zero); !errors.Is(err, ErrMissingAmount) {
		t.Errorf("nil quote: got %v", err)
	}

	noRoute := &pricing.Quote{AmountIn: uint256.NewInt(1), AmountOut: uint256.NewInt(1)}
	if _, err := ExactInput(chain, noRoute, recipient, decimal.Zero); !errors.Is(err, ErrEmptyPath) {
		t.Errorf("no route: got %v", err)
	}
}
