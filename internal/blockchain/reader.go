package blockchain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/agatticelli/clmm-kit/internal/liquidity"
	"github.com/agatticelli/clmm-kit/internal/platform/cache"
	"github.com/agatticelli/clmm-kit/internal/platform/observability"
	"github.com/agatticelli/clmm-kit/internal/pricing"
	"github.com/agatticelli/clmm-kit/internal/pricing/uniswapv3"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"lukechampine.com/uint128"
)

var (
	// ErrPoolNotFound is returned when the factory has no pool for a pair and fee
	ErrPoolNotFound = errors.New("pool not found")

	// ErrPositionNotFound is returned for burned or never-minted token IDs
	ErrPositionNotFound = errors.New("position not found")
)

// ReaderConfig holds reader configuration
type ReaderConfig struct {
	Caller      ContractCaller
	Cache       cache.Cache // token metadata; optional
	TokenTTL    time.Duration
	CallTimeout time.Duration
	Logger      *observability.Logger
	Metrics     *observability.Metrics
	Tracer      *observability.TracerProvider
}

// Reader decodes pool, position and ERC20 state from view calls.
type Reader struct {
	caller      ContractCaller
	cache       cache.Cache
	tokenTTL    time.Duration
	callTimeout time.Duration
	logger      *observability.Logger
	metrics     *observability.Metrics
	tracer      *observability.TracerProvider
}

// NewReader creates a new on-chain reader
func NewReader(cfg ReaderConfig) (*Reader, error) {
	if cfg.Caller == nil {
		return nil, fmt.Errorf("contract caller is required")
	}
	if err := loadABIs(); err != nil {
		return nil, fmt.Errorf("failed to parse contract ABIs: %w", err)
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NewNopLogger()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NewNopMetrics()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = observability.NewNopTracerProvider()
	}

	return &Reader{
		caller:      cfg.Caller,
		cache:       cfg.Cache,
		tokenTTL:    cfg.TokenTTL,
		callTimeout: cfg.CallTimeout,
		logger:      cfg.Logger.Component("reader"),
		metrics:     cfg.Metrics,
		tracer:      cfg.Tracer,
	}, nil
}

// call packs method, executes it against to and unpacks the outputs.
func (r *Reader) call(ctx context.Context, contract abi.ABI, to common.Address, method string, args ...interface{}) ([]interface{}, error) {
	data, err := contract.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
	defer cancel()

	start := time.Now()
	raw, err := r.caller.CallContract(callCtx, ethereum.CallMsg{To: &to, Data: data}, nil)
	status := "success"
	if err != nil {
		status = "error"
	}
	r.metrics.RecordRPCCall(ctx, method, status, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("%s call to %s failed: %w", method, to.Hex(), err)
	}

	out, err := contract.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s from %s: %w", method, to.Hex(), err)
	}
	return out, nil
}

// PoolState reads slot0 and active liquidity of a pool in parallel.
func (r *Reader) PoolState(ctx context.Context, pool common.Address) (*liquidity.PoolState, error) {
	ctx, span := r.tracer.StartSpan(ctx, "reader.pool_state", attribute.String("pool", pool.Hex()))
	var err error
	defer func() { observability.EndSpanWithError(span, err) }()

	var slot0, liq []interface{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var callErr error
		slot0, callErr = r.call(gctx, poolABI, pool, "slot0")
		return callErr
	})
	g.Go(func() error {
		var callErr error
		liq, callErr = r.call(gctx, poolABI, pool, "liquidity")
		return callErr
	})
	if err = g.Wait(); err != nil {
		return nil, err
	}

	sqrtPrice, overflow := uint256.FromBig(slot0[0].(*big.Int))
	if overflow {
		err = fmt.Errorf("sqrtPriceX96 overflows uint256")
		return nil, err
	}
	if sqrtPrice.IsZero() {
		err = fmt.Errorf("pool %s is not initialized", pool.Hex())
		return nil, err
	}
	if _, err = uniswapv3.GetTickAtSqrtRatio(sqrtPrice); err != nil {
		err = fmt.Errorf("pool %s slot0: %w", pool.Hex(), err)
		return nil, err
	}

	var active uint128.Uint128
	if active, err = toUint128(liq[0]); err != nil {
		return nil, err
	}

	return &liquidity.PoolState{
		SqrtPriceX96: sqrtPrice,
		CurrentTick:  int32(slot0[1].(*big.Int).Int64()),
		Liquidity:    active,
	}, nil
}

// PoolAddress asks the factory for the pool of a pair at a fee tier.
func (r *Reader) PoolAddress(ctx context.Context, chain liquidity.Chain, tokenA, tokenB common.Address, fee uniswapv3.FeeTier) (common.Address, error) {
	out, err := r.call(ctx, factoryABI, chain.Factory, "getPool", tokenA, tokenB, new(big.Int).SetUint64(uint64(fee)))
	if err != nil {
		return common.Address{}, err
	}

	pool := out[0].(common.Address)
	if pool == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%w: %s/%s fee %s on %s", ErrPoolNotFound, tokenA.Hex(), tokenB.Hex(), fee, chain.Name)
	}
	return pool, nil
}

// Position reads a position NFT and resolves its token metadata.
func (r *Reader) Position(ctx context.Context, chain liquidity.Chain, tokenID *big.Int) (*liquidity.Position, error) {
	ctx, span := r.tracer.StartSpan(ctx, "reader.position", attribute.String("token_id", tokenID.String()))
	var err error
	defer func() { observability.EndSpanWithError(span, err) }()

	var out []interface{}
	out, err = r.call(ctx, posABI, chain.PositionManager, "positions", tokenID)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "invalid token id") {
			err = fmt.Errorf("%w: %s", ErrPositionNotFound, tokenID)
		}
		return nil, err
	}

	pos := &liquidity.Position{
		TokenID:   new(big.Int).Set(tokenID),
		Fee:       uniswapv3.FeeTier(out[4].(*big.Int).Uint64()),
		TickLower: int32(out[5].(*big.Int).Int64()),
		TickUpper: int32(out[6].(*big.Int).Int64()),
	}
	if pos.Liquidity, err = toUint128(out[7]); err != nil {
		return nil, err
	}
	if pos.TokensOwed0, err = toUint128(out[10]); err != nil {
		return nil, err
	}
	if pos.TokensOwed1, err = toUint128(out[11]); err != nil {
		return nil, err
	}

	token0, token1 := out[2].(common.Address), out[3].(common.Address)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var tokErr error
		pos.Token0, tokErr = r.Token(gctx, chain.ID, token0)
		return tokErr
	})
	g.Go(func() error {
		var tokErr error
		pos.Token1, tokErr = r.Token(gctx, chain.ID, token1)
		return tokErr
	})
	if err = g.Wait(); err != nil {
		return nil, err
	}

	return pos, nil
}

// Snapshot reads a position together with the state of its pool.
func (r *Reader) Snapshot(ctx context.Context, chain liquidity.Chain, tokenID *big.Int) (*liquidity.Position, *liquidity.PoolState, error) {
	pos, err := r.Position(ctx, chain, tokenID)
	if err != nil {
		return nil, nil, err
	}

	pool, err := r.PoolAddress(ctx, chain, pos.Token0.Address, pos.Token1.Address, pos.Fee)
	if err != nil {
		return nil, nil, err
	}

	state, err := r.PoolState(ctx, pool)
	if err != nil {
		return nil, nil, err
	}

	r.logger.LogDebug(ctx, "position snapshot",
		"token_id", tokenID.String(),
		"pool", pool.Hex(),
		"tick", state.CurrentTick,
		"status", pos.Status(state.CurrentTick).String(),
	)
	return pos, state, nil
}

func tokenCacheKey(chainID uint64, addr common.Address) string {
	return fmt.Sprintf("token:%d:%s", chainID, strings.ToLower(addr.Hex()))
}

// Token resolves ERC20 decimals and symbol, consulting the cache first.
func (r *Reader) Token(ctx context.Context, chainID uint64, addr common.Address) (pricing.Token, error) {
	key := tokenCacheKey(chainID, addr)
	if r.cache != nil {
		tok, err := cache.GetJSON[pricing.Token](ctx, r.cache, key)
		if err == nil {
			return tok, nil
		}
		if !errors.Is(err, cache.ErrNotFound) {
			r.logger.LogWarn(ctx, "token cache read failed", "key", key, "error", err)
		}
	}

	out, err := r.call(ctx, erc20ABI, addr, "decimals")
	if err != nil {
		return pricing.Token{}, err
	}
	decimals := out[0].(uint8)

	symbol, err := r.symbol(ctx, addr)
	if err != nil {
		// symbol is cosmetic; fall back to the address
		r.logger.LogDebug(ctx, "token symbol unavailable", "token", addr.Hex(), "error", err)
		symbol = addr.Hex()
	}

	tok := pricing.Token{Address: addr, Decimals: decimals, Symbol: symbol, ChainID: chainID}
	if r.cache != nil {
		if err := cache.SetJSON(ctx, r.cache, key, tok, r.tokenTTL); err != nil {
			r.logger.LogWarn(ctx, "token cache write failed", "key", key, "error", err)
		}
	}
	return tok, nil
}

// symbol handles both string and bytes32 symbol() return types.
func (r *Reader) symbol(ctx context.Context, addr common.Address) (string, error) {
	data, err := erc20ABI.Pack("symbol")
	if err != nil {
		return "", err
	}

	callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
	defer cancel()

	raw, err := r.caller.CallContract(callCtx, ethereum.CallMsg{To: &addr, Data: data}, nil)
	if err != nil {
		return "", err
	}

	if out, err := erc20ABI.Unpack("symbol", raw); err == nil {
		return out[0].(string), nil
	}
	if len(raw) == 32 {
		return strings.TrimRight(string(raw), "\x00"), nil
	}
	return "", fmt.Errorf("undecodable symbol() result of %d bytes", len(raw))
}

func toUint128(v interface{}) (uint128.Uint128, error) {
	b, ok := v.(*big.Int)
	if !ok || b.Sign() < 0 || b.BitLen() > 128 {
		return uint128.Zero, fmt.Errorf("value %v is not a uint128", v)
	}
	return uint128.FromBig(b), nil
}
