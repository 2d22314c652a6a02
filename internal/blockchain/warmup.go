package blockchain

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/agatticelli/clmm-kit/internal/liquidity"
	"github.com/agatticelli/clmm-kit/internal/platform/cache"
	"github.com/agatticelli/clmm-kit/internal/platform/worker"
	"github.com/agatticelli/clmm-kit/internal/pricing"
)

// RegistryWarmup seeds the token cache with metadata known without RPC, so
// tokens given by address resolve locally when they are well known.
type RegistryWarmup struct {
	reader *Reader
	tokens []pricing.Token
}

// NewRegistryWarmup creates a warmup provider for tokens
func NewRegistryWarmup(r *Reader, tokens []pricing.Token) *RegistryWarmup {
	return &RegistryWarmup{reader: r, tokens: tokens}
}

func (w *RegistryWarmup) Name() string { return "token_registry" }

func (w *RegistryWarmup) Warmup(ctx context.Context) error {
	if w.reader.cache == nil {
		return nil
	}
	var errs []error
	for _, tok := range w.tokens {
		key := tokenCacheKey(tok.ChainID, tok.Address)
		if err := cache.SetJSON(ctx, w.reader.cache, key, tok, w.reader.tokenTTL); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", tok, err))
		}
	}
	return errors.Join(errs...)
}

// PositionWarmup reads positions once so their tokens are cached before
// the first block arrives.
type PositionWarmup struct {
	reader *Reader
	chain  liquidity.Chain
	ids    []*big.Int
	pool   *worker.Pool
}

// NewPositionWarmup creates a warmup provider reading ids on pool's workers
func NewPositionWarmup(r *Reader, chain liquidity.Chain, ids []*big.Int, pool *worker.Pool) *PositionWarmup {
	if pool == nil {
		pool = worker.NewPool(4)
	}
	return &PositionWarmup{reader: r, chain: chain, ids: ids, pool: pool}
}

func (w *PositionWarmup) Name() string { return "positions" }

func (w *PositionWarmup) Warmup(ctx context.Context) error {
	results := worker.Map(ctx, w.pool, w.ids, func(ctx context.Context, id *big.Int) (*liquidity.Position, error) {
		return w.reader.Position(ctx, w.chain, id)
	})

	var errs []error
	for _, res := range results {
		if res.Err != nil {
			errs = append(errs, fmt.Errorf("position %s: %w", w.ids[res.Index], res.Err))
		}
	}
	return errors.Join(errs...)
}
