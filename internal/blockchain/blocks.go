package blockchain

import (
	"context"
	"time"

	"github.com/agatticelli/clmm-kit/internal/platform/observability"
)

// BlockSource reports the latest block number
type BlockSource interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

// BlockWatcherConfig holds block watcher configuration
type BlockWatcherConfig struct {
	Source       BlockSource
	PollInterval time.Duration
	Logger       *observability.Logger
}

// BlockWatcher polls for new blocks and emits each new head once.
// Skipped heights are logged but not backfilled; consumers re-read state
// at the latest block.
type BlockWatcher struct {
	source    BlockSource
	interval  time.Duration
	logger    *observability.Logger
	lastBlock uint64
}

// NewBlockWatcher creates a new block watcher
func NewBlockWatcher(cfg BlockWatcherConfig) *BlockWatcher {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 12 * time.Second // ~1 mainnet block
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NewNopLogger()
	}
	return &BlockWatcher{
		source:   cfg.Source,
		interval: cfg.PollInterval,
		logger:   cfg.Logger.Component("blocks"),
	}
}

// Watch emits new block numbers until ctx ends. The first poll happens
// immediately. Poll errors are logged and retried on the next tick.
func (w *BlockWatcher) Watch(ctx context.Context) <-chan uint64 {
	out := make(chan uint64, 1)

	go func() {
		defer close(out)

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			w.poll(ctx, out)

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	return out
}

func (w *BlockWatcher) poll(ctx context.Context, out chan<- uint64) {
	blockNum, err := w.source.BlockNumber(ctx)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.LogWarn(ctx, "block number poll failed", "error", err)
		}
		return
	}
	if blockNum <= w.lastBlock {
		return
	}

	if w.lastBlock > 0 && blockNum > w.lastBlock+1 {
		w.logger.LogDebug(ctx, "skipped blocks between polls",
			"last_block", w.lastBlock,
			"new_block", blockNum,
			"gap_size", blockNum-w.lastBlock-1,
		)
	}
	w.lastBlock = blockNum

	select {
	case out <- blockNum:
	case <-ctx.Done():
	}
}
