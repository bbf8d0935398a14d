// Package chain watches an Ethereum JSON-RPC endpoint and turns every new
// block into a transaction batch.
package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ardanlabs/blockgraph/foundation/graph"
	"github.com/ardanlabs/blockgraph/foundation/retry"
	"github.com/decred/dcrd/container/lru"
	"github.com/ethereum/go-ethereum/common"
)

// Set of default watcher values.
const (
	DefaultPollInterval = 2 * time.Second
	DefaultMaxCatchUp   = 16
	seenBlocks          = 1024
)

// EventHandler defines a function that is called when events
// occur while watching the chain.
type EventHandler func(v string, args ...any)

// Sink receives one batch per block.
type Sink func(b graph.Batch)

// Client represents the RPC calls the watcher needs. An *RPCClient
// satisfies it.
type Client interface {
	BlockNumber(ctx context.Context) (uint64, error)
	BlockByNumber(ctx context.Context, number uint64) (*Block, error)
}

// Config represents the configuration required to start a watcher.
type Config struct {
	Client       Client
	Sink         Sink
	PollInterval time.Duration
	MaxCatchUp   uint64
	Retry        retry.Policy
	EvHandler    EventHandler
}

// Watcher polls for new blocks and emits their transactions.
type Watcher struct {
	client     Client
	sink       Sink
	interval   time.Duration
	maxCatchUp uint64
	retry      retry.Policy
	evHandler  EventHandler

	next uint64
	seen *lru.Set[common.Hash]
}

// New constructs a watcher.
func New(cfg Config) (*Watcher, error) {
	if cfg.Client == nil {
		return nil, errors.New("client is required")
	}
	if cfg.Sink == nil {
		return nil, errors.New("sink is required")
	}

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.MaxCatchUp == 0 {
		cfg.MaxCatchUp = DefaultMaxCatchUp
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.Policy{
			MaxAttempts: 5,
			BaseDelay:   200 * time.Millisecond,
			MaxDelay:    5 * time.Second,
			Jitter:      100 * time.Millisecond,
		}
	}
	cfg.Retry.OnRetry = func(attempt int, wait time.Duration, err error) {
		ev("chain: retry: attempt[%d] wait[%v]: %s", attempt, wait, err)
	}

	w := Watcher{
		client:     cfg.Client,
		sink:       cfg.Sink,
		interval:   cfg.PollInterval,
		maxCatchUp: cfg.MaxCatchUp,
		retry:      cfg.Retry,
		evHandler:  ev,
		seen:       lru.NewSet[common.Hash](seenBlocks),
	}

	return &w, nil
}

// Run polls until the context is cancelled. Poll failures are reported
// through the event handler and retried on the next interval.
func (w *Watcher) Run(ctx context.Context) error {
	w.evHandler("chain: Run: started: interval[%v]", w.interval)
	defer w.evHandler("chain: Run: completed")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if err := w.Poll(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.evHandler("chain: Run: poll: ERROR: %s", err)
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil
		}
	}
}

// Poll emits every block produced since the last poll. On the first poll
// only the latest block is emitted.
func (w *Watcher) Poll(ctx context.Context) error {
	var latest uint64
	err := retry.Do(ctx, w.retry, func(ctx context.Context) error {
		var err error
		latest, err = w.client.BlockNumber(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("block number: %w", err)
	}

	if w.next == 0 {
		w.next = latest
	}

	if latest < w.next {
		return nil
	}

	if behind := latest - w.next + 1; behind > w.maxCatchUp {
		skipTo := latest - w.maxCatchUp + 1
		w.evHandler("chain: Poll: skipping blocks[%d-%d]: behind[%d]", w.next, skipTo-1, behind)
		w.next = skipTo
	}

	for ; w.next <= latest; w.next++ {
		if err := w.emit(ctx, w.next); err != nil {
			return err
		}
	}

	return nil
}

// emit fetches one block and hands its batch to the sink.
func (w *Watcher) emit(ctx context.Context, number uint64) error {
	var block *Block
	err := retry.Do(ctx, w.retry, func(ctx context.Context) error {
		var err error
		block, err = w.client.BlockByNumber(ctx, number)
		return err
	})
	if err != nil {
		return fmt.Errorf("block %d: %w", number, err)
	}

	if w.seen.Contains(block.Hash) {
		return nil
	}
	w.seen.Put(block.Hash)

	batch := Convert(block, w.evHandler)
	w.evHandler("chain: emit: block[%d] txs[%d]", number, len(batch.Transactions))
	w.sink(batch)

	return nil
}
