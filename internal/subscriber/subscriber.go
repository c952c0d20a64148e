package subscriber

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"dexpricer/internal/dex"
	"dexpricer/internal/model"
)

// ChainSource is the upstream chain-data dependency.
type ChainSource interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, topic0 []common.Hash) ([]types.Log, error)
	SubscribeNewHead(ctx context.Context, ch chan<- *types.Header) (ethereum.Subscription, error)
}

// VolumeSink consumes canonical swap events in sorted order.
type VolumeSink interface {
	VolumeInUSD(fromToken, fromAmount, toToken, toAmount string, blockNumber uint64, poolAddr string, protocol model.Protocol) (decimal.Decimal, error)
}

// Config holds the synchronizer tunables.
type Config struct {
	// FromBlock is the first block of the catch-up range.
	FromBlock uint64
	// Confirmation is the number of blocks behind the head treated as final.
	Confirmation uint64
	// FastSyncBatch is the block width of one catch-up batch.
	FastSyncBatch uint64
	// PriceDecimals rounds the diagnostic total volume accumulator.
	PriceDecimals int32
	// MaxRetries and RetryBackoff control upstream-fetch retries in the
	// driving loop.
	MaxRetries   int
	RetryBackoff time.Duration
}

func (c Config) withDefaults() Config {
	if c.Confirmation == 0 {
		c.Confirmation = 2
	}
	if c.FastSyncBatch == 0 {
		c.FastSyncBatch = 50
	}
	if c.PriceDecimals == 0 {
		c.PriceDecimals = 8
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 500 * time.Millisecond
	}
	return c
}

// Subscriber drives log retrieval in bounded batches during catch-up, then
// tails newly confirmed blocks, decoding matching logs into canonical swap
// events and feeding them to the pricing sink.
//
// All processing happens on the goroutine that calls Start; the decoded
// event stream reaches the sink strictly ordered by
// (blockNumber, txIndex, logIndex).
type Subscriber struct {
	cfg        Config
	source     ChainSource
	registry   *dex.Registry
	publishers *PublisherRegistry
	sink       VolumeSink
	logger     *zap.Logger

	topics      []common.Hash
	fromBlock   uint64
	totalVolume decimal.Decimal
}

func NewSubscriber(cfg Config, source ChainSource, registry *dex.Registry, publishers *PublisherRegistry, sink VolumeSink, logger *zap.Logger) *Subscriber {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()

	return &Subscriber{
		cfg:         cfg,
		source:      source,
		registry:    registry,
		publishers:  publishers,
		sink:        sink,
		logger:      logger,
		topics:      registry.Topics(),
		fromBlock:   cfg.FromBlock,
		totalVolume: decimal.Zero,
	}
}

// RegisterPublisher adds an address to the publisher registry.
func (s *Subscriber) RegisterPublisher(address string, params *dex.Params) bool {
	return s.publishers.Register(address, params)
}

// IsRegistered reports whether an address is in the publisher registry.
func (s *Subscriber) IsRegistered(address string) bool {
	return s.publishers.IsRegistered(address)
}

// TotalVolumeInUSD returns the running USD volume across every processed
// batch, rounded to the configured precision. Diagnostic only; per-pool
// volume lives in the pricing engine's daily snapshots.
func (s *Subscriber) TotalVolumeInUSD() decimal.Decimal {
	return s.totalVolume.Round(s.cfg.PriceDecimals)
}

// FromBlock returns the next unprocessed block.
func (s *Subscriber) FromBlock() uint64 {
	return s.fromBlock
}

// SyncOnce fast-syncs from the current position up to
// targetHead - confirmation in bounded batches.
func (s *Subscriber) SyncOnce(ctx context.Context, targetHead uint64) error {
	if targetHead < s.cfg.Confirmation {
		return nil
	}
	toBlock := targetHead - s.cfg.Confirmation
	if toBlock < s.fromBlock {
		return nil
	}

	for batchStart := s.fromBlock; batchStart <= toBlock; batchStart += s.cfg.FastSyncBatch {
		batchEnd := batchStart + s.cfg.FastSyncBatch - 1
		if batchEnd > toBlock {
			batchEnd = toBlock
		}

		volume, err := s.processRange(ctx, batchStart, batchEnd)
		if err != nil {
			return err
		}
		s.totalVolume = s.totalVolume.Add(volume)
		s.fromBlock = batchEnd + 1

		s.logger.Info("processed log batch",
			zap.Uint64("from", batchStart),
			zap.Uint64("to", batchEnd),
		)
	}
	return nil
}

// Start catches up to the chain head and then tails newly confirmed blocks
// until the context is cancelled. It blocks; all event processing happens on
// the calling goroutine.
func (s *Subscriber) Start(ctx context.Context) error {
	if err := s.catchUp(ctx); err != nil {
		return err
	}

	headers := make(chan *types.Header, 16)
	sub, err := s.source.SubscribeNewHead(ctx, headers)
	if err != nil {
		return fmt.Errorf("subscribe new heads: %w", err)
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Err():
			return fmt.Errorf("head subscription: %w", err)
		case header := <-headers:
			if err := s.onNewBlock(ctx, header.Number.Uint64()); err != nil {
				return err
			}
		}
	}
}

// catchUp re-measures the head on each iteration so a still-advancing chain
// cannot stall the loop; it terminates when the remaining distance is within
// the confirmation lag.
func (s *Subscriber) catchUp(ctx context.Context) error {
	for {
		var head uint64
		err := withRetry(ctx, s.cfg.MaxRetries, s.cfg.RetryBackoff, func(ctx context.Context) error {
			var err error
			head, err = s.source.BlockNumber(ctx)
			if err != nil {
				s.logger.Warn("block number fetch failed", zap.Error(err))
			}
			return err
		})
		if err != nil {
			return fmt.Errorf("get chain head: %w", err)
		}

		if head < s.fromBlock+s.cfg.Confirmation {
			return nil
		}
		if err := s.SyncOnce(ctx, head); err != nil {
			return err
		}
	}
}

// onNewBlock processes the newly confirmed range once enough blocks have
// accumulated past the confirmation lag. Duplicate or early notifications
// are no-ops.
func (s *Subscriber) onNewBlock(ctx context.Context, blockNumber uint64) error {
	if blockNumber < s.fromBlock+s.cfg.Confirmation {
		return nil
	}
	toBlock := blockNumber - s.cfg.Confirmation

	volume, err := s.processRange(ctx, s.fromBlock, toBlock)
	if err != nil {
		return err
	}
	s.totalVolume = s.totalVolume.Add(volume)
	s.fromBlock = toBlock + 1
	return nil
}

// processRange fetches the range's logs, decodes the registered ones, and
// feeds them to the sink in (blockNumber, txIndex, logIndex) order. A decode
// failure skips the single log, never the batch.
func (s *Subscriber) processRange(ctx context.Context, fromBlock, toBlock uint64) (decimal.Decimal, error) {
	var logs []types.Log
	err := withRetry(ctx, s.cfg.MaxRetries, s.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		logs, err = s.source.FilterLogs(ctx, fromBlock, toBlock, s.topics)
		if err != nil {
			s.logger.Warn("filter logs failed",
				zap.Error(err),
				zap.Uint64("from", fromBlock),
				zap.Uint64("to", toBlock),
			)
		}
		return err
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("filter logs [%d, %d]: %w", fromBlock, toBlock, err)
	}

	events := s.collectEvents(logs)
	s.logger.Debug("decoded swap events",
		zap.Int("count", len(events)),
		zap.Uint64("from", fromBlock),
		zap.Uint64("to", toBlock),
	)

	sort.Slice(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if a.BlockNumber != b.BlockNumber {
			return a.BlockNumber < b.BlockNumber
		}
		if a.TxIndex != b.TxIndex {
			return a.TxIndex < b.TxIndex
		}
		return a.LogIndex < b.LogIndex
	})

	total := decimal.Zero
	for _, event := range events {
		volume, err := s.sink.VolumeInUSD(
			event.FromToken, event.AmountIn,
			event.ToToken, event.AmountOut,
			event.BlockNumber, event.Address, event.Protocol,
		)
		if err != nil {
			s.logger.Warn("volume computation failed",
				zap.Error(err),
				zap.Uint64("block_number", event.BlockNumber),
				zap.String("pool", event.Address),
			)
			continue
		}
		total = total.Add(volume)
	}
	return total, nil
}

// collectEvents filters logs to those with a registered topic emitted by a
// registered publisher, and decodes them.
func (s *Subscriber) collectEvents(logs []types.Log) []model.SwapEvent {
	events := make([]model.SwapEvent, 0, len(logs))
	for _, log := range logs {
		if len(log.Topics) == 0 {
			continue
		}
		handler, ok := s.registry.Lookup(log.Topics[0])
		if !ok {
			continue
		}
		params, registered := s.publishers.Params(log.Address.Hex())
		if !registered {
			continue
		}

		event, err := handler.Decode(log, params)
		if err != nil {
			s.logger.Warn("skipping undecodable log", zap.Error(err))
			continue
		}
		events = append(events, event)
	}
	return events
}
