package pricing

import (
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"dexpricer/internal/model"
)

func init() {
	// Ratio of an 18-decimals amount against a 6-decimals amount needs more
	// fractional digits than the library default of 16.
	if decimal.DivisionPrecision < 24 {
		decimal.DivisionPrecision = 24
	}
}

var one = decimal.NewFromInt(1)

// Config holds the engine tunables.
type Config struct {
	// Tick is the round width in blocks.
	Tick uint64
	// PriceDecimals is the number of fractional digits reported prices and
	// volumes are rounded to.
	PriceDecimals int32
	// MaxHistoryRecords caps the per-token price history series.
	MaxHistoryRecords int
	// MaxCachedDays caps the per-pool daily volume series.
	MaxCachedDays int
	// BlocksPerDay defines the day bucket: dayID = blockNumber / BlocksPerDay.
	BlocksPerDay uint64
	// PricingAssets are the hub tokens used as triangulation quotes.
	PricingAssets []string
	// USDStableAssets are pricing assets pinned to exactly 1 USD.
	USDStableAssets []string
	// NativeWrapper is the token the native placeholder address maps to.
	NativeWrapper string
}

func (c Config) withDefaults() Config {
	if c.Tick == 0 {
		c.Tick = 20
	}
	if c.PriceDecimals == 0 {
		c.PriceDecimals = 8
	}
	if c.MaxHistoryRecords == 0 {
		c.MaxHistoryRecords = 664
	}
	if c.MaxCachedDays == 0 {
		c.MaxCachedDays = 100
	}
	if c.BlocksPerDay == 0 {
		c.BlocksPerDay = 6646
	}
	if len(c.PricingAssets) == 0 {
		c.PricingAssets = DefaultPricingAssets
	}
	if len(c.USDStableAssets) == 0 {
		c.USDStableAssets = DefaultUSDStableAssets
	}
	if c.NativeWrapper == "" {
		c.NativeWrapper = DefaultNativeWrapper
	}
	return c
}

// Engine consumes canonical swap events and maintains round-windowed USD
// prices and volumes for every tracked token and pool.
//
// All mutable state is guarded by mu. The synchronizer is the only writer
// (VolumeInUSD); query methods are read-only under the same lock, so round
// finalization and per-pair accumulation stay strictly ordered.
type Engine struct {
	mu  sync.Mutex
	cfg Config
	log *zap.Logger

	tokens        map[string]model.Token
	pricingAssets []string
	pricingSet    map[string]struct{}
	usdStable     map[string]struct{}

	usdPrice         map[string]decimal.Decimal
	pairObs          map[string][]observation
	latest           map[string]PriceReport
	history          map[string][]PricePoint
	dailyPoolVolume  map[string][]DailyVolume
	touchedTokens    map[string]struct{}
	touchedPairs     map[string]struct{}
	startBlockNumber uint64
	numRounds        uint64
	started          bool
}

// NewEngine builds an engine over the known-token set. Unknown defaults are
// filled from the Ethereum mainnet table.
func NewEngine(cfg Config, tokens []model.Token, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()

	tokenMap := make(map[string]model.Token, len(tokens))
	for _, token := range tokens {
		tokenMap[strings.ToLower(token.Address)] = token
	}

	e := &Engine{
		cfg:             cfg,
		log:             logger,
		tokens:          tokenMap,
		pricingAssets:   make([]string, 0, len(cfg.PricingAssets)),
		pricingSet:      make(map[string]struct{}, len(cfg.PricingAssets)),
		usdStable:       make(map[string]struct{}, len(cfg.USDStableAssets)),
		usdPrice:        make(map[string]decimal.Decimal),
		pairObs:         make(map[string][]observation),
		latest:          make(map[string]PriceReport),
		history:         make(map[string][]PricePoint),
		dailyPoolVolume: make(map[string][]DailyVolume),
		touchedTokens:   make(map[string]struct{}),
		touchedPairs:    make(map[string]struct{}),
	}

	for _, asset := range cfg.PricingAssets {
		asset = strings.ToLower(asset)
		e.pricingAssets = append(e.pricingAssets, asset)
		e.pricingSet[asset] = struct{}{}
	}
	for _, asset := range cfg.USDStableAssets {
		asset = strings.ToLower(asset)
		e.usdStable[asset] = struct{}{}
		e.usdPrice[asset] = one
	}

	return e
}

// NumRounds returns the count of rounds finalized so far.
func (e *Engine) NumRounds() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.numRounds
}

// StartBlockNumber returns the first block of the current round.
func (e *Engine) StartBlockNumber() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.startBlockNumber
}

// IsUSDStable reports whether the token's USD price is pinned to 1.
func (e *Engine) IsUSDStable(token string) bool {
	_, ok := e.usdStable[e.normalize(token)]
	return ok
}

// IsSupportedToken reports whether token metadata is configured.
func (e *Engine) IsSupportedToken(token string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.tokens[e.normalize(token)]
	return ok
}

// VolumeInUSD ingests one canonical swap event, in sorted order. It may
// finalize the current round, records the pair observation into the current
// round, updates the pool's daily volume bucket, and returns the event's USD
// volume estimate.
func (e *Engine) VolumeInUSD(fromToken, fromAmount, toToken, toAmount string, blockNumber uint64, poolAddr string, protocol model.Protocol) (decimal.Decimal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	from := e.normalize(fromToken)
	to := e.normalize(toToken)
	if from == to {
		// Self-swaps carry no price information and no volume.
		return decimal.Zero, nil
	}

	amountSold, err := e.toUnits(from, fromAmount)
	if err != nil {
		return decimal.Zero, err
	}
	amountBought, err := e.toUnits(to, toAmount)
	if err != nil {
		return decimal.Zero, err
	}

	volumeInUSD := e.eventVolumeLocked(from, amountSold, to, amountBought)

	if !e.started {
		e.startBlockNumber = blockNumber - blockNumber%e.cfg.Tick
		e.started = true
	}

	if blockNumber < e.startBlockNumber {
		e.log.Warn("discarding stale swap event",
			zap.Uint64("block_number", blockNumber),
			zap.Uint64("round_start", e.startBlockNumber),
			zap.Uint64("round_end", e.startBlockNumber+e.cfg.Tick-1),
		)
		return decimal.Zero, nil
	}

	if blockNumber >= e.startBlockNumber+e.cfg.Tick {
		e.finalizeRoundLocked(blockNumber)
	}

	if amountSold.IsPositive() && amountBought.IsPositive() {
		e.recordPairLocked(from, to, amountSold, amountBought, poolAddr, protocol, blockNumber)
	}
	e.updatePoolVolumeLocked(poolAddr, volumeInUSD, blockNumber)

	return volumeInUSD.Round(e.cfg.PriceDecimals), nil
}

// GetLatestPriceInUSD returns the token's USD price as of the last finalized
// round. Tokens without finalized pair data fall back to the last persisted
// USD price, or zero. Never an error.
func (e *Engine) GetLatestPriceInUSD(token string) PriceReport {
	e.mu.Lock()
	defer e.mu.Unlock()

	addr := e.normalize(token)
	if report, ok := e.latest[addr]; ok {
		return report
	}

	price, ok := e.usdPrice[addr]
	if !ok {
		price = decimal.Zero
	}
	return PriceReport{
		Round:       e.numRounds,
		BlockNumber: e.startBlockNumber,
		Price:       price,
		Volume:      decimal.Zero,
		Pools:       []PoolPrice{},
	}
}

// GetHistoryUSDPrice returns the capped price history for a token, oldest
// first, rounded to the configured precision. Unseen tokens yield an empty
// series.
func (e *Engine) GetHistoryUSDPrice(token string) []PricePoint {
	e.mu.Lock()
	defer e.mu.Unlock()

	series := e.history[e.normalize(token)]
	out := make([]PricePoint, 0, len(series))
	for _, point := range series {
		out = append(out, PricePoint{
			Price:       point.Price.Round(e.cfg.PriceDecimals),
			Volume:      point.Volume.Round(e.cfg.PriceDecimals),
			BlockNumber: point.BlockNumber,
		})
	}
	return out
}

// GetLatestVolumeInUSD returns the pool's daily volume bucket confirmation
// positions back from the most recent one, or a zero placeholder when not
// enough history exists.
func (e *Engine) GetLatestVolumeInUSD(poolAddr string, confirmation int) DailyVolume {
	e.mu.Lock()
	defer e.mu.Unlock()

	if confirmation < 0 {
		confirmation = 0
	}
	snapshots := e.dailyPoolVolume[strings.ToLower(poolAddr)]
	if len(snapshots) <= confirmation {
		return DailyVolume{DayID: 0, VolumeInUSD: decimal.Zero}
	}
	return snapshots[len(snapshots)-1-confirmation]
}

// eventVolumeLocked estimates one event's USD volume from the finalized
// price table. Only pricing-asset legs can be valued.
func (e *Engine) eventVolumeLocked(from string, amountSold decimal.Decimal, to string, amountBought decimal.Decimal) decimal.Decimal {
	_, fromIsPricing := e.pricingSet[from]
	_, toIsPricing := e.pricingSet[to]

	switch {
	case fromIsPricing && toIsPricing:
		soldValue := amountSold.Mul(e.usdPriceOf(from))
		boughtValue := amountBought.Mul(e.usdPriceOf(to))
		return soldValue.Add(boughtValue).Div(decimal.NewFromInt(2))
	case fromIsPricing:
		return amountSold.Mul(e.usdPriceOf(from))
	case toIsPricing:
		return amountBought.Mul(e.usdPriceOf(to))
	default:
		return decimal.Zero
	}
}

func (e *Engine) usdPriceOf(token string) decimal.Decimal {
	if price, ok := e.usdPrice[token]; ok {
		return price
	}
	return decimal.Zero
}

// finalizeRoundLocked closes the current round: recompute and persist the USD
// price of every touched token, drop the round's pair accumulators, and
// fast-forward the round window to the one containing blockNumber.
func (e *Engine) finalizeRoundLocked(blockNumber uint64) {
	for token := range e.touchedTokens {
		price, volume, pools, ok := e.aggregateLocked(token)
		if !ok {
			continue
		}
		if !price.IsPositive() || !volume.IsPositive() {
			continue
		}

		series := e.history[token]
		series = append(series, PricePoint{
			Price:       price,
			Volume:      volume,
			BlockNumber: e.startBlockNumber,
		})
		if len(series) > e.cfg.MaxHistoryRecords {
			series = series[len(series)-e.cfg.MaxHistoryRecords:]
		}
		e.history[token] = series

		e.usdPrice[token] = price
		e.latest[token] = PriceReport{
			Round:       e.numRounds,
			BlockNumber: e.startBlockNumber,
			Price:       price.Round(e.cfg.PriceDecimals),
			Volume:      volume.Round(e.cfg.PriceDecimals),
			Pools:       pools,
		}
	}

	for pairKey := range e.touchedPairs {
		delete(e.pairObs, pairKey)
	}
	e.touchedPairs = make(map[string]struct{})
	e.touchedTokens = make(map[string]struct{})

	// Jump over empty rounds in one step.
	e.startBlockNumber += e.cfg.Tick * ((blockNumber - e.startBlockNumber) / e.cfg.Tick)
	e.numRounds++
}

func (e *Engine) recordPairLocked(from, to string, amountSold, amountBought decimal.Decimal, poolAddr string, protocol model.Protocol, blockNumber uint64) {
	pool := strings.ToLower(poolAddr)

	// Spot ratios per trade; both directions are kept so either token can be
	// the aggregation base.
	toPriceInFrom := amountSold.Div(amountBought)
	fromPriceInTo := amountBought.Div(amountSold)

	keyToFrom := pairKey(to, from)
	keyFromTo := pairKey(from, to)

	e.pairObs[keyToFrom] = append(e.pairObs[keyToFrom], observation{
		price:       toPriceInFrom,
		volume:      amountBought,
		pool:        pool,
		protocol:    protocol,
		blockNumber: blockNumber,
	})
	e.pairObs[keyFromTo] = append(e.pairObs[keyFromTo], observation{
		price:       fromPriceInTo,
		volume:      amountSold,
		pool:        pool,
		protocol:    protocol,
		blockNumber: blockNumber,
	})

	e.touchedPairs[keyToFrom] = struct{}{}
	e.touchedPairs[keyFromTo] = struct{}{}
	e.touchedTokens[from] = struct{}{}
	e.touchedTokens[to] = struct{}{}
}

func (e *Engine) updatePoolVolumeLocked(poolAddr string, volumeInUSD decimal.Decimal, blockNumber uint64) {
	pool := strings.ToLower(poolAddr)
	dayID := blockNumber / e.cfg.BlocksPerDay

	snapshots := e.dailyPoolVolume[pool]
	if len(snapshots) > 0 && snapshots[len(snapshots)-1].DayID == dayID {
		snapshots[len(snapshots)-1].VolumeInUSD = snapshots[len(snapshots)-1].VolumeInUSD.Add(volumeInUSD)
	} else {
		snapshots = append(snapshots, DailyVolume{DayID: dayID, VolumeInUSD: volumeInUSD})
		if len(snapshots) > e.cfg.MaxCachedDays {
			snapshots = snapshots[len(snapshots)-e.cfg.MaxCachedDays:]
		}
	}
	e.dailyPoolVolume[pool] = snapshots
}

// toUnits converts a raw integer amount to decimal token units.
func (e *Engine) toUnits(token, rawAmount string) (decimal.Decimal, error) {
	meta, ok := e.tokens[token]
	if !ok {
		return decimal.Zero, &model.ConfigError{Token: token}
	}
	amount, err := decimal.NewFromString(rawAmount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse amount %q: %w", rawAmount, err)
	}
	return amount.Shift(-int32(meta.Decimals)), nil
}

func (e *Engine) normalize(token string) string {
	token = strings.ToLower(token)
	if token == NativeTokenAddress {
		return e.cfg.NativeWrapper
	}
	return token
}

func pairKey(baseToken, quoteToken string) string {
	return baseToken + "-" + quoteToken
}
