package pricing

import (
	"github.com/shopspring/decimal"

	"dexpricer/internal/model"
)

// PoolPrice is one pool's volume-weighted contribution to a token price,
// expressed in USD.
type PoolPrice struct {
	Price    decimal.Decimal `json:"price"`
	Volume   decimal.Decimal `json:"volume"`
	Address  string          `json:"address"`
	Protocol model.Protocol  `json:"protocol"`
}

// PriceReport is the USD price of a token as of the last finalized round.
type PriceReport struct {
	Round       uint64          `json:"round"`
	BlockNumber uint64          `json:"block_number"`
	Price       decimal.Decimal `json:"price"`
	Volume      decimal.Decimal `json:"volume"`
	Pools       []PoolPrice     `json:"price_with_volume_per_pool"`
}

// PricePoint is one history entry for a token, recorded at round
// finalization.
type PricePoint struct {
	Price       decimal.Decimal `json:"price"`
	Volume      decimal.Decimal `json:"volume"`
	BlockNumber uint64          `json:"block_number"`
}

// DailyVolume is one day bucket of a pool's traded USD volume. Days are
// block-derived: dayID = blockNumber / blocksPerDay.
type DailyVolume struct {
	DayID       uint64          `json:"day_id"`
	VolumeInUSD decimal.Decimal `json:"volume_in_usd"`
}

// observation is one pair-price sample contributed by a swap within the
// current round. price is the base token's price in quote token units,
// volume the traded base token amount.
type observation struct {
	price       decimal.Decimal
	volume      decimal.Decimal
	pool        string
	protocol    model.Protocol
	blockNumber uint64
}
