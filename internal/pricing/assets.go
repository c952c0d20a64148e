package pricing

import "dexpricer/internal/model"

// NativeTokenAddress is the placeholder address protocols use for the native
// chain token. It is folded into the wrapped-native token before pricing.
const NativeTokenAddress = "0xeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee"

// DefaultTokens is the Ethereum mainnet token table used when the catalog
// supplies nothing.
var DefaultTokens = []model.Token{
	{Address: "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2", Symbol: "WETH", Decimals: 18},
	{Address: "0xdac17f958d2ee523a2206206994597c13d831ec7", Symbol: "USDT", Decimals: 6},
	{Address: "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48", Symbol: "USDC", Decimals: 6},
	{Address: "0x2260fac5e5542a773aa44fbcfedf7c193bc2c599", Symbol: "WBTC", Decimals: 8},
	{Address: "0x6b175474e89094c44da98b954eedeac495271d0f", Symbol: "DAI", Decimals: 18},
}

// DefaultUSDStableAssets are the pricing assets whose USD price is pinned to
// exactly 1.
var DefaultUSDStableAssets = []string{
	"0xdac17f958d2ee523a2206206994597c13d831ec7", // USDT
	"0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48", // USDC
	"0x6b175474e89094c44da98b954eedeac495271d0f", // DAI
}

// DefaultPricingAssets are the hub tokens every other token is triangulated
// against, stables first.
var DefaultPricingAssets = append(append([]string{}, DefaultUSDStableAssets...),
	"0x2260fac5e5542a773aa44fbcfedf7c193bc2c599", // WBTC
	"0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2", // WETH
)

// DefaultNativeWrapper is the token the native placeholder address resolves
// to (WETH on mainnet).
const DefaultNativeWrapper = "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2"
