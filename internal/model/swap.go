package model

// Protocol identifies the DEX protocol a swap event was decoded from.
type Protocol string

const (
	ProtocolUniswapV2  Protocol = "uniswapv2"
	ProtocolUniswapV3  Protocol = "uniswapv3"
	ProtocolCurve      Protocol = "curve"
	ProtocolCurveV2    Protocol = "curvev2"
	ProtocolBalancer   Protocol = "balancer"
	ProtocolBalancerV2 Protocol = "balancerv2"
)

// SwapEvent is the normalized representation of one on-chain trade.
// Token and pool addresses are lower-cased hex strings. Amounts are
// non-negative decimal integer strings in raw token units.
type SwapEvent struct {
	FromToken   string   `json:"from_token"`
	ToToken     string   `json:"to_token"`
	AmountIn    string   `json:"amount_in"`
	AmountOut   string   `json:"amount_out"`
	BlockNumber uint64   `json:"block_number"`
	TxIndex     uint64   `json:"tx_index"`
	LogIndex    uint64   `json:"log_index"`
	Address     string   `json:"address"`
	Protocol    Protocol `json:"protocol"`
}
