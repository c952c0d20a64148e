package dex

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const uniswapV2PairABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "sender", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "amount0In", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "amount1In", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "amount0Out", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "amount1Out", "type": "uint256"},
      {"indexed": true, "internalType": "address", "name": "to", "type": "address"}
    ],
    "name": "Swap",
    "type": "event"
  }
]`

const uniswapV3PoolABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "sender", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "recipient", "type": "address"},
      {"indexed": false, "internalType": "int256", "name": "amount0", "type": "int256"},
      {"indexed": false, "internalType": "int256", "name": "amount1", "type": "int256"},
      {"indexed": false, "internalType": "uint160", "name": "sqrtPriceX96", "type": "uint160"},
      {"indexed": false, "internalType": "uint128", "name": "liquidity", "type": "uint128"},
      {"indexed": false, "internalType": "int24", "name": "tick", "type": "int24"}
    ],
    "name": "Swap",
    "type": "event"
  }
]`

const balancerV2VaultABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "bytes32", "name": "poolId", "type": "bytes32"},
      {"indexed": true, "internalType": "address", "name": "tokenIn", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "tokenOut", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "amountIn", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "amountOut", "type": "uint256"}
    ],
    "name": "Swap",
    "type": "event"
  }
]`

const balancerPoolABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "caller", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "tokenIn", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "tokenOut", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "tokenAmountIn", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "tokenAmountOut", "type": "uint256"}
    ],
    "name": "LOG_SWAP",
    "type": "event"
  }
]`

const curvePoolABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "buyer", "type": "address"},
      {"indexed": false, "internalType": "int128", "name": "sold_id", "type": "int128"},
      {"indexed": false, "internalType": "uint256", "name": "tokens_sold", "type": "uint256"},
      {"indexed": false, "internalType": "int128", "name": "bought_id", "type": "int128"},
      {"indexed": false, "internalType": "uint256", "name": "tokens_bought", "type": "uint256"}
    ],
    "name": "TokenExchange",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "buyer", "type": "address"},
      {"indexed": false, "internalType": "int128", "name": "sold_id", "type": "int128"},
      {"indexed": false, "internalType": "uint256", "name": "tokens_sold", "type": "uint256"},
      {"indexed": false, "internalType": "int128", "name": "bought_id", "type": "int128"},
      {"indexed": false, "internalType": "uint256", "name": "tokens_bought", "type": "uint256"}
    ],
    "name": "TokenExchangeUnderlying",
    "type": "event"
  }
]`

const curveV2PoolABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "buyer", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "sold_id", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "tokens_sold", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "bought_id", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "tokens_bought", "type": "uint256"}
    ],
    "name": "TokenExchange",
    "type": "event"
  }
]`

// ProtocolABIs bundles the parsed event ABIs for every supported protocol.
type ProtocolABIs struct {
	UniswapV2  abi.ABI
	UniswapV3  abi.ABI
	BalancerV2 abi.ABI
	Balancer   abi.ABI
	Curve      abi.ABI
	CurveV2    abi.ABI
}

var (
	protocolABIs     ProtocolABIs
	protocolABIsOnce sync.Once
	protocolABIsErr  error
)

// LoadProtocolABIs parses the protocol event ABIs once and returns them.
func LoadProtocolABIs() (ProtocolABIs, error) {
	protocolABIsOnce.Do(func() {
		parse := func(src string) abi.ABI {
			if protocolABIsErr != nil {
				return abi.ABI{}
			}
			parsed, err := abi.JSON(strings.NewReader(src))
			if err != nil {
				protocolABIsErr = err
			}
			return parsed
		}
		protocolABIs = ProtocolABIs{
			UniswapV2:  parse(uniswapV2PairABIJSON),
			UniswapV3:  parse(uniswapV3PoolABIJSON),
			BalancerV2: parse(balancerV2VaultABIJSON),
			Balancer:   parse(balancerPoolABIJSON),
			Curve:      parse(curvePoolABIJSON),
			CurveV2:    parse(curveV2PoolABIJSON),
		}
	})
	return protocolABIs, protocolABIsErr
}
