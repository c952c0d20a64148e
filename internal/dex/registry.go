package dex

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"dexpricer/internal/model"
)

// Params carries auxiliary decode parameters for a registered publisher.
// Protocols whose log payload references tokens by numeric index need the
// ordered token list of the pool; protocols that carry token identity in the
// payload do not.
type Params struct {
	Tokens []string
}

// DecodeFunc turns one raw chain log into a canonical swap event.
type DecodeFunc func(log types.Log, params *Params) (model.SwapEvent, error)

// Handler is the decoder registered for one event topic.
type Handler struct {
	Protocol model.Protocol
	Decode   DecodeFunc
}

// Registry maps event topic hashes to protocol decoders. It is immutable
// after construction and safe for concurrent lookups.
type Registry struct {
	handlers map[common.Hash]Handler
}

// NewRegistry builds the registry with every supported protocol decoder,
// keyed by the topic hash of its swap event.
func NewRegistry() (*Registry, error) {
	abis, err := LoadProtocolABIs()
	if err != nil {
		return nil, err
	}

	handlers := map[common.Hash]Handler{
		abis.UniswapV2.Events["Swap"].ID: {
			Protocol: model.ProtocolUniswapV2,
			Decode:   decodeUniswapV2Swap,
		},
		abis.UniswapV3.Events["Swap"].ID: {
			Protocol: model.ProtocolUniswapV3,
			Decode:   decodeUniswapV3Swap,
		},
		abis.BalancerV2.Events["Swap"].ID: {
			Protocol: model.ProtocolBalancerV2,
			Decode:   decodeBalancerV2Swap,
		},
		abis.Balancer.Events["LOG_SWAP"].ID: {
			Protocol: model.ProtocolBalancer,
			Decode:   decodeBalancerSwap,
		},
		abis.Curve.Events["TokenExchange"].ID: {
			Protocol: model.ProtocolCurve,
			Decode:   decodeCurveExchange("TokenExchange"),
		},
		abis.Curve.Events["TokenExchangeUnderlying"].ID: {
			Protocol: model.ProtocolCurve,
			Decode:   decodeCurveExchange("TokenExchangeUnderlying"),
		},
		abis.CurveV2.Events["TokenExchange"].ID: {
			Protocol: model.ProtocolCurveV2,
			Decode:   decodeCurveV2Exchange,
		},
	}

	return &Registry{handlers: handlers}, nil
}

// Lookup returns the handler registered for a topic hash.
func (r *Registry) Lookup(topic0 common.Hash) (Handler, bool) {
	handler, ok := r.handlers[topic0]
	return handler, ok
}

// Topics returns every registered topic hash, for upstream log filters.
func (r *Registry) Topics() []common.Hash {
	topics := make([]common.Hash, 0, len(r.handlers))
	for topic := range r.handlers {
		topics = append(topics, topic)
	}
	return topics
}
