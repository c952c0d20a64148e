package dex

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"dexpricer/internal/model"
)

func decodeUniswapV2Swap(log types.Log, params *Params) (model.SwapEvent, error) {
	abis, err := LoadProtocolABIs()
	if err != nil {
		return model.SwapEvent{}, err
	}
	event := abis.UniswapV2.Events["Swap"]

	token0, token1, err := pairTokens(log, params)
	if err != nil {
		return model.SwapEvent{}, err
	}

	values, err := unpackData(event, log)
	if err != nil {
		return model.SwapEvent{}, err
	}
	if len(values) != 4 {
		return model.SwapEvent{}, decodeErr(log, fmt.Sprintf("unexpected swap values: %d", len(values)))
	}

	amount0In, err := asBigInt(values[0])
	if err != nil {
		return model.SwapEvent{}, decodeErr(log, err.Error())
	}
	amount1In, err := asBigInt(values[1])
	if err != nil {
		return model.SwapEvent{}, decodeErr(log, err.Error())
	}
	amount0Out, err := asBigInt(values[2])
	if err != nil {
		return model.SwapEvent{}, decodeErr(log, err.Error())
	}
	amount1Out, err := asBigInt(values[3])
	if err != nil {
		return model.SwapEvent{}, decodeErr(log, err.Error())
	}

	fromToken, amountIn := token1, amount1In
	if amount0In.Sign() > 0 {
		fromToken, amountIn = token0, amount0In
	}
	toToken, amountOut := token0, amount1Out
	if amount1Out.Sign() > 0 {
		toToken = token1
	}
	if amount0Out.Sign() > 0 {
		amountOut = amount0Out
	}

	return buildSwapEvent(log, model.ProtocolUniswapV2, fromToken, toToken, amountIn, amountOut, lowerAddr(log.Address)), nil
}

func decodeUniswapV3Swap(log types.Log, params *Params) (model.SwapEvent, error) {
	abis, err := LoadProtocolABIs()
	if err != nil {
		return model.SwapEvent{}, err
	}
	event := abis.UniswapV3.Events["Swap"]

	token0, token1, err := pairTokens(log, params)
	if err != nil {
		return model.SwapEvent{}, err
	}

	values, err := unpackData(event, log)
	if err != nil {
		return model.SwapEvent{}, err
	}
	if len(values) != 5 {
		return model.SwapEvent{}, decodeErr(log, fmt.Sprintf("unexpected swap values: %d", len(values)))
	}

	amount0, err := asBigInt(values[0])
	if err != nil {
		return model.SwapEvent{}, decodeErr(log, err.Error())
	}
	amount1, err := asBigInt(values[1])
	if err != nil {
		return model.SwapEvent{}, decodeErr(log, err.Error())
	}

	// Signed balance deltas: the token with the positive delta entered the
	// pool, the token with the negative delta left it.
	fromToken, amountIn := token1, amount1
	if amount0.Sign() > 0 {
		fromToken, amountIn = token0, amount0
	}
	toToken, amountOut := token1, amount1
	if amount0.Sign() < 0 {
		toToken, amountOut = token0, amount0
	}
	amountOut = new(big.Int).Abs(amountOut)

	return buildSwapEvent(log, model.ProtocolUniswapV3, fromToken, toToken, amountIn, amountOut, lowerAddr(log.Address)), nil
}

func decodeBalancerV2Swap(log types.Log, _ *Params) (model.SwapEvent, error) {
	abis, err := LoadProtocolABIs()
	if err != nil {
		return model.SwapEvent{}, err
	}
	event := abis.BalancerV2.Events["Swap"]

	var indexed struct {
		PoolId   [32]byte
		TokenIn  common.Address
		TokenOut common.Address
	}
	if err := parseIndexed(&indexed, event, log); err != nil {
		return model.SwapEvent{}, err
	}

	values, err := unpackData(event, log)
	if err != nil {
		return model.SwapEvent{}, err
	}
	if len(values) != 2 {
		return model.SwapEvent{}, decodeErr(log, fmt.Sprintf("unexpected swap values: %d", len(values)))
	}

	amountIn, err := asBigInt(values[0])
	if err != nil {
		return model.SwapEvent{}, decodeErr(log, err.Error())
	}
	amountOut, err := asBigInt(values[1])
	if err != nil {
		return model.SwapEvent{}, decodeErr(log, err.Error())
	}

	// The vault emits swaps for every pool it hosts; the pool identifier is
	// the poolId payload field, not the emitting address.
	poolID := strings.ToLower(hexutil.Encode(indexed.PoolId[:]))

	return buildSwapEvent(log, model.ProtocolBalancerV2,
		lowerAddr(indexed.TokenIn), lowerAddr(indexed.TokenOut), amountIn, amountOut, poolID), nil
}

func decodeBalancerSwap(log types.Log, _ *Params) (model.SwapEvent, error) {
	abis, err := LoadProtocolABIs()
	if err != nil {
		return model.SwapEvent{}, err
	}
	event := abis.Balancer.Events["LOG_SWAP"]

	var indexed struct {
		Caller   common.Address
		TokenIn  common.Address
		TokenOut common.Address
	}
	if err := parseIndexed(&indexed, event, log); err != nil {
		return model.SwapEvent{}, err
	}

	values, err := unpackData(event, log)
	if err != nil {
		return model.SwapEvent{}, err
	}
	if len(values) != 2 {
		return model.SwapEvent{}, decodeErr(log, fmt.Sprintf("unexpected swap values: %d", len(values)))
	}

	amountIn, err := asBigInt(values[0])
	if err != nil {
		return model.SwapEvent{}, decodeErr(log, err.Error())
	}
	amountOut, err := asBigInt(values[1])
	if err != nil {
		return model.SwapEvent{}, decodeErr(log, err.Error())
	}

	return buildSwapEvent(log, model.ProtocolBalancer,
		lowerAddr(indexed.TokenIn), lowerAddr(indexed.TokenOut), amountIn, amountOut, lowerAddr(log.Address)), nil
}

func decodeCurveExchange(eventName string) DecodeFunc {
	return func(log types.Log, params *Params) (model.SwapEvent, error) {
		abis, err := LoadProtocolABIs()
		if err != nil {
			return model.SwapEvent{}, err
		}
		return decodeExchange(abis.Curve.Events[eventName], model.ProtocolCurve, log, params)
	}
}

func decodeCurveV2Exchange(log types.Log, params *Params) (model.SwapEvent, error) {
	abis, err := LoadProtocolABIs()
	if err != nil {
		return model.SwapEvent{}, err
	}
	return decodeExchange(abis.CurveV2.Events["TokenExchange"], model.ProtocolCurveV2, log, params)
}

// decodeExchange handles the shared Curve exchange payload shape, where the
// traded tokens are referenced by their index in the pool's token list.
func decodeExchange(event abi.Event, protocol model.Protocol, log types.Log, params *Params) (model.SwapEvent, error) {
	values, err := unpackData(event, log)
	if err != nil {
		return model.SwapEvent{}, err
	}
	if len(values) != 4 {
		return model.SwapEvent{}, decodeErr(log, fmt.Sprintf("unexpected exchange values: %d", len(values)))
	}

	soldID, err := asBigInt(values[0])
	if err != nil {
		return model.SwapEvent{}, decodeErr(log, err.Error())
	}
	tokensSold, err := asBigInt(values[1])
	if err != nil {
		return model.SwapEvent{}, decodeErr(log, err.Error())
	}
	boughtID, err := asBigInt(values[2])
	if err != nil {
		return model.SwapEvent{}, decodeErr(log, err.Error())
	}
	tokensBought, err := asBigInt(values[3])
	if err != nil {
		return model.SwapEvent{}, decodeErr(log, err.Error())
	}

	fromToken, err := tokenAt(log, params, soldID)
	if err != nil {
		return model.SwapEvent{}, err
	}
	toToken, err := tokenAt(log, params, boughtID)
	if err != nil {
		return model.SwapEvent{}, err
	}

	return buildSwapEvent(log, protocol, fromToken, toToken, tokensSold, tokensBought, lowerAddr(log.Address)), nil
}

func buildSwapEvent(log types.Log, protocol model.Protocol, fromToken, toToken string, amountIn, amountOut *big.Int, poolID string) model.SwapEvent {
	return model.SwapEvent{
		FromToken:   fromToken,
		ToToken:     toToken,
		AmountIn:    amountIn.String(),
		AmountOut:   amountOut.String(),
		BlockNumber: log.BlockNumber,
		TxIndex:     uint64(log.TxIndex),
		LogIndex:    uint64(log.Index),
		Address:     poolID,
		Protocol:    protocol,
	}
}

// pairTokens resolves the ordered (token0, token1) list a pool-per-pair
// decoder needs to name the traded tokens.
func pairTokens(log types.Log, params *Params) (string, string, error) {
	if params == nil || len(params.Tokens) < 2 {
		return "", "", decodeErr(log, "publisher params with ordered token list required")
	}
	return strings.ToLower(params.Tokens[0]), strings.ToLower(params.Tokens[1]), nil
}

func tokenAt(log types.Log, params *Params, index *big.Int) (string, error) {
	if params == nil {
		return "", decodeErr(log, "publisher params with ordered token list required")
	}
	if !index.IsInt64() || index.Int64() < 0 || index.Int64() >= int64(len(params.Tokens)) {
		return "", decodeErr(log, fmt.Sprintf("token index %s out of range", index))
	}
	return strings.ToLower(params.Tokens[index.Int64()]), nil
}

func parseIndexed(out interface{}, event abi.Event, log types.Log) error {
	indexed := indexedArguments(event.Inputs)
	if len(log.Topics) != len(indexed)+1 {
		return decodeErr(log, fmt.Sprintf("expected %d topics, got %d", len(indexed)+1, len(log.Topics)))
	}
	if err := abi.ParseTopics(out, indexed, log.Topics[1:]); err != nil {
		return decodeErr(log, fmt.Sprintf("parse topics: %v", err))
	}
	return nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

func unpackData(event abi.Event, log types.Log) ([]interface{}, error) {
	values, err := event.Inputs.NonIndexed().Unpack(log.Data)
	if err != nil {
		return nil, decodeErr(log, fmt.Sprintf("unpack %s: %v", event.Name, err))
	}
	return values, nil
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case int64:
		return big.NewInt(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}

func lowerAddr(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}

func decodeErr(log types.Log, reason string) error {
	var topic0 string
	if len(log.Topics) > 0 {
		topic0 = log.Topics[0].Hex()
	}
	return &model.DecodeError{
		BlockNumber: log.BlockNumber,
		LogIndex:    uint64(log.Index),
		Address:     lowerAddr(log.Address),
		Topic0:      topic0,
		Reason:      reason,
	}
}
