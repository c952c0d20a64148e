package dex

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"dexpricer/internal/model"
)

const (
	tokenA = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	tokenB = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	tokenC = "0xcccccccccccccccccccccccccccccccccccccccc"
)

func buildLog(address common.Address, topics []common.Hash, data []byte) types.Log {
	return types.Log{
		Address:     address,
		Topics:      topics,
		Data:        data,
		BlockNumber: 17000000,
		TxIndex:     3,
		Index:       42,
	}
}

func topicFromAddress(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}

func TestDecodeUniswapV2Swap(t *testing.T) {
	abis, err := LoadProtocolABIs()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	event := abis.UniswapV2.Events["Swap"]

	pool := common.HexToAddress("0x1111111111111111111111111111111111111111")
	sender := common.HexToAddress("0x2222222222222222222222222222222222222222")

	data, err := event.Inputs.NonIndexed().Pack(
		big.NewInt(1000), // amount0In
		big.NewInt(0),    // amount1In
		big.NewInt(0),    // amount0Out
		big.NewInt(500),  // amount1Out
	)
	if err != nil {
		t.Fatalf("pack swap: %v", err)
	}

	log := buildLog(pool, []common.Hash{event.ID, topicFromAddress(sender), topicFromAddress(sender)}, data)
	swap, err := decodeUniswapV2Swap(log, &Params{Tokens: []string{tokenA, tokenB}})
	if err != nil {
		t.Fatalf("decode swap: %v", err)
	}

	if swap.FromToken != tokenA || swap.ToToken != tokenB {
		t.Fatalf("direction mismatch: %+v", swap)
	}
	if swap.AmountIn != "1000" || swap.AmountOut != "500" {
		t.Fatalf("amounts mismatch: %+v", swap)
	}
	if swap.Protocol != model.ProtocolUniswapV2 {
		t.Fatalf("protocol mismatch: %s", swap.Protocol)
	}
	if swap.Address != "0x1111111111111111111111111111111111111111" {
		t.Fatalf("pool mismatch: %s", swap.Address)
	}
	if swap.BlockNumber != 17000000 || swap.TxIndex != 3 || swap.LogIndex != 42 {
		t.Fatalf("position mismatch: %+v", swap)
	}

	// reverse direction
	data, err = event.Inputs.NonIndexed().Pack(
		big.NewInt(0),
		big.NewInt(700),
		big.NewInt(300),
		big.NewInt(0),
	)
	if err != nil {
		t.Fatalf("pack swap: %v", err)
	}
	log = buildLog(pool, []common.Hash{event.ID, topicFromAddress(sender), topicFromAddress(sender)}, data)
	swap, err = decodeUniswapV2Swap(log, &Params{Tokens: []string{tokenA, tokenB}})
	if err != nil {
		t.Fatalf("decode swap: %v", err)
	}
	if swap.FromToken != tokenB || swap.ToToken != tokenA {
		t.Fatalf("direction mismatch: %+v", swap)
	}
	if swap.AmountIn != "700" || swap.AmountOut != "300" {
		t.Fatalf("amounts mismatch: %+v", swap)
	}
}

func TestDecodeUniswapV3Swap(t *testing.T) {
	abis, err := LoadProtocolABIs()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	event := abis.UniswapV3.Events["Swap"]

	pool := common.HexToAddress("0x1111111111111111111111111111111111111111")
	sender := common.HexToAddress("0x2222222222222222222222222222222222222222")
	recipient := common.HexToAddress("0x3333333333333333333333333333333333333333")

	// token0 left the pool, token1 entered it
	data, err := event.Inputs.NonIndexed().Pack(
		big.NewInt(-1500),
		big.NewInt(2500),
		big.NewInt(123456789),
		big.NewInt(987654321),
		big.NewInt(-15),
	)
	if err != nil {
		t.Fatalf("pack swap: %v", err)
	}

	log := buildLog(pool, []common.Hash{event.ID, topicFromAddress(sender), topicFromAddress(recipient)}, data)
	swap, err := decodeUniswapV3Swap(log, &Params{Tokens: []string{tokenA, tokenB}})
	if err != nil {
		t.Fatalf("decode swap: %v", err)
	}

	if swap.FromToken != tokenB || swap.ToToken != tokenA {
		t.Fatalf("direction mismatch: %+v", swap)
	}
	if swap.AmountIn != "2500" || swap.AmountOut != "1500" {
		t.Fatalf("amounts mismatch: %+v", swap)
	}
	if swap.Protocol != model.ProtocolUniswapV3 {
		t.Fatalf("protocol mismatch: %s", swap.Protocol)
	}
}

func TestDecodeBalancerV2Swap(t *testing.T) {
	abis, err := LoadProtocolABIs()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	event := abis.BalancerV2.Events["Swap"]

	vault := common.HexToAddress("0xba12222222228d8ba445958a75a0704d566bf2c8")
	var poolID common.Hash
	copy(poolID[:], common.Hex2Bytes("0b09dea16768f0799065c475be02919503cb2a3500020000000000000000001a"))

	data, err := event.Inputs.NonIndexed().Pack(big.NewInt(4000), big.NewInt(3900))
	if err != nil {
		t.Fatalf("pack swap: %v", err)
	}

	log := buildLog(vault, []common.Hash{
		event.ID,
		poolID,
		topicFromAddress(common.HexToAddress(tokenA)),
		topicFromAddress(common.HexToAddress(tokenB)),
	}, data)

	swap, err := decodeBalancerV2Swap(log, nil)
	if err != nil {
		t.Fatalf("decode swap: %v", err)
	}

	if swap.FromToken != tokenA || swap.ToToken != tokenB {
		t.Fatalf("tokens mismatch: %+v", swap)
	}
	if swap.AmountIn != "4000" || swap.AmountOut != "3900" {
		t.Fatalf("amounts mismatch: %+v", swap)
	}
	// the poolId payload identifies the pool, not the emitting vault
	if swap.Address != "0x0b09dea16768f0799065c475be02919503cb2a3500020000000000000000001a" {
		t.Fatalf("pool id mismatch: %s", swap.Address)
	}
	if swap.Protocol != model.ProtocolBalancerV2 {
		t.Fatalf("protocol mismatch: %s", swap.Protocol)
	}
}

func TestDecodeBalancerSwap(t *testing.T) {
	abis, err := LoadProtocolABIs()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	event := abis.Balancer.Events["LOG_SWAP"]

	pool := common.HexToAddress("0x4444444444444444444444444444444444444444")
	caller := common.HexToAddress("0x5555555555555555555555555555555555555555")

	data, err := event.Inputs.NonIndexed().Pack(big.NewInt(10), big.NewInt(9))
	if err != nil {
		t.Fatalf("pack swap: %v", err)
	}

	log := buildLog(pool, []common.Hash{
		event.ID,
		topicFromAddress(caller),
		topicFromAddress(common.HexToAddress(tokenB)),
		topicFromAddress(common.HexToAddress(tokenC)),
	}, data)

	swap, err := decodeBalancerSwap(log, nil)
	if err != nil {
		t.Fatalf("decode swap: %v", err)
	}
	if swap.FromToken != tokenB || swap.ToToken != tokenC {
		t.Fatalf("tokens mismatch: %+v", swap)
	}
	if swap.Address != "0x4444444444444444444444444444444444444444" {
		t.Fatalf("pool mismatch: %s", swap.Address)
	}
	if swap.Protocol != model.ProtocolBalancer {
		t.Fatalf("protocol mismatch: %s", swap.Protocol)
	}
}

func TestDecodeCurveExchange(t *testing.T) {
	abis, err := LoadProtocolABIs()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	event := abis.Curve.Events["TokenExchange"]

	pool := common.HexToAddress("0x6666666666666666666666666666666666666666")
	buyer := common.HexToAddress("0x7777777777777777777777777777777777777777")

	data, err := event.Inputs.NonIndexed().Pack(
		big.NewInt(2),    // sold_id
		big.NewInt(8888), // tokens_sold
		big.NewInt(0),    // bought_id
		big.NewInt(7777), // tokens_bought
	)
	if err != nil {
		t.Fatalf("pack exchange: %v", err)
	}

	params := &Params{Tokens: []string{tokenA, tokenB, tokenC}}
	log := buildLog(pool, []common.Hash{event.ID, topicFromAddress(buyer)}, data)

	decode := decodeCurveExchange("TokenExchange")
	swap, err := decode(log, params)
	if err != nil {
		t.Fatalf("decode exchange: %v", err)
	}
	if swap.FromToken != tokenC || swap.ToToken != tokenA {
		t.Fatalf("tokens mismatch: %+v", swap)
	}
	if swap.AmountIn != "8888" || swap.AmountOut != "7777" {
		t.Fatalf("amounts mismatch: %+v", swap)
	}
	if swap.Protocol != model.ProtocolCurve {
		t.Fatalf("protocol mismatch: %s", swap.Protocol)
	}
}

func TestDecodeCurveExchangeIndexOutOfRange(t *testing.T) {
	abis, err := LoadProtocolABIs()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	event := abis.Curve.Events["TokenExchange"]

	pool := common.HexToAddress("0x6666666666666666666666666666666666666666")
	buyer := common.HexToAddress("0x7777777777777777777777777777777777777777")

	data, err := event.Inputs.NonIndexed().Pack(
		big.NewInt(5),
		big.NewInt(1),
		big.NewInt(0),
		big.NewInt(1),
	)
	if err != nil {
		t.Fatalf("pack exchange: %v", err)
	}

	log := buildLog(pool, []common.Hash{event.ID, topicFromAddress(buyer)}, data)
	decode := decodeCurveExchange("TokenExchange")
	_, err = decode(log, &Params{Tokens: []string{tokenA, tokenB}})

	var decodeError *model.DecodeError
	if !errors.As(err, &decodeError) {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestDecodeCurveV2Exchange(t *testing.T) {
	abis, err := LoadProtocolABIs()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	event := abis.CurveV2.Events["TokenExchange"]

	pool := common.HexToAddress("0x8888888888888888888888888888888888888888")
	buyer := common.HexToAddress("0x9999999999999999999999999999999999999999")

	data, err := event.Inputs.NonIndexed().Pack(
		big.NewInt(0),
		big.NewInt(100),
		big.NewInt(1),
		big.NewInt(99),
	)
	if err != nil {
		t.Fatalf("pack exchange: %v", err)
	}

	log := buildLog(pool, []common.Hash{event.ID, topicFromAddress(buyer)}, data)
	swap, err := decodeCurveV2Exchange(log, &Params{Tokens: []string{tokenA, tokenB}})
	if err != nil {
		t.Fatalf("decode exchange: %v", err)
	}
	if swap.FromToken != tokenA || swap.ToToken != tokenB {
		t.Fatalf("tokens mismatch: %+v", swap)
	}
	if swap.Protocol != model.ProtocolCurveV2 {
		t.Fatalf("protocol mismatch: %s", swap.Protocol)
	}
}

func TestDecodeMissingParams(t *testing.T) {
	abis, err := LoadProtocolABIs()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	event := abis.UniswapV2.Events["Swap"]

	pool := common.HexToAddress("0x1111111111111111111111111111111111111111")
	sender := common.HexToAddress("0x2222222222222222222222222222222222222222")

	data, err := event.Inputs.NonIndexed().Pack(
		big.NewInt(1), big.NewInt(0), big.NewInt(0), big.NewInt(1),
	)
	if err != nil {
		t.Fatalf("pack swap: %v", err)
	}

	log := buildLog(pool, []common.Hash{event.ID, topicFromAddress(sender), topicFromAddress(sender)}, data)
	_, err = decodeUniswapV2Swap(log, nil)

	var decodeError *model.DecodeError
	if !errors.As(err, &decodeError) {
		t.Fatalf("expected decode error, got %v", err)
	}
	if decodeError.BlockNumber != 17000000 || decodeError.LogIndex != 42 {
		t.Fatalf("error position mismatch: %+v", decodeError)
	}
}

func TestDecodeTruncatedData(t *testing.T) {
	abis, err := LoadProtocolABIs()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	event := abis.UniswapV2.Events["Swap"]

	pool := common.HexToAddress("0x1111111111111111111111111111111111111111")
	sender := common.HexToAddress("0x2222222222222222222222222222222222222222")

	log := buildLog(pool, []common.Hash{event.ID, topicFromAddress(sender), topicFromAddress(sender)}, []byte{0x01, 0x02})
	_, err = decodeUniswapV2Swap(log, &Params{Tokens: []string{tokenA, tokenB}})

	var decodeError *model.DecodeError
	if !errors.As(err, &decodeError) {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestRegistryTopics(t *testing.T) {
	registry, err := NewRegistry()
	if err != nil {
		t.Fatalf("registry: %v", err)
	}

	topics := registry.Topics()
	if len(topics) != 7 {
		t.Fatalf("expected 7 topics, got %d", len(topics))
	}

	abis, err := LoadProtocolABIs()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}

	handler, ok := registry.Lookup(abis.UniswapV3.Events["Swap"].ID)
	if !ok {
		t.Fatalf("v3 swap topic not registered")
	}
	if handler.Protocol != model.ProtocolUniswapV3 {
		t.Fatalf("protocol mismatch: %s", handler.Protocol)
	}

	if _, ok := registry.Lookup(common.HexToHash("0xdeadbeef")); ok {
		t.Fatalf("unknown topic should not resolve")
	}
}
