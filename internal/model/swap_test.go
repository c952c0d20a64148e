package model

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestSwapEventJSONRoundTrip(t *testing.T) {
	original := SwapEvent{
		FromToken:   "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2",
		ToToken:     "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48",
		AmountIn:    "1000000000000000000",
		AmountOut:   "2000000000",
		BlockNumber: 17000000,
		TxIndex:     3,
		LogIndex:    42,
		Address:     "0x1111111111111111111111111111111111111111",
		Protocol:    ProtocolUniswapV3,
	}

	b, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded SwapEvent
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if !reflect.DeepEqual(original, decoded) {
		t.Fatalf("round-trip mismatch: %+v != %+v", original, decoded)
	}
}

func TestDecodeErrorMessage(t *testing.T) {
	err := error(&DecodeError{
		BlockNumber: 17000000,
		LogIndex:    42,
		Address:     "0x1111111111111111111111111111111111111111",
		Topic0:      "0xc42079f9",
		Reason:      "unexpected swap values",
	})

	msg := err.Error()
	if !strings.Contains(msg, "17000000") || !strings.Contains(msg, "unexpected swap values") {
		t.Fatalf("message missing context: %s", msg)
	}

	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("errors.As should match")
	}
}
