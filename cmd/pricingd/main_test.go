package main

import (
	"testing"

	"dexpricer/internal/model"
)

func TestNewLoggerLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		logger, err := newLogger(level)
		if err != nil {
			t.Fatalf("level %q: %v", level, err)
		}
		logger.Sync()
	}

	if _, err := newLogger("nonsense"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestMergeTokens(t *testing.T) {
	base := []model.Token{
		{Address: "0xaaaa", Symbol: "AAA", Decimals: 18},
		{Address: "0xbbbb", Symbol: "BBB", Decimals: 6},
	}
	extra := []model.Token{
		{Address: "0xAAAA", Symbol: "AAA2", Decimals: 8},
		{Address: "0xcccc", Symbol: "CCC", Decimals: 18},
	}

	merged := mergeTokens(base, extra)
	if len(merged) != 3 {
		t.Fatalf("expected 3 tokens, got %d", len(merged))
	}
	if merged[0].Symbol != "AAA2" || merged[0].Decimals != 8 {
		t.Fatalf("catalog entry should replace default: %+v", merged[0])
	}
	if merged[2].Symbol != "CCC" {
		t.Fatalf("new token missing: %+v", merged)
	}
}
