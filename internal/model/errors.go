package model

import "fmt"

// DecodeError records a decode failure for a single log. The log matched a
// registered topic but its payload did not have the expected shape.
type DecodeError struct {
	BlockNumber uint64 `json:"block_number"`
	LogIndex    uint64 `json:"log_index"`
	Address     string `json:"address"`
	Topic0      string `json:"topic0"`
	Reason      string `json:"reason"`
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode log %d@%d from %s (topic %s): %s",
		e.LogIndex, e.BlockNumber, e.Address, e.Topic0, e.Reason)
}

// ConfigError reports a token referenced by a swap that has no known
// metadata. It fails the single event, not the process.
type ConfigError struct {
	Token string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("no metadata configured for token %s", e.Token)
}
