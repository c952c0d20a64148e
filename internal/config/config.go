package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL            string
	FromBlock         uint64
	Tick              int32
	Confirmation      int
	FastSyncBatch     uint64
	PriceDecimals     int32
	MaxHistoryRecords int
	MaxCachedDays     int
	BlocksPerDay      uint64
	HTTPListen        string
	PostgresDSN       string
	PricingAssets     []string
	USDStableAssets   []string
	NativeWrapper     string
	MaxRetries        int
	RetryBackoff      time.Duration
	LogLevel          string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PRICER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("tick", int32(20))
	v.SetDefault("confirmation", 2)
	v.SetDefault("fast-sync-batch", uint64(50))
	v.SetDefault("price-decimals", int32(8))
	v.SetDefault("max-history-records", 664)
	v.SetDefault("max-cached-days", 100)
	v.SetDefault("blocks-per-day", uint64(6646))
	v.SetDefault("http-listen", "127.0.0.1:3000")
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		RPCURL:            v.GetString("rpc"),
		FromBlock:         v.GetUint64("from"),
		Tick:              v.GetInt32("tick"),
		Confirmation:      v.GetInt("confirmation"),
		FastSyncBatch:     v.GetUint64("fast-sync-batch"),
		PriceDecimals:     v.GetInt32("price-decimals"),
		MaxHistoryRecords: v.GetInt("max-history-records"),
		MaxCachedDays:     v.GetInt("max-cached-days"),
		BlocksPerDay:      v.GetUint64("blocks-per-day"),
		HTTPListen:        v.GetString("http-listen"),
		PostgresDSN:       v.GetString("pg-dsn"),
		PricingAssets:     getStringSlice(v, "pricing-assets"),
		USDStableAssets:   getStringSlice(v, "usd-stable-assets"),
		NativeWrapper:     v.GetString("native-wrapper"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
		LogLevel:          v.GetString("log-level"),
	}

	if cfg.Tick <= 0 {
		return Config{}, fmt.Errorf("tick must be positive")
	}

	return cfg, nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
