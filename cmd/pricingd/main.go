package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"dexpricer/internal/catalog"
	"dexpricer/internal/chain"
	"dexpricer/internal/config"
	"dexpricer/internal/dex"
	"dexpricer/internal/model"
	"dexpricer/internal/pricing"
	"dexpricer/internal/server"
	"dexpricer/internal/subscriber"
)

func main() {
	root := &cobra.Command{
		Use:          "pricingd",
		Short:        "DEX swap price reporter",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pricing daemon",
		RunE:  runDaemon,
	}

	runCmd.Flags().String("rpc", "", "Ethereum RPC URL (ws:// for live heads)")
	runCmd.Flags().Uint64("from", 0, "start block (inclusive), 0 means latest")
	runCmd.Flags().Int32("tick", 20, "round width in blocks")
	runCmd.Flags().Int("confirmation", 2, "blocks to wait before processing")
	runCmd.Flags().Uint64("fast-sync-batch", 50, "blocks per catch-up query")
	runCmd.Flags().Int32("price-decimals", 8, "decimal places on reported prices")
	runCmd.Flags().Int("max-history-records", 664, "history records kept per token")
	runCmd.Flags().Int("max-cached-days", 100, "day buckets kept per pool")
	runCmd.Flags().Uint64("blocks-per-day", 6646, "blocks per day bucket")
	runCmd.Flags().String("http-listen", "127.0.0.1:3000", "HTTP listen address")
	runCmd.Flags().String("pg-dsn", "", "Postgres DSN for the token/pool catalog")
	runCmd.Flags().StringSlice("pricing-assets", nil, "pricing hub token addresses (comma-separated)")
	runCmd.Flags().StringSlice("usd-stable-assets", nil, "USD stable token addresses (comma-separated)")
	runCmd.Flags().String("native-wrapper", "", "wrapped native token address")
	runCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	runCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	runCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(runCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	tokens := pricing.DefaultTokens
	var pools []catalog.Pool
	if cfg.PostgresDSN != "" {
		store, err := catalog.NewStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("open catalog: %w", err)
		}
		defer store.Close()

		loaded, err := store.LoadTokens(ctx)
		if err != nil {
			return fmt.Errorf("load tokens: %w", err)
		}
		tokens = mergeTokens(tokens, loaded)

		pools, err = store.LoadPools(ctx)
		if err != nil {
			return fmt.Errorf("load pools: %w", err)
		}
	}

	engine := pricing.NewEngine(pricing.Config{
		Tick:              uint64(cfg.Tick),
		PriceDecimals:     cfg.PriceDecimals,
		MaxHistoryRecords: cfg.MaxHistoryRecords,
		MaxCachedDays:     cfg.MaxCachedDays,
		BlocksPerDay:      cfg.BlocksPerDay,
		PricingAssets:     cfg.PricingAssets,
		USDStableAssets:   cfg.USDStableAssets,
		NativeWrapper:     cfg.NativeWrapper,
	}, tokens, logger)

	registry, err := dex.NewRegistry()
	if err != nil {
		return fmt.Errorf("build decoder registry: %w", err)
	}

	publishers := subscriber.NewPublisherRegistry()
	for _, pool := range pools {
		publishers.Register(pool.Address, &dex.Params{Tokens: pool.Tokens})
	}

	fromBlock := cfg.FromBlock
	if fromBlock == 0 {
		head, err := chainClient.BlockNumber(ctx)
		if err != nil {
			return fmt.Errorf("fetch head: %w", err)
		}
		fromBlock = head
	}

	sub := subscriber.NewSubscriber(subscriber.Config{
		FromBlock:     fromBlock,
		Confirmation:  uint64(cfg.Confirmation),
		FastSyncBatch: cfg.FastSyncBatch,
		PriceDecimals: cfg.PriceDecimals,
		MaxRetries:    cfg.MaxRetries,
		RetryBackoff:  cfg.RetryBackoff,
	}, chainClient, registry, publishers, engine, logger)

	srv := server.New(sub, engine, logger)

	logger.Info("pricing daemon start",
		zap.String("rpc", cfg.RPCURL),
		zap.Uint64("from", fromBlock),
		zap.Int32("tick", cfg.Tick),
		zap.Int("confirmation", cfg.Confirmation),
		zap.Int("pools", len(pools)),
		zap.Int("tokens", len(tokens)),
		zap.String("http_listen", cfg.HTTPListen),
	)

	errCh := make(chan error, 2)
	go func() {
		errCh <- sub.Start(ctx)
	}()
	go func() {
		errCh <- srv.Listen(cfg.HTTPListen)
	}()

	select {
	case <-ctx.Done():
		if err := srv.Shutdown(); err != nil {
			logger.Warn("http shutdown", zap.Error(err))
		}
		return nil
	case err := <-errCh:
		stop()
		if shutdownErr := srv.Shutdown(); shutdownErr != nil {
			logger.Warn("http shutdown", zap.Error(shutdownErr))
		}
		return err
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func mergeTokens(base, extra []model.Token) []model.Token {
	seen := make(map[string]int, len(base))
	merged := make([]model.Token, len(base))
	copy(merged, base)
	for i, t := range merged {
		seen[strings.ToLower(t.Address)] = i
	}
	for _, t := range extra {
		addr := strings.ToLower(t.Address)
		if i, ok := seen[addr]; ok {
			merged[i] = t
			continue
		}
		seen[addr] = len(merged)
		merged = append(merged, t)
	}
	return merged
}
