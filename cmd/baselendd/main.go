package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"baselend/config"
	"baselend/core/events"
	"baselend/native/market"
	"baselend/observability/logging"
	"baselend/rpc"
	"baselend/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("Failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := logging.Setup("baselendd", cfg.Environment, logging.Options{
		FilePath:   cfg.Log.FilePath,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})

	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		logger.Error("Failed to create data directory", slog.Any("error", err))
		os.Exit(1)
	}
	store, err := storage.OpenBolt(filepath.Join(cfg.DataDir, "ledger.db"), nil)
	if err != nil {
		logger.Error("Failed to open ledger database", slog.Any("error", err))
		os.Exit(1)
	}
	defer store.Close()

	engine, err := buildEngine(cfg, logger)
	if err != nil {
		logger.Error("Failed to build market engine", slog.Any("error", err))
		os.Exit(1)
	}
	engine.SetStore(store)

	registry := prometheus.NewRegistry()
	server := rpc.NewServer(engine, logger, rpc.Options{
		RequestsPerSecond: cfg.RPC.RequestsPerSecond,
		Burst:             cfg.RPC.Burst,
		Registry:          registry,
	})

	httpServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP API listening", slog.String("address", cfg.ListenAddress))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown did not complete cleanly", slog.Any("error", err))
	}
}

func buildEngine(cfg *config.Config, logger *slog.Logger) (*market.Engine, error) {
	params, err := cfg.MarketParams()
	if err != nil {
		return nil, err
	}
	rates, err := cfg.RateParams()
	if err != nil {
		return nil, err
	}
	assets, err := cfg.AssetConfigs()
	if err != nil {
		return nil, err
	}
	prices, err := cfg.OraclePrices()
	if err != nil {
		return nil, err
	}

	engine := market.NewEngine(params, market.NewInterestRateModel(rates))
	for _, asset := range assets {
		if err := engine.AddAsset(asset); err != nil {
			return nil, err
		}
	}

	oracle := market.NewStaticOracle()
	for asset, price := range prices {
		oracle.SetPrice(asset, price)
	}
	engine.SetOracle(oracle)
	engine.SetEmitter(events.SlogEmitter{Logger: logger})
	return engine, nil
}
