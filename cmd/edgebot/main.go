package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alejandrodnm/edgebot/config"
	"github.com/alejandrodnm/edgebot/internal/adapters/estimator"
	"github.com/alejandrodnm/edgebot/internal/adapters/notify"
	"github.com/alejandrodnm/edgebot/internal/adapters/polymarket"
	"github.com/alejandrodnm/edgebot/internal/adapters/storage"
	"github.com/alejandrodnm/edgebot/internal/engine"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	once := flag.Bool("once", false, "run one cycle and exit")
	dryRun := flag.Bool("dry-run", false, "run one cycle without persisting to storage")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	table := flag.Bool("table", false, "print full signal tables (default: compact 1-line)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	slog.Info("edgebot starting",
		"config", *configPath,
		"interval", cfg.CycleInterval(),
		"dry_run", *dryRun,
		"once", *once,
	)

	client := polymarket.NewClient(cfg.API.CLOBBase, cfg.API.GammaBase)
	est := estimator.NewHTTP(cfg.Estimator.BaseURL, cfg.EstimatorTimeout())
	sink := notify.NewConsole(*table)

	var store *storage.SQLiteStorage
	if !*dryRun {
		store, err = storage.NewSQLiteStorage(cfg.Storage.DSN)
		if err != nil {
			slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
			os.Exit(1)
		}
		defer store.Close()
	}

	engCfg := engine.DefaultConfig()
	engCfg.Interval = cfg.CycleInterval()
	engCfg.Workers = cfg.Engine.Workers
	engCfg.EstimatorTimeout = cfg.EstimatorTimeout()
	engCfg.BreakerThreshold = cfg.Engine.BreakerThreshold
	engCfg.BreakerCooldown = cfg.BreakerCooldown()
	engCfg.HistoryCap = cfg.Engine.HistoryCap
	engCfg.PollInterval = cfg.PollInterval()
	engCfg.QuoteFreshness = cfg.QuoteFreshness()
	engCfg.AnalysisTTL = cfg.AnalysisTTL()
	engCfg.MaxPriceDelta = cfg.Engine.MaxPriceDelta
	engCfg.Sizing.Slippage = cfg.Engine.Slippage
	engCfg.DryRun = *dryRun || *once

	var eng *engine.Engine
	if store != nil {
		eng = engine.New(engCfg, client, client, est, sink, store)
	} else {
		eng = engine.New(engCfg, client, client, est, sink, nil)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := eng.Run(ctx); err != nil {
		slog.Error("engine exited with error", "err", err)
		os.Exit(1)
	}

	slog.Info("edgebot stopped cleanly")
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
