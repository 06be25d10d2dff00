package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/volbot/config"
	"github.com/alejandrodnm/volbot/internal/adapters/marketdata"
	"github.com/alejandrodnm/volbot/internal/adapters/notify"
	"github.com/alejandrodnm/volbot/internal/adapters/storage"
	"github.com/alejandrodnm/volbot/internal/backtest"
	"github.com/alejandrodnm/volbot/internal/ports"
	"github.com/alejandrodnm/volbot/internal/risk"
	"github.com/alejandrodnm/volbot/internal/structures"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	start := flag.String("start", "", "backtest start date YYYY-MM-DD (overrides config)")
	end := flag.String("end", "", "backtest end date YYYY-MM-DD (overrides config)")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	table := flag.Bool("table", false, "print the full trade and rejection tables")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *start != "" {
		cfg.Backtest.Start = *start
	}
	if *end != "" {
		cfg.Backtest.End = *end
	}
	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	from, to, err := cfg.Range()
	if err != nil {
		slog.Error("invalid backtest range", "err", err)
		os.Exit(1)
	}

	runID := uuid.New().String()
	slog.Info("volbot starting",
		"config", *configPath,
		"run_id", runID,
		"start", from.Format("2006-01-02"),
		"end", to.Format("2006-01-02"),
		"source", cfg.Data.Source,
	)

	var chains ports.ChainProvider
	var signals ports.SignalSource
	if cfg.Data.Source == "http" {
		p := marketdata.NewHTTPProvider(cfg.Data.BaseURL, cfg.Data.APIKey)
		chains, signals = p, p
	} else {
		fs := marketdata.NewFileStore(cfg.Data.Root)
		chains, signals = fs, fs
	}

	var ledger ports.Ledger = storage.NopLedger{}
	if cfg.Storage.DSN != "" {
		sl, err := storage.NewSQLiteLedger(cfg.Storage.DSN)
		if err != nil {
			slog.Error("failed to open ledger", "err", err, "dsn", cfg.Storage.DSN)
			os.Exit(1)
		}
		defer sl.Close()
		ledger = sl
	}

	builder := structures.NewBuilder(builderConfig(cfg))
	pf := risk.NewPortfolio(toDollars(cfg.Account.InitialEquity))
	engine := risk.NewEngine(riskConfig(cfg), pf)
	fills := backtest.FillModel{
		Policy:         backtest.FillPolicy(cfg.Fills.Policy),
		SlippagePerLeg: toPoints(cfg.Fills.SlippagePerLeg),
	}

	sim := backtest.New(chains, signals, builder, engine, pf, fills, ledger, backtest.Config{
		Start:          from,
		End:            to,
		TakeProfitPct:  cfg.Exits.TakeProfitPct,
		StopLossMult:   cfg.Exits.StopLossMult,
		StopLossPct:    cfg.Exits.StopLossPct,
		TimeStopDTE:    cfg.Exits.TimeStopDTE,
		MinCoveragePct: cfg.Backtest.MinCoveragePct,
	}, runID)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	started := time.Now()
	summary, err := sim.Run(ctx)
	if err != nil {
		slog.Error("backtest failed", "err", err)
		os.Exit(1)
	}
	slog.Info("backtest complete",
		"elapsed", time.Since(started).Round(time.Millisecond),
		"admitted", summary.Admitted,
		"closed", len(summary.Closed),
	)

	notifier := notify.NewConsole(*table)
	if err := notifier.Report(ctx, summary); err != nil {
		slog.Warn("notifier error", "err", err)
	}
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
