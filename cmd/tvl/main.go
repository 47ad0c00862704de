package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"ist_tvl/internal/app/bootstrap"
	"ist_tvl/internal/config"
	"ist_tvl/internal/pkg/logger"
	"ist_tvl/internal/pkg/utils"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func main() {
	cfgPath := flag.String("config", utils.GetEnv("CONFIG_PATH", "config/config.yml"), "path to the YAML configuration")
	fullReport := flag.Bool("report", false, "print the full report instead of the balance map")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL: failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	zapLogger, err := logger.Init(logger.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
		Bridge: cfg.Logging.Bridge,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL: failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = zapLogger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	appLogger := logger.NewSlogAdapter()
	pipeline, err := bootstrap.NewPipeline(ctx, cfg, zapLogger, appLogger)
	if err != nil {
		zapLogger.Fatal("Failed to initialize TVL pipeline", zap.Error(err))
	}
	defer pipeline.Close()

	report, err := pipeline.Run(ctx)
	if err != nil {
		logger.Fatal("TVL run failed", "error", err)
	}

	var out any = report.Balances
	if *fullReport {
		out = report
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		logger.Fatal("Failed to write result", "error", err)
	}
}
