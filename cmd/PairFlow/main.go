package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"pairflow/config"
	"pairflow/internal/metrics"
	"pairflow/internal/pipeline"
	"pairflow/internal/storage"
	"pairflow/logger"
	"pairflow/processor"
	"pairflow/writer"
)

const defaultConfigPath = "config/config.yml"

func main() {
	if err := run(); err != nil {
		logger.GetLogger().WithComponent("main").WithError(err).Error("pairflow failed")
		os.Exit(1)
	}
}

func run() error {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "", "Path to configuration file (default "+defaultConfigPath+" when present)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-config file] [quotes.csv trades.csv]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	path := config.ResolveConfigPath(*configPath, defaultConfigPath)
	if *configPath == "" {
		if _, err := os.Stat(path); err != nil {
			path = ""
		}
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		return err
	}

	switch args := flag.Args(); len(args) {
	case 0:
	case 2:
		cfg.Input.Quotes, cfg.Input.Trades = args[0], args[1]
	default:
		flag.Usage()
		return fmt.Errorf("expected quotes and trades paths, got %d arguments", len(args))
	}

	if err := log.Configure(logger.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
		MaxAge: cfg.Logging.MaxAge,
	}); err != nil {
		return fmt.Errorf("configure logger: %w", err)
	}

	log.WithFields(logger.Fields{
		"service": cfg.Pairflow.Name,
		"version": cfg.Pairflow.Version,
		"env":     config.AppEnvironment(),
		"config":  path,
	}).Info("starting pairflow")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.Init()
	metrics.Serve(ctx, cfg.Metrics.ListenAddr)

	if cfg.Metrics.CloudWatch.Enabled {
		logger.InitCloudWatch(cfg.Metrics.CloudWatch.Region, cfg.Metrics.CloudWatch.Namespace, cfg.Metrics.CloudWatch.Dashboard)
		if !logger.CloudWatchEnabled() {
			log.WithComponent("main").WithEnv("AWS_REGION", "AWS_PROFILE").Warn("cloudwatch requested but unavailable; continuing without it")
		}
	}

	interval := cfg.Metrics.ReportInterval
	if interval <= 0 && strings.ToLower(cfg.Logging.Level) == "report" {
		interval = 30 * time.Second
	}
	logger.StartReport(ctx, log, interval)

	var deps pipeline.Deps
	if cfg.Storage.S3.Enabled || config.UsesS3(cfg.Input.Quotes) || config.UsesS3(cfg.Input.Trades) {
		client, err := storage.NewS3Client(ctx, cfg.Storage.S3)
		if err != nil {
			return fmt.Errorf("create S3 client: %w", err)
		}
		deps.Objects = client
	}

	writers, err := writer.Build(ctx, cfg, os.Stdout, deps.Objects)
	if err != nil {
		return err
	}
	for _, w := range writers {
		deps.Writers = append(deps.Writers, processor.BatchWriter(w))
	}

	summary, runErr := pipeline.Run(ctx, cfg, deps)

	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if err := writer.CloseAll(closeCtx, writers); err != nil {
		log.WithComponent("main").WithError(err).Error("failed to close writers")
		if runErr == nil {
			runErr = err
		}
	}

	logger.LogReport(closeCtx, log)
	if runErr != nil {
		return runErr
	}

	log.WithComponent("main").WithFields(logger.Fields{
		"run_id":         summary.RunID,
		"pairs":          summary.PairsEmitted,
		"open_positions": len(summary.OpenPositions()),
		"duration_ms":    summary.Duration.Milliseconds(),
	}).Info("pairflow finished")
	return nil
}
