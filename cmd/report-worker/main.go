package main

import (
	"context"
	"errors"
	"os"
	"time"

	"subtrack/internal/amqp"
	"subtrack/internal/backend"
	"subtrack/internal/billing"
	"subtrack/internal/cli"
	"subtrack/internal/config"
	applog "subtrack/internal/log"
	"subtrack/internal/services"
	"subtrack/internal/sheets/google"
	"subtrack/internal/worker"
)

func main() {
	cfg, err := cli.LoadConfig((*config.Config).ValidateWorker)
	logger := cli.SetupLogger(cfg, applog.ComponentWorker)
	if err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Starting report-worker")

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	// The worker only reads charges; it never announces changes.
	bcfg.AMQPURL = ""
	result, err := backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Logger).
		CreateBackend(context.Background(), bcfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	exporter, err := google.NewExporter(context.Background(), google.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleReportSheetName,
		CredentialsJSON: cfg.GoogleCredentialsJSON,
		CredentialsFile: cfg.GoogleCredentialsFile,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets exporter", "error", err)
		os.Exit(1)
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}

	normalizer := billing.NewNormalizer(billing.Config{
		DefaultCurrency: cfg.DefaultCurrency,
		TopN:            cfg.TopN,
		Now:             time.Now,
	})
	exportWorker := worker.NewExportWorker(services.NewReportService(result.Charges, normalizer), exporter)
	scheduler := services.NewExportScheduler(exportWorker, services.ExportSchedulerConfig{
		Interval:   cfg.ExportInterval,
		RunOnStart: true,
	})

	// A dead consumer stops the whole process so the supervisor restarts it.
	run, stop := context.WithCancel(context.Background())
	defer stop()

	ctx, done := cli.GracefulShutdown(run, logger, 30*time.Second, func(ctx context.Context) {
		logger.Info("Shutting down worker...")
		if err := scheduler.Stop(ctx); err != nil {
			logger.Error("Failed to stop export scheduler", "error", err)
		}
		if err := amqpClient.Close(); err != nil {
			logger.Error("Failed to close AMQP client", "error", err)
		}
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	})

	if err := scheduler.Start(ctx); err != nil {
		logger.Error("Failed to start export scheduler", "error", err)
		os.Exit(1)
	}

	consumeErr := make(chan error, 1)
	go func() {
		if err := amqpClient.Consume(ctx, exportWorker); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed, shutting down", "error", err)
			consumeErr <- err
		}
		stop()
	}()

	<-done
	select {
	case <-consumeErr:
		os.Exit(1)
	default:
	}
}
