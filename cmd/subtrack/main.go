package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"subtrack/internal/backend"
	"subtrack/internal/billing"
	"subtrack/internal/cli"
	"subtrack/internal/config"
	apphttp "subtrack/internal/http"
	applog "subtrack/internal/log"
	"subtrack/internal/middleware/ratelimit"
	"subtrack/internal/services"
)

func main() {
	cfg, err := cli.LoadConfig((*config.Config).Validate)
	logger := cli.SetupLogger(cfg, applog.ComponentApp)
	if err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Logger).
		CreateBackend(context.Background(), bcfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	normalizer := billing.NewNormalizer(billing.Config{
		DefaultCurrency: cfg.DefaultCurrency,
		TopN:            cfg.TopN,
		Now:             time.Now,
	})
	reports := services.NewReportService(result.Charges, normalizer)

	srv := apphttp.NewServer(":"+cfg.Port, result.Charges, reports, result.Events, apphttp.Options{
		Logger: logger.WithComponent(applog.ComponentHTTP),
		RateLimit: ratelimit.Config{
			RequestsPerMinute: cfg.RateLimitPerMinute,
			Burst:             cfg.RateLimitBurst,
		},
	})
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	_, done := cli.GracefulShutdown(context.Background(), logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	})

	logger.Info("Starting subtrack server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"events", result.Events != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-done
	logger.Info("Server stopped gracefully")
}
