// Package cli holds the start-up steps shared by cmd/subtrack and
// cmd/report-worker.
package cli

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"subtrack/internal/config"
	applog "subtrack/internal/log"
)

// LoadEnvFile loads .env (or the given files) for local development. A
// missing file is not an error.
func LoadEnvFile(files ...string) error {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// SetupLogger builds the process logger from cfg and installs it as the
// slog default.
func SetupLogger(cfg *config.Config, component string) *applog.Logger {
	level, err := applog.ParseLevel(cfg.LogLevel)
	logger := applog.New(applog.Config{
		Level:     level,
		Format:    cfg.LogFormat,
		Component: component,
		Output:    os.Stdout,
	})
	applog.SetDefault(logger)
	if err != nil {
		logger.Warn("Falling back to info log level", "error", err)
	}
	return logger
}

// LoadConfig reads configuration after the env file, validating it with
// validate (Validate or ValidateWorker).
func LoadConfig(validate func(*config.Config) error) (*config.Config, error) {
	if err := LoadEnvFile(); err != nil {
		slog.Warn("Failed to load .env file", "error", err)
	}
	cfg := config.Load()
	if validate != nil {
		if err := validate(cfg); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

// GracefulShutdown returns a context cancelled on SIGINT/SIGTERM or when
// parent is done. cleanup runs with a context bounded by timeout before done
// is closed.
func GracefulShutdown(parent context.Context, logger *applog.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
		case <-ctx.Done():
		}
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}
