// Package cli holds the start-up steps shared by the dompet binaries.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dompet/internal/config"
	dlog "dompet/internal/log"
)

// SetupLogger builds the process logger from LOG_LEVEL and LOG_FORMAT and
// makes it the slog default.
func SetupLogger(component string) *dlog.Logger {
	cfg := dlog.DefaultConfig()
	cfg.Level = dlog.ParseLevel(os.Getenv("LOG_LEVEL"))
	if f := os.Getenv("LOG_FORMAT"); f != "" {
		cfg.Format = f
	}
	if component != "" {
		cfg.Component = component
	}
	logger := dlog.New(cfg)
	dlog.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads .env, reads the environment and validates it.
// It exits the process on failure.
func LoadAndValidateConfig(logger *dlog.Logger) *config.Config {
	if err := config.LoadEnvFile(); err != nil {
		logger.Warn("Failed to load .env file", dlog.FieldError, err)
	}
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", dlog.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM. After
// the signal, cleanup runs with a context bounded by timeout and done is
// closed when it returns.
func GracefulShutdown(logger *dlog.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
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
			return
		}
		logger.Info("Shutdown complete")
	}()

	return ctx, done
}
