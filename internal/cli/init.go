// Package cli provides common CLI initialization utilities shared by
// cmd/ledger, cmd/ledger-worker and cmd/ledgerctl.
package cli

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ledger/internal/amqp"
	"ledger/internal/config"
	"ledger/internal/log"
	"ledger/internal/storage"

	"github.com/joho/godotenv"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds a text logger at level (falling back to info) tagged
// with component, and installs it as the slog default.
func SetupLogger(w io.Writer, level, component string) *log.Logger {
	lvl, err := log.ParseLevel(level)
	logger := log.New(log.Config{Level: lvl, Component: component, Output: w})
	log.SetDefault(logger)

	if err != nil {
		logger.Warn("Invalid LOG_LEVEL, using info", log.FieldError, err.Error())
	}
	return logger
}

// Bootstrap loads .env and the configuration, then sets up logging from it.
// Validation is left to the caller since each binary needs different parts.
func Bootstrap(component string) (*config.Config, *log.Logger) {
	LoadEnvFile()
	cfg := config.Load()
	logger := SetupLogger(os.Stdout, cfg.LogLevel, component)
	return cfg, logger
}

// MustValidate exits the process when err is non-nil.
func MustValidate(logger *log.Logger, err error) {
	if err != nil {
		logger.Error("Configuration validation failed",
			log.FieldError, err.Error(),
			log.FieldErrorType, log.ErrorTypeConfiguration,
			log.FieldOperation, log.OpValidate)
		os.Exit(1)
	}
}

// InitStore brings the schema up to date and opens the ledger database.
// Exits the process on failure.
func InitStore(ctx context.Context, logger *log.Logger, dbPath string) *storage.SQLiteStore {
	store, err := storage.NewSQLiteStore(ctx, dbPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite store",
			log.FieldError, err.Error(),
			log.FieldErrorType, log.ErrorTypeDatabase,
			log.FieldOperation, log.OpStartup,
			"path", dbPath)
		os.Exit(1)
	}
	return store
}

// InitAMQP connects the event client when AMQP_URL is set. A nil client
// means events are disabled; a connection failure is fatal only when
// required is true.
func InitAMQP(logger *log.Logger, cfg *config.Config, required bool) *amqp.Client {
	if !cfg.EventsEnabled() {
		logger.Info("AMQP disabled - no AMQP_URL provided")
		return nil
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		if required {
			logger.Error("Failed to initialize AMQP client",
				log.FieldError, err.Error(),
				log.FieldErrorType, log.ErrorTypeNetwork,
				log.FieldOperation, log.OpStartup)
			os.Exit(1)
		}
		logger.Warn("AMQP unavailable, continuing without events",
			log.FieldError, err.Error(),
			log.FieldErrorType, log.ErrorTypeNetwork)
		return nil
	}

	logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	return client
}

// GracefulShutdown returns a context that is cancelled on SIGINT or
// SIGTERM. cleanup then runs with a context bounded by timeout, and done is
// closed once it returns.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	logger.Info("Process started", log.FieldOperation, log.OpStartup)

	go func() {
		defer close(done)

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", log.FieldOperation, log.OpShutdown, "signal", sig.String())
		case <-ctx.Done():
		}
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached",
				log.FieldOperation, log.OpShutdown,
				log.FieldErrorType, log.ErrorTypeTimeout)
		} else {
			logger.Info("Shutdown complete", log.FieldOperation, log.OpShutdown)
		}
	}()

	return ctx, done
}
