package main

import (
	"context"
	"errors"
	"net/http"
	"os"

	"ledger/internal/cli"
	apphttp "ledger/internal/http"
	"ledger/internal/log"
	"ledger/internal/services"
)

func main() {
	cfg, logger := cli.Bootstrap(log.ComponentApp)
	cli.MustValidate(logger, cfg.Validate())

	store := cli.InitStore(context.Background(), logger, cfg.DBPath)
	defer store.Close()

	var events services.EventPublisher
	if client := cli.InitAMQP(logger, cfg, false); client != nil {
		defer client.Close()
		events = client
	}

	ledger := services.NewLedgerService(store.Accounts, store.Transactions, events)

	srv, err := apphttp.NewServer(":"+cfg.Port, ledger, store, apphttp.Options{
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})
	if err != nil {
		logger.Error("Failed to build HTTP server", log.FieldError, err.Error())
		os.Exit(1)
	}

	_, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err.Error())
		}
	})

	logger.Info("Starting ledger server", "port", cfg.Port, "db_path", cfg.DBPath, "events", cfg.EventsEnabled())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err.Error(), "port", cfg.Port)
		os.Exit(1)
	}

	<-done
	logger.Info("Server stopped gracefully")
}
