package main

import (
	"context"
	"errors"
	"os"

	"ledger/internal/cli"
	"ledger/internal/log"
	gsheet "ledger/internal/sheets/google"
	"ledger/internal/worker"

	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, logger := cli.Bootstrap(log.ComponentWorker)
	cli.MustValidate(logger, cfg.ValidateWorker())

	logger.Info("Starting ledger-worker")

	store := cli.InitStore(context.Background(), logger, cfg.DBPath)
	defer store.Close()

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, nil)

	mirror, err := gsheet.NewClient(ctx, gsheet.Config{
		SpreadsheetID:      cfg.GoogleSpreadsheetID,
		SheetName:          cfg.GoogleSheetName,
		ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		ServiceAccountFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", log.FieldError, err.Error())
		os.Exit(1)
	}
	if err := mirror.EnsureHeader(ctx); err != nil {
		logger.Error("Failed to prepare mirror sheet", log.FieldError, err.Error())
		os.Exit(1)
	}
	logger.Info("Google Sheets mirror initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleSheetName)

	amqpClient := cli.InitAMQP(logger, cfg, true)
	defer amqpClient.Close()

	mirrorWorker := worker.NewMirrorWorker(store.Transactions, mirror)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return amqpClient.ConsumeTransactionEvents(gctx, mirrorWorker.HandleEvent)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err.Error())
		os.Exit(1)
	}

	<-done
	logger.Info("Worker stopped gracefully")
}
