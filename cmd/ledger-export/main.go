package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"ledger/internal/cli"
	"ledger/internal/config"
	"ledger/internal/log"
	"ledger/internal/report"
	"ledger/internal/sheets"
	gsheet "ledger/internal/sheets/google"
	mem "ledger/internal/sheets/memory"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "print the sheet as TSV instead of uploading it")
	pdfPath := flag.String("pdf", "", "write a PDF statement to this path instead of uploading")
	timeout := flag.Duration("timeout", time.Minute, "overall export timeout")
	flag.Parse()

	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Stderr).WithComponent(log.ComponentSheets)
	cfg := cli.LoadAndValidateConfig(logger)
	if !*dryRun && *pdfPath == "" {
		if err := cfg.ValidateExport(); err != nil {
			logger.Error("Export configuration validation failed", log.FieldError, err)
			os.Exit(1)
		}
	}

	ctx, stop := cli.SignalContext(logger)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	if err := run(ctx, logger, cfg, *dryRun, *pdfPath); err != nil {
		logger.Error("Export failed", log.FieldOperation, log.OpExport, log.FieldError, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *log.Logger, cfg *config.Config, dryRun bool, pdfPath string) error {
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	scope, err := cfg.ChartScope()
	if err != nil {
		return err
	}

	be := cli.InitBackend(ctx, logger, cfg)
	if be.Cleanup != nil {
		defer func() {
			if err := be.Cleanup(); err != nil {
				logger.Warn("Backend cleanup failed", log.FieldError, err)
			}
		}()
	}

	snap, err := sheets.Take(ctx, be.Store, scope, time.Now())
	if err != nil {
		return err
	}

	if pdfPath != "" {
		pdf, err := report.Build(snap, loc)
		if err != nil {
			return err
		}
		if err := os.WriteFile(pdfPath, pdf, 0o644); err != nil {
			return fmt.Errorf("write statement: %w", err)
		}
		logger.Info("Statement written",
			"path", pdfPath,
			log.FieldRecords, len(snap.Records),
			"bytes", len(pdf))
		return nil
	}

	if dryRun {
		exp := mem.New(loc)
		if _, err := exp.Export(ctx, snap); err != nil {
			return err
		}
		return exp.WriteTSV(os.Stdout)
	}

	client, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:      cfg.GoogleSpreadsheetID,
		SheetName:          cfg.GoogleSheetName,
		ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		ServiceAccountFile: cfg.GoogleServiceAccountFile,
		Location:           loc,
	}, logger)
	if err != nil {
		return err
	}
	res, err := client.Export(ctx, snap)
	if err != nil {
		return err
	}
	logger.Info("Export complete",
		log.FieldSheetsRange, res.Range,
		log.FieldRecords, len(snap.Records),
		"rows", res.Rows)
	return nil
}
