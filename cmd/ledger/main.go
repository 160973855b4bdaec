package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"ledger/internal/cache"
	"ledger/internal/cli"
	"ledger/internal/core"
	apphttp "ledger/internal/http"
	"ledger/internal/ledger"
	"ledger/internal/log"
	"ledger/internal/middleware/auth"
	"ledger/internal/report"
	"ledger/internal/sheets"
	"ledger/internal/store"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Stdout).WithComponent(log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	loc, err := cfg.Location()
	if err != nil {
		logger.Error("Invalid time zone", log.FieldError, err)
		os.Exit(1)
	}
	chartScope, err := cfg.ChartScope()
	if err != nil {
		logger.Error("Invalid chart range", log.FieldError, err)
		os.Exit(1)
	}

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	be := cli.InitBackend(ctx, logger, cfg)
	defer func() {
		if be.Cleanup == nil {
			return
		}
		if err := be.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err)
		}
	}()

	dash := ledger.NewDashboard(be.Store, ledger.Options{Location: loc, Logger: logger})
	defer dash.Close()
	if err := dash.Start(ctx, chartScope); err != nil {
		logger.Error("Failed to start dashboard", log.FieldError, err)
		os.Exit(1)
	}

	pages := cache.NewListPages(cache.NewLRUCache[[]core.Transaction](200, 5*time.Minute))
	cacheManager := cache.NewManager(logger)
	cacheManager.Register(pages)
	cacheManager.StartCleanup(10 * time.Minute)
	defer cacheManager.Stop()

	var ready func(context.Context) error
	if rc, ok := be.Store.(store.ReadyChecker); ok {
		ready = rc.Ping
	}

	var tokens *auth.TokenService
	if cfg.AuthJWTSecret != "" {
		tokens = auth.NewTokenService(cfg.AuthJWTSecret, cfg.AuthTokenTTL, cfg.UserID)
	} else {
		logger.Warn("AUTH_JWT_SECRET not set, API is unauthenticated")
	}

	statement := func(ctx context.Context) ([]byte, string, error) {
		snap, err := sheets.Take(ctx, be.Store, dash.ChartRange(), time.Now())
		if err != nil {
			return nil, "", err
		}
		pdf, err := report.Build(snap, loc)
		return pdf, report.Filename(snap, loc), err
	}

	srv := apphttp.NewServer(dash, apphttp.Options{
		Addr:               ":" + cfg.Port,
		Location:           loc,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Ready:              ready,
		Pages:              pages,
		Logger:             logger,
		Auth:               tokens,
		Report:             statement,
	})
	srv.ReadTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting ledger server",
			log.FieldOperation, log.OpStartup,
			"port", cfg.Port,
			log.FieldBackend, cfg.DataBackend,
			log.FieldUserID, cfg.UserID,
			"auth_enabled", tokens != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if be.Run != nil {
		g.Go(func() error {
			if err := be.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully", log.FieldOperation, log.OpShutdown)
}
