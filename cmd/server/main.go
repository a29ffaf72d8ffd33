// Command gamedepot-server starts the distribution core HTTP server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/emedina/gamedepot/internal/config"
	"github.com/emedina/gamedepot/internal/gamedir"
	"github.com/emedina/gamedepot/internal/migrate"
	"github.com/emedina/gamedepot/internal/repository"
	"github.com/emedina/gamedepot/internal/repository/memory"
	"github.com/emedina/gamedepot/internal/repository/postgres"
	"github.com/emedina/gamedepot/internal/server/httpapi"
	"github.com/emedina/gamedepot/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main loads configuration, wires stores and services, and runs the HTTP
// server with graceful shutdown.
func main() {
	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.Addr),
	)

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Stores: Postgres when a DSN is configured, in-memory otherwise.
	// Download status is session state and always lives in memory.
	var (
		purchaseRepo    repository.PurchaseRepository
		entitlementRepo repository.EntitlementRepository
	)
	if cfg.DatabaseDSN != "" {
		if err := migrate.Up(ctx, cfg.DatabaseDSN); err != nil {
			logger.Fatal("migrate up", zap.Error(err))
		}
		db, err := postgres.New(ctx, cfg.DatabaseDSN)
		if err != nil {
			logger.Fatal("postgres", zap.Error(err))
		}
		defer db.Close()
		purchaseRepo = postgres.NewPurchaseRepo(db)
		entitlementRepo = postgres.NewEntitlementRepo(db)
	} else {
		purchaseRepo = memory.NewPurchaseRepo()
		entitlementRepo = memory.NewEntitlementRepo()
	}
	statusRepo := memory.NewStatusRepo()

	// Collaborators and services
	dir := gamedir.NewStatic(gamedir.SeedCatalog())
	cdn := service.NewCDN(service.SeedServers(), cfg.FallbackRegion)
	catalog := service.NewCatalog(dir, "https://cdn.gameplatform.com")
	ledger := service.NewLedger(purchaseRepo, entitlementRepo, dir, cfg.MaxDownloads)

	policy := service.RandomPolicy(cfg.SettlementSuccessRate, time.Now().UnixNano())
	processor := service.NewProcessor(ledger, policy, cfg.SettlementDelay, logger)
	defer processor.Close()

	issuer := service.NewIssuer(ledger, catalog, cdn, dir, statusRepo, []byte(cfg.JWTKey), cfg.TokenTTL, cfg.MaxDownloads)
	tracker := service.NewTracker(ledger, catalog, statusRepo)

	app := httpapi.New(ledger, processor, issuer, tracker, cdn, logger)
	srv := &http.Server{Addr: cfg.Addr, Handler: app.Handler()}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			_ = srv.Close()
		}
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}

	logger.Info("shutdown complete")
}
