package main

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urfave/cli/v2"

	"github.com/cubixnet/comp/internal/api"
	"github.com/cubixnet/comp/internal/config"
	"github.com/cubixnet/comp/internal/database"
	"github.com/cubixnet/comp/internal/domain"
	"github.com/cubixnet/comp/internal/engine"
	"github.com/cubixnet/comp/internal/export"
	"github.com/cubixnet/comp/internal/network"
	"github.com/cubixnet/comp/internal/notify"
	"github.com/cubixnet/comp/internal/reconcile"
	"github.com/cubixnet/comp/internal/store"
	"github.com/cubixnet/comp/internal/tree"
	"github.com/cubixnet/comp/internal/wallet"
	"github.com/cubixnet/comp/internal/worker"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

func main() {
	app := &cli.App{
		Name:  "comp",
		Usage: "binary compensation engine",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the API server and the reconciliation worker",
				Action: runServe,
			},
			{
				Name:   "reconcile",
				Usage:  "run a single reconciliation pass and exit",
				Action: runReconcile,
			},
			{
				Name:   "seed",
				Usage:  "seed the default rank and pack catalogs",
				Action: runSeed,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// connect opens the pool and applies migrations.
func connect(ctx context.Context, cfg config.Config) (*pgxpool.Pool, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	pool, err := database.Connect(ctx, cfg.DatabaseURL, int32(cfg.DatabaseMaxConns))
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	migrationsSub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating migrations sub-fs: %w", err)
	}
	if err := database.RunMigrations(ctx, pool, migrationsSub); err != nil {
		pool.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return pool, nil
}

func newReconcileService(pool *pgxpool.Pool) *reconcile.Service {
	return reconcile.NewService(store.NewPgAccountStore(pool), store.NewPgLedgerStore(pool))
}

func runServe(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()

	pool, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	accounts := store.NewPgAccountStore(pool)
	ledger := store.NewPgLedgerStore(pool)
	purchases := store.NewPgPurchaseStore(pool)
	catalog := store.NewPgCatalogStore(pool)

	treeSvc := tree.NewService(accounts)
	walletClient := wallet.NewHTTPClient(cfg.WalletURL, cfg.WalletRetryMax, cfg.WalletRetryBaseDelay)

	var notifier notify.Notifier = notify.LogNotifier{}
	if cfg.NotifyURL != "" {
		notifier = notify.NewHTTPRelay(cfg.NotifyURL)
	}
	enroller := network.NewService(accounts, catalog, notifier)

	eng := engine.NewService(accounts, purchases, catalog, walletClient, treeSvc, engine.Options{
		RankAdvancement: cfg.RankAdvancementEnabled,
		RetryMax:        cfg.StoreRetryMax,
		RetryBaseDelay:  cfg.StoreRetryBaseDelay,
	})

	// Payout monitoring export is optional.
	var hook worker.AfterRunHook
	if cfg.SheetsSpreadsheetID != "" && cfg.SheetsCredentialsJSON != "" {
		exporter, err := export.NewSheetsExporter(ctx, cfg.SheetsSpreadsheetID, cfg.SheetsCredentialsJSON)
		if err != nil {
			return fmt.Errorf("creating sheets exporter: %w", err)
		}
		hook = exporter
	}

	reconcileWorker := worker.NewReconcileWorker(newReconcileService(pool), cfg.ReconcileInterval, hook)
	go reconcileWorker.Run(ctx)

	if cfg.AdminAPIKey == "" {
		slog.Warn("ADMIN_API_KEY not set, admin endpoints are unprotected")
	}

	handler := api.NewHandler(accounts, eng, enroller, treeSvc, ledger, purchases, catalog, reconcileWorker)
	srv := api.NewServer(cfg.HTTPPort, handler, cfg.AdminAPIKey)

	go func() {
		log.Printf("HTTP server listening on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("HTTP server error: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	log.Println("Shutdown complete")
	return nil
}

func runReconcile(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()

	pool, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	summary, err := newReconcileService(pool).Run(ctx)
	if err != nil {
		return fmt.Errorf("reconciliation failed: %w", err)
	}
	log.Printf("Reconciliation complete: %d released (%s), %s capped, %d still held, %d failed",
		summary.Released, summary.ReleasedAmount, summary.CappedAmount, summary.StillHeld, summary.Failed)
	return nil
}

func runSeed(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()

	pool, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	catalog := store.NewPgCatalogStore(pool)
	if err := catalog.SeedRanks(ctx, domain.DefaultRanks()); err != nil {
		return fmt.Errorf("seeding ranks: %w", err)
	}
	if err := catalog.SeedPacks(ctx, domain.DefaultPacks()); err != nil {
		return fmt.Errorf("seeding packs: %w", err)
	}
	log.Println("Seeded default ranks and packs")
	return nil
}
