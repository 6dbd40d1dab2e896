// Package main runs the distributor service:
// - Signed HTTP API for TGE, Merkle roots and claims
// - Websocket claim feed and Prometheus metrics
// - Scheduled vesting snapshots
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"y8u-distributor/internal/api"
	"y8u-distributor/internal/config"
	"y8u-distributor/internal/distributor"
	"y8u-distributor/internal/feed"
	"y8u-distributor/internal/scheduler"
	"y8u-distributor/internal/storage"
	chstore "y8u-distributor/internal/storage/clickhouse"
	"y8u-distributor/internal/storage/memory"
	"y8u-distributor/internal/storage/migrations"
	pgstore "y8u-distributor/internal/storage/postgres"
	sqlitestore "y8u-distributor/internal/storage/sqlite"
	"y8u-distributor/internal/token"
	"y8u-distributor/internal/verification"
	"y8u-distributor/internal/vesting"
)

// allStores holds the storage implementations selected by config.
type allStores struct {
	state     storage.StateStore
	ledger    storage.LedgerStore
	events    storage.ClaimEventStore
	snapshots storage.SnapshotStore
}

func main() {
	configPath := flag.String("config", os.Getenv("DISTRIBUTOR_CONFIG"), "YAML config file")
	envFile := flag.String("env-file", ".env", "dotenv file loaded before the environment is read")
	listen := flag.String("listen", "", "HTTP listen address (overrides config)")
	backend := flag.String("backend", "", "Storage backend: memory, postgres or sqlite (overrides config)")
	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[distributord] ", log.LstdFlags|log.Lshortfile)

	if err := config.LoadDotEnv(*envFile); err != nil {
		logger.Fatalf("Failed to load env file: %v", err)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *backend != "" {
		cfg.Storage.Backend = *backend
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("Invalid config: %v", err)
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, cleanup, err := createStores(ctx, cfg)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()
	logger.Printf("Storage backend: %s (clickhouse history: %t)", cfg.Storage.Backend, cfg.Storage.ClickHouseDSN != "")

	var hub *feed.Hub
	var publisher distributor.Publisher
	if cfg.Feed.Enabled {
		hubCfg := feed.DefaultHubConfig()
		hubCfg.Buffer = cfg.Feed.Buffer
		if cfg.Feed.PingInterval > 0 {
			hubCfg.PingInterval = cfg.Feed.PingInterval
		}
		hub = feed.NewHub(&hubCfg, log.New(os.Stdout, "[feed] ", log.LstdFlags))
		defer hub.Close()
		publisher = hub
	}

	table := vesting.DefaultTable()
	dist, err := distributor.New(distributor.Options{
		Owner:     cfg.OwnerAddress(),
		Table:     table,
		State:     stores.state,
		Ledger:    stores.ledger,
		Events:    stores.events,
		Minter:    token.NewLedger(table.MaxSupply()),
		Publisher: publisher,
		Logger:    log.New(os.Stdout, "[distributor] ", log.LstdFlags|log.Lshortfile),
	})
	if err != nil {
		logger.Fatalf("Failed to create distributor: %v", err)
	}
	if err := dist.Load(ctx); err != nil {
		logger.Fatalf("Failed to restore state: %v", err)
	}
	logger.Printf("Owner: %s", dist.Owner().Hex())

	auditor, err := verification.NewAuditor(verification.AuditorOptions{
		Table:  table,
		Ledger: stores.ledger,
		Events: stores.events,
	})
	if err != nil {
		logger.Fatalf("Failed to create auditor: %v", err)
	}
	report, err := auditor.VerifyAll(ctx)
	switch {
	case err != nil:
		logger.Printf("Startup audit failed: %v", err)
	case report.DivergentPools > 0:
		logger.Printf("WARNING: %d pools diverge from claim history, see GET /v1/audit", report.DivergentPools)
	}

	if cfg.Snapshot.Enabled {
		sched := scheduler.New(ctx, dist, stores.snapshots, log.New(os.Stdout, "[scheduler] ", log.LstdFlags))
		if err := sched.Register(cfg.Snapshot.Cron); err != nil {
			logger.Fatalf("Failed to schedule snapshots: %v", err)
		}
		if err := sched.RunNow(); err != nil {
			logger.Printf("Initial snapshot failed: %v", err)
		}
		sched.Start()
		defer sched.Stop()
	}

	srv := api.NewServer(api.Options{
		Distributor: dist,
		Feed:        hub,
		Auditor:     auditor,
		MaxSkew:     cfg.Auth.MaxSkew,
		Logger:      log.New(os.Stdout, "[api] ", log.LstdFlags),
	})
	httpServer := &http.Server{
		Addr:              cfg.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("HTTP server listening on %s", cfg.Listen)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
	case err := <-errCh:
		logger.Printf("HTTP server error: %v", err)
	}

	// Second signal forces exit
	go func() {
		sig := <-sigCh
		logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
		os.Exit(1)
	}()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Printf("HTTP shutdown: %v", err)
	}
	cancel()

	logger.Println("Shutdown complete")
}

// createStores creates the configured stores and applies migrations.
// Claim history and snapshots move to ClickHouse when a DSN is set.
func createStores(ctx context.Context, cfg *config.Config) (*allStores, func(), error) {
	stores := &allStores{snapshots: memory.NewSnapshotStore()}
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	switch cfg.Storage.Backend {
	case config.BackendMemory:
		stores.state = memory.NewStateStore()
		stores.ledger = memory.NewLedgerStore()
		stores.events = memory.NewClaimEventStore()

	case config.BackendPostgres:
		pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		closers = append(closers, pool.Close)
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("postgres migrations: %w", err)
		}
		stores.state = pgstore.NewStateStore(pool)
		stores.ledger = pgstore.NewLedgerStore(pool)
		stores.events = pgstore.NewClaimEventStore(pool)

	case config.BackendSQLite:
		db, err := sqlitestore.Open(ctx, cfg.Storage.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, func() { db.Close() })
		if err := migrations.RunSQLiteMigrations(ctx, db); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("sqlite migrations: %w", err)
		}
		stores.state = sqlitestore.NewStateStore(db)
		stores.ledger = sqlitestore.NewLedgerStore(db)
		stores.events = sqlitestore.NewClaimEventStore(db)

	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	if cfg.Storage.ClickHouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.Storage.ClickHouseDSN)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
		}
		closers = append(closers, func() { conn.Close() })
		stores.events = chstore.NewClaimEventStore(conn)
		stores.snapshots = chstore.NewSnapshotStore(conn)
	}

	return stores, cleanup, nil
}
