/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the market ledger server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env + environment)
  2. Initialize SQLite store
  3. Wire recorder, aggregation engine, chain reader, reconciliation
  4. Configure HTTP router and background sweep
  5. Start server with graceful shutdown

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the reconciliation sweep
  4. Close database connection
  5. Exit

ENVIRONMENT:
  See config/config.go for the full key list. Without CHAIN_RPC_URL and
  CONTRACT_ADDRESS the server runs with the chain reader disabled and
  reconciliation reports ledger-only figures.

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/prism/market-ledger/api"
	"github.com/prism/market-ledger/catalog"
	"github.com/prism/market-ledger/chain"
	"github.com/prism/market-ledger/config"
	"github.com/prism/market-ledger/ledger"
	"github.com/prism/market-ledger/reconcile"
	"github.com/prism/market-ledger/stats"
	"github.com/prism/market-ledger/store/sqlite"
)

func main() {
	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("configuration invalid")
	}

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("db_path", cfg.DBPath).Msg("database initialization failed")
	}
	defer store.Close()

	// The catalog service is external; the in-memory directory stands in
	// until its client lands. TODO: replace with the HTTP catalog client
	// once the catalog team publishes its API.
	dir := catalog.NewMemory()

	network := ledger.Network(cfg.DefaultNetwork)
	if !network.Supported() {
		log.Fatal().Str("network", cfg.DefaultNetwork).Msg("unsupported default network")
	}

	recorder := ledger.NewRecorder(store, dir, cfg.FeePercentage(), network, log)

	engine := stats.New(store, dir,
		stats.WithRecentWindow(time.Duration(cfg.RecentWindowDays)*24*time.Hour),
		stats.WithCacheTTL(cfg.StatsCacheTTL),
	)

	var reader chain.Reader = chain.Disabled{}
	if cfg.ChainEnabled() {
		reader = chain.NewRPCReader(cfg.ChainRPCURL, cfg.ContractAddress, log)
	} else {
		log.Warn().Msg("no chain endpoint configured, reconciliation will report ledger-only figures")
	}

	reconciler := reconcile.New(engine, reader, log,
		reconcile.WithBlockWindow(cfg.ReconcileBlockWindow),
	)

	handler := api.NewHandler(recorder, engine, reconciler, store, log)
	router := api.NewRouter(handler, cfg.RateLimitRPS)

	sweep, err := api.NewScheduler(reconciler, cfg.ReconcileSchedule, log)
	if err != nil {
		log.Fatal().Err(err).Str("schedule", cfg.ReconcileSchedule).Msg("invalid reconciliation schedule")
	}
	sweep.Start()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Int("port", cfg.Port).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
	sweep.Stop()

	log.Info().Msg("server stopped")
}
