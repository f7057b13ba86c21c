/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the wage engine HTTP server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load config (YAML file, .env, WAGE_* environment)
  2. Build the zerolog logger
  3. Open the SQLite store
  4. Connect the Redis report cache (optional)
  5. Register Prometheus metrics (optional)
  6. Wire engine -> service -> handler -> router
  7. Start the report warmer (optional)
  8. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  Path to YAML config (default: none, env and defaults only)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the report warmer
  2. Stop accepting new connections
  3. Wait for active requests to complete (server.shutdown_seconds)
  4. Close Redis and database connections

EXAMPLES:
  # Defaults: port 8080, data/wage.db, no Redis
  ./server

  # In-memory database on a different port
  WAGE_DB_PATH=":memory:" WAGE_PORT=3000 ./server

  # Full config
  ./server -config=config.yaml

SEE ALSO:
  - config/config.go: Configuration
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/warp/wage-engine/api"
	"github.com/warp/wage-engine/config"
	"github.com/warp/wage-engine/metrics"
	"github.com/warp/wage-engine/reportcache"
	"github.com/warp/wage-engine/store/sqlite"
	"github.com/warp/wage-engine/wage"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := cfg.NewLogger(os.Stdout)

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server exited")
	}
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	// Initialize store
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer store.Close()
	logger.Info().Str("path", cfg.Database.Path).Msg("database ready")

	// Report cache
	var reports wage.ReportCache
	if cfg.Redis.Address != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		pingErr := client.Ping(ctx).Err()
		cancel()
		if pingErr != nil {
			logger.Warn().Err(pingErr).Str("addr", cfg.Redis.Address).Msg("redis unreachable, report cache disabled")
		} else {
			reports = reportcache.New(client, cfg.ReportTTL())
			logger.Info().Str("addr", cfg.Redis.Address).Dur("ttl", cfg.ReportTTL()).Msg("report cache enabled")
		}
	}

	// Metrics
	var m *metrics.Metrics
	var gatherer prometheus.Gatherer
	if cfg.Monitoring.PrometheusEnabled {
		m = metrics.New(cfg.Monitoring.Namespace, prometheus.DefaultRegisterer)
		gatherer = prometheus.DefaultGatherer
	}

	// Engine and service
	var cacheObserver wage.CacheObserver
	var reportObserver wage.ReportObserver
	var requestObserver api.RequestObserver
	var warmerObserver api.WarmerObserver
	if m != nil {
		cacheObserver, reportObserver, requestObserver, warmerObserver = m, m, m, m
	}
	engine := wage.NewEngine(logger, cacheObserver)
	svc := wage.NewService(store, engine, reports, reportObserver, logger)

	// HTTP
	handler := api.NewHandler(svc, store, logger)
	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Metrics:        requestObserver,
		Gatherer:       gatherer,
	})

	warmer := api.NewReportWarmer(svc, store, warmerObserver, logger)
	warmer.Enabled = cfg.Warmer.Enabled
	warmer.Interval = cfg.WarmerInterval()
	warmer.Start()
	defer warmer.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Int("port", cfg.Server.Port).Msg("wage engine listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case sig := <-quit:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	warmer.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}
