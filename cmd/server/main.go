/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the bonus calculation server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (defaults, YAML file, environment, flags)
  2. Initialize logger, tracer and metrics
  3. Initialize SQLite store and seed it when empty
  4. Configure HTTP router
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config     YAML configuration file
  -port       HTTP server port (default: 8080)
  -db         SQLite database path (default: bonus.db)
              Use ":memory:" for in-memory database
  -seed       Roster YAML loaded when the store has no persons
  -log-level  debug, info, warn, error
  -workers    Concurrent calculations per roster (0 = unbounded)

ENVIRONMENT:
  PORT, DB_PATH, LOG_LEVEL, WORKERS, SEED_FILE, STATIC_DIR,
  SHUTDOWN_TIMEOUT, OTEL_EXPORTER_OTLP_ENDPOINT. Flags win over env.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (shutdown_timeout)
  3. Flush pending spans
  4. Close database connection

EXAMPLES:
  ./server -db=":memory:" -seed=./examples/roster.yaml
  ./server -config=./server.yaml -port=3000

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Settings and precedence
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

	"github.com/trouble2112/Bouns-tools/api"
	"github.com/trouble2112/Bouns-tools/bonus"
	"github.com/trouble2112/Bouns-tools/config"
	"github.com/trouble2112/Bouns-tools/observability"
	"github.com/trouble2112/Bouns-tools/store/sqlite"
	"go.uber.org/zap"
)

const serviceName = "bonus-server"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	// Flags
	configPath := flag.String("config", "", "YAML configuration file")
	port := flag.Int("port", 0, "HTTP server port")
	dbPath := flag.String("db", "", "SQLite database path")
	seedFile := flag.String("seed", "", "roster YAML loaded into an empty store")
	logLevel := flag.String("log-level", "", "log level")
	workers := flag.Int("workers", 0, "concurrent calculations per roster")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	flag.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "port":
			cfg.Port = *port
		case "db":
			cfg.DBPath = *dbPath
		case "seed":
			cfg.SeedFile = *seedFile
		case "log-level":
			cfg.LogLevel = *logLevel
		case "workers":
			cfg.Workers = *workers
		}
	})
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	ctx := context.Background()

	shutdownTracer, err := observability.InitTracer(ctx, cfg.OTLPEndpoint, serviceName)
	if err != nil {
		return fmt.Errorf("initializing tracer: %w", err)
	}

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer store.Close()

	if err := seed(ctx, store, cfg, logger); err != nil {
		return fmt.Errorf("seeding store: %w", err)
	}

	metrics := observability.NewMetrics()
	handler := api.NewHandler(store, logger, metrics)
	handler.Workers = cfg.Workers

	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins: cfg.CORSOrigins,
		StaticDir:      cfg.StaticDir,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.Int("port", cfg.Port),
			zap.String("db_path", cfg.DBPath),
			zap.Int("workers", cfg.Workers),
			zap.Bool("tracing", cfg.OTLPEndpoint != ""),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("shutting down server", zap.String("signal", sig.String()))
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		logger.Error("flushing spans", zap.Error(err))
	}

	logger.Info("server stopped")
	return nil
}

// seed loads cfg.SeedFile into a store without persons, and saves the
// configured parameters into a store that has never saved any. A seed
// file's parameter block wins over the config file's.
func seed(ctx context.Context, store bonus.Store, cfg *config.Config, logger *zap.Logger) error {
	persons, err := store.ListPersons(ctx)
	if err != nil {
		return err
	}

	var roster *config.Roster
	if cfg.SeedFile != "" && len(persons) == 0 {
		if roster, err = config.LoadRoster(cfg.SeedFile); err != nil {
			return err
		}
		for _, p := range roster.Persons {
			if err := bonus.ValidatePerson(p, roster.Parameters).Err(p.Name); err != nil {
				return err
			}
		}
		created, err := store.ReplacePersons(ctx, roster.Persons)
		if err != nil {
			return err
		}
		logger.Info("seeded persons", zap.String("file", cfg.SeedFile), zap.Int("persons", len(created)))
	}

	current, err := store.GetParameters(ctx)
	if err != nil {
		return err
	}
	if !current.UpdatedAt.IsZero() {
		return nil
	}

	var params *bonus.Parameters
	if cfg.Parameters != nil {
		p, err := cfg.Parameters.Apply(bonus.DefaultParameters())
		if err != nil {
			return err
		}
		params = &p
	}
	if roster != nil && roster.HasParameters {
		params = &roster.Parameters
	}
	if params == nil {
		return nil
	}

	if err := store.SaveParameters(ctx, *params); err != nil {
		return err
	}
	logger.Info("seeded parameters")
	return nil
}
