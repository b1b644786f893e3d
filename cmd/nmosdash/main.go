// NMOS Dashboard - event bridge and notification backend
//
// This is the main entry point for the dashboard backend. It connects to the
// registry's MQTT event feed, turns flow changes into user notifications and
// relays both to browsers over a WebSocket.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/nmos-dashboard/internal/api"
	"github.com/nerrad567/nmos-dashboard/internal/dashboard"
	"github.com/nerrad567/nmos-dashboard/internal/eventbridge"
	"github.com/nerrad567/nmos-dashboard/internal/infrastructure/config"
	"github.com/nerrad567/nmos-dashboard/internal/infrastructure/database"
	"github.com/nerrad567/nmos-dashboard/internal/infrastructure/influxdb"
	"github.com/nerrad567/nmos-dashboard/internal/infrastructure/logging"
	"github.com/nerrad567/nmos-dashboard/internal/notify"
	"github.com/nerrad567/nmos-dashboard/internal/registry"
	"github.com/nerrad567/nmos-dashboard/internal/session"
	"github.com/nerrad567/nmos-dashboard/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting NMOS dashboard",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Session storage
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: time.Duration(cfg.Database.BusyTimeout) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	sessions := session.New(db)

	// Registry client
	registryClient, err := registry.New(registry.Config{
		BaseURL:          cfg.Registry.BaseURL,
		Timeout:          cfg.Registry.TimeoutDuration(),
		FailureThreshold: cfg.Registry.Breaker.FailureThreshold,
		ResetTimeout:     time.Duration(cfg.Registry.Breaker.ResetTimeout) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("creating registry client: %w", err)
	}
	registryClient.SetLogger(log.With("component", "registry"))

	notes := notify.New()
	defer notes.Close()

	influxClient, err := connectInfluxDB(ctx, cfg, log)
	if err != nil {
		return err
	}
	if influxClient != nil {
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
	}

	bridge := eventbridge.New(eventbridge.Config{
		ClientIDPrefix:    cfg.Bridge.ClientIDPrefix,
		ReconnectInterval: cfg.Bridge.ReconnectIntervalDuration(),
		ConnectTimeout:    cfg.Bridge.ConnectTimeoutDuration(),
		KeepAlive:         cfg.Bridge.KeepAliveDuration(),
		QoS:               byte(cfg.Bridge.QoS), //nolint:gosec // Validated to 0-2
		Username:          cfg.Bridge.Username,
		Tokens:            sessions,
	})
	bridge.SetLogger(log.With("component", "eventbridge"))

	// The hub is shared by the dashboard (publisher) and the API (subscribers).
	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	hub := api.NewHub(cfg.WebSocket, log)
	go hub.Run(hubCtx)

	deps := dashboard.Deps{
		Config:        dashboard.ConfigFrom(cfg),
		Bridge:        bridge,
		Notifications: notes,
		Registry:      registryClient,
		Sessions:      sessions,
		Hub:           hub,
		Logger:        log.With("component", "dashboard"),
	}
	if influxClient != nil {
		deps.Telemetry = influxClient
	}
	dash, err := dashboard.New(deps)
	if err != nil {
		return fmt.Errorf("creating dashboard: %w", err)
	}

	apiDeps := api.Deps{
		Config:        cfg.API,
		WS:            cfg.WebSocket,
		Logger:        log,
		Notifications: notes,
		Sessions:      dash,
		DB:            db,
		Hub:           hub,
		Version:       version,
	}
	if cfg.Bridge.Enabled {
		apiDeps.Bridge = dash
	}
	apiServer, err := api.New(apiDeps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := apiServer.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if err := dash.Start(ctx); err != nil {
		return fmt.Errorf("starting dashboard: %w", err)
	}
	defer func() {
		log.Info("stopping dashboard")
		if closeErr := dash.Close(); closeErr != nil {
			log.Error("error stopping dashboard", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, db, apiServer, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. Dashboard (bridge disconnect)
	// 2. API server
	// 3. WebSocket hub
	// 4. InfluxDB (if enabled)
	// 5. Database

	log.Info("NMOS dashboard stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses NMOSDASH_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("NMOSDASH_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// connectInfluxDB connects bridge telemetry when enabled. It returns a nil
// client when InfluxDB is disabled.
func connectInfluxDB(ctx context.Context, cfg *config.Config, log *logging.Logger) (*influxdb.Client, error) {
	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
	if errors.Is(err, influxdb.ErrDisabled) {
		log.Info("InfluxDB disabled")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to InfluxDB: %w", err)
	}

	log.Info("InfluxDB connected",
		"url", cfg.InfluxDB.URL,
		"org", cfg.InfluxDB.Org,
		"bucket", cfg.InfluxDB.Bucket,
	)
	client.SetOnError(func(err error) {
		log.Error("InfluxDB write error", "error", err)
	})
	return client, nil
}

// healthCheck verifies the local infrastructure is healthy. The event bridge
// is not checked: a broker outage is reported to users, not fatal.
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, apiServer *api.Server, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := apiServer.HealthCheck(ctx); err != nil {
		return fmt.Errorf("api: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
