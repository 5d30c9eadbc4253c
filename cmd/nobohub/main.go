// Nobø Hub service
//
// nobohub connects to a Nobø Ecohub on the local network, keeps a live
// copy of its zones, components, week profiles and overrides, and exposes
// them over MQTT and a REST/WebSocket API. Temperatures and zone status
// can be written to InfluxDB.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	_ "github.com/openhab/openhab-addons-sub192/migrations"

	"github.com/openhab/openhab-addons-sub192/internal/api"
	"github.com/openhab/openhab-addons-sub192/internal/audit"
	"github.com/openhab/openhab-addons-sub192/internal/bridges/nobo"
	"github.com/openhab/openhab-addons-sub192/internal/infrastructure/config"
	"github.com/openhab/openhab-addons-sub192/internal/infrastructure/database"
	"github.com/openhab/openhab-addons-sub192/internal/infrastructure/influxdb"
	"github.com/openhab/openhab-addons-sub192/internal/infrastructure/logging"
	"github.com/openhab/openhab-addons-sub192/internal/infrastructure/mqtt"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// configEnv names the variable that overrides defaultConfigPath.
const configEnv = config.EnvPrefix + "CONFIG"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error { //nolint:gocognit,funlen // linear startup sequence
	log := logging.Default()
	log.Info("starting nobohub",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "path", configPath, "level", cfg.Logging.Level)

	location, err := cfg.Location()
	if err != nil {
		return fmt.Errorf("loading time zone: %w", err)
	}

	// Database holds the entity snapshot restored on startup.
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
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
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	schema, err := db.SchemaStatus(ctx)
	if err != nil {
		return fmt.Errorf("reading schema status: %w", err)
	}
	log.Info("database ready", "path", cfg.Database.Path, "schema_version", schema.Version)

	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log.Component("mqtt"))
	mqttClient.SetOnConnect(func() { log.Info("MQTT reconnected") })
	mqttClient.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	hubConn, serial, err := connectHub(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing hub connection")
		if closeErr := hubConn.Close(); closeErr != nil {
			log.Error("error closing hub connection", "error", closeErr)
		}
	}()

	opts := nobo.BridgeOptions{
		Config: nobo.BridgeConfig{
			Version:        version,
			CommandTimeout: cfg.GetCommandTimeout(),
		},
		MQTTClient: mqtt.BridgeClient{Client: mqttClient},
		Hub:        hubConn,
		Store:      nobo.NewSQLiteStore(db.DB),
		Logger:     log.Component("nobo"),
	}

	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		opts.Telemetry = nobo.NewInfluxTelemetry(influxClient, serial.String())
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	bridge, err := nobo.NewBridge(opts)
	if err != nil {
		return fmt.Errorf("creating bridge: %w", err)
	}
	if err := bridge.Start(ctx); err != nil {
		return fmt.Errorf("starting bridge: %w", err)
	}
	defer func() {
		log.Info("stopping bridge")
		bridge.Stop()
	}()

	scheduler, err := nobo.NewScheduler(nobo.SchedulerConfig{
		Spec:     cfg.Schedule.Spec,
		Location: location,
	}, bridge, log.Component("scheduler"))
	if err != nil {
		return fmt.Errorf("creating scheduler: %w", err)
	}

	var apiServer *api.Server
	if cfg.API.Enabled {
		apiServer, err = api.New(api.Deps{
			Config:   cfg.API,
			Logger:   log.Component("api"),
			Bridge:   bridge,
			MQTT:     mqttClient,
			DB:       db,
			Commands: audit.NewSQLiteRepository(db.DB),
			Version:  version,
			Location: location,
		})
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
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal", "hub", serial.String())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return scheduler.Run(gctx) })
	if err := g.Wait(); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// connectHub resolves the hub address and serial, by UDP discovery when
// enabled, and opens the hub connection.
func connectHub(ctx context.Context, cfg *config.Config, log *logging.Logger) (*nobo.Client, nobo.SerialNumber, error) {
	address := cfg.Hub.Address
	prefix := ""

	if cfg.Hub.Discovery {
		want := ""
		if s := nobo.SerialNumber(cfg.Hub.Serial); s.IsWellFormed() {
			want = cfg.Hub.Serial[:9]
		}
		discoverCtx, cancel := context.WithTimeout(ctx, cfg.GetDiscoveryTimeout())
		found, err := nobo.Discover(discoverCtx, "", want)
		cancel()
		if err != nil {
			return nil, "", fmt.Errorf("discovering hub: %w", err)
		}
		log.Info("hub discovered", "address", found.Address, "serial_prefix", found.SerialPrefix)
		prefix = found.SerialPrefix
		if address == "" {
			address = found.Address
		}
	}

	serial, err := nobo.ResolveSerial(prefix, cfg.Hub.Serial)
	if err != nil {
		return nil, "", fmt.Errorf("resolving hub serial: %w", err)
	}

	client, err := nobo.Connect(ctx, nobo.ClientConfig{
		Address:           address,
		Serial:            serial,
		ConnectTimeout:    cfg.GetConnectTimeout(),
		KeepAliveInterval: cfg.GetKeepAliveInterval(),
		ReconnectInterval: cfg.GetReconnectInterval(),
	})
	if err != nil {
		return nil, "", fmt.Errorf("connecting to hub %s: %w", address, err)
	}
	client.SetLogger(log.Component("hub"))
	log.Info("hub connected", "address", address, "serial", serial.String())
	return client, serial, nil
}

// getConfigPath returns the configuration file path.
// Uses NOBOHUB_CONFIG if set, otherwise the default.
func getConfigPath() string {
	if path := os.Getenv(configEnv); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}
