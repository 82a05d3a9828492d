// HomeWatt - Household Power Monitoring and Control
//
// This is the main entry point for the HomeWatt controller. It ties
// the room topology, the Modbus fieldbus, the cloud MQTT namespace and
// the HTTP/WebSocket API around the state reconciliation engine.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nvqhuy/homewatt/internal/adapter"
	"github.com/nvqhuy/homewatt/internal/adapter/cloudsync"
	"github.com/nvqhuy/homewatt/internal/adapter/fieldbus"
	"github.com/nvqhuy/homewatt/internal/api"
	"github.com/nvqhuy/homewatt/internal/engine"
	"github.com/nvqhuy/homewatt/internal/infrastructure/config"
	"github.com/nvqhuy/homewatt/internal/infrastructure/database"
	"github.com/nvqhuy/homewatt/internal/infrastructure/influxdb"
	"github.com/nvqhuy/homewatt/internal/infrastructure/logging"
	"github.com/nvqhuy/homewatt/internal/infrastructure/mqtt"
	"github.com/nvqhuy/homewatt/internal/settings"
	"github.com/nvqhuy/homewatt/internal/topology"
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

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for
// testability. Returning an error allows main to handle exit codes
// consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting HomeWatt",
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

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)

	// Load the room/device topology
	reg, err := topology.Load(cfg.Topology.Path)
	if err != nil {
		return fmt.Errorf("loading topology: %w", err)
	}
	log.Info("topology loaded",
		"path", cfg.Topology.Path,
		"rooms", len(reg.Rooms()),
		"devices", reg.DeviceCount(),
	)

	// Open the settings database
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
	log.Info("database connected", "path", cfg.Database.Path)

	store, err := settings.NewStore(ctx, db)
	if err != nil {
		return fmt.Errorf("initialising settings store: %w", err)
	}
	loaded, err := store.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}

	// Connect the fieldbus, degrading to the simulator when the
	// gateway is unreachable so the rest of the system still runs.
	fb := connectFieldbus(ctx, cfg, reg, log)
	defer func() {
		if closeErr := fb.Close(); closeErr != nil {
			log.Error("error closing fieldbus", "error", closeErr)
		}
	}()

	// Build the engine
	eng := engine.New(reg, fb, engine.Options{
		PollInterval:   cfg.PollInterval(),
		ReportInterval: cfg.ReportInterval(),
		CommandRetries: cfg.Engine.CommandRetries,
		Logger:         log.Logger,
	})
	eng.SetSettingsStore(store)
	if err := eng.ApplySettings(loaded); err != nil {
		return fmt.Errorf("applying persisted settings: %w", err)
	}
	log.Info("settings applied",
		"warning_watts", loaded.Thresholds.WarningWatts,
		"critical_watts", loaded.Thresholds.CriticalWatts,
		"vat", loaded.VAT,
	)

	// Connect the cloud broker (optional)
	var mqttClient *mqtt.Client
	if cfg.Cloud.Enabled {
		mqttClient, err = mqtt.Connect(cfg.Cloud)
		if err != nil {
			return fmt.Errorf("connecting to cloud broker: %w", err)
		}
		defer func() {
			log.Info("disconnecting from cloud broker")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing cloud broker", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() {
			log.Info("cloud broker reconnected")
		})
		log.Info("cloud broker connected",
			"broker", fmt.Sprintf("%s:%d", cfg.Cloud.Broker.Host, cfg.Cloud.Broker.Port),
			"client_id", cfg.Cloud.Broker.ClientID,
		)

		cloud := cloudsync.New(mqttClient, reg, byte(cfg.Cloud.QoS), log.Logger)
		eng.SetStreamer(cloud)
		eng.SetCloudReporter(cloud)
	} else {
		log.Info("cloud sync disabled")
	}

	// Connect InfluxDB (optional)
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
		eng.SetRecorder(influxClient)
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Start the reconcile loops
	engineCtx, engineCancel := context.WithCancel(ctx)
	defer engineCancel()
	engineDone := make(chan struct{})
	go func() {
		eng.Run(engineCtx)
		close(engineDone)
	}()

	// Start the API server
	server, err := api.New(api.Deps{
		Config: cfg.API,
		Timeouts: struct {
			Read  time.Duration
			Write time.Duration
			Idle  time.Duration
		}{cfg.GetReadTimeout(), cfg.GetWriteTimeout(), cfg.GetIdleTimeout()},
		Logger:   log,
		Engine:   eng,
		Registry: reg,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	server.Start(ctx)
	defer func() {
		log.Info("stopping API server")
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	engineCancel()
	<-engineDone

	log.Info("HomeWatt stopped")
	return nil
}

// connectFieldbus dials the Modbus gateway, falling back to the
// in-memory simulator when disabled or unreachable.
func connectFieldbus(ctx context.Context, cfg *config.Config, reg *topology.Registry, log *logging.Logger) adapter.Backend {
	if !cfg.Fieldbus.Enabled {
		log.Info("fieldbus disabled, using simulator")
		return connectedSimulator(ctx, reg)
	}

	client := fieldbus.New(fieldbus.Config{
		Host:               cfg.Fieldbus.Host,
		Port:               cfg.Fieldbus.Port,
		TransactionTimeout: cfg.TransactionTimeout(),
		Logger:             log.Logger,
	}, reg.Refs())

	if err := client.Connect(ctx); err != nil {
		log.Warn("fieldbus unreachable, degrading to simulator",
			"host", cfg.Fieldbus.Host,
			"port", cfg.Fieldbus.Port,
			"error", err,
		)
		client.Close()
		return connectedSimulator(ctx, reg)
	}
	return client
}

func connectedSimulator(ctx context.Context, reg *topology.Registry) adapter.Backend {
	sim := adapter.NewSimulator(reg.Refs())
	// Connect on the simulator never fails.
	_ = sim.Connect(ctx)
	return sim
}

// getConfigPath returns the configuration file path.
// Uses the HOMEWATT_CONFIG environment variable if set.
func getConfigPath() string {
	if path := os.Getenv("HOMEWATT_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies infrastructure connections are healthy.
// Clients that are disabled (nil) are skipped.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}
