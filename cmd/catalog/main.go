// Greenhouse Catalog - service registry for the greenhouse platform.
//
// This is the entry point of the catalog server. It keeps the records of
// devices, users, greenhouses and services, the broker and device catalog
// pointers, expires records that stop heartbeating and serves all of it
// over a small REST API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/nerrad567/greenhouse-catalog/migrations"

	"github.com/nerrad567/greenhouse-catalog/internal/api"
	"github.com/nerrad567/greenhouse-catalog/internal/catalog"
	"github.com/nerrad567/greenhouse-catalog/internal/infrastructure/config"
	"github.com/nerrad567/greenhouse-catalog/internal/infrastructure/database"
	"github.com/nerrad567/greenhouse-catalog/internal/infrastructure/influxdb"
	"github.com/nerrad567/greenhouse-catalog/internal/infrastructure/logging"
	"github.com/nerrad567/greenhouse-catalog/internal/infrastructure/mqtt"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

const (
	serviceName       = "catalog"
	defaultConfigPath = "configs/config.yaml"
)

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
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	log := logging.Default(serviceName)
	log.Info("starting greenhouse catalog",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, serviceName, version)
	log.Info("configuration loaded", "path", configPath, "snapshot_backend", cfg.Catalog.Snapshot.Backend)
	go log.WatchDebugSignal(ctx)

	snap, closeSnap, err := openSnapshotter(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeSnap()

	store := catalog.NewStore(snap)
	store.SetLogger(log.Component(logging.ComponentStore))
	store.SetIDBase(cfg.Catalog.IDBase)
	if restoreErr := store.Restore(ctx); restoreErr != nil {
		// The snapshot is best effort: a damaged one must not keep the catalog down.
		log.Error("restoring snapshot failed, starting empty", "error", restoreErr)
	}

	var seed *catalog.Seed
	if cfg.Catalog.SeedPath != "" {
		seed, err = catalog.LoadSeed(cfg.Catalog.SeedPath)
		if err != nil {
			return fmt.Errorf("loading seed: %w", err)
		}
		if seedErr := store.Seed(seed); seedErr != nil {
			log.Warn("seed partially applied", "path", cfg.Catalog.SeedPath, "error", seedErr)
		}
		log.Info("seed applied", "path", cfg.Catalog.SeedPath)
	}

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxLog := log.Component(logging.ComponentInflux)
		influxClient.SetOnError(func(err error) {
			influxLog.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Connect to MQTT (optional, status topic only)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		mqttClient.SetLogger(log.Component(logging.ComponentMQTT))
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled")
	}

	reaper := catalog.NewReaper(store, reaperTimeouts(cfg.Catalog.Reaper.Timeouts), config.Seconds(cfg.Catalog.Reaper.Interval))
	reaper.SetLogger(log.Component(logging.ComponentReaper))
	if influxClient != nil {
		reaper.SetRecorder(sweepRecorder{client: influxClient})
	}
	go reaper.Run(ctx)

	if seed != nil {
		go reseed(ctx, store, seed, config.Seconds(cfg.Catalog.Reaper.Interval), log)
	}

	server, err := api.New(api.Deps{
		Config:       cfg.API,
		ReadTimeout:  cfg.GetReadTimeout(),
		WriteTimeout: cfg.GetWriteTimeout(),
		IdleTimeout:  cfg.GetIdleTimeout(),
		Logger:       log.Component(logging.ComponentAPI),
		Store:        store,
		MQTT:         mqttClient,
		Version:      version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error stopping API server", "error", closeErr)
		}
	}()

	log.Info("initialisation complete, waiting for shutdown signal", "addr", server.Addr())

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	log.Info("greenhouse catalog stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses CATALOG_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("CATALOG_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// openSnapshotter builds the snapshot backend selected in the config.
// The returned func releases whatever the backend holds open.
func openSnapshotter(ctx context.Context, cfg *config.Config, log *logging.Logger) (catalog.Snapshotter, func(), error) {
	switch cfg.Catalog.Snapshot.Backend {
	case "file":
		log.Info("snapshot backend: file", "path", cfg.Catalog.Snapshot.Path)
		return catalog.NewFileSnapshotter(cfg.Catalog.Snapshot.Path), func() {}, nil

	case "sqlite":
		db, err := database.Open(ctx, database.Config{
			Path:        cfg.Database.Path,
			WALMode:     cfg.Database.WALMode,
			BusyTimeout: cfg.Database.BusyTimeout,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("opening database: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("running migrations: %w", err)
		}
		log.Info("snapshot backend: sqlite", "path", cfg.Database.Path)
		return catalog.NewSQLiteSnapshotter(db.DB), func() {
			log.Info("closing database")
			if err := db.Close(); err != nil {
				log.Error("error closing database", "error", err)
			}
		}, nil

	default:
		log.Warn("snapshot backend: none, catalog state is lost on restart")
		return nil, func() {}, nil
	}
}

// reaperTimeouts converts the configured ages (seconds) to catalog timeouts.
func reaperTimeouts(t config.ReaperTimeoutConfig) catalog.Timeouts {
	return catalog.Timeouts{
		Collections: map[catalog.Collection]time.Duration{
			catalog.Devices:     config.Seconds(t.Devices),
			catalog.Users:       config.Seconds(t.Users),
			catalog.Greenhouses: config.Seconds(t.Greenhouses),
			catalog.Services:    config.Seconds(t.Services),
		},
		Slots: map[catalog.Slot]time.Duration{
			catalog.Broker:        config.Seconds(t.Broker),
			catalog.DeviceCatalog: config.Seconds(t.DeviceCatalog),
		},
	}
}

// reseed reapplies the seed every interval so seeded entries never expire.
func reseed(ctx context.Context, store *catalog.Store, seed *catalog.Seed, interval time.Duration, log *logging.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := store.Seed(seed); err != nil {
				log.Warn("reseeding failed", "error", err)
			}
		}
	}
}

// sweepRecorder forwards reaper statistics to InfluxDB.
type sweepRecorder struct {
	client *influxdb.Client
}

// RecordSweep implements catalog.SweepRecorder.
func (r sweepRecorder) RecordSweep(result catalog.SweepResult, counts map[string]int) {
	removed := make(map[string]int, len(result.Removed))
	for c, n := range result.Removed {
		removed[string(c)] = n
	}
	r.client.WriteSweep(removed, len(result.Cleared), result.Duration, result.At)
	r.client.WriteRecordCounts(counts, result.At)
}
