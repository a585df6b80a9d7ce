// Greenhouse data adaptor.
//
// The adaptor registers itself in the services collection, finds the broker
// through the catalog, subscribes to every measurement topic and stores the
// readings in InfluxDB.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nerrad567/greenhouse-catalog/internal/catalog"
	"github.com/nerrad567/greenhouse-catalog/internal/infrastructure/config"
	"github.com/nerrad567/greenhouse-catalog/internal/infrastructure/influxdb"
	"github.com/nerrad567/greenhouse-catalog/internal/infrastructure/logging"
	"github.com/nerrad567/greenhouse-catalog/internal/infrastructure/mqtt"
	"github.com/nerrad567/greenhouse-catalog/internal/peer"
	"github.com/nerrad567/greenhouse-catalog/internal/registrar"
)

var version = "dev"

const (
	serviceName       = "adaptor"
	defaultConfigPath = "configs/adaptor.yaml"

	// registeredName is how device agents and dashboards look the adaptor up.
	registeredName = "influx_adaptor"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	configPath := os.Getenv("CATALOG_CONFIG")
	if configPath == "" {
		configPath = defaultConfigPath
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log := logging.New(cfg.Logging, serviceName, version)
	go log.WatchDebugSignal(ctx)

	if !cfg.InfluxDB.Enabled {
		return errors.New("influxdb must be enabled for the adaptor")
	}
	influxClient, err := influxdb.Connect(ctx, cfg.InfluxDB)
	if err != nil {
		return fmt.Errorf("connecting to InfluxDB: %w", err)
	}
	defer func() {
		if closeErr := influxClient.Close(); closeErr != nil {
			log.Error("error closing InfluxDB", "error", closeErr)
		}
	}()
	influxLog := log.Component(logging.ComponentInflux)
	influxClient.SetOnError(func(err error) {
		influxLog.Error("InfluxDB write error", "error", err)
	})

	opts := peer.Options{
		Config: cfg.Peer,
		Target: registrar.CollectionTarget(catalog.Services),
	}
	if cfg.Peer.IdentityFile == "" {
		opts.Record = serviceRecord()
	}
	opts.Logger = log

	p, err := peer.New(opts)
	if err != nil {
		return err
	}
	go p.Run(ctx)

	client, err := p.ConnectBroker(ctx, cfg.MQTT, serviceName)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	defer func() {
		if closeErr := client.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()

	fwd := forwarder{sink: influxClient}
	topic := mqtt.Topics{}.AllMeasurements()
	if err := client.Subscribe(topic, byte(cfg.MQTT.QoS), fwd.handle); err != nil {
		return fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	log.Info("adaptor forwarding measurements", "topic", topic, "bucket", cfg.InfluxDB.Bucket)

	<-ctx.Done()

	influxClient.Flush()
	log.Info("adaptor stopped")
	return nil
}

// serviceRecord is the services entry used when no identity file is configured.
func serviceRecord() catalog.Document {
	return catalog.Document{
		"name":      registeredName,
		"endpoints": []any{"MQTT"},
		"endpoints_details": []any{
			map[string]any{"endpoint": "MQTT", "topic": mqtt.Topics{}.AllMeasurements()},
		},
	}
}
