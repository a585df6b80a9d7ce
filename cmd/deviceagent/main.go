// Greenhouse device agent.
//
// The agent stands in for a sensor board: it registers its devices record
// with the catalog, keeps it alive with heartbeats, looks up the broker
// through the catalog and publishes readings for each of its resources.
package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/nerrad567/greenhouse-catalog/internal/catalog"
	"github.com/nerrad567/greenhouse-catalog/internal/infrastructure/config"
	"github.com/nerrad567/greenhouse-catalog/internal/infrastructure/logging"
	"github.com/nerrad567/greenhouse-catalog/internal/peer"
	"github.com/nerrad567/greenhouse-catalog/internal/registrar"
)

var version = "dev"

const (
	serviceName       = "deviceagent"
	defaultConfigPath = "configs/deviceagent.yaml"
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

	if cfg.Peer.IdentityFile == "" {
		return errors.New("peer.identity_file is required for a device agent")
	}
	record, err := registrar.LoadIdentity(cfg.Peer.IdentityFile)
	if err != nil {
		return err
	}
	greenhouse := fmt.Sprint(record["greenhouse"])
	sensors := sensorsFor(record["resources"])
	if len(sensors) == 0 {
		return errors.New("identity has no resources to publish")
	}

	p, err := peer.New(peer.Options{
		Config: cfg.Peer,
		Target: registrar.CollectionTarget(catalog.Devices),
		Record: record,
		Logger: log,
	})
	if err != nil {
		return err
	}
	log.Info("device agent starting",
		"catalog", p.Client.BaseURL(),
		"greenhouse", greenhouse,
		"sensors", len(sensors),
	)

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

	rng := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), uint64(os.Getpid())))
	ticker := time.NewTicker(config.Seconds(cfg.Peer.PublishInterval))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("device agent stopped")
			return nil
		case now := <-ticker.C:
			id, ok := p.Registrar.ID()
			if !ok {
				log.Debug("no identifier yet, skipping publish")
				continue
			}
			n, err := publishAll(client, greenhouse, strconv.FormatInt(id, 10), sensors, rng, now)
			if err != nil {
				log.Warn("publish failed", "sent", n, "error", err)
				continue
			}
			log.Debug("readings published", "count", n)
		}
	}
}
