package peer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/greenhouse-catalog/internal/catalog"
	"github.com/nerrad567/greenhouse-catalog/internal/catalogclient"
	"github.com/nerrad567/greenhouse-catalog/internal/infrastructure/config"
	"github.com/nerrad567/greenhouse-catalog/internal/infrastructure/logging"
	"github.com/nerrad567/greenhouse-catalog/internal/infrastructure/mqtt"
	"github.com/nerrad567/greenhouse-catalog/internal/locator"
	"github.com/nerrad567/greenhouse-catalog/internal/registrar"
	"github.com/nerrad567/greenhouse-catalog/internal/retry"
)

// ErrNoIdentity is returned when neither a record nor an identity file is given.
var ErrNoIdentity = errors.New("peer: no record and no identity file")

// Options configures a Peer.
type Options struct {
	Config config.PeerConfig
	Target registrar.Target
	// Record is the process's own record. When nil it is read from
	// Config.IdentityFile.
	Record catalog.Document
	Logger *logging.Logger
}

// Peer bundles the catalog client, registrar and locator of one process.
type Peer struct {
	Client    *catalogclient.Client
	Registrar *registrar.Registrar
	Locator   *locator.Locator

	heartbeat time.Duration
	logger    *logging.Logger
}

// New builds a peer from opts. It does not contact the catalog.
func New(opts Options) (*Peer, error) {
	if opts.Logger == nil {
		return nil, errors.New("peer: logger is required")
	}

	record := opts.Record
	if record == nil {
		if opts.Config.IdentityFile == "" {
			return nil, ErrNoIdentity
		}
		doc, err := registrar.LoadIdentity(opts.Config.IdentityFile)
		if err != nil {
			return nil, err
		}
		record = doc
	}

	client, err := catalogclient.FromConfig(opts.Config)
	if err != nil {
		return nil, fmt.Errorf("creating catalog client: %w", err)
	}

	policy := retry.FromConfig(opts.Config.Retry)

	reg, err := registrar.New(client, registrar.Config{
		Target:       opts.Target,
		Record:       record,
		Retry:        policy,
		IdentityFile: opts.Config.IdentityFile,
	})
	if err != nil {
		return nil, fmt.Errorf("creating registrar: %w", err)
	}
	regLog := opts.Logger.Component(logging.ComponentRegistrar)
	if id, ok := reg.ID(); ok {
		regLog = regLog.Peer(opts.Target.String(), id)
	}
	reg.SetLogger(regLog)

	loc := locator.New(client, locator.Config{
		TTL:   config.Seconds(opts.Config.LocatorTTL),
		Retry: policy,
	})
	loc.SetLogger(opts.Logger.Component(logging.ComponentLocator))

	return &Peer{
		Client:    client,
		Registrar: reg,
		Locator:   loc,
		heartbeat: config.Seconds(opts.Config.HeartbeatInterval),
		logger:    opts.Logger,
	}, nil
}

// Run keeps the peer registered until ctx is done.
func (p *Peer) Run(ctx context.Context) {
	p.Registrar.Run(ctx, p.heartbeat)
}

// ConnectBroker resolves the broker through the catalog and connects to it.
//
// While the broker is unknown or refuses the connection, ConnectBroker
// waits one heartbeat interval and tries again; it only gives up when ctx
// is done. A failed connection invalidates the cached broker address.
func (p *Peer) ConnectBroker(ctx context.Context, base config.MQTTConfig, clientPrefix string) (*mqtt.Client, error) {
	for {
		addr, ok := p.Locator.ResolveBroker(ctx)
		if ok {
			cfg := BrokerConfig(base, addr, clientPrefix)
			client, err := mqtt.Connect(cfg)
			if err == nil {
				client.SetLogger(p.logger.Component(logging.ComponentMQTT))
				p.logger.Info("MQTT connected", "broker", addr.String(), "client_id", cfg.Broker.ClientID)
				return client, nil
			}
			p.logger.Warn("broker connection failed", "broker", addr.String(), "error", err)
			p.Locator.Invalidate(locator.BrokerTarget)
		} else {
			p.logger.Info("broker not known yet, deferring", "retry_in", p.heartbeat)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(p.heartbeat):
		}
	}
}

// BrokerConfig copies base and points it at addr with a unique client id.
func BrokerConfig(base config.MQTTConfig, addr locator.Address, clientPrefix string) config.MQTTConfig {
	cfg := base
	cfg.Broker.Host = addr.Host
	cfg.Broker.Port = addr.Port
	cfg.Broker.ClientID = clientPrefix + "-" + uuid.NewString()[:8]
	return cfg
}
