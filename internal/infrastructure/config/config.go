package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure shared by the catalog server
// and every peer binary. Each process only reads the sections it needs.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Catalog  CatalogConfig  `yaml:"catalog"`
	API      APIConfig      `yaml:"api"`
	Database DatabaseConfig `yaml:"database"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
	Peer     PeerConfig     `yaml:"peer"`
}

// CatalogConfig contains record store, snapshot and reaper settings.
type CatalogConfig struct {
	// SeedPath is an optional YAML file applied at startup (broker pointer,
	// static records). Empty disables seeding.
	SeedPath string         `yaml:"seed_path"`
	Snapshot SnapshotConfig `yaml:"snapshot"`
	Reaper   ReaperConfig   `yaml:"reaper"`

	// IDBase is the first identifier handed out by the allocator in every namespace.
	IDBase int64 `yaml:"id_base"`
}

// SnapshotConfig selects where the best-effort snapshot is flushed.
type SnapshotConfig struct {
	// Backend is "file", "sqlite" or "none".
	Backend string `yaml:"backend"`
	// Path is the JSON file path for the file backend.
	Path string `yaml:"path"`
}

// ReaperConfig contains TTL expiry settings. All values are seconds.
type ReaperConfig struct {
	Interval int                 `yaml:"interval"`
	Timeouts ReaperTimeoutConfig `yaml:"timeouts"`
}

// ReaperTimeoutConfig holds the per-collection maximum record age in seconds.
type ReaperTimeoutConfig struct {
	Devices       int `yaml:"devices"`
	Users         int `yaml:"users"`
	Greenhouses   int `yaml:"greenhouses"`
	Services      int `yaml:"services"`
	Broker        int `yaml:"broker"`
	DeviceCatalog int `yaml:"device_catalog"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// DatabaseConfig contains SQLite database settings used by the sqlite snapshot backend.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
//
// The catalog server uses it for its status topic. Peers ignore Broker.Host
// and Broker.Port and use the address resolved from the catalog instead.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// PeerConfig contains the settings every peer process uses to talk to the catalog.
type PeerConfig struct {
	// CatalogURL is the base URL of the catalog, e.g. "http://127.0.0.1:8080".
	CatalogURL string `yaml:"catalog_url"`

	// IdentityFile is the YAML file holding the peer's own record.
	// Newly allocated identifiers are written back to it.
	IdentityFile string `yaml:"identity_file"`

	// RequestTimeout bounds every single call to the catalog (seconds).
	RequestTimeout int `yaml:"request_timeout"`

	// Retry bounds each registrar state and each locator lookup.
	Retry RetryConfig `yaml:"retry"`

	// HeartbeatInterval is how often the peer refreshes its record (seconds).
	HeartbeatInterval int `yaml:"heartbeat_interval"`

	// LocatorTTL is how long a resolved address is trusted (seconds).
	LocatorTTL int `yaml:"locator_ttl"`

	// PublishInterval is how often device agents emit measurements (seconds).
	PublishInterval int `yaml:"publish_interval"`
}

// RetryConfig is a bounded fixed-delay retry budget.
type RetryConfig struct {
	MaxAttempts int `yaml:"max_attempts"`
	Delay       int `yaml:"delay"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: CATALOG_SECTION_KEY
// For example: CATALOG_API_PORT, CATALOG_PEER_URL
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration without reading any file.
// Useful for tools and tests.
func Default() *Config {
	return defaultConfig()
}

// defaultConfig returns a Config with sensible defaults.
// Timeouts follow the catalog's historical behaviour: records live two
// minutes without a heartbeat and the reaper sweeps every minute.
func defaultConfig() *Config {
	return &Config{
		Catalog: CatalogConfig{
			Snapshot: SnapshotConfig{
				Backend: "file",
				Path:    "./data/catalog_updated.json",
			},
			Reaper: ReaperConfig{
				Interval: 60,
				Timeouts: ReaperTimeoutConfig{
					Devices:       120,
					Users:         120,
					Greenhouses:   120,
					Services:      120,
					Broker:        120,
					DeviceCatalog: 120,
				},
			},
			IDBase: 1,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Database: DatabaseConfig{
			Path:        "./data/catalog.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "greenhouse-catalog",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Peer: PeerConfig{
			CatalogURL:     "http://127.0.0.1:8080",
			RequestTimeout: 5,
			Retry: RetryConfig{
				MaxAttempts: 10,
				Delay:       5,
			},
			HeartbeatInterval: 30,
			LocatorTTL:        300,
			PublishInterval:   15,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: CATALOG_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// API
	if v := os.Getenv("CATALOG_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("CATALOG_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// Snapshot
	if v := os.Getenv("CATALOG_SNAPSHOT_BACKEND"); v != "" {
		cfg.Catalog.Snapshot.Backend = v
	}
	if v := os.Getenv("CATALOG_SNAPSHOT_PATH"); v != "" {
		cfg.Catalog.Snapshot.Path = v
	}
	if v := os.Getenv("CATALOG_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("CATALOG_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("CATALOG_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("CATALOG_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("CATALOG_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("CATALOG_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Peer
	if v := os.Getenv("CATALOG_PEER_URL"); v != "" {
		cfg.Peer.CatalogURL = v
	}
	if v := os.Getenv("CATALOG_PEER_IDENTITY"); v != "" {
		cfg.Peer.IdentityFile = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	switch c.Catalog.Snapshot.Backend {
	case "file":
		if c.Catalog.Snapshot.Path == "" {
			errs = append(errs, "catalog.snapshot.path is required for the file backend")
		}
	case "sqlite":
		if c.Database.Path == "" {
			errs = append(errs, "database.path is required for the sqlite backend")
		}
	case "none":
	default:
		errs = append(errs, "catalog.snapshot.backend must be file, sqlite or none")
	}

	if c.Catalog.Reaper.Interval <= 0 {
		errs = append(errs, "catalog.reaper.interval must be positive")
	}
	t := c.Catalog.Reaper.Timeouts
	for name, v := range map[string]int{
		"devices":        t.Devices,
		"users":          t.Users,
		"greenhouses":    t.Greenhouses,
		"services":       t.Services,
		"broker":         t.Broker,
		"device_catalog": t.DeviceCatalog,
	} {
		if v <= 0 {
			errs = append(errs, fmt.Sprintf("catalog.reaper.timeouts.%s must be positive", name))
		}
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if err := c.Logging.validate(); err != nil {
		errs = append(errs, err.Error())
	}

	if err := c.Peer.validate(); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// Level names mirror logging.ParseLevel; logging imports this package.
func (l LoggingConfig) validate() error {
	var errs []string
	switch strings.ToLower(strings.TrimSpace(l.Level)) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, "logging.level must be debug, info, warn or error")
	}
	switch strings.ToLower(l.Format) {
	case "", "json", "text":
	default:
		errs = append(errs, "logging.format must be json or text")
	}
	switch strings.ToLower(l.Output) {
	case "", "stdout", "stderr":
	default:
		errs = append(errs, "logging.output must be stdout or stderr")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func (p PeerConfig) validate() error {
	var errs []string
	if p.CatalogURL == "" {
		errs = append(errs, "peer.catalog_url is required")
	}
	if p.RequestTimeout <= 0 {
		errs = append(errs, "peer.request_timeout must be positive")
	}
	if p.Retry.MaxAttempts <= 0 {
		errs = append(errs, "peer.retry.max_attempts must be positive")
	}
	if p.Retry.Delay < 0 {
		errs = append(errs, "peer.retry.delay must not be negative")
	}
	if p.HeartbeatInterval <= 0 {
		errs = append(errs, "peer.heartbeat_interval must be positive")
	}
	if p.LocatorTTL <= 0 {
		errs = append(errs, "peer.locator_ttl must be positive")
	}
	if p.PublishInterval <= 0 {
		errs = append(errs, "peer.publish_interval must be positive")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// Seconds converts a whole-second config value to a Duration.
func Seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return Seconds(c.API.Timeouts.Read)
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return Seconds(c.API.Timeouts.Write)
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return Seconds(c.API.Timeouts.Idle)
}
