// Package logging provides structured logging for the catalog and its peers.
//
// It wraps log/slog so the catalog, device agent, adaptor and catalogctl all
// emit the same line shape: service and version on every entry, plus a
// component attribute naming the subsystem (store, reaper, registrar, ...).
//
// # Configuration
//
// Logging is configured via the LoggingConfig in config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// CATALOG_LOG_LEVEL overrides the level at startup. On unix systems a running
// process toggles debug logging on SIGUSR1 (see WatchDebugSignal).
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "catalog", "1.0.0")
//	reaper.SetLogger(logger.Component(logging.ComponentReaper))
//	reg.SetLogger(logger.Component(logging.ComponentRegistrar).Peer("devices", id))
//
// # Security
//
// Never log secrets such as the InfluxDB token or MQTT password.
package logging
