// Package logging provides structured logging for the Nobø hub service.
//
// It wraps log/slog with JSON or text output, level filtering and the
// default fields service and version on every entry.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Component("hub").Info("connected", "serial", serial)
//
// Never log the MQTT password or the InfluxDB token.
package logging
