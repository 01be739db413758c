// Package logging wraps log/slog with the conventions used across Lumen:
// one logger per process, JSON in production and text in development,
// level filtering, and service/version fields stamped on every record.
//
// Configured from the logging section of config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Typical use:
//
//	log := logging.New(cfg.Logging, version)
//	log.Info("discovery complete", "devices", n)
//
// The *Logger satisfies the consumer-side Logger interfaces declared by
// the cloud, coordinator and mqtt packages. Never log the cloud API key,
// JWT secret, or broker credentials.
package logging
