// Package config loads and validates the Lumen Core configuration.
//
// Settings resolve in three layers: built-in defaults, then the YAML file,
// then LUMEN_* environment variables. Validate runs last and rejects a
// config missing the cloud API key or a usable JWT secret, so a
// misconfigured daemon fails at startup rather than at the first request.
//
// Secrets (cloud API key, JWT secret, broker credentials, InfluxDB token)
// belong in environment variables, not in the file:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
//
// Loading happens once at startup; the returned Config is treated as
// read-only afterwards.
package config
