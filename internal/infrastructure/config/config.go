package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root of Lumen Core's configuration tree, populated from
// YAML with environment variables layered on top.
type Config struct {
	Cloud     CloudConfig     `yaml:"cloud"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
}

// CloudConfig configures the upstream device cloud API.
type CloudConfig struct {
	// APIKey authenticates every request to the cloud API.
	// Required; prefer setting via LUMEN_CLOUD_API_KEY.
	APIKey string `yaml:"api_key"`

	// BaseURL is the cloud API endpoint. Override for staging or tests.
	BaseURL string `yaml:"base_url"`

	// RequestTimeout is the per-request HTTP timeout in seconds.
	RequestTimeout int `yaml:"request_timeout"`

	// RateLimit bounds outbound request volume. The cloud enforces both
	// windows server-side; staying under them locally avoids 429 responses.
	RateLimit CloudRateLimitConfig `yaml:"rate_limit"`

	// Refresh controls the background state polling loop.
	Refresh CloudRefreshConfig `yaml:"refresh"`

	// IncludeGroupDevices enables discovery of group pseudo-devices.
	// Group devices accept commands but report no readable state.
	IncludeGroupDevices bool `yaml:"include_group_devices"`
}

// CloudRateLimitConfig is the client-side request quota.
type CloudRateLimitConfig struct {
	PerMinute int `yaml:"per_minute"`
	PerDay    int `yaml:"per_day"`
}

// CloudRefreshConfig tunes the state refresh loop.
type CloudRefreshConfig struct {
	// Interval is the seconds between refresh cycles.
	Interval int `yaml:"interval"`

	// BatchDeadline is the seconds allowed for one full refresh cycle.
	// Fetches still outstanding when it expires are abandoned.
	BatchDeadline int `yaml:"batch_deadline"`
}

// DatabaseConfig locates and tunes the SQLite snapshot store.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig covers the optional broker connection.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig identifies the broker endpoint.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig carries broker credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig shapes the reconnect backoff, in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig covers the HTTP listener.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig points at the certificate pair for HTTPS.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig holds listener timeouts in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig is the cross-origin allow-list.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig tunes the event socket.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig covers the optional telemetry sink.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig selects log level, format and destination.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig groups auth-related settings.
type SecurityConfig struct {
	JWT  JWTConfig       `yaml:"jwt"`
	Auth LocalAuthConfig `yaml:"auth"`
}

// LocalAuthConfig is the single local operator account. The password is
// stored as an argon2id hash in PHC string format, never plaintext.
type LocalAuthConfig struct {
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash"`
}

// JWTConfig holds the token signing secret and lifetime in minutes.
type JWTConfig struct {
	Secret         string `yaml:"secret"`
	AccessTokenTTL int    `yaml:"access_token_ttl"`
}

// Load resolves the configuration in three layers: built-in defaults,
// then the YAML file at path, then LUMEN_* environment variables. The
// result is validated before it is returned; a config that fails
// validation never reaches the caller.
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

// defaultConfig is the baseline every deployment starts from. Secrets have
// no defaults; they must come from the file or the environment.
func defaultConfig() *Config {
	return &Config{
		Cloud: CloudConfig{
			BaseURL:        "https://openapi.api.govee.com/router/api/v1",
			RequestTimeout: 10,
			RateLimit: CloudRateLimitConfig{
				PerMinute: 100,
				PerDay:    10000,
			},
			Refresh: CloudRefreshConfig{
				Interval:      30,
				BatchDeadline: 30,
			},
		},
		Database: DatabaseConfig{
			Path:        "./data/lumen.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "lumen-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
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
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				AccessTokenTTL: 15,
			},
			Auth: LocalAuthConfig{
				Username: "admin",
			},
		},
	}
}

// applyEnvOverrides layers LUMEN_SECTION_KEY variables over the loaded
// file. Only the settings that make sense to vary per deployment (paths,
// endpoints, credentials) have environment hooks.
func applyEnvOverrides(cfg *Config) {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	setString("LUMEN_CLOUD_API_KEY", &cfg.Cloud.APIKey)
	setString("LUMEN_CLOUD_BASE_URL", &cfg.Cloud.BaseURL)
	if v := os.Getenv("LUMEN_CLOUD_REFRESH_INTERVAL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Cloud.Refresh.Interval = n
		}
	}

	setString("LUMEN_DATABASE_PATH", &cfg.Database.Path)

	setString("LUMEN_MQTT_HOST", &cfg.MQTT.Broker.Host)
	setString("LUMEN_MQTT_USERNAME", &cfg.MQTT.Auth.Username)
	setString("LUMEN_MQTT_PASSWORD", &cfg.MQTT.Auth.Password)

	setString("LUMEN_API_HOST", &cfg.API.Host)

	setString("LUMEN_INFLUXDB_TOKEN", &cfg.InfluxDB.Token)

	setString("LUMEN_JWT_SECRET", &cfg.Security.JWT.Secret)
	setString("LUMEN_AUTH_USERNAME", &cfg.Security.Auth.Username)
	setString("LUMEN_AUTH_PASSWORD_HASH", &cfg.Security.Auth.PasswordHash)
}

// Validate collects every problem with the configuration into one error,
// so an operator fixes the whole file in one round trip.
func (c *Config) Validate() error {
	var errs []string

	if c.Cloud.APIKey == "" {
		errs = append(errs, "cloud.api_key is required (set LUMEN_CLOUD_API_KEY environment variable)")
	}
	if c.Cloud.BaseURL == "" {
		errs = append(errs, "cloud.base_url is required")
	}
	if c.Cloud.RateLimit.PerMinute < 1 {
		errs = append(errs, "cloud.rate_limit.per_minute must be at least 1")
	}
	if c.Cloud.RateLimit.PerDay < c.Cloud.RateLimit.PerMinute {
		errs = append(errs, "cloud.rate_limit.per_day must be at least cloud.rate_limit.per_minute")
	}
	if c.Cloud.Refresh.Interval < 1 {
		errs = append(errs, "cloud.refresh.interval must be at least 1 second")
	}
	if c.Cloud.Refresh.BatchDeadline < 1 {
		errs = append(errs, "cloud.refresh.batch_deadline must be at least 1 second")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// A missing or short JWT secret means forged tokens and unauthorised
	// control of physical lighting, so both are hard errors.
	const minJWTSecretLength = 32
	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set LUMEN_JWT_SECRET environment variable)")
	} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters for adequate security")
	}

	// The local account has no built-in default password. Operators set an
	// argon2id hash; a missing or plaintext value refuses to start.
	if c.Security.Auth.Username == "" {
		errs = append(errs, "security.auth.username is required")
	}
	if c.Security.Auth.PasswordHash == "" {
		errs = append(errs, "security.auth.password_hash is required (argon2id PHC string; set LUMEN_AUTH_PASSWORD_HASH environment variable)")
	} else if !strings.HasPrefix(c.Security.Auth.PasswordHash, "$argon2id$") {
		errs = append(errs, "security.auth.password_hash must be an argon2id hash in PHC string format")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// Duration accessors for the integer-second settings above.

func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

func (c *Config) GetRequestTimeout() time.Duration {
	return time.Duration(c.Cloud.RequestTimeout) * time.Second
}

func (c *Config) GetRefreshInterval() time.Duration {
	return time.Duration(c.Cloud.Refresh.Interval) * time.Second
}

func (c *Config) GetBatchDeadline() time.Duration {
	return time.Duration(c.Cloud.Refresh.BatchDeadline) * time.Second
}
