// Lumen Core - rate-limited cloud coordinator for smart lighting.
//
// This is the main entry point that wires together all components:
// configuration, database, cloud client, coordinator, MQTT, InfluxDB,
// refresh scheduler and the HTTP/WebSocket API.
//
// Startup sequence:
//  1. Load configuration (YAML + environment overrides)
//  2. Initialize structured logging
//  3. Open SQLite database and run migrations
//  4. Create the rate limiter and cloud client
//  5. Connect MQTT broker (optional) and InfluxDB (optional)
//  6. Build the coordinator: warm-start from snapshot, discover, refresh
//  7. Start the refresh scheduler and the API server
//  8. Wait for shutdown signal, then close everything in reverse order
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/veluxhome/lumen-core/internal/api"
	"github.com/veluxhome/lumen-core/internal/cloud"
	"github.com/veluxhome/lumen-core/internal/coordinator"
	"github.com/veluxhome/lumen-core/internal/device"
	"github.com/veluxhome/lumen-core/internal/infrastructure/config"
	"github.com/veluxhome/lumen-core/internal/infrastructure/database"
	"github.com/veluxhome/lumen-core/internal/infrastructure/influxdb"
	"github.com/veluxhome/lumen-core/internal/infrastructure/logging"
	"github.com/veluxhome/lumen-core/internal/infrastructure/mqtt"

	// Register embedded SQL migrations with the database package.
	_ "github.com/veluxhome/lumen-core/migrations"
)

// Build-time variables set via ldflags.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "lumen: %v\n", err)
		os.Exit(1)
	}
}

// run contains the actual application logic, separated from main for
// testability and clean error handling.
func run(ctx context.Context) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log := logging.New(cfg.Logging, version)
	log.Info("starting lumen core",
		"version", version,
		"commit", commit,
		"built", date,
	)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("closing database", "error", err)
		}
	}()

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database ready", "path", db.Path())

	repo := device.NewSQLiteRepository(db.DB)

	// Create the shared rate limiter and cloud client
	limiter := cloud.NewRateLimiter(cfg.Cloud.RateLimit.PerMinute, cfg.Cloud.RateLimit.PerDay)
	cloudClient := cloud.NewClient(cfg.Cloud, limiter, log)

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT broker: %w", err)
		}
		defer func() {
			if err := mqttClient.Close(); err != nil {
				log.Error("closing MQTT client", "error", err)
			}
		}()

		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT connected",
				"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			)
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			// Telemetry is not critical; run without it.
			log.Warn("InfluxDB unavailable, continuing without telemetry", "error", err)
			influxClient = nil
		} else {
			influxClient.SetOnError(func(err error) {
				log.Warn("InfluxDB write error", "error", err)
			})
			defer func() {
				if influxClient != nil {
					if err := influxClient.Close(); err != nil {
						log.Error("closing InfluxDB client", "error", err)
					}
				}
			}()
			log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
		}
	}

	// The WebSocket hub doubles as a coordinator publisher so state changes
	// reach browser clients without an MQTT round-trip. The hub is created
	// here (not inside the API server) and injected into both.
	hub := api.NewHub(cfg.WebSocket, log)
	go hub.Run(ctx)

	publishers := []coordinator.Publisher{hub}
	if mqttClient != nil {
		publishers = append(publishers, &mqttPublisher{
			client: mqttClient,
			qos:    byte(cfg.MQTT.QoS),
			logger: log,
		})
	}

	var telemetry []coordinator.Telemetry
	if influxClient != nil {
		telemetry = append(telemetry, influxClient)
	}
	if mqttClient != nil {
		telemetry = append(telemetry, &mqttTelemetry{
			client: mqttClient,
			logger: log,
		})
	}

	coord, err := coordinator.New(coordinator.Options{
		Transport:     cloudClient,
		Repository:    repo,
		Limiter:       limiter,
		Publisher:     fanoutPublisher(publishers),
		Telemetry:     fanoutTelemetry(telemetry),
		Logger:        log,
		IncludeGroups: cfg.Cloud.IncludeGroupDevices,
		BatchDeadline: cfg.GetBatchDeadline(),
	})
	if err != nil {
		return fmt.Errorf("creating coordinator: %w", err)
	}

	// Warm start serves the last persisted directory while the cloud is
	// unreachable. A failed warm start is not fatal; discovery rebuilds
	// everything from the cloud anyway.
	restored, err := coord.WarmStart(ctx)
	if err != nil {
		log.Warn("warm start failed", "error", err)
	} else if restored > 0 {
		log.Info("warm start restored directory snapshot", "devices", restored)
	}

	if devices, err := coord.Discover(ctx); err != nil {
		if restored == 0 {
			return fmt.Errorf("initial discovery: %w", err)
		}
		// Keep serving the snapshot; the scheduler pauses itself if the
		// key stays rejected.
		log.Warn("initial discovery failed, serving restored snapshot", "error", err)
	} else {
		log.Info("discovery complete", "devices", len(devices))
	}

	if res, err := coord.Refresh(ctx); err != nil {
		log.Warn("initial refresh failed", "error", err)
	} else {
		log.Info("initial refresh complete",
			"total", res.Total,
			"refreshed", res.Refreshed,
			"stale", res.Stale,
			"duration_ms", res.Duration.Milliseconds(),
		)
	}

	// External systems send capability commands over MQTT; each one goes
	// through the same optimistic dispatch path as API commands.
	if mqttClient != nil {
		if err := subscribeCommands(ctx, mqttClient, coord, byte(cfg.MQTT.QoS), log); err != nil {
			return fmt.Errorf("subscribing to command topics: %w", err)
		}
	}

	// Start the periodic refresh loop
	scheduler := coordinator.NewScheduler(coord, cfg.GetRefreshInterval(), log)
	scheduler.Start(ctx)
	defer scheduler.Stop()
	log.Info("refresh scheduler started", "interval", cfg.GetRefreshInterval())

	// Start the HTTP/WebSocket API
	apiServer, err := api.New(api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Security:    cfg.Security,
		Logger:      log,
		Coordinator: coord,
		Scheduler:   scheduler,
		ExternalHub: hub,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := apiServer.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if err := apiServer.Close(); err != nil {
			log.Error("closing API server", "error", err)
		}
	}()
	log.Info("API server started", "address", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port))

	if err := healthCheck(ctx, db, mqttClient, influxClient, apiServer); err != nil {
		log.Warn("startup health check reported issues", "error", err)
	} else {
		log.Info("all systems healthy")
	}

	minute, day := coord.RateLimitStatus()
	log.Info("lumen core running",
		"devices", len(coord.Devices()),
		"quota_minute", minute,
		"quota_day", day,
	)

	<-ctx.Done()
	log.Info("shutdown signal received")
	return nil
}

// healthCheck verifies all critical components are functioning.
// Optional components (MQTT, InfluxDB) are only checked when configured.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client, apiServer *api.Server) error {
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.HealthCheck(checkCtx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(checkCtx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(checkCtx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	if err := apiServer.HealthCheck(checkCtx); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}

// getConfigPath returns the configuration file path from the LUMEN_CONFIG
// environment variable, or the default path.
func getConfigPath() string {
	if path := os.Getenv("LUMEN_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// fanoutPublisher delivers coordinator events to every registered publisher.
type fanoutPublisher []coordinator.Publisher

func (f fanoutPublisher) PublishState(deviceID string, state device.State) {
	for _, p := range f {
		p.PublishState(deviceID, state)
	}
}

func (f fanoutPublisher) PublishReauthRequired() {
	for _, p := range f {
		p.PublishReauthRequired()
	}
}

// mqttPublisher mirrors coordinator state changes onto the MQTT bus.
// State topics are retained so late subscribers see the last known state.
type mqttPublisher struct {
	client *mqtt.Client
	qos    byte
	logger *logging.Logger
}

func (p *mqttPublisher) PublishState(deviceID string, state device.State) {
	payload, err := json.Marshal(state)
	if err != nil {
		p.logger.Error("marshalling state for MQTT", "device_id", deviceID, "error", err)
		return
	}

	topic := mqtt.Topics{}.DeviceState(deviceID)
	if err := p.client.PublishRetained(topic, payload); err != nil {
		p.logger.Warn("publishing state to MQTT", "topic", topic, "error", err)
	}
}

func (p *mqttPublisher) PublishReauthRequired() {
	payload, _ := json.Marshal(map[string]string{
		"reason":    "cloud rejected the API key",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})

	topic := mqtt.Topics{}.SystemReauth()
	if err := p.client.Publish(topic, payload, p.qos, false); err != nil {
		p.logger.Warn("publishing reauth signal to MQTT", "topic", topic, "error", err)
	}
}

// fanoutTelemetry delivers measurements to every registered sink.
type fanoutTelemetry []coordinator.Telemetry

func (f fanoutTelemetry) WriteDeviceState(deviceID string, online, power bool, brightness int, source string) {
	for _, t := range f {
		t.WriteDeviceState(deviceID, online, power, brightness, source)
	}
}

func (f fanoutTelemetry) WriteRefreshCycle(total, refreshed, stale int, duration time.Duration) {
	for _, t := range f {
		t.WriteRefreshCycle(total, refreshed, stale, duration)
	}
}

func (f fanoutTelemetry) WriteRateLimit(remainingMinute, remainingDay int) {
	for _, t := range f {
		t.WriteRateLimit(remainingMinute, remainingDay)
	}
}

// mqttTelemetry publishes quota snapshots to the retained ratelimit topic.
// Device state and refresh measurements already reach MQTT via the state
// topics, so only the quota snapshot is mirrored here.
type mqttTelemetry struct {
	client *mqtt.Client
	logger *logging.Logger
}

func (t *mqttTelemetry) WriteDeviceState(_ string, _, _ bool, _ int, _ string) {}

func (t *mqttTelemetry) WriteRefreshCycle(_, _, _ int, _ time.Duration) {}

func (t *mqttTelemetry) WriteRateLimit(remainingMinute, remainingDay int) {
	payload, _ := json.Marshal(map[string]any{
		"remaining_minute": remainingMinute,
		"remaining_day":    remainingDay,
		"timestamp":        time.Now().UTC().Format(time.RFC3339),
	})

	topic := mqtt.Topics{}.SystemRateLimit()
	if err := t.client.PublishRetained(topic, payload); err != nil {
		t.logger.Warn("publishing rate limit to MQTT", "topic", topic, "error", err)
	}
}

// mqttCommand is the payload external systems publish to
// lumen/device/{id}/command.
type mqttCommand struct {
	Instance string          `json:"instance"`
	Value    json.RawMessage `json:"value"`
}

// subscribeCommands wires the device command topics into the coordinator.
// Delivery failures are logged, not retried; the optimistic state has
// already been applied and published by the time the error surfaces.
func subscribeCommands(ctx context.Context, client *mqtt.Client, coord *coordinator.Coordinator, qos byte, log *logging.Logger) error {
	return client.Subscribe(mqtt.Topics{}.AllDeviceCommands(), qos, func(topic string, payload []byte) error {
		deviceID, ok := deviceIDFromTopic(topic)
		if !ok {
			log.Warn("ignoring command on unexpected topic", "topic", topic)
			return nil
		}

		var cmd mqttCommand
		if err := json.Unmarshal(payload, &cmd); err != nil {
			log.Warn("ignoring malformed command payload", "topic", topic, "error", err)
			return nil
		}
		if cmd.Instance == "" {
			log.Warn("ignoring command without instance", "topic", topic)
			return nil
		}

		value, err := decodeCommandValue(cmd.Instance, cmd.Value)
		if err != nil {
			log.Warn("ignoring command with invalid value",
				"topic", topic,
				"instance", cmd.Instance,
				"error", err,
			)
			return nil
		}

		if err := coord.SendCommand(ctx, deviceID, cmd.Instance, value); err != nil {
			if errors.Is(err, device.ErrDeviceNotFound) {
				log.Warn("command for unknown device", "device_id", deviceID)
				return nil
			}
			log.Warn("command delivery failed, optimistic state applied",
				"device_id", deviceID,
				"instance", cmd.Instance,
				"error", err,
			)
		}
		return nil
	})
}

// deviceIDFromTopic extracts the device ID from lumen/device/{id}/command.
func deviceIDFromTopic(topic string) (string, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != "lumen" || parts[1] != "device" || parts[3] != "command" {
		return "", false
	}
	if parts[2] == "" {
		return "", false
	}
	return parts[2], true
}

// decodeCommandValue converts a raw JSON value into the typed value the
// coordinator expects for the given capability instance. Unknown instances
// pass through as decoded JSON for forward compatibility.
func decodeCommandValue(instance string, raw json.RawMessage) (any, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("value is required")
	}

	switch instance {
	case cloud.InstancePowerSwitch:
		var v bool
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("%s expects a boolean: %w", instance, err)
		}
		return v, nil

	case cloud.InstanceBrightness, cloud.InstanceColorRGB, cloud.InstanceColorTemperatureK:
		var v int
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("%s expects an integer: %w", instance, err)
		}
		return v, nil

	case cloud.InstanceSegmentedColorRGB:
		var v struct {
			Segments []int `json:"segment"`
			RGB      int   `json:"rgb"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("%s expects {segment, rgb}: %w", instance, err)
		}
		return device.SegmentColorValue{Segments: v.Segments, Color: v.RGB}, nil

	case cloud.InstanceSegmentedBrightness:
		var v struct {
			Segments   []int `json:"segment"`
			Brightness int   `json:"brightness"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("%s expects {segment, brightness}: %w", instance, err)
		}
		return device.SegmentBrightnessValue{Segments: v.Segments, Brightness: v.Brightness}, nil

	default:
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("invalid JSON value: %w", err)
		}
		return v, nil
	}
}
