package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/veluxhome/lumen-core/internal/cloud"
	"github.com/veluxhome/lumen-core/internal/coordinator"
	"github.com/veluxhome/lumen-core/internal/device"
)

// ─── Config Path ────────────────────────────────────────────────────────────

// TestGetConfigPath_Default verifies default config path.
func TestGetConfigPath_Default(t *testing.T) {
	originalEnv := os.Getenv("LUMEN_CONFIG")
	defer os.Setenv("LUMEN_CONFIG", originalEnv)

	os.Unsetenv("LUMEN_CONFIG")

	path := getConfigPath()
	if path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

// TestGetConfigPath_EnvOverride verifies environment variable override.
func TestGetConfigPath_EnvOverride(t *testing.T) {
	originalEnv := os.Getenv("LUMEN_CONFIG")
	defer os.Setenv("LUMEN_CONFIG", originalEnv)

	expected := "/custom/path/config.yaml"
	os.Setenv("LUMEN_CONFIG", expected)

	path := getConfigPath()
	if path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}

// ─── Run ────────────────────────────────────────────────────────────────────

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	originalEnv := os.Getenv("LUMEN_CONFIG")
	defer os.Setenv("LUMEN_CONFIG", originalEnv)

	os.Setenv("LUMEN_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_MissingAPIKey verifies run fails validation without a cloud key.
func TestRun_MissingAPIKey(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.yaml")

	configContent := `
cloud:
  api_key: ""

database:
  path: "` + filepath.Join(tmpDir, "test.db") + `"

security:
  jwt:
    secret: "test-secret-that-is-long-enough-for-validation"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	originalConfig := os.Getenv("LUMEN_CONFIG")
	originalKey := os.Getenv("LUMEN_CLOUD_API_KEY")
	defer func() {
		os.Setenv("LUMEN_CONFIG", originalConfig)
		os.Setenv("LUMEN_CLOUD_API_KEY", originalKey)
	}()
	os.Setenv("LUMEN_CONFIG", configPath)
	os.Unsetenv("LUMEN_CLOUD_API_KEY")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail without a cloud API key")
	}
}

// ─── Topic Parsing ──────────────────────────────────────────────────────────

func TestDeviceIDFromTopic(t *testing.T) {
	tests := []struct {
		topic  string
		wantID string
		wantOK bool
	}{
		{"lumen/device/AA:BB:CC:DD:EE:FF:11:22/command", "AA:BB:CC:DD:EE:FF:11:22", true},
		{"lumen/device/simple-id/command", "simple-id", true},
		{"lumen/device/simple-id/state", "", false},
		{"lumen/device//command", "", false},
		{"lumen/system/reauth", "", false},
		{"other/device/id/command", "", false},
		{"lumen/device/id/command/extra", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			id, ok := deviceIDFromTopic(tt.topic)
			if ok != tt.wantOK {
				t.Fatalf("deviceIDFromTopic(%q) ok = %v, want %v", tt.topic, ok, tt.wantOK)
			}
			if id != tt.wantID {
				t.Errorf("deviceIDFromTopic(%q) = %q, want %q", tt.topic, id, tt.wantID)
			}
		})
	}
}

// ─── Command Value Decoding ─────────────────────────────────────────────────

func TestDecodeCommandValue(t *testing.T) {
	tests := []struct {
		name     string
		instance string
		raw      string
		want     any
		wantErr  bool
	}{
		{"power on", cloud.InstancePowerSwitch, `true`, true, false},
		{"power off", cloud.InstancePowerSwitch, `false`, false, false},
		{"power not bool", cloud.InstancePowerSwitch, `"on"`, nil, true},
		{"brightness", cloud.InstanceBrightness, `75`, 75, false},
		{"brightness not int", cloud.InstanceBrightness, `"bright"`, nil, true},
		{"color rgb", cloud.InstanceColorRGB, `16711680`, 16711680, false},
		{"color temp", cloud.InstanceColorTemperatureK, `4000`, 4000, false},
		{"unknown instance passes through", "gradientToggle", `1`, float64(1), false},
		{"empty value", cloud.InstanceBrightness, ``, nil, true},
		{"invalid json", "gradientToggle", `{`, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeCommandValue(tt.instance, json.RawMessage(tt.raw))
			if (err != nil) != tt.wantErr {
				t.Fatalf("decodeCommandValue() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if got != tt.want {
				t.Errorf("decodeCommandValue() = %v (%T), want %v (%T)", got, got, tt.want, tt.want)
			}
		})
	}
}

func TestDecodeCommandValue_SegmentColor(t *testing.T) {
	raw := json.RawMessage(`{"segment": [0, 1, 2], "rgb": 16711680}`)

	got, err := decodeCommandValue(cloud.InstanceSegmentedColorRGB, raw)
	if err != nil {
		t.Fatalf("decodeCommandValue() error = %v", err)
	}

	v, ok := got.(device.SegmentColorValue)
	if !ok {
		t.Fatalf("decodeCommandValue() returned %T, want device.SegmentColorValue", got)
	}
	if len(v.Segments) != 3 || v.Segments[0] != 0 || v.Segments[2] != 2 {
		t.Errorf("Segments = %v, want [0 1 2]", v.Segments)
	}
	if v.Color != 16711680 {
		t.Errorf("Color = %d, want 16711680", v.Color)
	}
}

func TestDecodeCommandValue_SegmentBrightness(t *testing.T) {
	raw := json.RawMessage(`{"segment": [4, 5], "brightness": 60}`)

	got, err := decodeCommandValue(cloud.InstanceSegmentedBrightness, raw)
	if err != nil {
		t.Fatalf("decodeCommandValue() error = %v", err)
	}

	v, ok := got.(device.SegmentBrightnessValue)
	if !ok {
		t.Fatalf("decodeCommandValue() returned %T, want device.SegmentBrightnessValue", got)
	}
	if len(v.Segments) != 2 || v.Brightness != 60 {
		t.Errorf("got %+v, want segments [4 5] brightness 60", v)
	}
}

// ─── Fan-out Adapters ───────────────────────────────────────────────────────

type recordingPublisher struct {
	states  []string
	reauths int
}

func (r *recordingPublisher) PublishState(deviceID string, _ device.State) {
	r.states = append(r.states, deviceID)
}

func (r *recordingPublisher) PublishReauthRequired() {
	r.reauths++
}

func TestFanoutPublisher_DeliversToAll(t *testing.T) {
	a := &recordingPublisher{}
	b := &recordingPublisher{}
	fan := fanoutPublisher{a, b}

	fan.PublishState("dev-1", device.State{DeviceID: "dev-1"})
	fan.PublishReauthRequired()

	for i, p := range []*recordingPublisher{a, b} {
		if len(p.states) != 1 || p.states[0] != "dev-1" {
			t.Errorf("publisher %d states = %v, want [dev-1]", i, p.states)
		}
		if p.reauths != 1 {
			t.Errorf("publisher %d reauths = %d, want 1", i, p.reauths)
		}
	}
}

func TestFanoutPublisher_Empty(t *testing.T) {
	var fan fanoutPublisher

	// Must not panic with no targets.
	fan.PublishState("dev-1", device.State{})
	fan.PublishReauthRequired()
}

type recordingTelemetry struct {
	stateWrites   int
	cycleWrites   int
	quotaWrites   int
	lastRemaining int
}

func (r *recordingTelemetry) WriteDeviceState(_ string, _, _ bool, _ int, _ string) {
	r.stateWrites++
}

func (r *recordingTelemetry) WriteRefreshCycle(_, _, _ int, _ time.Duration) {
	r.cycleWrites++
}

func (r *recordingTelemetry) WriteRateLimit(remainingMinute, _ int) {
	r.quotaWrites++
	r.lastRemaining = remainingMinute
}

func TestFanoutTelemetry_DeliversToAll(t *testing.T) {
	a := &recordingTelemetry{}
	b := &recordingTelemetry{}
	fan := fanoutTelemetry{a, b}

	var _ coordinator.Telemetry = fan

	fan.WriteDeviceState("dev-1", true, true, 50, "api")
	fan.WriteRefreshCycle(3, 2, 1, time.Second)
	fan.WriteRateLimit(95, 9900)

	for i, sink := range []*recordingTelemetry{a, b} {
		if sink.stateWrites != 1 || sink.cycleWrites != 1 || sink.quotaWrites != 1 {
			t.Errorf("sink %d writes = %d/%d/%d, want 1/1/1",
				i, sink.stateWrites, sink.cycleWrites, sink.quotaWrites)
		}
		if sink.lastRemaining != 95 {
			t.Errorf("sink %d lastRemaining = %d, want 95", i, sink.lastRemaining)
		}
	}
}
