package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/veluxhome/lumen-core/internal/cloud"
	"github.com/veluxhome/lumen-core/internal/device"
)

// defaultBatchDeadline bounds one refresh cycle when no deadline is
// configured.
const defaultBatchDeadline = 30 * time.Second

// Transport defines the cloud operations the coordinator requires.
// cloud.Client satisfies it; tests substitute fakes.
type Transport interface {
	ListDevices(ctx context.Context) ([]cloud.DeviceInfo, error)
	GetDeviceState(ctx context.Context, deviceID, sku string) (*cloud.DeviceStateInfo, error)
	SendCommand(ctx context.Context, deviceID, sku string, capability cloud.CapabilityCommand) error
	ListScenes(ctx context.Context, deviceID, sku string) ([]cloud.Scene, error)
	ListDIYScenes(ctx context.Context, deviceID, sku string) ([]cloud.Scene, error)
}

// Publisher receives state changes and system signals for external fan-out.
// The MQTT adapter satisfies it; a no-op stands in when MQTT is disabled.
type Publisher interface {
	// PublishState is called with the post-merge state after every refresh
	// result and every command.
	PublishState(deviceID string, state device.State)

	// PublishReauthRequired signals that the cloud rejected the API key.
	// Called at most once per rejection episode.
	PublishReauthRequired()
}

// Telemetry records time-series measurements. influxdb.Client satisfies it.
type Telemetry interface {
	WriteDeviceState(deviceID string, online, power bool, brightness int, source string)
	WriteRefreshCycle(total, refreshed, stale int, duration time.Duration)
	WriteRateLimit(remainingMinute, remainingDay int)
}

// Logger defines the logging interface the coordinator requires.
// Matches the logging package's Logger, allowing no-op substitution in tests.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(msg string, args ...any) {}
func (noopLogger) Info(msg string, args ...any)  {}
func (noopLogger) Warn(msg string, args ...any)  {}
func (noopLogger) Error(msg string, args ...any) {}

type noopPublisher struct{}

func (noopPublisher) PublishState(deviceID string, state device.State) {}
func (noopPublisher) PublishReauthRequired()                           {}

type noopTelemetry struct{}

func (noopTelemetry) WriteDeviceState(deviceID string, online, power bool, brightness int, source string) {
}
func (noopTelemetry) WriteRefreshCycle(total, refreshed, stale int, duration time.Duration) {}
func (noopTelemetry) WriteRateLimit(remainingMinute, remainingDay int)                      {}

// Options configures a Coordinator.
type Options struct {
	// Transport is the cloud API client. Required.
	Transport Transport

	// Repository persists directory and scene snapshots across restarts.
	// Optional; nil disables persistence.
	Repository device.Repository

	// Limiter is the shared admission gate, used only for quota
	// observability. Optional.
	Limiter *cloud.RateLimiter

	// Publisher receives state changes and the reauth signal. Optional.
	Publisher Publisher

	// Telemetry records measurements. Optional.
	Telemetry Telemetry

	// Logger for operational logging. Optional.
	Logger Logger

	// IncludeGroups admits group pseudo-devices into the directory.
	IncludeGroups bool

	// BatchDeadline bounds one refresh cycle. Defaults to 30s.
	BatchDeadline time.Duration
}

// Coordinator owns the device directory, state store and scene caches, and
// mediates all cloud access for the rest of the application.
//
// All public methods are safe for concurrent use.
type Coordinator struct {
	transport Transport
	repo      device.Repository
	limiter   *cloud.RateLimiter
	publisher Publisher
	telemetry Telemetry
	logger    Logger

	includeGroups bool
	batchDeadline time.Duration

	directory *device.Directory
	store     *StateStore

	// Scene caches, keyed by device ID. A present key with an empty list is
	// a confirmed answer; only absent keys trigger a cloud fetch. sceneMu
	// guards the maps only; fetches run outside it, deduplicated per device
	// and namespace by sceneFlight.
	sceneMu     sync.Mutex
	scenes      map[string][]cloud.Scene
	diyScenes   map[string][]cloud.Scene
	sceneFlight singleflight.Group

	// reauthMu guards the one-shot reauth signal. The flag re-arms on the
	// next successful cloud call.
	reauthMu     sync.Mutex
	reauthRaised bool
}

// New creates a Coordinator from the given options.
func New(opts Options) (*Coordinator, error) {
	if opts.Transport == nil {
		return nil, fmt.Errorf("coordinator: transport is required")
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	if opts.Publisher == nil {
		opts.Publisher = noopPublisher{}
	}
	if opts.Telemetry == nil {
		opts.Telemetry = noopTelemetry{}
	}
	if opts.BatchDeadline <= 0 {
		opts.BatchDeadline = defaultBatchDeadline
	}

	return &Coordinator{
		transport:     opts.Transport,
		repo:          opts.Repository,
		limiter:       opts.Limiter,
		publisher:     opts.Publisher,
		telemetry:     opts.Telemetry,
		logger:        opts.Logger,
		includeGroups: opts.IncludeGroups,
		batchDeadline: opts.BatchDeadline,
		directory:     device.NewDirectory(),
		store:         NewStateStore(),
		scenes:        make(map[string][]cloud.Scene),
		diyScenes:     make(map[string][]cloud.Scene),
	}, nil
}

// Discover fetches the account's device list and rebuilds the directory.
//
// Group pseudo-devices are excluded unless IncludeGroups is set; included
// groups are seeded with an empty optimistic state since the cloud will
// never report one for them.
//
// Returns:
//   - []device.Device: The new directory contents
//   - error: ErrAuthRequired when the API key is rejected, ErrSetupFailed
//     otherwise. Discovery is never retried automatically.
func (c *Coordinator) Discover(ctx context.Context) ([]device.Device, error) {
	infos, err := c.transport.ListDevices(ctx)
	if err != nil {
		if errors.Is(err, cloud.ErrAuthFailed) {
			c.signalReauth()
			return nil, fmt.Errorf("%w: %s", ErrAuthRequired, err)
		}
		return nil, fmt.Errorf("%w: %s", ErrSetupFailed, err)
	}
	c.clearReauth()

	var devices []device.Device
	groups := 0
	for _, info := range infos {
		d := device.FromCloud(info)
		if d.IsGroup {
			groups++
			if !c.includeGroups {
				c.logger.Debug("skipping group device", "device", d.ID, "sku", d.SKU)
				continue
			}
			c.logger.Info("including group device; group support is experimental",
				"device", d.ID,
				"sku", d.SKU,
				"name", d.Name,
			)
		}
		devices = append(devices, d)
	}

	c.directory.Replace(devices)
	c.seedGroupStates(devices)

	if c.repo != nil {
		if err := c.repo.SaveDirectory(ctx, devices); err != nil {
			c.logger.Warn("persisting device directory failed", "error", err)
		}
	}

	c.logger.Info("discovery complete",
		"devices", len(devices),
		"groups", groups,
	)
	return devices, nil
}

// WarmStart loads the persisted directory snapshot, letting the application
// serve device metadata before spending any cloud quota.
//
// Returns the number of devices restored; zero with a nil error when no
// snapshot exists or persistence is disabled.
func (c *Coordinator) WarmStart(ctx context.Context) (int, error) {
	if c.repo == nil {
		return 0, nil
	}

	devices, err := c.repo.LoadDirectory(ctx)
	if err != nil {
		if errors.Is(err, device.ErrNoSnapshot) {
			return 0, nil
		}
		return 0, fmt.Errorf("loading directory snapshot: %w", err)
	}

	c.directory.Replace(devices)
	c.seedGroupStates(devices)
	return len(devices), nil
}

// seedGroupStates gives included group devices an initial optimistic state.
// Groups are never state-queried, so without a seed they would stay absent
// from the store until the first command.
func (c *Coordinator) seedGroupStates(devices []device.Device) {
	for i := range devices {
		if !devices[i].IsGroup {
			continue
		}
		if _, ok := c.store.Get(devices[i].ID); ok {
			continue
		}
		c.store.Apply(devices[i].ID, device.State{DeviceID: devices[i].ID}, device.KindOptimistic)
	}
}

// SendCommand issues one capability command and applies its optimistic
// effect.
//
// The optimistic mutation and publish happen even when the send fails: the
// cloud applies commands asynchronously, so a send error does not prove the
// device missed it, and confirmed state arrives with the next refresh anyway.
// The send error is still returned to the caller.
func (c *Coordinator) SendCommand(ctx context.Context, deviceID, instance string, value any) error {
	dev, err := c.directory.Get(deviceID)
	if err != nil {
		return err
	}

	cmd := cloud.CapabilityCommand{
		Type:     capabilityTypeFor(instance),
		Instance: instance,
		Value:    wireValue(value),
	}
	return c.dispatch(ctx, dev, cmd, value)
}

// dispatch sends a command and applies the optimistic state for it.
// optimisticValue is the value ApplyCommand understands, which for scenes is
// the scene name rather than the raw wire value.
func (c *Coordinator) dispatch(ctx context.Context, dev *device.Device, cmd cloud.CapabilityCommand, optimisticValue any) error {
	sendErr := c.transport.SendCommand(ctx, dev.ID, dev.SKU, cmd)
	if sendErr != nil {
		if errors.Is(sendErr, cloud.ErrAuthFailed) {
			c.signalReauth()
		}
		c.logger.Warn("command send failed; optimistic state applied anyway",
			"device", dev.ID,
			"instance", cmd.Instance,
			"error", sendErr,
		)
	} else {
		c.clearReauth()
	}

	prev, ok := c.store.Get(dev.ID)
	if !ok {
		prev = device.State{DeviceID: dev.ID}
	}
	optimistic := device.ApplyCommand(prev, cmd.Instance, optimisticValue)
	st := c.store.Apply(dev.ID, optimistic, device.KindOptimistic)

	c.publisher.PublishState(dev.ID, st)
	c.recordState(dev, st)

	return sendErr
}

// recordState writes one telemetry sample. Stored brightness is device-native;
// telemetry carries the canonical 0-255 scale, so it is rescaled here.
func (c *Coordinator) recordState(dev *device.Device, st device.State) {
	min, max := dev.BrightnessRange()
	brightness := device.BrightnessFromDevice(st.Brightness, min, max)
	c.telemetry.WriteDeviceState(dev.ID, st.Online, st.Power, brightness, string(st.Source))
}

// Devices returns the current directory contents.
func (c *Coordinator) Devices() []device.Device {
	return c.directory.List()
}

// Device returns one device by ID.
// Returns device.ErrDeviceNotFound when the device is unknown.
func (c *Coordinator) Device(id string) (*device.Device, error) {
	return c.directory.Get(id)
}

// State returns the current state of one device and whether any is known.
func (c *Coordinator) State(deviceID string) (device.State, bool) {
	return c.store.Get(deviceID)
}

// States returns a snapshot of every known device state.
func (c *Coordinator) States() map[string]device.State {
	return c.store.All()
}

// RateLimitStatus reports the remaining request budget in both quota
// windows. Returns zeros when no limiter was supplied.
func (c *Coordinator) RateLimitStatus() (remainingMinute, remainingDay int) {
	if c.limiter == nil {
		return 0, 0
	}
	return c.limiter.RemainingMinute(), c.limiter.RemainingDay()
}

// signalReauth raises the reauth signal if it is armed.
func (c *Coordinator) signalReauth() {
	c.reauthMu.Lock()
	already := c.reauthRaised
	c.reauthRaised = true
	c.reauthMu.Unlock()

	if already {
		return
	}
	c.logger.Error("cloud rejected the API key; reauthentication required")
	c.publisher.PublishReauthRequired()
}

// clearReauth re-arms the reauth signal after a successful cloud call.
func (c *Coordinator) clearReauth() {
	c.reauthMu.Lock()
	c.reauthRaised = false
	c.reauthMu.Unlock()
}

// capabilityTypeFor maps a capability instance to its cloud capability type.
func capabilityTypeFor(instance string) string {
	switch instance {
	case cloud.InstancePowerSwitch:
		return cloud.CapabilityOnOff
	case cloud.InstanceBrightness:
		return cloud.CapabilityRange
	case cloud.InstanceColorRGB, cloud.InstanceColorTemperatureK:
		return cloud.CapabilityColorSetting
	case cloud.InstanceLightScene, cloud.InstanceDIYScene:
		return cloud.CapabilityDynamicScene
	case cloud.InstanceSegmentedColorRGB, cloud.InstanceSegmentedBrightness:
		return cloud.CapabilitySegmentColor
	default:
		return cloud.CapabilityToggle
	}
}

// wireValue converts internal command values to the shapes the cloud wire
// format expects.
func wireValue(value any) any {
	switch v := value.(type) {
	case bool:
		// Power values go over the wire as 0/1.
		if v {
			return 1
		}
		return 0
	case device.SegmentColorValue:
		return map[string]any{"segment": v.Segments, "rgb": v.Color}
	case device.SegmentBrightnessValue:
		return map[string]any{"segment": v.Segments, "brightness": v.Brightness}
	default:
		return value
	}
}
