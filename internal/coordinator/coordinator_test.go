package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/veluxhome/lumen-core/internal/cloud"
	"github.com/veluxhome/lumen-core/internal/device"
)

// =============================================================================
// Fakes
// =============================================================================

// fakeTransport is an in-memory Transport with scriptable failures.
type fakeTransport struct {
	mu sync.Mutex

	devices []cloud.DeviceInfo
	listErr error

	states     map[string]*cloud.DeviceStateInfo
	stateErrs  map[string]error
	blocked    map[string]bool
	stateCalls map[string]int

	scenes     map[string][]cloud.Scene
	diyScenes  map[string][]cloud.Scene
	sceneErr   error
	sceneCalls int
	diyCalls   int
	sceneHold  map[string]chan struct{}

	commands   []cloud.CapabilityCommand
	commandErr error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		states:     make(map[string]*cloud.DeviceStateInfo),
		stateErrs:  make(map[string]error),
		blocked:    make(map[string]bool),
		stateCalls: make(map[string]int),
		scenes:     make(map[string][]cloud.Scene),
		diyScenes:  make(map[string][]cloud.Scene),
		sceneHold:  make(map[string]chan struct{}),
	}
}

func (f *fakeTransport) ListDevices(_ context.Context) ([]cloud.DeviceInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.devices, nil
}

func (f *fakeTransport) GetDeviceState(ctx context.Context, deviceID, _ string) (*cloud.DeviceStateInfo, error) {
	f.mu.Lock()
	f.stateCalls[deviceID]++
	err := f.stateErrs[deviceID]
	blocked := f.blocked[deviceID]
	info := f.states[deviceID]
	f.mu.Unlock()

	if blocked {
		<-ctx.Done()
		return nil, fmt.Errorf("%w: %s", cloud.ErrTransient, ctx.Err())
	}
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, fmt.Errorf("%w: no scripted state", cloud.ErrTransient)
	}
	return info, nil
}

func (f *fakeTransport) SendCommand(_ context.Context, _, _ string, capability cloud.CapabilityCommand) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, capability)
	return f.commandErr
}

// ListScenes parks on the device's hold channel, when one is scripted, after
// counting the call.
func (f *fakeTransport) ListScenes(_ context.Context, deviceID, _ string) ([]cloud.Scene, error) {
	f.mu.Lock()
	f.sceneCalls++
	hold := f.sceneHold[deviceID]
	err := f.sceneErr
	scenes := f.scenes[deviceID]
	f.mu.Unlock()

	if hold != nil {
		<-hold
	}
	if err != nil {
		return nil, err
	}
	return scenes, nil
}

func (f *fakeTransport) ListDIYScenes(_ context.Context, deviceID, _ string) ([]cloud.Scene, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.diyCalls++
	if f.sceneErr != nil {
		return nil, f.sceneErr
	}
	return f.diyScenes[deviceID], nil
}

func (f *fakeTransport) calls(deviceID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stateCalls[deviceID]
}

func (f *fakeTransport) sceneCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sceneCalls
}

func (f *fakeTransport) sentCommands() []cloud.CapabilityCommand {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]cloud.CapabilityCommand, len(f.commands))
	copy(out, f.commands)
	return out
}

// fakePublisher records published states and reauth signals.
type fakePublisher struct {
	mu     sync.Mutex
	states map[string][]device.State
	reauth int
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{states: make(map[string][]device.State)}
}

func (p *fakePublisher) PublishState(deviceID string, state device.State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.states[deviceID] = append(p.states[deviceID], state)
}

func (p *fakePublisher) PublishReauthRequired() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reauth++
}

func (p *fakePublisher) reauthCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reauth
}

func (p *fakePublisher) published(deviceID string) []device.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]device.State(nil), p.states[deviceID]...)
}

// fakeTelemetry records WriteDeviceState samples; the cycle and rate-limit
// writes are dropped.
type fakeTelemetry struct {
	mu      sync.Mutex
	samples []stateSample
}

type stateSample struct {
	deviceID   string
	online     bool
	power      bool
	brightness int
	source     string
}

func (f *fakeTelemetry) WriteDeviceState(deviceID string, online, power bool, brightness int, source string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.samples = append(f.samples, stateSample{deviceID, online, power, brightness, source})
}

func (f *fakeTelemetry) WriteRefreshCycle(total, refreshed, stale int, duration time.Duration) {}
func (f *fakeTelemetry) WriteRateLimit(remainingMinute, remainingDay int)                      {}

func (f *fakeTelemetry) samplesFor(deviceID string) []stateSample {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []stateSample
	for _, s := range f.samples {
		if s.deviceID == deviceID {
			out = append(out, s)
		}
	}
	return out
}

// fakeRepo is an in-memory device.Repository.
type fakeRepo struct {
	mu      sync.Mutex
	devices []device.Device
	saved   bool
	scenes  map[string][]cloud.Scene
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{scenes: make(map[string][]cloud.Scene)}
}

func sceneKey(deviceID string, kind device.SceneKind) string {
	return deviceID + "/" + string(kind)
}

func (r *fakeRepo) SaveDirectory(_ context.Context, devices []device.Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.devices = append([]device.Device(nil), devices...)
	r.saved = true
	return nil
}

func (r *fakeRepo) LoadDirectory(_ context.Context) ([]device.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.saved {
		return nil, device.ErrNoSnapshot
	}
	return append([]device.Device(nil), r.devices...), nil
}

func (r *fakeRepo) SaveScenes(_ context.Context, deviceID string, kind device.SceneKind, scenes []cloud.Scene) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scenes[sceneKey(deviceID, kind)] = append([]cloud.Scene(nil), scenes...)
	return nil
}

func (r *fakeRepo) LoadScenes(_ context.Context, deviceID string, kind device.SceneKind) ([]cloud.Scene, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	scenes, ok := r.scenes[sceneKey(deviceID, kind)]
	if !ok {
		return nil, device.ErrNoSnapshot
	}
	return append([]cloud.Scene(nil), scenes...), nil
}

// =============================================================================
// Fixtures
// =============================================================================

func cloudLight(id, sku string) cloud.DeviceInfo {
	return cloud.DeviceInfo{
		Device:     id,
		SKU:        sku,
		DeviceName: "Light " + id,
		Type:       "devices.types.light",
		Capabilities: []cloud.CapabilityInfo{
			{Type: cloud.CapabilityOnOff, Instance: cloud.InstancePowerSwitch},
			{
				Type:     cloud.CapabilityRange,
				Instance: cloud.InstanceBrightness,
				Parameters: &cloud.CapabilityParameter{
					DataType: "INTEGER",
					Range:    &cloud.RangeSpec{Min: 1, Max: 100},
				},
			},
		},
	}
}

func cloudGroup(id string) cloud.DeviceInfo {
	return cloud.DeviceInfo{
		Device:     id,
		SKU:        "GROUP",
		DeviceName: "Group " + id,
		Type:       cloud.DeviceTypeGroup,
	}
}

func stateInfo(id string, online, power bool, brightness int) *cloud.DeviceStateInfo {
	onlineCap := cloud.StateCapability{Type: cloud.CapabilityOnline, Instance: cloud.InstanceOnline}
	onlineCap.State.Value = json.RawMessage(fmt.Sprintf("%t", online))

	powerCap := cloud.StateCapability{Type: cloud.CapabilityOnOff, Instance: cloud.InstancePowerSwitch}
	if power {
		powerCap.State.Value = json.RawMessage(`1`)
	} else {
		powerCap.State.Value = json.RawMessage(`0`)
	}

	brightCap := cloud.StateCapability{Type: cloud.CapabilityRange, Instance: cloud.InstanceBrightness}
	brightCap.State.Value = json.RawMessage(fmt.Sprintf("%d", brightness))

	return &cloud.DeviceStateInfo{
		Device:       id,
		Capabilities: []cloud.StateCapability{onlineCap, powerCap, brightCap},
	}
}

func authErr() error {
	return fmt.Errorf("%w: status 401", cloud.ErrAuthFailed)
}

func transientErr() error {
	return fmt.Errorf("%w: status 502", cloud.ErrTransient)
}

// newTestCoordinator builds a coordinator over the fakes with a short batch
// deadline.
func newTestCoordinator(t *testing.T, tr *fakeTransport, mod func(*Options)) (*Coordinator, *fakePublisher) {
	t.Helper()

	pub := newFakePublisher()
	opts := Options{
		Transport:     tr,
		Publisher:     pub,
		BatchDeadline: 2 * time.Second,
	}
	if mod != nil {
		mod(&opts)
	}

	c, err := New(opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c, pub
}

// =============================================================================
// Discover Tests
// =============================================================================

func TestDiscover_ExcludesGroupsByDefault(t *testing.T) {
	tr := newFakeTransport()
	tr.devices = []cloud.DeviceInfo{
		cloudLight("dev-1", "H6160"),
		cloudGroup("grp-1"),
	}

	c, _ := newTestCoordinator(t, tr, nil)

	devices, err := c.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	if len(devices) != 1 || devices[0].ID != "dev-1" {
		t.Errorf("Discover() = %+v, want only dev-1", devices)
	}
	if _, err := c.Device("grp-1"); !errors.Is(err, device.ErrDeviceNotFound) {
		t.Error("group device should not be in the directory")
	}
}

func TestDiscover_IncludesGroupsWhenEnabled(t *testing.T) {
	tr := newFakeTransport()
	tr.devices = []cloud.DeviceInfo{
		cloudLight("dev-1", "H6160"),
		cloudGroup("grp-1"),
	}

	c, _ := newTestCoordinator(t, tr, func(o *Options) { o.IncludeGroups = true })

	devices, err := c.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("Discover() returned %d devices, want 2", len(devices))
	}

	// Included groups get a seeded optimistic state.
	st, ok := c.State("grp-1")
	if !ok {
		t.Fatal("group device has no seeded state")
	}
	if st.Source != device.SourceOptimistic {
		t.Errorf("group state source = %s, want optimistic", st.Source)
	}
}

func TestDiscover_AuthFailure(t *testing.T) {
	tr := newFakeTransport()
	tr.listErr = authErr()

	c, pub := newTestCoordinator(t, tr, nil)

	_, err := c.Discover(context.Background())
	if !errors.Is(err, ErrAuthRequired) {
		t.Fatalf("Discover() error = %v, want ErrAuthRequired", err)
	}
	if pub.reauthCount() != 1 {
		t.Errorf("reauth signals = %d, want 1", pub.reauthCount())
	}

	// A second rejection in the same episode does not signal again.
	if _, err := c.Discover(context.Background()); !errors.Is(err, ErrAuthRequired) {
		t.Fatalf("Discover() error = %v, want ErrAuthRequired", err)
	}
	if pub.reauthCount() != 1 {
		t.Errorf("reauth signals = %d after second failure, want 1", pub.reauthCount())
	}
}

func TestDiscover_TransientFailure(t *testing.T) {
	tr := newFakeTransport()
	tr.listErr = transientErr()

	c, pub := newTestCoordinator(t, tr, nil)

	_, err := c.Discover(context.Background())
	if !errors.Is(err, ErrSetupFailed) {
		t.Fatalf("Discover() error = %v, want ErrSetupFailed", err)
	}
	if errors.Is(err, ErrAuthRequired) {
		t.Error("transient failure must not classify as auth")
	}
	if pub.reauthCount() != 0 {
		t.Errorf("reauth signals = %d, want 0", pub.reauthCount())
	}
}

func TestDiscover_PersistsSnapshot(t *testing.T) {
	tr := newFakeTransport()
	tr.devices = []cloud.DeviceInfo{cloudLight("dev-1", "H6160")}
	repo := newFakeRepo()

	c, _ := newTestCoordinator(t, tr, func(o *Options) { o.Repository = repo })

	if _, err := c.Discover(context.Background()); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	saved, err := repo.LoadDirectory(context.Background())
	if err != nil {
		t.Fatalf("LoadDirectory() error = %v", err)
	}
	if len(saved) != 1 || saved[0].ID != "dev-1" {
		t.Errorf("persisted directory = %+v, want dev-1", saved)
	}
}

func TestWarmStart(t *testing.T) {
	repo := newFakeRepo()
	if err := repo.SaveDirectory(context.Background(), []device.Device{
		{ID: "dev-1", SKU: "H6160", Name: "Restored", Type: "devices.types.light"},
		{ID: "grp-1", SKU: "GROUP", Name: "Group", Type: cloud.DeviceTypeGroup, IsGroup: true},
	}); err != nil {
		t.Fatalf("SaveDirectory() error = %v", err)
	}

	c, _ := newTestCoordinator(t, newFakeTransport(), func(o *Options) { o.Repository = repo })

	n, err := c.WarmStart(context.Background())
	if err != nil {
		t.Fatalf("WarmStart() error = %v", err)
	}
	if n != 2 {
		t.Errorf("WarmStart() = %d, want 2", n)
	}
	if _, err := c.Device("dev-1"); err != nil {
		t.Errorf("restored device missing: %v", err)
	}
	if st, ok := c.State("grp-1"); !ok || st.Source != device.SourceOptimistic {
		t.Error("restored group device should have a seeded optimistic state")
	}
}

func TestWarmStart_NoSnapshot(t *testing.T) {
	c, _ := newTestCoordinator(t, newFakeTransport(), func(o *Options) { o.Repository = newFakeRepo() })

	n, err := c.WarmStart(context.Background())
	if err != nil {
		t.Fatalf("WarmStart() error = %v", err)
	}
	if n != 0 {
		t.Errorf("WarmStart() = %d, want 0", n)
	}
}

// =============================================================================
// SendCommand Tests
// =============================================================================

func TestSendCommand_OptimisticState(t *testing.T) {
	tr := newFakeTransport()
	tr.devices = []cloud.DeviceInfo{cloudLight("dev-1", "H6160")}

	c, pub := newTestCoordinator(t, tr, nil)
	if _, err := c.Discover(context.Background()); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	if err := c.SendCommand(context.Background(), "dev-1", cloud.InstancePowerSwitch, true); err != nil {
		t.Fatalf("SendCommand() error = %v", err)
	}

	st, ok := c.State("dev-1")
	if !ok {
		t.Fatal("no state after command")
	}
	if !st.Power {
		t.Error("Power = false after power-on command")
	}
	if st.Source != device.SourceOptimistic {
		t.Errorf("Source = %s, want optimistic", st.Source)
	}

	// Power goes over the wire as 0/1.
	sent := tr.sentCommands()
	if len(sent) != 1 {
		t.Fatalf("sent %d commands, want 1", len(sent))
	}
	if sent[0].Type != cloud.CapabilityOnOff || sent[0].Value != 1 {
		t.Errorf("sent command = %+v, want on_off value 1", sent[0])
	}

	if len(pub.published("dev-1")) != 1 {
		t.Errorf("published %d states, want 1", len(pub.published("dev-1")))
	}
}

func TestSendCommand_OptimisticEvenWhenSendFails(t *testing.T) {
	tr := newFakeTransport()
	tr.devices = []cloud.DeviceInfo{cloudLight("dev-1", "H6160")}
	tr.commandErr = transientErr()

	c, pub := newTestCoordinator(t, tr, nil)
	if _, err := c.Discover(context.Background()); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	err := c.SendCommand(context.Background(), "dev-1", cloud.InstanceBrightness, 80)
	if !errors.Is(err, cloud.ErrTransient) {
		t.Fatalf("SendCommand() error = %v, want ErrTransient", err)
	}

	// The optimistic mutation and publish still happened.
	st, ok := c.State("dev-1")
	if !ok {
		t.Fatal("no state after failed command")
	}
	if st.Brightness != 80 || !st.Power {
		t.Errorf("state = %+v, want brightness 80 and power on", st)
	}
	if len(pub.published("dev-1")) != 1 {
		t.Errorf("published %d states, want 1", len(pub.published("dev-1")))
	}
}

func TestSendCommand_UnknownDevice(t *testing.T) {
	c, _ := newTestCoordinator(t, newFakeTransport(), nil)

	err := c.SendCommand(context.Background(), "missing", cloud.InstancePowerSwitch, true)
	if !errors.Is(err, device.ErrDeviceNotFound) {
		t.Errorf("SendCommand() error = %v, want ErrDeviceNotFound", err)
	}
}

func TestSendCommand_SegmentColor(t *testing.T) {
	tr := newFakeTransport()
	tr.devices = []cloud.DeviceInfo{cloudLight("dev-1", "H6160")}

	c, _ := newTestCoordinator(t, tr, nil)
	if _, err := c.Discover(context.Background()); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	value := device.SegmentColorValue{Segments: []int{0, 1}, Color: 0xFF0000}
	if err := c.SendCommand(context.Background(), "dev-1", cloud.InstanceSegmentedColorRGB, value); err != nil {
		t.Fatalf("SendCommand() error = %v", err)
	}

	sent := tr.sentCommands()
	wire, ok := sent[0].Value.(map[string]any)
	if !ok {
		t.Fatalf("wire value type = %T, want map", sent[0].Value)
	}
	if wire["rgb"] != 0xFF0000 {
		t.Errorf("wire rgb = %v, want %d", wire["rgb"], 0xFF0000)
	}

	st, _ := c.State("dev-1")
	if st.SegmentColors[0] != 0xFF0000 || st.SegmentColors[1] != 0xFF0000 {
		t.Errorf("segment colors = %v, want both 0xFF0000", st.SegmentColors)
	}
}

func TestSendCommand_TelemetryBrightnessCanonical(t *testing.T) {
	tr := newFakeTransport()
	tr.devices = []cloud.DeviceInfo{cloudLight("dev-1", "H6160")}

	tel := &fakeTelemetry{}
	c, _ := newTestCoordinator(t, tr, func(o *Options) { o.Telemetry = tel })
	if _, err := c.Discover(context.Background()); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	if err := c.SendCommand(context.Background(), "dev-1", cloud.InstanceBrightness, 75); err != nil {
		t.Fatalf("SendCommand() error = %v", err)
	}

	// The store keeps the native 1-100 value; the telemetry sample carries
	// the canonical 0-255 scale, so native 75 records as 191.
	st, _ := c.State("dev-1")
	if st.Brightness != 75 {
		t.Fatalf("stored brightness = %d, want native 75", st.Brightness)
	}
	samples := tel.samplesFor("dev-1")
	if len(samples) != 1 {
		t.Fatalf("recorded %d samples, want 1", len(samples))
	}
	if samples[0].brightness != 191 {
		t.Errorf("telemetry brightness = %d, want 191", samples[0].brightness)
	}
}

// =============================================================================
// Scene Cache Tests
// =============================================================================

func TestScenes_CachedForever(t *testing.T) {
	tr := newFakeTransport()
	tr.devices = []cloud.DeviceInfo{cloudLight("dev-1", "H6160")}
	tr.scenes["dev-1"] = []cloud.Scene{
		{Name: "Sunrise", Value: json.RawMessage(`{"id":1}`)},
	}

	c, _ := newTestCoordinator(t, tr, nil)
	if _, err := c.Discover(context.Background()); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	for i := 0; i < 3; i++ {
		scenes, err := c.Scenes(context.Background(), "dev-1", false)
		if err != nil {
			t.Fatalf("Scenes() error = %v", err)
		}
		if len(scenes) != 1 || scenes[0].Name != "Sunrise" {
			t.Fatalf("Scenes() = %+v", scenes)
		}
	}

	if tr.sceneCalls != 1 {
		t.Errorf("cloud scene calls = %d, want 1", tr.sceneCalls)
	}

	// forceRefresh bypasses the cache.
	if _, err := c.Scenes(context.Background(), "dev-1", true); err != nil {
		t.Fatalf("Scenes(force) error = %v", err)
	}
	if tr.sceneCalls != 2 {
		t.Errorf("cloud scene calls = %d after force, want 2", tr.sceneCalls)
	}
}

func TestScenes_EmptyListIsCached(t *testing.T) {
	tr := newFakeTransport()
	tr.devices = []cloud.DeviceInfo{cloudLight("dev-1", "H6160")}
	// No scenes scripted: the cloud answers with an empty list.

	c, _ := newTestCoordinator(t, tr, nil)
	if _, err := c.Discover(context.Background()); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	for i := 0; i < 2; i++ {
		scenes, err := c.Scenes(context.Background(), "dev-1", false)
		if err != nil {
			t.Fatalf("Scenes() error = %v", err)
		}
		if len(scenes) != 0 {
			t.Fatalf("Scenes() = %+v, want empty", scenes)
		}
	}

	// The confirmed empty answer is cached; no refetch.
	if tr.sceneCalls != 1 {
		t.Errorf("cloud scene calls = %d, want 1", tr.sceneCalls)
	}
}

func TestScenes_DIYSeparateNamespace(t *testing.T) {
	tr := newFakeTransport()
	tr.devices = []cloud.DeviceInfo{cloudLight("dev-1", "H6160")}
	tr.scenes["dev-1"] = []cloud.Scene{{Name: "Sunrise", Value: json.RawMessage(`1`)}}
	tr.diyScenes["dev-1"] = []cloud.Scene{{Name: "My Scene", Value: json.RawMessage(`2`)}}

	c, _ := newTestCoordinator(t, tr, nil)
	if _, err := c.Discover(context.Background()); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	dynamic, err := c.Scenes(context.Background(), "dev-1", false)
	if err != nil {
		t.Fatalf("Scenes() error = %v", err)
	}
	diy, err := c.DIYScenes(context.Background(), "dev-1", false)
	if err != nil {
		t.Fatalf("DIYScenes() error = %v", err)
	}

	if dynamic[0].Name != "Sunrise" || diy[0].Name != "My Scene" {
		t.Errorf("dynamic = %+v, diy = %+v", dynamic, diy)
	}
	if tr.sceneCalls != 1 || tr.diyCalls != 1 {
		t.Errorf("calls = %d/%d, want 1/1", tr.sceneCalls, tr.diyCalls)
	}
}

func TestScenes_SnapshotServesCacheMiss(t *testing.T) {
	tr := newFakeTransport()
	tr.devices = []cloud.DeviceInfo{cloudLight("dev-1", "H6160")}
	repo := newFakeRepo()
	if err := repo.SaveScenes(context.Background(), "dev-1", device.SceneKindDynamic, []cloud.Scene{
		{Name: "Persisted", Value: json.RawMessage(`9`)},
	}); err != nil {
		t.Fatalf("SaveScenes() error = %v", err)
	}

	c, _ := newTestCoordinator(t, tr, func(o *Options) { o.Repository = repo })
	if _, err := c.Discover(context.Background()); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	scenes, err := c.Scenes(context.Background(), "dev-1", false)
	if err != nil {
		t.Fatalf("Scenes() error = %v", err)
	}
	if len(scenes) != 1 || scenes[0].Name != "Persisted" {
		t.Fatalf("Scenes() = %+v, want persisted entry", scenes)
	}
	if tr.sceneCalls != 0 {
		t.Errorf("cloud scene calls = %d, want 0 (snapshot hit)", tr.sceneCalls)
	}
}

func TestScenes_SlowFetchDoesNotBlockOtherDevices(t *testing.T) {
	tr := newFakeTransport()
	tr.devices = []cloud.DeviceInfo{
		cloudLight("dev-1", "H6160"),
		cloudLight("dev-2", "H6001"),
	}
	tr.scenes["dev-1"] = []cloud.Scene{{Name: "Sunrise", Value: json.RawMessage(`1`)}}
	tr.scenes["dev-2"] = []cloud.Scene{{Name: "Sunset", Value: json.RawMessage(`2`)}}

	hold := make(chan struct{})
	tr.sceneHold["dev-1"] = hold

	c, _ := newTestCoordinator(t, tr, nil)
	if _, err := c.Discover(context.Background()); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	slow := make(chan error, 1)
	go func() {
		_, err := c.Scenes(context.Background(), "dev-1", false)
		slow <- err
	}()

	// Wait for the dev-1 fetch to park on its hold channel.
	deadline := time.After(2 * time.Second)
	for tr.sceneCallCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("dev-1 fetch never started")
		case <-time.After(time.Millisecond):
		}
	}

	// The dev-2 read must complete while dev-1's fetch is still in flight.
	fast := make(chan error, 1)
	go func() {
		_, err := c.Scenes(context.Background(), "dev-2", false)
		fast <- err
	}()
	select {
	case err := <-fast:
		if err != nil {
			t.Fatalf("Scenes(dev-2) error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("scene read for another device blocked behind a slow fetch")
	}

	close(hold)
	if err := <-slow; err != nil {
		t.Fatalf("Scenes(dev-1) error = %v", err)
	}
}

func TestScenes_ConcurrentCallersShareOneFetch(t *testing.T) {
	tr := newFakeTransport()
	tr.devices = []cloud.DeviceInfo{cloudLight("dev-1", "H6160")}
	tr.scenes["dev-1"] = []cloud.Scene{{Name: "Sunrise", Value: json.RawMessage(`1`)}}

	hold := make(chan struct{})
	tr.sceneHold["dev-1"] = hold

	c, _ := newTestCoordinator(t, tr, nil)
	if _, err := c.Discover(context.Background()); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	const callers = 4
	results := make(chan error, callers)
	for i := 0; i < callers; i++ {
		go func() {
			scenes, err := c.Scenes(context.Background(), "dev-1", false)
			if err == nil && (len(scenes) != 1 || scenes[0].Name != "Sunrise") {
				err = fmt.Errorf("unexpected scenes %+v", scenes)
			}
			results <- err
		}()
	}

	// Let the winning fetch start, then give the rest a moment to queue
	// behind it before releasing.
	deadline := time.After(2 * time.Second)
	for tr.sceneCallCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("no fetch started")
		case <-time.After(time.Millisecond):
		}
	}
	time.Sleep(10 * time.Millisecond)
	close(hold)

	for i := 0; i < callers; i++ {
		if err := <-results; err != nil {
			t.Fatalf("Scenes() error = %v", err)
		}
	}

	// Queued callers share the in-flight fetch; stragglers hit the cache.
	if n := tr.sceneCallCount(); n != 1 {
		t.Errorf("cloud scene calls = %d, want 1", n)
	}
}

func TestActivateScene(t *testing.T) {
	tr := newFakeTransport()
	tr.devices = []cloud.DeviceInfo{cloudLight("dev-1", "H6160")}
	tr.scenes["dev-1"] = []cloud.Scene{
		{Name: "Sunrise", Value: json.RawMessage(`{"id":1,"paramId":10}`)},
	}

	c, _ := newTestCoordinator(t, tr, nil)
	if _, err := c.Discover(context.Background()); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	if err := c.ActivateScene(context.Background(), "dev-1", "Sunrise", device.SceneKindDynamic); err != nil {
		t.Fatalf("ActivateScene() error = %v", err)
	}

	// The raw cached value goes over the wire.
	sent := tr.sentCommands()
	if len(sent) != 1 {
		t.Fatalf("sent %d commands, want 1", len(sent))
	}
	if sent[0].Instance != cloud.InstanceLightScene {
		t.Errorf("instance = %s, want lightScene", sent[0].Instance)
	}
	raw, ok := sent[0].Value.(json.RawMessage)
	if !ok || string(raw) != `{"id":1,"paramId":10}` {
		t.Errorf("wire value = %v, want raw scene value", sent[0].Value)
	}

	// The optimistic state records the name.
	st, _ := c.State("dev-1")
	if st.ActiveScene != "Sunrise" {
		t.Errorf("ActiveScene = %q, want Sunrise", st.ActiveScene)
	}
}

func TestActivateScene_NotFound(t *testing.T) {
	tr := newFakeTransport()
	tr.devices = []cloud.DeviceInfo{cloudLight("dev-1", "H6160")}

	c, _ := newTestCoordinator(t, tr, nil)
	if _, err := c.Discover(context.Background()); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	err := c.ActivateScene(context.Background(), "dev-1", "Nope", device.SceneKindDynamic)
	if !errors.Is(err, ErrSceneNotFound) {
		t.Errorf("ActivateScene() error = %v, want ErrSceneNotFound", err)
	}
	if len(tr.sentCommands()) != 0 {
		t.Error("no command should be sent for an unknown scene")
	}
}
