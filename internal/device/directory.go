package device

import "sync"

// Directory holds the set of discovered devices.
//
// The device set is immutable between discoveries: Replace swaps the whole
// map atomically and individual devices are never mutated in place. Readers
// always receive deep copies, so a handler can modify what it got without
// corrupting the directory.
//
// All public methods are thread-safe.
type Directory struct {
	mu      sync.RWMutex
	devices map[string]*Device
}

// NewDirectory creates an empty directory.
func NewDirectory() *Directory {
	return &Directory{
		devices: make(map[string]*Device),
	}
}

// Replace swaps the directory contents with a freshly discovered set.
func (d *Directory) Replace(devices []Device) {
	next := make(map[string]*Device, len(devices))
	for i := range devices {
		dev := devices[i]
		next[dev.ID] = dev.DeepCopy()
	}

	d.mu.Lock()
	d.devices = next
	d.mu.Unlock()
}

// Get retrieves a device by ID.
// Returns ErrDeviceNotFound if the device does not exist.
func (d *Directory) Get(id string) (*Device, error) {
	d.mu.RLock()
	dev, ok := d.devices[id]
	d.mu.RUnlock()

	if !ok {
		return nil, ErrDeviceNotFound
	}
	return dev.DeepCopy(), nil
}

// List returns all devices.
func (d *Directory) List() []Device {
	d.mu.RLock()
	defer d.mu.RUnlock()

	devices := make([]Device, 0, len(d.devices))
	for _, dev := range d.devices {
		devices = append(devices, *dev.DeepCopy())
	}
	return devices
}

// ListRefreshable returns the devices eligible for state queries.
// Group pseudo-devices are excluded; the cloud has no state for them.
func (d *Directory) ListRefreshable() []Device {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var devices []Device
	for _, dev := range d.devices {
		if dev.IsGroup {
			continue
		}
		devices = append(devices, *dev.DeepCopy())
	}
	return devices
}

// Count returns the number of devices in the directory.
func (d *Directory) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.devices)
}
