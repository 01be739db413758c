package device

import (
	"encoding/json"

	"github.com/veluxhome/lumen-core/internal/cloud"
)

// Default brightness range for devices that advertise no explicit range.
// Most products use 0-100; a few report 0-254 in their capability parameters.
const (
	defaultBrightnessMin = 0
	defaultBrightnessMax = 100
)

// groupSKUs lists product SKUs known to be group pseudo-devices even when
// discovery reports them with an ordinary light type.
var groupSKUs = map[string]struct{}{
	"GROUP": {},
	"H70B1": {},
}

// Device is the immutable description of one cloud-controlled light.
// It is fixed at discovery; state lives in DeviceState.
type Device struct {
	// ID is the cloud device identifier (MAC-style).
	ID string `json:"id"`

	// SKU is the product model, required alongside ID on every cloud call.
	SKU string `json:"sku"`

	// Name is the user-assigned device name.
	Name string `json:"name"`

	// Type is the cloud device type (e.g. "devices.types.light").
	Type string `json:"type"`

	// IsGroup marks group pseudo-devices. Groups accept commands but
	// report no readable state and must never be state-queried.
	IsGroup bool `json:"is_group"`

	// Capabilities are the control surfaces the device advertised.
	Capabilities []Capability `json:"capabilities"`
}

// Capability is one advertised control surface.
type Capability struct {
	Type       string     `json:"type"`
	Instance   string     `json:"instance"`
	Parameters *Parameter `json:"parameters,omitempty"`
}

// Parameter describes a capability's value space.
type Parameter struct {
	DataType string   `json:"data_type"`
	Range    *Range   `json:"range,omitempty"`
	Options  []Option `json:"options,omitempty"`
	Fields   []Field  `json:"fields,omitempty"`
}

// Range bounds a numeric capability value.
type Range struct {
	Min       int `json:"min"`
	Max       int `json:"max"`
	Precision int `json:"precision,omitempty"`
}

// Option is one selectable value of an enum capability.
type Option struct {
	Name  string          `json:"name"`
	Value json.RawMessage `json:"value"`
}

// Field describes one field of a struct-valued capability, such as the
// segment index array of a segment colour command.
type Field struct {
	Name         string `json:"name"`
	Size         *Range `json:"size,omitempty"`
	ElementRange *Range `json:"element_range,omitempty"`
	Range        *Range `json:"range,omitempty"`
	Required     bool   `json:"required,omitempty"`
}

// FromCloud converts a discovery record into the internal device model,
// deriving the group flag from device type and known group SKUs.
func FromCloud(info cloud.DeviceInfo) Device {
	d := Device{
		ID:      info.Device,
		SKU:     info.SKU,
		Name:    info.DeviceName,
		Type:    info.Type,
		IsGroup: isGroup(info),
	}

	for _, c := range info.Capabilities {
		capability := Capability{
			Type:     c.Type,
			Instance: c.Instance,
		}
		if c.Parameters != nil {
			capability.Parameters = convertParameter(c.Parameters)
		}
		d.Capabilities = append(d.Capabilities, capability)
	}

	return d
}

// isGroup reports whether a discovery record describes a group pseudo-device.
func isGroup(info cloud.DeviceInfo) bool {
	if info.Type == cloud.DeviceTypeGroup {
		return true
	}
	_, ok := groupSKUs[info.SKU]
	return ok
}

func convertParameter(p *cloud.CapabilityParameter) *Parameter {
	out := &Parameter{DataType: p.DataType}

	if p.Range != nil {
		out.Range = &Range{Min: p.Range.Min, Max: p.Range.Max, Precision: p.Range.Precision}
	}
	for _, o := range p.Options {
		out.Options = append(out.Options, Option{Name: o.Name, Value: o.Value})
	}
	for _, f := range p.Fields {
		field := Field{Name: f.FieldName, Required: f.Required}
		if f.Size != nil {
			field.Size = &Range{Min: f.Size.Min, Max: f.Size.Max}
		}
		if f.ElementRange != nil {
			field.ElementRange = &Range{Min: f.ElementRange.Min, Max: f.ElementRange.Max}
		}
		if f.Range != nil {
			field.Range = &Range{Min: f.Range.Min, Max: f.Range.Max, Precision: f.Range.Precision}
		}
		out.Fields = append(out.Fields, field)
	}

	return out
}

// capability returns the first capability matching type and instance.
func (d *Device) capability(capType, instance string) *Capability {
	for i := range d.Capabilities {
		if d.Capabilities[i].Type == capType && d.Capabilities[i].Instance == instance {
			return &d.Capabilities[i]
		}
	}
	return nil
}

// SupportsOnOff reports whether the device has a power switch.
func (d *Device) SupportsOnOff() bool {
	return d.capability(cloud.CapabilityOnOff, cloud.InstancePowerSwitch) != nil
}

// SupportsBrightness reports whether the device supports brightness control.
func (d *Device) SupportsBrightness() bool {
	return d.capability(cloud.CapabilityRange, cloud.InstanceBrightness) != nil
}

// SupportsColor reports whether the device supports RGB colour.
func (d *Device) SupportsColor() bool {
	return d.capability(cloud.CapabilityColorSetting, cloud.InstanceColorRGB) != nil
}

// SupportsColorTemp reports whether the device supports colour temperature.
func (d *Device) SupportsColorTemp() bool {
	return d.capability(cloud.CapabilityColorSetting, cloud.InstanceColorTemperatureK) != nil
}

// SupportsScenes reports whether the device supports dynamic scenes.
func (d *Device) SupportsScenes() bool {
	return d.capability(cloud.CapabilityDynamicScene, cloud.InstanceLightScene) != nil
}

// SupportsSegments reports whether the device supports per-segment colour.
func (d *Device) SupportsSegments() bool {
	return d.capability(cloud.CapabilitySegmentColor, cloud.InstanceSegmentedColorRGB) != nil
}

// BrightnessRange returns the device's native brightness bounds.
// Defaults to 0-100 when the capability advertises no range.
func (d *Device) BrightnessRange() (min, max int) {
	c := d.capability(cloud.CapabilityRange, cloud.InstanceBrightness)
	if c == nil || c.Parameters == nil || c.Parameters.Range == nil {
		return defaultBrightnessMin, defaultBrightnessMax
	}
	return c.Parameters.Range.Min, c.Parameters.Range.Max
}

// ColorTempRange returns the supported colour temperature bounds in Kelvin.
// Returns (0, 0) when colour temperature is unsupported.
func (d *Device) ColorTempRange() (min, max int) {
	c := d.capability(cloud.CapabilityColorSetting, cloud.InstanceColorTemperatureK)
	if c == nil || c.Parameters == nil || c.Parameters.Range == nil {
		return 0, 0
	}
	return c.Parameters.Range.Min, c.Parameters.Range.Max
}

// SegmentCount returns the number of addressable segments, derived from the
// segment field of the segmented colour capability. Returns 0 when the
// device has no segments.
func (d *Device) SegmentCount() int {
	c := d.capability(cloud.CapabilitySegmentColor, cloud.InstanceSegmentedColorRGB)
	if c == nil || c.Parameters == nil {
		return 0
	}
	for _, f := range c.Parameters.Fields {
		if f.Name == "segment" && f.Size != nil {
			return f.Size.Max
		}
	}
	return 0
}

// DeepCopy returns an independent copy of the device.
// Used to keep directory snapshots isolated from callers.
func (d *Device) DeepCopy() *Device {
	out := *d

	if d.Capabilities != nil {
		out.Capabilities = make([]Capability, len(d.Capabilities))
		for i, c := range d.Capabilities {
			out.Capabilities[i] = c
			if c.Parameters != nil {
				p := *c.Parameters
				if c.Parameters.Range != nil {
					r := *c.Parameters.Range
					p.Range = &r
				}
				if c.Parameters.Options != nil {
					p.Options = make([]Option, len(c.Parameters.Options))
					for j, o := range c.Parameters.Options {
						p.Options[j] = Option{
							Name:  o.Name,
							Value: append(json.RawMessage(nil), o.Value...),
						}
					}
				}
				if c.Parameters.Fields != nil {
					p.Fields = make([]Field, len(c.Parameters.Fields))
					for j, f := range c.Parameters.Fields {
						p.Fields[j] = f
						if f.Size != nil {
							s := *f.Size
							p.Fields[j].Size = &s
						}
						if f.ElementRange != nil {
							e := *f.ElementRange
							p.Fields[j].ElementRange = &e
						}
						if f.Range != nil {
							r := *f.Range
							p.Fields[j].Range = &r
						}
					}
				}
				out.Capabilities[i].Parameters = &p
			}
		}
	}

	return &out
}
