package cloud

import "encoding/json"

// Capability type identifiers used by the cloud API.
const (
	CapabilityOnOff        = "devices.capabilities.on_off"
	CapabilityRange        = "devices.capabilities.range"
	CapabilityColorSetting = "devices.capabilities.color_setting"
	CapabilitySegmentColor = "devices.capabilities.segment_color_setting"
	CapabilityDynamicScene = "devices.capabilities.dynamic_scene"
	CapabilityToggle       = "devices.capabilities.toggle"
	CapabilityOnline       = "devices.capabilities.online"
)

// Capability instance identifiers used by the cloud API.
const (
	InstancePowerSwitch         = "powerSwitch"
	InstanceBrightness          = "brightness"
	InstanceColorRGB            = "colorRgb"
	InstanceColorTemperatureK   = "colorTemperatureK"
	InstanceLightScene          = "lightScene"
	InstanceDIYScene            = "diyScene"
	InstanceSegmentedColorRGB   = "segmentedColorRgb"
	InstanceSegmentedBrightness = "segmentedBrightness"
	InstanceOnline              = "online"
)

// DeviceTypeGroup marks group pseudo-devices in discovery responses.
// Group devices accept commands but have no queryable state.
const DeviceTypeGroup = "devices.types.group"

// Rate limit response headers. The cloud reports effective quotas on every
// response; values here override the configured defaults.
const (
	headerRateLimitMinute = "X-RateLimit-Limit-Minute"
	headerRateLimitDay    = "X-RateLimit-Limit-Day"
)

// DeviceInfo describes one device as reported by discovery.
type DeviceInfo struct {
	Device       string           `json:"device"`
	SKU          string           `json:"sku"`
	DeviceName   string           `json:"deviceName"`
	Type         string           `json:"type"`
	Capabilities []CapabilityInfo `json:"capabilities"`
}

// CapabilityInfo describes one capability a device advertises.
type CapabilityInfo struct {
	Type       string               `json:"type"`
	Instance   string               `json:"instance"`
	Parameters *CapabilityParameter `json:"parameters,omitempty"`
}

// CapabilityParameter describes the value space of a capability.
// Exactly one of Range, Options or Fields is populated depending on DataType.
type CapabilityParameter struct {
	DataType string      `json:"dataType"`
	Range    *RangeSpec  `json:"range,omitempty"`
	Options  []Option    `json:"options,omitempty"`
	Fields   []FieldSpec `json:"fields,omitempty"`
}

// RangeSpec bounds a numeric capability value.
type RangeSpec struct {
	Min       int `json:"min"`
	Max       int `json:"max"`
	Precision int `json:"precision,omitempty"`
}

// Option is one selectable value of an enum capability (scenes, modes).
// Value shape varies per capability, so it stays raw until a command echoes
// it back to the cloud.
type Option struct {
	Name  string          `json:"name"`
	Value json.RawMessage `json:"value"`
}

// FieldSpec describes one field of a STRUCT capability value, such as the
// segment index array of segmentedColorRgb.
type FieldSpec struct {
	FieldName    string     `json:"fieldName"`
	DataType     string     `json:"dataType,omitempty"`
	Size         *RangeSpec `json:"size,omitempty"`
	ElementRange *RangeSpec `json:"elementRange,omitempty"`
	Range        *RangeSpec `json:"range,omitempty"`
	Required     bool       `json:"required,omitempty"`
}

// CapabilityCommand is one control instruction sent to a device.
type CapabilityCommand struct {
	Type     string `json:"type"`
	Instance string `json:"instance"`
	Value    any    `json:"value"`
}

// StateCapability is one capability reading from a state query.
type StateCapability struct {
	Type     string `json:"type"`
	Instance string `json:"instance"`
	State    struct {
		Value json.RawMessage `json:"value"`
	} `json:"state"`
}

// DeviceStateInfo is the parsed payload of a state query.
type DeviceStateInfo struct {
	Device       string            `json:"device"`
	SKU          string            `json:"sku"`
	Capabilities []StateCapability `json:"capabilities"`
}

// Scene is one activatable scene from the scene list endpoints.
type Scene struct {
	Name  string          `json:"name"`
	Value json.RawMessage `json:"value"`
}

// Wire envelopes. Discovery uses "data"; every other endpoint wraps its
// result in requestId+payload.

type deviceListResponse struct {
	Code    int          `json:"code"`
	Message string       `json:"message"`
	Data    []DeviceInfo `json:"data"`
}

type requestEnvelope struct {
	RequestID string `json:"requestId"`
	Payload   any    `json:"payload"`
}

type deviceRequestPayload struct {
	SKU    string `json:"sku"`
	Device string `json:"device"`
}

type controlRequestPayload struct {
	SKU        string            `json:"sku"`
	Device     string            `json:"device"`
	Capability CapabilityCommand `json:"capability"`
}

type stateResponse struct {
	RequestID string          `json:"requestId"`
	Code      int             `json:"code"`
	Msg       string          `json:"msg"`
	Payload   DeviceStateInfo `json:"payload"`
}

type controlResponse struct {
	RequestID string `json:"requestId"`
	Code      int    `json:"code"`
	Msg       string `json:"msg"`
}

type sceneResponse struct {
	RequestID string `json:"requestId"`
	Code      int    `json:"code"`
	Msg       string `json:"msg"`
	Payload   struct {
		SKU          string           `json:"sku"`
		Device       string           `json:"device"`
		Capabilities []CapabilityInfo `json:"capabilities"`
	} `json:"payload"`
}
