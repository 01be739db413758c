package device

import "time"

// Source identifies where a state value came from.
type Source string

// State sources.
const (
	// SourceAPI marks state confirmed by a cloud state query.
	SourceAPI Source = "api"

	// SourceOptimistic marks state assumed locally after a command.
	SourceOptimistic Source = "optimistic"

	// SourceStale marks a previous value kept after a failed refresh.
	SourceStale Source = "stale"
)

// State is the mutable runtime state of one device.
//
// Color and ColorTempK are mutually exclusive: setting one clears the other,
// mirroring device behaviour where a colour command leaves temperature mode
// and vice versa.
type State struct {
	// DeviceID links the state to its device.
	DeviceID string `json:"device_id"`

	// Online reports cloud connectivity. Always false for group devices.
	Online bool `json:"online"`

	// Power is the on/off state.
	Power bool `json:"power"`

	// Brightness in the device's native range (see Device.BrightnessRange).
	Brightness int `json:"brightness"`

	// Color is the RGB colour packed as 0xRRGGBB, or 0 when in
	// temperature mode.
	Color int `json:"color"`

	// ColorTempK is the colour temperature in Kelvin, or 0 when in
	// colour mode.
	ColorTempK int `json:"color_temp_k"`

	// SegmentColors maps segment index to packed RGB for devices with
	// addressable segments. Only ever populated optimistically; state
	// queries do not report per-segment colour.
	SegmentColors map[int]int `json:"segment_colors,omitempty"`

	// ActiveScene is the last scene activated by a command. Only ever
	// populated optimistically; state queries do not report scenes.
	ActiveScene string `json:"active_scene,omitempty"`

	// UpdatedAt is when this state was last written.
	UpdatedAt time.Time `json:"updated_at"`

	// Source tags where the current values came from.
	Source Source `json:"source"`
}

// Clone returns an independent copy of the state.
func (s State) Clone() State {
	out := s
	if s.SegmentColors != nil {
		out.SegmentColors = make(map[int]int, len(s.SegmentColors))
		for k, v := range s.SegmentColors {
			out.SegmentColors[k] = v
		}
	}
	return out
}
