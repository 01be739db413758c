package device

import (
	"fmt"
	"strconv"

	"github.com/veluxhome/lumen-core/internal/cloud"
)

// UpdateKind classifies an incoming state update for Merge.
type UpdateKind int

// Update kinds.
const (
	// KindAPI is a confirmed reading from a cloud state query.
	KindAPI UpdateKind = iota

	// KindOptimistic is a locally assumed update after a command.
	KindOptimistic

	// KindStale marks a failed refresh: previous values are kept.
	KindStale
)

// SegmentColorValue is the optimistic value of a segment colour command.
type SegmentColorValue struct {
	Segments []int
	Color    int
}

// SegmentBrightnessValue is the optimistic value of a segment brightness
// command. Segment brightness is write-only; it adjusts no tracked field
// beyond marking the state optimistic.
type SegmentBrightnessValue struct {
	Segments   []int
	Brightness int
}

// Merge combines a previous state with an incoming update.
//
// Precedence rules:
//   - KindAPI: incoming replaces wholesale, except ActiveScene and
//     SegmentColors, which only commands produce; when the incoming reading
//     omits them the previous optimistic values survive.
//   - KindOptimistic: incoming is taken as-is and tagged optimistic.
//   - KindStale: incoming is ignored; previous values are kept and tagged
//     stale so consumers can see the reading is no longer confirmed.
//
// Merge is pure: neither input is mutated.
func Merge(prev *State, incoming State, kind UpdateKind) State {
	switch kind {
	case KindOptimistic:
		out := incoming.Clone()
		out.Source = SourceOptimistic
		return out

	case KindStale:
		if prev == nil {
			// Nothing to preserve; an unknown device stays unknown.
			out := incoming.Clone()
			out.Source = SourceStale
			return out
		}
		out := prev.Clone()
		out.Source = SourceStale
		return out

	default: // KindAPI
		out := incoming.Clone()
		out.Source = SourceAPI
		if prev != nil {
			if out.ActiveScene == "" {
				out.ActiveScene = prev.ActiveScene
			}
			if out.SegmentColors == nil && prev.SegmentColors != nil {
				out.SegmentColors = make(map[int]int, len(prev.SegmentColors))
				for k, v := range prev.SegmentColors {
					out.SegmentColors[k] = v
				}
			}
		}
		return out
	}
}

// ApplyCommand overlays one capability command onto a state, producing the
// optimistic post-command state. Only the commanded fields change.
//
// Colour and colour temperature are mutually exclusive: commanding one
// clears the other.
func ApplyCommand(prev State, instance string, value any) State {
	out := prev.Clone()
	out.Source = SourceOptimistic

	switch instance {
	case cloud.InstancePowerSwitch:
		out.Power = toInt(value) != 0

	case cloud.InstanceBrightness:
		out.Brightness = toInt(value)
		// Setting any brightness implies the device is on.
		if out.Brightness > 0 {
			out.Power = true
		}

	case cloud.InstanceColorRGB:
		out.Color = toInt(value)
		out.ColorTempK = 0

	case cloud.InstanceColorTemperatureK:
		out.ColorTempK = toInt(value)
		out.Color = 0

	case cloud.InstanceLightScene, cloud.InstanceDIYScene:
		if name, ok := value.(string); ok {
			out.ActiveScene = name
		} else {
			out.ActiveScene = fmt.Sprint(value)
		}

	case cloud.InstanceSegmentedColorRGB:
		if v, ok := value.(SegmentColorValue); ok {
			if out.SegmentColors == nil {
				out.SegmentColors = make(map[int]int, len(v.Segments))
			}
			for _, seg := range v.Segments {
				out.SegmentColors[seg] = v.Color
			}
		}

	case cloud.InstanceSegmentedBrightness:
		// Write-only; no tracked field to update.
	}

	return out
}

// toInt coerces the loosely typed command values the cloud accepts.
func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case bool:
		if n {
			return 1
		}
		return 0
	case string:
		i, _ := strconv.Atoi(n) //nolint:errcheck // Zero on failure is the contract
		return i
	default:
		return 0
	}
}

// StateFromCloud converts a cloud state reading into a State.
// Scene and segment colours never appear in readings; Merge preserves any
// previous optimistic values for those fields.
func StateFromCloud(info *cloud.DeviceStateInfo) State {
	s := State{DeviceID: info.Device}

	for _, c := range info.Capabilities {
		switch c.Instance {
		case cloud.InstanceOnline:
			s.Online = parseBool(c.State.Value)
		case cloud.InstancePowerSwitch:
			s.Power = parseInt(c.State.Value) != 0
		case cloud.InstanceBrightness:
			s.Brightness = parseInt(c.State.Value)
		case cloud.InstanceColorRGB:
			if v := parseInt(c.State.Value); v > 0 {
				s.Color = v
				s.ColorTempK = 0
			}
		case cloud.InstanceColorTemperatureK:
			if v := parseInt(c.State.Value); v > 0 {
				s.ColorTempK = v
				s.Color = 0
			}
		}
	}

	return s
}

// parseInt reads a raw JSON value as an integer, tolerating quoted numbers.
func parseInt(raw []byte) int {
	s := string(raw)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int(f)
}

// parseBool reads a raw JSON value as a boolean, tolerating 0/1 numerics.
func parseBool(raw []byte) bool {
	switch string(raw) {
	case "true", `"true"`, "1":
		return true
	default:
		return false
	}
}
