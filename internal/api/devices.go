package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/veluxhome/lumen-core/internal/cloud"
	"github.com/veluxhome/lumen-core/internal/device"
)

// handleListDevices returns the device directory.
//
// The directory is served from memory and never spends cloud quota. Group
// pseudo-devices appear only when the coordinator was configured to include
// them.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	devices := s.coordinator.Devices()
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleGetDevice returns a single device by ID.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	dev, err := s.coordinator.Device(id)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}

	writeJSON(w, http.StatusOK, dev)
}

// handleGetDeviceState returns the last known state of a device.
//
// The source field tells the caller how trustworthy the reading is: api for
// a confirmed cloud reading, optimistic after a command, stale after a failed
// refresh. 404 means the device has never reported and never been commanded.
func (s *Server) handleGetDeviceState(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := s.coordinator.Device(id); err != nil {
		writeNotFound(w, "device not found")
		return
	}

	st, ok := s.coordinator.State(id)
	if !ok {
		writeNotFound(w, "no state known for device")
		return
	}

	writeJSON(w, http.StatusOK, st)
}

// handleListStates returns a snapshot of every known device state.
func (s *Server) handleListStates(w http.ResponseWriter, _ *http.Request) {
	states := s.coordinator.States()
	writeJSON(w, http.StatusOK, map[string]any{"states": states, "count": len(states)})
}

// commandRequest is the request body for POST /devices/{id}/command.
type commandRequest struct {
	Instance string          `json:"instance"`
	Value    json.RawMessage `json:"value"`
}

// commandResponse is the response body for POST /devices/{id}/command.
//
// Delivered reports whether the cloud accepted the send. The state is the
// optimistic post-command state and is applied either way; a failed send is
// corrected by the next refresh if the device really missed the command.
type commandResponse struct {
	Delivered bool         `json:"delivered"`
	Error     string       `json:"error,omitempty"`
	State     device.State `json:"state"`
}

// handleSendCommand issues one capability command to a device.
func (s *Server) handleSendCommand(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Instance == "" {
		writeBadRequest(w, "instance is required")
		return
	}

	value, err := decodeCommandValue(req.Instance, req.Value)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	sendErr := s.coordinator.SendCommand(r.Context(), id, req.Instance, value)
	if sendErr != nil && errors.Is(sendErr, device.ErrDeviceNotFound) {
		writeNotFound(w, "device not found")
		return
	}

	st, _ := s.coordinator.State(id)
	resp := commandResponse{Delivered: sendErr == nil, State: st}
	if sendErr != nil {
		resp.Error = sendErr.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// segmentColorRequest mirrors the wire shape of a segment colour command.
type segmentColorRequest struct {
	Segments []int `json:"segment"`
	RGB      int   `json:"rgb"`
}

// segmentBrightnessRequest mirrors the wire shape of a segment brightness
// command.
type segmentBrightnessRequest struct {
	Segments   []int `json:"segment"`
	Brightness int   `json:"brightness"`
}

// decodeCommandValue converts the raw JSON command value into the Go value
// the coordinator expects for the given capability instance.
func decodeCommandValue(instance string, raw json.RawMessage) (any, error) {
	if len(raw) == 0 {
		return nil, errors.New("value is required")
	}

	switch instance {
	case cloud.InstancePowerSwitch:
		var v bool
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, errors.New("powerSwitch value must be a boolean")
		}
		return v, nil

	case cloud.InstanceBrightness, cloud.InstanceColorRGB, cloud.InstanceColorTemperatureK:
		var v int
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, errors.New(instance + " value must be an integer")
		}
		return v, nil

	case cloud.InstanceSegmentedColorRGB:
		var v segmentColorRequest
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, errors.New("segmentedColorRgb value must be {segment, rgb}")
		}
		return device.SegmentColorValue{Segments: v.Segments, Color: v.RGB}, nil

	case cloud.InstanceSegmentedBrightness:
		var v segmentBrightnessRequest
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, errors.New("segmentedBrightness value must be {segment, brightness}")
		}
		return device.SegmentBrightnessValue{Segments: v.Segments, Brightness: v.Brightness}, nil

	default:
		// Unrecognised instances pass through untyped; the cloud validates.
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, errors.New("invalid command value")
		}
		return v, nil
	}
}
