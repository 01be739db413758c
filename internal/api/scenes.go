package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/veluxhome/lumen-core/internal/coordinator"
	"github.com/veluxhome/lumen-core/internal/device"
)

// handleListScenes returns the dynamic scenes available to a device.
//
// Scene lists are cached indefinitely; pass ?refresh=true to spend quota on
// a fresh fetch. An empty list is a confirmed answer, not a cache miss.
func (s *Server) handleListScenes(w http.ResponseWriter, r *http.Request) {
	s.listScenes(w, r, device.SceneKindDynamic)
}

// handleListDIYScenes returns the user-authored DIY scenes for a device.
func (s *Server) handleListDIYScenes(w http.ResponseWriter, r *http.Request) {
	s.listScenes(w, r, device.SceneKindDIY)
}

func (s *Server) listScenes(w http.ResponseWriter, r *http.Request, kind device.SceneKind) {
	id := chi.URLParam(r, "id")
	force := r.URL.Query().Get("refresh") == "true"

	fetch := s.coordinator.Scenes
	if kind == device.SceneKindDIY {
		fetch = s.coordinator.DIYScenes
	}

	scenes, err := fetch(r.Context(), id, force)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeCloudError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"scenes": scenes, "count": len(scenes)})
}

// activateSceneRequest is the request body for POST /devices/{id}/scenes/activate.
type activateSceneRequest struct {
	Name string `json:"name"`
	DIY  bool   `json:"diy"`
}

// handleActivateScene activates a scene on a device by name.
//
// The scene is resolved from the cached list; the response carries the
// optimistic post-activation state with the scene name recorded.
func (s *Server) handleActivateScene(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req activateSceneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Name == "" {
		writeBadRequest(w, "name is required")
		return
	}

	kind := device.SceneKindDynamic
	if req.DIY {
		kind = device.SceneKindDIY
	}

	err := s.coordinator.ActivateScene(r.Context(), id, req.Name, kind)
	if err != nil {
		switch {
		case errors.Is(err, device.ErrDeviceNotFound):
			writeNotFound(w, "device not found")
			return
		case errors.Is(err, coordinator.ErrSceneNotFound):
			writeNotFound(w, "scene not found")
			return
		}
		// A failed send still applied the optimistic state; report it the
		// same way handleSendCommand does.
	}

	st, _ := s.coordinator.State(id)
	resp := commandResponse{Delivered: err == nil, State: st}
	if err != nil {
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}
