package api

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/input-dock-core/internal/controller"
)

// =============================================================================
// DEVICE ENDPOINTS
// =============================================================================

// deviceIDParam extracts and decodes the device ID path parameter.
//
// Device IDs are derived from HID device paths and contain slashes and
// hash characters, so clients send them percent-encoded.
func deviceIDParam(r *http.Request) string {
	raw := chi.URLParam(r, "id")
	id, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return id
}

// handleListDevices returns all currently connected devices.
//
// GET /api/v1/devices
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	devices := s.manager.ConnectedDevices()

	writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"count":   len(devices),
	})
}

// handleDeviceStats returns aggregate counts for connected devices.
//
// GET /api/v1/devices/stats
func (s *Server) handleDeviceStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.manager.GetStats())
}

// handleGetDevice returns a single device by ID.
//
// GET /api/v1/devices/{id}
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := deviceIDParam(r)
	if id == "" {
		writeBadRequest(w, "Device ID is required")
		return
	}

	dev, ok := s.manager.GetDevice(id)
	if !ok {
		writeNotFound(w, "Device not found")
		return
	}

	writeJSON(w, http.StatusOK, dev)
}

// slotRequest is the body for slot assignment.
type slotRequest struct {
	Slot int `json:"slot"`
}

// handleSetDeviceSlot manually assigns a player slot to a device.
//
// PUT /api/v1/devices/{id}/slot
func (s *Server) handleSetDeviceSlot(w http.ResponseWriter, r *http.Request) {
	if !s.requireOperator(w, r) {
		return
	}

	id := deviceIDParam(r)
	if id == "" {
		writeBadRequest(w, "Device ID is required")
		return
	}

	var req slotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "Invalid JSON body")
		return
	}
	if req.Slot < controller.SlotUnassigned {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "Slot must be -1 (unassigned) or a non-negative index")
		return
	}

	if _, ok := s.manager.GetDevice(id); !ok {
		writeNotFound(w, "Device not found")
		return
	}

	s.manager.SetSlot(id, req.Slot)

	dev, ok := s.manager.GetDevice(id)
	if !ok {
		writeNotFound(w, "Device not found")
		return
	}

	s.logger.Info("device slot assigned",
		"device_id", id,
		"slot", req.Slot,
	)

	writeJSON(w, http.StatusOK, dev)
}

// handleWirelessDiscovery opens a wireless pairing window.
//
// New wireless controllers announce themselves only while pairing, so the
// discovery backend polls faster for a bounded period. The completion is
// broadcast over WebSocket so UIs can close their pairing dialog.
//
// POST /api/v1/discovery/wireless
func (s *Server) handleWirelessDiscovery(w http.ResponseWriter, r *http.Request) {
	if !s.requireOperator(w, r) {
		return
	}

	s.manager.StartWirelessDiscovery(func() {
		s.logger.Info("wireless discovery window closed")
		if s.hub != nil {
			s.hub.Broadcast("discovery.complete", map[string]any{})
		}
	})

	s.logger.Info("wireless discovery window opened")

	writeJSON(w, http.StatusAccepted, map[string]any{
		"status": "discovering",
	})
}
