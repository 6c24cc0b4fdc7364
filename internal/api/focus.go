package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/input-dock-core/internal/focus"
)

// handleGetFocus reports whether a surface currently holds keyboard focus.
//
// The answer fails open: an untracked surface reports focus held, matching
// the tracker's behaviour for consumers that gate text input on it.
//
// GET /api/v1/focus/{surface}
func (s *Server) handleGetFocus(w http.ResponseWriter, r *http.Request) {
	surface := chi.URLParam(r, "surface")
	if surface == "" {
		writeBadRequest(w, "Surface is required")
		return
	}

	if s.tracker == nil {
		writeInternalError(w, "Focus tracking not configured")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"surface":   surface,
		"has_focus": s.tracker.HasFocus(surface),
		"tracked":   s.tracker.IsTracking(surface),
	})
}

// environmentRequest is the body for environment transitions.
type environmentRequest struct {
	Entered bool `json:"entered"`
}

// handleSetEnvironment accepts a keyboard environment signal for a surface
// from hosts that cannot publish over MQTT.
//
// POST /api/v1/focus/{surface}/environment
func (s *Server) handleSetEnvironment(w http.ResponseWriter, r *http.Request) {
	if !s.requireOperator(w, r) {
		return
	}

	surface := chi.URLParam(r, "surface")
	if surface == "" {
		writeBadRequest(w, "Surface is required")
		return
	}

	var req environmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "Invalid request body")
		return
	}

	event := focus.EventEnvironmentExited
	if req.Entered {
		event = focus.EventEnvironmentEntered
	}
	s.bus.Publish(event, surface, nil)

	writeJSON(w, http.StatusOK, map[string]any{
		"surface": surface,
		"entered": req.Entered,
	})
}
