package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/input-dock-core/internal/journal"
)

// =============================================================================
// JOURNAL ENDPOINTS
// =============================================================================

// handleListJournal returns paginated device connection history.
//
// GET /api/v1/journal?device_id=&action=&limit=&offset=
func (s *Server) handleListJournal(w http.ResponseWriter, r *http.Request) {
	if s.journalRepo == nil {
		writeInternalError(w, "Journal not configured")
		return
	}

	q := r.URL.Query()

	filter := journal.Filter{
		DeviceID: q.Get("device_id"),
		Action:   q.Get("action"),
	}

	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			writeBadRequest(w, "Invalid limit parameter")
			return
		}
		filter.Limit = limit
	}

	if v := q.Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			writeBadRequest(w, "Invalid offset parameter")
			return
		}
		filter.Offset = offset
	}

	if filter.Action != "" && filter.Action != journal.ActionConnect && filter.Action != journal.ActionDisconnect {
		writeBadRequest(w, "Action must be connect or disconnect")
		return
	}

	result, err := s.journalRepo.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("journal list failed", "error", err)
		writeInternalError(w, "Failed to query journal")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
