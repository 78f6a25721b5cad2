// internal/handlers/loops.go
package handlers

import (
	"net/http"
	"strings"

	"github.com/campusloop/loopd/internal/models"
)

// ListUserLoopsHandler serves GET /loops?status=active,completed — every
// loop the authenticated user owns or participates in, across all rooms,
// newest first.
func ListUserLoopsHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		actor, ok := s.actorID(w, r)
		if !ok {
			return
		}

		var statuses []models.LoopStatus
		if raw := r.URL.Query().Get("status"); raw != "" {
			for _, part := range strings.Split(raw, ",") {
				if part = strings.TrimSpace(part); part != "" {
					statuses = append(statuses, models.LoopStatus(part))
				}
			}
		}

		loops, err := s.Engine.ListUserLoops(r.Context(), actor, statuses)
		if err != nil {
			s.writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"loops": loops})
	}
}
