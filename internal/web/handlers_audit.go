package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/casegrid/internal/core"
)

// handleAuditTrail returns the committed changes of one caso, newest first.
// ?limit= defaults to 100.
func (s *Server) handleAuditTrail(w http.ResponseWriter, r *http.Request) {
	radicado := chi.URLParam(r, "radicado")
	entries, err := s.service.AuditTrail(r.Context(), radicado, parseIntParam(r, "limit", 100))
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	if entries == nil {
		entries = []core.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"radicado": radicado,
		"entries":  entries,
		"count":    len(entries),
	})
}
