package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/casegrid/internal/core"
	"github.com/JonMunkholm/casegrid/internal/grid"
	"github.com/JonMunkholm/casegrid/internal/loader"
)

// handleHealth reports open sessions and load slots.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC(),
		"engine": s.service.Status(),
	})
}

// handleListScreens lists registered screens in group order.
func (s *Server) handleListScreens(w http.ResponseWriter, r *http.Request) {
	screens := s.service.Screens()
	writeJSON(w, http.StatusOK, map[string]any{
		"screens": screens,
		"count":   len(screens),
	})
}

// handleReferenceList serves one cached reference list.
func (s *Server) handleReferenceList(w http.ResponseWriter, r *http.Request) {
	refs := s.service.References()
	var (
		list any
		err  error
	)
	switch chi.URLParam(r, "list") {
	case core.ListEstados:
		list, err = refs.Estados(r.Context())
	case core.ListUsuarios:
		list, err = refs.Usuarios(r.Context())
	case core.ListRoles:
		list, err = refs.Roles(r.Context())
	default:
		http.NotFound(w, r)
		return
	}
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// handleInvalidateReferences drops the reference caches.
func (s *Server) handleInvalidateReferences(w http.ResponseWriter, r *http.Request) {
	if err := s.service.References().Invalidate(r.Context()); err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

type openSessionRequest struct {
	Screen   string `json:"screen"`
	DateFrom string `json:"dateFrom"`
	Lider    string `json:"lider"`
	Usuario  string `json:"usuario"`
	Order    string `json:"order"`
	PageSize int    `json:"pageSize"`
}

type sessionResponse struct {
	Session core.SessionInfo `json:"session"`
	View    grid.View        `json:"view"`
}

// handleOpenSession opens a session and returns its first view.
func (s *Server) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	var req openSessionRequest
	if err := decodeJSON(r, &req, false); err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}
	dateFrom, err := parseDate(req.DateFrom)
	if err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}

	sess, err := s.service.OpenSession(r.Context(), core.OpenRequest{
		Screen:   req.Screen,
		DateFrom: dateFrom,
		Scope:    loader.Scope{Lider: req.Lider, Usuario: req.Usuario},
		Order:    loader.ParseOrder(req.Order),
		PageSize: req.PageSize,
	})
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse{Session: sess.Info(), View: sess.Table().View()})
}

// handleListSessions lists open sessions.
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := s.service.Sessions()
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// handleCloseSession discards a session and its pending edits.
func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if err := s.service.CloseSession(chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err, 0)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
