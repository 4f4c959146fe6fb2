package web

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/casegrid/internal/grid"
	"github.com/JonMunkholm/casegrid/internal/loader"
	"github.com/JonMunkholm/casegrid/internal/logging"
)

// handleSetEdit records one pending edit {row, column, value}.
func (s *Server) handleSetEdit(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req struct {
		Row    string `json:"row"`
		Column string `json:"column"`
		Value  any    `json:"value"`
	}
	if err := decodeJSON(r, &req, false); err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}
	if err := s.service.SetEdit(sess.ID, req.Row, req.Column, req.Value); err != nil {
		respondError(w, r, err, 0)
		return
	}
	v, _ := sess.Table().Value(req.Row, req.Column)
	writeJSON(w, http.StatusOK, map[string]any{
		"row":     req.Row,
		"column":  req.Column,
		"value":   v,
		"edited":  sess.Table().HasEdit(req.Row, req.Column),
		"pending": sess.Table().EditCount(),
	})
}

// handleListEdits returns the pending changeset.
func (s *Server) handleListEdits(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	changes := sess.Table().Changes()
	if changes == nil {
		changes = []grid.Change{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"changes": changes,
		"count":   len(changes),
	})
}

// handleCancelEdits discards every pending edit.
func (s *Server) handleCancelEdits(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	n := sess.Table().CancelEdits()
	logging.FromContext(r.Context()).Info("edits cancelled", "session_id", sess.ID, "count", n)
	writeJSON(w, http.StatusOK, map[string]int{"cancelled": n})
}

// handleCommit submits the pending edits. A partial failure reports the
// error with the applied changes already folded into the data.
func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	res, err := s.service.Commit(r.Context(), sess.ID)
	if err != nil {
		var partial *grid.PartialCommitError
		if errors.As(err, &partial) {
			w.Header().Set("X-Commit-Applied", strconv.Itoa(res.Applied))
		}
		respondError(w, r, err, 0)
		return
	}
	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = commitStatus(res).Render(r.Context(), w)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleRefresh reloads the session, optionally from a new {dateFrom}.
// Filters, sort, page and pending edits survive. A refresh replaced by a
// newer one reports 409.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req struct {
		DateFrom string `json:"dateFrom"`
	}
	if err := decodeJSON(r, &req, true); err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}
	dateFrom, err := parseDate(req.DateFrom)
	if err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}

	if _, err := s.service.Refresh(r.Context(), sess.ID, dateFrom); err != nil {
		if errors.Is(err, loader.ErrSuperseded) {
			logging.FromContext(r.Context()).Debug("refresh superseded", "session_id", sess.ID)
		}
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Session: sess.Info(), View: sess.Table().View()})
}
