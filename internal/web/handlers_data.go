package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/casegrid/internal/core"
	"github.com/JonMunkholm/casegrid/internal/grid"
)

// session resolves the {id} URL parameter, writing the error response when
// the session is unknown.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*core.Session, bool) {
	sess, err := s.service.Session(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err, 0)
		return nil, false
	}
	return sess, true
}

// respondView writes the session's current view.
func (s *Server) respondView(w http.ResponseWriter, r *http.Request, sess *core.Session) {
	view, err := s.service.View(sess.ID)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleView returns the current view. Optional ?size= sets the page size
// and ?page= (1-based) moves to a page first.
func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	t := sess.Table()
	if size := parseIntParam(r, "size", 0); size > 0 {
		if err := t.SetPageSize(size); err != nil {
			respondError(w, r, err, 0)
			return
		}
	}
	if page := parseIntParam(r, "page", 0); page > 0 {
		t.SetPage(page - 1)
	}
	s.respondView(w, r, sess)
}

// handleSetFilter sets one column filter from {value} or {values}.
func (s *Server) handleSetFilter(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var f grid.Filter
	if err := decodeJSON(r, &f, false); err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}
	if err := sess.Table().SetFilter(chi.URLParam(r, "col"), f); err != nil {
		respondError(w, r, err, 0)
		return
	}
	s.respondView(w, r, sess)
}

// handleSetGlobalFilter sets the global query from ?q= or {q}. An empty
// query clears it.
func (s *Server) handleSetGlobalFilter(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	q := r.URL.Query().Get("q")
	if !r.URL.Query().Has("q") {
		var body struct {
			Q string `json:"q"`
		}
		if err := decodeJSON(r, &body, true); err != nil {
			respondError(w, r, err, http.StatusBadRequest)
			return
		}
		q = body.Q
	}
	sess.Table().SetGlobalFilter(q)
	s.respondView(w, r, sess)
}

// handleClearFilter clears one column filter.
func (s *Server) handleClearFilter(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	sess.Table().ClearFilter(chi.URLParam(r, "col"))
	s.respondView(w, r, sess)
}

// handleClearFilters clears every filter and the global query.
func (s *Server) handleClearFilters(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	sess.Table().ClearFilters()
	s.respondView(w, r, sess)
}

// handleSetSort replaces the sort from ?sort=&dir=. No sort restores
// dataset order.
func (s *Server) handleSetSort(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := sess.Table().SetSort(parseSorts(r)); err != nil {
		respondError(w, r, err, 0)
		return
	}
	s.respondView(w, r, sess)
}

// handleSetPage moves to {index}, clamped to the filtered page range.
func (s *Server) handleSetPage(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req struct {
		Index int `json:"index"`
	}
	if err := decodeJSON(r, &req, false); err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}
	sess.Table().SetPage(req.Index)
	s.respondView(w, r, sess)
}

// handleSetPageSize changes the page size.
func (s *Server) handleSetPageSize(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req struct {
		Size int `json:"size"`
	}
	if err := decodeJSON(r, &req, false); err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}
	if err := sess.Table().SetPageSize(req.Size); err != nil {
		respondError(w, r, err, 0)
		return
	}
	s.respondView(w, r, sess)
}

// handleFacets returns the chained facet values of every choice column.
func (s *Server) handleFacets(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Table().Facets())
}
