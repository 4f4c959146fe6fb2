package core

import (
	"sync"
	"time"

	"github.com/JonMunkholm/casegrid/internal/grid"
	"github.com/JonMunkholm/casegrid/internal/loader"
)

// Session is one open grid: a screen bound to a scope and a load window.
type Session struct {
	ID       string
	Screen   Screen // columns carry resolved reference options
	OpenedAt time.Time

	table     *grid.Table
	refresher *loader.Refresher

	mu       sync.Mutex
	params   loader.PageParams
	lastUsed time.Time
	loaded   time.Time
}

// SessionInfo describes a session for listings and API responses.
type SessionInfo struct {
	ID       string       `json:"id"`
	Screen   string       `json:"screen"`
	Scope    loader.Scope `json:"scope"`
	DateFrom time.Time    `json:"dateFrom"`
	OpenedAt time.Time    `json:"openedAt"`
	LoadedAt time.Time    `json:"loadedAt"`
	Rows     int          `json:"rows"`
	Pending  int          `json:"pending"`
}

// Table returns the session's grid.
func (s *Session) Table() *grid.Table { return s.table }

// Info returns a snapshot of the session.
func (s *Session) Info() SessionInfo {
	s.mu.Lock()
	p, loaded := s.params, s.loaded
	s.mu.Unlock()
	return SessionInfo{
		ID:       s.ID,
		Screen:   s.Screen.Key,
		Scope:    p.Scope,
		DateFrom: p.DateFrom,
		OpenedAt: s.OpenedAt,
		LoadedAt: loaded,
		Rows:     s.table.Len(),
		Pending:  s.table.EditCount(),
	}
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastUsed = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

func (s *Session) loadParams() loader.PageParams {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}

func (s *Session) setDateFrom(t time.Time) {
	s.mu.Lock()
	s.params.DateFrom = t
	s.mu.Unlock()
}

func (s *Session) markLoaded(now time.Time) {
	s.mu.Lock()
	s.loaded = now
	s.mu.Unlock()
}
