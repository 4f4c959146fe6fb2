package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/casegrid/internal/config"
	"github.com/JonMunkholm/casegrid/internal/grid"
	"github.com/JonMunkholm/casegrid/internal/loader"
	"github.com/JonMunkholm/casegrid/internal/logging"
	"github.com/JonMunkholm/casegrid/internal/metrics"
)

// ServiceConfig is the part of the application config the service reads.
type ServiceConfig struct {
	Grid   config.GridConfig
	Loader config.LoaderConfig
}

// Service owns the open grid sessions.
type Service struct {
	store   Store
	refs    *References
	metrics *metrics.Metrics
	limiter *LoadLimiter
	cfg     ServiceConfig
	now     func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewService creates a service over store. m may be nil.
func NewService(store Store, refs *References, cfg ServiceConfig, m *metrics.Metrics) *Service {
	return &Service{
		store:    store,
		refs:     refs,
		metrics:  m,
		limiter:  NewLoadLimiter(cfg.Loader.MaxConcurrent, cfg.Loader.MaxWaitTime),
		cfg:      cfg,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// References returns the reference list cache.
func (s *Service) References() *References { return s.refs }

// Limiter returns the load limiter.
func (s *Service) Limiter() *LoadLimiter { return s.limiter }

// Screens returns all registered screens.
func (s *Service) Screens() []Screen { return All() }

// OpenRequest describes a session to open.
type OpenRequest struct {
	Screen   string       `json:"screen"`
	DateFrom time.Time    `json:"dateFrom"`
	Scope    loader.Scope `json:"scope"`
	Order    loader.Order `json:"order"`
	PageSize int          `json:"pageSize"`
}

// OpenSession builds a grid for the requested screen and loads it. The
// session is only registered once the first load succeeds.
func (s *Service) OpenSession(ctx context.Context, req OpenRequest) (*Session, error) {
	screen, ok := Get(req.Screen)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrScreenNotFound, req.Screen)
	}

	scope, err := scopeFor(screen, req.Scope)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	open := len(s.sessions)
	s.mu.RUnlock()
	if s.cfg.Grid.MaxSessions > 0 && open >= s.cfg.Grid.MaxSessions {
		return nil, ErrTooManySessions
	}

	screen, err = s.resolveOptions(ctx, screen)
	if err != nil {
		return nil, err
	}

	opts := []grid.Option{
		grid.WithPageSize(s.pageSize(screen, req.PageSize)),
		grid.WithSort(screen.DefaultSort...),
	}
	if s.cfg.Grid.ResetPageOnRefresh {
		opts = append(opts, grid.WithResetPageOnReplace())
	}
	table, err := grid.NewTable(screen.IDField, screen.GridColumns(), opts...)
	if err != nil {
		return nil, fmt.Errorf("screen %s: %w", screen.Key, err)
	}

	dateFrom := req.DateFrom
	if dateFrom.IsZero() {
		dateFrom = s.now().Add(-s.cfg.Loader.DefaultLookback)
	}
	order := req.Order
	if order == "" {
		order = loader.OrderDesc
	}

	now := s.now()
	sess := &Session{
		ID:        uuid.New().String(),
		Screen:    screen,
		OpenedAt:  now,
		table:     table,
		refresher: loader.NewRefresher(s.limiter.Wrap(s.store), s.cfg.Loader.ChunkSize, s.cfg.Loader.MaxRows),
		params:    loader.PageParams{DateFrom: dateFrom, Scope: scope, Order: order},
		lastUsed:  now,
	}

	if _, err := s.reload(ctx, sess); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	s.metrics.SessionOpened()

	logging.WithFields(ctx,
		"session_id", sess.ID,
		"screen", screen.Key,
		"rows", table.Len(),
		"date_from", dateFrom.Format(time.DateOnly),
	).Info("session opened")

	return sess, nil
}

// scopeFor enforces the screen's scope kind on a requested scope.
func scopeFor(screen Screen, req loader.Scope) (loader.Scope, error) {
	switch screen.Scope {
	case ScopeLider:
		if req.Lider == "" {
			return loader.Scope{}, ValidationError{Column: "lider", Message: "required value"}
		}
		return loader.Scope{Lider: req.Lider}, nil
	case ScopeUsuario:
		if req.Usuario == "" {
			return loader.Scope{}, ValidationError{Column: "usuario", Message: "required value"}
		}
		return loader.Scope{Usuario: req.Usuario}, nil
	default:
		return req, nil
	}
}

// resolveOptions fills reference-backed column options.
func (s *Service) resolveOptions(ctx context.Context, screen Screen) (Screen, error) {
	cols := make([]ScreenColumn, len(screen.Columns))
	copy(cols, screen.Columns)
	for i, c := range cols {
		if c.OptionsFrom == "" {
			continue
		}
		opts, err := s.refs.OptionsFor(ctx, c.OptionsFrom)
		if err != nil {
			return Screen{}, fmt.Errorf("options for %s: %w", c.ID, err)
		}
		cols[i].Options = opts
	}
	screen.Columns = cols
	return screen, nil
}

func (s *Service) pageSize(screen Screen, requested int) int {
	size := requested
	if size < 1 {
		size = screen.PageSize
	}
	if size < 1 {
		size = s.cfg.Grid.DefaultPageSize
	}
	if limit := s.cfg.Grid.MaxPageSize; limit > 0 && size > limit {
		size = limit
	}
	return max(size, 1)
}

// Session returns an open session and marks it used.
func (s *Service) Session(id string) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	sess.touch(s.now())
	return sess, nil
}

// Sessions lists open sessions, oldest first.
func (s *Service) Sessions() []SessionInfo {
	s.mu.RLock()
	infos := make([]SessionInfo, 0, len(s.sessions))
	for _, sess := range s.sessions {
		infos = append(infos, sess.Info())
	}
	s.mu.RUnlock()
	sort.Slice(infos, func(i, j int) bool { return infos[i].OpenedAt.Before(infos[j].OpenedAt) })
	return infos
}

// SessionCount returns the number of open sessions.
func (s *Service) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// CloseSession drops a session and stops its reload, if any.
func (s *Service) CloseSession(id string) error {
	return s.close(id, "closed")
}

func (s *Service) close(id, reason string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	sess.refresher.Cancel()
	s.metrics.SessionClosed(reason)
	slog.Debug("session closed", "session_id", id, "screen", sess.Screen.Key, "reason", reason)
	return nil
}

// View derives the session's current view.
func (s *Service) View(id string) (grid.View, error) {
	sess, err := s.Session(id)
	if err != nil {
		return grid.View{}, err
	}
	s.metrics.ObserveView(sess.Screen.Key)
	return sess.table.View(), nil
}

// SetEdit validates raw against the column and records it as a pending edit.
func (s *Service) SetEdit(id, row, col string, raw any) error {
	sess, err := s.Session(id)
	if err != nil {
		return err
	}
	sc, ok := sess.Screen.Column(col)
	if !ok {
		return fmt.Errorf("%w: %s", grid.ErrUnknownColumn, col)
	}
	v, err := ValidateCellValue(sc, raw)
	if err != nil {
		return err
	}
	return sess.table.SetEdit(row, col, v)
}

// Refresh reloads a session, optionally moving its load window. Only the
// newest refresh of a session is applied; older ones return
// loader.ErrSuperseded.
func (s *Service) Refresh(ctx context.Context, id string, dateFrom time.Time) (int, error) {
	sess, err := s.Session(id)
	if err != nil {
		return 0, err
	}
	if !dateFrom.IsZero() {
		sess.setDateFrom(dateFrom)
	}
	return s.reload(ctx, sess)
}

func (s *Service) reload(ctx context.Context, sess *Session) (int, error) {
	if s.cfg.Loader.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Loader.Timeout)
		defer cancel()
	}

	start := s.now()
	n, err := sess.refresher.Refresh(ctx, sess.loadParams(), sess.table.Replace)
	elapsed := s.now().Sub(start)

	log := logging.WithFields(ctx, "session_id", sess.ID, "screen", sess.Screen.Key)
	switch {
	case errors.Is(err, loader.ErrSuperseded):
		s.metrics.ObserveLoad(sess.Screen.Key, metrics.OutcomeSuperseded, 0, elapsed)
		log.Debug("load superseded")
		return 0, err
	case err != nil:
		s.metrics.ObserveLoad(sess.Screen.Key, metrics.OutcomeFailed, 0, elapsed)
		log.Error("load failed", "error", err)
		return 0, err
	}

	sess.markLoaded(s.now())
	s.metrics.ObserveLoad(sess.Screen.Key, metrics.OutcomeOK, n, elapsed)
	log.Debug("load complete", "rows", n, "duration_ms", elapsed.Milliseconds())
	return n, nil
}

// Commit submits the session's pending edits.
func (s *Service) Commit(ctx context.Context, id string) (grid.CommitResult, error) {
	sess, err := s.Session(id)
	if err != nil {
		return grid.CommitResult{}, err
	}
	if s.cfg.Grid.CommitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Grid.CommitTimeout)
		defer cancel()
	}

	actor := GetActorFromContext(ctx)
	start := s.now()
	res, err := sess.table.Commit(ctx, s.submitFunc(sess.Screen, actor))
	elapsed := s.now().Sub(start)

	outcome := metrics.OutcomeOK
	var partial *grid.PartialCommitError
	switch {
	case errors.As(err, &partial):
		outcome = metrics.OutcomePartial
	case err != nil:
		outcome = metrics.OutcomeFailed
	case res.Submitted == 0:
		outcome = metrics.OutcomeNoop
	}
	s.metrics.ObserveCommit(sess.Screen.Key, outcome, res.Applied, elapsed)

	log := logging.WithFields(ctx,
		"session_id", sess.ID,
		"screen", sess.Screen.Key,
		"actor", actor,
		"submitted", res.Submitted,
		"applied", res.Applied,
		"stale", res.Stale,
		"pending", res.Pending,
	)
	if err != nil {
		log.Warn("commit failed", "outcome", outcome, "error", err)
		return res, err
	}
	if outcome == metrics.OutcomeOK {
		log.Info("commit applied", "duration_ms", elapsed.Milliseconds())
	}
	return res, nil
}

func (s *Service) submitFunc(screen Screen, actor string) grid.SubmitFunc {
	if screen.Submit == SubmitSequential {
		return SequentialSubmit(func(ctx context.Context, id string, fields map[string]any) error {
			return s.store.UpdateCaso(ctx, actor, id, fields)
		})
	}
	return func(ctx context.Context, changes []grid.Change) error {
		return s.store.ApplyChanges(ctx, actor, changes)
	}
}

// AuditTrail returns the committed changes of one case.
func (s *Service) AuditTrail(ctx context.Context, radicado string, limit int) ([]AuditEntry, error) {
	if limit < 1 || limit > 500 {
		limit = 100
	}
	return s.store.AuditTrail(ctx, radicado, limit)
}

// SweepIdle closes sessions unused for longer than the idle timeout. A
// session with a commit in flight is kept.
func (s *Service) SweepIdle() int {
	timeout := s.cfg.Grid.SessionIdleTimeout
	if timeout <= 0 {
		return 0
	}
	cutoff := s.now().Add(-timeout)

	s.mu.RLock()
	var idle []string
	for id, sess := range s.sessions {
		if sess.idleSince().Before(cutoff) && !sess.table.Committing() {
			idle = append(idle, id)
		}
	}
	s.mu.RUnlock()

	closed := 0
	for _, id := range idle {
		if s.close(id, "idle") == nil {
			closed++
		}
	}
	return closed
}

// RefreshAll silently reloads every open session. Failures are logged and
// leave the session's previous data in place.
func (s *Service) RefreshAll(ctx context.Context) int {
	s.mu.RLock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.RUnlock()

	var (
		mu        sync.Mutex
		refreshed int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.limiter.MaxConcurrent())
	for _, sess := range sessions {
		sess := sess
		g.Go(func() error {
			if _, err := s.reload(gctx, sess); err != nil {
				return nil
			}
			mu.Lock()
			refreshed++
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return refreshed
}

// ServiceStatus is a snapshot for health checks.
type ServiceStatus struct {
	Sessions int               `json:"sessions"`
	Loads    LoadLimiterStatus `json:"loads"`
}

// Status reports open sessions and load slots.
func (s *Service) Status() ServiceStatus {
	return ServiceStatus{Sessions: s.SessionCount(), Loads: s.limiter.Status()}
}

// Shutdown closes every session and waits for loads in flight to stop.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	for _, id := range ids {
		_ = s.close(id, "shutdown")
	}
	return s.limiter.WaitForDrain(ctx)
}
