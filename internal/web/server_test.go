package web

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/casegrid/internal/config"
	"github.com/JonMunkholm/casegrid/internal/core"
	_ "github.com/JonMunkholm/casegrid/internal/core/screens"
	"github.com/JonMunkholm/casegrid/internal/grid"
	"github.com/JonMunkholm/casegrid/internal/metrics"
	"github.com/JonMunkholm/casegrid/internal/store"
)

func testServerConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{RequestTimeout: 5 * time.Second},
		Grid: config.GridConfig{
			DefaultPageSize:    10,
			MaxPageSize:        100,
			SessionIdleTimeout: time.Minute,
			MaxSessions:        10,
			CommitTimeout:      time.Second,
		},
		Loader: config.LoaderConfig{
			ChunkSize:       15,
			MaxConcurrent:   2,
			MaxWaitTime:     time.Second,
			Timeout:         5 * time.Second,
			DefaultLookback: 90 * 24 * time.Hour,
		},
		Security: config.SecurityConfig{EnableCSP: true},
	}
}

func newTestServer(t *testing.T, cfg *config.Config) (*Server, *store.Memory) {
	t.Helper()
	mem := store.NewDemo(time.Now(), 40)
	m := metrics.New()
	svc := core.NewService(mem, core.NewReferences(mem, time.Hour), core.ServiceConfig{Grid: cfg.Grid, Loader: cfg.Loader}, m)
	srv := NewServer(svc, cfg, m)
	t.Cleanup(srv.Close)
	return srv, mem
}

func do(t *testing.T, srv *Server, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func openSession(t *testing.T, srv *Server, body map[string]any) sessionResponse {
	t.Helper()
	rec := do(t, srv, http.MethodPost, "/api/sessions", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("open session: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	return decode[sessionResponse](t, rec)
}

func TestHealthScreensAndMetrics(t *testing.T) {
	srv, _ := newTestServer(t, testServerConfig())

	rec := do(t, srv, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}

	rec = do(t, srv, http.MethodGet, "/api/screens", nil)
	screens := decode[struct {
		Count int `json:"count"`
	}](t, rec)
	if screens.Count != 3 {
		t.Errorf("screens count = %d, want 3", screens.Count)
	}

	rec = do(t, srv, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("metrics status = %d, want 200", rec.Code)
	}
}

func TestSessionLifecycle(t *testing.T) {
	srv, mem := newTestServer(t, testServerConfig())

	opened := openSession(t, srv, map[string]any{"screen": "admin-casos"})
	id := opened.Session.ID
	if opened.View.Total != 40 {
		t.Errorf("total = %d, want 40", opened.View.Total)
	}
	if len(opened.View.Rows) != 25 {
		t.Errorf("rows = %d, want 25 (screen page size)", len(opened.View.Rows))
	}
	base := "/api/sessions/" + id

	// filter by estado
	rec := do(t, srv, http.MethodPut, base+"/filters/estado", map[string]any{"values": []string{"LIQUIDADO"}})
	view := decode[grid.View](t, rec)
	if view.Filtered != 8 {
		t.Errorf("filtered = %d, want 8", view.Filtered)
	}

	rec = do(t, srv, http.MethodGet, base+"/facets", nil)
	facets := decode[map[string][]string](t, rec)
	if len(facets["estado"]) != 5 {
		t.Errorf("estado facet = %v, want all five estados", facets["estado"])
	}

	// sort by prioridad desc
	rec = do(t, srv, http.MethodPut, base+"/sort?sort=prioridad&dir=desc", nil)
	view = decode[grid.View](t, rec)
	if got := view.Rows[0].Values["prioridad"]; got != float64(3) {
		t.Errorf("first prioridad = %v, want 3", got)
	}

	// page index is clamped to the filtered range
	rec = do(t, srv, http.MethodPut, base+"/page", map[string]int{"index": 5})
	view = decode[grid.View](t, rec)
	if view.PageIndex != 0 {
		t.Errorf("pageIndex = %d, want 0", view.PageIndex)
	}

	rec = do(t, srv, http.MethodPut, base+"/page-size", map[string]int{"size": 0})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("page-size 0 status = %d, want 400", rec.Code)
	}

	rec = do(t, srv, http.MethodDelete, base+"/filters", nil)
	view = decode[grid.View](t, rec)
	if view.Filtered != 40 {
		t.Errorf("filtered after clear = %d, want 40", view.Filtered)
	}

	// edits
	rec = do(t, srv, http.MethodPost, base+"/edits", map[string]any{"row": "RAD-00001", "column": "estado", "value": "devolucion"})
	if rec.Code != http.StatusOK {
		t.Fatalf("set edit status = %d, body = %s", rec.Code, rec.Body.String())
	}
	edit := decode[map[string]any](t, rec)
	if edit["value"] != "DEVOLUCION" || edit["pending"] != float64(1) {
		t.Errorf("edit response = %v, want canonical DEVOLUCION and 1 pending", edit)
	}

	rec = do(t, srv, http.MethodPost, base+"/edits", map[string]any{"row": "RAD-00001", "column": "valor_factura", "value": "abc"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad number status = %d, want 422", rec.Code)
	}
	if resp := decode[ErrorResponse](t, rec); resp.Code != "VAL001" {
		t.Errorf("bad number code = %q, want VAL001", resp.Code)
	}

	rec = do(t, srv, http.MethodPost, base+"/edits", map[string]any{"row": "RAD-00001", "column": "radicado", "value": "x"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("not editable status = %d, want 400", rec.Code)
	}

	rec = do(t, srv, http.MethodGet, base+"/edits", nil)
	if got := decode[struct {
		Count int `json:"count"`
	}](t, rec).Count; got != 1 {
		t.Errorf("pending count = %d, want 1", got)
	}

	// commit
	rec = do(t, srv, http.MethodPost, base+"/commit", nil, ActorHeader, "ana@casegrid.local")
	if rec.Code != http.StatusOK {
		t.Fatalf("commit status = %d, body = %s", rec.Code, rec.Body.String())
	}
	res := decode[grid.CommitResult](t, rec)
	if res.Applied != 1 || res.Pending != 0 {
		t.Errorf("commit result = %+v, want 1 applied and none pending", res)
	}
	if c, _ := mem.Caso("RAD-00001"); c["estado"] != "DEVOLUCION" {
		t.Errorf("stored estado = %v, want DEVOLUCION", c["estado"])
	}

	rec = do(t, srv, http.MethodGet, "/api/casos/RAD-00001/audit", nil)
	trail := decode[struct {
		Entries []core.AuditEntry `json:"entries"`
	}](t, rec)
	if len(trail.Entries) != 1 || trail.Entries[0].Actor != "ana@casegrid.local" {
		t.Errorf("audit trail = %+v, want one entry by ana", trail.Entries)
	}

	// refresh keeps the session
	rec = do(t, srv, http.MethodPost, base+"/refresh", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("refresh status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = do(t, srv, http.MethodDelete, base, nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("close status = %d, want 204", rec.Code)
	}
	rec = do(t, srv, http.MethodGet, base, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("view after close status = %d, want 404", rec.Code)
	}
}

func TestGlobalFilterEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, testServerConfig())
	opened := openSession(t, srv, map[string]any{"screen": "admin-casos"})
	base := "/api/sessions/" + opened.Session.ID

	tests := []struct {
		name     string
		path     string
		body     any
		wantCode int
		want     int
	}{
		{"query parameter", base + "/filters?q=rad-0000", nil, http.StatusOK, 9},
		{"json body", base + "/filters", map[string]string{"q": "RAD-0001"}, http.StatusOK, 10},
		{"no match", base + "/filters?q=zzz", nil, http.StatusOK, 0},
		{"empty query clears", base + "/filters?q=", nil, http.StatusOK, 40},
		{"malformed body", base + "/filters", "{", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodPut, tt.path, tt.body)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d, body = %s", rec.Code, tt.wantCode, rec.Body.String())
			}
			if tt.wantCode != http.StatusOK {
				return
			}
			if got := decode[grid.View](t, rec).Filtered; got != tt.want {
				t.Errorf("filtered = %d, want %d", got, tt.want)
			}
		})
	}

	do(t, srv, http.MethodPut, base+"/filters?q=rad-0000", nil)
	rec := do(t, srv, http.MethodDelete, base+"/filters", nil)
	if got := decode[grid.View](t, rec).Filtered; got != 40 {
		t.Errorf("filtered after clear = %d, want 40", got)
	}
}

func TestSetFilterRejectsMismatchedShape(t *testing.T) {
	srv, _ := newTestServer(t, testServerConfig())
	opened := openSession(t, srv, map[string]any{"screen": "admin-casos"})
	base := "/api/sessions/" + opened.Session.ID

	tests := []struct {
		name     string
		col      string
		body     map[string]any
		wantCode string
	}{
		{"single value on multiselect", "estado", map[string]any{"value": "LIQUIDADO"}, "GRID008"},
		{"values on text column", "radicado", map[string]any{"values": []string{"RAD-00001"}}, "GRID008"},
		{"unfilterable column", "ruta_imagen", map[string]any{"value": "x"}, "GRID007"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodPut, base+"/filters/"+tt.col, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400, body = %s", rec.Code, rec.Body.String())
			}
			if got := decode[ErrorResponse](t, rec).Code; got != tt.wantCode {
				t.Errorf("code = %q, want %q", got, tt.wantCode)
			}
		})
	}
}

func TestViewQueryPaging(t *testing.T) {
	srv, _ := newTestServer(t, testServerConfig())
	opened := openSession(t, srv, map[string]any{"screen": "admin-casos"})

	rec := do(t, srv, http.MethodGet, "/api/sessions/"+opened.Session.ID+"?size=10&page=3", nil)
	view := decode[grid.View](t, rec)
	if view.PageSize != 10 || view.PageIndex != 2 || len(view.Rows) != 10 {
		t.Errorf("view = size %d index %d rows %d, want 10/2/10", view.PageSize, view.PageIndex, len(view.Rows))
	}
}

func TestOpenSessionErrors(t *testing.T) {
	srv, _ := newTestServer(t, testServerConfig())

	tests := []struct {
		name     string
		body     any
		wantCode int
	}{
		{"unknown screen", map[string]any{"screen": "nope"}, http.StatusNotFound},
		{"lider screen without lider", map[string]any{"screen": "lider-casos"}, http.StatusUnprocessableEntity},
		{"bad date", map[string]any{"screen": "admin-casos", "dateFrom": "yesterday"}, http.StatusBadRequest},
		{"bad json", "{", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodPost, "/api/sessions", tt.body)
			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.wantCode, rec.Body.String())
			}
		})
	}
}

func TestScopedSession(t *testing.T) {
	srv, _ := newTestServer(t, testServerConfig())
	opened := openSession(t, srv, map[string]any{"screen": "operador-casos", "usuario": "carla@casegrid.local"})
	if opened.View.Total != 10 {
		t.Errorf("total = %d, want the 10 casos of carla", opened.View.Total)
	}
}

func TestHTMXErrorFragment(t *testing.T) {
	srv, _ := newTestServer(t, testServerConfig())

	rec := do(t, srv, http.MethodGet, "/api/sessions/missing", nil, "HX-Request", "true")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q, want text/html", ct)
	}
	if body := rec.Body.String(); !strings.Contains(body, `data-code="SES001"`) {
		t.Errorf("body = %q, want SES001 fragment", body)
	}
}

func TestReferenceEndpoints(t *testing.T) {
	srv, _ := newTestServer(t, testServerConfig())

	rec := do(t, srv, http.MethodGet, "/api/reference/estados", nil)
	if got := len(decode[[]core.Estado](t, rec)); got != 5 {
		t.Errorf("estados = %d, want 5", got)
	}
	rec = do(t, srv, http.MethodGet, "/api/reference/usuarios", nil)
	if got := len(decode[[]core.Usuario](t, rec)); got != 7 {
		t.Errorf("usuarios = %d, want 7", got)
	}
	if rec := do(t, srv, http.MethodGet, "/api/reference/bogus", nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown list status = %d, want 404", rec.Code)
	}
	if rec := do(t, srv, http.MethodPost, "/api/reference/invalidate", nil); rec.Code != http.StatusOK {
		t.Errorf("invalidate status = %d, want 200", rec.Code)
	}
}

func TestRateLimit(t *testing.T) {
	cfg := testServerConfig()
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 2, CommitLimit: 1}
	srv, _ := newTestServer(t, cfg)

	for i := 0; i < 2; i++ {
		if rec := do(t, srv, http.MethodGet, "/api/screens", nil); rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i, rec.Code)
		}
	}
	rec := do(t, srv, http.MethodGet, "/api/screens", nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("third request status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}
	if rec := do(t, srv, http.MethodGet, "/healthz", nil); rec.Code != http.StatusOK {
		t.Errorf("healthz is rate limited: status = %d", rec.Code)
	}
}

func TestAPIKeyRequired(t *testing.T) {
	cfg := testServerConfig()
	cfg.Security.RequireAPIKey = true
	cfg.Security.APIKeys = []string{"secret"}
	srv, _ := newTestServer(t, cfg)

	if rec := do(t, srv, http.MethodGet, "/api/screens", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("no key status = %d, want 401", rec.Code)
	}
	if rec := do(t, srv, http.MethodGet, "/api/screens", nil, "X-API-Key", "secret"); rec.Code != http.StatusOK {
		t.Errorf("valid key status = %d, want 200", rec.Code)
	}
}

func TestParseSorts(t *testing.T) {
	tests := []struct {
		query string
		want  []grid.SortSpec
	}{
		{"", nil},
		{"sort=estado", []grid.SortSpec{{Column: "estado"}}},
		{"sort=estado,prioridad&dir=asc,DESC", []grid.SortSpec{{Column: "estado"}, {Column: "prioridad", Desc: true}}},
		{"sort=,caso&dir=desc,desc", []grid.SortSpec{{Column: "caso", Desc: true}}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, "/x?"+tt.query, nil)
			got := parseSorts(req)
			if len(got) != len(tt.want) {
				t.Fatalf("parseSorts(%q) = %v, want %v", tt.query, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("parseSorts(%q)[%d] = %v, want %v", tt.query, i, got[i], tt.want[i])
				}
			}
		})
	}
}
