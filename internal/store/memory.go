package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/casegrid/internal/core"
	"github.com/JonMunkholm/casegrid/internal/grid"
	"github.com/JonMunkholm/casegrid/internal/loader"
)

// Memory is an in-process store with the same semantics as Postgres.
// Writes are all-or-nothing per call.
type Memory struct {
	mu       sync.Mutex
	casos    []grid.Record
	estados  []core.Estado
	usuarios []core.Usuario
	roles    []core.Rol
	audit    []core.AuditEntry
	nextID   int64
	now      func() time.Time
}

// NewMemory returns an empty store with the standard estados and roles.
func NewMemory() *Memory {
	return &Memory{
		estados: []core.Estado{
			{ID: 1, Nombre: "LIQUIDADO"},
			{ID: 3, Nombre: "INCONSISTENCIA"},
			{ID: 4, Nombre: "DEVOLUCION"},
			{ID: 5, Nombre: "ASIGNADA"},
			{ID: 6, Nombre: "NO COMPLETADO"},
		},
		roles: []core.Rol{
			{ID: 1, Nombre: "admin"},
			{ID: 2, Nombre: "lider"},
			{ID: 3, Nombre: "operador"},
		},
		nextID: 1,
		now:    time.Now,
	}
}

// AddUsuario adds or replaces a usuario.
func (m *Memory) AddUsuario(u core.Usuario) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.usuarios {
		if m.usuarios[i].Correo == u.Correo {
			m.usuarios[i] = u
			return
		}
	}
	m.usuarios = append(m.usuarios, u)
}

// AddCaso inserts a caso. The record must carry a radicado; estado is
// resolved to estado_id.
func (m *Memory) AddCaso(rec grid.Record) error {
	radicado := grid.Stringify(rec["radicado"])
	if radicado == "" {
		return fmt.Errorf("add caso: radicado is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.indexOf(radicado) >= 0 {
		return fmt.Errorf("add caso: duplicate radicado %s", radicado)
	}
	c := make(grid.Record, len(rec)+2)
	for k, v := range rec {
		c[k] = v
	}
	c["id"] = m.nextID
	m.nextID++
	if name, ok := c["estado"]; ok && name != nil {
		e, err := m.estado(grid.Stringify(name))
		if err != nil {
			return fmt.Errorf("add caso: %w", err)
		}
		c["estado"], c["estado_id"] = e.Nombre, int64(e.ID)
	}
	m.casos = append(m.casos, c)
	return nil
}

// Caso returns a copy of one caso.
func (m *Memory) Caso(radicado string) (grid.Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexOf(radicado)
	if i < 0 {
		return nil, false
	}
	return copyRecord(m.casos[i]), true
}

func (m *Memory) LoadPage(ctx context.Context, p loader.PageParams) (loader.Page, error) {
	if err := ctx.Err(); err != nil {
		return loader.Page{}, err
	}
	if p.Limit < 1 {
		return loader.Page{}, fmt.Errorf("load casos: limit must be positive, got %d", p.Limit)
	}
	page := max(p.Page, 1)
	since := ""
	if !p.DateFrom.IsZero() {
		since = p.DateFrom.Format(time.DateOnly)
	}

	m.mu.Lock()
	var matched []grid.Record
	for _, c := range m.casos {
		if p.Scope.Lider != "" && grid.Stringify(c["lider"]) != p.Scope.Lider {
			continue
		}
		if p.Scope.Usuario != "" && grid.Stringify(c["usuario_asignacion"]) != p.Scope.Usuario {
			continue
		}
		fecha := grid.Stringify(c["fecha_asignacion"])
		if since != "" && (fecha == "" || fecha < since) {
			continue
		}
		matched = append(matched, copyRecord(c))
	}
	m.mu.Unlock()

	asc := p.Order == loader.OrderAsc
	sort.SliceStable(matched, func(i, j int) bool {
		fi, fj := grid.Stringify(matched[i]["fecha_asignacion"]), grid.Stringify(matched[j]["fecha_asignacion"])
		if fi != fj {
			// dates without a value go last in both directions
			if fi == "" || fj == "" {
				return fj == ""
			}
			if asc {
				return fi < fj
			}
			return fi > fj
		}
		ii, ij := matched[i]["id"].(int64), matched[j]["id"].(int64)
		if asc {
			return ii < ij
		}
		return ii > ij
	})

	total := len(matched)
	start := min((page-1)*p.Limit, total)
	end := min(start+p.Limit, total)
	return loader.Page{Rows: matched[start:end], Meta: loader.NewPageMeta(total, page, p.Limit)}, nil
}

func (m *Memory) ApplyChanges(ctx context.Context, actor string, changes []grid.Change) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	type write struct {
		idx   int
		name  string
		value any
	}
	writes := make([]write, 0, len(changes))
	for _, c := range changes {
		idx, name, value, err := m.prepare(c.ID, c.Column, c.Value)
		if err != nil {
			return fmt.Errorf("update %s %s: %w", c.ID, c.Column, err)
		}
		writes = append(writes, write{idx, name, value})
	}

	batch := uuid.NewString()
	for _, w := range writes {
		m.write(ctx, batch, actor, w.idx, w.name, w.value)
	}
	return nil
}

func (m *Memory) UpdateCaso(ctx context.Context, actor, radicado string, fields map[string]any) error {
	changes := make([]grid.Change, 0, len(fields))
	for _, name := range sortedFields(fields) {
		changes = append(changes, grid.Change{ID: radicado, Column: name, Value: fields[name]})
	}
	return m.ApplyChanges(ctx, actor, changes)
}

func (m *Memory) AuditTrail(ctx context.Context, radicado string, limit int) ([]core.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.AuditEntry
	for i := len(m.audit) - 1; i >= 0 && len(out) < limit; i-- {
		if m.audit[i].Radicado == radicado {
			out = append(out, m.audit[i])
		}
	}
	return out, nil
}

func (m *Memory) ListEstados(ctx context.Context) ([]core.Estado, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.Estado(nil), m.estados...), nil
}

func (m *Memory) ListUsuarios(ctx context.Context) ([]core.Usuario, error) {
	m.mu.Lock()
	out := append([]core.Usuario(nil), m.usuarios...)
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Nombre != out[j].Nombre {
			return out[i].Nombre < out[j].Nombre
		}
		return out[i].Correo < out[j].Correo
	})
	return out, nil
}

func (m *Memory) ListRoles(ctx context.Context) ([]core.Rol, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.Rol(nil), m.roles...), nil
}

// prepare validates one change and returns the converted value. m.mu is held.
func (m *Memory) prepare(radicado, name string, value any) (int, string, any, error) {
	f, err := lookupField(name)
	if err != nil {
		return 0, "", nil, err
	}
	idx := m.indexOf(radicado)
	if idx < 0 {
		return 0, "", nil, fmt.Errorf("%w: %s", ErrCasoNotFound, radicado)
	}

	switch f.kind {
	case kindNumeric:
		n, err := ToPgNumeric(value)
		if err != nil {
			return 0, "", nil, err
		}
		return idx, name, numericValue(n), nil
	case kindInt:
		n, err := ToPgInt4(value)
		if err != nil {
			return 0, "", nil, err
		}
		return idx, name, int4Value(n), nil
	case kindEstado:
		n := strings.TrimSpace(grid.Stringify(value))
		if n == "" {
			return 0, "", nil, fmt.Errorf("estado: required value")
		}
		e, err := m.estado(n)
		if err != nil {
			return 0, "", nil, err
		}
		return idx, name, e, nil
	default:
		return idx, name, textValue(ToPgText(value)), nil
	}
}

// write applies a prepared change and records it. m.mu is held.
func (m *Memory) write(ctx context.Context, batch, actor string, idx int, name string, value any) {
	c := m.casos[idx]
	old := grid.Stringify(c[name])
	if e, ok := value.(core.Estado); ok {
		c["estado"], c["estado_id"] = e.Nombre, int64(e.ID)
		value = e.Nombre
	} else {
		c[name] = value
	}
	m.audit = append(m.audit, core.AuditEntry{
		ID:        int64(len(m.audit) + 1),
		BatchID:   batch,
		Radicado:  grid.Stringify(c["radicado"]),
		Column:    name,
		OldValue:  old,
		NewValue:  grid.Stringify(value),
		Actor:     actor,
		IPAddress: core.GetIPAddressFromContext(ctx),
		UserAgent: core.GetUserAgentFromContext(ctx),
		CreatedAt: m.now(),
	})
}

func (m *Memory) estado(name string) (core.Estado, error) {
	for _, e := range m.estados {
		if strings.EqualFold(e.Nombre, name) {
			return e, nil
		}
	}
	return core.Estado{}, fmt.Errorf("estado %q is not in the allowed list", name)
}

func (m *Memory) indexOf(radicado string) int {
	for i, c := range m.casos {
		if grid.Stringify(c["radicado"]) == radicado {
			return i
		}
	}
	return -1
}

func copyRecord(r grid.Record) grid.Record {
	c := make(grid.Record, len(r))
	for k, v := range r {
		c[k] = v
	}
	return c
}
