package core

import (
	"context"
	"fmt"
	"time"

	"github.com/JonMunkholm/casegrid/internal/grid"
	"github.com/JonMunkholm/casegrid/internal/loader"
)

// ScopeKind selects which rows a screen's sessions may load.
type ScopeKind string

const (
	ScopeAll     ScopeKind = "all"     // every case
	ScopeLider   ScopeKind = "lider"   // the cases of one team lead
	ScopeUsuario ScopeKind = "usuario" // the cases assigned to one operator
)

// SubmitMode selects how a screen persists a commit.
type SubmitMode string

const (
	SubmitTx         SubmitMode = "tx"
	SubmitSequential SubmitMode = "sequential"
)

// ScreenColumn is a grid column plus host-side settings.
type ScreenColumn struct {
	grid.Column `yaml:",inline"`

	// OptionsFrom names a reference list ("estados", "usuarios") whose
	// values replace Options when a session opens.
	OptionsFrom string `json:"optionsFrom,omitempty" yaml:"options_from"`

	// MaxLength bounds text edits, 0 for no bound.
	MaxLength int `json:"maxLength,omitempty" yaml:"max_length"`
}

// Screen is the host configuration of one grid.
type Screen struct {
	Key         string          `json:"key" yaml:"key"`
	Group       string          `json:"group" yaml:"group"`
	Title       string          `json:"title" yaml:"title"`
	IDField     string          `json:"idField" yaml:"id_field"`
	Columns     []ScreenColumn  `json:"columns" yaml:"columns"`
	DefaultSort []grid.SortSpec `json:"defaultSort,omitempty" yaml:"default_sort"`
	PageSize    int             `json:"pageSize,omitempty" yaml:"page_size"`
	Scope       ScopeKind       `json:"scope" yaml:"scope"`
	Submit      SubmitMode      `json:"submit" yaml:"submit"`
}

// GridColumns returns the plain grid columns in declaration order.
func (s Screen) GridColumns() []grid.Column {
	cols := make([]grid.Column, len(s.Columns))
	for i, c := range s.Columns {
		cols[i] = c.Column
	}
	return cols
}

// Column returns the screen column with the given ID.
func (s Screen) Column(id string) (ScreenColumn, bool) {
	for _, c := range s.Columns {
		if c.ID == id {
			return c, true
		}
	}
	return ScreenColumn{}, false
}

// Validate checks a screen definition before it is registered.
func (s Screen) Validate() error {
	if s.Key == "" {
		return fmt.Errorf("screen: key is required")
	}
	if s.IDField == "" {
		return fmt.Errorf("screen %s: id_field is required", s.Key)
	}
	// reference-backed options are only known once a session opens
	cols := s.GridColumns()
	for i, c := range s.Columns {
		if c.OptionsFrom != "" && len(cols[i].Options) == 0 {
			cols[i].Options = []string{c.OptionsFrom}
		}
	}
	if err := grid.ValidateColumns(cols); err != nil {
		return fmt.Errorf("screen %s: %w", s.Key, err)
	}
	switch s.Scope {
	case ScopeAll, ScopeLider, ScopeUsuario:
	default:
		return fmt.Errorf("screen %s: unknown scope %q", s.Key, s.Scope)
	}
	switch s.Submit {
	case SubmitTx, SubmitSequential:
	default:
		return fmt.Errorf("screen %s: unknown submit mode %q", s.Key, s.Submit)
	}
	for _, c := range s.Columns {
		switch c.OptionsFrom {
		case "", ListEstados, ListUsuarios:
		default:
			return fmt.Errorf("screen %s: column %s: unknown options_from %q", s.Key, c.ID, c.OptionsFrom)
		}
	}
	return nil
}

// Reference list names.
const (
	ListEstados  = "estados"
	ListUsuarios = "usuarios"
	ListRoles    = "roles"
)

// Estado is one case state.
type Estado struct {
	ID     int32  `json:"id"`
	Nombre string `json:"nombre"`
}

// Usuario is one operator or team lead.
type Usuario struct {
	Correo  string `json:"correo"`
	Nombre  string `json:"nombre"`
	RoleID  int32  `json:"roleId"`
	IDLider string `json:"idLider,omitempty"`
	Activo  bool   `json:"activo"`
}

// Rol is one application role.
type Rol struct {
	ID     int32  `json:"id"`
	Nombre string `json:"nombre"`
}

// AuditEntry records one committed cell change.
type AuditEntry struct {
	ID        int64     `json:"id"`
	BatchID   string    `json:"batchId"`
	Radicado  string    `json:"radicado"`
	Column    string    `json:"column"`
	OldValue  string    `json:"oldValue"`
	NewValue  string    `json:"newValue"`
	Actor     string    `json:"actor"`
	IPAddress string    `json:"ipAddress,omitempty"`
	UserAgent string    `json:"userAgent,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// ReferenceSource loads the reference lists.
type ReferenceSource interface {
	ListEstados(ctx context.Context) ([]Estado, error)
	ListUsuarios(ctx context.Context) ([]Usuario, error)
	ListRoles(ctx context.Context) ([]Rol, error)
}

// Store is everything the service needs from persistence.
type Store interface {
	loader.Source
	ReferenceSource

	// ApplyChanges persists a changeset in one transaction.
	ApplyChanges(ctx context.Context, actor string, changes []grid.Change) error

	// UpdateCaso persists the given fields of one case.
	UpdateCaso(ctx context.Context, actor, radicado string, fields map[string]any) error

	// AuditTrail returns the newest committed changes of one case first.
	AuditTrail(ctx context.Context, radicado string, limit int) ([]AuditEntry, error)
}
