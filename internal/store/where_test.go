package store

import (
	"reflect"
	"testing"
	"time"
)

func TestNewWhereBuilder(t *testing.T) {
	wb := NewWhereBuilder()

	if wb.argIndex != 1 {
		t.Errorf("expected argIndex to be 1, got %d", wb.argIndex)
	}
	if len(wb.conditions) != 0 || len(wb.args) != 0 {
		t.Errorf("expected empty builder, got %v %v", wb.conditions, wb.args)
	}
}

func TestWhereBuilder_Build_Empty(t *testing.T) {
	whereClause, args := NewWhereBuilder().Build()

	if whereClause != "" {
		t.Errorf("expected empty string for no conditions, got %q", whereClause)
	}
	if args != nil {
		t.Errorf("expected nil args for no conditions, got %v", args)
	}
}

func TestWhereBuilder(t *testing.T) {
	since := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		build      func(wb *WhereBuilder)
		wantClause string
		wantArgs   []any
	}{
		{
			name:       "single condition",
			build:      func(wb *WhereBuilder) { wb.Add("c.lider", "ana@x.co") },
			wantClause: " WHERE c.lider = $1",
			wantArgs:   []any{"ana@x.co"},
		},
		{
			name: "empty values skipped",
			build: func(wb *WhereBuilder) {
				wb.Add("c.lider", "")
				wb.Add("c.usuario_asignacion", nil)
				wb.Add("c.estado_id", int32(5))
			},
			wantClause: " WHERE c.estado_id = $1",
			wantArgs:   []any{int32(5)},
		},
		{
			name: "since and scope",
			build: func(wb *WhereBuilder) {
				wb.AddSince("c.fecha_asignacion", since)
				wb.Add("c.usuario_asignacion", "op1@x.co")
			},
			wantClause: " WHERE c.fecha_asignacion >= $1 AND c.usuario_asignacion = $2",
			wantArgs:   []any{since, "op1@x.co"},
		},
		{
			name:       "zero since skipped",
			build:      func(wb *WhereBuilder) { wb.AddSince("c.fecha_asignacion", time.Time{}) },
			wantClause: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wb := NewWhereBuilder()
			tt.build(wb)
			gotClause, gotArgs := wb.Build()

			if gotClause != tt.wantClause {
				t.Errorf("clause = %q, want %q", gotClause, tt.wantClause)
			}
			if !reflect.DeepEqual(gotArgs, tt.wantArgs) {
				t.Errorf("args = %v, want %v", gotArgs, tt.wantArgs)
			}
		})
	}
}

func TestWhereBuilder_NextArgIndex(t *testing.T) {
	wb := NewWhereBuilder()

	if wb.NextArgIndex() != 1 {
		t.Errorf("expected initial NextArgIndex to be 1, got %d", wb.NextArgIndex())
	}

	wb.Add("col1", "val1")
	if wb.NextArgIndex() != 2 {
		t.Errorf("expected NextArgIndex after 1 add to be 2, got %d", wb.NextArgIndex())
	}

	wb.AddSince("created_at", time.Now())
	wb.Add("col2", "")
	if wb.NextArgIndex() != 3 {
		t.Errorf("expected NextArgIndex after since and a skipped add to be 3, got %d", wb.NextArgIndex())
	}
}
