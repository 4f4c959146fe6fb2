package store

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

func TestToPgText(t *testing.T) {
	tests := []struct {
		name      string
		input     any
		wantValid bool
		want      string
	}{
		{"plain", "hello", true, "hello"},
		{"trimmed", "  hola  ", true, "hola"},
		{"whitespace only", "   ", false, ""},
		{"nil", nil, false, ""},
		{"number", 42, true, "42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToPgText(tt.input)
			if got.Valid != tt.wantValid {
				t.Fatalf("ToPgText(%v).Valid = %v, want %v", tt.input, got.Valid, tt.wantValid)
			}
			if got.String != tt.want {
				t.Errorf("ToPgText(%v) = %q, want %q", tt.input, got.String, tt.want)
			}
		})
	}
}

func TestToPgNumeric(t *testing.T) {
	tests := []struct {
		name      string
		input     any
		wantValid bool
		wantValue float64
		wantErr   bool
	}{
		{"float", 1250.5, true, 1250.5, false},
		{"integer float", 300.0, true, 300, false},
		{"string", "99.95", true, 99.95, false},
		{"nil is null", nil, false, 0, false},
		{"blank is null", " ", false, 0, false},
		{"garbage", "doce", false, 0, true},
		{"bool", true, false, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToPgNumeric(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ToPgNumeric(%v) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got.Valid != tt.wantValid {
				t.Fatalf("ToPgNumeric(%v).Valid = %v, want %v", tt.input, got.Valid, tt.wantValid)
			}
			if !tt.wantValid {
				return
			}
			if v := numericValue(got); v != tt.wantValue {
				t.Errorf("round trip = %v, want %v", v, tt.wantValue)
			}
		})
	}
}

func TestToPgInt4(t *testing.T) {
	tests := []struct {
		name    string
		input   any
		want    pgtype.Int4
		wantErr bool
	}{
		{"int", 3, pgtype.Int4{Int32: 3, Valid: true}, false},
		{"whole float", 2.0, pgtype.Int4{Int32: 2, Valid: true}, false},
		{"fraction", 2.5, pgtype.Int4{}, true},
		{"nil", nil, pgtype.Int4{}, false},
		{"string", "2", pgtype.Int4{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToPgInt4(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ToPgInt4(%v) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ToPgInt4(%v) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestPgUUIDRoundTrip(t *testing.T) {
	const id = "6f1c3b9e-2d4a-4c1e-9b7a-0e5d8f2a1c3b"
	if got := PgUUIDToString(ToPgUUID(id)); got != id {
		t.Errorf("round trip = %q, want %q", got, id)
	}
	if ToPgUUID("not-a-uuid").Valid {
		t.Error("ToPgUUID should reject malformed input")
	}
	if PgUUIDToString(pgtype.UUID{}) != "" {
		t.Error("invalid UUID should format as empty string")
	}
}

func TestReadValues(t *testing.T) {
	d := pgtype.Date{Time: time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC), Valid: true}
	if got := dateValue(d); got != "2024-03-09" {
		t.Errorf("dateValue = %v, want 2024-03-09", got)
	}
	if got := dateValue(pgtype.Date{}); got != nil {
		t.Errorf("null date = %v, want nil", got)
	}
	if got := int4Value(pgtype.Int4{Int32: 7, Valid: true}); got != int64(7) {
		t.Errorf("int4Value = %v, want 7", got)
	}
	if got := textValue(pgtype.Text{}); got != nil {
		t.Errorf("null text = %v, want nil", got)
	}
}
