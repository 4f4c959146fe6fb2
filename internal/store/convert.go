package store

// convert.go moves values between grid records and PostgreSQL types.
//
// Reads turn pgtype values into the plain Go values grid records hold:
// NULL becomes nil, numerics become float64 and dates become YYYY-MM-DD
// strings. Writes go the other way for the editable columns.

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/casegrid/internal/grid"
)

// ToPgText converts a value to pgtype.Text.
// Returns invalid if the value is nil, empty or only whitespace.
func ToPgText(v any) pgtype.Text {
	s := strings.TrimSpace(grid.Stringify(v))
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

// ToPgNumeric converts a float or numeric string to pgtype.Numeric.
// nil becomes NULL.
func ToPgNumeric(v any) (pgtype.Numeric, error) {
	var n pgtype.Numeric
	switch x := v.(type) {
	case nil:
		return n, nil
	case float64:
		if err := n.Scan(strconv.FormatFloat(x, 'f', -1, 64)); err != nil {
			return n, fmt.Errorf("invalid number %v: %w", x, err)
		}
		return n, nil
	case string:
		if strings.TrimSpace(x) == "" {
			return n, nil
		}
		if err := n.Scan(strings.TrimSpace(x)); err != nil {
			return n, fmt.Errorf("invalid number %q: %w", x, err)
		}
		return n, nil
	}
	return n, fmt.Errorf("invalid number %v", v)
}

// ToPgInt4 converts a whole number to pgtype.Int4. nil becomes NULL.
func ToPgInt4(v any) (pgtype.Int4, error) {
	switch x := v.(type) {
	case nil:
		return pgtype.Int4{}, nil
	case int:
		return pgtype.Int4{Int32: int32(x), Valid: true}, nil
	case int32:
		return pgtype.Int4{Int32: x, Valid: true}, nil
	case int64:
		return pgtype.Int4{Int32: int32(x), Valid: true}, nil
	case float64:
		if x != float64(int32(x)) {
			return pgtype.Int4{}, fmt.Errorf("invalid number %v: must be a whole number", x)
		}
		return pgtype.Int4{Int32: int32(x), Valid: true}, nil
	}
	return pgtype.Int4{}, fmt.Errorf("invalid number %v", v)
}

// ToPgUUID converts a string to pgtype.UUID.
// Returns invalid if the string is empty or not a valid UUID.
func ToPgUUID(s string) pgtype.UUID {
	if s == "" {
		return pgtype.UUID{Valid: false}
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return pgtype.UUID{Valid: false}
	}
	return pgtype.UUID{Bytes: parsed, Valid: true}
}

// PgUUIDToString converts a pgtype.UUID to its string representation.
// Returns empty string if the UUID is invalid.
func PgUUIDToString(u pgtype.UUID) string {
	if !u.Valid {
		return ""
	}
	return uuid.UUID(u.Bytes).String()
}

func textValue(t pgtype.Text) any {
	if !t.Valid {
		return nil
	}
	return t.String
}

func int4Value(i pgtype.Int4) any {
	if !i.Valid {
		return nil
	}
	return int64(i.Int32)
}

func numericValue(n pgtype.Numeric) any {
	if !n.Valid {
		return nil
	}
	f, err := n.Float64Value()
	if err != nil || !f.Valid {
		return nil
	}
	return f.Float64
}

func dateValue(d pgtype.Date) any {
	if !d.Valid {
		return nil
	}
	return d.Time.Format(time.DateOnly)
}
