package core

// validation.go checks a single cell edit against its column before it
// reaches the grid. The grid never validates values itself.

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/JonMunkholm/casegrid/internal/grid"
)

// numericRegex validates that a string is a valid numeric format after cleanup.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// ValidationError describes one rejected cell value.
type ValidationError struct {
	Column  string // Column ID
	Value   string // The rejected value
	Message string // Human-readable error message
}

func (e ValidationError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("%s: %s", e.Column, e.Message)
	}
	return e.Message
}

func (e ValidationError) Unwrap() error { return ErrInvalidValue }

// ParseNumber parses user-entered numbers. It accepts currency symbols,
// thousands separators and accounting negatives like "(1,200.50)".
func ParseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	s = strings.NewReplacer("$", "", "€", "", ",", "", " ", "").Replace(s)
	if !numericRegex.MatchString(s) {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	if negative {
		f = -f
	}
	return f, nil
}

// ValidateCellValue checks raw against col and returns the value to store
// as the pending edit: float64 for numeric columns, the canonical option for
// select columns and trimmed text otherwise. A nil or empty raw value clears
// numeric and text cells.
func ValidateCellValue(col ScreenColumn, raw any) (any, error) {
	if !col.Editable {
		return nil, grid.ErrNotEditable
	}
	reject := func(msg string) error {
		return ValidationError{Column: col.ID, Value: grid.Stringify(raw), Message: msg}
	}

	switch col.Edit {
	case grid.EditNumeric:
		switch v := raw.(type) {
		case nil:
			return nil, nil
		case float64:
			return v, nil
		case int:
			return float64(v), nil
		case int64:
			return float64(v), nil
		case string:
			if strings.TrimSpace(v) == "" {
				return nil, nil
			}
			f, err := ParseNumber(v)
			if err != nil {
				return nil, reject(err.Error())
			}
			return f, nil
		default:
			return nil, reject(fmt.Sprintf("invalid number %v", v))
		}

	case grid.EditSelect:
		s := strings.TrimSpace(grid.Stringify(raw))
		if s == "" {
			return nil, reject("required value")
		}
		for _, opt := range col.Options {
			if strings.EqualFold(opt, s) {
				return opt, nil
			}
		}
		return nil, reject(fmt.Sprintf("%q is not in the allowed list", s))

	default:
		s := strings.TrimSpace(grid.Stringify(raw))
		if col.MaxLength > 0 && utf8.RuneCountInString(s) > col.MaxLength {
			return nil, reject(fmt.Sprintf("value too long (max %d characters)", col.MaxLength))
		}
		return s, nil
	}
}
