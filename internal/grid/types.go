// Package grid is the tabular engine behind every case screen: it derives
// filtered, sorted and paginated views from a baseline dataset, tracks
// pending cell edits, and commits them in one batch through a host-supplied
// submit function.
package grid

import (
	"errors"
	"fmt"
	"strconv"
)

// Record is one row of a dataset, keyed by column ID.
// Values are string, a Go numeric type, bool or nil.
type Record map[string]any

// FilterKind selects the predicate applied to a column's filter value.
type FilterKind string

const (
	FilterNone        FilterKind = ""
	FilterText        FilterKind = "text"
	FilterSelect      FilterKind = "select"
	FilterMultiSelect FilterKind = "multiselect"
)

// EditKind describes the editor a column expects when it is editable.
type EditKind string

const (
	EditText    EditKind = "text"
	EditNumeric EditKind = "numeric"
	EditSelect  EditKind = "select"
)

// Column describes one addressable attribute of a Record.
type Column struct {
	ID       string     `json:"id" yaml:"id"`
	Label    string     `json:"label" yaml:"label"`
	Filter   FilterKind `json:"filter,omitempty" yaml:"filter"`
	Options  []string   `json:"options,omitempty" yaml:"options"`
	Editable bool       `json:"editable,omitempty" yaml:"editable"`
	Edit     EditKind   `json:"edit,omitempty" yaml:"edit"`
}

// IsChoice reports whether the column offers a facet list.
func (c Column) IsChoice() bool {
	return c.Filter == FilterSelect || c.Filter == FilterMultiSelect
}

// Filter is the active filter value for one column. Value is read by text
// and select filters, Values by multiselect filters.
type Filter struct {
	Value  string   `json:"value,omitempty"`
	Values []string `json:"values,omitempty"`
}

// IsEmpty reports whether the filter matches every row.
func (f Filter) IsEmpty() bool {
	return f.Value == "" && len(f.Values) == 0
}

// FilterState maps column ID to its active filter.
type FilterState map[string]Filter

// SortSpec is one key of a multi-column sort.
type SortSpec struct {
	Column string `json:"column" yaml:"column"`
	Desc   bool   `json:"desc" yaml:"desc"`
}

// CellKey addresses one cell by internal row ID and column ID.
type CellKey struct {
	Row    string
	Column string
}

// Change is a pending edit resolved to the row's business identifier.
type Change struct {
	ID     string `json:"id"`
	Column string `json:"column"`
	Value  any    `json:"value"`
}

var (
	ErrUnknownColumn       = errors.New("grid: unknown column")
	ErrUnknownRow          = errors.New("grid: unknown row")
	ErrNotEditable         = errors.New("grid: column is not editable")
	ErrDuplicateIdentifier = errors.New("grid: duplicate identifier")
	ErrMissingIdentifier   = errors.New("grid: record has no identifier")
	ErrCommitInProgress    = errors.New("grid: commit already in progress")
	ErrInvalidPageSize     = errors.New("grid: page size must be at least 1")
	ErrNotFilterable       = errors.New("grid: column is not filterable")
	ErrFilterShape         = errors.New("grid: filter does not fit the column's filter kind")
)

// PartialCommitError is returned by a SubmitFunc that persisted some of the
// changes before failing. Applied lists the changes that did persist.
type PartialCommitError struct {
	Applied []Change
	Err     error
}

func (e *PartialCommitError) Error() string {
	return fmt.Sprintf("partial commit: %d change(s) applied: %v", len(e.Applied), e.Err)
}

func (e *PartialCommitError) Unwrap() error { return e.Err }

// Stringify returns the string form used by filters, facets and identifiers.
func Stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int8, int16, int32, int64:
		n, _ := toInt64(x)
		return strconv.FormatInt(n, 10)
	case uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(x)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

func toInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	}
	return 0, false
}

// toFloat reports the numeric value of v, if it has one.
func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int, int8, int16, int32, int64:
		n, _ := toInt64(x)
		return float64(n), true
	case uint:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}
