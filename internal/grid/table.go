package grid

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// SubmitFunc persists a changeset. It must either persist every change or
// return an error; a *PartialCommitError reports the changes that did
// persist before the failure.
type SubmitFunc func(ctx context.Context, changes []Change) error

// CommitResult summarizes one Commit call.
type CommitResult struct {
	Submitted int `json:"submitted"`
	Applied   int `json:"applied"`
	Stale     int `json:"stale"`
	Pending   int `json:"pending"`
}

// Option configures a Table.
type Option func(*Table)

// WithPager replaces the default internal pager, typically with one from
// NewControlledPager.
func WithPager(p *Pager) Option {
	return func(t *Table) { t.pager = p }
}

// WithPageSize sets the initial page size of whichever pager the table
// ends up with, including one given by WithPager. Zero keeps the pager's
// own size.
func WithPageSize(n int) Option {
	return func(t *Table) { t.pageSize = n }
}

// WithSort sets the initial sort.
func WithSort(specs ...SortSpec) Option {
	return func(t *Table) { t.sorts = append([]SortSpec(nil), specs...) }
}

// WithResetPageOnReplace returns to the first page whenever the dataset is
// replaced.
func WithResetPageOnReplace() Option {
	return func(t *Table) { t.resetOnReplace = true }
}

// Table is one grid instance: a baseline dataset with its view state and
// pending edits. It is safe for concurrent use. The lock is not held while
// a SubmitFunc runs, but a controlled pager's onChange is called with the
// lock held and must not call back into the Table.
type Table struct {
	mu sync.Mutex

	idField string
	cols    []Column
	byID    map[string]Column

	ds      *Dataset
	edits   *Edits
	filters FilterState
	global  string
	sorts   []SortSpec
	pager   *Pager

	pageSize int

	resetOnReplace bool
	committing     bool
}

// NewTable returns an empty table keyed by idField.
func NewTable(idField string, cols []Column, opts ...Option) (*Table, error) {
	if idField == "" {
		return nil, errors.New("grid: identifier field is required")
	}
	if err := ValidateColumns(cols); err != nil {
		return nil, err
	}
	t := &Table{
		idField: idField,
		cols:    append([]Column(nil), cols...),
		byID:    indexColumns(cols),
		ds:      &Dataset{idField: idField, index: map[string]int{}},
		edits:   &Edits{},
		filters: FilterState{},
		pager:   NewPager(10),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.pageSize != 0 {
		// no rows yet, so nothing to clamp and no host to notify
		if t.pageSize < 1 {
			return nil, ErrInvalidPageSize
		}
		t.pager.size = t.pageSize
	}
	for _, s := range t.sorts {
		if _, ok := t.byID[s.Column]; !ok {
			return nil, fmt.Errorf("%w: sort on %q", ErrUnknownColumn, s.Column)
		}
	}
	return t, nil
}

// ValidateColumns checks a column set for a table.
func ValidateColumns(cols []Column) error {
	seen := make(map[string]bool, len(cols))
	for i, c := range cols {
		if c.ID == "" {
			return fmt.Errorf("grid: column %d has no id", i)
		}
		if seen[c.ID] {
			return fmt.Errorf("grid: duplicate column %q", c.ID)
		}
		seen[c.ID] = true
		if !c.Editable {
			continue
		}
		switch c.Edit {
		case EditText, EditNumeric:
		case EditSelect:
			if len(c.Options) == 0 {
				return fmt.Errorf("grid: column %q: select edit needs options", c.ID)
			}
		default:
			return fmt.Errorf("grid: column %q: editable column needs an edit kind", c.ID)
		}
	}
	return nil
}

// IDField returns the identifier field.
func (t *Table) IDField() string { return t.idField }

// Columns returns a copy of the column definitions.
func (t *Table) Columns() []Column {
	return append([]Column(nil), t.cols...)
}

// Column returns the definition of one column.
func (t *Table) Column(id string) (Column, bool) {
	c, ok := t.byID[id]
	return c, ok
}

// Replace swaps the baseline dataset. Filters, sort, page and pending edits
// survive; the page index is reset only with WithResetPageOnReplace.
func (t *Table) Replace(rows []Record) error {
	ds, err := NewDataset(t.idField, rows)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ds = ds
	if t.resetOnReplace {
		t.pager.Reset()
	}
	return nil
}

// Lookup returns the baseline record with the given identifier.
func (t *Table) Lookup(id string) (Record, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ds.Lookup(id)
}

// Len returns the size of the baseline dataset.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ds.Len()
}

// SetFilter activates a filter on a column. An empty filter clears it.
func (t *Table) SetFilter(col string, f Filter) error {
	c, ok := t.byID[col]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownColumn, col)
	}
	if c.Filter == FilterNone {
		return fmt.Errorf("%w: %q", ErrNotFilterable, col)
	}
	if c.Filter == FilterMultiSelect && f.Value != "" {
		return fmt.Errorf("%w: multiselect column %q takes values", ErrFilterShape, col)
	}
	if c.Filter != FilterMultiSelect && len(f.Values) > 0 {
		return fmt.Errorf("%w: %s column %q takes a single value", ErrFilterShape, c.Filter, col)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if f.IsEmpty() {
		delete(t.filters, col)
		return nil
	}
	f.Values = append([]string(nil), f.Values...)
	t.filters[col] = f
	return nil
}

// ClearFilter removes the filter on one column.
func (t *Table) ClearFilter(col string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.filters, col)
}

// ClearFilters removes every filter, the global query included.
func (t *Table) ClearFilters() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.filters = FilterState{}
	t.global = ""
}

// SetGlobalFilter sets the query matched case-insensitively as a substring
// of any filterable column. It is ANDed with the column filters; an empty
// query clears it.
func (t *Table) SetGlobalFilter(q string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.global = strings.TrimSpace(q)
}

// GlobalFilter returns the global query.
func (t *Table) GlobalFilter() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.global
}

// Filters returns a copy of the filter state.
func (t *Table) Filters() FilterState {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(FilterState, len(t.filters))
	for k, v := range t.filters {
		out[k] = v
	}
	return out
}

// SetSort replaces the sort. An empty sort restores source order.
func (t *Table) SetSort(specs []SortSpec) error {
	for _, s := range specs {
		if _, ok := t.byID[s.Column]; !ok {
			return fmt.Errorf("%w: sort on %q", ErrUnknownColumn, s.Column)
		}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sorts = append([]SortSpec(nil), specs...)
	return nil
}

// Sorts returns a copy of the sort state.
func (t *Table) Sorts() []SortSpec {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]SortSpec(nil), t.sorts...)
}

// SetPage moves to page i; out-of-range indexes clamp on the next View.
func (t *Table) SetPage(i int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pager.SetIndex(i)
}

// SetPageSize changes the page size and clamps the current index.
func (t *Table) SetPageSize(n int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	filtered := len(filterRows(t.ds, t.byID, t.filters, t.global, ""))
	return t.pager.SetSize(n, filtered)
}

// View derives the current page with pending edits applied for display.
// Filtering and sorting read baseline values only.
func (t *Table) View() View {
	t.mu.Lock()
	defer t.mu.Unlock()
	filtered := len(filterRows(t.ds, t.byID, t.filters, t.global, ""))
	idx := t.pager.Clamp(filtered)
	return derive(t.ds, t.byID, t.filters, t.global, t.sorts, idx, t.pager.Size(), t.edits)
}

// Facets returns the chained facet options of every choice column.
func (t *Table) Facets() map[string][]string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Facets(t.ds, t.cols, t.filters, t.global)
}

// SetEdit records a pending value for an editable cell of a present row.
// Values are stored as given; validation belongs to the caller.
func (t *Table) SetEdit(row, col string, v any) error {
	c, ok := t.byID[col]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownColumn, col)
	}
	if !c.Editable || col == t.idField {
		return fmt.Errorf("%w: %q", ErrNotEditable, col)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.ds.Lookup(row); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownRow, row)
	}
	t.edits.Set(row, col, v)
	return nil
}

// Value returns the effective value of a cell.
func (t *Table) Value(row, col string) (any, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.ds.Lookup(row)
	if !ok {
		return nil, false
	}
	return t.edits.Value(row, col, rec[col]), true
}

// HasEdit reports whether a cell carries a pending value.
func (t *Table) HasEdit(row, col string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.edits.Has(row, col)
}

// EditCount returns the number of pending cells.
func (t *Table) EditCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.edits.Count()
}

// CancelEdits discards every pending value.
func (t *Table) CancelEdits() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := t.edits.Count()
	t.edits.Clear()
	return n
}

// Changes returns the pending changeset against the current dataset.
func (t *Table) Changes() []Change {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.edits.Changes(t.ds.Lookup, t.idField)
}

// Committing reports whether a commit is in flight.
func (t *Table) Committing() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.committing
}

// Commit submits the pending changeset. With nothing pending it succeeds
// without calling submit. On success the changes are folded into the
// baseline and their edits cleared; edits made while submit was running are
// kept. On failure every edit stays pending, except the changes a
// *PartialCommitError reports as applied.
func (t *Table) Commit(ctx context.Context, submit SubmitFunc) (CommitResult, error) {
	t.mu.Lock()
	if t.committing {
		t.mu.Unlock()
		return CommitResult{}, ErrCommitInProgress
	}
	changes := t.edits.Changes(t.ds.Lookup, t.idField)
	res := CommitResult{
		Submitted: len(changes),
		Stale:     t.edits.Count() - len(changes),
	}
	if len(changes) == 0 {
		t.edits.prune(t.present)
		res.Pending = t.edits.Count()
		t.mu.Unlock()
		return res, nil
	}
	t.committing = true
	t.mu.Unlock()

	err := callSubmit(ctx, submit, changes)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.committing = false

	applied := changes
	if err != nil {
		var partial *PartialCommitError
		if !errors.As(err, &partial) {
			res.Pending = t.edits.Count()
			return res, fmt.Errorf("commit %d change(s): %w", len(changes), err)
		}
		applied = partial.Applied
	}
	t.ds.apply(applied)
	t.edits.settle(applied)
	res.Applied = len(applied)
	if err != nil {
		res.Pending = t.edits.Count()
		return res, fmt.Errorf("commit %d change(s): %w", len(changes), err)
	}
	t.edits.prune(t.present)
	res.Pending = t.edits.Count()
	return res, nil
}

func (t *Table) present(row string) bool {
	_, ok := t.ds.Lookup(row)
	return ok
}

func callSubmit(ctx context.Context, submit SubmitFunc, changes []Change) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("submit panicked: %v", r)
		}
	}()
	return submit(ctx, append([]Change(nil), changes...))
}
