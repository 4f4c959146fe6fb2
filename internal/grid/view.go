package grid

import (
	"cmp"
	"slices"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Row is one rendered row: effective values plus the columns that carry a
// pending edit.
type Row struct {
	ID       string   `json:"id"`
	Values   Record   `json:"values"`
	Edited   []string `json:"edited,omitempty"`
	Baseline Record   `json:"-"`
}

// View is the filtered, sorted and paginated slice of a dataset.
type View struct {
	Rows      []Row `json:"rows"`
	PageIndex int   `json:"pageIndex"`
	PageCount int   `json:"pageCount"`
	PageSize  int   `json:"pageSize"`
	Total     int   `json:"total"`
	Filtered  int   `json:"filtered"`
	Pending   int   `json:"pending"`
}

// Derive computes the view of ds without any pending edits applied. A
// non-empty global query must also match, see Table.SetGlobalFilter.
func Derive(ds *Dataset, cols []Column, filters FilterState, global string, sorts []SortSpec, pageIndex, pageSize int) View {
	return derive(ds, indexColumns(cols), filters, global, sorts, pageIndex, pageSize, nil)
}

func derive(ds *Dataset, cols map[string]Column, filters FilterState, global string, sorts []SortSpec, pageIndex, pageSize int, edits *Edits) View {
	if pageSize < 1 {
		pageSize = 1
	}
	matched := filterRows(ds, cols, filters, global, "")
	sortRows(matched, cols, sorts)

	count := PageCount(len(matched), pageSize)
	pageIndex = ClampIndex(pageIndex, count)

	start := pageIndex * pageSize
	end := min(start+pageSize, len(matched))

	v := View{
		Rows:      make([]Row, 0, end-start),
		PageIndex: pageIndex,
		PageCount: count,
		PageSize:  pageSize,
		Total:     ds.Len(),
		Filtered:  len(matched),
		Pending:   edits.Count(),
	}
	for _, r := range matched[start:end] {
		v.Rows = append(v.Rows, renderRow(ds.idField, r, edits))
	}
	return v
}

func renderRow(idField string, r Record, edits *Edits) Row {
	id := Stringify(r[idField])
	row := Row{ID: id, Values: r, Baseline: r}
	if edits.Count() == 0 {
		return row
	}
	cols := edits.columns(id)
	if len(cols) == 0 {
		return row
	}
	eff := make(Record, len(r)+len(cols))
	for k, v := range r {
		eff[k] = v
	}
	for _, c := range cols {
		eff[c] = edits.Value(id, c, r[c])
	}
	row.Values = eff
	row.Edited = cols
	return row
}

// PageCount returns ceil(n/size), never less than 1.
func PageCount(n, size int) int {
	if size < 1 {
		size = 1
	}
	return max(1, (n+size-1)/size)
}

// ClampIndex keeps i within [0, count-1].
func ClampIndex(i, count int) int {
	if i >= count {
		i = count - 1
	}
	return max(i, 0)
}

func indexColumns(cols []Column) map[string]Column {
	m := make(map[string]Column, len(cols))
	for _, c := range cols {
		m[c.ID] = c
	}
	return m
}

type predicate struct {
	column string
	match  func(v any) bool
}

// compilePredicates builds one predicate per active filter, skipping the
// column named by except.
func compilePredicates(cols map[string]Column, filters FilterState, except string) []predicate {
	var preds []predicate
	fold := cases.Fold()
	for id, f := range filters {
		col, ok := cols[id]
		if !ok || id == except || f.IsEmpty() {
			continue
		}
		switch col.Filter {
		case FilterText:
			if f.Value == "" {
				continue
			}
			needle := fold.String(f.Value)
			preds = append(preds, predicate{id, func(v any) bool {
				return strings.Contains(fold.String(Stringify(v)), needle)
			}})
		case FilterSelect:
			if f.Value == "" {
				continue
			}
			want := f.Value
			preds = append(preds, predicate{id, func(v any) bool {
				return Stringify(v) == want
			}})
		case FilterMultiSelect:
			if len(f.Values) == 0 {
				continue
			}
			set := make(map[string]struct{}, len(f.Values))
			for _, s := range f.Values {
				set[s] = struct{}{}
			}
			preds = append(preds, predicate{id, func(v any) bool {
				_, ok := set[Stringify(v)]
				return ok
			}})
		}
	}
	return preds
}

// globalMatcher returns a row predicate for the global query: a folded
// substring match against any filterable column. It returns nil for an
// empty query.
func globalMatcher(cols map[string]Column, global string) func(Record) bool {
	if strings.TrimSpace(global) == "" {
		return nil
	}
	fold := cases.Fold()
	needle := fold.String(strings.TrimSpace(global))
	var searched []string
	for id, c := range cols {
		if c.Filter != FilterNone {
			searched = append(searched, id)
		}
	}
	return func(r Record) bool {
		for _, id := range searched {
			if strings.Contains(fold.String(Stringify(r[id])), needle) {
				return true
			}
		}
		return false
	}
}

func filterRows(ds *Dataset, cols map[string]Column, filters FilterState, global, except string) []Record {
	rows := ds.Rows()
	preds := compilePredicates(cols, filters, except)
	search := globalMatcher(cols, global)
	out := make([]Record, 0, len(rows))
rows:
	for _, r := range rows {
		for _, p := range preds {
			if !p.match(r[p.column]) {
				continue rows
			}
		}
		if search != nil && !search(r) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func sortRows(rows []Record, cols map[string]Column, sorts []SortSpec) {
	keys := make([]SortSpec, 0, len(sorts))
	for _, s := range sorts {
		if _, ok := cols[s.Column]; ok {
			keys = append(keys, s)
		}
	}
	if len(keys) == 0 {
		return
	}
	slices.SortStableFunc(rows, func(a, b Record) int {
		for _, k := range keys {
			if c := compareKey(a[k.Column], b[k.Column], k.Desc); c != 0 {
				return c
			}
		}
		return 0
	})
}

// compareKey orders nil before any value regardless of direction.
func compareKey(a, b any, desc bool) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	c := compareValues(a, b)
	if desc {
		return -c
	}
	return c
}

// Kinds of sortable values, in ascending order. Values of different kinds
// order by kind alone, so mixed number and text columns stay totally ordered.
const (
	rankNil = iota
	rankBool
	rankNumber
	rankText
)

func valueRank(v any) int {
	switch v.(type) {
	case nil:
		return rankNil
	case bool:
		return rankBool
	}
	if _, ok := toFloat(v); ok {
		return rankNumber
	}
	return rankText
}

func compareValues(a, b any) int {
	ra, rb := valueRank(a), valueRank(b)
	if ra != rb {
		return cmp.Compare(ra, rb)
	}
	switch ra {
	case rankNil:
		return 0
	case rankBool:
		ab, bb := a.(bool), b.(bool)
		switch {
		case ab == bb:
			return 0
		case !ab:
			return -1
		default:
			return 1
		}
	case rankNumber:
		af, _ := toFloat(a)
		bf, _ := toFloat(b)
		return cmp.Compare(af, bf)
	}
	return strings.Compare(Stringify(a), Stringify(b))
}

// Facets returns the reachable options of every choice column: distinct
// values among rows passing the global query and all filters except the
// column's own, in Spanish collation order with the empty value last.
// Columns with declared options keep the declared order and only list
// reachable options.
func Facets(ds *Dataset, cols []Column, filters FilterState, global string) map[string][]string {
	byID := indexColumns(cols)
	coll := collate.New(language.Spanish)
	out := make(map[string][]string)
	for _, col := range cols {
		if !col.IsChoice() {
			continue
		}
		seen := make(map[string]struct{})
		for _, r := range filterRows(ds, byID, filters, global, col.ID) {
			seen[Stringify(r[col.ID])] = struct{}{}
		}
		out[col.ID] = facetValues(seen, col.Options, coll)
	}
	return out
}

func facetValues(seen map[string]struct{}, options []string, coll *collate.Collator) []string {
	if len(options) > 0 {
		vals := make([]string, 0, len(options))
		for _, o := range options {
			if _, ok := seen[o]; ok {
				vals = append(vals, o)
			}
		}
		return vals
	}
	vals := make([]string, 0, len(seen))
	for v := range seen {
		vals = append(vals, v)
	}
	sort.Slice(vals, func(i, j int) bool {
		a, b := vals[i], vals[j]
		if a == "" || b == "" {
			return b == "" && a != ""
		}
		if c := coll.CompareString(a, b); c != 0 {
			return c < 0
		}
		return a < b
	})
	return vals
}
