package grid

import "reflect"

// Edits holds pending cell values that have not been persisted. A later
// edit to the same cell overwrites the earlier one and keeps its position.
// The zero value is ready to use; a nil *Edits reads as empty.
type Edits struct {
	order []CellKey
	vals  map[CellKey]any
}

// Value returns the pending value for the cell, or baseline if there is none.
func (e *Edits) Value(row, col string, baseline any) any {
	if e == nil {
		return baseline
	}
	if v, ok := e.vals[CellKey{row, col}]; ok {
		return v
	}
	return baseline
}

// Set records or overwrites the pending value for a cell.
//
// Set does not check the column: callers must only pass editable columns.
// Table.SetEdit is the checked entry point.
func (e *Edits) Set(row, col string, v any) {
	k := CellKey{row, col}
	if e.vals == nil {
		e.vals = make(map[CellKey]any)
	}
	if _, ok := e.vals[k]; !ok {
		e.order = append(e.order, k)
	}
	e.vals[k] = v
}

// Has reports whether the cell carries a pending value.
func (e *Edits) Has(row, col string) bool {
	if e == nil {
		return false
	}
	_, ok := e.vals[CellKey{row, col}]
	return ok
}

// Count returns the number of pending cells.
func (e *Edits) Count() int {
	if e == nil {
		return 0
	}
	return len(e.vals)
}

// Clear discards every pending value.
func (e *Edits) Clear() {
	e.order = nil
	e.vals = nil
}

// Changes resolves pending values into a changeset in edit order. lookup
// maps a row ID to its current record; edits on rows it cannot find are
// left out.
func (e *Edits) Changes(lookup func(row string) (Record, bool), idField string) []Change {
	if e.Count() == 0 {
		return nil
	}
	out := make([]Change, 0, len(e.vals))
	for _, k := range e.order {
		rec, ok := lookup(k.Row)
		if !ok {
			continue
		}
		out = append(out, Change{
			ID:     Stringify(rec[idField]),
			Column: k.Column,
			Value:  e.vals[k],
		})
	}
	return out
}

// columns lists the edited columns of one row in edit order.
func (e *Edits) columns(row string) []string {
	if e.Count() == 0 {
		return nil
	}
	var cols []string
	for _, k := range e.order {
		if k.Row == row {
			cols = append(cols, k.Column)
		}
	}
	return cols
}

// settle removes the cells named by committed whose pending value still
// equals the committed one. Cells edited again since the snapshot stay.
func (e *Edits) settle(committed []Change) {
	for _, c := range committed {
		k := CellKey{c.ID, c.Column}
		v, ok := e.vals[k]
		if !ok || !reflect.DeepEqual(v, c.Value) {
			continue
		}
		delete(e.vals, k)
	}
	e.compact()
}

// prune drops edits on rows that keep no longer finds.
func (e *Edits) prune(keep func(row string) bool) int {
	n := 0
	for k := range e.vals {
		if !keep(k.Row) {
			delete(e.vals, k)
			n++
		}
	}
	if n > 0 {
		e.compact()
	}
	return n
}

func (e *Edits) compact() {
	if len(e.vals) == 0 {
		e.order = nil
		e.vals = nil
		return
	}
	kept := e.order[:0]
	for _, k := range e.order {
		if _, ok := e.vals[k]; ok {
			kept = append(kept, k)
		}
	}
	e.order = kept
}
