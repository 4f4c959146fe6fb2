package grid

import "fmt"

// Dataset is the baseline collection of records in source order, indexed by
// the string form of the identifier field.
type Dataset struct {
	idField string
	rows    []Record
	index   map[string]int
}

// NewDataset indexes rows by idField. Every row must carry a non-empty,
// unique identifier.
func NewDataset(idField string, rows []Record) (*Dataset, error) {
	ds := &Dataset{
		idField: idField,
		rows:    append([]Record(nil), rows...),
		index:   make(map[string]int, len(rows)),
	}
	for i, r := range rows {
		id := Stringify(r[idField])
		if id == "" {
			return nil, fmt.Errorf("%w: row %d has empty %q", ErrMissingIdentifier, i, idField)
		}
		if prev, ok := ds.index[id]; ok {
			return nil, fmt.Errorf("%w: %q at rows %d and %d", ErrDuplicateIdentifier, id, prev, i)
		}
		ds.index[id] = i
	}
	return ds, nil
}

// IDField returns the name of the identifier field.
func (d *Dataset) IDField() string { return d.idField }

// Len returns the number of records.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.rows)
}

// RowID returns the identifier of the i-th record.
func (d *Dataset) RowID(i int) string {
	return Stringify(d.rows[i][d.idField])
}

// Lookup returns the record with the given identifier.
func (d *Dataset) Lookup(id string) (Record, bool) {
	if d == nil {
		return nil, false
	}
	i, ok := d.index[id]
	if !ok {
		return nil, false
	}
	return d.rows[i], true
}

// Rows returns the records in source order. Callers must not mutate them.
func (d *Dataset) Rows() []Record {
	if d == nil {
		return nil
	}
	return d.rows
}

// apply folds committed changes into the baseline. Changes for rows that
// are no longer present are skipped. Each touched record is copied so views
// handed out earlier keep their values.
func (d *Dataset) apply(changes []Change) int {
	n := 0
	for _, c := range changes {
		i, ok := d.index[c.ID]
		if !ok {
			continue
		}
		if c.Column == d.idField {
			// identifier columns are never editable; keep the index stable
			continue
		}
		next := make(Record, len(d.rows[i])+1)
		for k, v := range d.rows[i] {
			next[k] = v
		}
		next[c.Column] = c.Value
		d.rows[i] = next
		n++
	}
	return n
}
