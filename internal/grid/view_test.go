package grid

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var casoColumns = []Column{
	{ID: "radicado", Label: "Radicado", Filter: FilterText},
	{ID: "ips_nombre", Label: "IPS", Filter: FilterText},
	{ID: "estado", Label: "Estado", Filter: FilterMultiSelect, Editable: true, Edit: EditSelect,
		Options: []string{"ASIGNADA", "LIQUIDADO", "INCONSISTENCIA", "DEVOLUCION", "NO COMPLETADO"}},
	{ID: "lider", Label: "Líder", Filter: FilterSelect},
	{ID: "valor_factura", Label: "Valor", Editable: true, Edit: EditNumeric},
	{ID: "prioridad", Label: "Prioridad"},
}

func casos() []Record {
	return []Record{
		{"radicado": "A1", "ips_nombre": "Clínica Norte", "estado": "ASIGNADA", "lider": "ana", "valor_factura": 1200.5, "prioridad": 2},
		{"radicado": "A2", "ips_nombre": "Hospital Sur", "estado": "LIQUIDADO", "lider": "beto", "valor_factura": 300, "prioridad": nil},
		{"radicado": "A3", "ips_nombre": "CLÍNICA del Este", "estado": "ASIGNADA", "lider": "beto", "valor_factura": 50, "prioridad": 1},
		{"radicado": "A4", "ips_nombre": nil, "estado": "DEVOLUCION", "lider": "ana", "valor_factura": 300, "prioridad": 2},
		{"radicado": "A5", "ips_nombre": "Ópticas", "estado": "", "lider": "", "valor_factura": nil, "prioridad": 1},
	}
}

func mustDataset(t *testing.T, rows []Record) *Dataset {
	t.Helper()
	ds, err := NewDataset("radicado", rows)
	require.NoError(t, err)
	return ds
}

func ids(v View) []string {
	out := make([]string, 0, len(v.Rows))
	for _, r := range v.Rows {
		out = append(out, r.ID)
	}
	return out
}

func TestNewDatasetRejectsBadIdentifiers(t *testing.T) {
	_, err := NewDataset("radicado", []Record{{"radicado": "A1"}, {"radicado": "A1"}})
	require.ErrorIs(t, err, ErrDuplicateIdentifier)

	_, err = NewDataset("radicado", []Record{{"radicado": "A1"}, {"otro": 1}})
	require.ErrorIs(t, err, ErrMissingIdentifier)

	ds, err := NewDataset("id", []Record{{"id": 7}, {"id": int64(8)}})
	require.NoError(t, err)
	_, ok := ds.Lookup("8")
	assert.True(t, ok)
}

func TestDeriveFilters(t *testing.T) {
	ds := mustDataset(t, casos())

	tests := []struct {
		name    string
		filters FilterState
		want    []string
	}{
		{"no filters", nil, []string{"A1", "A2", "A3", "A4", "A5"}},
		{"text is case insensitive", FilterState{"ips_nombre": {Value: "clínica"}}, []string{"A1", "A3"}},
		{"nil never matches a needle", FilterState{"ips_nombre": {Value: "o"}}, []string{"A1", "A2"}},
		{"empty text matches all", FilterState{"ips_nombre": {Value: ""}}, []string{"A1", "A2", "A3", "A4", "A5"}},
		{"select is exact", FilterState{"lider": {Value: "ana"}}, []string{"A1", "A4"}},
		{"select does not match substring", FilterState{"lider": {Value: "an"}}, []string{}},
		{"multiselect membership", FilterState{"estado": {Values: []string{"LIQUIDADO", "DEVOLUCION"}}}, []string{"A2", "A4"}},
		{"empty multiselect matches all", FilterState{"estado": {Values: []string{}}}, []string{"A1", "A2", "A3", "A4", "A5"}},
		{"filters combine with and", FilterState{
			"estado": {Values: []string{"ASIGNADA"}},
			"lider":  {Value: "beto"},
		}, []string{"A3"}},
		{"unknown column ignored", FilterState{"nope": {Value: "x"}}, []string{"A1", "A2", "A3", "A4", "A5"}},
		{"text folds identifiers", FilterState{"radicado": {Value: "a"}}, []string{"A1", "A2", "A3", "A4", "A5"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Derive(ds, casoColumns, tt.filters, "", nil, 0, 50)
			if diff := cmp.Diff(tt.want, ids(v)); diff != "" {
				t.Errorf("rows mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, len(tt.want), v.Filtered)
			assert.Equal(t, 5, v.Total)
		})
	}
}

func TestTextFilterMatchesSubstringProperty(t *testing.T) {
	cols := []Column{{ID: "id", Filter: FilterText}, {ID: "v", Filter: FilterText}}
	values := []any{"Hospital", "HOSPITAL san", "casa", "", nil, 42, 4.5, true}
	needles := []string{"", "hos", "SAN", "4", "ru", "a"}

	rows := make([]Record, len(values))
	for i, v := range values {
		rows[i] = Record{"id": i, "v": v}
	}
	ds, err := NewDataset("id", rows)
	require.NoError(t, err)

	for _, needle := range needles {
		v := Derive(ds, cols, FilterState{"v": {Value: needle}}, "", nil, 0, 100)
		got := map[string]bool{}
		for _, r := range v.Rows {
			got[r.ID] = true
		}
		for i, val := range values {
			want := needle == "" || containsFold(Stringify(val), needle)
			assert.Equal(t, want, got[fmt.Sprint(i)], "value %v needle %q", val, needle)
		}
	}
}

func containsFold(s, sub string) bool {
	ls, lsub := []rune(lower(s)), []rune(lower(sub))
	for i := 0; i+len(lsub) <= len(ls); i++ {
		if string(ls[i:i+len(lsub)]) == string(lsub) {
			return true
		}
	}
	return false
}

func lower(s string) string {
	out := []rune(s)
	for i, r := range out {
		if r >= 'A' && r <= 'Z' {
			out[i] = r + 'a' - 'A'
		}
	}
	return string(out)
}

func TestDeriveSort(t *testing.T) {
	ds := mustDataset(t, casos())

	tests := []struct {
		name  string
		sorts []SortSpec
		want  []string
	}{
		{"no sort keeps source order", nil, []string{"A1", "A2", "A3", "A4", "A5"}},
		{"numeric ascending nil first", []SortSpec{{Column: "valor_factura"}}, []string{"A5", "A3", "A2", "A4", "A1"}},
		{"numeric descending nil still first", []SortSpec{{Column: "valor_factura", Desc: true}}, []string{"A5", "A1", "A2", "A4", "A3"}},
		{"ties keep source order", []SortSpec{{Column: "lider"}}, []string{"A5", "A1", "A4", "A2", "A3"}},
		{"secondary key breaks ties", []SortSpec{{Column: "valor_factura"}, {Column: "radicado", Desc: true}}, []string{"A5", "A3", "A4", "A2", "A1"}},
		{"nil sorts before ints", []SortSpec{{Column: "prioridad"}}, []string{"A2", "A3", "A5", "A1", "A4"}},
		{"unknown sort column ignored", []SortSpec{{Column: "nope"}}, []string{"A1", "A2", "A3", "A4", "A5"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Derive(ds, casoColumns, nil, "", tt.sorts, 0, 50)
			if diff := cmp.Diff(tt.want, ids(v)); diff != "" {
				t.Errorf("order mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDeriveSortDoesNotMutateDataset(t *testing.T) {
	ds := mustDataset(t, casos())
	Derive(ds, casoColumns, nil, "", []SortSpec{{Column: "valor_factura"}}, 0, 50)
	assert.Equal(t, "A1", ds.RowID(0))
}

func TestDeriveSortMixedKindsIsInputOrderIndependent(t *testing.T) {
	cols := []Column{{ID: "id"}, {ID: "v"}}
	a := Record{"id": "a", "v": 9}
	b := Record{"id": "b", "v": "50"}
	c := Record{"id": "c", "v": 10}
	d := Record{"id": "d", "v": true}
	e := Record{"id": "e", "v": nil}

	want := []string{"e", "d", "a", "c", "b"}
	for _, rows := range [][]Record{
		{a, b, c, d, e},
		{c, b, a, e, d},
		{b, e, c, d, a},
	} {
		ds, err := NewDataset("id", rows)
		require.NoError(t, err)
		v := Derive(ds, cols, nil, "", []SortSpec{{Column: "v"}}, 0, 10)
		if diff := cmp.Diff(want, ids(v)); diff != "" {
			t.Errorf("order mismatch (-want +got):\n%s", diff)
		}
	}

	for _, x := range []any{9, "50", 10, true, 2.5, "abc"} {
		for _, y := range []any{9, "50", 10, true, 2.5, "abc"} {
			assert.Equal(t, compareValues(x, y), -compareValues(y, x), "compare(%v, %v)", x, y)
		}
	}
}

func TestDeriveGlobalFilter(t *testing.T) {
	ds := mustDataset(t, casos())

	tests := []struct {
		name    string
		global  string
		filters FilterState
		want    []string
	}{
		{"empty query matches all", "", nil, []string{"A1", "A2", "A3", "A4", "A5"}},
		{"blank query matches all", "   ", nil, []string{"A1", "A2", "A3", "A4", "A5"}},
		{"folded substring", "clínica", nil, []string{"A1", "A3"}},
		{"upper case query", "CLÍNICA NORTE", nil, []string{"A1"}},
		{"matches any filterable column", "asign", nil, []string{"A1", "A3"}},
		{"ignores unfilterable columns", "1200", nil, []string{}},
		{"and with column filters", "asign", FilterState{"lider": {Value: "beto"}}, []string{"A3"}},
		{"no match", "zzz", nil, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Derive(ds, casoColumns, tt.filters, tt.global, nil, 0, 50)
			if diff := cmp.Diff(tt.want, ids(v)); diff != "" {
				t.Errorf("rows mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, len(tt.want), v.Filtered)
			assert.Equal(t, 5, v.Total)
		})
	}
}

func TestDerivePagination(t *testing.T) {
	rows := make([]Record, 25)
	for i := range rows {
		rows[i] = Record{"radicado": fmt.Sprintf("R%02d", i)}
	}
	ds := mustDataset(t, rows)

	tests := []struct {
		name      string
		page      int
		wantIndex int
		wantLen   int
		wantFirst string
	}{
		{"first page", 0, 0, 10, "R00"},
		{"last page is partial", 2, 2, 5, "R20"},
		{"past the end clamps", 3, 2, 5, "R20"},
		{"far past the end clamps", 99, 2, 5, "R20"},
		{"negative clamps to first", -1, 0, 10, "R00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Derive(ds, casoColumns, nil, "", nil, tt.page, 10)
			assert.Equal(t, 3, v.PageCount)
			assert.Equal(t, tt.wantIndex, v.PageIndex)
			require.Len(t, v.Rows, tt.wantLen)
			assert.Equal(t, tt.wantFirst, v.Rows[0].ID)
		})
	}
}

func TestDeriveEmptyDataset(t *testing.T) {
	ds := mustDataset(t, nil)
	v := Derive(ds, casoColumns, FilterState{"lider": {Value: "ana"}}, "", nil, 4, 10)
	assert.Equal(t, 1, v.PageCount)
	assert.Equal(t, 0, v.PageIndex)
	assert.Empty(t, v.Rows)

	var nilDS *Dataset
	v = Derive(nilDS, casoColumns, nil, "", nil, 0, 10)
	assert.Empty(t, v.Rows)
}

func TestPageCount(t *testing.T) {
	tests := []struct {
		n, size, want int
	}{
		{0, 10, 1},
		{1, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{25, 10, 3},
		{5, 0, 5},
	}
	for _, tt := range tests {
		if got := PageCount(tt.n, tt.size); got != tt.want {
			t.Errorf("PageCount(%d, %d) = %d, want %d", tt.n, tt.size, got, tt.want)
		}
	}
}

func TestFacetsAreChained(t *testing.T) {
	ds := mustDataset(t, casos())
	cols := []Column{
		{ID: "radicado", Filter: FilterText},
		{ID: "estado", Filter: FilterMultiSelect},
		{ID: "lider", Filter: FilterSelect},
	}

	got := Facets(ds, cols, nil, "")
	want := map[string][]string{
		"estado": {"ASIGNADA", "DEVOLUCION", "LIQUIDADO", ""},
		"lider":  {"ana", "beto", ""},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("facets mismatch (-want +got):\n%s", diff)
	}

	got = Facets(ds, cols, FilterState{"lider": {Value: "beto"}, "estado": {Values: []string{"ASIGNADA"}}}, "")
	want = map[string][]string{
		// own filter is ignored, the lider filter narrows
		"estado": {"ASIGNADA", "LIQUIDADO"},
		"lider":  {"ana", "beto"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("chained facets mismatch (-want +got):\n%s", diff)
	}
}

func TestFacetsRespectGlobalFilter(t *testing.T) {
	ds := mustDataset(t, casos())
	got := Facets(ds, casoColumns, FilterState{"lider": {Value: "ana"}}, "clínica")
	want := map[string][]string{
		"estado": {"ASIGNADA"},
		// the lider filter is its own and ignored, the global query is not
		"lider": {"ana", "beto"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("facets mismatch (-want +got):\n%s", diff)
	}
}

func TestFacetsKeepDeclaredOptionOrder(t *testing.T) {
	ds := mustDataset(t, casos())
	got := Facets(ds, casoColumns, FilterState{"lider": {Value: "ana"}}, "")
	assert.Equal(t, []string{"ASIGNADA", "DEVOLUCION"}, got["estado"])
	assert.NotContains(t, got, "radicado")
}

func TestFacetsUseSpanishCollation(t *testing.T) {
	ds := mustDataset(t, []Record{
		{"radicado": "1", "ips": "zeta"},
		{"radicado": "2", "ips": "Ñandú"},
		{"radicado": "3", "ips": "árbol"},
		{"radicado": "4", "ips": "nube"},
		{"radicado": "5", "ips": "Bello"},
	})
	got := Facets(ds, []Column{{ID: "ips", Filter: FilterSelect}}, nil, "")
	assert.Equal(t, []string{"árbol", "Bello", "nube", "Ñandú", "zeta"}, got["ips"])
}
