package store

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/casegrid/internal/grid"
	"github.com/JonMunkholm/casegrid/internal/loader"
)

// ErrCasoNotFound is returned when an update names an unknown radicado.
var ErrCasoNotFound = errors.New("caso not found")

type fieldKind int

const (
	kindText fieldKind = iota
	kindNumeric
	kindInt
	kindEstado
)

type field struct {
	column string
	kind   fieldKind
}

// editableFields maps record fields to the casos columns an update may set.
var editableFields = map[string]field{
	"valor_factura":      {column: "valor_factura", kind: kindNumeric},
	"caso":               {column: "caso", kind: kindText},
	"usuario_asignacion": {column: "usuario_asignacion", kind: kindText},
	"lider":              {column: "lider", kind: kindText},
	"prioridad":          {column: "prioridad", kind: kindInt},
	"estado":             {column: "estado_id", kind: kindEstado},
}

func lookupField(name string) (field, error) {
	f, ok := editableFields[name]
	if !ok {
		return field{}, fmt.Errorf("%w: %s", grid.ErrNotEditable, name)
	}
	return f, nil
}

// sortedFields returns the keys of fields in a stable order.
func sortedFields(fields map[string]any) []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

const selectCasos = `
SELECT c.id, c.radicado, c.ips_nit, c.ips_nombre, c.factura, c.valor_factura,
       c.ruta_imagen, c.caso, c.fecha_asignacion, c.total_servicios, c.lider,
       c.usuario_asignacion, c.total_servicios_usuario, c.estado_id, e.nombre,
       c.prioridad
FROM casos c
LEFT JOIN estados e ON e.id = c.estado_id`

// LoadPage returns one page of casos assigned on or after p.DateFrom,
// narrowed to p.Scope and ordered by fecha_asignacion.
func (p *Postgres) LoadPage(ctx context.Context, params loader.PageParams) (loader.Page, error) {
	page, limit := params.Page, params.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		return loader.Page{}, fmt.Errorf("load casos: limit must be positive, got %d", limit)
	}

	wb := NewWhereBuilder()
	wb.Add("c.lider", params.Scope.Lider)
	wb.Add("c.usuario_asignacion", params.Scope.Usuario)
	wb.AddSince("c.fecha_asignacion", params.DateFrom)
	whereClause, args := wb.Build()

	var total int
	countQuery := "SELECT COUNT(*) FROM casos c" + whereClause
	if err := p.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return loader.Page{}, fmt.Errorf("count casos: %w", err)
	}

	order := "DESC"
	if params.Order == loader.OrderAsc {
		order = "ASC"
	}
	query := selectCasos + whereClause +
		fmt.Sprintf(" ORDER BY c.fecha_asignacion %s NULLS LAST, c.id %s", order, order) +
		fmt.Sprintf(" LIMIT $%d OFFSET $%d", wb.NextArgIndex(), wb.NextArgIndex()+1)
	args = append(args, limit, (page-1)*limit)

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return loader.Page{}, fmt.Errorf("query casos: %w", err)
	}
	defer rows.Close()

	var records []grid.Record
	for rows.Next() {
		rec, err := scanCaso(rows)
		if err != nil {
			return loader.Page{}, fmt.Errorf("scan caso: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return loader.Page{}, fmt.Errorf("iterate casos: %w", err)
	}

	return loader.Page{Rows: records, Meta: loader.NewPageMeta(total, page, limit)}, nil
}

func scanCaso(row pgx.Row) (grid.Record, error) {
	var (
		id                                           int64
		radicado                                     string
		ipsNit, ipsNombre, factura, rutaImagen, caso pgtype.Text
		lider, usuario, estado                       pgtype.Text
		valorFactura                                 pgtype.Numeric
		fecha                                        pgtype.Date
		totalServicios, totalUsuario, estadoID, prio pgtype.Int4
	)
	err := row.Scan(&id, &radicado, &ipsNit, &ipsNombre, &factura, &valorFactura,
		&rutaImagen, &caso, &fecha, &totalServicios, &lider,
		&usuario, &totalUsuario, &estadoID, &estado, &prio)
	if err != nil {
		return nil, err
	}
	return grid.Record{
		"id":                      id,
		"radicado":                radicado,
		"ips_nit":                 textValue(ipsNit),
		"ips_nombre":              textValue(ipsNombre),
		"factura":                 textValue(factura),
		"valor_factura":           numericValue(valorFactura),
		"ruta_imagen":             textValue(rutaImagen),
		"caso":                    textValue(caso),
		"fecha_asignacion":        dateValue(fecha),
		"total_servicios":         int4Value(totalServicios),
		"lider":                   textValue(lider),
		"usuario_asignacion":      textValue(usuario),
		"total_servicios_usuario": int4Value(totalUsuario),
		"estado_id":               int4Value(estadoID),
		"estado":                  textValue(estado),
		"prioridad":               int4Value(prio),
	}, nil
}
