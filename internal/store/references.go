package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/casegrid/internal/core"
)

func (p *Postgres) ListEstados(ctx context.Context) ([]core.Estado, error) {
	rows, err := p.pool.Query(ctx, "SELECT id, nombre FROM estados ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list estados: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.Estado, error) {
		var e core.Estado
		err := row.Scan(&e.ID, &e.Nombre)
		return e, err
	})
}

func (p *Postgres) ListUsuarios(ctx context.Context) ([]core.Usuario, error) {
	rows, err := p.pool.Query(ctx,
		"SELECT correo, nombre, role_id, id_lider, activo FROM usuarios ORDER BY nombre, correo")
	if err != nil {
		return nil, fmt.Errorf("list usuarios: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.Usuario, error) {
		var (
			u     core.Usuario
			lider pgtype.Text
		)
		err := row.Scan(&u.Correo, &u.Nombre, &u.RoleID, &lider, &u.Activo)
		u.IDLider = lider.String
		return u, err
	})
}

func (p *Postgres) ListRoles(ctx context.Context) ([]core.Rol, error) {
	rows, err := p.pool.Query(ctx, "SELECT id, nombre FROM roles ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.Rol, error) {
		var r core.Rol
		err := row.Scan(&r.ID, &r.Nombre)
		return r, err
	})
}
