package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/casegrid/internal/core"
	"github.com/JonMunkholm/casegrid/internal/grid"
)

// ApplyChanges writes every change in one transaction and records an audit
// row per cell. Any failure rolls the whole batch back.
func (p *Postgres) ApplyChanges(ctx context.Context, actor string, changes []grid.Change) error {
	if len(changes) == 0 {
		return nil
	}
	a := p.newAuditor(ctx, actor)
	return pgx.BeginTxFunc(ctx, p.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, c := range changes {
			if err := a.apply(ctx, tx, c.ID, c.Column, c.Value); err != nil {
				return fmt.Errorf("update %s %s: %w", c.ID, c.Column, err)
			}
		}
		return nil
	})
}

// UpdateCaso writes the given fields of one caso in its own transaction.
func (p *Postgres) UpdateCaso(ctx context.Context, actor, radicado string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	a := p.newAuditor(ctx, actor)
	return pgx.BeginTxFunc(ctx, p.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, name := range sortedFields(fields) {
			if err := a.apply(ctx, tx, radicado, name, fields[name]); err != nil {
				return fmt.Errorf("update %s: %w", name, err)
			}
		}
		return nil
	})
}

// auditor carries the attribution shared by every change of one batch.
type auditor struct {
	batch     uuid.UUID
	actor     string
	ipAddress pgtype.Text
	userAgent pgtype.Text
}

func (p *Postgres) newAuditor(ctx context.Context, actor string) auditor {
	return auditor{
		batch:     uuid.New(),
		actor:     actor,
		ipAddress: ToPgText(core.GetIPAddressFromContext(ctx)),
		userAgent: ToPgText(core.GetUserAgentFromContext(ctx)),
	}
}

func (a auditor) apply(ctx context.Context, tx pgx.Tx, radicado, name string, value any) error {
	f, err := lookupField(name)
	if err != nil {
		return err
	}

	arg, err := a.argFor(ctx, tx, f, value)
	if err != nil {
		return err
	}

	oldQuery := fmt.Sprintf("SELECT %s::text FROM casos WHERE radicado = $1 FOR UPDATE", f.column)
	if f.kind == kindEstado {
		oldQuery = `SELECT e.nombre FROM casos c LEFT JOIN estados e ON e.id = c.estado_id
			WHERE c.radicado = $1 FOR UPDATE OF c`
	}
	var old pgtype.Text
	if err := tx.QueryRow(ctx, oldQuery, radicado).Scan(&old); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrCasoNotFound, radicado)
		}
		return fmt.Errorf("read current value: %w", err)
	}

	update := fmt.Sprintf("UPDATE casos SET %s = $1, updated_at = now() WHERE radicado = $2", f.column)
	if _, err := tx.Exec(ctx, update, arg, radicado); err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO caso_audit (batch_id, radicado, column_name, old_value, new_value, actor, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.batch, radicado, name, old, ToPgText(value), a.actor, a.ipAddress, a.userAgent)
	if err != nil {
		return fmt.Errorf("write audit: %w", err)
	}
	return nil
}

// argFor converts a record value to the SQL argument for its column.
func (a auditor) argFor(ctx context.Context, tx pgx.Tx, f field, value any) (any, error) {
	switch f.kind {
	case kindNumeric:
		return ToPgNumeric(value)
	case kindInt:
		return ToPgInt4(value)
	case kindEstado:
		name := strings.TrimSpace(grid.Stringify(value))
		if name == "" {
			return nil, fmt.Errorf("estado: required value")
		}
		var id int32
		err := tx.QueryRow(ctx, "SELECT id FROM estados WHERE upper(nombre) = upper($1)", name).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("estado %q is not in the allowed list", name)
		}
		if err != nil {
			return nil, fmt.Errorf("look up estado: %w", err)
		}
		return id, nil
	default:
		return ToPgText(value), nil
	}
}
