package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/casegrid/internal/core"
)

// AuditTrail returns up to limit committed changes of one caso, newest first.
func (p *Postgres) AuditTrail(ctx context.Context, radicado string, limit int) ([]core.AuditEntry, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, batch_id, radicado, column_name, old_value, new_value,
		       actor, ip_address, user_agent, created_at
		FROM caso_audit
		WHERE radicado = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, radicado, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit trail: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.AuditEntry, error) {
		var (
			e                         core.AuditEntry
			batch                     pgtype.UUID
			oldV, newV, ip, userAgent pgtype.Text
		)
		err := row.Scan(&e.ID, &batch, &e.Radicado, &e.Column, &oldV, &newV,
			&e.Actor, &ip, &userAgent, &e.CreatedAt)
		e.BatchID = PgUUIDToString(batch)
		e.OldValue, e.NewValue = oldV.String, newV.String
		e.IPAddress, e.UserAgent = ip.String, userAgent.String
		return e, err
	})
}
