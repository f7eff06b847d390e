package audit

import (
	"context"
	"database/sql"
)

// PostgresRepo appends audit events to the audit_events table.
//
// NOTE: assumes:
//
//	audit_events (
//	  id UUID PRIMARY KEY,
//	  type TEXT NOT NULL,
//	  actor_user_id TEXT NOT NULL,
//	  actor_role TEXT NOT NULL,
//	  ip_address TEXT NOT NULL DEFAULT '',
//	  message TEXT NOT NULL DEFAULT '',
//	  metadata TEXT NOT NULL DEFAULT '',
//	  created_at TIMESTAMPTZ NOT NULL
//	)
//
// INSERT-only by policy.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO audit_events (id, type, actor_user_id, actor_role, ip_address, message, metadata, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`
	_, err := r.db.ExecContext(ctx, q,
		e.ID,
		e.Type,
		e.ActorUserID,
		e.ActorRole,
		e.IPAddress,
		e.Message,
		e.Metadata,
		e.CreatedAt,
	)
	return err
}
