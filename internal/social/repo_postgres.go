package social

import (
	"context"
	"database/sql"
)

// PostgresRepo answers the two admission-time relationship questions.
//
// NOTE: This repository assumes the following tables exist:
//
//	follows (follower_id UUID, followee_id UUID, PRIMARY KEY (follower_id, followee_id))
//	blocks  (blocker_id UUID, blocked_id UUID, PRIMARY KEY (blocker_id, blocked_id))
//
// Reads are snapshot-consistent; admission never takes locks.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) MutualFollow(ctx context.Context, payerID, earnerID string) (bool, error) {
	const q = `
SELECT EXISTS (SELECT 1 FROM follows WHERE follower_id = $1 AND followee_id = $2)
   AND EXISTS (SELECT 1 FROM follows WHERE follower_id = $2 AND followee_id = $1)
`
	var mutual bool
	if err := r.db.QueryRowContext(ctx, q, payerID, earnerID).Scan(&mutual); err != nil {
		return false, err
	}
	return mutual, nil
}

func (r *PostgresRepo) EitherBlocked(ctx context.Context, payerID, earnerID string) (bool, error) {
	const q = `
SELECT EXISTS (
  SELECT 1 FROM blocks
  WHERE (blocker_id = $1 AND blocked_id = $2)
     OR (blocker_id = $2 AND blocked_id = $1)
)
`
	var blocked bool
	if err := r.db.QueryRowContext(ctx, q, payerID, earnerID).Scan(&blocked); err != nil {
		return false, err
	}
	return blocked, nil
}
