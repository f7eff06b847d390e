package reporting

import (
	"context"
	"database/sql"

	"callbilling-platform/internal/ledger"
)

// PostgresRepo reads the call_records and transaction_records tables written
// by the settlement store.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) CallsByPayer(ctx context.Context, payerID string, p Page) ([]ledger.CallRecord, error) {
	const q = `
SELECT id, payer_id, earner_id, duration_seconds,
       earner_rate_per_minute, margin_per_minute, earner_rate_per_second, margin_per_second,
       total_coins, earner_earning, platform_margin, admin_earned, agency_earned,
       is_agency_earner, medium, status, error_message, idempotency_key, created_at
FROM call_records
WHERE payer_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`
	rows, err := r.db.QueryContext(ctx, q, payerID, p.Limit, p.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.CallRecord
	for rows.Next() {
		var rec ledger.CallRecord
		if err := rows.Scan(
			&rec.ID, &rec.PayerID, &rec.EarnerID, &rec.DurationSeconds,
			&rec.EarnerRatePerMinute, &rec.MarginPerMinute, &rec.EarnerRatePerSecond, &rec.MarginPerSecond,
			&rec.TotalCoins, &rec.EarnerEarning, &rec.PlatformMargin, &rec.AdminEarned, &rec.AgencyEarned,
			&rec.IsAgencyEarner, &rec.Medium, &rec.Status, &rec.ErrorMessage, &rec.IdempotencyKey, &rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) PayerTotals(ctx context.Context, payerID string) (CallTotals, error) {
	const q = `
SELECT COUNT(*), COALESCE(SUM(duration_seconds), 0), COALESCE(SUM(total_coins), 0)
FROM call_records
WHERE payer_id = $1 AND status = 'completed'`
	var t CallTotals
	err := r.db.QueryRowContext(ctx, q, payerID).
		Scan(&t.TotalCalls, &t.TotalDurationSeconds, &t.TotalCoinsSpent)
	return t, err
}

func (r *PostgresRepo) CreditsByAccount(ctx context.Context, accountID string, p Page) ([]ledger.TransactionRecord, error) {
	const q = `
SELECT id, account_id, account_role, balance_kind, action, amount, balance_after, memo, call_id, created_at
FROM transaction_records
WHERE account_id = $1 AND action = 'credit'
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`
	rows, err := r.db.QueryContext(ctx, q, accountID, p.Limit, p.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.TransactionRecord
	for rows.Next() {
		var e ledger.TransactionRecord
		if err := rows.Scan(
			&e.ID, &e.AccountID, &e.AccountRole, &e.BalanceKind, &e.Action,
			&e.Amount, &e.BalanceAfter, &e.Memo, &e.CallID, &e.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) CreditTotals(ctx context.Context, accountID string) (EarningTotals, error) {
	const q = `
SELECT COUNT(*), COALESCE(SUM(c.duration_seconds), 0), COALESCE(SUM(t.amount), 0)
FROM transaction_records t
JOIN call_records c ON c.id = t.call_id
WHERE t.account_id = $1 AND t.action = 'credit'`
	var t EarningTotals
	err := r.db.QueryRowContext(ctx, q, accountID).
		Scan(&t.TotalCalls, &t.TotalDurationSeconds, &t.TotalEarned)
	return t, err
}
