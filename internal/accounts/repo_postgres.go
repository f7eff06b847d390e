package accounts

import (
	"context"
	"database/sql"
	"errors"

	"github.com/shopspring/decimal"
)

// PostgresRepo reads accounts from the accounts table.
//
// NOTE: This repository assumes the following table exists:
//
//	accounts (
//	  id UUID PRIMARY KEY,
//	  role TEXT NOT NULL,
//	  display_name TEXT NOT NULL,
//	  spendable_balance NUMERIC NOT NULL DEFAULT 0 CHECK (spendable_balance >= 0),
//	  withdrawable_balance NUMERIC NOT NULL DEFAULT 0 CHECK (withdrawable_balance >= 0),
//	  rate_per_minute NUMERIC NULL,
//	  agency_id UUID NULL,
//	  created_at TIMESTAMPTZ NOT NULL,
//	  updated_at TIMESTAMPTZ NOT NULL
//	)
//
// Balance writes happen only inside the settlement transaction (internal/billing).
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Get(ctx context.Context, id string) (Account, error) {
	const q = `
SELECT id, role, display_name, spendable_balance, withdrawable_balance, rate_per_minute, agency_id, created_at, updated_at
FROM accounts
WHERE id = $1
`
	var a Account
	var rate decimal.NullDecimal
	var agencyID sql.NullString
	if err := r.db.QueryRowContext(ctx, q, id).Scan(
		&a.ID,
		&a.Role,
		&a.DisplayName,
		&a.SpendableBalance,
		&a.WithdrawableBalance,
		&rate,
		&agencyID,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Account{}, ErrNotFound
		}
		return Account{}, err
	}
	if rate.Valid {
		v := rate.Decimal
		a.RatePerMinute = &v
	}
	if agencyID.Valid {
		a.AgencyID = agencyID.String
	}
	return a, nil
}
