package billing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"callbilling-platform/internal/ledger"
	"callbilling-platform/pkg/utils"

	"github.com/shopspring/decimal"
)

// PostgresStore implements SettlementStore on Postgres.
//
// Schema:
//
//	call_records (
//	  id UUID PRIMARY KEY,
//	  payer_id UUID NOT NULL REFERENCES accounts(id),
//	  earner_id UUID NOT NULL REFERENCES accounts(id),
//	  duration_seconds INT NOT NULL,
//	  earner_rate_per_minute NUMERIC NOT NULL DEFAULT 0,
//	  margin_per_minute NUMERIC NOT NULL DEFAULT 0,
//	  earner_rate_per_second NUMERIC NOT NULL DEFAULT 0,
//	  margin_per_second NUMERIC NOT NULL DEFAULT 0,
//	  total_coins NUMERIC NOT NULL DEFAULT 0,
//	  earner_earning NUMERIC NOT NULL DEFAULT 0,
//	  platform_margin NUMERIC NOT NULL DEFAULT 0,
//	  admin_earned NUMERIC NOT NULL DEFAULT 0,
//	  agency_earned NUMERIC NOT NULL DEFAULT 0,
//	  is_agency_earner BOOLEAN NOT NULL,
//	  medium TEXT NOT NULL,
//	  status TEXT NOT NULL,
//	  error_message TEXT NOT NULL DEFAULT '',
//	  idempotency_key TEXT NOT NULL UNIQUE,
//	  created_at TIMESTAMPTZ NOT NULL
//	)
//
//	transaction_records (
//	  id UUID PRIMARY KEY,
//	  account_id UUID NOT NULL REFERENCES accounts(id),
//	  account_role TEXT NOT NULL,
//	  balance_kind TEXT NOT NULL,
//	  action TEXT NOT NULL,
//	  amount NUMERIC NOT NULL,
//	  balance_after NUMERIC NOT NULL,
//	  memo TEXT NOT NULL,
//	  call_id UUID NOT NULL REFERENCES call_records(id),
//	  created_at TIMESTAMPTZ NOT NULL
//	)
type PostgresStore struct {
	db    *sql.DB
	clock func() time.Time
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, clock: time.Now}
}

// querier is the subset of *sql.DB and *sql.Tx these helpers need.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const callRecordColumns = `
id, payer_id, earner_id, duration_seconds,
earner_rate_per_minute, margin_per_minute, earner_rate_per_second, margin_per_second,
total_coins, earner_earning, platform_margin, admin_earned, agency_earned,
is_agency_earner, medium, status, error_message, idempotency_key, created_at`

func scanCallRecord(row *sql.Row) (ledger.CallRecord, error) {
	var rec ledger.CallRecord
	err := row.Scan(
		&rec.ID, &rec.PayerID, &rec.EarnerID, &rec.DurationSeconds,
		&rec.EarnerRatePerMinute, &rec.MarginPerMinute, &rec.EarnerRatePerSecond, &rec.MarginPerSecond,
		&rec.TotalCoins, &rec.EarnerEarning, &rec.PlatformMargin, &rec.AdminEarned, &rec.AgencyEarned,
		&rec.IsAgencyEarner, &rec.Medium, &rec.Status, &rec.ErrorMessage, &rec.IdempotencyKey, &rec.CreatedAt,
	)
	return rec, err
}

func findByKey(ctx context.Context, q querier, key string) (ledger.CallRecord, bool, error) {
	query := `SELECT ` + callRecordColumns + ` FROM call_records WHERE idempotency_key = $1`
	rec, err := scanCallRecord(q.QueryRowContext(ctx, query, key))
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.CallRecord{}, false, nil
	}
	if err != nil {
		return ledger.CallRecord{}, false, err
	}
	return rec, true, nil
}

func insertCallRecord(ctx context.Context, q querier, rec ledger.CallRecord) error {
	query := `
INSERT INTO call_records (` + callRecordColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`
	_, err := q.ExecContext(ctx, query,
		rec.ID, rec.PayerID, rec.EarnerID, rec.DurationSeconds,
		rec.EarnerRatePerMinute, rec.MarginPerMinute, rec.EarnerRatePerSecond, rec.MarginPerSecond,
		rec.TotalCoins, rec.EarnerEarning, rec.PlatformMargin, rec.AdminEarned, rec.AgencyEarned,
		rec.IsAgencyEarner, rec.Medium, rec.Status, rec.ErrorMessage, rec.IdempotencyKey, rec.CreatedAt,
	)
	return err
}

func insertEntry(ctx context.Context, q querier, e ledger.TransactionRecord) error {
	const query = `
INSERT INTO transaction_records
  (id, account_id, account_role, balance_kind, action, amount, balance_after, memo, call_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := q.ExecContext(ctx, query,
		e.ID, e.AccountID, e.AccountRole, e.BalanceKind, e.Action,
		e.Amount, e.BalanceAfter, e.Memo, e.CallID, e.CreatedAt,
	)
	return err
}

func (s *PostgresStore) FindByIdempotencyKey(ctx context.Context, key string) (ledger.CallRecord, bool, error) {
	return findByKey(ctx, s.db, key)
}

func (s *PostgresStore) InsertCallRecord(ctx context.Context, rec ledger.CallRecord) error {
	return insertCallRecord(ctx, s.db, rec)
}

func (s *PostgresStore) Apply(ctx context.Context, st Settlement) (Applied, error) {
	rec := st.Record
	creditAgency := rec.AgencyEarned.IsPositive() && st.Counterparts.AgencyID != ""

	touched := []string{rec.PayerID, rec.EarnerID}
	if creditAgency {
		touched = append(touched, st.Counterparts.AgencyID)
	}
	// Lock acquisition order matches the memory store: sorted by id, so
	// overlapping settlements never deadlock on each other's row locks.
	sort.Strings(touched)

	var out Applied
	err := utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		balances := map[string]decimal.Decimal{}
		for _, id := range touched {
			var spendable, withdrawable decimal.Decimal
			err := tx.QueryRowContext(ctx,
				`SELECT spendable_balance, withdrawable_balance FROM accounts WHERE id = $1 FOR UPDATE`,
				id,
			).Scan(&spendable, &withdrawable)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return fmt.Errorf("account %s: %w", id, sql.ErrNoRows)
				}
				return err
			}
			if id == rec.PayerID {
				balances[id] = spendable
			} else {
				balances[id] = withdrawable
			}
		}

		// Replay check inside the transaction: the unique index on
		// idempotency_key backs this up, the check keeps replays clean.
		if prior, ok, err := findByKey(ctx, tx, rec.IdempotencyKey); err != nil {
			return err
		} else if ok {
			out = Applied{Record: prior, Replayed: true}
			return nil
		}

		payerBal := balances[rec.PayerID]
		if payerBal.LessThan(rec.TotalCoins) {
			return &InsufficientFundsError{Required: rec.TotalCoins, Available: payerBal}
		}

		now := s.clock().UTC()
		after := ledger.PostedBalances{
			Payer:  payerBal.Sub(rec.TotalCoins),
			Earner: balances[rec.EarnerID].Add(rec.EarnerEarning),
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE accounts SET spendable_balance = $2, updated_at = $3 WHERE id = $1`,
			rec.PayerID, after.Payer, now,
		); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE accounts SET withdrawable_balance = $2, updated_at = $3 WHERE id = $1`,
			rec.EarnerID, after.Earner, now,
		); err != nil {
			return err
		}
		if creditAgency {
			after.Agency = balances[st.Counterparts.AgencyID].Add(rec.AgencyEarned)
			if _, err := tx.ExecContext(ctx,
				`UPDATE accounts SET withdrawable_balance = $2, updated_at = $3 WHERE id = $1`,
				st.Counterparts.AgencyID, after.Agency, now,
			); err != nil {
				return err
			}
		}

		if err := insertCallRecord(ctx, tx, rec); err != nil {
			return err
		}
		entries := ledger.BuildEntries(rec, st.Counterparts, after, now)
		for _, e := range entries {
			if err := insertEntry(ctx, tx, e); err != nil {
				return err
			}
		}

		out = Applied{Record: rec, Entries: entries, Balances: after}
		return nil
	})
	if err != nil {
		return Applied{}, err
	}
	return out, nil
}
