package ledger

import (
	"fmt"
	"time"

	"callbilling-platform/internal/accounts"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Counterparts carries the display names used in human-readable memos, plus
// the agency the earner settles through (empty for independent earners).
type Counterparts struct {
	PayerName  string
	EarnerName string
	AgencyID   string
}

// PostedBalances snapshots each touched account's balance after the
// settlement mutation has been applied.
type PostedBalances struct {
	Payer  decimal.Decimal
	Earner decimal.Decimal
	Agency decimal.Decimal
}

// BuildEntries produces the transaction records for a completed settlement:
// exactly one payer debit, one earner credit, and an agency credit only when
// the agency share is positive.
//
// Pure function: both settlement store implementations call it inside their
// transaction so that entries commit atomically with the balance mutations.
// Non-completed or zero-duration records yield no entries.
func BuildEntries(rec CallRecord, cp Counterparts, after PostedBalances, now time.Time) []TransactionRecord {
	if rec.Status != CallStatusCompleted || rec.DurationSeconds == 0 {
		return nil
	}

	entries := []TransactionRecord{
		{
			ID:           uuid.NewString(),
			AccountID:    rec.PayerID,
			AccountRole:  accounts.RolePayer,
			BalanceKind:  BalanceKindSpendable,
			Action:       EntryActionDebit,
			Amount:       rec.TotalCoins,
			BalanceAfter: after.Payer,
			Memo: fmt.Sprintf("%s call with %s for %d seconds (earner earning: %s, platform margin: %s)",
				rec.Medium, cp.EarnerName, rec.DurationSeconds, rec.EarnerEarning, rec.PlatformMargin),
			CallID:    rec.ID,
			CreatedAt: now,
		},
		{
			ID:           uuid.NewString(),
			AccountID:    rec.EarnerID,
			AccountRole:  accounts.RoleEarner,
			BalanceKind:  BalanceKindWithdrawable,
			Action:       EntryActionCredit,
			Amount:       rec.EarnerEarning,
			BalanceAfter: after.Earner,
			Memo: fmt.Sprintf("Earnings from call with %s for %d seconds",
				cp.PayerName, rec.DurationSeconds),
			CallID:    rec.ID,
			CreatedAt: now,
		},
	}

	if rec.AgencyEarned.IsPositive() && cp.AgencyID != "" {
		entries = append(entries, TransactionRecord{
			ID:           uuid.NewString(),
			AccountID:    cp.AgencyID,
			AccountRole:  accounts.RoleAgency,
			BalanceKind:  BalanceKindWithdrawable,
			Action:       EntryActionCredit,
			Amount:       rec.AgencyEarned,
			BalanceAfter: after.Agency,
			Memo: fmt.Sprintf("Agency commission from call between %s and %s for %d seconds",
				cp.PayerName, cp.EarnerName, rec.DurationSeconds),
			CallID:    rec.ID,
			CreatedAt: now,
		})
	}

	// Admin's share stays inside the CallRecord (AdminEarned); the platform
	// has no externally-facing wallet, so no entry is written for it.
	return entries
}
