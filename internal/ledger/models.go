package ledger

import (
	"time"

	"callbilling-platform/internal/accounts"

	"github.com/shopspring/decimal"
)

// CallRecord is the immutable settlement outcome for one call.
//
// Created exactly once per call attempt, by the settlement engine, and never
// mutated afterwards. The four rates are frozen at settlement time so the
// record stays auditable after admin rate changes.
type CallRecord struct {
	ID       string `json:"id" db:"id"`
	PayerID  string `json:"payer_id" db:"payer_id"`
	EarnerID string `json:"earner_id" db:"earner_id"`

	// DurationSeconds is the elapsed time reported by the signaling layer.
	DurationSeconds int `json:"duration_seconds" db:"duration_seconds"`

	// Rates in effect at settlement (per-minute source of truth, derived per-second).
	EarnerRatePerMinute decimal.Decimal `json:"earner_rate_per_minute" db:"earner_rate_per_minute"`
	MarginPerMinute     decimal.Decimal `json:"margin_per_minute" db:"margin_per_minute"`
	EarnerRatePerSecond decimal.Decimal `json:"earner_rate_per_second" db:"earner_rate_per_second"`
	MarginPerSecond     decimal.Decimal `json:"margin_per_second" db:"margin_per_second"`

	// Computed splits. Invariants:
	//   TotalCoins == EarnerEarning + PlatformMargin
	//   PlatformMargin == AdminEarned + AgencyEarned
	TotalCoins     decimal.Decimal `json:"total_coins" db:"total_coins"`
	EarnerEarning  decimal.Decimal `json:"earner_earning" db:"earner_earning"`
	PlatformMargin decimal.Decimal `json:"platform_margin" db:"platform_margin"`
	AdminEarned    decimal.Decimal `json:"admin_earned" db:"admin_earned"`
	AgencyEarned   decimal.Decimal `json:"agency_earned" db:"agency_earned"`

	// IsAgencyEarner freezes the affiliation at settlement time.
	IsAgencyEarner bool `json:"is_agency_earner" db:"is_agency_earner"`

	Medium CallMedium `json:"medium" db:"medium"`
	Status CallStatus `json:"status" db:"status"`

	// ErrorMessage is populated at creation for non-completed statuses only.
	ErrorMessage string `json:"error_message,omitempty" db:"error_message"`

	// IdempotencyKey is the caller-supplied token for this call attempt.
	// A retried EndCall with the same key returns this record instead of
	// billing again.
	IdempotencyKey string `json:"idempotency_key" db:"idempotency_key"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type CallMedium string

const (
	CallMediumAudio CallMedium = "audio"
	CallMediumVideo CallMedium = "video"
)

type CallStatus string

const (
	CallStatusCompleted         CallStatus = "completed"
	CallStatusFailed            CallStatus = "failed"
	CallStatusInsufficientCoins CallStatus = "insufficient_coins"
)

// TransactionRecord is an immutable ledger entry for one balance mutation.
// Append-only: this is the audit trail and the only source of historical
// balance reconstruction.
type TransactionRecord struct {
	ID string `json:"id" db:"id"`

	AccountID   string        `json:"account_id" db:"account_id"`
	AccountRole accounts.Role `json:"account_role" db:"account_role"`

	BalanceKind BalanceKind `json:"balance_kind" db:"balance_kind"`
	Action      EntryAction `json:"action" db:"action"`

	Amount decimal.Decimal `json:"amount" db:"amount"`

	// BalanceAfter snapshots the account balance after this mutation.
	BalanceAfter decimal.Decimal `json:"balance_after" db:"balance_after"`

	Memo string `json:"memo" db:"memo"`

	// CallID references the CallRecord this entry settles.
	CallID string `json:"call_id" db:"call_id"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type BalanceKind string

const (
	BalanceKindSpendable    BalanceKind = "spendable"
	BalanceKindWithdrawable BalanceKind = "withdrawable"
)

type EntryAction string

const (
	EntryActionDebit  EntryAction = "debit"
	EntryActionCredit EntryAction = "credit"
)
