package accounts

import (
	"time"

	"github.com/shopspring/decimal"
)

// Role tags how an account participates in billing.
type Role string

const (
	RolePayer  Role = "payer"
	RoleEarner Role = "earner"
	RoleAgency Role = "agency"
)

// Account is the single party abstraction shared by payers, earners and agencies.
//
// Balance kinds:
// - SpendableBalance funds calls (payers).
// - WithdrawableBalance accumulates earnings (earners and agencies).
//
// Money invariant: balances are non-negative and are only written inside a
// settlement transaction, together with the matching ledger rows.
type Account struct {
	ID          string `json:"id" db:"id"`
	Role        Role   `json:"role" db:"role"`
	DisplayName string `json:"display_name" db:"display_name"`

	SpendableBalance    decimal.Decimal `json:"spendable_balance" db:"spendable_balance"`
	WithdrawableBalance decimal.Decimal `json:"withdrawable_balance" db:"withdrawable_balance"`

	// RatePerMinute is the earner's admin-set payout rate in coins per minute.
	// nil means unset; billing refuses to run on an unset rate.
	RatePerMinute *decimal.Decimal `json:"rate_per_minute,omitempty" db:"rate_per_minute"`

	// AgencyID links an earner to the agency that referred them. Empty = independent.
	AgencyID string `json:"agency_id,omitempty" db:"agency_id"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsAgencyAffiliated reports whether the earner settles through an agency.
func (a Account) IsAgencyAffiliated() bool {
	return a.Role == RoleEarner && a.AgencyID != ""
}
