package reporting

import "github.com/shopspring/decimal"

// CallTotals aggregates a payer's completed calls. Failed and
// insufficient_coins records are excluded so the totals reflect money that
// actually moved.
type CallTotals struct {
	TotalCalls           int64           `json:"total_calls"`
	TotalDurationSeconds int64           `json:"total_duration_seconds"`
	TotalCoinsSpent      decimal.Decimal `json:"total_coins_spent"`
}

// EarningTotals aggregates the credits posted to an earner or agency account.
type EarningTotals struct {
	TotalCalls           int64           `json:"total_calls"`
	TotalDurationSeconds int64           `json:"total_duration_seconds"`
	TotalEarned          decimal.Decimal `json:"total_earned"`
}

// Page bounds a listing query.
type Page struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

func (p Page) clamp() Page {
	if p.Limit <= 0 {
		p.Limit = defaultPageLimit
	}
	if p.Limit > maxPageLimit {
		p.Limit = maxPageLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}
