package settings

import (
	"time"

	"github.com/shopspring/decimal"
)

// RateConfig is the process-wide billing configuration, admin-mutable.
//
// Every field is a pointer: nil means "never set by an admin". Billing must
// treat an unset value as a hard configuration error, never as zero, to avoid
// accidental free service.
type RateConfig struct {
	// MinCallCoins is the minimum spendable balance advertised to clients at
	// admission time.
	MinCallCoins *decimal.Decimal `json:"min_call_coins" db:"min_call_coins"`

	// Platform margin per minute, by the earner's agency affiliation.
	MarginAgencyPerMinute    *decimal.Decimal `json:"margin_agency_per_minute" db:"margin_agency_per_minute"`
	MarginNonAgencyPerMinute *decimal.Decimal `json:"margin_non_agency_per_minute" db:"margin_non_agency_per_minute"`

	// AdminSharePercentage (0-100) splits the platform margin between the
	// platform and the referring agency for agency-affiliated earners.
	AdminSharePercentage *decimal.Decimal `json:"admin_share_percentage" db:"admin_share_percentage"`

	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
