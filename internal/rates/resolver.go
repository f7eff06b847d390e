package rates

import (
	"fmt"

	"callbilling-platform/internal/settings"

	"github.com/shopspring/decimal"
)

// ConfigurationError marks a billing parameter that was never set by an admin.
// Callers must treat it as an operational alarm, not a routine user error:
// billing never proceeds on an implicit default of zero, because that would
// let calls run free.
type ConfigurationError struct {
	Setting string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("billing configuration missing: %s", e.Setting)
}

var sixty = decimal.NewFromInt(60)

// Quote holds the rates in effect for one earner at one instant.
// Per-minute figures are the configured source of truth; per-second figures
// are derived here and frozen into the CallRecord at settlement.
type Quote struct {
	EarnerPerMinute decimal.Decimal `json:"earner_per_minute"`
	MarginPerMinute decimal.Decimal `json:"margin_per_minute"`

	EarnerPerSecond decimal.Decimal `json:"earner_per_second"`
	MarginPerSecond decimal.Decimal `json:"margin_per_second"`
	PayerPerSecond  decimal.Decimal `json:"payer_per_second"`

	IsAgency bool `json:"is_agency"`
}

// Resolve derives per-second rates from per-minute configuration.
//
// Pure function. Admission and settlement call it independently against a
// fresh config read, so a concurrent admin rate change between the two phases
// is reflected at settlement.
func Resolve(earnerPerMinute *decimal.Decimal, isAgency bool, cfg settings.RateConfig) (Quote, error) {
	if cfg.MarginAgencyPerMinute == nil {
		return Quote{}, &ConfigurationError{Setting: "margin_agency_per_minute"}
	}
	if cfg.MarginNonAgencyPerMinute == nil {
		return Quote{}, &ConfigurationError{Setting: "margin_non_agency_per_minute"}
	}
	if earnerPerMinute == nil || !earnerPerMinute.IsPositive() {
		return Quote{}, &ConfigurationError{Setting: "earner rate_per_minute"}
	}

	marginPerMinute := *cfg.MarginNonAgencyPerMinute
	if isAgency {
		marginPerMinute = *cfg.MarginAgencyPerMinute
	}

	earnerPerSecond := earnerPerMinute.Div(sixty)
	marginPerSecond := marginPerMinute.Div(sixty)

	return Quote{
		EarnerPerMinute: *earnerPerMinute,
		MarginPerMinute: marginPerMinute,
		EarnerPerSecond: earnerPerSecond,
		MarginPerSecond: marginPerSecond,
		PayerPerSecond:  earnerPerSecond.Add(marginPerSecond),
		IsAgency:        isAgency,
	}, nil
}

// Split divides a platform margin between the platform and the referring
// agency. adminSharePercentage is 0-100; the admin share is rounded to a
// whole coin (half away from zero) and the agency receives the remainder, so
// the two shares always sum to the margin exactly.
func Split(platformMargin, adminSharePercentage decimal.Decimal) (adminShare, agencyShare decimal.Decimal) {
	adminShare = platformMargin.Mul(adminSharePercentage).Div(decimal.NewFromInt(100)).Round(0)
	agencyShare = platformMargin.Sub(adminShare)
	return adminShare, agencyShare
}
