package rates

import (
	"errors"
	"testing"

	"callbilling-platform/internal/settings"

	"github.com/shopspring/decimal"
)

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func configured() settings.RateConfig {
	return settings.RateConfig{
		MinCallCoins:             dec("60"),
		MarginAgencyPerMinute:    dec("300"),
		MarginNonAgencyPerMinute: dec("300"),
		AdminSharePercentage:     dec("40"),
	}
}

func TestResolve_DerivesPerSecondRates(t *testing.T) {
	// 600 coins/minute earner rate, 300 coins/minute agency margin.
	q, err := Resolve(dec("600"), true, configured())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !q.EarnerPerSecond.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("expected earner 10/s, got %s", q.EarnerPerSecond)
	}
	if !q.MarginPerSecond.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("expected margin 5/s, got %s", q.MarginPerSecond)
	}
	if !q.PayerPerSecond.Equal(decimal.NewFromInt(15)) {
		t.Fatalf("expected payer 15/s, got %s", q.PayerPerSecond)
	}
	if !q.IsAgency {
		t.Fatalf("expected agency quote")
	}
}

func TestResolve_PicksMarginByAffiliation(t *testing.T) {
	cfg := configured()
	cfg.MarginAgencyPerMinute = dec("300")
	cfg.MarginNonAgencyPerMinute = dec("120")

	agency, err := Resolve(dec("600"), true, cfg)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	independent, err := Resolve(dec("600"), false, cfg)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !agency.MarginPerMinute.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("expected agency margin 300, got %s", agency.MarginPerMinute)
	}
	if !independent.MarginPerMinute.Equal(decimal.NewFromInt(120)) {
		t.Fatalf("expected non-agency margin 120, got %s", independent.MarginPerMinute)
	}
}

func TestResolve_FailsOnUnsetValues(t *testing.T) {
	cfg := configured()
	cfg.MarginAgencyPerMinute = nil
	if _, err := Resolve(dec("600"), true, cfg); err == nil {
		t.Fatalf("expected configuration error")
	} else {
		var ce *ConfigurationError
		if !errors.As(err, &ce) {
			t.Fatalf("expected *ConfigurationError, got %T", err)
		}
	}

	// Both margins must be set even for the affiliation not in play.
	cfg = configured()
	cfg.MarginNonAgencyPerMinute = nil
	if _, err := Resolve(dec("600"), true, cfg); err == nil {
		t.Fatalf("expected configuration error for unset non-agency margin")
	}

	// Unset or zero earner rate never bills.
	if _, err := Resolve(nil, false, configured()); err == nil {
		t.Fatalf("expected configuration error for unset earner rate")
	}
	if _, err := Resolve(dec("0"), false, configured()); err == nil {
		t.Fatalf("expected configuration error for zero earner rate")
	}
}

func TestSplit_SharesSumToMargin(t *testing.T) {
	admin, agency := Split(decimal.NewFromInt(50), decimal.NewFromInt(40))
	if !admin.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("expected admin share 20, got %s", admin)
	}
	if !agency.Equal(decimal.NewFromInt(30)) {
		t.Fatalf("expected agency share 30, got %s", agency)
	}

	// Rounding: 33% of 50 = 16.5, rounds to 17; agency takes the remainder.
	admin, agency = Split(decimal.NewFromInt(50), decimal.NewFromInt(33))
	if !admin.Add(agency).Equal(decimal.NewFromInt(50)) {
		t.Fatalf("shares must sum to the margin, got %s + %s", admin, agency)
	}
	if !admin.Equal(decimal.NewFromInt(17)) {
		t.Fatalf("expected admin share 17, got %s", admin)
	}
}
