package settings

import (
	"context"
	"database/sql"
	"errors"

	"github.com/shopspring/decimal"
)

// PostgresRepo persists the singleton config row.
//
// NOTE: assumes:
//
//	billing_settings (
//	  id BOOLEAN PRIMARY KEY DEFAULT TRUE CHECK (id),
//	  min_call_coins NUMERIC NULL,
//	  margin_agency_per_minute NUMERIC NULL,
//	  margin_non_agency_per_minute NUMERIC NULL,
//	  admin_share_percentage NUMERIC NULL,
//	  updated_at TIMESTAMPTZ NOT NULL
//	)
//
// The CHECK(id) constraint enforces a single row.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Get(ctx context.Context) (RateConfig, error) {
	const q = `
SELECT min_call_coins, margin_agency_per_minute, margin_non_agency_per_minute, admin_share_percentage, updated_at
FROM billing_settings
WHERE id
`
	var cfg RateConfig
	var minCoins, marginAgency, marginNonAgency, adminShare decimal.NullDecimal
	err := r.db.QueryRowContext(ctx, q).Scan(&minCoins, &marginAgency, &marginNonAgency, &adminShare, &cfg.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Fresh deployment: everything unset until an admin configures it.
			return RateConfig{}, nil
		}
		return RateConfig{}, err
	}
	cfg.MinCallCoins = fromNull(minCoins)
	cfg.MarginAgencyPerMinute = fromNull(marginAgency)
	cfg.MarginNonAgencyPerMinute = fromNull(marginNonAgency)
	cfg.AdminSharePercentage = fromNull(adminShare)
	return cfg, nil
}

func (r *PostgresRepo) Put(ctx context.Context, cfg RateConfig) error {
	const q = `
INSERT INTO billing_settings (id, min_call_coins, margin_agency_per_minute, margin_non_agency_per_minute, admin_share_percentage, updated_at)
VALUES (TRUE, $1, $2, $3, $4, $5)
ON CONFLICT (id)
DO UPDATE SET min_call_coins = EXCLUDED.min_call_coins,
              margin_agency_per_minute = EXCLUDED.margin_agency_per_minute,
              margin_non_agency_per_minute = EXCLUDED.margin_non_agency_per_minute,
              admin_share_percentage = EXCLUDED.admin_share_percentage,
              updated_at = EXCLUDED.updated_at
`
	_, err := r.db.ExecContext(ctx, q,
		toNull(cfg.MinCallCoins),
		toNull(cfg.MarginAgencyPerMinute),
		toNull(cfg.MarginNonAgencyPerMinute),
		toNull(cfg.AdminSharePercentage),
		cfg.UpdatedAt,
	)
	return err
}

func fromNull(v decimal.NullDecimal) *decimal.Decimal {
	if !v.Valid {
		return nil
	}
	d := v.Decimal
	return &d
}

func toNull(v *decimal.Decimal) decimal.NullDecimal {
	if v == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *v, Valid: true}
}
