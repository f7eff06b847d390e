package settings

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"callbilling-platform/internal/audit"
	"callbilling-platform/pkg/logger"

	"github.com/shopspring/decimal"
)

// Repository persists the singleton RateConfig row.
type Repository interface {
	Get(ctx context.Context) (RateConfig, error)
	Put(ctx context.Context, cfg RateConfig) error
}

// Service exposes the billing configuration.
//
// Contract: Get reads storage on every call. Admission and settlement each
// read independently so a concurrent admin change is visible between the two
// phases of the same call; no long-lived cache is allowed here.
type Service struct {
	repo  Repository
	audit *audit.Service
	clock func() time.Time
}

func NewService(repo Repository, auditSvc *audit.Service) *Service {
	return &Service{repo: repo, audit: auditSvc, clock: time.Now}
}

var ErrInvalidConfig = errors.New("settings: invalid config value")

func (s *Service) Get(ctx context.Context) (RateConfig, error) {
	return s.repo.Get(ctx)
}

// UpdateRequest patches the configuration. Only non-nil fields are applied;
// there is no way to un-set a value once configured.
type UpdateRequest struct {
	MinCallCoins             *decimal.Decimal `json:"min_call_coins,omitempty"`
	MarginAgencyPerMinute    *decimal.Decimal `json:"margin_agency_per_minute,omitempty"`
	MarginNonAgencyPerMinute *decimal.Decimal `json:"margin_non_agency_per_minute,omitempty"`
	AdminSharePercentage     *decimal.Decimal `json:"admin_share_percentage,omitempty"`
}

func (r UpdateRequest) validate() error {
	for _, v := range []*decimal.Decimal{r.MinCallCoins, r.MarginAgencyPerMinute, r.MarginNonAgencyPerMinute} {
		if v != nil && v.IsNegative() {
			return ErrInvalidConfig
		}
	}
	if p := r.AdminSharePercentage; p != nil {
		if p.IsNegative() || p.GreaterThan(decimal.NewFromInt(100)) {
			return ErrInvalidConfig
		}
	}
	return nil
}

// Update applies an admin patch and records an audit event.
// Audit append is best-effort: a failed append is logged and does not roll
// back the config change.
func (s *Service) Update(ctx context.Context, actorUserID, actorRole, ip string, req UpdateRequest) (RateConfig, error) {
	if actorUserID == "" {
		return RateConfig{}, errors.New("settings: actor required")
	}
	if err := req.validate(); err != nil {
		return RateConfig{}, err
	}

	cfg, err := s.repo.Get(ctx)
	if err != nil {
		return RateConfig{}, err
	}

	if req.MinCallCoins != nil {
		cfg.MinCallCoins = req.MinCallCoins
	}
	if req.MarginAgencyPerMinute != nil {
		cfg.MarginAgencyPerMinute = req.MarginAgencyPerMinute
	}
	if req.MarginNonAgencyPerMinute != nil {
		cfg.MarginNonAgencyPerMinute = req.MarginNonAgencyPerMinute
	}
	if req.AdminSharePercentage != nil {
		cfg.AdminSharePercentage = req.AdminSharePercentage
	}
	cfg.UpdatedAt = s.clock().UTC()

	if err := s.repo.Put(ctx, cfg); err != nil {
		return RateConfig{}, err
	}

	if s.audit != nil {
		meta, _ := json.Marshal(req)
		if err := s.audit.LogConfigChange(ctx, actorUserID, actorRole, ip, "billing config updated", string(meta)); err != nil {
			logger.From(ctx).Warn("audit append failed", "err", err)
		}
	}
	return cfg, nil
}
