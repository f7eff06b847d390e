package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"callbilling-platform/internal/accounts"
	"callbilling-platform/internal/ledger"
	"callbilling-platform/internal/rates"
	"callbilling-platform/internal/settings"
	"callbilling-platform/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountReader loads billing parties.
type AccountReader interface {
	Get(ctx context.Context, id string) (accounts.Account, error)
}

// RelationshipChecker answers the social preconditions for a call.
type RelationshipChecker interface {
	MutualFollow(ctx context.Context, payerID, earnerID string) (bool, error)
	EitherBlocked(ctx context.Context, payerID, earnerID string) (bool, error)
}

// ConfigReader returns the current billing configuration. Implementations must
// read storage on every call so admin changes take effect mid-call.
type ConfigReader interface {
	Get(ctx context.Context) (settings.RateConfig, error)
}

// Service is the billing core: admission control at call start and
// all-or-nothing settlement at call end.
type Service struct {
	accounts AccountReader
	social   RelationshipChecker
	config   ConfigReader
	store    SettlementStore
	clock    func() time.Time
}

func NewService(accts AccountReader, social RelationshipChecker, config ConfigReader, store SettlementStore) *Service {
	return &Service{
		accounts: accts,
		social:   social,
		config:   config,
		store:    store,
		clock:    time.Now,
	}
}

// Admission is the verdict returned to the signaling layer before a call is
// connected. MaxSeconds is advisory only; the authoritative affordability
// check happens again at settlement.
type Admission struct {
	Allowed      bool            `json:"allowed"`
	MaxSeconds   int64           `json:"max_seconds"`
	Quote        rates.Quote     `json:"quote"`
	PayerBalance decimal.Decimal `json:"payer_balance"`
	MinCallCoins decimal.Decimal `json:"min_call_coins"`
}

func normalizeMedium(m ledger.CallMedium) (ledger.CallMedium, error) {
	switch m {
	case "":
		return ledger.CallMediumVideo, nil
	case ledger.CallMediumAudio, ledger.CallMediumVideo:
		return m, nil
	default:
		return "", fmt.Errorf("%w: medium %q", ErrInvalidArgument, m)
	}
}

func (s *Service) loadParties(ctx context.Context, payerID, earnerID string) (payer, earner accounts.Account, err error) {
	payer, err = s.accounts.Get(ctx, payerID)
	if err != nil {
		return accounts.Account{}, accounts.Account{}, fmt.Errorf("payer %s: %w", payerID, err)
	}
	if payer.Role != accounts.RolePayer {
		return accounts.Account{}, accounts.Account{}, fmt.Errorf("%w: account %s is not a payer", ErrInvalidArgument, payerID)
	}
	earner, err = s.accounts.Get(ctx, earnerID)
	if err != nil {
		return accounts.Account{}, accounts.Account{}, fmt.Errorf("earner %s: %w", earnerID, err)
	}
	if earner.Role != accounts.RoleEarner {
		return accounts.Account{}, accounts.Account{}, fmt.Errorf("%w: account %s is not an earner", ErrInvalidArgument, earnerID)
	}
	return payer, earner, nil
}

// StartCall decides whether a call between payer and earner may be connected.
//
// Preconditions checked in order: both parties exist with the right roles,
// they follow each other, neither has blocked the other, every rate the call
// would bill at is configured, and the payer can afford at least one second.
func (s *Service) StartCall(ctx context.Context, payerID, earnerID string, medium ledger.CallMedium) (Admission, error) {
	if payerID == "" || earnerID == "" || payerID == earnerID {
		return Admission{}, fmt.Errorf("%w: payer and earner must be distinct non-empty ids", ErrInvalidArgument)
	}
	if _, err := normalizeMedium(medium); err != nil {
		return Admission{}, err
	}

	payer, earner, err := s.loadParties(ctx, payerID, earnerID)
	if err != nil {
		return Admission{}, err
	}

	mutual, err := s.social.MutualFollow(ctx, payerID, earnerID)
	if err != nil {
		return Admission{}, err
	}
	if !mutual {
		return Admission{}, ErrNotMatched
	}
	blocked, err := s.social.EitherBlocked(ctx, payerID, earnerID)
	if err != nil {
		return Admission{}, err
	}
	if blocked {
		return Admission{}, ErrBlocked
	}

	cfg, err := s.config.Get(ctx)
	if err != nil {
		return Admission{}, err
	}
	if cfg.MinCallCoins == nil {
		return Admission{}, &rates.ConfigurationError{Setting: "min_call_coins"}
	}
	quote, err := rates.Resolve(earner.RatePerMinute, earner.IsAgencyAffiliated(), cfg)
	if err != nil {
		return Admission{}, err
	}

	if payer.SpendableBalance.LessThan(quote.PayerPerSecond) {
		return Admission{}, &InsufficientFundsError{
			Required:  quote.PayerPerSecond,
			Available: payer.SpendableBalance,
		}
	}

	// QuoRem gives an exact integer quotient; Div would round the ratio to
	// fixed precision first and can overshoot by a second.
	q, _ := payer.SpendableBalance.QuoRem(quote.PayerPerSecond, 0)

	return Admission{
		Allowed:      true,
		MaxSeconds:   q.IntPart(),
		Quote:        quote,
		PayerBalance: payer.SpendableBalance,
		MinCallCoins: *cfg.MinCallCoins,
	}, nil
}

// EndCallRequest settles one finished call. IdempotencyKey must uniquely
// identify the call attempt; retries with the same key are replayed, not
// billed again.
type EndCallRequest struct {
	PayerID        string            `json:"payer_id"`
	EarnerID       string            `json:"earner_id"`
	ElapsedSeconds int               `json:"elapsed_seconds"`
	Medium         ledger.CallMedium `json:"medium"`
	IdempotencyKey string            `json:"idempotency_key"`
}

// SettlementResult is the outcome of EndCall. Record is always populated when
// a CallRecord was created, including the insufficient_coins case where the
// call to EndCall itself returns an error.
type SettlementResult struct {
	Record   ledger.CallRecord          `json:"record"`
	Entries  []ledger.TransactionRecord `json:"entries,omitempty"`
	Balances ledger.PostedBalances      `json:"balances"`
	Replayed bool                       `json:"replayed"`
}

// EndCall settles a finished call all-or-nothing.
//
// Money movement order: the payer is debited the full amount, the earner is
// credited their earning, and an affiliated earner's agency is credited its
// margin share, all in one transaction. If the payer cannot cover the full
// amount, nothing moves and an insufficient_coins record is written instead.
// Configuration errors abort before any record is created so an operator can
// fix the config and let clients retry the same idempotency key.
func (s *Service) EndCall(ctx context.Context, req EndCallRequest) (SettlementResult, error) {
	if req.PayerID == "" || req.EarnerID == "" || req.PayerID == req.EarnerID {
		return SettlementResult{}, fmt.Errorf("%w: payer and earner must be distinct non-empty ids", ErrInvalidArgument)
	}
	if req.IdempotencyKey == "" {
		return SettlementResult{}, fmt.Errorf("%w: idempotency_key required", ErrInvalidArgument)
	}
	if req.ElapsedSeconds < 0 {
		return SettlementResult{}, fmt.Errorf("%w: elapsed_seconds must be >= 0", ErrInvalidArgument)
	}
	medium, err := normalizeMedium(req.Medium)
	if err != nil {
		return SettlementResult{}, err
	}

	// Fast replay path; the store re-checks under lock to close the race
	// between this read and Apply.
	if prior, ok, err := s.store.FindByIdempotencyKey(ctx, req.IdempotencyKey); err != nil {
		return SettlementResult{}, err
	} else if ok {
		return SettlementResult{Record: prior, Replayed: true}, nil
	}

	payer, earner, err := s.loadParties(ctx, req.PayerID, req.EarnerID)
	if err != nil {
		return SettlementResult{}, err
	}
	isAgency := earner.IsAgencyAffiliated()
	now := s.clock().UTC()

	// Zero duration settles to a completed record with no money movement,
	// before any configuration is consulted.
	if req.ElapsedSeconds == 0 {
		rec := ledger.CallRecord{
			ID:             uuid.NewString(),
			PayerID:        req.PayerID,
			EarnerID:       req.EarnerID,
			IsAgencyEarner: isAgency,
			Medium:         medium,
			Status:         ledger.CallStatusCompleted,
			IdempotencyKey: req.IdempotencyKey,
			CreatedAt:      now,
		}
		if earner.RatePerMinute != nil {
			rec.EarnerRatePerMinute = *earner.RatePerMinute
		}
		if err := s.store.InsertCallRecord(ctx, rec); err != nil {
			return SettlementResult{}, err
		}
		return SettlementResult{Record: rec}, nil
	}

	cfg, err := s.config.Get(ctx)
	if err != nil {
		return SettlementResult{}, err
	}
	quote, err := rates.Resolve(earner.RatePerMinute, isAgency, cfg)
	if err != nil {
		return SettlementResult{}, err
	}
	// An affiliated earner needs the margin split configured before any
	// balance is touched.
	if isAgency && cfg.AdminSharePercentage == nil {
		return SettlementResult{}, &rates.ConfigurationError{Setting: "admin_share_percentage"}
	}

	secs := decimal.NewFromInt(int64(req.ElapsedSeconds))
	requiredPay := quote.PayerPerSecond.Mul(secs)
	earnerEarning := quote.EarnerPerSecond.Mul(secs)
	platformMargin := quote.MarginPerSecond.Mul(secs)

	adminShare := platformMargin
	agencyShare := decimal.Zero
	if isAgency {
		adminShare, agencyShare = rates.Split(platformMargin, *cfg.AdminSharePercentage)
	}

	rec := ledger.CallRecord{
		ID:                  uuid.NewString(),
		PayerID:             req.PayerID,
		EarnerID:            req.EarnerID,
		DurationSeconds:     req.ElapsedSeconds,
		EarnerRatePerMinute: quote.EarnerPerMinute,
		MarginPerMinute:     quote.MarginPerMinute,
		EarnerRatePerSecond: quote.EarnerPerSecond,
		MarginPerSecond:     quote.MarginPerSecond,
		TotalCoins:          requiredPay,
		EarnerEarning:       earnerEarning,
		PlatformMargin:      platformMargin,
		AdminEarned:         adminShare,
		AgencyEarned:        agencyShare,
		IsAgencyEarner:      isAgency,
		Medium:              medium,
		Status:              ledger.CallStatusCompleted,
		IdempotencyKey:      req.IdempotencyKey,
		CreatedAt:           now,
	}

	applied, err := s.store.Apply(ctx, Settlement{
		Record: rec,
		Counterparts: ledger.Counterparts{
			PayerName:  payer.DisplayName,
			EarnerName: earner.DisplayName,
			AgencyID:   earner.AgencyID,
		},
	})
	if err != nil {
		var ife *InsufficientFundsError
		if errors.As(err, &ife) {
			return s.recordInsufficient(ctx, rec, ife, err)
		}
		return SettlementResult{}, err
	}

	return SettlementResult{
		Record:   applied.Record,
		Entries:  applied.Entries,
		Balances: applied.Balances,
		Replayed: applied.Replayed,
	}, nil
}

// recordInsufficient writes the zero-money failure record. The resolved rates
// stay on the record for diagnosis; every monetary field is zero and no ledger
// entries exist.
func (s *Service) recordInsufficient(ctx context.Context, rec ledger.CallRecord, ife *InsufficientFundsError, cause error) (SettlementResult, error) {
	rec.TotalCoins = decimal.Zero
	rec.EarnerEarning = decimal.Zero
	rec.PlatformMargin = decimal.Zero
	rec.AdminEarned = decimal.Zero
	rec.AgencyEarned = decimal.Zero
	rec.Status = ledger.CallStatusInsufficientCoins
	rec.ErrorMessage = fmt.Sprintf("insufficient coins: required %s, available %s", ife.Required, ife.Available)

	if insErr := s.store.InsertCallRecord(ctx, rec); insErr != nil {
		logger.From(ctx).Error("failed to record insufficient_coins outcome",
			"call_id", rec.ID, "payer_id", rec.PayerID, "err", insErr)
		return SettlementResult{}, insErr
	}
	return SettlementResult{Record: rec}, cause
}
