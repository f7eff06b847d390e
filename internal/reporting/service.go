package reporting

import (
	"context"
	"errors"

	"callbilling-platform/internal/ledger"
)

var ErrAccountRequired = errors.New("reporting: account id required")

// Repository reads the settlement history. All methods are read-only.
type Repository interface {
	CallsByPayer(ctx context.Context, payerID string, p Page) ([]ledger.CallRecord, error)
	PayerTotals(ctx context.Context, payerID string) (CallTotals, error)
	CreditsByAccount(ctx context.Context, accountID string, p Page) ([]ledger.TransactionRecord, error)
	CreditTotals(ctx context.Context, accountID string) (EarningTotals, error)
}

// Service answers history and stats queries over the immutable ledger.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service { return &Service{repo: repo} }

// PayerCallHistory lists a payer's call records, newest first, every status
// included so clients can show failed attempts.
func (s *Service) PayerCallHistory(ctx context.Context, payerID string, p Page) ([]ledger.CallRecord, error) {
	if payerID == "" {
		return nil, ErrAccountRequired
	}
	return s.repo.CallsByPayer(ctx, payerID, p.clamp())
}

func (s *Service) PayerCallStats(ctx context.Context, payerID string) (CallTotals, error) {
	if payerID == "" {
		return CallTotals{}, ErrAccountRequired
	}
	return s.repo.PayerTotals(ctx, payerID)
}

// Earnings lists the credit entries posted to an earner or agency account,
// newest first.
func (s *Service) Earnings(ctx context.Context, accountID string, p Page) ([]ledger.TransactionRecord, error) {
	if accountID == "" {
		return nil, ErrAccountRequired
	}
	return s.repo.CreditsByAccount(ctx, accountID, p.clamp())
}

func (s *Service) EarningsStats(ctx context.Context, accountID string) (EarningTotals, error) {
	if accountID == "" {
		return EarningTotals{}, ErrAccountRequired
	}
	return s.repo.CreditTotals(ctx, accountID)
}
