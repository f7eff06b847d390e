package accounts

import (
	"context"
	"errors"
	"sync"

	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("account not found")

// MemoryRepo is a simple in-memory account repository useful for tests and
// early development. The settlement memory store mutates balances through it.
//
// NOTE: This is not intended for production; replace with the Postgres implementation.
type MemoryRepo struct {
	mu       sync.Mutex
	accounts map[string]Account
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{accounts: map[string]Account{}}
}

func (r *MemoryRepo) Get(ctx context.Context, id string) (Account, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return Account{}, ErrNotFound
	}
	return a, nil
}

func (r *MemoryRepo) Put(ctx context.Context, a Account) error {
	_ = ctx
	if a.ID == "" {
		return errors.New("account id required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[a.ID] = a
	return nil
}

// SetBalances replaces both balances of an account. Test helper for the
// settlement store; production code must go through a settlement transaction.
func (r *MemoryRepo) SetBalances(id string, spendable, withdrawable decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return ErrNotFound
	}
	a.SpendableBalance = spendable
	a.WithdrawableBalance = withdrawable
	r.accounts[id] = a
	return nil
}
