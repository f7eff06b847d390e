package billing

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"callbilling-platform/internal/accounts"
	"callbilling-platform/internal/ledger"

	"github.com/shopspring/decimal"
)

// MemoryStore is the in-memory SettlementStore used by tests and early
// development. Balances live in the wrapped accounts.MemoryRepo; records and
// entries accumulate append-only.
//
// Serialization mirrors the Postgres row locks: one mutex per account, always
// acquired in sorted id order so concurrent settlements over overlapping
// account sets cannot deadlock.
type MemoryStore struct {
	accounts *accounts.MemoryRepo
	clock    func() time.Time

	mu      sync.Mutex
	locks   map[string]*sync.Mutex
	byKey   map[string]ledger.CallRecord
	records []ledger.CallRecord
	entries []ledger.TransactionRecord
}

func NewMemoryStore(repo *accounts.MemoryRepo) *MemoryStore {
	return &MemoryStore{
		accounts: repo,
		clock:    time.Now,
		locks:    map[string]*sync.Mutex{},
		byKey:    map[string]ledger.CallRecord{},
	}
}

// lockAccounts acquires the per-account mutexes for ids in sorted order and
// returns the matching unlock.
func (s *MemoryStore) lockAccounts(ids []string) func() {
	uniq := map[string]struct{}{}
	for _, id := range ids {
		if id != "" {
			uniq[id] = struct{}{}
		}
	}
	ordered := make([]string, 0, len(uniq))
	for id := range uniq {
		ordered = append(ordered, id)
	}
	sort.Strings(ordered)

	held := make([]*sync.Mutex, 0, len(ordered))
	for _, id := range ordered {
		s.mu.Lock()
		m, ok := s.locks[id]
		if !ok {
			m = &sync.Mutex{}
			s.locks[id] = m
		}
		s.mu.Unlock()
		m.Lock()
		held = append(held, m)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}

func (s *MemoryStore) FindByIdempotencyKey(ctx context.Context, key string) (ledger.CallRecord, bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byKey[key]
	return rec, ok, nil
}

func (s *MemoryStore) InsertCallRecord(ctx context.Context, rec ledger.CallRecord) error {
	_ = ctx
	if rec.ID == "" {
		return errors.New("call record id required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.IdempotencyKey != "" {
		if _, dup := s.byKey[rec.IdempotencyKey]; dup {
			return errors.New("idempotency key already recorded")
		}
		s.byKey[rec.IdempotencyKey] = rec
	}
	s.records = append(s.records, rec)
	return nil
}

func (s *MemoryStore) Apply(ctx context.Context, st Settlement) (Applied, error) {
	rec := st.Record
	unlock := s.lockAccounts([]string{rec.PayerID, rec.EarnerID, st.Counterparts.AgencyID})
	defer unlock()

	// Replay check under lock: a concurrent retry that won the race returns
	// the committed record instead of billing twice.
	s.mu.Lock()
	prior, dup := s.byKey[rec.IdempotencyKey]
	s.mu.Unlock()
	if dup {
		return Applied{Record: prior, Replayed: true}, nil
	}

	payer, err := s.accounts.Get(ctx, rec.PayerID)
	if err != nil {
		return Applied{}, err
	}
	if payer.SpendableBalance.LessThan(rec.TotalCoins) {
		return Applied{}, &InsufficientFundsError{
			Required:  rec.TotalCoins,
			Available: payer.SpendableBalance,
		}
	}
	earner, err := s.accounts.Get(ctx, rec.EarnerID)
	if err != nil {
		return Applied{}, err
	}

	creditAgency := rec.AgencyEarned.IsPositive() && st.Counterparts.AgencyID != ""
	var agency accounts.Account
	if creditAgency {
		agency, err = s.accounts.Get(ctx, st.Counterparts.AgencyID)
		if err != nil {
			return Applied{}, err
		}
	}

	now := s.clock().UTC()

	payer.SpendableBalance = payer.SpendableBalance.Sub(rec.TotalCoins)
	payer.UpdatedAt = now
	earner.WithdrawableBalance = earner.WithdrawableBalance.Add(rec.EarnerEarning)
	earner.UpdatedAt = now

	after := ledger.PostedBalances{
		Payer:  payer.SpendableBalance,
		Earner: earner.WithdrawableBalance,
		Agency: decimal.Zero,
	}
	if creditAgency {
		agency.WithdrawableBalance = agency.WithdrawableBalance.Add(rec.AgencyEarned)
		agency.UpdatedAt = now
		after.Agency = agency.WithdrawableBalance
	}

	if err := s.accounts.Put(ctx, payer); err != nil {
		return Applied{}, err
	}
	if err := s.accounts.Put(ctx, earner); err != nil {
		return Applied{}, err
	}
	if creditAgency {
		if err := s.accounts.Put(ctx, agency); err != nil {
			return Applied{}, err
		}
	}

	entries := ledger.BuildEntries(rec, st.Counterparts, after, now)

	s.mu.Lock()
	s.byKey[rec.IdempotencyKey] = rec
	s.records = append(s.records, rec)
	s.entries = append(s.entries, entries...)
	s.mu.Unlock()

	return Applied{Record: rec, Entries: entries, Balances: after}, nil
}

// Records returns a copy of every CallRecord, oldest first. Test helper.
func (s *MemoryStore) Records() []ledger.CallRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ledger.CallRecord, len(s.records))
	copy(out, s.records)
	return out
}

// EntriesForCall returns the ledger entries posted for one call. Test helper.
func (s *MemoryStore) EntriesForCall(callID string) []ledger.TransactionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ledger.TransactionRecord
	for _, e := range s.entries {
		if e.CallID == callID {
			out = append(out, e)
		}
	}
	return out
}
