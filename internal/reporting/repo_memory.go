package reporting

import (
	"context"
	"sort"
	"sync"

	"callbilling-platform/internal/ledger"

	"github.com/shopspring/decimal"
)

// MemoryRepo is an in-memory reporting source for tests. Seed it with
// AddRecord/AddEntries after settling calls through the billing memory store.
type MemoryRepo struct {
	mu      sync.Mutex
	records []ledger.CallRecord
	entries []ledger.TransactionRecord
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) AddRecord(rec ledger.CallRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
}

func (r *MemoryRepo) AddEntries(entries ...ledger.TransactionRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entries...)
}

func paginate[T any](items []T, p Page) []T {
	if p.Offset >= len(items) {
		return nil
	}
	items = items[p.Offset:]
	if len(items) > p.Limit {
		items = items[:p.Limit]
	}
	out := make([]T, len(items))
	copy(out, items)
	return out
}

func (r *MemoryRepo) CallsByPayer(ctx context.Context, payerID string, p Page) ([]ledger.CallRecord, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []ledger.CallRecord
	for _, rec := range r.records {
		if rec.PayerID == payerID {
			matched = append(matched, rec)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return paginate(matched, p), nil
}

func (r *MemoryRepo) PayerTotals(ctx context.Context, payerID string) (CallTotals, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	totals := CallTotals{TotalCoinsSpent: decimal.Zero}
	for _, rec := range r.records {
		if rec.PayerID != payerID || rec.Status != ledger.CallStatusCompleted {
			continue
		}
		totals.TotalCalls++
		totals.TotalDurationSeconds += int64(rec.DurationSeconds)
		totals.TotalCoinsSpent = totals.TotalCoinsSpent.Add(rec.TotalCoins)
	}
	return totals, nil
}

func (r *MemoryRepo) CreditsByAccount(ctx context.Context, accountID string, p Page) ([]ledger.TransactionRecord, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []ledger.TransactionRecord
	for _, e := range r.entries {
		if e.AccountID == accountID && e.Action == ledger.EntryActionCredit {
			matched = append(matched, e)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return paginate(matched, p), nil
}

func (r *MemoryRepo) CreditTotals(ctx context.Context, accountID string) (EarningTotals, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	durations := map[string]int64{}
	for _, rec := range r.records {
		durations[rec.ID] = int64(rec.DurationSeconds)
	}

	totals := EarningTotals{TotalEarned: decimal.Zero}
	for _, e := range r.entries {
		if e.AccountID != accountID || e.Action != ledger.EntryActionCredit {
			continue
		}
		totals.TotalCalls++
		totals.TotalDurationSeconds += durations[e.CallID]
		totals.TotalEarned = totals.TotalEarned.Add(e.Amount)
	}
	return totals, nil
}
