package billing

import (
	"context"

	"callbilling-platform/internal/ledger"
)

// Settlement is the unit of work a SettlementStore applies atomically.
// Record carries all computed amounts; Counterparts carries the memo names
// and the agency credited for an affiliated earner.
type Settlement struct {
	Record       ledger.CallRecord
	Counterparts ledger.Counterparts
}

// Applied is the outcome of a committed settlement.
type Applied struct {
	Record   ledger.CallRecord
	Entries  []ledger.TransactionRecord
	Balances ledger.PostedBalances

	// Replayed is true when the idempotency key matched a previously settled
	// call; Record is then the original record and no money moved.
	Replayed bool
}

// SettlementStore is the transactional boundary of the settlement engine.
//
// Apply must execute the balance read-check-mutate-write sequence under a
// per-account mutual-exclusion guarantee covering the payer, earner and
// agency rows it touches, so two concurrent settlements against the same
// payer can never both pass the affordability check on a stale balance.
// The CallRecord and its TransactionRecords commit in the same transaction
// as the balance mutations; partial application is a correctness violation.
type SettlementStore interface {
	// FindByIdempotencyKey returns the CallRecord previously created for key.
	FindByIdempotencyKey(ctx context.Context, key string) (ledger.CallRecord, bool, error)

	// InsertCallRecord persists a record that moved no money
	// (zero duration, insufficient_coins, failed).
	InsertCallRecord(ctx context.Context, rec ledger.CallRecord) error

	// Apply re-checks the idempotency key and the payer balance under lock,
	// mutates the touched balances, and persists the record plus its ledger
	// entries atomically. Returns an *InsufficientFundsError without any
	// mutation when the payer cannot afford the full amount.
	Apply(ctx context.Context, st Settlement) (Applied, error)
}
