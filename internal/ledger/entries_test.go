package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func completedRecord() CallRecord {
	return CallRecord{
		ID:              "call-1",
		PayerID:         "p1",
		EarnerID:        "e1",
		DurationSeconds: 10,
		TotalCoins:      decimal.NewFromInt(150),
		EarnerEarning:   decimal.NewFromInt(100),
		PlatformMargin:  decimal.NewFromInt(50),
		AdminEarned:     decimal.NewFromInt(20),
		AgencyEarned:    decimal.NewFromInt(30),
		IsAgencyEarner:  true,
		Medium:          CallMediumVideo,
		Status:          CallStatusCompleted,
	}
}

func TestBuildEntries_AgencySettlement(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	rec := completedRecord()

	entries := BuildEntries(rec, Counterparts{PayerName: "P", EarnerName: "E", AgencyID: "a1"}, PostedBalances{
		Payer:  decimal.NewFromInt(50),
		Earner: decimal.NewFromInt(100),
		Agency: decimal.NewFromInt(30),
	}, now)

	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}

	debit := entries[0]
	if debit.Action != EntryActionDebit || debit.BalanceKind != BalanceKindSpendable {
		t.Fatalf("expected payer spendable debit, got %+v", debit)
	}
	if !debit.Amount.Equal(rec.TotalCoins) {
		t.Fatalf("payer debit must equal total coins")
	}
	if !debit.BalanceAfter.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("expected payer balance snapshot 50, got %s", debit.BalanceAfter)
	}

	credit := entries[1]
	if credit.Action != EntryActionCredit || credit.BalanceKind != BalanceKindWithdrawable {
		t.Fatalf("expected earner withdrawable credit, got %+v", credit)
	}
	if !credit.Amount.Equal(rec.EarnerEarning) {
		t.Fatalf("earner credit must equal earner earning")
	}

	agency := entries[2]
	if agency.AccountID != "a1" || !agency.Amount.Equal(rec.AgencyEarned) {
		t.Fatalf("expected agency credit of 30, got %+v", agency)
	}

	// Invariant: payer debit == earner credit + platform margin.
	if !debit.Amount.Equal(credit.Amount.Add(rec.PlatformMargin)) {
		t.Fatalf("debit/credit invariant broken")
	}

	for _, e := range entries {
		if e.CallID != rec.ID {
			t.Fatalf("every entry must reference the call record")
		}
		if e.ID == "" {
			t.Fatalf("entry id required")
		}
	}
}

func TestBuildEntries_IndependentEarnerHasNoAgencyEntry(t *testing.T) {
	rec := completedRecord()
	rec.IsAgencyEarner = false
	rec.AdminEarned = decimal.NewFromInt(50)
	rec.AgencyEarned = decimal.Zero

	entries := BuildEntries(rec, Counterparts{PayerName: "P", EarnerName: "E"}, PostedBalances{}, time.Now())
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
}

func TestBuildEntries_NoEntriesForNonCompletedOrZeroDuration(t *testing.T) {
	rec := completedRecord()
	rec.Status = CallStatusInsufficientCoins
	if got := BuildEntries(rec, Counterparts{}, PostedBalances{}, time.Now()); got != nil {
		t.Fatalf("expected no entries for insufficient_coins")
	}

	rec = completedRecord()
	rec.DurationSeconds = 0
	if got := BuildEntries(rec, Counterparts{}, PostedBalances{}, time.Now()); got != nil {
		t.Fatalf("expected no entries for zero duration")
	}
}
